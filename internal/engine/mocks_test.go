package engine

import (
	"sync"

	"github.com/code4md/ajubot/internal/models"
)

// memPersister satisfies both the store and directory persister interfaces,
// keeping everything in memory for the tests.
type memPersister struct {
	mu         sync.Mutex
	requests   map[string]models.Request
	volunteers map[int64]models.Volunteer
}

func newMemPersister() *memPersister {
	return &memPersister{
		requests:   make(map[string]models.Request),
		volunteers: make(map[int64]models.Volunteer),
	}
}

func (m *memPersister) SaveRequest(r *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = *r
	return nil
}

func (m *memPersister) DeleteRequest(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requests, id)
	return nil
}

func (m *memPersister) ListRequests() ([]*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Request
	for _, r := range m.requests {
		cp := r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPersister) SaveVolunteer(v *models.Volunteer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volunteers[v.ChatID] = *v
	return nil
}

func (m *memPersister) ListVolunteers() ([]*models.Volunteer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Volunteer
	for _, v := range m.volunteers {
		cp := v
		out = append(out, &cp)
	}
	return out, nil
}

type sentMessage struct {
	ChatID int64
	Kind   models.MessageKind
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) Notify(chatID int64, kind models.MessageKind, _ models.MessageContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Kind: kind})
	return nil
}

func (f *fakeNotifier) sentTo(chatID int64) []models.MessageKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []models.MessageKind
	for _, msg := range f.sent {
		if msg.ChatID == chatID {
			kinds = append(kinds, msg.Kind)
		}
	}
	return kinds
}

type relayedOffer struct {
	RequestID string
	ChatID    int64
	Offer     string
}

type fakeBackend struct {
	mu     sync.Mutex
	offers []relayedOffer
}

func (f *fakeBackend) RelayOffer(requestID string, chatID int64, offer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, relayedOffer{RequestID: requestID, ChatID: chatID, Offer: offer})
	return nil
}
