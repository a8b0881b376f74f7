package conversation

import (
	"sync"

	"github.com/code4md/ajubot/internal/models"
)

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
		r := r
		out = append(out, &r)
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
		v := v
		out = append(out, &v)
	}
	return out, nil
}

type sentMessage struct {
	ChatID int64
	Kind   models.MessageKind
	Ctx    models.MessageContext
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) Notify(chatID int64, kind models.MessageKind, ctx models.MessageContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Kind: kind, Ctx: ctx})
	return nil
}

func (f *fakeNotifier) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}
	}
	return f.sent[len(f.sent)-1]
}

type statusUpdate struct {
	RequestID string
	Status    string
}

// fakeBackend covers both the conversation's backend slice and the engine's.
// When the gate channels are set, UploadReceipt signals uploadStarted and then
// blocks until uploadGate is closed, so tests can interleave other operations
// with a slow upload.
type fakeBackend struct {
	mu       sync.Mutex
	linked   []string
	offers   []string
	statuses []statusUpdate
	receipts int

	uploadStarted chan struct{}
	uploadGate    chan struct{}
}

func (f *fakeBackend) LinkVolunteer(username string, chatID int64, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linked = append(f.linked, username)
	return nil
}

func (f *fakeBackend) RelayOffer(requestID string, chatID int64, offer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, offer)
	return nil
}

func (f *fakeBackend) UpdateRequestStatus(requestID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusUpdate{RequestID: requestID, Status: status})
	return nil
}

func (f *fakeBackend) UploadReceipt(requestID string, photo []byte) error {
	if f.uploadStarted != nil {
		f.uploadStarted <- struct{}{}
		<-f.uploadGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts++
	return nil
}

func (f *fakeBackend) lastStatus() statusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return statusUpdate{}
	}
	return f.statuses[len(f.statuses)-1]
}

type fakeReporter struct {
	mu        sync.Mutex
	finalized []string
	failNext  bool
}

func (f *fakeReporter) Finalize(requestID string) (*models.OutcomeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errBackendDown
	}
	f.finalized = append(f.finalized, requestID)
	return &models.OutcomeRecord{RequestID: requestID}, nil
}
