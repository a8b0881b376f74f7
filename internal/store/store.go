package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/code4md/ajubot/internal/models"
)

// Persister is the durable layer requests are written through to.
// *db.DB satisfies it.
type Persister interface {
	SaveRequest(*models.Request) error
	DeleteRequest(id string) error
	ListRequests() ([]*models.Request, error)
}

// Store holds the live set of assistance requests. All mutations go through
// Patch so that concurrent volunteer responses cannot overwrite each other's
// partial updates; each request has its own exclusive section.
type Store struct {
	log zerolog.Logger
	db  Persister

	mu       sync.Mutex
	requests map[string]*models.Request
	locks    map[string]*sync.Mutex
}

// New builds a store preloaded with every persisted request.
func New(db Persister, log zerolog.Logger) (*Store, error) {
	persisted, err := db.ListRequests()
	if err != nil {
		return nil, fmt.Errorf("failed to load requests: %w", err)
	}

	s := &Store{
		log:      log.With().Str("component", "store").Logger(),
		db:       db,
		requests: make(map[string]*models.Request, len(persisted)),
		locks:    make(map[string]*sync.Mutex, len(persisted)),
	}
	for _, r := range persisted {
		s.requests[r.ID] = r
	}

	s.log.Info().Int("requests", len(persisted)).Msg("request store loaded")
	return s, nil
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Create registers a new request. Fails with ErrDuplicateID if the backend
// reuses an ID that is still live.
func (s *Store) Create(r *models.Request) error {
	l := s.lockFor(r.ID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	_, exists := s.requests[r.ID]
	s.mu.Unlock()
	if exists {
		return fmt.Errorf("request %s: %w", r.ID, models.ErrDuplicateID)
	}

	cp := *r
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	if err := s.db.SaveRequest(&cp); err != nil {
		return fmt.Errorf("failed to persist request %s: %w", r.ID, err)
	}

	s.mu.Lock()
	s.requests[cp.ID] = &cp
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the request, or ErrNotFound.
func (s *Store) Get(id string) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := copyRequest(r)
	return &cp, nil
}

// Patch applies a single mutation to the request transactionally: the
// read-modify-write runs under the request's lock and is persisted before it
// becomes observable. Returns the updated copy. Fails with ErrNotFound if the
// request is gone, which callers treat as a tolerated race.
func (s *Store) Patch(id string, mutate func(*models.Request)) (*models.Request, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	r, ok := s.requests[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("request %s: %w", id, models.ErrNotFound)
	}
	work := copyRequest(r)
	s.mu.Unlock()

	mutate(&work)
	work.UpdatedAt = time.Now().UTC()

	if err := s.db.SaveRequest(&work); err != nil {
		return nil, fmt.Errorf("failed to persist request %s: %w", id, err)
	}

	s.mu.Lock()
	stored := copyRequest(&work)
	s.requests[id] = &stored
	s.mu.Unlock()

	result := copyRequest(&work)
	return &result, nil
}

// Delete removes a completed or cancelled request. Deleting an absent request
// is a no-op.
func (s *Store) Delete(id string) error {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	if err := s.db.DeleteRequest(id); err != nil {
		return fmt.Errorf("failed to delete request %s: %w", id, err)
	}

	// The lock entry survives the delete: a Patch already blocked on it must
	// keep serializing with any later re-create of the same ID.
	s.mu.Lock()
	delete(s.requests, id)
	s.mu.Unlock()
	return nil
}

// List returns a snapshot of every live request, for introspection.
func (s *Store) List() []*models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Request, 0, len(s.requests))
	for _, r := range s.requests {
		cp := copyRequest(r)
		out = append(out, &cp)
	}
	return out
}

// copyRequest deep-copies the slice fields so callers can't alias the stored
// record.
func copyRequest(r *models.Request) models.Request {
	cp := *r
	cp.Needs = append([]string(nil), r.Needs...)
	cp.Remarks = append([]string(nil), r.Remarks...)
	cp.Candidates = append([]int64(nil), r.Candidates...)
	cp.Offers = append([]models.Offer(nil), r.Offers...)
	cp.Symptoms = append([]string(nil), r.Symptoms...)
	return cp
}
