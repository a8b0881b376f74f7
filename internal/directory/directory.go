package directory

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/code4md/ajubot/internal/models"
)

// Persister is the durable layer volunteers are written through to.
// *db.DB satisfies it.
type Persister interface {
	SaveVolunteer(*models.Volunteer) error
	ListVolunteers() ([]*models.Volunteer, error)
}

// Directory maps volunteer chat IDs to their conversation state and profile.
// Reads serve from memory; every mutation is flushed to the persister before
// it becomes visible, so the directory survives a process restart.
type Directory struct {
	log zerolog.Logger
	db  Persister

	mu         sync.Mutex
	volunteers map[int64]*models.Volunteer
	locks      map[int64]*sync.Mutex
}

// New builds a directory preloaded with every persisted volunteer.
func New(db Persister, log zerolog.Logger) (*Directory, error) {
	persisted, err := db.ListVolunteers()
	if err != nil {
		return nil, fmt.Errorf("failed to load volunteers: %w", err)
	}

	d := &Directory{
		log:        log.With().Str("component", "directory").Logger(),
		db:         db,
		volunteers: make(map[int64]*models.Volunteer, len(persisted)),
		locks:      make(map[int64]*sync.Mutex, len(persisted)),
	}
	for _, v := range persisted {
		d.volunteers[v.ChatID] = v
	}

	d.log.Info().Int("volunteers", len(persisted)).Msg("directory loaded")
	return d, nil
}

func (d *Directory) lockFor(chatID int64) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[chatID] = l
	}
	return l
}

// Get returns a copy of the volunteer record, or ErrNotFound.
func (d *Directory) Get(chatID int64) (*models.Volunteer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.volunteers[chatID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

// Upsert applies a mutation to the volunteer under their exclusive section,
// creating the record if it does not exist yet. New volunteers start in the
// onboarding state. The write is persisted before it becomes observable.
func (d *Directory) Upsert(chatID int64, mutate func(*models.Volunteer)) (*models.Volunteer, error) {
	l := d.lockFor(chatID)
	l.Lock()
	defer l.Unlock()

	d.mu.Lock()
	v, ok := d.volunteers[chatID]
	var work models.Volunteer
	if ok {
		work = *v
	} else {
		work = models.Volunteer{
			ChatID:    chatID,
			State:     models.StateExpectingPhoneNumber,
			CreatedAt: time.Now().UTC(),
		}
	}
	d.mu.Unlock()

	mutate(&work)
	work.UpdatedAt = time.Now().UTC()

	if err := d.db.SaveVolunteer(&work); err != nil {
		return nil, fmt.Errorf("failed to persist volunteer %d: %w", chatID, err)
	}

	d.mu.Lock()
	stored := work
	d.volunteers[chatID] = &stored
	d.mu.Unlock()

	cp := work
	return &cp, nil
}

// ListEligible returns the chat IDs of volunteers currently open to new
// broadcasts, i.e. those in the AVAILABLE state.
func (d *Directory) ListEligible() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	var eligible []int64
	for id, v := range d.volunteers {
		if v.State == models.StateAvailable {
			eligible = append(eligible, id)
		}
	}
	return eligible
}

// List returns a snapshot of every volunteer, for introspection.
func (d *Directory) List() []*models.Volunteer {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*models.Volunteer, 0, len(d.volunteers))
	for _, v := range d.volunteers {
		cp := *v
		out = append(out, &cp)
	}
	return out
}
