package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/gcsemock/internal/draft"
	"github.com/pavelanni/gcsemock/internal/model"
)

// Manager keeps the live sittings of the server, one per user and paper.
type Manager struct {
	storage   draft.Storage
	gateway   Gateway
	persister Persister
	logger    *slog.Logger

	// Completions older than finishedTTL are dropped.
	finishedTTL time.Duration
	now         func() time.Time

	mu       sync.Mutex
	live     map[string]*Controller // session ID
	byDraft  map[string]string      // draft key -> session ID
	finished map[string]finishedEntry
}

type finishedEntry struct {
	done Completion
	at   time.Time
}

// DefaultFinishedTTL is how long a finished sitting's outcome stays
// available to its results redirect.
const DefaultFinishedTTL = time.Hour

// NewManager creates a manager whose sittings share the given collaborators.
func NewManager(storage draft.Storage, gateway Gateway, persister Persister, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		storage:   storage,
		gateway:   gateway,
		persister: persister,
		logger:    logger,

		finishedTTL: DefaultFinishedTTL,
		now:         time.Now,

		live:     make(map[string]*Controller),
		byDraft:  make(map[string]string),
		finished: make(map[string]finishedEntry),
	}
}

// SetFinishedTTL changes how long finished outcomes are kept.
func (m *Manager) SetFinishedTTL(ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishedTTL = ttl
}

// Start returns the user's live sitting of the paper, or starts a new one
// restored from any saved draft. A sitting that is still being marked is
// returned as is, so a re-open never begins a second attempt.
func (m *Manager) Start(ctx context.Context, paper model.ExamPaper, userID int64) (*Controller, error) {
	key := draft.Key(userID, paper.ID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byDraft[key]; ok {
		if c, ok := m.live[id]; ok {
			switch c.State() {
			case StateAnswering, StateSubmitting:
				return c, nil
			}
		}
	}

	p := paper
	c, err := New(Config{
		Paper:     &p,
		UserID:    userID,
		Storage:   m.storage,
		Gateway:   m.gateway,
		Persister: m.persister,
		Logger:    m.logger,
	})
	if err != nil {
		return nil, err
	}
	c.cfg.OnFinished = func(done Completion) { m.finish(c, done) }
	if err := c.Start(ctx); err != nil {
		return nil, err
	}

	m.live[c.ID()] = c
	m.byDraft[key] = c.ID()
	return c, nil
}

// Get returns a live sitting owned by userID.
func (m *Manager) Get(id string, userID int64) (*Controller, error) {
	m.mu.Lock()
	c, ok := m.live[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if c.UserID() != userID {
		return nil, ErrForbidden
	}
	return c, nil
}

// Discard abandons a sitting and forgets it.
func (m *Manager) Discard(ctx context.Context, id string, userID int64) error {
	c, err := m.Get(id, userID)
	if err != nil {
		return err
	}
	if err := c.Discard(ctx); err != nil {
		return err
	}
	m.remove(c)
	c.Close()
	return nil
}

// Completion returns the outcome of a finished sitting.
func (m *Manager) Completion(id string, userID int64) (Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	entry, ok := m.finished[id]
	if !ok {
		return Completion{}, ErrSessionNotFound
	}
	if entry.done.Result.UserID != userID {
		return Completion{}, ErrForbidden
	}
	return entry.done, nil
}

// Len returns the number of live sittings.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Shutdown stops every live countdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.live {
		c.Close()
	}
}

func (m *Manager) finish(c *Controller, done Completion) {
	m.mu.Lock()
	m.pruneLocked()
	m.finished[c.ID()] = finishedEntry{done: done, at: m.now()}
	m.mu.Unlock()
	m.remove(c)
}

func (m *Manager) pruneLocked() {
	cutoff := m.now().Add(-m.finishedTTL)
	for id, entry := range m.finished {
		if entry.at.Before(cutoff) {
			delete(m.finished, id)
		}
	}
}

func (m *Manager) remove(c *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, c.ID())
	key := draft.Key(c.UserID(), c.Paper().ID)
	if m.byDraft[key] == c.ID() {
		delete(m.byDraft, key)
	}
}
