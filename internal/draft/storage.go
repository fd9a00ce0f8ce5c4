// Package draft keeps the in-progress answers of an exam sitting and makes
// them durable across restarts of the same sitting.
package draft

import (
	"context"
	"fmt"
	"sync"

	"github.com/pavelanni/gcsemock/internal/model"
)

// Storage persists drafts. LoadDraft returns (nil, nil) when no draft exists.
type Storage interface {
	LoadDraft(ctx context.Context, key string) (*model.Draft, error)
	SaveDraft(ctx context.Context, d model.Draft) error
	DeleteDraft(ctx context.Context, key string) error
}

// Key builds the storage key for a user's draft of a paper.
func Key(userID int64, paperID string) string {
	if userID == 0 {
		return "anon:" + paperID
	}
	return fmt.Sprintf("u%d:%s", userID, paperID)
}

// MemoryStorage is a process-local Storage.
type MemoryStorage struct {
	mu     sync.Mutex
	drafts map[string]model.Draft
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{drafts: make(map[string]model.Draft)}
}

func (m *MemoryStorage) LoadDraft(_ context.Context, key string) (*model.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[key]
	if !ok {
		return nil, nil
	}
	d.Answers = copyAnswers(d.Answers)
	d.Selections = copySelections(d.Selections)
	return &d, nil
}

func (m *MemoryStorage) SaveDraft(_ context.Context, d model.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Answers = copyAnswers(d.Answers)
	d.Selections = copySelections(d.Selections)
	m.drafts[d.Key] = d
	return nil
}

func (m *MemoryStorage) DeleteDraft(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, key)
	return nil
}

func copyAnswers(in map[string]model.StudentAnswer) map[string]model.StudentAnswer {
	out := make(map[string]model.StudentAnswer, len(in))
	for k, v := range in {
		if v.SelectedImage != nil {
			idx := *v.SelectedImage
			v.SelectedImage = &idx
		}
		out[k] = v
	}
	return out
}

func copySelections(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
