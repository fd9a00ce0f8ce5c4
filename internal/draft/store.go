package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/gcsemock/internal/model"
)

// ErrUnknownQuestion is returned for edits to a question that is not on the paper.
var ErrUnknownQuestion = errors.New("unknown question")

// AnswerEdited is published after every text edit.
type AnswerEdited struct {
	QuestionID string
	Text       string
	At         time.Time
}

// AnswerStore holds the current answer for every question of a paper and
// writes the whole set to Storage after each mutation. It is not safe for
// concurrent use; the owning session serializes access.
type AnswerStore struct {
	storage Storage
	key     string
	paperID string
	order   []string
	answers map[string]model.StudentAnswer
	chosen  map[string]string // optional group -> question ID
	rev     int64

	listeners []func(AnswerEdited)
	now       func() time.Time
	logger    *slog.Logger
}

// NewAnswerStore creates a store that persists under key.
func NewAnswerStore(storage Storage, key string, logger *slog.Logger) *AnswerStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerStore{
		storage: storage,
		key:     key,
		answers: make(map[string]model.StudentAnswer),
		chosen:  make(map[string]string),
		now:     time.Now,
		logger:  logger.With("component", "answer_store", "draft", key),
	}
}

// Subscribe registers fn to receive AnswerEdited events.
func (s *AnswerStore) Subscribe(fn func(AnswerEdited)) {
	s.listeners = append(s.listeners, fn)
}

// Initialize loads the saved draft for the paper verbatim if one exists,
// otherwise it creates one empty answer per question. It reports whether a
// draft was restored.
func (s *AnswerStore) Initialize(ctx context.Context, paper model.ExamPaper) (bool, error) {
	s.paperID = paper.ID
	s.order = s.order[:0]
	s.answers = make(map[string]model.StudentAnswer, len(paper.Questions))
	s.chosen = make(map[string]string)
	s.rev = 0

	saved, err := s.storage.LoadDraft(ctx, s.key)
	if err != nil {
		return false, fmt.Errorf("load draft: %w", err)
	}
	if saved != nil && saved.PaperID != paper.ID {
		s.logger.Warn("ignoring draft saved for a different paper", "saved_paper", saved.PaperID)
		saved = nil
	}

	now := s.now()
	for _, q := range paper.Questions {
		s.order = append(s.order, q.ID)
		if saved != nil {
			if a, ok := saved.Answers[q.ID]; ok {
				a.QuestionID = q.ID
				s.answers[q.ID] = a
				continue
			}
		}
		s.answers[q.ID] = model.StudentAnswer{QuestionID: q.ID, UpdatedAt: now}
	}

	if saved != nil {
		for group, id := range saved.Selections {
			if _, ok := s.answers[id]; ok {
				s.chosen[group] = id
			}
		}
		s.rev = saved.Revision
		s.logger.Info("restored draft", "revision", saved.Revision, "saved_at", saved.SavedAt)
		return true, nil
	}
	return false, nil
}

// SetAnswerText overwrites the text of an answer and persists the draft.
func (s *AnswerStore) SetAnswerText(ctx context.Context, questionID, text string) error {
	a, ok := s.answers[questionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	a.Text = text
	a.UpdatedAt = s.now()
	s.answers[questionID] = a

	ev := AnswerEdited{QuestionID: questionID, Text: text, At: a.UpdatedAt}
	for _, fn := range s.listeners {
		fn(ev)
	}
	return s.persist(ctx)
}

// SetSelectedImage records which image prompt the student chose. The choice
// is kept in memory and written with the next persisted change or Flush.
func (s *AnswerStore) SetSelectedImage(questionID string, index int) error {
	a, ok := s.answers[questionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	idx := index
	a.SelectedImage = &idx
	s.answers[questionID] = a
	return nil
}

// SetSelection records the chosen member of an optional group. Like image
// choices it is written with the next persisted change or Flush.
func (s *AnswerStore) SetSelection(group, questionID string) error {
	if _, ok := s.answers[questionID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	s.chosen[group] = questionID
	return nil
}

// Selections returns the recorded optional-group choices.
func (s *AnswerStore) Selections() map[string]string {
	return copySelections(s.chosen)
}

// ToggleFlag flips the flagged marker of an answer, persists, and returns the new value.
func (s *AnswerStore) ToggleFlag(ctx context.Context, questionID string) (bool, error) {
	a, ok := s.answers[questionID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	a.Flagged = !a.Flagged
	s.answers[questionID] = a
	return a.Flagged, s.persist(ctx)
}

// Flush writes the current state even if nothing changed since the last write.
func (s *AnswerStore) Flush(ctx context.Context) error {
	return s.persist(ctx)
}

// Clear removes the persisted draft. In-memory answers are kept so a caller
// can still read what was submitted.
func (s *AnswerStore) Clear(ctx context.Context) error {
	if err := s.storage.DeleteDraft(ctx, s.key); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

// Answer returns the current answer for a question.
func (s *AnswerStore) Answer(questionID string) (model.StudentAnswer, bool) {
	a, ok := s.answers[questionID]
	return a, ok
}

// Snapshot returns all answers in paper order.
func (s *AnswerStore) Snapshot() []model.StudentAnswer {
	out := make([]model.StudentAnswer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.answers[id])
	}
	return out
}

// Revision returns the revision of the last persisted draft.
func (s *AnswerStore) Revision() int64 {
	return s.rev
}

func (s *AnswerStore) persist(ctx context.Context) error {
	d := model.Draft{
		Key:      s.key,
		PaperID:  s.paperID,
		Answers:    copyAnswers(s.answers),
		Selections: copySelections(s.chosen),
		Revision:   s.rev + 1,
		SavedAt:    s.now(),
	}
	if err := s.storage.SaveDraft(ctx, d); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	s.rev = d.Revision
	return nil
}
