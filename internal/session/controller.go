// Package session runs one exam sitting: answers, countdown, optional
// question choices, and the submit/discard transitions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/gcsemock/internal/draft"
	"github.com/pavelanni/gcsemock/internal/model"
	"github.com/pavelanni/gcsemock/internal/results"
)

// State is the major state of a sitting.
type State string

const (
	StateAnswering  State = "answering"
	StateSubmitting State = "submitting"
	StateFinished   State = "finished"
	StateDiscarded  State = "discarded"
)

// Gateway marks a finished sitting.
type Gateway interface {
	MarkExam(ctx context.Context, paper model.ExamPaper, answers []model.StudentAnswer) (*model.ExamResult, error)
	GenerateModelAnswers(ctx context.Context, paper model.ExamPaper) (string, error)
}

// Persister stores a marked result.
type Persister interface {
	Persist(ctx context.Context, paper model.ExamPaper, result model.ExamResult) results.Outcome
}

// Completion is what a successful submission produces.
type Completion struct {
	SessionID string                `json:"session_id"`
	Result    model.ExamResult      `json:"result"`
	Outcome   results.Outcome       `json:"outcome"`
	Forced    bool                  `json:"forced"`
	Submitted []model.StudentAnswer `json:"-"`
}

// Config wires a Controller.
type Config struct {
	Paper     *model.ExamPaper
	UserID    int64
	Storage   draft.Storage
	Gateway   Gateway
	Persister Persister
	Logger    *slog.Logger

	// Ticks replaces the one-second ticker when non-nil.
	Ticks <-chan time.Time
	// OnFinished is called after a successful submission unless the
	// controller was closed first.
	OnFinished func(Completion)
	// SubmitTimeout bounds a submission started by timer expiry.
	SubmitTimeout time.Duration
}

// Controller is the state machine of one sitting. All mutation is serialized
// on mu; gateway and persistence calls run outside it.
type Controller struct {
	id       string
	cfg      Config
	paper    model.ExamPaper
	answers  *draft.AnswerStore
	resolver *Resolver
	timer    *Timer
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	state     State
	index     int
	startedAt time.Time
	restored  bool
	lastErr   error
	closed    bool
}

// New creates a controller. Call Start to begin answering.
func New(cfg Config) (*Controller, error) {
	if cfg.Paper == nil {
		return nil, ErrNoPaper
	}
	if cfg.Gateway == nil {
		return nil, errors.New("session: gateway is required")
	}
	if cfg.Storage == nil {
		cfg.Storage = draft.NewMemoryStorage()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SubmitTimeout == 0 {
		cfg.SubmitTimeout = 5 * time.Minute
	}

	id := uuid.NewString()
	logger := cfg.Logger.With("component", "session", "session_id", id, "paper_id", cfg.Paper.ID)
	c := &Controller{
		id:       id,
		cfg:      cfg,
		paper:    *cfg.Paper,
		answers:  draft.NewAnswerStore(cfg.Storage, draft.Key(cfg.UserID, cfg.Paper.ID), logger),
		resolver: NewResolver(*cfg.Paper),
		logger:   logger,
		now:      time.Now,
	}
	c.timer = NewTimer(c.paper.TimeLimitSeconds(), c.handleExpiry)
	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// UserID returns the owner of the session.
func (c *Controller) UserID() int64 { return c.cfg.UserID }

// Paper returns the paper being sat.
func (c *Controller) Paper() model.ExamPaper { return c.paper }

// Start enters the answering state: the answer store is initialized from any
// saved draft and the countdown begins.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != "" {
		return fmt.Errorf("session %s already started", c.id)
	}

	restored, err := c.answers.Initialize(ctx, c.paper)
	if err != nil {
		return fmt.Errorf("initialize answers: %w", err)
	}
	if restored {
		c.resolver.Restore(c.answers.Snapshot(), c.answers.Selections())
	}
	c.answers.Subscribe(c.recordImplicitChoice)

	c.state = StateAnswering
	c.restored = restored
	c.startedAt = c.now()
	c.timer.Start(c.cfg.Ticks)
	c.logger.Info("session started",
		"user_id", c.cfg.UserID,
		"time_limit_seconds", c.timer.Total(),
		"restored", restored,
	)
	return nil
}

// SetAnswerText records an edit and autosaves.
func (c *Controller) SetAnswerText(ctx context.Context, questionID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	return c.answers.SetAnswerText(ctx, questionID, text)
}

// SetSelectedImage records the chosen image prompt for a question.
func (c *Controller) SetSelectedImage(questionID string, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	q, ok := c.paper.Question(questionID)
	if !ok {
		return fmt.Errorf("%w: %s", draft.ErrUnknownQuestion, questionID)
	}
	if index < 0 || index >= len(q.ImagePrompts) {
		return fmt.Errorf("%w: image %d of question %s", ErrIndexOutOfRange, index, questionID)
	}
	return c.answers.SetSelectedImage(questionID, index)
}

// ToggleFlag flips the review flag of a question.
func (c *Controller) ToggleFlag(ctx context.Context, questionID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return false, err
	}
	return c.answers.ToggleFlag(ctx, questionID)
}

func (c *Controller) editableLocked() error {
	if c.state != StateAnswering {
		return ErrNotAnswering
	}
	if c.timer.State() == TimerExpired {
		return ErrTimeExpired
	}
	return nil
}

// Next moves to the following question, stopping at the last one.
func (c *Controller) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index < len(c.paper.Questions)-1 {
		c.index++
	}
	return c.index
}

// Previous moves to the preceding question, stopping at the first one.
func (c *Controller) Previous() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index > 0 {
		c.index--
	}
	return c.index
}

// JumpTo moves to the question at index.
func (c *Controller) JumpTo(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.paper.Questions) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	c.index = index
	return nil
}

// recordImplicitChoice runs before the edit is saved, so the draft carries the
// choice that typing made.
func (c *Controller) recordImplicitChoice(ev draft.AnswerEdited) {
	c.resolver.HandleAnswerEdited(ev)
	if group, ok := c.resolver.Group(ev.QuestionID); ok {
		if err := c.answers.SetSelection(group, ev.QuestionID); err != nil {
			c.logger.Warn("failed to record choice", "question_id", ev.QuestionID, "error", err)
		}
	}
}

// SelectOptionalSibling makes questionID the choice of its optional group,
// saves the choice with the draft and jumps to it.
func (c *Controller) SelectOptionalSibling(ctx context.Context, questionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	if !c.resolver.Select(questionID) {
		return fmt.Errorf("%w: %s", ErrNotOptional, questionID)
	}
	if i := c.paper.QuestionIndex(questionID); i >= 0 {
		c.index = i
	}
	group, _ := c.resolver.Group(questionID)
	if err := c.answers.SetSelection(group, questionID); err != nil {
		return err
	}
	return c.answers.Flush(ctx)
}

// Submit hands the filtered answers to the gateway. On failure the session
// returns to answering with every answer intact.
func (c *Controller) Submit(ctx context.Context) (*Completion, error) {
	return c.submit(ctx, false)
}

func (c *Controller) handleExpiry() {
	c.logger.Info("time limit reached, submitting")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SubmitTimeout)
		defer cancel()
		_, err := c.submit(ctx, true)
		switch {
		case err == nil:
		case errors.Is(err, ErrSubmissionInFlight), errors.Is(err, ErrNotAnswering):
			c.logger.Debug("expiry submission suppressed", "error", err)
		default:
			c.logger.Error("forced submission failed", "error", err)
		}
	}()
}

func (c *Controller) submit(ctx context.Context, forced bool) (*Completion, error) {
	c.mu.Lock()
	switch c.state {
	case StateAnswering:
	case StateSubmitting:
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	default:
		c.mu.Unlock()
		return nil, ErrNotAnswering
	}
	c.state = StateSubmitting
	c.lastErr = nil
	duration := c.durationLocked()
	submitted := c.resolver.Filter(c.answers.Snapshot())
	c.mu.Unlock()

	c.logger.Info("submitting", "forced", forced, "duration", duration, "answers", len(submitted))

	result, err := c.cfg.Gateway.MarkExam(ctx, c.paper, submitted)
	if err == nil && result == nil {
		err = errors.New("marking returned no result")
	}
	if err != nil {
		c.mu.Lock()
		c.state = StateAnswering
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Warn("marking failed, answers kept", "error", err, "code", ErrorCode(err))
		return nil, err
	}

	modelAnswers, err := c.cfg.Gateway.GenerateModelAnswers(ctx, c.paper)
	if err != nil {
		c.logger.Warn("model answers unavailable", "error", err)
	}

	res := *result
	res.UserID = c.cfg.UserID
	res.PaperID = c.paper.ID
	if res.PaperType == "" {
		res.PaperType = c.paper.Type
	}
	res.Duration = duration
	res.ModelAnswers = modelAnswers
	if res.CreatedAt.IsZero() {
		res.CreatedAt = c.now()
	}

	c.mu.Lock()
	c.state = StateFinished
	c.timer.Stop()
	if err := c.answers.Clear(ctx); err != nil {
		c.logger.Error("failed to clear draft", "error", err)
	}
	c.mu.Unlock()

	completion := Completion{SessionID: c.id, Result: res, Forced: forced, Submitted: submitted}
	if c.cfg.Persister != nil {
		completion.Outcome = c.cfg.Persister.Persist(ctx, c.paper, res)
		if completion.Outcome.ResultID != "" {
			completion.Result.ID = completion.Outcome.ResultID
		}
		completion.Result.PDFURL = completion.Outcome.PDFURL
	}

	c.logger.Info("session finished",
		"score", res.TotalScore,
		"max_score", res.MaxScore,
		"result_id", completion.Result.ID,
		"persistence_failures", len(completion.Outcome.Failures),
	)

	c.mu.Lock()
	notify := !c.closed && c.cfg.OnFinished != nil
	c.mu.Unlock()
	if notify {
		c.cfg.OnFinished(completion)
	}
	return &completion, nil
}

// durationLocked returns the seconds spent so far. Callers hold mu.
func (c *Controller) durationLocked() int {
	if total := c.timer.Total(); total > 0 {
		d := total - c.timer.Remaining()
		if d < 0 {
			d = 0
		}
		if d > total {
			d = total
		}
		return d
	}
	return int(c.now().Sub(c.startedAt).Seconds())
}

// Discard abandons the sitting without marking it.
func (c *Controller) Discard(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAnswering {
		return ErrNotAnswering
	}
	c.state = StateDiscarded
	c.timer.Stop()
	if err := c.answers.Clear(ctx); err != nil {
		return err
	}
	c.logger.Info("session discarded")
	return nil
}

// Close stops the countdown and detaches the finished listener. In-flight
// submissions still run to completion.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.timer.Stop()
}

// State returns the major state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View is a snapshot of what the student sees.
type View struct {
	SessionID        string              `json:"session_id"`
	State            State               `json:"state"`
	PaperID          string              `json:"paper_id"`
	CurrentIndex     int                 `json:"current_index"`
	TotalQuestions   int                 `json:"total_questions"`
	Question         model.Question      `json:"question"`
	Answer           model.StudentAnswer `json:"answer"`
	WordCount        int                 `json:"word_count"`
	Saved            bool                `json:"saved"`
	Flagged          bool                `json:"flagged"`
	Excluded         bool                `json:"excluded"`
	ExcludedIDs      []string            `json:"excluded_ids"`
	Selections       map[string]string   `json:"selections"`
	Answered         int                 `json:"answered"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	TimerState       TimerState          `json:"timer_state"`
	Restored         bool                `json:"restored"`
	LastErrorCode    string              `json:"last_error_code,omitempty"`
	LastError        error               `json:"-"`
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		SessionID:        c.id,
		State:            c.state,
		PaperID:          c.paper.ID,
		CurrentIndex:     c.index,
		TotalQuestions:   len(c.paper.Questions),
		ExcludedIDs:      c.resolver.Excluded(),
		Selections:       c.resolver.Selections(),
		RemainingSeconds: c.timer.Remaining(),
		TimerState:       c.timer.State(),
		Restored:         c.restored,
		LastErrorCode:    ErrorCode(c.lastErr),
		LastError:        c.lastErr,
	}
	for _, a := range c.answers.Snapshot() {
		if strings.TrimSpace(a.Text) != "" {
			v.Answered++
		}
	}
	if len(c.paper.Questions) > 0 {
		q := c.paper.Questions[c.index]
		a, _ := c.answers.Answer(q.ID)
		v.Question = q
		v.Answer = a
		v.WordCount = WordCount(a.Text)
		v.Saved = strings.TrimSpace(a.Text) != ""
		v.Flagged = a.Flagged
		v.Excluded = c.resolver.IsExcluded(q.ID)
	}
	return v
}

// Answers returns every answer in paper order, excluded ones included.
func (c *Controller) Answers() []model.StudentAnswer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Snapshot()
}

// WordCount counts whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
