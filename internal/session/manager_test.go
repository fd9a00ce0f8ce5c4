package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pavelanni/gcsemock/internal/draft"
)

func TestManagerResumesLiveSitting(t *testing.T) {
	m := NewManager(draft.NewMemoryStorage(), &fakeGateway{}, &fakePersister{}, nil)
	t.Cleanup(m.Shutdown)
	ctx := context.Background()

	first, err := m.Start(ctx, choicePaper(), 7)
	require.NoError(t, err)
	require.NoError(t, first.SetAnswerText(ctx, "q1", "kept"))

	again, err := m.Start(ctx, choicePaper(), 7)
	require.NoError(t, err)
	require.Equal(t, first.ID(), again.ID())

	other, err := m.Start(ctx, choicePaper(), 8)
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), other.ID())
	require.Equal(t, 2, m.Len())
}

func TestManagerOwnership(t *testing.T) {
	m := NewManager(draft.NewMemoryStorage(), &fakeGateway{}, &fakePersister{}, nil)
	t.Cleanup(m.Shutdown)

	c, err := m.Start(context.Background(), choicePaper(), 7)
	require.NoError(t, err)

	got, err := m.Get(c.ID(), 7)
	require.NoError(t, err)
	require.Same(t, c, got)

	_, err = m.Get(c.ID(), 8)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = m.Get("missing", 7)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerRecordsCompletion(t *testing.T) {
	m := NewManager(draft.NewMemoryStorage(), &fakeGateway{}, &fakePersister{}, nil)
	t.Cleanup(m.Shutdown)
	ctx := context.Background()

	c, err := m.Start(ctx, choicePaper(), 7)
	require.NoError(t, err)
	_, err = c.Submit(ctx)
	require.NoError(t, err)

	require.Equal(t, 0, m.Len())
	done, err := m.Completion(c.ID(), 7)
	require.NoError(t, err)
	require.Equal(t, "saved-1", done.Result.ID)
	_, err = m.Completion(c.ID(), 9)
	require.ErrorIs(t, err, ErrForbidden)

	// A finished sitting is never resumed.
	next, err := m.Start(ctx, choicePaper(), 7)
	require.NoError(t, err)
	require.NotEqual(t, c.ID(), next.ID())
	require.False(t, next.View().Restored)
}

func TestManagerDiscard(t *testing.T) {
	storage := draft.NewMemoryStorage()
	m := NewManager(storage, &fakeGateway{}, &fakePersister{}, nil)
	t.Cleanup(m.Shutdown)
	ctx := context.Background()

	c, err := m.Start(ctx, choicePaper(), 7)
	require.NoError(t, err)
	require.NoError(t, c.SetAnswerText(ctx, "q2", "gone soon"))

	require.ErrorIs(t, m.Discard(ctx, c.ID(), 8), ErrForbidden)
	require.NoError(t, m.Discard(ctx, c.ID(), 7))
	require.Equal(t, 0, m.Len())

	saved, err := storage.LoadDraft(ctx, draft.Key(7, "paper-choice"))
	require.NoError(t, err)
	require.Nil(t, saved)
}

func TestManagerReopenDuringMarkingReturnsSameSitting(t *testing.T) {
	gw := &fakeGateway{entered: make(chan struct{}, 1), release: make(chan struct{})}
	m := NewManager(draft.NewMemoryStorage(), gw, &fakePersister{}, nil)
	t.Cleanup(m.Shutdown)
	ctx := context.Background()

	c, err := m.Start(ctx, choicePaper(), 7)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Submit(ctx)
		errc <- err
	}()
	<-gw.entered
	require.Equal(t, StateSubmitting, c.State())

	again, err := m.Start(ctx, choicePaper(), 7)
	require.NoError(t, err)
	require.Same(t, c, again)
	require.Equal(t, 1, m.Len())

	close(gw.release)
	require.NoError(t, <-errc)
	require.Equal(t, int32(1), gw.calls.Load())
	require.Equal(t, 0, m.Len())
}

func TestManagerConcurrentStartsShareOneSitting(t *testing.T) {
	m := NewManager(draft.NewMemoryStorage(), &fakeGateway{}, &fakePersister{}, nil)
	t.Cleanup(m.Shutdown)

	const n = 8
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			c, err := m.Start(context.Background(), choicePaper(), 7)
			if err != nil {
				ids <- ""
				return
			}
			ids <- c.ID()
		}()
	}
	first := <-ids
	require.NotEmpty(t, first)
	for i := 1; i < n; i++ {
		require.Equal(t, first, <-ids)
	}
	require.Equal(t, 1, m.Len())
}

func TestManagerForgetsOldCompletions(t *testing.T) {
	m := NewManager(draft.NewMemoryStorage(), &fakeGateway{}, &fakePersister{}, nil)
	t.Cleanup(m.Shutdown)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	m.SetFinishedTTL(30 * time.Minute)
	ctx := context.Background()

	old, err := m.Start(ctx, choicePaper(), 7)
	require.NoError(t, err)
	_, err = old.Submit(ctx)
	require.NoError(t, err)
	_, err = m.Completion(old.ID(), 7)
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	fresh, err := m.Start(ctx, choicePaper(), 8)
	require.NoError(t, err)
	_, err = fresh.Submit(ctx)
	require.NoError(t, err)

	_, err = m.Completion(old.ID(), 7)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Completion(fresh.ID(), 8)
	require.NoError(t, err)

	m.mu.Lock()
	require.Len(t, m.finished, 1)
	m.mu.Unlock()
}
