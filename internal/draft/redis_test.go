package draft

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/gcsemock/internal/model"
)

func TestRedisStorageRoundTrip(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	storage := NewRedisStorage(client, time.Hour)
	ctx := context.Background()

	missing, err := storage.LoadDraft(ctx, "u1:paper-1")
	require.NoError(t, err)
	require.Nil(t, missing)

	img := 2
	require.NoError(t, storage.SaveDraft(ctx, model.Draft{
		Key:        "u1:paper-1",
		PaperID:    "paper-1",
		Revision:   4,
		Selections: map[string]string{"q5": "q5b"},
		Answers: map[string]model.StudentAnswer{
			"q1": {QuestionID: "q1", Text: "Hello world", Flagged: true, SelectedImage: &img},
		},
	}))
	require.True(t, mini.Exists("draft:u1:paper-1"))
	require.Equal(t, time.Hour, mini.TTL("draft:u1:paper-1"))

	got, err := storage.LoadDraft(ctx, "u1:paper-1")
	require.NoError(t, err)
	require.Equal(t, int64(4), got.Revision)
	require.Equal(t, "Hello world", got.Answers["q1"].Text)
	require.True(t, got.Answers["q1"].Flagged)
	require.Equal(t, 2, *got.Answers["q1"].SelectedImage)
	require.Equal(t, "q5b", got.Selections["q5"])

	require.NoError(t, storage.DeleteDraft(ctx, "u1:paper-1"))
	gone, err := storage.LoadDraft(ctx, "u1:paper-1")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestRedisStorageBacksAnswerStore(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	storage := NewRedisStorage(client, 0)
	ctx := context.Background()

	s := NewAnswerStore(storage, Key(9, "paper-1"), nil)
	_, err = s.Initialize(ctx, testPaper())
	require.NoError(t, err)
	require.NoError(t, s.SetAnswerText(ctx, "q2", "Language analysis"))

	again := NewAnswerStore(storage, Key(9, "paper-1"), nil)
	restored, err := again.Initialize(ctx, testPaper())
	require.NoError(t, err)
	require.True(t, restored)
	a, _ := again.Answer("q2")
	require.Equal(t, "Language analysis", a.Text)
}

func TestKey(t *testing.T) {
	require.Equal(t, "u12:p", Key(12, "p"))
	require.Equal(t, "anon:p", Key(0, "p"))
}
