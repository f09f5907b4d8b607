// Package storagetest holds the behavior every MessageStore backend must share.
package storagetest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
	"github.com/Vasu1712/bookmate-backend/internal/models"
	"github.com/Vasu1712/bookmate-backend/internal/storage"
)

// Factory builds an empty store whose createdAt values come from now.
type Factory func(t *testing.T, now func() time.Time) storage.MessageStore

// StepClock returns a clock that advances one second on every call.
func StepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current := next
		next = next.Add(time.Second)
		return current
	}
}

// RunMessageStoreSuite runs the shared MessageStore scenarios against factory.
func RunMessageStoreSuite(t *testing.T, factory Factory) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("create assigns id and createdAt", func(t *testing.T) {
		req := require.New(t)
		store := factory(t, StepClock(start))

		msg, err := store.Create(context.Background(), "hi", "u1", "u2")
		req.NoError(err)
		req.NotEmpty(msg.ID)
		req.Equal("hi", msg.Text)
		req.Equal("u1", msg.Sender.ID)
		req.Equal("u2", msg.Receiver.ID)
		req.True(msg.CreatedAt.Equal(start))
	})

	t.Run("create rejects invalid text without persisting", func(t *testing.T) {
		req := require.New(t)
		store := factory(t, StepClock(start))
		ctx := context.Background()

		_, err := store.Create(ctx, "", "u1", "u2")
		req.ErrorIs(err, apperrors.ErrValidation)
		_, err = store.Create(ctx, strings.Repeat("x", 600), "u1", "u2")
		req.ErrorIs(err, apperrors.ErrValidation)

		msgs, err := store.FindAllInvolving(ctx, "u1")
		req.NoError(err)
		req.Empty(msgs)
	})

	t.Run("find by pair covers both directions oldest first", func(t *testing.T) {
		req := require.New(t)
		store := factory(t, StepClock(start))
		ctx := context.Background()

		first := mustCreate(t, store, "one", "u1", "u2")
		second := mustCreate(t, store, "two", "u2", "u1")
		mustCreate(t, store, "elsewhere", "u1", "u3")
		third := mustCreate(t, store, "three", "u1", "u2")

		forward, err := store.FindByPair(ctx, "u1", "u2")
		req.NoError(err)
		req.Equal([]string{first.ID, second.ID, third.ID}, ids(forward))

		backward, err := store.FindByPair(ctx, "u2", "u1")
		req.NoError(err)
		req.Equal(ids(forward), ids(backward))

		none, err := store.FindByPair(ctx, "u2", "u3")
		req.NoError(err)
		req.Empty(none)
	})

	t.Run("round trip appears exactly once", func(t *testing.T) {
		req := require.New(t)
		store := factory(t, StepClock(start))

		created := mustCreate(t, store, "a book about whales", "u1", "u2")

		history, err := store.FindByPair(context.Background(), "u1", "u2")
		req.NoError(err)
		req.Len(history, 1)
		req.Equal(created.ID, history[0].ID)
		req.Equal("a book about whales", history[0].Text)
		req.True(created.CreatedAt.Equal(history[0].CreatedAt))
	})

	t.Run("find all involving returns only the user's messages newest first", func(t *testing.T) {
		req := require.New(t)
		store := factory(t, StepClock(start))
		ctx := context.Background()

		a := mustCreate(t, store, "a", "u1", "u2")
		mustCreate(t, store, "b", "u2", "u3")
		c := mustCreate(t, store, "c", "u3", "u1")
		d := mustCreate(t, store, "d", "u1", "u1")

		msgs, err := store.FindAllInvolving(ctx, "u1")
		req.NoError(err)
		req.Equal([]string{d.ID, c.ID, a.ID}, ids(msgs))
		for _, m := range msgs {
			req.True(m.Sender.ID == "u1" || m.Receiver.ID == "u1")
		}

		empty, err := store.FindAllInvolving(ctx, "u4")
		req.NoError(err)
		req.Empty(empty)
	})

	t.Run("find by id of unknown message is not found", func(t *testing.T) {
		store := factory(t, StepClock(start))

		_, err := store.FindByID(context.Background(), "missing")
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("only the sender may delete", func(t *testing.T) {
		req := require.New(t)
		store := factory(t, StepClock(start))
		ctx := context.Background()
		msg := mustCreate(t, store, "hi", "u1", "u2")

		// When the receiver tries to delete, the record remains
		_, err := store.DeleteByID(ctx, msg.ID, "u2")
		req.ErrorIs(err, apperrors.ErrForbidden)
		kept, err := store.FindByID(ctx, msg.ID)
		req.NoError(err)
		req.Equal("hi", kept.Text)

		// When the sender deletes, it is gone from every read path
		deleted, err := store.DeleteByID(ctx, msg.ID, "u1")
		req.NoError(err)
		req.Equal(msg.ID, deleted.ID)
		req.Equal("u2", deleted.Receiver.ID)

		_, err = store.FindByID(ctx, msg.ID)
		req.ErrorIs(err, apperrors.ErrNotFound)
		history, err := store.FindByPair(ctx, "u1", "u2")
		req.NoError(err)
		req.Empty(history)
		involving, err := store.FindAllInvolving(ctx, "u2")
		req.NoError(err)
		req.Empty(involving)
	})

	t.Run("delete of unknown message is not found", func(t *testing.T) {
		store := factory(t, StepClock(start))

		_, err := store.DeleteByID(context.Background(), "missing", "u1")
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		store := factory(t, StepClock(start))
		require.NoError(t, store.Ping(context.Background()))
	})
}

func mustCreate(t *testing.T, store storage.MessageStore, text, sender, receiver string) *models.Message {
	t.Helper()
	msg, err := store.Create(context.Background(), text, sender, receiver)
	require.NoError(t, err)
	return msg
}

func ids(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
