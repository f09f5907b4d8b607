package memory

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/bookmate-backend/internal/storage"
	"github.com/Vasu1712/bookmate-backend/internal/storage/storagetest"
)

func TestMessageStore(t *testing.T) {
	storagetest.RunMessageStoreSuite(t, func(t *testing.T, now func() time.Time) storage.MessageStore {
		return NewMessageStore(slog.Default()).WithClock(now)
	})
}

func TestMessageStore_EqualTimestampsKeepInsertionOrder(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewMessageStore(slog.Default()).WithClock(func() time.Time { return at })
	ctx := context.Background()

	first, err := store.Create(ctx, "first", "u1", "u2")
	req.NoError(err)
	second, err := store.Create(ctx, "second", "u2", "u1")
	req.NoError(err)

	history, err := store.FindByPair(ctx, "u1", "u2")
	req.NoError(err)
	req.Equal(first.ID, history[0].ID)
	req.Equal(second.ID, history[1].ID)

	recent, err := store.FindAllInvolving(ctx, "u1")
	req.NoError(err)
	req.Equal(second.ID, recent[0].ID)
}

func TestUserDirectory_SkipsUnknownIDs(t *testing.T) {
	req := require.New(t)
	directory := NewUserDirectory(map[string]string{"u1": "Ada"})
	directory.Put("u2", "Grace")

	names, err := directory.DisplayNames(context.Background(), []string{"u1", "u2", "u3"})
	req.NoError(err)
	req.Equal(map[string]string{"u1": "Ada", "u2": "Grace"}, names)
}
