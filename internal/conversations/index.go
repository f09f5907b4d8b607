package conversations

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/Vasu1712/bookmate-backend/internal/models"
	"github.com/Vasu1712/bookmate-backend/internal/storage"
)

// Index derives a user's conversation list from the message log.
type Index struct {
	store     storage.MessageStore
	directory storage.UserDirectory
	log       *slog.Logger
}

func NewIndex(store storage.MessageStore, directory storage.UserDirectory, log *slog.Logger) *Index {
	return &Index{store: store, directory: directory, log: log.With("component", "conversations")}
}

// ListConversations returns the distinct counterparts of userID, most
// recently active first. Counterparts the directory no longer knows are left
// out.
func (i *Index) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	msgs, err := i.store.FindAllInvolving(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return []models.Conversation{}, nil
	}

	// FindAllInvolving is newest first and Uniq keeps first occurrences,
	// so the order is by last activity.
	counterparts := lo.Uniq(lo.Map(msgs, func(m models.Message, _ int) string {
		return m.Counterpart(userID)
	}))

	names, err := i.directory.DisplayNames(ctx, counterparts)
	if err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(counterparts))
	for _, id := range counterparts {
		name, ok := names[id]
		if !ok {
			i.log.DebugContext(ctx, "Skipping unknown counterpart", "user", userID, "counterpart", id)
			continue
		}
		conversations = append(conversations, models.Conversation{ID: id, UserName: name})
	}
	return conversations, nil
}
