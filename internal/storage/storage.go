//go:generate go run go.uber.org/mock/mockgen -source=storage.go -destination=../mocks/mock_storage.go -package=mocks
package storage

import (
	"context"

	"github.com/Vasu1712/bookmate-backend/internal/models"
)

// MessageStore persists direct messages. Implementations return errors from
// the internal/errors taxonomy: validation failures before anything is
// written, NotFound and Forbidden from DeleteByID, Transport for backend faults.
type MessageStore interface {
	// Create validates and persists a message, assigning its id and createdAt.
	Create(ctx context.Context, text, sender, receiver string) (*models.Message, error)

	// FindByID returns a single message, or a NotFound error.
	FindByID(ctx context.Context, id string) (*models.Message, error)

	// FindByPair returns the full history of the unordered pair, oldest first.
	FindByPair(ctx context.Context, userA, userB string) ([]models.Message, error)

	// FindAllInvolving returns every message user sent or received, newest first.
	FindAllInvolving(ctx context.Context, user string) ([]models.Message, error)

	// DeleteByID removes the message if requester is its sender and returns
	// the removed record so callers know whom to notify.
	DeleteByID(ctx context.Context, id, requester string) (*models.Message, error)

	Ping(ctx context.Context) error
}

// UserDirectory resolves user ids to display names.
type UserDirectory interface {
	// DisplayNames returns the names of the ids it knows. Unknown ids are
	// absent from the result, which is not an error.
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}
