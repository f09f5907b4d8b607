package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
	"github.com/Vasu1712/bookmate-backend/internal/models"
	"github.com/Vasu1712/bookmate-backend/internal/storage"
)

const messageColumns = `id, text, sender_id, receiver_id, created_at`

type messageRow struct {
	ID         string    `db:"id"`
	Text       string    `db:"text"`
	SenderID   string    `db:"sender_id"`
	ReceiverID string    `db:"receiver_id"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r messageRow) toModel() models.Message {
	return models.Message{
		ID:        r.ID,
		Text:      r.Text,
		Sender:    models.UserRef{ID: r.SenderID},
		Receiver:  models.UserRef{ID: r.ReceiverID},
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// MessageStore implements storage.MessageStore on PostgreSQL.
type MessageStore struct {
	db  *sqlx.DB
	now func() time.Time
	log *slog.Logger
}

func NewMessageStore(db *sqlx.DB, log *slog.Logger) *MessageStore {
	return &MessageStore{db: db, now: time.Now, log: log.With("component", "postgres-store")}
}

// WithClock replaces the time source used for createdAt.
func (s *MessageStore) WithClock(now func() time.Time) *MessageStore {
	s.now = now
	return s
}

func (s *MessageStore) Create(ctx context.Context, text, sender, receiver string) (*models.Message, error) {
	if err := storage.ValidateMessage(text, sender, receiver); err != nil {
		return nil, err
	}

	var row messageRow
	query := `
		INSERT INTO messages (id, text, sender_id, receiver_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + messageColumns
	// Postgres keeps microseconds; truncate so the returned value matches later reads.
	createdAt := s.now().UTC().Truncate(time.Microsecond)
	err := s.db.QueryRowxContext(ctx, query, uuid.NewString(), text, sender, receiver, createdAt).StructScan(&row)
	if err != nil {
		s.log.ErrorContext(ctx, "Error inserting message", "sender", sender, "receiver", receiver, "error", err)
		return nil, apperrors.NewTransportError("failed to insert message", err)
	}

	msg := row.toModel()
	s.log.DebugContext(ctx, "Message created", "id", msg.ID, "sender", sender, "receiver", receiver)
	return &msg, nil
}

func (s *MessageStore) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var row messageRow
	err := s.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Message not found")
	}
	if err != nil {
		return nil, apperrors.NewTransportError("failed to load message", err)
	}
	msg := row.toModel()
	return &msg, nil
}

func (s *MessageStore) FindByPair(ctx context.Context, userA, userB string) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC
	`
	return s.selectMessages(ctx, query, userA, userB)
}

func (s *MessageStore) FindAllInvolving(ctx context.Context, user string) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return s.selectMessages(ctx, query, user)
}

// DeleteByID locks the row, checks ownership against the stored sender and
// removes it in one transaction.
func (s *MessageStore) DeleteByID(ctx context.Context, id, requester string) (*models.Message, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewTransportError("failed to begin transaction", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.WarnContext(ctx, "Error rolling back transaction", "error", rbErr)
		}
	}()

	var row messageRow
	err = tx.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Message not found")
	}
	if err != nil {
		return nil, apperrors.NewTransportError("failed to load message", err)
	}
	if row.SenderID != requester {
		return nil, apperrors.NewForbiddenError("You can only delete your own messages")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id); err != nil {
		return nil, apperrors.NewTransportError("failed to delete message", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewTransportError("failed to commit delete", err)
	}

	s.log.DebugContext(ctx, "Message deleted", "id", id, "sender", requester)
	msg := row.toModel()
	return &msg, nil
}

func (s *MessageStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewTransportError("database unreachable", err)
	}
	return nil
}

func (s *MessageStore) selectMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.log.ErrorContext(ctx, "Error querying messages", "error", err)
		return nil, apperrors.NewTransportError("failed to query messages", err)
	}
	msgs := make([]models.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.toModel())
	}
	return msgs, nil
}
