// Package badgerstore stores messages in an embedded BadgerDB.
//
// Every message is written under three kinds of keys in one transaction:
//
//	msg/{id}                              the record
//	pair/{lo}\x00{hi}\x00{ts}\x00{id}     history of the unordered pair
//	user/{userID}\x00{ts}\x00{id}         one entry per participant
//
// ts is the createdAt UnixNano zero padded to 19 digits, so a prefix scan of a
// pair or user key returns messages in chronological order (reverse scan for
// newest first). The NUL separator keeps one user's prefix from matching
// another id that merely starts with it.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
	"github.com/Vasu1712/bookmate-backend/internal/models"
	"github.com/Vasu1712/bookmate-backend/internal/storage"
)

const sep = "\x00"

// Open opens (or creates) the database directory at path.
func Open(path string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", path, err)
	}
	return db, nil
}

// diskMessage is the stored form of a message.
type diskMessage struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func fromModel(m models.Message) diskMessage {
	return diskMessage{ID: m.ID, Text: m.Text, SenderID: m.Sender.ID, ReceiverID: m.Receiver.ID, CreatedAt: m.CreatedAt}
}

func (d diskMessage) toModel() models.Message {
	return models.Message{
		ID:        d.ID,
		Text:      d.Text,
		Sender:    models.UserRef{ID: d.SenderID},
		Receiver:  models.UserRef{ID: d.ReceiverID},
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// MessageStore implements storage.MessageStore on BadgerDB.
type MessageStore struct {
	db  *badger.DB
	now func() time.Time
	log *slog.Logger
}

func NewMessageStore(db *badger.DB, log *slog.Logger) *MessageStore {
	return &MessageStore{db: db, now: time.Now, log: log.With("component", "badger-store")}
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

	msg := models.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    models.UserRef{ID: sender},
		Receiver:  models.UserRef{ID: receiver},
		CreatedAt: s.now().UTC(),
	}
	value, err := json.Marshal(fromModel(msg))
	if err != nil {
		return nil, apperrors.NewTransportError("failed to encode message", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range indexKeys(msg) {
			if err := txn.Set(key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Error storing message", "sender", sender, "receiver", receiver, "error", err)
		return nil, apperrors.NewTransportError("failed to store message", err)
	}

	s.log.DebugContext(ctx, "Message created", "id", msg.ID, "sender", sender, "receiver", receiver)
	return &msg, nil
}

func (s *MessageStore) FindByID(_ context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		msg = found
		return nil
	})
	if err != nil {
		return nil, mapError(err, "failed to load message")
	}
	return &msg, nil
}

func (s *MessageStore) FindByPair(_ context.Context, userA, userB string) ([]models.Message, error) {
	msgs, err := s.scan(pairPrefix(userA, userB), false)
	if err != nil {
		return nil, mapError(err, "failed to query messages")
	}
	return msgs, nil
}

func (s *MessageStore) FindAllInvolving(_ context.Context, user string) ([]models.Message, error) {
	msgs, err := s.scan(userPrefix(user), true)
	if err != nil {
		return nil, mapError(err, "failed to query messages")
	}
	return msgs, nil
}

// DeleteByID re-reads the record inside the write transaction, so ownership
// is checked against the state being deleted.
func (s *MessageStore) DeleteByID(ctx context.Context, id, requester string) (*models.Message, error) {
	var deleted models.Message
	err := s.db.Update(func(txn *badger.Txn) error {
		msg, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		if msg.Sender.ID != requester {
			return apperrors.NewForbiddenError("You can only delete your own messages")
		}
		for _, key := range indexKeys(msg) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		deleted = msg
		return nil
	})
	if err != nil {
		return nil, mapError(err, "failed to delete message")
	}

	s.log.DebugContext(ctx, "Message deleted", "id", id, "sender", requester)
	return &deleted, nil
}

func (s *MessageStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return apperrors.NewTransportError("badger is closed", badger.ErrDBClosed)
	}
	return nil
}

func (s *MessageStore) scan(prefix []byte, newestFirst bool) ([]models.Message, error) {
	msgs := []models.Message{}
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.Reverse = newestFirst
		it := txn.NewIterator(options)
		defer it.Close()

		seek := prefix
		if newestFirst {
			// Reverse iteration starts at the greatest key <= seek.
			seek = append(append([]byte{}, prefix...), 0xFF)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var d diskMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				return err
			}
			msgs = append(msgs, d.toModel())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func getMessage(txn *badger.Txn, id string) (models.Message, error) {
	item, err := txn.Get(messageKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.Message{}, apperrors.NewNotFoundError("Message not found")
	}
	if err != nil {
		return models.Message{}, err
	}
	var d diskMessage
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &d)
	}); err != nil {
		return models.Message{}, err
	}
	return d.toModel(), nil
}

// mapError passes taxonomy errors through and wraps everything else as a
// transport failure.
func mapError(err error, message string) error {
	if apperrors.Code(err) != apperrors.CodeUnknown {
		return err
	}
	return apperrors.NewTransportError(message, err)
}

func indexKeys(m models.Message) [][]byte {
	ts := fmt.Sprintf("%019d", m.CreatedAt.UnixNano())
	keys := [][]byte{
		messageKey(m.ID),
		append(pairPrefix(m.Sender.ID, m.Receiver.ID), []byte(ts+sep+m.ID)...),
	}
	for _, userID := range m.Participants() {
		keys = append(keys, append(userPrefix(userID), []byte(ts+sep+m.ID)...))
	}
	return keys
}

func messageKey(id string) []byte {
	return []byte("msg/" + id)
}

func pairPrefix(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte("pair/" + a + sep + b + sep)
}

func userPrefix(userID string) []byte {
	return []byte("user/" + userID + sep)
}
