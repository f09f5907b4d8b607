package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
	"github.com/Vasu1712/bookmate-backend/internal/models"
	"github.com/Vasu1712/bookmate-backend/internal/storage"
)

type record struct {
	seq uint64
	msg models.Message
}

// MessageStore keeps messages in process memory.
type MessageStore struct {
	mu        sync.RWMutex
	messages  map[string]*record  // messageID -> record
	userIndex map[string][]string // userID -> []messageID, in insertion order
	nextSeq   uint64
	now       func() time.Time
	log       *slog.Logger
}

func NewMessageStore(log *slog.Logger) *MessageStore {
	return &MessageStore{
		messages:  make(map[string]*record),
		userIndex: make(map[string][]string),
		now:       time.Now,
		log:       log.With("component", "memory-store"),
	}
}

// WithClock replaces the time source used for createdAt.
func (s *MessageStore) WithClock(now func() time.Time) *MessageStore {
	s.now = now
	return s
}

func (s *MessageStore) Create(_ context.Context, text, sender, receiver string) (*models.Message, error) {
	if err := storage.ValidateMessage(text, sender, receiver); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    models.UserRef{ID: sender},
		Receiver:  models.UserRef{ID: receiver},
		CreatedAt: s.now().UTC(),
	}
	s.nextSeq++
	s.messages[msg.ID] = &record{seq: s.nextSeq, msg: msg}
	for _, userID := range msg.Participants() {
		s.userIndex[userID] = append(s.userIndex[userID], msg.ID)
	}

	s.log.Debug("Message created", "id", msg.ID, "sender", sender, "receiver", receiver)
	return &msg, nil
}

func (s *MessageStore) FindByID(_ context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.messages[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Message not found")
	}
	msg := rec.msg
	return &msg, nil
}

func (s *MessageStore) FindByPair(_ context.Context, userA, userB string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []*record
	for _, id := range s.userIndex[userA] {
		rec := s.messages[id]
		if rec.msg.Involves(userA, userB) {
			recs = append(recs, rec)
		}
	}
	slices.SortStableFunc(recs, compareRecords)
	return toMessages(recs), nil
}

func (s *MessageStore) FindAllInvolving(_ context.Context, user string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*record, 0, len(s.userIndex[user]))
	for _, id := range s.userIndex[user] {
		recs = append(recs, s.messages[id])
	}
	slices.SortStableFunc(recs, func(a, b *record) int { return compareRecords(b, a) })
	return toMessages(recs), nil
}

func (s *MessageStore) DeleteByID(_ context.Context, id, requester string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.messages[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Message not found")
	}
	if rec.msg.Sender.ID != requester {
		return nil, apperrors.NewForbiddenError("You can only delete your own messages")
	}

	delete(s.messages, id)
	for _, userID := range rec.msg.Participants() {
		s.userIndex[userID] = slices.DeleteFunc(s.userIndex[userID], func(mid string) bool { return mid == id })
		if len(s.userIndex[userID]) == 0 {
			delete(s.userIndex, userID)
		}
	}

	s.log.Debug("Message deleted", "id", id, "sender", requester)
	msg := rec.msg
	return &msg, nil
}

func (s *MessageStore) Ping(context.Context) error {
	return nil
}

// compareRecords orders by createdAt, then by insertion order for equal timestamps.
func compareRecords(a, b *record) int {
	if c := a.msg.CreatedAt.Compare(b.msg.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}

func toMessages(recs []*record) []models.Message {
	msgs := make([]models.Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, rec.msg)
	}
	return msgs
}
