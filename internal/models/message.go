package models

import "time"

// MaxTextLength is the longest message text, in characters, the store accepts.
const MaxTextLength = 500

// UserRef is a participant reference. UserName is only filled in once the
// message has been enriched through the user directory.
type UserRef struct {
	ID       string `json:"_id"`
	UserName string `json:"userName,omitempty"`
}

// Message is a direct message between exactly two users.
type Message struct {
	ID        string    `json:"_id"`
	Text      string    `json:"text"`
	Sender    UserRef   `json:"sender"`
	Receiver  UserRef   `json:"receiver"`
	CreatedAt time.Time `json:"createdAt"`
}

// Involves reports whether the message belongs to the unordered pair {a, b}.
func (m Message) Involves(a, b string) bool {
	return (m.Sender.ID == a && m.Receiver.ID == b) ||
		(m.Sender.ID == b && m.Receiver.ID == a)
}

// Counterpart returns the participant that is not userID.
func (m Message) Counterpart(userID string) string {
	if m.Sender.ID == userID {
		return m.Receiver.ID
	}
	return m.Sender.ID
}

// Participants returns the sender and receiver ids, once each.
func (m Message) Participants() []string {
	if m.Sender.ID == m.Receiver.ID {
		return []string{m.Sender.ID}
	}
	return []string{m.Sender.ID, m.Receiver.ID}
}

// Conversation is a counterpart the user has exchanged messages with.
// It is derived from the message log and never persisted.
type Conversation struct {
	ID       string `json:"_id"`
	UserName string `json:"userName"`
}
