package models

import "encoding/json"

// Channel event names.
const (
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventDeleteMessage  = "delete_message"
	EventError          = "error"
)

// Frame is the envelope of every text frame exchanged over the channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendPayload is the data of a send_message frame.
type SendPayload struct {
	Text     string `json:"text"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewFrame encodes data as the payload of an event frame.
func NewFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
