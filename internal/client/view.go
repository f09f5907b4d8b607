package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
	"github.com/Vasu1712/bookmate-backend/internal/models"
)

type State int

const (
	Unselected State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unselected"
	}
}

// Historian loads the history of a pair.
type Historian interface {
	History(ctx context.Context, otherUserID string) ([]models.Message, error)
}

// Outbox sends on the realtime channel.
type Outbox interface {
	Send(p models.SendPayload) error
	Close() error
}

// View is the state of one open conversation. Pushes arriving while the
// history loads are held back and merged once it is in.
type View struct {
	userID  string
	history Historian
	outbox  Outbox
	log     *slog.Logger

	mu          sync.Mutex
	state       State
	counterpart string
	generation  uint64
	messages    []models.Message
	pending     []models.Message
	deleted     map[string]struct{}
	onChange    func()
	onError     func(string)
}

func NewView(userID string, history Historian, outbox Outbox, log *slog.Logger) *View {
	return &View{
		userID:   userID,
		history:  history,
		outbox:   outbox,
		log:      log.With("component", "view", "user", userID),
		onChange: func() {},
		onError:  func(string) {},
	}
}

// OnChange registers fn to run after every visible change.
func (v *View) OnChange(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = fn
}

// OnError registers fn to receive error events from the channel.
func (v *View) OnError(fn func(string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onError = fn
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *View) Counterpart() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.counterpart
}

// Select opens the conversation with counterpart and loads its history.
// Selecting the open counterpart again closes it. A load overtaken by a
// later selection is discarded.
func (v *View) Select(ctx context.Context, counterpart string) error {
	v.mu.Lock()
	if v.state != Unselected && v.counterpart == counterpart {
		v.reset()
		notify := v.onChange
		v.mu.Unlock()
		notify()
		return nil
	}
	v.reset()
	v.state = Loading
	v.counterpart = counterpart
	v.deleted = make(map[string]struct{})
	gen := v.generation
	notify := v.onChange
	v.mu.Unlock()
	notify()

	msgs, err := v.history.History(ctx, counterpart)

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		v.log.Debug("Discarded stale history", "counterpart", counterpart)
		return nil
	}
	if err != nil {
		v.reset()
		notify = v.onChange
		v.mu.Unlock()
		notify()
		return err
	}
	v.messages = v.merge(msgs)
	v.state = Ready
	notify = v.onChange
	v.mu.Unlock()
	notify()
	return nil
}

// Deselect returns the view to Unselected.
func (v *View) Deselect() {
	v.mu.Lock()
	if v.state == Unselected {
		v.mu.Unlock()
		return
	}
	v.reset()
	notify := v.onChange
	v.mu.Unlock()
	notify()
}

// Close deselects and closes the channel.
func (v *View) Close() error {
	v.Deselect()
	return v.outbox.Close()
}

// Send submits text to the open counterpart. The message shows up once the
// server echoes it back as receive_message.
func (v *View) Send(text string) error {
	v.mu.Lock()
	state, counterpart := v.state, v.counterpart
	v.mu.Unlock()
	if state == Unselected {
		return apperrors.NewValidationError("no conversation is open")
	}
	return v.outbox.Send(models.SendPayload{Text: text, Sender: v.userID, Receiver: counterpart})
}

// HandleFrame applies a server push.
func (v *View) HandleFrame(frame models.Frame) {
	switch frame.Event {
	case models.EventReceiveMessage:
		var msg models.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			v.log.Warn("Malformed receive_message", "error", err)
			return
		}
		v.HandleReceive(msg)
	case models.EventDeleteMessage:
		var id string
		if err := json.Unmarshal(frame.Data, &id); err != nil {
			v.log.Warn("Malformed delete_message", "error", err)
			return
		}
		v.HandleDelete(id)
	case models.EventError:
		var payload models.ErrorPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			v.log.Warn("Malformed error event", "error", err)
			return
		}
		v.mu.Lock()
		report := v.onError
		v.mu.Unlock()
		report(payload.Message)
	default:
		v.log.Debug("Ignored event", "event", frame.Event)
	}
}

// HandleReceive appends msg if it belongs to the open conversation.
func (v *View) HandleReceive(msg models.Message) {
	v.mu.Lock()
	if v.state == Unselected || !msg.Involves(v.userID, v.counterpart) {
		v.mu.Unlock()
		return
	}
	if v.state == Loading {
		v.pending = append(v.pending, msg)
		v.mu.Unlock()
		return
	}
	if v.contains(msg.ID) {
		v.mu.Unlock()
		return
	}
	v.messages = append(v.messages, msg)
	notify := v.onChange
	v.mu.Unlock()
	notify()
}

// HandleDelete drops id from the history. Unknown ids are ignored.
func (v *View) HandleDelete(id string) {
	v.mu.Lock()
	switch v.state {
	case Loading:
		v.deleted[id] = struct{}{}
		v.mu.Unlock()
		return
	case Ready:
		before := len(v.messages)
		v.messages = lo.Reject(v.messages, func(m models.Message, _ int) bool { return m.ID == id })
		if len(v.messages) == before {
			v.mu.Unlock()
			return
		}
		notify := v.onChange
		v.mu.Unlock()
		notify()
	default:
		v.mu.Unlock()
	}
}

// Messages returns a copy of the loaded history in chronological order.
func (v *View) Messages() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.messages)
}

// Groups returns the history grouped by calendar day in loc.
func (v *View) Groups(loc *time.Location) []Group[string, models.Message] {
	return GroupByDay(v.Messages(), loc)
}

func (v *View) merge(loaded []models.Message) []models.Message {
	seen := make(map[string]struct{}, len(loaded))
	out := make([]models.Message, 0, len(loaded)+len(v.pending))
	for _, m := range slices.Concat(loaded, v.pending) {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		if _, gone := v.deleted[m.ID]; gone {
			continue
		}
		out = append(out, m)
	}
	v.pending = nil
	v.deleted = nil
	return out
}

func (v *View) contains(id string) bool {
	return slices.ContainsFunc(v.messages, func(m models.Message) bool { return m.ID == id })
}

// reset clears the open conversation. Callers hold mu.
func (v *View) reset() {
	v.generation++
	v.state = Unselected
	v.counterpart = ""
	v.messages = nil
	v.pending = nil
	v.deleted = nil
}
