package ws

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
	"github.com/Vasu1712/bookmate-backend/internal/models"
	"github.com/Vasu1712/bookmate-backend/internal/storage"
)

// ErrHubStopped is returned to callers that reach the hub after Run returned.
var ErrHubStopped = errors.New("hub stopped")

type inbound struct {
	session *Session
	payload models.SendPayload
}

type deletion struct {
	msg  models.Message
	done chan struct{}
}

// Hub owns the channel sessions of this process. A single loop handles
// registration, send_message events and delete notifications, so pushes for
// a pair reach every session in the order the loop processed them.
type Hub struct {
	register   chan *Session
	unregister chan *Session
	inbound    chan inbound
	deleted    chan deletion
	done       chan struct{}

	registry  Registry
	store     storage.MessageStore
	directory storage.UserDirectory
	backplane Backplane
	nodeID    string
	log       *slog.Logger
}

func NewHub(registry Registry, store storage.MessageStore, directory storage.UserDirectory, log *slog.Logger) *Hub {
	nodeID := uuid.NewString()
	return &Hub{
		register:   make(chan *Session),
		unregister: make(chan *Session),
		inbound:    make(chan inbound),
		deleted:    make(chan deletion),
		done:       make(chan struct{}),
		registry:   registry,
		store:      store,
		directory:  directory,
		nodeID:     nodeID,
		log:        log.With("component", "hub", "node", nodeID),
	}
}

// WithBackplane makes the hub publish every fan-out to b and deliver fan-outs
// published by other nodes.
func (h *Hub) WithBackplane(b Backplane) *Hub {
	h.backplane = b
	return h
}

// Run processes hub events until ctx is cancelled, then closes every session.
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()
	h.log.Info("Hub started")
	for {
		select {
		case <-ctx.Done():
			h.log.Info("Hub stopping")
			return nil
		case s := <-h.register:
			h.registry.AddSession(s.UserID, s)
			h.log.Debug("Session registered", "session", s.ID, "user", s.UserID)
		case s := <-h.unregister:
			if h.registry.RemoveSession(s.UserID, s) {
				s.Close()
				h.log.Debug("Session unregistered", "session", s.ID, "user", s.UserID)
			}
		case in := <-h.inbound:
			// A send that has started is finished even if shutdown begins.
			h.handleSend(context.WithoutCancel(ctx), in)
		case d := <-h.deleted:
			h.handleDelete(context.WithoutCancel(ctx), d.msg)
			close(d.done)
		}
	}
}

// RunBackplane delivers fan-outs published by other nodes until ctx is
// cancelled. Without a backplane it just waits for ctx.
func (h *Hub) RunBackplane(ctx context.Context) error {
	if h.backplane == nil {
		<-ctx.Done()
		return nil
	}
	return h.backplane.Subscribe(ctx, func(env Envelope) {
		if env.Origin == h.nodeID {
			return
		}
		h.deliverLocal(env.Targets, env.Frame)
	})
}

// Register adds s to its user's room. It returns false if the hub is stopped.
func (h *Hub) Register(s *Session) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

func (h *Hub) dispatch(in inbound) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.done:
		return false
	}
}

// NotifyDeleted pushes a delete_message event for msg to the rooms of its
// sender and receiver. It returns once the frames are queued.
func (h *Hub) NotifyDeleted(ctx context.Context, msg models.Message) error {
	d := deletion{msg: msg, done: make(chan struct{})}
	select {
	case h.deleted <- d:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-d.done:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectedCount is the number of live sessions in userID's room on this node.
func (h *Hub) ConnectedCount(userID string) int {
	return len(h.registry.SessionsFor(userID))
}

func (h *Hub) handleSend(ctx context.Context, in inbound) {
	p := in.payload
	if p.Sender == "" {
		p.Sender = in.session.UserID
	}
	if p.Sender != in.session.UserID {
		in.session.reject("sender does not match the connected user")
		return
	}

	created, err := h.store.Create(ctx, p.Text, p.Sender, p.Receiver)
	if err != nil {
		h.log.Warn("Rejected send_message", "session", in.session.ID, "code", apperrors.Code(err), "error", err)
		in.session.reject(apperrors.PublicMessage(err))
		return
	}

	saved, err := h.store.FindByID(ctx, created.ID)
	if err != nil {
		h.log.Error("Error reloading saved message", "id", created.ID, "error", err)
		in.session.reject(apperrors.PublicMessage(err))
		return
	}
	msgs := []models.Message{*saved}
	if err := storage.Enrich(ctx, h.directory, msgs); err != nil {
		// The message is stored; push it with bare ids rather than not at all.
		h.log.Warn("Error resolving participant names", "id", saved.ID, "error", err)
	}

	frame, err := models.NewFrame(models.EventReceiveMessage, msgs[0])
	if err != nil {
		h.log.Error("Error encoding receive_message", "id", saved.ID, "error", err)
		return
	}
	h.fanOut(ctx, msgs[0].Participants(), frame)
	h.log.Debug("Message delivered", "id", saved.ID, "sender", p.Sender, "receiver", p.Receiver)
}

func (h *Hub) handleDelete(ctx context.Context, msg models.Message) {
	frame, err := models.NewFrame(models.EventDeleteMessage, msg.ID)
	if err != nil {
		h.log.Error("Error encoding delete_message", "id", msg.ID, "error", err)
		return
	}
	h.fanOut(ctx, msg.Participants(), frame)
}

func (h *Hub) fanOut(ctx context.Context, targets []string, frame []byte) {
	h.deliverLocal(targets, frame)
	if h.backplane == nil {
		return
	}
	env := Envelope{Origin: h.nodeID, Targets: targets, Frame: frame}
	if err := h.backplane.Publish(ctx, env); err != nil {
		h.log.Error("Error publishing to backplane", "error", err)
	}
}

// deliverLocal queues frame on every session in the targets' rooms. Sessions
// that cannot keep up are dropped.
func (h *Hub) deliverLocal(targets []string, frame []byte) {
	for _, userID := range targets {
		for _, s := range h.registry.SessionsFor(userID) {
			if s.Enqueue(frame) {
				continue
			}
			if h.registry.RemoveSession(userID, s) {
				s.Close()
				h.log.Warn("Dropped slow session", "session", s.ID, "user", userID)
			}
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for _, s := range h.registry.All() {
		h.registry.RemoveSession(s.UserID, s)
		s.Close()
	}
}
