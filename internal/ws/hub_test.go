package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
	"github.com/Vasu1712/bookmate-backend/internal/mocks"
	"github.com/Vasu1712/bookmate-backend/internal/models"
	"github.com/Vasu1712/bookmate-backend/internal/storage"
	"github.com/Vasu1712/bookmate-backend/internal/storage/memory"
)

type harness struct {
	hub    *Hub
	server *httptest.Server
}

func newHarness(t *testing.T, store storage.MessageStore) *harness {
	t.Helper()
	directory := memory.NewUserDirectory(map[string]string{"u1": "Ada", "u2": "Grace", "u3": "Linus"})
	hub := NewHub(NewMemoryRegistry(), store, directory, slog.Default())
	return startHarness(t, hub)
}

func startHarness(t *testing.T, hub *Hub) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := NewSession(r.URL.Query().Get("userId"), conn, DefaultSessionConfig(), slog.Default())
		if !hub.Register(s) {
			_ = conn.Close()
			return
		}
		go s.WritePump()
		go s.ReadPump(hub)
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &harness{hub: hub, server: server}
}

func (h *harness) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	before := h.hub.ConnectedCount(userID)
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.hub.ConnectedCount(userID) == before+1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, payload models.SendPayload) {
	t.Helper()
	frame, err := models.NewFrame(models.EventSendMessage, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) models.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame models.Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func readMessage(t *testing.T, conn *websocket.Conn) models.Message {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, models.EventReceiveMessage, frame.Event)
	var msg models.Message
	require.NoError(t, json.Unmarshal(frame.Data, &msg))
	return msg
}

func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, models.EventError, frame.Event)
	var payload models.ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	return payload.Message
}

func readDeleted(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, models.EventDeleteMessage, frame.Event)
	var id string
	require.NoError(t, json.Unmarshal(frame.Data, &id))
	return id
}

func TestHub_SendReachesSenderAndReceiverOnly(t *testing.T) {
	req := require.New(t)
	store := memory.NewMessageStore(slog.Default())
	h := newHarness(t, store)
	u1 := h.dial(t, "u1")
	u2 := h.dial(t, "u2")
	u3 := h.dial(t, "u3")

	send(t, u1, models.SendPayload{Text: "hi", Sender: "u1", Receiver: "u2"})

	atSender := readMessage(t, u1)
	atReceiver := readMessage(t, u2)
	req.Equal(atSender, atReceiver)
	req.NotEmpty(atSender.ID)
	req.Equal("hi", atSender.Text)
	req.Equal(models.UserRef{ID: "u1", UserName: "Ada"}, atSender.Sender)
	req.Equal(models.UserRef{ID: "u2", UserName: "Grace"}, atSender.Receiver)

	// u3's first push is the message addressed to it, not the u1/u2 one.
	send(t, u1, models.SendPayload{Text: "hey", Sender: "u1", Receiver: "u3"})
	req.Equal("hey", readMessage(t, u3).Text)
	req.Equal("hey", readMessage(t, u1).Text)

	stored, err := store.FindByPair(context.Background(), "u2", "u1")
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal(atSender.ID, stored[0].ID)
}

func TestHub_EverySessionOfAUserReceives(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, memory.NewMessageStore(slog.Default()))
	phone := h.dial(t, "u1")
	laptop := h.dial(t, "u1")
	u2 := h.dial(t, "u2")

	send(t, u2, models.SendPayload{Text: "ping", Sender: "u2", Receiver: "u1"})

	id := readMessage(t, u2).ID
	req.Equal(id, readMessage(t, phone).ID)
	req.Equal(id, readMessage(t, laptop).ID)
}

func TestHub_EmptySenderDefaultsToSessionUser(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, memory.NewMessageStore(slog.Default()))
	u1 := h.dial(t, "u1")

	send(t, u1, models.SendPayload{Text: "hi", Receiver: "u2"})

	req.Equal("u1", readMessage(t, u1).Sender.ID)
}

func TestHub_ValidationErrorGoesToSenderOnly(t *testing.T) {
	req := require.New(t)
	store := memory.NewMessageStore(slog.Default())
	h := newHarness(t, store)
	u1 := h.dial(t, "u1")
	u2 := h.dial(t, "u2")

	send(t, u1, models.SendPayload{Text: strings.Repeat("x", 600), Sender: "u1", Receiver: "u2"})

	req.Equal("text must be at most 500 characters", readError(t, u1))
	msgs, err := store.FindAllInvolving(context.Background(), "u1")
	req.NoError(err)
	req.Empty(msgs)

	// u2 saw nothing before this valid message.
	send(t, u1, models.SendPayload{Text: "ok", Sender: "u1", Receiver: "u2"})
	req.Equal("ok", readMessage(t, u2).Text)
}

func TestHub_OversizedTextKeepsSessionOpen(t *testing.T) {
	req := require.New(t)
	store := memory.NewMessageStore(slog.Default())
	h := newHarness(t, store)
	u1 := h.dial(t, "u1")

	// Several times the text limit, still well inside one frame.
	send(t, u1, models.SendPayload{Text: strings.Repeat("x", 5000), Sender: "u1", Receiver: "u2"})

	req.Equal("text must be at most 500 characters", readError(t, u1))
	msgs, err := store.FindAllInvolving(context.Background(), "u1")
	req.NoError(err)
	req.Empty(msgs)

	send(t, u1, models.SendPayload{Text: "after", Sender: "u1", Receiver: "u2"})
	req.Equal("after", readMessage(t, u1).Text)
}

func TestHub_SenderMismatchIsRejected(t *testing.T) {
	req := require.New(t)
	store := memory.NewMessageStore(slog.Default())
	h := newHarness(t, store)
	u1 := h.dial(t, "u1")

	send(t, u1, models.SendPayload{Text: "spoof", Sender: "u2", Receiver: "u3"})

	req.Equal("sender does not match the connected user", readError(t, u1))
	msgs, err := store.FindAllInvolving(context.Background(), "u2")
	req.NoError(err)
	req.Empty(msgs)
}

func TestHub_MalformedAndUnknownFrames(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, memory.NewMessageStore(slog.Default()))
	u1 := h.dial(t, "u1")

	req.NoError(u1.WriteMessage(websocket.TextMessage, []byte("not json")))
	req.Equal("malformed frame", readError(t, u1))

	req.NoError(u1.WriteMessage(websocket.TextMessage, []byte(`{"event":"typing"}`)))
	req.Equal("unsupported event typing", readError(t, u1))

	// The connection survives both.
	send(t, u1, models.SendPayload{Text: "still here", Sender: "u1", Receiver: "u2"})
	req.Equal("still here", readMessage(t, u1).Text)
}

func TestHub_StoreFailureSurfacesGenericError(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().
		Create(gomock.Any(), "hi", "u1", "u2").
		Return(nil, apperrors.NewTransportError("insert message", context.DeadlineExceeded))

	h := newHarness(t, store)
	u1 := h.dial(t, "u1")

	send(t, u1, models.SendPayload{Text: "hi", Sender: "u1", Receiver: "u2"})

	req.Equal("Server error", readError(t, u1))
}

func TestHub_NotifyDeletedIsScopedToParticipants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.NewMessageStore(slog.Default())
	h := newHarness(t, store)
	u1 := h.dial(t, "u1")
	u2 := h.dial(t, "u2")
	u3 := h.dial(t, "u3")

	between, err := store.Create(ctx, "secret", "u1", "u2")
	req.NoError(err)
	withU3, err := store.Create(ctx, "hello", "u3", "u1")
	req.NoError(err)

	req.NoError(h.hub.NotifyDeleted(ctx, *between))
	req.Equal(between.ID, readDeleted(t, u1))
	req.Equal(between.ID, readDeleted(t, u2))

	req.NoError(h.hub.NotifyDeleted(ctx, *withU3))
	req.Equal(withU3.ID, readDeleted(t, u3), "u3 never saw the u1/u2 delete")
	req.Equal(withU3.ID, readDeleted(t, u1))
}

func TestHub_DropsSlowSessions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub := NewHub(NewMemoryRegistry(), memory.NewMessageStore(slog.Default()), memory.NewUserDirectory(nil), slog.Default())
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = hub.Run(runCtx) }()

	slow := NewSession("u1", nil, SessionConfig{SendBuffer: 1}, slog.Default())
	req.True(hub.Register(slow))
	req.Eventually(func() bool { return hub.ConnectedCount("u1") == 1 }, time.Second, 10*time.Millisecond)

	msg := models.Message{ID: "m1", Sender: models.UserRef{ID: "u1"}, Receiver: models.UserRef{ID: "u2"}}
	req.NoError(hub.NotifyDeleted(ctx, msg))
	req.NoError(hub.NotifyDeleted(ctx, msg))

	req.Equal(0, hub.ConnectedCount("u1"))
	req.False(slow.Enqueue([]byte("late")))
}

func TestHub_StopClosesSessionsAndRejectsCallers(t *testing.T) {
	req := require.New(t)
	hub := NewHub(NewMemoryRegistry(), memory.NewMessageStore(slog.Default()), memory.NewUserDirectory(nil), slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()

	s := NewSession("u1", nil, DefaultSessionConfig(), slog.Default())
	req.True(hub.Register(s))
	cancel()
	<-stopped

	req.False(s.Enqueue([]byte("late")))
	req.False(hub.Register(NewSession("u2", nil, DefaultSessionConfig(), slog.Default())))
	req.ErrorIs(hub.NotifyDeleted(context.Background(), models.Message{ID: "m1"}), ErrHubStopped)
}

type fakeBackplane struct {
	mu        sync.Mutex
	published []Envelope
	deliver   chan func(Envelope)
}

func newFakeBackplane() *fakeBackplane {
	return &fakeBackplane{deliver: make(chan func(Envelope), 1)}
}

func (b *fakeBackplane) Publish(_ context.Context, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, env)
	return nil
}

func (b *fakeBackplane) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	b.deliver <- deliver
	<-ctx.Done()
	return nil
}

func (b *fakeBackplane) envelopes() []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Envelope(nil), b.published...)
}

func TestHub_Backplane(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backplane := newFakeBackplane()
	hub := NewHub(NewMemoryRegistry(), memory.NewMessageStore(slog.Default()), memory.NewUserDirectory(nil), slog.Default()).
		WithBackplane(backplane)
	h := startHarness(t, hub)
	go func() { _ = hub.RunBackplane(ctx) }()
	deliver := <-backplane.deliver

	u1 := h.dial(t, "u1")
	u2 := h.dial(t, "u2")

	// Local fan-outs are published for other nodes.
	send(t, u1, models.SendPayload{Text: "hi", Sender: "u1", Receiver: "u2"})
	local := readMessage(t, u2)
	req.Eventually(func() bool { return len(backplane.envelopes()) == 1 }, time.Second, 10*time.Millisecond)
	env := backplane.envelopes()[0]
	req.Equal([]string{"u1", "u2"}, env.Targets)

	// Our own envelopes coming back are ignored, remote ones are delivered.
	deliver(env)
	remote, err := models.NewFrame(models.EventDeleteMessage, local.ID)
	req.NoError(err)
	deliver(Envelope{Origin: "other-node", Targets: []string{"u2"}, Frame: remote})

	req.Equal(local.ID, readDeleted(t, u2))
}
