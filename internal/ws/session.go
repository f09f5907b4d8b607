package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Vasu1712/bookmate-backend/internal/models"
)

// SessionConfig holds the keep-alive and buffering limits of a session.
type SessionConfig struct {
	SendBuffer      int
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxMessageBytes int64
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SendBuffer:      256,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
		MaxMessageBytes: 64 << 10,
	}
}

// Session is one live channel connection of a user.
type Session struct {
	ID     string
	UserID string

	conn *websocket.Conn
	cfg  SessionConfig
	log  *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewSession wraps conn. conn may be nil for sessions that are only fed
// through Enqueue.
func NewSession(userID string, conn *websocket.Conn, cfg SessionConfig, log *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:     id,
		UserID: userID,
		conn:   conn,
		cfg:    cfg,
		log:    log.With("session", id, "user", userID),
		send:   make(chan []byte, cfg.SendBuffer),
	}
}

// Enqueue queues a frame without blocking. It returns false when the session
// is closed or its buffer is full.
func (s *Session) Enqueue(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the write pump. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// ReadPump forwards inbound frames to the hub until the connection fails,
// then leaves the hub.
func (s *Session) ReadPump(h *Hub) {
	defer func() {
		h.leave(s)
		_ = s.conn.Close()
		s.log.Debug("Read pump closed")
	}()

	s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.reject("malformed frame")
			continue
		}
		switch frame.Event {
		case models.EventSendMessage:
			var payload models.SendPayload
			if err := json.Unmarshal(frame.Data, &payload); err != nil {
				s.reject("malformed send_message payload")
				continue
			}
			if !h.dispatch(inbound{session: s, payload: payload}) {
				return
			}
		default:
			s.reject("unsupported event " + frame.Event)
		}
	}
}

// WritePump writes queued frames and keep-alive pings until the session is
// closed or a write fails.
func (s *Session) WritePump() {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		s.log.Debug("Write pump closed")
	}()

	for {
		select {
		case frame, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Warn("WebSocket write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reject sends an error frame to this session only.
func (s *Session) reject(message string) {
	frame, err := models.NewFrame(models.EventError, models.ErrorPayload{Message: message})
	if err != nil {
		s.log.Error("Error encoding error frame", "error", err)
		return
	}
	if !s.Enqueue(frame) {
		s.log.Debug("Dropped error frame", "message", message)
	}
}
