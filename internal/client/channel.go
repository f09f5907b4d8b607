package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Vasu1712/bookmate-backend/internal/models"
)

// Channel is the client end of a realtime session.
type Channel struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex
}

// Dial opens a session for userID against the server at baseURL (http or https).
func Dial(ctx context.Context, baseURL, userID, token string, log *slog.Logger) (*Channel, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws/messages")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("userId", userID)
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return &Channel{conn: conn, log: log.With("component", "channel")}, nil
}

func (c *Channel) Send(p models.SendPayload) error {
	frame, err := models.NewFrame(models.EventSendMessage, p)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Listen passes every inbound frame to handle until the connection closes.
func (c *Channel) Listen(handle func(models.Frame)) error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn("Dropped malformed frame", "error", err)
			continue
		}
		handle(frame)
	}
}

func (c *Channel) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
