package messages

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Vasu1712/bookmate-backend/internal/conversations"
	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
	"github.com/Vasu1712/bookmate-backend/internal/middleware"
	"github.com/Vasu1712/bookmate-backend/internal/storage"
	"github.com/Vasu1712/bookmate-backend/internal/ws"
)

type MessageHandler struct {
	Store     storage.MessageStore
	Index     *conversations.Index
	Directory storage.UserDirectory
	Hub       *ws.Hub
	Upgrader  websocket.Upgrader
	Session   ws.SessionConfig
	Log       *slog.Logger
}

// NewUpgrader accepts upgrades without an Origin header, from the same host,
// or from allowedOrigin.
func NewUpgrader(allowedOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == allowedOrigin {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// ListConversations handles GET /message/conversations.
func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	convs, err := h.Index.ListConversations(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// GetHistory handles GET /message/conversations/{otherUserId}.
func (h *MessageHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	otherUserID := mux.Vars(r)["otherUserId"]

	msgs, err := h.Store.FindByPair(r.Context(), userID, otherUserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := storage.Enrich(r.Context(), h.Directory, msgs); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// DeleteMessage handles DELETE /message/delete/{messageId}. Only the sender
// may delete; both participants are notified over the channel.
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	messageID := mux.Vars(r)["messageId"]

	deleted, err := h.Store.DeleteByID(r.Context(), messageID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Hub.NotifyDeleted(r.Context(), *deleted); err != nil {
		h.Log.Warn("Error pushing delete_message", "id", deleted.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}

// ServeWS upgrades GET /ws/messages?userId= to a channel session.
func (h *MessageHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	if requested := r.URL.Query().Get("userId"); requested != "" && requested != userID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "userId does not match the authenticated user"})
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("WebSocket upgrade failed", "user", userID, "error", err)
		return
	}
	session := ws.NewSession(userID, conn, h.Session, h.Log)
	if !h.Hub.Register(session) {
		_ = conn.Close()
		return
	}
	h.Log.Info("Channel connected", "session", session.ID, "user", userID)

	go session.WritePump()
	go session.ReadPump(h.Hub)
}

// Health handles GET /healthz.
func (h *MessageHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Log.Error("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": apperrors.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
