package messages

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMessageRoutes registers the message HTTP and channel routes. auth
// must put the caller's user id on the request context.
func RegisterMessageRoutes(r *mux.Router, handler *MessageHandler, auth mux.MiddlewareFunc) {
	r.HandleFunc("/healthz", handler.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/message").Subrouter()
	api.Use(auth)
	api.HandleFunc("/conversations", handler.ListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{otherUserId}", handler.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/delete/{messageId}", handler.DeleteMessage).Methods(http.MethodDelete)

	channel := r.PathPrefix("/ws").Subrouter()
	channel.Use(auth)
	channel.HandleFunc("/messages", handler.ServeWS).Methods(http.MethodGet)
}
