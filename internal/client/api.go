package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
	"github.com/Vasu1712/bookmate-backend/internal/models"
)

// API calls the request interface with a bearer token.
type API struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPI(baseURL, token string) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *API) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := a.do(ctx, http.MethodGet, "/message/conversations", &convs)
	return convs, err
}

func (a *API) History(ctx context.Context, otherUserID string) ([]models.Message, error) {
	var msgs []models.Message
	err := a.do(ctx, http.MethodGet, "/message/conversations/"+url.PathEscape(otherUserID), &msgs)
	return msgs, err
}

// Delete removes one of the caller's messages. The view learns about it
// through the delete_message push.
func (a *API) Delete(ctx context.Context, messageID string) error {
	return a.do(ctx, http.MethodDelete, "/message/delete/"+url.PathEscape(messageID), nil)
}

func (a *API) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.http.Do(req)
	if err != nil {
		return apperrors.NewTransportError(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = resp.Status
		}
		return statusError(resp.StatusCode, body.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewTransportError("decode "+path, err)
	}
	return nil
}

func statusError(status int, message string) error {
	switch status {
	case http.StatusBadRequest:
		return apperrors.NewValidationError(message)
	case http.StatusNotFound:
		return apperrors.NewNotFoundError(message)
	case http.StatusForbidden, http.StatusUnauthorized:
		return apperrors.NewForbiddenError(message)
	default:
		return apperrors.NewTransportError(message, fmt.Errorf("status %d", status))
	}
}
