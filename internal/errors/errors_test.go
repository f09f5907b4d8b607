package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeAndStatus(t *testing.T) {
	req := require.New(t)

	cases := []struct {
		err    error
		code   string
		status int
	}{
		{NewValidationError("text is required"), CodeValidation, http.StatusBadRequest},
		{NewNotFoundError("Message not found"), CodeNotFound, http.StatusNotFound},
		{NewForbiddenError("You can only delete your own messages"), CodeForbidden, http.StatusForbidden},
		{NewTransportError("insert message", errors.New("connection refused")), CodeTransport, http.StatusInternalServerError},
		{errors.New("boom"), CodeUnknown, http.StatusInternalServerError},
	}
	for _, c := range cases {
		req.Equal(c.code, Code(c.err))
		req.Equal(c.status, HTTPStatus(c.err))
	}
}

func TestIsMatchesByCodeThroughWrapping(t *testing.T) {
	req := require.New(t)

	err := fmt.Errorf("delete: %w", NewForbiddenError("You can only delete your own messages"))

	req.ErrorIs(err, ErrForbidden)
	req.NotErrorIs(err, ErrNotFound)
	req.Equal(CodeForbidden, Code(err))
}

func TestPublicMessageHidesTransportCause(t *testing.T) {
	req := require.New(t)

	cause := errors.New("pq: password authentication failed")
	err := NewTransportError("insert message", cause)

	req.ErrorIs(err, cause)
	req.Equal("Server error", PublicMessage(err))
	req.Equal("Message not found", PublicMessage(NewNotFoundError("Message not found")))
}
