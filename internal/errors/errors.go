// Package errors defines the failure taxonomy of the messaging core and how
// each kind surfaces at the request boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeUnknown    = "UNKNOWN"
	CodeValidation = "VALIDATION"
	CodeNotFound   = "NOT_FOUND"
	CodeForbidden  = "FORBIDDEN"
	CodeTransport  = "TRANSPORT"
)

// Error is an application error carrying a code and an optional cause.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound) works
// for every not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &Error{code: CodeValidation, message: "validation failed"}
	ErrNotFound   = &Error{code: CodeNotFound, message: "not found"}
	ErrForbidden  = &Error{code: CodeForbidden, message: "forbidden"}
	ErrTransport  = &Error{code: CodeTransport, message: "store unavailable"}
)

func NewValidationError(message string) error {
	return &Error{code: CodeValidation, message: message}
}

func NewNotFoundError(message string) error {
	return &Error{code: CodeNotFound, message: message}
}

func NewForbiddenError(message string) error {
	return &Error{code: CodeForbidden, message: message}
}

// NewTransportError wraps a storage or network failure.
func NewTransportError(message string, cause error) error {
	return &Error{code: CodeTransport, message: message, err: cause}
}

// Code returns the code of err, or CodeUnknown if it is not an *Error.
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.code
	}
	return CodeUnknown
}

// HTTPStatus maps err to the status code returned by the request interface.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text to surface to a client. Transport and unknown
// failures are reduced to a generic message so driver details never leak.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.code != CodeTransport {
		return appErr.message
	}
	return "Server error"
}
