// Package common defines sentinel and classified errors shared by the
// repository, service and transport layers. Callers should use errors.Is
// and errors.As to match them.
package common

import (
	"errors"
	"net/http"
)

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Kind classifies a service error.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindConflict
	KindUnauthorized
)

// String returns the lower-case name of the kind, used as a metrics label.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error is a classified service error carrying a client-facing message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// StatusCode maps the error kind to an HTTP status code.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict)
// works regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Service-level sentinels, one per kind.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrConflict        = &Error{Kind: KindConflict, Message: "conflict"}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
)

// InvalidArgument reports malformed or blank input (HTTP 400).
func InvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

// Conflict reports a uniqueness violation (HTTP 409).
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Unauthorized reports an unknown credential or token (HTTP 401).
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}
