// Package apperr defines the error kinds shared by the session, content and
// imaging layers and how they surface over HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Internal            Kind = "internal"
	Unauthorized        Kind = "unauthorized"
	NotFound            Kind = "not_found"
	InvalidInput        Kind = "invalid_input"
	InvalidState        Kind = "invalid_state"
	UnintelligibleAudio Kind = "unintelligible_audio"
	AdapterUnavailable  Kind = "adapter_unavailable"
	AdapterFailure      Kind = "adapter_failure"
	StorageError        Kind = "storage_error"
	Conflict            Kind = "conflict"
)

// Error carries a Kind and a client-safe message. Err holds the underlying
// cause, which is logged but never rendered to clients.
type Error struct {
	Kind   Kind
	Msg    string
	Err    error
	Detail map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) WithDetail(key string, value any) *Error {
	if e.Detail == nil {
		e.Detail = make(map[string]any, 1)
	}
	e.Detail[key] = value
	return e
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message for err. Errors without a kind
// get a generic message so internal detail never leaks.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal server error"
}

func Details(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return nil
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case InvalidInput, InvalidState, UnintelligibleAudio:
		return http.StatusBadRequest
	case AdapterUnavailable:
		return http.StatusServiceUnavailable
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
