// Package apperr defines the request-scoped error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrAuthentication  = errors.New("authentication error")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrTooManyRequests = errors.New("too many requests")
	ErrInvalidImage    = errors.New("invalid image")
)

// Error carries a human-readable message on top of one of the sentinel kinds.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func Authentication(format string, args ...any) error {
	return newError(ErrAuthentication, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func InvalidImage(format string, args ...any) error {
	return newError(ErrInvalidImage, format, args...)
}

// TooManyRequests is returned when a throttled operation is retried too early.
type TooManyRequests struct {
	RetryAfterSeconds int
}

func (e *TooManyRequests) Error() string {
	return "too many requests"
}

func (e *TooManyRequests) Unwrap() error {
	return ErrTooManyRequests
}

// Message returns the client-facing message of err, falling back to fallback
// for errors outside the taxonomy.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	if errors.Is(err, ErrTooManyRequests) {
		return err.Error()
	}
	return fallback
}
