package session

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("session: element not found")
	ErrNotInteractable = errors.New("session: element not interactable")
	ErrSessionClosed   = errors.New("session: closed")
	ErrTimeout         = errors.New("session: operation timeout")
	ErrAuthRequired    = errors.New("session: redirected to login")
)

// IsRecoverable reports whether err should abort only the current
// iteration. Cancellation of the caller's context is not recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNotInteractable),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrAuthRequired),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// IsAuth reports whether err means the session is not authenticated.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuthRequired)
}
