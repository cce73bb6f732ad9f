package backend

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthExpired means the backend no longer recognizes the caller's session.
	ErrAuthExpired = errors.New("authentication expired")
	// ErrUnavailable covers transport failures and an open circuit breaker.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrBadResponse is returned for bodies that are not a well-formed envelope.
	ErrBadResponse = errors.New("malformed backend response")
)

// ServerError is a well-formed error envelope reported by the backend.
type ServerError struct {
	Status   int
	Messages []string
}

func (e *ServerError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("backend error (status %d)", e.Status)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.Status, strings.Join(e.Messages, "; "))
}
