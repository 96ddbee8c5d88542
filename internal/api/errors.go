package api

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnauthenticated is returned when the remote service answers 401.
var ErrUnauthenticated = errors.New("unauthenticated")

// RateLimitError is returned when the remote service answers 429.
type RateLimitError struct {
	Message string
	Hint    string
}

func (e *RateLimitError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("rate limited: %s (%s)", e.Message, e.Hint)
	}
	return fmt.Sprintf("rate limited: %s", e.Message)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("status %d", e.Code)
}

// IsUnauthenticated reports whether err maps to an explicit 401.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsRateLimited reports whether err maps to a 429, returning its details.
func IsRateLimited(err error) (*RateLimitError, bool) {
	rateLimitError := &RateLimitError{}
	if errors.As(err, &rateLimitError) {
		return rateLimitError, true
	}
	return nil, false
}
