package tracker

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks failures where the tracker could not be reached at
// all: network errors, timeouts, 5xx responses, rate limiting, or an open
// circuit. Callers use it to distinguish infrastructure trouble from a
// query the tracker rejected.
var ErrUnavailable = errors.New("tracker unavailable")

// StatusError is a non-retryable HTTP error response from the tracker,
// typically a rejected query (400) or an authorization failure (401, 403).
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tracker responded %d", e.Status)
	}
	return fmt.Sprintf("tracker responded %d: %s", e.Status, e.Body)
}
