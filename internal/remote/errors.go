package remote

import (
	"errors"
	"fmt"
)

// ErrUnreachable covers transport failures, timeouts and malformed replies.
var ErrUnreachable = errors.New("remote shift service unreachable")

// StatusError is a non-2xx reply from the remote.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("remote returned status %d", e.StatusCode)
}

func unreachable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnreachable, fmt.Sprintf(format, args...))
}
