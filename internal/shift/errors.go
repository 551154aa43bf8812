package shift

import (
	"errors"
	"fmt"

	"register-shift-service/internal/remote"
)

var (
	ErrShiftOpenFailed    = errors.New("shift open failed")
	ErrShiftCloseFailed   = errors.New("shift close failed")
	ErrSummaryUnavailable = errors.New("shift summary unavailable")

	// ErrCacheUnavailable marks local cache read/write failures; it is never
	// used for remote reachability problems.
	ErrCacheUnavailable = errors.New("local shift cache unavailable")

	ErrInvalidBalance    = errors.New("opening balance must not be negative")
	ErrMissingCredential = errors.New("no operator credential")
	ErrBusy              = errors.New("another shift operation is in progress")
)

// OperationError reports a failed open, close or summary. Error returns the
// message meant for the operator, verbatim from the server when it sent one.
type OperationError struct {
	Kind          error
	Message       string
	Status        int
	AlreadyClosed bool
	Err           error
}

func (e *OperationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *OperationError) Is(target error) bool {
	return target == e.Kind
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func newOperationError(kind, err error) *OperationError {
	oe := &OperationError{Kind: kind, Err: err}

	var se *remote.StatusError
	switch {
	case errors.As(err, &se):
		oe.Status = se.StatusCode
		oe.Message = se.Message
		if oe.Message == "" {
			oe.Message = fmt.Sprintf("%s (status %d)", kind, se.StatusCode)
		}
	case err != nil:
		oe.Message = fmt.Sprintf("%s: %v", kind, err)
	}
	return oe
}

func cacheError(err error) error {
	return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
}
