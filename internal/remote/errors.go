package remote

import (
	"errors"
	"fmt"
)

// ErrUnreachable stands in for any network-level failure talking to the store.
var ErrUnreachable = errors.New("remote store unreachable")

// ErrDocMissing is returned when a transaction expected the document to exist.
// It is a logic failure, not a transient one, but the entry stays queued:
// reconciliation may create the document later.
var ErrDocMissing = errors.New("remote document does not exist")

// StoreError wraps a failure returned by the store itself. Transient marks
// rate limits and server hiccups, retryable on the next drain pass.
type StoreError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is connectivity or a transient store
// error, as opposed to a logic error.
func Retryable(err error) bool {
	if errors.Is(err, ErrUnreachable) {
		return true
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Transient
	}
	return false
}
