package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by GetByReference when the ledger has no
// transaction under the given reference.
var ErrNotFound = errors.New("ledger: transaction not found")

// ErrorKind classifies submission failures. The distinction matters for the
// settlement worker: a rejection is a definite failure, while an unavailable
// gateway leaves the outcome unknown and the record must stay pending.
type ErrorKind int

const (
	// KindUnavailable means the request did not complete (timeout, transport
	// failure, 5xx). The transfer may still have been accepted by the ledger.
	KindUnavailable ErrorKind = iota
	// KindRejected means the ledger explicitly refused the request.
	KindRejected
)

// Error is a typed ledger gateway error carrying the failure classification.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("ledger: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("ledger: %s", e.Message)
}

// IsRejected reports whether err is a definite ledger rejection.
func IsRejected(err error) bool {
	var lerr *Error
	return errors.As(err, &lerr) && lerr.Kind == KindRejected
}

// IsUnavailable reports whether err left the submission outcome unknown.
func IsUnavailable(err error) bool {
	var lerr *Error
	return errors.As(err, &lerr) && lerr.Kind == KindUnavailable
}
