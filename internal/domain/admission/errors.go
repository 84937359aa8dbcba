package admission

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable classification of an engine failure. Callers
// branch on the kind; the message is for humans only.
type Kind string

const (
	KindValidation             Kind = "ValidationError"
	KindNotFound               Kind = "NotFound"
	KindNoBedAvailable         Kind = "NoBedAvailable"
	KindBedNotAvailable        Kind = "BedNotAvailable"
	KindInvalidStateTransition Kind = "InvalidStateTransition"
	KindBusy                   Kind = "Busy"
	KindConflict               Kind = "Conflict"
	KindStorage                Kind = "StorageFailure"
)

// Retryable reports whether an operation that failed with this kind may be
// retried as-is by the caller.
func (k Kind) Retryable() bool {
	return k == KindBusy || k == KindStorage
}

// Error is the failure type returned by every engine operation. No partial
// effect accompanies it: an operation either succeeds fully or returns an
// *Error having changed nothing.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error with a formatted message.
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error around an underlying cause.
func WrapError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, defaulting to StorageFailure for
// anything that is not an engine *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// Repository sentinels. Repositories speak in these; the engine translates
// them into typed errors naming the entity involved.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)
