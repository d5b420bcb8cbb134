package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCatalog is returned when there is nothing to enumerate.
	ErrEmptyCatalog = errors.New("unit catalog is empty")
	// ErrPersistence marks checkpoint write failures; they stop the run.
	ErrPersistence = errors.New("checkpoint persistence failed")
)

// FailureKind separates retryable generation failures from fatal ones.
type FailureKind int

const (
	Transient FailureKind = iota
	Permanent
)

func (k FailureKind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// CallError is returned by generation clients.
type CallError struct {
	Kind FailureKind
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failure: %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// TransientError wraps err as a retryable failure.
func TransientError(err error) error {
	return &CallError{Kind: Transient, Err: err}
}

// PermanentError wraps err as a failure that must not be retried.
func PermanentError(err error) error {
	return &CallError{Kind: Permanent, Err: err}
}

// IsPermanent reports whether err carries a permanent CallError.
// Errors without a classification are treated as transient.
func IsPermanent(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind == Permanent
	}
	return false
}
