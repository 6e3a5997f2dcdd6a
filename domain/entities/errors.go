package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrNotUnderstood is returned by a listener that captured nothing usable
	ErrNotUnderstood = errors.New("speech not understood")
	// ErrValidationRejected marks a transcript that failed its format rule
	ErrValidationRejected = errors.New("validation rejected")
	// ErrRetriesExhausted marks a field that never reached Accepted
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrSessionAborted marks a session that ended without a record
	ErrSessionAborted = errors.New("session aborted")
	// ErrConsentDeclined marks a session where the user said no to consent
	ErrConsentDeclined = errors.New("consent declined")
	// ErrPersistence marks a record sink failure
	ErrPersistence = errors.New("persistence failed")
	// ErrInvalidTransition is returned for an illegal session state change
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// SessionFailure carries the first field that could not be collected
type SessionFailure struct {
	Field  FieldID
	Reason string
	Cause  error
}

func (f *SessionFailure) Error() string {
	if f.Reason == "" {
		return fmt.Sprintf("session aborted at field %s", f.Field)
	}
	return fmt.Sprintf("session aborted at field %s: %s", f.Field, f.Reason)
}

// Is lets errors.Is match ErrSessionAborted as well as the cause
func (f *SessionFailure) Is(target error) bool {
	return target == ErrSessionAborted
}

func (f *SessionFailure) Unwrap() error {
	return f.Cause
}

// PersistenceError wraps a failure of the record sink
type PersistenceError struct {
	Sink string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist record to %s: %v", e.Sink, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
