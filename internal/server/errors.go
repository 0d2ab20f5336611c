package server

import (
	"errors"
	"fmt"

	"github.com/npezzotti/go-studychat/internal/database"
)

var (
	ErrInvalidParticipants = errors.New("a conversation needs two distinct participants")
	ErrNotParticipant      = errors.New("is not a participant in the conversation")
	ErrNotFound            = database.ErrNotFound
)

// ValidationError reports input that was rejected before any side effect.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a Message Store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func invalidParticipants() error {
	return &ValidationError{Reason: ErrInvalidParticipants.Error(), Err: ErrInvalidParticipants}
}

// storeError passes ErrNotFound through and classifies everything else as a
// PersistenceError.
func storeError(op string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
