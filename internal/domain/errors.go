package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrMalformedEvent   = errors.New("malformed event")
	ErrRecipeNotFound   = errors.New("recipe not found")
	ErrPairingNotFound  = errors.New("pairing not found")
	ErrSessionStopped   = errors.New("session stopped")
)

// ValidationError names the offending field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreUnavailableError reports a failed read or write against a backing store.
// The operation may be retried.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func NewStoreUnavailable(op string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Err: err}
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *StoreUnavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

func (e *StoreUnavailableError) Retryable() bool {
	return true
}

// IsRetryable reports whether err is a store failure worth retrying.
func IsRetryable(err error) bool {
	var su *StoreUnavailableError
	return errors.As(err, &su) && su.Retryable()
}
