package service

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports a missing field or an unsatisfied transition guard.
// Nothing was mutated.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthError reports rejected credentials, a locked or inactive account, or an
// expired session. RetryAfter is non-zero for lockouts.
type AuthError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *AuthError) Error() string { return e.Message }

// ConflictError reports a uniqueness or concurrency collision; the caller
// must retry with fresh input.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// DependencyError wraps a failure of the store or another collaborator.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *DependencyError) Unwrap() error { return e.Err }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func authf(format string, args ...interface{}) error {
	return &AuthError{Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func dependency(op string, err error) error {
	return &DependencyError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
