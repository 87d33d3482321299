// Package errs defines the error-kind taxonomy shared across the storage,
// cache, engine, and extraction layers. It is the single place callers
// check "what kind of failure was this" via errors.Is/errors.As, built
// around a small set of sentinel kinds (ErrNotFound, ErrConflict,
// ErrValidationFailed, ...) plus constructors that wrap them with detail.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Use errors.Is against these, not string comparison.
var (
	// ErrStorage wraps I/O or serialization faults from a backend.
	ErrStorage = errors.New("storage error")
	// ErrNotFound indicates a read-or-fail call found no record for the id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a size/step-count/format violation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrValidationFailed indicates the quality gate, a cycle check, or a
	// duplicate-edge check rejected an operation.
	ErrValidationFailed = errors.New("validation failed")
	// ErrConflict indicates a unique-constraint violation.
	ErrConflict = errors.New("conflict")
	// ErrCancelled indicates the caller's context was cancelled.
	ErrCancelled = errors.New("cancelled")
	// ErrTimeout indicates a deadline expired before the operation completed.
	ErrTimeout = errors.New("timeout")
)

// Storage wraps err as a Storage-kind error with operation context.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// NotFound builds a NotFound-kind error naming the missing id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// InvalidInput builds an InvalidInput-kind error with a detail message.
func InvalidInput(detail string) error {
	return fmt.Errorf("%s: %w", detail, ErrInvalidInput)
}

// ValidationFailed builds a ValidationFailed-kind error with a detail message.
func ValidationFailed(detail string) error {
	return fmt.Errorf("%s: %w", detail, ErrValidationFailed)
}

// Conflict builds a Conflict-kind error with a detail message.
func Conflict(detail string) error {
	return fmt.Errorf("%s: %w", detail, ErrConflict)
}

// Is reports whether err wraps target anywhere in its chain. Re-exported so
// call sites need only import this package alongside the
// IsNotFound/IsConflict/IsValidationFailed/IsTimeout helpers.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is or wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsValidationFailed reports whether err is or wraps ErrValidationFailed.
func IsValidationFailed(err error) bool { return errors.Is(err, ErrValidationFailed) }

// IsTimeout reports whether err is or wraps ErrTimeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }
