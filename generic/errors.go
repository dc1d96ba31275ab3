/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages build on these rather than declaring their own
  taxonomy, so the HTTP layer can map any of them to a status code.

ERROR CATEGORIES:
  1. Client errors  - ValidationError, NotFoundError, InvalidOperationError
  2. Store errors   - ErrDocumentNotFound, ErrAlreadyExists
  3. Anything else  - propagated unchanged (wrapped with context)

PARTIAL FAILURES:
  A write that succeeded followed by a failed recalculation is NOT rolled
  back. Recalculation is whole-ledger and idempotent, so the next
  successful pass over that entity repairs the derived fields.

USAGE:
  if errors.Is(err, generic.ErrNotFound) {
      // 404
  }
  var verr *generic.ValidationError
  if errors.As(err, &verr) {
      fmt.Println(verr.Field)
  }

SEE ALSO:
  - bookkeeping/: Returns these errors from every operation
  - api/handlers.go: Maps them to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for bad input, before anything is written.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an operation references a missing record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation is returned when an operation is never allowed on
	// the target record (e.g. editing a mirror entry directly).
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrDocumentNotFound is returned by Store.Update and Store.BatchWrite
	// when the referenced document does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrAlreadyExists is returned by Store.Create on an id clash.
	ErrAlreadyExists = errors.New("document already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a *ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Collection Collection
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound is shorthand for a *NotFoundError.
func NotFound(collection Collection, id string) error {
	return &NotFoundError{Collection: collection, ID: id}
}

// InvalidOperationError explains why an operation is refused.
type InvalidOperationError struct {
	Message string
}

func (e *InvalidOperationError) Error() string { return e.Message }

func (e *InvalidOperationError) Unwrap() error { return ErrInvalidOperation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidOperation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDocumentNotFound)
}
