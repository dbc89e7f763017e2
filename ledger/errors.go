/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All ledger error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP statuses; nothing here knows about HTTP.

ERROR CATEGORIES:
  1. Validation errors - malformed or out-of-range input
  2. Not-found errors  - referenced entity absent
  3. Transition errors - state-machine rule violated
  4. AlreadyStopped    - idempotency guard on stop-payment

USAGE:
  Callers match with errors.Is():

    if errors.Is(err, ledger.ErrNotFound) { ... 404 ... }

SEE ALSO:
  - api/handlers.go: HTTP status mapping
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a state-machine rule is violated,
	// e.g. approving a refund that is not Pending.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyStopped is returned when stop-payment hits a payment whose
	// isStopped flag is already set. The flag is terminal.
	ErrAlreadyStopped = errors.New("payment already stopped")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies which entity was missing.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError carries the offending field and the rule it broke.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError records the state a workflow action found versus what it
// required.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Entity, e.ID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports whether the error is due to invalid client input or
// a workflow rule, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadyStopped)
}
