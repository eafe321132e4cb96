/*
errors.go - Centralized error types for the chore engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these onto status codes without string matching.

ERROR CATEGORIES:
  1. Validation errors - Malformed input, rejected before any mutation
  2. Precondition errors - Wrong lifecycle state, cooldown, disabled chore
  3. Conflict errors - Concurrent double transitions (treat as handled)
  4. Authorization / not-found errors
  5. Storage errors - Persistence failures, all-or-nothing

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, chore.ErrCooldownActive) {
        var cd *chore.CooldownError
        errors.As(err, &cd)
        // cd.RemainingDays for user-facing messaging
    }

SEE ALSO:
  - lifecycle.go: Produces most of these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package chore

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a chore, assignment, or person is missing.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor fails an authorization check.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed input, before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrChoreDisabled is returned when acting on a soft-deleted chore.
	ErrChoreDisabled = errors.New("chore is disabled")

	// ErrAlreadyCompleted is returned when completing a non-Available assignment.
	ErrAlreadyCompleted = errors.New("assignment already completed")

	// ErrNotCompleted is returned when approving or rejecting an assignment
	// that is not pending approval.
	ErrNotCompleted = errors.New("assignment is not pending approval")

	// ErrCooldownActive is returned when a recurring chore's cooldown has
	// not elapsed since the last approval.
	ErrCooldownActive = errors.New("cooldown active")

	// ErrInvalidRewardValue is returned when reward resolution fails
	// (missing for a range chore, or outside the band).
	ErrInvalidRewardValue = errors.New("invalid reward value")

	// ErrEmptyReason is returned when rejecting without a reason.
	ErrEmptyReason = errors.New("rejection reason required")

	// ErrConflict is returned when a concurrent transition won the race.
	// The operation was already handled; do not retry blindly.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrDuplicateAssignment is returned when an assignment row for the
	// same (chore, assignee) pair already exists.
	ErrDuplicateAssignment = errors.New("assignment already exists for this person")

	// ErrStorage wraps persistence failures. No partial mutation occurred.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CooldownError reports how long until a recurring assignment is
// completable again.
type CooldownError struct {
	ChoreID       ChoreID
	RemainingDays int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: %d day(s) remaining", e.RemainingDays)
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

// RewardValueError reports why reward resolution failed for a range chore.
type RewardValueError struct {
	Supplied *Money
	Min      Money
	Max      Money
}

func (e *RewardValueError) Error() string {
	if e.Supplied == nil {
		return fmt.Sprintf("reward value required, must be within [%s, %s]", e.Min, e.Max)
	}
	return fmt.Sprintf("reward value %s outside [%s, %s]", *e.Supplied, e.Min, e.Max)
}

func (e *RewardValueError) Unwrap() error { return ErrInvalidRewardValue }

// StorageError wraps an underlying persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return ErrStorage }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a violated precondition, rather than an engine fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrChoreDisabled) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrNotCompleted) ||
		errors.Is(err, ErrCooldownActive) ||
		errors.Is(err, ErrInvalidRewardValue) ||
		errors.Is(err, ErrEmptyReason) ||
		errors.Is(err, ErrDuplicateAssignment)
}

// IsConflict returns true for concurrent double transitions.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
