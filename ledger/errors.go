/*
errors.go - Centralized error taxonomy for the ledger core

PURPOSE:
  All error categories in one place. Callers classify errors with the
  Is* helpers; the HTTP layer maps categories to status codes without
  inspecting messages.

CATEGORIES:
  ErrValidation        malformed or out-of-range input          (400)
  ErrNotFound          referenced record absent or not owned    (404)
  ErrUnauthorized      identity check failure                   (401)
  ErrConflict          uniqueness violation                     (409)
  ErrTransientStorage  timeout/contention, retryable            (503)
  ErrInternal          unexpected failure                       (500)

USAGE:
  Structured errors wrap sentinels:

    if errors.Is(err, ledger.ErrNotFound) { ... }

SEE ALSO:
  - applier.go, report.go: producers of these errors
  - api/handlers.go: status-code mapping
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
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConflict         = errors.New("conflict")
	ErrTransientStorage = errors.New("transient storage failure")
	ErrInternal         = errors.New("internal error")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports invalid input before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing record, or one owned by a different user.
// Ownership failures intentionally look identical to absence: callers must
// not be able to probe for other users' records.
type NotFoundError struct {
	Kind string // "account", "transaction", "category"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a uniqueness violation (e.g. duplicate account name).
type ConflictError struct {
	Kind   string
	Detail string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Kind, e.Detail)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrTransientStorage) }
