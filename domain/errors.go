/*
errors.go - Centralized error types for the accountability engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Engines wrap these with context; the API maps them to HTTP statuses.

ERROR CATEGORIES:
  1. StorageError     - document store read/write failed. Propagates.
  2. IntegrationError - workout/bank/habit source failed. Caught at the
                        point of use and replaced with an empty result.
  3. RuleNotFoundError - numeric lookups degrade to 0, modifier updates fail.
  4. ValidationError  - bad caller input. 400-equivalent.

USAGE:
  if errors.Is(err, domain.ErrStorage) { ... }

  var se *domain.StorageError
  if errors.As(err, &se) && se.Op == domain.OpRead { ... }

SEE ALSO:
  - reconcile/daily.go: Which step failures are swallowed
  - api/handlers.go: Status code mapping
*/
package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStorage marks any failure talking to the document store.
	ErrStorage = errors.New("storage error")

	// ErrIntegration marks a failure talking to an external signal source.
	ErrIntegration = errors.New("integration error")

	// ErrRuleNotFound is returned when a referenced rule doesn't exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrValidation marks invalid caller input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyReconciled is returned when a completed run already exists
	// for the same kind and period and the caller did not force a re-run.
	ErrAlreadyReconciled = errors.New("period already reconciled")

	// ErrPreviousRunFailed is returned to callers that asked not to retry a
	// period whose latest run failed.
	ErrPreviousRunFailed = errors.New("previous run failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type StorageOp string

const (
	OpRead  StorageOp = "read"
	OpWrite StorageOp = "write"
)

// StorageError wraps a document store failure.
type StorageError struct {
	Op         StorageOp
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// ReadError and WriteError are shorthands for adapters.
func ReadError(collection string, err error) error {
	return &StorageError{Op: OpRead, Collection: collection, Err: err}
}

func WriteError(collection string, err error) error {
	return &StorageError{Op: OpWrite, Collection: collection, Err: err}
}

// IntegrationError wraps a failure from an external source.
type IntegrationError struct {
	Source string
	Err    error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration %s: %v", e.Source, e.Err)
}

func (e *IntegrationError) Unwrap() []error { return []error{ErrIntegration, e.Err} }

// RuleNotFoundError names the missing rule.
type RuleNotFoundError struct {
	Name string
}

func (e *RuleNotFoundError) Error() string { return fmt.Sprintf("rule not found: %s", e.Name) }
func (e *RuleNotFoundError) Unwrap() error { return ErrRuleNotFound }

// ValidationError describes a missing or malformed input field.
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

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Collections whose read failures fail a whole reconciliation run.
var coreCollections = map[string]bool{
	CollectionDebts:        true,
	CollectionPunishments:  true,
	CollectionWeeklyHabits: true,
}

// IsCoreRead reports whether err is a failed read of a core aggregate.
func IsCoreRead(err error) bool {
	var se *StorageError
	if !errors.As(err, &se) {
		return false
	}
	return se.Op == OpRead && coreCollections[se.Collection]
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrAlreadyReconciled)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrRuleNotFound)
}
