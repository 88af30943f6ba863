/*
errors.go - Centralized error types for the vacation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Services wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - Shape, calendar and capacity rule violations.
     Expected outcomes, always returned together as one list.
  2. Not-found errors - Missing employee-year or settings; terminal.
  3. Engine invariant errors - Malformed splitSpec, bad input; fail fast.
  4. Store errors - Database-level failures, never classified as client errors.

USAGE:
    if errors.Is(err, generic.ErrValidationFailed) {
        var verr *generic.ValidationError
        errors.As(err, &verr)
        // show verr.Messages()
    }

SEE ALSO:
  - vacation/validator.go: produces Problems
  - api/handlers.go: maps errors to HTTP status
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmployeeNotFound is returned when no employee exists for a
	// (registration-id, reference-year) pair.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrSettingsNotFound is returned when the quota record was never written.
	ErrSettingsNotFound = errors.New("settings not found")

	// ErrDuplicateEmployee is returned when (registration-id, reference-year)
	// already exists.
	ErrDuplicateEmployee = errors.New("employee already registered for this reference year")

	// ErrInvalidEmployee is returned when employee input is incomplete.
	ErrInvalidEmployee = errors.New("invalid employee")

	// ErrInvalidSettings is returned when a quota record is malformed.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrIncompleteSettings is returned when the stored settings record lacks
	// a group quota. It is a server fault, never a client one.
	ErrIncompleteSettings = errors.New("stored settings are incomplete")

	// ErrUnknownCategory is returned for a category outside the six known ones.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInvalidSplitSpec is an engine invariant violation: the split pattern
	// itself is malformed, as opposed to periods not matching it.
	ErrInvalidSplitSpec = errors.New("invalid split spec")

	// ErrInvalidPeriod is returned when a period is malformed: end before
	// start, or longer than MaxRangeDays.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrValidationFailed is the sentinel behind every ValidationError.
	ErrValidationFailed = errors.New("vacation validation failed")

	// ErrAlreadyBooked is returned by the create path when the employee-year
	// already holds periods; changes go through the edit path.
	ErrAlreadyBooked = errors.New("vacation already booked for this reference year")

	// ErrInvalidMigration is returned for a migration onto the same year.
	ErrInvalidMigration = errors.New("source and target year must differ")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ProblemKind classifies a business-rule rejection.
type ProblemKind string

const (
	ProblemShape    ProblemKind = "shape"
	ProblemCalendar ProblemKind = "calendar"
	ProblemCapacity ProblemKind = "capacity"
)

// Problem is one accumulated rule violation. Period is the 1-based position
// of the offending period as supplied, or 0 for request-level problems.
type Problem struct {
	Kind    ProblemKind `json:"kind"`
	Period  int         `json:"period,omitempty"`
	Message string      `json:"message"`
}

// ValidationError carries the complete problem list of a rejected request.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(e.Messages(), "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// Messages returns the problem messages in accumulation order.
func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.Message
	}
	return out
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrInvalidSplitSpec) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidEmployee) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrInvalidMigration) ||
		errors.Is(err, ErrDuplicateEmployee) ||
		errors.Is(err, ErrAlreadyBooked)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrSettingsNotFound)
}
