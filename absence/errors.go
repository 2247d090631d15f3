/*
errors.go - Centralized error types for the absence core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers map categories to their own response shapes via the Is* helpers.

ERROR CATEGORIES:
  1. Validation errors - business rule violations, never retried
  2. Access errors     - role violations, surfaced distinctly
  3. Not-found errors  - missing request or employee, terminal
  Infrastructure failures from the store propagate unchanged.
*/
package absence

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDateRange is returned when start date is after end date.
	ErrInvalidDateRange = errors.New("start date must be before end date")

	// ErrOverlap is returned when a request's range intersects an existing
	// PENDING or APPROVED request for the same employee.
	ErrOverlap = errors.New("requested period overlaps an existing absence request")

	// ErrInsufficientBalance is returned when a year's debit would exceed
	// the remaining balance, or the year's balance is already exhausted.
	ErrInsufficientBalance = errors.New("insufficient vacation balance")

	// ErrNoBusinessDays is returned when a year segment contains only
	// weekends and holidays.
	ErrNoBusinessDays = errors.New("no business days in requested period")

	// ErrNoChanges is returned when an update proposes the stored state.
	ErrNoChanges = errors.New("no changes detected")

	// ErrRequestFinal is returned for any update to a REJECTED request.
	ErrRequestFinal = errors.New("request is already rejected")

	// ErrInvalidStatus is returned for transitions back to PENDING or to
	// an unknown status.
	ErrInvalidStatus = errors.New("new status is invalid")

	// ErrAccessDenied is returned for role violations.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound is returned when a request, user, or profile is missing.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError carries both numbers so callers can render
// user feedback ("you have X days, this request needs Y").
type InsufficientBalanceError struct {
	Year      int
	Balance   int
	Requested int
}

func (e *InsufficientBalanceError) Error() string {
	if e.Requested == 0 {
		return fmt.Sprintf("insufficient vacation balance for year %d", e.Year)
	}
	return fmt.Sprintf("insufficient vacation balance: %d days remaining for year %d, request is for %d business days",
		e.Balance, e.Year, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// OverlapError lists the conflicting requests.
type OverlapError struct {
	Conflicts []AbsenceRequest
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("requested period overlaps %d existing absence request(s)", len(e.Conflicts))
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// AccessDeniedError explains which role rule was violated.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string { return e.Reason }

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether the error is a rejected operation with a
// human-readable reason. Never retried automatically.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNoBusinessDays) ||
		errors.Is(err, ErrNoChanges) ||
		errors.Is(err, ErrRequestFinal) ||
		errors.Is(err, ErrInvalidStatus)
}

// IsAccessDenied reports a role violation, distinct from validation so
// callers can map to a different response category.
func IsAccessDenied(err error) bool { return errors.Is(err, ErrAccessDenied) }

// IsNotFound reports a missing request or employee.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
