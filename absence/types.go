/*
Package absence implements vacation entitlement tracking as a
double-entry-style ledger.

PURPOSE:
  Tracks each employee's vacation balance as the sum of immutable ledger
  entries, validates absence requests against that ledger and a bank-holiday
  calendar, and enforces a role-based approval workflow.

KEY CONCEPTS IN THIS FILE (types.go):
  - Date: day-granularity calendar date (ledger and request key)
  - User/Profile: identity and manager relationship (read-only here)
  - AbsenceRequest: the workflow's primary state machine
  - LedgerEntry: immutable signed transaction against an employee/year

DESIGN PRINCIPLES:
  1. Immutability: ledger entries are never modified, only reversed
  2. Derived balance: balance is always sum(amount), never a stored counter
  3. Whole days: amounts are signed integers of business days

SEE ALSO:
  - store.go: Store interfaces and append-only contract
  - balance.go: balance derivation and debit/revert algorithms
  - workflow.go: request lifecycle and role rules
*/
package absence

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date
// =============================================================================

// Date is a calendar day in UTC. All request and ledger semantics operate
// on whole days; time-of-day never participates in comparisons.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a date in ISO "2006-01-02" form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int                { return d.t.Year() }
func (d Date) Month() time.Month        { return d.t.Month() }
func (d Date) Day() int                 { return d.t.Day() }
func (d Date) Weekday() time.Weekday    { return d.t.Weekday() }
func (d Date) IsZero() bool             { return d.t.IsZero() }
func (d Date) Time() time.Time          { return d.t }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.t.Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date literal %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return NewDate(year, time.December, 31) }

func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// =============================================================================
// IDENTITY - Owned by the identity subsystem, read-only here
// =============================================================================

// User is a stable identity reference. This core never mutates users.
type User struct {
	ID    string
	Email string
}

// Profile links a user to their manager. The manager relationship is the
// sole input to role resolution.
type Profile struct {
	UserID    string
	ManagerID string // empty when the user has no manager
	FullName  string
	JobTitle  string
}

// =============================================================================
// ABSENCE REQUEST - Primary state machine
// =============================================================================

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED" // final: no further transitions
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// AbsenceRequest is an employee's request for a date range of vacation.
// Invariant: StartDate <= EndDate for any persisted request.
// Dates and reason are mutable only while PENDING and only by the owner.
type AbsenceRequest struct {
	ID         string
	EmployeeID string
	StartDate  Date
	EndDate    Date
	Reason     string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Years returns the calendar years spanned by the request, in order.
// A request may straddle a year boundary; each year is debited independently.
func (r *AbsenceRequest) Years() []int {
	var years []int
	for y := r.StartDate.Year(); y <= r.EndDate.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// SegmentForYear clips the request's range to the given calendar year.
func (r *AbsenceRequest) SegmentForYear(year int) (Date, Date) {
	return MaxDate(r.StartDate, StartOfYear(year)), MinDate(r.EndDate, EndOfYear(year))
}

// Same reports whether the proposed field values match the stored request.
// Used to reject no-op updates.
func (r *AbsenceRequest) Same(start, end Date, reason string, status Status) bool {
	return r.StartDate.Equal(start) &&
		r.EndDate.Equal(end) &&
		r.Reason == reason &&
		r.Status == status
}

// =============================================================================
// LEDGER ENTRY - Immutable signed transaction
// =============================================================================

// LedgerEntry records one signed balance change for an employee/year.
//
// INVARIANT: entries are append-only. Corrections happen via reversal
// entries with inverted sign, never via update or delete. Balance is always
// the sum over entries, never a stored field.
type LedgerEntry struct {
	ID          string
	EmployeeID  string
	RequestID   string // empty for allowance credits
	Year        int
	Amount      int // positive = credit, negative = debit
	Description string
	CreatedAt   time.Time
}

// AllowanceDescription is the sentinel description of the once-per-year
// allowance credit. AllowanceEntryExists keys on it.
const AllowanceDescription = "Yearly vacation allowance"

// ReversalDescription tags compensating credits that zero out a request's
// net ledger contribution.
const ReversalDescription = "Absence request rejected or modified"

// DefaultYearlyAllowance is the fixed vacation credit granted lazily, once
// per employee per year.
const DefaultYearlyAllowance = 25

// =============================================================================
// BANK HOLIDAY - Static reference data
// =============================================================================

type BankHoliday struct {
	Date Date
	Name string
}
