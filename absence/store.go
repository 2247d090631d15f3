/*
store.go - Persistence interfaces for the absence core

PURPOSE:
  Defines the contract between the domain logic and the backing store.
  The ledger portion is APPEND-ONLY: AppendEntry is the single choke point
  for ledger mutation, and no update or delete operation exists. Balance
  is derived by the sum queries, never stored.

ATOMICITY:
  Every request mutation runs inside TxStore.WithTx. Either all ledger
  appends and status/date changes for that call commit, or none do. A
  failure in year 2 of a multi-year debit must undo appends already made
  in year 1 within the same call.

IMPLEMENTATIONS:
  - store/sqlite: production store on SQLite
  - absence/store: in-memory store for tests and dev
*/
package absence

import "context"

// Store is the persistence collaborator: CRUD on users, requests, and
// holidays plus the specific ledger queries the balance engine needs.
type Store interface {
	// --- identity (read-only) ---

	// GetUser returns ErrNotFound when the user does not exist.
	GetUser(ctx context.Context, id string) (User, error)

	// GetProfile returns the profile for a user, ErrNotFound when missing.
	GetProfile(ctx context.Context, userID string) (Profile, error)

	// --- absence requests ---

	// GetRequest returns ErrNotFound when the request does not exist.
	GetRequest(ctx context.Context, id string) (AbsenceRequest, error)

	// SaveRequest inserts a new request or updates the mutable fields
	// (dates, reason, status) of an existing one.
	SaveRequest(ctx context.Context, req *AbsenceRequest) error

	// FindOverlapping returns the employee's PENDING and APPROVED requests
	// whose [StartDate, EndDate] intersects [start, end], excluding the
	// request identified by excludeID (empty string excludes nothing).
	// REJECTED requests never count toward overlap.
	FindOverlapping(ctx context.Context, employeeID string, start, end Date, excludeID string) ([]AbsenceRequest, error)

	// ListVisible returns all APPROVED requests touching the given year
	// plus the employee's own requests for that year regardless of status.
	ListVisible(ctx context.Context, employeeID string, year int) ([]AbsenceRequest, error)

	// --- ledger (append-only) ---

	// AppendEntry adds one immutable ledger entry. No entry is ever
	// mutated or deleted; reversal appends an entry with inverted sign.
	AppendEntry(ctx context.Context, entry LedgerEntry) error

	// SumByEmployeeYear returns the derived balance, 0 when no entries exist.
	SumByEmployeeYear(ctx context.Context, employeeID string, year int) (int, error)

	// SumByRequestYear returns the request's net ledger contribution for a
	// year, the exact outstanding amount a reversal must negate.
	SumByRequestYear(ctx context.Context, requestID string, year int) (int, error)

	// AllowanceEntryExists checks for the yearly allowance credit, keyed
	// on the sentinel AllowanceDescription. Guarantees the credit is
	// posted at most once per employee/year.
	AllowanceEntryExists(ctx context.Context, employeeID string, year int) (bool, error)

	// --- bank holidays (read-only) ---

	// HolidaysBetween returns the holidays intersecting [start, end].
	HolidaysBetween(ctx context.Context, start, end Date) ([]BankHoliday, error)
}

// TxStore wraps Store with a transaction scope.
//
// WithTx executes fn against a transaction-bound Store. If fn returns an
// error the transaction is rolled back, otherwise it is committed. The
// ledger is never read outside a transaction boundary for balance-affecting
// decisions.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// AdminStore covers the writes owned by outer layers (identity provisioning
// and reference data), kept off the core Store interface on purpose.
type AdminStore interface {
	CreateUser(ctx context.Context, user User) error
	CreateProfile(ctx context.Context, profile Profile) error
	AddHoliday(ctx context.Context, holiday BankHoliday) error
}
