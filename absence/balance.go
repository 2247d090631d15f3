/*
balance.go - Balance derivation and the validate-and-post debit algorithm

PURPOSE:
  The Engine derives balances from the ledger and posts debits/reversals.
  It always operates on a transaction-scoped Store handed in by the
  workflow; it never opens its own transaction.

LAZY ALLOWANCE:
  The first balance query of a new year posts the fixed yearly allowance
  credit, keyed by the sentinel-description existence check so it happens
  at most once. Subsequent queries are pure reads.

MULTI-YEAR SPLIT:
  A request straddling a year boundary is validated and debited per
  calendar year. Appends happen as each year validates; the surrounding
  transaction makes the whole operation all-or-nothing.
*/
package absence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Engine computes balances and posts ledger transactions.
type Engine struct {
	Allowance int // fixed yearly credit, in business days
	Log       logrus.FieldLogger
}

func NewEngine(allowance int, log logrus.FieldLogger) *Engine {
	if allowance <= 0 {
		allowance = DefaultYearlyAllowance
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{Allowance: allowance, Log: log}
}

// Balance returns the employee's derived balance for a year, posting the
// yearly allowance credit first if the books for that year are not open yet.
func (e *Engine) Balance(ctx context.Context, store Store, employeeID string, year int) (int, error) {
	exists, err := store.AllowanceEntryExists(ctx, employeeID, year)
	if err != nil {
		return 0, err
	}
	if !exists {
		if err := e.record(ctx, store, employeeID, "", year, e.Allowance, AllowanceDescription); err != nil {
			return 0, err
		}
		e.Log.WithFields(logrus.Fields{
			"employee": employeeID,
			"year":     year,
			"amount":   e.Allowance,
		}).Info("posted yearly allowance credit")
	}

	return store.SumByEmployeeYear(ctx, employeeID, year)
}

// DebitForRequest validates the request against the ledger and the overlap
// rule, then posts one debit per spanned year.
//
// Validation order per year:
//  1. balance <= 0 rejects the year outright, even for a tiny segment
//  2. the segment must contain at least one business day
//  3. the segment's business days must not exceed the remaining balance
//
// Appends interleave with validation; the caller's transaction rolls back
// earlier years when a later year fails.
func (e *Engine) DebitForRequest(ctx context.Context, store Store, req *AbsenceRequest) error {
	if req.StartDate.After(req.EndDate) {
		return ErrInvalidDateRange
	}

	conflicts, err := store.FindOverlapping(ctx, req.EmployeeID, req.StartDate, req.EndDate, req.ID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &OverlapError{Conflicts: conflicts}
	}

	for _, year := range req.Years() {
		balance, err := e.Balance(ctx, store, req.EmployeeID, year)
		if err != nil {
			return err
		}
		if balance <= 0 {
			return &InsufficientBalanceError{Year: year, Balance: balance}
		}

		segmentStart, segmentEnd := req.SegmentForYear(year)

		holidays, err := store.HolidaysBetween(ctx, segmentStart, segmentEnd)
		if err != nil {
			return err
		}

		requested, err := BusinessDays(segmentStart, segmentEnd, NewHolidaySet(holidays))
		if err != nil {
			return err
		}
		if requested <= 0 {
			return fmt.Errorf("%w for year %d", ErrNoBusinessDays, year)
		}
		if requested > balance {
			return &InsufficientBalanceError{Year: year, Balance: balance, Requested: requested}
		}

		description := fmt.Sprintf("Absence request submitted (%s to %s)", req.StartDate, req.EndDate)
		if err := e.record(ctx, store, req.EmployeeID, req.ID, year, -requested, description); err != nil {
			return err
		}

		e.Log.WithFields(logrus.Fields{
			"employee": req.EmployeeID,
			"request":  req.ID,
			"year":     year,
			"debited":  requested,
		}).Info("posted absence debit")
	}

	return nil
}

// RevertForRequest zeroes out the request's net ledger contribution for
// each spanned year by appending a compensating credit, preserving history.
func (e *Engine) RevertForRequest(ctx context.Context, store Store, req *AbsenceRequest) error {
	for _, year := range req.Years() {
		outstanding, err := store.SumByRequestYear(ctx, req.ID, year)
		if err != nil {
			return err
		}
		if outstanding == 0 {
			continue
		}
		if err := e.record(ctx, store, req.EmployeeID, req.ID, year, -outstanding, ReversalDescription); err != nil {
			return err
		}

		e.Log.WithFields(logrus.Fields{
			"employee": req.EmployeeID,
			"request":  req.ID,
			"year":     year,
			"reversed": -outstanding,
		}).Info("posted absence reversal")
	}
	return nil
}

// record appends a single ledger entry. The only path that writes the ledger.
func (e *Engine) record(ctx context.Context, store Store, employeeID, requestID string, year, amount int, description string) error {
	return store.AppendEntry(ctx, LedgerEntry{
		ID:          uuid.NewString(),
		EmployeeID:  employeeID,
		RequestID:   requestID,
		Year:        year,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	})
}
