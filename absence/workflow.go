/*
workflow.go - Absence request lifecycle and role-gated state machine

PURPOSE:
  Orchestrates creation and update of absence requests. Each mutation runs
  as one atomic transaction: the request row and its ledger backing commit
  together or not at all.

STATE MACHINE:
  PENDING (initial) -> APPROVED (manager)   terminal for the approval path
  PENDING           -> REJECTED             terminal, no further transitions
  APPROVED          -> REJECTED (manager)   reverts the standing debit

ROLE RULES:
  Manager: may change only status (APPROVED or REJECTED, never PENDING);
           dates and reason are immutable to the manager.
  Owner:   may edit reason and dates while PENDING; may reject their own
           request; may never approve it.

DATE CHANGES:
  An owner date change is a debit-replace: revert the old debit for the
  full old range, apply the new dates, re-run the full validate-and-post.
  Both halves share the transaction, so a failed re-debit leaves neither
  dates nor ledger partially changed.
*/
package absence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service exposes the absence core to its callers.
type Service struct {
	store  TxStore
	engine *Engine
	roles  *RoleResolver
	log    logrus.FieldLogger
}

func NewService(store TxStore, allowance int, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:  store,
		engine: NewEngine(allowance, log),
		roles:  NewRoleResolver(store),
		log:    log,
	}
}

// Roles returns the resolver for read-path role checks.
func (s *Service) Roles() *RoleResolver { return s.roles }

// Allowance returns the fixed yearly credit.
func (s *Service) Allowance() int { return s.engine.Allowance }

// =============================================================================
// CREATE
// =============================================================================

// Create persists a new PENDING request for the employee and posts its
// debit. If debit validation fails the whole creation rolls back; no
// orphan PENDING request survives without its ledger backing.
func (s *Service) Create(ctx context.Context, employeeID string, start, end Date, reason string) (AbsenceRequest, error) {
	// Range order is checked before the insert so an inverted range
	// surfaces as a validation error on every store, not as the SQL
	// store's CHECK constraint firing inside the transaction.
	if start.After(end) {
		return AbsenceRequest{}, ErrInvalidDateRange
	}

	if _, err := s.store.GetUser(ctx, employeeID); err != nil {
		return AbsenceRequest{}, err
	}

	now := time.Now().UTC()
	req := AbsenceRequest{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		StartDate:  start,
		EndDate:    end,
		Reason:     reason,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveRequest(ctx, &req); err != nil {
			return err
		}
		return s.engine.DebitForRequest(ctx, tx, &req)
	})
	if err != nil {
		return AbsenceRequest{}, err
	}

	s.log.WithFields(logrus.Fields{
		"employee": employeeID,
		"request":  req.ID,
		"start":    start.String(),
		"end":      end.String(),
	}).Info("absence request created")

	return req, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateFields carries the desired state of an update. All fields are
// required; the workflow diffs them against the stored request.
type UpdateFields struct {
	StartDate Date
	EndDate   Date
	Reason    string
	Status    Status
}

// Update applies a role-gated modification to a request. The acting user's
// role is always resolved fresh; the role cache never gates a mutation.
func (s *Service) Update(ctx context.Context, requestID, actingUserID string, desired UpdateFields) (AbsenceRequest, error) {
	role, err := s.roles.ResolveFresh(ctx, requestID, actingUserID)
	if err != nil {
		return AbsenceRequest{}, err
	}

	if !desired.Status.Valid() {
		return AbsenceRequest{}, ErrInvalidStatus
	}

	var updated AbsenceRequest
	err = s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}

		if existing.Same(desired.StartDate, desired.EndDate, desired.Reason, desired.Status) {
			return ErrNoChanges
		}
		if existing.Status == StatusRejected {
			return ErrRequestFinal
		}
		// Cannot un-approve or un-reject by resetting to pending.
		if desired.Status == StatusPending && existing.Status != StatusPending {
			return ErrInvalidStatus
		}

		switch role {
		case RoleManager:
			updated, err = s.managerUpdate(ctx, tx, existing, desired)
		default:
			updated, err = s.ownerUpdate(ctx, tx, existing, desired)
		}
		return err
	})
	if err != nil {
		return AbsenceRequest{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request": requestID,
		"actor":   actingUserID,
		"role":    string(role),
		"status":  string(updated.Status),
	}).Info("absence request updated")

	return updated, nil
}

// managerUpdate lets a manager approve or reject. Dates are immutable to
// the manager; rejecting reverts the standing debit.
func (s *Service) managerUpdate(ctx context.Context, tx Store, existing AbsenceRequest, desired UpdateFields) (AbsenceRequest, error) {
	if !desired.StartDate.Equal(existing.StartDate) || !desired.EndDate.Equal(existing.EndDate) {
		return AbsenceRequest{}, &AccessDeniedError{Reason: "managers cannot change the dates of an absence request"}
	}
	if desired.Status == StatusPending {
		return AbsenceRequest{}, &AccessDeniedError{Reason: "managers cannot change status to PENDING"}
	}

	return s.applyStatusChange(ctx, tx, existing, desired.Status)
}

// ownerUpdate lets the request owner edit a PENDING request. Status change
// takes priority over a simultaneous date change.
func (s *Service) ownerUpdate(ctx context.Context, tx Store, existing AbsenceRequest, desired UpdateFields) (AbsenceRequest, error) {
	if existing.Status != StatusPending {
		return AbsenceRequest{}, fmt.Errorf("%w: only PENDING requests can be updated by the owner", ErrInvalidStatus)
	}
	if desired.Status == StatusApproved {
		return AbsenceRequest{}, &AccessDeniedError{Reason: "employees cannot approve their own requests"}
	}

	if desired.Reason != existing.Reason {
		existing.Reason = desired.Reason
	}

	if desired.Status == StatusRejected {
		return s.applyStatusChange(ctx, tx, existing, StatusRejected)
	}

	datesChanged := !desired.StartDate.Equal(existing.StartDate) || !desired.EndDate.Equal(existing.EndDate)
	if datesChanged {
		// Debit-replace: credit back the old range, then validate and
		// debit the new one inside the same transaction.
		if err := s.engine.RevertForRequest(ctx, tx, &existing); err != nil {
			return AbsenceRequest{}, err
		}

		existing.StartDate = desired.StartDate
		existing.EndDate = desired.EndDate

		if err := s.engine.DebitForRequest(ctx, tx, &existing); err != nil {
			return AbsenceRequest{}, err
		}
	}

	existing.UpdatedAt = time.Now().UTC()
	if err := tx.SaveRequest(ctx, &existing); err != nil {
		return AbsenceRequest{}, err
	}
	return existing, nil
}

// applyStatusChange persists a status transition, reverting the ledger
// first when the request is being rejected. Approval has no ledger effect;
// the debit already stands.
func (s *Service) applyStatusChange(ctx context.Context, tx Store, existing AbsenceRequest, newStatus Status) (AbsenceRequest, error) {
	if newStatus == StatusRejected {
		if err := s.engine.RevertForRequest(ctx, tx, &existing); err != nil {
			return AbsenceRequest{}, err
		}
	}

	existing.Status = newStatus
	existing.UpdatedAt = time.Now().UTC()
	if err := tx.SaveRequest(ctx, &existing); err != nil {
		return AbsenceRequest{}, err
	}
	return existing, nil
}

// =============================================================================
// READS
// =============================================================================

// BalanceSummary is the caller-facing balance view for one employee/year.
type BalanceSummary struct {
	Year            int
	Allowance       int
	Balance         int
	NextYearBalance int
}

// Balance returns the employee's current and next-year balances. The first
// call for a year opens the books by posting the allowance credit, so this
// runs inside a transaction like every balance-affecting read.
func (s *Service) Balance(ctx context.Context, employeeID string, year int) (BalanceSummary, error) {
	if _, err := s.store.GetUser(ctx, employeeID); err != nil {
		return BalanceSummary{}, err
	}

	var summary BalanceSummary
	err := s.store.WithTx(ctx, func(tx Store) error {
		balance, err := s.engine.Balance(ctx, tx, employeeID, year)
		if err != nil {
			return err
		}
		nextYear, err := s.engine.Balance(ctx, tx, employeeID, year+1)
		if err != nil {
			return err
		}
		summary = BalanceSummary{
			Year:            year,
			Allowance:       s.engine.Allowance,
			Balance:         balance,
			NextYearBalance: nextYear,
		}
		return nil
	})
	return summary, err
}

// ListVisible returns all APPROVED requests for the year plus the acting
// user's own requests regardless of status.
func (s *Service) ListVisible(ctx context.Context, actingUserID string, year int) ([]AbsenceRequest, error) {
	if _, err := s.store.GetUser(ctx, actingUserID); err != nil {
		return nil, err
	}
	return s.store.ListVisible(ctx, actingUserID, year)
}
