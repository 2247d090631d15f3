/*
workflow_test.go - Request workflow behavior tests

Covers the state machine, the owner/manager role rules, overlap detection,
and the transactional revert-then-redebit date change path.
*/
package absence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/absence-engine/absence"
	memstore "github.com/warp/absence-engine/absence/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestService(t *testing.T) (*absence.Service, *memstore.TxMemory) {
	t.Helper()
	st := memstore.NewTxMemory()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return absence.NewService(st, 25, log), st
}

// seedEmployee registers an employee, their manager, and both profiles.
func seedEmployee(t *testing.T, st *memstore.TxMemory, employeeID, managerID string) {
	t.Helper()
	ctx := context.Background()

	if managerID != "" {
		if err := st.CreateUser(ctx, absence.User{ID: managerID, Email: managerID + "@example.com"}); err != nil {
			t.Fatalf("seed manager: %v", err)
		}
		if err := st.CreateProfile(ctx, absence.Profile{UserID: managerID}); err != nil {
			t.Fatalf("seed manager profile: %v", err)
		}
	}
	if err := st.CreateUser(ctx, absence.User{ID: employeeID, Email: employeeID + "@example.com"}); err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	if err := st.CreateProfile(ctx, absence.Profile{UserID: employeeID, ManagerID: managerID}); err != nil {
		t.Fatalf("seed employee profile: %v", err)
	}
}

func addHoliday(t *testing.T, st *memstore.TxMemory, day absence.Date, name string) {
	t.Helper()
	if err := st.AddHoliday(context.Background(), absence.BankHoliday{Date: day, Name: name}); err != nil {
		t.Fatalf("seed holiday: %v", err)
	}
}

func date(year int, month time.Month, day int) absence.Date {
	return absence.NewDate(year, month, day)
}

func countAllowanceEntries(st *memstore.TxMemory, employeeID string, year int) int {
	n := 0
	for _, e := range st.Entries() {
		if e.EmployeeID == employeeID && e.Year == year && e.Description == absence.AllowanceDescription {
			n++
		}
	}
	return n
}

func sumForRequestYear(st *memstore.TxMemory, requestID string, year int) int {
	sum := 0
	for _, e := range st.Entries() {
		if e.RequestID == requestID && e.Year == year {
			sum += e.Amount
		}
	}
	return sum
}

func balanceOf(t *testing.T, svc *absence.Service, employeeID string, year int) int {
	t.Helper()
	summary, err := svc.Balance(context.Background(), employeeID, year)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	return summary.Balance
}

// asFields lifts a stored request into the desired-state shape for updates.
func asFields(req absence.AbsenceRequest) absence.UpdateFields {
	return absence.UpdateFields{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
		Status:    req.Status,
	}
}

// =============================================================================
// OVERLAP DETECTION
// =============================================================================

func TestOverlap_RejectsIntersectingRequests(t *testing.T) {
	// GIVEN: an existing PENDING request Mon..Fri
	// WHEN: a second request intersects it from either side
	// THEN: both directions are rejected (overlap is symmetric)

	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	if _, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "first"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	cases := []struct {
		name       string
		start, end absence.Date
	}{
		{"starts inside", date(2025, time.June, 4), date(2025, time.June, 10)},
		{"ends inside", date(2025, time.May, 28), date(2025, time.June, 3)},
		{"contains", date(2025, time.May, 26), date(2025, time.June, 13)},
		{"contained", date(2025, time.June, 3), date(2025, time.June, 5)},
		{"same range", date(2025, time.June, 2), date(2025, time.June, 6)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "emp-1", tc.start, tc.end, "second")
			if !errors.Is(err, absence.ErrOverlap) {
				t.Fatalf("expected ErrOverlap, got %v", err)
			}
		})
	}
}

func TestOverlap_IgnoresRejectedAndAdjacent(t *testing.T) {
	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	first, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "first")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Adjacent (following Monday) does not overlap.
	if _, err := svc.Create(ctx, "emp-1", date(2025, time.June, 9), date(2025, time.June, 10), "adjacent"); err != nil {
		t.Fatalf("adjacent request should not conflict: %v", err)
	}

	// Owner rejects the first request; its range is free again.
	rejected := asFields(first)
	rejected.Status = absence.StatusRejected
	if _, err := svc.Update(ctx, first.ID, "emp-1", rejected); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if _, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "retry"); err != nil {
		t.Fatalf("rejected requests must not count toward overlap: %v", err)
	}
}

func TestOverlap_ExcludesSelfWhenEditing(t *testing.T) {
	// GIVEN: a PENDING request
	// WHEN: the owner shifts its dates to a window overlapping the original
	// THEN: the request does not conflict with itself

	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	moved := asFields(req)
	moved.StartDate = date(2025, time.June, 3)
	moved.EndDate = date(2025, time.June, 9)
	if _, err := svc.Update(ctx, req.ID, "emp-1", moved); err != nil {
		t.Fatalf("self-overlapping edit should pass: %v", err)
	}
}

// =============================================================================
// STATE MACHINE GUARDS
// =============================================================================

func TestUpdate_RejectsNoOp(t *testing.T) {
	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = svc.Update(ctx, req.ID, "emp-1", asFields(req))
	if !errors.Is(err, absence.ErrNoChanges) {
		t.Fatalf("expected ErrNoChanges, got %v", err)
	}
}

func TestUpdate_RejectedIsFinal(t *testing.T) {
	// GIVEN: a REJECTED request
	// THEN: no further transition is permitted, not even by the manager

	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	fields := asFields(req)
	fields.Status = absence.StatusRejected
	if _, err := svc.Update(ctx, req.ID, "mgr-1", fields); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	fields.Status = absence.StatusApproved
	_, err = svc.Update(ctx, req.ID, "mgr-1", fields)
	if !errors.Is(err, absence.ErrRequestFinal) {
		t.Fatalf("expected ErrRequestFinal, got %v", err)
	}
}

func TestUpdate_CannotResetToPending(t *testing.T) {
	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	fields := asFields(req)
	fields.Status = absence.StatusApproved
	if _, err := svc.Update(ctx, req.ID, "mgr-1", fields); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	fields.Status = absence.StatusPending
	_, err = svc.Update(ctx, req.ID, "mgr-1", fields)
	if !errors.Is(err, absence.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdate_UnknownRequest(t *testing.T) {
	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")

	_, err := svc.Update(context.Background(), "missing", "emp-1", absence.UpdateFields{
		StartDate: date(2025, time.June, 2),
		EndDate:   date(2025, time.June, 6),
		Status:    absence.StatusPending,
	})
	if !absence.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

// =============================================================================
// MANAGER PATH
// =============================================================================

func TestManager_ApproveKeepsDebit(t *testing.T) {
	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	fields := asFields(req)
	fields.Status = absence.StatusApproved
	updated, err := svc.Update(ctx, req.ID, "mgr-1", fields)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if updated.Status != absence.StatusApproved {
		t.Errorf("expected APPROVED, got %s", updated.Status)
	}

	// Approval has no ledger effect; the debit already stands.
	if got := balanceOf(t, svc, "emp-1", 2025); got != 20 {
		t.Errorf("expected balance 20 after approval, got %d", got)
	}
}

func TestManager_RejectRevertsLedger(t *testing.T) {
	// GIVEN: a debited request
	// WHEN: the manager rejects it
	// THEN: a compensating credit restores the balance, history preserved

	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	fields := asFields(req)
	fields.Status = absence.StatusRejected
	if _, err := svc.Update(ctx, req.ID, "mgr-1", fields); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if got := balanceOf(t, svc, "emp-1", 2025); got != 25 {
		t.Errorf("expected balance restored to 25, got %d", got)
	}
	if net := sumForRequestYear(st, req.ID, 2025); net != 0 {
		t.Errorf("expected net request contribution 0, got %d", net)
	}
	// -5 debit and +5 reversal both remain in the ledger.
	if n := len(st.Entries()); n != 3 {
		t.Errorf("expected 3 entries (+25, -5, +5), got %d", n)
	}
}

func TestManager_CannotChangeDates(t *testing.T) {
	// GIVEN: a manager update changing both status and dates
	// THEN: AccessDenied, and neither ledger nor status change persists

	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	entriesBefore := len(st.Entries())

	fields := asFields(req)
	fields.Status = absence.StatusApproved
	fields.EndDate = date(2025, time.June, 9)
	_, err = svc.Update(ctx, req.ID, "mgr-1", fields)
	if !absence.IsAccessDenied(err) {
		t.Fatalf("expected access denied, got %v", err)
	}

	stored, err := st.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != absence.StatusPending || !stored.EndDate.Equal(req.EndDate) {
		t.Errorf("request must be unchanged, got status=%s end=%s", stored.Status, stored.EndDate)
	}
	if n := len(st.Entries()); n != entriesBefore {
		t.Errorf("ledger must be unchanged, had %d entries, got %d", entriesBefore, n)
	}
}

func TestManager_CannotSetPending(t *testing.T) {
	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Status stays PENDING but the reason differs, so the update is not a
	// no-op; the manager path must still refuse it.
	fields := asFields(req)
	fields.Reason = "edited by manager"
	_, err = svc.Update(ctx, req.ID, "mgr-1", fields)
	if !absence.IsAccessDenied(err) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

// =============================================================================
// OWNER PATH
// =============================================================================

func TestOwner_CannotSelfApprove(t *testing.T) {
	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	fields := asFields(req)
	fields.Status = absence.StatusApproved
	_, err = svc.Update(ctx, req.ID, "emp-1", fields)
	if !absence.IsAccessDenied(err) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestOwner_CanOnlyEditPending(t *testing.T) {
	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	fields := asFields(req)
	fields.Status = absence.StatusApproved
	if _, err := svc.Update(ctx, req.ID, "mgr-1", fields); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	fields.Status = absence.StatusApproved
	fields.Reason = "changed my mind"
	_, err = svc.Update(ctx, req.ID, "emp-1", fields)
	if !errors.Is(err, absence.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestOwner_UpdatesReason(t *testing.T) {
	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	entriesBefore := len(st.Entries())

	fields := asFields(req)
	fields.Reason = "family visit"
	updated, err := svc.Update(ctx, req.ID, "emp-1", fields)
	if err != nil {
		t.Fatalf("reason update failed: %v", err)
	}
	if updated.Reason != "family visit" {
		t.Errorf("expected updated reason, got %q", updated.Reason)
	}
	if n := len(st.Entries()); n != entriesBefore {
		t.Errorf("reason change must not touch the ledger, had %d entries, got %d", entriesBefore, n)
	}
}

func TestOwner_RejectsOwnRequest(t *testing.T) {
	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "trip")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	fields := asFields(req)
	fields.Status = absence.StatusRejected
	updated, err := svc.Update(ctx, req.ID, "emp-1", fields)
	if err != nil {
		t.Fatalf("self-reject failed: %v", err)
	}
	if updated.Status != absence.StatusRejected {
		t.Errorf("expected REJECTED, got %s", updated.Status)
	}
	if got := balanceOf(t, svc, "emp-1", 2025); got != 25 {
		t.Errorf("expected balance restored to 25, got %d", got)
	}
}

func TestOwner_ShrinksDatesWithReversalAndRedebit(t *testing.T) {
	// GIVEN: a debited 24-business-day request (2025-06-02 .. 2025-07-03)
	// WHEN: the owner shrinks it to 23 days (end 2025-07-02)
	// THEN: one reversal of +24 and one new debit of -23 are appended;
	//       net balance increases by 1

	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.July, 3), "sabbatical")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	before := balanceOf(t, svc, "emp-1", 2025)
	if before != 1 {
		t.Fatalf("expected balance 1 after 24-day debit, got %d", before)
	}

	fields := asFields(req)
	fields.EndDate = date(2025, time.July, 2)
	if _, err := svc.Update(ctx, req.ID, "emp-1", fields); err != nil {
		t.Fatalf("shrink failed: %v", err)
	}

	if got := balanceOf(t, svc, "emp-1", 2025); got != before+1 {
		t.Errorf("expected balance %d, got %d", before+1, got)
	}

	var reversal, redebit bool
	for _, e := range st.Entries() {
		if e.RequestID != req.ID {
			continue
		}
		switch e.Amount {
		case 24:
			reversal = true
		case -23:
			redebit = true
		}
	}
	if !reversal || !redebit {
		t.Errorf("expected +24 reversal and -23 debit entries, got reversal=%v redebit=%v", reversal, redebit)
	}
}

func TestOwner_FailedDateChangeRollsBackAtomically(t *testing.T) {
	// GIVEN: a debited request
	// WHEN: the owner moves it onto an overlapping second request
	// THEN: the whole update fails and neither dates nor ledger change

	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	ctx := context.Background()

	if _, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "first"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.Create(ctx, "emp-1", date(2025, time.June, 9), date(2025, time.June, 13), "second")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	entriesBefore := len(st.Entries())

	fields := asFields(second)
	fields.StartDate = date(2025, time.June, 4)
	fields.EndDate = date(2025, time.June, 10)
	_, err = svc.Update(ctx, second.ID, "emp-1", fields)
	if !errors.Is(err, absence.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}

	stored, err := st.GetRequest(ctx, second.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !stored.StartDate.Equal(second.StartDate) || !stored.EndDate.Equal(second.EndDate) {
		t.Errorf("dates must be unchanged, got [%s, %s]", stored.StartDate, stored.EndDate)
	}
	if n := len(st.Entries()); n != entriesBefore {
		t.Errorf("ledger must be unchanged, had %d entries, got %d", entriesBefore, n)
	}
}

// =============================================================================
// VISIBILITY
// =============================================================================

func TestListVisible_ApprovedPlusOwn(t *testing.T) {
	// GIVEN: emp-1 has a PENDING request, emp-2 has one APPROVED and one
	//        PENDING request, all in 2025
	// THEN: emp-1 sees their own plus emp-2's APPROVED one only

	svc, st := newTestService(t)
	seedEmployee(t, st, "emp-1", "mgr-1")
	seedEmployee(t, st, "emp-2", "mgr-1")
	ctx := context.Background()

	mine, err := svc.Create(ctx, "emp-1", date(2025, time.June, 2), date(2025, time.June, 6), "mine")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	theirsApproved, err := svc.Create(ctx, "emp-2", date(2025, time.July, 7), date(2025, time.July, 11), "theirs")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	fields := asFields(theirsApproved)
	fields.Status = absence.StatusApproved
	if _, err := svc.Update(ctx, theirsApproved.ID, "mgr-1", fields); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if _, err := svc.Create(ctx, "emp-2", date(2025, time.August, 4), date(2025, time.August, 8), "theirs pending"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	visible, err := svc.ListVisible(ctx, "emp-1", 2025)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible requests, got %d", len(visible))
	}

	ids := map[string]bool{}
	for _, r := range visible {
		ids[r.ID] = true
	}
	if !ids[mine.ID] || !ids[theirsApproved.ID] {
		t.Errorf("expected own + approved requests, got %v", ids)
	}
}
