// Package store provides an in-memory Store implementation for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/absence-engine/absence"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	users    map[string]absence.User
	profiles map[string]absence.Profile
	requests map[string]absence.AbsenceRequest
	entries  []absence.LedgerEntry
	holidays map[absence.Date]absence.BankHoliday
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]absence.User),
		profiles: make(map[string]absence.Profile),
		requests: make(map[string]absence.AbsenceRequest),
		holidays: make(map[absence.Date]absence.BankHoliday),
	}
}

// --- identity ---

func (m *Memory) GetUser(_ context.Context, id string) (absence.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return absence.User{}, absence.ErrNotFound
	}
	return user, nil
}

func (m *Memory) GetProfile(_ context.Context, userID string) (absence.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return absence.Profile{}, absence.ErrNotFound
	}
	return profile, nil
}

// --- requests ---

func (m *Memory) GetRequest(_ context.Context, id string) (absence.AbsenceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(id)
}

func (m *Memory) getRequestLocked(id string) (absence.AbsenceRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return absence.AbsenceRequest{}, absence.ErrNotFound
	}
	return req, nil
}

func (m *Memory) SaveRequest(_ context.Context, req *absence.AbsenceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = *req
	return nil
}

func (m *Memory) FindOverlapping(_ context.Context, employeeID string, start, end absence.Date, excludeID string) ([]absence.AbsenceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []absence.AbsenceRequest
	for _, req := range m.requests {
		if req.EmployeeID != employeeID || req.ID == excludeID {
			continue
		}
		if req.Status != absence.StatusPending && req.Status != absence.StatusApproved {
			continue
		}
		// Closed-interval intersection test.
		if req.StartDate.BeforeOrEqual(end) && req.EndDate.AfterOrEqual(start) {
			result = append(result, req)
		}
	}
	sortRequests(result)
	return result, nil
}

func (m *Memory) ListVisible(_ context.Context, employeeID string, year int) ([]absence.AbsenceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []absence.AbsenceRequest
	for _, req := range m.requests {
		touchesYear := req.StartDate.Year() == year || req.EndDate.Year() == year
		if !touchesYear {
			continue
		}
		if req.Status == absence.StatusApproved || req.EmployeeID == employeeID {
			result = append(result, req)
		}
	}
	sortRequests(result)
	return result, nil
}

func sortRequests(reqs []absence.AbsenceRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].StartDate.Equal(reqs[j].StartDate) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].StartDate.Before(reqs[j].StartDate)
	})
}

// --- ledger (append-only) ---

func (m *Memory) AppendEntry(_ context.Context, entry absence.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Memory) SumByEmployeeYear(_ context.Context, employeeID string, year int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := 0
	for _, e := range m.entries {
		if e.EmployeeID == employeeID && e.Year == year {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (m *Memory) SumByRequestYear(_ context.Context, requestID string, year int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := 0
	for _, e := range m.entries {
		if e.RequestID == requestID && e.Year == year {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (m *Memory) AllowanceEntryExists(_ context.Context, employeeID string, year int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.EmployeeID == employeeID && e.Year == year && e.Description == absence.AllowanceDescription {
			return true, nil
		}
	}
	return false, nil
}

// Entries returns a copy of the full ledger, for tests asserting on history.
func (m *Memory) Entries() []absence.LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]absence.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// --- holidays ---

func (m *Memory) HolidaysBetween(_ context.Context, start, end absence.Date) ([]absence.BankHoliday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []absence.BankHoliday
	for _, h := range m.holidays {
		if h.Date.AfterOrEqual(start) && h.Date.BeforeOrEqual(end) {
			result = append(result, h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// --- admin writes ---

func (m *Memory) CreateUser(_ context.Context, user absence.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *Memory) CreateProfile(_ context.Context, profile absence.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = profile
	return nil
}

func (m *Memory) AddHoliday(_ context.Context, holiday absence.BankHoliday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[holiday.Date] = holiday
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with a transaction scope, simulated with a
// snapshot + restore on error.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the store, rolling back to a snapshot when fn
// fails. Transactions are serialized, matching the single-writer semantics
// the workflow relies on for overdraft safety.
func (tm *TxMemory) WithTx(_ context.Context, fn func(absence.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	requests := make(map[string]absence.AbsenceRequest, len(tm.requests))
	for k, v := range tm.requests {
		requests[k] = v
	}
	entries := make([]absence.LedgerEntry, len(tm.entries))
	copy(entries, tm.entries)
	return memorySnapshot{requests: requests, entries: entries}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.requests = s.requests
	tm.entries = s.entries
}

// Only request and ledger state participate in transactions; identity and
// holiday data are read-only during mutations.
type memorySnapshot struct {
	requests map[string]absence.AbsenceRequest
	entries  []absence.LedgerEntry
}
