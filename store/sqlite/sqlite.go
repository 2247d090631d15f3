/*
Package sqlite provides a SQLite-backed implementation of the absence
storage interfaces.

PURPOSE:
  Implements absence.Store, absence.TxStore, and absence.AdminStore using
  SQLite. The same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  The ledger_entries table has no UPDATE or DELETE path in this package.
  Corrections are made via reversal entries only. A partial unique index
  backstops the at-most-once yearly allowance credit.

KEY TABLES:
  users:            identity references (read-only for the core)
  profiles:         manager links for role resolution
  absence_requests: the workflow's state machine rows
  ledger_entries:   immutable ledger of all balance changes
  bank_holidays:    static calendar reference data

CONCURRENCY:
  SQLite is opened in WAL mode. WithTx serializes writers behind a mutex
  and a database transaction; two concurrent debits against the same
  employee-year therefore cannot interleave their read-then-append.

USAGE:
  store, err := sqlite.New("./absence.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := absence.NewService(store, absence.DefaultYearlyAllowance, nil)
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/absence-engine/absence"
)

// Store implements the absence storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps every statement of a WithTx scope on the
	// same SQLite transaction.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		manager_id TEXT,
		full_name TEXT NOT NULL DEFAULT '',
		job_title TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS absence_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES users(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (start_date <= end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON absence_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_employee_dates
		ON absence_requests(employee_id, start_date, end_date);

	-- Append-only ledger. No UPDATE or DELETE statements exist for this
	-- table anywhere in the codebase.
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES users(id),
		request_id TEXT,
		year INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		description TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_employee_year
		ON ledger_entries(employee_id, year);
	CREATE INDEX IF NOT EXISTS idx_ledger_request_year
		ON ledger_entries(request_id, year) WHERE request_id IS NOT NULL;

	-- Backstop for the at-most-once yearly allowance credit.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_allowance_once
		ON ledger_entries(employee_id, year)
		WHERE description = 'Yearly vacation allowance';

	CREATE TABLE IF NOT EXISTS bank_holidays (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the query methods can
// run inside or outside a transaction scope.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTION SCOPE (absence.TxStore)
// =============================================================================

// WithTx executes fn against a transaction-bound store. Rolls back when fn
// returns an error, commits otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(absence.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore is the transaction-bound view handed to WithTx callbacks.
type txStore struct {
	q dbtx
}

func (t *txStore) GetUser(ctx context.Context, id string) (absence.User, error) {
	return getUser(ctx, t.q, id)
}

func (t *txStore) GetProfile(ctx context.Context, userID string) (absence.Profile, error) {
	return getProfile(ctx, t.q, userID)
}

func (t *txStore) GetRequest(ctx context.Context, id string) (absence.AbsenceRequest, error) {
	return getRequest(ctx, t.q, id)
}

func (t *txStore) SaveRequest(ctx context.Context, req *absence.AbsenceRequest) error {
	return saveRequest(ctx, t.q, req)
}

func (t *txStore) FindOverlapping(ctx context.Context, employeeID string, start, end absence.Date, excludeID string) ([]absence.AbsenceRequest, error) {
	return findOverlapping(ctx, t.q, employeeID, start, end, excludeID)
}

func (t *txStore) ListVisible(ctx context.Context, employeeID string, year int) ([]absence.AbsenceRequest, error) {
	return listVisible(ctx, t.q, employeeID, year)
}

func (t *txStore) AppendEntry(ctx context.Context, entry absence.LedgerEntry) error {
	return appendEntry(ctx, t.q, entry)
}

func (t *txStore) SumByEmployeeYear(ctx context.Context, employeeID string, year int) (int, error) {
	return sumByEmployeeYear(ctx, t.q, employeeID, year)
}

func (t *txStore) SumByRequestYear(ctx context.Context, requestID string, year int) (int, error) {
	return sumByRequestYear(ctx, t.q, requestID, year)
}

func (t *txStore) AllowanceEntryExists(ctx context.Context, employeeID string, year int) (bool, error) {
	return allowanceEntryExists(ctx, t.q, employeeID, year)
}

func (t *txStore) HolidaysBetween(ctx context.Context, start, end absence.Date) ([]absence.BankHoliday, error) {
	return holidaysBetween(ctx, t.q, start, end)
}

// =============================================================================
// DIRECT STORE (absence.Store, outside a transaction)
// =============================================================================

func (s *Store) GetUser(ctx context.Context, id string) (absence.User, error) {
	return getUser(ctx, s.db, id)
}

func (s *Store) GetProfile(ctx context.Context, userID string) (absence.Profile, error) {
	return getProfile(ctx, s.db, userID)
}

func (s *Store) GetRequest(ctx context.Context, id string) (absence.AbsenceRequest, error) {
	return getRequest(ctx, s.db, id)
}

func (s *Store) SaveRequest(ctx context.Context, req *absence.AbsenceRequest) error {
	return saveRequest(ctx, s.db, req)
}

func (s *Store) FindOverlapping(ctx context.Context, employeeID string, start, end absence.Date, excludeID string) ([]absence.AbsenceRequest, error) {
	return findOverlapping(ctx, s.db, employeeID, start, end, excludeID)
}

func (s *Store) ListVisible(ctx context.Context, employeeID string, year int) ([]absence.AbsenceRequest, error) {
	return listVisible(ctx, s.db, employeeID, year)
}

func (s *Store) AppendEntry(ctx context.Context, entry absence.LedgerEntry) error {
	return appendEntry(ctx, s.db, entry)
}

func (s *Store) SumByEmployeeYear(ctx context.Context, employeeID string, year int) (int, error) {
	return sumByEmployeeYear(ctx, s.db, employeeID, year)
}

func (s *Store) SumByRequestYear(ctx context.Context, requestID string, year int) (int, error) {
	return sumByRequestYear(ctx, s.db, requestID, year)
}

func (s *Store) AllowanceEntryExists(ctx context.Context, employeeID string, year int) (bool, error) {
	return allowanceEntryExists(ctx, s.db, employeeID, year)
}

func (s *Store) HolidaysBetween(ctx context.Context, start, end absence.Date) ([]absence.BankHoliday, error) {
	return holidaysBetween(ctx, s.db, start, end)
}

// =============================================================================
// ADMIN WRITES (absence.AdminStore)
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, user absence.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, email) VALUES (?, ?)`,
		user.ID, user.Email)
	return err
}

func (s *Store) CreateProfile(ctx context.Context, profile absence.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO profiles (user_id, manager_id, full_name, job_title)
		 VALUES (?, ?, ?, ?)`,
		profile.UserID, nullString(profile.ManagerID), profile.FullName, profile.JobTitle)
	return err
}

func (s *Store) AddHoliday(ctx context.Context, holiday absence.BankHoliday) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO bank_holidays (date, name) VALUES (?, ?)`,
		holiday.Date.String(), holiday.Name)
	return err
}

// =============================================================================
// QUERY IMPLEMENTATIONS
// =============================================================================

func getUser(ctx context.Context, q dbtx, id string) (absence.User, error) {
	var user absence.User
	err := q.QueryRowContext(ctx,
		`SELECT id, email FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.Email)
	if err == sql.ErrNoRows {
		return absence.User{}, absence.ErrNotFound
	}
	if err != nil {
		return absence.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func getProfile(ctx context.Context, q dbtx, userID string) (absence.Profile, error) {
	var profile absence.Profile
	var managerID sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT user_id, manager_id, full_name, job_title FROM profiles WHERE user_id = ?`, userID).
		Scan(&profile.UserID, &managerID, &profile.FullName, &profile.JobTitle)
	if err == sql.ErrNoRows {
		return absence.Profile{}, absence.ErrNotFound
	}
	if err != nil {
		return absence.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	profile.ManagerID = managerID.String
	return profile, nil
}

const requestColumns = `id, employee_id, start_date, end_date, reason, status, created_at, updated_at`

func getRequest(ctx context.Context, q dbtx, id string) (absence.AbsenceRequest, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM absence_requests WHERE id = ?`, id)
	req, err := scanRequestRow(row)
	if err == sql.ErrNoRows {
		return absence.AbsenceRequest{}, absence.ErrNotFound
	}
	if err != nil {
		return absence.AbsenceRequest{}, fmt.Errorf("failed to load request: %w", err)
	}
	return req, nil
}

func saveRequest(ctx context.Context, q dbtx, req *absence.AbsenceRequest) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO absence_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			reason = excluded.reason,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		req.ID, req.EmployeeID,
		req.StartDate.String(), req.EndDate.String(),
		req.Reason, string(req.Status),
		req.CreatedAt.UTC().Format(time.RFC3339),
		req.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func findOverlapping(ctx context.Context, q dbtx, employeeID string, start, end absence.Date, excludeID string) ([]absence.AbsenceRequest, error) {
	// Closed-interval intersection: existing.start <= new.end AND
	// existing.end >= new.start. ISO date strings compare correctly.
	rows, err := q.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM absence_requests
		WHERE employee_id = ?
		  AND status IN ('PENDING', 'APPROVED')
		  AND start_date <= ?
		  AND end_date >= ?
		  AND (? = '' OR id <> ?)
		ORDER BY start_date ASC, id ASC`,
		employeeID, end.String(), start.String(), excludeID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping requests: %w", err)
	}
	return scanRequests(rows)
}

func listVisible(ctx context.Context, q dbtx, employeeID string, year int) ([]absence.AbsenceRequest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM absence_requests
		WHERE (status = 'APPROVED' OR employee_id = ?)
		  AND (CAST(strftime('%Y', start_date) AS INTEGER) = ?
		       OR CAST(strftime('%Y', end_date) AS INTEGER) = ?)
		ORDER BY start_date ASC, id ASC`,
		employeeID, year, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query visible requests: %w", err)
	}
	return scanRequests(rows)
}

func appendEntry(ctx context.Context, q dbtx, entry absence.LedgerEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, employee_id, request_id, year, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EmployeeID, nullString(entry.RequestID),
		entry.Year, entry.Amount, entry.Description,
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func sumByEmployeeYear(ctx context.Context, q dbtx, employeeID string, year int) (int, error) {
	var sum int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE employee_id = ? AND year = ?`,
		employeeID, year).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger by employee/year: %w", err)
	}
	return sum, nil
}

func sumByRequestYear(ctx context.Context, q dbtx, requestID string, year int) (int, error) {
	var sum int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE request_id = ? AND year = ?`,
		requestID, year).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger by request/year: %w", err)
	}
	return sum, nil
}

func allowanceEntryExists(ctx context.Context, q dbtx, employeeID string, year int) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM ledger_entries
			WHERE employee_id = ? AND year = ? AND description = ?
		)`,
		employeeID, year, absence.AllowanceDescription).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check allowance entry: %w", err)
	}
	return exists, nil
}

func holidaysBetween(ctx context.Context, q dbtx, start, end absence.Date) ([]absence.BankHoliday, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT date, name FROM bank_holidays WHERE date >= ? AND date <= ? ORDER BY date ASC`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []absence.BankHoliday
	for rows.Next() {
		var dateStr, name string
		if err := rows.Scan(&dateStr, &name); err != nil {
			return nil, err
		}
		date, err := absence.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		holidays = append(holidays, absence.BankHoliday{Date: date, Name: name})
	}
	return holidays, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequestRow(row rowScanner) (absence.AbsenceRequest, error) {
	var req absence.AbsenceRequest
	var startStr, endStr, status, createdStr, updatedStr string
	if err := row.Scan(&req.ID, &req.EmployeeID, &startStr, &endStr, &req.Reason, &status, &createdStr, &updatedStr); err != nil {
		return absence.AbsenceRequest{}, err
	}

	var err error
	if req.StartDate, err = absence.ParseDate(startStr); err != nil {
		return absence.AbsenceRequest{}, err
	}
	if req.EndDate, err = absence.ParseDate(endStr); err != nil {
		return absence.AbsenceRequest{}, err
	}
	req.Status = absence.Status(status)
	req.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	req.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	return req, nil
}

func scanRequests(rows *sql.Rows) ([]absence.AbsenceRequest, error) {
	defer rows.Close()

	var requests []absence.AbsenceRequest
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
