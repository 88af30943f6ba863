/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.TxStore and generic.AuditLog using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.TxStore:  employees, vacation periods, settings, WithTx
  generic.AuditLog: append-only admin action log

KEY TABLES:
  employees:        one row per (registration_id, reference_year), UNIQUE
  vacation_periods: owned by (registration_id, reference_year), not by employee id
  settings:         one row per category group (the singleton quota record)
  audit_log:        append-only

DATES:
  Calendar dates are stored as ISO "YYYY-MM-DD" text, so lexical comparison
  is date comparison and the overlap filter stays a plain WHERE clause.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which also
  keeps ":memory:" databases coherent across calls. In production with
  PostgreSQL, database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/vacation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/vacation-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ generic.TxStore  = (*Store)(nil)
	_ generic.AuditLog = (*Store)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		registration_id TEXT NOT NULL,
		reference_year INTEGER NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		pregnant INTEGER NOT NULL DEFAULT 0,
		child_count INTEGER NOT NULL DEFAULT 0,
		student INTEGER NOT NULL DEFAULT 0,
		two_jobs INTEGER NOT NULL DEFAULT 0,
		spouse_in_service INTEGER NOT NULL DEFAULT 0,
		hire_date TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		hire_day_offset INTEGER NOT NULL,
		birth_day_offset INTEGER NOT NULL,
		acquisition_start TEXT NOT NULL,
		acquisition_end TEXT NOT NULL,
		rank INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (registration_id, reference_year)
	);

	CREATE INDEX IF NOT EXISTS idx_employees_category_year
		ON employees(category, reference_year);

	CREATE TABLE IF NOT EXISTS vacation_periods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		registration_id TEXT NOT NULL,
		reference_year INTEGER NOT NULL,
		sequence INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_periods_owner
		ON vacation_periods(registration_id, reference_year);

	-- Capacity hot path: year + overlap
	CREATE INDEX IF NOT EXISTS idx_periods_year_range
		ON vacation_periods(reference_year, start_date, end_date);

	CREATE TABLE IF NOT EXISTS settings (
		grp TEXT PRIMARY KEY,
		base_cap INTEGER NOT NULL,
		plus_cap INTEGER NOT NULL,
		total_cap INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		action TEXT NOT NULL,
		registration_id TEXT,
		reference_year INTEGER,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_registration
		ON audit_log(registration_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// inTx runs fn in its own transaction for multi-statement writes issued
// outside WithTx. Caller holds the write lock.
func (s *Store) inTx(ctx context.Context, fn func(q querier) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

const employeeColumns = `
	id, registration_id, reference_year, name, category,
	pregnant, child_count, student, two_jobs, spouse_in_service,
	hire_date, birth_date, hire_day_offset, birth_day_offset,
	acquisition_start, acquisition_end, rank`

func (s *Store) FindEmployees(ctx context.Context, filter generic.EmployeeFilter) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findEmployees(ctx, s.db, filter)
}

func (s *Store) GetEmployee(ctx context.Context, key generic.EmployeeKey) (generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, key)
}

func (s *Store) CreateEmployee(ctx context.Context, e generic.Employee) (generic.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createEmployee(ctx, s.db, e)
}

func (s *Store) UpdateEmployee(ctx context.Context, e generic.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEmployee(ctx, s.db, e)
}

func (s *Store) DeleteEmployees(ctx context.Context, id generic.RegistrationID, years []int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int
	err := s.inTx(ctx, func(q querier) error {
		n, err := deleteEmployees(ctx, q, id, years)
		deleted = n
		return err
	})
	return deleted, err
}

func (s *Store) UpdateRanks(ctx context.Context, ranks []generic.RankAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(q querier) error { return updateRanks(ctx, q, ranks) })
}

func findEmployees(ctx context.Context, q querier, filter generic.EmployeeFilter) ([]generic.Employee, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Categories) > 0 {
		where = append(where, "category IN ("+placeholders(len(filter.Categories))+")")
		for _, c := range filter.Categories {
			args = append(args, string(c))
		}
	}
	if filter.ReferenceYear != nil {
		where = append(where, "reference_year = ?")
		args = append(args, *filter.ReferenceYear)
	}
	if filter.RegistrationID != nil {
		where = append(where, "registration_id = ?")
		args = append(args, string(*filter.RegistrationID))
	}

	query := "SELECT " + employeeColumns + " FROM employees"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []generic.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func getEmployee(ctx context.Context, q querier, key generic.EmployeeKey) (generic.Employee, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE registration_id = ? AND reference_year = ?",
		string(key.RegistrationID), key.ReferenceYear)

	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return generic.Employee{}, generic.ErrEmployeeNotFound
	}
	return e, err
}

func createEmployee(ctx context.Context, q querier, e generic.Employee) (generic.Employee, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := q.ExecContext(ctx, `
		INSERT INTO employees
		(registration_id, reference_year, name, category,
		 pregnant, child_count, student, two_jobs, spouse_in_service,
		 hire_date, birth_date, hire_day_offset, birth_day_offset,
		 acquisition_start, acquisition_end, rank, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(e.RegistrationID), e.ReferenceYear, e.Name, string(e.Category),
		e.Pregnant, e.ChildCount, e.Student, e.TwoJobs, e.SpouseInService,
		e.HireDate.String(), e.BirthDate.String(), e.HireDayOffset, e.BirthDayOffset,
		e.AcquisitionWindow.Start.String(), e.AcquisitionWindow.End.String(),
		nullRank(e.Rank), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.Employee{}, generic.ErrDuplicateEmployee
		}
		return generic.Employee{}, fmt.Errorf("failed to insert employee: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return generic.Employee{}, fmt.Errorf("failed to read employee id: %w", err)
	}
	e.ID = id
	return e, nil
}

// updateEmployee rewrites every column but rank.
func updateEmployee(ctx context.Context, q querier, e generic.Employee) error {
	res, err := q.ExecContext(ctx, `
		UPDATE employees SET
			name = ?, category = ?,
			pregnant = ?, child_count = ?, student = ?, two_jobs = ?, spouse_in_service = ?,
			hire_date = ?, birth_date = ?, hire_day_offset = ?, birth_day_offset = ?,
			acquisition_start = ?, acquisition_end = ?, updated_at = ?
		WHERE registration_id = ? AND reference_year = ?
	`,
		e.Name, string(e.Category),
		e.Pregnant, e.ChildCount, e.Student, e.TwoJobs, e.SpouseInService,
		e.HireDate.String(), e.BirthDate.String(), e.HireDayOffset, e.BirthDayOffset,
		e.AcquisitionWindow.Start.String(), e.AcquisitionWindow.End.String(),
		time.Now().UTC().Format(time.RFC3339),
		string(e.RegistrationID), e.ReferenceYear,
	)
	if err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	return requireRow(res, generic.ErrEmployeeNotFound)
}

func deleteEmployees(ctx context.Context, q querier, id generic.RegistrationID, years []int) (int, error) {
	if len(years) == 0 {
		return 0, nil
	}
	if _, err := deletePeriods(ctx, q, id, years); err != nil {
		return 0, err
	}

	args := append([]any{string(id)}, intArgs(years)...)
	res, err := q.ExecContext(ctx,
		"DELETE FROM employees WHERE registration_id = ? AND reference_year IN ("+placeholders(len(years))+")",
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete employees: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func updateRanks(ctx context.Context, q querier, ranks []generic.RankAssignment) error {
	for _, r := range ranks {
		res, err := q.ExecContext(ctx,
			"UPDATE employees SET rank = ? WHERE registration_id = ? AND reference_year = ?",
			r.Rank, string(r.Key.RegistrationID), r.Key.ReferenceYear)
		if err != nil {
			return fmt.Errorf("failed to update rank of %s: %w", r.Key, err)
		}
		if err := requireRow(res, generic.ErrEmployeeNotFound); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

type dateColumn struct {
	name  string
	value string
	dst   *generic.Date
}

// parseDateColumns fails on the first unparsable column; a corrupt row never
// reads back as a zero Date.
func parseDateColumns(cols ...dateColumn) error {
	for _, c := range cols {
		parsed, err := generic.ParseDate(c.value)
		if err != nil {
			return fmt.Errorf("column %s: %w", c.name, err)
		}
		*c.dst = parsed
	}
	return nil
}

func scanEmployee(row scanner) (generic.Employee, error) {
	var (
		e                   generic.Employee
		registrationID      string
		category            string
		hire, birth         string
		acqStart, acqEnd    string
		rank                sql.NullInt64
	)

	err := row.Scan(
		&e.ID, &registrationID, &e.ReferenceYear, &e.Name, &category,
		&e.Pregnant, &e.ChildCount, &e.Student, &e.TwoJobs, &e.SpouseInService,
		&hire, &birth, &e.HireDayOffset, &e.BirthDayOffset,
		&acqStart, &acqEnd, &rank,
	)
	if err == sql.ErrNoRows {
		return e, err
	}
	if err != nil {
		return e, fmt.Errorf("failed to scan employee: %w", err)
	}

	e.RegistrationID = generic.RegistrationID(registrationID)
	e.Category = generic.Category(category)
	if err := parseDateColumns(
		dateColumn{"hire_date", hire, &e.HireDate},
		dateColumn{"birth_date", birth, &e.BirthDate},
		dateColumn{"acquisition_start", acqStart, &e.AcquisitionWindow.Start},
		dateColumn{"acquisition_end", acqEnd, &e.AcquisitionWindow.End},
	); err != nil {
		return e, fmt.Errorf("failed to scan employee %s/%d: %w", registrationID, e.ReferenceYear, err)
	}
	if rank.Valid {
		r := int(rank.Int64)
		e.Rank = &r
	}
	return e, nil
}

// =============================================================================
// PERIOD STORE
// =============================================================================

func (s *Store) FindVacationPeriods(ctx context.Context, filter generic.PeriodFilter) ([]generic.VacationPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findPeriods(ctx, s.db, filter)
}

func (s *Store) ReplacePeriods(ctx context.Context, key generic.EmployeeKey, periods []generic.VacationPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(q querier) error { return replacePeriods(ctx, q, key, periods) })
}

func (s *Store) DeletePeriods(ctx context.Context, id generic.RegistrationID, years []int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePeriods(ctx, s.db, id, years)
}

func findPeriods(ctx context.Context, q querier, filter generic.PeriodFilter) ([]generic.VacationPeriod, error) {
	if filter.RegistrationIDs != nil && len(filter.RegistrationIDs) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	if len(filter.RegistrationIDs) > 0 {
		where = append(where, "registration_id IN ("+placeholders(len(filter.RegistrationIDs))+")")
		for _, id := range filter.RegistrationIDs {
			args = append(args, string(id))
		}
	}
	if filter.ReferenceYear != nil {
		where = append(where, "reference_year = ?")
		args = append(args, *filter.ReferenceYear)
	}
	if filter.Overlapping != nil {
		where = append(where, "start_date <= ? AND end_date >= ?")
		args = append(args, filter.Overlapping.End.String(), filter.Overlapping.Start.String())
	}

	query := "SELECT id, registration_id, reference_year, sequence, start_date, end_date FROM vacation_periods"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var periods []generic.VacationPeriod
	for rows.Next() {
		var (
			p              generic.VacationPeriod
			registrationID string
			start, end     string
		)
		if err := rows.Scan(&p.ID, &registrationID, &p.ReferenceYear, &p.Sequence, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		p.RegistrationID = generic.RegistrationID(registrationID)
		if err := parseDateColumns(
			dateColumn{"start_date", start, &p.Range.Start},
			dateColumn{"end_date", end, &p.Range.End},
		); err != nil {
			return nil, fmt.Errorf("failed to scan period %d: %w", p.ID, err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func replacePeriods(ctx context.Context, q querier, key generic.EmployeeKey, periods []generic.VacationPeriod) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM vacation_periods WHERE registration_id = ? AND reference_year = ?",
		string(key.RegistrationID), key.ReferenceYear); err != nil {
		return fmt.Errorf("failed to clear periods: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range periods {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO vacation_periods
			(registration_id, reference_year, sequence, start_date, end_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			string(key.RegistrationID), key.ReferenceYear, p.Sequence,
			p.Range.Start.String(), p.Range.End.String(), now,
		); err != nil {
			return fmt.Errorf("failed to insert period: %w", err)
		}
	}
	return nil
}

func deletePeriods(ctx context.Context, q querier, id generic.RegistrationID, years []int) (int, error) {
	if len(years) == 0 {
		return 0, nil
	}
	args := append([]any{string(id)}, intArgs(years)...)
	res, err := q.ExecContext(ctx,
		"DELETE FROM vacation_periods WHERE registration_id = ? AND reference_year IN ("+placeholders(len(years))+")",
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete periods: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

func (s *Store) ReadSettings(ctx context.Context) (generic.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readSettings(ctx, s.db)
}

func (s *Store) SaveSettings(ctx context.Context, settings generic.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(q querier) error { return saveSettings(ctx, q, settings) })
}

func readSettings(ctx context.Context, q querier) (generic.Settings, error) {
	rows, err := q.QueryContext(ctx, "SELECT grp, base_cap, plus_cap, total_cap FROM settings")
	if err != nil {
		return generic.Settings{}, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := generic.Settings{Quotas: make(map[generic.Group]generic.GroupQuota)}
	for rows.Next() {
		var (
			group string
			quota generic.GroupQuota
		)
		if err := rows.Scan(&group, &quota.Base, &quota.Plus, &quota.Total); err != nil {
			return generic.Settings{}, fmt.Errorf("failed to scan settings: %w", err)
		}
		settings.Quotas[generic.Group(group)] = quota
	}
	if err := rows.Err(); err != nil {
		return generic.Settings{}, err
	}
	if len(settings.Quotas) == 0 {
		return generic.Settings{}, generic.ErrSettingsNotFound
	}
	return settings, nil
}

func saveSettings(ctx context.Context, q querier, settings generic.Settings) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM settings"); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for group, quota := range settings.Quotas {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO settings (grp, base_cap, plus_cap, total_cap, updated_at) VALUES (?, ?, ?, ?, ?)",
			string(group), quota.Base, quota.Plus, quota.Total, now,
		); err != nil {
			return fmt.Errorf("failed to save settings for %s: %w", group, err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{tx: sqlTx}
	if err := fn(txStore); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every call on the open transaction; the parent lock is
// already held by WithTx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) FindEmployees(ctx context.Context, filter generic.EmployeeFilter) ([]generic.Employee, error) {
	return findEmployees(ctx, ts.tx, filter)
}

func (ts *txStore) GetEmployee(ctx context.Context, key generic.EmployeeKey) (generic.Employee, error) {
	return getEmployee(ctx, ts.tx, key)
}

func (ts *txStore) CreateEmployee(ctx context.Context, e generic.Employee) (generic.Employee, error) {
	return createEmployee(ctx, ts.tx, e)
}

func (ts *txStore) UpdateEmployee(ctx context.Context, e generic.Employee) error {
	return updateEmployee(ctx, ts.tx, e)
}

func (ts *txStore) DeleteEmployees(ctx context.Context, id generic.RegistrationID, years []int) (int, error) {
	return deleteEmployees(ctx, ts.tx, id, years)
}

func (ts *txStore) UpdateRanks(ctx context.Context, ranks []generic.RankAssignment) error {
	return updateRanks(ctx, ts.tx, ranks)
}

func (ts *txStore) FindVacationPeriods(ctx context.Context, filter generic.PeriodFilter) ([]generic.VacationPeriod, error) {
	return findPeriods(ctx, ts.tx, filter)
}

func (ts *txStore) ReplacePeriods(ctx context.Context, key generic.EmployeeKey, periods []generic.VacationPeriod) error {
	return replacePeriods(ctx, ts.tx, key, periods)
}

func (ts *txStore) DeletePeriods(ctx context.Context, id generic.RegistrationID, years []int) (int, error) {
	return deletePeriods(ctx, ts.tx, id, years)
}

func (ts *txStore) ReadSettings(ctx context.Context) (generic.Settings, error) {
	return readSettings(ctx, ts.tx)
}

func (ts *txStore) SaveSettings(ctx context.Context, settings generic.Settings) error {
	return saveSettings(ctx, ts.tx, settings)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, created_at, action, registration_id, reference_year, payload_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		string(entry.Action),
		nullString(string(entry.RegistrationID)),
		nullInt(entry.ReferenceYear),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns matching entries, newest first.
func (s *Store) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.RegistrationID != nil {
		where = append(where, "registration_id = ?")
		args = append(args, string(*filter.RegistrationID))
	}
	if len(filter.Actions) > 0 {
		where = append(where, "action IN ("+placeholders(len(filter.Actions))+")")
		for _, a := range filter.Actions {
			args = append(args, string(a))
		}
	}

	query := "SELECT id, created_at, action, registration_id, reference_year, payload_json FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []generic.AuditEntry
	for rows.Next() {
		var (
			e              generic.AuditEntry
			createdAt      string
			action         string
			registrationID sql.NullString
			referenceYear  sql.NullInt64
			payload        sql.NullString
		)
		if err := rows.Scan(&e.ID, &createdAt, &action, &registrationID, &referenceYear, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry %s: %w", e.ID, err)
		}
		e.Timestamp = ts
		e.Action = generic.AuditAction(action)
		e.RegistrationID = generic.RegistrationID(registrationID.String)
		e.ReferenceYear = int(referenceYear.Int64)
		if payload.Valid && payload.String != "" && payload.String != "null" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data except settings (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"vacation_periods", "employees", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func intArgs(values []int) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func nullRank(rank *int) sql.NullInt64 {
	if rank == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*rank), Valid: true}
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
