/*
store.go - Persistence interface for employees, periods and settings

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never owns persistence: it reads snapshots through these interfaces and
  returns decisions; callers commit accepted writes through WithTx.

KEY INTERFACES:
  EmployeeStore: employee-year records and rank persistence
  PeriodStore:   vacation periods, replaced as a whole per employee-year
  SettingsStore: the singleton quota record
  TxStore:       all of the above plus atomic multi-write operations
  AuditLog:      append-only record of admin actions

ATOMIC OPERATIONS:
  "Replace all periods for employee-year" is a delete+insert that either
  fully happens or not at all. "Recompute ranks for group+year" is a batch
  update with the same guarantee. Both run inside WithTx.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via database/sql
  - generic/store/memory.go: In-memory for tests and demos

SEE ALSO:
  - vacation/booking.go: ReplacePeriods inside WithTx
  - vacation/ranking.go: UpdateRanks inside WithTx
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

// EmployeeFilter narrows FindEmployees. Zero fields match everything.
type EmployeeFilter struct {
	Categories     []Category
	ReferenceYear  *int
	RegistrationID *RegistrationID
}

// PeriodFilter narrows FindVacationPeriods. A nil RegistrationIDs slice
// matches every registration; a non-nil empty slice matches none.
type PeriodFilter struct {
	RegistrationIDs []RegistrationID
	ReferenceYear   *int
	Overlapping     *DateRange
}

// RankAssignment is one row of a rank batch update.
type RankAssignment struct {
	Key  EmployeeKey
	Rank int
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

type EmployeeStore interface {
	// FindEmployees returns matches in insertion order.
	FindEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error)

	// GetEmployee returns ErrEmployeeNotFound when the key is unknown.
	GetEmployee(ctx context.Context, key EmployeeKey) (Employee, error)

	// CreateEmployee returns ErrDuplicateEmployee when the key exists.
	CreateEmployee(ctx context.Context, e Employee) (Employee, error)

	// UpdateEmployee returns ErrEmployeeNotFound when the key is unknown.
	// The stored rank is preserved.
	UpdateEmployee(ctx context.Context, e Employee) error

	// DeleteEmployees removes the employee-years and their periods.
	DeleteEmployees(ctx context.Context, id RegistrationID, years []int) (int, error)

	// UpdateRanks persists a batch of ranks.
	UpdateRanks(ctx context.Context, ranks []RankAssignment) error
}

type PeriodStore interface {
	FindVacationPeriods(ctx context.Context, filter PeriodFilter) ([]VacationPeriod, error)

	// ReplacePeriods deletes every period of the employee-year and inserts
	// the given ones.
	ReplacePeriods(ctx context.Context, key EmployeeKey, periods []VacationPeriod) error

	// DeletePeriods removes every period of the registration in the years.
	DeletePeriods(ctx context.Context, id RegistrationID, years []int) (int, error)
}

type SettingsStore interface {
	// ReadSettings returns ErrSettingsNotFound before the first save.
	ReadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// Store is the full persistence collaborator.
type Store interface {
	EmployeeStore
	PeriodStore
	SettingsStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT LOG - Separate from the records, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditBookingCreated  AuditAction = "booking_created"
	AuditBookingReplaced AuditAction = "booking_replaced"
	AuditBookingReset    AuditAction = "booking_reset"
	AuditEmployeeCreated AuditAction = "employee_created"
	AuditEmployeeUpdated AuditAction = "employee_updated"
	AuditEmployeeDeleted AuditAction = "employee_deleted"
	AuditSettingsUpdated AuditAction = "settings_updated"
	AuditYearMigrated    AuditAction = "year_migrated"
	AuditRanksRecomputed AuditAction = "ranks_recomputed"
)

type AuditEntry struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	Action         AuditAction    `json:"action"`
	RegistrationID RegistrationID `json:"registration_id,omitempty"`
	ReferenceYear  int            `json:"reference_year,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	RegistrationID *RegistrationID
	Actions        []AuditAction
	Limit          int
}
