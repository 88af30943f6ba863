/*
Package generic provides the core types of the vacation scheduling engine.

PURPOSE:
  Domain records (Employee, VacationPeriod, Settings), calendar-date
  arithmetic, the persistence contract and the error taxonomy. Nothing in
  this package talks to a database or decides a business rule; the vacation
  package builds the validator, the capacity checker and the ranking engine
  on top of these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - EmployeeKey: the composite natural key (registration-id, reference-year)
  - Category / Group: six categories forming three groups ("X" and "X-P")
  - Employee: one employee-year with ranking inputs and derived fields
  - VacationPeriod: one booked range, owned by an employee-year
  - Settings: the process-wide quota record

DESIGN PRINCIPLES:
  1. Calendar dates only: every date is a generic.Date, no time-of-day
  2. Composite keys: an employee is never addressed by a synthetic id alone
  3. Type safety: RegistrationID and Category are distinct string types

SEE ALSO:
  - time.go: Date and day arithmetic
  - period.go: DateRange and acquisition windows
  - store.go: persistence interfaces
*/
package generic

import (
	"fmt"
	"strings"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RegistrationID string

// EmployeeKey identifies one employee-year.
type EmployeeKey struct {
	RegistrationID RegistrationID `json:"registration_id"`
	ReferenceYear  int            `json:"reference_year"`
}

func (k EmployeeKey) String() string {
	return fmt.Sprintf("%s/%d", k.RegistrationID, k.ReferenceYear)
}

// =============================================================================
// CATEGORIES AND GROUPS
// =============================================================================

type Category string

const (
	CategoryIPC  Category = "IPC"
	CategoryIPCP Category = "IPC-P"
	CategoryEPC  Category = "EPC"
	CategoryEPCP Category = "EPC-P"
	CategoryDPC  Category = "DPC"
	CategoryDPCP Category = "DPC-P"
)

// Group is a base category; "X" and "X-P" share one daily quota.
type Group string

const (
	GroupIPC Group = "IPC"
	GroupEPC Group = "EPC"
	GroupDPC Group = "DPC"
)

// Groups lists the category groups in display order.
var Groups = []Group{GroupIPC, GroupEPC, GroupDPC}

// Categories lists every valid category.
var Categories = []Category{
	CategoryIPC, CategoryIPCP,
	CategoryEPC, CategoryEPCP,
	CategoryDPC, CategoryDPCP,
}

const plusSuffix = "-P"

// ParseCategory accepts a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Group resolves the base category shared by "X" and "X-P".
func (c Category) Group() Group {
	return Group(strings.TrimSuffix(string(c), plusSuffix))
}

// IsPlus reports the "-P" subcategory.
func (c Category) IsPlus() bool {
	return strings.HasSuffix(string(c), plusSuffix)
}

// Categories returns both subcategories of the group.
func (g Group) Categories() []Category {
	return []Category{Category(g), Category(string(g) + plusSuffix)}
}

func (g Group) Valid() bool {
	for _, known := range Groups {
		if g == known {
			return true
		}
	}
	return false
}

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee is one employee-year. Ranking inputs are the flags, the child
// count and the two derived day offsets.
type Employee struct {
	ID             int64          `json:"id,omitempty"`
	RegistrationID RegistrationID `json:"registration_id"`
	ReferenceYear  int            `json:"reference_year"`
	Name           string         `json:"name"`
	Category       Category       `json:"category"`

	Pregnant        bool `json:"pregnant"`
	ChildCount      int  `json:"child_count"`
	Student         bool `json:"student"`
	TwoJobs         bool `json:"two_jobs"`
	SpouseInService bool `json:"spouse_in_service"`

	HireDate  Date `json:"hire_date"`
	BirthDate Date `json:"birth_date"`

	// Derived at create/update time, never mutated on their own.
	HireDayOffset     int       `json:"hire_day_offset"`
	BirthDayOffset    int       `json:"birth_day_offset"`
	AcquisitionWindow DateRange `json:"acquisition_window"`

	// Rank is 1-based within (group, year); nil until the ranking engine runs.
	Rank *int `json:"rank,omitempty"`
}

func (e Employee) Key() EmployeeKey {
	return EmployeeKey{RegistrationID: e.RegistrationID, ReferenceYear: e.ReferenceYear}
}

func (e Employee) Group() Group { return e.Category.Group() }

// Derive recomputes the acquisition window and the ranking day offsets from
// hire date, birth date and reference year.
func (e *Employee) Derive() error {
	if e.HireDate.IsZero() || e.BirthDate.IsZero() || e.ReferenceYear == 0 {
		return fmt.Errorf("%w: hire date, birth date and reference year are required", ErrInvalidEmployee)
	}
	e.HireDayOffset = DayOffset(e.HireDate, e.ReferenceYear)
	e.BirthDayOffset = DayOffset(e.BirthDate, e.ReferenceYear)
	e.AcquisitionWindow = AcquisitionWindow(e.HireDate, e.ReferenceYear)
	return nil
}

// =============================================================================
// VACATION PERIOD
// =============================================================================

// VacationPeriod belongs to an employee-year through (registration, year).
type VacationPeriod struct {
	ID             int64          `json:"id,omitempty"`
	RegistrationID RegistrationID `json:"registration_id"`
	ReferenceYear  int            `json:"reference_year"`
	Sequence       int            `json:"sequence"` // 1..3 within the request
	Range          DateRange      `json:"range"`
}

func (p VacationPeriod) Owner() EmployeeKey {
	return EmployeeKey{RegistrationID: p.RegistrationID, ReferenceYear: p.ReferenceYear}
}

// =============================================================================
// SETTINGS - Singleton quota record
// =============================================================================

// GroupQuota holds the caps of one group. Total is the binding constraint.
type GroupQuota struct {
	Base  int `json:"base"`
	Plus  int `json:"plus"`
	Total int `json:"total"`
}

type Settings struct {
	Quotas map[Group]GroupQuota `json:"quotas"`
}

// DefaultSettings mirrors the seeded record: 2 per subcategory, 3 per group.
func DefaultSettings() Settings {
	s := Settings{Quotas: make(map[Group]GroupQuota, len(Groups))}
	for _, g := range Groups {
		s.Quotas[g] = GroupQuota{Base: 2, Plus: 2, Total: 3}
	}
	return s
}

// GroupCap returns the combined daily cap of a group.
func (s Settings) GroupCap(g Group) (int, bool) {
	q, ok := s.Quotas[g]
	return q.Total, ok
}

// CategoryCap returns the subcategory cap (informational only).
func (s Settings) CategoryCap(c Category) (int, bool) {
	q, ok := s.Quotas[c.Group()]
	if !ok {
		return 0, false
	}
	if c.IsPlus() {
		return q.Plus, true
	}
	return q.Base, true
}

// Validate rejects negative caps and unknown groups.
func (s Settings) Validate() error {
	for g, q := range s.Quotas {
		if !g.Valid() {
			return fmt.Errorf("%w: unknown group %q", ErrInvalidSettings, g)
		}
		if q.Base < 0 || q.Plus < 0 || q.Total < 0 {
			return fmt.Errorf("%w: negative cap for group %s", ErrInvalidSettings, g)
		}
	}
	for _, g := range Groups {
		if _, ok := s.Quotas[g]; !ok {
			return fmt.Errorf("%w: missing quota for group %s", ErrInvalidSettings, g)
		}
	}
	return nil
}
