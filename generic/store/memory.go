// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/vacation-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st state
}

// state holds every table; ops on it assume the caller holds the lock.
type state struct {
	employees    []generic.Employee // insertion order
	periods      []generic.VacationPeriod
	settings     *generic.Settings
	audit        []generic.AuditEntry
	nextEmployee int64
	nextPeriod   int64
}

var (
	_ generic.TxStore  = (*TxMemory)(nil)
	_ generic.AuditLog = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) FindEmployees(_ context.Context, filter generic.EmployeeFilter) ([]generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.findEmployees(filter), nil
}

func (m *Memory) GetEmployee(_ context.Context, key generic.EmployeeKey) (generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getEmployee(key)
}

func (m *Memory) CreateEmployee(_ context.Context, e generic.Employee) (generic.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createEmployee(e)
}

func (m *Memory) UpdateEmployee(_ context.Context, e generic.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateEmployee(e)
}

func (m *Memory) DeleteEmployees(_ context.Context, id generic.RegistrationID, years []int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteEmployees(id, years), nil
}

func (m *Memory) UpdateRanks(_ context.Context, ranks []generic.RankAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateRanks(ranks)
}

func (m *Memory) FindVacationPeriods(_ context.Context, filter generic.PeriodFilter) ([]generic.VacationPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.findPeriods(filter), nil
}

func (m *Memory) ReplacePeriods(_ context.Context, key generic.EmployeeKey, periods []generic.VacationPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.replacePeriods(key, periods)
	return nil
}

func (m *Memory) DeletePeriods(_ context.Context, id generic.RegistrationID, years []int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deletePeriods(id, years), nil
}

func (m *Memory) ReadSettings(_ context.Context) (generic.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.readSettings()
}

func (m *Memory) SaveSettings(_ context.Context, s generic.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.saveSettings(s)
	return nil
}

// AppendAudit records an entry. Append-only.
func (m *Memory) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.audit = append(m.st.audit, entry)
	return nil
}

// QueryAudit returns matching entries, newest first.
func (m *Memory) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.AuditEntry
	for i := len(m.st.audit) - 1; i >= 0; i-- {
		e := m.st.audit[i]
		if filter.RegistrationID != nil && e.RegistrationID != *filter.RegistrationID {
			continue
		}
		if len(filter.Actions) > 0 && !containsAction(filter.Actions, e.Action) {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// Reset clears all data except settings (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.employees = nil
	m.st.periods = nil
	m.st.audit = nil
	return nil
}

// =============================================================================
// STATE OPERATIONS (lock held by caller)
// =============================================================================

func (s *state) findEmployees(filter generic.EmployeeFilter) []generic.Employee {
	var result []generic.Employee
	for _, e := range s.employees {
		if len(filter.Categories) > 0 && !containsCategory(filter.Categories, e.Category) {
			continue
		}
		if filter.ReferenceYear != nil && e.ReferenceYear != *filter.ReferenceYear {
			continue
		}
		if filter.RegistrationID != nil && e.RegistrationID != *filter.RegistrationID {
			continue
		}
		result = append(result, cloneEmployee(e))
	}
	return result
}

func (s *state) indexOf(key generic.EmployeeKey) int {
	for i, e := range s.employees {
		if e.Key() == key {
			return i
		}
	}
	return -1
}

func (s *state) getEmployee(key generic.EmployeeKey) (generic.Employee, error) {
	i := s.indexOf(key)
	if i < 0 {
		return generic.Employee{}, generic.ErrEmployeeNotFound
	}
	return cloneEmployee(s.employees[i]), nil
}

func (s *state) createEmployee(e generic.Employee) (generic.Employee, error) {
	if s.indexOf(e.Key()) >= 0 {
		return generic.Employee{}, generic.ErrDuplicateEmployee
	}
	s.nextEmployee++
	e.ID = s.nextEmployee
	s.employees = append(s.employees, cloneEmployee(e))
	return cloneEmployee(e), nil
}

func (s *state) updateEmployee(e generic.Employee) error {
	i := s.indexOf(e.Key())
	if i < 0 {
		return generic.ErrEmployeeNotFound
	}
	existing := s.employees[i]
	e.ID = existing.ID
	e.Rank = existing.Rank
	s.employees[i] = cloneEmployee(e)
	return nil
}

func (s *state) deleteEmployees(id generic.RegistrationID, years []int) int {
	s.deletePeriods(id, years)

	kept := s.employees[:0:0]
	deleted := 0
	for _, e := range s.employees {
		if e.RegistrationID == id && containsYear(years, e.ReferenceYear) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.employees = kept
	return deleted
}

func (s *state) updateRanks(ranks []generic.RankAssignment) error {
	// Resolve every key before writing so a miss leaves ranks untouched.
	idx := make([]int, len(ranks))
	for i, r := range ranks {
		idx[i] = s.indexOf(r.Key)
		if idx[i] < 0 {
			return generic.ErrEmployeeNotFound
		}
	}
	for i, r := range ranks {
		rank := r.Rank
		s.employees[idx[i]].Rank = &rank
	}
	return nil
}

func (s *state) findPeriods(filter generic.PeriodFilter) []generic.VacationPeriod {
	var allowed map[generic.RegistrationID]bool
	if filter.RegistrationIDs != nil {
		allowed = make(map[generic.RegistrationID]bool, len(filter.RegistrationIDs))
		for _, id := range filter.RegistrationIDs {
			allowed[id] = true
		}
	}

	var result []generic.VacationPeriod
	for _, p := range s.periods {
		if allowed != nil && !allowed[p.RegistrationID] {
			continue
		}
		if filter.ReferenceYear != nil && p.ReferenceYear != *filter.ReferenceYear {
			continue
		}
		if filter.Overlapping != nil && !p.Range.Overlaps(*filter.Overlapping) {
			continue
		}
		result = append(result, p)
	}

	return result
}

func (s *state) replacePeriods(key generic.EmployeeKey, periods []generic.VacationPeriod) {
	kept := s.periods[:0:0]
	for _, p := range s.periods {
		if p.Owner() != key {
			kept = append(kept, p)
		}
	}
	for _, p := range periods {
		s.nextPeriod++
		p.ID = s.nextPeriod
		p.RegistrationID = key.RegistrationID
		p.ReferenceYear = key.ReferenceYear
		kept = append(kept, p)
	}
	s.periods = kept
}

func (s *state) deletePeriods(id generic.RegistrationID, years []int) int {
	kept := s.periods[:0:0]
	deleted := 0
	for _, p := range s.periods {
		if p.RegistrationID == id && containsYear(years, p.ReferenceYear) {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	s.periods = kept
	return deleted
}

func (s *state) readSettings() (generic.Settings, error) {
	if s.settings == nil {
		return generic.Settings{}, generic.ErrSettingsNotFound
	}
	return cloneSettings(*s.settings), nil
}

func (s *state) saveSettings(settings generic.Settings) {
	c := cloneSettings(settings)
	s.settings = &c
}

func (s *state) clone() state {
	c := *s
	c.employees = make([]generic.Employee, len(s.employees))
	for i, e := range s.employees {
		c.employees[i] = cloneEmployee(e)
	}
	c.periods = append([]generic.VacationPeriod(nil), s.periods...)
	c.audit = append([]generic.AuditEntry(nil), s.audit...)
	if s.settings != nil {
		settings := cloneSettings(*s.settings)
		c.settings = &settings
	}
	return c
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.st.clone()

	if err := fn(&txMemoryView{st: &tm.st}); err != nil {
		tm.st = snapshot
		return err
	}
	return nil
}

// txMemoryView operates on the parent state while WithTx holds the lock.
type txMemoryView struct {
	st *state
}

func (tv *txMemoryView) FindEmployees(_ context.Context, filter generic.EmployeeFilter) ([]generic.Employee, error) {
	return tv.st.findEmployees(filter), nil
}

func (tv *txMemoryView) GetEmployee(_ context.Context, key generic.EmployeeKey) (generic.Employee, error) {
	return tv.st.getEmployee(key)
}

func (tv *txMemoryView) CreateEmployee(_ context.Context, e generic.Employee) (generic.Employee, error) {
	return tv.st.createEmployee(e)
}

func (tv *txMemoryView) UpdateEmployee(_ context.Context, e generic.Employee) error {
	return tv.st.updateEmployee(e)
}

func (tv *txMemoryView) DeleteEmployees(_ context.Context, id generic.RegistrationID, years []int) (int, error) {
	return tv.st.deleteEmployees(id, years), nil
}

func (tv *txMemoryView) UpdateRanks(_ context.Context, ranks []generic.RankAssignment) error {
	return tv.st.updateRanks(ranks)
}

func (tv *txMemoryView) FindVacationPeriods(_ context.Context, filter generic.PeriodFilter) ([]generic.VacationPeriod, error) {
	return tv.st.findPeriods(filter), nil
}

func (tv *txMemoryView) ReplacePeriods(_ context.Context, key generic.EmployeeKey, periods []generic.VacationPeriod) error {
	tv.st.replacePeriods(key, periods)
	return nil
}

func (tv *txMemoryView) DeletePeriods(_ context.Context, id generic.RegistrationID, years []int) (int, error) {
	return tv.st.deletePeriods(id, years), nil
}

func (tv *txMemoryView) ReadSettings(_ context.Context) (generic.Settings, error) {
	return tv.st.readSettings()
}

func (tv *txMemoryView) SaveSettings(_ context.Context, s generic.Settings) error {
	tv.st.saveSettings(s)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneEmployee(e generic.Employee) generic.Employee {
	if e.Rank != nil {
		rank := *e.Rank
		e.Rank = &rank
	}
	return e
}

func cloneSettings(s generic.Settings) generic.Settings {
	c := generic.Settings{Quotas: make(map[generic.Group]generic.GroupQuota, len(s.Quotas))}
	for g, q := range s.Quotas {
		c.Quotas[g] = q
	}
	return c
}

func containsCategory(list []generic.Category, c generic.Category) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

func containsYear(list []int, y int) bool {
	for _, x := range list {
		if x == y {
			return true
		}
	}
	return false
}

func containsAction(list []generic.AuditAction, a generic.AuditAction) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
