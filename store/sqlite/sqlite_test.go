package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-engine/generic"
	"github.com/warp/vacation-engine/store/sqlite"
	"github.com/warp/vacation-engine/vacation"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func d(s string) generic.Date { return generic.MustParseDate(s) }

func span(start, end string) generic.DateRange {
	return generic.DateRange{Start: d(start), End: d(end)}
}

func employee(t *testing.T, id string, year int, cat generic.Category) generic.Employee {
	t.Helper()
	e := generic.Employee{
		RegistrationID: generic.RegistrationID(id),
		ReferenceYear:  year,
		Name:           "Employee " + id,
		Category:       cat,
		ChildCount:     2,
		Student:        true,
		HireDate:       d("2015-03-02"),
		BirthDate:      d("1985-06-15"),
	}
	require.NoError(t, e.Derive())
	return e
}

func intPtr(n int) *int { return &n }

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployee_CreateAndGet(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	created, err := st.CreateEmployee(ctx, employee(t, "A1", 2024, generic.CategoryEPCP))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := st.GetEmployee(ctx, created.Key())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, generic.CategoryEPCP, got.Category)
	assert.Equal(t, 2, got.ChildCount)
	assert.True(t, got.Student)
	assert.False(t, got.Pregnant)
	assert.Equal(t, d("2015-03-02"), got.HireDate)
	assert.Equal(t, created.AcquisitionWindow, got.AcquisitionWindow)
	assert.Equal(t, created.HireDayOffset, got.HireDayOffset)
	assert.Nil(t, got.Rank)
}

func TestEmployee_GetUnknown(t *testing.T) {
	st := newStore(t)

	_, err := st.GetEmployee(context.Background(), generic.EmployeeKey{RegistrationID: "nope", ReferenceYear: 2024})
	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)
}

func TestEmployee_DuplicateKey(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.CreateEmployee(ctx, employee(t, "A1", 2024, generic.CategoryIPC))
	require.NoError(t, err)

	_, err = st.CreateEmployee(ctx, employee(t, "A1", 2024, generic.CategoryIPC))
	assert.ErrorIs(t, err, generic.ErrDuplicateEmployee)

	// Same registration in another year is a different employee-year.
	_, err = st.CreateEmployee(ctx, employee(t, "A1", 2025, generic.CategoryIPC))
	assert.NoError(t, err)
}

func TestEmployee_UpdateKeepsRank(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	e, err := st.CreateEmployee(ctx, employee(t, "A1", 2024, generic.CategoryIPC))
	require.NoError(t, err)
	require.NoError(t, st.UpdateRanks(ctx, []generic.RankAssignment{{Key: e.Key(), Rank: 4}}))

	e.Name = "Renamed"
	e.Pregnant = true
	require.NoError(t, st.UpdateEmployee(ctx, e))

	got, err := st.GetEmployee(ctx, e.Key())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.Pregnant)
	require.NotNil(t, got.Rank)
	assert.Equal(t, 4, *got.Rank)
}

func TestEmployee_UpdateUnknown(t *testing.T) {
	st := newStore(t)

	err := st.UpdateEmployee(context.Background(), employee(t, "ghost", 2024, generic.CategoryIPC))
	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)
}

func TestEmployee_FindFilters(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	for _, e := range []generic.Employee{
		employee(t, "A", 2024, generic.CategoryIPC),
		employee(t, "B", 2024, generic.CategoryIPCP),
		employee(t, "C", 2024, generic.CategoryDPC),
		employee(t, "A", 2025, generic.CategoryIPC),
	} {
		_, err := st.CreateEmployee(ctx, e)
		require.NoError(t, err)
	}

	all, err := st.FindEmployees(ctx, generic.EmployeeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	group, err := st.FindEmployees(ctx, generic.EmployeeFilter{
		Categories:    generic.GroupIPC.Categories(),
		ReferenceYear: intPtr(2024),
	})
	require.NoError(t, err)
	require.Len(t, group, 2)
	assert.Equal(t, generic.RegistrationID("A"), group[0].RegistrationID)
	assert.Equal(t, generic.RegistrationID("B"), group[1].RegistrationID)

	id := generic.RegistrationID("A")
	years, err := st.FindEmployees(ctx, generic.EmployeeFilter{RegistrationID: &id})
	require.NoError(t, err)
	assert.Len(t, years, 2)
}

func TestEmployee_UpdateRanksIsAtomic(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	a, err := st.CreateEmployee(ctx, employee(t, "A", 2024, generic.CategoryIPC))
	require.NoError(t, err)

	err = st.UpdateRanks(ctx, []generic.RankAssignment{
		{Key: a.Key(), Rank: 1},
		{Key: generic.EmployeeKey{RegistrationID: "missing", ReferenceYear: 2024}, Rank: 2},
	})
	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)

	got, err := st.GetEmployee(ctx, a.Key())
	require.NoError(t, err)
	assert.Nil(t, got.Rank, "partial batch must roll back")
}

func TestEmployee_DeleteCascadesPeriods(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	e, err := st.CreateEmployee(ctx, employee(t, "A", 2024, generic.CategoryIPC))
	require.NoError(t, err)
	require.NoError(t, st.ReplacePeriods(ctx, e.Key(), []generic.VacationPeriod{
		{Sequence: 1, Range: span("2024-07-01", "2024-07-30")},
	}))

	n, err := st.DeleteEmployees(ctx, "A", []int{2024, 2030})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	periods, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{})
	require.NoError(t, err)
	assert.Empty(t, periods)
}

// =============================================================================
// PERIODS
// =============================================================================

func TestPeriods_ReplaceAndOverlap(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	key := generic.EmployeeKey{RegistrationID: "A", ReferenceYear: 2024}

	require.NoError(t, st.ReplacePeriods(ctx, key, []generic.VacationPeriod{
		{Sequence: 1, Range: span("2024-07-01", "2024-07-10")},
		{Sequence: 2, Range: span("2024-09-01", "2024-09-20")},
	}))

	window := span("2024-07-10", "2024-07-15")
	hits, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{Overlapping: &window})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Sequence)
	assert.Equal(t, key, hits[0].Owner())
	assert.Equal(t, span("2024-07-01", "2024-07-10"), hits[0].Range)

	// Replace is whole-set.
	require.NoError(t, st.ReplacePeriods(ctx, key, []generic.VacationPeriod{
		{Sequence: 1, Range: span("2024-11-04", "2024-12-03")},
	}))
	all, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, span("2024-11-04", "2024-12-03"), all[0].Range)
}

func TestPeriods_RegistrationFilter(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplacePeriods(ctx, generic.EmployeeKey{RegistrationID: "A", ReferenceYear: 2024},
		[]generic.VacationPeriod{{Sequence: 1, Range: span("2024-07-01", "2024-07-30")}}))
	require.NoError(t, st.ReplacePeriods(ctx, generic.EmployeeKey{RegistrationID: "B", ReferenceYear: 2024},
		[]generic.VacationPeriod{{Sequence: 1, Range: span("2024-07-01", "2024-07-30")}}))
	require.NoError(t, st.ReplacePeriods(ctx, generic.EmployeeKey{RegistrationID: "A", ReferenceYear: 2025},
		[]generic.VacationPeriod{{Sequence: 1, Range: span("2025-07-01", "2025-07-30")}}))

	// Non-nil empty list matches nothing.
	none, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{RegistrationIDs: []generic.RegistrationID{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	onlyA, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{
		RegistrationIDs: []generic.RegistrationID{"A"},
		ReferenceYear:   intPtr(2024),
	})
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, generic.RegistrationID("A"), onlyA[0].RegistrationID)

	n, err := st.DeletePeriods(ctx, "A", []int{2024, 2025})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_RoundTrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.ReadSettings(ctx)
	assert.ErrorIs(t, err, generic.ErrSettingsNotFound)

	settings := generic.DefaultSettings()
	settings.Quotas[generic.GroupDPC] = generic.GroupQuota{Base: 1, Plus: 1, Total: 1}
	require.NoError(t, st.SaveSettings(ctx, settings))

	got, err := st.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Quotas, got.Quotas)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx generic.Store) error {
		if _, err := tx.CreateEmployee(ctx, employee(t, "A", 2024, generic.CategoryIPC)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := st.FindEmployees(ctx, generic.EmployeeFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWithTx_CommitSeesOwnWrites(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx generic.Store) error {
		e, err := tx.CreateEmployee(ctx, employee(t, "A", 2024, generic.CategoryIPC))
		if err != nil {
			return err
		}
		if err := tx.ReplacePeriods(ctx, e.Key(), []generic.VacationPeriod{
			{Sequence: 1, Range: span("2024-07-01", "2024-07-30")},
		}); err != nil {
			return err
		}
		periods, err := tx.FindVacationPeriods(ctx, generic.PeriodFilter{})
		if err != nil {
			return err
		}
		assert.Len(t, periods, 1)
		return nil
	})
	require.NoError(t, err)

	periods, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{})
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAudit_NewestFirstWithLimit(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, action := range []generic.AuditAction{
		generic.AuditEmployeeCreated,
		generic.AuditBookingCreated,
		generic.AuditBookingReplaced,
	} {
		require.NoError(t, st.AppendAudit(ctx, generic.AuditEntry{
			ID:             string(rune('a' + i)),
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
			Action:         action,
			RegistrationID: "A",
			ReferenceYear:  2024,
			Payload:        map[string]any{"step": i},
		}))
	}

	entries, err := st.QueryAudit(ctx, generic.AuditFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, generic.AuditBookingReplaced, entries[0].Action)
	assert.Equal(t, generic.AuditBookingCreated, entries[1].Action)
	assert.Equal(t, float64(2), entries[0].Payload["step"])

	created, err := st.QueryAudit(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditEmployeeCreated}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, generic.RegistrationID("A"), created[0].RegistrationID)
	assert.Equal(t, 2024, created[0].ReferenceYear)
}

func TestReset_KeepsSettings(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSettings(ctx, generic.DefaultSettings()))
	_, err := st.CreateEmployee(ctx, employee(t, "A", 2024, generic.CategoryIPC))
	require.NoError(t, err)

	require.NoError(t, st.Reset(ctx))

	all, err := st.FindEmployees(ctx, generic.EmployeeFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	_, err = st.ReadSettings(ctx)
	assert.NoError(t, err)
}

// =============================================================================
// END TO END - booking through the relational store
// =============================================================================

func TestBooking_CapacityOnSQLite(t *testing.T) {
	// GIVEN: group IPC capped at 1, and A already booked in March
	st := newStore(t)
	ctx := context.Background()

	settings := generic.DefaultSettings()
	settings.Quotas[generic.GroupIPC] = generic.GroupQuota{Base: 1, Plus: 1, Total: 1}
	require.NoError(t, st.SaveSettings(ctx, settings))

	a, err := st.CreateEmployee(ctx, employee(t, "A", 2024, generic.CategoryIPC))
	require.NoError(t, err)
	b, err := st.CreateEmployee(ctx, employee(t, "B", 2024, generic.CategoryIPCP))
	require.NoError(t, err)

	svc := &vacation.BookingService{Store: st}
	res, err := svc.Book(ctx, vacation.BookingRequest{
		Key:     a.Key(),
		Periods: []generic.DateRange{span("2025-03-10", "2025-04-08")},
		Split:   "1",
	})
	require.NoError(t, err)
	require.True(t, res.OK, res.Messages())

	// WHEN: B asks for an overlapping single period
	res, err = svc.Book(ctx, vacation.BookingRequest{
		Key:     b.Key(),
		Periods: []generic.DateRange{span("2025-03-17", "2025-04-15")},
		Split:   "1",
	})

	// THEN: rejected on the first shared day, nothing stored for B
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.NotEmpty(t, res.Messages())
	assert.Contains(t, res.Messages()[0], "Limit of 1 slots for group IPC reached on 17/03/2025.")

	periods, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{RegistrationIDs: []generic.RegistrationID{"B"}})
	require.NoError(t, err)
	assert.Empty(t, periods)
}
