package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-engine/generic"
	"github.com/warp/vacation-engine/generic/store"
)

func d(s string) generic.Date { return generic.MustParseDate(s) }

func emp(id string, year int, cat generic.Category) generic.Employee {
	return generic.Employee{
		RegistrationID: generic.RegistrationID(id),
		ReferenceYear:  year,
		Name:           "Employee " + id,
		Category:       cat,
		HireDate:       d("2015-03-02"),
		BirthDate:      d("1985-06-15"),
	}
}

func period(start, end string) generic.VacationPeriod {
	return generic.VacationPeriod{Range: generic.DateRange{Start: d(start), End: d(end)}}
}

func TestMemory_EmployeeCRUD(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()

	created, err := st.CreateEmployee(ctx, emp("1", 2024, generic.CategoryIPC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	_, err = st.CreateEmployee(ctx, emp("1", 2024, generic.CategoryEPC))
	assert.ErrorIs(t, err, generic.ErrDuplicateEmployee)

	_, err = st.CreateEmployee(ctx, emp("1", 2025, generic.CategoryIPC))
	require.NoError(t, err)

	require.NoError(t, st.UpdateRanks(ctx, []generic.RankAssignment{{Key: created.Key(), Rank: 4}}))
	changed := emp("1", 2024, generic.CategoryIPCP)
	require.NoError(t, st.UpdateEmployee(ctx, changed))

	got, err := st.GetEmployee(ctx, created.Key())
	require.NoError(t, err)
	assert.Equal(t, generic.CategoryIPCP, got.Category)
	assert.Equal(t, created.ID, got.ID)
	require.NotNil(t, got.Rank)
	assert.Equal(t, 4, *got.Rank)

	assert.ErrorIs(t, st.UpdateEmployee(ctx, emp("9", 2024, generic.CategoryIPC)), generic.ErrEmployeeNotFound)
}

func TestMemory_FindEmployeesFiltersInInsertionOrder(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()
	for _, e := range []generic.Employee{
		emp("3", 2024, generic.CategoryIPC),
		emp("1", 2024, generic.CategoryEPC),
		emp("2", 2024, generic.CategoryIPCP),
		emp("2", 2025, generic.CategoryIPC),
	} {
		_, err := st.CreateEmployee(ctx, e)
		require.NoError(t, err)
	}

	year := 2024
	got, err := st.FindEmployees(ctx, generic.EmployeeFilter{
		Categories:    generic.GroupIPC.Categories(),
		ReferenceYear: &year,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, generic.RegistrationID("3"), got[0].RegistrationID)
	assert.Equal(t, generic.RegistrationID("2"), got[1].RegistrationID)

	id := generic.RegistrationID("2")
	byID, err := st.FindEmployees(ctx, generic.EmployeeFilter{RegistrationID: &id})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
}

func TestMemory_ReturnedRanksAreCopies(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()
	e, err := st.CreateEmployee(ctx, emp("1", 2024, generic.CategoryIPC))
	require.NoError(t, err)
	require.NoError(t, st.UpdateRanks(ctx, []generic.RankAssignment{{Key: e.Key(), Rank: 1}}))

	got, err := st.GetEmployee(ctx, e.Key())
	require.NoError(t, err)
	*got.Rank = 42

	again, err := st.GetEmployee(ctx, e.Key())
	require.NoError(t, err)
	assert.Equal(t, 1, *again.Rank)
}

func TestMemory_UpdateRanksIsAllOrNothing(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()
	e, err := st.CreateEmployee(ctx, emp("1", 2024, generic.CategoryIPC))
	require.NoError(t, err)

	err = st.UpdateRanks(ctx, []generic.RankAssignment{
		{Key: e.Key(), Rank: 1},
		{Key: generic.EmployeeKey{RegistrationID: "missing", ReferenceYear: 2024}, Rank: 2},
	})

	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)
	got, err := st.GetEmployee(ctx, e.Key())
	require.NoError(t, err)
	assert.Nil(t, got.Rank)
}

func TestMemory_PeriodFilters(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()
	a := generic.EmployeeKey{RegistrationID: "a", ReferenceYear: 2024}
	b := generic.EmployeeKey{RegistrationID: "b", ReferenceYear: 2024}
	require.NoError(t, st.ReplacePeriods(ctx, a, []generic.VacationPeriod{period("2025-03-10", "2025-03-19")}))
	require.NoError(t, st.ReplacePeriods(ctx, b, []generic.VacationPeriod{period("2025-04-07", "2025-04-16")}))

	all, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{RegistrationIDs: []generic.RegistrationID{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	window := generic.DateRange{Start: d("2025-03-19"), End: d("2025-04-01")}
	overlapping, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{Overlapping: &window})
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, generic.RegistrationID("a"), overlapping[0].RegistrationID)
	assert.Equal(t, 2024, overlapping[0].ReferenceYear)
}

func TestMemory_ReplaceAndDelete(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()
	e, err := st.CreateEmployee(ctx, emp("1", 2024, generic.CategoryIPC))
	require.NoError(t, err)
	key := e.Key()

	require.NoError(t, st.ReplacePeriods(ctx, key, []generic.VacationPeriod{
		period("2025-03-10", "2025-03-19"),
		period("2025-04-07", "2025-04-16"),
	}))
	require.NoError(t, st.ReplacePeriods(ctx, key, []generic.VacationPeriod{period("2025-05-05", "2025-06-03")}))

	periods, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{})
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, d("2025-05-05"), periods[0].Range.Start)

	n, err := st.DeleteEmployees(ctx, "1", []int{2024})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	periods, err = st.FindVacationPeriods(ctx, generic.PeriodFilter{})
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	// GIVEN: one stored employee
	st := store.NewTxMemory()
	ctx := context.Background()
	e, err := st.CreateEmployee(ctx, emp("1", 2024, generic.CategoryIPC))
	require.NoError(t, err)
	boom := errors.New("boom")

	// WHEN: a transaction writes then fails
	err = st.WithTx(ctx, func(tx generic.Store) error {
		if _, err := tx.CreateEmployee(ctx, emp("2", 2024, generic.CategoryIPC)); err != nil {
			return err
		}
		if err := tx.ReplacePeriods(ctx, e.Key(), []generic.VacationPeriod{period("2025-03-10", "2025-03-19")}); err != nil {
			return err
		}
		return boom
	})

	// THEN: nothing from the transaction is visible
	assert.ErrorIs(t, err, boom)
	all, err := st.FindEmployees(ctx, generic.EmployeeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	periods, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{})
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestTxMemory_CommitOnSuccess(t *testing.T) {
	st := store.NewTxMemory()
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx generic.Store) error {
		_, err := tx.CreateEmployee(ctx, emp("1", 2024, generic.CategoryIPC))
		return err
	})

	require.NoError(t, err)
	_, err = st.GetEmployee(ctx, generic.EmployeeKey{RegistrationID: "1", ReferenceYear: 2024})
	assert.NoError(t, err)
}

func TestMemory_Settings(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	_, err := st.ReadSettings(ctx)
	assert.ErrorIs(t, err, generic.ErrSettingsNotFound)

	s := generic.DefaultSettings()
	require.NoError(t, st.SaveSettings(ctx, s))
	s.Quotas[generic.GroupIPC] = generic.GroupQuota{Total: 99}

	got, err := st.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quotas[generic.GroupIPC].Total)
}

func TestMemory_AuditNewestFirst(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, a := range []generic.AuditAction{generic.AuditEmployeeCreated, generic.AuditBookingCreated, generic.AuditBookingReset} {
		require.NoError(t, st.AppendAudit(ctx, generic.AuditEntry{
			ID:             string(rune('a' + i)),
			Timestamp:      now.Add(time.Duration(i) * time.Minute),
			Action:         a,
			RegistrationID: "1",
		}))
	}
	require.NoError(t, st.AppendAudit(ctx, generic.AuditEntry{ID: "z", Action: generic.AuditBookingCreated, RegistrationID: "2"}))

	id := generic.RegistrationID("1")
	entries, err := st.QueryAudit(ctx, generic.AuditFilter{RegistrationID: &id, Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)

	bookings, err := st.QueryAudit(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditBookingCreated}})
	require.NoError(t, err)
	assert.Len(t, bookings, 2)
}
