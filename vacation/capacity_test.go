package vacation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-engine/generic"
	"github.com/warp/vacation-engine/vacation"
)

// =============================================================================
// PURE EVALUATION
// =============================================================================

func TestEvaluateCapacity_EmptyDayAlwaysPasses(t *testing.T) {
	result := vacation.EvaluateCapacity(generic.GroupIPC, 1, span("2025-03-10", "2025-03-14"), nil, nil)

	assert.True(t, result.Allowed)
	assert.Nil(t, result.ConflictDate)
}

func TestEvaluateCapacity_Monotonicity(t *testing.T) {
	// GIVEN: two bookings covering 15..20 March, cap 2
	existing := []generic.VacationPeriod{
		{RegistrationID: "a", ReferenceYear: refYear, Range: span("2025-03-15", "2025-03-20")},
		{RegistrationID: "b", ReferenceYear: refYear, Range: span("2025-03-15", "2025-03-20")},
	}
	names := map[generic.RegistrationID]string{"a": "Ana", "b": "Bruno"}

	// WHEN: the candidate covers a full day
	// THEN: rejected on the first full day
	full := vacation.EvaluateCapacity(generic.GroupIPC, 2, span("2025-03-18", "2025-03-25"), existing, names)
	assert.False(t, full.Allowed)
	require.NotNil(t, full.ConflictDate)
	assert.Equal(t, d("2025-03-18"), *full.ConflictDate)
	assert.Len(t, full.Conflicts, 2)

	// WHEN: the candidate avoids every full day
	free := vacation.EvaluateCapacity(generic.GroupIPC, 2, span("2025-03-21", "2025-03-25"), existing, names)
	assert.True(t, free.Allowed)

	// WHEN: the cap leaves room on every day
	roomy := vacation.EvaluateCapacity(generic.GroupIPC, 3, span("2025-03-10", "2025-03-25"), existing, names)
	assert.True(t, roomy.Allowed)
}

func TestEvaluateCapacity_CountsPerDayNotPerPeriod(t *testing.T) {
	// GIVEN: two short bookings by different employees sharing only the 12th
	existing := []generic.VacationPeriod{
		{RegistrationID: "a", Range: span("2025-03-10", "2025-03-12")},
		{RegistrationID: "b", Range: span("2025-03-12", "2025-03-14")},
	}
	names := map[generic.RegistrationID]string{"a": "Ana", "b": "Bruno"}

	rejected := vacation.EvaluateCapacity(generic.GroupEPC, 2, span("2025-03-12", "2025-03-12"), existing, names)
	assert.False(t, rejected.Allowed)

	allowed := vacation.EvaluateCapacity(generic.GroupEPC, 2, span("2025-03-11", "2025-03-11"), existing, names)
	assert.True(t, allowed.Allowed)
}

func TestEvaluateCapacity_ConflictsOnlyCoverTheRejectedDay(t *testing.T) {
	existing := []generic.VacationPeriod{
		{RegistrationID: "a", Range: span("2025-03-10", "2025-03-12")},
		{RegistrationID: "b", Range: span("2025-03-13", "2025-03-14")},
	}
	names := map[generic.RegistrationID]string{"a": "Ana"}

	result := vacation.EvaluateCapacity(generic.GroupIPC, 1, span("2025-03-13", "2025-03-20"), existing, names)

	require.False(t, result.Allowed)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, generic.RegistrationID("b"), result.Conflicts[0].RegistrationID)
	assert.Equal(t, "Registration b", result.Conflicts[0].Name)
	assert.Equal(t,
		"Limit of 1 slots for group IPC reached on 13/03/2025. Slots already taken by: Registration b (vacation from 13/03/2025 to 14/03/2025).",
		result.Message)
}

func TestOccupancy(t *testing.T) {
	occ := vacation.Occupancy([]generic.VacationPeriod{
		{Range: span("2025-03-10", "2025-03-11")},
		{Range: span("2025-03-11", "2025-03-12")},
	})

	assert.Equal(t, 1, occ[d("2025-03-10")])
	assert.Equal(t, 2, occ[d("2025-03-11")])
	assert.Equal(t, 1, occ[d("2025-03-12")])
	assert.Equal(t, 0, occ[d("2025-03-13")])
}

// =============================================================================
// CHECKER AGAINST A STORE
// =============================================================================

func TestCapacityChecker_FullGroupNamesEveryConflict(t *testing.T) {
	// GIVEN: IPC cap 2, Ana and Bruno booked 15..20 March
	st := newStore(t)
	setGroupCap(t, st, generic.GroupIPC, 2)
	ana := seed(t, st, employee("100", "Ana", generic.CategoryIPC))
	bruno := seed(t, st, employee("200", "Bruno", generic.CategoryIPCP))
	seed(t, st, employee("300", "Carla", generic.CategoryIPC))
	book(t, st, ana, span("2025-03-15", "2025-03-20"))
	book(t, st, bruno, span("2025-03-15", "2025-03-20"))

	checker := &vacation.CapacityChecker{Store: st, Logger: quietLogger()}

	// WHEN: Carla asks for a range overlapping those dates
	result, err := checker.Check(context.Background(), vacation.CapacityQuery{
		Category:      generic.CategoryIPC,
		Range:         span("2025-03-10", "2025-04-08"),
		ReferenceYear: refYear,
	})

	// THEN: rejected on the 15th naming both
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 2, result.Cap)
	assert.Equal(t, generic.GroupIPC, result.Group)
	assert.Contains(t, result.Message, "Limit of 2 slots for group IPC reached on 15/03/2025.")
	assert.Contains(t, result.Message, "Ana (vacation from 15/03/2025 to 20/03/2025)")
	assert.Contains(t, result.Message, "Bruno (vacation from 15/03/2025 to 20/03/2025)")
}

func TestCapacityChecker_OnlyCountsOwnGroupAndYear(t *testing.T) {
	// GIVEN: EPC cap 1 and bookings by other groups / years on the same days
	st := newStore(t)
	setGroupCap(t, st, generic.GroupEPC, 1)

	dpc := seed(t, st, employee("1", "Dora", generic.CategoryDPC))
	book(t, st, dpc, span("2025-03-10", "2025-03-20"))

	nextYear := employee("2", "Eli", generic.CategoryEPC)
	nextYear.ReferenceYear = refYear + 1
	nextYear = seed(t, st, nextYear)
	book(t, st, nextYear, span("2025-03-10", "2025-03-20"))

	seed(t, st, employee("3", "Fabio", generic.CategoryEPCP))

	checker := &vacation.CapacityChecker{Store: st}

	// WHEN
	result, err := checker.Check(context.Background(), vacation.CapacityQuery{
		Category:      generic.CategoryEPCP,
		Range:         span("2025-03-10", "2025-03-20"),
		ReferenceYear: refYear,
	})

	// THEN
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestCapacityChecker_PlusSubcategorySharesGroupQuota(t *testing.T) {
	st := newStore(t)
	setGroupCap(t, st, generic.GroupDPC, 1)
	plus := seed(t, st, employee("1", "Gil", generic.CategoryDPCP))
	book(t, st, plus, span("2025-03-10", "2025-03-20"))

	checker := &vacation.CapacityChecker{Store: st}
	result, err := checker.Check(context.Background(), vacation.CapacityQuery{
		Category:      generic.CategoryDPC,
		Range:         span("2025-03-20", "2025-03-25"),
		ReferenceYear: refYear,
	})

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, d("2025-03-20"), *result.ConflictDate)
}

func TestCapacityChecker_ExcludeDropsOwnBookings(t *testing.T) {
	// GIVEN: cap 1 and the employee's own booking on the candidate dates
	st := newStore(t)
	setGroupCap(t, st, generic.GroupIPC, 1)
	me := seed(t, st, employee("1", "Ana", generic.CategoryIPC))
	book(t, st, me, span("2025-03-10", "2025-04-08"))

	checker := &vacation.CapacityChecker{Store: st}
	q := vacation.CapacityQuery{
		Category:      generic.CategoryIPC,
		Range:         span("2025-03-17", "2025-04-15"),
		ReferenceYear: refYear,
	}

	// WHEN: checked without exclusion
	blocked, err := checker.Check(context.Background(), q)
	require.NoError(t, err)

	// WHEN: checked as an edit
	id := me.RegistrationID
	q.Exclude = &id
	edited, err := checker.Check(context.Background(), q)
	require.NoError(t, err)

	// THEN
	assert.False(t, blocked.Allowed)
	assert.True(t, edited.Allowed)
}

func TestCapacityChecker_EmptyRiskSetIsAllowed(t *testing.T) {
	st := newStore(t)
	setGroupCap(t, st, generic.GroupIPC, 0)

	result, err := (&vacation.CapacityChecker{Store: st}).Check(context.Background(), vacation.CapacityQuery{
		Category:      generic.CategoryIPC,
		Range:         span("2025-03-10", "2025-03-12"),
		ReferenceYear: refYear,
	})

	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestCapacityChecker_ZeroCapRejectsFirstDay(t *testing.T) {
	st := newStore(t)
	setGroupCap(t, st, generic.GroupDPC, 0)
	seed(t, st, employee("1", "Dora", generic.CategoryDPC))

	result, err := (&vacation.CapacityChecker{Store: st}).Check(context.Background(), vacation.CapacityQuery{
		Category:      generic.CategoryDPC,
		Range:         span("2025-03-10", "2025-03-12"),
		ReferenceYear: refYear,
	})

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, "Limit of 0 slots for group DPC reached on 10/03/2025.", result.Message)
}

func TestCapacityChecker_RejectsMalformedQueries(t *testing.T) {
	checker := &vacation.CapacityChecker{Store: newStore(t)}
	ctx := context.Background()

	_, err := checker.Check(ctx, vacation.CapacityQuery{Category: "XYZ", Range: span("2025-03-10", "2025-03-12"), ReferenceYear: refYear})
	assert.ErrorIs(t, err, generic.ErrUnknownCategory)

	_, err = checker.Check(ctx, vacation.CapacityQuery{Category: generic.CategoryIPC, Range: span("2025-03-12", "2025-03-10"), ReferenceYear: refYear})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	_, err = checker.Check(ctx, vacation.CapacityQuery{Category: generic.CategoryIPC, Range: span("2025-03-03", "9999-12-31"), ReferenceYear: refYear})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestCapacityChecker_MissingSettingsIsNotAClientError(t *testing.T) {
	checker := &vacation.CapacityChecker{Store: newEmptyStore()}

	_, err := checker.Check(context.Background(), vacation.CapacityQuery{
		Category:      generic.CategoryIPC,
		Range:         span("2025-03-10", "2025-03-12"),
		ReferenceYear: refYear,
	})

	assert.ErrorIs(t, err, generic.ErrSettingsNotFound)
	assert.False(t, generic.IsClientError(err))
}

func TestCapacityChecker_IncompleteStoredSettingsIsAServerFault(t *testing.T) {
	// GIVEN: a stored settings record without an IPC quota
	st := newEmptyStore()
	settings := generic.DefaultSettings()
	delete(settings.Quotas, generic.GroupIPC)
	require.NoError(t, st.SaveSettings(context.Background(), settings))
	checker := &vacation.CapacityChecker{Store: st}

	// WHEN
	_, err := checker.Check(context.Background(), vacation.CapacityQuery{
		Category:      generic.CategoryIPC,
		Range:         span("2025-03-10", "2025-03-12"),
		ReferenceYear: refYear,
	})

	// THEN
	assert.ErrorIs(t, err, generic.ErrIncompleteSettings)
	assert.False(t, generic.IsClientError(err))
}
