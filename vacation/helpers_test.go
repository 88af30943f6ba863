package vacation_test

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-engine/generic"
	"github.com/warp/vacation-engine/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// refYear is the reference year of the default fixture employee. With a
// 2015-03-02 hire date the acquisition window is 2024-03-02..2025-03-01.
const refYear = 2024

func newStore(t *testing.T) *store.TxMemory {
	t.Helper()
	st := store.NewTxMemory()
	require.NoError(t, st.SaveSettings(context.Background(), generic.DefaultSettings()))
	return st
}

// newEmptyStore has no settings record.
func newEmptyStore() *store.TxMemory {
	return store.NewTxMemory()
}

func setGroupCap(t *testing.T, st generic.Store, g generic.Group, limit int) {
	t.Helper()
	ctx := context.Background()
	settings, err := st.ReadSettings(ctx)
	require.NoError(t, err)
	q := settings.Quotas[g]
	q.Total = limit
	settings.Quotas[g] = q
	require.NoError(t, st.SaveSettings(ctx, settings))
}

func d(s string) generic.Date { return generic.MustParseDate(s) }

func span(start, end string) generic.DateRange {
	return generic.DateRange{Start: d(start), End: d(end)}
}

func employee(id, name string, cat generic.Category) generic.Employee {
	return generic.Employee{
		RegistrationID: generic.RegistrationID(id),
		ReferenceYear:  refYear,
		Name:           name,
		Category:       cat,
		HireDate:       d("2015-03-02"),
		BirthDate:      d("1985-06-15"),
	}
}

func seed(t *testing.T, st generic.Store, e generic.Employee) generic.Employee {
	t.Helper()
	require.NoError(t, e.Derive())
	created, err := st.CreateEmployee(context.Background(), e)
	require.NoError(t, err)
	return created
}

func book(t *testing.T, st generic.Store, e generic.Employee, ranges ...generic.DateRange) {
	t.Helper()
	periods := make([]generic.VacationPeriod, len(ranges))
	for i, r := range ranges {
		periods[i] = generic.VacationPeriod{Sequence: i + 1, Range: r}
	}
	require.NoError(t, st.ReplacePeriods(context.Background(), e.Key(), periods))
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger() {
	if c != nil {
		c.n++
	}
}
