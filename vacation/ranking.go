/*
ranking.go - Priority ranking within (category group, reference year)

PURPOSE:
  Orders the employees of one group and year by a strict priority tuple and
  persists rank = position + 1. Runs after employee mutations, never after
  bookings.

PRIORITY (descending, next field breaks ties):
  1. pregnant
  2. child count
  3. student
  4. two jobs
  5. hire-date day offset (earlier hire wins)
  6. spouse in service
  7. birth-date day offset (older wins)

Exact ties on all seven fields keep store order, so the sort must stay stable.

GUARANTEES:
  - Idempotent: unchanged inputs produce identical ranks.
  - Isolated: one (group, year) batch never writes outside itself, and each
    batch commits atomically.

SEE ALSO:
  - api/scheduler.go: coalesces recompute triggers in the background
*/
package vacation

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/warp/vacation-engine/generic"
)

// Rank returns the employees in priority order. The input is not modified.
func Rank(employees []generic.Employee) []generic.Employee {
	ordered := append([]generic.Employee(nil), employees...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return comparePriority(ordered[i], ordered[j]) < 0
	})
	return ordered
}

// comparePriority is negative when a ranks ahead of b.
func comparePriority(a, b generic.Employee) int {
	if c := compareFlag(a.Pregnant, b.Pregnant); c != 0 {
		return c
	}
	if a.ChildCount != b.ChildCount {
		return b.ChildCount - a.ChildCount
	}
	if c := compareFlag(a.Student, b.Student); c != 0 {
		return c
	}
	if c := compareFlag(a.TwoJobs, b.TwoJobs); c != 0 {
		return c
	}
	if a.HireDayOffset != b.HireDayOffset {
		return b.HireDayOffset - a.HireDayOffset
	}
	if c := compareFlag(a.SpouseInService, b.SpouseInService); c != 0 {
		return c
	}
	return b.BirthDayOffset - a.BirthDayOffset
}

func compareFlag(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

// =============================================================================
// RANKER - Persists ranks per (group, year)
// =============================================================================

// GroupYearRank summarizes one recomputed batch.
type GroupYearRank struct {
	Group  generic.Group `json:"group"`
	Year   int           `json:"year"`
	Ranked int           `json:"ranked"`
}

type RankReport struct {
	Batches   []GroupYearRank `json:"batches"`
	Employees int             `json:"employees"`
}

type Ranker struct {
	Store  generic.TxStore
	Audit  *Auditor
	Logger logrus.FieldLogger
}

// Recompute ranks every (group, year) pair present in the store.
func (r *Ranker) Recompute(ctx context.Context) (RankReport, error) {
	var report RankReport

	for _, group := range generic.Groups {
		members, err := r.Store.FindEmployees(ctx, generic.EmployeeFilter{Categories: group.Categories()})
		if err != nil {
			return report, fmt.Errorf("failed to load group %s: %w", group, err)
		}

		for _, year := range distinctYears(members) {
			n, err := r.RecomputeGroupYear(ctx, group, year)
			if err != nil {
				return report, err
			}
			report.Batches = append(report.Batches, GroupYearRank{Group: group, Year: year, Ranked: n})
			report.Employees += n
		}
	}

	logger(r.Logger).WithFields(logrus.Fields{
		"batches":   len(report.Batches),
		"employees": report.Employees,
	}).Info("ranks recomputed")
	r.Audit.Record(ctx, generic.AuditRanksRecomputed, generic.EmployeeKey{}, map[string]any{
		"batches":   len(report.Batches),
		"employees": report.Employees,
	})

	return report, nil
}

// RecomputeGroupYear ranks one group in one year inside a single transaction
// and returns how many employees were ranked.
func (r *Ranker) RecomputeGroupYear(ctx context.Context, group generic.Group, year int) (int, error) {
	var ranked int
	err := r.Store.WithTx(ctx, func(tx generic.Store) error {
		y := year
		employees, err := tx.FindEmployees(ctx, generic.EmployeeFilter{
			Categories:    group.Categories(),
			ReferenceYear: &y,
		})
		if err != nil {
			return fmt.Errorf("failed to load group %s year %d: %w", group, year, err)
		}

		ordered := Rank(employees)
		batch := make([]generic.RankAssignment, len(ordered))
		for i, e := range ordered {
			batch[i] = generic.RankAssignment{Key: e.Key(), Rank: i + 1}
		}
		if err := tx.UpdateRanks(ctx, batch); err != nil {
			return fmt.Errorf("failed to persist ranks for group %s year %d: %w", group, year, err)
		}
		ranked = len(batch)
		return nil
	})
	return ranked, err
}

func distinctYears(employees []generic.Employee) []int {
	seen := make(map[int]bool)
	var years []int
	for _, e := range employees {
		if !seen[e.ReferenceYear] {
			seen[e.ReferenceYear] = true
			years = append(years, e.ReferenceYear)
		}
	}
	sort.Ints(years)
	return years
}
