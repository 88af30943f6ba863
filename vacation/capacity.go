/*
capacity.go - Per-day headcount quota checker

PURPOSE:
  Decides whether one more employee of a category group may be on vacation
  on every day of a candidate range, given the bookings already stored for
  the group and reference year.

ALGORITHM:
  1. Resolve the category's group and read the group's combined cap.
  2. Load the risk set: every employee-year of the group (both subcategories)
     in the reference year. Empty risk set means allowed.
  3. Load the risk set's periods intersecting the candidate range, minus the
     excluded registration when re-validating an edit.
  4. Expand the periods into a per-day occupancy count.
  5. Walk the candidate range; the first day where occupancy+1 > cap rejects,
     naming every booking that covers that day.

The walk is per day, not per period: two short periods by different
employees that share a day both count toward that day.

SEE ALSO:
  - validator.go: calls Check for every candidate period
  - calendar.go: reuses Occupancy for the year view
*/
package vacation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/warp/vacation-engine/generic"
)

// CapacityQuery is one pre-flight or validation check.
type CapacityQuery struct {
	Category      generic.Category
	Range         generic.DateRange
	ReferenceYear int

	// Exclude drops this registration's bookings (in ReferenceYear) from the
	// count. Set when re-validating an edit against its own prior periods.
	Exclude *generic.RegistrationID
}

// Conflict is an existing booking that covers the rejected day.
type Conflict struct {
	RegistrationID generic.RegistrationID `json:"registration_id"`
	Name           string                 `json:"name"`
	Range          generic.DateRange      `json:"range"`
}

type CapacityResult struct {
	Allowed      bool          `json:"allowed"`
	Message      string        `json:"message"`
	Group        generic.Group `json:"group"`
	Cap          int           `json:"cap"`
	ConflictDate *generic.Date `json:"conflict_date,omitempty"`
	Conflicts    []Conflict    `json:"conflicts,omitempty"`
}

const (
	msgCapacityRespected = "Slot limit respected."
	msgEmptyRiskSet      = "No employees in the group to check."
)

// =============================================================================
// CAPACITY CHECKER
// =============================================================================

type CapacityChecker struct {
	Store  generic.Store
	Logger logrus.FieldLogger
}

// Check loads the group snapshot from the store and evaluates the query.
func (c *CapacityChecker) Check(ctx context.Context, q CapacityQuery) (CapacityResult, error) {
	if !q.Category.Valid() {
		return CapacityResult{}, fmt.Errorf("%w: %q", generic.ErrUnknownCategory, q.Category)
	}
	if err := q.Range.Check(); err != nil {
		return CapacityResult{}, err
	}

	group := q.Category.Group()

	settings, err := c.Store.ReadSettings(ctx)
	if err != nil {
		return CapacityResult{}, fmt.Errorf("failed to read settings: %w", err)
	}
	limit, ok := settings.GroupCap(group)
	if !ok {
		return CapacityResult{}, fmt.Errorf("%w: no quota for group %s", generic.ErrIncompleteSettings, group)
	}

	year := q.ReferenceYear
	riskSet, err := c.Store.FindEmployees(ctx, generic.EmployeeFilter{
		Categories:    group.Categories(),
		ReferenceYear: &year,
	})
	if err != nil {
		return CapacityResult{}, fmt.Errorf("failed to load group %s: %w", group, err)
	}
	if len(riskSet) == 0 {
		return CapacityResult{Allowed: true, Message: msgEmptyRiskSet, Group: group, Cap: limit}, nil
	}

	names := make(map[generic.RegistrationID]string, len(riskSet))
	ids := make([]generic.RegistrationID, 0, len(riskSet))
	for _, e := range riskSet {
		names[e.RegistrationID] = e.Name
		if q.Exclude != nil && e.RegistrationID == *q.Exclude {
			continue
		}
		ids = append(ids, e.RegistrationID)
	}

	candidate := q.Range
	existing, err := c.Store.FindVacationPeriods(ctx, generic.PeriodFilter{
		RegistrationIDs: ids,
		ReferenceYear:   &year,
		Overlapping:     &candidate,
	})
	if err != nil {
		return CapacityResult{}, fmt.Errorf("failed to load bookings for group %s: %w", group, err)
	}

	result := EvaluateCapacity(group, limit, q.Range, existing, names)
	if !result.Allowed {
		logger(c.Logger).WithFields(logrus.Fields{
			"group":    group,
			"year":     year,
			"cap":      limit,
			"conflict": result.ConflictDate.String(),
		}).Debug("capacity exceeded")
	}
	return result, nil
}

// =============================================================================
// PURE EVALUATION
// =============================================================================

// Occupancy counts, per calendar day, how many periods cover it.
func Occupancy(periods []generic.VacationPeriod) map[generic.Date]int {
	counts := make(map[generic.Date]int)
	for _, p := range periods {
		for _, d := range p.Range.Days() {
			counts[d]++
		}
	}
	return counts
}

// EvaluateCapacity checks the candidate against existing bookings of one
// group. existing must already be scoped to the group, year and exclusion;
// names resolves registration ids for the conflict message.
func EvaluateCapacity(
	group generic.Group,
	limit int,
	candidate generic.DateRange,
	existing []generic.VacationPeriod,
	names map[generic.RegistrationID]string,
) CapacityResult {
	occupancy := Occupancy(existing)

	for _, day := range candidate.Days() {
		if occupancy[day]+1 <= limit {
			continue
		}

		var conflicts []Conflict
		for _, p := range existing {
			if !p.Range.Contains(day) {
				continue
			}
			name, ok := names[p.RegistrationID]
			if !ok || name == "" {
				name = "Registration " + string(p.RegistrationID)
			}
			conflicts = append(conflicts, Conflict{
				RegistrationID: p.RegistrationID,
				Name:           name,
				Range:          p.Range,
			})
		}

		conflictDay := day
		return CapacityResult{
			Allowed:      false,
			Message:      capacityMessage(group, limit, day, conflicts),
			Group:        group,
			Cap:          limit,
			ConflictDate: &conflictDay,
			Conflicts:    conflicts,
		}
	}

	return CapacityResult{Allowed: true, Message: msgCapacityRespected, Group: group, Cap: limit}
}

func capacityMessage(group generic.Group, limit int, day generic.Date, conflicts []Conflict) string {
	head := fmt.Sprintf("Limit of %d slots for group %s reached on %s.", limit, group, day.FormatDMY())
	if len(conflicts) == 0 {
		return head
	}
	taken := make([]string, len(conflicts))
	for i, c := range conflicts {
		taken[i] = fmt.Sprintf("%s (vacation from %s to %s)",
			c.Name, c.Range.Start.FormatDMY(), c.Range.End.FormatDMY())
	}
	return head + " Slots already taken by: " + strings.Join(taken, "; ") + "."
}

func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}
