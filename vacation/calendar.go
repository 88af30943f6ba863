package vacation

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/vacation-engine/generic"
)

// CalendarDay lists who is away on one day of the calendar year.
type CalendarDay struct {
	Date        generic.Date    `json:"date"`
	Names       []string        `json:"names"`
	Occupancy   int             `json:"occupancy"`
	Utilization decimal.Decimal `json:"utilization"`
}

// YearCalendar only carries days with at least one booking, in date order.
type YearCalendar struct {
	Year       int                `json:"year"`
	Categories []generic.Category `json:"categories"`
	Capacity   int                `json:"capacity"`
	Days       []CalendarDay      `json:"days"`
}

type CalendarService struct {
	Store generic.Store
}

// Year builds the calendar for a calendar year. Periods of any reference
// year count as long as their days fall inside the calendar year and their
// owner is in one of the categories (all categories when empty).
func (s *CalendarService) Year(ctx context.Context, year int, categories []generic.Category) (YearCalendar, error) {
	if len(categories) == 0 {
		categories = generic.Categories
	}
	for _, c := range categories {
		if !c.Valid() {
			return YearCalendar{}, fmt.Errorf("%w: %q", generic.ErrUnknownCategory, c)
		}
	}

	cal := YearCalendar{Year: year, Categories: categories}

	settings, err := s.Store.ReadSettings(ctx)
	if err != nil {
		return cal, fmt.Errorf("failed to read settings: %w", err)
	}
	cal.Capacity = capacityOf(settings, categories)

	employees, err := s.Store.FindEmployees(ctx, generic.EmployeeFilter{Categories: categories})
	if err != nil {
		return cal, fmt.Errorf("failed to load employees: %w", err)
	}
	if len(employees) == 0 {
		return cal, nil
	}

	names := make(map[generic.EmployeeKey]string, len(employees))
	ids := make([]generic.RegistrationID, 0, len(employees))
	seenID := make(map[generic.RegistrationID]bool)
	for _, e := range employees {
		names[e.Key()] = e.Name
		if !seenID[e.RegistrationID] {
			seenID[e.RegistrationID] = true
			ids = append(ids, e.RegistrationID)
		}
	}

	bounds := generic.DateRange{Start: generic.StartOfYear(year), End: generic.EndOfYear(year)}
	periods, err := s.Store.FindVacationPeriods(ctx, generic.PeriodFilter{
		RegistrationIDs: ids,
		Overlapping:     &bounds,
	})
	if err != nil {
		return cal, fmt.Errorf("failed to load periods: %w", err)
	}

	away := make(map[generic.Date][]string)
	present := make(map[generic.Date]map[string]bool)
	for _, p := range periods {
		name, ok := names[p.Owner()]
		if !ok {
			continue
		}
		for _, d := range p.Range.Days() {
			if !bounds.Contains(d) {
				continue
			}
			if present[d] == nil {
				present[d] = make(map[string]bool)
			}
			if present[d][name] {
				continue
			}
			present[d][name] = true
			away[d] = append(away[d], name)
		}
	}

	for d, who := range away {
		cal.Days = append(cal.Days, CalendarDay{
			Date:        d,
			Names:       who,
			Occupancy:   len(who),
			Utilization: utilization(len(who), cal.Capacity),
		})
	}
	sort.Slice(cal.Days, func(i, j int) bool { return cal.Days[i].Date.Before(cal.Days[j].Date) })
	return cal, nil
}

// capacityOf sums the group caps of every group touched by the categories.
func capacityOf(settings generic.Settings, categories []generic.Category) int {
	seen := make(map[generic.Group]bool)
	total := 0
	for _, c := range categories {
		g := c.Group()
		if seen[g] {
			continue
		}
		seen[g] = true
		if limit, ok := settings.GroupCap(g); ok {
			total += limit
		}
	}
	return total
}

// utilization is occupancy / capacity rounded to two places; zero capacity
// yields zero.
func utilization(occupancy, capacity int) decimal.Decimal {
	if capacity <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(occupancy)).
		DivRound(decimal.NewFromInt(int64(capacity)), 2)
}
