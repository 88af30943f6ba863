/*
validator.go - Period shape and calendar validator

PURPOSE:
  One validation pass over a candidate set of periods for an employee-year.
  Every applicable problem is accumulated so the admin gets the complete
  correction list in one round trip.

VALIDATION ORDER:
  1. Count:     number of periods equals the split count
  2. Overlap:   sorted by start, each period starts strictly after the
                previous one ends (same-day boundary is an overlap)
  3. Durations: inclusive day counts, in supplied order, equal the split's
                combination (only checked when the count matches)
  4. Per period, in supplied order:
       - start is not a Saturday or Sunday
       - start is on or after the acquisition window end
       - end is not after the concessive deadline
       - the capacity checker accepts the range

A malformed period (end before start, or longer than generic.MaxRangeDays)
is not a rule violation; it fails the call with generic.ErrInvalidPeriod
before any rule runs.

SEE ALSO:
  - split.go: SplitSpec and duration messages
  - capacity.go: the capacity step
  - booking.go: persists periods after a clean result
*/
package vacation

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/vacation-engine/generic"
)

// ValidationInput is one candidate request.
type ValidationInput struct {
	Employee generic.Employee
	Periods  []generic.DateRange
	Split    SplitSpec

	// ReferenceYear scopes the capacity check; zero means the employee's year.
	ReferenceYear int

	// Edit excludes the employee's own current bookings from capacity.
	Edit bool
}

type ValidationResult struct {
	OK       bool              `json:"ok"`
	Problems []generic.Problem `json:"problems,omitempty"`
}

// Err returns a *generic.ValidationError for a failed result, nil otherwise.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return &generic.ValidationError{Problems: r.Problems}
}

// Messages lists the problem messages in accumulation order.
func (r ValidationResult) Messages() []string {
	out := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		out[i] = p.Message
	}
	return out
}

type Validator struct {
	Capacity *CapacityChecker
}

// Validate runs every rule and returns the accumulated problems. The error
// return is reserved for malformed input and storage failures.
func (v *Validator) Validate(ctx context.Context, in ValidationInput) (ValidationResult, error) {
	for i, p := range in.Periods {
		if err := p.Check(); err != nil {
			return ValidationResult{}, fmt.Errorf("period %d: %w", i+1, err)
		}
	}

	year := in.ReferenceYear
	if year == 0 {
		year = in.Employee.ReferenceYear
	}

	var problems []generic.Problem
	add := func(kind generic.ProblemKind, period int, format string, args ...any) {
		problems = append(problems, generic.Problem{Kind: kind, Period: period, Message: fmt.Sprintf(format, args...)})
	}

	// 1. Count
	countMatches := len(in.Periods) == in.Split.Count
	if !countMatches {
		add(generic.ProblemShape, 0, "The number of periods (%d) does not match the selected split (%d).",
			len(in.Periods), in.Split.Count)
	}

	// 2. Internal non-overlap
	sorted := append([]generic.DateRange(nil), in.Periods...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		if next.Start.BeforeOrEqual(prev.End) {
			add(generic.ProblemShape, 0, "Period %d starts on %s, which is not after the end of period %d (%s).",
				i+1, next.Start.FormatDMY(), i, prev.End.FormatDMY())
		}
	}

	// 3. Duration combination
	if countMatches {
		durations := make([]int, len(in.Periods))
		for i, p := range in.Periods {
			durations[i] = p.DayCount()
		}
		if msg := in.Split.durationProblem(durations); msg != "" {
			add(generic.ProblemShape, 0, "%s", msg)
		}
	}

	// 4. Per-period calendar and capacity rules
	acqEnd := in.Employee.AcquisitionWindow.End
	deadline := generic.ConcessiveDeadline(acqEnd)

	var exclude *generic.RegistrationID
	if in.Edit {
		id := in.Employee.RegistrationID
		exclude = &id
	}

	for i, p := range in.Periods {
		pos := i + 1

		if p.Start.IsWeekend() {
			add(generic.ProblemCalendar, pos, "The start date %s falls on a weekend.", p.Start.FormatDMY())
		}
		if p.Start.Before(acqEnd) {
			add(generic.ProblemCalendar, pos, "The start date must be on or after the end of the acquisition period: %s.",
				acqEnd.FormatDMY())
		}
		if p.End.After(deadline) {
			add(generic.ProblemCalendar, pos, "The end date exceeds the concessive period limit of %s.",
				deadline.FormatDMY())
		}

		res, err := v.Capacity.Check(ctx, CapacityQuery{
			Category:      in.Employee.Category,
			Range:         p,
			ReferenceYear: year,
			Exclude:       exclude,
		})
		if err != nil {
			return ValidationResult{}, fmt.Errorf("capacity check for period %d: %w", pos, err)
		}
		if !res.Allowed {
			add(generic.ProblemCapacity, pos, "%s", res.Message)
		}
	}

	return ValidationResult{OK: len(problems) == 0, Problems: problems}, nil
}
