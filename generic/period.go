package generic

import "fmt"

// =============================================================================
// DATE RANGE - Inclusive [Start, End] span of calendar days
// =============================================================================

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Valid reports whether End is not before Start.
func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.Start.BeforeOrEqual(r.End)
}

// MaxRangeDays bounds a single requested range. No booking or capacity query
// needs more than a leap year; longer ranges are rejected before expansion.
const MaxRangeDays = 366

// Check returns ErrInvalidPeriod for a reversed range or one longer than
// MaxRangeDays.
func (r DateRange) Check() error {
	if !r.Valid() {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidPeriod, r)
	}
	if n := r.DayCount(); n > MaxRangeDays {
		return fmt.Errorf("%w: %s spans %d days, more than %d", ErrInvalidPeriod, r, n, MaxRangeDays)
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Overlaps uses the closed-interval test: a.Start <= b.End && a.End >= b.Start.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.BeforeOrEqual(other.End) && r.End.AfterOrEqual(other.Start)
}

// DayCount is the inclusive length of the range.
func (r DateRange) DayCount() int { return DayCount(r.Start, r.End) }

// Days enumerates every day in the range.
func (r DateRange) Days() []Date {
	if r.End.Before(r.Start) {
		return nil
	}
	days := make([]Date, 0, DaysBetween(r.Start, r.End)+1)
	for d := r.Start; d.BeforeOrEqual(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// =============================================================================
// ACQUISITION / CONCESSIVE WINDOWS
// =============================================================================

// AcquisitionWindow shifts the hire date into the reference year; the window
// ends one year later minus one day.
func AcquisitionWindow(hireDate Date, referenceYear int) DateRange {
	start := hireDate.AddYears(referenceYear - hireDate.Year)
	return DateRange{Start: start, End: start.AddYears(1).AddDays(-1)}
}

// ConcessiveDeadline is the last day a period may end on:
// acquisition end + 1 year + 2 days.
func ConcessiveDeadline(acquisitionEnd Date) Date {
	return acquisitionEnd.AddYears(1).AddDays(2)
}

// DayOffset expresses d as an inclusive day count to Dec-31 of the reference
// year. Larger offsets mean earlier events.
func DayOffset(d Date, referenceYear int) int {
	return DayCount(d, EndOfYear(referenceYear))
}
