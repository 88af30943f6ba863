package generic

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar date without time-of-day (all arithmetic in UTC)
// =============================================================================

// Date is a civil calendar date. It is comparable, so it can key maps
// (per-day occupancy) without timezone or monotonic-clock surprises.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const isoLayout = "2006-01-02"

// NewDate builds a normalized Date (e.g. Feb 30 becomes Mar 2).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf reads the calendar date of t as seen in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

// ParseDate parses "YYYY-MM-DD" as a UTC calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(isoLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in fixtures and presets.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func Today() Date { return DateOf(time.Now()) }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time().Before(other.Time()) }
func (d Date) After(other Date) bool         { return d.Time().After(other.Time()) }
func (d Date) Equal(other Date) bool         { return d == other }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date  { return DateOf(d.Time().AddDate(0, 0, n)) }
func (d Date) AddYears(n int) Date { return DateOf(d.Time().AddDate(n, 0, 0)) }

// Properties
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }
func (d Date) IsZero() bool          { return d == Date{} }

// IsWeekend reports Saturday or Sunday in the UTC calendar.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// String is the ISO form used on the wire and in storage.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(isoLayout)
}

// FormatDMY is the localized day/month/year form used in messages.
func (d Date) FormatDMY() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format("02/01/2006")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DAY ARITHMETIC
// =============================================================================

const secondsPerDay = 24 * 60 * 60

// dayNumber counts days since the Unix epoch. Dates sit on UTC midnight, so
// the division is exact on both sides of 1970.
func (d Date) dayNumber() int64 {
	return d.Time().Unix() / secondsPerDay
}

// DayCount is the inclusive number of days between two dates, order-agnostic:
// DayCount(d, d) == 1.
func DayCount(a, b Date) int {
	diff := b.dayNumber() - a.dayNumber()
	if diff < 0 {
		diff = -diff
	}
	return int(diff) + 1
}

// DaysBetween is the signed number of days from a to b (exclusive).
func DaysBetween(from, to Date) int {
	return int(to.dayNumber() - from.dayNumber())
}

func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return NewDate(year, time.December, 31) }
