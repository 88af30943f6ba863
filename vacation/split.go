package vacation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/warp/vacation-engine/generic"
)

// =============================================================================
// SPLIT SPEC - How an entitlement is divided into periods
// =============================================================================

const (
	// EntitlementDays is the yearly total every split must add up to.
	EntitlementDays = 30

	// MinSplitPeriodDays is the shortest period a two-way split may contain.
	MinSplitPeriodDays = 10
)

// SplitSpec is a parsed split choice: "1", "2_D1_D2" or "3".
type SplitSpec struct {
	Count     int
	Durations []int // order-preserving, one per period
}

// ParseSplitSpec fails fast with generic.ErrInvalidSplitSpec on a malformed
// pattern. A well-formed pattern that the periods do not match is a
// validation problem, not a parse error.
func ParseSplitSpec(s string) (SplitSpec, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return SplitSpec{}, fmt.Errorf("%w: %q", generic.ErrInvalidSplitSpec, s)
	}

	switch count {
	case 1:
		if len(parts) != 1 {
			return SplitSpec{}, fmt.Errorf("%w: %q takes no durations", generic.ErrInvalidSplitSpec, s)
		}
		return SplitSpec{Count: 1, Durations: []int{EntitlementDays}}, nil

	case 3:
		if len(parts) != 1 {
			return SplitSpec{}, fmt.Errorf("%w: %q takes no durations", generic.ErrInvalidSplitSpec, s)
		}
		third := EntitlementDays / 3
		return SplitSpec{Count: 3, Durations: []int{third, third, third}}, nil

	case 2:
		if len(parts) != 3 {
			return SplitSpec{}, fmt.Errorf("%w: %q needs two durations", generic.ErrInvalidSplitSpec, s)
		}
		d1, err1 := strconv.Atoi(parts[1])
		d2, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil {
			return SplitSpec{}, fmt.Errorf("%w: %q has non-numeric durations", generic.ErrInvalidSplitSpec, s)
		}
		if d1 < MinSplitPeriodDays || d2 < MinSplitPeriodDays || d1+d2 != EntitlementDays {
			return SplitSpec{}, fmt.Errorf("%w: %q must split %d days into periods of at least %d",
				generic.ErrInvalidSplitSpec, s, EntitlementDays, MinSplitPeriodDays)
		}
		return SplitSpec{Count: 2, Durations: []int{d1, d2}}, nil
	}

	return SplitSpec{}, fmt.Errorf("%w: %q must split into 1, 2 or 3 periods", generic.ErrInvalidSplitSpec, s)
}

// String renders the split back into its wire form.
func (s SplitSpec) String() string {
	if s.Count == 2 && len(s.Durations) == 2 {
		return fmt.Sprintf("2_%d_%d", s.Durations[0], s.Durations[1])
	}
	return strconv.Itoa(s.Count)
}

// ExpectedDurations returns a copy of the per-period day counts.
func (s SplitSpec) ExpectedDurations() []int {
	return append([]int(nil), s.Durations...)
}

// durationProblem compares actual inclusive day counts (in supplied order)
// against the expected combination. It returns "" on a match.
func (s SplitSpec) durationProblem(actual []int) string {
	matches := len(actual) == len(s.Durations)
	for i := 0; matches && i < len(actual); i++ {
		matches = actual[i] == s.Durations[i]
	}
	if matches {
		return ""
	}

	switch s.Count {
	case 1:
		return fmt.Sprintf("A single period must last exactly %d days, but lasts %s.", s.Durations[0], joinDurations(actual))
	case 3:
		return fmt.Sprintf("Three periods must last %s days each, but last %s.", strconv.Itoa(s.Durations[0]), joinDurations(actual))
	default:
		return fmt.Sprintf("Two periods must combine as %s days, but were %s.", joinDurations(s.Durations), joinDurations(actual))
	}
}

func joinDurations(ds []int) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, "+")
}
