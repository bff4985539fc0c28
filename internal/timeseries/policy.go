package timeseries

import (
	"strings"

	"github.com/citytrace/citytrace/internal/geo"
)

// ModePolicy picks a binning mode for a range.
type ModePolicy interface {
	Select(r geo.DateRange) Mode
}

// SeasonalHeuristic picks seasonal bins for ranges of roughly one quarter
// and monthly bins otherwise.
type SeasonalHeuristic struct {
	TargetDays    int
	ToleranceDays int
}

// DefaultHeuristic treats 85 to 95 day ranges as a season.
func DefaultHeuristic() SeasonalHeuristic {
	return SeasonalHeuristic{TargetDays: 90, ToleranceDays: 5}
}

// Select implements ModePolicy.
func (h SeasonalHeuristic) Select(r geo.DateRange) Mode {
	diff := r.Days() - h.TargetDays
	if diff < 0 {
		diff = -diff
	}
	if diff <= h.ToleranceDays {
		return ModeSeasonal
	}
	return ModeMonthly
}

// Fixed always selects the same mode.
type Fixed Mode

// Select implements ModePolicy.
func (f Fixed) Select(geo.DateRange) Mode {
	return Mode(f)
}

// ParsePolicy maps "auto" (or empty) to DefaultHeuristic and a mode name to
// Fixed.
func ParsePolicy(s string) (ModePolicy, error) {
	if v := strings.ToLower(strings.TrimSpace(s)); v == "" || v == "auto" {
		return DefaultHeuristic(), nil
	}
	m, err := ParseMode(s)
	if err != nil {
		return nil, err
	}
	return Fixed(m), nil
}
