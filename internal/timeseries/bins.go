// Package timeseries splits a date range into bins, fills each bin with a
// mixing ratio and charts the result.
package timeseries

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/xgas"
)

// ErrInvalidMode is returned for unknown binning modes.
var ErrInvalidMode = errors.New("invalid binning mode")

// Mode selects how a range is binned.
type Mode string

const (
	// ModeMonthly yields the twelve calendar months of the start year.
	ModeMonthly Mode = "monthly"

	// ModeSeasonal yields consecutive fixed-length windows across the range.
	ModeSeasonal Mode = "seasonal"
)

// DefaultBinDays is the seasonal window length.
const DefaultBinDays = 15

// ParseMode parses "monthly" or "seasonal".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeMonthly, ModeSeasonal:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// TimeBin is one point of a series. Start and End are inclusive days.
type TimeBin struct {
	Label string
	Start time.Time
	End   time.Time
	Value xgas.MixingRatio
}

// Range returns the bin as a date range.
func (b TimeBin) Range() geo.DateRange {
	return geo.DateRange{Start: b.Start, End: b.End}
}

// BinRange splits r according to mode, using DefaultBinDays for seasonal bins.
// Every returned bin has a missing value.
func BinRange(r geo.DateRange, mode Mode) ([]TimeBin, error) {
	switch mode {
	case ModeMonthly:
		return MonthlyBins(r.Start.Year()), nil
	case ModeSeasonal:
		return SeasonalBins(r, DefaultBinDays)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

// MonthlyBins returns the twelve months of year, labelled Jan to Dec.
func MonthlyBins(year int) []TimeBin {
	bins := make([]TimeBin, 0, 12)
	for m := time.January; m <= time.December; m++ {
		start := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		bins = append(bins, TimeBin{
			Label: start.Format("Jan"),
			Start: start,
			End:   end,
		})
	}
	return bins
}

// SeasonalBins returns windows of days length starting at r.Start. Each
// window ends days-1 after it starts; the last one is cut at r.End.
func SeasonalBins(r geo.DateRange, days int) ([]TimeBin, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: bin length %d", ErrInvalidMode, days)
	}
	if r.End.Before(r.Start) {
		return nil, geo.ErrInvalidDateRange
	}

	var bins []TimeBin
	for start := r.Start; !start.After(r.End); {
		end := start.AddDate(0, 0, days-1)
		if end.After(r.End) {
			end = r.End
		}
		bins = append(bins, TimeBin{
			Label: start.Format(geo.DateLayout) + " - " + end.Format(geo.DateLayout),
			Start: start,
			End:   end,
		})
		start = end.AddDate(0, 0, 1)
	}
	return bins, nil
}
