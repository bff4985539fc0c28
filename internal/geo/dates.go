package geo

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout used on every surface.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidDateRange, s)
	}
	return t, nil
}

// ParseDateRange parses start and end dates and checks start <= end.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	return NewDateRange(s, e)
}

// NewDateRange builds a range, truncating both ends to the calendar day.
func NewDateRange(start, end time.Time) (DateRange, error) {
	s := truncateDay(start)
	e := truncateDay(end)
	if s.After(e) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidDateRange, s.Format(DateLayout), e.Format(DateLayout))
	}
	return DateRange{Start: s, End: e}, nil
}

// ParseCombinedRange parses a single token holding both bounds, either
// "YYYY-MM-DD/YYYY-MM-DD" or the legacy "YYYY-MM-DD - YYYY-MM-DD".
func ParseCombinedRange(token string) (DateRange, error) {
	token = strings.TrimSpace(token)
	if start, end, ok := strings.Cut(token, "/"); ok {
		return ParseDateRange(start, end)
	}
	// Legacy form: 10 chars, " - ", 10 chars.
	if len(token) == 23 && token[10:13] == " - " {
		return ParseDateRange(token[:10], token[13:])
	}
	return DateRange{}, fmt.Errorf("%w: %q is not a start/end token", ErrInvalidDateRange, token)
}

// Half-year selectors for night-lights composites.
const (
	HalfJanJun = "jan-jun"
	HalfJulDec = "jul-dec"
	HalfJanDec = "jan-dec"
)

// HalfYearRange returns the range covered by a half-year selector.
func HalfYearRange(year int, half string) (DateRange, error) {
	if year < 1 {
		return DateRange{}, fmt.Errorf("%w: year %d", ErrInvalidDateRange, year)
	}
	switch strings.ToLower(half) {
	case HalfJanJun:
		return NewDateRange(date(year, time.January, 1), date(year, time.June, 30))
	case HalfJulDec:
		return NewDateRange(date(year, time.July, 1), date(year, time.December, 31))
	case HalfJanDec:
		return NewDateRange(date(year, time.January, 1), date(year, time.December, 31))
	default:
		return DateRange{}, fmt.Errorf("%w: half-year %q (want %s, %s or %s)",
			ErrInvalidDateRange, half, HalfJanJun, HalfJulDec, HalfJanDec)
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
