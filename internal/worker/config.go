// Package worker precomputes time series in the background for CityTrace.
package worker

import (
	"time"
)

// Target is one city and gas whose series is precomputed.
type Target struct {
	City string
	Gas  string
}

// PrecomputeConfig holds configuration for the precompute job.
type PrecomputeConfig struct {
	// Targets to precompute. If empty, uses DefaultTargets.
	Targets []Target

	// Year whose monthly series is computed. Zero means the previous
	// calendar year at run time.
	Year int

	// Concurrency is the number of targets computed at once.
	// Default: 2
	Concurrency int

	// Timeout bounds each target.
	// Default: 5 minutes
	Timeout time.Duration
}

// DefaultCities are the metro areas precomputed when none are configured.
var DefaultCities = []string{"Delhi", "Mumbai", "Kolkata", "Chennai", "Bangalore", "Hyderabad"}

// DefaultGases are the gases precomputed when none are configured.
var DefaultGases = []string{"CO", "NO2", "SO2", "HCHO"}

// DefaultPrecomputeConfig returns the default precompute configuration.
func DefaultPrecomputeConfig() PrecomputeConfig {
	return PrecomputeConfig{
		Targets:     DefaultTargets(),
		Concurrency: 2,
		Timeout:     5 * time.Minute,
	}
}

// DefaultTargets returns every default city paired with every default gas.
func DefaultTargets() []Target {
	return Targets(DefaultCities, DefaultGases)
}

// Targets returns the cross product of cities and gases, city-major.
func Targets(cities, gases []string) []Target {
	out := make([]Target, 0, len(cities)*len(gases))
	for _, c := range cities {
		for _, g := range gases {
			out = append(out, Target{City: c, Gas: g})
		}
	}
	return out
}

// TotalTargets returns the number of targets to precompute.
func (c PrecomputeConfig) TotalTargets() int {
	return len(c.Targets)
}

// YearAt resolves the configured year against now.
func (c PrecomputeConfig) YearAt(now time.Time) int {
	if c.Year > 0 {
		return c.Year
	}
	return now.UTC().Year() - 1
}
