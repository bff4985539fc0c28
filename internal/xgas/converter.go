// Package xgas converts satellite column densities into dry-air mixing ratios.
package xgas

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned for measurements that cannot be converted.
var ErrInvalidInput = errors.New("invalid input")

// PPBFactor scales a mole fraction to parts per billion.
const PPBFactor = 1e9

// Constants holds the physical constants of the conversion.
type Constants struct {
	// Gravity in m/s^2.
	Gravity float64 `json:"gravity"`

	// MolarMassWater in kg/mol.
	MolarMassWater float64 `json:"molarMassWater"`

	// MolarMassDryAir in kg/mol.
	MolarMassDryAir float64 `json:"molarMassDryAir"`
}

// DefaultConstants returns the constants used for all gases.
func DefaultConstants() Constants {
	return Constants{
		Gravity:         9.82,
		MolarMassWater:  0.01801528,
		MolarMassDryAir: 0.0289644,
	}
}

// ColumnDensitySample holds regional means for one query, in mol/m^2 for the
// columns and Pa for surface pressure.
type ColumnDensitySample struct {
	Gas             float64
	WaterVapor      *float64
	SurfacePressure float64
}

// WithWaterVapor returns a copy of the sample carrying a water-vapour column.
func (s ColumnDensitySample) WithWaterVapor(v float64) ColumnDensitySample {
	s.WaterVapor = &v
	return s
}

// DryAirColumn returns the total dry-air column in mol/m^2. The water-vapour
// term is subtracted only when the sample carries it.
func DryAirColumn(pressure float64, waterVapor *float64, c Constants) (float64, error) {
	if math.IsNaN(pressure) || math.IsInf(pressure, 0) || pressure <= 0 {
		return 0, fmt.Errorf("%w: surface pressure must be positive, got %v", ErrInvalidInput, pressure)
	}
	if c.Gravity <= 0 || c.MolarMassDryAir <= 0 {
		return 0, fmt.Errorf("%w: gravity and dry-air molar mass must be positive", ErrInvalidInput)
	}

	dry := pressure / (c.Gravity * c.MolarMassDryAir)
	if waterVapor != nil {
		h2o := *waterVapor
		if math.IsNaN(h2o) || math.IsInf(h2o, 0) {
			return 0, fmt.Errorf("%w: water vapour column is not finite", ErrInvalidInput)
		}
		dry -= h2o * (c.MolarMassWater / c.MolarMassDryAir)
	}

	if dry <= 0 {
		return 0, fmt.Errorf("%w: dry-air column must be positive, got %v", ErrInvalidInput, dry)
	}
	return dry, nil
}

// Convert returns the gas mixing ratio of s in ppb.
func Convert(s ColumnDensitySample, c Constants) (float64, error) {
	if math.IsNaN(s.Gas) || math.IsInf(s.Gas, 0) {
		return 0, fmt.Errorf("%w: gas column is not finite", ErrInvalidInput)
	}

	dry, err := DryAirColumn(s.SurfacePressure, s.WaterVapor, c)
	if err != nil {
		return 0, err
	}

	return s.Gas / dry * PPBFactor, nil
}

// Round3 rounds v to three decimal places for display.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
