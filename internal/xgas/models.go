package xgas

import (
	"fmt"
	"sort"
	"strings"
)

// Gas identifies a trace gas product.
type Gas string

const (
	GasCO   Gas = "CO"
	GasNO2  Gas = "NO2"
	GasSO2  Gas = "SO2"
	GasHCHO Gas = "HCHO"
)

// ErrUnknownGas is returned by Registry.Lookup for unsupported gases.
var ErrUnknownGas = fmt.Errorf("%w: unknown gas", ErrInvalidInput)

// MixingRatio is a ppb value that may be missing when there was no imagery.
type MixingRatio struct {
	Value float64
	Valid bool
}

// Present wraps a known ppb value.
func Present(v float64) MixingRatio {
	return MixingRatio{Value: v, Valid: true}
}

// Missing is the explicit no-data value.
func Missing() MixingRatio {
	return MixingRatio{}
}

// Ptr returns a pointer to the value, or nil when missing.
func (m MixingRatio) Ptr() *float64 {
	if !m.Valid {
		return nil
	}
	v := m.Value
	return &v
}

// String formats the value to three decimals, or "missing".
func (m MixingRatio) String() string {
	if !m.Valid {
		return "missing"
	}
	return fmt.Sprintf("%.3f", m.Value)
}

// BandSource names a band inside an image collection.
type BandSource struct {
	Collection string `json:"collection"`
	Band       string `json:"band"`
}

// Profile configures one gas.
type Profile struct {
	Gas Gas

	// Label is the human readable name used in titles and legends.
	Label string

	// Column is the gas column density band.
	Column BandSource

	// WaterVapor, when set, enables the water-vapour correction.
	WaterVapor *BandSource

	// MolarMass of the gas in kg/mol.
	MolarMass float64

	// Palette is the ordered low-to-high colour stops for maps.
	Palette []string

	// Scale is the reduction pixel scale in meters.
	Scale float64
}

// Surface pressure source shared by all gases.
var SurfacePressure = BandSource{
	Collection: "ECMWF/ERA5_LAND/DAILY_AGGR",
	Band:       "surface_pressure",
}

// SpectralPalette runs from blue (low) to dark red (high).
var SpectralPalette = []string{
	"#5e4fa2", "#378dba", "#73c7a4", "#bee5a0", "#f0f9a8",
	"#feeda1", "#fdbe6e", "#f57948", "#d8424d", "#9e0142",
}

// ReversedSpectralPalette runs from dark red (low) to blue (high).
var ReversedSpectralPalette = []string{
	"#9e0142", "#d8424d", "#f57948", "#fdbe6e", "#feeda1",
	"#f0f9a8", "#bee5a0", "#73c7a4", "#378dba", "#5e4fa2",
}

// DefaultProfiles returns the built-in gas profiles.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Gas:    GasCO,
			Label:  "CO",
			Column: BandSource{Collection: "COPERNICUS/S5P/OFFL/L3_CO", Band: "CO_column_number_density"},
			WaterVapor: &BandSource{
				Collection: "COPERNICUS/S5P/OFFL/L3_CO",
				Band:       "H2O_column_number_density",
			},
			MolarMass: 0.02801,
			Palette:   SpectralPalette,
			Scale:     1113.2,
		},
		{
			Gas:    GasNO2,
			Label:  "NO2",
			Column: BandSource{Collection: "COPERNICUS/S5P/OFFL/L3_NO2", Band: "NO2_column_number_density"},
			WaterVapor: &BandSource{
				Collection: "COPERNICUS/S5P/OFFL/L3_CO",
				Band:       "H2O_column_number_density",
			},
			MolarMass: 0.0460055,
			Palette:   SpectralPalette,
			Scale:     1113.2,
		},
		{
			Gas:       GasSO2,
			Label:     "SO2",
			Column:    BandSource{Collection: "COPERNICUS/S5P/OFFL/L3_SO2", Band: "SO2_column_number_density"},
			MolarMass: 0.064066,
			Palette:   SpectralPalette,
			Scale:     1113.2,
		},
		{
			Gas:       GasHCHO,
			Label:     "HCHO",
			Column:    BandSource{Collection: "COPERNICUS/S5P/OFFL/L3_HCHO", Band: "tropospheric_HCHO_column_number_density"},
			MolarMass: 0.03003,
			Palette:   ReversedSpectralPalette,
			Scale:     1113.2,
		},
	}
}

// Registry holds gas profiles by ID.
type Registry struct {
	profiles map[Gas]Profile
}

// NewRegistry creates a registry. An empty list uses DefaultProfiles.
func NewRegistry(profiles []Profile) *Registry {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	r := &Registry{profiles: make(map[Gas]Profile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.Gas] = p
	}
	return r
}

// Lookup returns the profile for a gas name, case-insensitively.
func (r *Registry) Lookup(name string) (Profile, error) {
	p, ok := r.profiles[Gas(strings.ToUpper(strings.TrimSpace(name)))]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q", ErrUnknownGas, name)
	}
	return p, nil
}

// Gases returns the registered gases in name order.
func (r *Registry) Gases() []Gas {
	out := make([]Gas, 0, len(r.profiles))
	for g := range r.profiles {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
