package pipeline

import (
	"fmt"
	"image"

	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/overlay"
	"github.com/citytrace/citytrace/internal/palette"
	"github.com/citytrace/citytrace/internal/regionstats"
	"github.com/citytrace/citytrace/internal/timeseries"
	"github.com/citytrace/citytrace/internal/wind"
	"github.com/citytrace/citytrace/internal/xgas"
)

// NightLightsProfile configures the night-time-lights product.
type NightLightsProfile struct {
	Band    xgas.BandSource
	Scale   float64
	Palette []string
}

// DefaultNightLights is the VIIRS daily gap-filled radiance product.
var DefaultNightLights = NightLightsProfile{
	Band: xgas.BandSource{
		Collection: "NOAA/VIIRS/001/VNP46A2",
		Band:       "Gap_Filled_DNB_BRDF_Corrected_NTL",
	},
	Scale:   500,
	Palette: []string{"black", "purple", "cyan", "green", "yellow", "red", "white"},
}

// WindProfile configures the wind-direction product.
type WindProfile struct {
	U, V     xgas.BandSource
	Scale    float64
	GridSize int
	Palette  []string
}

// DefaultWinds samples ERA5-Land 10 m winds on a 10x10 grid, shaded by speed.
var DefaultWinds = WindProfile{
	U:        wind.UComponent,
	V:        wind.VComponent,
	Scale:    wind.DefaultScale,
	GridSize: wind.DefaultGridSize,
	Palette:  []string{"white", "lightskyblue", "royalblue", "navy"},
}

// TimeSeriesRequest asks for a binned mixing-ratio series.
type TimeSeriesRequest struct {
	City  string
	Gas   string
	Range geo.DateRange

	// Mode is "auto", "monthly" or "seasonal". Empty uses the service policy.
	Mode string
}

// TimeSeriesResult is a populated series.
type TimeSeriesResult struct {
	City  geo.City
	Gas   xgas.Profile
	Range geo.DateRange
	Mode  timeseries.Mode
	Bins  []timeseries.TimeBin
}

// Title returns the chart title.
func (r *TimeSeriesResult) Title() string {
	period := "Yearly"
	if r.Mode == timeseries.ModeSeasonal {
		period = "Seasonal"
	}
	return fmt.Sprintf("%s Mean %s Concentration for %s from %s to %s", period, r.Gas.Label, r.City.Name,
		r.Range.Start.Format(geo.DateLayout), r.Range.End.Format(geo.DateLayout))
}

// Missing returns the number of bins without data.
func (r *TimeSeriesResult) Missing() int {
	n := 0
	for _, b := range r.Bins {
		if !b.Value.Valid {
			n++
		}
	}
	return n
}

// MaskOptions enables the night-lights overlay on a gas map.
type MaskOptions struct {
	Threshold float64
	Opacity   float64
}

// DefaultMaskOptions returns the standard lit-area overlay.
func DefaultMaskOptions() MaskOptions {
	return MaskOptions{Threshold: overlay.DefaultMaskThreshold, Opacity: overlay.DefaultMaskOpacity}
}

// MapRequest asks for a gas concentration map.
type MapRequest struct {
	City    string
	Gas     string
	Range   geo.DateRange
	Stretch regionstats.Method

	// Mask, when set, overlays lit areas from night-time lights.
	Mask *MaskOptions

	// Width of the map area in pixels. Zero uses overlay.DefaultWidth.
	Width int
}

// NightLightsRequest asks for a night-lights map of one half year.
type NightLightsRequest struct {
	City     string
	Year     int
	HalfYear string
	Width    int
}

// MapResult is a rendered map.
type MapResult struct {
	City         geo.City
	Title        string
	Range        geo.DateRange
	Bounds       palette.Bounds
	MaskedPixels int
	Image        *image.RGBA
}

// MapTitle builds the map title. Ranges shorter than three days are shown
// by their first full day only.
func MapTitle(label, city string, r geo.DateRange, masked bool) string {
	subject := label + " Concentration"
	if masked {
		subject += " and NTL"
	}
	if r.Days() < 3 {
		return fmt.Sprintf("%s around %s from %s", subject, city, r.Start.AddDate(0, 0, 1).Format(geo.DateLayout))
	}
	return fmt.Sprintf("%s around %s from %s to %s", subject, city,
		r.Start.Format(geo.DateLayout), r.End.Format(geo.DateLayout))
}

// WindsRequest asks for a mean wind-direction map.
type WindsRequest struct {
	City  string
	Range geo.DateRange
	Width int
}

// WindsResult is a rendered wind map. Bounds are wind speeds in m/s.
type WindsResult struct {
	MapResult

	// Mean is the regional mean wind.
	Mean wind.Vector

	// Arrows is the number of grid points with data.
	Arrows int
}

// WindsTitle builds the wind map title.
func WindsTitle(city string, r geo.DateRange) string {
	return fmt.Sprintf("Mean Wind Direction around %s from %s to %s", city,
		r.Start.Format(geo.DateLayout), r.End.Format(geo.DateLayout))
}
