// Package imagerytest provides an in-memory imagery.Service for tests.
package imagerytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/citytrace/citytrace/internal/imagery"
	"github.com/citytrace/citytrace/internal/raster"
)

// MixingRatioRaster is the Rasters key for derived mixing-ratio fields.
const MixingRatioRaster = "mixing"

// Fake serves fixed band means, stretch statistics and rasters. Rasters are
// square with side sqrt(len(values)) and span the query region.
type Fake struct {
	mu sync.Mutex

	// Empty reports whether a collection has no images for a query.
	Empty func(collection string, q imagery.Query) bool

	// Means maps band names to their regional mean.
	Means map[string]*float64

	// Bounds is returned for minMax and percentile reductions.
	Bounds imagery.Stats

	// Rasters maps band names, or MixingRatioRaster, to row-major values.
	Rasters map[string][]*float64

	// Err, when set, fails every call.
	Err error

	calls int
}

// F returns a pointer to v.
func F(v float64) *float64 { return &v }

// New returns a fake with Sentinel-5P CO, water vapour and pressure means,
// an 80 to 120 ppb stretch and 2x2 rasters, including 10 m wind components.
func New() *Fake {
	return &Fake{
		Means: map[string]*float64{
			"CO_column_number_density":                F(0.03),
			"H2O_column_number_density":               F(100),
			"NO2_column_number_density":               F(0.0001),
			"SO2_column_number_density":               F(0.0002),
			"tropospheric_HCHO_column_number_density": F(0.0001),
			"surface_pressure":                        F(101325),
		},
		Bounds: imagery.Stats{
			imagery.KeyMin:            F(80),
			imagery.KeyMax:            F(120),
			imagery.PercentileKey(2):  F(85),
			imagery.PercentileKey(98): F(115),
		},
		Rasters: map[string][]*float64{
			MixingRatioRaster:                   {F(80), F(100), nil, F(120)},
			"Gap_Filled_DNB_BRDF_Corrected_NTL": {F(50), F(10), nil, F(31)},
			"u_component_of_wind_10m":           {F(3), F(0), nil, F(-4)},
			"v_component_of_wind_10m":           {F(4), F(2), F(1), F(0)},
		},
	}
}

// Calls returns the number of gateway calls served.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.Err
}

// CollectionSize implements imagery.Service.
func (f *Fake) CollectionSize(_ context.Context, collection string, q imagery.Query) (int, error) {
	if err := f.begin(); err != nil {
		return 0, err
	}
	if f.Empty != nil && f.Empty(collection, q) {
		return 0, nil
	}
	return 10, nil
}

// Reduce implements imagery.Service.
func (f *Fake) Reduce(_ context.Context, req imagery.ReduceRequest) (imagery.Stats, error) {
	if err := f.begin(); err != nil {
		return nil, err
	}
	if req.Reducer != imagery.ReducerMean {
		return f.Bounds, nil
	}
	if req.Field.Band == nil {
		return nil, fmt.Errorf("%w: mean of a derived field", imagery.ErrNoData)
	}
	return imagery.Stats{imagery.KeyMean: f.Means[req.Field.Band.Band]}, nil
}

// Raster implements imagery.Service.
func (f *Fake) Raster(_ context.Context, req imagery.RasterRequest) (*raster.Grid, error) {
	if err := f.begin(); err != nil {
		return nil, err
	}
	key := MixingRatioRaster
	if req.Field.Band != nil {
		key = req.Field.Band.Band
	}
	values, ok := f.Rasters[key]
	if !ok {
		return nil, fmt.Errorf("%w: no raster for %s", imagery.ErrNoData, key)
	}
	side := 1
	for side*side < len(values) {
		side++
	}
	return raster.FromValues(side, side, req.Query.Region.Bounds().Extent(), values)
}
