// Package imagery talks to the remote imagery gateway that aggregates
// satellite and reanalysis collections over a region and date range.
package imagery

import (
	"context"
	"errors"
	"fmt"

	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/raster"
	"github.com/citytrace/citytrace/internal/xgas"
)

var (
	// ErrNoData is returned when a collection holds no images for the query
	// or a statistic came back null.
	ErrNoData = errors.New("no imagery data")

	// ErrRemoteService is returned for timeouts, transport failures and
	// gateway errors.
	ErrRemoteService = errors.New("imagery service failure")
)

// Service is the subset of the gateway used by the pipeline.
type Service interface {
	CollectionSize(ctx context.Context, collection string, q Query) (int, error)
	Reduce(ctx context.Context, req ReduceRequest) (Stats, error)
	Raster(ctx context.Context, req RasterRequest) (*raster.Grid, error)
}

// Query selects images by region and inclusive date range.
type Query struct {
	Region geo.BufferedRegion
	Range  geo.DateRange
}

// Field is the per-pixel value the gateway computes: either a band mean or
// the dry-air mixing ratio expression. Exactly one of the two is set.
type Field struct {
	Band        *xgas.BandSource
	MixingRatio *MixingRatioExpr
}

// MixingRatioExpr asks the gateway to derive ppb per pixel using the same
// formula as xgas.Convert.
type MixingRatioExpr struct {
	Gas        xgas.BandSource
	WaterVapor *xgas.BandSource
	Pressure   xgas.BandSource
	Constants  xgas.Constants
}

// BandField returns a band-mean field.
func BandField(b xgas.BandSource) Field {
	return Field{Band: &b}
}

// MixingRatioField returns the derived ppb field for a gas profile.
func MixingRatioField(p xgas.Profile, c xgas.Constants) Field {
	expr := &MixingRatioExpr{
		Gas:       p.Column,
		Pressure:  xgas.SurfacePressure,
		Constants: c,
	}
	if p.WaterVapor != nil {
		wv := *p.WaterVapor
		expr.WaterVapor = &wv
	}
	return Field{MixingRatio: expr}
}

// Validate checks that exactly one field kind is set.
func (f Field) Validate() error {
	if (f.Band == nil) == (f.MixingRatio == nil) {
		return errors.New("field must set exactly one of band or mixing ratio")
	}
	return nil
}

// Reducer names a regional statistic.
type Reducer string

const (
	ReducerMean       Reducer = "mean"
	ReducerMinMax     Reducer = "minMax"
	ReducerPercentile Reducer = "percentile"
)

// Stat keys returned by the reducers.
const (
	KeyMean = "mean"
	KeyMin  = "min"
	KeyMax  = "max"
)

// PercentileKey returns the stat key for percentile p, e.g. "p98".
func PercentileKey(p float64) string {
	return fmt.Sprintf("p%g", p)
}

// ReduceRequest asks for a regional statistic of a field.
type ReduceRequest struct {
	Field       Field
	Query       Query
	Reducer     Reducer
	Percentiles []float64
	Scale       float64
}

// RasterRequest asks for a field sampled on a grid over the region's bounds.
// Dimensions is the length of the longer side in pixels.
type RasterRequest struct {
	Field      Field
	Query      Query
	Scale      float64
	Dimensions int
}

// Stats maps statistic keys to values. A nil value is a null statistic.
type Stats map[string]*float64

// Value returns the statistic stored under key, or ErrNoData when it is
// absent or null.
func (s Stats) Value(key string) (float64, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: statistic %q", ErrNoData, key)
	}
	return *v, nil
}
