// Package regionstats computes value bounds of a field over a region, used
// to stretch map colours.
package regionstats

import (
	"context"
	"errors"
	"fmt"

	"github.com/citytrace/citytrace/internal/imagery"
	"github.com/citytrace/citytrace/internal/palette"
)

// ErrNoData is imagery.ErrNoData; it is re-exported so callers of this
// package need not import imagery to test for it.
var ErrNoData = imagery.ErrNoData

// ErrInvalidPercentiles is returned for percentile pairs outside 0 <= low < high <= 100.
var ErrInvalidPercentiles = errors.New("invalid percentiles")

// Default stretch percentiles.
const (
	DefaultLowPercentile  = 2.0
	DefaultHighPercentile = 98.0
)

// Reducer computes regional statistics. imagery.Service satisfies it.
type Reducer interface {
	Reduce(ctx context.Context, req imagery.ReduceRequest) (imagery.Stats, error)
}

// Request identifies the field and area to summarise.
type Request struct {
	Field imagery.Field
	Query imagery.Query
	Scale float64
}

// Method selects how bounds are computed.
type Method string

const (
	MethodMinMax     Method = "minmax"
	MethodPercentile Method = "percentile"
)

// ParseMethod parses a stretch method name. Empty means MethodMinMax.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodMinMax:
		return MethodMinMax, nil
	case MethodPercentile:
		return MethodPercentile, nil
	default:
		return "", fmt.Errorf("unknown stretch method %q", s)
	}
}

// Summarize returns the min/max bounds of the field.
func Summarize(ctx context.Context, r Reducer, req Request) (palette.Bounds, error) {
	stats, err := r.Reduce(ctx, imagery.ReduceRequest{
		Field:   req.Field,
		Query:   req.Query,
		Reducer: imagery.ReducerMinMax,
		Scale:   req.Scale,
	})
	if err != nil {
		return palette.Bounds{}, fmt.Errorf("summarize: %w", err)
	}
	return boundsFrom(stats, imagery.KeyMin, imagery.KeyMax)
}

// Stretch returns the low/high percentile bounds of the field.
func Stretch(ctx context.Context, r Reducer, req Request, low, high float64) (palette.Bounds, error) {
	if low < 0 || high > 100 || low >= high {
		return palette.Bounds{}, fmt.Errorf("%w: %v/%v", ErrInvalidPercentiles, low, high)
	}

	stats, err := r.Reduce(ctx, imagery.ReduceRequest{
		Field:       req.Field,
		Query:       req.Query,
		Reducer:     imagery.ReducerPercentile,
		Percentiles: []float64{low, high},
		Scale:       req.Scale,
	})
	if err != nil {
		return palette.Bounds{}, fmt.Errorf("stretch: %w", err)
	}
	return boundsFrom(stats, imagery.PercentileKey(low), imagery.PercentileKey(high))
}

// Bounds dispatches on m.
func Bounds(ctx context.Context, r Reducer, req Request, m Method) (palette.Bounds, error) {
	if m == MethodPercentile {
		return Stretch(ctx, r, req, DefaultLowPercentile, DefaultHighPercentile)
	}
	return Summarize(ctx, r, req)
}

func boundsFrom(stats imagery.Stats, lowKey, highKey string) (palette.Bounds, error) {
	lo, err := stats.Value(lowKey)
	if err != nil {
		return palette.Bounds{}, err
	}
	hi, err := stats.Value(highKey)
	if err != nil {
		return palette.Bounds{}, err
	}
	return palette.NewBounds(lo, hi)
}
