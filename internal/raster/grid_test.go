package raster_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/raster"
)

var extent = geo.Extent{76.0, 78.0, 12.0, 14.0}

func f(v float64) *float64 { return &v }

func TestNew_AllUnset(t *testing.T) {
	g, err := raster.New(3, 2, extent)
	require.NoError(t, err)

	w, h := g.Dims()
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)
	assert.Zero(t, g.ValidCount())
	assert.True(t, math.IsNaN(g.At(2, 1)))

	g.Set(2, 1, 7.5)
	assert.True(t, g.Valid(2, 1))
	assert.Equal(t, 7.5, g.At(2, 1))
	assert.Equal(t, 1, g.ValidCount())
}

func TestFromValues(t *testing.T) {
	g, err := raster.FromValues(2, 2, extent, []*float64{f(1), nil, f(3), f(4)})
	require.NoError(t, err)

	assert.Equal(t, 1.0, g.At(0, 0))
	assert.False(t, g.Valid(1, 0))
	assert.Equal(t, 3.0, g.At(0, 1))
	assert.Equal(t, 3, g.ValidCount())
	assert.Equal(t, extent, g.Extent)
}

func TestFromValues_Invalid(t *testing.T) {
	_, err := raster.FromValues(2, 2, extent, []*float64{f(1)})
	assert.ErrorIs(t, err, raster.ErrInvalidGrid)

	_, err = raster.FromValues(0, 2, extent, nil)
	assert.ErrorIs(t, err, raster.ErrInvalidGrid)

	_, err = raster.New(-1, 1, extent)
	assert.ErrorIs(t, err, raster.ErrInvalidGrid)
}

func TestSample(t *testing.T) {
	g, err := raster.FromValues(2, 2, extent, []*float64{f(1), f(2), nil, f(4)})
	require.NoError(t, err)

	v, ok := g.Sample(0, 0)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = g.Sample(1, 1)
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	v, ok = g.Sample(0.9, 0.1)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = g.Sample(0.1, 0.9)
	assert.False(t, ok)
}
