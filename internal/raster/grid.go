// Package raster holds regular value grids sampled over a geographic extent.
package raster

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/citytrace/citytrace/internal/geo"
)

// ErrInvalidGrid is returned for grids with bad dimensions or value counts.
var ErrInvalidGrid = errors.New("invalid grid")

// Grid is a row-major raster, row 0 at the top (north) edge. NaN marks
// pixels without data.
type Grid struct {
	Extent geo.Extent
	data   *mat.Dense
}

// New returns a width x height grid with every pixel unset.
func New(width, height int, extent geo.Extent) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, width, height)
	}
	values := make([]float64, width*height)
	for i := range values {
		values[i] = math.NaN()
	}
	return &Grid{Extent: extent, data: mat.NewDense(height, width, values)}, nil
}

// FromValues wraps values, which must hold exactly width*height entries.
// Nil entries become no-data.
func FromValues(width, height int, extent geo.Extent, values []*float64) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, width, height)
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrInvalidGrid, len(values), width, height)
	}

	data := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			data[i] = math.NaN()
			continue
		}
		data[i] = *v
	}
	return &Grid{Extent: extent, data: mat.NewDense(height, width, data)}, nil
}

// Dims returns width and height in pixels.
func (g *Grid) Dims() (width, height int) {
	r, c := g.data.Dims()
	return c, r
}

// At returns the value at column x, row y.
func (g *Grid) At(x, y int) float64 {
	return g.data.At(y, x)
}

// Set stores v at column x, row y.
func (g *Grid) Set(x, y int, v float64) {
	g.data.Set(y, x, v)
}

// Valid reports whether pixel (x, y) holds a finite value.
func (g *Grid) Valid(x, y int) bool {
	v := g.At(x, y)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sample returns the value nearest to the normalised position (u, v), both
// in [0, 1] with (0, 0) at the top-left corner.
func (g *Grid) Sample(u, v float64) (float64, bool) {
	w, h := g.Dims()
	x := clampIndex(int(u*float64(w)), w)
	y := clampIndex(int(v*float64(h)), h)
	if !g.Valid(x, y) {
		return 0, false
	}
	return g.At(x, y), true
}

// ValidCount returns the number of pixels with data.
func (g *Grid) ValidCount() int {
	w, h := g.Dims()
	n := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if g.Valid(x, y) {
				n++
			}
		}
	}
	return n
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
