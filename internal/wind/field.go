// Package wind turns 10 m wind components into directions and a sampled
// vector field for arrow maps.
package wind

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/overlay"
	"github.com/citytrace/citytrace/internal/raster"
	"github.com/citytrace/citytrace/internal/xgas"
)

// ErrGeometryMismatch is overlay.ErrGeometryMismatch.
var ErrGeometryMismatch = overlay.ErrGeometryMismatch

// ERA5-Land daily aggregates of the 10 m wind components, in m/s.
var (
	UComponent = xgas.BandSource{Collection: "ECMWF/ERA5_LAND/DAILY_AGGR", Band: "u_component_of_wind_10m"}
	VComponent = xgas.BandSource{Collection: "ECMWF/ERA5_LAND/DAILY_AGGR", Band: "v_component_of_wind_10m"}
)

const (
	// DefaultGridSize is the number of arrows along each side of the map.
	DefaultGridSize = 10

	// DefaultScale is the ERA5-Land resolution in metres.
	DefaultScale = 11132.0
)

// Vector is a horizontal wind with eastward U and northward V in m/s.
type Vector struct {
	U float64
	V float64
}

// Direction is the bearing the wind blows towards, in degrees clockwise
// from north within [0, 360).
func (v Vector) Direction() float64 {
	d := math.Atan2(v.U, v.V) * 180 / math.Pi
	if d < 0 {
		d += 360
	}
	return d
}

// Speed is the vector magnitude in m/s.
func (v Vector) Speed() float64 {
	return math.Hypot(v.U, v.V)
}

// Cell is one sampled point of a field.
type Cell struct {
	X, Y   int
	Point  geo.GeoPoint
	Vector Vector
}

// Field is a grid of wind vectors. Cells missing either component are
// left out.
type Field struct {
	Extent geo.Extent
	Width  int
	Height int

	cells []Cell
	speed *raster.Grid
}

// FromComponents pairs the u and v grids cell by cell. Both must share
// dimensions and extent.
func FromComponents(u, v *raster.Grid) (*Field, error) {
	uw, uh := u.Dims()
	vw, vh := v.Dims()
	if uw != vw || uh != vh {
		return nil, fmt.Errorf("%w: u is %dx%d, v is %dx%d", ErrGeometryMismatch, uw, uh, vw, vh)
	}
	if !u.Extent.Equal(v.Extent, overlay.ExtentTolerance) {
		return nil, fmt.Errorf("%w: u %v, v %v", ErrGeometryMismatch, u.Extent, v.Extent)
	}

	speed, err := raster.New(uw, uh, u.Extent)
	if err != nil {
		return nil, err
	}

	f := &Field{Extent: u.Extent, Width: uw, Height: uh, speed: speed}
	e := u.Extent
	dx := (e[1] - e[0]) / float64(uw)
	dy := (e[3] - e[2]) / float64(uh)
	for y := 0; y < uh; y++ {
		for x := 0; x < uw; x++ {
			if !u.Valid(x, y) || !v.Valid(x, y) {
				continue
			}
			vec := Vector{U: u.At(x, y), V: v.At(x, y)}
			f.cells = append(f.cells, Cell{
				X:      x,
				Y:      y,
				Point:  geo.GeoPoint{Lat: e[3] - (float64(y)+0.5)*dy, Lon: e[0] + (float64(x)+0.5)*dx},
				Vector: vec,
			})
			speed.Set(x, y, vec.Speed())
		}
	}
	return f, nil
}

// Cells returns the valid cells in row-major order.
func (f *Field) Cells() []Cell {
	return f.cells
}

// Speed returns the wind speed grid.
func (f *Field) Speed() *raster.Grid {
	return f.speed
}

// Mean averages the components over all valid cells.
func (f *Field) Mean() (Vector, bool) {
	if len(f.cells) == 0 {
		return Vector{}, false
	}
	us := make([]float64, len(f.cells))
	vs := make([]float64, len(f.cells))
	for i, c := range f.cells {
		us[i] = c.Vector.U
		vs[i] = c.Vector.V
	}
	return Vector{U: stat.Mean(us, nil), V: stat.Mean(vs, nil)}, true
}

// SpeedRange returns the lowest and highest speed of the valid cells.
func (f *Field) SpeedRange() (lo, hi float64, ok bool) {
	if len(f.cells) == 0 {
		return 0, 0, false
	}
	speeds := make([]float64, len(f.cells))
	for i, c := range f.cells {
		speeds[i] = c.Vector.Speed()
	}
	return floats.Min(speeds), floats.Max(speeds), true
}

// Arrows places one arrow at the centre of every valid cell.
func (f *Field) Arrows() []overlay.Arrow {
	out := make([]overlay.Arrow, len(f.cells))
	for i, c := range f.cells {
		out[i] = overlay.Arrow{
			X:       (float64(c.X) + 0.5) / float64(f.Width),
			Y:       (float64(c.Y) + 0.5) / float64(f.Height),
			Degrees: c.Vector.Direction(),
		}
	}
	return out
}
