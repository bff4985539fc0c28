// Package overlay stacks a coloured value layer and a thresholded mask on a
// common extent and rasterises the result.
package overlay

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/palette"
	"github.com/citytrace/citytrace/internal/raster"
)

var (
	// ErrGeometryMismatch is returned when the mask does not cover the base extent.
	ErrGeometryMismatch = errors.New("layer extents do not match")

	// ErrInvalidLayer is returned for layers that cannot be drawn.
	ErrInvalidLayer = errors.New("invalid layer")
)

const (
	// ExtentTolerance is the allowed extent difference in degrees.
	ExtentTolerance = 1e-6

	// DefaultMaskOpacity draws mask pixels fully opaque.
	DefaultMaskOpacity = 1.0

	// DefaultMaskThreshold is the night-lights radiance above which a pixel
	// counts as lit, in nW/cm^2/sr.
	DefaultMaskThreshold = 30.0
)

// DefaultMaskColor is the colour of lit pixels.
var DefaultMaskColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Mask is a boolean raster. Unset pixels are transparent when drawn.
type Mask struct {
	Extent geo.Extent
	width  int
	height int
	set    []bool
}

// Threshold marks every pixel of g whose value is strictly greater than
// threshold. Pixels without data are never set.
func Threshold(g *raster.Grid, threshold float64) *Mask {
	w, h := g.Dims()
	m := &Mask{Extent: g.Extent, width: w, height: h, set: make([]bool, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if g.Valid(x, y) && g.At(x, y) > threshold {
				m.set[y*w+x] = true
			}
		}
	}
	return m
}

// Dims returns width and height in pixels.
func (m *Mask) Dims() (width, height int) {
	return m.width, m.height
}

// At reports whether pixel (x, y) is set.
func (m *Mask) At(x, y int) bool {
	return m.set[y*m.width+x]
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, s := range m.set {
		if s {
			n++
		}
	}
	return n
}

// BaseLayer is a value grid coloured through a palette.
type BaseLayer struct {
	Grid    *raster.Grid
	Palette palette.Palette
	Bounds  palette.Bounds
}

// MaskLayer draws set mask pixels in a single colour.
type MaskLayer struct {
	Mask    *Mask
	Color   color.RGBA
	Opacity float64
}

// NewMaskLayer returns a white, fully opaque layer for m.
func NewMaskLayer(m *Mask) MaskLayer {
	return MaskLayer{Mask: m, Color: DefaultMaskColor, Opacity: DefaultMaskOpacity}
}

// WithOpacity returns a copy of the layer with opacity o.
func (l MaskLayer) WithOpacity(o float64) MaskLayer {
	l.Opacity = o
	return l
}

// Layer describes one entry of the draw order.
type Layer struct {
	Name    string
	Z       int
	Opacity float64
}

// Composite is a validated stack: the base at z=0 and an optional mask at z=1.
type Composite struct {
	Extent geo.Extent
	Base   BaseLayer
	Mask   *MaskLayer
}

// Compose validates the layers and stacks them. mask may be nil.
func Compose(base BaseLayer, mask *MaskLayer) (*Composite, error) {
	if base.Grid == nil {
		return nil, fmt.Errorf("%w: base layer has no grid", ErrInvalidLayer)
	}
	if base.Palette.Len() < 2 {
		return nil, fmt.Errorf("%w: base layer palette: %w", ErrInvalidLayer, palette.ErrInvalidPalette)
	}

	c := &Composite{Extent: base.Grid.Extent, Base: base}
	if mask == nil {
		return c, nil
	}

	if mask.Mask == nil {
		return nil, fmt.Errorf("%w: mask layer has no mask", ErrInvalidLayer)
	}
	if mask.Opacity < 0 || mask.Opacity > 1 {
		return nil, fmt.Errorf("%w: mask opacity %v outside [0, 1]", ErrInvalidLayer, mask.Opacity)
	}
	if !mask.Mask.Extent.Equal(base.Grid.Extent, ExtentTolerance) {
		return nil, fmt.Errorf("%w: base %v, mask %v", ErrGeometryMismatch, base.Grid.Extent, mask.Mask.Extent)
	}

	m := *mask
	c.Mask = &m
	return c, nil
}

// Layers returns the draw order, lowest z first.
func (c *Composite) Layers() []Layer {
	layers := []Layer{{Name: "base", Z: 0, Opacity: 1}}
	if c.Mask != nil {
		layers = append(layers, Layer{Name: "mask", Z: 1, Opacity: c.Mask.Opacity})
	}
	return layers
}
