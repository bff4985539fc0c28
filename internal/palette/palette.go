// Package palette maps scalar values onto colour gradients and builds legend ticks.
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
	"gonum.org/v1/gonum/floats"
)

// Palette errors.
var (
	ErrInvalidPalette = errors.New("invalid palette")
	ErrInvalidBounds  = errors.New("invalid stretch bounds")
	ErrInvalidTicks   = errors.New("legend needs at least two ticks")
)

// DefaultTickCount is the number of colour bar ticks.
const DefaultTickCount = 5

// Bounds is the value range mapped onto a palette. Min never exceeds Max.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewBounds validates and returns a Bounds.
func NewBounds(lo, hi float64) (Bounds, error) {
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return Bounds{}, fmt.Errorf("%w: non-finite bound", ErrInvalidBounds)
	}
	if lo > hi {
		return Bounds{}, fmt.Errorf("%w: min %v > max %v", ErrInvalidBounds, lo, hi)
	}
	return Bounds{Min: lo, Max: hi}, nil
}

// Degenerate reports whether the range is a single value.
func (b Bounds) Degenerate() bool {
	return b.Min == b.Max
}

// Normalize maps v to [0, 1]. Degenerate bounds map everything to 0.
func (b Bounds) Normalize(v float64) float64 {
	if b.Degenerate() || math.IsNaN(v) {
		return 0
	}
	t := (v - b.Min) / (b.Max - b.Min)
	return math.Max(0, math.Min(1, t))
}

// Palette is an ordered list of colour stops, low to high.
type Palette struct {
	names []string
	stops []colorful.Color
}

// Parse builds a palette from hex ("#5e4fa2", "#fff") or CSS colour names.
func Parse(stops []string) (Palette, error) {
	if len(stops) < 2 {
		return Palette{}, fmt.Errorf("%w: need at least 2 stops, got %d", ErrInvalidPalette, len(stops))
	}

	p := Palette{
		names: make([]string, 0, len(stops)),
		stops: make([]colorful.Color, 0, len(stops)),
	}
	for _, s := range stops {
		c, err := parseColor(s)
		if err != nil {
			return Palette{}, err
		}
		p.names = append(p.names, s)
		p.stops = append(p.stops, c)
	}
	return p, nil
}

// MustParse is like Parse but panics on error. For package-level palettes.
func MustParse(stops ...string) Palette {
	p, err := Parse(stops)
	if err != nil {
		panic(err)
	}
	return p
}

func parseColor(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return colorful.Color{}, fmt.Errorf("%w: %q: %v", ErrInvalidPalette, s, err)
		}
		return c, nil
	}
	rgba, ok := colornames.Map[strings.ToLower(s)]
	if !ok {
		return colorful.Color{}, fmt.Errorf("%w: unknown colour %q", ErrInvalidPalette, s)
	}
	c, _ := colorful.MakeColor(rgba)
	return c, nil
}

// Len returns the number of stops.
func (p Palette) Len() int {
	return len(p.stops)
}

// Names returns the stops as given to Parse.
func (p Palette) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Stop returns stop i as an opaque RGBA colour.
func (p Palette) Stop(i int) color.RGBA {
	return toRGBA(p.stops[i])
}

// At returns the colour at position t in [0, 1], interpolating linearly
// between neighbouring stops.
func (p Palette) At(t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(p.stops)-1)
	i := int(math.Floor(pos))
	if i >= len(p.stops)-1 {
		return p.Stop(len(p.stops) - 1)
	}
	frac := pos - float64(i)
	if frac == 0 {
		return p.Stop(i)
	}
	return toRGBA(p.stops[i].BlendRgb(p.stops[i+1], frac))
}

// ColorFor maps value onto the palette using bounds. Degenerate bounds
// always return the first stop.
func ColorFor(value float64, b Bounds, p Palette) color.RGBA {
	if b.Degenerate() {
		return p.Stop(0)
	}
	return p.At(b.Normalize(value))
}

// LegendTicks returns n evenly spaced values from b.Min to b.Max inclusive.
func LegendTicks(b Bounds, n int) ([]float64, error) {
	if n < 2 {
		return nil, ErrInvalidTicks
	}
	ticks := floats.Span(make([]float64, n), b.Min, b.Max)
	// Span can drift in the last ulp; pin the endpoints.
	ticks[0], ticks[n-1] = b.Min, b.Max
	return ticks, nil
}

// TickLabels formats ticks to three decimal places.
func TickLabels(ticks []float64) []string {
	labels := make([]string, len(ticks))
	for i, v := range ticks {
		labels[i] = fmt.Sprintf("%.3f", v)
	}
	return labels
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
