package overlay

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

// Arrow marks a direction at a normalised map position, with (0, 0) at the
// top-left corner and (1, 1) at the bottom-right.
type Arrow struct {
	X, Y float64

	// Degrees clockwise from north, the direction the arrow points.
	Degrees float64
}

// Arrow proportions relative to its half length.
const (
	arrowHead       = 0.45
	arrowHeadWidth  = 0.35
	arrowShaftWidth = 0.1
	arrowFill       = 0.35
)

// drawArrows fills every arrow in ink on top of the map area. Arrows are
// sized so a square grid of them does not overlap.
func drawArrows(img *image.RGBA, mapRect image.Rectangle, arrows []Arrow) {
	if len(arrows) == 0 {
		return
	}
	w, h := mapRect.Dx(), mapRect.Dy()
	perSide := math.Ceil(math.Sqrt(float64(len(arrows))))
	half := arrowFill * math.Min(float64(w), float64(h)) / perSide

	z := vector.NewRasterizer(w, h)
	for _, a := range arrows {
		arrowPath(z, a.X*float64(w), a.Y*float64(h), a.Degrees, half)
	}
	z.Draw(img, mapRect, image.NewUniform(ink), image.Point{})
}

func arrowPath(z *vector.Rasterizer, cx, cy, degrees, half float64) {
	rad := degrees * math.Pi / 180
	// Forward is north-up on screen, so y grows downwards.
	fx, fy := math.Sin(rad), -math.Cos(rad)
	px, py := -fy, fx

	pt := func(along, across float64) (float32, float32) {
		return float32(cx + fx*along + px*across), float32(cy + fy*along + py*across)
	}

	neck := half - half*arrowHead
	shaft := half * arrowShaftWidth
	head := half * arrowHeadWidth

	z.MoveTo(pt(-half, shaft))
	z.LineTo(pt(neck, shaft))
	z.LineTo(pt(neck, head))
	z.LineTo(pt(half, 0))
	z.LineTo(pt(neck, -head))
	z.LineTo(pt(neck, -shaft))
	z.LineTo(pt(-half, -shaft))
	z.ClosePath()
}
