package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/citytrace/citytrace/internal/palette"
)

// DefaultWidth is the rendered map width in pixels.
const DefaultWidth = 512

const (
	margin        = 8
	titleHeight   = 20
	labelHeight   = 18
	barGap        = 12
	barWidth      = 16
	tickLength    = 4
	glyphWidth    = 7
	glyphAscent   = 10
	noDataGreyVal = 0xe6
)

var (
	background = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	noData     = color.RGBA{R: noDataGreyVal, G: noDataGreyVal, B: noDataGreyVal, A: 0xff}
	ink        = color.RGBA{A: 0xff}
)

// RenderOptions controls the rasterised figure.
type RenderOptions struct {
	// Width of the map area. Height follows the base grid aspect ratio.
	Width int

	Title string

	// Colorbar draws a vertical legend with tick labels to the right of the map.
	Colorbar bool

	// ColorbarLabel is printed under the map, e.g. "CO (ppb)".
	ColorbarLabel string

	// Ticks on the colour bar. Zero uses palette.DefaultTickCount.
	Ticks int

	// Arrows are drawn above every layer.
	Arrows []Arrow
}

// Render draws the composite. The mask is blended over the base with its
// opacity; cells without data are drawn light grey.
func Render(c *Composite, opts RenderOptions) (*image.RGBA, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Ticks == 0 {
		opts.Ticks = palette.DefaultTickCount
	}

	gw, gh := c.Base.Grid.Dims()
	mapW := opts.Width
	mapH := int(math.Max(1, math.Round(float64(mapW)*float64(gh)/float64(gw))))

	var (
		ticks  []float64
		labels []string
		err    error
	)
	if opts.Colorbar {
		ticks, err = palette.LegendTicks(c.Base.Bounds, opts.Ticks)
		if err != nil {
			return nil, fmt.Errorf("colour bar: %w", err)
		}
		labels = palette.TickLabels(ticks)
	}

	top := margin
	if opts.Title != "" {
		top += titleHeight
	}
	width := margin + mapW + margin
	if opts.Colorbar {
		width += barGap + barWidth + tickLength + 2 + maxLen(labels)*glyphWidth
	}
	height := top + mapH + margin
	if opts.ColorbarLabel != "" {
		height += labelHeight
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	mapRect := image.Rect(margin, top, margin+mapW, top+mapH)
	draw.NearestNeighbor.Scale(img, mapRect, baseImage(c.Base), image.Rect(0, 0, gw, gh), draw.Over, nil)
	if c.Mask != nil {
		mask := maskImage(*c.Mask)
		draw.NearestNeighbor.Scale(img, mapRect, mask, mask.Bounds(), draw.Over, nil)
	}
	drawArrows(img, mapRect, opts.Arrows)

	if opts.Title != "" {
		drawText(img, margin, margin+glyphAscent, opts.Title)
	}
	if opts.Colorbar {
		drawColorbar(img, c.Base, mapRect, ticks, labels)
	}
	if opts.ColorbarLabel != "" {
		drawText(img, margin, mapRect.Max.Y+labelHeight-4, opts.ColorbarLabel)
	}

	return img, nil
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func baseImage(b BaseLayer) *image.RGBA {
	w, h := b.Grid.Dims()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !b.Grid.Valid(x, y) {
				img.SetRGBA(x, y, noData)
				continue
			}
			img.SetRGBA(x, y, palette.ColorFor(b.Grid.At(x, y), b.Bounds, b.Palette))
		}
	}
	return img
}

// maskImage returns set pixels in the layer colour premultiplied by opacity;
// everything else stays fully transparent.
func maskImage(l MaskLayer) *image.RGBA {
	w, h := l.Mask.Dims()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	a := l.Opacity
	px := color.RGBA{
		R: uint8(math.Round(float64(l.Color.R) * a)),
		G: uint8(math.Round(float64(l.Color.G) * a)),
		B: uint8(math.Round(float64(l.Color.B) * a)),
		A: uint8(math.Round(255 * a)),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if l.Mask.At(x, y) {
				img.SetRGBA(x, y, px)
			}
		}
	}
	return img
}

func drawColorbar(img *image.RGBA, b BaseLayer, mapRect image.Rectangle, ticks []float64, labels []string) {
	x0 := mapRect.Max.X + barGap
	h := mapRect.Dy()

	// Top row is the palette maximum.
	for j := 0; j < h; j++ {
		t := 1.0
		if h > 1 {
			t = 1 - float64(j)/float64(h-1)
		}
		c := b.Palette.At(t)
		for i := 0; i < barWidth; i++ {
			img.SetRGBA(x0+i, mapRect.Min.Y+j, c)
		}
	}

	for i, v := range ticks {
		y := mapRect.Min.Y + int(math.Round((1-b.Bounds.Normalize(v))*float64(h-1)))
		for k := 0; k < tickLength; k++ {
			img.SetRGBA(x0+barWidth+k, y, ink)
		}
		drawText(img, x0+barWidth+tickLength+2, y+glyphAscent/2, labels[i])
	}
}

func drawText(img *image.RGBA, x, y int, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(ink),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func maxLen(ss []string) int {
	n := 0
	for _, s := range ss {
		if len(s) > n {
			n = len(s)
		}
	}
	return n
}
