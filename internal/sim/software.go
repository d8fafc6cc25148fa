package sim

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/parallel"
)

// palette returns the scheme as displayed.
func palette(scheme *lut.ColorScheme, reversed bool) *lut.ColorScheme {
	if reversed {
		return scheme.Reversed()
	}
	return scheme
}

// RenderField colors a w×h scalar field through the scheme, mapping
// [lo, hi] to the full palette, and scales it to fill dst. Row 0 of the
// field is world y = -1, drawn at the bottom.
func RenderField(dst *image.RGBA, field []float32, w, h int, scheme *lut.ColorScheme, reversed bool, lo, hi float32) {
	if w <= 0 || h <= 0 || len(field) < w*h {
		return
	}
	p := palette(scheme, reversed)
	span := hi - lo
	if span == 0 {
		span = 1
	}
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	parallel.Rows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := field[y*w : (y+1)*w]
			for x, v := range row {
				src.SetRGBA(x, h-1-y, p.Sample(float64((v-lo)/span)))
			}
		}
	})
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
}

// Point is a world-space position with a scalar used for coloring.
type Point struct {
	X, Y  float32
	Value float32
}

// RenderPoints clears dst to the scheme background and draws each point as
// a square of the given pixel radius, colored by Value in [0, 1].
func RenderPoints(dst *image.RGBA, pts []Point, scheme *lut.ColorScheme, reversed bool, radius int) {
	p := palette(scheme, reversed)
	b := dst.Bounds()
	draw.Draw(dst, b, &image.Uniform{C: p.At(0)}, image.Point{}, draw.Src)
	w, h := float32(b.Dx()), float32(b.Dy())
	for _, pt := range pts {
		cx := int((pt.X + 1) / 2 * w)
		cy := int((1 - pt.Y) / 2 * h)
		c := p.Sample(float64(pt.Value))
		fillSquare(dst, cx, cy, radius, c)
	}
}

func fillSquare(dst *image.RGBA, cx, cy, r int, c color.RGBA) {
	rect := image.Rect(cx-r, cy-r, cx+r+1, cy+r+1).Intersect(dst.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.SetRGBA(x, y, c)
		}
	}
}

// RenderSegments draws line segments between world-space points, colored
// by their Value.
func RenderSegments(dst *image.RGBA, segs [][2]Point, scheme *lut.ColorScheme, reversed bool) {
	p := palette(scheme, reversed)
	b := dst.Bounds()
	draw.Draw(dst, b, &image.Uniform{C: p.At(0)}, image.Point{}, draw.Src)
	w, h := float32(b.Dx()), float32(b.Dy())
	for _, s := range segs {
		x0, y0 := (s[0].X+1)/2*w, (1-s[0].Y)/2*h
		x1, y1 := (s[1].X+1)/2*w, (1-s[1].Y)/2*h
		c := p.Sample(float64(s[1].Value))
		n := int(max(abs32(x1-x0), abs32(y1-y0))) + 1
		for i := 0; i <= n; i++ {
			t := float32(i) / float32(n)
			fillSquare(dst, int(x0+(x1-x0)*t), int(y0+(y1-y0)*t), 0, c)
		}
	}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
