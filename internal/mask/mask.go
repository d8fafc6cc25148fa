// Package mask turns images into scalar fields matching a simulation grid.
//
// A mask is a row-major []float32 in [0, 1] whose row 0 is the bottom of
// the world (y = -1). Fitting converts to luminance, scales according to a
// FitMode and never mirrors; mirroring is a shader concern.
package mask

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // decoder registration
	_ "image/jpeg" // decoder registration
	_ "image/png"  // decoder registration
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "golang.org/x/image/bmp" // decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // decoder registration
	_ "golang.org/x/image/webp" // decoder registration
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/cache"
)

// FitMode selects how an image is placed on the simulation grid.
type FitMode uint8

const (
	// Stretch scales each axis independently to fill the grid.
	Stretch FitMode = iota
	// Contain scales uniformly so the whole image fits; the rest is zero.
	Contain
	// Cover scales uniformly so the image fills the grid, cropping overflow.
	Cover
	// Center places the image unscaled in the middle of the grid.
	Center
)

var fitNames = [...]string{"Stretch", "Contain", "Cover", "Center"}

// String returns the settings name of the mode.
func (m FitMode) String() string {
	if int(m) < len(fitNames) {
		return fitNames[m]
	}
	return "Unknown"
}

// FitModes is the enum table used by settings tags.
const FitModes = "Stretch|Contain|Cover|Center"

// ParseFitMode parses a mode name case-insensitively.
func ParseFitMode(s string) (FitMode, error) {
	for i, n := range fitNames {
		if strings.EqualFold(n, s) {
			return FitMode(i), nil
		}
	}
	return Stretch, simviz.InvalidSetting("mask_fit_mode", "unknown fit mode %q", s)
}

// Options controls Fit.
type Options struct {
	Mode   FitMode
	Invert bool
	// Fast trades quality for speed with bilinear instead of Catmull-Rom.
	Fast bool
}

// Fit converts src to a w×h luminance field in [0, 1].
func Fit(src image.Image, w, h int, opt Options) []float32 {
	if w <= 0 || h <= 0 {
		return nil
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	if src != nil && !src.Bounds().Empty() {
		dr, sr := placement(src.Bounds(), w, h, opt.Mode)
		var interp draw.Interpolator = draw.CatmullRom
		if opt.Fast {
			interp = draw.ApproxBiLinear
		}
		if dr.Dx() == sr.Dx() && dr.Dy() == sr.Dy() {
			draw.Draw(gray, dr, src, sr.Min, draw.Src)
		} else {
			interp.Scale(gray, dr, src, sr, draw.Src, nil)
		}
	}
	return toField(gray, opt.Invert)
}

// placement returns the destination rectangle on the grid and the source
// rectangle drawn into it.
func placement(b image.Rectangle, w, h int, mode FitMode) (dst, src image.Rectangle) {
	sw, sh := b.Dx(), b.Dy()
	full := image.Rect(0, 0, w, h)
	switch mode {
	case Contain:
		s := min(float64(w)/float64(sw), float64(h)/float64(sh))
		dw, dh := max(1, int(float64(sw)*s)), max(1, int(float64(sh)*s))
		x0, y0 := (w-dw)/2, (h-dh)/2
		return image.Rect(x0, y0, x0+dw, y0+dh), b
	case Cover:
		s := max(float64(w)/float64(sw), float64(h)/float64(sh))
		cw, ch := max(1, int(float64(w)/s)), max(1, int(float64(h)/s))
		x0, y0 := b.Min.X+(sw-cw)/2, b.Min.Y+(sh-ch)/2
		return full, image.Rect(x0, y0, x0+cw, y0+ch)
	case Center:
		cw, ch := min(w, sw), min(h, sh)
		dx, dy := (w-cw)/2, (h-ch)/2
		sx, sy := b.Min.X+(sw-cw)/2, b.Min.Y+(sh-ch)/2
		return image.Rect(dx, dy, dx+cw, dy+ch), image.Rect(sx, sy, sx+cw, sy+ch)
	default:
		return full, b
	}
}

// toField flips gray vertically into a float field, converting rows in
// parallel.
func toField(gray *image.Gray, invert bool) []float32 {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := make([]float32, w*h)
	var g errgroup.Group
	workers := min(runtime.GOMAXPROCS(0), h)
	chunk := (h + workers - 1) / workers
	for start := 0; start < h; start += chunk {
		end := min(start+chunk, h)
		g.Go(func() error {
			for y := start; y < end; y++ {
				src := gray.Pix[y*gray.Stride : y*gray.Stride+w]
				row := out[(h-1-y)*w : (h-y)*w]
				for x, p := range src {
					v := float32(p) / 255
					if invert {
						v = 1 - v
					}
					row[x] = v
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ToR8 quantizes a field to one byte per cell for an R8Unorm texture.
func ToR8(field []float32) []byte {
	out := make([]byte, len(field))
	for i, v := range field {
		out[i] = uint8(min(max(v, 0), 1)*255 + 0.5)
	}
	return out
}

// Decode reads an image in any registered format.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("mask: decode: %w", err)
	}
	return img, nil
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("mask: empty data")
	}
	return Decode(bytes.NewReader(data))
}

// fileKey identifies one version of an image file.
type fileKey struct {
	path string
	mod  time.Time
	size int64
}

// decoded holds recently loaded images so toggling a mask setting does not
// decode the file again. A rewritten file gets a new key.
var decoded = cache.New[fileKey, image.Image](8)

// Load decodes the image at path.
func Load(path string) (image.Image, error) {
	path = filepath.Clean(path)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("mask: open file: %w", err)
	}
	key := fileKey{path: path, mod: fi.ModTime(), size: fi.Size()}
	return decoded.GetOrCreate(key, func() (image.Image, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("mask: open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		return Decode(f)
	})
}
