package grayscott

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/parallel"
	"github.com/gogpu/simviz/internal/sim"
)

// Nutrient patterns in enum order.
const (
	PatternUniform uint32 = iota
	PatternCheckerboard
	PatternDiagonalGradient
	PatternRadialGradient
	PatternVerticalStripes
	PatternHorizontalStripes
	PatternEnhancedNoise
	PatternWaveFunction
	PatternCosineGrid
)

// Field is the CPU model of the reaction: U and V concentrations on a
// periodic W×H grid, row 0 at the bottom. It seeds the GPU field and runs
// the same update as the compute shader.
type Field struct {
	W, H int
	U, V []float32
	// Mask is an optional W×H feed modulation, used when Params.MaskEnabled.
	Mask []float32

	nu, nv []float32
}

// NewField returns a field at rest: U = 1 and V = 0 everywhere.
func NewField(w, h int) *Field {
	f := &Field{W: w, H: h, U: make([]float32, w*h), V: make([]float32, w*h),
		nu: make([]float32, w*h), nv: make([]float32, w*h)}
	for i := range f.U {
		f.U[i] = 1
	}
	return f
}

// Seed resets the field and drops square patches of V, following
// Pearson's initial condition.
func (f *Field) Seed(rng *sim.RNG) {
	for i := range f.U {
		f.U[i], f.V[i] = 1, 0
	}
	side := max(2, min(f.W, f.H)/16)
	patches := 4 + rng.IntN(8)
	for range patches {
		cx, cy := rng.IntN(f.W), rng.IntN(f.H)
		for dy := range side {
			for dx := range side {
				i := ((cy+dy)%f.H)*f.W + (cx+dx)%f.W
				f.U[i] = 0.5 + rng.Range(-0.01, 0.01)
				f.V[i] = 0.25 + rng.Range(-0.01, 0.01)
			}
		}
	}
}

// Step advances the reaction once with p. Cursor fields are ignored.
func (f *Field) Step(p Params) {
	w, h := f.W, f.H
	masked := p.MaskEnabled != 0 && len(f.Mask) == w*h
	parallel.Rows(h, func(lo, hi int) {
		for y := lo; y < hi; y++ {
			up, down := ((y+1)%h)*w, ((y+h-1)%h)*w
			row := y * w
			for x := range w {
				left, right := (x+w-1)%w, (x+1)%w
				i := row + x
				u, v := f.U[i], f.V[i]
				lapU := f.U[row+left] + f.U[row+right] + f.U[up+x] + f.U[down+x] - 4*u
				lapV := f.V[row+left] + f.V[row+right] + f.V[up+x] + f.V[down+x] - 4*v

				feed := p.Feed * (0.5 + Nutrient(p.Pattern, p.PatternReversed != 0,
					(float32(x)+0.5)/float32(w), (float32(y)+0.5)/float32(h), p.Seed))
				if masked {
					feed *= maskFactor(f.Mask, w, h, x, y, p)
				}
				uvv := u * v * v
				f.nu[i] = clamp01(u + p.Dt*(p.DiffU*lapU-uvv+feed*(1-u)))
				f.nv[i] = clamp01(v + p.Dt*(p.DiffV*lapV+uvv-(feed+p.Kill)*v))
			}
		}
	})
	f.U, f.nu = f.nu, f.U
	f.V, f.nv = f.nv, f.V
}

func maskFactor(m []float32, w, h, x, y int, p Params) float32 {
	if p.MaskMirror&MirrorHorizontal != 0 {
		x = w - 1 - x
	}
	if p.MaskMirror&MirrorVertical != 0 {
		y = h - 1 - y
	}
	v := m[y*w+x]
	if p.MaskInvert != 0 {
		v = 1 - v
	}
	return 1 + (v-1)*p.MaskStrength
}

// Mean returns the mean concentrations of U and V.
func (f *Field) Mean() (u, v float64) {
	for i := range f.U {
		u += float64(f.U[i])
		v += float64(f.V[i])
	}
	n := float64(len(f.U))
	return u / n, v / n
}

// RGBA32F encodes the field as rgba32float texels (u, v, 0, 1).
func (f *Field) RGBA32F() []byte {
	out := make([]byte, 0, len(f.U)*16)
	for i := range f.U {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f.U[i]))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f.V[i]))
		out = binary.LittleEndian.AppendUint32(out, 0)
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(1))
	}
	return out
}

// Nutrient returns the feed modulation in [0, 1] at texture coordinate
// (u, v). Uniform is 0.5 everywhere so the feed rate is unchanged.
func Nutrient(pattern uint32, reversed bool, u, v float32, seed uint32) float32 {
	const tau = 2 * math.Pi
	var n float64
	x, y := float64(u), float64(v)
	switch pattern {
	case PatternCheckerboard:
		n = float64((int(x*8) + int(y*8)) & 1)
	case PatternDiagonalGradient:
		n = (x + y) / 2
	case PatternRadialGradient:
		n = 1 - min(math.Hypot(x-0.5, y-0.5)*2, 1)
	case PatternVerticalStripes:
		n = 0.5 + 0.5*math.Sin(x*tau*6)
	case PatternHorizontalStripes:
		n = 0.5 + 0.5*math.Sin(y*tau*6)
	case PatternEnhancedNoise:
		n = 0.65*valueNoise(x*8, y*8, seed) + 0.35*valueNoise(x*16+17, y*16+17, seed)
	case PatternWaveFunction:
		n = 0.5 + 0.25*(math.Sin(x*tau*3)+math.Cos(y*tau*3))
	case PatternCosineGrid:
		n = 0.5 + 0.5*math.Cos(x*tau*4)*math.Cos(y*tau*4)
	default:
		return 0.5
	}
	if reversed {
		n = 1 - n
	}
	return float32(n)
}

func lattice(ix, iy, seed uint32) float64 {
	return float64(sim.Hash(ix^sim.Hash(iy^seed))) / math.MaxUint32
}

func valueNoise(x, y float64, seed uint32) float64 {
	fx, fy := math.Floor(x), math.Floor(y)
	ix, iy := uint32(fx), uint32(fy)
	tx, ty := smooth(x-fx), smooth(y-fy)
	a := lattice(ix, iy, seed)
	b := lattice(ix+1, iy, seed)
	c := lattice(ix, iy+1, seed)
	d := lattice(ix+1, iy+1, seed)
	return a + (b-a)*tx + (c-a)*ty + (a-b-c+d)*tx*ty
}

func smooth(t float64) float64 { return t * t * (3 - 2*t) }

func clamp01(v float32) float32 { return min(max(v, 0), 1) }

// software runs the CPU model for the software backend.
type software struct {
	field    *Field
	settings Settings
	seed     uint32
}

func newSoftware(w, h int, tree sim.ValueTree, seed uint64) (sim.Software, error) {
	s := DefaultSettings()
	if err := sim.DecodeSettings(tree, &s); err != nil {
		return nil, err
	}
	f := NewField(w, h)
	f.Seed(sim.NewRNG(seed))
	return &software{field: f, settings: s, seed: uint32(seed)}, nil
}

func (s *software) Step(float32) {
	p := s.settings.params(uint32(s.field.W), uint32(s.field.H), s.seed)
	for range s.settings.MaxFramesPerTick {
		s.field.Step(p)
	}
}

func (s *software) Render(dst *image.RGBA, scheme *lut.ColorScheme, reversed bool) {
	sim.RenderField(dst, s.field.V, s.field.W, s.field.H, scheme, reversed, 0, 0.5)
}
