package moire

import (
	"image"
	"math"

	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/sim"
)

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func wave(phase float32) float32 {
	return 0.5 + 0.5*float32(math.Cos(2*math.Pi*float64(phase)))
}

// Interference is the product of the two gratings at (x, y), before
// contrast.
func Interference(p *Params, x, y float32) float32 {
	a := float64(p.Angle)
	f2 := p.Frequency * (1 + p.FrequencyOffset)
	if p.Generator == GeneratorRadial {
		ox := float32(math.Cos(a)) * p.CenterOffset * 0.5
		oy := float32(math.Sin(a)) * p.CenterOffset * 0.5
		r1 := float32(math.Hypot(float64(x-ox), float64(y-oy)))
		r2 := float32(math.Hypot(float64(x+ox), float64(y+oy)))
		return wave(p.Frequency*r1) * wave(f2*r2)
	}
	a2 := a + float64(p.AngleOffset)
	d1 := x*float32(math.Cos(a)) + y*float32(math.Sin(a))
	d2 := x*float32(math.Cos(a2)) + y*float32(math.Sin(a2))
	return wave(p.Frequency*d1) * wave(f2*d2)
}

// Field is the CPU model of the moire pass: a periodic W×H scalar field,
// row 0 at world y = -1, updated like the compute shader.
type Field struct {
	W, H int
	V    []float32
	// Image is an optional W×H modulation used when Params.ImageEnabled.
	Image []float32

	next []float32
}

// NewField returns an empty field.
func NewField(w, h int) *Field {
	return &Field{W: w, H: h, V: make([]float32, w*h), next: make([]float32, w*h)}
}

// Sample reads the field bilinearly at texel coordinates, wrapping at the
// edges.
func (f *Field) Sample(tx, ty float32) float32 {
	fx, fy := float32(math.Floor(float64(tx))), float32(math.Floor(float64(ty)))
	x0, y0 := wrap(int(fx), f.W), wrap(int(fy), f.H)
	x1, y1 := wrap(x0+1, f.W), wrap(y0+1, f.H)
	ax, ay := tx-fx, ty-fy
	top := lerp(f.V[y0*f.W+x0], f.V[y0*f.W+x1], ax)
	bot := lerp(f.V[y1*f.W+x0], f.V[y1*f.W+x1], ax)
	return lerp(top, bot, ay)
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Cell computes the next value of texel (x, y).
func (f *Field) Cell(p *Params, x, y int) float32 {
	w, h := float32(f.W), float32(f.H)
	px := (float32(x)+0.5)/w*2 - 1
	py := (float32(y)+0.5)/h*2 - 1
	vx, vy := sim.Curl(px, py, p.Time, p.NoiseScale)
	vx *= p.AdvectStrength
	vy *= p.AdvectStrength
	if p.Mode != sim.ModeNone && p.Mode != sim.ModeRepel {
		vx, vy = swirl(p, px, py, vx, vy)
	}
	// Back-trace in texel units.
	qx := float32(x) - vx*p.Dt*w*0.5
	qy := float32(y) - vy*p.Dt*h*0.5
	prev := f.Sample(qx, qy)
	fresh := min(Interference(p, px, py)*p.Contrast, 1)
	v := prev*p.Persistence + fresh*(1-p.Persistence)
	if p.ImageEnabled != 0 && len(f.Image) == f.W*f.H {
		v *= lerp(1, f.Image[y*f.W+x], p.ImageStrength)
	}
	if p.Mode == sim.ModeRepel {
		v *= 1 - falloff(p, px, py)
	}
	return min(max(v, 0), 1)
}

// falloff is 1 at the cursor and 0 outside its radius.
func falloff(p *Params, x, y float32) float32 {
	d := float32(math.Hypot(float64(x-p.CursorX), float64(y-p.CursorY)))
	if d >= p.CursorSize || p.CursorSize <= 0 {
		return 0
	}
	return 1 - d/p.CursorSize
}

// swirl adds a vortex around the cursor: counter-clockwise for seed,
// clockwise for grab.
func swirl(p *Params, x, y, vx, vy float32) (float32, float32) {
	k := falloff(p, x, y) * p.CursorStrength
	if p.Mode == sim.ModeGrab {
		k = -k
	}
	dx, dy := x-p.CursorX, y-p.CursorY
	return vx - dy*k*4, vy + dx*k*4
}

// Step advances the field once.
func (f *Field) Step(p *Params) {
	for y := range f.H {
		for x := range f.W {
			f.next[y*f.W+x] = f.Cell(p, x, y)
		}
	}
	f.V, f.next = f.next, f.V
}

type software struct {
	field    *Field
	settings Settings
	time     float32
	angle    float32
}

func newSoftware(w, h int, tree sim.ValueTree, _ uint64) (sim.Software, error) {
	s := DefaultSettings()
	if err := sim.DecodeSettings(tree, &s); err != nil {
		return nil, err
	}
	return &software{field: NewField(w, h), settings: s, angle: s.Angle}, nil
}

func (s *software) Step(dt float32) {
	s.time += dt * s.settings.FlowSpeed
	s.angle += dt * s.settings.RotationSpeed
	p := s.settings.params(uint32(s.field.W), uint32(s.field.H))
	p.Time, p.Dt, p.Angle = s.time, dt, s.angle
	s.field.Step(&p)
}

func (s *software) Render(dst *image.RGBA, scheme *lut.ColorScheme, reversed bool) {
	sim.RenderField(dst, s.field.V, s.field.W, s.field.H, scheme, reversed, 0, 1)
}
