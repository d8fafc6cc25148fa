package moire

import (
	"math"
	"testing"

	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/simviz/internal/sim/simtest"
)

func TestShaderLayout(t *testing.T) {
	simtest.Shader(t, shaderWGSL, Bindings)
}

func TestUniformSizes(t *testing.T) {
	if got := gpu.SizeOf(Params{}); got != ParamsSize {
		t.Errorf("Params is %d bytes, want %d", got, ParamsSize)
	}
}

func TestContract(t *testing.T) {
	simtest.Contract(t, Kind)
}

func TestInterference(t *testing.T) {
	s := DefaultSettings()
	p := s.params(8, 8)
	p.AngleOffset, p.FrequencyOffset = 0, 0
	for _, x := range []float32{0, 0.013, 0.25, -0.6} {
		w := wave(p.Frequency * x)
		if got := Interference(&p, x, 0.4); math.Abs(float64(got-w*w)) > 1e-5 {
			t.Errorf("identical gratings at x=%v: %v, want %v", x, got, w*w)
		}
	}

	p.Generator = GeneratorRadial
	p.CenterOffset = 0
	a := Interference(&p, 0.3, 0.1)
	b := Interference(&p, -0.1, 0.3)
	if math.Abs(float64(a-b)) > 1e-5 {
		t.Errorf("concentric rings not radially symmetric: %v vs %v", a, b)
	}
}

func TestFieldConverges(t *testing.T) {
	s := DefaultSettings()
	s.AdvectStrength = 0
	s.Persistence = 0.5
	f := NewField(16, 12)
	p := s.params(16, 12)
	p.Dt = 1.0 / 60
	for range 40 {
		f.Step(&p)
	}
	for y := range f.H {
		for x := range f.W {
			px := (float32(x)+0.5)/16*2 - 1
			py := (float32(y)+0.5)/12*2 - 1
			want := min(Interference(&p, px, py)*p.Contrast, 1)
			if got := f.V[y*f.W+x]; math.Abs(float64(got-want)) > 1e-4 {
				t.Fatalf("texel (%d, %d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestFieldModes(t *testing.T) {
	s := DefaultSettings()
	f := NewField(20, 20)
	for i := range f.V {
		f.V[i] = 1
	}
	p := s.params(20, 20)
	p.Persistence, p.Dt = 0.99, 1.0/60
	p.CursorSize, p.CursorStrength = 0.5, 1
	p.Mode = sim.ModeRepel
	f.Step(&p)
	if v := f.V[10*20+10]; v > 0.2 {
		t.Errorf("erased center = %v", v)
	}
	if v := f.V[0]; v < 0.9 {
		t.Errorf("far corner = %v, want untouched", v)
	}

	p.Mode = sim.ModeSeed
	vx, vy := swirl(&p, 0.1, 0, 0, 0)
	if vx != 0 || vy <= 0 {
		t.Errorf("seed swirl at +x = (%v, %v), want counter-clockwise", vx, vy)
	}
	p.Mode = sim.ModeGrab
	if _, vy := swirl(&p, 0.1, 0, 0, 0); vy >= 0 {
		t.Errorf("grab swirl vy = %v, want clockwise", vy)
	}
}

func TestImageModulates(t *testing.T) {
	s := DefaultSettings()
	f := NewField(4, 4)
	f.Image = make([]float32, 16)
	p := s.params(4, 4)
	p.ImageEnabled, p.ImageStrength = 1, 1
	f.Step(&p)
	for i, v := range f.V {
		if v != 0 {
			t.Fatalf("texel %d = %v under a black image", i, v)
		}
	}
}
