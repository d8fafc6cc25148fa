package flow

import (
	"math"
	"testing"

	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/simviz/internal/sim/simtest"
)

func TestShaderLayout(t *testing.T) {
	simtest.Shader(t, updateWGSL, Bindings)
	simtest.Shader(t, trailWGSL, TrailBindings)
	simtest.Shader(t, renderWGSL, RenderBindings)
}

func TestUniformSizes(t *testing.T) {
	if got := gpu.SizeOf(Params{}); got != ParamsSize {
		t.Errorf("Params is %d bytes, want %d", got, ParamsSize)
	}
	if got := gpu.SizeOf(Particle{}); got != ParticleSize {
		t.Errorf("Particle is %d bytes, want %d", got, ParticleSize)
	}
}

func TestContract(t *testing.T) {
	simtest.Contract(t, Kind)
}

func testParams() Params {
	s := DefaultSettings()
	p := s.params(1)
	p.Dt = 1.0 / 60
	p.CursorX, p.CursorY, p.CursorSize = 0, 0, 0.5
	return p
}

func TestForce(t *testing.T) {
	tests := []struct {
		name   string
		mode   uint32
		x, y   float32
		wantFx func(fx, fy float32) bool
	}{
		{"none", sim.ModeNone, 0.2, 0, func(fx, fy float32) bool { return fx == 0 && fy == 0 }},
		{"attract", sim.ModeSeed, 0.2, 0, func(fx, fy float32) bool { return fx < 0 && fy == 0 }},
		{"repel", sim.ModeRepel, 0.2, 0, func(fx, fy float32) bool { return fx > 0 && fy == 0 }},
		{"swirl", sim.ModeGrab, 0.2, 0, func(fx, fy float32) bool { return fx == 0 && fy < 0 }},
		{"outside", sim.ModeSeed, 0.9, 0, func(fx, fy float32) bool { return fx == 0 && fy == 0 }},
		{"center", sim.ModeSeed, 0, 0, func(fx, fy float32) bool { return fx == 0 && fy == 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			p.Mode = tt.mode
			fx, fy := Force(&p, tt.x, tt.y)
			if !tt.wantFx(fx, fy) {
				t.Errorf("Force = (%v, %v)", fx, fy)
			}
		})
	}
}

func TestAdvanceStaysInBox(t *testing.T) {
	p := testParams()
	p.FlowStrength = 4
	p.Seed = 7
	parts := make([]Particle, 300)
	for i := range parts {
		parts[i] = Respawn(&p, uint32(i), 0)
	}
	for f := range 600 {
		p.Frame = uint32(f)
		p.Time = float32(f) * 0.01
		for i := range parts {
			Advance(&p, &parts[i], uint32(i))
			q := parts[i]
			if q.X < -1 || q.X >= 1 || q.Y < -1 || q.Y >= 1 {
				t.Fatalf("frame %d: particle %d at (%v, %v)", f, i, q.X, q.Y)
			}
			if q.Age > q.Life {
				t.Fatalf("frame %d: particle %d outlived %v", f, i, q.Life)
			}
		}
	}
}

func TestRespawnLifetime(t *testing.T) {
	p := testParams()
	p.Life, p.LifeVariation = 4, 0.5
	for i := range uint32(1000) {
		q := Respawn(&p, i, 3)
		if q.Life < 2-1e-5 || q.Life > 4+1e-5 {
			t.Fatalf("life %v outside [2, 4]", q.Life)
		}
		if q.Age != 0 || q.VX != 0 || q.VY != 0 {
			t.Fatalf("respawn carries state: %+v", q)
		}
	}
	if a, b := Respawn(&p, 5, 1), Respawn(&p, 5, 2); a == b {
		t.Error("respawn ignores the frame")
	}
}

func TestInertiaRelaxes(t *testing.T) {
	p := testParams()
	p.FlowStrength = 0
	p.Inertia = 5
	q := Particle{VX: 1, Life: 100}
	for range 60 {
		Advance(&p, &q, 0)
	}
	want := math.Exp(-5)
	if math.Abs(float64(q.VX)-want) > 1e-3 {
		t.Errorf("vx after 1s = %v, want %v", q.VX, want)
	}
}

func TestWrap(t *testing.T) {
	tests := []struct{ in, want float32 }{
		{0, 0}, {0.5, 0.5}, {1, -1}, {1.25, -0.75}, {-1.25, 0.75}, {-1, -1},
	}
	for _, tt := range tests {
		if got := wrap(tt.in); math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("wrap(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
