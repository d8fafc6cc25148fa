package pellets

import (
	"math"
	"testing"

	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/simviz/internal/sim/simtest"
)

func TestShaderLayout(t *testing.T) {
	simtest.Shader(t, densityWGSL, Bindings)
	simtest.Shader(t, renderWGSL, RenderBindings)
}

func TestUniformSizes(t *testing.T) {
	if got := gpu.SizeOf(Params{}); got != ParamsSize {
		t.Errorf("Params is %d bytes, want %d", got, ParamsSize)
	}
	if got := gpu.SizeOf(Pellet{}); got != PelletSize {
		t.Errorf("Pellet is %d bytes, want %d", got, PelletSize)
	}
}

func TestContract(t *testing.T) {
	simtest.Contract(t, Kind)
}

func TestRestitution(t *testing.T) {
	s := DefaultSettings()
	s.CollisionDamping = 0.25
	if cfg := s.Config(); cfg.Restitution != 0.75 {
		t.Errorf("restitution = %v", cfg.Restitution)
	}
	s.GravityMode = "Center"
	if cfg := s.Config(); cfg.GravityY != 0 {
		t.Errorf("center gravity leaked into GravityY = %v", cfg.GravityY)
	}
}

// Two thousand pellets with collision_damping 0 stay in the box after ten
// seconds.
func TestScenarioBounds(t *testing.T) {
	s := DefaultSettings()
	s.ParticleCount = 2000
	s.CollisionDamping = 0
	m := NewModel(s, sim.NewRNG(1))
	for range 600 {
		m.Step(1.0 / 60)
	}
	for i, b := range m.World.Bodies {
		if math.Abs(float64(b.X)) > 1 || math.Abs(float64(b.Y)) > 1 {
			t.Fatalf("pellet %d at (%v, %v)", i, b.X, b.Y)
		}
	}
}

func TestSpawnPatterns(t *testing.T) {
	for p := SpawnRandom; p <= SpawnCluster; p++ {
		bodies := Spawn(p, 500, 0.01, 0.5, 1, sim.NewRNG(2))
		for i, b := range bodies {
			if b.Radius < 0.0075 || b.Radius > 0.0125 {
				t.Fatalf("pattern %d: radius %v", p, b.Radius)
			}
			lim := 1 - b.Radius
			if b.X < -lim || b.X > lim || b.Y < -lim || b.Y > lim {
				t.Fatalf("pattern %d: body %d at (%v, %v)", p, i, b.X, b.Y)
			}
			if b.Speed() > 1+1e-5 {
				t.Fatalf("pattern %d: speed %v", p, b.Speed())
			}
		}
	}
}

func TestCenterGravityPulls(t *testing.T) {
	s := DefaultSettings()
	s.ParticleCount = 1
	s.InitialVelocity = 0
	s.GravityMode = "Center"
	s.Gravity = 2
	s.Damping = 1
	m := NewModel(s, sim.NewRNG(3))
	m.World.Bodies[0].X, m.World.Bodies[0].Y = 0.5, 0
	m.Step(0.05)
	if vx := m.World.Bodies[0].VX; vx >= 0 {
		t.Errorf("vx = %v, want toward the center", vx)
	}
}

func TestInteractModes(t *testing.T) {
	tests := []struct {
		mode uint32
		neg  bool
	}{
		{sim.ModeSeed, true},
		{sim.ModeGrab, true},
		{sim.ModeRepel, false},
	}
	for _, tt := range tests {
		s := DefaultSettings()
		s.ParticleCount = 1
		s.InitialVelocity = 0
		m := NewModel(s, sim.NewRNG(4))
		m.World.Bodies[0].X, m.World.Bodies[0].Y = 0.05, 0
		c := sim.DefaultCursor
		c.Size = 0.3
		m.Interact(c, tt.mode, 0.1)
		vx := m.World.Bodies[0].VX
		if (vx < 0) != tt.neg || vx == 0 {
			t.Errorf("mode %d: vx = %v", tt.mode, vx)
		}
		if sp := m.World.Bodies[0].Speed(); sp > s.MaxSpeed*0.25+1e-5 {
			t.Errorf("mode %d: launched at %v", tt.mode, sp)
		}
	}
	m := NewModel(DefaultSettings(), sim.NewRNG(5))
	before := m.World.KineticEnergy()
	m.Interact(sim.DefaultCursor, sim.ModeNone, 0.1)
	if m.World.KineticEnergy() != before {
		t.Error("ModeNone changed velocities")
	}
}

func TestPelletsMirrorBodies(t *testing.T) {
	m := NewModel(DefaultSettings(), sim.NewRNG(6))
	ps := m.Pellets(nil)
	if len(ps) != len(m.World.Bodies) {
		t.Fatalf("%d pellets for %d bodies", len(ps), len(m.World.Bodies))
	}
	b := m.World.Bodies[10]
	if p := ps[10]; p.X != b.X || p.VY != b.VY || p.Radius != b.Radius {
		t.Errorf("pellet %+v, body %+v", p, b)
	}
}
