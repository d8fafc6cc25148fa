package ecosystem

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
	if got := gpu.SizeOf(Agent{}); got != AgentSize {
		t.Errorf("Agent is %d bytes, want %d", got, AgentSize)
	}
	if got := gpu.SizeOf(Counters{}); got != CountersSize {
		t.Errorf("Counters is %d bytes, want %d", got, CountersSize)
	}
}

func TestContract(t *testing.T) {
	simtest.Contract(t, Kind)
}

func small(herb, carn uint32) Settings {
	s := DefaultSettings()
	s.HerbivoreCount = herb
	s.CarnivoreCount = carn
	return s
}

func TestCapacity(t *testing.T) {
	tests := []struct {
		name    string
		pattern uint32
	}{
		{"uniform", PlantUniform},
		{"patches", PlantPatches},
		{"stripes", PlantStripes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := float32(1), float32(0)
			for y := range 64 {
				for x := range 64 {
					c := Capacity(tt.pattern, float32(x), float32(y), 0.05)
					if c < 0 || c > 1 {
						t.Fatalf("capacity %v at (%d, %d)", c, x, y)
					}
					lo, hi = min(lo, c), max(hi, c)
				}
			}
			if tt.pattern == PlantUniform && lo != 1 {
				t.Errorf("uniform capacity dips to %v", lo)
			}
			if tt.pattern != PlantUniform && hi-lo < 0.5 {
				t.Errorf("pattern range [%v, %v] too flat", lo, hi)
			}
		})
	}
}

func TestAgentsStayInBounds(t *testing.T) {
	m := NewModel(48, 32, small(300, 40), 1)
	for tick := range 200 {
		m.Step(sim.MaxDeltaTime)
		for i, a := range m.Agents {
			if !(a.X >= 0 && a.X < 48 && a.Y >= 0 && a.Y < 32) {
				t.Fatalf("tick %d agent %d at (%v, %v)", tick, i, a.X, a.Y)
			}
			if a.Energy < 0 || a.Energy > m.params.MaxEnergy {
				t.Fatalf("tick %d agent %d energy %v", tick, i, a.Energy)
			}
		}
	}
}

func TestPlantsStayInRange(t *testing.T) {
	m := NewModel(40, 30, small(500, 0), 2)
	m.Mode = sim.ModeSeed
	m.Cursor.Strength = 10
	for range 100 {
		m.Step(1.0 / 30)
		for i, v := range m.Plants {
			if v < 0 || v > 1 {
				t.Fatalf("plant %d = %v", i, v)
			}
		}
	}
}

// Herbivores without food starve and respawn after the delay.
func TestStarvationAndRespawn(t *testing.T) {
	s := small(1, 0)
	s.PlantGrowth = 0
	s.PlantPattern = "Uniform"
	s.InitialEnergy = 0.1
	s.HerbivoreCost = 1
	s.RespawnDelay = 0.5
	s.Lifespan = 1000
	m := NewModel(16, 16, s, 3)
	clear(m.Plants)
	m.Agents[0].Energy = 0.1
	died := false
	for range 60 {
		m.Step(1.0 / 30)
		if m.Agents[0].Alive == 0 {
			died = true
		}
		if died && m.Agents[0].Alive == 1 {
			break
		}
	}
	a := m.Agents[0]
	if !died || a.Alive != 1 || a.Births != 1 {
		t.Fatalf("agent %+v, died %v", a, died)
	}
	if a.Energy > s.InitialEnergy {
		t.Errorf("respawned with energy %v", a.Energy)
	}
}

func TestAgingKills(t *testing.T) {
	s := small(1, 0)
	s.Lifespan = 1
	m := NewModel(16, 16, s, 4)
	m.Agents[0].Timer = 0.99
	m.Step(1.0 / 30)
	if m.Agents[0].Alive != 0 {
		t.Errorf("agent outlived its lifespan: %+v", m.Agents[0])
	}
}

func TestGrazingGainsEnergy(t *testing.T) {
	s := small(1, 0)
	s.PlantPattern = "Uniform"
	s.HerbivoreCost = 0
	m := NewModel(16, 16, s, 5)
	m.Agents[0].Energy = 0.5
	before := sum(m.Plants)
	m.Step(0.1)
	if m.Agents[0].Energy <= 0.5 {
		t.Errorf("energy %v after grazing", m.Agents[0].Energy)
	}
	if after := sum(m.Plants); after >= before {
		t.Errorf("plants %v -> %v", before, after)
	}
}

// A carnivore next to a herbivore eats it: the carnivore gains energy and
// the herbivore dies on its next update.
func TestPredation(t *testing.T) {
	s := small(1, 1)
	s.HerbivoreSpeed = 0
	s.CarnivoreSpeed = 0
	s.CarnivoreCost = 0
	s.HerbivoreCost = 0
	m := NewModel(16, 16, s, 6)
	m.Agents[0].X, m.Agents[0].Y = 8.5, 8.5
	m.Agents[1].X, m.Agents[1].Y = 9.5, 8.5
	m.Agents[1].Energy = 0.5
	m.Step(1.0 / 60)
	if m.Agents[1].Energy <= 0.5 || m.Counters.Kills != 1 {
		t.Fatalf("carnivore %+v kills %d", m.Agents[1], m.Counters.Kills)
	}
	m.Step(1.0 / 60)
	if m.Agents[0].Alive != 0 {
		t.Errorf("prey survived: %+v", m.Agents[0])
	}
}

func TestScentDecays(t *testing.T) {
	m := NewModel(16, 16, small(0, 0), 7)
	m.Scent[8*16+8] = 10
	p := m.params
	p.Dt = 0.1
	p.ScentDecay = 1
	p.ScentDiffusion = 0.5
	m.Fade(&p)
	total := sum(m.Scent)
	if math.Abs(float64(total-9)) > 1e-3 {
		t.Errorf("scent total %v, want 9", total)
	}
	if m.Scent[8*16+9] == 0 {
		t.Error("scent did not diffuse")
	}
}

func TestShade(t *testing.T) {
	s := DefaultSettings()
	p := s.params(1, 1, 0)
	tests := []struct {
		plant, scent float32
		herb, carn   bool
		want         float32
	}{
		{0, 0, false, false, 0},
		{1, 0, false, false, 0.5},
		{0, 0, true, false, 0.8},
		{0, 0, true, true, 1},
	}
	for _, tt := range tests {
		if got := Shade(tt.plant, tt.scent, tt.herb, tt.carn, &p); got != tt.want {
			t.Errorf("Shade(%v, %v, %v, %v) = %v, want %v", tt.plant, tt.scent, tt.herb, tt.carn, got, tt.want)
		}
	}
	if Shade(0.2, 5, false, false, &p) <= 0.1 {
		t.Error("scent not shown")
	}
}

func TestRespawnDeterministic(t *testing.T) {
	s := DefaultSettings()
	p := s.params(64, 48, 9)
	var a, b Agent
	Respawn(&a, 5, 77, 64, 48, &p)
	Respawn(&b, 5, 77, 64, 48, &p)
	if a != b {
		t.Errorf("respawn differs: %+v vs %+v", a, b)
	}
	if a.X < 0 || a.X >= 64 || a.Y < 0 || a.Y >= 48 || a.Alive != 1 {
		t.Errorf("respawned %+v", a)
	}
}

func sum(v []float32) float32 {
	var s float32
	for _, x := range v {
		s += x
	}
	return s
}
