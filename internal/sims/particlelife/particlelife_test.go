package particlelife

import (
	"math"
	"testing"

	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/simviz/internal/sim/simtest"
)

func TestShaderLayout(t *testing.T) {
	simtest.Shader(t, shaderWGSL, Bindings)
	simtest.Shader(t, renderWGSL, RenderBindings)
}

func TestUniformSizes(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want uint64
	}{
		{"Params", Params{}, ParamsSize},
		{"Particle", Particle{}, ParticleSize},
		{"Matrix", Matrix{}, MatrixSize},
		{"RenderUniform", RenderUniform{}, RenderUniformSize},
	}
	for _, tt := range tests {
		if got := gpu.SizeOf(tt.v); got != tt.want {
			t.Errorf("%s is %d bytes, want %d", tt.name, got, tt.want)
		}
	}
}

func TestContract(t *testing.T) {
	simtest.Contract(t, Kind)
}

func TestForce(t *testing.T) {
	tests := []struct {
		r, a, beta, want float32
	}{
		{0, 1, 0.3, -1},
		{0.15, 1, 0.3, -0.5},
		{0.3, 1, 0.3, 0},
		{0.65, 1, 0.3, 1},
		{0.65, -0.5, 0.3, -0.5},
		{1, 1, 0.3, 0},
		{2, 1, 0.3, 0},
	}
	for _, tt := range tests {
		got := Force(tt.r, tt.a, tt.beta)
		if math.Abs(float64(got-tt.want)) > 1e-5 {
			t.Errorf("Force(%v, %v, %v) = %v, want %v", tt.r, tt.a, tt.beta, got, tt.want)
		}
	}
}

func TestGenerators(t *testing.T) {
	rng := sim.NewRNG(3)
	for gen := GenRandom; gen <= GenRepel; gen++ {
		m := GenerateForces(gen, 5, rng)
		for i := range MaxSpecies {
			for j := range MaxSpecies {
				v := m[i*MaxSpecies+j]
				if (i >= 5 || j >= 5) && v != 0 {
					t.Fatalf("gen %d: entry (%d,%d) outside species count is %v", gen, i, j, v)
				}
				if v < -1 || v > 1 {
					t.Fatalf("gen %d: entry (%d,%d) = %v out of range", gen, i, j, v)
				}
			}
		}
		switch gen {
		case GenSymmetric:
			for i := range 5 {
				for j := range 5 {
					if m[i*MaxSpecies+j] != m[j*MaxSpecies+i] {
						t.Errorf("symmetric matrix differs at (%d,%d)", i, j)
					}
				}
			}
		case GenAttract:
			for i := range 5 {
				if m[i*MaxSpecies+(i+2)%5] <= 0 {
					t.Errorf("attract matrix has non-positive entry in row %d", i)
				}
			}
		case GenChains:
			if m[0] != 1 || m[1] != 0.2 || m[2] != -1 {
				t.Errorf("chains row 0 = %v", m[:5])
			}
		}
	}
}

func TestBetasClamped(t *testing.T) {
	m := GenerateBetas(0.85, 0.4, 8, sim.NewRNG(9))
	for k, v := range m {
		if v < 0.05 || v > 0.9 {
			t.Fatalf("beta[%d] = %v", k, v)
		}
	}
}

func TestWorldStaysInBounds(t *testing.T) {
	for _, wrap := range []bool{true, false} {
		s := DefaultSettings()
		s.ParticleCount = 300
		s.WrapEdges = wrap
		s.MaxSpeed = 5
		s.ForceScale = 50
		w := NewWorld(s, 4)
		for range 200 {
			w.Step(0.05)
		}
		for i, p := range w.Particles {
			if p.X < -1 || p.X > 1 || p.Y < -1 || p.Y > 1 {
				t.Fatalf("wrap=%v: particle %d at (%v, %v)", wrap, i, p.X, p.Y)
			}
			if v := math.Hypot(float64(p.VX), float64(p.VY)); v > float64(s.MaxSpeed)+1e-3+float64(s.Brownian)*2 {
				t.Fatalf("wrap=%v: particle %d speed %v", wrap, i, v)
			}
		}
	}
}

// Two particles of a self-attracting species settle near the distance
// where the kernel changes sign.
func TestPairSettles(t *testing.T) {
	s := DefaultSettings()
	s.SpeciesCount = 1
	s.ForceMatrix = Matrix{}
	s.ForceMatrix[0] = 1
	s.BetaMatrix[0] = 0.3
	s.Brownian = 0
	w := &World{Settings: s, Particles: []Particle{{X: -0.04}, {X: 0.04}}, next: make([]Particle, 2)}
	for range 2000 {
		w.Step(0.01)
	}
	d := float64(w.Particles[1].X - w.Particles[0].X)
	if want := 0.3 * float64(s.MaxDistance); math.Abs(d-want) > 0.01 {
		t.Errorf("pair distance %v, want about %v", d, want)
	}
}

func TestConfine(t *testing.T) {
	tests := []struct {
		x, v   float32
		wrap   bool
		wx, wv float32
	}{
		{0.5, 1, true, 0.5, 1},
		{1.2, 1, true, -0.8, 1},
		{-1.5, -1, true, 0.5, -1},
		{1.2, 1, false, 0.8, -1},
		{-1.1, -1, false, -0.9, 1},
		{float32(math.NaN()), 3, false, 0, 0},
	}
	for _, tt := range tests {
		x, v := confine(tt.x, tt.v, tt.wrap)
		if math.Abs(float64(x-tt.wx)) > 1e-5 || v != tt.wv {
			t.Errorf("confine(%v, %v, %v) = %v, %v; want %v, %v", tt.x, tt.v, tt.wrap, x, v, tt.wx, tt.wv)
		}
	}
}
