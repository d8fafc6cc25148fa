package physics

import (
	"math"
	"math/rand/v2"
	"testing"
)

func randomBodies(n int, radius, speed float32, seed uint64) []Body {
	r := rand.New(rand.NewPCG(seed, 0))
	out := make([]Body, n)
	for i := range out {
		out[i] = Body{
			X:      r.Float32()*1.8 - 0.9,
			Y:      r.Float32()*1.8 - 0.9,
			VX:     (r.Float32()*2 - 1) * speed,
			VY:     (r.Float32()*2 - 1) * speed,
			Radius: radius,
			Mass:   1,
		}
	}
	return out
}

func inBox(t *testing.T, w *World, tick int) {
	t.Helper()
	for i, b := range w.Bodies {
		if math.Abs(float64(b.X)) > 1 || math.Abs(float64(b.Y)) > 1 {
			t.Fatalf("tick %d: body %d escaped to (%v, %v)", tick, i, b.X, b.Y)
		}
	}
}

func TestBoundsAndEnergy(t *testing.T) {
	tests := []struct {
		name    string
		damping float32
		restit  float32
	}{
		{"damped", 0.8, 0.9},
		{"elastic", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorld(Config{Damping: tt.damping, Restitution: tt.restit, Collisions: true},
				randomBodies(400, 0.01, 1.5, 7))
			e0 := w.KineticEnergy()
			prev := e0
			var rises int
			for tick := range 10000 {
				w.tick(DefaultSubstep)
				if tick%97 == 0 {
					inBox(t, w, tick)
				}
				e := w.KineticEnergy()
				if e > prev*(1+1e-4) {
					rises++
				}
				prev = e
			}
			inBox(t, w, 10000)
			e1 := w.KineticEnergy()
			if tt.damping < 1 {
				if e1 >= e0 {
					t.Errorf("energy %v -> %v with damping %v", e0, e1, tt.damping)
				}
				if rises > 100 {
					t.Errorf("energy rose on %d ticks", rises)
				}
			} else if math.Abs(e1-e0)/e0 > 0.02 {
				t.Errorf("elastic energy drifted %v -> %v", e0, e1)
			}
		})
	}
}

// Two thousand bodies without collision damping stay in the box for ten
// seconds of frames.
func TestPelletsScenarioBounds(t *testing.T) {
	w := NewWorld(Config{Damping: 0.95, Restitution: 1, Collisions: true, GravityY: -0.5},
		randomBodies(2000, 0.008, 1, 11))
	for frame := range 600 {
		w.Step(1.0 / 60)
		if frame%60 == 0 {
			inBox(t, w, frame)
		}
	}
	inBox(t, w, 600)
}

func TestStepCarriesRemainder(t *testing.T) {
	w := NewWorld(Config{Substep: 0.01}, nil)
	if n := w.Step(0.025); n != 2 {
		t.Errorf("first step ran %d substeps", n)
	}
	if n := w.Step(0.005); n != 1 {
		t.Errorf("second step ran %d substeps", n)
	}
	if n := w.Step(float32(math.NaN())); n != 0 {
		t.Errorf("NaN step ran %d substeps", n)
	}
	if n := w.Step(100); n != MaxSubsteps {
		t.Errorf("long step ran %d substeps, want %d", n, MaxSubsteps)
	}
}

func TestHeadOnCollision(t *testing.T) {
	w := NewWorld(Config{Damping: 1, Restitution: 1, Collisions: true}, []Body{
		{X: -0.05, VX: 1, Radius: 0.02, Mass: 1},
		{X: 0.05, VX: -1, Radius: 0.02, Mass: 1},
	})
	for range 20 {
		w.tick(DefaultSubstep)
	}
	a, b := w.Bodies[0], w.Bodies[1]
	if a.VX >= 0 || b.VX <= 0 {
		t.Fatalf("velocities after contact: %v %v", a.VX, b.VX)
	}
	if math.Abs(float64(a.VX+1)) > 1e-4 || math.Abs(float64(b.VX-1)) > 1e-4 {
		t.Errorf("elastic exchange gave %v %v", a.VX, b.VX)
	}
}

func TestWallsResetNonFinite(t *testing.T) {
	w := NewWorld(Config{Damping: 1}, []Body{{X: float32(math.Inf(1)), VX: 3, Radius: 0.1}})
	w.tick(DefaultSubstep)
	if b := w.Bodies[0]; b.X != 0 || b.VX != 0 || b.Radius != 0.1 {
		t.Errorf("body = %+v", b)
	}
}

func TestImpulseClamped(t *testing.T) {
	for _, mode := range []int{Attract, Grab, Repel} {
		w := NewWorld(Config{}, []Body{{X: 0.05}})
		w.Impulse(0, 0, 0.2, 1000, mode, 0.5)
		b := w.Bodies[0]
		if s := b.Speed(); s > 0.5+1e-5 {
			t.Errorf("mode %d: speed %v exceeds clamp", mode, s)
		}
		if mode == Repel && b.VX <= 0 || mode != Repel && b.VX >= 0 {
			t.Errorf("mode %d: vx %v has wrong sign", mode, b.VX)
		}
	}
}

func TestGridPairsMatchBruteForce(t *testing.T) {
	bodies := randomBodies(300, 0.03, 0, 5)
	var g Grid
	g.Build(bodies, 0.06)
	got := map[[2]int]bool{}
	g.Pairs(bodies, func(i, j int) {
		if got[[2]int{i, j}] {
			t.Fatalf("pair (%d,%d) visited twice", i, j)
		}
		got[[2]int{i, j}] = true
	})
	for i := range bodies {
		for j := i + 1; j < len(bodies); j++ {
			dx, dy := bodies[i].X-bodies[j].X, bodies[i].Y-bodies[j].Y
			if dx*dx+dy*dy < 0.06*0.06 && !got[[2]int{i, j}] {
				t.Fatalf("close pair (%d,%d) not visited", i, j)
			}
		}
	}
}

func TestDensity(t *testing.T) {
	bodies := []Body{{X: 0}, {X: 0.01}, {X: 0.5}}
	var g Grid
	g.Build(bodies, 0.1)
	d := g.Density(bodies, 0.05)
	if d[2] != 1 {
		t.Errorf("isolated density = %v, want 1", d[2])
	}
	if d[0] <= 1 || d[0] != d[1] {
		t.Errorf("pair densities %v %v", d[0], d[1])
	}
}
