package particlelife

import (
	"image"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/sim"
)

// Particle is one body in world space [-1, 1]². The layout matches
// Particle in shaders/particle_life.wgsl.
type Particle struct {
	X, Y    float32
	VX, VY  float32
	Species uint32
	_       [3]uint32
}

// ParticleSize is the WGSL size of Particle.
const ParticleSize = 32

// Spawn patterns in enum order.
const (
	SpawnRandom = iota
	SpawnDisk
	SpawnRing
	SpawnStripes
)

// Spawn places n particles of species species with pattern.
func Spawn(pattern, n, species int, rng *sim.RNG) []Particle {
	species = min(max(species, 1), MaxSpecies)
	out := make([]Particle, n)
	for i := range out {
		p := &out[i]
		p.Species = uint32(rng.IntN(species))
		theta := rng.Range(0, 2*math.Pi)
		switch pattern {
		case SpawnDisk:
			r := 0.6 * float32(math.Sqrt(rng.Float64()))
			p.X, p.Y = r*cos32(theta), r*sin32(theta)
		case SpawnRing:
			r := 0.6 + rng.Range(-0.03, 0.03)
			p.X, p.Y = r*cos32(theta), r*sin32(theta)
		case SpawnStripes:
			band := 2 / float32(species)
			p.X = -1 + band*(float32(p.Species)+rng.Float32())
			p.Y = rng.Range(-1, 1)
		default:
			p.X, p.Y = rng.Range(-1, 1), rng.Range(-1, 1)
		}
	}
	return out
}

// Force is the interaction kernel for a normalized distance r = d/rmax:
// universal repulsion below beta, a tent of height a between beta and 1,
// nothing beyond.
func Force(r, a, beta float32) float32 {
	switch {
	case r < beta:
		return r/beta - 1
	case r < 1:
		return a * (1 - abs32(2*r-1-beta)/(1-beta))
	default:
		return 0
	}
}

// World is the CPU particle system. It mirrors the update kernel and
// serves as the software backend.
type World struct {
	Settings  Settings
	Particles []Particle

	next  []Particle
	seed  uint32
	frame uint32
}

// NewWorld spawns a world from settings.
func NewWorld(s Settings, seed uint64) *World {
	rng := sim.NewRNG(seed)
	ps := Spawn(int(sim.EnumIndex(&s, "spawn_pattern", s.SpawnPattern)), int(s.ParticleCount), int(s.SpeciesCount), rng)
	return &World{Settings: s, Particles: ps, next: make([]Particle, len(ps)), seed: uint32(seed)}
}

// delta returns b - a, folded across the periodic edge when wrapping.
func delta(a, b float32, wrap bool) float32 {
	d := b - a
	if wrap {
		d -= 2 * float32(math.Round(float64(d/2)))
	}
	return d
}

// accel returns the acceleration on particle i from every other particle.
func (w *World) accel(i int) (float32, float32) {
	s := &w.Settings
	p := w.Particles[i]
	rmax := s.MaxDistance
	var ax, ay float32
	row := int(p.Species) * MaxSpecies
	for j, q := range w.Particles {
		if j == i {
			continue
		}
		dx := delta(p.X, q.X, s.WrapEdges)
		dy := delta(p.Y, q.Y, s.WrapEdges)
		d := float32(math.Sqrt(float64(dx*dx + dy*dy)))
		if d <= 0 || d >= rmax {
			continue
		}
		k := row + int(q.Species)
		f := Force(d/rmax, s.ForceMatrix[k], s.BetaMatrix[k])
		ax += dx / d * f
		ay += dy / d * f
	}
	scale := s.ForceScale * rmax
	return ax * scale, ay * scale
}

// Step advances every particle by dt seconds.
func (w *World) Step(dt float32) {
	dt = sim.ClampDelta(dt)
	w.frame++
	n := len(w.Particles)
	chunk := max(n/runtime.GOMAXPROCS(0), 64)
	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				w.next[i] = w.integrate(i, dt)
			}
			return nil
		})
	}
	_ = g.Wait()
	w.Particles, w.next = w.next, w.Particles
}

func (w *World) integrate(i int, dt float32) Particle {
	s := &w.Settings
	p := w.Particles[i]
	ax, ay := w.accel(i)
	damp := float32(math.Exp(float64(-s.Friction * dt)))
	p.VX = p.VX*damp + ax*dt
	p.VY = p.VY*damp + ay*dt
	if s.Brownian > 0 {
		h := sim.Hash(uint32(i) ^ sim.Hash(w.frame^w.seed))
		p.VX += (sim.HashUnit(h)*2 - 1) * s.Brownian
		p.VY += (sim.HashUnit(sim.Hash(h))*2 - 1) * s.Brownian
	}
	if v := float32(math.Hypot(float64(p.VX), float64(p.VY))); v > s.MaxSpeed {
		p.VX *= s.MaxSpeed / v
		p.VY *= s.MaxSpeed / v
	}
	p.X += p.VX * dt
	p.Y += p.VY * dt
	p.X, p.VX = confine(p.X, p.VX, s.WrapEdges)
	p.Y, p.VY = confine(p.Y, p.VY, s.WrapEdges)
	return p
}

// confine keeps a coordinate in [-1, 1], wrapping or reflecting.
func confine(x, v float32, wrap bool) (float32, float32) {
	if x != x || math.IsInf(float64(x), 0) {
		return 0, 0
	}
	if wrap {
		return x - 2*float32(math.Floor(float64((x+1)/2))), v
	}
	switch {
	case x < -1:
		return min(-2-x, 1), -v
	case x > 1:
		return max(2-x, -1), -v
	}
	return x, v
}

// Render draws the particles colored by species.
func (w *World) Render(dst *image.RGBA, scheme *lut.ColorScheme, reversed bool) {
	pts := make([]sim.Point, len(w.Particles))
	n := float32(max(w.Settings.SpeciesCount, 1))
	for i, p := range w.Particles {
		pts[i] = sim.Point{X: p.X, Y: p.Y, Value: (float32(p.Species) + 0.5) / n}
	}
	sim.RenderPoints(dst, pts, scheme, reversed, max(int(w.Settings.ParticleSize/2), 0))
}

func newSoftware(_, _ int, tree sim.ValueTree, seed uint64) (sim.Software, error) {
	s := DefaultSettings()
	if err := sim.DecodeSettings(tree, &s); err != nil {
		return nil, err
	}
	return NewWorld(s, seed), nil
}

func abs32(x float32) float32 { return float32(math.Abs(float64(x))) }
func cos32(x float32) float32 { return float32(math.Cos(float64(x))) }
func sin32(x float32) float32 { return float32(math.Sin(float64(x))) }
