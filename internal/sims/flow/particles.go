package flow

import (
	"image"
	"math"

	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/sim"
)

// Respawn places particle i at a hashed position with a fresh lifetime.
// The shader uses the same hash so a respawn is reproducible on both sides.
func Respawn(p *Params, i, frame uint32) Particle {
	h := sim.Hash(p.Seed ^ sim.Hash(i*3+frame*0x9e3779b9))
	x := sim.HashUnit(h)*2 - 1
	y := sim.HashUnit(sim.Hash(h))*2 - 1
	l := sim.HashUnit(sim.Hash(h ^ 0x85ebca6b))
	return Particle{X: x, Y: y, Life: p.Life * (1 - p.LifeVariation*l)}
}

// Force returns the cursor acceleration on a particle at (x, y): seed
// attracts, grab swirls, repel pushes away.
func Force(p *Params, x, y float32) (float32, float32) {
	if p.Mode == sim.ModeNone || p.CursorSize <= 0 {
		return 0, 0
	}
	dx, dy := p.CursorX-x, p.CursorY-y
	d := float32(math.Hypot(float64(dx), float64(dy)))
	if d >= p.CursorSize || d < 1e-6 {
		return 0, 0
	}
	k := p.CursorForce * (1 - d/p.CursorSize) / d
	switch p.Mode {
	case sim.ModeRepel:
		return -dx * k, -dy * k
	case sim.ModeGrab:
		return -dy * k, dx * k
	default:
		return dx * k, dy * k
	}
}

// Advance moves one particle by dt. The velocity relaxes toward the flow
// with rate Inertia, positions wrap around the unit box and expired
// particles respawn.
func Advance(p *Params, q *Particle, i uint32) {
	fx, fy := sim.Curl(q.X, q.Y, p.Time, p.NoiseScale)
	fx, fy = fx*p.FlowStrength, fy*p.FlowStrength
	cx, cy := Force(p, q.X, q.Y)
	k := 1 - float32(math.Exp(float64(-p.Inertia*p.Dt)))
	q.VX += (fx-q.VX)*k + cx*p.Dt
	q.VY += (fy-q.VY)*k + cy*p.Dt
	q.X = wrap(q.X + q.VX*p.Dt)
	q.Y = wrap(q.Y + q.VY*p.Dt)
	q.Age += p.Dt
	if q.Age >= q.Life || q.X != q.X || q.Y != q.Y {
		*q = Respawn(p, i, p.Frame)
	}
}

// wrap folds x into [-1, 1).
func wrap(x float32) float32 {
	return x - 2*float32(math.Floor(float64((x+1)/2)))
}

// Value is the palette position of a particle for the color mode.
func Value(p *Params, q *Particle) float32 {
	switch p.ColorMode {
	case ColorAge:
		return q.Age / max(q.Life, 1e-6)
	case ColorAngle:
		return float32(math.Atan2(float64(q.VY), float64(q.VX))/(2*math.Pi)) + 0.5
	default:
		return float32(math.Hypot(float64(q.VX), float64(q.VY))) / p.MaxSpeed
	}
}

type software struct {
	settings  Settings
	particles []Particle
	frame     uint32
	time      float32
	seed      uint32
}

func newSoftware(_, _ int, tree sim.ValueTree, seed uint64) (sim.Software, error) {
	s := DefaultSettings()
	if err := sim.DecodeSettings(tree, &s); err != nil {
		return nil, err
	}
	sw := &software{settings: s, seed: uint32(seed)}
	p := sw.params(0)
	sw.particles = make([]Particle, min(s.ParticleCount, 20000))
	for i := range sw.particles {
		sw.particles[i] = Respawn(&p, uint32(i), 0)
		sw.particles[i].Age = sim.HashUnit(uint32(i)) * sw.particles[i].Life
	}
	return sw, nil
}

func (s *software) params(dt float32) Params {
	p := s.settings.params(uint32(len(s.particles)))
	p.Seed, p.Frame, p.Dt, p.Time = s.seed, s.frame, dt, s.time
	return p
}

func (s *software) Step(dt float32) {
	s.frame++
	s.time += dt * s.settings.FlowEvolution
	p := s.params(dt)
	for i := range s.particles {
		Advance(&p, &s.particles[i], uint32(i))
	}
}

func (s *software) Render(dst *image.RGBA, scheme *lut.ColorScheme, reversed bool) {
	p := s.params(0)
	pts := make([]sim.Point, len(s.particles))
	for i := range s.particles {
		q := &s.particles[i]
		pts[i] = sim.Point{X: q.X, Y: q.Y, Value: Value(&p, q)}
	}
	sim.RenderPoints(dst, pts, scheme, reversed, 0)
}
