package pellets

import (
	"image"
	"math"

	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/physics"
	"github.com/gogpu/simviz/internal/sim"
)

// Spawn patterns in enum order.
const (
	SpawnRandom = iota
	SpawnGrid
	SpawnCluster
)

// Spawn creates n bodies with pattern. Radii vary by up to variation of
// size and velocities are random up to speed.
func Spawn(pattern, n int, size, variation, speed float32, rng *sim.RNG) []physics.Body {
	out := make([]physics.Body, n)
	side := int(math.Ceil(math.Sqrt(float64(n))))
	for i := range out {
		b := &out[i]
		b.Radius = size * (1 + variation*rng.Range(-1, 1)*0.5)
		b.Mass = b.Radius * b.Radius / (size * size)
		lim := max(1-b.Radius, 0)
		switch pattern {
		case SpawnGrid:
			step := 2 * lim / float32(max(side, 1))
			b.X = -lim + step*(float32(i%side)+0.5)
			b.Y = -lim + step*(float32(i/side)+0.5)
		case SpawnCluster:
			r := 0.3 * float32(math.Sqrt(rng.Float64()))
			a := rng.Range(0, 2*math.Pi)
			b.X, b.Y = r*float32(math.Cos(float64(a))), r*float32(math.Sin(float64(a)))
		default:
			b.X, b.Y = rng.Range(-lim, lim), rng.Range(-lim, lim)
		}
		a := rng.Range(0, 2*math.Pi)
		v := speed * rng.Float32()
		b.VX, b.VY = v*float32(math.Cos(float64(a))), v*float32(math.Sin(float64(a)))
	}
	return out
}

// Model is the CPU side of the simulation: the physics world plus the
// grid used for contacts and density.
type Model struct {
	Settings Settings
	World    *physics.World
	Grid     physics.Grid
}

// NewModel spawns a world from settings.
func NewModel(s Settings, rng *sim.RNG) *Model {
	pattern := int(sim.EnumIndex(&s, "spawn_pattern", s.SpawnPattern))
	bodies := Spawn(pattern, int(s.ParticleCount), s.ParticleSize, s.SizeVariation, s.InitialVelocity, rng)
	m := &Model{Settings: s, World: physics.NewWorld(s.Config(), bodies)}
	m.Configure(s)
	return m
}

// Configure applies settings that do not need a respawn.
func (m *Model) Configure(s Settings) {
	m.Settings = s
	m.World.Config = s.Config()
	m.World.Forces = m.World.Forces[:0]
	if s.GravityMode == "Center" && s.Gravity > 0 {
		g := s.Gravity
		m.World.Forces = append(m.World.Forces, func(bodies []physics.Body, h float32) {
			for i := range bodies {
				b := &bodies[i]
				b.VX -= b.X * g * h
				b.VY -= b.Y * g * h
			}
		})
	}
}

// Interact applies the cursor for one frame: left attracts, middle grabs,
// right repels.
func (m *Model) Interact(c sim.Cursor, mode uint32, dt float32) {
	var pm int
	switch mode {
	case sim.ModeSeed:
		pm = physics.Attract
	case sim.ModeGrab:
		pm = physics.Grab
	case sim.ModeRepel:
		pm = physics.Repel
	default:
		return
	}
	strength := m.Settings.InteractForce * c.Strength * dt
	m.World.Impulse(c.X, c.Y, c.Size, strength, pm, m.Settings.MaxSpeed*0.25)
}

// Step advances physics by dt and rebuilds the density grid.
func (m *Model) Step(dt float32) {
	m.World.Step(sim.ClampDelta(dt))
	m.Index()
}

// Index rebuilds the density grid with cells of 2·density_radius.
func (m *Model) Index() {
	m.Grid.Build(m.World.Bodies, 2*m.Settings.DensityRadius)
}

// Pellets writes the GPU form of the bodies into dst.
func (m *Model) Pellets(dst []Pellet) []Pellet {
	dst = dst[:0]
	for _, b := range m.World.Bodies {
		dst = append(dst, Pellet{X: b.X, Y: b.Y, VX: b.VX, VY: b.VY, Radius: b.Radius})
	}
	return dst
}

// Render draws the pellets through the palette using CPU densities.
func (m *Model) Render(dst *image.RGBA, scheme *lut.ColorScheme, reversed bool) {
	bodies := m.World.Bodies
	if len(m.Grid.Index) != len(bodies) {
		m.Index()
	}
	dens := m.Grid.Density(bodies, m.Settings.DensityRadius)
	pts := make([]sim.Point, len(bodies))
	velocity := m.Settings.ColorMode == "Velocity"
	for i := range bodies {
		b := &bodies[i]
		v := (dens[i] - 1) * 0.1 * m.Settings.ColorScale
		if velocity {
			v = b.Speed() / m.Settings.MaxSpeed * m.Settings.ColorScale
		}
		pts[i] = sim.Point{X: b.X, Y: b.Y, Value: min(max(v, 0), 1)}
	}
	r := int(m.Settings.ParticleSize * float32(dst.Bounds().Dx()) / 2)
	sim.RenderPoints(dst, pts, scheme, reversed, max(r, 0))
}

func newSoftware(_, _ int, tree sim.ValueTree, seed uint64) (sim.Software, error) {
	s := DefaultSettings()
	if err := sim.DecodeSettings(tree, &s); err != nil {
		return nil, err
	}
	return NewModel(s, sim.NewRNG(seed)), nil
}
