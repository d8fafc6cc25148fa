package wanderers

import (
	"image"
	"math"

	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/physics"
	"github.com/gogpu/simviz/internal/sim"
)

// Model is the wanderer world: rigid bodies steered by a random walk of
// headings, bounced off the walls and each other.
type Model struct {
	Settings Settings
	World    *physics.World
	Grid     physics.Grid
	Headings []float32

	rng *sim.RNG
}

// NewModel spawns count wanderers at random positions and headings.
func NewModel(s Settings, rng *sim.RNG) *Model {
	n := int(s.Count)
	bodies := make([]physics.Body, n)
	heads := make([]float32, n)
	for i := range bodies {
		b := &bodies[i]
		b.Radius = s.Size * (1 + s.SizeVariation*rng.Range(-1, 1)*0.5)
		b.Mass = b.Radius * b.Radius / (s.Size * s.Size)
		lim := max(1-b.Radius, 0)
		b.X, b.Y = rng.Range(-lim, lim), rng.Range(-lim, lim)
		heads[i] = rng.Range(0, 2*math.Pi)
		b.VX = s.CruiseSpeed * cos32(heads[i])
		b.VY = s.CruiseSpeed * sin32(heads[i])
	}
	m := &Model{Settings: s, World: physics.NewWorld(s.Config(), bodies), Headings: heads, rng: rng}
	m.Configure(s)
	return m
}

// Configure applies settings that do not need a respawn.
func (m *Model) Configure(s Settings) {
	m.Settings = s
	m.World.Config = s.Config()
	m.World.Forces = []physics.Force{m.wander}
}

// wander turns each heading by a random walk and steers the body toward
// cruise speed along it.
func (m *Model) wander(bodies []physics.Body, h float32) {
	s := &m.Settings
	jitter := s.WanderRate * float32(math.Sqrt(float64(h)))
	for i := range bodies {
		b := &bodies[i]
		m.Headings[i] += m.rng.Range(-1, 1) * jitter
		dx, dy := cos32(m.Headings[i]), sin32(m.Headings[i])
		along := b.VX*dx + b.VY*dy
		push := s.WanderStrength + (s.CruiseSpeed-along)*4
		b.VX += dx * push * h
		b.VY += dy * push * h
	}
}

// Interact applies the cursor for one frame: left attracts, middle grabs,
// right repels. Impulses are clamped so nothing is launched.
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

// Step advances the world by dt. Headings follow bodies that bounced so
// steering does not fight the walls.
func (m *Model) Step(dt float32) {
	m.World.Step(sim.ClampDelta(dt))
	for i := range m.World.Bodies {
		b := &m.World.Bodies[i]
		if b.Speed() > 1e-4 {
			dx, dy := cos32(m.Headings[i]), sin32(m.Headings[i])
			if b.VX*dx+b.VY*dy < 0 {
				m.Headings[i] = float32(math.Atan2(float64(b.VY), float64(b.VX)))
			}
		}
	}
}

// Values returns the palette position of each wanderer for the color mode.
func (m *Model) Values() []float32 {
	s := &m.Settings
	bodies := m.World.Bodies
	out := make([]float32, len(bodies))
	if s.ColorMode == "Speed" {
		for i := range bodies {
			out[i] = clamp01(bodies[i].Speed() / s.MaxSpeed * s.ColorScale)
		}
		return out
	}
	m.Grid.Build(bodies, 2*s.DensityRadius)
	dens := m.Grid.Density(bodies, s.DensityRadius)
	for i, d := range dens {
		out[i] = clamp01((d - 1) * 0.1 * s.ColorScale)
	}
	return out
}

// Instances writes the GPU form of the wanderers into dst.
func (m *Model) Instances(dst []Wanderer) []Wanderer {
	dst = dst[:0]
	vals := m.Values()
	for i, b := range m.World.Bodies {
		dst = append(dst, Wanderer{
			X: b.X, Y: b.Y, VX: b.VX, VY: b.VY,
			Radius: b.Radius, Value: vals[i], Heading: m.Headings[i],
		})
	}
	return dst
}

// Render draws the wanderers through the palette.
func (m *Model) Render(dst *image.RGBA, scheme *lut.ColorScheme, reversed bool) {
	vals := m.Values()
	pts := make([]sim.Point, len(vals))
	for i, b := range m.World.Bodies {
		pts[i] = sim.Point{X: b.X, Y: b.Y, Value: vals[i]}
	}
	r := int(m.Settings.Size * float32(dst.Bounds().Dx()) / 2)
	sim.RenderPoints(dst, pts, scheme, reversed, max(r, 0))
}

func newSoftware(_, _ int, tree sim.ValueTree, seed uint64) (sim.Software, error) {
	s := DefaultSettings()
	if err := sim.DecodeSettings(tree, &s); err != nil {
		return nil, err
	}
	return NewModel(s, sim.NewRNG(seed)), nil
}

func clamp01(x float32) float32 { return min(max(x, 0), 1) }

func cos32(x float32) float32 { return float32(math.Cos(float64(x))) }
func sin32(x float32) float32 { return float32(math.Sin(float64(x))) }
