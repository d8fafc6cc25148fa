package slimemold

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/sim"
)

// Agent is one slime particle in pixel space. The layout matches Agent in
// shaders/slime_mold.wgsl.
type Agent struct {
	X, Y    float32
	Heading float32
	Speed   float32
}

// AgentSize is the WGSL size of Agent.
const AgentSize = 16

// Position generators in enum order.
const (
	GenRandom = iota
	GenCenter
	GenUniformCircle
	GenCenteredCircle
	GenRing
	GenLine
	GenSpiral
)

// Spawn places n agents on a w×h grid with generator gen.
func Spawn(gen, n int, w, h float32, speedMin, speedMax float32, rng *sim.RNG) []Agent {
	out := make([]Agent, n)
	cx, cy := w/2, h/2
	r := min(w, h) * 0.4
	lo, hi := min(speedMin, speedMax), max(speedMin, speedMax)
	for i := range out {
		a := &out[i]
		a.Speed = rng.Range(lo, hi)
		theta := rng.Range(0, 2*math.Pi)
		a.Heading = rng.Range(0, 2*math.Pi)
		switch gen {
		case GenCenter:
			a.X, a.Y = cx, cy
		case GenUniformCircle:
			d := r * float32(math.Sqrt(rng.Float64()))
			a.X, a.Y = cx+d*cos32(theta), cy+d*sin32(theta)
		case GenCenteredCircle:
			d := r * float32(math.Sqrt(rng.Float64()))
			a.X, a.Y = cx+d*cos32(theta), cy+d*sin32(theta)
			a.Heading = theta + math.Pi
		case GenRing:
			a.X, a.Y = cx+r*cos32(theta), cy+r*sin32(theta)
			a.Heading = theta + math.Pi
		case GenLine:
			a.X, a.Y = rng.Range(0, w), cy
		case GenSpiral:
			t := float32(i) / float32(max(n-1, 1))
			ang := t * 6 * math.Pi
			a.X, a.Y = cx+r*t*cos32(ang), cy+r*t*sin32(ang)
			a.Heading = ang + math.Pi/2
		default:
			a.X, a.Y = rng.Range(0, w), rng.Range(0, h)
		}
		a.X, a.Y = wrap(a.X, w), wrap(a.Y, h)
	}
	return out
}

// AgentBytes encodes agents for upload.
func AgentBytes(agents []Agent) []byte {
	out := make([]byte, 0, len(agents)*AgentSize)
	for _, a := range agents {
		for _, f := range [4]float32{a.X, a.Y, a.Heading, a.Speed} {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out
}

// wrap folds v into [0, size). Non-finite values land on 0.
func wrap(v, size float32) float32 {
	v -= size * float32(math.Floor(float64(v/size)))
	if !(v >= 0 && v < size) {
		return 0
	}
	return v
}

func cos32(a float32) float32 { return float32(math.Cos(float64(a))) }
func sin32(a float32) float32 { return float32(math.Sin(float64(a))) }

// Model is the CPU reference of the agent pipeline.
type Model struct {
	W, H   int
	Agents []Agent
	Trail  []float32
	next   []float32
	params Params
}

// NewModel spawns agents for settings s on a w×h grid.
func NewModel(w, h int, s Settings, seed uint64) *Model {
	rng := sim.NewRNG(seed)
	gen := int(sim.EnumIndex(&s, "position_generator", s.PositionGenerator))
	m := &Model{
		W: w, H: h,
		Agents: Spawn(gen, int(s.AgentCount), float32(w), float32(h), s.AgentSpeedMin, s.AgentSpeedMax, rng),
		Trail:  make([]float32, w*h),
		next:   make([]float32, w*h),
	}
	m.params = s.params(uint32(w), uint32(h), s.AgentCount, uint32(seed))
	return m
}

func (m *Model) sense(x, y, heading float32, p Params) float32 {
	sx := wrap(x+cos32(heading)*p.SensorDistance, float32(m.W))
	sy := wrap(y+sin32(heading)*p.SensorDistance, float32(m.H))
	return m.Trail[int(sy)*m.W+int(sx)]
}

// StepAgents moves every agent once, mirroring update_agents.
func (m *Model) StepAgents(p Params) {
	w, h := float32(m.W), float32(m.H)
	for i := range m.Agents {
		a := &m.Agents[i]
		r := sim.HashUnit(uint32(i) ^ sim.Hash(p.Seed^p.Frame*0x9e3779b9))
		front := m.sense(a.X, a.Y, a.Heading, p)
		left := m.sense(a.X, a.Y, a.Heading+p.SensorAngle, p)
		right := m.sense(a.X, a.Y, a.Heading-p.SensorAngle, p)
		turn := p.TurnRate * p.Dt
		switch {
		case front > left && front > right:
		case front < left && front < right:
			a.Heading += (r - 0.5) * 2 * turn
		case right > left:
			a.Heading -= turn
		case left > right:
			a.Heading += turn
		}
		a.Heading += (r - 0.5) * p.Jitter
		a.X = wrap(a.X+cos32(a.Heading)*a.Speed*p.Dt, w)
		a.Y = wrap(a.Y+sin32(a.Heading)*a.Speed*p.Dt, h)
	}
}

// Step runs update, deposit, decay and diffuse.
func (m *Model) Step(dt float32) {
	p := m.params
	p.Dt = sim.ClampDelta(dt)
	m.StepAgents(p)
	for _, a := range m.Agents {
		m.Trail[int(a.Y)*m.W+int(a.X)] += p.Deposition
	}
	keep := max(1-p.Decay*p.Dt, 0)
	for i := range m.Trail {
		m.Trail[i] *= keep
	}
	for y := range m.H {
		for x := range m.W {
			var sum float32
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += m.Trail[((y+dy+m.H)%m.H)*m.W+(x+dx+m.W)%m.W]
				}
			}
			c := m.Trail[y*m.W+x]
			m.next[y*m.W+x] = c + (sum/9-c)*p.Diffusion
		}
	}
	m.Trail, m.next = m.next, m.Trail
	m.params.Frame++
}

// Render tone-maps the trail through the scheme.
func (m *Model) Render(dst *image.RGBA, scheme *lut.ColorScheme, reversed bool) {
	shown := make([]float32, len(m.Trail))
	for i, v := range m.Trail {
		shown[i] = toneMap(v, m.params.Brightness)
	}
	sim.RenderField(dst, shown, m.W, m.H, scheme, reversed, 0, 1)
}

func toneMap(v, brightness float32) float32 {
	return 1 - float32(math.Exp(float64(-v*brightness*0.05)))
}

func newSoftware(w, h int, tree sim.ValueTree, seed uint64) (sim.Software, error) {
	s := DefaultSettings()
	if err := sim.DecodeSettings(tree, &s); err != nil {
		return nil, err
	}
	s.AgentCount = min(s.AgentCount, uint32(w*h))
	return NewModel(w, h, s, seed), nil
}
