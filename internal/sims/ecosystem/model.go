package ecosystem

import (
	"image"
	"math"

	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/sim"
)

// Capacity is the fraction of full growth a plant cell reaches under
// pattern at cell (x, y).
func Capacity(pattern uint32, x, y, scale float32) float32 {
	switch pattern {
	case PlantPatches:
		return smoothstep(0.45, 0.6, sim.Noise(x*scale, y*scale))
	case PlantStripes:
		return 0.5 + 0.5*float32(math.Sin(float64(x*scale*2*math.Pi)))
	default:
		return 1
	}
}

// Shade maps one cell to its palette position: plants fill the lower half,
// scent tints above them and agents draw at the top.
func Shade(plant, scent float32, herbivore, carnivore bool, p *Params) float32 {
	switch {
	case carnivore:
		return 1
	case herbivore:
		return 0.8
	}
	t := plant * 0.5
	if p.ShowScent == 1 {
		t += 0.2 * (1 - float32(math.Exp(float64(-scent*p.Brightness))))
	}
	return min(max(t, 0), 1)
}

// Spawn places the herbivores and then the carnivores at random positions
// on a w×h grid with staggered ages.
func Spawn(herbivores, carnivores int, w, h float32, s *Settings, rng *sim.RNG) []Agent {
	out := make([]Agent, herbivores+carnivores)
	for i := range out {
		a := &out[i]
		a.X, a.Y = rng.Range(0, w), rng.Range(0, h)
		a.X, a.Y = wrap(a.X, w), wrap(a.Y, h)
		a.Heading = rng.Range(0, 2*math.Pi)
		a.Energy = min(s.InitialEnergy, s.MaxEnergy) * rng.Range(0.5, 1)
		a.Timer = rng.Range(0, s.Lifespan*0.5)
		a.Alive = 1
	}
	return out
}

// Plants returns the fully grown plant field for pattern.
func Plants(w, h int, p *Params) []float32 {
	out := make([]float32, w*h)
	for y := range h {
		for x := range w {
			out[y*w+x] = Capacity(p.Pattern, float32(x), float32(y), p.PatternScale)
		}
	}
	return out
}

// Model is the CPU reference of the ecosystem pipeline. Agents update in
// index order, so herbivores move before carnivores hunt.
type Model struct {
	W, H     int
	Agents   []Agent
	Plants   []float32
	Scent    []float32
	Counters Counters
	Cursor   sim.Cursor
	Mode     uint32

	deposits []float32
	next     []float32
	occupied []uint32
	claims   []uint32
	params   Params
}

// NewModel spawns a population for settings s on a w×h grid.
func NewModel(w, h int, s Settings, seed uint64) *Model {
	rng := sim.NewRNG(seed)
	p := s.params(uint32(w), uint32(h), uint32(seed))
	cells := w * h
	m := &Model{
		W: w, H: h,
		Agents:   Spawn(int(s.HerbivoreCount), int(s.CarnivoreCount), float32(w), float32(h), &s, rng),
		Plants:   Plants(w, h, &p),
		Scent:    make([]float32, cells),
		Cursor:   sim.DefaultCursor,
		deposits: make([]float32, cells),
		next:     make([]float32, cells),
		occupied: make([]uint32, 2*cells),
		params:   p,
	}
	m.claims = make([]uint32, len(m.Agents))
	return m
}

func (m *Model) cell(x, y float32) int {
	return int(y)*m.W + int(x)
}

// cursorCell returns the cursor in cell space and its radius in cells.
func cursorCell(c sim.Cursor, w, h float32) (float32, float32, float32) {
	return (c.X + 1) * 0.5 * w, (c.Y + 1) * 0.5 * h, c.Size * h * 0.5
}

// Regrow grows every plant cell toward its capacity and counts the total.
// Seeding with the cursor plants food inside its radius.
func (m *Model) Regrow(p *Params) {
	cx, cy, r := cursorCell(m.Cursor, float32(m.W), float32(m.H))
	var total uint32
	for y := range m.H {
		for x := range m.W {
			i := y*m.W + x
			capacity := Capacity(p.Pattern, float32(x), float32(y), p.PatternScale)
			v := m.Plants[i]
			if v < capacity {
				v = min(v+p.PlantGrowth*p.Dt*capacity, capacity)
			}
			if m.Mode == sim.ModeSeed {
				dx, dy := float32(x)-cx, float32(y)-cy
				if dx*dx+dy*dy < r*r {
					v += m.Cursor.Strength * p.Dt * 2
				}
			}
			v = min(max(v, 0), 1)
			m.Plants[i] = v
			total += uint32(v * PlantFixed)
		}
	}
	m.Counters = Counters{Plants: total}
}

// Mark records which cells hold a living herbivore or carnivore. The
// herbivore map stores index+1 so carnivores can find their prey.
func (m *Model) Mark(p *Params) {
	clear(m.occupied)
	cells := m.W * m.H
	for i := range m.Agents {
		a := &m.Agents[i]
		if a.Alive == 0 {
			continue
		}
		c := m.cell(a.X, a.Y)
		if uint32(i) < p.Herbivores {
			m.occupied[c] = uint32(i) + 1
		} else {
			m.occupied[cells+c] = uint32(i) + 1
		}
	}
}

func (m *Model) sense(field []float32, x, y, heading float32, p *Params) float32 {
	sx := wrap(x+cos32(heading)*p.SensorDistance, float32(m.W))
	sy := wrap(y+sin32(heading)*p.SensorDistance, float32(m.H))
	return field[m.cell(sx, sy)]
}

// steer turns the heading toward the strongest of three samples.
func (m *Model) steer(a *Agent, field []float32, r float32, p *Params) {
	front := m.sense(field, a.X, a.Y, a.Heading, p)
	left := m.sense(field, a.X, a.Y, a.Heading+p.SensorAngle, p)
	right := m.sense(field, a.X, a.Y, a.Heading-p.SensorAngle, p)
	turn := p.TurnRate * p.Dt
	switch {
	case front >= left && front >= right:
	case front < left && front < right:
		a.Heading += (r - 0.5) * 2 * turn
	case right > left:
		a.Heading -= turn
	default:
		a.Heading += turn
	}
}

// Respawn brings a dead agent back at a hash-chosen position.
func Respawn(a *Agent, i uint32, key uint32, w, h float32, p *Params) {
	k := sim.Hash(i*3 ^ key)
	a.X = wrap(sim.HashUnit(k)*w, w)
	a.Y = wrap(sim.HashUnit(k+1)*h, h)
	a.Heading = sim.HashUnit(k+2) * 2 * math.Pi
	a.Energy = p.InitialEnergy
	a.Timer = 0
	a.Alive = 1
	a.Births++
}

// Update runs one agent: respawn when due, steer, move, feed, metabolise
// and die.
func (m *Model) Update(i int, p *Params) {
	a := &m.Agents[i]
	w, h := float32(m.W), float32(m.H)
	key := sim.Hash(p.Seed ^ p.Frame*0x9e3779b9)
	herbivore := uint32(i) < p.Herbivores
	if a.Alive == 0 {
		a.Timer -= p.Dt
		if a.Timer <= 0 {
			Respawn(a, uint32(i), key, w, h, p)
		}
		return
	}
	if herbivore && m.claims[i] != 0 {
		m.claims[i] = 0
		die(a, p)
		return
	}
	r := sim.HashUnit(uint32(i) ^ key)
	speed, cost := p.CarnivoreSpeed, p.CarnivoreCost
	if herbivore {
		speed, cost = p.HerbivoreSpeed, p.HerbivoreCost
		m.steer(a, m.Plants, r, p)
	} else {
		m.steer(a, m.Scent, r, p)
	}
	if m.Mode == sim.ModeGrab || m.Mode == sim.ModeRepel {
		cx, cy, rad := cursorCell(m.Cursor, w, h)
		dx, dy := cx-a.X, cy-a.Y
		if d := float32(math.Hypot(float64(dx), float64(dy))); d < rad && d > 0 {
			want := float32(math.Atan2(float64(dy), float64(dx)))
			if m.Mode == sim.ModeRepel {
				want += math.Pi
			}
			delta := float32(math.Atan2(math.Sin(float64(want-a.Heading)), math.Cos(float64(want-a.Heading))))
			turn := p.TurnRate * p.Dt
			a.Heading += min(max(delta, -turn), turn) * m.Cursor.Strength
		}
	}
	a.X = wrap(a.X+cos32(a.Heading)*speed*p.Dt, w)
	a.Y = wrap(a.Y+sin32(a.Heading)*speed*p.Dt, h)

	c := m.cell(a.X, a.Y)
	if herbivore {
		bite := min(m.Plants[c], p.BiteRate*p.Dt)
		m.Plants[c] -= bite
		a.Energy = min(a.Energy+bite*p.PlantEnergy, p.MaxEnergy)
		m.deposits[c] += p.ScentDeposit * p.Dt
	} else if j, ok := m.prey(a.X, a.Y); ok && m.claims[j] == 0 {
		m.claims[j] = 1
		a.Energy = min(a.Energy+p.PreyEnergy, p.MaxEnergy)
		m.Counters.Kills++
	}
	a.Energy -= cost * p.Dt
	a.Timer += p.Dt
	if !(a.Energy > 0) || a.Timer > p.Lifespan {
		die(a, p)
		return
	}
	if herbivore {
		m.Counters.Herbivores++
	} else {
		m.Counters.Carnivores++
	}
}

// prey returns a herbivore marked in the 3×3 cells around (x, y).
func (m *Model) prey(x, y float32) (int, bool) {
	cx, cy := int(x), int(y)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx := (cx + dx + m.W) % m.W
			ny := (cy + dy + m.H) % m.H
			if o := m.occupied[ny*m.W+nx]; o != 0 {
				return int(o - 1), true
			}
		}
	}
	return 0, false
}

func die(a *Agent, p *Params) {
	a.Alive = 0
	a.Energy = 0
	a.Timer = p.RespawnDelay
}

// Fade adds the frame's scent deposits, decays the scent and diffuses it.
func (m *Model) Fade(p *Params) {
	keep := max(1-p.ScentDecay*p.Dt, 0)
	for i := range m.Scent {
		m.Scent[i] = (m.Scent[i] + m.deposits[i]) * keep
		m.deposits[i] = 0
	}
	for y := range m.H {
		for x := range m.W {
			var sum float32
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += m.Scent[((y+dy+m.H)%m.H)*m.W+(x+dx+m.W)%m.W]
				}
			}
			c := m.Scent[y*m.W+x]
			m.next[y*m.W+x] = c + (sum/9-c)*p.ScentDiffusion
		}
	}
	m.Scent, m.next = m.next, m.Scent
}

// Step runs regrow, mark, the agent updates and the scent fade.
func (m *Model) Step(dt float32) {
	p := m.params
	p.Dt = sim.ClampDelta(dt)
	m.Regrow(&p)
	m.Mark(&p)
	for i := range m.Agents {
		m.Update(i, &p)
	}
	m.Fade(&p)
	m.params.Frame++
}

// Render shades the field and agents through the scheme.
func (m *Model) Render(dst *image.RGBA, scheme *lut.ColorScheme, reversed bool) {
	cells := m.W * m.H
	shown := make([]float32, cells)
	for i := range shown {
		shown[i] = Shade(m.Plants[i], m.Scent[i], m.occupied[i] != 0, m.occupied[cells+i] != 0, &m.params)
	}
	sim.RenderField(dst, shown, m.W, m.H, scheme, reversed, 0, 1)
}

func newSoftware(w, h int, tree sim.ValueTree, seed uint64) (sim.Software, error) {
	s := DefaultSettings()
	if err := sim.DecodeSettings(tree, &s); err != nil {
		return nil, err
	}
	cells := uint32(w * h)
	s.HerbivoreCount = min(s.HerbivoreCount, cells)
	s.CarnivoreCount = min(s.CarnivoreCount, cells)
	return NewModel(w, h, s, seed), nil
}

// wrap folds v into [0, size). Non-finite values land on 0.
func wrap(v, size float32) float32 {
	v -= size * float32(math.Floor(float64(v/size)))
	if !(v >= 0 && v < size) {
		return 0
	}
	return v
}

func smoothstep(lo, hi, x float32) float32 {
	t := min(max((x-lo)/(hi-lo), 0), 1)
	return t * t * (3 - 2*t)
}

func cos32(a float32) float32 { return float32(math.Cos(float64(a))) }
func sin32(a float32) float32 { return float32(math.Sin(float64(a))) }
