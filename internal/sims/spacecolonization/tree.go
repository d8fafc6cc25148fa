package spacecolonization

import (
	"image"
	"math"

	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/sim"
)

// NoParent marks the root node.
const NoParent uint32 = 0xFFFFFFFF

// Attractor patterns in enum order.
const (
	PatternRandom = iota
	PatternClustered
	PatternGrid
	PatternCircular
	PatternBoundary
	PatternLeaf
)

// Venation modes in enum order. Closed retires an attractor at the first
// node inside the kill distance; Open waits for a second node, so the
// approaching tip grows through it.
const (
	VenationOpen = iota
	VenationClosed
)

// MaxStalls is the number of consecutive ticks without growth after which
// the remaining attractors are retired.
const MaxStalls = 3

// AttractorPosition places attractor i of n for pattern and seed. The
// shader computes the same positions with the same hash.
func AttractorPosition(pattern, i, n, seed uint32) (float32, float32) {
	h := sim.Hash(seed ^ sim.Hash(i*2+1))
	u := sim.HashUnit(h)
	v := sim.HashUnit(sim.Hash(h ^ 0x9e3779b9))
	switch pattern {
	case PatternClustered:
		k := i % 5
		ch := sim.Hash(seed ^ sim.Hash(k*7919+13))
		cx := (sim.HashUnit(ch)*2 - 1) * 0.7
		cy := (sim.HashUnit(sim.Hash(ch))*2 - 1) * 0.7
		r := 0.2 * sqrt32(u)
		return cx + r*cos32(2*math.Pi*v), cy + r*sin32(2*math.Pi*v)
	case PatternGrid:
		side := uint32(math.Ceil(math.Sqrt(float64(max(n, 1)))))
		gx, gy := float32(i%side), float32(i/side)
		step := 1.9 / float32(side)
		return -0.95 + step*(gx+0.5) + (u-0.5)*step*0.2, -0.95 + step*(gy+0.5) + (v-0.5)*step*0.2
	case PatternCircular:
		r := 0.9 * sqrt32(u)
		return r * cos32(2*math.Pi*v), r * sin32(2*math.Pi*v)
	case PatternBoundary:
		r := 0.9 - 0.05*u
		return r * cos32(2*math.Pi*v), r * sin32(2*math.Pi*v)
	case PatternLeaf:
		y := -0.9 + 1.8*u
		w := 0.55 * float32(math.Pow(float64(sin32(math.Pi*u)), 0.8))
		return (2*v - 1) * w, y
	default:
		return (2*u - 1) * 0.95, (2*v - 1) * 0.95
	}
}

// Attractor is a growth target.
type Attractor struct {
	X, Y   float32
	Active bool
}

// Node is one tree vertex. Parent indexes Tree.Nodes.
type Node struct {
	X, Y        float32
	Parent      uint32
	Generation  uint32
	Thickness   float32
	Descendants uint32
	DirX, DirY  float32
	Influence   uint32
	C0, C1      [2]float32
}

// Tree is the CPU reference of the growth algorithm.
type Tree struct {
	Settings   Settings
	Attractors []Attractor
	Nodes      []Node
	Ticks      int

	stalled int
}

// NewTree places the attractors and the root at the origin.
func NewTree(s Settings) *Tree {
	t := &Tree{Settings: s}
	pattern := sim.EnumIndex(&s, "attractor_pattern", s.AttractorPattern)
	t.Attractors = make([]Attractor, s.AttractorCount)
	for i := range t.Attractors {
		x, y := AttractorPosition(pattern, uint32(i), s.AttractorCount, s.RandomSeed)
		t.Attractors[i] = Attractor{X: x, Y: y, Active: true}
	}
	t.Nodes = []Node{{Parent: NoParent, Thickness: s.MaxThickness}}
	return t
}

// Active returns the number of live attractors.
func (t *Tree) Active() int {
	n := 0
	for i := range t.Attractors {
		if t.Attractors[i].Active {
			n++
		}
	}
	return n
}

// Done reports whether growth has terminated.
func (t *Tree) Done() bool {
	return t.Active() == 0 || len(t.Nodes) >= int(t.Settings.MaxNodes)
}

// Step runs one growth tick and returns the number of nodes added. A
// tick that follows a stalled one searches without the attraction limit,
// so attractors out of reach of the tree still pull on their closest node.
func (t *Tree) Step() int {
	s := &t.Settings
	t.Ticks++
	for i := range t.Nodes {
		n := &t.Nodes[i]
		n.DirX, n.DirY, n.Influence = 0, 0, 0
	}

	reach := s.AttractionDistance * s.AttractionDistance
	if t.stalled > 0 {
		reach = math.MaxFloat32
	}
	for ai := range t.Attractors {
		a := &t.Attractors[ai]
		if !a.Active {
			continue
		}
		best, bestD := -1, reach
		for ni := range t.Nodes {
			dx, dy := a.X-t.Nodes[ni].X, a.Y-t.Nodes[ni].Y
			if d2 := dx*dx + dy*dy; d2 < bestD {
				best, bestD = ni, d2
			}
		}
		if best >= 0 {
			n := &t.Nodes[best]
			influence(n, a.X-n.X, a.Y-n.Y, bestD)
		}
	}

	grown := 0
	count := len(t.Nodes)
	for i := 0; i < count && len(t.Nodes) < int(s.MaxNodes); i++ {
		n := t.Nodes[i]
		if n.Influence == 0 {
			continue
		}
		l := float32(math.Hypot(float64(n.DirX), float64(n.DirY)))
		if l < 1e-6 {
			continue
		}
		dx, dy := n.DirX/l, n.DirY/l
		t.Nodes = append(t.Nodes, t.child(uint32(i), dx, dy))
		grown++
	}
	if grown == 0 {
		t.stalled++
	} else {
		t.stalled = 0
	}

	need := 2
	if sim.EnumIndex(s, "venation", s.Venation) == VenationClosed {
		need = 1
	}
	kill2 := s.KillDistance * s.KillDistance
	for ai := range t.Attractors {
		a := &t.Attractors[ai]
		if !a.Active {
			continue
		}
		if t.stalled >= MaxStalls {
			a.Active = false
			continue
		}
		near := 0
		for ni := range t.Nodes {
			dx, dy := a.X-t.Nodes[ni].X, a.Y-t.Nodes[ni].Y
			if dx*dx+dy*dy <= kill2 {
				if near++; near >= need {
					a.Active = false
					break
				}
			}
		}
	}

	t.thicken(count)
	return grown
}

func influence(n *Node, dx, dy, d2 float32) {
	d := float32(math.Sqrt(float64(d2)))
	if d > 0 {
		n.DirX += dx / d
		n.DirY += dy / d
	}
	n.Influence++
}

// child builds the node grown from parent p in direction (dx, dy), with
// Bézier control points continuing the parent's own direction.
func (t *Tree) child(p uint32, dx, dy float32) Node {
	s := &t.Settings
	par := t.Nodes[p]
	l := s.SegmentLength
	c := Node{
		X:          par.X + dx*l,
		Y:          par.Y + dy*l,
		Parent:     p,
		Generation: par.Generation + 1,
	}
	tx, ty := dx, dy
	if par.Parent != NoParent {
		gp := t.Nodes[par.Parent]
		if ix, iy := par.X-gp.X, par.Y-gp.Y; ix != 0 || iy != 0 {
			il := float32(math.Hypot(float64(ix), float64(iy)))
			tx, ty = ix/il, iy/il
		}
	}
	k := l * s.CurveTension * 0.5
	c.C0 = [2]float32{par.X + tx*k, par.Y + ty*k}
	c.C1 = [2]float32{c.X - dx*k, c.Y - dy*k}
	return c
}

// thicken credits the nodes added since index from to their ancestors and
// maps subtree size to thickness.
func (t *Tree) thicken(from int) {
	s := &t.Settings
	for i := from; i < len(t.Nodes); i++ {
		for p := t.Nodes[i].Parent; p != NoParent; p = t.Nodes[p].Parent {
			t.Nodes[p].Descendants++
		}
	}
	total := float64(len(t.Nodes))
	for i := range t.Nodes {
		n := &t.Nodes[i]
		n.Thickness = Thickness(n.Descendants, total, s.MinThickness, s.MaxThickness)
	}
}

// Thickness maps a subtree size to a stroke width in pixels.
func Thickness(descendants uint32, total float64, lo, hi float32) float32 {
	hi = max(hi, lo)
	f := float32(math.Sqrt((float64(descendants) + 1) / max(total, 1)))
	return lo + (hi-lo)*min(f, 1)
}

// Run steps until growth terminates or maxTicks pass.
func (t *Tree) Run(maxTicks int) {
	for range maxTicks {
		if t.Done() {
			return
		}
		t.Step()
	}
}

// bezier evaluates the segment into node i at parameter u.
func (t *Tree) bezier(i int, u float32) (float32, float32) {
	n := &t.Nodes[i]
	p := &t.Nodes[n.Parent]
	a := 1 - u
	b0, b1, b2, b3 := a*a*a, 3*a*a*u, 3*a*u*u, u*u*u
	return b0*p.X + b1*n.C0[0] + b2*n.C1[0] + b3*n.X, b0*p.Y + b1*n.C0[1] + b2*n.C1[1] + b3*n.Y
}

// Render draws every segment as a curve, colored by generation.
func (t *Tree) Render(dst *image.RGBA, scheme *lut.ColorScheme, reversed bool) {
	const parts = 4
	var segs [][2]sim.Point
	for i := 1; i < len(t.Nodes); i++ {
		v := GenerationColor(t.Nodes[i].Generation, t.Settings.ColorScale)
		x0, y0 := t.Nodes[t.Nodes[i].Parent].X, t.Nodes[t.Nodes[i].Parent].Y
		for k := 1; k <= parts; k++ {
			x1, y1 := t.bezier(i, float32(k)/parts)
			segs = append(segs, [2]sim.Point{{X: x0, Y: y0, Value: v}, {X: x1, Y: y1, Value: v}})
			x0, y0 = x1, y1
		}
	}
	sim.RenderSegments(dst, segs, scheme, reversed)
}

// GenerationColor maps a generation to a palette position.
func GenerationColor(gen uint32, scale float32) float32 {
	return 1 - float32(math.Exp(float64(-float32(gen)*0.02*scale)))
}

type software struct{ *Tree }

func (s software) Step(float32) {
	if !s.Done() {
		s.Tree.Step()
	}
}

func newSoftware(_, _ int, tree sim.ValueTree, _ uint64) (sim.Software, error) {
	s := DefaultSettings()
	if err := sim.DecodeSettings(tree, &s); err != nil {
		return nil, err
	}
	return software{NewTree(s)}, nil
}

func sqrt32(x float32) float32 { return float32(math.Sqrt(float64(x))) }
func cos32(x float32) float32  { return float32(math.Cos(float64(x))) }
func sin32(x float32) float32  { return float32(math.Sin(float64(x))) }
