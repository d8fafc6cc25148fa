// Package physics is a small 2D rigid-disc solver for the [-1, 1]² box:
// fixed substeps, velocity damping, restitution impulses between discs and
// elastic walls, with contacts found through a uniform grid.
package physics

import "math"

// DefaultSubstep is the fixed integration step in seconds.
const DefaultSubstep = 1.0 / 240

// MaxSubsteps bounds the work done for one frame.
const MaxSubsteps = 32

// Body is a disc.
type Body struct {
	X, Y   float32
	VX, VY float32
	Radius float32
	Mass   float32
}

// Speed returns the magnitude of the velocity.
func (b *Body) Speed() float32 {
	return float32(math.Hypot(float64(b.VX), float64(b.VY)))
}

// Config holds the solver parameters.
type Config struct {
	// Substep is the fixed step; zero means DefaultSubstep.
	Substep float32
	// Damping is the fraction of velocity kept per second, in [0, 1].
	Damping float32
	// Restitution scales the normal velocity after a contact, in [0, 1].
	Restitution float32
	// GravityX and GravityY are a constant acceleration.
	GravityX, GravityY float32
	// MaxSpeed clamps velocities; zero disables the clamp.
	MaxSpeed float32
	// Collisions enables disc-disc contacts.
	Collisions bool
}

// Force adds accelerations to bodies before each substep.
type Force func(bodies []Body, h float32)

// World is a set of bodies under one Config.
type World struct {
	Config
	Bodies []Body
	Forces []Force

	acc  float32
	grid Grid
}

// NewWorld returns a world with cfg over bodies.
func NewWorld(cfg Config, bodies []Body) *World {
	return &World{Config: cfg, Bodies: bodies}
}

func (w *World) substep() float32 {
	if w.Substep > 0 {
		return w.Substep
	}
	return DefaultSubstep
}

// Step advances the world by dt in fixed substeps and returns how many ran.
// Time that does not fill a substep carries to the next call.
func (w *World) Step(dt float32) int {
	if dt != dt || dt <= 0 {
		return 0
	}
	h := w.substep()
	w.acc = min(w.acc+dt, h*MaxSubsteps)
	n := 0
	for w.acc >= h {
		w.acc -= h
		w.tick(h)
		n++
	}
	return n
}

func (w *World) tick(h float32) {
	for _, f := range w.Forces {
		f(w.Bodies, h)
	}
	damp := float32(math.Pow(float64(min(max(w.Damping, 0), 1)), float64(h)))
	for i := range w.Bodies {
		b := &w.Bodies[i]
		b.VX = (b.VX + w.GravityX*h) * damp
		b.VY = (b.VY + w.GravityY*h) * damp
		if w.MaxSpeed > 0 {
			if s := b.Speed(); s > w.MaxSpeed {
				b.VX *= w.MaxSpeed / s
				b.VY *= w.MaxSpeed / s
			}
		}
		b.X += b.VX * h
		b.Y += b.VY * h
	}
	if w.Collisions {
		w.collide()
	}
	for i := range w.Bodies {
		w.walls(&w.Bodies[i])
	}
}

// walls reflects a body off the box, keeping it inside. Reflection keeps
// the speed so walls never add or remove energy.
func (w *World) walls(b *Body) {
	if !finite(b.X) || !finite(b.Y) || !finite(b.VX) || !finite(b.VY) {
		*b = Body{Radius: b.Radius, Mass: b.Mass}
	}
	lim := max(1-b.Radius, 0)
	switch {
	case b.X < -lim:
		b.X, b.VX = -lim, abs(b.VX)
	case b.X > lim:
		b.X, b.VX = lim, -abs(b.VX)
	}
	switch {
	case b.Y < -lim:
		b.Y, b.VY = -lim, abs(b.VY)
	case b.Y > lim:
		b.Y, b.VY = lim, -abs(b.VY)
	}
}

// collide resolves overlapping pairs: positions separate along the
// normal in inverse proportion to mass, and approaching pairs exchange an
// impulse scaled by 1 + Restitution.
func (w *World) collide() {
	var rmax float32
	for i := range w.Bodies {
		rmax = max(rmax, w.Bodies[i].Radius)
	}
	if rmax <= 0 {
		return
	}
	w.grid.Build(w.Bodies, 2*rmax)
	e := min(max(w.Restitution, 0), 1)
	w.grid.Pairs(w.Bodies, func(i, j int) {
		a, b := &w.Bodies[i], &w.Bodies[j]
		dx, dy := b.X-a.X, b.Y-a.Y
		d2 := dx*dx + dy*dy
		r := a.Radius + b.Radius
		if d2 >= r*r {
			return
		}
		d := float32(math.Sqrt(float64(d2)))
		var nx, ny float32 = 1, 0
		if d > 1e-9 {
			nx, ny = dx/d, dy/d
		}
		ia, ib := invMass(a), invMass(b)
		sum := ia + ib
		if sum == 0 {
			return
		}
		overlap := r - d
		a.X -= nx * overlap * ia / sum
		a.Y -= ny * overlap * ia / sum
		b.X += nx * overlap * ib / sum
		b.Y += ny * overlap * ib / sum

		vn := (b.VX-a.VX)*nx + (b.VY-a.VY)*ny
		if vn >= 0 {
			return
		}
		imp := -(1 + e) * vn / sum
		a.VX -= imp * ia * nx
		a.VY -= imp * ia * ny
		b.VX += imp * ib * nx
		b.VY += imp * ib * ny
	})
}

func invMass(b *Body) float32 {
	if b.Mass <= 0 {
		return 1
	}
	return 1 / b.Mass
}

// KineticEnergy returns Σ ½mv².
func (w *World) KineticEnergy() float64 {
	var e float64
	for i := range w.Bodies {
		b := &w.Bodies[i]
		m := float64(b.Mass)
		if m <= 0 {
			m = 1
		}
		e += 0.5 * m * float64(b.VX*b.VX+b.VY*b.VY)
	}
	return e
}

// Impulse modes.
const (
	Attract = iota + 1
	Grab
	Repel
)

// Impulse pushes bodies within radius of (cx, cy) toward it (Attract,
// Grab) or away (Repel). The velocity change per call is clamped to
// maxDelta so interaction cannot launch bodies.
func (w *World) Impulse(cx, cy, radius, strength float32, mode int, maxDelta float32) {
	if radius <= 0 || mode == 0 {
		return
	}
	for i := range w.Bodies {
		b := &w.Bodies[i]
		dx, dy := cx-b.X, cy-b.Y
		d := float32(math.Hypot(float64(dx), float64(dy)))
		if d >= radius || d < 1e-6 {
			continue
		}
		fall := 1 - d/radius
		var ix, iy float32
		switch mode {
		case Grab:
			// Steer toward the velocity that would reach the cursor.
			ix = (dx*4 - b.VX) * fall * strength * 0.25
			iy = (dy*4 - b.VY) * fall * strength * 0.25
		case Repel:
			ix, iy = -dx/d*strength*fall, -dy/d*strength*fall
		default:
			ix, iy = dx/d*strength*fall, dy/d*strength*fall
		}
		if m := float32(math.Hypot(float64(ix), float64(iy))); maxDelta > 0 && m > maxDelta {
			ix *= maxDelta / m
			iy *= maxDelta / m
		}
		b.VX += ix
		b.VY += iy
	}
}

func finite(x float32) bool { return x == x && !math.IsInf(float64(x), 0) }

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
