package sim

import "math"

// Noise is smoothed value noise on the integer lattice in [0, 1]. The
// flow and ecosystem shaders carry a copy; keep them in step.
func Noise(x, y float32) float32 {
	fx, fy := float32(math.Floor(float64(x))), float32(math.Floor(float64(y)))
	ix, iy := int32(fx), int32(fy)
	tx, ty := smooth(x-fx), smooth(y-fy)
	a := lattice(ix, iy)
	b := lattice(ix+1, iy)
	c := lattice(ix, iy+1)
	d := lattice(ix+1, iy+1)
	ab := a + (b-a)*tx
	cd := c + (d-c)*tx
	return ab + (cd-ab)*ty
}

func lattice(ix, iy int32) float32 {
	return HashUnit(uint32(ix)*73856093 ^ uint32(iy)*19349663)
}

func smooth(t float32) float32 { return t * t * (3 - 2*t) }

// potential is the stream function whose curl drives advection.
func potential(x, y, t, scale float32) float32 {
	return Noise(x*scale+t, y*scale-0.7*t)
}

// Curl returns the divergence-free velocity at (x, y), the rotated
// gradient of the noise stream function, normalized by the noise scale.
func Curl(x, y, t, scale float32) (float32, float32) {
	e := 0.5 / (scale * 64)
	dy := (potential(x, y+e, t, scale) - potential(x, y-e, t, scale)) / (2 * e)
	dx := (potential(x+e, y, t, scale) - potential(x-e, y, t, scale)) / (2 * e)
	return dy / scale, -dx / scale
}
