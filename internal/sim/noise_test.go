package sim

import (
	"math"
	"testing"
)

// The flow is the curl of a scalar field, so its divergence vanishes up
// to discretization error.
func TestCurlIsDivergenceFree(t *testing.T) {
	const h = 1e-3
	for _, pt := range [][2]float32{{0.1, 0.2}, {-0.7, 0.4}, {0.33, -0.9}, {0.5, 0.5}} {
		x, y := pt[0], pt[1]
		vx1, _ := Curl(x+h, y, 0.3, 2)
		vx0, _ := Curl(x-h, y, 0.3, 2)
		_, vy1 := Curl(x, y+h, 0.3, 2)
		_, vy0 := Curl(x, y-h, 0.3, 2)
		div := (vx1-vx0)/(2*h) + (vy1-vy0)/(2*h)
		if math.Abs(float64(div)) > 0.05 {
			t.Errorf("divergence at (%v, %v) = %v", x, y, div)
		}
	}
}

func TestNoiseRange(t *testing.T) {
	for i := range 2000 {
		x := float32(i%97)*0.173 - 8
		y := float32(i/97)*0.311 - 3
		if n := Noise(x, y); n < 0 || n > 1 {
			t.Fatalf("Noise(%v, %v) = %v", x, y, n)
		}
	}
}
