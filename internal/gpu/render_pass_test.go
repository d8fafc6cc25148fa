package gpu

import (
	"image/color"
	"testing"
)

func TestClearColor(t *testing.T) {
	tests := []struct {
		name       string
		in         color.RGBA
		r, g, b, a float64
	}{
		{"black", color.RGBA{A: 255}, 0, 0, 0, 1},
		{"white", color.RGBA{255, 255, 255, 255}, 1, 1, 1, 1},
		{"transparent", color.RGBA{}, 0, 0, 0, 0},
		{"mid gray", color.RGBA{51, 102, 153, 255}, 0.2, 0.4, 0.6, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClearColor(tt.in)
			if !near(c.R, tt.r) || !near(c.G, tt.g) || !near(c.B, tt.b) || !near(c.A, tt.a) {
				t.Errorf("ClearColor(%v) = %+v", tt.in, c)
			}
		})
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
