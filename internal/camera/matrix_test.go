package camera

import (
	"math"
	"testing"
)

func TestMatrixMultiplyOrder(t *testing.T) {
	// Translate first, then scale.
	m := Scale(2, 3).Multiply(Translate(10, 20))
	x, y := m.TransformPoint(1, 1)
	if x != 22 || y != 63 {
		t.Errorf("TransformPoint = (%v, %v), want (22, 63)", x, y)
	}
}

func TestMatrixInvert(t *testing.T) {
	tests := []struct {
		name string
		m    Matrix
	}{
		{"identity", Identity()},
		{"translate", Translate(-3, 4)},
		{"scale", Scale(0.5, 8)},
		{"camera", Scale(0.01/1.7, 0.01).Multiply(Translate(0.3, -0.9))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.m.Multiply(tt.m.Invert())
			for _, v := range [][2]float64{{1, 0}, {0, 1}, {-2, 5}} {
				x, y := got.TransformPoint(v[0], v[1])
				if math.Abs(x-v[0]) > 1e-9 || math.Abs(y-v[1]) > 1e-9 {
					t.Errorf("m*inv(m) maps %v to (%v, %v)", v, x, y)
				}
			}
		})
	}
	if !(Matrix{}).Invert().IsIdentity() {
		t.Error("singular matrix should invert to identity")
	}
}

func TestMat4ColumnMajor(t *testing.T) {
	m := Matrix{A: 1, B: 2, C: 3, D: 4, E: 5, F: 6}
	got := m.Mat4()
	want := [16]float32{1, 4, 0, 0, 2, 5, 0, 0, 0, 0, 1, 0, 3, 6, 0, 1}
	if got != want {
		t.Errorf("Mat4() = %v, want %v", got, want)
	}
}
