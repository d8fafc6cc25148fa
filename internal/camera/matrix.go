package camera

import "math"

// Matrix is the 2D affine map from world to clip space:
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity leaves points unchanged.
func Identity() Matrix { return Matrix{A: 1, E: 1} }

// Translate moves points by (x, y).
func Translate(x, y float64) Matrix { return Matrix{A: 1, C: x, E: 1, F: y} }

// Scale stretches points by (x, y) about the origin.
func Scale(x, y float64) Matrix { return Matrix{A: x, E: y} }

// Multiply composes m after n.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.B*n.D,
		B: m.A*n.B + m.B*n.E,
		C: m.A*n.C + m.B*n.F + m.C,
		D: m.D*n.A + m.E*n.D,
		E: m.D*n.B + m.E*n.E,
		F: m.D*n.C + m.E*n.F + m.F,
	}
}

// TransformPoint maps (x, y).
func (m Matrix) TransformPoint(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.C, m.D*x + m.E*y + m.F
}

// Invert returns the inverse map, or Identity when m collapses the plane.
// A camera at its minimum zoom still has a determinant far above the
// cutoff.
func (m Matrix) Invert() Matrix {
	det := m.A*m.E - m.B*m.D
	if math.Abs(det) < 1e-12 {
		return Identity()
	}
	k := 1 / det
	return Matrix{
		A: m.E * k,
		B: -m.B * k,
		C: (m.B*m.F - m.C*m.E) * k,
		D: -m.D * k,
		E: m.A * k,
		F: (m.C*m.D - m.A*m.F) * k,
	}
}

// IsIdentity reports whether m is exactly Identity.
func (m Matrix) IsIdentity() bool { return m == Identity() }

// Mat4 widens m to the column-major mat4x4<f32> of the camera uniform.
// z passes through unchanged.
func (m Matrix) Mat4() [16]float32 {
	return [16]float32{
		float32(m.A), float32(m.D), 0, 0,
		float32(m.B), float32(m.E), 0, 0,
		0, 0, 1, 0,
		float32(m.C), float32(m.F), 0, 1,
	}
}
