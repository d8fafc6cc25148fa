package camera

import "testing"

func TestTileCount(t *testing.T) {
	tests := []struct {
		zoom float64
		want int
	}{
		{MaxZoom, 7},   // ceil(0.02)+6
		{1, 7},         // ceil(1)+6
		{0.5, 8},       // ceil(2)+6
		{0.1, 16},      // ceil(10)+6
		{0.09, 18},     // ceil(11.1)+6, min 7
		{MinZoom, 206}, // ceil(200)+6
		{0.001, 1006},  // below MinZoom still follows the formula
		{0.0001, 1024}, // clamped
		{0, 206},       // invalid zoom uses MinZoom
	}
	for _, tt := range tests {
		if got := TileCount(tt.zoom); got != tt.want {
			t.Errorf("TileCount(%v) = %d, want %d", tt.zoom, got, tt.want)
		}
	}
}

func TestTileOffsetSymmetric(t *testing.T) {
	for _, n := range []int{1, 5, 7, 16} {
		x0, y0 := TileOffset(0, 0, n)
		x1, y1 := TileOffset(n-1, n-1, n)
		if x0 != -x1 || y0 != -y1 {
			t.Errorf("T=%d: offsets (%v,%v) and (%v,%v) not symmetric", n, x0, y0, x1, y1)
		}
	}
	if x, y := TileOffset(2, 2, 5); x != 0 || y != 0 {
		t.Errorf("center tile offset = (%v, %v)", x, y)
	}
}
