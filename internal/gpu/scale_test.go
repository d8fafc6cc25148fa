package gpu

import (
	"bytes"
	"math"
	"testing"
)

func TestFitToLimits(t *testing.T) {
	tests := []struct {
		name         string
		w, h         uint32
		cell, limit  uint64
		wantW, wantH uint32
		scaled       bool
	}{
		{"fits", 800, 600, 16, 800 * 600 * 16, 800, 600, false},
		{"zero", 0, 0, 16, 100, 0, 0, false},
		{"tiny limit", 100, 100, 4, 1, 1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, scaled := FitToLimits(tt.w, tt.h, tt.cell, tt.limit)
			if w != tt.wantW || h != tt.wantH || scaled != tt.scaled {
				t.Errorf("FitToLimits() = (%d, %d, %v), want (%d, %d, %v)",
					w, h, scaled, tt.wantW, tt.wantH, tt.scaled)
			}
			if scaled && uint64(w)*uint64(h)*tt.cell > tt.limit && tt.limit >= tt.cell {
				t.Errorf("scaled field %dx%d still exceeds limit", w, h)
			}
		})
	}
}

func TestFitToLimitsFormula(t *testing.T) {
	const w, h, cell, limit = 3000, 2000, 16, 50_000_000
	k := math.Sqrt(float64(limit)/float64(w*h*cell)) * 0.95
	gw, gh, _ := FitToLimits(w, h, cell, limit)
	if gw != uint32(math.Floor(w*k)) || gh != uint32(math.Floor(h*k)) {
		t.Errorf("FitToLimits() = %dx%d, want floor(%v*k)", gw, gh, k)
	}
}

func TestFitTextureDimension(t *testing.T) {
	w, h := FitTextureDimension(9000, 100, 8192)
	if w != 8192 || h != 100 {
		t.Errorf("FitTextureDimension() = %dx%d", w, h)
	}
	w, h = FitTextureDimension(9000, 100, 0)
	if w != 9000 || h != 100 {
		t.Errorf("zero limit should pass through, got %dx%d", w, h)
	}
}

func TestScaleNearest(t *testing.T) {
	src := []byte{
		1, 2,
		3, 4,
	}
	got, err := ScaleNearest(src, 2, 2, 4, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("upscale = %v, want %v", got, want)
	}

	down, err := ScaleNearest(want, 4, 4, 2, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(down, src) {
		t.Errorf("downscale = %v, want %v", down, src)
	}
}

func TestScaleNearestTexelChunks(t *testing.T) {
	src := Float32Bytes([]float32{0.25, 0.75})
	got, err := ScaleNearest(src, 2, 1, 4, 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	vals := BytesFloat32(got)
	want := []float32{0.25, 0.25, 0.75, 0.75}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("vals[%d] = %v, want %v", i, vals[i], want[i])
		}
	}
}

func TestScaleNearestErrors(t *testing.T) {
	if _, err := ScaleNearest(nil, 0, 1, 1, 1, 1); err == nil {
		t.Error("zero size should fail")
	}
	if _, err := ScaleNearest([]byte{1}, 2, 2, 1, 1, 1); err == nil {
		t.Error("short source should fail")
	}
}
