package grayscott

import (
	"math"
	"testing"

	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/preset"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/simviz/internal/sim/simtest"
)

func TestShaderLayout(t *testing.T) {
	simtest.Shader(t, shaderWGSL, Bindings)
	simtest.Shader(t, sim.TilingShader(), sim.TilingBindings)
}

func TestParamsSize(t *testing.T) {
	if got := gpu.SizeOf(Params{}); got != ParamsSize {
		t.Errorf("Params is %d bytes, want %d", got, ParamsSize)
	}
}

func TestContract(t *testing.T) {
	simtest.Contract(t, Kind)
}

// Without feed or kill the reaction only moves mass between U and V and
// the periodic Laplacian sums to zero, so U+V is conserved.
func TestMassConservation(t *testing.T) {
	f := NewField(48, 40)
	f.Seed(sim.NewRNG(11))
	u0, v0 := f.Mean()
	p := Params{DiffU: 0.2097, DiffV: 0.105, Dt: 1, Width: 48, Height: 40}
	for range 1000 {
		f.Step(p)
	}
	u1, v1 := f.Mean()
	if d := math.Abs((u1 + v1) - (u0 + v0)); d > 1e-3 {
		t.Errorf("mean(U+V) drifted by %g", d)
	}
}

func TestMitosisPreset(t *testing.T) {
	store, err := preset.NewStore("")
	if err != nil {
		t.Fatal(err)
	}
	rec, err := store.Get(Kind, "Mitosis")
	if err != nil {
		t.Fatal(err)
	}
	s := DefaultSettings()
	if err := sim.DecodeSettings(rec.Settings, &s); err != nil {
		t.Fatal(err)
	}
	tree := sim.EncodeSettings(s)
	if tree["feed_rate"] != 0.0367 || tree["kill_rate"] != 0.0649 {
		t.Fatalf("preset settings = %v %v", tree["feed_rate"], tree["kill_rate"])
	}

	f := NewField(64, 64)
	f.Seed(sim.NewRNG(5))
	u0, v0 := f.Mean()
	p := s.params(64, 64, 5)
	var moved float64
	for range 600 {
		f.Step(p)
		u, v := f.Mean()
		moved = max(moved, math.Abs(u-u0), math.Abs(v-v0))
	}
	if moved <= 1e-3 {
		t.Errorf("UV mean changed by %g over 600 ticks", moved)
	}
}

func TestNutrientRange(t *testing.T) {
	for p := PatternUniform; p <= PatternCosineGrid; p++ {
		for _, rev := range []bool{false, true} {
			for i := range 17 {
				u := float32(i) / 16
				n := Nutrient(p, rev, u, 1-u, 9)
				if n < 0 || n > 1 || n != n {
					t.Fatalf("pattern %d rev %v at %v: %v", p, rev, u, n)
				}
			}
		}
	}
	if Nutrient(PatternUniform, true, 0.3, 0.3, 0) != 0.5 {
		t.Error("uniform pattern should ignore reversal")
	}
}

func TestPatternEnumOrder(t *testing.T) {
	s := DefaultSettings()
	tests := map[string]uint32{
		"Uniform":       PatternUniform,
		"Checkerboard":  PatternCheckerboard,
		"EnhancedNoise": PatternEnhancedNoise,
		"CosineGrid":    PatternCosineGrid,
	}
	for name, want := range tests {
		s.NutrientPattern = name
		if got := s.params(1, 1, 0).Pattern; got != want {
			t.Errorf("%s -> %d, want %d", name, got, want)
		}
	}
}

func TestMaskMirror(t *testing.T) {
	m := []float32{0, 1, 0, 0}
	tests := []struct {
		mirror uint32
		x, y   int
		want   float32
	}{
		{0, 1, 0, 1},
		{MirrorHorizontal, 0, 0, 1},
		{MirrorVertical, 1, 1, 1},
		{MirrorHorizontal | MirrorVertical, 0, 1, 1},
		{0, 0, 0, 0},
	}
	for _, tt := range tests {
		p := Params{MaskMirror: tt.mirror, MaskStrength: 1}
		if got := maskFactor(m, 2, 2, tt.x, tt.y, p); got != tt.want {
			t.Errorf("mirror %b at (%d,%d) = %v, want %v", tt.mirror, tt.x, tt.y, got, tt.want)
		}
	}
	p := Params{MaskStrength: 0.5, MaskInvert: 1}
	if got := maskFactor(m, 2, 2, 1, 0, p); got != 0.5 {
		t.Errorf("inverted half strength = %v", got)
	}
}

func TestRGBA32F(t *testing.T) {
	f := NewField(2, 1)
	if got := len(f.RGBA32F()); got != 2*texelBytes {
		t.Errorf("len = %d", got)
	}
}
