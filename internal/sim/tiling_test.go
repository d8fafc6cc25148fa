package sim

import (
	"image"
	"testing"

	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/lut"
)

func TestTilingShaderLayout(t *testing.T) {
	if got := gpu.SizeOf(RenderParams{}); got != RenderParamsSize {
		t.Fatalf("SizeOf(RenderParams) = %d, want %d", got, RenderParamsSize)
	}
	if err := gpu.ValidateLayout(TilingShader(), TilingBindings); err != nil {
		t.Fatal(err)
	}
}

func TestRenderField(t *testing.T) {
	scheme := lut.FromStops("bw", lut.Hex("000000"), lut.Hex("ffffff"))
	// Bottom row dark, top row bright.
	field := []float32{0, 0, 1, 1}
	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	RenderField(dst, field, 2, 2, scheme, false, 0, 1)
	if c := dst.RGBAAt(0, 0); c.R != 255 {
		t.Errorf("top-left = %v, want white", c)
	}
	if c := dst.RGBAAt(3, 3); c.R != 0 {
		t.Errorf("bottom-right = %v, want black", c)
	}
	RenderField(dst, field, 2, 2, scheme, true, 0, 1)
	if c := dst.RGBAAt(0, 0); c.R != 0 {
		t.Errorf("reversed top-left = %v, want black", c)
	}
}

func TestRenderPoints(t *testing.T) {
	scheme := lut.FromStops("bw", lut.Hex("000000"), lut.Hex("ffffff"))
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	RenderPoints(dst, []Point{{X: 0, Y: 0, Value: 1}, {X: 5, Y: 5, Value: 1}}, scheme, false, 1)
	if c := dst.RGBAAt(5, 5); c.R != 255 {
		t.Errorf("center = %v, want white", c)
	}
	if c := dst.RGBAAt(0, 0); c.R != 0 {
		t.Errorf("corner = %v, want background", c)
	}
}
