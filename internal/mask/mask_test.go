package mask

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/simviz"
)

// halves returns a w×h image whose top half is white and bottom half black.
func halves(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h / 2 {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func TestFitFlipsRows(t *testing.T) {
	f := Fit(halves(4, 4), 4, 4, Options{})
	// Image top (white) lands in the last rows of the field.
	if f[0] != 0 || f[len(f)-1] != 1 {
		t.Errorf("bottom=%v top=%v, want 0 and 1", f[0], f[len(f)-1])
	}
}

func TestFitInvert(t *testing.T) {
	f := Fit(halves(4, 4), 4, 4, Options{Invert: true})
	if f[0] != 1 || f[len(f)-1] != 0 {
		t.Errorf("inverted bottom=%v top=%v", f[0], f[len(f)-1])
	}
}

func TestFitModes(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 10, 5))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	tests := []struct {
		mode FitMode
		// whether the bottom-left cell is covered by the image
		corner bool
	}{
		{Stretch, true},
		{Contain, false},
		{Cover, true},
		{Center, false},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			f := Fit(src, 20, 20, Options{Mode: tt.mode, Fast: true})
			if len(f) != 400 {
				t.Fatalf("len = %d", len(f))
			}
			if lit := f[0] > 0.99; lit != tt.corner {
				t.Errorf("corner = %v, want lit=%v", f[0], tt.corner)
			}
			if got := f[10*20+10]; got < 0.99 {
				t.Errorf("center = %v, want 1", got)
			}
		})
	}
}

func TestFitEmpty(t *testing.T) {
	if Fit(nil, 0, 3, Options{}) != nil {
		t.Error("zero width should give nil")
	}
	f := Fit(nil, 2, 2, Options{})
	for _, v := range f {
		if v != 0 {
			t.Fatalf("nil source gave %v", f)
		}
	}
}

func TestParseFitMode(t *testing.T) {
	for _, name := range []string{"stretch", "CONTAIN", "Cover", "center"} {
		if _, err := ParseFitMode(name); err != nil {
			t.Errorf("ParseFitMode(%q): %v", name, err)
		}
	}
	if _, err := ParseFitMode("tile"); !errors.Is(err, simviz.ErrInvalidSetting) {
		t.Errorf("unknown mode err = %v", err)
	}
}

func TestToR8(t *testing.T) {
	got := ToR8([]float32{-1, 0, 0.5, 1, 2})
	want := []byte{0, 0, 128, 255, 255}
	if !bytes.Equal(got, want) {
		t.Errorf("ToR8 = %v, want %v", got, want)
	}
}

func TestDecodeBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, halves(3, 2)); err != nil {
		t.Fatal(err)
	}
	img, err := DecodeBytes(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 3 {
		t.Errorf("bounds = %v", img.Bounds())
	}
	if _, err := DecodeBytes(nil); err == nil {
		t.Error("empty data decoded")
	}
}

func TestStaticSource(t *testing.T) {
	s := NewStaticSource(halves(2, 2))
	ctx := context.Background()
	if img, _ := s.Frame(ctx); img == nil {
		t.Fatal("first frame nil")
	}
	if img, _ := s.Frame(ctx); img != nil {
		t.Error("second frame should be nil")
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, halves(2, 2)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFileSource(path)
	ctx := context.Background()
	img, err := s.Frame(ctx)
	if err != nil || img == nil {
		t.Fatalf("Frame = %v, %v", img, err)
	}
	if img, _ := s.Frame(ctx); img != nil {
		t.Error("unchanged file produced a frame")
	}

	missing := NewFileSource(filepath.Join(t.TempDir(), "none.png"))
	if _, err := missing.Frame(ctx); !errors.Is(err, simviz.ErrWebcamUnavailable) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestOpenCameraWithoutBackend(t *testing.T) {
	SetCamera(nil)
	if _, err := OpenCamera(0); !errors.Is(err, simviz.ErrWebcamUnavailable) {
		t.Errorf("err = %v", err)
	}
	SetCamera(func(int) (FrameSource, error) { return NewStaticSource(nil), nil })
	defer SetCamera(nil)
	if _, err := OpenCamera(0); err != nil {
		t.Errorf("installed backend: %v", err)
	}
}

func TestLoadCachesDecodedImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mask.png")
	write := func(img image.Image) {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write(halves(4, 2))
	a, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second Load decoded again")
	}

	write(halves(8, 2))
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Bounds().Dx() != 8 {
		t.Errorf("rewritten file bounds = %v", c.Bounds())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "none.png")); err == nil {
		t.Error("missing file loaded")
	}
}
