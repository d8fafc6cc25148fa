package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/sim"
)

func softwareConfig(t *testing.T, kind string) config {
	t.Helper()
	return config{
		kind:     kind,
		width:    64,
		height:   48,
		frames:   3,
		snapshot: filepath.Join(t.TempDir(), "out.png"),
		scheme:   lut.DefaultName,
		seed:     7,
		cell:     4,
	}
}

func TestRunSoftwareWritesSnapshot(t *testing.T) {
	for _, kind := range sim.Kinds() {
		t.Run(kind, func(t *testing.T) {
			d, err := sim.Lookup(kind)
			if err != nil {
				t.Fatal(err)
			}
			if d.Software == nil {
				t.Skip("no CPU model")
			}
			cfg := softwareConfig(t, kind)
			if err := runSoftware(cfg); err != nil {
				t.Fatal(err)
			}
			f, err := os.Open(cfg.snapshot)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			img, err := png.Decode(f)
			if err != nil {
				t.Fatal(err)
			}
			if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
				t.Errorf("snapshot bounds = %v", b)
			}
		})
	}
}

func TestRunSoftwareErrors(t *testing.T) {
	tests := []struct {
		name string
		edit func(*config)
		want simviz.Kind
	}{
		{"unknown kind", func(c *config) { c.kind = "nope" }, simviz.KindInvalidSetting},
		{"unknown scheme", func(c *config) { c.scheme = "Nope" }, simviz.KindColorSchemeNotFound},
		{"unknown preset", func(c *config) { c.preset = "Nope" }, simviz.KindPresetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := softwareConfig(t, sim.Default())
			tt.edit(&cfg)
			if err := runSoftware(cfg); simviz.KindOf(err) != tt.want {
				t.Errorf("runSoftware = %v, want %v", err, tt.want)
			}
		})
	}
}
