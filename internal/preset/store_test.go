package preset

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/gogpu/simviz"
)

func TestBuiltins(t *testing.T) {
	s, err := NewStore("")
	if err != nil {
		t.Fatal(err)
	}
	kinds := s.Kinds()
	for _, k := range []string{"gray_scott", "slime_mold", "particle_life", "fluids"} {
		if !slices.Contains(kinds, k) {
			t.Errorf("no built-in presets for %s", k)
		}
	}
	r, err := s.Get("gray_scott", "mitosis")
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "Mitosis" || r.Settings["feed_rate"] != 0.0367 || r.Settings["kill_rate"] != 0.0649 {
		t.Errorf("Mitosis = %+v", r)
	}
	if names := s.List("gray_scott"); len(names) == 0 || names[0] != "Mitosis" {
		t.Errorf("List order = %v", names)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"Mitosis", "mitosis", true},
		{"  Coral Growth ", "coral growth", true},
		{"Straße", "STRASSE", true},
		{"été", "été", true},
		{"Worms", "Mazes", false},
	}
	for _, tt := range tests {
		if got := Key(tt.a) == Key(tt.b); got != tt.same {
			t.Errorf("Key(%q) == Key(%q) is %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}

func TestSaveGetDelete(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save("gray_scott", "user/Slow Bloom", map[string]any{"feed_rate": 0.02}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "gray_scott", "Slow Bloom.json")); err != nil {
		t.Fatalf("preset file: %v", err)
	}
	names := s.List("gray_scott")
	if names[len(names)-1] != "user/Slow Bloom" {
		t.Errorf("List = %v", names)
	}
	for _, name := range []string{"user/slow bloom", "SLOW BLOOM"} {
		if _, err := s.Get("gray_scott", name); err != nil {
			t.Errorf("Get(%q): %v", name, err)
		}
	}

	// A fresh store reads the file back.
	again, err := NewStore(root)
	if err != nil {
		t.Fatal(err)
	}
	r, err := again.Get("gray_scott", "user/Slow Bloom")
	if err != nil || r.Settings["feed_rate"] != 0.02 {
		t.Errorf("reloaded = %+v, %v", r, err)
	}

	if err := s.Delete("gray_scott", "user/Slow Bloom"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "gray_scott", "Slow Bloom.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still present: %v", err)
	}
}

func TestStoreErrors(t *testing.T) {
	s, err := NewStore("")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		err  error
		want simviz.Kind
	}{
		{"missing", func() error { _, err := s.Get("gray_scott", "Nope"); return err }(), simviz.KindPresetNotFound},
		{"missing user", func() error { _, err := s.Get("gray_scott", "user/Mitosis"); return err }(), simviz.KindPresetNotFound},
		{"empty name", s.Save("gray_scott", "  ", nil), simviz.KindInvalidSetting},
		{"path in name", s.Save("gray_scott", "a/b", nil), simviz.KindInvalidSetting},
		{"delete built-in", s.Delete("gray_scott", "Mitosis"), simviz.KindInvalidSetting},
		{"delete missing", s.Delete("gray_scott", "user/Nope"), simviz.KindPresetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := simviz.KindOf(tt.err); got != tt.want {
				t.Errorf("kind = %v (%v), want %v", got, tt.err, tt.want)
			}
		})
	}
}

func TestReloadSkipsBadFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "fluids")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Calm.json"), []byte(`{"settings":{"viscosity":0.1}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewStore(root)
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Get("fluids", "user/Calm")
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "Calm" {
		t.Errorf("name from file = %q", r.Name)
	}
	if got := s.List("fluids"); slices.Contains(got, "user/broken") {
		t.Errorf("broken preset listed: %v", got)
	}
}
