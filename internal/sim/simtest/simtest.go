// Package simtest holds the checks every registered simulation must pass.
package simtest

import (
	"errors"
	"image"
	"reflect"
	"testing"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Context returns an offscreen GPU context or skips the test.
func Context(t testing.TB, w, h uint32) *gpu.Context {
	t.Helper()
	c, err := gpu.New(gpu.Options{Width: w, Height: h})
	if err != nil {
		t.Skipf("no GPU adapter: %v", err)
	}
	t.Cleanup(c.Release)
	return c
}

// Start builds kind on c. The simulation is released at cleanup.
func Start(t testing.TB, c *gpu.Context, kind string) sim.Simulation {
	t.Helper()
	d, err := sim.Lookup(kind)
	if err != nil {
		t.Fatal(err)
	}
	cfg := c.SurfaceConfig()
	s, err := d.New(sim.Env{GPU: c, Schemes: lut.NewStore(), Width: cfg.Width, Height: cfg.Height, Seed: 1})
	if err != nil {
		t.Fatalf("New(%s): %v", kind, err)
	}
	t.Cleanup(s.Release)
	return s
}

// Frames renders n frames of dt seconds into the context's target.
func Frames(t testing.TB, c *gpu.Context, s sim.Simulation, n int, dt float32) {
	t.Helper()
	for i := range n {
		frame, err := c.AcquireFrame()
		if err != nil {
			t.Fatalf("frame %d: acquire: %v", i, err)
		}
		if err := s.RenderFrame(frame.View, dt); err != nil {
			frame.Discard()
			t.Fatalf("frame %d: %v", i, err)
		}
		if err := frame.Present(); err != nil {
			t.Fatalf("frame %d: present: %v", i, err)
		}
	}
}

// Shader checks a WGSL source against the host binding sizes.
func Shader(t testing.TB, src string, bindings []gpu.Binding) {
	t.Helper()
	if err := gpu.ValidateLayout(src, bindings); err != nil {
		t.Fatal(err)
	}
}

// Contract runs the settings, software and GPU checks for kind.
func Contract(t *testing.T, kind string) {
	d, err := sim.Lookup(kind)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("defaults", func(t *testing.T) {
		tree := d.Defaults()
		if len(tree) == 0 {
			t.Fatal("empty defaults")
		}
		for k, v := range tree {
			if v == nil {
				t.Errorf("default %q is nil", k)
			}
		}
	})

	if d.Software != nil {
		t.Run("software", func(t *testing.T) {
			sw, err := d.Software(48, 32, d.Defaults(), 3)
			if err != nil {
				t.Fatal(err)
			}
			for range 5 {
				sw.Step(1.0 / 60)
			}
			dst := image.NewRGBA(image.Rect(0, 0, 96, 64))
			scheme, err := lut.NewStore().Get(lut.DefaultName)
			if err != nil {
				t.Fatal(err)
			}
			sw.Render(dst, scheme, false)
			if _, err := d.Software(8, 8, sim.ValueTree{"no_such_setting": 1}, 3); !errors.Is(err, simviz.ErrSerialization) {
				t.Errorf("unknown key err = %v", err)
			}
		})
	}

	t.Run("gpu", func(t *testing.T) {
		c := Context(t, 64, 48)
		before := c.Ledger().Stats()
		s := Start(t, c, kind)
		if s.Kind() != kind {
			t.Errorf("Kind() = %q", s.Kind())
		}
		settingsContract(t, s, d)
		Frames(t, c, s, 3, 1.0/60)

		if err := s.HandleMouse(0.1, -0.2, sim.ButtonLeft); err != nil {
			t.Fatal(err)
		}
		Frames(t, c, s, 2, 1.0/60)
		if err := s.HandleMouseRelease(sim.ButtonLeft); err != nil {
			t.Fatal(err)
		}
		if err := s.UpdateState("paused", true); err != nil {
			t.Fatal(err)
		}
		if err := s.RenderFramePaused(mustFrame(t, c)); err != nil {
			t.Fatal(err)
		}
		if err := s.UpdateState("paused", false); err != nil {
			t.Fatal(err)
		}

		if err := c.Reconfigure(96, 80); err != nil {
			t.Fatal(err)
		}
		if err := s.Resize(96, 80); err != nil {
			t.Fatalf("Resize: %v", err)
		}
		if w, h := s.Size(); w == 0 || h == 0 {
			t.Errorf("Size() = %dx%d after resize", w, h)
		}
		Frames(t, c, s, 2, 1.0/60)
		if err := s.ResetRuntimeState(); err != nil {
			t.Fatal(err)
		}
		Frames(t, c, s, 1, 1.0/60)

		s.Release()
		if after := c.Ledger().Stats(); after != before {
			t.Errorf("resources leaked: before %v, after %v", before, after)
		}
	})
}

func mustFrame(t *testing.T, c *gpu.Context) *wgpu.TextureView {
	t.Helper()
	f, err := c.AcquireFrame()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Present() })
	return f.View
}

func settingsContract(t *testing.T, s sim.Simulation, d sim.Descriptor) {
	t.Helper()
	got := s.Settings()
	want := d.Defaults()
	if !reflect.DeepEqual(keys(got), keys(want)) {
		t.Errorf("settings keys %v, defaults %v", keys(got), keys(want))
	}
	if err := s.UpdateSetting("no_such_setting", 1); !errors.Is(err, simviz.ErrInvalidSetting) {
		t.Errorf("unknown setting err = %v", err)
	}
	if err := s.UpdateState("no_such_state", 1); !errors.Is(err, simviz.ErrInvalidSetting) {
		t.Errorf("unknown state err = %v", err)
	}
	before := s.Settings()
	if err := s.ApplySettings(sim.ValueTree{"no_such_setting": 1}); !errors.Is(err, simviz.ErrSerialization) {
		t.Errorf("bad tree err = %v", err)
	}
	if !reflect.DeepEqual(s.Settings(), before) {
		t.Error("failed ApplySettings changed settings")
	}
	if err := s.RandomizeSettings(); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplySettings(d.Defaults()); err != nil {
		t.Fatalf("ApplySettings(defaults): %v", err)
	}
	st := s.State()
	for _, k := range []string{"current_color_scheme", "paused", "gui_visible"} {
		if _, ok := st[k]; !ok {
			t.Errorf("state lacks %q", k)
		}
	}
	s.ToggleGUI()
	if s.GUIVisible() {
		t.Error("ToggleGUI did not hide the overlay")
	}
	s.ToggleGUI()
	s.ZoomCameraToCursor(1, 0.5, -0.25)
	s.PanCamera(0.1, 0)
	s.ResetCamera()
	if cs := s.CameraState(); cs.TargetZoom != 1 {
		t.Errorf("camera after reset = %+v", cs)
	}
}

func keys(t sim.ValueTree) map[string]bool {
	out := make(map[string]bool, len(t))
	for k := range t {
		out[k] = true
	}
	return out
}
