package manager

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/sim/simtest"
)

func newTestManager(t *testing.T, opts Options) (*Manager, *fakeTarget) {
	t.Helper()
	target := newFakeTarget()
	if opts.Target == nil {
		opts.Target = target
	}
	m, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Close)
	return m, target
}

func active(t *testing.T, m *Manager) *simtest.Fake {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.active.(*simtest.Fake)
	if !ok {
		t.Fatalf("active = %T", m.active)
	}
	return f
}

func TestEmptyManager(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	ops := map[string]func() error{
		"Render":             func() error { return m.Render(nil, 0.016) },
		"Resize":             func() error { return m.Resize(10, 10) },
		"UpdateSetting":      func() error { return m.UpdateSetting("rate", 1) },
		"UpdateState":        func() error { return m.UpdateState("paused", true) },
		"ApplySettings":      func() error { return m.ApplySettings(nil) },
		"ApplyPreset":        func() error { return m.ApplyPreset("x") },
		"SavePreset":         func() error { return m.SavePreset("x", nil) },
		"DeletePreset":       func() error { return m.DeletePreset("x") },
		"ApplyColorScheme":   func() error { return m.ApplyColorScheme(lut.DefaultName) },
		"ReverseColorScheme": m.ReverseColorScheme,
		"HandleMouse":        func() error { return m.HandleMouse(0, 0, 0) },
		"HandleMouseRelease": func() error { return m.HandleMouseRelease(0) },
		"HandleCursor":       func() error { return m.HandleCursor(0, 0) },
		"Pan":                func() error { return m.Pan(1, 1) },
		"Zoom":               func() error { return m.Zoom(1) },
		"ZoomToCursor":       func() error { return m.ZoomToCursor(1, 0, 0) },
		"ResetCamera":        m.ResetCamera,
		"RandomizeSettings":  m.RandomizeSettings,
		"ResetSimulation":    m.ResetSimulation,
		"StartRenderLoop":    func() error { return m.StartRenderLoop(nil) },
		"Settings": func() error {
			_, err := m.Settings()
			return err
		},
		"State": func() error {
			_, err := m.State()
			return err
		},
		"ListPresets": func() error {
			_, err := m.ListPresets()
			return err
		},
		"CameraState": func() error {
			_, err := m.CameraState()
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, simviz.ErrNoActiveSimulation) {
				t.Errorf("err = %v, want NoActiveSimulation", err)
			}
		})
	}
	if m.IsRunning() || m.Kind() != "" {
		t.Error("empty manager reports a simulation")
	}
	if len(m.ListColorSchemes()) == 0 {
		t.Error("color schemes need no simulation")
	}
	m.Stop()
}

func TestStartStop(t *testing.T) {
	base := simtest.LiveFakes.Load()
	m, _ := newTestManager(t, Options{})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	if !m.IsRunning() || m.Kind() != fakeKind {
		t.Fatalf("running=%v kind=%q", m.IsRunning(), m.Kind())
	}
	if f := active(t, m); f.W != 320 || f.H != 240 {
		t.Errorf("built at %dx%d, want the target size", f.W, f.H)
	}
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	if got := simtest.LiveFakes.Load() - base; got != 1 {
		t.Errorf("%d live simulations after restart, want 1", got)
	}
	m.Stop()
	if m.IsRunning() {
		t.Error("still running after Stop")
	}
	if got := simtest.LiveFakes.Load(); got != base {
		t.Errorf("live = %d, want %d", got, base)
	}
}

func TestStartFailureLeavesManagerEmpty(t *testing.T) {
	base := simtest.LiveFakes.Load()
	m, _ := newTestManager(t, Options{})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	err := m.Start(brokenKind)
	if !errors.Is(err, simviz.ErrShaderCompilation) {
		t.Fatalf("err = %v", err)
	}
	if m.IsRunning() {
		t.Error("manager kept a simulation after a failed start")
	}
	if simtest.LiveFakes.Load() != base {
		t.Error("previous simulation not released")
	}
	if err := m.Start("no_such_kind"); !errors.Is(err, simviz.ErrInvalidSetting) {
		t.Errorf("unknown kind err = %v", err)
	}
}

func TestRememberedSettings(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateSetting("rate", 0.2); err != nil {
		t.Fatal(err)
	}
	m.Stop()
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	s, err := m.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if s["rate"] != 0.2 {
		t.Errorf("rate = %v, want remembered 0.2", s["rate"])
	}
}

func TestSettingsRouting(t *testing.T) {
	m, _ := newTestManager(t, Options{Seed: 9})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateSetting("rate", 7); err != nil {
		t.Fatal(err)
	}
	if f := active(t, m); f.Config.Rate != 1 {
		t.Errorf("rate = %v, want clamped 1", f.Config.Rate)
	}
	if err := m.UpdateSetting("missing", 1); !errors.Is(err, simviz.ErrInvalidSetting) {
		t.Errorf("err = %v", err)
	}
	if err := m.ApplySettings(map[string]any{"rate": 0.3, "label": "x"}); err != nil {
		t.Fatal(err)
	}
	if f := active(t, m); f.Config != (simtest.FakeSettings{Rate: 0.3, Label: "x"}) {
		t.Errorf("settings = %+v", f.Config)
	}
	if err := m.RandomizeSettings(); err != nil {
		t.Fatal(err)
	}
	if r := active(t, m).Config.Rate; r < 0 || r > 1 {
		t.Errorf("randomized rate %v", r)
	}
	if err := m.HandleMouse(0.25, -0.5, 2); err != nil {
		t.Fatal(err)
	}
	if f := active(t, m); f.Pressed != 2 || f.Cursor != [2]float32{0.25, -0.5} {
		t.Errorf("mouse not routed: %+v", f)
	}
	if err := m.HandleCursor(0.1, 0.2); err != nil {
		t.Fatal(err)
	}
	if err := m.HandleMouseRelease(2); err != nil {
		t.Fatal(err)
	}
	if f := active(t, m); f.Pressed != -1 || f.Cursor != [2]float32{0.1, 0.2} {
		t.Errorf("after release: %+v", f)
	}
	visible, err := m.ToggleGUI()
	if err != nil || visible {
		t.Errorf("ToggleGUI = %v, %v", visible, err)
	}
}

func TestCameraRouting(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	if err := m.Zoom(1); err != nil {
		t.Fatal(err)
	}
	if err := m.Pan(0.5, 0); err != nil {
		t.Fatal(err)
	}
	cs, err := m.CameraState()
	if err != nil {
		t.Fatal(err)
	}
	if cs.TargetZoom <= 1 || cs.TargetPosition[0] == 0 {
		t.Errorf("camera = %+v", cs)
	}
	if err := m.ResetCamera(); err != nil {
		t.Fatal(err)
	}
	if cs, _ = m.CameraState(); cs.TargetZoom != 1 || cs.TargetPosition != [2]float64{} {
		t.Errorf("after reset = %+v", cs)
	}
}

func TestPresets(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateSetting("rate", 0.9); err != nil {
		t.Fatal(err)
	}
	if err := m.SavePreset("Fast", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.SavePreset("Named", map[string]any{"label": "named"}); err != nil {
		t.Fatal(err)
	}
	names, err := m.ListPresets()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"user/Fast", "user/Named"}) {
		t.Errorf("ListPresets = %v", names)
	}

	// A partial preset merges over the defaults, not the current values.
	if err := m.ApplyPreset("user/Named"); err != nil {
		t.Fatal(err)
	}
	if f := active(t, m); f.Config != (simtest.FakeSettings{Rate: 0.5, Label: "named"}) {
		t.Errorf("after Named: %+v", f.Config)
	}
	if err := m.ApplyPreset("fast"); err != nil {
		t.Fatal(err)
	}
	if f := active(t, m); f.Config.Rate != 0.9 {
		t.Errorf("after Fast: %+v", f.Config)
	}
	if err := m.ApplyPreset("Missing"); !errors.Is(err, simviz.ErrPresetNotFound) {
		t.Errorf("err = %v", err)
	}
	if err := m.DeletePreset("user/Fast"); err != nil {
		t.Fatal(err)
	}
	if names, _ = m.ListPresets(); !slices.Equal(names, []string{"user/Named"}) {
		t.Errorf("after delete: %v", names)
	}
}

// Reversing the scheme moves the last red entry to the front.
func TestReverseColorScheme(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	before := slices.Clone(active(t, m).LUT)
	if len(before) != lut.BufferSize {
		t.Fatalf("LUT upload of %d bytes", len(before))
	}
	if err := m.ReverseColorScheme(); err != nil {
		t.Fatal(err)
	}
	red := func(data []byte, i int) uint32 { return binary.LittleEndian.Uint32(data[4*i:]) }
	after := active(t, m).LUT
	if red(after, 0) != red(before, 255) || red(after, 255) != red(before, 0) {
		t.Errorf("red[0] = %d want %d, red[255] = %d want %d",
			red(after, 0), red(before, 255), red(after, 255), red(before, 0))
	}
	if _, rev := m.ColorScheme(); !rev {
		t.Error("manager lost the reversal flag")
	}
	if err := m.ReverseColorScheme(); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(active(t, m).LUT, before) {
		t.Error("reverse twice is not the identity")
	}
}

func TestApplyColorScheme(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	names := m.ListColorSchemes()
	var other string
	for _, n := range names {
		if n != lut.DefaultName {
			other = n
			break
		}
	}
	if err := m.ApplyColorScheme(other); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateState("color_scheme_reversed", true); err != nil {
		t.Fatal(err)
	}
	if f := active(t, m); f.Scheme.Name != other || !f.Reversed {
		t.Errorf("scheme = %q reversed=%v", f.Scheme.Name, f.Reversed)
	}
	if err := m.ApplyColorScheme("Nope"); !errors.Is(err, simviz.ErrColorSchemeNotFound) {
		t.Errorf("err = %v", err)
	}

	// The scheme carries over to the next start.
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	if f := active(t, m); f.Scheme.Name != other || !f.Reversed {
		t.Errorf("restart scheme = %q reversed=%v", f.Scheme.Name, f.Reversed)
	}
}

// Resize bursts reconfigure the target at once and reach the simulation
// once, after the quiet window.
func TestResizeDebounce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	m, target := newTestManager(t, Options{Now: clock.Now})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	for _, sz := range [][2]uint32{{400, 300}, {500, 350}, {640, 480}} {
		if err := m.Resize(sz[0], sz[1]); err != nil {
			t.Fatal(err)
		}
		clock.Advance(100 * time.Millisecond)
	}
	if len(target.reconfigured) != 3 {
		t.Errorf("reconfigured %v", target.reconfigured)
	}
	if _, err := m.Tick(0.016); err != nil {
		t.Fatal(err)
	}
	if r := active(t, m).Resizes; len(r) != 0 {
		t.Fatalf("resized inside the window: %v", r)
	}
	clock.Advance(450 * time.Millisecond)
	for range 3 {
		if _, err := m.Tick(0.016); err != nil {
			t.Fatal(err)
		}
	}
	if r := active(t, m).Resizes; !slices.Equal(r, [][2]uint32{{640, 480}}) {
		t.Errorf("resizes = %v, want one 640x480", r)
	}
	if err := m.Resize(0, 0); err != nil {
		t.Fatal(err)
	}
	if len(target.reconfigured) != 3 {
		t.Error("zero size reconfigured the target")
	}
}

func TestTickSkipsTransientErrors(t *testing.T) {
	m, target := newTestManager(t, Options{Metrics: NewMetrics()})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	target.failures = []error{simviz.ErrSurfaceLost, simviz.ErrTimeout}
	for i := range 2 {
		ok, err := m.Tick(0.016)
		if !ok || !simviz.KindOf(err).Transient() {
			t.Fatalf("tick %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, err := m.Tick(0.016); !ok || err != nil {
		t.Fatalf("tick after recovery: %v", err)
	}
	if target.recovers != 2 || target.presented != 1 {
		t.Errorf("recovers=%d presented=%d", target.recovers, target.presented)
	}
	if active(t, m).Frames != 1 {
		t.Error("skipped frames reached the simulation")
	}
	mt := m.Metrics()
	if got := testutil.ToFloat64(mt.SkippedFrames.WithLabelValues("SurfaceLost")); got != 1 {
		t.Errorf("skipped SurfaceLost = %v", got)
	}
	if got := testutil.ToFloat64(mt.Frames); got != 1 {
		t.Errorf("frames = %v", got)
	}
}

func TestMetrics(t *testing.T) {
	m, _ := newTestManager(t, Options{Metrics: NewMetrics()})
	_ = m.Pan(1, 1)
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	_ = m.UpdateSetting("bogus", 1)
	mt := m.Metrics()
	if got := testutil.ToFloat64(mt.Starts.WithLabelValues(fakeKind)); got != 1 {
		t.Errorf("starts = %v", got)
	}
	if got := testutil.ToFloat64(mt.Errors.WithLabelValues("NoActiveSimulation")); got != 1 {
		t.Errorf("NoActiveSimulation errors = %v", got)
	}
	if got := testutil.ToFloat64(mt.Errors.WithLabelValues("InvalidSetting")); got != 1 {
		t.Errorf("InvalidSetting errors = %v", got)
	}

	path := filepath.Join(t.TempDir(), "simviz.prom")
	if err := mt.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `simviz_simulation_starts_total{kind="test_fake"} 1`) {
		t.Errorf("textfile:\n%s", data)
	}
}
