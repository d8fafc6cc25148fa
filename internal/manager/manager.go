// Package manager owns the active simulation and the render loop that
// drives it.
//
// Every operation takes the manager lock and then the render target lock,
// in that order, so host commands and render ticks never interleave inside
// a simulation.
package manager

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/wgpu"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/camera"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/preset"
	"github.com/gogpu/simviz/internal/sim"
)

// Frame is one acquired presentation target.
type Frame interface {
	View() *wgpu.TextureView
	Present() error
	Discard()
}

// Target is the surface the manager draws into. Its lock guards device
// use and is always taken after the manager lock.
type Target interface {
	sync.Locker
	AcquireFrame() (Frame, error)
	Reconfigure(width, height uint32) error
	Recover() error
	Size() (width, height uint32)
}

// SurfaceTarget adapts a GPU context to Target.
func SurfaceTarget(c *gpu.Context) Target { return surfaceTarget{c} }

type surfaceTarget struct{ c *gpu.Context }

func (t surfaceTarget) Lock()   { t.c.Lock() }
func (t surfaceTarget) Unlock() { t.c.Unlock() }

func (t surfaceTarget) AcquireFrame() (Frame, error) {
	f, err := t.c.AcquireFrame()
	if err != nil {
		return nil, err
	}
	return surfaceFrame{f}, nil
}

func (t surfaceTarget) Reconfigure(w, h uint32) error { return t.c.Reconfigure(w, h) }
func (t surfaceTarget) Recover() error                { return t.c.Recover() }

func (t surfaceTarget) Size() (uint32, uint32) {
	cfg := t.c.SurfaceConfig()
	return cfg.Width, cfg.Height
}

type surfaceFrame struct{ f *gpu.Frame }

func (f surfaceFrame) View() *wgpu.TextureView { return f.f.View }
func (f surfaceFrame) Present() error          { return f.f.Present() }
func (f surfaceFrame) Discard()                { f.f.Discard() }

// Options configures a Manager.
type Options struct {
	// GPU is handed to simulations. It may be nil only when every kind
	// started ignores it, as in tests.
	GPU *gpu.Context

	// Target defaults to SurfaceTarget(GPU).
	Target Target

	// Presets defaults to an in-memory store with the built-ins.
	Presets *preset.Store

	// Schemes defaults to the built-in color schemes.
	Schemes *lut.Store

	// Scheme is the initial color scheme name; empty selects lut.DefaultName.
	Scheme string

	Seed    uint64
	Metrics *Metrics

	// Now is the monotonic clock for resize debouncing and fps reports.
	Now func() time.Time
}

// Manager owns at most one running simulation.
type Manager struct {
	mu sync.Mutex

	gpu     *gpu.Context
	target  Target
	presets *preset.Store
	schemes *lut.Store
	seed    uint64
	metrics *Metrics
	now     func() time.Time

	active     sim.Simulation
	scheme     *lut.ColorScheme
	reversed   bool
	remembered map[string]sim.ValueTree
	debounce   *sim.Debouncer

	running    atomic.Bool
	loopDone   chan struct{}
	fpsLimited atomic.Bool
	fpsTarget  atomic.Uint32
}

// New creates an empty manager.
func New(opts Options) (*Manager, error) {
	m := &Manager{
		gpu:        opts.GPU,
		target:     opts.Target,
		presets:    opts.Presets,
		schemes:    opts.Schemes,
		seed:       opts.Seed,
		metrics:    opts.Metrics,
		now:        opts.Now,
		remembered: make(map[string]sim.ValueTree),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.target == nil && m.gpu != nil {
		m.target = SurfaceTarget(m.gpu)
	}
	if m.schemes == nil {
		m.schemes = lut.NewStore()
	}
	if m.presets == nil {
		s, err := preset.NewStore("")
		if err != nil {
			return nil, err
		}
		m.presets = s
	}
	name := opts.Scheme
	if name == "" {
		name = lut.DefaultName
	}
	scheme, err := m.schemes.Get(name)
	if err != nil {
		return nil, err
	}
	m.scheme = scheme
	m.debounce = sim.NewDebouncer(sim.ResizeWindow, m.now)
	m.fpsTarget.Store(60)
	return m, nil
}

// Metrics returns the collectors, or nil when metrics are off.
func (m *Manager) Metrics() *Metrics { return m.metrics }

func noActive() error {
	return simviz.Errorf(simviz.KindNoActiveSimulation, "no simulation is running")
}

func (m *Manager) fail(err error) error {
	m.metrics.failed(err)
	return err
}

// lockTarget takes the target lock when there is one.
func (m *Manager) lockTarget() func() {
	if m.target == nil {
		return func() {}
	}
	m.target.Lock()
	return m.target.Unlock
}

// with runs fn on the active simulation under both locks.
func (m *Manager) with(fn func(s sim.Simulation) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return m.fail(noActive())
	}
	unlock := m.lockTarget()
	defer unlock()
	return m.fail(fn(m.active))
}

// Start replaces the active simulation with a new one of kind. Settings
// remembered from the last run of kind are reapplied. On failure the
// manager is left empty.
func (m *Manager) Start(kind string) error {
	d, err := sim.Lookup(kind)
	if err != nil {
		return m.fail(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	unlock := m.lockTarget()
	defer unlock()

	m.stopLocked()
	env := sim.Env{
		GPU:      m.gpu,
		Schemes:  m.schemes,
		Scheme:   m.scheme,
		Reversed: m.reversed,
		Seed:     m.seed,
	}
	if m.target != nil {
		env.Width, env.Height = m.target.Size()
	}
	s, err := d.New(env)
	if err != nil {
		simviz.Logger().Error("manager: start failed", "kind", kind, "err", err)
		return m.fail(err)
	}
	if tree, ok := m.remembered[kind]; ok {
		if err := s.ApplySettings(tree); err != nil {
			simviz.Logger().Warn("manager: remembered settings rejected", "kind", kind, "err", err)
		}
	}
	m.active = s
	m.metrics.started(kind)
	simviz.Logger().Info("manager: simulation started", "kind", kind)
	return nil
}

// Stop releases the active simulation and remembers its settings. It is a
// no-op on an empty manager.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	unlock := m.lockTarget()
	defer unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.active == nil {
		return
	}
	kind := m.active.Kind()
	m.remembered[kind] = m.active.Settings()
	m.active.Release()
	m.active = nil
	simviz.Logger().Info("manager: simulation stopped", "kind", kind)
}

// IsRunning reports whether a simulation is active.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// Kind returns the active kind, or "" when empty.
func (m *Manager) Kind() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.Kind()
}

// Kinds lists the kinds that can be started.
func (m *Manager) Kinds() []string { return sim.Kinds() }

// Render advances the active simulation by dt and draws into view.
func (m *Manager) Render(view *wgpu.TextureView, dt float32) error {
	return m.with(func(s sim.Simulation) error {
		return s.RenderFrame(view, sim.ClampDelta(dt))
	})
}

// Resize reconfigures the target at once and hands the size to the
// simulation after the debounce window.
func (m *Manager) Resize(width, height uint32) error {
	return m.with(func(sim.Simulation) error {
		if width == 0 || height == 0 {
			return nil
		}
		if m.target != nil {
			if err := m.target.Reconfigure(width, height); err != nil {
				return err
			}
		}
		m.debounce.Push(width, height)
		return nil
	})
}

// flushResizeLocked applies a settled resize. Callers hold both locks.
func (m *Manager) flushResizeLocked() {
	w, h, ok := m.debounce.Ready()
	if !ok {
		return
	}
	if err := m.active.Resize(w, h); err != nil {
		simviz.Logger().Warn("manager: resize failed", "width", w, "height", h, "err", err)
		m.metrics.failed(err)
	}
}

// UpdateSetting changes one setting of the active simulation.
func (m *Manager) UpdateSetting(name string, value any) error {
	return m.with(func(s sim.Simulation) error { return s.UpdateSetting(name, value) })
}

// UpdateState changes one runtime state key. Color scheme keys also move
// the manager's scheme so it carries over to the next start.
func (m *Manager) UpdateState(name string, value any) error {
	switch name {
	case "current_color_scheme":
		s, ok := value.(string)
		if !ok {
			return m.fail(simviz.InvalidSetting(name, "want a scheme name"))
		}
		return m.ApplyColorScheme(s)
	case "color_scheme_reversed":
		v, ok := value.(bool)
		if !ok {
			return m.fail(simviz.InvalidSetting(name, "want a bool"))
		}
		return m.with(func(s sim.Simulation) error {
			return m.setSchemeLocked(s, m.scheme, v)
		})
	}
	return m.with(func(s sim.Simulation) error { return s.UpdateState(name, value) })
}

// ApplySettings replaces the whole settings tree atomically.
func (m *Manager) ApplySettings(tree sim.ValueTree) error {
	return m.with(func(s sim.Simulation) error { return s.ApplySettings(tree) })
}

// RandomizeSettings draws new settings within their declared ranges.
func (m *Manager) RandomizeSettings() error {
	return m.with(func(s sim.Simulation) error { return s.RandomizeSettings() })
}

// ResetSimulation reseeds the runtime state and keeps the settings.
func (m *Manager) ResetSimulation() error {
	return m.with(func(s sim.Simulation) error { return s.ResetRuntimeState() })
}

// Settings returns the active settings tree.
func (m *Manager) Settings() (sim.ValueTree, error) {
	var out sim.ValueTree
	err := m.with(func(s sim.Simulation) error {
		out = s.Settings()
		return nil
	})
	return out, err
}

// State returns the active runtime state.
func (m *Manager) State() (sim.ValueTree, error) {
	var out sim.ValueTree
	err := m.with(func(s sim.Simulation) error {
		out = s.State()
		return nil
	})
	return out, err
}

// ApplyPreset merges the named preset over the kind's defaults and applies
// the result.
func (m *Manager) ApplyPreset(name string) error {
	return m.with(func(s sim.Simulation) error {
		rec, err := m.presets.Get(s.Kind(), name)
		if err != nil {
			return err
		}
		d, err := sim.Lookup(s.Kind())
		if err != nil {
			return err
		}
		tree := d.Defaults()
		maps.Copy(tree, rec.Settings)
		if err := s.ApplySettings(tree); err != nil {
			return err
		}
		simviz.Logger().Info("manager: preset applied", "kind", s.Kind(), "preset", rec.Name)
		return nil
	})
}

// SavePreset stores settings as a user preset of the active kind. Nil
// settings save the current ones.
func (m *Manager) SavePreset(name string, settings sim.ValueTree) error {
	return m.with(func(s sim.Simulation) error {
		if settings == nil {
			settings = s.Settings()
		}
		return m.presets.Save(s.Kind(), name, settings)
	})
}

// DeletePreset removes a user preset of the active kind.
func (m *Manager) DeletePreset(name string) error {
	return m.with(func(s sim.Simulation) error { return m.presets.Delete(s.Kind(), name) })
}

// ListPresets lists the presets of the active kind.
func (m *Manager) ListPresets() ([]string, error) {
	var out []string
	err := m.with(func(s sim.Simulation) error {
		out = m.presets.List(s.Kind())
		return nil
	})
	return out, err
}

// ApplyColorScheme switches the palette and keeps the reversal flag.
func (m *Manager) ApplyColorScheme(name string) error {
	scheme, err := m.schemes.Get(name)
	if err != nil {
		return m.fail(err)
	}
	return m.with(func(s sim.Simulation) error {
		return m.setSchemeLocked(s, scheme, m.reversed)
	})
}

// ReverseColorScheme flips the palette direction.
func (m *Manager) ReverseColorScheme() error {
	return m.with(func(s sim.Simulation) error {
		return m.setSchemeLocked(s, m.scheme, !m.reversed)
	})
}

func (m *Manager) setSchemeLocked(s sim.Simulation, scheme *lut.ColorScheme, reversed bool) error {
	if err := s.UpdateColorScheme(scheme, reversed); err != nil {
		return err
	}
	m.scheme, m.reversed = scheme, reversed
	return nil
}

// ListColorSchemes lists the scheme names. It works without a simulation.
func (m *Manager) ListColorSchemes() []string { return m.schemes.Names() }

// ColorScheme returns the current scheme name and direction.
func (m *Manager) ColorScheme() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheme.Name, m.reversed
}

// HandleMouse starts an interaction at world (x, y).
func (m *Manager) HandleMouse(x, y float32, button int) error {
	return m.with(func(s sim.Simulation) error { return s.HandleMouse(x, y, button) })
}

// HandleMouseRelease ends the interaction of button.
func (m *Manager) HandleMouseRelease(button int) error {
	return m.with(func(s sim.Simulation) error { return s.HandleMouseRelease(button) })
}

// HandleCursor moves the cursor to world (x, y) without pressing.
func (m *Manager) HandleCursor(x, y float32) error {
	return m.with(func(s sim.Simulation) error {
		return s.UpdateState("cursor_position", [2]float32{x, y})
	})
}

// Pan moves the camera.
func (m *Manager) Pan(dx, dy float32) error {
	return m.with(func(s sim.Simulation) error {
		s.PanCamera(dx, dy)
		return nil
	})
}

// Zoom zooms around the camera position.
func (m *Manager) Zoom(delta float32) error {
	return m.with(func(s sim.Simulation) error {
		s.ZoomCamera(delta)
		return nil
	})
}

// ZoomToCursor zooms keeping the world point (cx, cy) fixed under the
// cursor.
func (m *Manager) ZoomToCursor(delta, cx, cy float32) error {
	return m.with(func(s sim.Simulation) error {
		s.ZoomCameraToCursor(delta, cx, cy)
		return nil
	})
}

// ResetCamera returns the camera to the origin at zoom 1.
func (m *Manager) ResetCamera() error {
	return m.with(func(s sim.Simulation) error {
		s.ResetCamera()
		return nil
	})
}

// CameraState returns the camera snapshot.
func (m *Manager) CameraState() (camera.State, error) {
	var out camera.State
	err := m.with(func(s sim.Simulation) error {
		out = s.CameraState()
		return nil
	})
	return out, err
}

// ToggleGUI flips the overlay flag and returns the new value.
func (m *Manager) ToggleGUI() (bool, error) {
	var visible bool
	err := m.with(func(s sim.Simulation) error {
		s.ToggleGUI()
		visible = s.GUIVisible()
		return nil
	})
	return visible, err
}

// Snapshot reads the offscreen target back.
func (m *Manager) Snapshot(ctx context.Context) (*gpu.Image, error) {
	var img *gpu.Image
	err := m.with(func(sim.Simulation) error {
		if m.gpu == nil {
			return simviz.Errorf(simviz.KindInternal, "snapshot needs a GPU context")
		}
		var err error
		img, err = m.gpu.Snapshot(ctx)
		return err
	})
	return img, err
}

// Close stops the loop and the simulation.
func (m *Manager) Close() {
	m.StopRenderLoop()
	m.Stop()
}
