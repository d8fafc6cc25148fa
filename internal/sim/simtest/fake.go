package simtest

import (
	"sync/atomic"

	"github.com/gogpu/wgpu"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/camera"
	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/sim"
)

// LiveFakes counts Fake simulations built and not yet released.
var LiveFakes atomic.Int64

// FakeSettings are the settings of a Fake.
type FakeSettings struct {
	Rate  float32 `mapstructure:"rate" range:"0,1" rand:"uniform"`
	Label string  `mapstructure:"label"`
}

// DefaultFakeSettings returns the settings a Fake starts with.
func DefaultFakeSettings() FakeSettings { return FakeSettings{Rate: 0.5, Label: "default"} }

// RegisterFake registers a GPU-free simulation under kind. Registering an
// existing kind is a no-op.
func RegisterFake(kind string) {
	if _, err := sim.Lookup(kind); err == nil {
		return
	}
	sim.Register(sim.Descriptor{
		Kind: kind,
		New: func(env sim.Env) (sim.Simulation, error) {
			return NewFake(kind, env)
		},
		Defaults: func() sim.ValueTree { return sim.EncodeSettings(DefaultFakeSettings()) },
	})
}

var _ sim.Simulation = (*Fake)(nil)

// Fake is a simulation that records the calls it receives. It never
// touches the GPU.
type Fake struct {
	Config   FakeSettings
	Scheme   *lut.ColorScheme
	Reversed bool
	// LUT holds the last palette upload.
	LUT     []byte
	Cursor  [2]float32
	Pressed int
	W, H    uint32
	Frames  int
	Resizes [][2]uint32

	kind     string
	cam      *camera.Camera
	rng      *sim.RNG
	gui      bool
	released bool
}

// NewFake builds a Fake sized from env.
func NewFake(kind string, env sim.Env) (*Fake, error) {
	f := &Fake{
		Config:  DefaultFakeSettings(),
		Pressed: -1,
		W:       env.Width,
		H:       env.Height,
		kind:    kind,
		cam:     camera.New(float64(env.Width), float64(env.Height)),
		rng:     sim.NewRNG(env.Seed),
		gui:     true,
	}
	scheme := env.Scheme
	if scheme == nil {
		var err error
		if scheme, err = lut.NewStore().Get(lut.DefaultName); err != nil {
			return nil, err
		}
	}
	if err := f.UpdateColorScheme(scheme, env.Reversed); err != nil {
		return nil, err
	}
	LiveFakes.Add(1)
	return f, nil
}

// WriteBuffer records a LUT upload.
func (f *Fake) WriteBuffer(_ *wgpu.Buffer, _ uint64, data []byte) error {
	f.LUT = append(f.LUT[:0], data...)
	return nil
}

func (f *Fake) Kind() string { return f.kind }

func (f *Fake) RenderFrame(*wgpu.TextureView, float32) error {
	f.Frames++
	return nil
}

func (f *Fake) RenderFramePaused(*wgpu.TextureView) error { return nil }

func (f *Fake) Resize(w, h uint32) error {
	f.Resizes = append(f.Resizes, [2]uint32{w, h})
	f.W, f.H = w, h
	f.cam.SetViewport(float64(w), float64(h))
	return nil
}

func (f *Fake) Size() (uint32, uint32) { return f.W, f.H }

func (f *Fake) UpdateSetting(name string, value any) error {
	return sim.SetField(&f.Config, name, value)
}

func (f *Fake) UpdateState(name string, value any) error {
	if name == "cursor_position" {
		var v struct {
			P [2]float32 `mapstructure:"p"`
		}
		if err := sim.SetField(&v, "p", value); err != nil {
			return err
		}
		f.Cursor = v.P
		return nil
	}
	return simviz.InvalidSetting(name, "unknown state key")
}

func (f *Fake) Settings() sim.ValueTree { return sim.EncodeSettings(f.Config) }

func (f *Fake) State() sim.ValueTree {
	return sim.ValueTree{"frames": f.Frames, "cursor_position": f.Cursor}
}

func (f *Fake) ApplySettings(tree sim.ValueTree) error {
	return sim.DecodeSettings(tree, &f.Config)
}

func (f *Fake) ResetRuntimeState() error {
	f.Frames = 0
	return nil
}

func (f *Fake) RandomizeSettings() error {
	sim.Randomize(&f.Config, f.rng)
	return nil
}

func (f *Fake) HandleMouse(x, y float32, button int) error {
	f.Cursor = [2]float32{x, y}
	f.Pressed = button
	return nil
}

func (f *Fake) HandleMouseRelease(int) error {
	f.Pressed = -1
	return nil
}

func (f *Fake) PanCamera(dx, dy float32) { f.cam.Pan(float64(dx), float64(dy)) }
func (f *Fake) ZoomCamera(d float32)     { f.cam.Zoom(float64(d)) }

func (f *Fake) ZoomCameraToCursor(d, cx, cy float32) {
	f.cam.ZoomToCursor(float64(d), float64(cx), float64(cy))
}

func (f *Fake) ResetCamera()              { f.cam.Reset() }
func (f *Fake) CameraState() camera.State { return f.cam.State() }
func (f *Fake) ToggleGUI()                { f.gui = !f.gui }
func (f *Fake) GUIVisible() bool          { return f.gui }

func (f *Fake) UpdateColorScheme(scheme *lut.ColorScheme, reversed bool) error {
	if err := lut.Apply(scheme, reversed, f, nil); err != nil {
		return err
	}
	f.Scheme, f.Reversed = scheme, reversed
	return nil
}

func (f *Fake) Release() {
	if !f.released {
		f.released = true
		LiveFakes.Add(-1)
	}
}
