package sim

import (
	"image/color"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/camera"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/wgpu"
)

// Cursor is the pointer state shared by every simulation.
type Cursor struct {
	X        float32 `mapstructure:"x" range:"-1,1"`
	Y        float32 `mapstructure:"y" range:"-1,1"`
	Size     float32 `mapstructure:"size" range:"0.001,1"`
	Strength float32 `mapstructure:"strength" range:"0,10"`
	Active   bool
	Button   int
}

// DefaultCursor is the cursor a simulation starts with.
var DefaultCursor = Cursor{Size: 0.08, Strength: 1, Button: -1}

// Base holds the machinery common to all simulations. Concrete simulations
// embed it and override what they need.
type Base struct {
	kind   string
	GPU    *gpu.Context
	Owner  *gpu.Owner
	Camera *camera.Camera
	RNG    *RNG

	CameraBuf     *wgpu.Buffer
	LUTBuf        *wgpu.Buffer
	BackgroundBuf *wgpu.Buffer

	Schemes    *lut.Store
	Scheme     *lut.ColorScheme
	Reversed   bool
	Background color.RGBA

	Cursor Cursor
	Paused bool

	Width, Height uint32

	gui bool
}

// backgroundUniform is vec4<f32> in shaders.
type backgroundUniform struct {
	Color [4]float32
}

// NewBase allocates the shared buffers and uploads the color scheme.
func NewBase(kind string, env Env) (*Base, error) {
	w, h := env.Width, env.Height
	if w == 0 || h == 0 {
		cfg := env.GPU.SurfaceConfig()
		w, h = cfg.Width, cfg.Height
	}
	b := &Base{
		kind:    kind,
		GPU:     env.GPU,
		Owner:   env.GPU.NewOwner(),
		Camera:  camera.New(float64(w), float64(h)),
		RNG:     NewRNG(env.Seed),
		Cursor:  DefaultCursor,
		Schemes: env.Schemes,
		Width:   w,
		Height:  h,
		gui:     true,
	}
	if b.Schemes == nil {
		b.Schemes = lut.NewStore()
	}
	var err error
	if b.CameraBuf, err = b.Owner.NewUniform(kind+" camera", b.Camera.Uniform()); err != nil {
		b.Release()
		return nil, err
	}
	if b.LUTBuf, err = b.Owner.NewStorage(kind+" lut", lut.BufferSize, nil, 0); err != nil {
		b.Release()
		return nil, err
	}
	if b.BackgroundBuf, err = b.Owner.NewUniform(kind+" background", backgroundUniform{}); err != nil {
		b.Release()
		return nil, err
	}
	scheme := env.Scheme
	if scheme == nil {
		if scheme, err = b.Schemes.Get(lut.DefaultName); err != nil {
			b.Release()
			return nil, err
		}
	}
	if err := b.UpdateColorScheme(scheme, env.Reversed); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

// Kind returns the registry name.
func (b *Base) Kind() string { return b.kind }

// Size returns the simulation resolution.
func (b *Base) Size() (uint32, uint32) { return b.Width, b.Height }

// Writer returns the queue as a buffer writer.
func (b *Base) Writer() gpu.BufferWriter { return b.GPU.Queue() }

// Write uploads a POD value at offset 0 of buf.
func (b *Base) Write(buf *wgpu.Buffer, v any) error {
	return gpu.WriteStruct(b.Writer(), buf, v)
}

// UpdateColorScheme uploads the palette and the matching background.
func (b *Base) UpdateColorScheme(scheme *lut.ColorScheme, reversed bool) error {
	if err := lut.Apply(scheme, reversed, b.Writer(), b.LUTBuf); err != nil {
		return err
	}
	b.Scheme, b.Reversed = scheme, reversed
	b.Background = lut.Background(scheme, reversed)
	c := gpu.ClearColor(b.Background)
	return b.Write(b.BackgroundBuf, backgroundUniform{Color: [4]float32{
		float32(c.R), float32(c.G), float32(c.B), float32(c.A),
	}})
}

// ClearColor returns the background as a render pass clear value.
func (b *Base) ClearColor() *wgpu.Color {
	c := gpu.ClearColor(b.Background)
	return &c
}

// PrepareCamera eases the camera and uploads its uniform when it changed.
func (b *Base) PrepareCamera(dt float32) error {
	if b.Camera.Update(float64(dt)) {
		return b.Camera.Upload(b.Writer(), b.CameraBuf)
	}
	return nil
}

// PanCamera moves the camera target.
func (b *Base) PanCamera(dx, dy float32) { b.Camera.Pan(float64(dx), float64(dy)) }

// ZoomCamera zooms around the camera position.
func (b *Base) ZoomCamera(delta float32) { b.Camera.Zoom(float64(delta)) }

// ZoomCameraToCursor zooms keeping the world point (cx, cy) at the same
// place on screen.
func (b *Base) ZoomCameraToCursor(delta, cx, cy float32) {
	b.Camera.ZoomToCursor(float64(delta), float64(cx), float64(cy))
}

// ResetCamera returns the camera to the origin.
func (b *Base) ResetCamera() { b.Camera.Reset() }

// CameraState returns the camera snapshot.
func (b *Base) CameraState() camera.State { return b.Camera.State() }

// ToggleGUI flips the overlay flag.
func (b *Base) ToggleGUI() { b.gui = !b.gui }

// GUIVisible reports the overlay flag.
func (b *Base) GUIVisible() bool { return b.gui }

// SetViewport updates the camera aspect after a surface resize.
func (b *Base) SetViewport(w, h uint32) {
	b.Camera.SetViewport(float64(w), float64(h))
}

// AcceptResize reports whether a resize to (w, h) should reallocate.
func (b *Base) AcceptResize(w, h uint32) bool {
	if w == 0 || h == 0 {
		return false
	}
	return SignificantResize(b.Width, b.Height, w, h)
}

// UpdateCommonState applies the state keys every simulation understands.
// It reports whether name was handled.
func (b *Base) UpdateCommonState(name string, value any) (bool, error) {
	switch name {
	case "cursor_size":
		return true, SetField(&b.Cursor, "size", value)
	case "cursor_strength":
		return true, SetField(&b.Cursor, "strength", value)
	case "cursor_position":
		var v struct {
			P [2]float32 `mapstructure:"p"`
		}
		if err := SetField(&v, "p", value); err != nil {
			return true, err
		}
		b.Cursor.X, b.Cursor.Y = v.P[0], v.P[1]
		return true, nil
	case "gui_visible":
		var v struct {
			Visible bool `mapstructure:"visible"`
		}
		if err := SetField(&v, "visible", value); err != nil {
			return true, err
		}
		b.gui = v.Visible
		return true, nil
	case "paused":
		var v struct {
			Paused bool `mapstructure:"paused"`
		}
		if err := SetField(&v, "paused", value); err != nil {
			return true, err
		}
		b.Paused = v.Paused
		return true, nil
	case "color_scheme_reversed":
		var v struct {
			Reversed bool `mapstructure:"reversed"`
		}
		if err := SetField(&v, "reversed", value); err != nil {
			return true, err
		}
		return true, b.UpdateColorScheme(b.Scheme, v.Reversed)
	case "current_color_scheme":
		s, ok := value.(string)
		if !ok {
			return true, simviz.InvalidSetting(name, "want a scheme name")
		}
		scheme, err := b.Schemes.Get(s)
		if err != nil {
			return true, err
		}
		return true, b.UpdateColorScheme(scheme, b.Reversed)
	}
	return false, nil
}

// CommonState returns the shared runtime state keys.
func (b *Base) CommonState() ValueTree {
	name := ""
	if b.Scheme != nil {
		name = b.Scheme.Name
	}
	return ValueTree{
		"current_color_scheme":  name,
		"color_scheme_reversed": b.Reversed,
		"cursor_size":           b.Cursor.Size,
		"cursor_strength":       b.Cursor.Strength,
		"cursor_position":       [2]float32{b.Cursor.X, b.Cursor.Y},
		"cursor_active":         b.Cursor.Active,
		"gui_visible":           b.gui,
		"paused":                b.Paused,
		"width":                 b.Width,
		"height":                b.Height,
	}
}

// PressCursor records a mouse press at world (x, y).
func (b *Base) PressCursor(x, y float32, button int) {
	b.Cursor.X, b.Cursor.Y = x, y
	b.Cursor.Active = true
	b.Cursor.Button = button
}

// ReleaseCursor ends the current interaction.
func (b *Base) ReleaseCursor() {
	b.Cursor.Active = false
	b.Cursor.Button = -1
}

// Mode returns the interaction mode of the pressed button.
func (b *Base) Mode() uint32 {
	if !b.Cursor.Active {
		return ModeNone
	}
	return ModeFor(b.Cursor.Button)
}

// Encoder opens the single command encoder of a frame.
func (b *Base) Encoder() (*wgpu.CommandEncoder, error) {
	return b.GPU.CreateCommandEncoder(b.kind + " frame")
}

// Submit finishes and submits the frame encoder.
func (b *Base) Submit(enc *wgpu.CommandEncoder) error {
	return b.GPU.FinishAndSubmit(enc)
}

// Release frees every resource created through the owner.
func (b *Base) Release() {
	if b.Owner != nil {
		b.Owner.ReleaseAll()
	}
}
