// Package sim defines the contract every simulation satisfies and the
// machinery they share: camera and LUT state, settings reflection, resize
// policy, the seeded RNG and the infinite tiling renderer.
package sim

import (
	"image"

	"github.com/gogpu/simviz/internal/camera"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/wgpu"
)

// ValueTree is the JSON-shaped form of settings and state.
type ValueTree = map[string]any

// MaxDeltaTime bounds the frame time seen by a simulation step, in seconds.
const MaxDeltaTime = 0.1

// Mouse buttons as sent by the host.
const (
	ButtonLeft   = 0
	ButtonMiddle = 1
	ButtonRight  = 2
)

// Interaction modes stored in params uniforms.
const (
	ModeNone uint32 = iota
	ModeSeed
	ModeGrab
	ModeRepel
)

// ModeFor maps a button to the default interaction mode: left seeds or
// attracts, middle grabs, right repels or erases.
func ModeFor(button int) uint32 {
	switch button {
	case ButtonLeft:
		return ModeSeed
	case ButtonMiddle:
		return ModeGrab
	case ButtonRight:
		return ModeRepel
	default:
		return ModeNone
	}
}

// Simulation is one running visualization. Implementations are not safe
// for concurrent use; the manager serializes every call.
type Simulation interface {
	// Kind returns the registry name, e.g. "gray_scott".
	Kind() string

	// RenderFrame advances the simulation by dt seconds and draws into view.
	RenderFrame(view *wgpu.TextureView, dt float32) error
	// RenderFramePaused draws without advancing state.
	RenderFramePaused(view *wgpu.TextureView) error
	// Resize adapts viewport-dependent resources to a new surface size.
	Resize(width, height uint32) error
	// Size returns the current simulation resolution.
	Size() (width, height uint32)

	UpdateSetting(name string, value any) error
	UpdateState(name string, value any) error
	Settings() ValueTree
	State() ValueTree
	ApplySettings(tree ValueTree) error
	ResetRuntimeState() error
	RandomizeSettings() error

	HandleMouse(x, y float32, button int) error
	HandleMouseRelease(button int) error

	PanCamera(dx, dy float32)
	ZoomCamera(delta float32)
	ZoomCameraToCursor(delta, cx, cy float32)
	ResetCamera()
	CameraState() camera.State

	ToggleGUI()
	GUIVisible() bool

	UpdateColorScheme(scheme *lut.ColorScheme, reversed bool) error

	// Release frees every GPU resource the simulation created.
	Release()
}

// Env carries what a simulation needs at construction.
type Env struct {
	GPU      *gpu.Context
	Schemes  *lut.Store
	Scheme   *lut.ColorScheme
	Reversed bool
	Width    uint32
	Height   uint32
	Seed     uint64
}

// Software is a CPU stepping path for simulations with a reference model.
type Software interface {
	Step(dt float32)
	Render(dst *image.RGBA, scheme *lut.ColorScheme, reversed bool)
}

// ClampDelta limits dt to [0, MaxDeltaTime].
func ClampDelta(dt float32) float32 {
	if dt != dt || dt < 0 {
		return 0
	}
	return min(dt, MaxDeltaTime)
}

// TexCoord converts a world position in [-1,1] to texture space [0,1].
func TexCoord(x, y float32) (float32, float32) {
	return (x + 1) / 2, (y + 1) / 2
}
