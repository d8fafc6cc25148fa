package host

import (
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/manager"
	"github.com/gogpu/simviz/internal/sim"
)

// ScrollZoom converts one scroll unit to a zoom delta.
const ScrollZoom = 0.1

// ButtonFor maps a window mouse button to the simulation button numbers.
// Extra buttons map to -1.
func ButtonFor(b gpucontext.MouseButton) int {
	switch b {
	case gpucontext.MouseButtonLeft:
		return sim.ButtonLeft
	case gpucontext.MouseButtonMiddle:
		return sim.ButtonMiddle
	case gpucontext.MouseButtonRight:
		return sim.ButtonRight
	default:
		return -1
	}
}

// Binding routes window input to a manager. Pointer positions arrive in
// window points and are mapped to world coordinates through the camera.
type Binding struct {
	m     *manager.Manager
	scale float64

	mu     sync.Mutex
	cursor [2]float64
}

// BindEvents registers callbacks on src. win supplies the scale from window
// points to surface pixels; nil means 1.
func BindEvents(src gpucontext.EventSource, win gpucontext.WindowProvider, m *manager.Manager) *Binding {
	b := &Binding{m: m, scale: 1}
	if win != nil && win.ScaleFactor() > 0 {
		b.scale = win.ScaleFactor()
	}
	src.OnMouseMove(b.move)
	src.OnMousePress(b.press)
	src.OnMouseRelease(b.release)
	src.OnScroll(b.scroll)
	src.OnResize(b.resize)
	return b
}

// world maps a window position to world coordinates. ok is false when no
// simulation is running.
func (b *Binding) world(x, y float64) (float32, float32, bool) {
	cs, err := b.m.CameraState()
	if err != nil {
		return 0, 0, false
	}
	wx, wy := cs.ScreenToWorld(x*b.scale, y*b.scale)
	return float32(wx), float32(wy), true
}

func (b *Binding) move(x, y float64) {
	b.mu.Lock()
	b.cursor = [2]float64{x, y}
	b.mu.Unlock()
	if wx, wy, ok := b.world(x, y); ok {
		b.report(b.m.HandleCursor(wx, wy))
	}
}

func (b *Binding) press(btn gpucontext.MouseButton, x, y float64) {
	button := ButtonFor(btn)
	if button < 0 {
		return
	}
	if wx, wy, ok := b.world(x, y); ok {
		b.report(b.m.HandleMouse(wx, wy, button))
	}
}

func (b *Binding) release(btn gpucontext.MouseButton, _, _ float64) {
	if button := ButtonFor(btn); button >= 0 {
		b.report(b.m.HandleMouseRelease(button))
	}
}

// scroll zooms toward the last cursor position. Scrolling down zooms out.
func (b *Binding) scroll(_, dy float64) {
	b.mu.Lock()
	c := b.cursor
	b.mu.Unlock()
	if wx, wy, ok := b.world(c[0], c[1]); ok {
		b.report(b.m.ZoomToCursor(float32(-dy*ScrollZoom), wx, wy))
	}
}

func (b *Binding) resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	b.report(b.m.Resize(uint32(float64(w)*b.scale), uint32(float64(h)*b.scale)))
}

func (b *Binding) report(err error) {
	if err != nil {
		simviz.Logger().Debug("host: window event", "err", err)
	}
}
