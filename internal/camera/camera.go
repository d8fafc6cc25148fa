// Package camera implements the 2D orthographic camera over the normalized
// world square [-1,1]² shared by every simulation.
//
// The camera keeps target values that commands change instantly and
// smoothed values that ease toward them each frame. Coordinate conversions
// use the targets, so a zoom-to-cursor leaves the cursor's world point
// fixed immediately; the GPU uniform uses the smoothed values.
//
// Screen space is pixels with y growing downward. World y grows upward.
package camera

import (
	"math"

	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/wgpu"
)

// Zoom bounds and easing constants.
const (
	MinZoom = 0.005
	MaxZoom = 50.0

	// ZoomRate is k in zoom *= exp(k·Δ).
	ZoomRate = 1.0

	// Epsilon is the distance below which smoothing snaps to the target.
	Epsilon = 1e-5

	// DefaultSmoothing is the easing time constant in seconds.
	DefaultSmoothing = 0.08
)

// Uniform is the camera block read by shaders:
//
//	struct Camera {
//	    transform: mat4x4<f32>,
//	    position: vec2<f32>,
//	    zoom: f32,
//	    aspect: f32,
//	}
type Uniform struct {
	Transform [16]float32
	Position  [2]float32
	Zoom      float32
	Aspect    float32
}

// UniformSize is the byte size of Uniform.
const UniformSize = 80

// State is the serializable view of a camera.
type State struct {
	Position       [2]float64 `json:"position"`
	Zoom           float64    `json:"zoom"`
	TargetPosition [2]float64 `json:"target_position"`
	TargetZoom     float64    `json:"target_zoom"`
	Viewport       [2]float64 `json:"viewport"`
	Smoothing      float64    `json:"smoothing"`
}

// Camera is a smoothed 2D camera. It is not safe for concurrent use; the
// simulation manager serializes access.
type Camera struct {
	pos, target [2]float64
	zoom        float64
	targetZoom  float64
	viewport    [2]float64
	smoothing   float64
	dirty       bool
}

// New creates a camera for a w×h viewport at the origin with zoom 1.
func New(w, h float64) *Camera {
	c := &Camera{smoothing: DefaultSmoothing}
	c.SetViewport(w, h)
	c.Reset()
	return c
}

// Reset returns to the origin at zoom 1 without easing.
func (c *Camera) Reset() {
	c.pos, c.target = [2]float64{}, [2]float64{}
	c.zoom, c.targetZoom = 1, 1
	c.dirty = true
}

// SetViewport sets the viewport size in pixels. Zero sizes are ignored.
func (c *Camera) SetViewport(w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}
	c.viewport = [2]float64{w, h}
	c.dirty = true
}

// SetSmoothing sets the easing time constant. Zero disables easing.
func (c *Camera) SetSmoothing(tau float64) {
	c.smoothing = max(tau, 0)
}

// Aspect returns W/H.
func (c *Camera) Aspect() float64 {
	if c.viewport[1] == 0 {
		return 1
	}
	return c.viewport[0] / c.viewport[1]
}

// Pan moves the target by a world delta scaled inversely to zoom.
func (c *Camera) Pan(dx, dy float64) {
	c.target[0] += dx / c.targetZoom
	c.target[1] += dy / c.targetZoom
	c.dirty = true
}

// Zoom multiplies the target zoom by exp(k·Δ), clamped to [MinZoom, MaxZoom].
func (c *Camera) Zoom(delta float64) {
	c.targetZoom = clampZoom(c.targetZoom * math.Exp(ZoomRate*delta))
	c.dirty = true
}

// ZoomToCursor zooms while keeping the world point (cx, cy) at the same
// screen position.
func (c *Camera) ZoomToCursor(delta, cx, cy float64) {
	old := c.targetZoom
	c.Zoom(delta)
	ratio := old / c.targetZoom
	c.target[0] = cx - (cx-c.target[0])*ratio
	c.target[1] = cy - (cy-c.target[1])*ratio
}

func clampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return min(max(z, MinZoom), MaxZoom)
}

// Update eases the smoothed values toward the targets and reports whether
// the uniform must be uploaded.
func (c *Camera) Update(dt float64) bool {
	switch {
	case c.smoothing == 0:
		c.snap()
	case dt > 0:
		a := 1 - math.Exp(-dt/c.smoothing)
		c.pos[0] += (c.target[0] - c.pos[0]) * a
		c.pos[1] += (c.target[1] - c.pos[1]) * a
		c.zoom += (c.targetZoom - c.zoom) * a
		if c.settled() {
			c.snap()
		} else {
			c.dirty = true
		}
	}
	return c.dirty
}

func (c *Camera) settled() bool {
	return math.Abs(c.target[0]-c.pos[0]) < Epsilon &&
		math.Abs(c.target[1]-c.pos[1]) < Epsilon &&
		math.Abs(c.targetZoom-c.zoom) < Epsilon
}

func (c *Camera) snap() {
	if c.pos != c.target || c.zoom != c.targetZoom {
		c.dirty = true
	}
	c.pos, c.zoom = c.target, c.targetZoom
}

// Dirty reports whether the uniform is stale.
func (c *Camera) Dirty() bool { return c.dirty }

// transform maps world to clip space with the given position and zoom.
func (c *Camera) transform(pos [2]float64, zoom float64) Matrix {
	return Scale(zoom/c.Aspect(), zoom).Multiply(Translate(-pos[0], -pos[1]))
}

// Transform returns the world to clip transform of the smoothed camera.
func (c *Camera) Transform() Matrix { return c.transform(c.pos, c.zoom) }

// ScreenToWorld maps a pixel position to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (float64, float64) {
	nx := sx/c.viewport[0]*2 - 1
	ny := 1 - sy/c.viewport[1]*2
	return c.transform(c.target, c.targetZoom).Invert().TransformPoint(nx, ny)
}

// ScreenToWorld maps a pixel position through the snapshot's target view.
func (s State) ScreenToWorld(sx, sy float64) (float64, float64) {
	c := Camera{target: s.TargetPosition, targetZoom: s.TargetZoom, viewport: s.Viewport}
	return c.ScreenToWorld(sx, sy)
}

// WorldToScreen maps world coordinates to a pixel position.
func (c *Camera) WorldToScreen(x, y float64) (float64, float64) {
	nx, ny := c.transform(c.target, c.targetZoom).TransformPoint(x, y)
	return (nx + 1) / 2 * c.viewport[0], (1 - ny) / 2 * c.viewport[1]
}

// Uniform returns the GPU block for the smoothed camera.
func (c *Camera) Uniform() Uniform {
	return Uniform{
		Transform: c.Transform().Mat4(),
		Position:  [2]float32{float32(c.pos[0]), float32(c.pos[1])},
		Zoom:      float32(c.zoom),
		Aspect:    float32(c.Aspect()),
	}
}

// Upload writes the uniform when dirty and clears the flag.
func (c *Camera) Upload(w gpu.BufferWriter, buf *wgpu.Buffer) error {
	if !c.dirty {
		return nil
	}
	if err := gpu.WriteStruct(w, buf, c.Uniform()); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// State returns a snapshot for the host.
func (c *Camera) State() State {
	return State{
		Position:       c.pos,
		Zoom:           c.zoom,
		TargetPosition: c.target,
		TargetZoom:     c.targetZoom,
		Viewport:       c.viewport,
		Smoothing:      c.smoothing,
	}
}

// SmoothedZoom returns the zoom the GPU currently sees.
func (c *Camera) SmoothedZoom() float64 { return c.zoom }
