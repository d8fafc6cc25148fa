package camera

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/wgpu"
)

const tol = 1e-4

func near(a, b float64) bool { return math.Abs(a-b) < tol }

func TestScreenWorldRoundTrip(t *testing.T) {
	zooms := []float64{MinZoom, 0.05, 0.5, 1, 3.7, 20, MaxZoom}
	points := [][2]float64{{-1, -1}, {1, 1}, {0, 0}, {0.3, -0.7}, {-0.99, 0.42}}
	for _, z := range zooms {
		c := New(1280, 720)
		c.Pan(0.2, -0.1)
		c.Zoom(math.Log(z))
		for _, p := range points {
			sx, sy := c.WorldToScreen(p[0], p[1])
			wx, wy := c.ScreenToWorld(sx, sy)
			if !near(wx, p[0]) || !near(wy, p[1]) {
				t.Errorf("zoom %v: round trip %v -> (%v, %v)", z, p, wx, wy)
			}
		}
	}
}

func TestScreenToWorldOrientation(t *testing.T) {
	c := New(200, 100)
	x, y := c.ScreenToWorld(100, 50)
	if !near(x, 0) || !near(y, 0) {
		t.Errorf("center = (%v, %v), want origin", x, y)
	}
	// Top-left pixel: y up in world, x scaled by aspect.
	x, y = c.ScreenToWorld(0, 0)
	if !near(x, -2) || !near(y, 1) {
		t.Errorf("top-left = (%v, %v), want (-2, 1)", x, y)
	}
}

func TestZoomToCursorInvariance(t *testing.T) {
	tests := []struct {
		name   string
		delta  float64
		cursor [2]float64
	}{
		{"in", 1, [2]float64{0.5, -0.25}},
		{"out", -2, [2]float64{-0.8, 0.9}},
		{"clamped high", 100, [2]float64{0.1, 0.1}},
		{"clamped low", -100, [2]float64{-0.3, 0.6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(800, 600)
			c.Pan(0.1, 0.2)
			sx, sy := c.WorldToScreen(tt.cursor[0], tt.cursor[1])
			c.ZoomToCursor(tt.delta, tt.cursor[0], tt.cursor[1])
			sx2, sy2 := c.WorldToScreen(tt.cursor[0], tt.cursor[1])
			if math.Abs(sx-sx2) > tol*800 || math.Abs(sy-sy2) > tol*600 {
				t.Errorf("cursor moved on screen: (%v, %v) -> (%v, %v)", sx, sy, sx2, sy2)
			}
			wx, wy := c.ScreenToWorld(sx2, sy2)
			if !near(wx, tt.cursor[0]) || !near(wy, tt.cursor[1]) {
				t.Errorf("world under cursor = (%v, %v), want %v", wx, wy, tt.cursor)
			}
		})
	}
}

func TestZoomToCursorScenario(t *testing.T) {
	c := New(1000, 1000)
	c.ZoomToCursor(1, 0.5, -0.25)
	s := c.State()
	if !near(s.TargetZoom, math.E) {
		t.Errorf("zoom = %v, want e", s.TargetZoom)
	}
	k := 1 - 1/math.E
	if !near(s.TargetPosition[0], 0.5*k) || !near(s.TargetPosition[1], -0.25*k) {
		t.Errorf("position = %v", s.TargetPosition)
	}
	sx, sy := c.WorldToScreen(0.5, -0.25)
	wx, wy := c.ScreenToWorld(sx, sy)
	if !near(wx, 0.5) || !near(wy, -0.25) {
		t.Errorf("world under cursor = (%v, %v)", wx, wy)
	}
}

func TestZoomClamp(t *testing.T) {
	c := New(10, 10)
	c.Zoom(1000)
	if c.State().TargetZoom != MaxZoom {
		t.Errorf("zoom = %v, want %v", c.State().TargetZoom, MaxZoom)
	}
	c.Zoom(-1000)
	if c.State().TargetZoom != MinZoom {
		t.Errorf("zoom = %v, want %v", c.State().TargetZoom, MinZoom)
	}
}

func TestPanScalesWithZoom(t *testing.T) {
	c := New(10, 10)
	c.Zoom(math.Log(4))
	c.Pan(1, -2)
	s := c.State()
	if !near(s.TargetPosition[0], 0.25) || !near(s.TargetPosition[1], -0.5) {
		t.Errorf("target = %v", s.TargetPosition)
	}
}

type recorder struct {
	writes int
	size   int
}

func (r *recorder) WriteBuffer(_ *wgpu.Buffer, _ uint64, data []byte) error {
	r.writes++
	r.size = len(data)
	return nil
}

func TestUpdateConvergesAndStopsUploading(t *testing.T) {
	c := New(640, 480)
	c.SetSmoothing(0.05)
	c.Pan(0.5, 0.5)
	c.Zoom(1)
	r := &recorder{}

	for range 600 {
		if c.Update(1.0 / 60) {
			if err := c.Upload(r, nil); err != nil {
				t.Fatal(err)
			}
		}
	}
	s := c.State()
	if s.Position != s.TargetPosition || s.Zoom != s.TargetZoom {
		t.Fatalf("did not snap: %+v", s)
	}
	writes := r.writes
	for range 10 {
		if c.Update(1.0 / 60) {
			t.Fatal("settled camera reported dirty")
		}
	}
	if writes == 0 || r.size != UniformSize {
		t.Errorf("writes = %d, size = %d", writes, r.size)
	}
}

func TestUpdateWithoutSmoothingSnaps(t *testing.T) {
	c := New(100, 100)
	c.SetSmoothing(0)
	c.Pan(0.3, 0)
	if !c.Update(0.016) {
		t.Error("Update() = false after pan")
	}
	if c.State().Position[0] != c.State().TargetPosition[0] {
		t.Error("zero smoothing should snap")
	}
}

type failingWriter struct{}

func (failingWriter) WriteBuffer(*wgpu.Buffer, uint64, []byte) error {
	return errors.New("lost")
}

func TestUploadKeepsDirtyOnError(t *testing.T) {
	c := New(100, 100)
	if err := c.Upload(failingWriter{}, nil); err == nil {
		t.Fatal("Upload() should fail")
	}
	if !c.Dirty() {
		t.Error("failed upload must keep the camera dirty")
	}
}

func TestUniformLayout(t *testing.T) {
	if got := gpu.SizeOf(Uniform{}); got != UniformSize {
		t.Fatalf("SizeOf(Uniform) = %d, want %d", got, UniformSize)
	}
	c := New(200, 100)
	c.Zoom(math.Log(2))
	c.SetSmoothing(0)
	c.Update(0)
	u := c.Uniform()
	if u.Aspect != 2 || u.Zoom != 2 {
		t.Errorf("uniform = %+v", u)
	}
	// clip.x = world.x * zoom / aspect = 1 for world.x = 1.
	if u.Transform[0] != 1 || u.Transform[5] != 2 || u.Transform[15] != 1 {
		t.Errorf("transform = %v", u.Transform)
	}
}

func TestReset(t *testing.T) {
	c := New(100, 100)
	c.Pan(1, 1)
	c.Zoom(2)
	c.Reset()
	s := c.State()
	if s.Zoom != 1 || s.TargetZoom != 1 || s.Position != [2]float64{} || s.TargetPosition != [2]float64{} {
		t.Errorf("state after Reset = %+v", s)
	}
}

func TestStateScreenToWorld(t *testing.T) {
	c := New(800, 600)
	c.Pan(0.3, 0.1)
	c.Zoom(0.8)
	s := c.State()
	for _, p := range [][2]float64{{0, 0}, {400, 300}, {799, 12}} {
		wx, wy := c.ScreenToWorld(p[0], p[1])
		sx, sy := s.ScreenToWorld(p[0], p[1])
		if !near(wx, sx) || !near(wy, sy) {
			t.Errorf("%v: camera (%v, %v), state (%v, %v)", p, wx, wy, sx, sy)
		}
	}
}
