package manager

import (
	"sync"
	"time"

	"github.com/gogpu/wgpu"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/simviz/internal/sim/simtest"
)

const (
	fakeKind   = "test_fake"
	brokenKind = "test_broken"
)

func init() {
	simtest.RegisterFake(fakeKind)
	sim.Register(sim.Descriptor{
		Kind: brokenKind,
		New: func(sim.Env) (sim.Simulation, error) {
			return nil, simviz.Errorf(simviz.KindShaderCompilation, "broken shader")
		},
		Defaults: func() sim.ValueTree { return sim.ValueTree{} },
	})
}

// fakeTarget is an offscreen target whose acquire errors are scripted.
type fakeTarget struct {
	sync.Mutex
	w, h uint32

	failures     []error
	acquired     int
	presented    int
	discarded    int
	recovers     int
	reconfigured [][2]uint32
}

func newFakeTarget() *fakeTarget { return &fakeTarget{w: 320, h: 240} }

func (t *fakeTarget) AcquireFrame() (Frame, error) {
	t.acquired++
	if len(t.failures) > 0 {
		err := t.failures[0]
		t.failures = t.failures[1:]
		return nil, err
	}
	return fakeFrame{t}, nil
}

func (t *fakeTarget) Reconfigure(w, h uint32) error {
	t.reconfigured = append(t.reconfigured, [2]uint32{w, h})
	t.w, t.h = w, h
	return nil
}

func (t *fakeTarget) Recover() error {
	t.recovers++
	return nil
}

func (t *fakeTarget) Size() (uint32, uint32) { return t.w, t.h }

// stats reads the counters under the target lock.
func (t *fakeTarget) stats() (acquired, presented, recovers int) {
	t.Lock()
	defer t.Unlock()
	return t.acquired, t.presented, t.recovers
}

type fakeFrame struct{ t *fakeTarget }

func (f fakeFrame) View() *wgpu.TextureView { return nil }

func (f fakeFrame) Present() error {
	f.t.presented++
	return nil
}

func (f fakeFrame) Discard() { f.t.discarded++ }

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// events collects emitted loop events.
type events struct {
	mu  sync.Mutex
	fps []uint32
	err []ErrorEvent
	ch  chan string
}

func newEvents() *events { return &events{ch: make(chan string, 64)} }

func (e *events) Emit(event string, payload any) {
	e.mu.Lock()
	switch event {
	case EventFPS:
		e.fps = append(e.fps, payload.(uint32))
	case EventError:
		e.err = append(e.err, payload.(ErrorEvent))
	}
	e.mu.Unlock()
	select {
	case e.ch <- event:
	default:
	}
}

func (e *events) snapshot() ([]uint32, []ErrorEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint32(nil), e.fps...), append([]ErrorEvent(nil), e.err...)
}
