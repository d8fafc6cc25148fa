package manager

import (
	"testing"
	"time"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/sim/simtest"
	_ "github.com/gogpu/simviz/internal/sims/all"
)

func waitFor(t *testing.T, ev *events, name string, n int, limit time.Duration) {
	t.Helper()
	deadline := time.After(limit)
	for seen := 0; seen < n; {
		select {
		case e := <-ev.ch:
			if e == name {
				seen++
			}
		case <-deadline:
			t.Fatalf("saw %d %q events in %v, want %d", seen, name, limit, n)
		}
	}
}

// Start, tick, stop: fps events arrive and everything is released.
func TestRenderLoopLifecycle(t *testing.T) {
	base := simtest.LiveFakes.Load()
	m, target := newTestManager(t, Options{Metrics: NewMetrics()})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	m.SetFPSLimit(true, 120)
	ev := newEvents()
	if err := m.StartRenderLoop(ev); err != nil {
		t.Fatal(err)
	}
	if err := m.StartRenderLoop(ev); err != nil {
		t.Errorf("second start: %v", err)
	}
	waitFor(t, ev, EventFPS, 2, 5*time.Second)

	// Commands interleave with ticks.
	if err := m.UpdateSetting("rate", 0.1); err != nil {
		t.Fatal(err)
	}
	m.StopRenderLoop()
	if m.LoopRunning() {
		t.Error("loop still running")
	}
	m.Stop()

	fps, errs := ev.snapshot()
	for _, v := range fps {
		if v == 0 {
			t.Errorf("fps event of zero in %v", fps)
		}
		if v > 130 {
			t.Errorf("fps %d above the limit", v)
		}
	}
	if len(errs) != 0 {
		t.Errorf("error events: %v", errs)
	}
	if _, presented, _ := target.stats(); presented == 0 {
		t.Error("no frame presented")
	}
	if m.IsRunning() {
		t.Error("IsRunning after stop")
	}
	if simtest.LiveFakes.Load() != base {
		t.Error("simulation leaked")
	}
}

func TestRenderLoopExitsWithoutSimulation(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	m.SetFPSLimit(true, 200)
	if err := m.StartRenderLoop(nil); err != nil {
		t.Fatal(err)
	}
	m.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for m.LoopRunning() {
		if time.Now().After(deadline) {
			t.Fatal("loop kept running after the simulation stopped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRenderLoopHaltsOnFatalError(t *testing.T) {
	m, target := newTestManager(t, Options{})
	if err := m.Start(fakeKind); err != nil {
		t.Fatal(err)
	}
	target.failures = []error{simviz.ErrSurfaceOutdated, simviz.ErrDeviceLost}
	ev := newEvents()
	if err := m.StartRenderLoop(ev); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ev, EventError, 1, 2*time.Second)
	m.StopRenderLoop()

	_, errs := ev.snapshot()
	if len(errs) != 1 || errs[0].Kind != "DeviceLost" {
		t.Errorf("error events = %+v", errs)
	}
	if _, presented, recovers := target.stats(); presented != 0 || recovers != 1 {
		t.Errorf("presented=%d recovers=%d", presented, recovers)
	}
	if !m.IsRunning() {
		t.Error("a fatal loop error must not drop the simulation")
	}
}

func TestFPSLimit(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if on, fps := m.FPSLimit(); on || fps != 60 {
		t.Errorf("default limit = %v, %d", on, fps)
	}
	m.SetFPSLimit(true, 30)
	if on, fps := m.FPSLimit(); !on || fps != 30 {
		t.Errorf("limit = %v, %d", on, fps)
	}
}

// A real simulation through the manager returns the GPU ledger to its
// baseline once stopped.
func TestGPUStartTickStop(t *testing.T) {
	c := simtest.Context(t, 96, 64)
	before := c.Ledger().Stats()
	m, err := New(Options{GPU: c, Seed: 1, Metrics: NewMetrics()})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if err := m.Start("slime_mold"); err != nil {
		t.Fatal(err)
	}
	for i := range 5 {
		if _, err := m.Tick(1.0 / 60); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if err := m.ApplyColorScheme(m.ListColorSchemes()[0]); err != nil {
		t.Fatal(err)
	}
	if err := m.Resize(128, 96); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Tick(1.0 / 60); err != nil {
		t.Fatal(err)
	}
	m.Stop()
	if after := c.Ledger().Stats(); after != before {
		t.Errorf("resources leaked: before %v, after %v", before, after)
	}
}
