package manager

import (
	"math"
	"time"

	"github.com/gogpu/simviz"
)

// Host events emitted by the render loop.
const (
	EventFPS   = "fps-update"
	EventError = "simulation-error"
)

// Emitter delivers loop events to the host.
type Emitter interface {
	Emit(event string, payload any)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event string, payload any)

// Emit calls f.
func (f EmitterFunc) Emit(event string, payload any) { f(event, payload) }

// ErrorEvent is the payload of EventError.
type ErrorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SetFPSLimit enables or disables frame pacing. A zero fps disables
// pacing even when enabled.
func (m *Manager) SetFPSLimit(enabled bool, fps uint32) {
	m.fpsLimited.Store(enabled)
	m.fpsTarget.Store(fps)
}

// FPSLimit returns the pacing configuration.
func (m *Manager) FPSLimit() (enabled bool, fps uint32) {
	return m.fpsLimited.Load(), m.fpsTarget.Load()
}

// LoopRunning reports whether the render loop goroutine is active.
func (m *Manager) LoopRunning() bool { return m.running.Load() }

// StartRenderLoop spawns the render loop. Starting a running loop is a
// no-op.
func (m *Manager) StartRenderLoop(em Emitter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return m.fail(noActive())
	}
	if m.target == nil {
		return m.fail(simviz.Errorf(simviz.KindInternal, "render loop needs a target"))
	}
	if !m.running.CompareAndSwap(false, true) {
		return nil
	}
	if em == nil {
		em = EmitterFunc(func(string, any) {})
	}
	done := make(chan struct{})
	m.loopDone = done
	go m.loop(em, done)
	simviz.Logger().Info("manager: render loop started")
	return nil
}

// StopRenderLoop clears the run flag and waits for the current tick to
// finish.
func (m *Manager) StopRenderLoop() {
	m.running.Store(false)
	m.mu.Lock()
	done := m.loopDone
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (m *Manager) loop(em Emitter, done chan struct{}) {
	defer close(done)
	defer m.running.Store(false)

	frames := 0
	window := m.now()
	last := window
	for m.running.Load() {
		start := m.now()
		dt := float32(start.Sub(last).Seconds())
		last = start

		ok, err := m.Tick(dt)
		if !ok {
			simviz.Logger().Info("manager: render loop exits, no simulation")
			return
		}
		if err != nil {
			if simviz.KindOf(err).Fatal() {
				simviz.Logger().Error("manager: render loop halted", "err", err)
				e := simviz.Classify(err)
				em.Emit(EventError, ErrorEvent{Kind: e.Kind.String(), Message: err.Error()})
				return
			}
			simviz.Logger().Debug("manager: frame skipped", "err", err)
		} else {
			frames++
		}

		if elapsed := m.now().Sub(window); elapsed >= time.Second {
			fps := uint32(math.Round(float64(frames) / elapsed.Seconds()))
			if fps > 0 {
				em.Emit(EventFPS, fps)
				m.metrics.fps(fps)
			}
			frames = 0
			window = m.now()
		}

		if enabled, target := m.FPSLimit(); enabled && target > 0 {
			budget := time.Second / time.Duration(target)
			if sleep := budget - m.now().Sub(start); sleep > 0 {
				time.Sleep(sleep)
			}
		}
	}
}

// Tick runs one loop iteration without pacing: it applies a settled
// resize, acquires a frame, renders dt and presents. ok is false when no
// simulation is active. Transient surface errors reconfigure the surface
// and are returned so the caller skips the frame.
func (m *Manager) Tick(dt float32) (ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return false, nil
	}
	if m.target == nil {
		return true, simviz.Errorf(simviz.KindInternal, "no render target")
	}
	m.target.Lock()
	defer m.target.Unlock()

	m.flushResizeLocked()

	begin := time.Now()
	frame, err := m.target.AcquireFrame()
	if err != nil {
		m.metrics.skipped(err)
		if simviz.KindOf(err).Transient() {
			if rerr := m.target.Recover(); rerr != nil {
				simviz.Logger().Warn("manager: surface recover failed", "err", rerr)
			}
		}
		return true, err
	}
	if err := m.active.RenderFrame(frame.View(), dt); err != nil {
		frame.Discard()
		m.metrics.skipped(err)
		return true, err
	}
	if err := frame.Present(); err != nil {
		m.metrics.skipped(err)
		return true, err
	}
	m.metrics.frame(time.Since(begin).Seconds())
	if m.gpu != nil {
		m.metrics.memory(m.gpu.Ledger().Stats())
	}
	return true, nil
}
