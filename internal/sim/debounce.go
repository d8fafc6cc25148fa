package sim

import (
	"sync"
	"time"
)

// ResizeWindow is the quiet period before a resize is applied.
const ResizeWindow = 500 * time.Millisecond

// ResizeThreshold is the relative change per axis below which a resize is
// ignored.
const ResizeThreshold = 0.01

// Debouncer coalesces bursts of resize events. The latest size wins and is
// released once no event arrived for the window. It reads time through
// Now, which carries a monotonic reading.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	pending bool
	width   uint32
	height  uint32
	last    time.Time
}

// NewDebouncer creates a debouncer. A nil clock uses time.Now.
func NewDebouncer(window time.Duration, now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	return &Debouncer{window: window, now: now}
}

// Push records a new size.
func (d *Debouncer) Push(width, height uint32) {
	d.mu.Lock()
	d.width, d.height = width, height
	d.pending = true
	d.last = d.now()
	d.mu.Unlock()
}

// Ready returns the latest size once the window has passed since the last
// push. It returns ok only once per burst.
func (d *Debouncer) Ready() (width, height uint32, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.pending || d.now().Sub(d.last) < d.window {
		return 0, 0, false
	}
	d.pending = false
	return d.width, d.height, true
}

// Pending reports whether a size is waiting.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// SignificantResize reports whether (w, h) differs from (ow, oh) by at
// least ResizeThreshold on some axis.
func SignificantResize(ow, oh, w, h uint32) bool {
	rel := func(a, b uint32) float64 {
		if a == 0 {
			return 1
		}
		d := float64(b) - float64(a)
		if d < 0 {
			d = -d
		}
		return d / float64(a)
	}
	return rel(ow, w) >= ResizeThreshold || rel(oh, h) >= ResizeThreshold
}
