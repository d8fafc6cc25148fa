package simviz

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/wgpu"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called while the render loop is logging.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for simviz, its internal packages and the
// wgpu layer underneath. By default nothing is logged.
//
// Pass nil to restore the silent default.
//
// Log levels used by simviz:
//   - [slog.LevelDebug]: pipeline creation, buffer sizes, dispatch sizes
//   - [slog.LevelInfo]: adapter selection, simulation start/stop, resize scaling
//   - [slog.LevelWarn]: ignored setting values, surface reconfiguration, field clears
//   - [slog.LevelError]: fatal render loop errors
//
// Example:
//
//	simviz.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	wgpu.SetLogger(l)
}

// Logger returns the current logger. Internal packages call this instead of
// keeping their own copy so a single SetLogger reaches all of them.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
