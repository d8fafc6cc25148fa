package gpu

import (
	"log/slog"

	"github.com/gogpu/simviz"
)

// slogger returns the module logger. All logging in internal/gpu goes
// through this function so simviz.SetLogger reaches it.
func slogger() *slog.Logger { return simviz.Logger() }
