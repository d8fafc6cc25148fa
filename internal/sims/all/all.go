// Package all registers every built-in simulation kind.
package all

import (
	_ "github.com/gogpu/simviz/internal/sims/ecosystem"
	_ "github.com/gogpu/simviz/internal/sims/flow"
	_ "github.com/gogpu/simviz/internal/sims/fluids"
	_ "github.com/gogpu/simviz/internal/sims/grayscott"
	_ "github.com/gogpu/simviz/internal/sims/moire"
	_ "github.com/gogpu/simviz/internal/sims/particlelife"
	_ "github.com/gogpu/simviz/internal/sims/pellets"
	_ "github.com/gogpu/simviz/internal/sims/slimemold"
	_ "github.com/gogpu/simviz/internal/sims/spacecolonization"
	_ "github.com/gogpu/simviz/internal/sims/wanderers"
)
