package sim

import (
	"slices"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/simviz"
)

// Descriptor describes a registered simulation kind.
type Descriptor struct {
	Kind string

	// New builds the GPU simulation.
	New func(env Env) (Simulation, error)

	// Software builds the CPU model, or is nil when the kind has none.
	Software func(width, height int, settings ValueTree, seed uint64) (Software, error)

	// Defaults returns the default settings tree.
	Defaults func() ValueTree
}

// Priority is the listing order of the built-in kinds.
var Priority = []string{
	"slime_mold", "gray_scott", "particle_life", "fluids", "pellets",
	"space_colonization", "moire", "flow", "wanderers", "ecosystem",
}

var registry = gpucontext.NewRegistry[Descriptor](gpucontext.WithPriority(Priority...))

// Register adds a kind. It is called from package init functions and
// panics on a duplicate or incomplete descriptor.
func Register(d Descriptor) {
	if d.Kind == "" || d.New == nil || d.Defaults == nil {
		panic("sim: incomplete descriptor for " + d.Kind)
	}
	if registry.Has(d.Kind) {
		panic("sim: duplicate registration of " + d.Kind)
	}
	registry.Register(d.Kind, func() Descriptor { return d })
}

// Lookup returns the descriptor of kind.
func Lookup(kind string) (Descriptor, error) {
	if !registry.Has(kind) {
		return Descriptor{}, simviz.Errorf(simviz.KindInvalidSetting, "unknown simulation kind %q", kind)
	}
	return registry.Get(kind), nil
}

// Kinds lists registered kinds in priority order, unknown kinds last.
func Kinds() []string {
	names := registry.Available()
	rank := func(s string) int {
		if i := slices.Index(Priority, s); i >= 0 {
			return i
		}
		return len(Priority)
	}
	slices.SortFunc(names, func(a, b string) int {
		if d := rank(a) - rank(b); d != 0 {
			return d
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return names
}

// Default returns the preferred kind, or "" when none is registered.
func Default() string { return registry.BestName() }
