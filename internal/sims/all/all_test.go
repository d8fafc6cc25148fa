package all

import (
	"slices"
	"testing"

	"github.com/gogpu/simviz/internal/sim"
)

func TestEveryKindRegistered(t *testing.T) {
	kinds := sim.Kinds()
	if !slices.Equal(kinds, sim.Priority) {
		t.Fatalf("Kinds() = %v, want %v", kinds, sim.Priority)
	}
	if got := sim.Default(); got != "slime_mold" {
		t.Errorf("Default() = %q", got)
	}
	for _, k := range kinds {
		d, err := sim.Lookup(k)
		if err != nil {
			t.Fatal(err)
		}
		if len(d.Defaults()) == 0 {
			t.Errorf("%s: empty defaults", k)
		}
	}
}
