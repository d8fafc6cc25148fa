package sim

import (
	"errors"
	"testing"

	"github.com/gogpu/simviz"
)

func TestRegistryOrderAndLookup(t *testing.T) {
	newSim := func(Env) (Simulation, error) { return nil, nil }
	defaults := func() ValueTree { return ValueTree{} }
	Register(Descriptor{Kind: "zz_test_kind", New: newSim, Defaults: defaults})
	Register(Descriptor{Kind: "gray_scott_test", New: newSim, Defaults: defaults})
	t.Cleanup(func() {
		registry.Unregister("zz_test_kind")
		registry.Unregister("gray_scott_test")
	})

	d, err := Lookup("zz_test_kind")
	if err != nil || d.Kind != "zz_test_kind" {
		t.Fatalf("Lookup = %+v, %v", d, err)
	}
	if _, err := Lookup("missing"); !errors.Is(err, simviz.ErrInvalidSetting) {
		t.Errorf("Lookup(missing) = %v", err)
	}
	kinds := Kinds()
	if len(kinds) < 2 {
		t.Fatalf("kinds = %v", kinds)
	}
	if kinds[len(kinds)-2] != "gray_scott_test" || kinds[len(kinds)-1] != "zz_test_kind" {
		t.Errorf("unranked kinds not sorted last: %v", kinds)
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration did not panic")
		}
	}()
	Register(Descriptor{Kind: "zz_test_kind", New: newSim, Defaults: defaults})
}

func TestModeFor(t *testing.T) {
	tests := map[int]uint32{
		ButtonLeft:   ModeSeed,
		ButtonMiddle: ModeGrab,
		ButtonRight:  ModeRepel,
		7:            ModeNone,
	}
	for b, want := range tests {
		if got := ModeFor(b); got != want {
			t.Errorf("ModeFor(%d) = %d, want %d", b, got, want)
		}
	}
}
