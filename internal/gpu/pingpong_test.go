package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/wgpu"
)

func TestPairSwap(t *testing.T) {
	p := NewPair("a", "b")
	if p.Current() != "a" || p.Inactive() != "b" || p.Index() != 0 {
		t.Fatalf("initial pair = (%s, %s, %d)", p.Current(), p.Inactive(), p.Index())
	}

	// A step reads Current and writes Inactive; after the swap the
	// written element must be read next.
	written := p.Inactive()
	p.Swap()
	if p.Current() != written {
		t.Errorf("Current() after swap = %q, want %q", p.Current(), written)
	}

	for i := range 7 {
		p.Swap()
		wantIdx := i % 2
		if p.Index() != wantIdx {
			t.Errorf("swap %d: Index() = %d, want %d", i+2, p.Index(), wantIdx)
		}
	}
}

func TestPairSelect(t *testing.T) {
	p := NewPair(1, 2)
	if got := Select(&p, "ab", "ba"); got != "ab" {
		t.Errorf("Select() = %q, want ab", got)
	}
	p.Swap()
	if got := Select(&p, "ab", "ba"); got != "ba" {
		t.Errorf("Select() after swap = %q, want ba", got)
	}
	if p.At(0) != 1 || p.At(1) != 2 || p.At(3) != 2 {
		t.Errorf("At() ignores roles: got %d %d %d", p.At(0), p.At(1), p.At(3))
	}
}

func TestBindGroupPairFor(t *testing.T) {
	var p BindGroupPair
	if p.For(0) != nil || p.For(1) != nil {
		t.Error("empty pair should hold nil groups")
	}
}

func TestBuildBindGroupPairKeepsOldOnError(t *testing.T) {
	o := NewOwner(nil, &Ledger{})
	a, b := &wgpu.BindGroup{}, &wgpu.BindGroup{}
	old := &BindGroupPair{groups: [2]*wgpu.BindGroup{a, b}}
	boom := errors.New("boom")

	p, err := BuildBindGroupPair(o, old, func(parity int) (*wgpu.BindGroup, error) {
		if parity == 1 {
			return nil, boom
		}
		return &wgpu.BindGroup{}, nil
	})
	if !errors.Is(err, boom) || p != nil {
		t.Fatalf("BuildBindGroupPair() = %v, %v, want the build error", p, err)
	}
	if old.For(0) != a || old.For(1) != b {
		t.Error("old pair released after a failed rebuild")
	}

	c, d := &wgpu.BindGroup{}, &wgpu.BindGroup{}
	p, err = BuildBindGroupPair(o, old, func(parity int) (*wgpu.BindGroup, error) {
		return []*wgpu.BindGroup{c, d}[parity], nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.For(0) != c || p.For(1) != d {
		t.Error("new pair holds the wrong groups")
	}
	if old.For(0) != nil || old.For(1) != nil {
		t.Error("old pair not released after a successful rebuild")
	}
}
