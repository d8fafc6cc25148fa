package gpu

import (
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
)

type fakeResource struct {
	released *[]string
	name     string
}

func (f *fakeResource) Release() { *f.released = append(*f.released, f.name) }

func TestOwnerReleaseAllReverseOrder(t *testing.T) {
	var released []string
	ledger := &Ledger{}
	o := NewOwner(nil, ledger)

	o.Track(ResourceBuffer, &fakeResource{&released, "a"}, 64)
	o.Track(ResourceTexture, &fakeResource{&released, "b"}, 1024)
	o.Track(ResourceBindGroup, &fakeResource{&released, "c"}, 0)

	s := ledger.Stats()
	if s.Total() != 3 || s.BufferBytes != 64 || s.TextureBytes != 1024 {
		t.Fatalf("stats after track = %+v", s)
	}

	o.ReleaseAll()
	if got := strings.Join(released, ""); got != "cba" {
		t.Errorf("release order = %q, want %q", got, "cba")
	}
	if s := ledger.Stats(); s.Total() != 0 || s.BufferBytes != 0 || s.TextureBytes != 0 {
		t.Errorf("stats after ReleaseAll = %+v, want zero", s)
	}
	if o.Len() != 0 {
		t.Errorf("Len() = %d, want 0", o.Len())
	}
}

func TestOwnerReleaseOne(t *testing.T) {
	var released []string
	ledger := &Ledger{}
	o := NewOwner(nil, ledger)
	a := &fakeResource{&released, "a"}
	b := &fakeResource{&released, "b"}
	o.Track(ResourceBuffer, a, 16)
	o.Track(ResourceBuffer, b, 32)

	o.Release(a)
	o.Release(a) // unknown now, ignored
	o.Release(nil)

	if len(released) != 1 || released[0] != "a" {
		t.Errorf("released = %v, want [a]", released)
	}
	if s := ledger.Stats(); s.Live[ResourceBuffer] != 1 || s.BufferBytes != 32 {
		t.Errorf("stats = %+v", s)
	}
}

func TestLedgerSharedByOwners(t *testing.T) {
	ledger := &Ledger{}
	baseline := ledger.Stats()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var mine []string
			o := NewOwner(nil, ledger)
			for range 10 {
				o.Track(ResourceView, &fakeResource{&mine, "v"}, 0)
			}
			o.ReleaseAll()
		}()
	}
	wg.Wait()

	if got := ledger.Stats(); got != baseline {
		t.Errorf("ledger = %+v, want baseline %+v", got, baseline)
	}
}

func TestResourceKindString(t *testing.T) {
	if ResourceBindGroup.String() != "bindgroup" {
		t.Errorf("String() = %q", ResourceBindGroup.String())
	}
	if ResourceKind(200).String() != "ResourceKind(200)" {
		t.Errorf("unknown String() = %q", ResourceKind(200).String())
	}
	if !strings.Contains(MemoryStats{}.String(), "0 objects") {
		t.Errorf("MemoryStats.String() = %q", MemoryStats{}.String())
	}
}

func TestBytesPerTexel(t *testing.T) {
	tests := []struct {
		format gputypes.TextureFormat
		want   int
	}{
		{gputypes.TextureFormatR8Unorm, 1},
		{gputypes.TextureFormatR16Float, 2},
		{gputypes.TextureFormatR32Float, 4},
		{gputypes.TextureFormatRGBA8Unorm, 4},
		{gputypes.TextureFormatRGBA16Float, 8},
		{gputypes.TextureFormatRGBA32Float, 16},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := BytesPerTexel(tt.format); got != tt.want {
				t.Errorf("BytesPerTexel() = %d, want %d", got, tt.want)
			}
		})
	}
}
