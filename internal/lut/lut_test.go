package lut

import (
	"encoding/binary"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/gogpu/simviz"
	"github.com/gogpu/wgpu"
)

func TestReverseTwiceIsIdentity(t *testing.T) {
	store := NewStore()
	for _, name := range store.Names() {
		t.Run(name, func(t *testing.T) {
			s, err := store.Get(name)
			if err != nil {
				t.Fatal(err)
			}
			orig := *s
			s.Reverse()
			s.Reverse()
			if *s != orig {
				t.Error("reverse(reverse(s)) != s")
			}
		})
	}
}

func TestPlanarRoundTrip(t *testing.T) {
	s := FromStops("test", Hex("#102030"), Hex("#f0e0d0"))
	p := s.Planar()
	if p[0] != 0x10 || p[Size] != 0x20 || p[2*Size] != 0x30 {
		t.Errorf("planar heads = %d %d %d", p[0], p[Size], p[2*Size])
	}
	back, err := FromPlanar("test", p[:])
	if err != nil {
		t.Fatal(err)
	}
	if *back != *s {
		t.Error("FromPlanar(Planar(s)) != s")
	}
	if _, err := FromPlanar("bad", p[:10]); err == nil {
		t.Error("short planar data accepted")
	}
	p[5] = 300
	if _, err := FromPlanar("bad", p[:]); err == nil {
		t.Error("out of range entry accepted")
	}
}

type recorder struct {
	data []byte
}

func (r *recorder) WriteBuffer(_ *wgpu.Buffer, off uint64, data []byte) error {
	if off != 0 {
		return errors.New("unexpected offset")
	}
	r.data = append([]byte(nil), data...)
	return nil
}

func TestApplyReversed(t *testing.T) {
	s, err := NewStore().Get(DefaultName)
	if err != nil {
		t.Fatal(err)
	}
	var fwd, rev recorder
	if err := Apply(s, false, &fwd, nil); err != nil {
		t.Fatal(err)
	}
	if err := Apply(s, true, &rev, nil); err != nil {
		t.Fatal(err)
	}
	if len(fwd.data) != BufferSize || len(rev.data) != BufferSize {
		t.Fatalf("sizes = %d, %d", len(fwd.data), len(rev.data))
	}
	lastRed := binary.LittleEndian.Uint32(fwd.data[(Size-1)*4:])
	firstRev := binary.LittleEndian.Uint32(rev.data)
	if firstRev != lastRed {
		t.Errorf("reversed[0] = %d, want last red %d", firstRev, lastRed)
	}
	if s.Red[0] == s.Red[Size-1] {
		t.Fatal("viridis endpoints should differ")
	}
	if got := Background(s, true); got != s.At(Size-1) {
		t.Errorf("reversed background = %v", got)
	}
}

func TestStoreGetMissing(t *testing.T) {
	_, err := NewStore().Get("nope")
	if !errors.Is(err, simviz.ErrColorSchemeNotFound) {
		t.Errorf("err = %v, want ColorSchemeNotFound", err)
	}
}

func TestStoreNamesSorted(t *testing.T) {
	s := NewStore()
	s.Add(&ColorScheme{Name: "aaa_custom"})
	names := s.Names()
	if names[0] != "aaa_custom" {
		t.Errorf("names[0] = %q", names[0])
	}
	if len(names) != s.Len() {
		t.Errorf("len = %d, want %d", len(names), s.Len())
	}
}

func TestLoadDir(t *testing.T) {
	asset := make([]byte, AssetSize)
	for i := range Size {
		asset[i] = byte(i)
		asset[Size+i] = byte(255 - i)
		asset[2*Size+i] = 7
	}
	fsys := fstest.MapFS{
		"ramp.lut":   {Data: asset},
		"readme.txt": {Data: []byte("skip")},
	}
	s := NewStore()
	n, err := s.LoadDir(fsys)
	if err != nil || n != 1 {
		t.Fatalf("LoadDir = %d, %v", n, err)
	}
	c, err := s.Get("ramp")
	if err != nil {
		t.Fatal(err)
	}
	if c.Red[10] != 10 || c.Green[10] != 245 || c.Blue[200] != 7 {
		t.Errorf("loaded scheme = %v %v %v", c.Red[10], c.Green[10], c.Blue[200])
	}
	if string(c.Asset()) != string(asset) {
		t.Error("Asset() does not round trip")
	}

	bad := fstest.MapFS{"short.lut": {Data: []byte{1, 2, 3}}}
	if _, err := s.LoadDir(bad); err == nil {
		t.Error("short asset accepted")
	}
}

func TestSampleAndStops(t *testing.T) {
	s := FromStops("bw", Hex("000000"), Hex("ffffff"))
	if got := s.Sample(0); got.R != 0 {
		t.Errorf("Sample(0) = %v", got)
	}
	if got := s.Sample(1); got.R != 255 {
		t.Errorf("Sample(1) = %v", got)
	}
	if got := s.Sample(2); got.R != 255 {
		t.Errorf("Sample(2) = %v, want clamped", got)
	}
	if got := s.At(128).R; got < 126 || got > 130 {
		t.Errorf("midpoint = %d", got)
	}
}

func TestHex(t *testing.T) {
	tests := []struct {
		in   string
		want [3]uint8
	}{
		{"#ff8000", [3]uint8{255, 128, 0}},
		{"00FF00", [3]uint8{0, 255, 0}},
		{"bogus", [3]uint8{}},
	}
	for _, tt := range tests {
		r, g, b := Hex(tt.in).Bytes()
		if [3]uint8{r, g, b} != tt.want {
			t.Errorf("Hex(%q) = %v, want %v", tt.in, [3]uint8{r, g, b}, tt.want)
		}
	}
}
