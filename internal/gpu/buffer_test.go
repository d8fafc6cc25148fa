package gpu

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/wgpu"
)

type testParams struct {
	Width  uint32
	Height uint32
	Scale  float32
	_      uint32
	Offset [2]float32
	_      [2]uint32
}

type recordingWriter struct {
	data []byte
	err  error
}

func (r *recordingWriter) WriteBuffer(_ *wgpu.Buffer, _ uint64, data []byte) error {
	r.data = append([]byte(nil), data...)
	return r.err
}

func TestBytesLayout(t *testing.T) {
	p := testParams{Width: 640, Height: 480, Scale: 1.5, Offset: [2]float32{-1, 2}}
	b := Bytes(p)
	if len(b) != 32 || SizeOf(p) != 32 {
		t.Fatalf("len = %d, SizeOf = %d, want 32", len(b), SizeOf(p))
	}
	if binary.LittleEndian.Uint32(b[0:]) != 640 || binary.LittleEndian.Uint32(b[4:]) != 480 {
		t.Errorf("width/height encoded wrong: % x", b[:8])
	}
	if math.Float32frombits(binary.LittleEndian.Uint32(b[8:])) != 1.5 {
		t.Error("scale encoded wrong")
	}
	for _, i := range []int{12, 13, 14, 15, 24, 25, 30, 31} {
		if b[i] != 0 {
			t.Errorf("padding byte %d = %d, want 0", i, b[i])
		}
	}
	if math.Float32frombits(binary.LittleEndian.Uint32(b[16:])) != -1 {
		t.Error("offset.x encoded wrong")
	}
}

func TestBytesPanicsOnNonPOD(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Bytes(map) should panic")
		}
	}()
	_ = Bytes(map[string]int{})
}

func TestWriteStruct(t *testing.T) {
	w := &recordingWriter{}
	if err := WriteStruct(w, nil, testParams{Width: 7}); err != nil {
		t.Fatal(err)
	}
	if len(w.data) != 32 || w.data[0] != 7 {
		t.Errorf("recorded % x", w.data)
	}

	w.err = errors.New("queue gone")
	if err := WriteStruct(w, nil, testParams{}); !errors.Is(err, w.err) {
		t.Errorf("WriteStruct() = %v, want wrapped queue error", err)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	in := []float32{0, 1, -2.5, float32(math.Inf(1))}
	out := BytesFloat32(Float32Bytes(in))
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	u := Uint32Bytes([]uint32{0xFFFFFFFF, 1})
	if binary.LittleEndian.Uint32(u) != 0xFFFFFFFF || binary.LittleEndian.Uint32(u[4:]) != 1 {
		t.Errorf("Uint32Bytes = % x", u)
	}
}

func TestUnpadRows(t *testing.T) {
	data := []byte{1, 2, 0, 0, 3, 4, 0, 0}
	got := UnpadRows(data, 2, 4, 2)
	if string(got) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("UnpadRows() = %v", got)
	}
	same := UnpadRows([]byte{1, 2, 3, 4}, 2, 2, 2)
	if len(same) != 4 {
		t.Errorf("UnpadRows() without padding = %v", same)
	}
}
