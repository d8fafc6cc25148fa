package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/simviz"
	"github.com/gogpu/wgpu"
)

// BufferWriter is the part of *wgpu.Queue that uploads buffer data.
// Tests substitute a recording implementation.
type BufferWriter interface {
	WriteBuffer(buffer *wgpu.Buffer, offset uint64, data []byte) error
}

// Bytes serializes a fixed-size value (a POD struct, array or slice of
// them) into little-endian bytes matching its WGSL layout. Blank fields
// encode as zero padding.
//
// Bytes panics when v is not fixed size; params types are declared once
// and checked by tests, so a failure here is a programming error.
func Bytes(v any) []byte {
	b, err := binary.Append(nil, binary.LittleEndian, v)
	if err != nil {
		panic(fmt.Sprintf("gpu: Bytes(%T): %v", v, err))
	}
	return b
}

// SizeOf returns the encoded size of a fixed-size value.
func SizeOf(v any) uint64 {
	n := binary.Size(v)
	if n < 0 {
		panic(fmt.Sprintf("gpu: SizeOf(%T): not a fixed-size value", v))
	}
	return uint64(n)
}

// WriteStruct uploads v at offset 0 of buf.
func WriteStruct(w BufferWriter, buf *wgpu.Buffer, v any) error {
	if err := w.WriteBuffer(buf, 0, Bytes(v)); err != nil {
		return fmt.Errorf("gpu: write %T: %w", v, err)
	}
	return nil
}

// Float32Bytes encodes a float32 slice.
func Float32Bytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, f := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// BytesFloat32 decodes little-endian float32 values.
func BytesFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// Uint32Bytes encodes a uint32 slice.
func Uint32Bytes(data []uint32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// NewUniform creates a uniform buffer sized and initialized for v.
func (o *Owner) NewUniform(label string, v any) (*wgpu.Buffer, error) {
	size := SizeOf(v)
	buf, err := o.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  align4(size),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	if q := o.device.Queue(); q != nil {
		if err := q.WriteBuffer(buf, 0, Bytes(v)); err != nil {
			return nil, fmt.Errorf("gpu: init uniform %q: %w", label, err)
		}
	}
	return buf, nil
}

// NewStorage creates a storage buffer of size bytes. When data is non-nil
// it is uploaded immediately. extra adds usages such as CopySrc.
func (o *Owner) NewStorage(label string, size uint64, data []byte, extra wgpu.BufferUsage) (*wgpu.Buffer, error) {
	if size == 0 {
		size = 4
	}
	buf, err := o.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  align4(size),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | extra,
	})
	if err != nil {
		return nil, err
	}
	if data != nil {
		if q := o.device.Queue(); q != nil {
			if err := q.WriteBuffer(buf, 0, data); err != nil {
				return nil, fmt.Errorf("gpu: init storage %q: %w", label, err)
			}
		}
	}
	return buf, nil
}

// NewVertex creates a vertex buffer holding data.
func (o *Owner) NewVertex(label string, data []byte) (*wgpu.Buffer, error) {
	buf, err := o.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  align4(uint64(len(data))),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	if q := o.device.Queue(); q != nil {
		if err := q.WriteBuffer(buf, 0, data); err != nil {
			return nil, fmt.Errorf("gpu: init vertex %q: %w", label, err)
		}
	}
	return buf, nil
}

func align4(n uint64) uint64 { return (n + 3) &^ 3 }

func wrapCreate(err error, format string, args ...any) error {
	kind := simviz.KindOf(err)
	if kind == simviz.KindInternal {
		kind = simviz.KindPipelineCreation
	}
	return simviz.Wrap(kind, err, format, args...)
}
