// Package lut holds 256-entry color schemes that map scalar simulation
// fields to display colors, and their GPU upload format.
//
// On the GPU a scheme is a storage buffer of 768 u32 values in three
// planes: red[0..256], green[0..256], blue[0..256].
package lut

import (
	"encoding/binary"
	"fmt"
	"image/color"

	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/wgpu"
)

// Size is the number of entries per channel.
const Size = 256

// PlanarLen is the number of u32 values in the GPU layout.
const PlanarLen = 3 * Size

// BufferSize is the byte size of the GPU layout.
const BufferSize = PlanarLen * 4

// AssetSize is the byte size of a scheme asset: three 256-byte streams.
const AssetSize = 3 * Size

// ColorScheme is a named 256-entry RGB palette.
type ColorScheme struct {
	Name  string
	Red   [Size]uint8
	Green [Size]uint8
	Blue  [Size]uint8
}

// Reverse inverts the order of all three channels in place.
func (s *ColorScheme) Reverse() {
	for i, j := 0, Size-1; i < j; i, j = i+1, j-1 {
		s.Red[i], s.Red[j] = s.Red[j], s.Red[i]
		s.Green[i], s.Green[j] = s.Green[j], s.Green[i]
		s.Blue[i], s.Blue[j] = s.Blue[j], s.Blue[i]
	}
}

// Reversed returns a reversed copy.
func (s *ColorScheme) Reversed() *ColorScheme {
	c := *s
	c.Reverse()
	return &c
}

// At returns entry i as an opaque color.
func (s *ColorScheme) At(i int) color.RGBA {
	i = min(max(i, 0), Size-1)
	return color.RGBA{R: s.Red[i], G: s.Green[i], B: s.Blue[i], A: 255}
}

// Sample maps v in [0, 1] to the nearest entry.
func (s *ColorScheme) Sample(v float64) color.RGBA {
	if v != v {
		v = 0
	}
	return s.At(int(v*(Size-1) + 0.5))
}

// Planar returns the 768-entry u32 GPU layout.
func (s *ColorScheme) Planar() [PlanarLen]uint32 {
	var out [PlanarLen]uint32
	for i := range Size {
		out[i] = uint32(s.Red[i])
		out[Size+i] = uint32(s.Green[i])
		out[2*Size+i] = uint32(s.Blue[i])
	}
	return out
}

// Bytes returns the planar layout as little-endian bytes.
func (s *ColorScheme) Bytes() []byte {
	p := s.Planar()
	out := make([]byte, BufferSize)
	for i, v := range p {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// FromPlanar rebuilds a scheme from the GPU layout. Values above 255 are
// rejected.
func FromPlanar(name string, p []uint32) (*ColorScheme, error) {
	if len(p) != PlanarLen {
		return nil, fmt.Errorf("lut: planar data has %d entries, want %d", len(p), PlanarLen)
	}
	s := &ColorScheme{Name: name}
	for i := range Size {
		r, g, b := p[i], p[Size+i], p[2*Size+i]
		if r > 255 || g > 255 || b > 255 {
			return nil, fmt.Errorf("lut: entry %d out of range (%d, %d, %d)", i, r, g, b)
		}
		s.Red[i], s.Green[i], s.Blue[i] = uint8(r), uint8(g), uint8(b)
	}
	return s, nil
}

// ParseAsset reads the asset format: 256 red bytes, 256 green, 256 blue.
func ParseAsset(name string, data []byte) (*ColorScheme, error) {
	if len(data) != AssetSize {
		return nil, fmt.Errorf("lut: asset %q has %d bytes, want %d", name, len(data), AssetSize)
	}
	s := &ColorScheme{Name: name}
	copy(s.Red[:], data[:Size])
	copy(s.Green[:], data[Size:2*Size])
	copy(s.Blue[:], data[2*Size:])
	return s, nil
}

// Asset returns the asset encoding of s.
func (s *ColorScheme) Asset() []byte {
	out := make([]byte, 0, AssetSize)
	out = append(out, s.Red[:]...)
	out = append(out, s.Green[:]...)
	return append(out, s.Blue[:]...)
}

// Apply writes s, reversed when asked, into a LUT storage buffer.
func Apply(s *ColorScheme, reversed bool, w gpu.BufferWriter, buf *wgpu.Buffer) error {
	if reversed {
		s = s.Reversed()
	}
	if err := w.WriteBuffer(buf, 0, s.Bytes()); err != nil {
		return fmt.Errorf("lut: upload %q: %w", s.Name, err)
	}
	return nil
}

// DefaultBackground returns entry 0, the color of an empty field.
func DefaultBackground(s *ColorScheme) color.RGBA {
	return s.At(0)
}

// Background returns entry 0 of s as it is displayed.
func Background(s *ColorScheme, reversed bool) color.RGBA {
	if reversed {
		return s.At(Size - 1)
	}
	return s.At(0)
}

// FromStops builds a scheme by linear interpolation between evenly spaced
// color stops.
func FromStops(name string, stops ...RGB) *ColorScheme {
	s := &ColorScheme{Name: name}
	if len(stops) == 0 {
		return s
	}
	if len(stops) == 1 {
		stops = append(stops, stops[0])
	}
	segs := float64(len(stops) - 1)
	for i := range Size {
		t := float64(i) / (Size - 1) * segs
		k := min(int(t), len(stops)-2)
		c := stops[k].Lerp(stops[k+1], t-float64(k))
		s.Red[i], s.Green[i], s.Blue[i] = c.Bytes()
	}
	return s
}
