package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu"
)

// Pair holds exactly two resources with alternating roles. The current
// element is read during a step, the inactive one is written. Swap is the
// only role mutation.
type Pair[T any] struct {
	items   [2]T
	current int
}

// NewPair creates a pair whose current element is a.
func NewPair[T any](a, b T) Pair[T] {
	return Pair[T]{items: [2]T{a, b}}
}

// Current returns the element read by the next step.
func (p *Pair[T]) Current() T { return p.items[p.current] }

// Inactive returns the element written by the next step.
func (p *Pair[T]) Inactive() T { return p.items[1-p.current] }

// Swap flips the roles. After a step wrote Inactive, Swap makes that
// element Current.
func (p *Pair[T]) Swap() { p.current = 1 - p.current }

// Index returns 0 when the first element is current, 1 otherwise.
func (p *Pair[T]) Index() int { return p.current }

// At returns element i regardless of role.
func (p *Pair[T]) At(i int) T { return p.items[i&1] }

// Select picks a when the first element is current and b otherwise. It
// chooses between the two precomputed bind groups (A→B, B→A).
func Select[T, U any](p *Pair[T], a, b U) U {
	if p.current == 0 {
		return a
	}
	return b
}

// PingPongTextures is a pair of identically described 2D textures.
type PingPongTextures struct {
	Label  string
	Format wgpu.TextureFormat
	Usage  wgpu.TextureUsage
	Width  uint32
	Height uint32

	tex   Pair[*wgpu.Texture]
	views Pair[*wgpu.TextureView]
	owner *Owner
}

// NewPingPongTextures allocates both textures.
func NewPingPongTextures(o *Owner, label string, w, h uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*PingPongTextures, error) {
	pp := &PingPongTextures{Label: label, Format: format, Usage: usage, owner: o}
	if err := pp.allocate(w, h); err != nil {
		return nil, err
	}
	return pp, nil
}

func (pp *PingPongTextures) allocate(w, h uint32) error {
	ta, va, err := pp.owner.NewTexture2D(pp.Label+"_a", w, h, pp.Format, pp.Usage)
	if err != nil {
		return err
	}
	tb, vb, err := pp.owner.NewTexture2D(pp.Label+"_b", w, h, pp.Format, pp.Usage)
	if err != nil {
		pp.owner.Release(va)
		pp.owner.Release(ta)
		return err
	}
	pp.tex = NewPair(ta, tb)
	pp.views = NewPair(va, vb)
	pp.Width, pp.Height = w, h
	return nil
}

// Recreate releases both textures and allocates new ones at w×h. The pair
// starts over with the first texture current. Bind groups embedding the
// old views must be rebuilt by the caller.
func (pp *PingPongTextures) Recreate(w, h uint32) error {
	pp.release()
	return pp.allocate(w, h)
}

func (pp *PingPongTextures) release() {
	for i := range 2 {
		pp.owner.Release(pp.views.At(i))
		pp.owner.Release(pp.tex.At(i))
	}
}

// Release frees both textures.
func (pp *PingPongTextures) Release() { pp.release() }

// Swap flips read and write roles.
func (pp *PingPongTextures) Swap() {
	pp.tex.Swap()
	pp.views.Swap()
}

// CurrentView returns the view read by the next step.
func (pp *PingPongTextures) CurrentView() *wgpu.TextureView { return pp.views.Current() }

// InactiveView returns the view written by the next step.
func (pp *PingPongTextures) InactiveView() *wgpu.TextureView { return pp.views.Inactive() }

// CurrentTexture returns the texture behind CurrentView.
func (pp *PingPongTextures) CurrentTexture() *wgpu.Texture { return pp.tex.Current() }

// InactiveTexture returns the texture behind InactiveView.
func (pp *PingPongTextures) InactiveTexture() *wgpu.Texture { return pp.tex.Inactive() }

// ViewAt returns view i regardless of role; used to build bind group pairs.
func (pp *PingPongTextures) ViewAt(i int) *wgpu.TextureView { return pp.views.At(i) }

// TextureAt returns texture i of the pair.
func (pp *PingPongTextures) TextureAt(i int) *wgpu.Texture { return pp.tex.At(i) }

// Index returns the parity of the pair.
func (pp *PingPongTextures) Index() int { return pp.tex.Index() }

// PingPongBuffers is a pair of identically sized storage buffers.
type PingPongBuffers struct {
	Label string
	Size  uint64
	Usage wgpu.BufferUsage

	bufs  Pair[*wgpu.Buffer]
	owner *Owner
}

// NewPingPongBuffers allocates both buffers. Usage is added to Storage|CopyDst.
func NewPingPongBuffers(o *Owner, label string, size uint64, extra wgpu.BufferUsage) (*PingPongBuffers, error) {
	pb := &PingPongBuffers{Label: label, Usage: extra, owner: o}
	if err := pb.allocate(size); err != nil {
		return nil, err
	}
	return pb, nil
}

func (pb *PingPongBuffers) allocate(size uint64) error {
	a, err := pb.owner.NewStorage(pb.Label+"_a", size, nil, pb.Usage)
	if err != nil {
		return err
	}
	b, err := pb.owner.NewStorage(pb.Label+"_b", size, nil, pb.Usage)
	if err != nil {
		pb.owner.Release(a)
		return err
	}
	pb.bufs = NewPair(a, b)
	pb.Size = size
	return nil
}

// Recreate reallocates both buffers at size bytes.
func (pb *PingPongBuffers) Recreate(size uint64) error {
	pb.Release()
	return pb.allocate(size)
}

// Release frees both buffers.
func (pb *PingPongBuffers) Release() {
	pb.owner.Release(pb.bufs.At(0))
	pb.owner.Release(pb.bufs.At(1))
}

// Swap flips read and write roles.
func (pb *PingPongBuffers) Swap() { pb.bufs.Swap() }

// Current returns the buffer read by the next step.
func (pb *PingPongBuffers) Current() *wgpu.Buffer { return pb.bufs.Current() }

// Inactive returns the buffer written by the next step.
func (pb *PingPongBuffers) Inactive() *wgpu.Buffer { return pb.bufs.Inactive() }

// At returns buffer i regardless of role.
func (pb *PingPongBuffers) At(i int) *wgpu.Buffer { return pb.bufs.At(i) }

// Index returns the parity of the pair.
func (pb *PingPongBuffers) Index() int { return pb.bufs.Index() }

// BindGroupPair holds the two precomputed bind groups of a ping-pong pass:
// [0] reads element 0 and writes element 1, [1] the reverse.
type BindGroupPair struct {
	groups [2]*wgpu.BindGroup
}

// BuildBindGroupPair calls build once per parity and releases old once both
// new groups exist. On error old is left untouched. Rebuild only on resize
// or reallocation, never per tick.
func BuildBindGroupPair(o *Owner, old *BindGroupPair, build func(parity int) (*wgpu.BindGroup, error)) (*BindGroupPair, error) {
	var p BindGroupPair
	for i := range 2 {
		bg, err := build(i)
		if err != nil {
			p.Release(o)
			return nil, fmt.Errorf("gpu: bind group pair parity %d: %w", i, err)
		}
		p.groups[i] = bg
	}
	if old != nil {
		old.Release(o)
	}
	return &p, nil
}

// For returns the bind group matching the current parity of idx.
func (p *BindGroupPair) For(parity int) *wgpu.BindGroup { return p.groups[parity&1] }

// Release frees both bind groups.
func (p *BindGroupPair) Release(o *Owner) {
	for i, bg := range p.groups {
		if bg != nil {
			o.Release(bg)
			p.groups[i] = nil
		}
	}
}
