package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/wgpu"
)

// ResourceKind classifies a tracked GPU object.
type ResourceKind uint8

const (
	ResourceBuffer ResourceKind = iota
	ResourceTexture
	ResourceView
	ResourceSampler
	ResourceLayout
	ResourceBindGroup
	ResourcePipeline
	ResourceShader
	numResourceKinds
)

var resourceKindNames = [numResourceKinds]string{
	"buffer", "texture", "view", "sampler", "layout", "bindgroup", "pipeline", "shader",
}

// String returns the string representation of ResourceKind.
func (k ResourceKind) String() string {
	if k < numResourceKinds {
		return resourceKindNames[k]
	}
	return fmt.Sprintf("ResourceKind(%d)", k)
}

// MemoryStats is a snapshot of live GPU objects created through owners.
type MemoryStats struct {
	// Live counts objects per kind.
	Live [numResourceKinds]int64

	// BufferBytes is the total size of live buffers.
	BufferBytes uint64

	// TextureBytes is the estimated size of live textures.
	TextureBytes uint64
}

// Total returns the number of live objects of every kind.
func (s MemoryStats) Total() int64 {
	var n int64
	for _, c := range s.Live {
		n += c
	}
	return n
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%d objects, buffers %d (%d KB), textures %d (%d KB), bind groups %d, pipelines %d]",
		s.Total(),
		s.Live[ResourceBuffer], s.BufferBytes/1024,
		s.Live[ResourceTexture], s.TextureBytes/1024,
		s.Live[ResourceBindGroup], s.Live[ResourcePipeline])
}

// Ledger counts live GPU objects for a context. It is safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	stats MemoryStats
}

func (l *Ledger) add(kind ResourceKind, bytes uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.Live[kind]++
	switch kind {
	case ResourceBuffer:
		l.stats.BufferBytes += bytes
	case ResourceTexture:
		l.stats.TextureBytes += bytes
	}
}

func (l *Ledger) remove(kind ResourceKind, bytes uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.Live[kind]--
	switch kind {
	case ResourceBuffer:
		l.stats.BufferBytes -= bytes
	case ResourceTexture:
		l.stats.TextureBytes -= bytes
	}
}

// Stats returns a snapshot of the counters.
func (l *Ledger) Stats() MemoryStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Releaser is any GPU object with a Release method.
type Releaser interface {
	Release()
}

type owned struct {
	r     Releaser
	kind  ResourceKind
	bytes uint64
}

// Owner creates GPU objects on behalf of one simulation and remembers them.
// ReleaseAll frees everything in reverse creation order.
//
// Owner is safe for concurrent use, although simulations only touch it
// under the manager lock.
type Owner struct {
	device *wgpu.Device
	ledger *Ledger

	mu    sync.Mutex
	items []owned
}

// NewOwner creates an owner that records into ledger. device may be nil in
// tests that only use Track.
func NewOwner(device *wgpu.Device, ledger *Ledger) *Owner {
	if ledger == nil {
		ledger = &Ledger{}
	}
	return &Owner{device: device, ledger: ledger}
}

// Device returns the device objects are created on.
func (o *Owner) Device() *wgpu.Device { return o.device }

// Track records an object created elsewhere.
func (o *Owner) Track(kind ResourceKind, r Releaser, bytes uint64) {
	if r == nil {
		return
	}
	o.mu.Lock()
	o.items = append(o.items, owned{r: r, kind: kind, bytes: bytes})
	o.mu.Unlock()
	o.ledger.add(kind, bytes)
}

// Release frees one tracked object immediately. Unknown objects are ignored.
func (o *Owner) Release(r Releaser) {
	if r == nil {
		return
	}
	o.mu.Lock()
	idx := -1
	for i := len(o.items) - 1; i >= 0; i-- {
		if o.items[i].r == r {
			idx = i
			break
		}
	}
	if idx < 0 {
		o.mu.Unlock()
		return
	}
	it := o.items[idx]
	o.items = append(o.items[:idx], o.items[idx+1:]...)
	o.mu.Unlock()

	it.r.Release()
	o.ledger.remove(it.kind, it.bytes)
}

// ReleaseAll frees every tracked object, newest first.
func (o *Owner) ReleaseAll() {
	o.mu.Lock()
	items := o.items
	o.items = nil
	o.mu.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		items[i].r.Release()
		o.ledger.remove(items[i].kind, items[i].bytes)
	}
}

// Len returns the number of tracked objects.
func (o *Owner) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// CreateBuffer creates and tracks a buffer.
func (o *Owner) CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	buf, err := o.device.CreateBuffer(desc)
	if err != nil {
		return nil, wrapCreate(err, "create buffer %q", desc.Label)
	}
	o.Track(ResourceBuffer, buf, desc.Size)
	return buf, nil
}

// CreateTexture creates and tracks a texture.
func (o *Owner) CreateTexture(desc *wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	tex, err := o.device.CreateTexture(desc)
	if err != nil {
		return nil, wrapCreate(err, "create texture %q", desc.Label)
	}
	bytes := uint64(desc.Size.Width) * uint64(desc.Size.Height) * uint64(BytesPerTexel(desc.Format))
	o.Track(ResourceTexture, tex, bytes)
	return tex, nil
}

// CreateTextureView creates and tracks a view of tex.
func (o *Owner) CreateTextureView(tex *wgpu.Texture, desc *wgpu.TextureViewDescriptor) (*wgpu.TextureView, error) {
	view, err := o.device.CreateTextureView(tex, desc)
	if err != nil {
		return nil, wrapCreate(err, "create texture view")
	}
	o.Track(ResourceView, view, 0)
	return view, nil
}

// CreateSampler creates and tracks a sampler.
func (o *Owner) CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	s, err := o.device.CreateSampler(desc)
	if err != nil {
		return nil, wrapCreate(err, "create sampler %q", desc.Label)
	}
	o.Track(ResourceSampler, s, 0)
	return s, nil
}

// CreateBindGroupLayout creates and tracks a bind group layout.
func (o *Owner) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	l, err := o.device.CreateBindGroupLayout(desc)
	if err != nil {
		return nil, wrapCreate(err, "create bind group layout %q", desc.Label)
	}
	o.Track(ResourceLayout, l, 0)
	return l, nil
}

// CreatePipelineLayout creates and tracks a pipeline layout.
func (o *Owner) CreatePipelineLayout(desc *wgpu.PipelineLayoutDescriptor) (*wgpu.PipelineLayout, error) {
	l, err := o.device.CreatePipelineLayout(desc)
	if err != nil {
		return nil, wrapCreate(err, "create pipeline layout %q", desc.Label)
	}
	o.Track(ResourceLayout, l, 0)
	return l, nil
}

// CreateBindGroup creates and tracks a bind group.
func (o *Owner) CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	bg, err := o.device.CreateBindGroup(desc)
	if err != nil {
		return nil, wrapCreate(err, "create bind group %q", desc.Label)
	}
	o.Track(ResourceBindGroup, bg, 0)
	return bg, nil
}
