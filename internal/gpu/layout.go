package gpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

// LayoutBuilder declares the entries of one bind group layout. Bindings are
// numbered in call order starting at 0 unless At is used.
type LayoutBuilder struct {
	label      string
	visibility wgpu.ShaderStages
	entries    []wgpu.BindGroupLayoutEntry
	next       uint32
}

// NewLayout starts a layout visible to the given stages.
func NewLayout(label string, visibility wgpu.ShaderStages) *LayoutBuilder {
	return &LayoutBuilder{label: label, visibility: visibility}
}

// At sets the binding number of the next entry.
func (b *LayoutBuilder) At(binding uint32) *LayoutBuilder {
	b.next = binding
	return b
}

func (b *LayoutBuilder) add(e wgpu.BindGroupLayoutEntry) *LayoutBuilder {
	e.Binding = b.next
	if e.Visibility == 0 {
		e.Visibility = b.visibility
	}
	b.entries = append(b.entries, e)
	b.next++
	return b
}

func (b *LayoutBuilder) buffer(t gputypes.BufferBindingType) *LayoutBuilder {
	return b.add(wgpu.BindGroupLayoutEntry{
		Buffer: &gputypes.BufferBindingLayout{Type: t},
	})
}

// Uniform adds a uniform buffer entry.
func (b *LayoutBuilder) Uniform() *LayoutBuilder {
	return b.buffer(gputypes.BufferBindingTypeUniform)
}

// Storage adds a read-write storage buffer entry. Read-write storage is not
// allowed in vertex stages, so vertex visibility is dropped.
func (b *LayoutBuilder) Storage() *LayoutBuilder {
	vis := b.visibility &^ wgpu.ShaderStageVertex
	if vis == 0 {
		vis = wgpu.ShaderStageCompute
	}
	return b.add(wgpu.BindGroupLayoutEntry{
		Visibility: vis,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
	})
}

// ReadOnlyStorage adds a read-only storage buffer entry.
func (b *LayoutBuilder) ReadOnlyStorage() *LayoutBuilder {
	return b.buffer(gputypes.BufferBindingTypeReadOnlyStorage)
}

// Texture adds a filterable float texture entry.
func (b *LayoutBuilder) Texture() *LayoutBuilder {
	return b.add(wgpu.BindGroupLayoutEntry{
		Texture: &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	})
}

// UnfilterableTexture adds an unfilterable float texture entry, required
// for 32-bit float formats.
func (b *LayoutBuilder) UnfilterableTexture() *LayoutBuilder {
	return b.add(wgpu.BindGroupLayoutEntry{
		Texture: &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	})
}

// StorageTexture adds a write-only storage texture entry of format f.
func (b *LayoutBuilder) StorageTexture(f wgpu.TextureFormat) *LayoutBuilder {
	return b.add(wgpu.BindGroupLayoutEntry{
		Visibility: wgpu.ShaderStageCompute,
		StorageTexture: &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessWriteOnly,
			Format:        f,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	})
}

// Sampler adds a sampler entry. filtering must match the sampler's filter
// mode and the sampled texture type.
func (b *LayoutBuilder) Sampler(filtering bool) *LayoutBuilder {
	t := gputypes.SamplerBindingTypeNonFiltering
	if filtering {
		t = gputypes.SamplerBindingTypeFiltering
	}
	return b.add(wgpu.BindGroupLayoutEntry{
		Sampler: &gputypes.SamplerBindingLayout{Type: t},
	})
}

// Entries returns the declared entries.
func (b *LayoutBuilder) Entries() []wgpu.BindGroupLayoutEntry { return b.entries }

// Build creates the layout through o.
func (b *LayoutBuilder) Build(o *Owner) (*wgpu.BindGroupLayout, error) {
	return o.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   b.label,
		Entries: b.entries,
	})
}

// BindGroupBuilder fills a bind group for a layout. Bindings are numbered
// in call order starting at 0 unless At is used.
type BindGroupBuilder struct {
	label   string
	layout  *wgpu.BindGroupLayout
	entries []wgpu.BindGroupEntry
	next    uint32
}

// NewBindGroup starts a bind group for layout.
func NewBindGroup(label string, layout *wgpu.BindGroupLayout) *BindGroupBuilder {
	return &BindGroupBuilder{label: label, layout: layout}
}

// At sets the binding number of the next entry.
func (b *BindGroupBuilder) At(binding uint32) *BindGroupBuilder {
	b.next = binding
	return b
}

func (b *BindGroupBuilder) add(e wgpu.BindGroupEntry) *BindGroupBuilder {
	e.Binding = b.next
	b.entries = append(b.entries, e)
	b.next++
	return b
}

// Buffer binds the whole of buf.
func (b *BindGroupBuilder) Buffer(buf *wgpu.Buffer) *BindGroupBuilder {
	return b.add(wgpu.BindGroupEntry{Buffer: buf, Size: buf.Size()})
}

// View binds a texture view.
func (b *BindGroupBuilder) View(v *wgpu.TextureView) *BindGroupBuilder {
	return b.add(wgpu.BindGroupEntry{TextureView: v})
}

// Sampler binds a sampler.
func (b *BindGroupBuilder) Sampler(s *wgpu.Sampler) *BindGroupBuilder {
	return b.add(wgpu.BindGroupEntry{Sampler: s})
}

// Build creates the bind group through o.
func (b *BindGroupBuilder) Build(o *Owner) (*wgpu.BindGroup, error) {
	return o.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   b.label,
		Layout:  b.layout,
		Entries: b.entries,
	})
}
