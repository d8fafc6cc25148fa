package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

// ComputePipelineBuilder assembles a compute pipeline.
type ComputePipelineBuilder struct {
	owner   *Owner
	shaders *ShaderManager
	label   string
	src     string
	entry   string
	layouts []*wgpu.BindGroupLayout
	expect  []Binding
}

// NewComputePipeline starts a compute pipeline whose objects are owned by o.
func NewComputePipeline(c *Context, o *Owner, label string) *ComputePipelineBuilder {
	return &ComputePipelineBuilder{owner: o, shaders: c.Shaders(), label: label, entry: "main"}
}

// Shader sets the WGSL source and entry point.
func (b *ComputePipelineBuilder) Shader(src, entry string) *ComputePipelineBuilder {
	b.src, b.entry = src, entry
	return b
}

// Layouts sets the bind group layouts in group order.
func (b *ComputePipelineBuilder) Layouts(layouts ...*wgpu.BindGroupLayout) *ComputePipelineBuilder {
	b.layouts = layouts
	return b
}

// Expect declares host sizes checked against the shader before creation.
func (b *ComputePipelineBuilder) Expect(bindings ...Binding) *ComputePipelineBuilder {
	b.expect = append(b.expect, bindings...)
	return b
}

// Build validates the bindings and creates the pipeline.
func (b *ComputePipelineBuilder) Build() (*wgpu.ComputePipeline, error) {
	if err := ValidateLayout(b.src, b.expect); err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", b.label, err)
	}
	module, err := b.shaders.Module(b.label, b.src)
	if err != nil {
		return nil, err
	}
	layout, err := b.owner.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            b.label,
		BindGroupLayouts: b.layouts,
	})
	if err != nil {
		return nil, err
	}
	p, err := b.owner.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:      b.label,
		Layout:     layout,
		Module:     module,
		EntryPoint: b.entry,
	})
	if err != nil {
		return nil, wrapCreate(err, "create compute pipeline %q", b.label)
	}
	b.owner.Track(ResourcePipeline, p, 0)
	slogger().Debug("gpu: compute pipeline", "label", b.label, "entry", b.entry, "groups", len(b.layouts))
	return p, nil
}

// RenderPipelineBuilder assembles a render pipeline with one color target
// and no depth.
type RenderPipelineBuilder struct {
	owner    *Owner
	shaders  *ShaderManager
	label    string
	src      string
	vsEntry  string
	fsEntry  string
	layouts  []*wgpu.BindGroupLayout
	buffers  []wgpu.VertexBufferLayout
	format   wgpu.TextureFormat
	blend    *gputypes.BlendState
	topology gputypes.PrimitiveTopology
	expect   []Binding
}

// NewRenderPipeline starts a render pipeline targeting the surface format.
func NewRenderPipeline(c *Context, o *Owner, label string) *RenderPipelineBuilder {
	return &RenderPipelineBuilder{
		owner:    o,
		shaders:  c.Shaders(),
		label:    label,
		vsEntry:  "vs_main",
		fsEntry:  "fs_main",
		format:   c.SurfaceConfig().Format,
		topology: gputypes.PrimitiveTopologyTriangleList,
	}
}

// Shader sets the WGSL source holding both stages.
func (b *RenderPipelineBuilder) Shader(src string) *RenderPipelineBuilder {
	b.src = src
	return b
}

// VertexEntry sets the vertex entry point.
func (b *RenderPipelineBuilder) VertexEntry(name string) *RenderPipelineBuilder {
	b.vsEntry = name
	return b
}

// FragmentEntry sets the fragment entry point.
func (b *RenderPipelineBuilder) FragmentEntry(name string) *RenderPipelineBuilder {
	b.fsEntry = name
	return b
}

// Layouts sets the bind group layouts in group order.
func (b *RenderPipelineBuilder) Layouts(layouts ...*wgpu.BindGroupLayout) *RenderPipelineBuilder {
	b.layouts = layouts
	return b
}

// VertexBuffers sets the vertex buffer layouts.
func (b *RenderPipelineBuilder) VertexBuffers(buffers ...wgpu.VertexBufferLayout) *RenderPipelineBuilder {
	b.buffers = buffers
	return b
}

// Target sets the color target format and blend state. A nil blend
// replaces the destination.
func (b *RenderPipelineBuilder) Target(format wgpu.TextureFormat, blend *gputypes.BlendState) *RenderPipelineBuilder {
	b.format, b.blend = format, blend
	return b
}

// Topology sets the primitive topology.
func (b *RenderPipelineBuilder) Topology(t gputypes.PrimitiveTopology) *RenderPipelineBuilder {
	b.topology = t
	return b
}

// Expect declares host sizes checked against the shader before creation.
func (b *RenderPipelineBuilder) Expect(bindings ...Binding) *RenderPipelineBuilder {
	b.expect = append(b.expect, bindings...)
	return b
}

// Build validates the bindings and creates the pipeline.
func (b *RenderPipelineBuilder) Build() (*wgpu.RenderPipeline, error) {
	if err := ValidateLayout(b.src, b.expect); err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", b.label, err)
	}
	module, err := b.shaders.Module(b.label, b.src)
	if err != nil {
		return nil, err
	}
	layout, err := b.owner.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            b.label,
		BindGroupLayouts: b.layouts,
	})
	if err != nil {
		return nil, err
	}
	primitive := gputypes.DefaultPrimitiveState()
	primitive.Topology = b.topology
	primitive.CullMode = gputypes.CullModeNone

	p, err := b.owner.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  b.label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: b.vsEntry,
			Buffers:    b.buffers,
		},
		Primitive:   primitive,
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: b.fsEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    b.format,
				Blend:     b.blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return nil, wrapCreate(err, "create render pipeline %q", b.label)
	}
	b.owner.Track(ResourcePipeline, p, 0)
	slogger().Debug("gpu: render pipeline", "label", b.label, "format", b.format, "groups", len(b.layouts))
	return p, nil
}

// AlphaBlend returns standard source-over blending.
func AlphaBlend() *gputypes.BlendState {
	s := gputypes.BlendStateAlpha()
	return &s
}

// AdditiveBlend returns src + dst blending for trail splats.
func AdditiveBlend() *gputypes.BlendState {
	c := gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorOne,
		DstFactor: gputypes.BlendFactorOne,
		Operation: gputypes.BlendOperationAdd,
	}
	return &gputypes.BlendState{Color: c, Alpha: c}
}
