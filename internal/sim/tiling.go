package sim

import (
	_ "embed"

	"github.com/gogpu/simviz/internal/camera"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/wgpu"
)

//go:embed shaders/tiling.wgsl
var tilingWGSL string

// TilingShader returns the WGSL of the shared tiling render.
func TilingShader() string { return tilingWGSL }

// Render modes of the tiling shader.
const (
	// TileLUT maps one channel of the field through the color scheme.
	TileLUT uint32 = 0
	// TileDirect shows an already colored field over the background.
	TileDirect uint32 = 1
)

// Field channels selectable by RenderParams.Channel.
const (
	ChannelR uint32 = iota
	ChannelG
	ChannelB
	ChannelA
	ChannelLengthRG
)

// RenderParams is the tiling shader's render uniform. It is distinct from
// every compute params struct and written separately.
type RenderParams struct {
	Tiles   uint32
	Channel uint32
	Scale   float32
	Bias    float32
	Mode    uint32
	_       [3]uint32
}

// RenderParamsSize is the WGSL size of RenderParams.
const RenderParamsSize = 32

// TilingBindings are the host sizes of the tiling shader's buffers.
var TilingBindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: 16},
	{Group: 0, Binding: 3, Size: lut.BufferSize},
	{Group: 0, Binding: 4, Size: RenderParamsSize},
	{Group: 1, Binding: 0, Size: camera.UniformSize},
}

// TilingRenderer draws a ping-pong field texture as an infinite plane of
// tiles under the camera.
type TilingRenderer struct {
	base     *Base
	label    string
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.BindGroupLayout
	sampler  *wgpu.Sampler
	paramBuf *wgpu.Buffer
	camGroup *wgpu.BindGroup
	groups   *gpu.BindGroupPair

	params     RenderParams
	fixedTiles uint32
	dirty      bool
}

// NewTilingRenderer builds the pipeline for fields shown through views a
// and b, selected by ping-pong parity.
func NewTilingRenderer(b *Base, label string, params RenderParams, a, bv *wgpu.TextureView) (*TilingRenderer, error) {
	t := &TilingRenderer{base: b, label: label, params: params, dirty: true}
	o := b.Owner
	var err error
	t.layout, err = gpu.NewLayout(label+" field", wgpu.ShaderStageVertex|wgpu.ShaderStageFragment).
		Uniform().
		UnfilterableTexture().
		Sampler(false).
		ReadOnlyStorage().
		Uniform().
		Build(o)
	if err != nil {
		return nil, err
	}
	camLayout, err := gpu.NewLayout(label+" camera", wgpu.ShaderStageVertex).Uniform().Build(o)
	if err != nil {
		return nil, err
	}
	if t.sampler, err = o.CreateSampler(gpu.SamplerRepeat(label, false)); err != nil {
		return nil, err
	}
	if t.paramBuf, err = o.NewUniform(label+" render params", params); err != nil {
		return nil, err
	}
	if t.camGroup, err = gpu.NewBindGroup(label+" camera", camLayout).Buffer(b.CameraBuf).Build(o); err != nil {
		return nil, err
	}
	t.pipeline, err = gpu.NewRenderPipeline(b.GPU, o, label+" tiling").
		Shader(tilingWGSL).
		Layouts(t.layout, camLayout).
		Expect(TilingBindings...).
		Build()
	if err != nil {
		return nil, err
	}
	if err := t.SetViews(a, bv); err != nil {
		return nil, err
	}
	return t, nil
}

// SetViews rebuilds the two bind groups after the field was reallocated.
func (t *TilingRenderer) SetViews(a, b *wgpu.TextureView) error {
	views := [2]*wgpu.TextureView{a, b}
	if b == nil {
		views[1] = a
	}
	groups, err := gpu.BuildBindGroupPair(t.base.Owner, t.groups, func(parity int) (*wgpu.BindGroup, error) {
		return gpu.NewBindGroup(t.label+" field", t.layout).
			Buffer(t.base.BackgroundBuf).
			View(views[parity]).
			Sampler(t.sampler).
			Buffer(t.base.LUTBuf).
			Buffer(t.paramBuf).
			Build(t.base.Owner)
	})
	if err != nil {
		return err
	}
	t.groups = groups
	return nil
}

// FixTiles pins the tile count instead of deriving it from zoom.
func (t *TilingRenderer) FixTiles(n uint32) { t.fixedTiles = n }

// SetParams replaces the render params; they upload on the next draw.
func (t *TilingRenderer) SetParams(p RenderParams) {
	p.Tiles = t.params.Tiles
	if p != t.params {
		t.params = p
		t.dirty = true
	}
}

// Params returns the current render params.
func (t *TilingRenderer) Params() RenderParams { return t.params }

// Tiles returns the per-axis tile count for the current zoom.
func (t *TilingRenderer) Tiles() uint32 {
	if t.fixedTiles > 0 {
		return t.fixedTiles
	}
	return uint32(camera.TileCount(t.base.Camera.SmoothedZoom()))
}

// Draw returns the draw call for the field at parity, uploading the render
// params when the tile count or settings changed.
func (t *TilingRenderer) Draw(parity int) (gpu.Draw, error) {
	if n := t.Tiles(); n != t.params.Tiles {
		t.params.Tiles = n
		t.dirty = true
	}
	if t.dirty {
		if err := t.base.Write(t.paramBuf, t.params); err != nil {
			return gpu.Draw{}, err
		}
		t.dirty = false
	}
	return gpu.Draw{
		Pipeline:  t.pipeline,
		Groups:    []*wgpu.BindGroup{t.groups.For(parity), t.camGroup},
		Vertices:  6,
		Instances: t.params.Tiles * t.params.Tiles,
	}, nil
}

// Render records a full-surface pass that clears to the background and
// draws the tiled field.
func (t *TilingRenderer) Render(enc *wgpu.CommandEncoder, view *wgpu.TextureView, parity int) error {
	d, err := t.Draw(parity)
	if err != nil {
		return err
	}
	return gpu.RunRender(enc, t.label+" render", view, t.base.ClearColor(), d)
}
