// Package moire renders the interference of two gratings, smeared by a
// curl-noise flow, on a ping-pong rgba16float field.
package moire

import (
	_ "embed"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/mask"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Kind is the registry name.
const Kind = "moire"

const (
	workgroupSize = 16
	fieldFormat   = gputypes.TextureFormatRGBA16Float
	imageFormat   = gputypes.TextureFormatR8Unorm
	texelBytes    = 8
	imageUsage    = wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
)

//go:embed shaders/moire.wgsl
var shaderWGSL string

// Bindings are the host sizes of the shader's buffers.
var Bindings = []gpu.Binding{
	{Group: 0, Binding: 2, Size: ParamsSize},
}

func init() {
	sim.Register(sim.Descriptor{
		Kind:     Kind,
		New:      New,
		Software: newSoftware,
		Defaults: defaults,
	})
}

// Simulation is the GPU moire field.
type Simulation struct {
	*sim.Base

	settings Settings
	time     float32
	angle    float32
	frames   uint64

	field     *gpu.PingPongTextures
	paramBuf  *wgpu.Buffer
	imageTex  *wgpu.Texture
	imageView *wgpu.TextureView
	layout    *wgpu.BindGroupLayout
	pipeline  *wgpu.ComputePipeline
	groups    *gpu.BindGroupPair
	tiling    *sim.TilingRenderer

	img      image.Image
	imageOn  bool
	refitImg bool
}

// New builds the simulation at the environment's size.
func New(env sim.Env) (sim.Simulation, error) {
	base, err := sim.NewBase(Kind, env)
	if err != nil {
		return nil, err
	}
	s := &Simulation{Base: base, settings: DefaultSettings()}
	s.angle = s.settings.Angle
	if err := s.build(); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

func (s *Simulation) build() error {
	o := s.Owner
	w, h := s.FitField(s.Width, s.Height, 2*texelBytes)
	s.Width, s.Height = w, h

	var err error
	if s.field, err = gpu.NewPingPongTextures(o, "moire field", w, h, fieldFormat, gpu.FieldUsage); err != nil {
		return err
	}
	if err := s.clear(); err != nil {
		return err
	}
	if s.paramBuf, err = o.NewUniform("moire params", s.params(0)); err != nil {
		return err
	}
	if err := s.setImage(nil); err != nil {
		return err
	}
	s.layout, err = gpu.NewLayout("moire step", wgpu.ShaderStageCompute).
		UnfilterableTexture().
		StorageTexture(fieldFormat).
		Uniform().
		UnfilterableTexture().
		Build(o)
	if err != nil {
		return err
	}
	s.pipeline, err = gpu.NewComputePipeline(s.GPU, o, "moire step").
		Shader(shaderWGSL, "main").
		Layouts(s.layout).
		Expect(Bindings...).
		Build()
	if err != nil {
		return err
	}
	if err := s.buildGroups(); err != nil {
		return err
	}
	s.tiling, err = sim.NewTilingRenderer(s.Base, "moire", sim.RenderParams{
		Channel: sim.ChannelR,
		Scale:   1,
	}, s.field.ViewAt(0), s.field.ViewAt(1))
	return err
}

func (s *Simulation) buildGroups() error {
	groups, err := gpu.BuildBindGroupPair(s.Owner, s.groups, func(p int) (*wgpu.BindGroup, error) {
		return gpu.NewBindGroup("moire step", s.layout).
			View(s.field.ViewAt(p)).
			View(s.field.ViewAt(1 - p)).
			Buffer(s.paramBuf).
			View(s.imageView).
			Build(s.Owner)
	})
	if err != nil {
		return err
	}
	s.groups = groups
	return nil
}

// clear zeroes both field textures.
func (s *Simulation) clear() error {
	zero := make([]byte, int(s.Width)*int(s.Height)*texelBytes)
	for i := range 2 {
		if err := gpu.UploadTexture(s.GPU.Queue(), s.field.TextureAt(i), s.Width, s.Height, fieldFormat, zero); err != nil {
			return err
		}
	}
	s.frames = 0
	return nil
}

// setImage replaces the modulation texture with r8, a Width×Height
// field, or with a blank texel when r8 is nil.
func (s *Simulation) setImage(r8 []byte) error {
	w, h := uint32(1), uint32(1)
	if r8 != nil {
		w, h = s.Width, s.Height
	} else {
		r8 = []byte{255}
	}
	if s.imageTex != nil {
		s.Owner.Release(s.imageView)
		s.Owner.Release(s.imageTex)
	}
	var err error
	if s.imageTex, s.imageView, err = s.Owner.NewTexture2D("moire image", w, h, imageFormat, imageUsage); err != nil {
		return err
	}
	return gpu.UploadTexture(s.GPU.Queue(), s.imageTex, w, h, imageFormat, r8)
}

// applyImage loads or drops the modulation image after a settings change.
func (s *Simulation) applyImage(prev Settings) error {
	cur := s.settings
	if cur.ImageFitMode != prev.ImageFitMode || cur.ImageInvert != prev.ImageInvert {
		s.refitImg = true
	}
	if cur.ImageSource == prev.ImageSource && cur.ImagePath == prev.ImagePath && (s.img != nil || cur.ImageSource == SourceNone) {
		return nil
	}
	if cur.ImageSource != SourceImage || cur.ImagePath == "" {
		s.img, s.imageOn = nil, false
		return nil
	}
	img, err := mask.Load(cur.ImagePath)
	if err != nil {
		s.settings.ImagePath, s.settings.ImageSource = prev.ImagePath, prev.ImageSource
		return simviz.Wrap(simviz.KindInvalidSetting, err, "moire image %q", cur.ImagePath)
	}
	s.img, s.refitImg = img, true
	return nil
}

// refit fits the loaded image to the field and uploads it.
func (s *Simulation) refit() error {
	if !s.refitImg {
		return nil
	}
	s.refitImg = false
	var r8 []byte
	if s.img != nil {
		r8 = mask.ToR8(mask.Fit(s.img, int(s.Width), int(s.Height), s.settings.fitOptions()))
	}
	if err := s.setImage(r8); err != nil {
		return err
	}
	s.imageOn = r8 != nil
	return s.buildGroups()
}

func (s *Simulation) params(dt float32) Params {
	p := s.settings.params(s.Width, s.Height)
	p.Time, p.Dt, p.Angle = s.time, dt, s.angle
	p.Frame = uint32(s.frames)
	if s.imageOn {
		p.ImageEnabled = 1
	}
	p.CursorX, p.CursorY = s.Cursor.X, s.Cursor.Y
	p.CursorSize, p.CursorStrength = s.Cursor.Size, s.Cursor.Strength
	p.Mode = s.Mode()
	return p
}

// RenderFrame advances the flow and the gratings and draws the field.
func (s *Simulation) RenderFrame(view *wgpu.TextureView, dt float32) error {
	if s.Paused {
		return s.RenderFramePaused(view)
	}
	dt = sim.ClampDelta(dt)
	if err := s.PrepareCamera(dt); err != nil {
		return err
	}
	if err := s.refit(); err != nil {
		simviz.Logger().Warn("moire image dropped", "sim", Kind, "err", err)
		s.img, s.imageOn = nil, false
	}
	s.time += dt * s.settings.FlowSpeed
	s.angle += dt * s.settings.RotationSpeed
	if err := s.Write(s.paramBuf, s.params(dt)); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	err = s.GPU.RunCompute(enc, "moire", gpu.ComputeStep{
		Label:    "moire step",
		Pipeline: s.pipeline,
		Groups:   []*wgpu.BindGroup{s.groups.For(s.field.Index())},
		X:        gpu.WorkgroupCount(s.Width, workgroupSize),
		Y:        gpu.WorkgroupCount(s.Height, workgroupSize),
	})
	if err != nil {
		return err
	}
	s.field.Swap()
	s.frames++
	if err := s.tiling.Render(enc, view, s.field.Index()); err != nil {
		return err
	}
	return s.Submit(enc)
}

// RenderFramePaused draws the current field.
func (s *Simulation) RenderFramePaused(view *wgpu.TextureView) error {
	if err := s.PrepareCamera(0); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	if err := s.tiling.Render(enc, view, s.field.Index()); err != nil {
		return err
	}
	return s.Submit(enc)
}

// Resize reallocates the field, carrying the pattern over, and refits the
// image.
func (s *Simulation) Resize(width, height uint32) error {
	if !s.Resized(width, height) {
		return nil
	}
	w, h := s.FitField(width, height, 2*texelBytes)
	next, kept, err := s.ResizeTextures(s.field, w, h)
	if err != nil {
		return err
	}
	s.field = next
	s.Width, s.Height = w, h
	if !kept {
		if err := s.clear(); err != nil {
			return err
		}
	}
	s.refitImg = s.img != nil
	if err := s.buildGroups(); err != nil {
		return err
	}
	return s.tiling.SetViews(s.field.ViewAt(0), s.field.ViewAt(1))
}

// UpdateSetting changes one setting.
func (s *Simulation) UpdateSetting(name string, value any) error {
	prev := s.settings
	if err := sim.SetField(&s.settings, name, value); err != nil {
		return err
	}
	if name == "angle" {
		s.angle = s.settings.Angle
	}
	return s.applyImage(prev)
}

// UpdateState changes runtime state.
func (s *Simulation) UpdateState(name string, value any) error {
	handled, err := s.UpdateCommonState(name, value)
	if err != nil {
		return err
	}
	if !handled {
		return simviz.InvalidSetting(name, "unknown state key")
	}
	return nil
}

// Settings returns the settings tree.
func (s *Simulation) Settings() sim.ValueTree { return sim.EncodeSettings(s.settings) }

// State returns runtime state.
func (s *Simulation) State() sim.ValueTree {
	st := s.CommonState()
	st["frames"] = s.frames
	st["time"] = s.time
	st["image_active"] = s.imageOn
	return st
}

// ApplySettings replaces all settings; on error nothing changes.
func (s *Simulation) ApplySettings(tree sim.ValueTree) error {
	prev := s.settings
	if err := sim.DecodeSettings(tree, &s.settings); err != nil {
		return err
	}
	s.angle = s.settings.Angle
	if err := s.applyImage(prev); err != nil {
		simviz.Logger().Warn("moire image disabled", "sim", Kind, "err", err)
	}
	return nil
}

// ResetRuntimeState clears the field and restarts the clock.
func (s *Simulation) ResetRuntimeState() error {
	s.time, s.angle = 0, s.settings.Angle
	return s.clear()
}

// RandomizeSettings draws new gratings.
func (s *Simulation) RandomizeSettings() error {
	sim.Randomize(&s.settings, s.RNG)
	s.angle = s.settings.Angle
	return nil
}

// HandleMouse swirls the flow (left counter-clockwise, middle clockwise)
// or erases (right) around (x, y).
func (s *Simulation) HandleMouse(x, y float32, button int) error {
	s.PressCursor(x, y, button)
	return nil
}

// HandleMouseRelease stops the interaction.
func (s *Simulation) HandleMouseRelease(int) error {
	s.ReleaseCursor()
	return nil
}
