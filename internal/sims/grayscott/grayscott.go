// Package grayscott implements the Gray-Scott reaction-diffusion
// simulation on a ping-pong rgba32float field.
package grayscott

import (
	_ "embed"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Kind is the registry name.
const Kind = "gray_scott"

const (
	workgroupSize = 16
	fieldFormat   = gputypes.TextureFormatRGBA32Float
	texelBytes    = 16
)

//go:embed shaders/gray_scott.wgsl
var shaderWGSL string

// Bindings are the host sizes of the step shader's buffers.
var Bindings = []gpu.Binding{
	{Group: 0, Binding: 2, Size: ParamsSize},
	{Group: 0, Binding: 3, Size: 4},
}

func init() {
	sim.Register(sim.Descriptor{
		Kind:     Kind,
		New:      New,
		Software: newSoftware,
		Defaults: defaults,
	})
}

// Simulation is the GPU Gray-Scott simulation.
type Simulation struct {
	*sim.Base

	settings Settings
	params   Params
	dirty    bool

	field    *gpu.PingPongTextures
	paramBuf *wgpu.Buffer
	maskBuf  *wgpu.Buffer
	layout   *wgpu.BindGroupLayout
	pipeline *wgpu.ComputePipeline
	groups   *gpu.BindGroupPair
	tiling   *sim.TilingRenderer

	mask   maskFeed
	frames uint64
}

// New builds the simulation at the environment's size.
func New(env sim.Env) (sim.Simulation, error) {
	base, err := sim.NewBase(Kind, env)
	if err != nil {
		return nil, err
	}
	s := &Simulation{Base: base, settings: DefaultSettings(), dirty: true}
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
	if s.field, err = gpu.NewPingPongTextures(o, "gray_scott uv", w, h, fieldFormat, gpu.FieldUsage); err != nil {
		return err
	}
	if err := s.seed(); err != nil {
		return err
	}
	s.params = s.settings.params(w, h, uint32(s.RNG.Seed()))
	if s.paramBuf, err = o.NewUniform("gray_scott params", s.params); err != nil {
		return err
	}
	if s.maskBuf, err = o.NewStorage("gray_scott mask", uint64(w)*uint64(h)*4, nil, 0); err != nil {
		return err
	}
	s.layout, err = gpu.NewLayout("gray_scott step", wgpu.ShaderStageCompute).
		UnfilterableTexture().
		StorageTexture(fieldFormat).
		Uniform().
		ReadOnlyStorage().
		Build(o)
	if err != nil {
		return err
	}
	s.pipeline, err = gpu.NewComputePipeline(s.GPU, o, "gray_scott step").
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
	s.tiling, err = sim.NewTilingRenderer(s.Base, "gray_scott", sim.RenderParams{
		Channel: sim.ChannelG,
		Scale:   2,
	}, s.field.ViewAt(0), s.field.ViewAt(1))
	return err
}

// buildGroups precomputes the step bind groups: parity p reads view p and
// writes the other.
func (s *Simulation) buildGroups() error {
	groups, err := gpu.BuildBindGroupPair(s.Owner, s.groups, func(p int) (*wgpu.BindGroup, error) {
		return gpu.NewBindGroup("gray_scott step", s.layout).
			View(s.field.ViewAt(p)).
			View(s.field.ViewAt(1 - p)).
			Buffer(s.paramBuf).
			Buffer(s.maskBuf).
			Build(s.Owner)
	})
	if err != nil {
		return err
	}
	s.groups = groups
	return nil
}

// seed fills the current field from the CPU model.
func (s *Simulation) seed() error {
	f := NewField(int(s.Width), int(s.Height))
	f.Seed(s.RNG)
	s.frames = 0
	return gpu.UploadTexture(s.GPU.Queue(), s.field.CurrentTexture(), s.Width, s.Height, fieldFormat, f.RGBA32F())
}

// sync rebuilds the params from settings and cursor state.
func (s *Simulation) sync() {
	p := s.settings.params(s.Width, s.Height, uint32(s.RNG.Seed()))
	p.MaskEnabled = s.mask.enabled()
	p.CursorX, p.CursorY = s.Cursor.X, s.Cursor.Y
	p.CursorSize, p.CursorStrength = s.Cursor.Size, s.Cursor.Strength
	p.Mode = s.Mode()
	if p != s.params {
		s.params = p
		s.dirty = true
	}
}

func (s *Simulation) upload() error {
	s.sync()
	if !s.dirty {
		return nil
	}
	if err := s.Write(s.paramBuf, s.params); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// RenderFrame runs up to max_frames_per_tick steps and draws the field.
func (s *Simulation) RenderFrame(view *wgpu.TextureView, dt float32) error {
	if s.Paused {
		return s.RenderFramePaused(view)
	}
	dt = sim.ClampDelta(dt)
	if err := s.PrepareCamera(dt); err != nil {
		return err
	}
	if err := s.upload(); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	gx := gpu.WorkgroupCount(s.Width, workgroupSize)
	gy := gpu.WorkgroupCount(s.Height, workgroupSize)
	steps := make([]gpu.ComputeStep, 0, s.settings.MaxFramesPerTick)
	for range max(s.settings.MaxFramesPerTick, 1) {
		steps = append(steps, gpu.ComputeStep{
			Label:    "gray_scott step",
			Pipeline: s.pipeline,
			Groups:   []*wgpu.BindGroup{s.groups.For(s.field.Index())},
			X:        gx,
			Y:        gy,
		})
		s.field.Swap()
	}
	if err := s.GPU.RunCompute(enc, "gray_scott", steps...); err != nil {
		return err
	}
	s.frames += uint64(len(steps))
	if err := s.pollMask(); err != nil {
		simviz.Logger().Warn("mask update failed", "sim", Kind, "err", err)
	}
	if err := s.tiling.Render(enc, view, s.field.Index()); err != nil {
		return err
	}
	return s.Submit(enc)
}

// RenderFramePaused draws the current field without stepping.
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

// Resize reallocates the field at the new size, carrying the pattern over.
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
		if err := s.seed(); err != nil {
			return err
		}
	}
	s.Owner.Release(s.maskBuf)
	if s.maskBuf, err = s.Owner.NewStorage("gray_scott mask", uint64(w)*uint64(h)*4, nil, 0); err != nil {
		return err
	}
	if err := s.buildGroups(); err != nil {
		return err
	}
	if err := s.tiling.SetViews(s.field.ViewAt(0), s.field.ViewAt(1)); err != nil {
		return err
	}
	s.mask.refit = true
	s.dirty = true
	return nil
}

// UpdateSetting changes one setting.
func (s *Simulation) UpdateSetting(name string, value any) error {
	prev := s.settings
	if err := sim.SetField(&s.settings, name, value); err != nil {
		return err
	}
	if isMaskSetting(name) {
		if err := s.applyMask(prev); err != nil {
			return err
		}
	}
	s.sync()
	return nil
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
	s.sync()
	return nil
}

// Settings returns the settings tree.
func (s *Simulation) Settings() sim.ValueTree { return sim.EncodeSettings(s.settings) }

// State returns runtime state.
func (s *Simulation) State() sim.ValueTree {
	st := s.CommonState()
	st["frames"] = s.frames
	st["mask_active"] = s.mask.enabled() != 0
	return st
}

// ApplySettings replaces all settings; on error nothing changes.
func (s *Simulation) ApplySettings(tree sim.ValueTree) error {
	prev := s.settings
	if err := sim.DecodeSettings(tree, &s.settings); err != nil {
		return err
	}
	if err := s.applyMask(prev); err != nil {
		simviz.Logger().Warn("mask disabled", "sim", Kind, "err", err)
	}
	s.sync()
	return nil
}

// ResetRuntimeState reseeds the field.
func (s *Simulation) ResetRuntimeState() error {
	s.RNG.Reseed(s.RNG.Seed() + 1)
	if err := s.seed(); err != nil {
		return err
	}
	s.sync()
	return nil
}

// RandomizeSettings draws new reaction parameters.
func (s *Simulation) RandomizeSettings() error {
	sim.Randomize(&s.settings, s.RNG)
	s.sync()
	return nil
}

// HandleMouse seeds (left or middle) or erases (right) around (x, y).
func (s *Simulation) HandleMouse(x, y float32, button int) error {
	s.PressCursor(x, y, button)
	s.sync()
	return nil
}

// HandleMouseRelease stops the interaction.
func (s *Simulation) HandleMouseRelease(int) error {
	s.ReleaseCursor()
	s.sync()
	return nil
}

// Release frees GPU resources and closes the mask source.
func (s *Simulation) Release() {
	s.mask.close()
	s.Base.Release()
}
