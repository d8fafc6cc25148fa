// Package flow advects particles through an evolving curl-noise field and
// accumulates their paths in a decaying, diffusing trail.
package flow

import (
	_ "embed"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Kind is the registry name.
const Kind = "flow"

const (
	particleGroup = 64
	trailGroup    = 16
	trailFormat   = gputypes.TextureFormatRGBA16Float
	trailTexel    = 8
	trailUsage    = gpu.FieldUsage | wgpu.TextureUsageRenderAttachment
)

var (
	//go:embed shaders/flow.wgsl
	updateWGSL string
	//go:embed shaders/trail.wgsl
	trailWGSL string
	//go:embed shaders/flow_render.wgsl
	renderWGSL string
)

// Bindings are the host sizes of the update shader's buffers.
var Bindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: ParamsSize},
	{Group: 0, Binding: 1, Size: ParticleSize},
}

// TrailBindings are the host sizes of the trail shader's buffers.
var TrailBindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: ParamsSize},
}

// RenderBindings are the host sizes of the particle renderer's buffers.
var RenderBindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: ParticleSize},
	{Group: 0, Binding: 1, Size: 3072},
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

// Simulation is the GPU flow field.
type Simulation struct {
	*sim.Base

	settings Settings
	count    uint32
	frame    uint32
	time     float32

	paramBuf    *wgpu.Buffer
	particleBuf *wgpu.Buffer
	trail       *gpu.PingPongTextures

	updateLayout *wgpu.BindGroupLayout
	trailLayout  *wgpu.BindGroupLayout
	drawLayout   *wgpu.BindGroupLayout
	update       *wgpu.ComputePipeline
	decay        *wgpu.ComputePipeline
	draw         *wgpu.RenderPipeline
	updateGroup  *wgpu.BindGroup
	drawGroup    *wgpu.BindGroup
	trailGroups  *gpu.BindGroupPair
	tiling       *sim.TilingRenderer

	dirtySpawn bool
}

// New builds the simulation.
func New(env sim.Env) (sim.Simulation, error) {
	base, err := sim.NewBase(Kind, env)
	if err != nil {
		return nil, err
	}
	s := &Simulation{Base: base, settings: DefaultSettings()}
	if err := s.build(); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

func (s *Simulation) build() error {
	o := s.Owner
	w, h := s.FitField(s.Width, s.Height, 2*trailTexel)
	s.Width, s.Height = w, h

	var err error
	if s.paramBuf, err = o.NewUniform("flow params", Params{}); err != nil {
		return err
	}
	if s.trail, err = gpu.NewPingPongTextures(o, "flow trail", w, h, trailFormat, trailUsage); err != nil {
		return err
	}
	if err := s.clearTrail(); err != nil {
		return err
	}
	if s.updateLayout, err = gpu.NewLayout("flow update", wgpu.ShaderStageCompute).
		Uniform().Storage().Build(o); err != nil {
		return err
	}
	if s.trailLayout, err = gpu.NewLayout("flow trail", wgpu.ShaderStageCompute).
		Uniform().UnfilterableTexture().StorageTexture(trailFormat).Build(o); err != nil {
		return err
	}
	if s.drawLayout, err = gpu.NewLayout("flow draw", wgpu.ShaderStageVertex|wgpu.ShaderStageFragment).
		ReadOnlyStorage().ReadOnlyStorage().Uniform().Build(o); err != nil {
		return err
	}
	if s.update, err = gpu.NewComputePipeline(s.GPU, o, "flow update").
		Shader(updateWGSL, "main").Layouts(s.updateLayout).Expect(Bindings...).Build(); err != nil {
		return err
	}
	if s.decay, err = gpu.NewComputePipeline(s.GPU, o, "flow trail").
		Shader(trailWGSL, "main").Layouts(s.trailLayout).Expect(TrailBindings...).Build(); err != nil {
		return err
	}
	s.draw, err = gpu.NewRenderPipeline(s.GPU, o, "flow draw").
		Shader(renderWGSL).
		Layouts(s.drawLayout).
		Target(trailFormat, gpu.AdditiveBlend()).
		Expect(RenderBindings...).
		Build()
	if err != nil {
		return err
	}
	if err := s.buildTrailGroups(); err != nil {
		return err
	}
	s.tiling, err = sim.NewTilingRenderer(s.Base, "flow",
		sim.RenderParams{Mode: sim.TileDirect, Scale: 1}, s.trail.ViewAt(0), s.trail.ViewAt(1))
	if err != nil {
		return err
	}
	return s.spawn()
}

func (s *Simulation) buildTrailGroups() error {
	groups, err := gpu.BuildBindGroupPair(s.Owner, s.trailGroups, func(p int) (*wgpu.BindGroup, error) {
		return gpu.NewBindGroup("flow trail", s.trailLayout).
			Buffer(s.paramBuf).
			View(s.trail.ViewAt(p)).
			View(s.trail.ViewAt(1 - p)).
			Build(s.Owner)
	})
	if err != nil {
		return err
	}
	s.trailGroups = groups
	return nil
}

func (s *Simulation) clearTrail() error {
	zero := make([]byte, int(s.Width)*int(s.Height)*trailTexel)
	for i := range 2 {
		if err := gpu.UploadTexture(s.GPU.Queue(), s.trail.TextureAt(i), s.Width, s.Height, trailFormat, zero); err != nil {
			return err
		}
	}
	return nil
}

// spawn scatters the particles with staggered ages and resizes the
// particle buffer when the count changed.
func (s *Simulation) spawn() error {
	limit := uint32(min(s.GPU.StorageLimit()/ParticleSize, 1<<31))
	n := min(s.settings.ParticleCount, limit)
	p := s.params(0)
	parts := make([]Particle, n)
	for i := range parts {
		parts[i] = Respawn(&p, uint32(i), s.frame)
		parts[i].Age = s.RNG.Float32() * parts[i].Life
	}
	if s.particleBuf == nil || s.count != n {
		if s.particleBuf != nil {
			s.Owner.Release(s.particleBuf)
			s.Owner.Release(s.updateGroup)
			s.Owner.Release(s.drawGroup)
		}
		var err error
		if s.particleBuf, err = s.Owner.NewStorage("flow particles", uint64(n)*ParticleSize, nil, 0); err != nil {
			return err
		}
		if s.updateGroup, err = gpu.NewBindGroup("flow update", s.updateLayout).
			Buffer(s.paramBuf).Buffer(s.particleBuf).Build(s.Owner); err != nil {
			return err
		}
		if s.drawGroup, err = gpu.NewBindGroup("flow draw", s.drawLayout).
			Buffer(s.particleBuf).Buffer(s.LUTBuf).Buffer(s.paramBuf).Build(s.Owner); err != nil {
			return err
		}
	}
	s.count = n
	s.settings.ParticleCount = n
	s.dirtySpawn = false
	simviz.Logger().Debug("flow spawned", "sim", Kind, "count", n)
	if n == 0 {
		return nil
	}
	return s.Writer().WriteBuffer(s.particleBuf, 0, gpu.Bytes(parts))
}

func (s *Simulation) params(dt float32) Params {
	p := s.settings.params(s.count)
	p.Seed = uint32(s.RNG.Seed())
	p.Frame, p.Dt, p.Time = s.frame, dt, s.time
	p.Width, p.Height = float32(s.Width), float32(s.Height)
	p.Mode = s.Mode()
	p.CursorX, p.CursorY, p.CursorSize = s.Cursor.X, s.Cursor.Y, s.Cursor.Size
	p.CursorForce *= s.Cursor.Strength
	return p
}

// RenderFrame moves the particles, fades the trail, draws the particles
// into it and tiles the result.
func (s *Simulation) RenderFrame(view *wgpu.TextureView, dt float32) error {
	if s.Paused {
		return s.RenderFramePaused(view)
	}
	dt = sim.ClampDelta(dt)
	if err := s.PrepareCamera(dt); err != nil {
		return err
	}
	if s.dirtySpawn {
		if err := s.spawn(); err != nil {
			return err
		}
	}
	s.frame++
	s.time += dt * s.settings.FlowEvolution
	if err := s.Write(s.paramBuf, s.params(dt)); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	err = s.GPU.RunCompute(enc, "flow",
		gpu.ComputeStep{
			Label:    "update",
			Pipeline: s.update,
			Groups:   []*wgpu.BindGroup{s.updateGroup},
			X:        gpu.WorkgroupCount(s.count, particleGroup),
		},
		gpu.ComputeStep{
			Label:    "trail",
			Pipeline: s.decay,
			Groups:   []*wgpu.BindGroup{s.trailGroups.For(s.trail.Index())},
			X:        gpu.WorkgroupCount(s.Width, trailGroup),
			Y:        gpu.WorkgroupCount(s.Height, trailGroup),
		},
	)
	if err != nil {
		return err
	}
	s.trail.Swap()
	err = gpu.RunRender(enc, "flow particles", s.trail.CurrentView(), nil, gpu.Draw{
		Pipeline:  s.draw,
		Groups:    []*wgpu.BindGroup{s.drawGroup},
		Vertices:  6,
		Instances: s.count,
	})
	if err != nil {
		return err
	}
	if err := s.tiling.Render(enc, view, s.trail.Index()); err != nil {
		return err
	}
	return s.Submit(enc)
}

// RenderFramePaused tiles the trail as it stands.
func (s *Simulation) RenderFramePaused(view *wgpu.TextureView) error {
	if err := s.PrepareCamera(0); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	if err := s.tiling.Render(enc, view, s.trail.Index()); err != nil {
		return err
	}
	return s.Submit(enc)
}

// Resize reallocates the trail, carrying it over when possible.
func (s *Simulation) Resize(width, height uint32) error {
	if !s.Resized(width, height) {
		return nil
	}
	w, h := s.FitField(width, height, 2*trailTexel)
	next, kept, err := s.ResizeTextures(s.trail, w, h)
	if err != nil {
		return err
	}
	s.trail = next
	s.Width, s.Height = w, h
	if !kept {
		if err := s.clearTrail(); err != nil {
			return err
		}
	}
	if err := s.buildTrailGroups(); err != nil {
		return err
	}
	return s.tiling.SetViews(s.trail.ViewAt(0), s.trail.ViewAt(1))
}

// UpdateSetting changes one setting. A new particle count respawns.
func (s *Simulation) UpdateSetting(name string, value any) error {
	if err := sim.SetField(&s.settings, name, value); err != nil {
		return err
	}
	if name == "particle_count" || name == "particle_life" || name == "life_variation" {
		s.dirtySpawn = true
	}
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
	return nil
}

// Settings returns the settings tree.
func (s *Simulation) Settings() sim.ValueTree { return sim.EncodeSettings(s.settings) }

// State returns runtime state.
func (s *Simulation) State() sim.ValueTree {
	st := s.CommonState()
	st["particles"] = s.count
	st["frame"] = s.frame
	st["time"] = s.time
	return st
}

// ApplySettings replaces all settings and respawns.
func (s *Simulation) ApplySettings(tree sim.ValueTree) error {
	if err := sim.DecodeSettings(tree, &s.settings); err != nil {
		return err
	}
	s.dirtySpawn = true
	return nil
}

// ResetRuntimeState clears the trail and respawns every particle.
func (s *Simulation) ResetRuntimeState() error {
	s.time = 0
	if err := s.clearTrail(); err != nil {
		return err
	}
	return s.spawn()
}

// RandomizeSettings draws new flow parameters.
func (s *Simulation) RandomizeSettings() error {
	sim.Randomize(&s.settings, s.RNG)
	s.dirtySpawn = true
	return nil
}

// HandleMouse attracts (left), swirls (middle) or repels (right) particles
// near (x, y).
func (s *Simulation) HandleMouse(x, y float32, button int) error {
	s.PressCursor(x, y, button)
	return nil
}

// HandleMouseRelease ends the interaction.
func (s *Simulation) HandleMouseRelease(int) error {
	s.ReleaseCursor()
	return nil
}
