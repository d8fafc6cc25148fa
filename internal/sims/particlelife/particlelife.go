// Package particlelife implements particle life: species of particles that
// attract or repel each other through an asymmetric force table.
package particlelife

import (
	_ "embed"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Kind is the registry name.
const Kind = "particle_life"

const (
	particleGroup = 64
	trailFormat   = gputypes.TextureFormatRGBA8Unorm
)

var (
	//go:embed shaders/particle_life.wgsl
	shaderWGSL string
	//go:embed shaders/particle_render.wgsl
	renderWGSL string
)

// Bindings are the host sizes of the compute shader's buffers.
var Bindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: ParamsSize},
	{Group: 0, Binding: 1, Size: ParticleSize},
	{Group: 0, Binding: 2, Size: ParticleSize},
	{Group: 0, Binding: 3, Size: MatrixSize},
	{Group: 0, Binding: 4, Size: MatrixSize},
}

// RenderBindings are the host sizes of the render shader's buffers.
var RenderBindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: ParticleSize},
	{Group: 0, Binding: 1, Size: 3072},
	{Group: 0, Binding: 2, Size: RenderUniformSize},
}

func init() {
	sim.Register(sim.Descriptor{
		Kind:     Kind,
		New:      New,
		Software: newSoftware,
		Defaults: defaults,
	})
}

// Simulation is the GPU particle life.
type Simulation struct {
	*sim.Base

	settings Settings
	count    uint32
	frame    uint32

	paramBuf  *wgpu.Buffer
	forceBuf  *wgpu.Buffer
	betaBuf   *wgpu.Buffer
	renderBuf *wgpu.Buffer
	particles *gpu.PingPongBuffers
	trail     *gpu.PingPongTextures

	computeLayout  *wgpu.BindGroupLayout
	particleLayout *wgpu.BindGroupLayout
	fadeLayout     *wgpu.BindGroupLayout
	update         *wgpu.ComputePipeline
	particlePipe   *wgpu.RenderPipeline
	fadePipe       *wgpu.RenderPipeline
	computeGroups  *gpu.BindGroupPair
	particleGroups *gpu.BindGroupPair
	fadeGroups     *gpu.BindGroupPair
	tiling         *sim.TilingRenderer

	dirtySpawn  bool
	dirtyMatrix bool
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
	s.Width, s.Height = s.FitField(s.Width, s.Height, 8)
	var err error
	if s.paramBuf, err = o.NewUniform("particle_life params", Params{}); err != nil {
		return err
	}
	if s.forceBuf, err = o.NewUniform("particle_life forces", s.settings.ForceMatrix); err != nil {
		return err
	}
	if s.betaBuf, err = o.NewUniform("particle_life betas", s.settings.BetaMatrix); err != nil {
		return err
	}
	if s.renderBuf, err = o.NewUniform("particle_life render", RenderUniform{}); err != nil {
		return err
	}
	if s.trail, err = gpu.NewPingPongTextures(o, "particle_life trail", s.Width, s.Height, trailFormat, gpu.TrailUsage); err != nil {
		return err
	}

	s.computeLayout, err = gpu.NewLayout("particle_life update", wgpu.ShaderStageCompute).
		Uniform().ReadOnlyStorage().Storage().Uniform().Uniform().Build(o)
	if err != nil {
		return err
	}
	draw := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	if s.particleLayout, err = gpu.NewLayout("particle_life particles", draw).
		ReadOnlyStorage().ReadOnlyStorage().Uniform().Build(o); err != nil {
		return err
	}
	if s.fadeLayout, err = gpu.NewLayout("particle_life fade", draw).
		At(2).Uniform().UnfilterableTexture().Build(o); err != nil {
		return err
	}

	s.update, err = gpu.NewComputePipeline(s.GPU, o, "particle_life update").
		Shader(shaderWGSL, "main").
		Layouts(s.computeLayout).
		Expect(Bindings...).
		Build()
	if err != nil {
		return err
	}
	s.particlePipe, err = gpu.NewRenderPipeline(s.GPU, o, "particle_life particles").
		Shader(renderWGSL).
		VertexEntry("vs_particle").
		FragmentEntry("fs_particle").
		Layouts(s.particleLayout).
		Target(trailFormat, nil).
		Expect(RenderBindings...).
		Build()
	if err != nil {
		return err
	}
	s.fadePipe, err = gpu.NewRenderPipeline(s.GPU, o, "particle_life fade").
		Shader(renderWGSL).
		VertexEntry("vs_fade").
		FragmentEntry("fs_fade").
		Layouts(s.fadeLayout).
		Target(trailFormat, nil).
		Build()
	if err != nil {
		return err
	}
	if err := s.buildFadeGroups(); err != nil {
		return err
	}
	if err := s.spawn(); err != nil {
		return err
	}
	s.tiling, err = sim.NewTilingRenderer(s.Base, "particle_life",
		sim.RenderParams{Mode: sim.TileDirect, Scale: 1}, s.trail.ViewAt(0), s.trail.ViewAt(1))
	return err
}

// spawn reallocates the particle buffers at the configured count and
// places particles with the spawn pattern.
func (s *Simulation) spawn() error {
	n := min(s.settings.ParticleCount, uint32(s.GPU.StorageLimit()/ParticleSize))
	pattern := int(sim.EnumIndex(&s.settings, "spawn_pattern", s.settings.SpawnPattern))
	ps := Spawn(pattern, int(n), int(s.settings.SpeciesCount), s.RNG)
	size := max(uint64(n), 1) * ParticleSize
	var err error
	switch {
	case s.particles == nil:
		s.particles, err = gpu.NewPingPongBuffers(s.Owner, "particle_life particles", size, 0)
	case s.particles.Size != size:
		err = s.particles.Recreate(size)
	}
	if err != nil {
		return err
	}
	if n > 0 {
		if err := s.Writer().WriteBuffer(s.particles.Current(), 0, gpu.Bytes(ps)); err != nil {
			return err
		}
	}
	s.count = n
	s.dirtySpawn = false
	simviz.Logger().Debug("particles spawned", "sim", Kind, "count", n, "species", s.settings.SpeciesCount)
	return s.buildParticleGroups()
}

func (s *Simulation) buildParticleGroups() error {
	o := s.Owner
	var err error
	s.computeGroups, err = gpu.BuildBindGroupPair(o, s.computeGroups, func(p int) (*wgpu.BindGroup, error) {
		return gpu.NewBindGroup("particle_life update", s.computeLayout).
			Buffer(s.paramBuf).
			Buffer(s.particles.At(p)).
			Buffer(s.particles.At(1 - p)).
			Buffer(s.forceBuf).
			Buffer(s.betaBuf).
			Build(o)
	})
	if err != nil {
		return err
	}
	s.particleGroups, err = gpu.BuildBindGroupPair(o, s.particleGroups, func(p int) (*wgpu.BindGroup, error) {
		return gpu.NewBindGroup("particle_life particles", s.particleLayout).
			Buffer(s.particles.At(p)).
			Buffer(s.LUTBuf).
			Buffer(s.renderBuf).
			Build(o)
	})
	return err
}

func (s *Simulation) buildFadeGroups() error {
	var err error
	s.fadeGroups, err = gpu.BuildBindGroupPair(s.Owner, s.fadeGroups, func(p int) (*wgpu.BindGroup, error) {
		return gpu.NewBindGroup("particle_life fade", s.fadeLayout).
			At(2).
			Buffer(s.renderBuf).
			View(s.trail.ViewAt(p)).
			Build(s.Owner)
	})
	return err
}

func (s *Simulation) upload(dt float32) error {
	if s.dirtySpawn {
		if err := s.spawn(); err != nil {
			return err
		}
	}
	if s.dirtyMatrix {
		if err := s.Write(s.forceBuf, s.settings.ForceMatrix); err != nil {
			return err
		}
		if err := s.Write(s.betaBuf, s.settings.BetaMatrix); err != nil {
			return err
		}
		s.dirtyMatrix = false
	}
	p := s.settings.params(s.count, dt, uint32(s.RNG.Seed()), s.frame)
	p.Mode = s.Mode()
	p.CursorX, p.CursorY = s.Cursor.X, s.Cursor.Y
	p.CursorSize, p.CursorStrength = s.Cursor.Size, s.Cursor.Strength
	if err := s.Write(s.paramBuf, p); err != nil {
		return err
	}
	fade := float32(1)
	if s.settings.Trails {
		fade = s.settings.TrailFade
	}
	return s.Write(s.renderBuf, RenderUniform{
		Width:        float32(s.Width),
		Height:       float32(s.Height),
		ParticleSize: s.settings.ParticleSize,
		Species:      max(s.settings.SpeciesCount, 1),
		ColorMode:    sim.EnumIndex(&s.settings, "color_mode", s.settings.ColorMode),
		Fade:         fade,
		MaxSpeed:     s.settings.MaxSpeed,
	})
}

// draw fades the trail into its inactive texture, splats the particles on
// top, swaps and tiles the result onto view.
func (s *Simulation) draw(enc *wgpu.CommandEncoder, view *wgpu.TextureView) error {
	err := gpu.RunRender(enc, "particle_life trail", s.trail.InactiveView(), nil,
		gpu.Draw{
			Pipeline:  s.fadePipe,
			Groups:    []*wgpu.BindGroup{s.fadeGroups.For(s.trail.Index())},
			Vertices:  3,
			Instances: 1,
		},
		gpu.Draw{
			Pipeline:  s.particlePipe,
			Groups:    []*wgpu.BindGroup{s.particleGroups.For(s.particles.Index())},
			Vertices:  6,
			Instances: s.count,
		})
	if err != nil {
		return err
	}
	s.trail.Swap()
	return s.tiling.Render(enc, view, s.trail.Index())
}

// RenderFrame runs the force update and draws the particles.
func (s *Simulation) RenderFrame(view *wgpu.TextureView, dt float32) error {
	if s.Paused {
		return s.RenderFramePaused(view)
	}
	dt = sim.ClampDelta(dt)
	if err := s.PrepareCamera(dt); err != nil {
		return err
	}
	s.frame++
	if err := s.upload(dt); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	err = s.GPU.RunCompute(enc, "particle_life", gpu.ComputeStep{
		Label:    "update",
		Pipeline: s.update,
		Groups:   []*wgpu.BindGroup{s.computeGroups.For(s.particles.Index())},
		X:        gpu.WorkgroupCount(s.count, particleGroup),
	})
	if err != nil {
		return err
	}
	s.particles.Swap()
	if err := s.draw(enc, view); err != nil {
		return err
	}
	return s.Submit(enc)
}

// RenderFramePaused redraws the particles where they stand.
func (s *Simulation) RenderFramePaused(view *wgpu.TextureView) error {
	if err := s.PrepareCamera(0); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	if err := s.draw(enc, view); err != nil {
		return err
	}
	return s.Submit(enc)
}

// Resize reallocates the trail. Particles live in world space and are
// unaffected.
func (s *Simulation) Resize(width, height uint32) error {
	if !s.Resized(width, height) {
		return nil
	}
	w, h := s.FitField(width, height, 8)
	next, _, err := s.ResizeTextures(s.trail, w, h)
	if err != nil {
		return err
	}
	s.trail = next
	s.Width, s.Height = w, h
	if err := s.buildFadeGroups(); err != nil {
		return err
	}
	return s.tiling.SetViews(s.trail.ViewAt(0), s.trail.ViewAt(1))
}

// UpdateSetting changes one setting. Count, species and pattern changes
// respawn; generator and β changes redraw the matrices.
func (s *Simulation) UpdateSetting(name string, value any) error {
	if err := sim.SetField(&s.settings, name, value); err != nil {
		return err
	}
	switch name {
	case "particle_count", "spawn_pattern":
		s.dirtySpawn = true
	case "species_count":
		s.settings.Regenerate(s.RNG)
		s.dirtySpawn, s.dirtyMatrix = true, true
	case "matrix_generator", "beta", "beta_variation":
		s.settings.Regenerate(s.RNG)
		s.dirtyMatrix = true
	case "force_matrix", "beta_matrix":
		s.dirtyMatrix = true
	}
	return nil
}

// UpdateState changes runtime state. regenerate_matrix redraws the force
// table without touching the other settings.
func (s *Simulation) UpdateState(name string, value any) error {
	if name == "regenerate_matrix" {
		s.settings.Regenerate(s.RNG)
		s.dirtyMatrix = true
		return nil
	}
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
	return st
}

// ApplySettings replaces all settings and respawns. The matrices are
// redrawn when the tree carries none or names a different generator.
func (s *Simulation) ApplySettings(tree sim.ValueTree) error {
	prev := s.settings.MatrixGenerator
	if err := sim.DecodeSettings(tree, &s.settings); err != nil {
		return err
	}
	if _, ok := tree["force_matrix"]; !ok || s.settings.MatrixGenerator != prev {
		s.settings.Regenerate(s.RNG)
	}
	s.dirtySpawn, s.dirtyMatrix = true, true
	return nil
}

// ResetRuntimeState respawns the particles and clears the trail.
func (s *Simulation) ResetRuntimeState() error {
	s.frame = 0
	zero := make([]byte, int(s.trail.Width)*int(s.trail.Height)*gpu.BytesPerTexel(trailFormat))
	for _, tex := range []*wgpu.Texture{s.trail.CurrentTexture(), s.trail.InactiveTexture()} {
		if err := gpu.UploadTexture(s.GPU.Queue(), tex, s.trail.Width, s.trail.Height, trailFormat, zero); err != nil {
			return err
		}
	}
	return s.spawn()
}

// RandomizeSettings draws new settings and a fresh force table.
func (s *Simulation) RandomizeSettings() error {
	sim.Randomize(&s.settings, s.RNG)
	s.settings.Regenerate(s.RNG)
	s.dirtySpawn, s.dirtyMatrix = true, true
	return nil
}

// HandleMouse attracts (left), grabs (middle) or repels (right).
func (s *Simulation) HandleMouse(x, y float32, button int) error {
	s.PressCursor(x, y, button)
	return nil
}

// HandleMouseRelease ends the interaction.
func (s *Simulation) HandleMouseRelease(int) error {
	s.ReleaseCursor()
	return nil
}
