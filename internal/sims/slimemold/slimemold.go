// Package slimemold implements the Physarum agent simulation: agents sense
// and follow a pheromone trail they deposit, which decays and diffuses.
package slimemold

import (
	_ "embed"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Kind is the registry name.
const Kind = "slime_mold"

const (
	agentGroup    = 64
	fieldGroup    = 16
	displayFormat = gputypes.TextureFormatRGBA8Unorm
	displayTiles  = 3
)

//go:embed shaders/slime_mold.wgsl
var shaderWGSL string

// Bindings are the host sizes of the shader's buffers.
var Bindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: ParamsSize},
	{Group: 0, Binding: 1, Size: AgentSize},
	{Group: 0, Binding: 2, Size: 4},
	{Group: 0, Binding: 3, Size: 4},
	{Group: 0, Binding: 4, Size: 4},
	{Group: 0, Binding: 6, Size: 3072},
}

func init() {
	sim.Register(sim.Descriptor{
		Kind:     Kind,
		New:      New,
		Software: newSoftware,
		Defaults: defaults,
	})
}

// Simulation is the GPU slime mold.
type Simulation struct {
	*sim.Base

	settings Settings
	params   Params
	agents   uint32

	paramBuf    *wgpu.Buffer
	agentBuf    *wgpu.Buffer
	depositBuf  *wgpu.Buffer
	trail       *gpu.PingPongBuffers
	display     *wgpu.Texture
	displayView *wgpu.TextureView

	layout     *wgpu.BindGroupLayout
	update     *wgpu.ComputePipeline
	depositP   *wgpu.ComputePipeline
	decay      *wgpu.ComputePipeline
	diffuse    *wgpu.ComputePipeline
	displayP   *wgpu.ComputePipeline
	groups     *gpu.BindGroupPair
	tiling     *sim.TilingRenderer
	dirtySpawn bool
}

// New builds the simulation at the environment's size.
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
	s.Width, s.Height = s.FitField(s.Width, s.Height, 12)
	s.params = s.settings.params(s.Width, s.Height, 0, uint32(s.RNG.Seed()))

	var err error
	if s.paramBuf, err = o.NewUniform("slime_mold params", s.params); err != nil {
		return err
	}
	if err := s.allocateField(); err != nil {
		return err
	}
	s.layout, err = gpu.NewLayout("slime_mold", wgpu.ShaderStageCompute).
		Uniform().
		Storage().
		Storage().
		Storage().
		Storage().
		StorageTexture(displayFormat).
		ReadOnlyStorage().
		Build(o)
	if err != nil {
		return err
	}
	for _, p := range []struct {
		dst   **wgpu.ComputePipeline
		entry string
	}{
		{&s.update, "update_agents"},
		{&s.depositP, "deposit"},
		{&s.decay, "decay"},
		{&s.diffuse, "diffuse"},
		{&s.displayP, "display_trail"},
	} {
		*p.dst, err = gpu.NewComputePipeline(s.GPU, o, "slime_mold "+p.entry).
			Shader(shaderWGSL, p.entry).
			Layouts(s.layout).
			Expect(Bindings...).
			Build()
		if err != nil {
			return err
		}
	}
	if err := s.spawn(); err != nil {
		return err
	}
	s.tiling, err = sim.NewTilingRenderer(s.Base, "slime_mold", sim.RenderParams{Mode: sim.TileDirect, Scale: 1}, s.displayView, nil)
	if err != nil {
		return err
	}
	s.tiling.FixTiles(displayTiles)
	return nil
}

// allocateField creates the trail, deposit and display resources at the
// current size.
func (s *Simulation) allocateField() error {
	o := s.Owner
	cells := uint64(s.Width) * uint64(s.Height)
	var err error
	if s.trail == nil {
		if s.trail, err = gpu.NewPingPongBuffers(o, "slime_mold trail", cells*4, wgpu.BufferUsageCopySrc); err != nil {
			return err
		}
	}
	if s.depositBuf, err = o.NewStorage("slime_mold deposits", cells*4, nil, 0); err != nil {
		return err
	}
	s.display, s.displayView, err = o.NewTexture2D("slime_mold display", s.Width, s.Height, displayFormat,
		wgpu.TextureUsageStorageBinding|wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopySrc)
	return err
}

// spawn (re)creates the agent buffer from the position generator.
func (s *Simulation) spawn() error {
	n := min(s.settings.AgentCount, uint32(s.GPU.StorageLimit()/AgentSize))
	gen := int(sim.EnumIndex(&s.settings, "position_generator", s.settings.PositionGenerator))
	agents := Spawn(gen, int(n), float32(s.Width), float32(s.Height),
		s.settings.AgentSpeedMin, s.settings.AgentSpeedMax, s.RNG)
	if s.agentBuf != nil {
		s.Owner.Release(s.agentBuf)
	}
	var err error
	if s.agentBuf, err = s.Owner.NewStorage("slime_mold agents", uint64(n)*AgentSize, AgentBytes(agents), 0); err != nil {
		return err
	}
	s.agents = n
	s.dirtySpawn = false
	simviz.Logger().Debug("agents spawned", "sim", Kind, "count", n, "generator", s.settings.PositionGenerator)
	return s.buildGroups()
}

func (s *Simulation) buildGroups() error {
	groups, err := gpu.BuildBindGroupPair(s.Owner, s.groups, func(p int) (*wgpu.BindGroup, error) {
		return gpu.NewBindGroup("slime_mold", s.layout).
			Buffer(s.paramBuf).
			Buffer(s.agentBuf).
			Buffer(s.trail.At(p)).
			Buffer(s.trail.At(1 - p)).
			Buffer(s.depositBuf).
			View(s.displayView).
			Buffer(s.LUTBuf).
			Build(s.Owner)
	})
	if err != nil {
		return err
	}
	s.groups = groups
	return nil
}

func (s *Simulation) upload(dt float32) error {
	p := s.settings.params(s.Width, s.Height, s.agents, uint32(s.RNG.Seed()))
	p.Frame = s.params.Frame + 1
	p.Dt = dt
	p.CursorX, p.CursorY = s.Cursor.X, s.Cursor.Y
	p.CursorSize, p.CursorStrength = s.Cursor.Size, s.Cursor.Strength
	p.Mode = s.Mode()
	s.params = p
	return s.Write(s.paramBuf, p)
}

// RenderFrame runs the five agent and trail stages and draws the display.
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
	if err := s.upload(dt); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	ax, ay := gpu.Split2D(gpu.WorkgroupCount(s.agents, agentGroup), s.dispatchLimit())
	fx, fy := gpu.WorkgroupCount(s.Width, fieldGroup), gpu.WorkgroupCount(s.Height, fieldGroup)
	g := []*wgpu.BindGroup{s.groups.For(s.trail.Index())}
	steps := []gpu.ComputeStep{
		{Label: "update", Pipeline: s.update, Groups: g, X: ax, Y: ay},
		{Label: "deposit", Pipeline: s.depositP, Groups: g, X: ax, Y: ay},
		{Label: "decay", Pipeline: s.decay, Groups: g, X: fx, Y: fy},
		{Label: "diffuse", Pipeline: s.diffuse, Groups: g, X: fx, Y: fy},
	}
	s.trail.Swap()
	steps = append(steps, gpu.ComputeStep{
		Label: "display", Pipeline: s.displayP,
		Groups: []*wgpu.BindGroup{s.groups.For(s.trail.Index())}, X: fx, Y: fy,
	})
	if err := s.GPU.RunCompute(enc, "slime_mold", steps...); err != nil {
		return err
	}
	if err := s.tiling.Render(enc, view, 0); err != nil {
		return err
	}
	return s.Submit(enc)
}

func (s *Simulation) dispatchLimit() uint32 {
	if l := s.GPU.Limits().MaxComputeWorkgroupsPerDimension; l > 0 {
		return l
	}
	return gpu.MaxWorkgroupsPerDimension
}

// RenderFramePaused redraws the last display texture.
func (s *Simulation) RenderFramePaused(view *wgpu.TextureView) error {
	if err := s.PrepareCamera(0); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	if err := s.tiling.Render(enc, view, 0); err != nil {
		return err
	}
	return s.Submit(enc)
}

// Resize rescales the trail; agents wrap into the new bounds on their
// next update.
func (s *Simulation) Resize(width, height uint32) error {
	ow, oh := s.Width, s.Height
	if !s.Resized(width, height) {
		return nil
	}
	w, h := s.FitField(width, height, 12)
	next, _, err := s.ResizeBuffers(s.trail, ow, oh, w, h, 4)
	if err != nil {
		return err
	}
	s.trail = next
	s.Width, s.Height = w, h
	s.Owner.Release(s.depositBuf)
	s.Owner.Release(s.displayView)
	s.Owner.Release(s.display)
	if err := s.allocateField(); err != nil {
		return err
	}
	if err := s.buildGroups(); err != nil {
		return err
	}
	return s.tiling.SetViews(s.displayView, nil)
}

// respawnKeys are the settings that only take effect on new agents.
var respawnKeys = map[string]bool{
	"agent_count":        true,
	"agent_speed_min":    true,
	"agent_speed_max":    true,
	"position_generator": true,
}

// UpdateSetting changes one setting. Population settings respawn agents
// on the next frame.
func (s *Simulation) UpdateSetting(name string, value any) error {
	if err := sim.SetField(&s.settings, name, value); err != nil {
		return err
	}
	if respawnKeys[name] {
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
	st["agents"] = s.agents
	st["frame"] = s.params.Frame
	return st
}

// ApplySettings replaces all settings and respawns the agents.
func (s *Simulation) ApplySettings(tree sim.ValueTree) error {
	if err := sim.DecodeSettings(tree, &s.settings); err != nil {
		return err
	}
	s.dirtySpawn = true
	return nil
}

// ResetRuntimeState clears the trail and respawns the agents.
func (s *Simulation) ResetRuntimeState() error {
	zero := make([]byte, uint64(s.Width)*uint64(s.Height)*4)
	for i := range 2 {
		if err := s.Writer().WriteBuffer(s.trail.At(i), 0, zero); err != nil {
			return err
		}
	}
	if err := s.Writer().WriteBuffer(s.depositBuf, 0, zero); err != nil {
		return err
	}
	s.params.Frame = 0
	return s.spawn()
}

// RandomizeSettings draws new sensing and pheromone parameters.
func (s *Simulation) RandomizeSettings() error {
	sim.Randomize(&s.settings, s.RNG)
	s.dirtySpawn = true
	return nil
}

// HandleMouse attracts (left, middle) or repels (right) nearby agents.
func (s *Simulation) HandleMouse(x, y float32, button int) error {
	s.PressCursor(x, y, button)
	return nil
}

// HandleMouseRelease stops the interaction.
func (s *Simulation) HandleMouseRelease(int) error {
	s.ReleaseCursor()
	return nil
}
