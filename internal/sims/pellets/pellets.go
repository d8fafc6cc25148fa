// Package pellets simulates rigid discs bouncing in the unit box. Physics
// runs on the host; the GPU computes per-pellet density and draws the
// discs colored through the palette.
package pellets

import (
	_ "embed"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/camera"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Kind is the registry name.
const Kind = "pellets"

const pelletGroup = 64

var (
	//go:embed shaders/pellets.wgsl
	densityWGSL string
	//go:embed shaders/pellet_render.wgsl
	renderWGSL string
)

// Bindings are the host sizes of the density shader's buffers.
var Bindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: ParamsSize},
	{Group: 0, Binding: 1, Size: PelletSize},
	{Group: 0, Binding: 2, Size: 4},
	{Group: 0, Binding: 3, Size: 4},
}

// RenderBindings are the host sizes of the render shader's buffers.
var RenderBindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: PelletSize},
	{Group: 0, Binding: 1, Size: 3072},
	{Group: 0, Binding: 2, Size: ParamsSize},
	{Group: 1, Binding: 0, Size: camera.UniformSize},
}

func init() {
	sim.Register(sim.Descriptor{
		Kind:     Kind,
		New:      New,
		Software: newSoftware,
		Defaults: defaults,
	})
}

// Simulation is the GPU-rendered pellet box.
type Simulation struct {
	*sim.Base

	settings Settings
	model    *Model
	staging  []Pellet
	ticks    uint64

	paramBuf  *wgpu.Buffer
	pelletBuf *wgpu.Buffer
	startBuf  *wgpu.Buffer
	indexBuf  *wgpu.Buffer

	computeLayout *wgpu.BindGroupLayout
	renderLayout  *wgpu.BindGroupLayout
	cameraLayout  *wgpu.BindGroupLayout
	density       *wgpu.ComputePipeline
	draw          *wgpu.RenderPipeline
	computeGroup  *wgpu.BindGroup
	renderGroup   *wgpu.BindGroup
	cameraGroup   *wgpu.BindGroup

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
	var err error
	if s.paramBuf, err = o.NewUniform("pellets params", Params{}); err != nil {
		return err
	}
	if s.computeLayout, err = gpu.NewLayout("pellets density", wgpu.ShaderStageCompute).
		Uniform().Storage().ReadOnlyStorage().ReadOnlyStorage().Build(o); err != nil {
		return err
	}
	if s.renderLayout, err = gpu.NewLayout("pellets draw", wgpu.ShaderStageVertex|wgpu.ShaderStageFragment).
		ReadOnlyStorage().ReadOnlyStorage().Uniform().Build(o); err != nil {
		return err
	}
	if s.cameraLayout, err = gpu.NewLayout("pellets camera", wgpu.ShaderStageVertex).Uniform().Build(o); err != nil {
		return err
	}
	if s.cameraGroup, err = gpu.NewBindGroup("pellets camera", s.cameraLayout).Buffer(s.CameraBuf).Build(o); err != nil {
		return err
	}
	s.density, err = gpu.NewComputePipeline(s.GPU, o, "pellets density").
		Shader(densityWGSL, "density").
		Layouts(s.computeLayout).
		Expect(Bindings...).
		Build()
	if err != nil {
		return err
	}
	s.draw, err = gpu.NewRenderPipeline(s.GPU, o, "pellets draw").
		Shader(renderWGSL).
		Layouts(s.renderLayout, s.cameraLayout).
		Expect(RenderBindings...).
		Build()
	if err != nil {
		return err
	}
	return s.spawn()
}

// spawn rebuilds the world and sizes the GPU buffers for it.
func (s *Simulation) spawn() error {
	limit := uint32(s.GPU.StorageLimit() / PelletSize)
	if s.settings.ParticleCount > limit {
		s.settings.ParticleCount = limit
	}
	s.model = NewModel(s.settings, s.RNG)
	s.model.Index()
	s.dirtySpawn = false
	n := uint64(len(s.model.World.Bodies))
	cells := uint64(len(s.model.Grid.Start))
	if err := s.reserve(n, cells); err != nil {
		return err
	}
	simviz.Logger().Debug("pellets spawned", "sim", Kind, "count", n, "pattern", s.settings.SpawnPattern)
	return nil
}

// reserve grows the pellet, start and index buffers to hold n pellets and
// the given number of grid offsets, rebuilding the bind groups on change.
func (s *Simulation) reserve(n, offsets uint64) error {
	grow := func(buf **wgpu.Buffer, label string, size uint64) (bool, error) {
		size = max(size, 16)
		if *buf != nil && (*buf).Size() >= size {
			return false, nil
		}
		if *buf != nil {
			s.Owner.Release(*buf)
		}
		var err error
		*buf, err = s.Owner.NewStorage(label, size, nil, 0)
		return true, err
	}
	changed := false
	for _, b := range []struct {
		buf   **wgpu.Buffer
		label string
		size  uint64
	}{
		{&s.pelletBuf, "pellets", n * PelletSize},
		{&s.startBuf, "pellets cell start", offsets * 4},
		{&s.indexBuf, "pellets cell index", n * 4},
	} {
		c, err := grow(b.buf, b.label, b.size)
		if err != nil {
			return err
		}
		changed = changed || c
	}
	if !changed && s.computeGroup != nil {
		return nil
	}
	return s.buildGroups()
}

func (s *Simulation) buildGroups() error {
	o := s.Owner
	for _, g := range []*wgpu.BindGroup{s.computeGroup, s.renderGroup} {
		if g != nil {
			o.Release(g)
		}
	}
	var err error
	if s.computeGroup, err = gpu.NewBindGroup("pellets density", s.computeLayout).
		Buffer(s.paramBuf).Buffer(s.pelletBuf).Buffer(s.startBuf).Buffer(s.indexBuf).Build(o); err != nil {
		return err
	}
	s.renderGroup, err = gpu.NewBindGroup("pellets draw", s.renderLayout).
		Buffer(s.pelletBuf).Buffer(s.LUTBuf).Buffer(s.paramBuf).Build(o)
	return err
}

// upload writes pellets, the grid and params for this frame.
func (s *Simulation) upload() error {
	m := s.model
	if err := s.reserve(uint64(len(m.World.Bodies)), uint64(len(m.Grid.Start))); err != nil {
		return err
	}
	s.staging = m.Pellets(s.staging)
	w := s.Writer()
	if len(s.staging) > 0 {
		if err := w.WriteBuffer(s.pelletBuf, 0, gpu.Bytes(s.staging)); err != nil {
			return err
		}
		if err := w.WriteBuffer(s.indexBuf, 0, gpu.Uint32Bytes(m.Grid.Index)); err != nil {
			return err
		}
	}
	if err := w.WriteBuffer(s.startBuf, 0, gpu.Uint32Bytes(m.Grid.Start)); err != nil {
		return err
	}
	return s.Write(s.paramBuf, Params{
		Count:         uint32(len(s.staging)),
		Cols:          uint32(m.Grid.Cols),
		Rows:          uint32(m.Grid.Rows),
		ColorMode:     sim.EnumIndex(&s.settings, "color_mode", s.settings.ColorMode),
		Cell:          m.Grid.Cell,
		DensityRadius: s.settings.DensityRadius,
		ColorScale:    s.settings.ColorScale,
		MaxSpeed:      s.settings.MaxSpeed,
	})
}

func (s *Simulation) frame(view *wgpu.TextureView) error {
	if err := s.upload(); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	n := uint32(len(s.staging))
	err = s.GPU.RunCompute(enc, "pellets", gpu.ComputeStep{
		Label:    "density",
		Pipeline: s.density,
		Groups:   []*wgpu.BindGroup{s.computeGroup},
		X:        gpu.WorkgroupCount(n, pelletGroup),
	})
	if err != nil {
		return err
	}
	err = gpu.RunRender(enc, "pellets draw", view, s.ClearColor(), gpu.Draw{
		Pipeline:  s.draw,
		Groups:    []*wgpu.BindGroup{s.renderGroup, s.cameraGroup},
		Vertices:  6,
		Instances: n,
	})
	if err != nil {
		return err
	}
	return s.Submit(enc)
}

// RenderFrame applies the cursor, steps physics and draws.
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
	s.model.Interact(s.Cursor, s.Mode(), dt)
	s.model.Step(dt)
	s.ticks++
	return s.frame(view)
}

// RenderFramePaused draws the pellets where they stand.
func (s *Simulation) RenderFramePaused(view *wgpu.TextureView) error {
	if err := s.PrepareCamera(0); err != nil {
		return err
	}
	return s.frame(view)
}

// Resize only tracks the viewport; pellets live in world space.
func (s *Simulation) Resize(width, height uint32) error {
	s.Resized(width, height)
	return nil
}

// UpdateSetting changes one setting. Population changes respawn.
func (s *Simulation) UpdateSetting(name string, value any) error {
	if err := sim.SetField(&s.settings, name, value); err != nil {
		return err
	}
	switch name {
	case "particle_count", "particle_size", "size_variation", "spawn_pattern", "initial_velocity":
		s.dirtySpawn = true
	default:
		s.model.Configure(s.settings)
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

// State returns runtime state including the kinetic energy.
func (s *Simulation) State() sim.ValueTree {
	st := s.CommonState()
	st["particles"] = len(s.model.World.Bodies)
	st["kinetic_energy"] = s.model.World.KineticEnergy()
	st["ticks"] = s.ticks
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

// ResetRuntimeState respawns the pellets.
func (s *Simulation) ResetRuntimeState() error {
	s.ticks = 0
	return s.spawn()
}

// RandomizeSettings draws new settings.
func (s *Simulation) RandomizeSettings() error {
	sim.Randomize(&s.settings, s.RNG)
	s.dirtySpawn = true
	return nil
}

// HandleMouse starts an attract (left), grab (middle) or repel (right).
func (s *Simulation) HandleMouse(x, y float32, button int) error {
	s.PressCursor(x, y, button)
	return nil
}

// HandleMouseRelease ends the interaction.
func (s *Simulation) HandleMouseRelease(int) error {
	s.ReleaseCursor()
	return nil
}
