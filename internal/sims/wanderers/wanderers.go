// Package wanderers simulates discs that steer along randomly drifting
// headings while bouncing off the walls and each other.
package wanderers

import (
	_ "embed"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/camera"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Kind is the registry name.
const Kind = "wanderers"

//go:embed shaders/wanderer_render.wgsl
var renderWGSL string

// RenderBindings are the host sizes of the render shader's buffers.
var RenderBindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: WandererSize},
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

// Simulation draws the host-side wanderer world on the GPU.
type Simulation struct {
	*sim.Base

	settings Settings
	model    *Model
	staging  []Wanderer
	ticks    uint64

	paramBuf    *wgpu.Buffer
	instanceBuf *wgpu.Buffer

	renderLayout *wgpu.BindGroupLayout
	cameraLayout *wgpu.BindGroupLayout
	draw         *wgpu.RenderPipeline
	renderGroup  *wgpu.BindGroup
	cameraGroup  *wgpu.BindGroup

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
	if s.paramBuf, err = o.NewUniform("wanderers params", Params{}); err != nil {
		return err
	}
	if s.renderLayout, err = gpu.NewLayout("wanderers draw", wgpu.ShaderStageVertex|wgpu.ShaderStageFragment).
		ReadOnlyStorage().ReadOnlyStorage().Uniform().Build(o); err != nil {
		return err
	}
	if s.cameraLayout, err = gpu.NewLayout("wanderers camera", wgpu.ShaderStageVertex).Uniform().Build(o); err != nil {
		return err
	}
	if s.cameraGroup, err = gpu.NewBindGroup("wanderers camera", s.cameraLayout).Buffer(s.CameraBuf).Build(o); err != nil {
		return err
	}
	s.draw, err = gpu.NewRenderPipeline(s.GPU, o, "wanderers draw").
		Shader(renderWGSL).
		Layouts(s.renderLayout, s.cameraLayout).
		Expect(RenderBindings...).
		Build()
	if err != nil {
		return err
	}
	return s.spawn()
}

func (s *Simulation) spawn() error {
	limit := uint32(s.GPU.StorageLimit() / WandererSize)
	if s.settings.Count > limit {
		s.settings.Count = limit
	}
	s.model = NewModel(s.settings, s.RNG)
	s.dirtySpawn = false
	if err := s.reserve(uint64(len(s.model.World.Bodies))); err != nil {
		return err
	}
	simviz.Logger().Debug("wanderers spawned", "sim", Kind, "count", len(s.model.World.Bodies))
	return nil
}

// reserve grows the instance buffer to hold n wanderers.
func (s *Simulation) reserve(n uint64) error {
	size := max(n*WandererSize, 16)
	if s.instanceBuf != nil && s.instanceBuf.Size() >= size {
		return nil
	}
	o := s.Owner
	if s.instanceBuf != nil {
		o.Release(s.instanceBuf)
	}
	if s.renderGroup != nil {
		o.Release(s.renderGroup)
	}
	var err error
	if s.instanceBuf, err = o.NewStorage("wanderers", size, nil, 0); err != nil {
		return err
	}
	s.renderGroup, err = gpu.NewBindGroup("wanderers draw", s.renderLayout).
		Buffer(s.instanceBuf).Buffer(s.LUTBuf).Buffer(s.paramBuf).Build(o)
	return err
}

func (s *Simulation) frame(view *wgpu.TextureView) error {
	s.staging = s.model.Instances(s.staging)
	n := uint32(len(s.staging))
	if n > 0 {
		if err := s.Writer().WriteBuffer(s.instanceBuf, 0, gpu.Bytes(s.staging)); err != nil {
			return err
		}
	}
	show := uint32(0)
	if s.settings.ShowHeading {
		show = 1
	}
	if err := s.Write(s.paramBuf, Params{Count: n, ShowHeading: show}); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	err = gpu.RunRender(enc, "wanderers draw", view, s.ClearColor(), gpu.Draw{
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

// RenderFrame applies the cursor, steps the world and draws.
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

// RenderFramePaused draws without stepping.
func (s *Simulation) RenderFramePaused(view *wgpu.TextureView) error {
	if err := s.PrepareCamera(0); err != nil {
		return err
	}
	return s.frame(view)
}

// Resize only tracks the viewport.
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
	case "count", "size", "size_variation":
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

// State returns runtime state.
func (s *Simulation) State() sim.ValueTree {
	st := s.CommonState()
	st["wanderers"] = len(s.model.World.Bodies)
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

// ResetRuntimeState respawns the wanderers.
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
