// Package ecosystem simulates herbivores grazing a regrowing plant field
// and carnivores tracking them by scent. Agents carry energy; they die when
// it runs out, when they grow old or when they are eaten, and respawn after
// a delay.
package ecosystem

import (
	"context"
	_ "embed"
	"encoding/binary"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Kind is the registry name.
const Kind = "ecosystem"

const (
	agentGroup    = 64
	fieldGroup    = 16
	displayFormat = gputypes.TextureFormatRGBA8Unorm
	// checkEvery is the tick interval of the counter readback.
	checkEvery = 30
	// cellBytes is the storage of one grid cell across all field buffers.
	cellBytes = 32
)

//go:embed shaders/ecosystem.wgsl
var shaderWGSL string

// Bindings are the host sizes of the shader's buffers.
var Bindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: ParamsSize},
	{Group: 0, Binding: 1, Size: AgentSize},
	{Group: 0, Binding: 2, Size: 4},
	{Group: 0, Binding: 3, Size: 4},
	{Group: 0, Binding: 4, Size: 4},
	{Group: 0, Binding: 5, Size: 4},
	{Group: 0, Binding: 6, Size: 4},
	{Group: 0, Binding: 8, Size: 3072},
}

// Stages are the compute entry points in dispatch order.
var Stages = []string{"regrow", "mark", "update_agents", "fade_scent", "diffuse_scent", "display_field"}

func init() {
	sim.Register(sim.Descriptor{
		Kind:     Kind,
		New:      New,
		Software: newSoftware,
		Defaults: defaults,
	})
}

// Simulation is the GPU ecosystem.
type Simulation struct {
	*sim.Base

	settings Settings
	params   Params
	gw, gh   uint32
	agents   uint32
	counters Counters
	ticks    uint64

	paramBuf    *wgpu.Buffer
	agentBuf    *wgpu.Buffer
	plantBuf    *wgpu.Buffer
	depositBuf  *wgpu.Buffer
	slotBuf     *wgpu.Buffer
	scent       *gpu.PingPongBuffers
	display     *wgpu.Texture
	displayView *wgpu.TextureView

	layout     *wgpu.BindGroupLayout
	pipelines  map[string]*wgpu.ComputePipeline
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

// grid returns the field size for a surface of w×h.
func (s *Simulation) grid(w, h uint32) (uint32, uint32) {
	c := max(s.settings.CellSize, 1)
	return s.FitField(max(w/c, 1), max(h/c, 1), cellBytes)
}

func (s *Simulation) build() error {
	o := s.Owner
	s.gw, s.gh = s.grid(s.Width, s.Height)
	s.params = s.settings.params(s.gw, s.gh, uint32(s.RNG.Seed()))

	var err error
	if s.paramBuf, err = o.NewUniform("ecosystem params", s.params); err != nil {
		return err
	}
	if err := s.allocateField(nil); err != nil {
		return err
	}
	s.layout, err = gpu.NewLayout("ecosystem", wgpu.ShaderStageCompute).
		Uniform().
		Storage().
		Storage().
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
	s.pipelines = make(map[string]*wgpu.ComputePipeline, len(Stages))
	for _, entry := range Stages {
		s.pipelines[entry], err = gpu.NewComputePipeline(s.GPU, o, "ecosystem "+entry).
			Shader(shaderWGSL, entry).
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
	s.tiling, err = sim.NewTilingRenderer(s.Base, "ecosystem", sim.RenderParams{Mode: sim.TileDirect, Scale: 1}, s.displayView, nil)
	return err
}

// allocateField creates the plant, scent, deposit and display resources at
// the grid size. Plants carry over from old when it is set, otherwise they
// start fully grown.
func (s *Simulation) allocateField(old *fieldSize) error {
	o := s.Owner
	cells := uint64(s.gw) * uint64(s.gh)
	var err error
	prevPlants := s.plantBuf
	if s.plantBuf, err = o.NewStorage("ecosystem plants", cells*4, nil, wgpu.BufferUsageCopySrc); err != nil {
		return err
	}
	seeded := false
	if old != nil && prevPlants != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sim.ReadbackTimeout)
		err := gpu.RescaleBuffer(ctx, s.GPU, prevPlants, old.w, old.h, s.plantBuf, s.gw, s.gh, 4)
		cancel()
		if err != nil {
			simviz.Logger().Warn("plants regrown on resize", "sim", Kind, "err", err)
		} else {
			seeded = true
		}
	}
	if prevPlants != nil {
		o.Release(prevPlants)
	}
	if !seeded {
		if err := s.Writer().WriteBuffer(s.plantBuf, 0, gpu.Float32Bytes(Plants(int(s.gw), int(s.gh), &s.params))); err != nil {
			return err
		}
	}
	if s.scent == nil {
		if s.scent, err = gpu.NewPingPongBuffers(o, "ecosystem scent", cells*4, wgpu.BufferUsageCopySrc); err != nil {
			return err
		}
	}
	if s.depositBuf, err = o.NewStorage("ecosystem deposits", cells*4, nil, 0); err != nil {
		return err
	}
	s.display, s.displayView, err = o.NewTexture2D("ecosystem display", s.gw, s.gh, displayFormat,
		wgpu.TextureUsageStorageBinding|wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopySrc)
	return err
}

type fieldSize struct{ w, h uint32 }

// spawn (re)creates the agents and the slot buffer sized for them.
func (s *Simulation) spawn() error {
	limit := uint32(s.GPU.StorageLimit() / AgentSize)
	herb := min(s.settings.HerbivoreCount, limit)
	carn := min(s.settings.CarnivoreCount, limit-herb)
	s.settings.HerbivoreCount, s.settings.CarnivoreCount = herb, carn
	agents := Spawn(int(herb), int(carn), float32(s.gw), float32(s.gh), &s.settings, s.RNG)
	s.agents = herb + carn
	if s.agentBuf != nil {
		s.Owner.Release(s.agentBuf)
	}
	var err error
	if s.agentBuf, err = s.Owner.NewStorage("ecosystem agents", uint64(s.agents)*AgentSize, gpu.Bytes(agents), 0); err != nil {
		return err
	}
	if err := s.allocateSlots(); err != nil {
		return err
	}
	s.dirtySpawn = false
	simviz.Logger().Debug("ecosystem spawned", "sim", Kind, "herbivores", herb, "carnivores", carn)
	return s.buildGroups()
}

// allocateSlots sizes the counters, claims and occupancy maps.
func (s *Simulation) allocateSlots() error {
	if s.slotBuf != nil {
		s.Owner.Release(s.slotBuf)
	}
	cells := uint64(s.gw) * uint64(s.gh)
	n := uint64(CountersSize/4) + uint64(s.agents) + 2*cells
	var err error
	s.slotBuf, err = s.Owner.NewStorage("ecosystem slots", n*4, nil, wgpu.BufferUsageCopySrc)
	return err
}

func (s *Simulation) buildGroups() error {
	groups, err := gpu.BuildBindGroupPair(s.Owner, s.groups, func(p int) (*wgpu.BindGroup, error) {
		return gpu.NewBindGroup("ecosystem", s.layout).
			Buffer(s.paramBuf).
			Buffer(s.agentBuf).
			Buffer(s.plantBuf).
			Buffer(s.scent.At(p)).
			Buffer(s.scent.At(1 - p)).
			Buffer(s.depositBuf).
			Buffer(s.slotBuf).
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
	p := s.settings.params(s.gw, s.gh, uint32(s.RNG.Seed()))
	p.Frame = s.params.Frame + 1
	p.Dt = dt
	p.CursorX, p.CursorY = s.Cursor.X, s.Cursor.Y
	p.CursorSize, p.CursorStrength = s.Cursor.Size, s.Cursor.Strength
	p.Mode = s.Mode()
	s.params = p
	if err := s.Writer().WriteBuffer(s.slotBuf, 0, make([]byte, CountersSize)); err != nil {
		return err
	}
	return s.Write(s.paramBuf, p)
}

// RenderFrame runs the six stages and draws the display.
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
	fx, fy := gpu.WorkgroupCount(s.gw, fieldGroup), gpu.WorkgroupCount(s.gh, fieldGroup)
	g := []*wgpu.BindGroup{s.groups.For(s.scent.Index())}
	steps := []gpu.ComputeStep{
		{Label: "regrow", Pipeline: s.pipelines["regrow"], Groups: g, X: fx, Y: fy},
		{Label: "mark", Pipeline: s.pipelines["mark"], Groups: g, X: ax, Y: ay},
		{Label: "update", Pipeline: s.pipelines["update_agents"], Groups: g, X: ax, Y: ay},
		{Label: "fade", Pipeline: s.pipelines["fade_scent"], Groups: g, X: fx, Y: fy},
		{Label: "diffuse", Pipeline: s.pipelines["diffuse_scent"], Groups: g, X: fx, Y: fy},
	}
	s.scent.Swap()
	steps = append(steps, gpu.ComputeStep{
		Label: "display", Pipeline: s.pipelines["display_field"],
		Groups: []*wgpu.BindGroup{s.groups.For(s.scent.Index())}, X: fx, Y: fy,
	})
	if err := s.GPU.RunCompute(enc, "ecosystem", steps...); err != nil {
		return err
	}
	if err := s.tiling.Render(enc, view, 0); err != nil {
		return err
	}
	if err := s.Submit(enc); err != nil {
		return err
	}
	s.ticks++
	if s.ticks%checkEvery == 0 {
		return s.check()
	}
	return nil
}

// check reads back the population counters of the last frame.
func (s *Simulation) check() error {
	ctx, cancel := context.WithTimeout(context.Background(), sim.ReadbackTimeout)
	defer cancel()
	data, err := gpu.ReadBuffer(ctx, s.GPU, s.slotBuf, CountersSize)
	if err != nil {
		return err
	}
	s.counters = Counters{
		Herbivores: binary.LittleEndian.Uint32(data[0:]),
		Carnivores: binary.LittleEndian.Uint32(data[4:]),
		Plants:     binary.LittleEndian.Uint32(data[8:]),
		Kills:      binary.LittleEndian.Uint32(data[12:]),
	}
	return nil
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

// Size returns the grid resolution.
func (s *Simulation) Size() (uint32, uint32) { return s.gw, s.gh }

// Resize rescales the plant and scent fields. Agents wrap into the new
// bounds on their next update.
func (s *Simulation) Resize(width, height uint32) error {
	if !s.Resized(width, height) {
		return nil
	}
	return s.regrid(false)
}

// UpdateSetting changes one setting. Population and grid settings rebuild
// on the next frame.
func (s *Simulation) UpdateSetting(name string, value any) error {
	if err := sim.SetField(&s.settings, name, value); err != nil {
		return err
	}
	switch name {
	case "herbivore_count", "carnivore_count":
		s.dirtySpawn = true
	case "cell_size":
		return s.regrid(true)
	}
	return nil
}

// regrid reallocates every field when the grid size for the surface
// changed, carrying plants and scent over.
func (s *Simulation) regrid(respawn bool) error {
	w, h := s.grid(s.Width, s.Height)
	if w == s.gw && h == s.gh {
		return nil
	}
	old := fieldSize{s.gw, s.gh}
	next, _, err := s.ResizeBuffers(s.scent, old.w, old.h, w, h, 4)
	if err != nil {
		return err
	}
	s.scent = next
	s.gw, s.gh = w, h
	s.params.Width, s.params.Height = w, h
	s.Owner.Release(s.depositBuf)
	s.Owner.Release(s.displayView)
	s.Owner.Release(s.display)
	if err := s.allocateField(&old); err != nil {
		return err
	}
	if err := s.tiling.SetViews(s.displayView, nil); err != nil {
		return err
	}
	if respawn {
		return s.spawn()
	}
	if err := s.allocateSlots(); err != nil {
		return err
	}
	return s.buildGroups()
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

// State returns runtime state with the last population readback.
func (s *Simulation) State() sim.ValueTree {
	st := s.CommonState()
	st["grid_width"] = s.gw
	st["grid_height"] = s.gh
	st["agents"] = s.agents
	st["herbivores_alive"] = s.counters.Herbivores
	st["carnivores_alive"] = s.counters.Carnivores
	st["plant_total"] = float64(s.counters.Plants) / PlantFixed
	st["kills"] = s.counters.Kills
	st["frame"] = s.params.Frame
	return st
}

// ApplySettings replaces all settings and respawns.
func (s *Simulation) ApplySettings(tree sim.ValueTree) error {
	if err := sim.DecodeSettings(tree, &s.settings); err != nil {
		return err
	}
	if err := s.regrid(true); err != nil {
		return err
	}
	s.dirtySpawn = true
	return nil
}

// ResetRuntimeState regrows the plants, clears the scent and respawns.
func (s *Simulation) ResetRuntimeState() error {
	cells := int(s.gw) * int(s.gh)
	zero := make([]byte, cells*4)
	w := s.Writer()
	for i := range 2 {
		if err := w.WriteBuffer(s.scent.At(i), 0, zero); err != nil {
			return err
		}
	}
	if err := w.WriteBuffer(s.depositBuf, 0, zero); err != nil {
		return err
	}
	p := s.settings.params(s.gw, s.gh, uint32(s.RNG.Seed()))
	if err := w.WriteBuffer(s.plantBuf, 0, gpu.Float32Bytes(Plants(int(s.gw), int(s.gh), &p))); err != nil {
		return err
	}
	s.params.Frame = 0
	s.counters = Counters{}
	s.ticks = 0
	return s.spawn()
}

// RandomizeSettings draws new rates and populations.
func (s *Simulation) RandomizeSettings() error {
	sim.Randomize(&s.settings, s.RNG)
	s.dirtySpawn = true
	return nil
}

// HandleMouse plants food (left), gathers agents (middle) or scatters them
// (right).
func (s *Simulation) HandleMouse(x, y float32, button int) error {
	s.PressCursor(x, y, button)
	return nil
}

// HandleMouseRelease stops the interaction.
func (s *Simulation) HandleMouseRelease(int) error {
	s.ReleaseCursor()
	return nil
}
