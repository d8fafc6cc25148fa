// Package spacecolonization grows a branching network toward a cloud of
// attractor points. Growth runs entirely on the GPU in a node arena; the
// host only tracks an upper bound on the node count to size dispatches.
package spacecolonization

import (
	"context"
	_ "embed"
	"encoding/binary"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/camera"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Kind is the registry name.
const Kind = "space_colonization"

const (
	workgroup = 64
	// Reserved attractor slots after the pattern, filled by left clicks.
	Reserved = 256
	// SeedBurst is the number of attractors one click adds.
	SeedBurst = 64
	// checkEvery is the tick interval of the counter readback.
	checkEvery = 30
	// CurveParts is the number of quads per branch segment.
	CurveParts = 8
)

var (
	//go:embed shaders/space_colonization.wgsl
	growthWGSL string
	//go:embed shaders/branch_render.wgsl
	renderWGSL string
)

// Bindings are the host sizes of the growth shader's buffers.
var Bindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: ParamsSize},
	{Group: 0, Binding: 1, Size: AttractorSize},
	{Group: 0, Binding: 2, Size: NodeSize},
	{Group: 0, Binding: 3, Size: CountersSize},
}

// RenderBindings are the host sizes of the branch renderer's buffers.
var RenderBindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: NodeSize},
	{Group: 0, Binding: 1, Size: CountersSize},
	{Group: 0, Binding: 2, Size: 3072},
	{Group: 0, Binding: 3, Size: ParamsSize},
	{Group: 1, Binding: 0, Size: camera.UniformSize},
}

var stages = []string{"reset_nodes", "influence", "grow", "prune", "thicken", "thickness"}

func init() {
	sim.Register(sim.Descriptor{
		Kind:     Kind,
		New:      New,
		Software: newSoftware,
		Defaults: defaults,
	})
}

// Simulation is the GPU space colonization.
type Simulation struct {
	*sim.Base

	settings Settings
	maxNodes uint32
	bound    uint32
	ticks    uint64
	counters Counters
	finished bool
	seeded   bool
	slot     uint32

	paramBuf     *wgpu.Buffer
	attractorBuf *wgpu.Buffer
	nodeBuf      *wgpu.Buffer
	counterBuf   *wgpu.Buffer

	computeLayout *wgpu.BindGroupLayout
	renderLayout  *wgpu.BindGroupLayout
	cameraLayout  *wgpu.BindGroupLayout
	initAttr      *wgpu.ComputePipeline
	initRoot      *wgpu.ComputePipeline
	pipelines     map[string]*wgpu.ComputePipeline
	draw          *wgpu.RenderPipeline
	computeGroup  *wgpu.BindGroup
	renderGroup   *wgpu.BindGroup
	cameraGroup   *wgpu.BindGroup

	dirtyReset bool
}

// New builds the simulation.
func New(env sim.Env) (sim.Simulation, error) {
	base, err := sim.NewBase(Kind, env)
	if err != nil {
		return nil, err
	}
	s := &Simulation{Base: base, settings: DefaultSettings(), pipelines: map[string]*wgpu.ComputePipeline{}}
	if err := s.build(); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

func (s *Simulation) build() error {
	o := s.Owner
	var err error
	if s.paramBuf, err = o.NewUniform("space colonization params", Params{}); err != nil {
		return err
	}
	if s.counterBuf, err = o.NewStorage("space colonization counters", CountersSize, nil, wgpu.BufferUsageCopySrc); err != nil {
		return err
	}
	if s.computeLayout, err = gpu.NewLayout("space colonization growth", wgpu.ShaderStageCompute).
		Uniform().Storage().Storage().Storage().Build(o); err != nil {
		return err
	}
	if s.renderLayout, err = gpu.NewLayout("space colonization draw", wgpu.ShaderStageVertex|wgpu.ShaderStageFragment).
		ReadOnlyStorage().ReadOnlyStorage().ReadOnlyStorage().Uniform().Build(o); err != nil {
		return err
	}
	if s.cameraLayout, err = gpu.NewLayout("space colonization camera", wgpu.ShaderStageVertex).Uniform().Build(o); err != nil {
		return err
	}
	if s.cameraGroup, err = gpu.NewBindGroup("space colonization camera", s.cameraLayout).Buffer(s.CameraBuf).Build(o); err != nil {
		return err
	}
	compute := func(entry string) (*wgpu.ComputePipeline, error) {
		return gpu.NewComputePipeline(s.GPU, o, "space colonization "+entry).
			Shader(growthWGSL, entry).
			Layouts(s.computeLayout).
			Expect(Bindings...).
			Build()
	}
	if s.initAttr, err = compute("init_attractors"); err != nil {
		return err
	}
	if s.initRoot, err = compute("init_root"); err != nil {
		return err
	}
	for _, e := range stages {
		if s.pipelines[e], err = compute(e); err != nil {
			return err
		}
	}
	s.draw, err = gpu.NewRenderPipeline(s.GPU, o, "space colonization draw").
		Shader(renderWGSL).
		Layouts(s.renderLayout, s.cameraLayout).
		Expect(RenderBindings...).
		Build()
	if err != nil {
		return err
	}
	return s.reset()
}

// reset sizes the arenas for the current settings and schedules the init
// stages for the next frame.
func (s *Simulation) reset() error {
	limit := s.GPU.StorageLimit()
	s.maxNodes = min(s.settings.MaxNodes, uint32(min(limit/NodeSize, 1<<31)))
	attractors := min(s.settings.AttractorCount, uint32(min(limit/AttractorSize, 1<<31))-Reserved)
	s.settings.AttractorCount = attractors

	changed := false
	grow := func(buf **wgpu.Buffer, label string, size uint64) error {
		if *buf != nil && (*buf).Size() == size {
			return nil
		}
		if *buf != nil {
			s.Owner.Release(*buf)
		}
		changed = true
		var err error
		*buf, err = s.Owner.NewStorage(label, size, nil, 0)
		return err
	}
	if err := grow(&s.attractorBuf, "space colonization attractors", uint64(attractors+Reserved)*AttractorSize); err != nil {
		return err
	}
	if err := grow(&s.nodeBuf, "space colonization nodes", uint64(s.maxNodes)*NodeSize); err != nil {
		return err
	}
	if changed || s.computeGroup == nil {
		if err := s.buildGroups(); err != nil {
			return err
		}
	}
	s.bound, s.ticks, s.slot = 1, 0, 0
	s.finished, s.seeded = false, false
	s.counters = Counters{NodeCount: 1, ActiveAttractors: attractors}
	s.dirtyReset = false
	simviz.Logger().Debug("space colonization reset", "sim", Kind,
		"attractors", attractors, "max_nodes", s.maxNodes, "pattern", s.settings.AttractorPattern)
	return nil
}

func (s *Simulation) buildGroups() error {
	o := s.Owner
	for _, g := range []*wgpu.BindGroup{s.computeGroup, s.renderGroup} {
		if g != nil {
			o.Release(g)
		}
	}
	var err error
	if s.computeGroup, err = gpu.NewBindGroup("space colonization growth", s.computeLayout).
		Buffer(s.paramBuf).Buffer(s.attractorBuf).Buffer(s.nodeBuf).Buffer(s.counterBuf).Build(o); err != nil {
		return err
	}
	s.renderGroup, err = gpu.NewBindGroup("space colonization draw", s.renderLayout).
		Buffer(s.nodeBuf).Buffer(s.counterBuf).Buffer(s.LUTBuf).Buffer(s.paramBuf).Build(o)
	return err
}

func (s *Simulation) capacity() uint32 { return s.settings.AttractorCount + Reserved }

// nextBound is the node bound after n ticks: each node grows at most one
// child per tick.
func (s *Simulation) nextBound(n uint32) uint32 {
	b := uint64(s.bound)
	for range n {
		b = min(b*2, uint64(s.maxNodes))
	}
	return uint32(b)
}

func (s *Simulation) uploadParams(bound uint32) error {
	p := s.settings.params(bound, float32(s.Height))
	p.MaxNodes = s.maxNodes
	p.CursorX, p.CursorY, p.CursorSize = s.Cursor.X, s.Cursor.Y, s.Cursor.Size
	p.Mode = s.Mode()
	return s.Write(s.paramBuf, p)
}

// tick records the init stages when pending and steps growth times.
func (s *Simulation) tick(enc *wgpu.CommandEncoder, steps uint32) error {
	groups := []*wgpu.BindGroup{s.computeGroup}
	attrX := gpu.WorkgroupCount(s.capacity(), workgroup)
	var list []gpu.ComputeStep
	if !s.seeded {
		list = append(list,
			gpu.ComputeStep{Label: "init_attractors", Pipeline: s.initAttr, Groups: groups, X: attrX},
			gpu.ComputeStep{Label: "init_root", Pipeline: s.initRoot, Groups: groups, X: 1},
		)
		s.seeded = true
	}
	bound := s.nextBound(steps)
	if err := s.uploadParams(bound); err != nil {
		return err
	}
	nodeX := gpu.WorkgroupCount(bound, workgroup)
	for range steps {
		for _, e := range stages {
			x := nodeX
			if e == "influence" || e == "prune" {
				x = attrX
			}
			list = append(list, gpu.ComputeStep{Label: e, Pipeline: s.pipelines[e], Groups: groups, X: x})
		}
	}
	s.bound = bound
	s.ticks += uint64(steps)
	return s.GPU.RunCompute(enc, "space colonization", list...)
}

// check reads the counters back, tightening the bound and detecting the
// end of growth.
func (s *Simulation) check() error {
	ctx, cancel := context.WithTimeout(context.Background(), sim.ReadbackTimeout)
	defer cancel()
	data, err := gpu.ReadBuffer(ctx, s.GPU, s.counterBuf, CountersSize)
	if err != nil {
		return err
	}
	s.counters = Counters{
		NodeCount:        binary.LittleEndian.Uint32(data[0:]),
		ActiveAttractors: binary.LittleEndian.Uint32(data[4:]),
		Snapshot:         binary.LittleEndian.Uint32(data[8:]),
		Grown:            binary.LittleEndian.Uint32(data[12:]),
		Stalled:          binary.LittleEndian.Uint32(data[16:]),
	}
	count := min(s.counters.NodeCount, s.maxNodes)
	s.bound = max(count, 1)
	if !s.finished && (s.counters.ActiveAttractors == 0 || count >= s.maxNodes) {
		s.finished = true
		simviz.Logger().Info("space colonization finished", "sim", Kind,
			"nodes", count, "ticks", s.ticks)
	}
	return nil
}

func (s *Simulation) frame(view *wgpu.TextureView, steps uint32) error {
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	if steps > 0 {
		if err := s.tick(enc, steps); err != nil {
			return err
		}
	} else if err := s.uploadParams(s.bound); err != nil {
		return err
	}
	err = gpu.RunRender(enc, "space colonization draw", view, s.ClearColor(), gpu.Draw{
		Pipeline:  s.draw,
		Groups:    []*wgpu.BindGroup{s.renderGroup, s.cameraGroup},
		Vertices:  CurveParts * 6,
		Instances: max(s.bound, 1) - 1,
	})
	if err != nil {
		return err
	}
	if err := s.Submit(enc); err != nil {
		return err
	}
	if steps > 0 && s.ticks/checkEvery != (s.ticks-uint64(steps))/checkEvery {
		return s.check()
	}
	return nil
}

// RenderFrame grows the tree until it terminates, then keeps drawing it.
func (s *Simulation) RenderFrame(view *wgpu.TextureView, dt float32) error {
	if s.Paused {
		return s.RenderFramePaused(view)
	}
	if err := s.PrepareCamera(sim.ClampDelta(dt)); err != nil {
		return err
	}
	if s.dirtyReset {
		if err := s.reset(); err != nil {
			return err
		}
	}
	var steps uint32
	if !s.finished {
		steps = max(s.settings.GrowthSteps, 1)
	}
	return s.frame(view, steps)
}

// RenderFramePaused draws the tree as it stands.
func (s *Simulation) RenderFramePaused(view *wgpu.TextureView) error {
	if err := s.PrepareCamera(0); err != nil {
		return err
	}
	return s.frame(view, 0)
}

// Resize only tracks the viewport; the tree lives in world space.
func (s *Simulation) Resize(width, height uint32) error {
	s.Resized(width, height)
	return nil
}

// UpdateSetting changes one setting. Changes to the attractor cloud or the
// arena size restart growth.
func (s *Simulation) UpdateSetting(name string, value any) error {
	if err := sim.SetField(&s.settings, name, value); err != nil {
		return err
	}
	switch name {
	case "attractor_count", "attractor_pattern", "random_seed", "max_nodes":
		s.dirtyReset = true
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

// State returns runtime state including the last read counters.
func (s *Simulation) State() sim.ValueTree {
	st := s.CommonState()
	st["node_count"] = min(s.counters.NodeCount, s.maxNodes)
	st["active_attractors"] = s.counters.ActiveAttractors
	st["node_bound"] = s.bound
	st["finished"] = s.finished
	st["ticks"] = s.ticks
	return st
}

// ApplySettings replaces all settings and restarts growth.
func (s *Simulation) ApplySettings(tree sim.ValueTree) error {
	if err := sim.DecodeSettings(tree, &s.settings); err != nil {
		return err
	}
	s.dirtyReset = true
	return nil
}

// ResetRuntimeState regrows from the root.
func (s *Simulation) ResetRuntimeState() error { return s.reset() }

// RandomizeSettings draws new settings and restarts growth.
func (s *Simulation) RandomizeSettings() error {
	sim.Randomize(&s.settings, s.RNG)
	s.dirtyReset = true
	return nil
}

// HandleMouse scatters new attractors around the cursor on a left click.
// Right drags kill the attractors under the cursor.
func (s *Simulation) HandleMouse(x, y float32, button int) error {
	s.PressCursor(x, y, button)
	if button != sim.ButtonLeft || !s.seeded {
		return nil
	}
	burst := make([]GPUAttractor, SeedBurst)
	for i := range burst {
		r := s.Cursor.Size * sqrt32(s.RNG.Float32())
		a := s.RNG.Range(0, 2*3.14159265)
		burst[i] = GPUAttractor{X: x + r*cos32(a), Y: y + r*sin32(a), Active: 1}
	}
	start := s.settings.AttractorCount + s.slot
	s.slot = (s.slot + SeedBurst) % Reserved
	if err := s.Writer().WriteBuffer(s.attractorBuf, uint64(start)*AttractorSize, gpu.Bytes(burst)); err != nil {
		return err
	}
	s.finished = false
	return nil
}

// HandleMouseRelease ends the interaction.
func (s *Simulation) HandleMouseRelease(int) error {
	s.ReleaseCursor()
	return nil
}
