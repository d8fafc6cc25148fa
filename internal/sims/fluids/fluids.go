// Package fluids implements an incompressible stable-fluids solver with
// dye transport and mouse splats.
package fluids

import (
	_ "embed"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/sim"
	"github.com/gogpu/wgpu"
)

// Kind is the registry name.
const Kind = "fluids"

const (
	workgroupSize  = 16
	vectorFormat   = gputypes.TextureFormatRGBA32Float
	scalarFormat   = gputypes.TextureFormatR32Float
	bytesPerCell   = 2*16 + 2*16 + 2*4 + 4
	dyeDisplayGain = 1
)

//go:embed shaders/fluids.wgsl
var shaderWGSL string

// Bindings are the host sizes of the shader's buffers.
var Bindings = []gpu.Binding{
	{Group: 0, Binding: 0, Size: ParamsSize},
	{Group: 0, Binding: 1, Size: SeedParamsSize},
}

func init() {
	sim.Register(sim.Descriptor{Kind: Kind, New: New, Defaults: defaults})
}

// Simulation is the GPU fluid.
type Simulation struct {
	*sim.Base

	settings Settings
	params   Params

	velocity    *gpu.PingPongTextures
	pressure    *gpu.PingPongTextures
	dye         *gpu.PingPongTextures
	div         *wgpu.Texture
	divView     *wgpu.TextureView
	paramBuf    *wgpu.Buffer
	seedBuf     *wgpu.Buffer
	readLayout  *wgpu.BindGroupLayout
	writeLayout *wgpu.BindGroupLayout
	pairLayouts [3]*wgpu.BindGroupLayout

	global [2]*wgpu.BindGroup // reading and writing divergence
	vel    *gpu.BindGroupPair
	press  *gpu.BindGroupPair
	dyeG   *gpu.BindGroupPair
	pipes  map[string]*wgpu.ComputePipeline
	tiling *sim.TilingRenderer

	lastX, lastY float32
	dragging     bool
	autoClock    float32
	frame        uint32
}

// New builds the simulation.
func New(env sim.Env) (sim.Simulation, error) {
	base, err := sim.NewBase(Kind, env)
	if err != nil {
		return nil, err
	}
	s := &Simulation{Base: base, settings: DefaultSettings(), pipes: make(map[string]*wgpu.ComputePipeline)}
	if err := s.build(); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

// gridSize is the solver resolution for a surface of w×h.
func (s *Simulation) gridSize(w, h uint32) (uint32, uint32) {
	k := s.settings.ResolutionScale
	gw := max(uint32(float32(w)*k), 8)
	gh := max(uint32(float32(h)*k), 8)
	return s.FitField(gw, gh, bytesPerCell)
}

func (s *Simulation) build() error {
	o := s.Owner
	gw, gh := s.gridSize(s.Width, s.Height)
	var err error
	if s.paramBuf, err = o.NewUniform("fluids params", Params{}); err != nil {
		return err
	}
	if s.seedBuf, err = o.NewUniform("fluids seed", SeedParams{}); err != nil {
		return err
	}
	s.readLayout, err = gpu.NewLayout("fluids globals read", wgpu.ShaderStageCompute).
		Uniform().Uniform().At(3).UnfilterableTexture().Build(o)
	if err != nil {
		return err
	}
	s.writeLayout, err = gpu.NewLayout("fluids globals write", wgpu.ShaderStageCompute).
		Uniform().Uniform().StorageTexture(scalarFormat).Build(o)
	if err != nil {
		return err
	}
	for i, f := range []wgpu.TextureFormat{vectorFormat, scalarFormat, vectorFormat} {
		s.pairLayouts[i], err = gpu.NewLayout("fluids pair", wgpu.ShaderStageCompute).
			UnfilterableTexture().StorageTexture(f).Build(o)
		if err != nil {
			return err
		}
	}
	if err := s.allocate(gw, gh); err != nil {
		return err
	}
	for _, entry := range []string{"advect_velocity", "divergence", "jacobi", "project", "advect_dye", "splat_velocity", "splat_dye"} {
		g0 := s.readLayout
		if entry == "divergence" {
			g0 = s.writeLayout
		}
		s.pipes[entry], err = gpu.NewComputePipeline(s.GPU, o, "fluids "+entry).
			Shader(shaderWGSL, entry).
			Layouts(g0, s.pairLayouts[0], s.pairLayouts[1], s.pairLayouts[2]).
			Expect(Bindings...).
			Build()
		if err != nil {
			return err
		}
	}
	s.tiling, err = sim.NewTilingRenderer(s.Base, "fluids", sim.RenderParams{Channel: sim.ChannelR, Scale: dyeDisplayGain},
		s.dye.ViewAt(0), s.dye.ViewAt(1))
	return err
}

// allocate creates the fields at gw×gh and their bind groups.
func (s *Simulation) allocate(gw, gh uint32) error {
	o := s.Owner
	var err error
	if s.velocity == nil {
		if s.velocity, err = gpu.NewPingPongTextures(o, "fluids velocity", gw, gh, vectorFormat, gpu.FieldUsage); err != nil {
			return err
		}
		if s.pressure, err = gpu.NewPingPongTextures(o, "fluids pressure", gw, gh, scalarFormat, gpu.FieldUsage); err != nil {
			return err
		}
		if s.dye, err = gpu.NewPingPongTextures(o, "fluids dye", gw, gh, vectorFormat, gpu.FieldUsage); err != nil {
			return err
		}
	}
	if s.div, s.divView, err = o.NewTexture2D("fluids divergence", gw, gh, scalarFormat, gpu.FieldUsage); err != nil {
		return err
	}
	return s.buildGroups()
}

func (s *Simulation) buildGroups() error {
	o := s.Owner
	for i, l := range []*wgpu.BindGroupLayout{s.readLayout, s.writeLayout} {
		if s.global[i] != nil {
			o.Release(s.global[i])
		}
		b := gpu.NewBindGroup("fluids globals", l).Buffer(s.paramBuf).Buffer(s.seedBuf)
		if i == 0 {
			b = b.At(3)
		}
		g, err := b.View(s.divView).Build(o)
		if err != nil {
			return err
		}
		s.global[i] = g
	}
	pair := func(old *gpu.BindGroupPair, pp *gpu.PingPongTextures, layout *wgpu.BindGroupLayout) (*gpu.BindGroupPair, error) {
		return gpu.BuildBindGroupPair(o, old, func(p int) (*wgpu.BindGroup, error) {
			return gpu.NewBindGroup(pp.Label, layout).View(pp.ViewAt(p)).View(pp.ViewAt(1 - p)).Build(o)
		})
	}
	var err error
	if s.vel, err = pair(s.vel, s.velocity, s.pairLayouts[0]); err != nil {
		return err
	}
	if s.press, err = pair(s.press, s.pressure, s.pairLayouts[1]); err != nil {
		return err
	}
	s.dyeG, err = pair(s.dyeG, s.dye, s.pairLayouts[2])
	return err
}

// step records one dispatch with the current parities.
func (s *Simulation) step(entry string) gpu.ComputeStep {
	g0 := s.global[0]
	if entry == "divergence" {
		g0 = s.global[1]
	}
	return gpu.ComputeStep{
		Label:    entry,
		Pipeline: s.pipes[entry],
		Groups: []*wgpu.BindGroup{
			g0,
			s.vel.For(s.velocity.Index()),
			s.press.For(s.pressure.Index()),
			s.dyeG.For(s.dye.Index()),
		},
		X: gpu.WorkgroupCount(s.velocity.Width, workgroupSize),
		Y: gpu.WorkgroupCount(s.velocity.Height, workgroupSize),
	}
}

// splat decides this frame's impulse, if any, and uploads it.
func (s *Simulation) splat(dt float32) (bool, error) {
	gw, gh := s.velocity.Width, s.velocity.Height
	sp := SeedParams{Radius: s.settings.SplatRadius, Strength: s.settings.DyeAmount * s.Cursor.Strength, Width: gw, Height: gh}
	switch {
	case s.Cursor.Active:
		u, v := sim.TexCoord(s.Cursor.X, s.Cursor.Y)
		sp.U, sp.V = u, v
		if s.dragging {
			// Drag velocity in cells per second.
			dx := (s.Cursor.X - s.lastX) / 2 * float32(gw)
			dy := (s.Cursor.Y - s.lastY) / 2 * float32(gh)
			scale := s.settings.SplatForce / 100 / max(dt, 1e-3)
			sp.ForceX, sp.ForceY = dx*scale, dy*scale
		}
		if s.Cursor.Button == sim.ButtonRight {
			sp.Strength = -sp.Strength
		}
		s.lastX, s.lastY, s.dragging = s.Cursor.X, s.Cursor.Y, true
	case s.settings.AutoSplats:
		s.autoClock += dt
		if s.autoClock < s.settings.AutoSplatInterval {
			return false, nil
		}
		s.autoClock = 0
		sp.U, sp.V = s.RNG.Float32(), s.RNG.Float32()
		angle := s.RNG.Range(0, 2*math.Pi)
		sp.ForceX = float32(math.Cos(float64(angle))) * s.settings.SplatForce
		sp.ForceY = float32(math.Sin(float64(angle))) * s.settings.SplatForce
		sp.Strength = s.settings.DyeAmount
	default:
		return false, nil
	}
	return true, s.Write(s.seedBuf, sp)
}

// RenderFrame runs splats, advection, projection and dye transport, then
// draws the dye.
func (s *Simulation) RenderFrame(view *wgpu.TextureView, dt float32) error {
	if s.Paused {
		return s.RenderFramePaused(view)
	}
	dt = sim.ClampDelta(dt)
	if err := s.PrepareCamera(dt); err != nil {
		return err
	}
	s.frame++
	s.params = Params{
		Width:               s.velocity.Width,
		Height:              s.velocity.Height,
		Dt:                  dt * s.settings.TimestepScale,
		VelocityDissipation: s.settings.VelocityDissipation,
		DyeDissipation:      s.settings.DyeDissipation,
		Seed:                uint32(s.RNG.Seed()),
		Frame:               s.frame,
	}
	if err := s.Write(s.paramBuf, s.params); err != nil {
		return err
	}
	splat, err := s.splat(dt)
	if err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	var steps []gpu.ComputeStep
	add := func(entry string, swap *gpu.PingPongTextures) {
		steps = append(steps, s.step(entry))
		if swap != nil {
			swap.Swap()
		}
	}
	if splat {
		add("splat_velocity", s.velocity)
		add("splat_dye", s.dye)
	}
	add("advect_velocity", s.velocity)
	add("divergence", nil)
	for range s.settings.Iterations() {
		add("jacobi", s.pressure)
	}
	add("project", s.velocity)
	add("advect_dye", s.dye)
	if err := s.GPU.RunCompute(enc, "fluids", steps...); err != nil {
		return err
	}
	if err := s.tiling.Render(enc, view, s.dye.Index()); err != nil {
		return err
	}
	return s.Submit(enc)
}

// RenderFramePaused draws the current dye.
func (s *Simulation) RenderFramePaused(view *wgpu.TextureView) error {
	if err := s.PrepareCamera(0); err != nil {
		return err
	}
	enc, err := s.Encoder()
	if err != nil {
		return err
	}
	if err := s.tiling.Render(enc, view, s.dye.Index()); err != nil {
		return err
	}
	return s.Submit(enc)
}

// Resize rescales all fields to the new grid.
func (s *Simulation) Resize(width, height uint32) error {
	if !s.Resized(width, height) {
		return nil
	}
	return s.regrid()
}

// regrid moves every field to the grid for the current surface size.
func (s *Simulation) regrid() error {
	gw, gh := s.gridSize(s.Width, s.Height)
	if gw == s.velocity.Width && gh == s.velocity.Height {
		return nil
	}
	for _, pp := range []**gpu.PingPongTextures{&s.velocity, &s.pressure, &s.dye} {
		next, _, err := s.ResizeTextures(*pp, gw, gh)
		if err != nil {
			return err
		}
		*pp = next
	}
	s.Owner.Release(s.divView)
	s.Owner.Release(s.div)
	if err := s.allocate(gw, gh); err != nil {
		return err
	}
	return s.tiling.SetViews(s.dye.ViewAt(0), s.dye.ViewAt(1))
}

// UpdateSetting changes one setting.
func (s *Simulation) UpdateSetting(name string, value any) error {
	if err := sim.SetField(&s.settings, name, value); err != nil {
		return err
	}
	if name == "resolution_scale" {
		return s.regrid()
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
	st["grid_width"] = s.velocity.Width
	st["grid_height"] = s.velocity.Height
	st["frame"] = s.frame
	return st
}

// ApplySettings replaces all settings.
func (s *Simulation) ApplySettings(tree sim.ValueTree) error {
	if err := sim.DecodeSettings(tree, &s.settings); err != nil {
		return err
	}
	return s.regrid()
}

// ResetRuntimeState clears every field.
func (s *Simulation) ResetRuntimeState() error {
	for _, pp := range []*gpu.PingPongTextures{s.velocity, s.pressure, s.dye} {
		zero := make([]byte, int(pp.Width)*int(pp.Height)*gpu.BytesPerTexel(pp.Format))
		for i := range 2 {
			if err := gpu.UploadTexture(s.GPU.Queue(), pp.TextureAt(i), pp.Width, pp.Height, pp.Format, zero); err != nil {
				return err
			}
		}
	}
	s.frame = 0
	s.autoClock = 0
	return nil
}

// RandomizeSettings draws new solver parameters.
func (s *Simulation) RandomizeSettings() error {
	sim.Randomize(&s.settings, s.RNG)
	return nil
}

// HandleMouse injects dye and drag momentum; right button removes dye.
func (s *Simulation) HandleMouse(x, y float32, button int) error {
	s.PressCursor(x, y, button)
	return nil
}

// HandleMouseRelease ends the drag.
func (s *Simulation) HandleMouseRelease(int) error {
	s.ReleaseCursor()
	s.dragging = false
	return nil
}
