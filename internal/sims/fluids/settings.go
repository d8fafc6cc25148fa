package fluids

import "github.com/gogpu/simviz/internal/sim"

// Settings are the solver and interaction parameters.
type Settings struct {
	PressureIterations  uint32  `mapstructure:"pressure_iterations" range:"2,80" rand:"triangular:10,50"`
	VelocityDissipation float32 `mapstructure:"velocity_dissipation" range:"0,5" rand:"uniform:0,1"`
	DyeDissipation      float32 `mapstructure:"dye_dissipation" range:"0,5" rand:"uniform:0.05,1.5"`
	TimestepScale       float32 `mapstructure:"timestep_scale" range:"0.1,4"`
	ResolutionScale     float32 `mapstructure:"resolution_scale" range:"0.125,1"`

	SplatRadius float32 `mapstructure:"splat_radius" range:"0.005,0.5" rand:"uniform:0.02,0.15"`
	SplatForce  float32 `mapstructure:"splat_force" range:"0,5000" rand:"uniform:200,1500"`
	DyeAmount   float32 `mapstructure:"dye_amount" range:"0,5"`

	AutoSplats        bool    `mapstructure:"auto_splats"`
	AutoSplatInterval float32 `mapstructure:"auto_splat_interval" range:"0.1,10"`
}

// DefaultSettings returns a calm, slowly fading fluid.
func DefaultSettings() Settings {
	return Settings{
		PressureIterations:  30,
		VelocityDissipation: 0.2,
		DyeDissipation:      0.4,
		TimestepScale:       1,
		ResolutionScale:     0.5,
		SplatRadius:         0.06,
		SplatForce:          600,
		DyeAmount:           1,
		AutoSplats:          true,
		AutoSplatInterval:   1.2,
	}
}

func defaults() sim.ValueTree { return sim.EncodeSettings(DefaultSettings()) }

// Iterations returns the Jacobi count, forced even so the solution ends in
// the pressure texture that was current before the solve.
func (s *Settings) Iterations() uint32 {
	n := min(max(s.PressureIterations, 2), 80)
	return n &^ 1
}

// Params is the solver uniform, matching Params in shaders/fluids.wgsl.
type Params struct {
	Width               uint32
	Height              uint32
	Dt                  float32
	VelocityDissipation float32
	DyeDissipation      float32
	Seed                uint32
	Frame               uint32
	_                   uint32
}

// SeedParams is the splat uniform, matching SeedParams in the shader.
type SeedParams struct {
	U, V     float32
	Radius   float32
	Strength float32
	Width    uint32
	Height   uint32
	ForceX   float32
	ForceY   float32
}

// WGSL sizes.
const (
	ParamsSize     = 32
	SeedParamsSize = 32
)
