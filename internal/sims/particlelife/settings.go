package particlelife

import "github.com/gogpu/simviz/internal/sim"

// MaxSpecies is the largest supported species count.
const MaxSpecies = 8

// Matrix is a row-major MaxSpecies×MaxSpecies table; entry i*MaxSpecies+j
// is how species i responds to species j.
type Matrix = [MaxSpecies * MaxSpecies]float32

// Settings are the particle and interaction parameters.
type Settings struct {
	ParticleCount   uint32 `mapstructure:"particle_count" range:"64,65536" rand:"triangular:1000,12000"`
	SpeciesCount    uint32 `mapstructure:"species_count" range:"1,8" rand:"uniform:2,8"`
	SpawnPattern    string `mapstructure:"spawn_pattern" enum:"Random|Disk|Ring|Stripes" rand:"uniform"`
	MatrixGenerator string `mapstructure:"matrix_generator" enum:"Random|Symmetric|Chains|Snakes|Attract|Repel" rand:"uniform"`
	ForceMatrix     Matrix `mapstructure:"force_matrix"`
	BetaMatrix      Matrix `mapstructure:"beta_matrix"`

	Beta          float32 `mapstructure:"beta" range:"0.05,0.9" rand:"uniform:0.2,0.4"`
	BetaVariation float32 `mapstructure:"beta_variation" range:"0,0.4"`
	MaxDistance   float32 `mapstructure:"max_distance" range:"0.01,0.5" rand:"uniform:0.05,0.2"`
	ForceScale    float32 `mapstructure:"force_scale" range:"0,50" rand:"uniform:4,16"`
	Friction      float32 `mapstructure:"friction" range:"0,20" rand:"uniform:2,8"`
	Brownian      float32 `mapstructure:"brownian_motion" range:"0,0.5" rand:"uniform:0,0.02"`
	MaxSpeed      float32 `mapstructure:"max_speed" range:"0.01,5"`
	WrapEdges     bool    `mapstructure:"wrap_edges"`

	Trails       bool    `mapstructure:"trails"`
	TrailFade    float32 `mapstructure:"trail_fade" range:"0,1"`
	ParticleSize float32 `mapstructure:"particle_size" range:"0.5,16"`
	ColorMode    string  `mapstructure:"color_mode" enum:"Species|Velocity"`
}

// DefaultSettings returns six species with a random attraction table.
func DefaultSettings() Settings {
	s := Settings{
		ParticleCount:   4000,
		SpeciesCount:    6,
		SpawnPattern:    "Random",
		MatrixGenerator: "Random",
		Beta:            0.3,
		MaxDistance:     0.1,
		ForceScale:      10,
		Friction:        5,
		Brownian:        0.002,
		MaxSpeed:        1,
		WrapEdges:       true,
		Trails:          false,
		TrailFade:       0.15,
		ParticleSize:    2,
		ColorMode:       "Species",
	}
	s.Regenerate(sim.NewRNG(0))
	return s
}

func defaults() sim.ValueTree { return sim.EncodeSettings(DefaultSettings()) }

// Regenerate redraws both matrices with the configured generator.
func (s *Settings) Regenerate(rng *sim.RNG) {
	gen := int(sim.EnumIndex(s, "matrix_generator", s.MatrixGenerator))
	s.ForceMatrix = GenerateForces(gen, int(s.SpeciesCount), rng)
	s.BetaMatrix = GenerateBetas(s.Beta, s.BetaVariation, int(s.SpeciesCount), rng)
}

// Params is the compute uniform, matching Params in
// shaders/particle_life.wgsl.
type Params struct {
	Count       uint32
	Species     uint32
	Dt          float32
	MaxDistance float32

	ForceScale float32
	Friction   float32
	Brownian   float32
	MaxSpeed   float32

	Seed  uint32
	Frame uint32
	Wrap  uint32
	Mode  uint32

	CursorX        float32
	CursorY        float32
	CursorSize     float32
	CursorStrength float32
}

// ParamsSize is the WGSL size of Params.
const ParamsSize = 64

// MatrixSize is the WGSL size of a Matrix uniform, array<vec4<f32>, 16>.
const MatrixSize = 256

func (s *Settings) params(n uint32, dt float32, seed, frame uint32) Params {
	return Params{
		Count:       n,
		Species:     max(s.SpeciesCount, 1),
		Dt:          dt,
		MaxDistance: s.MaxDistance,
		ForceScale:  s.ForceScale,
		Friction:    s.Friction,
		Brownian:    s.Brownian,
		MaxSpeed:    s.MaxSpeed,
		Seed:        seed,
		Frame:       frame,
		Wrap:        b2u(s.WrapEdges),
	}
}

// RenderUniform drives the trail and particle draws, matching Render in
// shaders/particle_render.wgsl.
type RenderUniform struct {
	Width        float32
	Height       float32
	ParticleSize float32
	Species      uint32
	ColorMode    uint32
	Fade         float32
	MaxSpeed     float32
	_            uint32
}

// RenderUniformSize is the WGSL size of RenderUniform.
const RenderUniformSize = 32

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
