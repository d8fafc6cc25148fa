package pellets

import (
	"github.com/gogpu/simviz/internal/physics"
	"github.com/gogpu/simviz/internal/sim"
)

// Settings are the pellet physics and display parameters.
type Settings struct {
	ParticleCount    uint32  `mapstructure:"particle_count" range:"16,20000" rand:"triangular:500,6000"`
	ParticleSize     float32 `mapstructure:"particle_size" range:"0.002,0.05" rand:"uniform:0.004,0.015"`
	SizeVariation    float32 `mapstructure:"size_variation" range:"0,1" rand:"uniform:0,0.6"`
	InitialVelocity  float32 `mapstructure:"initial_velocity" range:"0,3" rand:"uniform:0,1"`
	SpawnPattern     string  `mapstructure:"spawn_pattern" enum:"Random|Grid|Cluster" rand:"uniform"`
	Gravity          float32 `mapstructure:"gravity" range:"0,5" rand:"uniform:0,1.5"`
	GravityMode      string  `mapstructure:"gravity_mode" enum:"Down|Center" rand:"uniform"`
	Damping          float32 `mapstructure:"damping" range:"0,1" rand:"uniform:0.7,1"`
	CollisionDamping float32 `mapstructure:"collision_damping" range:"0,1" rand:"uniform:0,0.4"`
	MaxSpeed         float32 `mapstructure:"max_speed" range:"0.1,10"`
	Collisions       bool    `mapstructure:"collisions"`

	DensityRadius float32 `mapstructure:"density_radius" range:"0.005,0.2" rand:"uniform:0.015,0.06"`
	ColorMode     string  `mapstructure:"color_mode" enum:"Density|Velocity"`
	ColorScale    float32 `mapstructure:"color_scale" range:"0.01,100"`
	InteractForce float32 `mapstructure:"interaction_force" range:"0,50"`
}

// DefaultSettings returns a settling pile of pellets.
func DefaultSettings() Settings {
	return Settings{
		ParticleCount:    2000,
		ParticleSize:     0.008,
		SizeVariation:    0.3,
		InitialVelocity:  0.4,
		SpawnPattern:     "Random",
		Gravity:          0.6,
		GravityMode:      "Down",
		Damping:          0.9,
		CollisionDamping: 0.1,
		MaxSpeed:         4,
		Collisions:       true,
		DensityRadius:    0.03,
		ColorMode:        "Density",
		ColorScale:       1,
		InteractForce:    8,
	}
}

func defaults() sim.ValueTree { return sim.EncodeSettings(DefaultSettings()) }

// Config maps settings to the solver. Restitution is 1 - collision_damping.
func (s *Settings) Config() physics.Config {
	cfg := physics.Config{
		Damping:     s.Damping,
		Restitution: 1 - s.CollisionDamping,
		MaxSpeed:    s.MaxSpeed,
		Collisions:  s.Collisions,
	}
	if s.GravityMode == "Down" {
		cfg.GravityY = -s.Gravity
	}
	return cfg
}

// Pellet is the GPU particle, matching Pellet in shaders/pellets.wgsl.
type Pellet struct {
	X, Y    float32
	VX, VY  float32
	Radius  float32
	Density float32
	_       [2]uint32
}

// PelletSize is the WGSL size of Pellet.
const PelletSize = 32

// Params is the density and render uniform, matching Params in the shader.
type Params struct {
	Count         uint32
	Cols          uint32
	Rows          uint32
	ColorMode     uint32
	Cell          float32
	DensityRadius float32
	ColorScale    float32
	MaxSpeed      float32
}

// ParamsSize is the WGSL size of Params.
const ParamsSize = 32
