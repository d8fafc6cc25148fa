package wanderers

import (
	"github.com/gogpu/simviz/internal/physics"
	"github.com/gogpu/simviz/internal/sim"
)

// Settings are the wanderer population, steering and display parameters.
type Settings struct {
	Count          uint32  `mapstructure:"count" range:"1,8000" rand:"triangular:50,1500"`
	Size           float32 `mapstructure:"size" range:"0.003,0.08" rand:"uniform:0.006,0.03"`
	SizeVariation  float32 `mapstructure:"size_variation" range:"0,1" rand:"uniform:0,0.6"`
	CruiseSpeed    float32 `mapstructure:"cruise_speed" range:"0,3" rand:"uniform:0.1,0.8"`
	WanderStrength float32 `mapstructure:"wander_strength" range:"0,10" rand:"uniform:0.2,3"`
	WanderRate     float32 `mapstructure:"wander_rate" range:"0,20" rand:"uniform:0.5,6"`
	Damping        float32 `mapstructure:"damping" range:"0,1" rand:"uniform:0.3,0.95"`
	Restitution    float32 `mapstructure:"restitution" range:"0,1" rand:"uniform:0.3,1"`
	Collisions     bool    `mapstructure:"collisions"`
	MaxSpeed       float32 `mapstructure:"max_speed" range:"0.1,10"`

	ColorMode     string  `mapstructure:"color_mode" enum:"Density|Speed" rand:"uniform"`
	DensityRadius float32 `mapstructure:"density_radius" range:"0.005,0.3" rand:"uniform:0.02,0.1"`
	ColorScale    float32 `mapstructure:"color_scale" range:"0.01,100"`
	InteractForce float32 `mapstructure:"interaction_force" range:"0,50"`
	ShowHeading   bool    `mapstructure:"show_heading" rand:"uniform"`
}

// DefaultSettings returns a few hundred drifting wanderers.
func DefaultSettings() Settings {
	return Settings{
		Count:          400,
		Size:           0.012,
		SizeVariation:  0.3,
		CruiseSpeed:    0.3,
		WanderStrength: 1,
		WanderRate:     2,
		Damping:        0.7,
		Restitution:    0.8,
		Collisions:     true,
		MaxSpeed:       2,
		ColorMode:      "Density",
		DensityRadius:  0.06,
		ColorScale:     1,
		InteractForce:  6,
		ShowHeading:    true,
	}
}

func defaults() sim.ValueTree { return sim.EncodeSettings(DefaultSettings()) }

// Config maps settings to the solver.
func (s *Settings) Config() physics.Config {
	return physics.Config{
		Damping:     s.Damping,
		Restitution: s.Restitution,
		MaxSpeed:    s.MaxSpeed,
		Collisions:  s.Collisions,
	}
}

// Wanderer is the GPU instance, matching Wanderer in the render shader.
// Value is the palette position computed on the host.
type Wanderer struct {
	X, Y    float32
	VX, VY  float32
	Radius  float32
	Value   float32
	Heading float32
	_       uint32
}

// WandererSize is the WGSL size of Wanderer.
const WandererSize = 32

// Params is the render uniform, matching Params in the shader.
type Params struct {
	Count       uint32
	ShowHeading uint32
	_           [2]uint32
}

// ParamsSize is the WGSL size of Params.
const ParamsSize = 16
