package flow

import "github.com/gogpu/simviz/internal/sim"

// Color modes in enum order.
const (
	ColorSpeed uint32 = iota
	ColorAge
	ColorAngle
)

// Settings are the particle and trail parameters.
type Settings struct {
	ParticleCount  uint32  `mapstructure:"particle_count" range:"100,500000" rand:"triangular:5000,60000"`
	FlowStrength   float32 `mapstructure:"flow_strength" range:"0,5" rand:"uniform:0.2,1.5"`
	NoiseScale     float32 `mapstructure:"noise_scale" range:"0.1,20" rand:"uniform:0.8,6"`
	FlowEvolution  float32 `mapstructure:"flow_evolution" range:"0,3" rand:"uniform:0,0.5"`
	Inertia        float32 `mapstructure:"inertia" range:"0.1,50" rand:"uniform:1,10"`
	ParticleLife   float32 `mapstructure:"particle_life" range:"0.2,60" rand:"uniform:2,12"`
	LifeVariation  float32 `mapstructure:"life_variation" range:"0,1"`
	ParticleSize   float32 `mapstructure:"particle_size" range:"0.5,10"`
	TrailDecay     float32 `mapstructure:"trail_decay" range:"0,1" rand:"uniform:0.005,0.1"`
	TrailDiffusion float32 `mapstructure:"trail_diffusion" range:"0,1" rand:"uniform:0,0.5"`
	Intensity      float32 `mapstructure:"intensity" range:"0.01,4"`
	ColorMode      string  `mapstructure:"color_mode" enum:"Speed|Age|Angle" rand:"uniform"`
	CursorForce    float32 `mapstructure:"cursor_force" range:"0,20"`
}

// DefaultSettings returns a slowly evolving field with long trails.
func DefaultSettings() Settings {
	return Settings{
		ParticleCount:  20000,
		FlowStrength:   0.6,
		NoiseScale:     2.5,
		FlowEvolution:  0.2,
		Inertia:        4,
		ParticleLife:   6,
		LifeVariation:  0.5,
		ParticleSize:   1.5,
		TrailDecay:     0.04,
		TrailDiffusion: 0.3,
		Intensity:      0.3,
		ColorMode:      "Speed",
		CursorForce:    2,
	}
}

func defaults() sim.ValueTree { return sim.EncodeSettings(DefaultSettings()) }

// Particle matches Particle in shaders/flow.wgsl.
type Particle struct {
	X, Y   float32
	VX, VY float32
	Age    float32
	Life   float32
	_      [2]uint32
}

// ParticleSize is the WGSL size of Particle.
const ParticleSize = 32

// Params is shared by the update, trail and particle shaders, matching
// Params in both WGSL files.
type Params struct {
	Count         uint32
	Frame         uint32
	Seed          uint32
	Mode          uint32
	Dt            float32
	Time          float32
	FlowStrength  float32
	NoiseScale    float32
	Inertia       float32
	Life          float32
	LifeVariation float32
	ParticleSize  float32
	Width         float32
	Height        float32
	Decay         float32
	Diffusion     float32
	Intensity     float32
	ColorMode     uint32
	MaxSpeed      float32
	CursorForce   float32
	CursorX       float32
	CursorY       float32
	CursorSize    float32
	_             uint32
}

// ParamsSize is the WGSL size of Params.
const ParamsSize = 96

// params derives the uniform; frame, time, size and cursor fields are
// filled by the caller.
func (s *Settings) params(count uint32) Params {
	return Params{
		Count:         count,
		FlowStrength:  s.FlowStrength,
		NoiseScale:    s.NoiseScale,
		Inertia:       s.Inertia,
		Life:          s.ParticleLife,
		LifeVariation: s.LifeVariation,
		ParticleSize:  s.ParticleSize,
		Decay:         s.TrailDecay,
		Diffusion:     s.TrailDiffusion,
		Intensity:     s.Intensity,
		ColorMode:     sim.EnumIndex(s, "color_mode", s.ColorMode),
		MaxSpeed:      max(s.FlowStrength, 1e-3) * 1.5,
		CursorForce:   s.CursorForce,
	}
}
