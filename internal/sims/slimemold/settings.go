package slimemold

import "github.com/gogpu/simviz/internal/sim"

// Settings are the agent and pheromone parameters.
type Settings struct {
	AgentCount          uint32  `mapstructure:"agent_count" range:"1000,4000000"`
	AgentSpeedMin       float32 `mapstructure:"agent_speed_min" range:"0,500" rand:"triangular:10,60"`
	AgentSpeedMax       float32 `mapstructure:"agent_speed_max" range:"0,500" rand:"triangular:60,160"`
	AgentTurnRate       float32 `mapstructure:"agent_turn_rate" range:"0,40" rand:"uniform:2,16"`
	AgentJitter         float32 `mapstructure:"agent_jitter" range:"0,2" rand:"uniform:0,0.4"`
	AgentSensorAngle    float32 `mapstructure:"agent_sensor_angle" range:"0,3.1416" rand:"uniform:0.15,1.2"`
	AgentSensorDistance float32 `mapstructure:"agent_sensor_distance" range:"1,64" rand:"triangular:3,30"`

	PheromoneDepositionRate float32 `mapstructure:"pheromone_deposition_rate" range:"0,20" rand:"uniform:0.3,3"`
	PheromoneDecayRate      float32 `mapstructure:"pheromone_decay_rate" range:"0,30" rand:"uniform:0.5,6"`
	PheromoneDiffusionRate  float32 `mapstructure:"pheromone_diffusion_rate" range:"0,1" rand:"uniform:0.1,0.9"`

	PositionGenerator string  `mapstructure:"position_generator" enum:"Random|Center|UniformCircle|CenteredCircle|Ring|Line|Spiral"`
	Brightness        float32 `mapstructure:"brightness" range:"0.05,20"`
}

// DefaultSettings returns a network-forming configuration.
func DefaultSettings() Settings {
	return Settings{
		AgentCount:              200_000,
		AgentSpeedMin:           30,
		AgentSpeedMax:           90,
		AgentTurnRate:           8,
		AgentJitter:             0.1,
		AgentSensorAngle:        0.45,
		AgentSensorDistance:     9,
		PheromoneDepositionRate: 1,
		PheromoneDecayRate:      1.5,
		PheromoneDiffusionRate:  0.5,
		PositionGenerator:       "Random",
		Brightness:              1,
	}
}

func defaults() sim.ValueTree { return sim.EncodeSettings(DefaultSettings()) }

// Params is the uniform shared by every compute stage. Its layout matches
// Params in shaders/slime_mold.wgsl.
type Params struct {
	Width      uint32
	Height     uint32
	AgentCount uint32
	Frame      uint32

	Dt             float32
	SensorAngle    float32
	SensorDistance float32
	TurnRate       float32

	Jitter     float32
	Deposition float32
	Decay      float32
	Diffusion  float32

	Seed           uint32
	CursorX        float32
	CursorY        float32
	CursorSize     float32
	CursorStrength float32
	Mode           uint32
	Brightness     float32
	_              uint32
}

// ParamsSize is the WGSL size of Params.
const ParamsSize = 80

func (s *Settings) params(w, h, n uint32, seed uint32) Params {
	return Params{
		Width:          w,
		Height:         h,
		AgentCount:     n,
		SensorAngle:    s.AgentSensorAngle,
		SensorDistance: s.AgentSensorDistance,
		TurnRate:       s.AgentTurnRate,
		Jitter:         s.AgentJitter,
		Deposition:     s.PheromoneDepositionRate,
		Decay:          s.PheromoneDecayRate,
		Diffusion:      s.PheromoneDiffusionRate,
		Seed:           seed,
		Brightness:     s.Brightness,
	}
}
