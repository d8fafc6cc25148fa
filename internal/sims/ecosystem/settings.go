package ecosystem

import "github.com/gogpu/simviz/internal/sim"

// Plant growth patterns in enum order.
const (
	PlantUniform = iota
	PlantPatches
	PlantStripes
)

// Settings are the population, energy and field parameters.
type Settings struct {
	HerbivoreCount uint32 `mapstructure:"herbivore_count" range:"0,500000" rand:"triangular:500,20000"`
	CarnivoreCount uint32 `mapstructure:"carnivore_count" range:"0,100000" rand:"triangular:20,2000"`

	HerbivoreSpeed float32 `mapstructure:"herbivore_speed" range:"0,200" rand:"uniform:5,40"`
	CarnivoreSpeed float32 `mapstructure:"carnivore_speed" range:"0,200" rand:"uniform:8,60"`
	TurnRate       float32 `mapstructure:"turn_rate" range:"0,40" rand:"uniform:2,12"`
	SensorAngle    float32 `mapstructure:"sensor_angle" range:"0,3.1416" rand:"uniform:0.2,1.2"`
	SensorDistance float32 `mapstructure:"sensor_distance" range:"1,64" rand:"uniform:2,16"`

	PlantGrowth    float32 `mapstructure:"plant_growth" range:"0,5" rand:"uniform:0.02,0.5"`
	PlantPattern   string  `mapstructure:"plant_pattern" enum:"Uniform|Patches|Stripes" rand:"uniform"`
	PatternScale   float32 `mapstructure:"pattern_scale" range:"0.001,0.5" rand:"uniform:0.005,0.05"`
	BiteRate       float32 `mapstructure:"bite_rate" range:"0,20" rand:"uniform:0.5,5"`
	PlantEnergy    float32 `mapstructure:"plant_energy" range:"0,10" rand:"uniform:0.3,2"`
	PreyEnergy     float32 `mapstructure:"prey_energy" range:"0,10" rand:"uniform:0.3,2"`
	HerbivoreCost  float32 `mapstructure:"herbivore_metabolism" range:"0,5" rand:"uniform:0.05,0.4"`
	CarnivoreCost  float32 `mapstructure:"carnivore_metabolism" range:"0,5" rand:"uniform:0.02,0.3"`
	MaxEnergy      float32 `mapstructure:"max_energy" range:"0.1,20"`
	InitialEnergy  float32 `mapstructure:"initial_energy" range:"0.01,20"`
	Lifespan       float32 `mapstructure:"lifespan" range:"1,1000" rand:"uniform:20,120"`
	RespawnDelay   float32 `mapstructure:"respawn_delay" range:"0,60" rand:"uniform:0.5,8"`
	ScentDeposit   float32 `mapstructure:"scent_deposit" range:"0,20" rand:"uniform:0.2,3"`
	ScentDecay     float32 `mapstructure:"scent_decay" range:"0,30" rand:"uniform:0.3,4"`
	ScentDiffusion float32 `mapstructure:"scent_diffusion" range:"0,1" rand:"uniform:0.1,0.9"`

	CellSize   uint32  `mapstructure:"cell_size" range:"1,16"`
	ShowScent  bool    `mapstructure:"show_scent"`
	Brightness float32 `mapstructure:"brightness" range:"0.05,20"`
}

// DefaultSettings returns a balanced grazing and hunting population.
func DefaultSettings() Settings {
	return Settings{
		HerbivoreCount: 6000,
		CarnivoreCount: 300,
		HerbivoreSpeed: 12,
		CarnivoreSpeed: 18,
		TurnRate:       6,
		SensorAngle:    0.6,
		SensorDistance: 5,
		PlantGrowth:    0.15,
		PlantPattern:   "Patches",
		PatternScale:   0.02,
		BiteRate:       2,
		PlantEnergy:    1,
		PreyEnergy:     1,
		HerbivoreCost:  0.15,
		CarnivoreCost:  0.08,
		MaxEnergy:      2,
		InitialEnergy:  1,
		Lifespan:       60,
		RespawnDelay:   2,
		ScentDeposit:   1,
		ScentDecay:     1,
		ScentDiffusion: 0.5,
		CellSize:       4,
		ShowScent:      true,
		Brightness:     1,
	}
}

func defaults() sim.ValueTree { return sim.EncodeSettings(DefaultSettings()) }

// Agent is one animal in cell space. Herbivores occupy the first slots of
// the buffer and carnivores the rest. Timer is the age of a living agent
// and the respawn countdown of a dead one. The layout matches Agent in
// shaders/ecosystem.wgsl.
type Agent struct {
	X, Y    float32
	Heading float32
	Energy  float32
	Alive   uint32
	Timer   float32
	Births  uint32
	_       uint32
}

// AgentSize is the WGSL size of Agent.
const AgentSize = 32

// Counters are the population totals the shader accumulates each frame.
type Counters struct {
	Herbivores uint32
	Carnivores uint32
	Plants     uint32
	Kills      uint32
}

// CountersSize is the WGSL size of Counters.
const CountersSize = 16

// PlantFixed is the fixed-point scale of Counters.Plants.
const PlantFixed = 256

// Params is the uniform shared by every stage. Its layout matches Params
// in shaders/ecosystem.wgsl.
type Params struct {
	Width      uint32
	Height     uint32
	Herbivores uint32
	Carnivores uint32

	Frame   uint32
	Seed    uint32
	Dt      float32
	Pattern uint32

	HerbivoreSpeed float32
	CarnivoreSpeed float32
	TurnRate       float32
	SensorAngle    float32

	SensorDistance float32
	PlantGrowth    float32
	PatternScale   float32
	BiteRate       float32

	PlantEnergy   float32
	PreyEnergy    float32
	HerbivoreCost float32
	CarnivoreCost float32

	MaxEnergy     float32
	InitialEnergy float32
	Lifespan      float32
	RespawnDelay  float32

	ScentDeposit   float32
	ScentDecay     float32
	ScentDiffusion float32
	Brightness     float32

	CursorX        float32
	CursorY        float32
	CursorSize     float32
	CursorStrength float32

	Mode      uint32
	ShowScent uint32
	_         [2]uint32
}

// ParamsSize is the WGSL size of Params.
const ParamsSize = 144

func (s *Settings) params(w, h uint32, seed uint32) Params {
	show := uint32(0)
	if s.ShowScent {
		show = 1
	}
	return Params{
		Width:          w,
		Height:         h,
		Herbivores:     s.HerbivoreCount,
		Carnivores:     s.CarnivoreCount,
		Seed:           seed,
		Pattern:        sim.EnumIndex(s, "plant_pattern", s.PlantPattern),
		HerbivoreSpeed: s.HerbivoreSpeed,
		CarnivoreSpeed: s.CarnivoreSpeed,
		TurnRate:       s.TurnRate,
		SensorAngle:    s.SensorAngle,
		SensorDistance: s.SensorDistance,
		PlantGrowth:    s.PlantGrowth,
		PatternScale:   s.PatternScale,
		BiteRate:       s.BiteRate,
		PlantEnergy:    s.PlantEnergy,
		PreyEnergy:     s.PreyEnergy,
		HerbivoreCost:  s.HerbivoreCost,
		CarnivoreCost:  s.CarnivoreCost,
		MaxEnergy:      s.MaxEnergy,
		InitialEnergy:  min(s.InitialEnergy, s.MaxEnergy),
		Lifespan:       s.Lifespan,
		RespawnDelay:   s.RespawnDelay,
		ScentDeposit:   s.ScentDeposit,
		ScentDecay:     s.ScentDecay,
		ScentDiffusion: s.ScentDiffusion,
		Brightness:     s.Brightness,
		ShowScent:      show,
	}
}
