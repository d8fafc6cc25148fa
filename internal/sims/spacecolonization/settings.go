package spacecolonization

import "github.com/gogpu/simviz/internal/sim"

// Settings are the growth parameters.
type Settings struct {
	AttractorCount     uint32  `mapstructure:"attractor_count" range:"10,20000" rand:"triangular:300,4000"`
	AttractorPattern   string  `mapstructure:"attractor_pattern" enum:"Random|Clustered|Grid|Circular|Boundary|Leaf" rand:"uniform"`
	RandomSeed         uint32  `mapstructure:"random_seed"`
	MaxNodes           uint32  `mapstructure:"max_nodes" range:"100,100000"`
	AttractionDistance float32 `mapstructure:"attraction_distance" range:"0.02,1" rand:"uniform:0.08,0.4"`
	KillDistance       float32 `mapstructure:"kill_distance" range:"0.005,0.2" rand:"uniform:0.01,0.04"`
	SegmentLength      float32 `mapstructure:"segment_length" range:"0.002,0.05" rand:"uniform:0.005,0.02"`
	Venation           string  `mapstructure:"venation" enum:"Open|Closed" rand:"uniform"`
	CurveTension       float32 `mapstructure:"curve_tension" range:"0,1" rand:"uniform:0.2,0.8"`
	MinThickness       float32 `mapstructure:"min_thickness" range:"0.5,10"`
	MaxThickness       float32 `mapstructure:"max_thickness" range:"1,40" rand:"uniform:3,14"`
	GrowthSteps        uint32  `mapstructure:"growth_steps_per_frame" range:"1,16"`
	ColorScale         float32 `mapstructure:"color_scale" range:"0.05,20"`
}

// DefaultSettings returns an open-venation tree in a random cloud.
func DefaultSettings() Settings {
	return Settings{
		AttractorCount:     1500,
		AttractorPattern:   "Random",
		RandomSeed:         1,
		MaxNodes:           20000,
		AttractionDistance: 0.2,
		KillDistance:       0.02,
		SegmentLength:      0.01,
		Venation:           "Open",
		CurveTension:       0.5,
		MinThickness:       1,
		MaxThickness:       8,
		GrowthSteps:        1,
		ColorScale:         1,
	}
}

func defaults() sim.ValueTree { return sim.EncodeSettings(DefaultSettings()) }

// Params is the uniform shared by every stage and the segment renderer,
// matching Params in shaders/space_colonization.wgsl.
type Params struct {
	AttractorCount     uint32
	MaxNodes           uint32
	NodeBound          uint32
	Pattern            uint32
	Seed               uint32
	Venation           uint32
	AttractionDistance float32
	KillDistance       float32
	SegmentLength      float32
	CurveTension       float32
	MinThickness       float32
	MaxThickness       float32
	Height             float32
	ColorScale         float32
	CursorX            float32
	CursorY            float32
	CursorSize         float32
	Mode               uint32
	_                  [2]uint32
}

// ParamsSize is the WGSL size of Params.
const ParamsSize = 80

func (s *Settings) params(bound uint32, height float32) Params {
	return Params{
		AttractorCount:     s.AttractorCount,
		MaxNodes:           s.MaxNodes,
		NodeBound:          bound,
		Pattern:            sim.EnumIndex(s, "attractor_pattern", s.AttractorPattern),
		Seed:               s.RandomSeed,
		Venation:           sim.EnumIndex(s, "venation", s.Venation),
		AttractionDistance: s.AttractionDistance,
		KillDistance:       s.KillDistance,
		SegmentLength:      s.SegmentLength,
		CurveTension:       s.CurveTension,
		MinThickness:       s.MinThickness,
		MaxThickness:       max(s.MaxThickness, s.MinThickness),
		Height:             height,
		ColorScale:         s.ColorScale,
	}
}

// GPUAttractor matches Attractor in the compute shader.
type GPUAttractor struct {
	X, Y   float32
	Active uint32
	_      uint32
}

// Sizes of the storage elements in shaders/space_colonization.wgsl.
const (
	AttractorSize = 16
	NodeSize      = 64
	CountersSize  = 32
)

// Counters mirrors the shader's counter block.
type Counters struct {
	NodeCount        uint32
	ActiveAttractors uint32
	Snapshot         uint32
	Grown            uint32
	Stalled          uint32
	_                [3]uint32
}
