package moire

import (
	"github.com/gogpu/simviz/internal/mask"
	"github.com/gogpu/simviz/internal/sim"
)

// Image sources.
const (
	SourceNone  = "None"
	SourceImage = "Image"
)

// Generators in enum order.
const (
	GeneratorLinear uint32 = iota
	GeneratorRadial
)

// Settings describe the two gratings and the flow that smears them.
type Settings struct {
	Generator       string  `mapstructure:"generator" enum:"Linear|Radial" rand:"uniform"`
	BaseFrequency   float32 `mapstructure:"base_frequency" range:"1,200" rand:"uniform:4,40"`
	FrequencyOffset float32 `mapstructure:"frequency_offset" range:"0,0.5" rand:"uniform:0,0.15"`
	Angle           float32 `mapstructure:"angle" range:"-3.1416,3.1416" rand:"uniform"`
	AngleOffset     float32 `mapstructure:"angle_offset" range:"0,1.5708" rand:"uniform:0.01,0.3"`
	RotationSpeed   float32 `mapstructure:"rotation_speed" range:"-2,2" rand:"uniform:-0.2,0.2"`
	CenterOffset    float32 `mapstructure:"center_offset" range:"0,1" rand:"uniform:0.05,0.5"`
	AdvectStrength  float32 `mapstructure:"advect_strength" range:"0,2" rand:"uniform:0,0.5"`
	NoiseScale      float32 `mapstructure:"noise_scale" range:"0.1,20" rand:"uniform:0.5,5"`
	FlowSpeed       float32 `mapstructure:"flow_speed" range:"0,5"`
	Persistence     float32 `mapstructure:"persistence" range:"0,0.99" rand:"uniform:0.5,0.97"`
	Contrast        float32 `mapstructure:"contrast" range:"0.1,8"`

	ImageSource   string  `mapstructure:"image_source" enum:"None|Image"`
	ImagePath     string  `mapstructure:"image_path"`
	ImageFitMode  string  `mapstructure:"image_fit_mode" enum:"Stretch|Contain|Cover|Center"`
	ImageStrength float32 `mapstructure:"image_strength" range:"0,1"`
	ImageInvert   bool    `mapstructure:"image_invert"`
}

// DefaultSettings returns two slightly rotated line gratings.
func DefaultSettings() Settings {
	return Settings{
		Generator:       "Linear",
		BaseFrequency:   12,
		FrequencyOffset: 0.04,
		AngleOffset:     0.06,
		RotationSpeed:   0.05,
		CenterOffset:    0.2,
		AdvectStrength:  0.15,
		NoiseScale:      2,
		FlowSpeed:       0.3,
		Persistence:     0.85,
		Contrast:        2,
		ImageSource:     SourceNone,
		ImageFitMode:    mask.Cover.String(),
		ImageStrength:   1,
	}
}

func defaults() sim.ValueTree { return sim.EncodeSettings(DefaultSettings()) }

func (s *Settings) fitOptions() mask.Options {
	mode, _ := mask.ParseFitMode(s.ImageFitMode)
	return mask.Options{Mode: mode, Invert: s.ImageInvert}
}

// Params is the compute uniform, matching Params in shaders/moire.wgsl.
type Params struct {
	Width           uint32
	Height          uint32
	Generator       uint32
	Frame           uint32
	Time            float32
	Dt              float32
	Frequency       float32
	FrequencyOffset float32
	Angle           float32
	AngleOffset     float32
	CenterOffset    float32
	AdvectStrength  float32
	NoiseScale      float32
	FlowSpeed       float32
	Persistence     float32
	Contrast        float32
	ImageEnabled    uint32
	ImageStrength   float32
	CursorX         float32
	CursorY         float32
	CursorSize      float32
	CursorStrength  float32
	Mode            uint32
	_               uint32
}

// ParamsSize is the WGSL size of Params.
const ParamsSize = 96

// params derives the uniform; time, frame, image and cursor fields are
// filled by the caller.
func (s *Settings) params(w, h uint32) Params {
	return Params{
		Width:           w,
		Height:          h,
		Generator:       sim.EnumIndex(s, "generator", s.Generator),
		Frequency:       s.BaseFrequency,
		FrequencyOffset: s.FrequencyOffset,
		Angle:           s.Angle,
		AngleOffset:     s.AngleOffset,
		CenterOffset:    s.CenterOffset,
		AdvectStrength:  s.AdvectStrength,
		NoiseScale:      s.NoiseScale,
		FlowSpeed:       s.FlowSpeed,
		Persistence:     s.Persistence,
		Contrast:        s.Contrast,
		ImageStrength:   s.ImageStrength,
	}
}
