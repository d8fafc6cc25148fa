package grayscott

import (
	"github.com/gogpu/simviz/internal/mask"
	"github.com/gogpu/simviz/internal/sim"
)

// Mask sources.
const (
	SourceNone   = "None"
	SourceImage  = "Image"
	SourceWebcam = "Webcam"
)

// Settings are the user-facing parameters of the reaction.
type Settings struct {
	FeedRate       float32 `mapstructure:"feed_rate" range:"0,0.12" rand:"uniform:0.01,0.08"`
	KillRate       float32 `mapstructure:"kill_rate" range:"0,0.1" rand:"uniform:0.045,0.07"`
	DiffusionRateU float32 `mapstructure:"diffusion_rate_u" range:"0,0.25" rand:"triangular:0.15,0.24"`
	DiffusionRateV float32 `mapstructure:"diffusion_rate_v" range:"0,0.25" rand:"triangular:0.06,0.13"`
	Timestep       float32 `mapstructure:"timestep" range:"0.05,1.2"`

	NutrientPattern         string `mapstructure:"nutrient_pattern" enum:"Uniform|Checkerboard|DiagonalGradient|RadialGradient|VerticalStripes|HorizontalStripes|EnhancedNoise|WaveFunction|CosineGrid" rand:"uniform"`
	NutrientPatternReversed bool   `mapstructure:"nutrient_pattern_reversed" rand:"uniform"`

	MaskSource           string  `mapstructure:"mask_source" enum:"None|Image|Webcam"`
	MaskImagePath        string  `mapstructure:"mask_image_path"`
	MaskFitMode          string  `mapstructure:"mask_fit_mode" enum:"Stretch|Contain|Cover|Center"`
	MaskStrength         float32 `mapstructure:"mask_strength" range:"0,1"`
	MaskInvert           bool    `mapstructure:"mask_invert"`
	MaskMirrorHorizontal bool    `mapstructure:"mask_mirror_horizontal"`
	MaskMirrorVertical   bool    `mapstructure:"mask_mirror_vertical"`

	MaxFramesPerTick uint32 `mapstructure:"max_frames_per_tick" range:"1,8"`
}

// DefaultSettings is the classic Pearson configuration.
func DefaultSettings() Settings {
	return Settings{
		FeedRate:         0.055,
		KillRate:         0.062,
		DiffusionRateU:   0.2097,
		DiffusionRateV:   0.105,
		Timestep:         1,
		NutrientPattern:  "Uniform",
		MaskSource:       SourceNone,
		MaskFitMode:      mask.Contain.String(),
		MaskStrength:     1,
		MaxFramesPerTick: 2,
	}
}

func defaults() sim.ValueTree { return sim.EncodeSettings(DefaultSettings()) }

// Params is the compute uniform. Its layout matches Params in
// shaders/gray_scott.wgsl.
type Params struct {
	Feed   float32
	Kill   float32
	DiffU  float32
	DiffV  float32
	Dt     float32
	Width  uint32
	Height uint32

	Pattern         uint32
	PatternReversed uint32
	MaskEnabled     uint32
	MaskStrength    float32
	MaskMirror      uint32
	MaskInvert      uint32

	CursorX        float32
	CursorY        float32
	CursorSize     float32
	CursorStrength float32
	Mode           uint32
	Seed           uint32
	_              uint32
}

// ParamsSize is the WGSL size of Params.
const ParamsSize = 80

// Mirror bits of Params.MaskMirror.
const (
	MirrorHorizontal uint32 = 1 << iota
	MirrorVertical
)

// params derives the uniform from settings; cursor and size fields are
// filled by the caller.
func (s *Settings) params(w, h uint32, seed uint32) Params {
	p := Params{
		Feed:            s.FeedRate,
		Kill:            s.KillRate,
		DiffU:           s.DiffusionRateU,
		DiffV:           s.DiffusionRateV,
		Dt:              s.Timestep,
		Width:           w,
		Height:          h,
		Pattern:         sim.EnumIndex(s, "nutrient_pattern", s.NutrientPattern),
		PatternReversed: b2u(s.NutrientPatternReversed),
		MaskStrength:    s.MaskStrength,
		MaskInvert:      b2u(s.MaskInvert),
		Seed:            seed,
	}
	if s.MaskMirrorHorizontal {
		p.MaskMirror |= MirrorHorizontal
	}
	if s.MaskMirrorVertical {
		p.MaskMirror |= MirrorVertical
	}
	return p
}

func (s *Settings) fitOptions() mask.Options {
	mode, _ := mask.ParseFitMode(s.MaskFitMode)
	return mask.Options{Mode: mode}
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
