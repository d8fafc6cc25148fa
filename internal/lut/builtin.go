package lut

// Anchor stops for the built-in schemes. The matplotlib maps use nine
// samples of the published tables, which interpolate to within a few
// levels of the originals.
var builtinStops = map[string][]string{
	"MATPLOTLIB_viridis": {
		"#440154", "#472d7b", "#3b528b", "#2c728e", "#21918c",
		"#28ae80", "#5ec962", "#addc30", "#fde725",
	},
	"MATPLOTLIB_magma": {
		"#000004", "#1c1044", "#4f127b", "#812581", "#b5367a",
		"#e55064", "#fb8761", "#fec287", "#fcfdbf",
	},
	"MATPLOTLIB_inferno": {
		"#000004", "#1f0c48", "#550f6d", "#88226a", "#ba3655",
		"#e35933", "#f98e09", "#f8c932", "#fcffa4",
	},
	"MATPLOTLIB_plasma": {
		"#0d0887", "#4c02a1", "#7e03a8", "#a92395", "#cc4778",
		"#e56b5d", "#f89540", "#fdc328", "#f0f921",
	},
	"MATPLOTLIB_cividis": {
		"#00224e", "#123570", "#3b496c", "#575d6d", "#707173",
		"#8a8779", "#a69d75", "#c4b56c", "#fee838",
	},
	"ZELDA_grayscale": {"#000000", "#ffffff"},
	"THERMAL_ironbow": {
		"#000000", "#20008c", "#8b00a8", "#d42a6a", "#f56d1a",
		"#fbb21f", "#fff5c0",
	},
	"OCEAN_deep": {
		"#000814", "#001d3d", "#003566", "#0a6e8a", "#3fb8af", "#dff7f3",
	},
}

// DefaultName is the scheme selected when nothing else is configured.
const DefaultName = "MATPLOTLIB_viridis"

func builtins() []*ColorScheme {
	out := make([]*ColorScheme, 0, len(builtinStops)+1)
	for name, hexes := range builtinStops {
		stops := make([]RGB, len(hexes))
		for i, h := range hexes {
			stops[i] = Hex(h)
		}
		out = append(out, FromStops(name, stops...))
	}
	return append(out, rainbow("SPECTRAL_rainbow"))
}

// rainbow sweeps hue from blue to red at constant lightness.
func rainbow(name string) *ColorScheme {
	s := &ColorScheme{Name: name}
	for i := range Size {
		t := float64(i) / (Size - 1)
		s.Red[i], s.Green[i], s.Blue[i] = HSL(240*(1-t), 1, 0.5).Bytes()
	}
	return s
}
