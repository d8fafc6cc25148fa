package host

import (
	"context"
	"image"
	"image/png"
	"os"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/sim"
)

type command func(ctx context.Context, args []byte) (any, error)

// withArgs decodes the arguments into T before calling fn.
func withArgs[T any](fn func(ctx context.Context, a T) (any, error)) command {
	return func(ctx context.Context, raw []byte) (any, error) {
		var a T
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return fn(ctx, a)
	}
}

// run adapts an operation with no arguments and no result.
func run(fn func() error) command {
	return func(context.Context, []byte) (any, error) { return nil, fn() }
}

// get adapts an operation with no arguments.
func get[T any](fn func() (T, error)) command {
	return func(context.Context, []byte) (any, error) { return fn() }
}

type nameArgs struct {
	Name string `json:"name"`
}

type settingArgs struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type pointArgs struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Button int     `json:"button"`
}

type zoomArgs struct {
	Delta float32 `json:"delta"`
	CX    float32 `json:"cx"`
	CY    float32 `json:"cy"`
}

func (s *Server) table() map[string]command {
	m := s.m
	return map[string]command{
		"start_simulation": withArgs(func(_ context.Context, a struct {
			Kind string `json:"kind"`
		}) (any, error) {
			if a.Kind == "" {
				a.Kind = sim.Default()
			}
			return nil, m.Start(a.Kind)
		}),
		"stop_simulation": run(func() error {
			m.Stop()
			return nil
		}),
		"is_running": get(func() (bool, error) { return m.IsRunning(), nil }),
		"list_simulations": get(func() ([]string, error) {
			return m.Kinds(), nil
		}),

		"update_setting": withArgs(func(_ context.Context, a settingArgs) (any, error) {
			return nil, m.UpdateSetting(a.Name, a.Value)
		}),
		"update_state": withArgs(func(_ context.Context, a settingArgs) (any, error) {
			return nil, m.UpdateState(a.Name, a.Value)
		}),
		"apply_settings": withArgs(func(_ context.Context, a struct {
			Settings sim.ValueTree `json:"settings"`
		}) (any, error) {
			if a.Settings == nil {
				return nil, simviz.Serialization("missing settings", nil)
			}
			return nil, m.ApplySettings(a.Settings)
		}),
		"get_settings":       get(m.Settings),
		"get_state":          get(m.State),
		"randomize_settings": run(m.RandomizeSettings),
		"reset_simulation":   run(m.ResetSimulation),
		"toggle_gui":         get(m.ToggleGUI),

		"apply_preset": withArgs(func(_ context.Context, a nameArgs) (any, error) {
			return nil, m.ApplyPreset(a.Name)
		}),
		"save_preset": withArgs(func(_ context.Context, a struct {
			Name     string        `json:"name"`
			Settings sim.ValueTree `json:"settings"`
		}) (any, error) {
			return nil, m.SavePreset(a.Name, a.Settings)
		}),
		"delete_preset": withArgs(func(_ context.Context, a nameArgs) (any, error) {
			return nil, m.DeletePreset(a.Name)
		}),
		"list_presets": get(m.ListPresets),

		"apply_color_scheme": withArgs(func(_ context.Context, a nameArgs) (any, error) {
			return nil, m.ApplyColorScheme(a.Name)
		}),
		"reverse_color_scheme": run(m.ReverseColorScheme),
		"list_color_schemes": get(func() ([]string, error) {
			return m.ListColorSchemes(), nil
		}),

		"pan": withArgs(func(_ context.Context, a struct {
			DX float32 `json:"dx"`
			DY float32 `json:"dy"`
		}) (any, error) {
			return nil, m.Pan(a.DX, a.DY)
		}),
		"zoom": withArgs(func(_ context.Context, a zoomArgs) (any, error) {
			return nil, m.Zoom(a.Delta)
		}),
		"zoom_to_cursor": withArgs(func(_ context.Context, a zoomArgs) (any, error) {
			return nil, m.ZoomToCursor(a.Delta, a.CX, a.CY)
		}),
		"reset_camera":     run(m.ResetCamera),
		"get_camera_state": get(m.CameraState),

		"mouse_down": withArgs(func(_ context.Context, a pointArgs) (any, error) {
			return nil, m.HandleMouse(a.X, a.Y, a.Button)
		}),
		"mouse_up": withArgs(func(_ context.Context, a pointArgs) (any, error) {
			return nil, m.HandleMouseRelease(a.Button)
		}),
		"cursor": withArgs(func(_ context.Context, a pointArgs) (any, error) {
			return nil, m.HandleCursor(a.X, a.Y)
		}),

		"set_fps_limit": withArgs(func(_ context.Context, a struct {
			Enabled bool   `json:"enabled"`
			FPS     uint32 `json:"fps"`
		}) (any, error) {
			m.SetFPSLimit(a.Enabled, a.FPS)
			return nil, nil
		}),
		"start_render_loop": run(func() error { return m.StartRenderLoop(s) }),
		"stop_render_loop": run(func() error {
			m.StopRenderLoop()
			return nil
		}),
		"resize": withArgs(func(_ context.Context, a struct {
			Width  uint32 `json:"width"`
			Height uint32 `json:"height"`
		}) (any, error) {
			return nil, m.Resize(a.Width, a.Height)
		}),
		"snapshot": withArgs(func(ctx context.Context, a struct {
			Path string `json:"path"`
		}) (any, error) {
			if a.Path == "" {
				return nil, simviz.InvalidSetting("path", "snapshot needs a file path")
			}
			img, err := m.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			if err := WritePNG(a.Path, img.RGBA()); err != nil {
				return nil, err
			}
			return map[string]any{"path": a.Path, "width": img.Width, "height": img.Height}, nil
		}),
	}
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
