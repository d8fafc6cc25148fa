// Command simviz runs a GPU simulation headless. It can render a fixed
// number of frames to a PNG, step the CPU reference model of a simulation,
// or serve the JSON-lines command protocol on stdin/stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/host"
	"github.com/gogpu/simviz/internal/lut"
	"github.com/gogpu/simviz/internal/manager"
	"github.com/gogpu/simviz/internal/preset"
	"github.com/gogpu/simviz/internal/sim"
	_ "github.com/gogpu/simviz/internal/sims/all"
)

type config struct {
	kind     string
	width    int
	height   int
	fps      uint
	frames   int
	snapshot string
	presets  string
	luts     string
	scheme   string
	preset   string
	metrics  string
	mask     string
	seed     uint64
	cell     int
	serve    bool
	cpu      bool
	verbose  bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.kind, "sim", sim.Default(), "simulation kind")
	flag.IntVar(&cfg.width, "width", 800, "surface width")
	flag.IntVar(&cfg.height, "height", 600, "surface height")
	flag.UintVar(&cfg.fps, "fps", 60, "frame limit for the render loop, 0 for none")
	flag.IntVar(&cfg.frames, "frames", 120, "frames to render before the snapshot")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "write the last frame to this PNG file")
	flag.StringVar(&cfg.presets, "presets", "", "user preset directory, watched for changes")
	flag.StringVar(&cfg.luts, "luts", "", "directory of extra .lut color schemes")
	flag.StringVar(&cfg.scheme, "scheme", lut.DefaultName, "color scheme")
	flag.StringVar(&cfg.preset, "preset", "", "preset to apply after start")
	flag.StringVar(&cfg.metrics, "metrics", "", "write Prometheus metrics to this textfile")
	flag.StringVar(&cfg.mask, "mask", "", "mask image for gray_scott")
	flag.Uint64Var(&cfg.seed, "seed", 1, "random seed")
	flag.IntVar(&cfg.cell, "cell", 4, "pixels per cell of the CPU model")
	flag.BoolVar(&cfg.serve, "serve", false, "serve JSON-lines commands on stdin/stdout")
	flag.BoolVar(&cfg.cpu, "cpu", false, "step the CPU reference model instead of the GPU")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	simviz.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	simviz.Logger().Debug("simviz starting", "version", simviz.Version, "sim", cfg.kind)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	if cfg.cpu {
		err = runSoftware(cfg)
	} else {
		err = run(ctx, cfg)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "simviz:", err)
		os.Exit(1)
	}
}

func stores(cfg config) (*preset.Store, *lut.Store, error) {
	presets, err := preset.NewStore(cfg.presets)
	if err != nil {
		return nil, nil, err
	}
	schemes := lut.NewStore()
	if cfg.luts != "" {
		n, err := schemes.LoadDir(os.DirFS(cfg.luts))
		if err != nil {
			return nil, nil, err
		}
		simviz.Logger().Info("loaded color schemes", "dir", cfg.luts, "count", n)
	}
	return presets, schemes, nil
}

func run(ctx context.Context, cfg config) error {
	presets, schemes, err := stores(cfg)
	if err != nil {
		return err
	}
	c, err := gpu.New(gpu.Options{Width: uint32(cfg.width), Height: uint32(cfg.height)})
	if err != nil {
		return err
	}
	defer c.Release()
	info := c.AdapterInfo()
	simviz.Logger().Info("adapter selected", "name", info.Name, "backend", info.Backend)

	var metrics *manager.Metrics
	if cfg.metrics != "" {
		metrics = manager.NewMetrics()
		defer func() {
			if err := metrics.WriteTextfile(cfg.metrics); err != nil {
				simviz.Logger().Warn("write metrics", "err", err)
			}
		}()
	}
	m, err := manager.New(manager.Options{
		GPU:     c,
		Presets: presets,
		Schemes: schemes,
		Scheme:  cfg.scheme,
		Seed:    cfg.seed,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}
	defer m.Close()
	m.SetFPSLimit(cfg.fps > 0, uint32(cfg.fps))

	if err := m.Start(cfg.kind); err != nil {
		return err
	}
	if cfg.preset != "" {
		if err := m.ApplyPreset(cfg.preset); err != nil {
			return err
		}
	}
	if cfg.mask != "" {
		if err := m.ApplySettings(maskSettings(m, cfg.mask)); err != nil {
			return err
		}
	}

	if cfg.serve {
		return serve(ctx, cfg, m, presets)
	}
	return renderFrames(ctx, cfg, m)
}

// maskSettings returns the current settings with an image mask enabled.
func maskSettings(m *manager.Manager, path string) sim.ValueTree {
	tree, _ := m.Settings()
	tree = maps.Clone(tree)
	tree["mask_source"] = "Image"
	tree["mask_image_path"] = path
	return tree
}

func renderFrames(ctx context.Context, cfg config, m *manager.Manager) error {
	const dt = 1.0 / 60
	for i := range cfg.frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := m.Tick(dt); err != nil {
			if simviz.KindOf(err).Fatal() {
				return err
			}
			simviz.Logger().Warn("frame skipped", "frame", i, "err", err)
		}
	}
	if cfg.snapshot == "" {
		return nil
	}
	img, err := m.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := host.WritePNG(cfg.snapshot, img.RGBA()); err != nil {
		return err
	}
	simviz.Logger().Info("snapshot written", "path", cfg.snapshot, "frames", cfg.frames)
	return nil
}

func serve(ctx context.Context, cfg config, m *manager.Manager, presets *preset.Store) error {
	srv := host.NewServer(m)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(ctx, os.Stdin, os.Stdout)
		// stdin closed: shut the other goroutines down
		m.StopRenderLoop()
		if err == nil {
			err = context.Canceled
		}
		return err
	})
	if presets.Root() != "" {
		w, err := preset.NewWatcher(presets)
		if err != nil {
			return err
		}
		w.OnReload = func() { srv.Emit("presets-changed", nil) }
		g.Go(func() error { return w.Run(ctx) })
	}
	if cfg.metrics != "" {
		g.Go(func() error {
			t := time.NewTicker(10 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					if err := m.Metrics().WriteTextfile(cfg.metrics); err != nil {
						simviz.Logger().Warn("write metrics", "err", err)
					}
				}
			}
		})
	}
	return g.Wait()
}

// runSoftware steps the CPU model of the kind and writes the final image.
func runSoftware(cfg config) error {
	d, err := sim.Lookup(cfg.kind)
	if err != nil {
		return err
	}
	if d.Software == nil {
		return simviz.Errorf(simviz.KindInvalidSetting, "%s has no CPU model", cfg.kind)
	}
	presets, schemes, err := stores(cfg)
	if err != nil {
		return err
	}
	tree := d.Defaults()
	if cfg.preset != "" {
		rec, err := presets.Get(cfg.kind, cfg.preset)
		if err != nil {
			return err
		}
		maps.Copy(tree, rec.Settings)
	}
	scheme, err := schemes.Get(cfg.scheme)
	if err != nil {
		return err
	}
	cell := max(cfg.cell, 1)
	sw, err := d.Software(max(cfg.width/cell, 1), max(cfg.height/cell, 1), tree, cfg.seed)
	if err != nil {
		return err
	}
	start := time.Now()
	for range cfg.frames {
		sw.Step(1.0 / 60)
	}
	simviz.Logger().Info("software steps done", "sim", cfg.kind, "frames", cfg.frames, "elapsed", time.Since(start))
	if cfg.snapshot == "" {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, cfg.width, cfg.height))
	sw.Render(dst, scheme, false)
	return host.WritePNG(cfg.snapshot, dst)
}
