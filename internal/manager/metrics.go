package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
)

// Metrics are the runtime counters of one manager. A nil *Metrics
// records nothing.
type Metrics struct {
	reg *prometheus.Registry

	Frames        prometheus.Counter
	FPS           prometheus.Gauge
	FrameDuration prometheus.Histogram
	Starts        *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	SkippedFrames *prometheus.CounterVec
	GPUObjects    *prometheus.GaugeVec
	GPUBytes      *prometheus.GaugeVec
}

// NewMetrics registers the manager collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Frames: f.NewCounter(prometheus.CounterOpts{
			Name: "simviz_frames_total",
			Help: "Frames rendered and presented",
		}),
		FPS: f.NewGauge(prometheus.GaugeOpts{
			Name: "simviz_fps",
			Help: "Frames per second over the last reporting window",
		}),
		FrameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "simviz_frame_duration_seconds",
			Help:    "Time spent recording and presenting a frame",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		Starts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "simviz_simulation_starts_total",
			Help: "Simulations started, by kind",
		}, []string{"kind"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "simviz_errors_total",
			Help: "Errors returned by manager operations and the render loop, by error kind",
		}, []string{"kind"}),
		SkippedFrames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "simviz_skipped_frames_total",
			Help: "Frames dropped by the render loop, by error kind",
		}, []string{"kind"}),
		GPUObjects: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "simviz_gpu_objects",
			Help: "Live GPU objects created by simulations",
		}, []string{"type"}),
		GPUBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "simviz_gpu_bytes",
			Help: "Bytes held by live GPU buffers and textures",
		}, []string{"type"}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// WriteTextfile dumps the current values in the node exporter textfile
// format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

func (m *Metrics) started(kind string) {
	if m == nil {
		return
	}
	m.Starts.WithLabelValues(kind).Inc()
}

func (m *Metrics) failed(err error) {
	if m == nil || err == nil {
		return
	}
	m.Errors.WithLabelValues(simviz.KindOf(err).String()).Inc()
}

func (m *Metrics) skipped(err error) {
	if m == nil {
		return
	}
	m.SkippedFrames.WithLabelValues(simviz.KindOf(err).String()).Inc()
}

func (m *Metrics) frame(seconds float64) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	m.FrameDuration.Observe(seconds)
}

func (m *Metrics) fps(v uint32) {
	if m == nil {
		return
	}
	m.FPS.Set(float64(v))
}

func (m *Metrics) memory(s gpu.MemoryStats) {
	if m == nil {
		return
	}
	for k, n := range s.Live {
		m.GPUObjects.WithLabelValues(gpu.ResourceKind(k).String()).Set(float64(n))
	}
	m.GPUBytes.WithLabelValues("buffer").Set(float64(s.BufferBytes))
	m.GPUBytes.WithLabelValues("texture").Set(float64(s.TextureBytes))
}
