package tilelabel

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tilelabel"

// 放弃切片的原因
const (
	SkipEmpty    = "empty"
	SkipNoShapes = "no_shapes"
)

// 单次任务的采样统计，注册在独立的registry中
type Metrics struct {
	Registry   *prometheus.Registry
	Attempts   prometheus.Counter
	Accepted   prometheus.Counter
	Skipped    *prometheus.CounterVec
	Footprints prometheus.Histogram
	TileTime   prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "attempts_total",
			Help:      "Number of tile windows drawn from the source raster.",
		}),
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tiles_accepted_total",
			Help:      "Number of tiles written with an annotation.",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tiles_skipped_total",
			Help:      "Number of sampled tiles discarded, by reason.",
		}, []string{"reason"}),
		Footprints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "footprints_per_tile",
			Help:      "Footprints fully inside an accepted tile.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		TileTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "attempt_duration_seconds",
			Help:      "Wall time of one sampling attempt.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.Registry.MustRegister(m.Attempts, m.Accepted, m.Skipped, m.Footprints, m.TileTime)
	return m
}

// 以node_exporter textfile格式写出
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
