package benchmark

import (
	"time"

	"github.com/boreq/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics exposes measured durations as a histogram labeled by the
// tested system and the kind of the measurement.
type PrometheusMetrics struct {
	durations *prometheus.HistogramVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) (*PrometheusMetrics, error) {
	durations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "persistence_benchmark",
			Name:      "duration_milliseconds",
			Help:      "Duration of measured operations.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		},
		[]string{"system", "kind"},
	)

	if err := registerer.Register(durations); err != nil {
		return nil, errors.Wrap(err, "error registering the histogram")
	}

	return &PrometheusMetrics{durations: durations}, nil
}

// Observer returns an observer recording measurements of the given system.
func (m *PrometheusMetrics) Observer(system string) Observer {
	return prometheusObserver{
		durations: m.durations,
		system:    system,
	}
}

type prometheusObserver struct {
	durations *prometheus.HistogramVec
	system    string
}

func (o prometheusObserver) Observe(kind Kind, elapsed time.Duration) {
	o.durations.WithLabelValues(o.system, kind.String()).Observe(float64(elapsed) / float64(time.Millisecond))
}
