package playback

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsNamespace prefixes every metric.
const metricsNamespace = "graylogic_sequencer"

// cycleBuckets span short stings to long attract loops, in seconds.
var cycleBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800}

// Metrics keeps Prometheus metrics for sequence playback. It is a Sink.
type Metrics struct {
	cycles   *prometheus.CounterVec
	skips    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	running  prometheus.Gauge
	loaded   prometheus.Gauge
}

// NewMetrics creates the playback metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cycles_total",
				Help:      "Completed play cycles by sequence and final status.",
			},
			[]string{"sequence", "status"},
		),
		skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "group_skips_total",
				Help:      "Groups fast-forwarded by Skip.",
			},
			[]string{"sequence"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of play cycles.",
				Buckets:   cycleBuckets,
			},
			[]string{"sequence"},
		),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "running_cycles",
			Help:      "Play cycles currently in progress.",
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "loaded_sequences",
			Help:      "Sequences loaded in the runner.",
		}),
	}

	for _, c := range []prometheus.Collector{m.cycles, m.skips, m.duration, m.running, m.loaded} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering playback metrics: %w", err)
		}
	}
	return m, nil
}

// Handle updates the metrics for e. The running gauge follows the count
// carried by each event, so a dropped event never leaves it skewed.
func (m *Metrics) Handle(e Event) {
	m.running.Set(float64(e.Running))
	switch e.Type {
	case EventLoaded, EventUnloaded:
		m.loaded.Set(float64(e.Loaded))
	case EventSkipped:
		m.skips.WithLabelValues(e.SequenceID).Inc()
	case EventFinished, EventCancelled:
		m.cycles.WithLabelValues(e.SequenceID, e.Status).Inc()
		m.duration.WithLabelValues(e.SequenceID).Observe(float64(e.DurationMS) / 1000)
	}
}
