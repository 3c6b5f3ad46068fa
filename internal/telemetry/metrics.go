// Package telemetry carries the observability scaffolding shared by every
// stage: Prometheus counters and histograms stamped with a stage label, the
// echo ops server exposing /health and /metrics, and the OTLP tracer.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters every stage shares plus a registry for
// stage-specific extras. All collectors carry a constant "stage" label set
// at install time; counters are process-wide and safe for concurrent use.
type Metrics struct {
	Consumed  prometheus.Counter
	Published prometheus.Counter
	Errors    prometheus.Counter
	Latency   prometheus.Histogram

	stage    string
	registry *prometheus.Registry
}

// NewMetrics installs the shared pipeline collectors for a stage.
func NewMetrics(stage string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	labels := prometheus.Labels{"stage": stage}

	return &Metrics{
		Consumed: factory.NewCounter(prometheus.CounterOpts{
			Name:        "cdrflow_messages_consumed_total",
			Help:        "Total number of messages consumed from the broker.",
			ConstLabels: labels,
		}),
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name:        "cdrflow_messages_published_total",
			Help:        "Total number of messages published downstream.",
			ConstLabels: labels,
		}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "cdrflow_processing_errors_total",
			Help:        "Total number of per-record processing errors.",
			ConstLabels: labels,
		}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "cdrflow_processing_latency_seconds",
			Help:        "Per-record processing latency in seconds.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		stage:    stage,
		registry: reg,
	}
}

// Counter registers an additional stage-specific counter.
func (m *Metrics) Counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"stage": m.stage},
	})
}

// CounterVec registers an additional stage-specific counter vector.
func (m *Metrics) CounterVec(name, help string, labelNames ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"stage": m.stage},
	}, labelNames)
}

// Gauge registers an additional stage-specific gauge.
func (m *Metrics) Gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"stage": m.stage},
	})
}

// Handler renders the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
