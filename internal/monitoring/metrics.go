// internal/monitoring/metrics.go

// Package monitoring exposes the resolution pipeline's Prometheus metrics.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "novabypass"

// Metrics holds the pipeline's Prometheus collectors. It satisfies the
// resolver's observer contract.
type Metrics struct {
	registry *prometheus.Registry

	resolutionsTotal   *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
	aiCalls            *prometheus.CounterVec
}

// NewMetrics creates the metric set on its own registry, so multiple
// instances (and tests) never collide.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		resolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Resolution attempts by winning method and outcome",
			},
			[]string{"method", "outcome"},
		),
		resolutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_duration_seconds",
				Help:      "End-to-end resolution latency by winning method",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"result"},
		),
		aiCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_calls_total",
				Help:      "AI analysis escalations by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveResolution records one finished resolution.
func (m *Metrics) ObserveResolution(method string, success bool, elapsed time.Duration) {
	m.resolutionsTotal.WithLabelValues(method, outcomeLabel(success)).Inc()
	m.resolutionDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveCacheLookup records a cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// ObserveAICall records an AI escalation outcome.
func (m *Metrics) ObserveAICall(success bool) {
	m.aiCalls.WithLabelValues(outcomeLabel(success)).Inc()
}

// Handler serves the metric set in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
