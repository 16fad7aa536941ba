// Package metrics exposes Prometheus instrumentation for fusion runs,
// cache lookups and analyzer calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "neurofusion"

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	fusionRuns      *prometheus.CounterVec
	fusionErrors    *prometheus.CounterVec
	fusionDuration  *prometheus.HistogramVec
	probability     prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	analyzerCalls   *prometheus.CounterVec
	analyzerLatency *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry. Process and Go
// runtime collectors are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fusionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_runs_total",
			Help:      "Completed fusion runs by strategy, prediction and risk band.",
		}, []string{"strategy", "prediction", "risk_band"}),
		fusionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_errors_total",
			Help:      "Rejected fusion runs by error code.",
		}, []string{"code"}),
		fusionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fusion_duration_seconds",
			Help:      "Wall time spent in the fusion engine.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		}, []string{"strategy"}),
		probability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fusion_probability_positive",
			Help:      "Distribution of fused positive probabilities.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Outcome cache lookups by result.",
		}, []string{"result"}),
		analyzerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzer_requests_total",
			Help:      "Modality analyzer requests by modality and status.",
		}, []string{"modality", "status"}),
		analyzerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyzer_request_duration_seconds",
			Help:      "Modality analyzer request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"modality"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Assessment events by publish status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fusionRuns,
		m.fusionErrors,
		m.fusionDuration,
		m.probability,
		m.cacheLookups,
		m.analyzerCalls,
		m.analyzerLatency,
		m.eventsPublished,
	)
	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveFusion records a successful fusion run.
func (m *Metrics) ObserveFusion(strategy, prediction, riskBand string, probability float64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fusionRuns.WithLabelValues(strategy, prediction, riskBand).Inc()
	m.fusionDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	m.probability.Observe(probability)
}

// FusionError records a rejected fusion run.
func (m *Metrics) FusionError(code string) {
	if m == nil {
		return
	}
	m.fusionErrors.WithLabelValues(code).Inc()
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// AnalyzerCall records one analyzer request.
func (m *Metrics) AnalyzerCall(modality string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.analyzerCalls.WithLabelValues(modality, status).Inc()
	m.analyzerLatency.WithLabelValues(modality).Observe(elapsed.Seconds())
}

// EventPublished records the outcome of publishing an assessment event.
func (m *Metrics) EventPublished(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.eventsPublished.WithLabelValues(status).Inc()
}
