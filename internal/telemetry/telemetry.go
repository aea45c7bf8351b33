// Package telemetry owns the Prometheus registry of the value stream service.
//
// All recording methods are safe on a nil *Registry, so components can be
// built without telemetry in tests and in the CLI.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service metrics on a private Prometheus registry
type Registry struct {
	RecalculationsTotal   *prometheus.CounterVec
	RecalculationDuration prometheus.Histogram
	Maps                  prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{registry: reg}
	r.initEngineMetrics()
	r.initHTTPMetrics()
	return r
}

func (r *Registry) initEngineMetrics() {
	r.RecalculationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuestream_recalculations_total",
			Help: "Total number of metric recalculations",
		},
		[]string{"operation"}, // create, update, add_process, ...
	)

	r.RecalculationDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "valuestream_recalculation_duration_seconds",
			Help:    "Duration of metric recalculations in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		},
	)

	r.Maps = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "valuestream_maps",
			Help: "Number of stored value stream maps",
		},
	)
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuestream_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "valuestream_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// RecordRecalculation records one metrics recomputation
func (r *Registry) RecordRecalculation(operation string, duration time.Duration) {
	if r == nil {
		return
	}
	r.RecalculationsTotal.WithLabelValues(operation).Inc()
	r.RecalculationDuration.Observe(duration.Seconds())
}

// SetMapCount records the number of stored maps
func (r *Registry) SetMapCount(n int) {
	if r == nil {
		return
	}
	r.Maps.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
