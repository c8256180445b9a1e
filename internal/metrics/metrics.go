// Package metrics exposes the Prometheus collectors of the ingestion pipeline.
//
// All recording methods are safe on a nil *Registry, so services can be
// built without metrics in tests and tools.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row outcomes.
const (
	RowCreated = "created"
	RowFailed  = "failed"
	RowSkipped = "skipped"
)

// Registry holds all Prometheus metrics for the back office.
type Registry struct {
	registry *prometheus.Registry

	ImportsTotal     *prometheus.CounterVec
	ImportRows       *prometheus.CounterVec
	ImportRowErrors  *prometheus.CounterVec
	ImportDuration   prometheus.Histogram
	PreflightTotal   *prometheus.CounterVec
	WorkerQueueDepth prometheus.Gauge
	HTTPDuration     *prometheus.HistogramVec
}

// New creates a registry with every collector registered, plus the Go
// runtime and process collectors.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		ImportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_imports_total",
				Help: "Finished portfolio imports by final status",
			},
			[]string{"status"},
		),

		ImportRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_import_rows_total",
				Help: "Processed import rows by outcome",
			},
			[]string{"outcome"},
		),

		ImportRowErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_import_row_errors_total",
				Help: "Row-level import errors by error type",
			},
			[]string{"error_type"},
		),

		ImportDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backoffice_import_duration_seconds",
				Help:    "Wall time of a portfolio import run",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),

		PreflightTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_preflight_total",
				Help: "Preflight checks by readiness",
			},
			[]string{"ready"},
		),

		WorkerQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backoffice_worker_queue_depth",
				Help: "Import jobs waiting for a worker",
			},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.ImportsTotal,
		r.ImportRows,
		r.ImportRowErrors,
		r.ImportDuration,
		r.PreflightTotal,
		r.WorkerQueueDepth,
		r.HTTPDuration,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ImportFinished records the final status and duration of an import.
func (r *Registry) ImportFinished(status string, started time.Time) {
	if r == nil {
		return
	}
	r.ImportsTotal.WithLabelValues(status).Inc()
	r.ImportDuration.Observe(time.Since(started).Seconds())
}

// RowProcessed counts one row outcome.
func (r *Registry) RowProcessed(outcome string) {
	if r == nil {
		return
	}
	r.ImportRows.WithLabelValues(outcome).Inc()
}

// RowsProcessed counts n rows with the same outcome.
func (r *Registry) RowsProcessed(outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.ImportRows.WithLabelValues(outcome).Add(float64(n))
}

// RowError counts a row-level error.
func (r *Registry) RowError(errorType string) {
	if r == nil {
		return
	}
	r.ImportRowErrors.WithLabelValues(errorType).Inc()
}

// Preflight counts a preflight check.
func (r *Registry) Preflight(ready bool) {
	if r == nil {
		return
	}
	r.PreflightTotal.WithLabelValues(strconv.FormatBool(ready)).Inc()
}

// SetQueueDepth reports the number of queued jobs.
func (r *Registry) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.WorkerQueueDepth.Set(float64(n))
}

// ObserveHTTP records one request.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
