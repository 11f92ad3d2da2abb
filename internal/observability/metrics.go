package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the HTTP surface and the
// catalog pipeline.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	importRowsTotal *prometheus.CounterVec
	matchesTotal    *prometheus.CounterVec
	assetJobsTotal  *prometheus.CounterVec
	importDuration  prometheus.Histogram
}

// NewMetrics initialises the registry and base metric vectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "praxis_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "praxis_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "praxis_import_rows_total",
		Help: "Catalog import rows by outcome.",
	}, []string{"outcome"})
	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "praxis_catalog_matches_total",
		Help: "Product matches by method.",
	}, []string{"method"})
	assetJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "praxis_asset_jobs_total",
		Help: "Asset download jobs by result.",
	}, []string{"result"})
	importDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "praxis_import_duration_seconds",
		Help:    "Duration of catalog import runs.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})
	registry.MustRegister(requests, duration, importRows, matches, assetJobs, importDur)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		importRowsTotal: importRows,
		matchesTotal:    matches,
		assetJobsTotal:  assetJobs,
		importDuration:  importDur,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveImportRow counts one processed import row by outcome
// (success, failed, review).
func (m *Metrics) ObserveImportRow(outcome string) {
	if m == nil {
		return
	}
	m.importRowsTotal.WithLabelValues(outcome).Inc()
}

// ObserveMatch counts one match decision by method.
func (m *Metrics) ObserveMatch(method string) {
	if m == nil {
		return
	}
	m.matchesTotal.WithLabelValues(method).Inc()
}

// ObserveAssetJobs adds processed asset job counts by result.
func (m *Metrics) ObserveAssetJobs(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.assetJobsTotal.WithLabelValues(result).Add(float64(n))
}

// ObserveImportDuration records the wall time of one import run.
func (m *Metrics) ObserveImportDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.importDuration.Observe(d.Seconds())
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
