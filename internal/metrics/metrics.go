// Package metrics provides Prometheus instrumentation for the toggld
// server.
//
// All metrics are registered in a custom [prometheus.Registry] (not the
// global default) so that only toggld metrics appear on the /metrics
// endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors used by the toggld server.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ResolutionsTotal    *prometheus.CounterVec
	TogglesTotal        *prometheus.CounterVec
	OptionWritesTotal   *prometheus.CounterVec
	RemoteRefreshTotal  *prometheus.CounterVec
	AuthFailuresTotal   prometheus.Counter
	DBPoolAcquired      prometheus.Gauge
	DBPoolIdle          prometheus.Gauge
	DBPoolTotal         prometheus.Gauge
}

// New creates and registers all toggld metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toggld_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "toggld_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		ResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toggld_feature_resolutions_total",
			Help: "Total number of feature status resolutions.",
		}, []string{"feature"}),

		TogglesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toggld_feature_toggles_total",
			Help: "Total number of persisted feature toggles.",
		}, []string{"feature"}),

		OptionWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toggld_option_writes_total",
			Help: "Total number of persisted option writes.",
		}, []string{"feature"}),

		RemoteRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toggld_remote_refresh_total",
			Help: "Total number of remote configuration refresh attempts.",
		}, []string{"status"}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toggld_auth_failures_total",
			Help: "Total number of failed authentication attempts.",
		}),

		DBPoolAcquired: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toggld_db_pool_acquired",
			Help: "Number of currently acquired database connections.",
		}),

		DBPoolIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toggld_db_pool_idle",
			Help: "Number of idle database connections in the pool.",
		}),

		DBPoolTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toggld_db_pool_total",
			Help: "Total number of database connections in the pool.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ResolutionsTotal,
		m.TogglesTotal,
		m.OptionWritesTotal,
		m.RemoteRefreshTotal,
		m.AuthFailuresTotal,
		m.DBPoolAcquired,
		m.DBPoolIdle,
		m.DBPoolTotal,
	)

	return m
}

// Handler returns an [http.Handler] that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordResolution increments the resolution counter for a feature.
func (m *Metrics) RecordResolution(feature string) {
	m.ResolutionsTotal.WithLabelValues(feature).Inc()
}

// RecordToggle increments the toggle counter for a feature.
func (m *Metrics) RecordToggle(feature string) {
	m.TogglesTotal.WithLabelValues(feature).Inc()
}

// RecordOptionWrite increments the option-write counter for a feature.
func (m *Metrics) RecordOptionWrite(feature string) {
	m.OptionWritesTotal.WithLabelValues(feature).Inc()
}

// RecordRemoteRefresh increments the remote refresh counter with the outcome.
func (m *Metrics) RecordRemoteRefresh(ok bool) {
	status := "error"
	if ok {
		status = "ok"
	}
	m.RemoteRefreshTotal.WithLabelValues(status).Inc()
}

// DBPoolStats holds connection pool statistics for metric updates.
type DBPoolStats struct {
	Acquired float64
	Idle     float64
	Total    float64
}

// SetDBPoolStats updates the DB pool gauges.
func (m *Metrics) SetDBPoolStats(stats DBPoolStats) {
	m.DBPoolAcquired.Set(stats.Acquired)
	m.DBPoolIdle.Set(stats.Idle)
	m.DBPoolTotal.Set(stats.Total)
}

// InstrumentHTTP wraps next, recording request count and latency labelled by
// method, route pattern, and response status. Requests that match no route
// are labelled "unmatched" to keep the cardinality bounded.
func (m *Metrics) InstrumentHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(recorder.status)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.written = true
	return r.ResponseWriter.Write(b)
}

// Flush lets streaming handlers behind the middleware flush their output.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
