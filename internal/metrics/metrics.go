package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Workflow metrics
	StageTransitions *prometheus.CounterVec
	PaymentsRecorded prometheus.Counter

	// Alert metrics
	AlertsCreated     *prometheus.CounterVec
	AlertsDismissed   *prometheus.CounterVec
	AlertScanDuration prometheus.Histogram
	AlertScanFailures prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a Metrics instance with every metric registered on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		StageTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_stage_transitions_total",
				Help: "Total number of project stage transitions",
			},
			[]string{"from", "to", "system"},
		),
		PaymentsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "crm_payments_recorded_total",
			Help: "Total number of payment transactions recorded",
		}),

		AlertsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_alerts_created_total",
				Help: "Total number of delay alerts raised",
			},
			[]string{"type"},
		),
		AlertsDismissed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_alerts_dismissed_total",
				Help: "Total number of alerts dismissed",
			},
			[]string{"type", "source"}, // source: manual, auto
		),
		AlertScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crm_alert_scan_duration_seconds",
			Help:    "Duration of a full alert sweep",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		AlertScanFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "crm_alert_scan_failures_total",
			Help: "Total number of projects that failed evaluation during a sweep",
		}),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key"},
		),
	}
}

// Middleware records request counts and latency keyed by the chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Route pattern keeps label cardinality bounded (/projects/{id}, not /projects/42)
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := strconv.Itoa(ww.Status())
		if ww.Status() == 0 {
			status = "200"
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// RecordTransition increments the stage transition counter. Safe on a nil receiver.
func (m *Metrics) RecordTransition(from, to string, system bool) {
	if m == nil {
		return
	}
	m.StageTransitions.WithLabelValues(from, to, strconv.FormatBool(system)).Inc()
}

// RecordPayment increments the payments counter
func (m *Metrics) RecordPayment() {
	if m == nil {
		return
	}
	m.PaymentsRecorded.Inc()
}

// RecordAlertCreated increments the alerts created counter
func (m *Metrics) RecordAlertCreated(alertType string) {
	if m == nil {
		return
	}
	m.AlertsCreated.WithLabelValues(alertType).Inc()
}

// RecordAlertDismissed increments the alerts dismissed counter
func (m *Metrics) RecordAlertDismissed(alertType, source string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.AlertsDismissed.WithLabelValues(alertType, source).Add(float64(count))
}

// RecordScan observes a completed sweep
func (m *Metrics) RecordScan(duration time.Duration, failed int) {
	if m == nil {
		return
	}
	m.AlertScanDuration.Observe(duration.Seconds())
	if failed > 0 {
		m.AlertScanFailures.Add(float64(failed))
	}
}

// RecordCacheLookup increments the hit or miss counter for a cache key family
func (m *Metrics) RecordCacheLookup(key string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(key).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(key).Inc()
}
