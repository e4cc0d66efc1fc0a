package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry                *prometheus.Registry
	httpRequests            *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	upstreamRequests        *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec
	staleResponses          *prometheus.CounterVec
	sweepRunsTotal          prometheus.Counter
	sweptSessionsTotal      prometheus.Counter
}

// New creates a fresh Metrics registry with HTTP, upstream and sweeper metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by console-go",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "console",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by console-go",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	upstreamRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "upstream_requests_total",
		Help:      "Count of requests sent to the upstream platform API",
	}, []string{"method", "endpoint", "status"})

	upstreamRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "console",
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of requests sent to the upstream platform API",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	staleResponses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "stale_responses_discarded_total",
		Help:      "Responses dropped because a newer request superseded them",
	}, []string{"widget"})

	sweepRunsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "sweep_runs_total",
		Help:      "Total number of idle session sweeps",
	})

	sweptSessionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "swept_sessions_total",
		Help:      "Console sessions removed for being idle",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		upstreamRequests,
		upstreamRequestDuration,
		staleResponses,
		sweepRunsTotal,
		sweptSessionsTotal,
	)

	return &Metrics{
		registry:                registry,
		httpRequests:            httpRequests,
		httpRequestDuration:     httpRequestDuration,
		upstreamRequests:        upstreamRequests,
		upstreamRequestDuration: upstreamRequestDuration,
		staleResponses:          staleResponses,
		sweepRunsTotal:          sweepRunsTotal,
		sweptSessionsTotal:      sweptSessionsTotal,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveUpstreamRequest records one call to the upstream API. A status of 0 means the
// request never produced a response.
func (m *Metrics) ObserveUpstreamRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	if status == 0 {
		statusLabel = "transport_error"
	}
	m.upstreamRequests.With(prometheus.Labels{
		"method":   method,
		"endpoint": endpoint,
		"status":   statusLabel,
	}).Inc()
	m.upstreamRequestDuration.With(prometheus.Labels{
		"method":   method,
		"endpoint": endpoint,
	}).Observe(duration.Seconds())
}

// IncStaleResponse counts a response discarded by a widget's generation check.
func (m *Metrics) IncStaleResponse(widget string) {
	if m == nil {
		return
	}
	m.staleResponses.With(prometheus.Labels{"widget": widget}).Inc()
}

// IncSweepRun increments the sweep run counter.
func (m *Metrics) IncSweepRun() {
	if m == nil {
		return
	}
	m.sweepRunsTotal.Inc()
}

// AddSweptSessions adds n removed sessions.
func (m *Metrics) AddSweptSessions(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptSessionsTotal.Add(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
