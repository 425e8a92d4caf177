package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Access-control core metrics.
var (
	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundihub_auth_failures_total",
			Help: "Credential and identity failures by kind.",
		},
		[]string{"kind"},
	)

	identityResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundihub_identity_resolutions_total",
			Help: "Principal resolutions by source store.",
		},
		[]string{"source"},
	)

	rateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundihub_ratelimit_rejections_total",
			Help: "Sliding-window rate limit rejections by action.",
		},
		[]string{"action"},
	)

	providerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundihub_provider_transitions_total",
			Help: "Provider lifecycle transition attempts by event and outcome.",
		},
		[]string{"event", "outcome"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fundihub_ready",
		Help: "1 when the service considers itself ready.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		authFailuresTotal, identityResolutionsTotal,
		rateLimitRejectionsTotal, providerTransitionsTotal,
		ready,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAuthFailure counts one credential or identity failure.
func ObserveAuthFailure(kind string) {
	authFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveIdentityResolution counts one resolution by source (primary,
// fallback, admin).
func ObserveIdentityResolution(source string) {
	identityResolutionsTotal.WithLabelValues(source).Inc()
}

// ObserveRateLimited counts one sliding-window rejection.
func ObserveRateLimited(action string) {
	rateLimitRejectionsTotal.WithLabelValues(action).Inc()
}

// ObserveProviderTransition counts one lifecycle transition attempt.
func ObserveProviderTransition(event, outcome string) {
	providerTransitionsTotal.WithLabelValues(event, outcome).Inc()
}

// SetReady publishes the readiness state.
func SetReady(v bool) {
	if v {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// CanonicalPath collapses per-resource path segments so metric label
// cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	// /v1/providers/:id[/application[/...]]
	if len(parts) >= 4 && parts[1] == "v1" && parts[2] == "providers" {
		parts[3] = ":id"
		return strings.Join(parts, "/")
	}
	// /v1/admin/applications/:id/...
	if len(parts) >= 5 && parts[1] == "v1" && parts[2] == "admin" && parts[3] == "applications" {
		parts[4] = ":id"
		return strings.Join(parts, "/")
	}
	return path
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter records the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
