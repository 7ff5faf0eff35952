package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-wide metrics.
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

// Access-core metrics.
var (
	// AuthResolutions counts identity resolution outcomes per credential kind.
	AuthResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_resolutions_total",
			Help: "Identity resolution attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// PinAttempts counts step-up PIN verification results.
	PinAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pin_attempts_total",
			Help: "Step-up PIN verification attempts by result.",
		},
		[]string{"result"},
	)

	// PinLockouts counts lockout rejections.
	PinLockouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pin_lockouts_total",
		Help: "PIN verifications rejected by the attempt-window lockout.",
	})

	// AuditWrites counts audit persistence outcomes (ok, error, skipped).
	AuditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_writes_total",
			Help: "Audit record persistence outcomes.",
		},
		[]string{"status"},
	)

	// SessionsSwept counts rows removed by the expired-session sweep.
	SessionsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_swept_total",
		Help: "Expired branch sessions removed by the cleanup sweep.",
	})
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		AuthResolutions, PinAttempts, PinLockouts, AuditWrites, SessionsSwept,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
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

// statusWriter records the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
