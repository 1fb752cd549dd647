package metrics

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ErlanBelekov/interview-genie/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Auth flow metrics

	AuthAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genie",
		Name:      "auth_attempts_total",
		Help:      "Auth operations by action and outcome.",
	}, []string{"action", "outcome"})

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genie",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by action.",
	}, []string{"action"})

	SessionsRevokedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genie",
		Name:      "sessions_revoked_total",
		Help:      "Sessions deleted, by reason.",
	}, []string{"reason"})

	// Cache metrics

	CacheRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genie",
		Name:      "cache_requests_total",
		Help:      "Cache lookups by cache name and result (hit, miss, error), plus read-through writes dropped as stale (stale_write).",
	}, []string{"cache", "result"})

	// Breach check

	BreachCheckDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "genie",
		Name:      "breach_check_duration_seconds",
		Help:      "Latency of breached-password range lookups.",
		Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"result"})

	// Janitor metrics

	JanitorPurgedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genie",
		Name:      "janitor_purged_total",
		Help:      "Expired rows deleted by the janitor, by kind.",
	}, []string{"kind"})

	JanitorCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "genie",
		Name:      "janitor_cycle_duration_seconds",
		Help:      "Time taken for one janitor cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "genie",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genie",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		AuthAttemptsTotal,
		RateLimitedTotal,
		SessionsRevokedTotal,
		CacheRequestsTotal,
		BreachCheckDuration,
		JanitorPurgedTotal,
		JanitorCycleDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus the liveness and readiness probes.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", probe(checker.Liveness))
	mux.HandleFunc("/readyz", probe(checker.Readiness))
	return &http.Server{Addr: addr, Handler: mux}
}

func probe(check func(context.Context) health.HealthResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if result.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(result)
	}
}
