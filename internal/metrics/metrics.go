// Package metrics provides Prometheus instrumentation for the Askari engine.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askari",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "askari",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RateLimitChecks counts admission checks by endpoint and outcome.
	RateLimitChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askari",
			Name:      "ratelimit_checks_total",
			Help:      "Rate limit admission checks by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	// FraudDecisions counts fraud verdicts by status.
	FraudDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askari",
			Name:      "fraud_decisions_total",
			Help:      "Fraud analysis verdicts by status.",
		},
		[]string{"status"},
	)

	// FraudEvaluationDuration observes end-to-end fraud scoring latency.
	FraudEvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "askari",
			Name:      "fraud_evaluation_duration_seconds",
			Help:      "Fraud evaluation duration in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// FactorFallbacks counts risk factors resolved to their fallback value
	// because a history lookup failed or timed out.
	FactorFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askari",
			Name:      "risk_factor_fallbacks_total",
			Help:      "Risk factors resolved to documented fallback values.",
		},
		[]string{"factor"},
	)

	// BlacklistChecks counts blacklist gate outcomes.
	BlacklistChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askari",
			Name:      "blacklist_checks_total",
			Help:      "Blacklist gate checks by outcome (hit, miss, fail_open).",
		},
		[]string{"outcome"},
	)

	// AuditWriteFailures counts audit writes that failed and were dropped.
	AuditWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askari",
			Name:      "audit_write_failures_total",
			Help:      "Audit writes that failed, by record kind.",
		},
		[]string{"kind"},
	)

	// BreakerTransitions counts circuit breaker state transitions.
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askari",
			Subsystem: "circuitbreaker",
			Name:      "state_transitions_total",
			Help:      "Circuit breaker state transitions by key, from-state, and to-state.",
		},
		[]string{"key", "from_state", "to_state"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "askari", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "askari", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "askari", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "askari", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RateLimitChecks,
		FraudDecisions,
		FraudEvaluationDuration,
		FactorFallbacks,
		BlacklistChecks,
		AuditWriteFailures,
		BreakerTransitions,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
