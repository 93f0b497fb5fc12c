// Package ratelimit provides fixed-window request throttling for sensitive
// endpoints.
//
// Counting is fixed-window, not sliding: the counter for a (client, endpoint)
// key resets wholesale once the window length has elapsed since the stored
// window start. Bursts straddling a window boundary can briefly exceed the
// configured maximum; that imprecision is accepted in exchange for O(1)
// memory and time per check. The limiter is a defense-in-depth control, not
// a hard quota.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/askari-labs/askari/internal/audit"
	"github.com/askari-labs/askari/internal/metrics"
)

// Window is the counter state for one (client, endpoint) key.
type Window struct {
	Count int
	Start time.Time
}

// Store holds window state keyed by (client, endpoint). Implementations must
// make Increment atomic per key; the in-memory store serializes with a mutex,
// a distributed store would use its own compare-and-increment primitive.
type Store interface {
	// Increment bumps the counter for key inside a fixed window of length
	// win. If the stored window has expired the window is replaced wholesale
	// (count=1, start=now). Returns the state after the increment. Expired
	// entries for other keys are evicted opportunistically.
	Increment(ctx context.Context, key string, win time.Duration) (Window, error)
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Count      int           `json:"count"`               // observed count in the current window
	Remaining  int           `json:"remaining"`           // requests left in the window
	RetryAfter time.Duration `json:"retryAfter,omitzero"` // positive on denial, rounded up to whole seconds
}

// RetryAfterSeconds returns the denial backoff in whole seconds.
func (d Decision) RetryAfterSeconds() int {
	return int(d.RetryAfter / time.Second)
}

// Limiter admits or denies requests against per-endpoint fixed windows and
// records denials through the audit logger.
type Limiter struct {
	store    Store
	auditLog audit.Logger
	logger   *slog.Logger
	blockAt  int // violation count at which the violation row is marked blocked
}

// New creates a limiter over the given window store. auditLog may be nil, in
// which case denials are not recorded.
func New(store Store, auditLog audit.Logger, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		store:    store,
		auditLog: auditLog,
		logger:   logger,
	}
}

// WithViolationBlockAt sets the violation count at which a violation row is
// marked blocked. Zero disables marking.
func (l *Limiter) WithViolationBlockAt(n int) *Limiter {
	l.blockAt = n
	return l
}

// Admit checks one request from clientID against the fixed window for
// endpoint. On denial the decision carries a positive RetryAfter and the
// denial is recorded (violation upsert + medium-severity security event)
// without blocking the caller.
func (l *Limiter) Admit(ctx context.Context, clientID, endpoint string, maxRequests int, window time.Duration) Decision {
	key := clientID + ":" + endpoint

	w, err := l.store.Increment(ctx, key, window)
	if err != nil {
		// Store trouble must not take down the pipeline: admit and log.
		l.logger.Error("rate limit store failed, admitting", "key", key, "error", err)
		return Decision{Allowed: true, Count: 1, Remaining: maxRequests - 1}
	}

	if w.Count <= maxRequests {
		metrics.RateLimitChecks.WithLabelValues(endpoint, "allowed").Inc()
		return Decision{
			Allowed:   true,
			Count:     w.Count,
			Remaining: maxRequests - w.Count,
		}
	}

	elapsed := time.Since(w.Start)
	retryAfter := ceilSeconds(window - elapsed)

	metrics.RateLimitChecks.WithLabelValues(endpoint, "denied").Inc()
	l.recordDenial(clientID, endpoint, w, maxRequests)

	return Decision{
		Allowed:    false,
		Count:      w.Count,
		Remaining:  0,
		RetryAfter: retryAfter,
	}
}

// recordDenial upserts the violation row and emits a security event.
// Both writes are fire-and-forget; failures are logged, never surfaced.
func (l *Limiter) recordDenial(clientID, endpoint string, w Window, maxRequests int) {
	if l.auditLog == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := l.auditLog.LogRateLimitViolation(ctx, clientID, endpoint, w.Start, l.blockAt); err != nil {
			l.logger.Error("failed to record rate limit violation",
				"client", clientID, "endpoint", endpoint, "error", err)
		}

		event := &audit.SecurityEvent{
			IncidentType: audit.IncidentRateLimitExceeded,
			Severity:     audit.SeverityMedium,
			IPAddress:    clientID,
			RequestPath:  endpoint,
			IsBlocked:    true,
			Description:  fmt.Sprintf("rate limit exceeded on %s: %d requests, max %d", endpoint, w.Count, maxRequests),
			Metadata: map[string]string{
				"endpoint": endpoint,
				"count":    fmt.Sprintf("%d", w.Count),
				"max":      fmt.Sprintf("%d", maxRequests),
			},
		}
		if err := l.auditLog.LogSecurityEvent(ctx, event); err != nil {
			l.logger.Error("failed to record security event",
				"incident", event.IncidentType, "error", err)
		}
	}()
}

// ceilSeconds rounds d up to whole seconds, with a floor of one second so a
// denial always carries a positive backoff.
func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	secs := (d + time.Second - 1) / time.Second
	return secs * time.Second
}
