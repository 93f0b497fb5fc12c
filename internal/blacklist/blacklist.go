// Package blacklist gates order submissions against known-bad IPs, accounts,
// and email domains.
//
// The gate fails open: if the underlying blacklist store is unreachable the
// request is admitted and a high-severity security event is recorded. A
// blacklist outage trading a small detection gap for pipeline availability
// is the intended policy, not an accident.
package blacklist

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/askari-labs/askari/internal/audit"
	"github.com/askari-labs/askari/internal/circuitbreaker"
	"github.com/askari-labs/askari/internal/metrics"
)

// Entry types, in evaluation order.
const (
	TypeIPAddress   = "ip_address"
	TypeUserAccount = "user_account"
	TypeEmailDomain = "email_domain"
)

// Entry is a single blacklist record.
type Entry struct {
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// Provider looks up blacklist entries. Returns nil when no entry matches.
type Provider interface {
	Lookup(ctx context.Context, entryType, value string) (*Entry, error)
}

// Result is the outcome of a gate check.
type Result struct {
	Blacklisted bool   `json:"blacklisted"`
	MatchType   string `json:"matchType,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Gate checks requests against the blacklist provider, wrapped in a circuit
// breaker so a dead store fails open fast instead of timing out per request.
type Gate struct {
	provider Provider
	breaker  *circuitbreaker.Breaker
	auditLog audit.Logger
	logger   *slog.Logger
}

// NewGate creates a blacklist gate. breaker and auditLog may be nil.
func NewGate(provider Provider, breaker *circuitbreaker.Breaker, auditLog audit.Logger, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		provider: provider,
		breaker:  breaker,
		auditLog: auditLog,
		logger:   logger,
	}
}

// Check evaluates ip, then the user account (if userID is set), then the
// email domain (if email is set), short-circuiting on the first match. The
// ordering only decides which reason is surfaced when several lists match.
func (g *Gate) Check(ctx context.Context, ip, userID, email string) Result {
	if g.breaker != nil && !g.breaker.Allow() {
		g.failOpen(ip, userID, "blacklist store circuit open")
		return Result{}
	}

	checks := []struct {
		entryType string
		value     string
	}{
		{TypeIPAddress, ip},
		{TypeUserAccount, userID},
		{TypeEmailDomain, emailDomain(email)},
	}

	for _, c := range checks {
		if c.value == "" {
			continue
		}
		entry, err := g.provider.Lookup(ctx, c.entryType, c.value)
		if err != nil {
			if g.breaker != nil {
				g.breaker.RecordFailure()
			}
			g.failOpen(ip, userID, "blacklist lookup failed: "+err.Error())
			return Result{}
		}
		if entry != nil {
			if g.breaker != nil {
				g.breaker.RecordSuccess()
			}
			metrics.BlacklistChecks.WithLabelValues("hit").Inc()
			return Result{
				Blacklisted: true,
				MatchType:   entry.Type,
				Reason:      entry.Reason,
			}
		}
	}

	if g.breaker != nil {
		g.breaker.RecordSuccess()
	}
	metrics.BlacklistChecks.WithLabelValues("miss").Inc()
	return Result{}
}

// failOpen records the availability gap so operators can see it, then
// admits the request.
func (g *Gate) failOpen(ip, userID, reason string) {
	metrics.BlacklistChecks.WithLabelValues("fail_open").Inc()
	g.logger.Warn("blacklist gate failing open", "reason", reason, "ip", ip)

	if g.auditLog == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		event := &audit.SecurityEvent{
			IncidentType: audit.IncidentBlacklistUnavailable,
			Severity:     audit.SeverityHigh,
			UserID:       userID,
			IPAddress:    ip,
			Description:  reason,
		}
		if err := g.auditLog.LogSecurityEvent(ctx, event); err != nil {
			metrics.AuditWriteFailures.WithLabelValues("security_event").Inc()
			g.logger.Error("failed to record security event", "incident", event.IncidentType, "error", err)
		}
	}()
}

// emailDomain returns the part after '@', or "" if email has no domain.
func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
