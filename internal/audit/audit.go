// Package audit records security events and rate-limit violations.
//
// Writes are best-effort from the caller's perspective: the security engine
// never fails an admission or fraud decision because an audit write failed.
// Callers log write errors and move on.
package audit

import (
	"context"
	"time"
)

// Severity classifies a security event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Incident types emitted by the security engine.
const (
	IncidentRateLimitExceeded    = "rate_limit_exceeded"
	IncidentBlacklistUnavailable = "blacklist_unavailable"
	IncidentBlacklistedOrder     = "blacklisted_order"
)

// SecurityEvent is a single recorded security incident.
// ResolvedAt/ResolvedBy are set only by a separate resolution workflow.
type SecurityEvent struct {
	ID             string            `json:"id"`
	IncidentType   string            `json:"incidentType"`
	Severity       Severity          `json:"severity"`
	UserID         string            `json:"userId,omitempty"`
	SessionID      string            `json:"sessionId,omitempty"`
	IPAddress      string            `json:"ipAddress,omitempty"`
	UserAgent      string            `json:"userAgent,omitempty"`
	RequestPath    string            `json:"requestPath,omitempty"`
	RequestMethod  string            `json:"requestMethod,omitempty"`
	ResponseStatus int               `json:"responseStatus,omitempty"`
	GeoLocation    string            `json:"geoLocation,omitempty"`
	IsBlocked      bool              `json:"isBlocked"`
	IsResolved     bool              `json:"isResolved"`
	RiskScore      float64           `json:"riskScore,omitempty"`
	Description    string            `json:"description,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	ResolvedAt     *time.Time        `json:"resolvedAt,omitempty"`
	ResolvedBy     string            `json:"resolvedBy,omitempty"`
}

// Violation is the durable record of rate-limit denials for one
// (ip, endpoint) pair. Upserted on every denial.
type Violation struct {
	IPAddress      string    `json:"ipAddress"`
	Endpoint       string    `json:"endpoint"`
	ViolationCount int       `json:"violationCount"`
	WindowStart    time.Time `json:"windowStart"`
	LastViolation  time.Time `json:"lastViolation"`
	IsBlocked      bool      `json:"isBlocked"`
	CreatedAt      time.Time `json:"createdAt"`
}

// EventFilter narrows ListEvents results. Zero values mean "no constraint".
type EventFilter struct {
	IncidentType string
	Severity     Severity
	UserID       string
	Since        time.Time
	Limit        int
}

// Logger persists security events and rate-limit violations.
type Logger interface {
	// LogSecurityEvent appends a security event.
	LogSecurityEvent(ctx context.Context, event *SecurityEvent) error

	// LogRateLimitViolation upserts the violation row for (ip, endpoint),
	// incrementing its count. blockAt is the count at which the row is
	// marked blocked; <=0 disables marking.
	LogRateLimitViolation(ctx context.Context, ip, endpoint string, windowStart time.Time, blockAt int) (*Violation, error)

	// ListEvents returns recent events matching the filter, newest first.
	ListEvents(ctx context.Context, filter EventFilter) ([]*SecurityEvent, error)

	// GetViolation returns the violation row for (ip, endpoint), or nil.
	GetViolation(ctx context.Context, ip, endpoint string) (*Violation, error)
}
