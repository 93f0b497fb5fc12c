package audit

import (
	"context"
	"sync"
	"time"

	"github.com/askari-labs/askari/internal/idgen"
)

// MemoryLogger stores events and violations in memory for demo/testing.
type MemoryLogger struct {
	mu         sync.RWMutex
	events     []*SecurityEvent
	violations map[string]*Violation // ip + "|" + endpoint
}

// NewMemoryLogger creates an in-memory audit logger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{
		violations: make(map[string]*Violation),
	}
}

func (l *MemoryLogger) LogSecurityEvent(_ context.Context, event *SecurityEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := *event
	if cp.ID == "" {
		cp.ID = idgen.WithPrefix("sev_")
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if cp.Metadata != nil {
		md := make(map[string]string, len(cp.Metadata))
		for k, v := range cp.Metadata {
			md[k] = v
		}
		cp.Metadata = md
	}
	l.events = append(l.events, &cp)
	return nil
}

func (l *MemoryLogger) LogRateLimitViolation(_ context.Context, ip, endpoint string, windowStart time.Time, blockAt int) (*Violation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ip + "|" + endpoint
	now := time.Now()
	v, ok := l.violations[key]
	if !ok {
		v = &Violation{
			IPAddress:   ip,
			Endpoint:    endpoint,
			WindowStart: windowStart,
			CreatedAt:   now,
		}
		l.violations[key] = v
	}
	v.ViolationCount++
	v.WindowStart = windowStart
	v.LastViolation = now
	if blockAt > 0 && v.ViolationCount >= blockAt {
		v.IsBlocked = true
	}

	cp := *v
	return &cp, nil
}

func (l *MemoryLogger) ListEvents(_ context.Context, filter EventFilter) ([]*SecurityEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var result []*SecurityEvent
	// Iterate in reverse for descending order
	for i := len(l.events) - 1; i >= 0 && len(result) < limit; i-- {
		e := l.events[i]
		if filter.IncidentType != "" && e.IncidentType != filter.IncidentType {
			continue
		}
		if filter.Severity != "" && e.Severity != filter.Severity {
			continue
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	return result, nil
}

func (l *MemoryLogger) GetViolation(_ context.Context, ip, endpoint string) (*Violation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	v, ok := l.violations[ip+"|"+endpoint]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

// Events returns all stored security events (for testing).
func (l *MemoryLogger) Events() []*SecurityEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*SecurityEvent, len(l.events))
	copy(result, l.events)
	return result
}
