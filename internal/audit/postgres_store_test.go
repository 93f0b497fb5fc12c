//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/askari-labs/askari/internal/testutil"
)

func TestPostgresSecurityEvents(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	logger := NewPostgresLogger(db)
	ctx := context.Background()

	event := &SecurityEvent{
		IncidentType: IncidentBlacklistedOrder,
		Severity:     SeverityCritical,
		UserID:       "u1",
		IPAddress:    "203.0.113.5",
		RequestPath:  "/v1/orders/check",
		IsBlocked:    true,
		RiskScore:    0.95,
		Description:  "order rejected by blacklist",
		Metadata:     map[string]string{"match": "ip_address"},
	}
	if err := logger.LogSecurityEvent(ctx, event); err != nil {
		t.Fatalf("log event: %v", err)
	}

	events, err := logger.ListEvents(ctx, EventFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.IncidentType != IncidentBlacklistedOrder {
		t.Errorf("incident type = %s", e.IncidentType)
	}
	if e.Severity != SeverityCritical {
		t.Errorf("severity = %s", e.Severity)
	}
	if !e.IsBlocked {
		t.Error("IsBlocked should round-trip")
	}
	if e.Metadata["match"] != "ip_address" {
		t.Errorf("metadata = %v", e.Metadata)
	}
	if e.ResolvedAt != nil {
		t.Error("resolvedAt should be nil for a fresh event")
	}
}

func TestPostgresListEventsFilters(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	logger := NewPostgresLogger(db)
	ctx := context.Background()

	seed := []*SecurityEvent{
		{IncidentType: IncidentRateLimitExceeded, Severity: SeverityMedium, UserID: "u1"},
		{IncidentType: IncidentRateLimitExceeded, Severity: SeverityMedium, UserID: "u2"},
		{IncidentType: IncidentBlacklistUnavailable, Severity: SeverityHigh},
	}
	for _, e := range seed {
		if err := logger.LogSecurityEvent(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	byType, err := logger.ListEvents(ctx, EventFilter{IncidentType: IncidentRateLimitExceeded})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("by type: got %d, want 2", len(byType))
	}

	bySeverity, _ := logger.ListEvents(ctx, EventFilter{Severity: SeverityHigh})
	if len(bySeverity) != 1 {
		t.Errorf("by severity: got %d, want 1", len(bySeverity))
	}

	since, _ := logger.ListEvents(ctx, EventFilter{Since: time.Now().Add(time.Hour)})
	if len(since) != 0 {
		t.Errorf("future since: got %d, want 0", len(since))
	}

	limited, _ := logger.ListEvents(ctx, EventFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limited: got %d, want 2", len(limited))
	}
}

func TestPostgresViolationUpsert(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	logger := NewPostgresLogger(db)
	ctx := context.Background()
	windowStart := time.Now().Truncate(time.Second)

	v1, err := logger.LogRateLimitViolation(ctx, "203.0.113.5", "/v1/orders/check", windowStart, 3)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if v1.ViolationCount != 1 || v1.IsBlocked {
		t.Errorf("first violation = %+v", v1)
	}

	var v *Violation
	for i := 0; i < 2; i++ {
		v, err = logger.LogRateLimitViolation(ctx, "203.0.113.5", "/v1/orders/check", windowStart, 3)
		if err != nil {
			t.Fatalf("upsert %d: %v", i+2, err)
		}
	}
	if v.ViolationCount != 3 {
		t.Errorf("count = %d, want 3", v.ViolationCount)
	}
	if !v.IsBlocked {
		t.Error("should be blocked at count 3")
	}

	got, err := logger.GetViolation(ctx, "203.0.113.5", "/v1/orders/check")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ViolationCount != 3 || !got.IsBlocked {
		t.Errorf("stored violation = %+v", got)
	}

	missing, err := logger.GetViolation(ctx, "203.0.113.99", "/nowhere")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}
