package audit

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLogSecurityEventAssignsIDAndTimestamp(t *testing.T) {
	logger := NewMemoryLogger()

	err := logger.LogSecurityEvent(context.Background(), &SecurityEvent{
		IncidentType: IncidentRateLimitExceeded,
		Severity:     SeverityMedium,
		IPAddress:    "203.0.113.5",
	})
	if err != nil {
		t.Fatalf("log event: %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if !strings.HasPrefix(e.ID, "sev_") {
		t.Errorf("event ID = %q, want sev_ prefix", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("createdAt should be stamped")
	}
}

func TestListEventsFilters(t *testing.T) {
	logger := NewMemoryLogger()
	ctx := context.Background()

	seed := []*SecurityEvent{
		{IncidentType: IncidentRateLimitExceeded, Severity: SeverityMedium, UserID: "u1"},
		{IncidentType: IncidentBlacklistedOrder, Severity: SeverityCritical, UserID: "u1"},
		{IncidentType: IncidentBlacklistUnavailable, Severity: SeverityHigh, UserID: "u2"},
		{IncidentType: IncidentRateLimitExceeded, Severity: SeverityMedium, UserID: "u2"},
	}
	for _, e := range seed {
		if err := logger.LogSecurityEvent(ctx, e); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	byType, err := logger.ListEvents(ctx, EventFilter{IncidentType: IncidentRateLimitExceeded})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("by incident type: got %d, want 2", len(byType))
	}

	byUser, _ := logger.ListEvents(ctx, EventFilter{UserID: "u1"})
	if len(byUser) != 2 {
		t.Errorf("by user: got %d, want 2", len(byUser))
	}

	bySeverity, _ := logger.ListEvents(ctx, EventFilter{Severity: SeverityCritical})
	if len(bySeverity) != 1 || bySeverity[0].IncidentType != IncidentBlacklistedOrder {
		t.Errorf("by severity: got %+v", bySeverity)
	}

	limited, _ := logger.ListEvents(ctx, EventFilter{Limit: 3})
	if len(limited) != 3 {
		t.Errorf("limited: got %d, want 3", len(limited))
	}

	// Newest first
	all, _ := logger.ListEvents(ctx, EventFilter{})
	if len(all) != 4 {
		t.Fatalf("all: got %d, want 4", len(all))
	}
	if all[0].IncidentType != IncidentRateLimitExceeded || all[0].UserID != "u2" {
		t.Errorf("first event should be the most recent, got %+v", all[0])
	}
}

func TestListEventsSince(t *testing.T) {
	logger := NewMemoryLogger()
	ctx := context.Background()

	old := &SecurityEvent{
		IncidentType: IncidentRateLimitExceeded,
		Severity:     SeverityMedium,
		CreatedAt:    time.Now().Add(-time.Hour),
	}
	recent := &SecurityEvent{
		IncidentType: IncidentBlacklistedOrder,
		Severity:     SeverityCritical,
	}
	_ = logger.LogSecurityEvent(ctx, old)
	_ = logger.LogSecurityEvent(ctx, recent)

	events, err := logger.ListEvents(ctx, EventFilter{Since: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].IncidentType != IncidentBlacklistedOrder {
		t.Errorf("got %s", events[0].IncidentType)
	}
}

func TestViolationUpsert(t *testing.T) {
	logger := NewMemoryLogger()
	ctx := context.Background()
	windowStart := time.Now()

	v1, err := logger.LogRateLimitViolation(ctx, "203.0.113.5", "/orders", windowStart, 3)
	if err != nil {
		t.Fatalf("log violation: %v", err)
	}
	if v1.ViolationCount != 1 {
		t.Errorf("count = %d, want 1", v1.ViolationCount)
	}
	if v1.IsBlocked {
		t.Error("should not be blocked at count 1")
	}

	v2, _ := logger.LogRateLimitViolation(ctx, "203.0.113.5", "/orders", windowStart, 3)
	if v2.ViolationCount != 2 {
		t.Errorf("count = %d, want 2", v2.ViolationCount)
	}

	v3, _ := logger.LogRateLimitViolation(ctx, "203.0.113.5", "/orders", windowStart, 3)
	if !v3.IsBlocked {
		t.Error("should be blocked once count reaches blockAt")
	}

	got, err := logger.GetViolation(ctx, "203.0.113.5", "/orders")
	if err != nil {
		t.Fatalf("get violation: %v", err)
	}
	if got == nil || got.ViolationCount != 3 || !got.IsBlocked {
		t.Errorf("stored violation = %+v", got)
	}
}

func TestViolationBlockingDisabled(t *testing.T) {
	logger := NewMemoryLogger()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := logger.LogRateLimitViolation(ctx, "203.0.113.5", "/orders", time.Now(), 0); err != nil {
			t.Fatalf("log violation: %v", err)
		}
	}

	v, _ := logger.GetViolation(ctx, "203.0.113.5", "/orders")
	if v.IsBlocked {
		t.Error("blockAt <= 0 must never mark the row blocked")
	}
}

func TestGetViolationUnknown(t *testing.T) {
	logger := NewMemoryLogger()

	v, err := logger.GetViolation(context.Background(), "203.0.113.99", "/nowhere")
	if err != nil {
		t.Fatalf("get violation: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil for unknown pair, got %+v", v)
	}
}

func TestViolationsKeyedPerEndpoint(t *testing.T) {
	logger := NewMemoryLogger()
	ctx := context.Background()

	_, _ = logger.LogRateLimitViolation(ctx, "203.0.113.5", "/orders", time.Now(), 0)
	_, _ = logger.LogRateLimitViolation(ctx, "203.0.113.5", "/fraud", time.Now(), 0)

	a, _ := logger.GetViolation(ctx, "203.0.113.5", "/orders")
	b, _ := logger.GetViolation(ctx, "203.0.113.5", "/fraud")
	if a == nil || b == nil {
		t.Fatal("both endpoint rows should exist")
	}
	if a.ViolationCount != 1 || b.ViolationCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", a.ViolationCount, b.ViolationCount)
	}
}
