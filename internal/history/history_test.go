package history

import (
	"context"
	"testing"
	"time"
)

func TestRecentOrdersWindow(t *testing.T) {
	p := NewMemoryProvider()
	now := time.Now()
	p.AddOrder(&Order{ID: "a", UserID: "u1", Amount: 100, CreatedAt: now.Add(-time.Hour)})
	p.AddOrder(&Order{ID: "b", UserID: "u1", Amount: 200, CreatedAt: now.Add(-30 * time.Hour)})
	p.AddOrder(&Order{ID: "c", UserID: "u2", Amount: 300, CreatedAt: now.Add(-time.Hour)})

	orders, err := p.RecentOrders(context.Background(), "u1", 24*time.Hour)
	if err != nil {
		t.Fatalf("recent orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1 (old and other-user orders excluded)", len(orders))
	}
	if orders[0].ID != "a" {
		t.Errorf("order ID = %s, want a", orders[0].ID)
	}
}

func TestRecentSessionsWindow(t *testing.T) {
	p := NewMemoryProvider()
	now := time.Now()
	p.AddSession(&Session{ID: "s1", UserID: "u1", IPAddress: "203.0.113.1", CreatedAt: now.Add(-time.Hour)})
	p.AddSession(&Session{ID: "s2", UserID: "u1", IPAddress: "203.0.113.2", CreatedAt: now.Add(-8 * 24 * time.Hour)})

	sessions, err := p.RecentSessions(context.Background(), "u1", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("recent sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" {
		t.Errorf("got %v, want only the recent session", sessions)
	}
}

func TestProfileAndUserNilWhenMissing(t *testing.T) {
	p := NewMemoryProvider()

	bp, err := p.BehaviorProfile(context.Background(), "nobody")
	if err != nil || bp != nil {
		t.Errorf("missing profile = (%v, %v), want (nil, nil)", bp, err)
	}
	u, err := p.GetUser(context.Background(), "nobody")
	if err != nil || u != nil {
		t.Errorf("missing user = (%v, %v), want (nil, nil)", u, err)
	}
	v, err := p.Verifications(context.Background(), "nobody")
	if err != nil || v != nil {
		t.Errorf("missing verification = (%v, %v), want (nil, nil)", v, err)
	}
}

func TestSeedsAreCopied(t *testing.T) {
	p := NewMemoryProvider()
	u := &User{ID: "u1", Email: "amina@example.com", CreatedAt: time.Now()}
	p.SetUser(u)

	// Mutating the seed after the fact must not change stored state.
	u.Email = "changed@example.com"

	got, err := p.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Email != "amina@example.com" {
		t.Errorf("stored email = %s, seed mutation leaked in", got.Email)
	}
}

func TestKnownPaymentMethods(t *testing.T) {
	p := NewMemoryProvider()
	p.AddPaymentMethod("u1", "card-hash")

	known, err := p.IsKnownPaymentMethod(context.Background(), "u1", "card-hash")
	if err != nil || !known {
		t.Errorf("known card = (%v, %v), want (true, nil)", known, err)
	}
	known, _ = p.IsKnownPaymentMethod(context.Background(), "u1", "other-hash")
	if known {
		t.Error("unknown hash should not be known")
	}
	known, _ = p.IsKnownPaymentMethod(context.Background(), "u2", "card-hash")
	if known {
		t.Error("hash is per-user, not global")
	}
}
