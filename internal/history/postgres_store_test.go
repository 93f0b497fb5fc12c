//go:build integration

package history

import (
	"context"
	"testing"
	"time"

	"github.com/askari-labs/askari/internal/testutil"
)

func TestPostgresProviderQueries(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	seed := []string{
		`INSERT INTO users (id, email, phone, created_at)
		 VALUES ('u1', 'amina@example.com', '+254700000001', NOW() - INTERVAL '1 year')`,
		`INSERT INTO verifications (user_id, email_verified, phone_verified)
		 VALUES ('u1', TRUE, FALSE)`,
		`INSERT INTO orders (id, user_id, amount, status, created_at) VALUES
		 ('ord_1', 'u1', 15000, 'completed', NOW() - INTERVAL '2 hours'),
		 ('ord_2', 'u1', 20000, 'completed', NOW() - INTERVAL '30 hours')`,
		`INSERT INTO sessions (id, user_id, ip_address, created_at) VALUES
		 ('sess_1', 'u1', '203.0.113.5', NOW() - INTERVAL '1 hour'),
		 ('sess_2', 'u1', '203.0.113.9', NOW() - INTERVAL '8 days')`,
		`INSERT INTO devices (id, user_id, fingerprint) VALUES ('dev_1', 'u1', 'fp-known')`,
		`INSERT INTO behavior_profiles (user_id, order_count, avg_order_amount)
		 VALUES ('u1', 40, 12000)`,
		`INSERT INTO payment_methods (user_id, hashed_id) VALUES ('u1', 'card-known')`,
	}
	for _, q := range seed {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	p := NewPostgresProvider(db)

	orders, err := p.RecentOrders(ctx, "u1", 24*time.Hour)
	if err != nil {
		t.Fatalf("recent orders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "ord_1" {
		t.Errorf("orders = %v, want only ord_1 inside the 24h window", orders)
	}

	sessions, err := p.RecentSessions(ctx, "u1", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("recent sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].IPAddress != "203.0.113.5" {
		t.Errorf("sessions = %v", sessions)
	}

	devices, err := p.KnownDevices(ctx, "u1")
	if err != nil {
		t.Fatalf("known devices: %v", err)
	}
	if len(devices) != 1 || devices[0].Fingerprint != "fp-known" {
		t.Errorf("devices = %v", devices)
	}

	bp, err := p.BehaviorProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("behavior profile: %v", err)
	}
	if bp == nil || bp.OrderCount != 40 || bp.AvgOrderAmount != 12000 {
		t.Errorf("profile = %+v", bp)
	}

	u, err := p.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u == nil || u.Email != "amina@example.com" {
		t.Errorf("user = %+v", u)
	}

	v, err := p.Verifications(ctx, "u1")
	if err != nil {
		t.Fatalf("verifications: %v", err)
	}
	if v == nil || !v.EmailVerified || v.PhoneVerified {
		t.Errorf("verification = %+v", v)
	}

	known, err := p.IsKnownPaymentMethod(ctx, "u1", "card-known")
	if err != nil || !known {
		t.Errorf("known payment = (%v, %v)", known, err)
	}
}

func TestPostgresProviderMissingRows(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	p := NewPostgresProvider(db)
	ctx := context.Background()

	if u, err := p.GetUser(ctx, "ghost"); err != nil || u != nil {
		t.Errorf("missing user = (%v, %v), want (nil, nil)", u, err)
	}
	if bp, err := p.BehaviorProfile(ctx, "ghost"); err != nil || bp != nil {
		t.Errorf("missing profile = (%v, %v), want (nil, nil)", bp, err)
	}
	if v, err := p.Verifications(ctx, "ghost"); err != nil || v != nil {
		t.Errorf("missing verification = (%v, %v), want (nil, nil)", v, err)
	}
	if known, err := p.IsKnownPaymentMethod(ctx, "ghost", "x"); err != nil || known {
		t.Errorf("missing payment = (%v, %v), want (false, nil)", known, err)
	}
}
