package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresProvider reads account history from PostgreSQL.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgresProvider creates a PostgreSQL-backed history provider.
func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func (p *PostgresProvider) RecentOrders(ctx context.Context, userID string, window time.Duration) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, amount, status, created_at
		FROM orders
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`, userID, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Order
	for rows.Next() {
		o := &Order{}
		if err := rows.Scan(&o.ID, &o.UserID, &o.Amount, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (p *PostgresProvider) RecentSessions(ctx context.Context, userID string, window time.Duration) ([]*Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, ip_address, COALESCE(user_agent, ''), created_at
		FROM sessions
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`, userID, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Session
	for rows.Next() {
		s := &Session{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.IPAddress, &s.UserAgent, &s.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (p *PostgresProvider) KnownDevices(ctx context.Context, userID string) ([]*Device, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, fingerprint, last_seen_at
		FROM devices
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query known devices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Device
	for rows.Next() {
		d := &Device{}
		if err := rows.Scan(&d.ID, &d.UserID, &d.Fingerprint, &d.LastSeenAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (p *PostgresProvider) BehaviorProfile(ctx context.Context, userID string) (*BehaviorProfile, error) {
	bp := &BehaviorProfile{}
	err := p.db.QueryRowContext(ctx, `
		SELECT user_id, order_count, avg_order_amount, updated_at
		FROM behavior_profiles WHERE user_id = $1
	`, userID).Scan(&bp.UserID, &bp.OrderCount, &bp.AvgOrderAmount, &bp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query behavior profile: %w", err)
	}
	return bp, nil
}

func (p *PostgresProvider) GetUser(ctx context.Context, userID string) (*User, error) {
	u := &User{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, email, COALESCE(phone, ''), created_at
		FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.Email, &u.Phone, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (p *PostgresProvider) Verifications(ctx context.Context, userID string) (*Verification, error) {
	v := &Verification{}
	err := p.db.QueryRowContext(ctx, `
		SELECT user_id, email_verified, phone_verified
		FROM verifications WHERE user_id = $1
	`, userID).Scan(&v.UserID, &v.EmailVerified, &v.PhoneVerified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query verifications: %w", err)
	}
	return v, nil
}

func (p *PostgresProvider) IsKnownPaymentMethod(ctx context.Context, userID, hashedID string) (bool, error) {
	var known bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_methods WHERE user_id = $1 AND hashed_id = $2
		)
	`, userID, hashedID).Scan(&known)
	if err != nil {
		return false, fmt.Errorf("failed to check payment method: %w", err)
	}
	return known, nil
}
