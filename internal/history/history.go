// Package history exposes read-only account history for risk scoring.
//
// The fraud engine consumes this interface only; it never writes. Each
// method is expected to answer quickly — callers attach a bounded timeout
// and substitute documented fallback values when a lookup fails.
package history

import (
	"context"
	"time"
)

// Order is a past order placed by a user.
type Order struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Amount    int64     `json:"amount"` // minor currency units
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is a past authenticated session.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Device is a device fingerprint previously registered for an account.
type Device struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Fingerprint string    `json:"fingerprint"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// BehaviorProfile summarizes an account's historical ordering behavior.
type BehaviorProfile struct {
	UserID         string    `json:"userId"`
	OrderCount     int       `json:"orderCount"`
	AvgOrderAmount float64   `json:"avgOrderAmount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// User is the account metadata the scorer needs.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Verification reports which contact channels an account has verified.
type Verification struct {
	UserID        string `json:"userId"`
	EmailVerified bool   `json:"emailVerified"`
	PhoneVerified bool   `json:"phoneVerified"`
}

// Provider answers the read-only history queries behind the six risk factors.
type Provider interface {
	RecentOrders(ctx context.Context, userID string, window time.Duration) ([]*Order, error)
	RecentSessions(ctx context.Context, userID string, window time.Duration) ([]*Session, error)
	KnownDevices(ctx context.Context, userID string) ([]*Device, error)
	BehaviorProfile(ctx context.Context, userID string) (*BehaviorProfile, error) // nil if none exists
	GetUser(ctx context.Context, userID string) (*User, error)
	Verifications(ctx context.Context, userID string) (*Verification, error)
	IsKnownPaymentMethod(ctx context.Context, userID, hashedID string) (bool, error)
}
