// Package fraud implements risk scoring for marketplace orders.
//
// Every order submission is evaluated against 6 weighted factors: velocity,
// location, device, behavior, account, and payment. Each factor is a [0,1]
// signal computed from account history; the weighted composite plus rule
// overlays decides whether the order is approved, flagged, sent to manual
// review, or blocked before it is persisted.
package fraud

import (
	"context"
	"time"
)

// Status is the engine's verdict on an order.
type Status string

const (
	StatusApproved     Status = "approved"
	StatusFlagged      Status = "flagged"
	StatusManualReview Status = "manual_review"
	StatusBlocked      Status = "blocked"
)

// Factor names used as keys in Analysis.RiskFactors.
const (
	FactorVelocity = "velocity"
	FactorLocation = "location"
	FactorDevice   = "device"
	FactorBehavior = "behavior"
	FactorAccount  = "account"
	FactorPayment  = "payment"
)

// Factor weights. Must sum to 1.0 so the pre-overlay composite stays in [0,1].
const (
	weightVelocity = 0.25
	weightLocation = 0.15
	weightDevice   = 0.15
	weightBehavior = 0.20
	weightAccount  = 0.15
	weightPayment  = 0.10
)

// Rule overlay tags.
const (
	RuleHighVelocity       = "HIGH_VELOCITY_PURCHASES"
	RuleSuspiciousLocation = "SUSPICIOUS_LOCATION"
	RuleHighRiskAccount    = "HIGH_RISK_ACCOUNT"
	RuleHighValueOrder     = "HIGH_VALUE_ORDER"
)

// Default decision thresholds on the final (possibly >1.0) score.
const (
	DefaultBlockThreshold  = 0.8
	DefaultReviewThreshold = 0.6
	DefaultFlagThreshold   = 0.4
)

// recommendations maps each status to its fixed operator-facing guidance.
var recommendations = map[Status]string{
	StatusApproved:     "Order can proceed normally.",
	StatusFlagged:      "Order can proceed but should be monitored.",
	StatusManualReview: "Hold the order until an analyst reviews it.",
	StatusBlocked:      "Reject the order and notify the security team.",
}

// Recommendation returns the fixed guidance string for a status.
func Recommendation(s Status) string {
	return recommendations[s]
}

// Payment methods the scorer distinguishes.
const (
	PaymentCard        = "card"
	PaymentMobileMoney = "mobile_money"
)

// Order carries the order attributes the scorer needs.
type Order struct {
	ID            string    `json:"id"`
	Amount        int64     `json:"amount"` // minor currency units
	PaymentMethod string    `json:"paymentMethod"`
	PaymentHash   string    `json:"paymentHash,omitempty"` // hashed instrument identifier
	PlacedAt      time.Time `json:"placedAt"`
}

// UserContext carries the request-level signals accompanying an order.
type UserContext struct {
	UserID            string `json:"userId"`
	IPAddress         string `json:"ipAddress"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
	GeoLocation       string `json:"geoLocation,omitempty"`
}

// Analysis is the result of evaluating a single order.
// ReviewedAt/ReviewedBy/Notes are added later by a human reviewer.
type Analysis struct {
	ID             string             `json:"id"`
	UserID         string             `json:"userId"`
	OrderID        string             `json:"orderId"`
	RiskScore      float64            `json:"riskScore"` // may exceed 1.0 after overlays
	RiskFactors    map[string]float64 `json:"riskFactors"`
	Status         Status             `json:"status"`
	Rules          []string           `json:"rules"`
	Recommendation string             `json:"recommendation"`
	FlaggedAt      time.Time          `json:"flaggedAt"`
	ReviewedAt     *time.Time         `json:"reviewedAt,omitempty"`
	ReviewedBy     string             `json:"reviewedBy,omitempty"`
	Notes          string             `json:"notes,omitempty"`
}

// Store persists fraud analyses for the audit trail and later review.
type Store interface {
	Record(ctx context.Context, analysis *Analysis) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Analysis, error)
	MarkReviewed(ctx context.Context, id, reviewer string, status Status, notes string) error
}
