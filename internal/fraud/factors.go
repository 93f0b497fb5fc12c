package fraud

import (
	"context"
	"net/netip"
	"time"

	"github.com/askari-labs/askari/internal/metrics"
)

// Each factor calculator resolves history lookup failures to a documented
// fallback instead of propagating the error; a dead history store degrades
// scoring quality, it never aborts the evaluation. Fallbacks per factor:
// velocity 0, location 0, device 0.5, behavior 0.8, account 0.8, payment 0.
const (
	fallbackDevice   = 0.5
	fallbackBehavior = 0.8
	fallbackAccount  = 0.8
)

// velocityFactor: tiered by order count in the trailing 24h plus additive
// terms for the 24h order-amount sum.
func (e *Engine) velocityFactor(ctx context.Context, userID string) float64 {
	orders, err := e.provider.RecentOrders(ctx, userID, 24*time.Hour)
	if err != nil {
		metrics.FactorFallbacks.WithLabelValues(FactorVelocity).Inc()
		return 0
	}

	var risk float64
	switch count := len(orders); {
	case count > 10:
		risk = 0.8
	case count > 5:
		risk = 0.5
	case count > 2:
		risk = 0.2
	}

	var sum int64
	for _, o := range orders {
		sum += o.Amount
	}
	switch {
	case sum > 1_000_000:
		risk += 0.6
	case sum > 500_000:
		risk += 0.3
	}

	return clamp01(risk)
}

// locationFactor: known proxy/VPN ranges plus distinct-IP churn over the
// trailing 7 days.
func (e *Engine) locationFactor(ctx context.Context, userID, ip string) float64 {
	var risk float64
	if e.inProxyRange(ip) {
		risk += 0.4
	}

	sessions, err := e.provider.RecentSessions(ctx, userID, 7*24*time.Hour)
	if err != nil {
		metrics.FactorFallbacks.WithLabelValues(FactorLocation).Inc()
		return clamp01(risk)
	}

	distinct := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		distinct[s.IPAddress] = struct{}{}
	}
	switch n := len(distinct); {
	case n > 10:
		risk += 0.6
	case n > 5:
		risk += 0.3
	}

	return clamp01(risk)
}

// deviceFactor: a missing fingerprint is mildly suspicious; an unrecognized
// one skews high-risk.
func (e *Engine) deviceFactor(ctx context.Context, userID, fingerprint string) float64 {
	if fingerprint == "" {
		return fallbackDevice
	}

	devices, err := e.provider.KnownDevices(ctx, userID)
	if err != nil {
		metrics.FactorFallbacks.WithLabelValues(FactorDevice).Inc()
		return fallbackDevice
	}

	for _, d := range devices {
		if d.Fingerprint == fingerprint {
			return 0.1
		}
	}
	return 0.7
}

// behaviorFactor: no historical profile is itself a strong signal; otherwise
// odd-hours ordering and amounts far above the account's average add risk.
func (e *Engine) behaviorFactor(ctx context.Context, userID string, amount int64, placedAt time.Time) float64 {
	profile, err := e.provider.BehaviorProfile(ctx, userID)
	if err != nil {
		metrics.FactorFallbacks.WithLabelValues(FactorBehavior).Inc()
		return fallbackBehavior
	}
	if profile == nil {
		return fallbackBehavior
	}

	var risk float64
	hour := placedAt.Hour()
	if hour < 6 || hour >= 23 {
		risk += 0.3
	}
	if profile.AvgOrderAmount > 0 && float64(amount) > 5*profile.AvgOrderAmount {
		risk += 0.5
	}

	return clamp01(risk)
}

// accountFactor: account age tiers plus unverified contact channels. An
// account the history store does not know at all scores the maximum age tier.
func (e *Engine) accountFactor(ctx context.Context, userID string) float64 {
	user, err := e.provider.GetUser(ctx, userID)
	if err != nil {
		metrics.FactorFallbacks.WithLabelValues(FactorAccount).Inc()
		return fallbackAccount
	}
	if user == nil {
		return fallbackAccount
	}

	var risk float64
	switch age := e.now().Sub(user.CreatedAt); {
	case age < 24*time.Hour:
		risk = 0.8
	case age < 7*24*time.Hour:
		risk = 0.4
	case age < 30*24*time.Hour:
		risk = 0.2
	}

	// A missing verification record means neither channel is verified.
	v, err := e.provider.Verifications(ctx, userID)
	if err != nil {
		metrics.FactorFallbacks.WithLabelValues(FactorAccount).Inc()
		v = nil
	}
	if v == nil || !v.EmailVerified {
		risk += 0.3
	}
	if v == nil || !v.PhoneVerified {
		risk += 0.2
	}

	return clamp01(risk)
}

// paymentFactor: a card never seen for this account adds risk; mobile money
// is a lower-baseline-risk channel in this market.
func (e *Engine) paymentFactor(ctx context.Context, userID string, order *Order) float64 {
	switch order.PaymentMethod {
	case PaymentCard:
		known, err := e.provider.IsKnownPaymentMethod(ctx, userID, order.PaymentHash)
		if err != nil {
			metrics.FactorFallbacks.WithLabelValues(FactorPayment).Inc()
			return 0
		}
		if !known {
			return 0.4
		}
		return 0
	case PaymentMobileMoney:
		return 0.1
	default:
		return 0
	}
}

// inProxyRange reports whether ip falls inside a configured proxy/VPN range.
func (e *Engine) inProxyRange(ip string) bool {
	if len(e.proxyRanges) == 0 || ip == "" {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range e.proxyRanges {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0.0 {
		return 0.0
	}
	return v
}
