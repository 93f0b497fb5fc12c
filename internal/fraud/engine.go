package fraud

import (
	"context"
	"log/slog"
	"math"
	"net/netip"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/askari-labs/askari/internal/history"
	"github.com/askari-labs/askari/internal/idgen"
	"github.com/askari-labs/askari/internal/metrics"
	"github.com/askari-labs/askari/internal/traces"
)

// DefaultFactorTimeout bounds the history lookups behind one evaluation.
// On expiry the affected factors resolve to their fallback values.
const DefaultFactorTimeout = 2 * time.Second

// Engine scores orders against account history. It is stateless apart from
// its read calls to the history provider; concurrent Detect calls are safe.
type Engine struct {
	provider history.Provider
	store    Store
	logger   *slog.Logger

	proxyRanges     []netip.Prefix
	factorTimeout   time.Duration
	blockThreshold  float64
	reviewThreshold float64
	flagThreshold   float64
	highValueAmount int64

	now func() time.Time // injectable for deterministic tests
}

// NewEngine creates a fraud engine backed by the given history provider and
// analysis store. store may be nil, in which case analyses are not persisted.
func NewEngine(provider history.Provider, store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider:        provider,
		store:           store,
		logger:          logger,
		factorTimeout:   DefaultFactorTimeout,
		blockThreshold:  DefaultBlockThreshold,
		reviewThreshold: DefaultReviewThreshold,
		flagThreshold:   DefaultFlagThreshold,
		highValueAmount: 500_000,
		now:             time.Now,
	}
}

// WithThresholds overrides the decision thresholds. Values must satisfy
// flag < review < block; invalid combinations keep the defaults.
func (e *Engine) WithThresholds(block, review, flag float64) *Engine {
	if flag < review && review < block {
		e.blockThreshold = block
		e.reviewThreshold = review
		e.flagThreshold = flag
	}
	return e
}

// WithHighValueAmount overrides the HIGH_VALUE_ORDER overlay trigger.
func (e *Engine) WithHighValueAmount(amount int64) *Engine {
	e.highValueAmount = amount
	return e
}

// WithFactorTimeout overrides the per-evaluation history lookup budget.
func (e *Engine) WithFactorTimeout(d time.Duration) *Engine {
	if d > 0 {
		e.factorTimeout = d
	}
	return e
}

// WithProxyRanges sets the known proxy/VPN CIDR ranges for the location
// factor. Unparseable entries are skipped and logged.
func (e *Engine) WithProxyRanges(cidrs []string) *Engine {
	for _, c := range cidrs {
		prefix, err := netip.ParsePrefix(c)
		if err != nil {
			e.logger.Warn("skipping invalid proxy CIDR", "cidr", c, "error", err)
			continue
		}
		e.proxyRanges = append(e.proxyRanges, prefix)
	}
	return e
}

// Detect evaluates an order and returns the fraud analysis. The six factor
// queries fan out concurrently and are joined before weighting; the result
// is deterministic for a fixed history provider. The analysis is persisted
// asynchronously as a best-effort audit trail.
func (e *Engine) Detect(ctx context.Context, order *Order, user *UserContext) *Analysis {
	start := time.Now()
	ctx, span := traces.StartSpan(ctx, "fraud.Detect",
		traces.UserID(user.UserID),
		traces.OrderID(order.ID),
	)
	defer span.End()

	fctx, cancel := context.WithTimeout(ctx, e.factorTimeout)
	defer cancel()

	var velocity, location, device, behavior, account, payment float64

	// The factors are mutually independent, so their history queries run
	// concurrently. Calculators never return errors — failures resolve to
	// fallback values inside each one.
	g, fctx := errgroup.WithContext(fctx)
	g.Go(func() error { velocity = e.velocityFactor(fctx, user.UserID); return nil })
	g.Go(func() error { location = e.locationFactor(fctx, user.UserID, user.IPAddress); return nil })
	g.Go(func() error { device = e.deviceFactor(fctx, user.UserID, user.DeviceFingerprint); return nil })
	g.Go(func() error { behavior = e.behaviorFactor(fctx, user.UserID, order.Amount, order.PlacedAt); return nil })
	g.Go(func() error { account = e.accountFactor(fctx, user.UserID); return nil })
	g.Go(func() error { payment = e.paymentFactor(fctx, user.UserID, order); return nil })
	_ = g.Wait()

	factors := map[string]float64{
		FactorVelocity: velocity,
		FactorLocation: location,
		FactorDevice:   device,
		FactorBehavior: behavior,
		FactorAccount:  account,
		FactorPayment:  payment,
	}

	score := velocity*weightVelocity +
		location*weightLocation +
		device*weightDevice +
		behavior*weightBehavior +
		account*weightAccount +
		payment*weightPayment

	// Rule overlays are additive and independently evaluated. The final
	// score is deliberately not re-clamped: a value above 1.0 is a severity
	// signal the caller and reviewers get to see.
	var rules []string
	if velocity > 0.8 {
		score += 0.20
		rules = append(rules, RuleHighVelocity)
	}
	if location > 0.7 {
		score += 0.15
		rules = append(rules, RuleSuspiciousLocation)
	}
	if account > 0.9 {
		score += 0.25
		rules = append(rules, RuleHighRiskAccount)
	}
	if order.Amount > e.highValueAmount {
		score += 0.10
		rules = append(rules, RuleHighValueOrder)
	}
	score = round3(score)

	var status Status
	switch {
	case score >= e.blockThreshold:
		status = StatusBlocked
	case score >= e.reviewThreshold:
		status = StatusManualReview
	case score >= e.flagThreshold:
		status = StatusFlagged
	default:
		status = StatusApproved
	}

	analysis := &Analysis{
		ID:             idgen.WithPrefix("fraud_"),
		UserID:         user.UserID,
		OrderID:        order.ID,
		RiskScore:      score,
		RiskFactors:    factors,
		Status:         status,
		Rules:          rules,
		Recommendation: Recommendation(status),
		FlaggedAt:      e.now(),
	}

	span.SetAttributes(
		attribute.Float64("fraud.score", score),
		attribute.String("fraud.status", string(status)),
	)
	metrics.FraudDecisions.WithLabelValues(string(status)).Inc()
	metrics.FraudEvaluationDuration.Observe(time.Since(start).Seconds())

	// Persist asynchronously (best-effort audit trail)
	if e.store != nil {
		go func() {
			rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer rcancel()
			if err := e.store.Record(rctx, analysis); err != nil {
				metrics.AuditWriteFailures.WithLabelValues("fraud_analysis").Inc()
				e.logger.Error("failed to record fraud analysis",
					"analysis_id", analysis.ID, "order_id", order.ID, "error", err)
			}
		}()
	}

	return analysis
}

// round3 rounds to 3 decimal places, matching what the stores persist.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
