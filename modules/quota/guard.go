package quota

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"wrap-render-server/modules/common/metrics"
	"wrap-render-server/modules/render"
)

// Guard decides whether a customer may spend a generation and records
// spending after a hero view succeeds.
type Guard struct {
	store   Store
	overage OverageRegistrar
	log     zerolog.Logger

	// held across load, increment and save
	mu sync.Mutex
}

// NewGuard - overage may be nil when no billing channel is configured
func NewGuard(store Store, overage OverageRegistrar, log zerolog.Logger) *Guard {
	return &Guard{store: store, overage: overage, log: log}
}

// State - current snapshot, nil when the customer has no record
func (g *Guard) State(ctx context.Context, customerID string) (*render.QuotaState, error) {
	if customerID == "" {
		return nil, nil
	}
	return g.store.Load(ctx, customerID)
}

// CanConsume reports whether one more generation is allowed. A false result
// always comes with an error wrapping render.ErrQuotaDenied.
func (g *Guard) CanConsume(ctx context.Context, customerID string) (bool, error) {
	if customerID == "" {
		metrics.QuotaDecisions.WithLabelValues("anonymous").Inc()
		return true, nil
	}

	state, err := g.store.Load(ctx, customerID)
	if err != nil {
		g.log.Warn().Err(err).Str("customer", customerID).Msg("⚠️  [Quota] Failed to load quota, proceeding")
		metrics.QuotaDecisions.WithLabelValues("store_error").Inc()
		return true, nil
	}

	if state == nil || state.Unlimited || state.Consumed < state.Limit {
		metrics.QuotaDecisions.WithLabelValues("allowed").Inc()
		return true, nil
	}

	if g.overage == nil || state.OverageBillingLineID == "" {
		g.log.Info().
			Str("customer", customerID).
			Str("tier", state.Tier).
			Int("consumed", state.Consumed).
			Int("limit", state.Limit).
			Msg("🚫 [Quota] Limit reached")
		metrics.QuotaDecisions.WithLabelValues("denied").Inc()
		return false, fmt.Errorf("%w: %d of %d used on %s", render.ErrQuotaDenied, state.Consumed, state.Limit, state.Tier)
	}

	if err := g.overage.RegisterOverage(ctx, state.OverageBillingLineID); err != nil {
		g.log.Error().Err(err).Str("customer", customerID).Msg("❌ [Quota] Overage registration failed")
		metrics.QuotaDecisions.WithLabelValues("overage_failed").Inc()
		return false, fmt.Errorf("%w: overage registration failed: %w", render.ErrQuotaDenied, err)
	}

	g.log.Info().Str("customer", customerID).Msg("💳 [Quota] Overage unit registered")
	metrics.QuotaDecisions.WithLabelValues("overage").Inc()
	return true, nil
}

// RecordConsumption adds exactly one generation. Persistence failures are
// logged and swallowed since the render already exists.
func (g *Guard) RecordConsumption(ctx context.Context, customerID string) {
	if customerID == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.store.Load(ctx, customerID)
	if err != nil {
		g.log.Error().Err(err).Str("customer", customerID).Msg("❌ [Quota] Failed to load quota for increment")
		return
	}
	if state == nil {
		return
	}

	next := *state
	next.Consumed++
	if err := g.store.Save(ctx, customerID, next); err != nil {
		g.log.Error().Err(err).Str("customer", customerID).Msg("❌ [Quota] Failed to persist consumption")
		return
	}

	g.log.Debug().Str("customer", customerID).Int("consumed", next.Consumed).Msg("📊 [Quota] Consumption recorded")
}
