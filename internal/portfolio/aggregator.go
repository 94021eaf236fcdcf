// Package portfolio maintains per-user holdings and derives the valuation
// and risk blocks from current market data. Derived blocks are always
// replaced wholesale so readers never see a half-updated pair.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/gateway"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/telemetry"
)

// MarketData supplies the prices the aggregator values holdings with.
type MarketData interface {
	SpotPrice(ctx context.Context, mint string) (float64, error)
	PriceHistory(ctx context.Context, mint string) ([]gateway.PricePoint, error)
}

// Aggregator computes portfolio performance and risk.
type Aggregator struct {
	repo   persistence.PortfolioRepo
	market MarketData
}

// NewAggregator creates an aggregator over the given store and market data.
func NewAggregator(repo persistence.PortfolioRepo, market MarketData) *Aggregator {
	return &Aggregator{repo: repo, market: market}
}

// Get returns the stored portfolio with its last computed blocks.
func (a *Aggregator) Get(ctx context.Context, userID string) (persistence.Portfolio, error) {
	return a.repo.GetByUser(ctx, userID)
}

// AddHolding adds a position, creating the portfolio on first use. Adding a
// token already held merges the position at the amount-weighted buy price.
func (a *Aggregator) AddHolding(ctx context.Context, userID string, h persistence.Holding) error {
	if h.Amount <= 0 {
		return fmt.Errorf("holding amount must be positive, got %f", h.Amount)
	}

	p, err := a.repo.GetByUser(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		return a.repo.UpsertHoldings(ctx, userID, []persistence.Holding{h})
	}
	if err != nil {
		return err
	}

	merged := false
	for i := range p.Holdings {
		if p.Holdings[i].TokenAddress != h.TokenAddress {
			continue
		}
		existing := &p.Holdings[i]
		total := existing.Amount + h.Amount
		existing.BuyPrice = (existing.Amount*existing.BuyPrice + h.Amount*h.BuyPrice) / total
		existing.Amount = total
		merged = true
		break
	}
	if !merged {
		p.Holdings = append(p.Holdings, h)
	}
	return a.repo.UpsertHoldings(ctx, userID, p.Holdings)
}

// RemoveHolding drops a position entirely.
func (a *Aggregator) RemoveHolding(ctx context.Context, userID, tokenAddress string) error {
	p, err := a.repo.GetByUser(ctx, userID)
	if err != nil {
		return err
	}

	kept := p.Holdings[:0]
	removed := false
	for _, h := range p.Holdings {
		if h.TokenAddress == tokenAddress {
			removed = true
			continue
		}
		kept = append(kept, h)
	}
	if !removed {
		return persistence.ErrNotFound
	}
	return a.repo.UpsertHoldings(ctx, userID, kept)
}

// Recompute derives fresh performance and risk blocks for one user and
// stores both in a single write. Recomputing against unchanged prices is
// idempotent.
func (a *Aggregator) Recompute(ctx context.Context, userID string) error {
	p, err := a.repo.GetByUser(ctx, userID)
	if err != nil {
		return err
	}

	perf, prices, err := a.computePerformance(ctx, p.Holdings)
	if err != nil {
		return err
	}
	risk := a.computeRisk(ctx, p.Holdings, prices)

	return a.repo.ReplaceComputed(ctx, userID, perf, risk)
}

// RecomputeAll refreshes every stored portfolio. One user's failure never
// blocks the rest of the sweep.
func (a *Aggregator) RecomputeAll(ctx context.Context) error {
	portfolios, err := a.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, p := range portfolios {
		if err := a.Recompute(ctx, p.UserID); err != nil {
			telemetry.SweepItemFailures.WithLabelValues("portfolio").Inc()
			log.Warn().Str("user_id", p.UserID).Err(err).
				Msg("Portfolio recompute failed")
		}
	}
	return nil
}

// computePerformance values the holdings at current prices. Each token's
// price is fetched once regardless of how many positions reference it. A
// token with no available price is valued at zero for this pass.
func (a *Aggregator) computePerformance(ctx context.Context, holdings []persistence.Holding) (persistence.Performance, map[string]float64, error) {
	prices := make(map[string]float64)
	for _, h := range holdings {
		if _, ok := prices[h.TokenAddress]; ok {
			continue
		}
		price, err := a.market.SpotPrice(ctx, h.TokenAddress)
		if err != nil {
			log.Warn().Str("token", h.TokenAddress).Err(err).
				Msg("Price unavailable, valuing position at zero")
			price = 0
		}
		prices[h.TokenAddress] = price
	}

	var perf persistence.Performance
	bestReturn, worstReturn := 0.0, 0.0
	haveBest := false

	for _, h := range holdings {
		price := prices[h.TokenAddress]
		perf.TotalValue += h.Amount * price
		perf.TotalPnL += h.Amount * (price - h.BuyPrice)

		if h.BuyPrice <= 0 {
			continue
		}
		ret := price/h.BuyPrice - 1
		// Strict comparisons keep the first holding encountered on ties.
		if !haveBest {
			bestReturn, worstReturn = ret, ret
			perf.BestPerformer, perf.WorstPerformer = h.TokenAddress, h.TokenAddress
			haveBest = true
			continue
		}
		if ret > bestReturn {
			bestReturn = ret
			perf.BestPerformer = h.TokenAddress
		}
		if ret < worstReturn {
			worstReturn = ret
			perf.WorstPerformer = h.TokenAddress
		}
	}

	perf.DailyPnL = a.dailyPnL(ctx, holdings, prices)
	return perf, prices, nil
}

// dailyPnL estimates the value change over the last 24 hours from each
// token's price history. Tokens without history contribute zero.
func (a *Aggregator) dailyPnL(ctx context.Context, holdings []persistence.Holding, prices map[string]float64) float64 {
	cutoff := time.Now().Add(-24 * time.Hour).UnixMilli()
	dayAgo := make(map[string]float64)

	var pnl float64
	for _, h := range holdings {
		ref, ok := dayAgo[h.TokenAddress]
		if !ok {
			history, err := a.market.PriceHistory(ctx, h.TokenAddress)
			if err != nil || len(history) == 0 {
				dayAgo[h.TokenAddress] = 0
				continue
			}
			ref = history[0].Price
			for _, pt := range history {
				if pt.Timestamp > cutoff {
					break
				}
				ref = pt.Price
			}
			dayAgo[h.TokenAddress] = ref
		}
		if ref > 0 {
			pnl += h.Amount * (prices[h.TokenAddress] - ref)
		}
	}
	return pnl
}
