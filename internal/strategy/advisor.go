// Package strategy produces trading advice for a single token: a composite
// conviction score, a buy/sell/hold decision and a tier-sized exit plan.
package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/scoring"
)

// RiskTier sizes positions and exits to the user's appetite.
type RiskTier string

const (
	TierConservative RiskTier = "conservative"
	TierModerate     RiskTier = "moderate"
	TierAggressive   RiskTier = "aggressive"
)

// Default decision thresholds on the 0-1 conviction score.
const (
	defaultBuyThreshold  = 0.65
	defaultSellThreshold = 0.35
)

// Thresholds are the action cut lines on the conviction score: at or above
// Buy advises buying, at or below Sell advises selling, anything between
// holds.
type Thresholds struct {
	Buy  float64
	Sell float64
}

// DefaultThresholds returns the standard cut lines.
func DefaultThresholds() Thresholds {
	return Thresholds{Buy: defaultBuyThreshold, Sell: defaultSellThreshold}
}

// Action is the advised move.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// TierParams hold the exit and sizing percentages for a risk tier.
type TierParams struct {
	StopLossPct     float64
	TakeProfitsPct  []float64
	TrailingPct     float64
	PositionSizePct float64
}

// tierParams are fixed per tier; unknown tiers fall back to moderate.
var tierParams = map[RiskTier]TierParams{
	TierConservative: {
		StopLossPct:     0.05,
		TakeProfitsPct:  []float64{0.10, 0.20},
		TrailingPct:     0.03,
		PositionSizePct: 0.05,
	},
	TierModerate: {
		StopLossPct:     0.10,
		TakeProfitsPct:  []float64{0.20, 0.40, 0.60},
		TrailingPct:     0.07,
		PositionSizePct: 0.10,
	},
	TierAggressive: {
		StopLossPct:     0.20,
		TakeProfitsPct:  []float64{0.50, 1.00, 2.00},
		TrailingPct:     0.12,
		PositionSizePct: 0.20,
	},
}

// ParamsFor returns the tier's parameters, defaulting to moderate.
func ParamsFor(tier RiskTier) TierParams {
	if p, ok := tierParams[tier]; ok {
		return p
	}
	return tierParams[TierModerate]
}

// ExitPlan is the advised exit ladder, as absolute prices.
type ExitPlan struct {
	StopLoss    float64   `json:"stopLoss"`
	TakeProfits []float64 `json:"takeProfits"`
	TrailingPct float64   `json:"trailingPct"`
}

// Advice is the full output for one token.
type Advice struct {
	TokenAddress    string             `json:"tokenAddress"`
	Action          Action             `json:"action"`
	Score           float64            `json:"score"`
	Parts           map[string]float64 `json:"parts"`
	EntryPrice      float64            `json:"entryPrice"`
	PositionSizePct float64            `json:"positionSizePct"`
	Exit            ExitPlan           `json:"exit"`
	Tier            RiskTier           `json:"tier"`
	GeneratedAt     time.Time          `json:"generatedAt"`
}

// Analyzers produce independent sub-scores in [0,1]. Each one may fail; the
// advisor substitutes the scoring defaults and carries on.
type (
	// TechnicalAnalyzer scores price structure, returning the token's
	// tokenomics score and its price relative to the all-time high.
	TechnicalAnalyzer interface {
		Analyze(ctx context.Context, token persistence.Token) (tokenomics, priceVsATH float64, err error)
	}

	// SentimentAnalyzer scores community activity.
	SentimentAnalyzer interface {
		Analyze(ctx context.Context, token persistence.Token) (float64, error)
	}

	// OnChainAnalyzer scores supply mechanics, returning the burn ratio.
	OnChainAnalyzer interface {
		Analyze(ctx context.Context, token persistence.Token) (float64, error)
	}

	// WhaleAnalyzer scores large-holder behavior.
	WhaleAnalyzer interface {
		Analyze(ctx context.Context, token persistence.Token) (float64, error)
	}
)

// PriceSource supplies the entry price.
type PriceSource interface {
	SpotPrice(ctx context.Context, mint string) (float64, error)
}

// Advisor assembles advice from the analyzers and the scoring engine.
type Advisor struct {
	tokens     persistence.TokenRepo
	prices     PriceSource
	scorer     *scoring.Engine
	thresholds Thresholds
	technical  TechnicalAnalyzer
	sentiment  SentimentAnalyzer
	onchain    OnChainAnalyzer
	whale      WhaleAnalyzer
}

// NewAdvisor creates an advisor. Any analyzer may be nil; its factor then
// always uses the scoring default. Zero thresholds get the defaults.
func NewAdvisor(tokens persistence.TokenRepo, prices PriceSource, scorer *scoring.Engine,
	thresholds Thresholds, technical TechnicalAnalyzer, sentiment SentimentAnalyzer,
	onchain OnChainAnalyzer, whale WhaleAnalyzer) *Advisor {

	if thresholds.Buy <= 0 {
		thresholds.Buy = defaultBuyThreshold
	}
	if thresholds.Sell <= 0 {
		thresholds.Sell = defaultSellThreshold
	}
	return &Advisor{
		tokens:     tokens,
		prices:     prices,
		scorer:     scorer,
		thresholds: thresholds,
		technical:  technical,
		sentiment:  sentiment,
		onchain:    onchain,
		whale:      whale,
	}
}

// Advise produces advice for a stored token under the given risk tier. The
// analyzers run concurrently; a failing analyzer degrades its factor to the
// default instead of failing the advice.
func (a *Advisor) Advise(ctx context.Context, tokenAddress string, tier RiskTier) (Advice, error) {
	token, err := a.tokens.GetByAddress(ctx, tokenAddress)
	if err != nil {
		return Advice{}, err
	}
	price, err := a.prices.SpotPrice(ctx, tokenAddress)
	if err != nil {
		return Advice{}, fmt.Errorf("entry price unavailable: %w", err)
	}

	inputs := a.gatherInputs(ctx, token)
	composite := a.scorer.Score(inputs)

	action := ActionHold
	switch {
	case composite.Score >= a.thresholds.Buy:
		action = ActionBuy
	case composite.Score <= a.thresholds.Sell:
		action = ActionSell
	}

	params := ParamsFor(tier)
	return Advice{
		TokenAddress:    tokenAddress,
		Action:          action,
		Score:           composite.Score,
		Parts:           composite.Parts,
		EntryPrice:      price,
		PositionSizePct: params.PositionSizePct,
		Exit:            buildExitPlan(price, params),
		Tier:            tier,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// gatherInputs fans out to the analyzers. Results land in the inputs only on
// success, so failures degrade to the scoring defaults per factor.
func (a *Advisor) gatherInputs(ctx context.Context, token persistence.Token) scoring.Inputs {
	inputs := scoring.Inputs{
		Deployer: &scoring.DeployerInputs{
			Whitelisted:   token.DeployerInfo.Whitelisted,
			SuccessRate:   token.DeployerInfo.SuccessRate,
			TotalLaunches: token.DeployerInfo.TotalLaunches,
			TotalValueSOL: token.DeployerInfo.TotalValueSOL,
		},
		Liquidity: &scoring.LiquidityInputs{
			AmountSOL: token.Metrics.LiquiditySOL,
			Locked:    token.Metrics.LiquidityLocked,
		},
		Holders: &scoring.HolderInputs{
			Count:    token.Metrics.Holders,
			TopShare: token.Metrics.TopHolderShare,
		},
	}
	if token.Verified {
		paid := true
		inputs.ListingPaid = &paid
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.technical != nil {
		g.Go(func() error {
			tokenomics, priceVsATH, err := a.technical.Analyze(ctx, token)
			if err != nil {
				log.Warn().Str("token", token.Address).Err(err).Msg("Technical analysis failed")
				return nil
			}
			inputs.Tokenomics = &tokenomics
			inputs.PriceVsATH = &priceVsATH
			return nil
		})
	}
	if a.sentiment != nil {
		g.Go(func() error {
			score, err := a.sentiment.Analyze(ctx, token)
			if err != nil {
				log.Warn().Str("token", token.Address).Err(err).Msg("Sentiment analysis failed")
				return nil
			}
			inputs.Social = &score
			return nil
		})
	}
	if a.onchain != nil {
		g.Go(func() error {
			burn, err := a.onchain.Analyze(ctx, token)
			if err != nil {
				log.Warn().Str("token", token.Address).Err(err).Msg("On-chain analysis failed")
				return nil
			}
			inputs.BurnRatio = &burn
			return nil
		})
	}
	if a.whale != nil {
		g.Go(func() error {
			score, err := a.whale.Analyze(ctx, token)
			if err != nil {
				log.Warn().Str("token", token.Address).Err(err).Msg("Whale analysis failed")
				return nil
			}
			inputs.Whale = &score
			return nil
		})
	}

	_ = g.Wait()
	return inputs
}

// buildExitPlan converts the tier percentages to absolute prices around the
// entry.
func buildExitPlan(entry float64, params TierParams) ExitPlan {
	targets := make([]float64, 0, len(params.TakeProfitsPct))
	for _, pct := range params.TakeProfitsPct {
		targets = append(targets, entry*(1+pct))
	}
	return ExitPlan{
		StopLoss:    entry * (1 - params.StopLossPct),
		TakeProfits: targets,
		TrailingPct: params.TrailingPct,
	}
}
