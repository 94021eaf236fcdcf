// Package scoring turns token observations into composite scores. One engine
// serves every consumer; they differ only in the weight table they pass in.
package scoring

import "time"

// DeployerInputs describes the launching wallet's track record.
type DeployerInputs struct {
	Whitelisted   bool
	SuccessRate   float64
	TotalLaunches int
	TotalValueSOL float64
}

// LiquidityInputs describes the token's pooled liquidity.
type LiquidityInputs struct {
	AmountSOL float64
	Locked    bool
}

// HolderInputs describes the holder distribution.
type HolderInputs struct {
	Count    int
	TopShare float64
}

// Inputs collects everything a scoring pass may know about a token. Nil
// fields mean the signal was unavailable and fall back to their documented
// defaults: tokenomics, social, whale activity and price-vs-ATH default to a
// neutral 0.5, everything else to 0.
type Inputs struct {
	Deployer  *DeployerInputs
	Liquidity *LiquidityInputs
	Holders   *HolderInputs

	// Pre-computed sub-scores in [0,1] from their own analyzers.
	Tokenomics *float64
	Social     *float64
	Whale      *float64

	// BurnRatio is the share of supply burned, in [0,1].
	BurnRatio *float64

	// ListingPaid reports an approved paid listing.
	ListingPaid *bool

	// PriceVsATH is current price divided by the all-time high. A deep
	// discount from the high scores higher.
	PriceVsATH *float64
}

// Composite is a scoring result: the scaled score plus the unweighted
// sub-score of every factor for explainability.
type Composite struct {
	Score     float64
	Parts     map[string]float64
	Timestamp time.Time
}

// Engine computes composite scores under a fixed weight table.
type Engine struct {
	weights WeightTable
}

// NewEngine creates an engine. The weight table must validate.
func NewEngine(weights WeightTable) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: weights}, nil
}

// Score computes the weighted composite for the given inputs.
func (e *Engine) Score(in Inputs) Composite {
	parts := map[string]float64{
		"deployer":     deployerScore(in.Deployer),
		"liquidity":    liquidityScore(in.Liquidity),
		"holders":      holdersScore(in.Holders),
		"tokenomics":   neutralOr(in.Tokenomics),
		"social":       neutralOr(in.Social),
		"whale":        neutralOr(in.Whale),
		"burn":         burnScore(in.BurnRatio),
		"listing":      listingScore(in.ListingPaid),
		"price_vs_ath": athScore(in.PriceVsATH),
	}

	w := e.weights
	sum := w.Deployer*parts["deployer"] +
		w.Liquidity*parts["liquidity"] +
		w.Holders*parts["holders"] +
		w.Tokenomics*parts["tokenomics"] +
		w.Social*parts["social"] +
		w.Whale*parts["whale"] +
		w.Burn*parts["burn"] +
		w.Listing*parts["listing"] +
		w.PriceVsATH*parts["price_vs_ath"]

	return Composite{
		Score:     w.Scale * sum,
		Parts:     parts,
		Timestamp: time.Now(),
	}
}

// deployerScore blends track-record signals; a whitelisted deployer scores
// the maximum outright. Missing profiles score 0: an unknown deployer is a
// risk, not a neutral.
func deployerScore(d *DeployerInputs) float64 {
	if d == nil {
		return 0
	}
	if d.Whitelisted {
		return 1
	}
	launches := clamp01(float64(d.TotalLaunches) / 10)
	value := clamp01(d.TotalValueSOL / 100)
	return clamp01(d.SuccessRate)*0.4 + launches*0.3 + value*0.3
}

// liquidityScore saturates at 10 SOL pooled, with a fixed bonus for locked
// liquidity.
func liquidityScore(l *LiquidityInputs) float64 {
	if l == nil {
		return 0
	}
	score := clamp01(l.AmountSOL/10) * 0.8
	if l.Locked {
		score += 0.2
	}
	return score
}

// holdersScore saturates at 100 holders and discounts by top-holder
// concentration.
func holdersScore(h *HolderInputs) float64 {
	if h == nil {
		return 0
	}
	breadth := clamp01(float64(h.Count) / 100)
	return breadth * (1 - clamp01(h.TopShare))
}

func neutralOr(v *float64) float64 {
	if v == nil {
		return 0.5
	}
	return clamp01(*v)
}

func burnScore(ratio *float64) float64 {
	if ratio == nil {
		return 0
	}
	return clamp01(*ratio)
}

func listingScore(paid *bool) float64 {
	if paid == nil || !*paid {
		return 0
	}
	return 1
}

func athScore(ratio *float64) float64 {
	if ratio == nil {
		return 0.5
	}
	return 1 - clamp01(*ratio)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
