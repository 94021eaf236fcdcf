package scoring

import "fmt"

// WeightTable assigns a weight to each scoring factor and a scale for the
// final composite. Factors a caller does not weight simply carry zero.
type WeightTable struct {
	Deployer   float64 `yaml:"deployer"`
	Liquidity  float64 `yaml:"liquidity"`
	Holders    float64 `yaml:"holders"`
	Tokenomics float64 `yaml:"tokenomics"`
	Social     float64 `yaml:"social"`
	Whale      float64 `yaml:"whale"`
	Burn       float64 `yaml:"burn"`
	Listing    float64 `yaml:"listing"`
	PriceVsATH float64 `yaml:"price_vs_ath"`

	// Scale multiplies the weighted sum; 1 yields a 0-1 score, 10 a 0-10
	// score.
	Scale float64 `yaml:"scale"`
}

// Validate checks that the weights form a proper convex combination.
func (w WeightTable) Validate() error {
	sum := w.Deployer + w.Liquidity + w.Holders + w.Tokenomics + w.Social +
		w.Whale + w.Burn + w.Listing + w.PriceVsATH
	if sum < 0.999999 || sum > 1.000001 {
		return fmt.Errorf("weights must sum to 1.0, got %f", sum)
	}
	if w.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %f", w.Scale)
	}
	return nil
}

// LaunchWeights scores brand-new launches on a 0-10 scale. Deployer
// reputation dominates because it is the only signal with history behind it
// at launch time.
func LaunchWeights() WeightTable {
	return WeightTable{
		Deployer:   0.4,
		Liquidity:  0.2,
		Social:     0.2,
		Tokenomics: 0.2,
		Scale:      10,
	}
}

// RecommendationWeights ranks established tokens on a 0-1 scale.
func RecommendationWeights() WeightTable {
	return WeightTable{
		Deployer:   0.3,
		Liquidity:  0.2,
		Holders:    0.2,
		Tokenomics: 0.15,
		Social:     0.15,
		Scale:      1,
	}
}

// StrategyWeights feeds the buy/sell/hold decision on a 0-1 scale, leaning
// on the on-chain and whale factors the other tables ignore.
func StrategyWeights() WeightTable {
	return WeightTable{
		Deployer:   0.10,
		Liquidity:  0.15,
		Holders:    0.15,
		Social:     0.10,
		Whale:      0.20,
		Burn:       0.10,
		Listing:    0.10,
		PriceVsATH: 0.10,
		Scale:      1,
	}
}
