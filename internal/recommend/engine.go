// Package recommend ranks stored tokens for users. The candidate pool is
// filtered in storage, scored with the recommendation weight table and cut
// to a fixed shortlist.
package recommend

import (
	"context"
	"sort"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/scoring"
)

// defaultLimit is the shortlist length.
const defaultLimit = 10

// Recommendation pairs a token with its ranking score and the per-factor
// breakdown behind it.
type Recommendation struct {
	Token persistence.Token  `json:"token"`
	Score float64            `json:"score"`
	Parts map[string]float64 `json:"parts"`
}

// Engine produces ranked token shortlists.
type Engine struct {
	tokens persistence.TokenRepo
	scorer *scoring.Engine
	limit  int
}

// New creates a recommendation engine over the stored token pool.
func New(tokens persistence.TokenRepo, scorer *scoring.Engine) *Engine {
	return &Engine{tokens: tokens, scorer: scorer, limit: defaultLimit}
}

// Top returns up to ten tokens passing the filter, best score first. Tokens
// with equal scores rank by metrics freshness, newest observation first.
func (e *Engine) Top(ctx context.Context, filter persistence.TokenFilter) ([]Recommendation, error) {
	pool, err := e.tokens.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	recs := make([]Recommendation, 0, len(pool))
	for _, token := range pool {
		composite := e.scorer.Score(inputsFromToken(token))
		recs = append(recs, Recommendation{
			Token: token,
			Score: composite.Score,
			Parts: composite.Parts,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Token.Metrics.ObservedAt.After(recs[j].Token.Metrics.ObservedAt)
	})

	if len(recs) > e.limit {
		recs = recs[:e.limit]
	}
	return recs, nil
}

// inputsFromToken maps a stored snapshot onto scoring inputs. Signals the
// snapshot does not carry stay nil and fall back to the scoring defaults.
func inputsFromToken(t persistence.Token) scoring.Inputs {
	return scoring.Inputs{
		Deployer: &scoring.DeployerInputs{
			Whitelisted:   t.DeployerInfo.Whitelisted,
			SuccessRate:   t.DeployerInfo.SuccessRate,
			TotalLaunches: t.DeployerInfo.TotalLaunches,
			TotalValueSOL: t.DeployerInfo.TotalValueSOL,
		},
		Liquidity: &scoring.LiquidityInputs{
			AmountSOL: t.Metrics.LiquiditySOL,
			Locked:    t.Metrics.LiquidityLocked,
		},
		Holders: &scoring.HolderInputs{
			Count:    t.Metrics.Holders,
			TopShare: t.Metrics.TopHolderShare,
		},
	}
}
