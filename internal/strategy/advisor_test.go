package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/scoring"
)

type singleTokenRepo struct {
	token persistence.Token
}

func (r *singleTokenRepo) Insert(context.Context, persistence.Token) error { return nil }

func (r *singleTokenRepo) GetByAddress(_ context.Context, address string) (persistence.Token, error) {
	if address != r.token.Address {
		return persistence.Token{}, persistence.ErrNotFound
	}
	return r.token, nil
}

func (r *singleTokenRepo) List(context.Context, persistence.TokenFilter) ([]persistence.Token, error) {
	return []persistence.Token{r.token}, nil
}

func (r *singleTokenRepo) UpdateSnapshot(context.Context, string, float64, persistence.TokenMetrics) error {
	return nil
}

type fixedPrice struct {
	price float64
	err   error
}

func (p *fixedPrice) SpotPrice(context.Context, string) (float64, error) {
	return p.price, p.err
}

type stubAnalyzer struct {
	score float64
	err   error
}

func (s *stubAnalyzer) Analyze(context.Context, persistence.Token) (float64, error) {
	return s.score, s.err
}

type stubTechnical struct {
	tokenomics float64
	priceVsATH float64
	err        error
}

func (s *stubTechnical) Analyze(context.Context, persistence.Token) (float64, float64, error) {
	return s.tokenomics, s.priceVsATH, s.err
}

func strongToken() persistence.Token {
	return persistence.Token{
		Address: "mintA",
		DeployerInfo: persistence.DeployerSnap{
			Whitelisted: true,
		},
		Metrics: persistence.TokenMetrics{
			LiquiditySOL:    50,
			LiquidityLocked: true,
			Holders:         200,
			TopHolderShare:  0.05,
		},
		Verified: true,
	}
}

func newTestAdvisor(t *testing.T, token persistence.Token, price *fixedPrice,
	technical TechnicalAnalyzer, sentiment, onchain, whale *stubAnalyzer) *Advisor {
	t.Helper()

	scorer, err := scoring.NewEngine(scoring.StrategyWeights())
	require.NoError(t, err)

	var s SentimentAnalyzer
	if sentiment != nil {
		s = sentiment
	}
	var o OnChainAnalyzer
	if onchain != nil {
		o = onchain
	}
	var w WhaleAnalyzer
	if whale != nil {
		w = whale
	}
	return NewAdvisor(&singleTokenRepo{token: token}, price, scorer, Thresholds{}, technical, s, o, w)
}

func TestAdvise_StrongSignalsSayBuy(t *testing.T) {
	advisor := newTestAdvisor(t, strongToken(), &fixedPrice{price: 1.0},
		&stubTechnical{tokenomics: 0.9, priceVsATH: 0.2},
		&stubAnalyzer{score: 0.9},
		&stubAnalyzer{score: 0.8},
		&stubAnalyzer{score: 0.9},
	)

	advice, err := advisor.Advise(context.Background(), "mintA", TierModerate)
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, advice.Action)
	assert.GreaterOrEqual(t, advice.Score, defaultBuyThreshold)
}

func TestAdvise_CustomThresholdsMoveTheCutLines(t *testing.T) {
	// The same strong token holds instead of buying when the buy line is
	// raised above its score.
	scorer, err := scoring.NewEngine(scoring.StrategyWeights())
	require.NoError(t, err)
	advisor := NewAdvisor(&singleTokenRepo{token: strongToken()}, &fixedPrice{price: 1.0},
		scorer, Thresholds{Buy: 0.95, Sell: 0.1},
		&stubTechnical{tokenomics: 0.9, priceVsATH: 0.2},
		&stubAnalyzer{score: 0.9},
		&stubAnalyzer{score: 0.8},
		&stubAnalyzer{score: 0.9},
	)

	advice, err := advisor.Advise(context.Background(), "mintA", TierModerate)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, advice.Action)
	assert.Less(t, advice.Score, 0.95)
}

func TestAdvise_WeakSignalsSaySell(t *testing.T) {
	weak := persistence.Token{Address: "mintA"}
	advisor := newTestAdvisor(t, weak, &fixedPrice{price: 1.0},
		&stubTechnical{tokenomics: 0.1, priceVsATH: 0.95},
		&stubAnalyzer{score: 0.1},
		&stubAnalyzer{score: 0.0},
		&stubAnalyzer{score: 0.1},
	)

	advice, err := advisor.Advise(context.Background(), "mintA", TierModerate)
	require.NoError(t, err)
	assert.Equal(t, ActionSell, advice.Action)
	assert.LessOrEqual(t, advice.Score, defaultSellThreshold)
}

func TestAdvise_FailingAnalyzersDegradeToDefaults(t *testing.T) {
	boom := errors.New("analyzer down")
	advisor := newTestAdvisor(t, strongToken(), &fixedPrice{price: 1.0},
		&stubTechnical{err: boom},
		&stubAnalyzer{err: boom},
		&stubAnalyzer{err: boom},
		&stubAnalyzer{err: boom},
	)

	advice, err := advisor.Advise(context.Background(), "mintA", TierModerate)
	require.NoError(t, err)
	assert.Equal(t, 0.5, advice.Parts["tokenomics"])
	assert.Equal(t, 0.5, advice.Parts["social"])
	assert.Equal(t, 0.5, advice.Parts["whale"])
	assert.Equal(t, 0.5, advice.Parts["price_vs_ath"])
	assert.Equal(t, 0.0, advice.Parts["burn"])
}

func TestAdvise_NilAnalyzersAreOptional(t *testing.T) {
	advisor := newTestAdvisor(t, strongToken(), &fixedPrice{price: 1.0}, nil, nil, nil, nil)

	advice, err := advisor.Advise(context.Background(), "mintA", TierModerate)
	require.NoError(t, err)
	assert.Equal(t, 0.5, advice.Parts["whale"])
}

func TestAdvise_UnknownTokenIsNotFound(t *testing.T) {
	advisor := newTestAdvisor(t, strongToken(), &fixedPrice{price: 1.0}, nil, nil, nil, nil)

	_, err := advisor.Advise(context.Background(), "unknown", TierModerate)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestAdvise_NoPriceIsAnError(t *testing.T) {
	advisor := newTestAdvisor(t, strongToken(), &fixedPrice{err: errors.New("down")}, nil, nil, nil, nil)

	_, err := advisor.Advise(context.Background(), "mintA", TierModerate)
	assert.Error(t, err)
}

func TestExitPlan_ModerateTierPrices(t *testing.T) {
	advisor := newTestAdvisor(t, strongToken(), &fixedPrice{price: 2.0}, nil, nil, nil, nil)

	advice, err := advisor.Advise(context.Background(), "mintA", TierModerate)
	require.NoError(t, err)

	assert.InDelta(t, 1.8, advice.Exit.StopLoss, 1e-9)
	require.Len(t, advice.Exit.TakeProfits, 3)
	assert.InDelta(t, 2.4, advice.Exit.TakeProfits[0], 1e-9)
	assert.InDelta(t, 2.8, advice.Exit.TakeProfits[1], 1e-9)
	assert.InDelta(t, 3.2, advice.Exit.TakeProfits[2], 1e-9)
	assert.Equal(t, 0.07, advice.Exit.TrailingPct)
	assert.Equal(t, 0.10, advice.PositionSizePct)
}

func TestParamsFor_UnknownTierFallsBackToModerate(t *testing.T) {
	assert.Equal(t, ParamsFor(TierModerate), ParamsFor(RiskTier("reckless")))
}

func TestTierParams_Ladders(t *testing.T) {
	conservative := ParamsFor(TierConservative)
	aggressive := ParamsFor(TierAggressive)

	assert.Equal(t, 0.05, conservative.StopLossPct)
	assert.Equal(t, []float64{0.10, 0.20}, conservative.TakeProfitsPct)
	assert.Equal(t, 0.20, aggressive.StopLossPct)
	assert.Equal(t, []float64{0.50, 1.00, 2.00}, aggressive.TakeProfitsPct)
}
