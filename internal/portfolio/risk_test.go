package portfolio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/gateway"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
)

func history(prices ...float64) []gateway.PricePoint {
	points := make([]gateway.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = gateway.PricePoint{Timestamp: int64(i), Price: p}
	}
	return points
}

func TestComputeRisk_EmptyPortfolioUsesDefaults(t *testing.T) {
	agg := NewAggregator(newMemPortfolioRepo(), newFakeMarket())

	risk := agg.computeRisk(context.Background(), nil, map[string]float64{})

	assert.Equal(t, 1.0, risk.PortfolioBeta)
	assert.Equal(t, 0.0, risk.SharpeRatio)
	assert.Equal(t, 0.0, risk.DiversificationScore)
	assert.Equal(t, 0.0, risk.ValueAtRisk)
}

func TestComputeRisk_NoHistoryKeepsDefaults(t *testing.T) {
	agg := NewAggregator(newMemPortfolioRepo(), newFakeMarket())

	holdings := []persistence.Holding{holding("mintA", 10, 1.0)}
	risk := agg.computeRisk(context.Background(), holdings, map[string]float64{"mintA": 1.5})

	assert.Equal(t, 1.0, risk.PortfolioBeta)
	assert.Equal(t, 0.0, risk.SharpeRatio)
}

func TestComputeRisk_SingleTokenBetaIsOne(t *testing.T) {
	market := newFakeMarket()
	market.histories["mintA"] = history(1.0, 1.1, 1.0, 1.2, 1.1, 1.3)
	agg := NewAggregator(newMemPortfolioRepo(), market)

	holdings := []persistence.Holding{holding("mintA", 10, 1.0)}
	risk := agg.computeRisk(context.Background(), holdings, map[string]float64{"mintA": 1.3})

	// With one token, portfolio and market series coincide.
	assert.InDelta(t, 1.0, risk.PortfolioBeta, 1e-9)
	assert.NotZero(t, risk.SharpeRatio)
}

func TestDiversificationScore_SaturatesAtTarget(t *testing.T) {
	var few, many []persistence.Holding
	for i := 0; i < 3; i++ {
		few = append(few, holding(string(rune('a'+i)), 1, 1))
	}
	for i := 0; i < 15; i++ {
		many = append(many, holding(string(rune('a'+i)), 1, 1))
	}

	assert.InDelta(t, 0.3, diversificationScore(few), 1e-9)
	assert.Equal(t, 1.0, diversificationScore(many))
}

func TestDiversificationScore_CountsDistinctTokens(t *testing.T) {
	holdings := []persistence.Holding{
		holding("mintA", 1, 1),
		holding("mintA", 2, 1),
		holding("mintB", 1, 1),
	}
	assert.InDelta(t, 0.2, diversificationScore(holdings), 1e-9)
}

func TestValueAtRisk_PicksTailLoss(t *testing.T) {
	// 20 returns; the 5th percentile index lands on the second-worst one.
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = 0.01
	}
	returns[3] = -0.40
	returns[7] = -0.25

	assert.InDelta(t, 0.25, valueAtRisk(returns), 1e-9)
}

func TestValueAtRisk_AllGainsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, valueAtRisk([]float64{0.01, 0.02, 0.03}))
}

func TestSharpe_ZeroVolatilityIsZero(t *testing.T) {
	assert.Equal(t, 0.0, sharpe([]float64{0.01, 0.01, 0.01}))
}

func TestBeta_NoMarketVarianceReportsFalse(t *testing.T) {
	_, ok := beta([]float64{0.1, -0.1}, []float64{0.0, 0.0})
	assert.False(t, ok)
}

func TestComputeRisk_ValueAtRiskScalesWithValue(t *testing.T) {
	market := newFakeMarket()
	prices := []float64{1.0}
	for i := 0; i < 20; i++ {
		prices = append(prices, prices[len(prices)-1]*1.01)
	}
	market.histories["mintA"] = history(prices...)
	agg := NewAggregator(newMemPortfolioRepo(), market)

	holdings := []persistence.Holding{holding("mintA", 10, 1.0)}
	risk := agg.computeRisk(context.Background(), holdings, map[string]float64{"mintA": 1.2})

	// Monotonic gains: historical VaR is zero regardless of value.
	require.Equal(t, 0.0, risk.ValueAtRisk)
}
