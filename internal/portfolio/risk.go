package portfolio

import (
	"context"
	"math"
	"sort"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
)

const (
	// riskFreeAnnual is the annual risk-free rate for the Sharpe ratio.
	riskFreeAnnual = 0.02

	// periodsPerYear annualizes daily return statistics.
	periodsPerYear = 365

	// varConfidence picks the historical loss percentile for VaR.
	varConfidence = 0.95

	// diversificationTarget is the distinct-token count that scores 1.0.
	diversificationTarget = 10
)

// computeRisk derives the risk block from holdings and price history. Every
// statistic has a defined default when history is too thin: beta 1, Sharpe
// 0, VaR 0. Those defaults are legitimate outcomes, not errors.
func (a *Aggregator) computeRisk(ctx context.Context, holdings []persistence.Holding, prices map[string]float64) persistence.Risk {
	risk := persistence.Risk{
		PortfolioBeta:        1,
		DiversificationScore: diversificationScore(holdings),
	}
	if len(holdings) == 0 {
		return risk
	}

	returns := a.tokenReturns(ctx, holdings)
	portfolio, market := blendReturns(holdings, prices, returns)
	if len(portfolio) < 2 {
		return risk
	}

	if beta, ok := beta(portfolio, market); ok {
		risk.PortfolioBeta = beta
	}
	risk.SharpeRatio = sharpe(portfolio)

	var totalValue float64
	for _, h := range holdings {
		totalValue += h.Amount * prices[h.TokenAddress]
	}
	risk.ValueAtRisk = valueAtRisk(portfolio) * totalValue

	return risk
}

func diversificationScore(holdings []persistence.Holding) float64 {
	distinct := make(map[string]struct{}, len(holdings))
	for _, h := range holdings {
		distinct[h.TokenAddress] = struct{}{}
	}
	score := float64(len(distinct)) / diversificationTarget
	if score > 1 {
		return 1
	}
	return score
}

// tokenReturns fetches each distinct token's price history and converts it
// to simple period returns. Tokens without usable history are omitted.
func (a *Aggregator) tokenReturns(ctx context.Context, holdings []persistence.Holding) map[string][]float64 {
	returns := make(map[string][]float64)
	for _, h := range holdings {
		if _, ok := returns[h.TokenAddress]; ok {
			continue
		}
		history, err := a.market.PriceHistory(ctx, h.TokenAddress)
		if err != nil || len(history) < 2 {
			continue
		}
		series := make([]float64, 0, len(history)-1)
		for i := 1; i < len(history); i++ {
			prev := history[i-1].Price
			if prev <= 0 {
				continue
			}
			series = append(series, history[i].Price/prev-1)
		}
		if len(series) > 0 {
			returns[h.TokenAddress] = series
		}
	}
	return returns
}

// blendReturns builds the portfolio return series, value-weighted over the
// shortest common history, and an equal-weighted composite of the same
// tokens as the market proxy.
func blendReturns(holdings []persistence.Holding, prices map[string]float64, returns map[string][]float64) (portfolio, market []float64) {
	weights := make(map[string]float64)
	var totalValue float64
	for _, h := range holdings {
		if _, ok := returns[h.TokenAddress]; !ok {
			continue
		}
		value := h.Amount * prices[h.TokenAddress]
		weights[h.TokenAddress] += value
		totalValue += value
	}
	if totalValue <= 0 || len(weights) == 0 {
		return nil, nil
	}

	minLen := math.MaxInt
	for token := range weights {
		if n := len(returns[token]); n < minLen {
			minLen = n
		}
	}

	portfolio = make([]float64, minLen)
	market = make([]float64, minLen)
	for i := 0; i < minLen; i++ {
		for token, value := range weights {
			series := returns[token]
			// Align series on their most recent observations.
			r := series[len(series)-minLen+i]
			portfolio[i] += (value / totalValue) * r
			market[i] += r / float64(len(weights))
		}
	}
	return portfolio, market
}

// beta is cov(portfolio, market) / var(market). Reports false when the
// market series has no variance to divide by.
func beta(portfolio, market []float64) (float64, bool) {
	n := len(portfolio)
	if n < 2 || len(market) != n {
		return 0, false
	}
	meanP, meanM := mean(portfolio), mean(market)

	var cov, varM float64
	for i := 0; i < n; i++ {
		cov += (portfolio[i] - meanP) * (market[i] - meanM)
		varM += (market[i] - meanM) * (market[i] - meanM)
	}
	if varM == 0 {
		return 0, false
	}
	return cov / varM, true
}

// sharpe is the annualized excess return over volatility.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	sd := stddev(returns, m)
	if sd == 0 {
		return 0
	}
	rfPeriod := riskFreeAnnual / periodsPerYear
	return (m - rfPeriod) / sd * math.Sqrt(periodsPerYear)
}

// valueAtRisk is the historical loss at the configured confidence level, as
// a non-negative fraction of portfolio value.
func valueAtRisk(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - varConfidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	loss := -sorted[idx]
	if loss < 0 {
		return 0
	}
	return loss
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}
