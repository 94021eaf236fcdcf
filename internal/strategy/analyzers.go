package strategy

import (
	"context"
	"errors"
	"math"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/gateway"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
)

// MarketFeed is the slice of the data gateway the feed analyzers consume.
type MarketFeed interface {
	Candles(ctx context.Context, mint string) ([]gateway.Candle, error)
	TokenReplies(ctx context.Context, mint string) ([]gateway.Reply, error)
	LatestTrades(ctx context.Context) ([]gateway.Trade, error)
}

// FeedTechnical derives the technical factors from candlestick history:
// price relative to the observed high, and a stability score that penalizes
// volatile tape.
type FeedTechnical struct {
	feed MarketFeed
}

// NewFeedTechnical creates the candle-backed technical analyzer.
func NewFeedTechnical(feed MarketFeed) *FeedTechnical {
	return &FeedTechnical{feed: feed}
}

// Analyze returns the stability score and the close-to-high ratio.
func (a *FeedTechnical) Analyze(ctx context.Context, token persistence.Token) (float64, float64, error) {
	candles, err := a.feed.Candles(ctx, token.Address)
	if err != nil {
		return 0, 0, err
	}
	if len(candles) < 2 {
		return 0, 0, errors.New("insufficient candle history")
	}

	high := 0.0
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
	}
	last := candles[len(candles)-1].Close
	priceVsATH := 0.0
	if high > 0 {
		priceVsATH = last / high
	}

	// Stability: 1 minus the per-bar return volatility, scaled so 20%
	// swings zero the score.
	var returns []float64
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev <= 0 {
			continue
		}
		returns = append(returns, candles[i].Close/prev-1)
	}
	stability := 1.0
	if len(returns) >= 2 {
		m := 0.0
		for _, r := range returns {
			m += r
		}
		m /= float64(len(returns))
		var sd float64
		for _, r := range returns {
			sd += (r - m) * (r - m)
		}
		sd = math.Sqrt(sd / float64(len(returns)-1))
		stability = 1 - sd/0.20
		if stability < 0 {
			stability = 0
		}
	}

	return stability, priceVsATH, nil
}

// FeedSentiment scores community activity from the token's thread length.
type FeedSentiment struct {
	feed MarketFeed
}

// NewFeedSentiment creates the reply-backed sentiment analyzer.
func NewFeedSentiment(feed MarketFeed) *FeedSentiment {
	return &FeedSentiment{feed: feed}
}

// Analyze saturates at 50 replies.
func (a *FeedSentiment) Analyze(ctx context.Context, token persistence.Token) (float64, error) {
	replies, err := a.feed.TokenReplies(ctx, token.Address)
	if err != nil {
		return 0, err
	}
	score := float64(len(replies)) / 50
	if score > 1 {
		score = 1
	}
	return score, nil
}

// FeedWhale scores large-holder behavior from the trade feed: the buy share
// of 10 SOL and larger swaps in the token. No whale activity at all reads as
// neutral.
type FeedWhale struct {
	feed MarketFeed
}

// NewFeedWhale creates the trade-backed whale analyzer.
func NewFeedWhale(feed MarketFeed) *FeedWhale {
	return &FeedWhale{feed: feed}
}

// Analyze returns buyVolume / totalVolume over whale-sized trades.
func (a *FeedWhale) Analyze(ctx context.Context, token persistence.Token) (float64, error) {
	trades, err := a.feed.LatestTrades(ctx)
	if err != nil {
		return 0, err
	}

	var buys, total float64
	for _, trade := range trades {
		if trade.Mint != token.Address || trade.SolAmount < 10 {
			continue
		}
		total += trade.SolAmount
		if trade.IsBuy {
			buys += trade.SolAmount
		}
	}
	if total == 0 {
		return 0.5, nil
	}
	return buys / total, nil
}
