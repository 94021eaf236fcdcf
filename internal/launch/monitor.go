// Package launch watches the token feed for new deployments and the trade
// feed for significant swaps. Each sweep is cursor-based: only activity
// newer than the previous pass is processed.
package launch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/gateway"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/notify"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/scoring"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/telemetry"
)

// Trade significance thresholds, in SOL.
const (
	tradeSmallSOL  = 3.0
	tradeMediumSOL = 5.0
	tradeLargeSOL  = 10.0

	// tradeLiquidityShare marks a trade significant relative to the
	// token's pooled liquidity even below the absolute thresholds.
	tradeLiquidityShare = 0.10
)

// defaultNotifyThreshold is the minimum launch score, on the 0-10 scale,
// that produces a notification.
const defaultNotifyThreshold = 7.0

// ctoKeywords mark community-takeover chatter in a token's thread.
var ctoKeywords = []string{"cto", "community takeover", "takeover", "dev gone"}

// socialSaturationReplies is the thread length that maxes the social score.
const socialSaturationReplies = 50

// Feed is the slice of the data gateway the monitor consumes.
type Feed interface {
	LatestTokens(ctx context.Context) ([]gateway.TokenFeedItem, error)
	LatestTrades(ctx context.Context) ([]gateway.Trade, error)
	TokenReplies(ctx context.Context, mint string) ([]gateway.Reply, error)
	ListingPaid(ctx context.Context, mint string) (bool, error)
	SolPrice(ctx context.Context) (float64, error)
	UserCreatedTokens(ctx context.Context, wallet string) ([]gateway.TokenFeedItem, error)
}

// SeenSet remembers processed identifiers across sweeps. Reset drops all
// state, e.g. when the cursor is rewound for a backfill.
type SeenSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewSeenSet creates an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{keys: make(map[string]struct{})}
}

// Mark records a key and reports whether it was new.
func (s *SeenSet) Mark(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Reset forgets every key.
func (s *SeenSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = make(map[string]struct{})
}

// Monitor runs the launch and trade sweeps.
type Monitor struct {
	feed      Feed
	tokens    persistence.TokenRepo
	deployers persistence.DeployerRepo
	engine    *scoring.Engine
	notifier  notify.Notifier
	whitelist map[string]bool
	threshold float64

	seenTokens *SeenSet
	seenTrades *SeenSet
	seenCTO    *SeenSet

	mu     sync.Mutex
	cursor time.Time

	now func() time.Time
}

// NewMonitor creates a monitor scoring launches with the given engine. The
// whitelist names deployer addresses treated as known good; a non-positive
// notifyThreshold gets the default.
func NewMonitor(feed Feed, tokens persistence.TokenRepo, deployers persistence.DeployerRepo,
	engine *scoring.Engine, notifier notify.Notifier, whitelist []string,
	notifyThreshold float64) *Monitor {

	wl := make(map[string]bool, len(whitelist))
	for _, addr := range whitelist {
		wl[addr] = true
	}
	if notifyThreshold <= 0 {
		notifyThreshold = defaultNotifyThreshold
	}
	return &Monitor{
		feed:       feed,
		tokens:     tokens,
		deployers:  deployers,
		engine:     engine,
		notifier:   notifier,
		whitelist:  wl,
		threshold:  notifyThreshold,
		seenTokens: NewSeenSet(),
		seenTrades: NewSeenSet(),
		seenCTO:    NewSeenSet(),
		cursor:     time.Now(),
		now:        time.Now,
	}
}

// ScanLaunches processes tokens created since the previous pass. The cursor
// always advances to the current time, even when the feed call fails, so a
// flapping provider cannot cause an ever-growing backfill.
func (m *Monitor) ScanLaunches(ctx context.Context) error {
	m.mu.Lock()
	since := m.cursor
	m.cursor = m.now()
	m.mu.Unlock()

	items, err := m.feed.LatestTokens(ctx)
	if err != nil {
		return fmt.Errorf("token feed unavailable: %w", err)
	}

	for _, item := range items {
		if !item.CreatedAt().After(since) {
			continue
		}
		if !m.seenTokens.Mark(item.Mint) {
			continue
		}
		if err := m.scanNewToken(ctx, item); err != nil {
			telemetry.SweepItemFailures.WithLabelValues("launch").Inc()
			log.Warn().Str("mint", item.Mint).Err(err).Msg("Failed to process launch")
		}
	}
	return nil
}

// scanNewToken scores a fresh launch and persists it. Notification happens
// only for scores at or above the threshold.
func (m *Monitor) scanNewToken(ctx context.Context, item gateway.TokenFeedItem) error {
	profile, err := m.deployerProfile(ctx, item.Creator)
	if err != nil {
		return err
	}

	paid, err := m.feed.ListingPaid(ctx, item.Mint)
	if err != nil {
		// A missing listing lookup never blocks the scan.
		paid = false
	}

	social := clampRatio(float64(item.ReplyCount) / socialSaturationReplies)
	composite := m.engine.Score(scoring.Inputs{
		Deployer: &scoring.DeployerInputs{
			Whitelisted:   profile.Whitelisted,
			SuccessRate:   profile.SuccessRate,
			TotalLaunches: profile.TotalLaunches,
			TotalValueSOL: profile.TotalValueSOL,
		},
		Liquidity:   &scoring.LiquidityInputs{AmountSOL: item.VirtualSolAmount},
		Social:      &social,
		ListingPaid: &paid,
	})

	token := persistence.Token{
		Address:    item.Mint,
		Ticker:     item.Symbol,
		Name:       item.Name,
		Deployer:   item.Creator,
		LaunchedAt: item.CreatedAt(),
		DeployerInfo: persistence.DeployerSnap{
			Whitelisted:   profile.Whitelisted,
			Reputation:    profile.Reputation,
			SuccessRate:   profile.SuccessRate,
			TotalLaunches: profile.TotalLaunches,
			TotalValueSOL: profile.TotalValueSOL,
		},
		Metrics: persistence.TokenMetrics{
			MarketCap:    m.marketCapUSD(ctx, item),
			LiquiditySOL: item.VirtualSolAmount,
			ObservedAt:   m.now(),
		},
		Score:    composite.Score,
		Verified: paid,
	}
	if err := m.tokens.Insert(ctx, token); err != nil {
		return err
	}
	if err := m.deployers.RecordLaunch(ctx, item.Creator, false, token.LaunchedAt); err != nil {
		log.Warn().Str("deployer", item.Creator).Err(err).Msg("Failed to record launch")
	}

	log.Info().Str("mint", item.Mint).Str("ticker", item.Symbol).
		Float64("score", composite.Score).Msg("New launch scored")

	if composite.Score < m.threshold {
		return nil
	}
	telemetry.LaunchesNotified.Inc()
	return m.notifier.Notify(ctx, notify.Event{
		Kind:         notify.KindLaunch,
		TokenAddress: item.Mint,
		Title:        fmt.Sprintf("Notable launch: %s", item.Symbol),
		Body:         fmt.Sprintf("%s scored %.1f/10", item.Name, composite.Score),
		Fields: map[string]interface{}{
			"score":    composite.Score,
			"deployer": item.Creator,
			"parts":    composite.Parts,
		},
	})
}

// marketCapUSD prefers the feed's quoted figure. Feeds that omit it get an
// estimate from the pooled SOL at the current SOL/USD rate.
func (m *Monitor) marketCapUSD(ctx context.Context, item gateway.TokenFeedItem) float64 {
	if item.MarketCapUSD > 0 {
		return item.MarketCapUSD
	}
	solUSD, err := m.feed.SolPrice(ctx)
	if err != nil {
		return 0
	}
	return item.VirtualSolAmount * solUSD
}

// deployerProfile returns the deployer's profile, creating one on first
// sighting.
func (m *Monitor) deployerProfile(ctx context.Context, address string) (persistence.DeployerProfile, error) {
	profile, err := m.deployers.GetByAddress(ctx, address)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.DeployerProfile{}, err
	}

	profile = persistence.DeployerProfile{
		Address:      address,
		Whitelisted:  m.whitelist[address],
		LastActivity: m.now(),
	}
	// Seed the launch count from the wallet's created tokens so the first
	// score already reflects the deployer's history.
	if created, err := m.feed.UserCreatedTokens(ctx, address); err == nil {
		profile.TotalLaunches = len(created)
	} else {
		log.Debug().Str("deployer", address).Err(err).Msg("Launch history unavailable")
	}
	if err := m.deployers.Insert(ctx, profile); err != nil {
		return persistence.DeployerProfile{}, err
	}
	return profile, nil
}

// ScanTrades notifies on significant swaps from the trade feed. A trade is
// significant at 5 SOL and above, or when it moves at least a tenth of the
// token's pooled liquidity.
func (m *Monitor) ScanTrades(ctx context.Context) error {
	trades, err := m.feed.LatestTrades(ctx)
	if err != nil {
		return fmt.Errorf("trade feed unavailable: %w", err)
	}

	for _, trade := range trades {
		if !m.seenTrades.Mark(trade.Signature) {
			continue
		}
		size := m.classify(ctx, trade)
		if size == "" {
			continue
		}
		side := "sell"
		if trade.IsBuy {
			side = "buy"
		}
		err := m.notifier.Notify(ctx, notify.Event{
			Kind:         notify.KindTrade,
			TokenAddress: trade.Mint,
			Title:        fmt.Sprintf("Significant %s %s", size, side),
			Body:         fmt.Sprintf("%.2f SOL %s on %s", trade.SolAmount, side, trade.Mint),
			Fields: map[string]interface{}{
				"sol_amount": trade.SolAmount,
				"trader":     trade.User,
				"size":       size,
			},
		})
		if err != nil {
			telemetry.SweepItemFailures.WithLabelValues("trades").Inc()
			log.Warn().Str("signature", trade.Signature).Err(err).Msg("Trade notification failed")
		}
		if size == "large" {
			m.flagCTO(ctx, trade.Mint)
		}
	}
	return nil
}

// flagCTO checks a token's thread after whale-sized activity and raises a
// one-time takeover notice per mint.
func (m *Monitor) flagCTO(ctx context.Context, mint string) {
	cto, err := m.CheckCTO(ctx, mint)
	if err != nil {
		log.Warn().Str("mint", mint).Err(err).Msg("Takeover check failed")
		return
	}
	if !cto || !m.seenCTO.Mark(mint) {
		return
	}
	if err := m.notifier.Notify(ctx, notify.Event{
		Kind:         notify.KindCTO,
		TokenAddress: mint,
		Title:        "Possible community takeover",
		Body:         fmt.Sprintf("Takeover chatter detected in %s thread", mint),
	}); err != nil {
		log.Warn().Str("mint", mint).Err(err).Msg("Takeover notification failed")
	}
}

// classify buckets a trade by size, or returns empty for insignificant
// trades. Small trades only qualify through the liquidity-share rule.
func (m *Monitor) classify(ctx context.Context, trade gateway.Trade) string {
	switch {
	case trade.SolAmount >= tradeLargeSOL:
		return "large"
	case trade.SolAmount >= tradeMediumSOL:
		return "medium"
	case trade.SolAmount < tradeSmallSOL:
		return ""
	}

	token, err := m.tokens.GetByAddress(ctx, trade.Mint)
	if err != nil || token.Metrics.LiquiditySOL <= 0 {
		return ""
	}
	if trade.SolAmount >= token.Metrics.LiquiditySOL*tradeLiquidityShare {
		return "medium"
	}
	return ""
}

// CheckCTO scans a token's thread for community-takeover chatter.
func (m *Monitor) CheckCTO(ctx context.Context, mint string) (bool, error) {
	replies, err := m.feed.TokenReplies(ctx, mint)
	if err != nil {
		return false, err
	}
	for _, reply := range replies {
		text := strings.ToLower(reply.Text)
		for _, kw := range ctoKeywords {
			if strings.Contains(text, kw) {
				return true, nil
			}
		}
	}
	return false, nil
}

// ResetCursor rewinds the cursor and clears the seen set so the next pass
// reprocesses the feed from the given time.
func (m *Monitor) ResetCursor(to time.Time) {
	m.mu.Lock()
	m.cursor = to
	m.mu.Unlock()
	m.seenTokens.Reset()
}

func clampRatio(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
