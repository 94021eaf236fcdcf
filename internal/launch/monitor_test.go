package launch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/gateway"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/notify"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/scoring"
)

type fakeFeed struct {
	tokens   []gateway.TokenFeedItem
	trades   []gateway.Trade
	replies  map[string][]gateway.Reply
	paid     map[string]bool
	created  map[string][]gateway.TokenFeedItem
	solPrice float64
}

func (f *fakeFeed) LatestTokens(context.Context) ([]gateway.TokenFeedItem, error) {
	return f.tokens, nil
}

func (f *fakeFeed) LatestTrades(context.Context) ([]gateway.Trade, error) {
	return f.trades, nil
}

func (f *fakeFeed) TokenReplies(_ context.Context, mint string) ([]gateway.Reply, error) {
	return f.replies[mint], nil
}

func (f *fakeFeed) ListingPaid(_ context.Context, mint string) (bool, error) {
	return f.paid[mint], nil
}

func (f *fakeFeed) SolPrice(context.Context) (float64, error) {
	return f.solPrice, nil
}

func (f *fakeFeed) UserCreatedTokens(_ context.Context, wallet string) ([]gateway.TokenFeedItem, error) {
	return f.created[wallet], nil
}

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]persistence.Token
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]persistence.Token)}
}

func (r *memTokenRepo) Insert(_ context.Context, t persistence.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.Address] = t
	return nil
}

func (r *memTokenRepo) GetByAddress(_ context.Context, address string) (persistence.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[address]
	if !ok {
		return persistence.Token{}, persistence.ErrNotFound
	}
	return t, nil
}

func (r *memTokenRepo) List(_ context.Context, _ persistence.TokenFilter) ([]persistence.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []persistence.Token
	for _, t := range r.tokens {
		out = append(out, t)
	}
	return out, nil
}

func (r *memTokenRepo) UpdateSnapshot(_ context.Context, address string, score float64, metrics persistence.TokenMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[address]
	if !ok {
		return persistence.ErrNotFound
	}
	t.Score = score
	t.Metrics = metrics
	r.tokens[address] = t
	return nil
}

type memDeployerRepo struct {
	mu       sync.Mutex
	profiles map[string]persistence.DeployerProfile
	launches map[string]int
}

func newMemDeployerRepo() *memDeployerRepo {
	return &memDeployerRepo{
		profiles: make(map[string]persistence.DeployerProfile),
		launches: make(map[string]int),
	}
}

func (r *memDeployerRepo) Insert(_ context.Context, p persistence.DeployerProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Address] = p
	return nil
}

func (r *memDeployerRepo) GetByAddress(_ context.Context, address string) (persistence.DeployerProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[address]
	if !ok {
		return persistence.DeployerProfile{}, persistence.ErrNotFound
	}
	return p, nil
}

func (r *memDeployerRepo) RecordLaunch(_ context.Context, address string, _ bool, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.launches[address]++
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) byKind(kind string) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, ev := range n.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func launchEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	engine, err := scoring.NewEngine(scoring.LaunchWeights())
	require.NoError(t, err)
	return engine
}

func feedItem(mint, creator string, createdAt time.Time, liquiditySOL float64, replies int) gateway.TokenFeedItem {
	return gateway.TokenFeedItem{
		Mint:             mint,
		Symbol:           "TKN",
		Name:             "Token " + mint,
		Creator:          creator,
		CreatedTimestamp: createdAt.UnixMilli(),
		VirtualSolAmount: liquiditySOL,
		ReplyCount:       replies,
	}
}

func newTestMonitor(t *testing.T, feed *fakeFeed, tokens *memTokenRepo, deployers *memDeployerRepo,
	sink *recordingNotifier, whitelist []string, start time.Time) *Monitor {
	t.Helper()

	m := NewMonitor(feed, tokens, deployers, launchEngine(t), sink, whitelist, 0)
	m.mu.Lock()
	m.cursor = start
	m.mu.Unlock()
	return m
}

func TestScanLaunches_WhitelistedDeployerTriggersNotification(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	feed := &fakeFeed{
		tokens: []gateway.TokenFeedItem{
			feedItem("mintA", "dev1", time.Now(), 20, 100),
		},
		paid: map[string]bool{},
	}
	tokens := newMemTokenRepo()
	deployers := newMemDeployerRepo()
	sink := &recordingNotifier{}
	m := newTestMonitor(t, feed, tokens, deployers, sink, []string{"dev1"}, start)

	require.NoError(t, m.ScanLaunches(context.Background()))

	stored, err := tokens.GetByAddress(context.Background(), "mintA")
	require.NoError(t, err)
	assert.True(t, stored.DeployerInfo.Whitelisted)
	assert.GreaterOrEqual(t, stored.Score, defaultNotifyThreshold)

	launches := sink.byKind(notify.KindLaunch)
	require.Len(t, launches, 1)
	assert.Equal(t, "mintA", launches[0].TokenAddress)
}

func TestScanLaunches_LowScoreIsPersistedButSilent(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	feed := &fakeFeed{
		tokens: []gateway.TokenFeedItem{
			feedItem("mintB", "unknown-dev", time.Now(), 0.5, 0),
		},
		paid: map[string]bool{},
	}
	tokens := newMemTokenRepo()
	deployers := newMemDeployerRepo()
	sink := &recordingNotifier{}
	m := newTestMonitor(t, feed, tokens, deployers, sink, nil, start)

	require.NoError(t, m.ScanLaunches(context.Background()))

	_, err := tokens.GetByAddress(context.Background(), "mintB")
	require.NoError(t, err)
	assert.Empty(t, sink.byKind(notify.KindLaunch))
}

func TestScanLaunches_SkipsTokensBeforeCursor(t *testing.T) {
	start := time.Now()
	feed := &fakeFeed{
		tokens: []gateway.TokenFeedItem{
			feedItem("old", "dev1", start.Add(-time.Hour), 20, 0),
		},
		paid: map[string]bool{},
	}
	tokens := newMemTokenRepo()
	m := newTestMonitor(t, feed, tokens, newMemDeployerRepo(), &recordingNotifier{}, nil, start)

	require.NoError(t, m.ScanLaunches(context.Background()))

	_, err := tokens.GetByAddress(context.Background(), "old")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestScanLaunches_CursorAdvancesEveryPass(t *testing.T) {
	// A token stamped before the pass time is not picked up by a later
	// pass, even though no pass ever processed it.
	start := time.Now().Add(-time.Minute)
	feed := &fakeFeed{paid: map[string]bool{}}
	tokens := newMemTokenRepo()
	m := newTestMonitor(t, feed, tokens, newMemDeployerRepo(), &recordingNotifier{}, nil, start)

	require.NoError(t, m.ScanLaunches(context.Background()))

	feed.tokens = []gateway.TokenFeedItem{
		feedItem("missed", "dev1", time.Now().Add(-time.Second), 20, 0),
	}
	require.NoError(t, m.ScanLaunches(context.Background()))

	_, err := tokens.GetByAddress(context.Background(), "missed")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestScanLaunches_ResetCursorReprocesses(t *testing.T) {
	start := time.Now()
	feed := &fakeFeed{
		tokens: []gateway.TokenFeedItem{
			feedItem("mintC", "dev1", start.Add(-time.Hour), 20, 0),
		},
		paid: map[string]bool{},
	}
	tokens := newMemTokenRepo()
	m := newTestMonitor(t, feed, tokens, newMemDeployerRepo(), &recordingNotifier{}, nil, start)

	require.NoError(t, m.ScanLaunches(context.Background()))
	m.ResetCursor(start.Add(-2 * time.Hour))
	require.NoError(t, m.ScanLaunches(context.Background()))

	_, err := tokens.GetByAddress(context.Background(), "mintC")
	assert.NoError(t, err)
}

func TestScanLaunches_ProcessesEachMintOnce(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	item := feedItem("mintA", "dev1", time.Now(), 20, 100)
	feed := &fakeFeed{
		tokens: []gateway.TokenFeedItem{item, item},
		paid:   map[string]bool{},
	}
	sink := &recordingNotifier{}
	m := newTestMonitor(t, feed, newMemTokenRepo(), newMemDeployerRepo(), sink, []string{"dev1"}, start)

	require.NoError(t, m.ScanLaunches(context.Background()))

	assert.Len(t, sink.byKind(notify.KindLaunch), 1)
}

func TestScanLaunches_CustomThresholdSilencesNotification(t *testing.T) {
	// The whitelisted launch scores 8.6; raising the threshold above that
	// keeps the sweep silent while the token is still persisted.
	start := time.Now().Add(-time.Minute)
	feed := &fakeFeed{
		tokens: []gateway.TokenFeedItem{
			feedItem("mintA", "dev1", time.Now(), 20, 100),
		},
		paid: map[string]bool{},
	}
	tokens := newMemTokenRepo()
	sink := &recordingNotifier{}
	m := NewMonitor(feed, tokens, newMemDeployerRepo(), launchEngine(t), sink, []string{"dev1"}, 9.0)
	m.mu.Lock()
	m.cursor = start
	m.mu.Unlock()

	require.NoError(t, m.ScanLaunches(context.Background()))

	_, err := tokens.GetByAddress(context.Background(), "mintA")
	require.NoError(t, err)
	assert.Empty(t, sink.byKind(notify.KindLaunch))
}

func TestScanLaunches_SeedsDeployerLaunchHistory(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	feed := &fakeFeed{
		tokens: []gateway.TokenFeedItem{
			feedItem("mintA", "serial-dev", time.Now(), 5, 0),
		},
		paid: map[string]bool{},
		created: map[string][]gateway.TokenFeedItem{
			"serial-dev": make([]gateway.TokenFeedItem, 3),
		},
	}
	deployers := newMemDeployerRepo()
	m := newTestMonitor(t, feed, newMemTokenRepo(), deployers, &recordingNotifier{}, nil, start)

	require.NoError(t, m.ScanLaunches(context.Background()))

	profile, err := deployers.GetByAddress(context.Background(), "serial-dev")
	require.NoError(t, err)
	assert.Equal(t, 3, profile.TotalLaunches)
}

func TestScanLaunches_CreatesDeployerProfileLazily(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	feed := &fakeFeed{
		tokens: []gateway.TokenFeedItem{
			feedItem("mintA", "fresh-dev", time.Now(), 5, 0),
		},
		paid: map[string]bool{},
	}
	deployers := newMemDeployerRepo()
	m := newTestMonitor(t, feed, newMemTokenRepo(), deployers, &recordingNotifier{}, nil, start)

	require.NoError(t, m.ScanLaunches(context.Background()))

	profile, err := deployers.GetByAddress(context.Background(), "fresh-dev")
	require.NoError(t, err)
	assert.False(t, profile.Whitelisted)
	assert.Equal(t, 1, deployers.launches["fresh-dev"])
}

func TestScanLaunches_EstimatesMarketCapFromSolPrice(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	feed := &fakeFeed{
		tokens: []gateway.TokenFeedItem{
			feedItem("mintD", "dev1", time.Now(), 20, 0),
		},
		paid:     map[string]bool{},
		solPrice: 150,
	}
	tokens := newMemTokenRepo()
	m := newTestMonitor(t, feed, tokens, newMemDeployerRepo(), &recordingNotifier{}, nil, start)

	require.NoError(t, m.ScanLaunches(context.Background()))

	stored, err := tokens.GetByAddress(context.Background(), "mintD")
	require.NoError(t, err)
	assert.InDelta(t, 3000.0, stored.Metrics.MarketCap, 1e-9)
}

func TestScanTrades_SizeBuckets(t *testing.T) {
	feed := &fakeFeed{
		trades: []gateway.Trade{
			{Signature: "sig1", Mint: "mintA", SolAmount: 12, IsBuy: true},
			{Signature: "sig2", Mint: "mintA", SolAmount: 6, IsBuy: false},
			{Signature: "sig3", Mint: "mintA", SolAmount: 1, IsBuy: true},
		},
	}
	sink := &recordingNotifier{}
	m := newTestMonitor(t, feed, newMemTokenRepo(), newMemDeployerRepo(), sink, nil, time.Now())

	require.NoError(t, m.ScanTrades(context.Background()))

	events := sink.byKind(notify.KindTrade)
	require.Len(t, events, 2)
	assert.Equal(t, "large", events[0].Fields["size"])
	assert.Equal(t, "medium", events[1].Fields["size"])
}

func TestScanTrades_LiquidityShareRule(t *testing.T) {
	tokens := newMemTokenRepo()
	require.NoError(t, tokens.Insert(context.Background(), persistence.Token{
		Address: "thin",
		Metrics: persistence.TokenMetrics{LiquiditySOL: 30},
	}))

	feed := &fakeFeed{
		trades: []gateway.Trade{
			// 4 SOL is below the absolute threshold but above a tenth
			// of the 30 SOL pool.
			{Signature: "sig1", Mint: "thin", SolAmount: 4, IsBuy: true},
			// 4 SOL against a deep pool stays insignificant.
			{Signature: "sig2", Mint: "deep", SolAmount: 4, IsBuy: true},
		},
	}
	sink := &recordingNotifier{}
	m := newTestMonitor(t, feed, tokens, newMemDeployerRepo(), sink, nil, time.Now())

	require.NoError(t, m.ScanTrades(context.Background()))

	events := sink.byKind(notify.KindTrade)
	require.Len(t, events, 1)
	assert.Equal(t, "thin", events[0].TokenAddress)
}

func TestScanTrades_DeduplicatesBySignature(t *testing.T) {
	feed := &fakeFeed{
		trades: []gateway.Trade{
			{Signature: "sig1", Mint: "mintA", SolAmount: 12},
		},
	}
	sink := &recordingNotifier{}
	m := newTestMonitor(t, feed, newMemTokenRepo(), newMemDeployerRepo(), sink, nil, time.Now())

	require.NoError(t, m.ScanTrades(context.Background()))
	require.NoError(t, m.ScanTrades(context.Background()))

	assert.Len(t, sink.byKind(notify.KindTrade), 1)
}

func TestScanTrades_LargeTradeRaisesTakeoverNoticeOnce(t *testing.T) {
	feed := &fakeFeed{
		trades: []gateway.Trade{
			{Signature: "sig1", Mint: "mintA", SolAmount: 12, IsBuy: true},
			{Signature: "sig2", Mint: "mintA", SolAmount: 15, IsBuy: true},
		},
		replies: map[string][]gateway.Reply{
			"mintA": {{Text: "dev gone, we run this now"}},
		},
	}
	sink := &recordingNotifier{}
	m := newTestMonitor(t, feed, newMemTokenRepo(), newMemDeployerRepo(), sink, nil, time.Now())

	require.NoError(t, m.ScanTrades(context.Background()))

	events := sink.byKind(notify.KindCTO)
	require.Len(t, events, 1)
	assert.Equal(t, "mintA", events[0].TokenAddress)
}

func TestCheckCTO_MatchesKeywordsCaseInsensitive(t *testing.T) {
	feed := &fakeFeed{
		replies: map[string][]gateway.Reply{
			"mintA": {{Text: "This is a Community Takeover now"}},
			"mintB": {{Text: "great token, mooning soon"}},
		},
	}
	m := newTestMonitor(t, feed, newMemTokenRepo(), newMemDeployerRepo(), &recordingNotifier{}, nil, time.Now())

	cto, err := m.CheckCTO(context.Background(), "mintA")
	require.NoError(t, err)
	assert.True(t, cto)

	cto, err = m.CheckCTO(context.Background(), "mintB")
	require.NoError(t, err)
	assert.False(t, cto)
}
