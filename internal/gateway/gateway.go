// Package gateway is the single path to upstream market data providers. It
// layers a TTL cache, per-provider quota backpressure and a circuit breaker
// over plain HTTP, so the rest of the system never talks to a provider
// directly.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/cache"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/netutil/ratelimit"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/telemetry"
)

// ErrProviderUnavailable is returned for any upstream failure: HTTP errors,
// open circuit breakers, malformed bodies. Failed fetches are never cached,
// so the next caller retries the network immediately.
var ErrProviderUnavailable = errors.New("provider unavailable")

// Config holds the gateway's endpoints and tuning.
type Config struct {
	PumpFunBaseURL     string
	DexScreenerBaseURL string
	HTTPTimeout        time.Duration
	TTLs               map[Category]time.Duration
}

// Gateway fetches provider data cache-first. All methods are safe for
// concurrent use.
type Gateway struct {
	client   *http.Client
	cache    cache.Store
	limiter  *ratelimit.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
	cfg      Config
}

// New creates a gateway over the given cache and limiter.
func New(cfg Config, store cache.Store, limiter *ratelimit.Limiter) *Gateway {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.TTLs == nil {
		cfg.TTLs = defaultTTLs
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, provider := range []string{ProviderPumpFun, ProviderDexScreener} {
		breakers[provider] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    provider,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("provider", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("Circuit breaker state change")
			},
		})
	}

	return &Gateway{
		client:   &http.Client{Timeout: cfg.HTTPTimeout},
		cache:    store,
		limiter:  limiter,
		breakers: breakers,
		cfg:      cfg,
	}
}

func (g *Gateway) ttl(category Category) time.Duration {
	if ttl, ok := g.cfg.TTLs[category]; ok {
		return ttl
	}
	return defaultTTLs[category]
}

// fetch returns the raw body for a key, cache-first. A miss waits for quota
// capacity, then goes through the provider's circuit breaker. Only
// successful bodies are written back to the cache.
func (g *Gateway) fetch(ctx context.Context, provider string, category Category, key, rawURL string) ([]byte, error) {
	if body, ok := g.cache.Get(ctx, key); ok {
		telemetry.CacheHits.WithLabelValues(string(category)).Inc()
		return body, nil
	}
	telemetry.CacheMisses.WithLabelValues(string(category)).Inc()

	start := time.Now()
	if err := g.limiter.Wait(ctx, provider); err != nil {
		return nil, err
	}
	telemetry.QuotaWaitSeconds.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	result, err := g.breakers[provider].Execute(func() (interface{}, error) {
		return g.doGet(ctx, rawURL)
	})
	if err != nil {
		telemetry.ProviderRequests.WithLabelValues(provider, "error").Inc()
		log.Warn().Str("provider", provider).Str("url", rawURL).Err(err).
			Msg("Provider fetch failed")
		return nil, fmt.Errorf("%s: %s: %w", provider, err, ErrProviderUnavailable)
	}
	telemetry.ProviderRequests.WithLabelValues(provider, "ok").Inc()

	body := result.([]byte)
	g.cache.Set(ctx, key, body, g.ttl(category))
	return body, nil
}

func (g *Gateway) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// fetchJSON decodes a fetched body into T. A decode failure counts as a
// provider failure: the body was already cached, but callers treat the
// result the same as any unavailable provider.
func fetchJSON[T any](ctx context.Context, g *Gateway, provider string, category Category, key, rawURL string) (T, error) {
	var out T
	body, err := g.fetch(ctx, provider, category, key, rawURL)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("%s: malformed response: %w", provider, ErrProviderUnavailable)
	}
	return out, nil
}

// LatestTokens returns the most recent launches from the token feed.
func (g *Gateway) LatestTokens(ctx context.Context) ([]TokenFeedItem, error) {
	u := g.cfg.PumpFunBaseURL + "/coins/latest"
	return fetchJSON[[]TokenFeedItem](ctx, g, ProviderPumpFun, CategoryTokens, "tokens:latest", u)
}

// UserCreatedTokens returns the tokens a wallet has deployed.
func (g *Gateway) UserCreatedTokens(ctx context.Context, wallet string) ([]TokenFeedItem, error) {
	u := fmt.Sprintf("%s/coins/user-created-coins/%s", g.cfg.PumpFunBaseURL, url.PathEscape(wallet))
	key := "tokens:creator:" + wallet
	return fetchJSON[[]TokenFeedItem](ctx, g, ProviderPumpFun, CategoryTokens, key, u)
}

// LatestTrades returns the most recent swaps across all tokens.
func (g *Gateway) LatestTrades(ctx context.Context) ([]Trade, error) {
	u := g.cfg.PumpFunBaseURL + "/trades/latest"
	return fetchJSON[[]Trade](ctx, g, ProviderPumpFun, CategoryTrades, "trades:latest", u)
}

// TokenReplies returns the community thread for a token.
func (g *Gateway) TokenReplies(ctx context.Context, mint string) ([]Reply, error) {
	u := fmt.Sprintf("%s/replies/%s", g.cfg.PumpFunBaseURL, url.PathEscape(mint))
	return fetchJSON[[]Reply](ctx, g, ProviderPumpFun, CategoryReplies, "replies:"+mint, u)
}

// SolPrice returns the current SOL/USD quote.
func (g *Gateway) SolPrice(ctx context.Context) (float64, error) {
	u := g.cfg.PumpFunBaseURL + "/sol-price"
	resp, err := fetchJSON[solPriceResponse](ctx, g, ProviderPumpFun, CategoryPrice, "price:sol", u)
	if err != nil {
		return 0, err
	}
	return resp.SolPrice, nil
}

// SpotPrice returns a token's current USD price from its most liquid market
// pair.
func (g *Gateway) SpotPrice(ctx context.Context, mint string) (float64, error) {
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", g.cfg.DexScreenerBaseURL, url.PathEscape(mint))
	resp, err := fetchJSON[dexPairsResponse](ctx, g, ProviderDexScreener, CategoryPrice, "price:"+mint, u)
	if err != nil {
		return 0, err
	}
	if len(resp.Pairs) == 0 {
		return 0, fmt.Errorf("no market pairs for %s: %w", mint, ErrProviderUnavailable)
	}
	price, err := strconv.ParseFloat(resp.Pairs[0].PriceUSD, 64)
	if err != nil {
		return 0, fmt.Errorf("dexscreener: malformed price: %w", ErrProviderUnavailable)
	}
	return price, nil
}

// ListingPaid reports whether the token has an approved paid listing.
func (g *Gateway) ListingPaid(ctx context.Context, mint string) (bool, error) {
	u := fmt.Sprintf("%s/orders/v1/solana/%s", g.cfg.DexScreenerBaseURL, url.PathEscape(mint))
	orders, err := fetchJSON[[]listingOrder](ctx, g, ProviderDexScreener, CategoryListing, "listing:"+mint, u)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.Status == "approved" {
			return true, nil
		}
	}
	return false, nil
}

// Candles returns a token's OHLCV history.
func (g *Gateway) Candles(ctx context.Context, mint string) ([]Candle, error) {
	u := fmt.Sprintf("%s/candlesticks/%s", g.cfg.PumpFunBaseURL, url.PathEscape(mint))
	return fetchJSON[[]Candle](ctx, g, ProviderPumpFun, CategoryHistory, "history:"+mint, u)
}

// PriceHistory returns a token's close-price series, oldest first.
func (g *Gateway) PriceHistory(ctx context.Context, mint string) ([]PricePoint, error) {
	candles, err := g.Candles(ctx, mint)
	if err != nil {
		return nil, err
	}
	points := make([]PricePoint, 0, len(candles))
	for _, c := range candles {
		points = append(points, PricePoint{Timestamp: c.Timestamp, Price: c.Close})
	}
	return points, nil
}

// ClearCache drops every cached body. Quota state is not touched.
func (g *Gateway) ClearCache(ctx context.Context) {
	g.cache.Clear(ctx)
}
