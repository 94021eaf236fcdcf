package recommend

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/scoring"
)

type memTokenRepo struct {
	mu     sync.Mutex
	tokens []persistence.Token
}

func (r *memTokenRepo) Insert(_ context.Context, t persistence.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, t)
	return nil
}

func (r *memTokenRepo) GetByAddress(_ context.Context, address string) (persistence.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Address == address {
			return t, nil
		}
	}
	return persistence.Token{}, persistence.ErrNotFound
}

func (r *memTokenRepo) List(_ context.Context, filter persistence.TokenFilter) ([]persistence.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []persistence.Token
	for _, t := range r.tokens {
		if t.Metrics.Holders < filter.MinHolders {
			continue
		}
		if t.Metrics.LiquiditySOL < filter.MinLiquidity {
			continue
		}
		if t.Metrics.MarketCap < filter.MinMarketCap {
			continue
		}
		if filter.OnlyVerified && !t.Verified {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memTokenRepo) UpdateSnapshot(context.Context, string, float64, persistence.TokenMetrics) error {
	return nil
}

func newTestEngine(t *testing.T, repo *memTokenRepo) *Engine {
	t.Helper()
	scorer, err := scoring.NewEngine(scoring.RecommendationWeights())
	require.NoError(t, err)
	return New(repo, scorer)
}

func token(address string, liquiditySOL float64, holders int, observedAt time.Time) persistence.Token {
	return persistence.Token{
		Address: address,
		Metrics: persistence.TokenMetrics{
			LiquiditySOL: liquiditySOL,
			Holders:      holders,
			ObservedAt:   observedAt,
		},
	}
}

func TestTop_OrdersByScoreDescending(t *testing.T) {
	repo := &memTokenRepo{}
	now := time.Now()
	require.NoError(t, repo.Insert(context.Background(), token("weak", 1, 10, now)))
	require.NoError(t, repo.Insert(context.Background(), token("strong", 50, 200, now)))

	recs, err := newTestEngine(t, repo).Top(context.Background(), persistence.TokenFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "strong", recs[0].Token.Address)
	assert.Greater(t, recs[0].Score, recs[1].Score)
}

func TestTop_TiesRankNewerObservationFirst(t *testing.T) {
	repo := &memTokenRepo{}
	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now()
	require.NoError(t, repo.Insert(context.Background(), token("stale", 10, 100, t1)))
	require.NoError(t, repo.Insert(context.Background(), token("fresh", 10, 100, t2)))

	recs, err := newTestEngine(t, repo).Top(context.Background(), persistence.TokenFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, recs[0].Score, recs[1].Score)
	assert.Equal(t, "fresh", recs[0].Token.Address)
}

func TestTop_CapsAtTen(t *testing.T) {
	repo := &memTokenRepo{}
	for i := 0; i < 15; i++ {
		require.NoError(t, repo.Insert(context.Background(),
			token(fmt.Sprintf("mint%d", i), float64(i), i*10, time.Now())))
	}

	recs, err := newTestEngine(t, repo).Top(context.Background(), persistence.TokenFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 10)
}

func TestTop_AppliesFilter(t *testing.T) {
	repo := &memTokenRepo{}
	now := time.Now()
	require.NoError(t, repo.Insert(context.Background(), token("thin", 1, 5, now)))
	require.NoError(t, repo.Insert(context.Background(), token("liquid", 20, 150, now)))

	recs, err := newTestEngine(t, repo).Top(context.Background(), persistence.TokenFilter{
		MinHolders:   50,
		MinLiquidity: 5,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "liquid", recs[0].Token.Address)
}

func TestTop_EmptyPoolIsEmptyShortlist(t *testing.T) {
	recs, err := newTestEngine(t, &memTokenRepo{}).Top(context.Background(), persistence.TokenFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestTop_ExposesScoreBreakdown(t *testing.T) {
	repo := &memTokenRepo{}
	require.NoError(t, repo.Insert(context.Background(), token("mintA", 10, 100, time.Now())))

	recs, err := newTestEngine(t, repo).Top(context.Background(), persistence.TokenFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Parts, "deployer")
	assert.Contains(t, recs[0].Parts, "liquidity")
	assert.Contains(t, recs[0].Parts, "holders")
}
