package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist. Callers
// decide whether that means create-on-demand (portfolios, tokens) or a
// reportable failure (removing an unknown alert).
var ErrNotFound = errors.New("entity not found")

// TokenFilter narrows the candidate pool for ranking.
type TokenFilter struct {
	MinHolders   int
	MinLiquidity float64
	MinMarketCap float64
	OnlyVerified bool
}

// TokenRepo stores observed token launches keyed by address.
type TokenRepo interface {
	Insert(ctx context.Context, t Token) error
	GetByAddress(ctx context.Context, address string) (Token, error)
	List(ctx context.Context, filter TokenFilter) ([]Token, error)
	UpdateSnapshot(ctx context.Context, address string, score float64, metrics TokenMetrics) error
}

// DeployerRepo stores deployer profiles keyed by address.
type DeployerRepo interface {
	Insert(ctx context.Context, p DeployerProfile) error
	GetByAddress(ctx context.Context, address string) (DeployerProfile, error)
	RecordLaunch(ctx context.Context, address string, successful bool, at time.Time) error
}

// AlertRepo stores one-shot price alerts.
type AlertRepo interface {
	Insert(ctx context.Context, a Alert) error
	ListActive(ctx context.Context) ([]Alert, error)
	ListByUser(ctx context.Context, userID string) ([]Alert, error)

	// MarkTriggered flips an alert inactive and records the trigger, but
	// only if it is still active. It reports whether this call performed
	// the transition, which makes triggering idempotent across
	// overlapping sweeps.
	MarkTriggered(ctx context.Context, id string, at time.Time, price float64) (bool, error)

	// DeactivateOlderThan bulk-expires active alerts created before the
	// cutoff, without recording a trigger. Returns the number expired.
	DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Delete(ctx context.Context, userID, id string) error
}

// PortfolioRepo stores one portfolio per user.
type PortfolioRepo interface {
	GetByUser(ctx context.Context, userID string) (Portfolio, error)
	ListAll(ctx context.Context) ([]Portfolio, error)
	UpsertHoldings(ctx context.Context, userID string, holdings []Holding) error

	// ReplaceComputed swaps in the derived performance and risk blocks in
	// a single write so readers see either the old pair or the new pair.
	ReplaceComputed(ctx context.Context, userID string, perf Performance, risk Risk) error
}

// WalletRepo stores wallets users follow.
type WalletRepo interface {
	Insert(ctx context.Context, w TrackedWallet) error
	Delete(ctx context.Context, userID, address string) error
	ListAll(ctx context.Context) ([]TrackedWallet, error)
	UpdateStats(ctx context.Context, userID, address string, stats WalletStats) error
}

// WalletStats is the enrichment written back by the wallet analysis sweep.
type WalletStats struct {
	LastTradeAt      *time.Time
	RealizedPnLSOL   float64
	TotalTrades      int
	SuccessfulTrades int
}
