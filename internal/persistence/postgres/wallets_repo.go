package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
)

// walletsRepo implements WalletRepo for PostgreSQL.
type walletsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewWalletsRepo creates a PostgreSQL tracked-wallet repository.
func NewWalletsRepo(db *sqlx.DB, timeout time.Duration) persistence.WalletRepo {
	return &walletsRepo{db: db, timeout: timeout}
}

// Insert starts tracking a wallet for a user.
func (r *walletsRepo) Insert(ctx context.Context, w persistence.TrackedWallet) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO tracked_wallets (user_id, address, last_trade_at, realized_pnl_sol,
			total_trades, successful_trades, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`

	_, err := r.db.ExecContext(ctx, query,
		w.UserID, w.Address, w.LastTradeAt, w.RealizedPnLSOL, w.TotalTrades, w.SuccessfulTrades)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("wallet %s already tracked: %w", w.Address, err)
		}
		return fmt.Errorf("failed to insert tracked wallet: %w", err)
	}
	return nil
}

// Delete stops tracking a wallet. Unknown wallets surface NotFound.
func (r *walletsRepo) Delete(ctx context.Context, userID, address string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tracked_wallets WHERE user_id = $1 AND address = $2`, userID, address)
	if err != nil {
		return fmt.Errorf("failed to delete tracked wallet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListAll returns every tracked wallet for the enrichment sweep.
func (r *walletsRepo) ListAll(ctx context.Context) ([]persistence.TrackedWallet, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var wallets []persistence.TrackedWallet
	if err := r.db.SelectContext(ctx, &wallets, `SELECT * FROM tracked_wallets ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to list tracked wallets: %w", err)
	}
	return wallets, nil
}

// UpdateStats writes back the enrichment computed by the wallet sweep.
func (r *walletsRepo) UpdateStats(ctx context.Context, userID, address string, stats persistence.WalletStats) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE tracked_wallets SET
			last_trade_at = $1,
			realized_pnl_sol = $2,
			total_trades = $3,
			successful_trades = $4
		WHERE user_id = $5 AND address = $6`

	res, err := r.db.ExecContext(ctx, query,
		stats.LastTradeAt, stats.RealizedPnLSOL, stats.TotalTrades, stats.SuccessfulTrades,
		userID, address)
	if err != nil {
		return fmt.Errorf("failed to update wallet stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
