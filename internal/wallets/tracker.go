// Package wallets lets users follow trader wallets. A periodic sweep
// enriches each tracked wallet with stats derived from the trade feed.
package wallets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/gateway"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/telemetry"
)

// TradeFeed is the slice of the data gateway the tracker consumes.
type TradeFeed interface {
	LatestTrades(ctx context.Context) ([]gateway.Trade, error)
}

// Tracker manages tracked wallets and their enrichment.
type Tracker struct {
	repo persistence.WalletRepo
	feed TradeFeed
}

// NewTracker creates a tracker over the given store and trade feed.
func NewTracker(repo persistence.WalletRepo, feed TradeFeed) *Tracker {
	return &Tracker{repo: repo, feed: feed}
}

// Track starts following a wallet for a user.
func (t *Tracker) Track(ctx context.Context, userID, address string) (persistence.TrackedWallet, error) {
	if address == "" {
		return persistence.TrackedWallet{}, errors.New("wallet address required")
	}
	wallet := persistence.TrackedWallet{
		UserID:    userID,
		Address:   address,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.repo.Insert(ctx, wallet); err != nil {
		return persistence.TrackedWallet{}, err
	}
	log.Info().Str("user_id", userID).Str("wallet", address).Msg("Wallet tracked")
	return wallet, nil
}

// Untrack stops following a wallet. Unknown wallets surface NotFound.
func (t *Tracker) Untrack(ctx context.Context, userID, address string) error {
	return t.repo.Delete(ctx, userID, address)
}

// List returns every tracked wallet.
func (t *Tracker) List(ctx context.Context) ([]persistence.TrackedWallet, error) {
	return t.repo.ListAll(ctx)
}

// EnrichAll folds the latest trade feed into each tracked wallet's stats.
// Counters accumulate on top of the stored values; sells count toward
// realized PnL, buys against it. One wallet's failure never blocks the rest.
func (t *Tracker) EnrichAll(ctx context.Context) error {
	wallets, err := t.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		return nil
	}

	trades, err := t.feed.LatestTrades(ctx)
	if err != nil {
		return fmt.Errorf("trade feed unavailable: %w", err)
	}

	byTrader := make(map[string][]gateway.Trade)
	for _, trade := range trades {
		byTrader[trade.User] = append(byTrader[trade.User], trade)
	}

	for _, wallet := range wallets {
		walletTrades := byTrader[wallet.Address]
		if len(walletTrades) == 0 {
			continue
		}

		stats := persistence.WalletStats{
			LastTradeAt:      wallet.LastTradeAt,
			RealizedPnLSOL:   wallet.RealizedPnLSOL,
			TotalTrades:      wallet.TotalTrades,
			SuccessfulTrades: wallet.SuccessfulTrades,
		}
		prevLast := wallet.LastTradeAt
		for _, trade := range walletTrades {
			// Trades already folded in a previous sweep are skipped by
			// timestamp.
			at := time.Unix(trade.Timestamp, 0).UTC()
			if prevLast != nil && !at.After(*prevLast) {
				continue
			}
			stats.TotalTrades++
			if trade.IsBuy {
				stats.RealizedPnLSOL -= trade.SolAmount
			} else {
				stats.RealizedPnLSOL += trade.SolAmount
				stats.SuccessfulTrades++
			}
			if stats.LastTradeAt == nil || at.After(*stats.LastTradeAt) {
				stats.LastTradeAt = &at
			}
		}

		if err := t.repo.UpdateStats(ctx, wallet.UserID, wallet.Address, stats); err != nil {
			telemetry.SweepItemFailures.WithLabelValues("wallets").Inc()
			log.Warn().Str("wallet", wallet.Address).Err(err).
				Msg("Failed to update wallet stats")
		}
	}
	return nil
}
