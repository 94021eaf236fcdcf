package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
)

// portfoliosRepo implements PortfolioRepo for PostgreSQL.
type portfoliosRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPortfoliosRepo creates a PostgreSQL portfolio repository.
func NewPortfoliosRepo(db *sqlx.DB, timeout time.Duration) persistence.PortfolioRepo {
	return &portfoliosRepo{db: db, timeout: timeout}
}

type portfolioRow struct {
	UserID      string    `db:"user_id"`
	Holdings    []byte    `db:"holdings"`
	Performance []byte    `db:"performance"`
	Risk        []byte    `db:"risk"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *portfolioRow) toEntity() (persistence.Portfolio, error) {
	p := persistence.Portfolio{UserID: r.UserID, UpdatedAt: r.UpdatedAt}
	if len(r.Holdings) > 0 {
		if err := json.Unmarshal(r.Holdings, &p.Holdings); err != nil {
			return p, fmt.Errorf("failed to unmarshal holdings: %w", err)
		}
	}
	if len(r.Performance) > 0 {
		if err := json.Unmarshal(r.Performance, &p.Performance); err != nil {
			return p, fmt.Errorf("failed to unmarshal performance: %w", err)
		}
	}
	if len(r.Risk) > 0 {
		if err := json.Unmarshal(r.Risk, &p.Risk); err != nil {
			return p, fmt.Errorf("failed to unmarshal risk: %w", err)
		}
	}
	return p, nil
}

// GetByUser returns the user's portfolio or NotFound.
func (r *portfoliosRepo) GetByUser(ctx context.Context, userID string) (persistence.Portfolio, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row portfolioRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM portfolios WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Portfolio{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Portfolio{}, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return row.toEntity()
}

// ListAll returns every stored portfolio for the batch recompute sweep.
func (r *portfoliosRepo) ListAll(ctx context.Context) ([]persistence.Portfolio, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []portfolioRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM portfolios ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}

	portfolios := make([]persistence.Portfolio, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, nil
}

// UpsertHoldings replaces the holdings list, creating the portfolio on
// first use.
func (r *portfoliosRepo) UpsertHoldings(ctx context.Context, userID string, holdings []persistence.Holding) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	holdingsJSON, err := json.Marshal(holdings)
	if err != nil {
		return fmt.Errorf("failed to marshal holdings: %w", err)
	}

	query := `
		INSERT INTO portfolios (user_id, holdings, performance, risk, updated_at)
		VALUES ($1, $2, '{}', '{}', now())
		ON CONFLICT (user_id) DO UPDATE SET holdings = $2, updated_at = now()`

	if _, err := r.db.ExecContext(ctx, query, userID, holdingsJSON); err != nil {
		return fmt.Errorf("failed to upsert holdings: %w", err)
	}
	return nil
}

// ReplaceComputed writes both derived blocks in a single UPDATE, so a
// concurrent reader sees either the previous pair or the new pair.
func (r *portfoliosRepo) ReplaceComputed(ctx context.Context, userID string, perf persistence.Performance, risk persistence.Risk) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	perfJSON, err := json.Marshal(perf)
	if err != nil {
		return fmt.Errorf("failed to marshal performance: %w", err)
	}
	riskJSON, err := json.Marshal(risk)
	if err != nil {
		return fmt.Errorf("failed to marshal risk: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE portfolios SET performance = $1, risk = $2, updated_at = now() WHERE user_id = $3`,
		perfJSON, riskJSON, userID)
	if err != nil {
		return fmt.Errorf("failed to replace computed blocks: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
