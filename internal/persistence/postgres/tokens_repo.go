package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
)

// tokensRepo implements TokenRepo for PostgreSQL.
type tokensRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTokensRepo creates a PostgreSQL token repository.
func NewTokensRepo(db *sqlx.DB, timeout time.Duration) persistence.TokenRepo {
	return &tokensRepo{db: db, timeout: timeout}
}

type tokenRow struct {
	Address      string    `db:"address"`
	Ticker       string    `db:"ticker"`
	Name         string    `db:"name"`
	Deployer     string    `db:"deployer"`
	LaunchedAt   time.Time `db:"launched_at"`
	InitialPrice float64   `db:"initial_price"`
	DeployerInfo []byte    `db:"deployer_info"`
	Metrics      []byte    `db:"metrics"`
	Score        float64   `db:"score"`
	Verified     bool      `db:"verified"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *tokenRow) toEntity() (persistence.Token, error) {
	t := persistence.Token{
		Address:      r.Address,
		Ticker:       r.Ticker,
		Name:         r.Name,
		Deployer:     r.Deployer,
		LaunchedAt:   r.LaunchedAt,
		InitialPrice: r.InitialPrice,
		Score:        r.Score,
		Verified:     r.Verified,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.DeployerInfo) > 0 {
		if err := json.Unmarshal(r.DeployerInfo, &t.DeployerInfo); err != nil {
			return t, fmt.Errorf("failed to unmarshal deployer info: %w", err)
		}
	}
	if len(r.Metrics) > 0 {
		if err := json.Unmarshal(r.Metrics, &t.Metrics); err != nil {
			return t, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}
	return t, nil
}

// Insert adds a newly observed token. Addresses are globally unique.
func (r *tokensRepo) Insert(ctx context.Context, t persistence.Token) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	deployerJSON, err := json.Marshal(t.DeployerInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal deployer info: %w", err)
	}
	metricsJSON, err := json.Marshal(t.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
		INSERT INTO tokens (address, ticker, name, deployer, launched_at, initial_price,
			deployer_info, metrics, score, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`

	_, err = r.db.ExecContext(ctx, query,
		t.Address, t.Ticker, t.Name, t.Deployer, t.LaunchedAt, t.InitialPrice,
		deployerJSON, metricsJSON, t.Score, t.Verified)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate token %s: %w", t.Address, err)
		}
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// GetByAddress looks up a token by its unique address.
func (r *tokensRepo) GetByAddress(ctx context.Context, address string) (persistence.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row tokenRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM tokens WHERE address = $1`, address)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Token{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Token{}, fmt.Errorf("failed to get token: %w", err)
	}
	return row.toEntity()
}

// List returns tokens passing the filter, newest metrics first.
func (r *tokensRepo) List(ctx context.Context, filter persistence.TokenFilter) ([]persistence.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conds := []string{"1=1"}
	args := []interface{}{}
	if filter.MinHolders > 0 {
		args = append(args, filter.MinHolders)
		conds = append(conds, fmt.Sprintf("(metrics->>'holders')::int >= $%d", len(args)))
	}
	if filter.MinLiquidity > 0 {
		args = append(args, filter.MinLiquidity)
		conds = append(conds, fmt.Sprintf("(metrics->>'liquiditySol')::float8 >= $%d", len(args)))
	}
	if filter.MinMarketCap > 0 {
		args = append(args, filter.MinMarketCap)
		conds = append(conds, fmt.Sprintf("(metrics->>'marketCap')::float8 >= $%d", len(args)))
	}
	if filter.OnlyVerified {
		conds = append(conds, "verified = true")
	}

	query := fmt.Sprintf(
		`SELECT * FROM tokens WHERE %s ORDER BY updated_at DESC`,
		strings.Join(conds, " AND "))

	var rows []tokenRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	tokens := make([]persistence.Token, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// UpdateSnapshot refreshes the score and metrics block of a token.
func (r *tokensRepo) UpdateSnapshot(ctx context.Context, address string, score float64, metrics persistence.TokenMetrics) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET score = $1, metrics = $2, updated_at = now() WHERE address = $3`,
		score, metricsJSON, address)
	if err != nil {
		return fmt.Errorf("failed to update token snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
