package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
)

// deployersRepo implements DeployerRepo for PostgreSQL.
type deployersRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewDeployersRepo creates a PostgreSQL deployer repository.
func NewDeployersRepo(db *sqlx.DB, timeout time.Duration) persistence.DeployerRepo {
	return &deployersRepo{db: db, timeout: timeout}
}

// Insert creates a deployer profile on first sighting.
func (r *deployersRepo) Insert(ctx context.Context, p persistence.DeployerProfile) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO deployers (address, reputation, success_rate, total_launches,
			successful_launches, total_value_sol, whitelisted, last_activity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`

	_, err := r.db.ExecContext(ctx, query,
		p.Address, p.Reputation, p.SuccessRate, p.TotalLaunches,
		p.SuccessfulLaunches, p.TotalValueSOL, p.Whitelisted, p.LastActivity)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate deployer %s: %w", p.Address, err)
		}
		return fmt.Errorf("failed to insert deployer: %w", err)
	}
	return nil
}

// GetByAddress looks up a deployer profile by its unique address.
func (r *deployersRepo) GetByAddress(ctx context.Context, address string) (persistence.DeployerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var p persistence.DeployerProfile
	err := r.db.GetContext(ctx, &p, `SELECT * FROM deployers WHERE address = $1`, address)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.DeployerProfile{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.DeployerProfile{}, fmt.Errorf("failed to get deployer: %w", err)
	}
	return p, nil
}

// RecordLaunch increments launch counters for a deployer and refreshes the
// derived success rate in the same statement.
func (r *deployersRepo) RecordLaunch(ctx context.Context, address string, successful bool, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	succ := 0
	if successful {
		succ = 1
	}

	query := `
		UPDATE deployers SET
			total_launches = total_launches + 1,
			successful_launches = successful_launches + $1,
			success_rate = (successful_launches + $1)::float8 / (total_launches + 1),
			last_activity = $2
		WHERE address = $3`

	res, err := r.db.ExecContext(ctx, query, succ, at, address)
	if err != nil {
		return fmt.Errorf("failed to record launch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
