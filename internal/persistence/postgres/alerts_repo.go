package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
)

// alertsRepo implements AlertRepo for PostgreSQL.
type alertsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAlertsRepo creates a PostgreSQL alert repository.
func NewAlertsRepo(db *sqlx.DB, timeout time.Duration) persistence.AlertRepo {
	return &alertsRepo{db: db, timeout: timeout}
}

// Insert stores a new active alert.
func (r *alertsRepo) Insert(ctx context.Context, a persistence.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO alerts (id, user_id, token_address, price_target, condition,
			active, created_at, notifications)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.TokenAddress, a.PriceTarget, a.Condition,
		a.Active, a.CreatedAt, a.Notifications)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// ListActive returns every alert still in the active state. The alert
// manager reloads its in-memory set from this query.
func (r *alertsRepo) ListActive(ctx context.Context) ([]persistence.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var alerts []persistence.Alert
	err := r.db.SelectContext(ctx, &alerts,
		`SELECT * FROM alerts WHERE active = true ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}

// ListByUser returns a user's alerts, newest first.
func (r *alertsRepo) ListByUser(ctx context.Context, userID string) ([]persistence.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var alerts []persistence.Alert
	err := r.db.SelectContext(ctx, &alerts,
		`SELECT * FROM alerts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for user: %w", err)
	}
	return alerts, nil
}

// MarkTriggered records the trigger and deactivates the alert in one
// conditional update. The WHERE active = true guard means exactly one of
// any number of concurrent callers observes the transition.
func (r *alertsRepo) MarkTriggered(ctx context.Context, id string, at time.Time, price float64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE alerts SET
			active = false,
			triggered_at = $1,
			trigger_price = $2,
			notifications = notifications + 1
		WHERE id = $3 AND active = true`

	res, err := r.db.ExecContext(ctx, query, at, price, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark alert triggered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// DeactivateOlderThan bulk-expires stale active alerts without recording a
// trigger.
func (r *alertsRepo) DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET active = false WHERE active = true AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// Delete removes an alert owned by the user. Unknown ids surface NotFound.
func (r *alertsRepo) Delete(ctx context.Context, userID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
