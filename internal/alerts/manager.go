// Package alerts implements one-shot price alerts. An alert leaves the
// active state exactly once; the repository's conditional update is the
// single gate for that transition, so overlapping sweeps cannot double-fire.
package alerts

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/notify"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/telemetry"
)

// equalsEpsilon is the tolerance for the equals condition. The comparison is
// strict: a difference of exactly the tolerance does not fire.
const equalsEpsilon = 1e-4

// defaultConcurrency bounds the price-fetch fan-out per sweep.
const defaultConcurrency = 4

// PriceSource supplies the current price of a token.
type PriceSource interface {
	SpotPrice(ctx context.Context, mint string) (float64, error)
}

// activeSet is the in-memory view of active alerts. It is a fast path only:
// membership here never decides a trigger, the conditional update does.
type activeSet struct {
	mu     sync.RWMutex
	alerts map[string]persistence.Alert
}

func newActiveSet() *activeSet {
	return &activeSet{alerts: make(map[string]persistence.Alert)}
}

func (s *activeSet) replace(alerts []persistence.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = make(map[string]persistence.Alert, len(alerts))
	for _, a := range alerts {
		s.alerts[a.ID] = a
	}
}

func (s *activeSet) add(a persistence.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
}

func (s *activeSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alerts, id)
}

func (s *activeSet) snapshot() []persistence.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	return out
}

// Manager owns the alert lifecycle: creation, the periodic check sweep and
// expiry.
type Manager struct {
	repo        persistence.AlertRepo
	prices      PriceSource
	notifier    notify.Notifier
	active      *activeSet
	concurrency int
}

// NewManager creates an alert manager. Call Reload before the first sweep to
// warm the in-memory set from storage.
func NewManager(repo persistence.AlertRepo, prices PriceSource, notifier notify.Notifier) *Manager {
	return &Manager{
		repo:        repo,
		prices:      prices,
		notifier:    notifier,
		active:      newActiveSet(),
		concurrency: defaultConcurrency,
	}
}

// Create registers a new active alert and returns it.
func (m *Manager) Create(ctx context.Context, userID, tokenAddress string, target float64, condition string) (persistence.Alert, error) {
	switch condition {
	case persistence.CondAbove, persistence.CondBelow, persistence.CondEquals:
	default:
		return persistence.Alert{}, fmt.Errorf("invalid alert condition %q", condition)
	}
	if target <= 0 {
		return persistence.Alert{}, fmt.Errorf("price target must be positive, got %f", target)
	}

	alert := persistence.Alert{
		ID:           uuid.NewString(),
		UserID:       userID,
		TokenAddress: tokenAddress,
		PriceTarget:  target,
		Condition:    condition,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.repo.Insert(ctx, alert); err != nil {
		return persistence.Alert{}, err
	}
	m.active.add(alert)

	log.Info().Str("alert_id", alert.ID).Str("token", tokenAddress).
		Str("condition", condition).Float64("target", target).
		Msg("Alert created")
	return alert, nil
}

// List returns a user's alerts, newest first.
func (m *Manager) List(ctx context.Context, userID string) ([]persistence.Alert, error) {
	return m.repo.ListByUser(ctx, userID)
}

// Remove deletes a user's alert. Unknown ids surface NotFound.
func (m *Manager) Remove(ctx context.Context, userID, id string) error {
	if err := m.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	m.active.remove(id)
	return nil
}

// Reload replaces the in-memory set with the active alerts in storage.
func (m *Manager) Reload(ctx context.Context) error {
	alerts, err := m.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload alerts: %w", err)
	}
	m.active.replace(alerts)
	return nil
}

// CheckAlerts evaluates every active alert against current prices. Prices
// are fetched once per token with bounded concurrency; a token whose price
// is unavailable skips its alerts until the next sweep.
func (m *Manager) CheckAlerts(ctx context.Context) error {
	alerts := m.active.snapshot()
	if len(alerts) == 0 {
		return nil
	}

	byToken := make(map[string][]persistence.Alert)
	for _, a := range alerts {
		byToken[a.TokenAddress] = append(byToken[a.TokenAddress], a)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for token, tokenAlerts := range byToken {
		token, tokenAlerts := token, tokenAlerts
		g.Go(func() error {
			price, err := m.prices.SpotPrice(ctx, token)
			if err != nil {
				telemetry.SweepItemFailures.WithLabelValues("alerts").Inc()
				log.Warn().Str("token", token).Err(err).
					Msg("Price unavailable, skipping alerts for token")
				return nil
			}
			for _, a := range tokenAlerts {
				if !conditionMet(a, price) {
					continue
				}
				if err := m.trigger(ctx, a, price); err != nil {
					telemetry.SweepItemFailures.WithLabelValues("alerts").Inc()
					log.Error().Str("alert_id", a.ID).Err(err).
						Msg("Failed to trigger alert")
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func conditionMet(a persistence.Alert, price float64) bool {
	switch a.Condition {
	case persistence.CondAbove:
		return price >= a.PriceTarget
	case persistence.CondBelow:
		return price <= a.PriceTarget
	case persistence.CondEquals:
		return math.Abs(price-a.PriceTarget) < equalsEpsilon
	default:
		return false
	}
}

// trigger persists the transition first, then drops the alert from the
// in-memory set, then notifies. If the conditional update reports the alert
// was already inactive, another sweep won the race and nothing happens here.
func (m *Manager) trigger(ctx context.Context, a persistence.Alert, price float64) error {
	did, err := m.repo.MarkTriggered(ctx, a.ID, time.Now().UTC(), price)
	if err != nil {
		return err
	}
	if !did {
		m.active.remove(a.ID)
		return nil
	}

	m.active.remove(a.ID)
	telemetry.AlertsTriggered.Inc()

	return m.notifier.Notify(ctx, notify.Event{
		Kind:         notify.KindAlert,
		UserID:       a.UserID,
		TokenAddress: a.TokenAddress,
		Title:        "Price alert triggered",
		Body:         fmt.Sprintf("%s is %s %.6f", a.TokenAddress, a.Condition, a.PriceTarget),
		Fields: map[string]interface{}{
			"price":  price,
			"target": a.PriceTarget,
		},
	})
}

// ExpireStale bulk-deactivates active alerts older than maxAge and reloads
// the in-memory set.
func (m *Manager) ExpireStale(ctx context.Context, maxAge time.Duration) error {
	n, err := m.repo.DeactivateOlderThan(ctx, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("expired", n).Msg("Expired stale alerts")
	}
	return m.Reload(ctx)
}
