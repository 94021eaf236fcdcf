// Package cache provides the TTL key-value store used by the data gateway.
// Two backends exist: an in-process store for tests and single-node runs, and
// a Redis-backed store for shared deployments.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key-value store. Lookup failures and backend errors are
// reported as misses: a cold cache is always a valid state, so callers only
// ever distinguish hit from miss.
type Store interface {
	// Get returns the value stored under key if present and not expired.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Clear invalidates every cached entry unconditionally.
	Clear(ctx context.Context)
}
