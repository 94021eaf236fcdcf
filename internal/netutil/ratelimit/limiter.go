package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Quota describes a provider's request allowance inside a rolling window,
// e.g. 30 requests per 60s.
type Quota struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter provides per-provider rate limiting using token buckets sized so
// that no more than MaxRequests leave within any rolling Window. Exhausted
// quotas block callers in Wait rather than rejecting them.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	quotas   map[string]Quota
	fallback Quota
}

// NewLimiter creates a limiter with the given default quota for providers
// that have no explicit configuration.
func NewLimiter(fallback Quota) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		quotas:   make(map[string]Quota),
		fallback: fallback,
	}
}

// SetQuota configures the quota for a provider, replacing any existing bucket.
func (l *Limiter) SetQuota(provider string, q Quota) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.quotas[provider] = q
	l.limiters[provider] = newBucket(q)
}

func newBucket(q Quota) *rate.Limiter {
	perSecond := float64(q.MaxRequests) / q.Window.Seconds()
	return rate.NewLimiter(rate.Limit(perSecond), q.MaxRequests)
}

// getLimiter returns or creates the bucket for a provider.
func (l *Limiter) getLimiter(provider string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[provider]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[provider]; exists {
		return limiter
	}

	q, ok := l.quotas[provider]
	if !ok {
		q = l.fallback
	}
	limiter = newBucket(q)
	l.limiters[provider] = limiter
	return limiter
}

// Allow reports whether a request for the provider may proceed immediately.
func (l *Limiter) Allow(provider string) bool {
	return l.getLimiter(provider).Allow()
}

// Wait blocks until a request for the provider is allowed or the context is
// cancelled. Quota exhaustion is backpressure, never an error surface: the
// only error returned is the context's.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	return l.getLimiter(provider).Wait(ctx)
}

// Tokens returns the number of requests currently available for the provider.
func (l *Limiter) Tokens(provider string) float64 {
	return l.getLimiter(provider).Tokens()
}

// Reset recreates all buckets, restoring full quotas.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for provider := range l.limiters {
		q, ok := l.quotas[provider]
		if !ok {
			q = l.fallback
		}
		l.limiters[provider] = newBucket(q)
	}
}
