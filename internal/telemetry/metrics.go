// Package telemetry registers the process's Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts gateway cache hits per data category.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenwatch_cache_hits_total",
		Help: "Gateway cache hits by data category",
	}, []string{"category"})

	// CacheMisses counts gateway cache misses per data category.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenwatch_cache_misses_total",
		Help: "Gateway cache misses by data category",
	}, []string{"category"})

	// ProviderRequests counts upstream requests by provider and outcome.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenwatch_provider_requests_total",
		Help: "Upstream provider requests by provider and outcome",
	}, []string{"provider", "outcome"})

	// QuotaWaitSeconds observes time spent blocked on provider quotas.
	QuotaWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokenwatch_quota_wait_seconds",
		Help:    "Time spent waiting for provider quota capacity",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"provider"})

	// SweepItemFailures counts per-item failures inside periodic sweeps.
	SweepItemFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenwatch_sweep_item_failures_total",
		Help: "Per-item failures isolated inside periodic sweeps",
	}, []string{"sweep"})

	// AlertsTriggered counts one-shot alert triggers.
	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenwatch_alerts_triggered_total",
		Help: "Price alerts transitioned from active to triggered",
	})

	// LaunchesNotified counts launches that crossed the notable threshold.
	LaunchesNotified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenwatch_launches_notified_total",
		Help: "New launches scored above the notification threshold",
	})
)
