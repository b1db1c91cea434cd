// Package observability holds domain-level Prometheus metrics. HTTP
// transport metrics live in pkg/middleware; these counters track what
// the matching pipeline actually decided.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchesTotal counts submit outcomes by where the request landed.
	MatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_match_total",
		Help: "Ride request submit outcomes",
	}, []string{"outcome"})

	// CancellationsTotal counts cancel outcomes, including idempotent
	// repeats on already-terminal requests.
	CancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_cancellation_total",
		Help: "Ride request cancel outcomes",
	}, []string{"outcome"})

	// BatchPoolsCreated counts pools opened by the backfill matcher.
	BatchPoolsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pool_batch_pools_created_total",
		Help: "Pools created by the batch backfill matcher",
	})

	// ConcurrencyConflicts counts transactions aborted by lock or
	// serialization conflicts; these are retryable by the caller.
	ConcurrencyConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pool_concurrency_conflict_total",
		Help: "Transactions aborted by serialization or lock conflicts",
	})

	// DemandFactor publishes the demand factor currently applied to
	// surge pricing.
	DemandFactor = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pool_demand_factor",
		Help: "Current demand factor used by surge pricing",
	})
)
