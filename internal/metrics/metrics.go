// Package metrics exposes Prometheus counters for the transaction engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsCreatedTotal counts committed transactions by type.
	TransactionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plata_transactions_created_total",
		Help: "Number of committed transactions by type.",
	}, []string{"type"})

	// TransactionsRejectedTotal counts rejected intents by error code.
	TransactionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plata_transactions_rejected_total",
		Help: "Number of rejected transaction intents by error code.",
	}, []string{"code"})

	// PendingEnqueuedTotal counts intents deferred because a rate was unavailable.
	PendingEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plata_pending_enqueued_total",
		Help: "Number of transaction intents queued for deferred completion.",
	})

	// PendingResolvedTotal counts pending entries that materialized into transactions.
	PendingResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plata_pending_resolved_total",
		Help: "Number of pending transactions resolved by the retry worker.",
	})

	// PendingRetriesTotal counts retry attempts that left an entry pending.
	PendingRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plata_pending_retries_total",
		Help: "Number of retry attempts that did not resolve a pending transaction.",
	})

	// RateFetchesTotal counts provider fetches by source and outcome.
	RateFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plata_rate_fetches_total",
		Help: "Number of exchange rate provider fetches by source and outcome.",
	}, []string{"source", "outcome"})

	// RateCacheHitsTotal counts rate lookups served from a cache tier.
	RateCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plata_rate_cache_hits_total",
		Help: "Number of exchange rate lookups served from cache by tier.",
	}, []string{"tier"})
)
