// Package metrics exposes the Prometheus counters and histograms the
// pipeline emits: jobs enqueued and their outcomes, lock wait time and
// contention, upsert latency, poll cycle outcomes, and circuit breaker
// state. Queue depth is not a metric here; it is reported by the queue's
// Stats. Grounded on the eventstore example's prometheus
// client_golang wiring and the distributed-lock reference's named
// metrics (MetricLockWaitTime, MetricLockContention, ...).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_sync_lock_wait_seconds",
		Help:    "Time spent acquiring a per-product distributed lock.",
		Buckets: prometheus.DefBuckets,
	}, []string{"product_id"})

	LockContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sync_lock_contention_total",
		Help: "Number of lock acquisitions that had to retry at least once.",
	})

	LockUnavailableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sync_lock_unavailable_total",
		Help: "Number of lock acquisitions that gave up (retries exhausted or context canceled).",
	})

	UpsertDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_sync_upsert_duration_seconds",
		Help:    "Duration of a repository upsert transaction.",
		Buckets: prometheus.DefBuckets,
	})

	JobsEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_sync_jobs_enqueued_total",
		Help: "Jobs added to the queue, by source.",
	}, []string{"source"})

	JobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_sync_jobs_completed_total",
		Help: "Job outcomes reported by the queue and worker (completed, acked, failed, retry, stalled).",
	}, []string{"outcome"})

	PollCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_sync_poll_cycles_total",
		Help: "Polling cycles, by outcome (ok, upstream_error, circuit_open, skipped).",
	}, []string{"outcome"})

	CircuitBreakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inventory_sync_circuit_breaker_open",
		Help: "1 if the marketplace B polling circuit breaker is open, else 0.",
	})
)
