// Package queue implements the durable job store (spec §4.D): a
// Redis-backed priority queue with exponential backoff retry, a
// dead-letter retention policy, batch enqueue, and fleet-wide rate
// limiting. Grounded on the rate limiter example's pipeline/ZSET
// idioms (github.com/redis/go-redis/v9) and the event-sourcing
// example's append-only state transitions.
package queue

import (
	"time"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"
)

// State is a Job's position in its lifecycle (spec §3 invariant I4: a
// job is in exactly one state at any instant).
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job is the unit of work moving through the queue.
type Job struct {
	JobID        string
	Payload      canonical.Record
	Priority     int
	AttemptsMade int
	CreatedAt    time.Time
	NextRunAt    time.Time
	State        State
}

// Stats mirrors spec §4.D's stats() observability contract.
type Stats struct {
	Waiting   int64
	Active    int64
	Completed int64
	Failed    int64
	Delayed   int64
	Total     int64
}

// Retry policy defaults (spec §4.D).
const (
	DefaultMaxAttempts  = 5
	DefaultBackoffBase  = 2000 * time.Millisecond
	CompletedRetention  = 24 * time.Hour
	CompletedKeepLast   = 1000
	FailedRetention     = 7 * 24 * time.Hour
	ConsumerRateLimit   = 100 // jobs/second/fleet
	WorkerConcurrency   = 5
)

// NextBackoff implements spec §4.D's exponential schedule:
// next_run_at = now + base * 2^(attempts_made-1).
func NextBackoff(attemptsMade int) time.Duration {
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	mult := int64(1) << uint(attemptsMade-1)
	return DefaultBackoffBase * time.Duration(mult)
}
