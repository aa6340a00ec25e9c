// Package worker runs the dequeue -> lock -> upsert -> ack/fail loop
// (spec §4.F). The shutdown/signal handling is grounded on the
// xdotli inventory-consumer reference's signal.Notify pattern,
// corrected for its missing per-product lock, unbounded goroutines,
// and absent retry/DLQ path.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/errs"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/lock"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/logging"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/metrics"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/queue"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/repository"
)

// Worker pulls jobs off the queue with bounded concurrency
// (spec §4.D: "each worker process runs up to 5 jobs in parallel").
type Worker struct {
	queue      *queue.Manager
	locks      *lock.Manager
	repository repository.Repository
	events     *queue.Events
	limiter    *queue.DispatchLimiter
	log        *logging.Logger

	concurrency int
	pollDelay   time.Duration

	wg      sync.WaitGroup
	sem     chan struct{}
	stop    chan struct{}
	stopped sync.Once
}

func New(q *queue.Manager, locks *lock.Manager, repo repository.Repository, events *queue.Events, limiter *queue.DispatchLimiter) *Worker {
	return &Worker{
		queue:       q,
		locks:       locks,
		repository:  repo,
		events:      events,
		limiter:     limiter,
		log:         logging.New("worker"),
		concurrency: queue.WorkerConcurrency,
		pollDelay:   250 * time.Millisecond,
		sem:         make(chan struct{}, queue.WorkerConcurrency),
		stop:        make(chan struct{}),
	}
}

// Run dequeues jobs until ctx is canceled or Shutdown is called,
// dispatching each into its own goroutine bounded by the concurrency
// semaphore.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.dispatchOne(ctx)
		}
	}
}

func (w *Worker) dispatchOne(ctx context.Context) {
	select {
	case w.sem <- struct{}{}:
	default:
		return // already running concurrency jobs in parallel
	}

	allowed, err := w.limiter.Allow(ctx)
	if err != nil {
		w.log.Error("rate limit check failed", err, nil)
		<-w.sem
		return
	}
	if !allowed {
		<-w.sem
		return // fleet-wide dispatch rate exhausted (spec §4.D)
	}

	job, err := w.queue.Dequeue(ctx)
	if err != nil {
		w.log.Error("dequeue failed", err, nil)
		<-w.sem
		return
	}
	if job == nil {
		<-w.sem
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.process(ctx, job)
	}()
}

// process implements spec §4.F's five steps.
func (w *Worker) process(ctx context.Context, job *queue.Job) {
	logFields := logging.Fields{"job_id": job.JobID, "product_id": job.Payload.ProductID}

	if err := job.Payload.Validate(); err != nil {
		w.log.Error("permanent validation failure", err, logFields)
		w.events.Publish(queue.Event{JobID: job.JobID, Status: "failed"})
		if failErr := w.queue.Fail(ctx, job, errs.Wrap(errs.KindBadPayload, "validate payload", err)); failErr != nil {
			w.log.Error("failed to mark job failed", failErr, logFields)
		}
		return
	}

	w.events.Publish(queue.Event{JobID: job.JobID, Progress: 10, Status: "progress"})

	var upsertErr error
	lockErr := w.locks.WithLock(ctx, job.Payload.ProductID, nil, func(ctx context.Context) error {
		start := time.Now()
		row, err := w.repository.Upsert(ctx, job.Payload)
		metrics.UpsertDurationSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			upsertErr = err
			return err
		}
		w.events.Publish(queue.Event{JobID: job.JobID, Progress: 90, Status: "progress"})
		w.log.Info("upsert committed", logging.Fields{"job_id": job.JobID, "product_id": row.ProductID, "quantity": row.Quantity})
		return nil
	})

	if lockErr != nil {
		cause := lockErr
		if upsertErr != nil {
			cause = upsertErr
		}
		w.handleFailure(ctx, job, cause, logFields)
		return
	}

	if err := w.queue.Ack(ctx, job.JobID); err != nil {
		w.log.Error("ack failed", err, logFields)
		return
	}
	w.events.Publish(queue.Event{JobID: job.JobID, Progress: 100, Status: "completed"})
	metrics.JobsCompletedTotal.WithLabelValues("acked").Inc()
}

// handleFailure routes TransientStorage/LockUnavailable back to the
// queue for retry, and PermanentStorage/BadPayload to the dead-letter
// path (spec §4.F steps 3-4).
func (w *Worker) handleFailure(ctx context.Context, job *queue.Job, cause error, fields logging.Fields) {
	w.log.Error("job failed", cause, fields)
	w.events.Publish(queue.Event{JobID: job.JobID, Status: "failed"})
	if err := w.queue.Fail(ctx, job, cause); err != nil {
		w.log.Error("failed to record job failure", err, fields)
	}
}

// Shutdown stops accepting new jobs and waits up to grace for
// in-flight jobs to finish (spec §4.F: "stop accepting new jobs, wait
// for in-flight jobs to complete or time out, then exit").
func (w *Worker) Shutdown(grace time.Duration) {
	w.stopped.Do(func() { close(w.stop) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info("all in-flight jobs drained", nil)
	case <-time.After(grace):
		w.log.Info("shutdown grace period elapsed with jobs still in flight", nil)
	}
}
