package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/errs"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/metrics"
)

const (
	readyKey     = "queue:ready"
	delayedKey   = "queue:delayed"
	activeKey    = "queue:active"
	completedKey = "queue:completed"
	failedKey    = "queue:failed"

	stallTimeout = 60 * time.Second
)

func jobKey(jobID string) string { return "queue:job:" + jobID }

// Manager is the Redis-backed durable job store described in spec §4.D.
type Manager struct {
	redis *redis.Client
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{redis: client}
}

// priorityScore orders the ready set by priority descending, then
// created_at ascending for ties — higher priority numbers sort first.
func priorityScore(priority int, createdAt time.Time) float64 {
	return float64(-priority)*1e15 + float64(createdAt.UnixMilli())
}

// NewJobID follows spec §3's suggested scheme: deterministic enough to
// correlate in logs, not a dedup key (duplicates are tolerated because
// upsert is idempotent).
func NewJobID(source canonical.Source, productID string) string {
	return fmt.Sprintf("%s-%s-%d-%s", source, productID, time.Now().UnixNano(), uuid.NewString()[:8])
}

// addScript atomically writes the job hash and adds it to the ready
// ZSET so a racing dequeue can never observe one without the other.
const addScript = `
redis.call("hset", KEYS[1], unpack(ARGV, 3, #ARGV))
redis.call("zadd", KEYS[2], ARGV[1], ARGV[2])
return 1
`

// Add enqueues a single job (spec §4.D).
func (m *Manager) Add(ctx context.Context, record canonical.Record, priority int) (*Job, error) {
	job := &Job{
		JobID:     NewJobID(record.Source, record.ProductID),
		Payload:   record,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
		NextRunAt: time.Now().UTC(),
		State:     StateWaiting,
	}
	if err := m.writeJob(ctx, job); err != nil {
		return nil, err
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(string(record.Source)).Inc()
	return job, nil
}

// AddBatch atomically enqueues many jobs via a single pipeline (spec
// §4.D add_batch).
func (m *Manager) AddBatch(ctx context.Context, records []canonical.Record, priority int) ([]*Job, error) {
	jobs := make([]*Job, 0, len(records))
	pipe := m.redis.TxPipeline()

	for _, record := range records {
		job := &Job{
			JobID:     NewJobID(record.Source, record.ProductID),
			Payload:   record,
			Priority:  priority,
			CreatedAt: time.Now().UTC(),
			NextRunAt: time.Now().UTC(),
			State:     StateWaiting,
		}
		fields, err := jobFields(job)
		if err != nil {
			return nil, err
		}
		pipe.HSet(ctx, jobKey(job.JobID), fields)
		pipe.ZAdd(ctx, readyKey, redis.Z{Score: priorityScore(job.Priority, job.CreatedAt), Member: job.JobID})
		jobs = append(jobs, job)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errs.Wrap(errs.KindQueueUnavailable, "add_batch", err)
	}
	for _, record := range records {
		metrics.JobsEnqueuedTotal.WithLabelValues(string(record.Source)).Inc()
	}
	return jobs, nil
}

func (m *Manager) writeJob(ctx context.Context, job *Job) error {
	fields, err := jobFields(job)
	if err != nil {
		return err
	}
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, priorityScore(job.Priority, job.CreatedAt), job.JobID)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if err := m.redis.Eval(ctx, addScript, []string{jobKey(job.JobID), readyKey}, args...).Err(); err != nil {
		return errs.Wrap(errs.KindQueueUnavailable, "add job", err)
	}
	return nil
}

func jobFields(job *Job) (map[string]interface{}, error) {
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, errs.Wrap(errs.KindBadPayload, "marshal job payload", err)
	}
	return map[string]interface{}{
		"payload":       string(payloadJSON),
		"priority":      job.Priority,
		"attempts_made": job.AttemptsMade,
		"created_at":    job.CreatedAt.UnixMilli(),
		"next_run_at":   job.NextRunAt.UnixMilli(),
		"state":         string(job.State),
	}, nil
}

// dequeueScript pops the highest-priority ready job and moves it into
// the active set with a stall deadline, atomically so two workers can
// never receive the same job.
const dequeueScript = `
local jobID = redis.call("zrange", KEYS[1], 0, 0)[1]
if not jobID then
	return nil
end
redis.call("zrem", KEYS[1], jobID)
redis.call("zadd", KEYS[2], ARGV[1], jobID)
redis.call("hset", KEYS[3] .. jobID, "state", "active")
return jobID
`

// Dequeue pops the next ready job, if any, marking it active with a
// stall deadline (spec §4.D at-least-once: a crashed worker's job
// becomes eligible again after stallTimeout).
func (m *Manager) Dequeue(ctx context.Context) (*Job, error) {
	m.promoteDelayed(ctx)
	m.requeueStalled(ctx)

	deadline := time.Now().Add(stallTimeout).UnixMilli()
	res, err := m.redis.Eval(ctx, dequeueScript, []string{readyKey, activeKey, "queue:job:"}, deadline).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindQueueUnavailable, "dequeue", err)
	}
	jobID, ok := res.(string)
	if !ok {
		return nil, nil
	}
	return m.loadJob(ctx, jobID)
}

func (m *Manager) loadJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := m.redis.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, errs.Wrap(errs.KindQueueUnavailable, "load job", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var record canonical.Record
	if err := json.Unmarshal([]byte(data["payload"]), &record); err != nil {
		return nil, errs.Wrap(errs.KindBadPayload, "unmarshal job payload", err)
	}

	priority, _ := strconv.Atoi(data["priority"])
	attempts, _ := strconv.Atoi(data["attempts_made"])
	createdMs, _ := strconv.ParseInt(data["created_at"], 10, 64)
	nextRunMs, _ := strconv.ParseInt(data["next_run_at"], 10, 64)

	return &Job{
		JobID:        jobID,
		Payload:      record,
		Priority:     priority,
		AttemptsMade: attempts,
		CreatedAt:    time.UnixMilli(createdMs).UTC(),
		NextRunAt:    time.UnixMilli(nextRunMs).UTC(),
		State:        State(data["state"]),
	}, nil
}

// promoteDelayed moves delayed jobs whose next_run_at has arrived back
// onto the ready set.
func (m *Manager) promoteDelayed(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := m.redis.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		job, err := m.loadJob(ctx, id)
		if err != nil || job == nil {
			continue
		}
		pipe := m.redis.TxPipeline()
		pipe.ZRem(ctx, delayedKey, id)
		pipe.ZAdd(ctx, readyKey, redis.Z{Score: priorityScore(job.Priority, job.CreatedAt), Member: id})
		pipe.HSet(ctx, jobKey(id), "state", string(StateWaiting))
		pipe.Exec(ctx)
	}
}

// requeueStalled reclaims jobs whose active deadline has passed
// without an ack — the at-least-once guarantee from spec §4.D.
func (m *Manager) requeueStalled(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := m.redis.ZRangeByScore(ctx, activeKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		job, err := m.loadJob(ctx, id)
		if err != nil || job == nil {
			m.redis.ZRem(ctx, activeKey, id)
			continue
		}
		pipe := m.redis.TxPipeline()
		pipe.ZRem(ctx, activeKey, id)
		pipe.ZAdd(ctx, readyKey, redis.Z{Score: priorityScore(job.Priority, job.CreatedAt), Member: id})
		pipe.HSet(ctx, jobKey(id), "state", string(StateWaiting))
		pipe.Exec(ctx)
		metrics.JobsCompletedTotal.WithLabelValues("stalled").Inc()
	}
}

// Ack marks a job completed and applies the retention policy: keep the
// last 1 000 or 24 h of completed jobs, whichever is larger (spec §4.D).
func (m *Manager) Ack(ctx context.Context, jobID string) error {
	now := time.Now()
	pipe := m.redis.TxPipeline()
	pipe.ZRem(ctx, activeKey, jobID)
	pipe.ZAdd(ctx, completedKey, redis.Z{Score: float64(now.UnixMilli()), Member: jobID})
	pipe.HSet(ctx, jobKey(jobID), "state", string(StateCompleted))
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.KindQueueUnavailable, "ack", err)
	}
	metrics.JobsCompletedTotal.WithLabelValues("completed").Inc()

	m.trimCompleted(ctx)
	return nil
}

func (m *Manager) trimCompleted(ctx context.Context) {
	cutoff := float64(time.Now().Add(-CompletedRetention).UnixMilli())
	count, err := m.redis.ZCard(ctx, completedKey).Result()
	if err != nil || count <= CompletedKeepLast {
		return
	}
	// Only entries outside the newest CompletedKeepLast are candidates;
	// of those, only the ones older than CompletedRetention are removed.
	candidates, err := m.redis.ZRangeWithScores(ctx, completedKey, 0, count-CompletedKeepLast-1).Result()
	if err != nil {
		return
	}
	for _, z := range candidates {
		if z.Score <= cutoff {
			m.redis.ZRem(ctx, completedKey, z.Member)
		}
	}
}

// Fail reports a job failure. Retriable errors re-enqueue with
// exponential backoff (spec §4.D); terminal errors move the job to the
// dead-letter set for a 7-day retention window.
func (m *Manager) Fail(ctx context.Context, job *Job, cause error) error {
	pipe := m.redis.TxPipeline()
	pipe.ZRem(ctx, activeKey, job.JobID)

	if errs.Retriable(cause) && job.AttemptsMade+1 < DefaultMaxAttempts {
		job.AttemptsMade++
		job.NextRunAt = time.Now().Add(NextBackoff(job.AttemptsMade))
		job.State = StateDelayed
		pipe.ZAdd(ctx, delayedKey, redis.Z{Score: float64(job.NextRunAt.UnixMilli()), Member: job.JobID})
		pipe.HSet(ctx, jobKey(job.JobID), map[string]interface{}{
			"attempts_made": job.AttemptsMade,
			"next_run_at":   job.NextRunAt.UnixMilli(),
			"state":         string(job.State),
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return errs.Wrap(errs.KindQueueUnavailable, "schedule retry", err)
		}
		metrics.JobsCompletedTotal.WithLabelValues("retry").Inc()
		return nil
	}

	job.State = StateFailed
	pipe.ZAdd(ctx, failedKey, redis.Z{Score: float64(time.Now().UnixMilli()), Member: job.JobID})
	pipe.HSet(ctx, jobKey(job.JobID), "state", string(job.State))
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.KindQueueUnavailable, "mark failed", err)
	}
	metrics.JobsCompletedTotal.WithLabelValues("failed").Inc()

	m.trimFailed(ctx)
	return nil
}

func (m *Manager) trimFailed(ctx context.Context) {
	cutoff := time.Now().Add(-FailedRetention).UnixMilli()
	m.redis.ZRemRangeByScore(ctx, failedKey, "-inf", strconv.FormatInt(cutoff, 10))
}

// Stats implements spec §4.D's observability contract.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	pipe := m.redis.Pipeline()
	waiting := pipe.ZCard(ctx, readyKey)
	active := pipe.ZCard(ctx, activeKey)
	completed := pipe.ZCard(ctx, completedKey)
	failed := pipe.ZCard(ctx, failedKey)
	delayed := pipe.ZCard(ctx, delayedKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, errs.Wrap(errs.KindQueueUnavailable, "stats", err)
	}

	s := Stats{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
		Delayed:   delayed.Val(),
	}
	s.Total = s.Waiting + s.Active + s.Completed + s.Failed + s.Delayed
	return s, nil
}
