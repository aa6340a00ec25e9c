// Package lock implements the fleet-wide per-product mutual-exclusion
// primitive (spec §4.C). Grounded on the distributed-lock reference
// file's SETNX-with-TTL + Lua compare-and-delete release, and the
// ratelimiter example's use of github.com/redis/go-redis/v9.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/errs"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/metrics"
)

// Options tunes a single WithLock call, overriding the Manager's
// defaults (spec §4.C).
type Options struct {
	TTL               time.Duration
	Retries           int
	RetryDelay        time.Duration
	DriftFactor       float64
	ExtensionThreshold time.Duration
}

// DefaultOptions match spec §4.C's defaults.
func DefaultOptions() Options {
	return Options{
		TTL:                10 * time.Second,
		Retries:            5,
		RetryDelay:         200 * time.Millisecond,
		DriftFactor:        0.01,
		ExtensionThreshold: 500 * time.Millisecond,
	}
}

// releaseScript deletes the key only if its value still matches the
// nonce we wrote — never delete blindly, or a successor's lock
// acquired after our TTL expired could be released out from under it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// extendScript re-writes the TTL on the same key only if we still hold
// it, used by the auto-extension goroutine.
const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Manager acquires and releases per-product-id locks against a shared
// Redis instance.
type Manager struct {
	redis   *redis.Client
	options Options
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{redis: client, options: DefaultOptions()}
}

func NewManagerWithOptions(client *redis.Client, opts Options) *Manager {
	return &Manager{redis: client, options: opts}
}

func lockKey(productID string) string {
	return fmt.Sprintf("lock:inventory:%s", productID)
}

// handle represents a held lock; Release must be called on every exit
// path (spec §4.C, §9 "scoped resources").
type handle struct {
	manager *Manager
	key     string
	nonce   string
	stopExt chan struct{}
}

// Acquire runs the SET NX PX retry protocol from spec §4.C and returns
// a handle whose Release performs the compare-and-delete.
func (m *Manager) Acquire(ctx context.Context, productID string, opts *Options) (*handle, error) {
	o := m.options
	if opts != nil {
		o = *opts
	}

	key := lockKey(productID)
	nonce, err := randomNonce()
	if err != nil {
		return nil, errs.Wrap(errs.KindLockUnavailable, "generate nonce", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= o.Retries; attempt++ {
		ok, err := m.redis.SetNX(ctx, key, nonce, o.TTL).Result()
		if err != nil {
			lastErr = err
		} else if ok {
			metrics.LockWaitSeconds.WithLabelValues(productID).Observe(time.Since(start).Seconds())
			if attempt > 0 {
				metrics.LockContentionTotal.Inc()
			}
			h := &handle{manager: m, key: key, nonce: nonce, stopExt: make(chan struct{})}
			h.maybeAutoExtend(o)
			return h, nil
		}

		if attempt == o.Retries {
			break
		}

		select {
		case <-ctx.Done():
			metrics.LockUnavailableTotal.Inc()
			return nil, errs.Wrap(errs.KindLockUnavailable, "context canceled while acquiring lock", ctx.Err())
		case <-time.After(o.RetryDelay + jitter(100*time.Millisecond)):
		}
	}

	metrics.LockUnavailableTotal.Inc()
	if lastErr != nil {
		return nil, errs.Wrap(errs.KindLockUnavailable, "exhausted retries acquiring lock", lastErr)
	}
	return nil, errs.New(errs.KindLockUnavailable, "exhausted retries acquiring lock")
}

// Release performs the compare-and-delete: it only removes the key if
// its value still equals our nonce.
func (h *handle) Release(ctx context.Context) error {
	close(h.stopExt)
	_, err := h.manager.redis.Eval(ctx, releaseScript, []string{h.key}, h.nonce).Result()
	return err
}

// maybeAutoExtend starts a background goroutine that re-writes the TTL
// on the same nonce when the lock is within ExtensionThreshold of
// expiry, so a worker whose job outlives the nominal TTL does not lose
// the lock mid-work (spec §4.C).
func (h *handle) maybeAutoExtend(o Options) {
	if o.ExtensionThreshold <= 0 {
		return
	}
	effectiveTTL := o.TTL - time.Duration(float64(o.TTL)*o.DriftFactor) - 2*time.Millisecond
	interval := effectiveTTL - o.ExtensionThreshold
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stopExt:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				h.manager.redis.Eval(ctx, extendScript, []string{h.key}, h.nonce, o.TTL.Milliseconds()).Result()
				cancel()
			}
		}
	}()
}

// WithLock acquires the product_id lock, invokes fn, and releases the
// lock on every exit path including fn panicking.
func (m *Manager) WithLock(ctx context.Context, productID string, opts *Options, fn func(ctx context.Context) error) (err error) {
	h, err := m.Acquire(ctx, productID, opts)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if releaseErr := h.Release(releaseCtx); releaseErr != nil && err == nil {
			err = fmt.Errorf("release lock for %s: %w", productID, releaseErr)
		}
	}()

	return fn(ctx)
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}
