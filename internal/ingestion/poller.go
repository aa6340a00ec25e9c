package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/adapter"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/logging"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/metrics"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/queue"
)

const cursorKey = "marketplace_b:last_timestamp"

const (
	circuitOpenThreshold = 3
	circuitResetAfter    = 15 * time.Minute
	pollHTTPTimeout      = 10 * time.Second
	pollPageLimit        = 100
	defaultCursorLookback = time.Hour
)

// Poller runs the Marketplace B delta-sync cycle on a cron schedule
// and once at startup (spec §4.E polling path), grounded on the
// robfig/cron/v3 usage in the reference work-queue example.
type Poller struct {
	apiBase string
	apiKey  string
	redis   *redis.Client
	queue   *queue.Manager
	adapter *adapter.MarketplaceB
	http    *http.Client
	log     *logging.Logger

	mu                 sync.Mutex
	inFlight            bool
	consecutiveFailures int32
	circuitOpen         atomic.Bool
	cron                *cron.Cron
}

func NewPoller(apiBase, apiKey string, redisClient *redis.Client, q *queue.Manager) *Poller {
	log := logging.New("ingestion.poller")
	return &Poller{
		apiBase: apiBase,
		apiKey:  apiKey,
		redis:   redisClient,
		queue:   q,
		adapter: adapter.NewMarketplaceB(func(raw map[string]any, err error) {
			log.Error("dropped malformed update", err, nil)
		}),
		http: &http.Client{Timeout: pollHTTPTimeout},
		log:  log,
		cron: cron.New(),
	}
}

// Start schedules the cycle every 5 minutes and runs one cycle
// immediately (spec §4.E: "runs every 5 minutes and also once on
// startup").
func (p *Poller) Start(ctx context.Context) error {
	if _, err := p.cron.AddFunc("@every 5m", func() { p.runCycle(ctx) }); err != nil {
		return fmt.Errorf("schedule poll cycle: %w", err)
	}
	p.cron.Start()
	go p.runCycle(ctx)
	return nil
}

func (p *Poller) Stop() {
	p.cron.Stop()
}

// runCycle enforces the single-flight guard and circuit breaker
// described in spec §4.E before doing any network I/O.
func (p *Poller) runCycle(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		metrics.PollCyclesTotal.WithLabelValues("skipped").Inc()
		return
	}
	p.inFlight = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	if p.circuitOpen.Load() {
		metrics.PollCyclesTotal.WithLabelValues("circuit_open").Inc()
		return
	}

	if err := p.poll(ctx); err != nil {
		p.log.Error("poll cycle failed", err, nil)
		n := atomic.AddInt32(&p.consecutiveFailures, 1)
		metrics.PollCyclesTotal.WithLabelValues("upstream_error").Inc()
		if n >= circuitOpenThreshold {
			p.openCircuit()
		}
		return
	}

	atomic.StoreInt32(&p.consecutiveFailures, 0)
	metrics.PollCyclesTotal.WithLabelValues("ok").Inc()
}

// openCircuit marks the breaker open and schedules the 15-minute
// automatic reset that zeroes consecutive_failures (spec §4.E).
func (p *Poller) openCircuit() {
	p.circuitOpen.Store(true)
	metrics.CircuitBreakerOpen.Set(1)
	time.AfterFunc(circuitResetAfter, func() {
		atomic.StoreInt32(&p.consecutiveFailures, 0)
		p.circuitOpen.Store(false)
		metrics.CircuitBreakerOpen.Set(0)
	})
}

type updatesResponse struct {
	Items []map[string]any `json:"items"`
}

// poll runs the seven numbered steps of spec §4.E's polling path.
func (p *Poller) poll(ctx context.Context) error {
	cycleStart := time.Now().UTC()
	cursor, err := p.loadCursor(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/inventory/updates?since=%d&limit=%d", p.apiBase, cursor, pollPageLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("marketplace b returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("marketplace b returned %d", resp.StatusCode)
	}

	var body updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}

	records := p.adapter.TransformBatch(body.Items)
	if len(records) > 0 {
		if _, err := p.queue.AddBatch(ctx, records, 0); err != nil {
			return err
		}
	}

	return p.saveCursor(ctx, cycleStart.Unix())
}

func (p *Poller) loadCursor(ctx context.Context) (int64, error) {
	val, err := p.redis.Get(ctx, cursorKey).Result()
	if err == redis.Nil {
		return time.Now().Add(-defaultCursorLookback).Unix(), nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (p *Poller) saveCursor(ctx context.Context, unixSeconds int64) error {
	return p.redis.Set(ctx, cursorKey, unixSeconds, 0).Err()
}

// TriggerNow runs a cycle outside the cron schedule, for the
// operator-facing POST /trigger-poll endpoint.
func (p *Poller) TriggerNow(ctx context.Context) {
	go p.runCycle(ctx)
}
