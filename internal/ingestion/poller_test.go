package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/queue"
)

func newTestPoller(t *testing.T, handler http.HandlerFunc) (*Poller, *queue.Manager) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := queue.NewManager(client)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := NewPoller(server.URL, "test-key", client, q)
	return p, q
}

func TestPoller_SuccessfulCycleEnqueuesAndAdvancesCursor(t *testing.T) {
	var calls int32
	p, q := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"sku": "S1", "qty": 3, "last_modified": float64(1735689600)},
			},
		})
	})

	before := time.Now().Unix()
	require.NoError(t, p.poll(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Waiting)

	cursor, err := p.redis.Get(context.Background(), cursorKey).Int64()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cursor, before)
}

func TestPoller_ServerErrorIsReturnedAsFailure(t *testing.T) {
	p, _ := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := p.poll(context.Background())
	assert.Error(t, err)
}

func TestPoller_OpensCircuitAfterThreeConsecutiveFailures(t *testing.T) {
	var calls int32
	p, _ := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx := context.Background()
	for i := 0; i < circuitOpenThreshold; i++ {
		p.runCycle(ctx)
	}
	assert.True(t, p.circuitOpen.Load())

	// A subsequent cycle should be skipped without hitting the server.
	before := atomic.LoadInt32(&calls)
	p.runCycle(ctx)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestPoller_SkipsConcurrentCycle(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p, _ := newTestPoller(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{}})
	})

	go p.runCycle(context.Background())
	<-started

	p.mu.Lock()
	inFlight := p.inFlight
	p.mu.Unlock()
	assert.True(t, inFlight)

	p.runCycle(context.Background()) // should return immediately (skipped)
	close(release)
	time.Sleep(50 * time.Millisecond)
}
