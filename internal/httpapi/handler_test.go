package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/canonical"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/ingestion"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/queue"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/repository"
)

func newTestRouter(t *testing.T) (*mux.Router, *repository.Fake) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := queue.NewManager(client)
	repo := repository.NewFake()
	poller := ingestion.NewPoller("http://unused.invalid", "key", client, q)

	handler := NewHandler(repo, q, poller)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router, repo
}

func TestGetInventory_ReturnsRows(t *testing.T) {
	router, repo := newTestRouter(t)
	_, err := repo.Upsert(context.Background(), canonical.Record{
		ProductID: "P1", Quantity: 5, Source: canonical.SourceMarketplaceA, UpdatedAt: time.Now(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/inventory/P1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool                        `json:"success"`
		Data    []repository.InventoryRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, 5, body.Data[0].Quantity)
}

func TestGetAudit_DefaultsLimitTo50(t *testing.T) {
	router, repo := newTestRouter(t)
	for i := 0; i < 51; i++ {
		_, err := repo.Upsert(context.Background(), canonical.Record{
			ProductID: "P1", Quantity: 5, Source: canonical.SourceMarketplaceA, UpdatedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/inventory/P1/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool                    `json:"success"`
		Data    []repository.AuditRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 50)
}

func TestHealth_ReportsQueueStats(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestTriggerPoll_Returns202(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/trigger-poll", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}
