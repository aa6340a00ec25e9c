package ingestion

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/queue"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestHandler(t *testing.T) (*WebhookHandler, string) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := queue.NewManager(client)
	secret := "test-secret"
	return NewWebhookHandler(secret, q), secret
}

// P4: a missing or mismatched signature is rejected with 401 and never
// reaches the queue.
func TestWebhookHandler_RejectsMissingSignature(t *testing.T) {
	h, _ := newTestHandler(t)
	body := []byte(`{"product_code":"P1","available_stock":1,"timestamp":"2026-01-01T00:00:00Z"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/marketplace-a", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookHandler_RejectsWrongSignature(t *testing.T) {
	h, _ := newTestHandler(t)
	body := []byte(`{"product_code":"P1","available_stock":1,"timestamp":"2026-01-01T00:00:00Z"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/marketplace-a", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sign("wrong-secret", body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookHandler_AcceptsValidSignatureAndEnqueues(t *testing.T) {
	h, secret := newTestHandler(t)
	body := []byte(`{"product_code":"P1","available_stock":5,"warehouse":"WH-1","timestamp":"2026-01-01T00:00:00Z"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/marketplace-a", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sign(secret, body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "P1", resp.Data.ProductID)
	assert.Contains(t, resp.Data.JobID, "marketplace_a")
}

func TestWebhookHandler_BadPayloadReturns400(t *testing.T) {
	h, secret := newTestHandler(t)
	body := []byte(`{"available_stock":5}`) // missing product_code

	req := httptest.NewRequest(http.MethodPost, "/webhooks/marketplace-a", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sign(secret, body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifySignature_AcceptsOnlyExactDigest(t *testing.T) {
	secret := "s"
	body := []byte(`{"a":1}`)
	good := sign(secret, body)
	assert.True(t, verifySignature(secret, body, good))
	assert.False(t, verifySignature(secret, body, good+"x"))
	assert.False(t, verifySignature(secret, body, ""))
}
