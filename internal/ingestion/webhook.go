// Package ingestion implements the two entry paths that produce jobs:
// the HMAC-verified webhook receiver for Marketplace A and the cron
// poller for Marketplace B (spec §4.E). Grounded on the crm-engine
// teacher's delivery/http handler struct-with-dependencies style.
package ingestion

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/adapter"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/logging"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/queue"
)

const signatureHeader = "x-marketplace-signature"

// WebhookHandler verifies, transforms, and enqueues Marketplace A
// payloads (spec §4.E webhook path).
type WebhookHandler struct {
	secret  string
	adapter *adapter.MarketplaceA
	queue   *queue.Manager
	log     *logging.Logger
}

func NewWebhookHandler(secret string, q *queue.Manager) *WebhookHandler {
	log := logging.New("ingestion.webhook")
	return &WebhookHandler{
		secret: secret,
		adapter: adapter.NewMarketplaceA(func(raw map[string]any, err error) {
			log.Error("dropped malformed payload", err, nil)
		}),
		queue: q,
		log:   log,
	}
}

// ServeHTTP implements the six-step protocol from spec §4.E: read the
// raw body, verify HMAC in constant time against the *exact* bytes
// received (never re-serialized JSON, which would shift whitespace and
// break verification), transform, enqueue, reply 202 with the job id.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get(signatureHeader)
	if !verifySignature(h.secret, body, signature) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	record, err := h.adapter.Transform(raw)
	if err != nil {
		h.log.Error("transform failed", err, nil)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.queue.Add(r.Context(), record, 0)
	if err != nil {
		h.log.Error("enqueue failed", err, nil)
		http.Error(w, "enqueue failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(webhookResponse{
		Success: true,
		Message: "enqueued",
		Data: webhookResponseData{
			JobID:     job.JobID,
			ProductID: record.ProductID,
		},
	})
}

// webhookResponse is the envelope spec §6 documents for the webhook
// receiver: {success, message, data: {jobId, productId}}.
type webhookResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    webhookResponseData `json:"data"`
}

type webhookResponseData struct {
	JobID     string `json:"jobId"`
	ProductID string `json:"productId"`
}

// verifySignature computes HMAC-SHA256(secret, body) as lowercase hex
// and compares it to header using hmac.Equal's constant-time
// comparison (P4: timing-attack resistance).
func verifySignature(secret string, body []byte, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
