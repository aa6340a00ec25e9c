// Package httpapi exposes the read-side and operator endpoints over
// gorilla/mux, modeled on the teacher's delivery/http.LeadHandler
// struct-with-dependencies-plus-RegisterRoutes shape.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ep-eaglepoint-ai/inventory-sync/internal/ingestion"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/queue"
	"github.com/ep-eaglepoint-ai/inventory-sync/internal/repository"
)

// Handler serves the read-side inventory/audit endpoints plus health,
// metrics, and the manual poll trigger.
type Handler struct {
	repository repository.Repository
	queue      *queue.Manager
	poller     *ingestion.Poller
}

func NewHandler(repo repository.Repository, q *queue.Manager, poller *ingestion.Poller) *Handler {
	return &Handler{repository: repo, queue: q, poller: poller}
}

// RegisterRoutes wires every route this service exposes.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/inventory/{productId}", h.GetInventory).Methods(http.MethodGet)
	router.HandleFunc("/inventory/{productId}/audit", h.GetAudit).Methods(http.MethodGet)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/trigger-poll", h.TriggerPoll).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// GetInventory handles GET /inventory/{productId} (spec §4.B
// get_by_product, ordered by source).
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	rows, err := h.repository.GetByProduct(r.Context(), productID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope{Success: true, Data: rows})
}

// GetAudit handles GET /inventory/{productId}/audit?limit=N (spec
// §4.B get_audit, ordered by changed_at descending, default limit 50).
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	rows, err := h.repository.GetAudit(r.Context(), productID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope{Success: true, Data: rows})
}

// envelope is the response shape documented in spec §6: the inventory
// and audit GET endpoints wrap their payload as {success, data}. Health
// replies with {status, queue} instead.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Health handles GET /health, reporting queue depth alongside a
// liveness signal. Replies 503 when the queue is unreachable so the
// documented failure signal (spec §6) actually fires.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	status := "healthy"

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"queue":  stats,
	})
}

// TriggerPoll handles POST /trigger-poll, an operator escape hatch to
// run a Marketplace B cycle outside the cron schedule.
func (h *Handler) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	h.poller.TriggerNow(context.Background())
	w.WriteHeader(http.StatusAccepted)
}
