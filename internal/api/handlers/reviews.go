package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clinscribe/go-scribe/internal/api/middleware"
	"github.com/clinscribe/go-scribe/internal/infrastructure/postgres"
	"github.com/clinscribe/go-scribe/internal/review"
)

// ReviewHandler handles the clinician review queue.
type ReviewHandler struct {
	service *review.Service
	logger  *zap.Logger
}

// NewReviewHandler creates a new handler
func NewReviewHandler(service *review.Service, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{service: service, logger: logger}
}

// Routes returns the handler routes
func (h *ReviewHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/pending", h.Pending)
	r.Post("/{id}", h.Decide)
	r.Get("/{id}/history", h.History)
	return r
}

// PendingItem is one entry in the review queue response.
type PendingItem struct {
	TransactionID string          `json:"transaction_id"`
	State         string          `json:"state"`
	Result        json.RawMessage `json:"result"`
}

// Pending handles GET /reviews/pending
func (h *ReviewHandler) Pending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	queue, err := h.service.PendingQueue(ctx, limit)
	if err != nil {
		h.logger.Error("list pending reviews failed", zap.Error(err))
		h.jsonError(w, "failed to list pending reviews", http.StatusInternalServerError)
		return
	}

	items := make([]PendingItem, 0, len(queue))
	for _, stored := range queue {
		items = append(items, PendingItem{
			TransactionID: stored.TransactionID,
			State:         stored.State,
			Result:        stored.Payload,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"pending": items})
}

// DecideRequest is the request body for a review decision
type DecideRequest struct {
	Action      string `json:"action"`
	ClinicianID string `json:"clinician_id"`
	Notes       string `json:"notes,omitempty"`
}

// Decide handles POST /reviews/{id}
func (h *ReviewHandler) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := h.service.SubmitDecision(ctx, id, req.ClinicianID, review.Action(req.Action), req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrNotFound):
			h.jsonError(w, "transaction not found", http.StatusNotFound)
		case errors.Is(err, review.ErrUnknownAction), errors.Is(err, review.ErrNotReviewable):
			h.jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("submit decision failed",
				zap.String("transaction_id", id),
				zap.String("request_id", middleware.GetRequestID(ctx)),
				zap.Error(err))
			h.jsonError(w, "failed to record decision", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"transaction_id": id,
		"action":         req.Action,
		"status":         "recorded",
	})
}

// History handles GET /reviews/{id}/history
func (h *ReviewHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	decisions, err := h.service.History(ctx, id)
	if err != nil {
		h.logger.Error("load review history failed", zap.String("transaction_id", id), zap.Error(err))
		h.jsonError(w, "failed to load review history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"decisions": decisions})
}

func (h *ReviewHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
