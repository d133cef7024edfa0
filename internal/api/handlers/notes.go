// Package handlers provides HTTP handlers for the scribe API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/clinscribe/go-scribe/internal/api/middleware"
	"github.com/clinscribe/go-scribe/internal/extraction"
	"github.com/clinscribe/go-scribe/internal/infrastructure/postgres"
	"github.com/clinscribe/go-scribe/internal/pipeline"
)

// NoteHandler handles clinical note submission and retrieval.
type NoteHandler struct {
	processor *pipeline.Processor
	store     *postgres.Store
	logger    *zap.Logger
}

// NewNoteHandler creates a new handler
func NewNoteHandler(processor *pipeline.Processor, store *postgres.Store, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{processor: processor, store: store, logger: logger}
}

// Routes returns the handler routes
func (h *NoteHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Process)
	r.Get("/{id}", h.Get)
	return r
}

// ProcessRequest is the request body for processing a note
type ProcessRequest struct {
	ConversationText string `json:"conversation_text"`
}

// Process handles POST /notes: it runs the full pipeline synchronously and
// returns the completed result, including rejected ones.
func (h *NoteHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("note-handler")
	ctx, span := tracer.Start(ctx, "process_note_request")
	defer span.End()

	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ConversationText == "" {
		h.jsonError(w, "conversation_text is required", http.StatusBadRequest)
		return
	}

	result, err := h.processor.Process(ctx, req.ConversationText)
	if err != nil {
		h.logger.Error("pipeline failed",
			zap.String("request_id", middleware.GetRequestID(ctx)),
			zap.Error(err))

		var inputErr *pipeline.InputError
		var transientErr *extraction.TransientError
		switch {
		case errors.As(err, &inputErr):
			h.jsonError(w, "conversation text is not processable", http.StatusBadRequest)
		case errors.As(err, &transientErr):
			h.jsonError(w, "extraction service unavailable, retry later", http.StatusServiceUnavailable)
		default:
			h.jsonError(w, "internal processing error", http.StatusInternalServerError)
		}
		return
	}

	span.SetAttributes(
		attribute.String("transaction_id", result.TransactionID),
		attribute.String("state", string(result.State)),
	)
	h.logger.Info("note processed",
		zap.String("transaction_id", result.TransactionID),
		zap.String("state", string(result.State)),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// Get handles GET /notes/{id}
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	stored, err := h.store.GetResult(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			h.jsonError(w, "transaction not found", http.StatusNotFound)
			return
		}
		h.logger.Error("load result failed", zap.String("transaction_id", id), zap.Error(err))
		h.jsonError(w, "failed to load transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(stored.Payload)
}

func (h *NoteHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
