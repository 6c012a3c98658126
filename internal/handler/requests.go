package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/bookswap/internal/domain"
	"github.com/yourorg/bookswap/internal/security/middleware"
	"github.com/yourorg/bookswap/internal/service"
)

// RequestsHandler handles the exchange request endpoints
type RequestsHandler struct {
	exchange *service.ExchangeService
	logger   *slog.Logger
}

// NewRequestsHandler creates a new requests handler
func NewRequestsHandler(exchange *service.ExchangeService, logger *slog.Logger) *RequestsHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &RequestsHandler{
		exchange: exchange,
		logger:   logger,
	}
}

// SubmitRequest represents the body of POST /api/requests
type SubmitRequest struct {
	BookID  string `json:"bookId"`
	Message string `json:"message,omitempty"`
}

// DecideRequest represents the body of PUT /api/requests/{id}
type DecideRequest struct {
	Status string `json:"status"`
}

// Submit handles POST /api/requests
func (h *RequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode submit request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
		return
	}

	if req.BookID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bookId is required"})
		return
	}

	view, err := h.exchange.SubmitRequest(r.Context(), req.BookID, claims.UserID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// Decide handles PUT /api/requests/{id}
func (h *RequestsHandler) Decide(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	requestID := r.PathValue("id")
	if requestID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing request id"})
		return
	}

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
		return
	}

	view, err := h.exchange.DecideRequest(r.Context(), requestID, claims.UserID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Received handles GET /api/requests/received
func (h *RequestsHandler) Received(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.exchange.ListReceived)
}

// Sent handles GET /api/requests/sent
func (h *RequestsHandler) Sent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.exchange.ListSent)
}

func (h *RequestsHandler) list(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID string) ([]*domain.RequestView, error)) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	views, err := fn(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("failed to list requests", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if views == nil {
		views = []*domain.RequestView{}
	}
	writeJSON(w, http.StatusOK, views)
}
