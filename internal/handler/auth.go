package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/bookswap/internal/domain"
	"github.com/yourorg/bookswap/internal/security/ratelimit"
	"github.com/yourorg/bookswap/internal/service"
)

// AuthHandler handles registration and login endpoints
type AuthHandler struct {
	authService *service.AuthService
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler. limiter may be nil in tests.
func NewAuthHandler(authService *service.AuthService, limiter *ratelimit.Limiter, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		limiter:     limiter,
		logger:      logger,
	}
}

// RegisterRequest represents a registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allowSensitive(w, r) {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode register request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
		return
	}

	result, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.logger.Info("registration failed",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.allowSensitive(w, r) {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode login request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Bad credentials are 401 regardless of kind; the taxonomy's
		// Forbidden mapping is for authorization, not authentication.
		if domain.KindOf(err) == domain.KindForbidden {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: domain.PublicMessage(err)})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// allowSensitive applies the strict per-address limit to credential
// endpoints before any work happens
func (h *AuthHandler) allowSensitive(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter == nil {
		return true
	}

	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		addr = addr[:i]
	}

	if !h.limiter.AllowStrict(addr, 10, time.Minute) {
		h.logger.Warn("credential endpoint rate limited", slog.String("addr", addr))
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "too many attempts"})
		return false
	}
	return true
}
