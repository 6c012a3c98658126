package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/bookswap/internal/domain"
	"github.com/yourorg/bookswap/internal/security/middleware"
	"github.com/yourorg/bookswap/internal/service"
)

// BooksHandler handles the book catalog endpoints
type BooksHandler struct {
	catalog  *service.CatalogService
	exchange *service.ExchangeService
	logger   *slog.Logger
}

// NewBooksHandler creates a new books handler
func NewBooksHandler(catalog *service.CatalogService, exchange *service.ExchangeService, logger *slog.Logger) *BooksHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &BooksHandler{
		catalog:  catalog,
		exchange: exchange,
		logger:   logger,
	}
}

// AddBookRequest represents the body of POST /api/books
type AddBookRequest struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Condition string `json:"condition"`
	Image     string `json:"image,omitempty"`
}

// UpdateBookRequest represents the body of PUT /api/books/{id}
type UpdateBookRequest struct {
	Available *bool `json:"available"`
}

// Add handles POST /api/books
func (h *BooksHandler) Add(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req AddBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode add book request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
		return
	}

	book, err := h.catalog.AddBook(r.Context(), claims.UserID, req.Title, req.Author, req.Condition, req.Image)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

// ListAvailable handles GET /api/books (public browse listing)
func (h *BooksHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	books, err := h.exchange.ListAvailable(r.Context())
	if err != nil {
		h.logger.Error("failed to list available books", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if books == nil {
		books = []*domain.BookView{}
	}
	writeJSON(w, http.StatusOK, books)
}

// ListMine handles GET /api/books/my-books
func (h *BooksHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	books, err := h.catalog.ListMine(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}

// UpdateAvailability handles PUT /api/books/{id}
func (h *BooksHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	bookID := r.PathValue("id")
	if bookID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing book id"})
		return
	}

	var req UpdateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Available == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "available is required"})
		return
	}

	book, err := h.exchange.SetAvailability(r.Context(), bookID, claims.UserID, *req.Available)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}
