package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/yourorg/bookswap/internal/domain"
)

// CatalogService handles book listing creation and owner views
type CatalogService struct {
	books    domain.BookRepository
	users    domain.UserRepository
	listings *ListingCache
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	books domain.BookRepository,
	users domain.UserRepository,
	listings *ListingCache,
	logger *slog.Logger,
) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}

	return &CatalogService{
		books:    books,
		users:    users,
		listings: listings,
		logger:   logger,
	}
}

// AddBook lists a new book for its owner. New books start available.
func (s *CatalogService) AddBook(ctx context.Context, ownerID, title, author, condition, image string) (*domain.BookView, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)

	if title == "" || author == "" {
		return nil, domain.Validation("title and author are required")
	}
	if !domain.ValidCondition(condition) {
		return nil, domain.Validation("unknown condition value")
	}

	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	book := &domain.Book{
		Title:     title,
		Author:    author,
		Condition: condition,
		Image:     image,
		OwnerID:   ownerID,
	}

	if err := s.books.Create(ctx, book); err != nil {
		return nil, err
	}

	s.listings.Invalidate(ctx)

	s.logger.Info("book added",
		slog.String("book_id", book.ID),
		slog.String("owner_id", ownerID),
	)

	return &domain.BookView{Book: *book, Owner: owner.Ref()}, nil
}

// ListMine returns the owner's books, newest first
func (s *CatalogService) ListMine(ctx context.Context, ownerID string) ([]*domain.BookView, error) {
	return s.books.ListByOwner(ctx, ownerID)
}
