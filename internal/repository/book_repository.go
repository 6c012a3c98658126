package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yourorg/bookswap/internal/domain"
)

// PostgresBookRepository implements domain.BookRepository using PostgreSQL
type PostgresBookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBookRepository creates a new book repository
func NewPostgresBookRepository(db *sql.DB, logger *slog.Logger) *PostgresBookRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBookRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new book listing. Availability defaults to true.
func (r *PostgresBookRepository) Create(ctx context.Context, book *domain.Book) error {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}

	query := `
		INSERT INTO books (id, title, author, condition, image, owner_id, available)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING available, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		book.ID,
		book.Title,
		book.Author,
		book.Condition,
		book.Image,
		book.OwnerID,
	).Scan(&book.Available, &book.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create book",
			slog.String("owner_id", book.OwnerID),
			slog.String("error", err.Error()),
		)
		return domain.Transient("failed to create book", err)
	}

	return nil
}

// GetByID retrieves a book by ID
func (r *PostgresBookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	book := &domain.Book{}

	query := `
		SELECT id, title, author, condition, image, owner_id, available, created_at
		FROM books
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Condition,
		&book.Image,
		&book.OwnerID,
		&book.Available,
		&book.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("book not found")
		}
		r.logger.Error("failed to get book",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, domain.Transient("failed to get book", err)
	}

	return book, nil
}

// ListAvailable returns all available books joined with their owners,
// newest first
func (r *PostgresBookRepository) ListAvailable(ctx context.Context) ([]*domain.BookView, error) {
	query := `
		SELECT b.id, b.title, b.author, b.condition, b.image, b.owner_id,
		       b.available, b.created_at, u.id, u.username
		FROM books b
		JOIN users u ON u.id = b.owner_id
		WHERE b.available = true
		ORDER BY b.created_at DESC
	`
	return r.list(ctx, query)
}

// ListByOwner returns all books listed by a single owner, newest first
func (r *PostgresBookRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.BookView, error) {
	query := `
		SELECT b.id, b.title, b.author, b.condition, b.image, b.owner_id,
		       b.available, b.created_at, u.id, u.username
		FROM books b
		JOIN users u ON u.id = b.owner_id
		WHERE b.owner_id = $1
		ORDER BY b.created_at DESC
	`
	return r.list(ctx, query, ownerID)
}

func (r *PostgresBookRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.BookView, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list books", slog.String("error", err.Error()))
		return nil, domain.Transient("failed to list books", err)
	}
	defer rows.Close()

	var books []*domain.BookView
	for rows.Next() {
		view := &domain.BookView{}
		err := rows.Scan(
			&view.ID,
			&view.Title,
			&view.Author,
			&view.Condition,
			&view.Image,
			&view.OwnerID,
			&view.Available,
			&view.CreatedAt,
			&view.Owner.ID,
			&view.Owner.Username,
		)
		if err != nil {
			r.logger.Error("failed to scan book row", slog.String("error", err.Error()))
			return nil, domain.Transient("failed to scan book", err)
		}
		books = append(books, view)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Transient("failed to list books", err)
	}
	return books, nil
}

// SetAvailability writes the owner-controlled availability flag and returns
// the updated book. This is the direct toggle path; it does not touch
// outstanding requests.
func (r *PostgresBookRepository) SetAvailability(ctx context.Context, id string, available bool) (*domain.Book, error) {
	book := &domain.Book{}

	query := `
		UPDATE books
		SET available = $2
		WHERE id = $1
		RETURNING id, title, author, condition, image, owner_id, available, created_at
	`

	err := r.db.QueryRowContext(ctx, query, id, available).Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Condition,
		&book.Image,
		&book.OwnerID,
		&book.Available,
		&book.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("book not found")
		}
		r.logger.Error("failed to update book availability",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, domain.Transient("failed to update book", err)
	}

	return book, nil
}

// CountAvailable returns the number of currently available books
func (r *PostgresBookRepository) CountAvailable(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE available = true`).Scan(&count)
	if err != nil {
		return 0, domain.Transient("failed to count books", err)
	}
	return count, nil
}
