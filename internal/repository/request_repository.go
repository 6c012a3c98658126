package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yourorg/bookswap/internal/domain"
	"github.com/yourorg/bookswap/pkg/database"
)

// PostgresRequestRepository implements domain.RequestRepository using
// PostgreSQL. The duplicate-pending invariant is backed by a partial unique
// index on (book_id, requester_id) WHERE status = 'pending', and Decide runs
// as a single transaction so a request decision and the book's availability
// flip commit or fail together.
type PostgresRequestRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRequestRepository creates a new request repository
func NewPostgresRequestRepository(db *sql.DB, logger *slog.Logger) *PostgresRequestRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new pending request. A concurrent duplicate surfaces as
// Conflict through the partial unique index.
func (r *PostgresRequestRepository) Create(ctx context.Context, req *domain.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	query := `
		INSERT INTO requests (id, book_id, requester_id, status, message)
		VALUES ($1, $2, $3, 'pending', $4)
		RETURNING status, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		req.ID,
		req.BookID,
		req.RequesterID,
		req.Message,
	).Scan(&req.Status, &req.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("request already pending")
		}
		r.logger.Error("failed to create request",
			slog.String("book_id", req.BookID),
			slog.String("requester_id", req.RequesterID),
			slog.String("error", err.Error()),
		)
		return domain.Transient("failed to create request", err)
	}

	return nil
}

// GetByID retrieves a request by ID
func (r *PostgresRequestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	req := &domain.Request{}

	query := `
		SELECT id, book_id, requester_id, status, message, created_at
		FROM requests
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID,
		&req.BookID,
		&req.RequesterID,
		&req.Status,
		&req.Message,
		&req.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("request not found")
		}
		r.logger.Error("failed to get request",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, domain.Transient("failed to get request", err)
	}

	return req, nil
}

// HasPending reports whether the requester already holds a pending request
// on the book
func (r *PostgresRequestRepository) HasPending(ctx context.Context, bookID, requesterID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM requests
			WHERE book_id = $1 AND requester_id = $2 AND status = 'pending'
		)
	`
	if err := r.db.QueryRowContext(ctx, query, bookID, requesterID).Scan(&exists); err != nil {
		return false, domain.Transient("failed to check pending request", err)
	}
	return exists, nil
}

// Decide applies a terminal status to a pending request. Accepting also
// marks the book unavailable, conditioned on it still being available at
// commit time; if another accepted request got there first the whole
// transaction rolls back with Conflict and no row changes.
func (r *PostgresRequestRepository) Decide(ctx context.Context, requestID, status string) (*domain.Request, error) {
	req := &domain.Request{}

	err := database.WithinTx(ctx, r.db, func(tx *sql.Tx) error {
		update := `
			UPDATE requests
			SET status = $2
			WHERE id = $1 AND status = 'pending'
			RETURNING id, book_id, requester_id, status, message, created_at
		`
		err := tx.QueryRowContext(ctx, update, requestID, status).Scan(
			&req.ID,
			&req.BookID,
			&req.RequesterID,
			&req.Status,
			&req.Message,
			&req.CreatedAt,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Distinguish a missing request from a resolved one.
				var current string
				lookupErr := tx.QueryRowContext(ctx,
					`SELECT status FROM requests WHERE id = $1`, requestID).Scan(&current)
				if errors.Is(lookupErr, sql.ErrNoRows) {
					return domain.NotFound("request not found")
				}
				if lookupErr != nil {
					return domain.Transient("failed to get request", lookupErr)
				}
				return domain.Invalid("request already resolved")
			}
			return domain.Transient("failed to update request", err)
		}

		if status != domain.StatusAccepted {
			return nil
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE books SET available = false WHERE id = $1 AND available = true`,
			req.BookID,
		)
		if err != nil {
			return domain.Transient("failed to update book availability", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return domain.Transient("failed to check rows affected", err)
		}
		if rows == 0 {
			return domain.Conflict("book not available")
		}
		return nil
	})

	if err != nil {
		if domain.KindOf(err) == domain.KindTransient {
			r.logger.Error("decide transaction failed",
				slog.String("request_id", requestID),
				slog.String("status", status),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	return req, nil
}

// ListByBookOwner returns requests on books owned by ownerID, joined with
// book and requester, newest first. The inner join drops requests whose
// book row no longer resolves.
func (r *PostgresRequestRepository) ListByBookOwner(ctx context.Context, ownerID string) ([]*domain.RequestView, error) {
	query := listQuery + `
		WHERE b.owner_id = $1
		ORDER BY r.created_at DESC
	`
	return r.list(ctx, query, ownerID)
}

// ListByRequester returns requests sent by requesterID, joined with book
// and requester, newest first
func (r *PostgresRequestRepository) ListByRequester(ctx context.Context, requesterID string) ([]*domain.RequestView, error) {
	query := listQuery + `
		WHERE r.requester_id = $1
		ORDER BY r.created_at DESC
	`
	return r.list(ctx, query, requesterID)
}

const listQuery = `
		SELECT r.id, r.book_id, r.requester_id, r.status, r.message, r.created_at,
		       b.id, b.title, b.author, b.condition, b.image, b.owner_id, b.available, b.created_at,
		       u.id, u.username
		FROM requests r
		JOIN books b ON b.id = r.book_id
		JOIN users u ON u.id = r.requester_id
`

func (r *PostgresRequestRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.RequestView, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list requests", slog.String("error", err.Error()))
		return nil, domain.Transient("failed to list requests", err)
	}
	defer rows.Close()

	var views []*domain.RequestView
	for rows.Next() {
		view := &domain.RequestView{}
		err := rows.Scan(
			&view.ID,
			&view.BookID,
			&view.RequesterID,
			&view.Status,
			&view.Message,
			&view.CreatedAt,
			&view.Book.ID,
			&view.Book.Title,
			&view.Book.Author,
			&view.Book.Condition,
			&view.Book.Image,
			&view.Book.OwnerID,
			&view.Book.Available,
			&view.Book.CreatedAt,
			&view.Requester.ID,
			&view.Requester.Username,
		)
		if err != nil {
			r.logger.Error("failed to scan request row", slog.String("error", err.Error()))
			return nil, domain.Transient("failed to scan request", err)
		}
		views = append(views, view)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Transient("failed to list requests", err)
	}
	return views, nil
}

// CountPending returns the number of requests still awaiting a decision
func (r *PostgresRequestRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, domain.Transient("failed to count requests", err)
	}
	return count, nil
}
