package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/bookswap/internal/domain"
	"github.com/yourorg/bookswap/internal/notify"
	"github.com/yourorg/bookswap/internal/observability/metrics"
	"github.com/yourorg/bookswap/pkg/cache"
)

// ExchangeService coordinates book availability and request status. It is
// the only component that flips a book's availability as a consequence of a
// request decision, and the sole enforcer of the authorization and
// duplicate-prevention rules across books and requests.
type ExchangeService struct {
	books     domain.BookRepository
	requests  domain.RequestRepository
	users     domain.UserRepository
	listings  *ListingCache
	userCache *cache.Cache
	broker    *notify.Broker
	logger    *slog.Logger
}

// NewExchangeService creates a new exchange service. listings and broker
// may be nil; the service then skips caching and notifications.
func NewExchangeService(
	books domain.BookRepository,
	requests domain.RequestRepository,
	users domain.UserRepository,
	listings *ListingCache,
	broker *notify.Broker,
	logger *slog.Logger,
) *ExchangeService {
	if logger == nil {
		logger = slog.Default()
	}

	return &ExchangeService{
		books:     books,
		requests:  requests,
		users:     users,
		listings:  listings,
		userCache: cache.New(),
		broker:    broker,
		logger:    logger,
	}
}

// SubmitRequest creates a pending request for a book on behalf of a
// non-owner. Preconditions are checked in order: the book exists, the
// requester does not own it, it is available, and no pending request by the
// same requester exists. The book itself is not touched.
func (s *ExchangeService) SubmitRequest(ctx context.Context, bookID, requesterID, message string) (*domain.RequestView, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		metrics.ObserveSubmission(domain.KindOf(err).String())
		return nil, err
	}

	if book.OwnerID == requesterID {
		metrics.ObserveSubmission("invalid_operation")
		return nil, domain.Invalid("cannot request own book")
	}

	if !book.Available {
		metrics.ObserveSubmission("conflict")
		metrics.ObserveConflict("book_unavailable")
		return nil, domain.Conflict("book not available")
	}

	pending, err := s.requests.HasPending(ctx, bookID, requesterID)
	if err != nil {
		metrics.ObserveSubmission("transient")
		return nil, err
	}
	if pending {
		metrics.ObserveSubmission("conflict")
		metrics.ObserveConflict("duplicate_request")
		return nil, domain.Conflict("request already pending")
	}

	// Resolve the requester ref before the write so a failed lookup cannot
	// leave a persisted request behind a returned error.
	requester, err := s.userRef(ctx, requesterID)
	if err != nil {
		metrics.ObserveSubmission(domain.KindOf(err).String())
		return nil, err
	}

	req := &domain.Request{
		BookID:      bookID,
		RequesterID: requesterID,
		Message:     message,
	}
	// A concurrent duplicate slips past HasPending here; the store's
	// partial unique index still rejects it as Conflict.
	if err := s.requests.Create(ctx, req); err != nil {
		metrics.ObserveSubmission(domain.KindOf(err).String())
		if domain.KindOf(err) == domain.KindConflict {
			metrics.ObserveConflict("duplicate_request")
		}
		return nil, err
	}

	s.logger.Info("request submitted",
		slog.String("request_id", req.ID),
		slog.String("book_id", bookID),
		slog.String("requester_id", requesterID),
	)
	metrics.ObserveSubmission("success")

	s.publish(book.OwnerID, notify.Event{
		Type:      "request_submitted",
		RequestID: req.ID,
		BookID:    book.ID,
		BookTitle: book.Title,
		Status:    req.Status,
		At:        time.Now(),
	})

	return &domain.RequestView{Request: *req, Book: *book, Requester: requester}, nil
}

// DecideRequest applies a terminal decision to a pending request. Only the
// owner of the referenced book may decide, and decisions are not
// reversible. Accepting also marks the book unavailable in the same store
// transaction; if another accepted request won the book in the meantime the
// call fails with Conflict and nothing changes.
func (s *ExchangeService) DecideRequest(ctx context.Context, requestID, actorID, decision string) (*domain.RequestView, error) {
	if !domain.ValidDecision(decision) {
		return nil, domain.Validation("decision must be accepted or declined")
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		metrics.ObserveDecision(decision, domain.KindOf(err).String())
		return nil, err
	}

	book, err := s.books.GetByID(ctx, req.BookID)
	if err != nil {
		metrics.ObserveDecision(decision, domain.KindOf(err).String())
		return nil, err
	}

	if book.OwnerID != actorID {
		metrics.ObserveDecision(decision, "forbidden")
		return nil, domain.Forbidden("only the book owner can decide this request")
	}

	if req.Status != domain.StatusPending {
		metrics.ObserveDecision(decision, "invalid_operation")
		return nil, domain.Invalid("request already resolved")
	}

	// Resolve the requester ref before the write so a failed lookup cannot
	// surface an error after the decision has committed.
	requester, err := s.userRef(ctx, req.RequesterID)
	if err != nil {
		metrics.ObserveDecision(decision, domain.KindOf(err).String())
		return nil, err
	}

	updated, err := s.requests.Decide(ctx, requestID, decision)
	if err != nil {
		metrics.ObserveDecision(decision, domain.KindOf(err).String())
		if domain.KindOf(err) == domain.KindConflict {
			metrics.ObserveConflict("availability_race")
		}
		return nil, err
	}

	if decision == domain.StatusAccepted {
		book.Available = false
		s.invalidateListings(ctx)
	}

	s.logger.Info("request decided",
		slog.String("request_id", requestID),
		slog.String("book_id", book.ID),
		slog.String("decision", decision),
	)
	metrics.ObserveDecision(decision, "success")

	s.publish(updated.RequesterID, notify.Event{
		Type:      "request_decided",
		RequestID: updated.ID,
		BookID:    book.ID,
		BookTitle: book.Title,
		Status:    updated.Status,
		At:        time.Now(),
	})

	return &domain.RequestView{Request: *updated, Book: *book, Requester: requester}, nil
}

// SetAvailability is the owner's direct toggle, bypassing negotiation. It
// does not resolve outstanding pending requests; those stay pending until
// explicitly decided.
func (s *ExchangeService) SetAvailability(ctx context.Context, bookID, actorID string, available bool) (*domain.Book, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if book.OwnerID != actorID {
		return nil, domain.Forbidden("only the book owner can change availability")
	}

	updated, err := s.books.SetAvailability(ctx, bookID, available)
	if err != nil {
		return nil, err
	}

	s.invalidateListings(ctx)

	s.logger.Info("book availability updated",
		slog.String("book_id", bookID),
		slog.Bool("available", available),
	)
	return updated, nil
}

// ListAvailable returns all available books newest-first, read through the
// listing cache when one is configured.
func (s *ExchangeService) ListAvailable(ctx context.Context) ([]*domain.BookView, error) {
	if books, ok := s.listings.Get(ctx); ok {
		return books, nil
	}

	books, err := s.books.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}

	s.listings.Set(ctx, books)
	return books, nil
}

// ListReceived returns requests on books owned by ownerID. Requests whose
// book no longer resolves are excluded rather than surfaced as partial
// records.
func (s *ExchangeService) ListReceived(ctx context.Context, ownerID string) ([]*domain.RequestView, error) {
	return s.requests.ListByBookOwner(ctx, ownerID)
}

// ListSent returns requests submitted by requesterID
func (s *ExchangeService) ListSent(ctx context.Context, requesterID string) ([]*domain.RequestView, error) {
	return s.requests.ListByRequester(ctx, requesterID)
}

func (s *ExchangeService) invalidateListings(ctx context.Context) {
	s.listings.Invalidate(ctx)
}

func (s *ExchangeService) publish(userID string, ev notify.Event) {
	if s.broker != nil {
		s.broker.Publish(userID, ev)
	}
}

const userRefTTL = 5 * time.Minute

// userRef resolves the public fields of a user, caching per-process since
// usernames are immutable once registered.
func (s *ExchangeService) userRef(ctx context.Context, userID string) (domain.UserRef, error) {
	if v, ok := s.userCache.Get("user:" + userID); ok {
		if ref, ok := v.(domain.UserRef); ok {
			return ref, nil
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.UserRef{}, err
	}

	ref := user.Ref()
	s.userCache.Set("user:"+userID, ref, userRefTTL)
	return ref, nil
}
