package domain

import (
	"context"
	"time"
)

// Request status values. A request starts pending; accepted and declined
// are terminal.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// ValidDecision reports whether s is a legal terminal status
func ValidDecision(s string) bool {
	return s == StatusAccepted || s == StatusDeclined
}

// Request represents a proposal by a non-owner to obtain a book
type Request struct {
	ID          string    `json:"id"`
	BookID      string    `json:"bookId"`
	RequesterID string    `json:"requesterId"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RequestView is a request joined with its book and requester. Listings
// never surface a request whose book no longer resolves.
type RequestView struct {
	Request
	Book      Book    `json:"book"`
	Requester UserRef `json:"requester"`
}

// RequestRepository defines data access for exchange requests.
//
// Create fails with a Conflict error when another pending request for the
// same (book, requester) pair already exists. Decide applies a terminal
// status and, when accepting, flips the book's availability in the same
// transaction conditioned on it still being available; a lost race yields
// a Conflict error and leaves both rows unchanged.
type RequestRepository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	HasPending(ctx context.Context, bookID, requesterID string) (bool, error)
	Decide(ctx context.Context, requestID, status string) (*Request, error)
	ListByBookOwner(ctx context.Context, ownerID string) ([]*RequestView, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*RequestView, error)
	CountPending(ctx context.Context) (int, error)
}
