package domain

import (
	"context"
	"time"
)

// Book condition values accepted by the catalog
const (
	ConditionNew      = "New"
	ConditionLikeNew  = "Like New"
	ConditionVeryGood = "Very Good"
	ConditionGood     = "Good"
	ConditionFair     = "Fair"
	ConditionPoor     = "Poor"
)

var conditions = map[string]bool{
	ConditionNew:      true,
	ConditionLikeNew:  true,
	ConditionVeryGood: true,
	ConditionGood:     true,
	ConditionFair:     true,
	ConditionPoor:     true,
}

// ValidCondition reports whether c is a known condition value
func ValidCondition(c string) bool {
	return conditions[c]
}

// Book represents a listed item offered for exchange
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Condition string    `json:"condition"`
	Image     string    `json:"image,omitempty"` // cover URL, never image bytes
	OwnerID   string    `json:"ownerId"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"createdAt"`
}

// BookView is a book joined with its owner for display
type BookView struct {
	Book
	Owner UserRef `json:"owner"`
}

// BookRepository defines data access for books.
// The availability flag is only ever written through SetAvailability or as
// part of RequestRepository.Decide; both are conditional writes so that
// concurrent accepts on the same book cannot both succeed.
type BookRepository interface {
	Create(ctx context.Context, book *Book) error
	GetByID(ctx context.Context, id string) (*Book, error)
	ListAvailable(ctx context.Context) ([]*BookView, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*BookView, error)
	SetAvailability(ctx context.Context, id string, available bool) (*Book, error)
	CountAvailable(ctx context.Context) (int, error)
}
