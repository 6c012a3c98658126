package service

import (
	"context"
	"testing"

	"github.com/yourorg/bookswap/internal/domain"
)

func newTestCatalog(store *memStore) *CatalogService {
	return NewCatalogService(&memBookRepo{store}, &memUserRepo{store}, nil, nil)
}

func TestAddBook(t *testing.T) {
	store := newMemStore()
	owner := store.addUser("owner")

	s := newTestCatalog(store)
	ctx := context.Background()

	view, err := s.AddBook(ctx, owner.ID, "  Dune  ", "Frank Herbert", domain.ConditionVeryGood, "")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if view.Title != "Dune" {
		t.Fatalf("expected trimmed title, got %q", view.Title)
	}
	if !view.Available {
		t.Fatalf("new books must start available")
	}
	if view.Owner.ID != owner.ID || view.Owner.Username != "owner" {
		t.Fatalf("owner not joined: %+v", view.Owner)
	}
}

func TestAddBookValidation(t *testing.T) {
	store := newMemStore()
	owner := store.addUser("owner")

	s := newTestCatalog(store)
	ctx := context.Background()

	cases := []struct {
		name                     string
		title, author, condition string
	}{
		{"missing title", "", "Author", domain.ConditionGood},
		{"blank title", "   ", "Author", domain.ConditionGood},
		{"missing author", "Title", "", domain.ConditionGood},
		{"unknown condition", "Title", "Author", "Mint"},
		{"lowercase condition", "Title", "Author", "good"},
	}
	for _, tc := range cases {
		if _, err := s.AddBook(ctx, owner.ID, tc.title, tc.author, tc.condition, ""); domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("%s: expected Validation, got %v", tc.name, err)
		}
	}
}

func TestListMine(t *testing.T) {
	store := newMemStore()
	owner := store.addUser("owner")
	other := store.addUser("other")
	store.addBook(owner.ID, "Dune", true)
	store.addBook(owner.ID, "Hyperion", false)
	store.addBook(other.ID, "Foundation", true)

	s := newTestCatalog(store)

	books, err := s.ListMine(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	// The owner view includes unavailable books
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}
}
