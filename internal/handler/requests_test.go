package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/bookswap/internal/domain"
	"github.com/yourorg/bookswap/internal/security/auth"
	"github.com/yourorg/bookswap/internal/security/middleware"
	"github.com/yourorg/bookswap/internal/service"
)

// fakeStore is a minimal in-memory backing for the repository interfaces,
// shared across the fakes so request decisions see book state.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	books    map[string]*domain.Book
	requests map[string]*domain.Request
	seq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*domain.User{},
		books:    map[string]*domain.Book{},
		requests: map[string]*domain.Request{},
	}
}

func (s *fakeStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *fakeStore) addUser(username string) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &domain.User{ID: s.nextID("u"), Username: username, Email: username + "@example.com"}
	s.users[u.ID] = u
	return u
}

func (s *fakeStore) addBook(ownerID, title string, available bool) *domain.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &domain.Book{
		ID:        s.nextID("b"),
		Title:     title,
		Author:    "Author",
		Condition: domain.ConditionGood,
		OwnerID:   ownerID,
		Available: available,
		CreatedAt: time.Now(),
	}
	s.books[b.ID] = b
	return b
}

type fakeUsers struct{ s *fakeStore }

func (f *fakeUsers) Create(ctx context.Context, u *domain.User) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u.ID = f.s.nextID("u")
	f.s.users[u.ID] = u
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if u, ok := f.s.users[id]; ok {
		return u, nil
	}
	return nil, domain.NotFound("user not found")
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, domain.NotFound("user not found")
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return nil, domain.NotFound("user not found")
}

type fakeBooks struct{ s *fakeStore }

func (f *fakeBooks) Create(ctx context.Context, b *domain.Book) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b.ID = f.s.nextID("b")
	b.Available = true
	b.CreatedAt = time.Now()
	cp := *b
	f.s.books[b.ID] = &cp
	return nil
}

func (f *fakeBooks) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if b, ok := f.s.books[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, domain.NotFound("book not found")
}

func (f *fakeBooks) ListAvailable(ctx context.Context) ([]*domain.BookView, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*domain.BookView{}
	for _, b := range f.s.books {
		if b.Available {
			out = append(out, &domain.BookView{Book: *b, Owner: f.s.users[b.OwnerID].Ref()})
		}
	}
	return out, nil
}

func (f *fakeBooks) ListByOwner(ctx context.Context, ownerID string) ([]*domain.BookView, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*domain.BookView{}
	for _, b := range f.s.books {
		if b.OwnerID == ownerID {
			out = append(out, &domain.BookView{Book: *b, Owner: f.s.users[b.OwnerID].Ref()})
		}
	}
	return out, nil
}

func (f *fakeBooks) SetAvailability(ctx context.Context, id string, available bool) (*domain.Book, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.books[id]
	if !ok {
		return nil, domain.NotFound("book not found")
	}
	b.Available = available
	cp := *b
	return &cp, nil
}

func (f *fakeBooks) CountAvailable(ctx context.Context) (int, error) { return 0, nil }

type fakeRequests struct{ s *fakeStore }

func (f *fakeRequests) Create(ctx context.Context, req *domain.Request) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.requests {
		if r.BookID == req.BookID && r.RequesterID == req.RequesterID && r.Status == domain.StatusPending {
			return domain.Conflict("request already pending")
		}
	}
	req.ID = f.s.nextID("r")
	req.Status = domain.StatusPending
	req.CreatedAt = time.Now()
	cp := *req
	f.s.requests[req.ID] = &cp
	return nil
}

func (f *fakeRequests) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if r, ok := f.s.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, domain.NotFound("request not found")
}

func (f *fakeRequests) HasPending(ctx context.Context, bookID, requesterID string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.requests {
		if r.BookID == bookID && r.RequesterID == requesterID && r.Status == domain.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRequests) Decide(ctx context.Context, requestID, status string) (*domain.Request, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.requests[requestID]
	if !ok {
		return nil, domain.NotFound("request not found")
	}
	if r.Status != domain.StatusPending {
		return nil, domain.Invalid("request already resolved")
	}
	if status == domain.StatusAccepted {
		b := f.s.books[r.BookID]
		if b == nil || !b.Available {
			return nil, domain.Conflict("book not available")
		}
		b.Available = false
	}
	r.Status = status
	cp := *r
	return &cp, nil
}

func (f *fakeRequests) ListByBookOwner(ctx context.Context, ownerID string) ([]*domain.RequestView, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*domain.RequestView{}
	for _, r := range f.s.requests {
		b, ok := f.s.books[r.BookID]
		if !ok || b.OwnerID != ownerID {
			continue
		}
		out = append(out, &domain.RequestView{Request: *r, Book: *b, Requester: f.s.users[r.RequesterID].Ref()})
	}
	return out, nil
}

func (f *fakeRequests) ListByRequester(ctx context.Context, requesterID string) ([]*domain.RequestView, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*domain.RequestView{}
	for _, r := range f.s.requests {
		if r.RequesterID != requesterID {
			continue
		}
		b, ok := f.s.books[r.BookID]
		if !ok {
			continue
		}
		out = append(out, &domain.RequestView{Request: *r, Book: *b, Requester: f.s.users[r.RequesterID].Ref()})
	}
	return out, nil
}

func (f *fakeRequests) CountPending(ctx context.Context) (int, error) { return 0, nil }

func newTestHandlers(store *fakeStore) (*BooksHandler, *RequestsHandler) {
	exchange := service.NewExchangeService(&fakeBooks{store}, &fakeRequests{store}, &fakeUsers{store}, nil, nil, nil)
	catalog := service.NewCatalogService(&fakeBooks{store}, &fakeUsers{store}, nil, nil)
	return NewBooksHandler(catalog, exchange, nil), NewRequestsHandler(exchange, nil)
}

// asUser injects verified claims the way the JWT middleware would
func asUser(r *http.Request, userID string) *http.Request {
	claims := &auth.Claims{UserID: userID, Username: "user"}
	return r.WithContext(context.WithValue(r.Context(), middleware.ClaimsContextKey{}, claims))
}

func TestSubmitEndpoint(t *testing.T) {
	store := newFakeStore()
	owner := store.addUser("owner")
	requester := store.addUser("requester")
	book := store.addBook(owner.ID, "Dune", true)

	_, requests := newTestHandlers(store)

	body := fmt.Sprintf(`{"bookId":%q,"message":"hi"}`, book.ID)
	req := asUser(httptest.NewRequest("POST", "/api/requests", strings.NewReader(body)), requester.ID)
	rec := httptest.NewRecorder()
	requests.Submit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var view domain.RequestView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if view.Status != domain.StatusPending || view.Book.Title != "Dune" {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestSubmitEndpointErrors(t *testing.T) {
	store := newFakeStore()
	owner := store.addUser("owner")
	requester := store.addUser("requester")
	available := store.addBook(owner.ID, "Dune", true)
	unavailable := store.addBook(owner.ID, "Hyperion", false)

	_, requests := newTestHandlers(store)

	cases := []struct {
		name   string
		body   string
		userID string
		want   int
	}{
		{"no auth", `{"bookId":"x"}`, "", http.StatusUnauthorized},
		{"missing bookId", `{}`, requester.ID, http.StatusBadRequest},
		{"bad json", `{`, requester.ID, http.StatusBadRequest},
		{"unknown book", `{"bookId":"missing"}`, requester.ID, http.StatusNotFound},
		{"own book", fmt.Sprintf(`{"bookId":%q}`, available.ID), owner.ID, http.StatusBadRequest},
		{"unavailable book", fmt.Sprintf(`{"bookId":%q}`, unavailable.ID), requester.ID, http.StatusConflict},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/api/requests", strings.NewReader(tc.body))
		if tc.userID != "" {
			req = asUser(req, tc.userID)
		}
		rec := httptest.NewRecorder()
		requests.Submit(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestDecideEndpoint(t *testing.T) {
	store := newFakeStore()
	owner := store.addUser("owner")
	requester := store.addUser("requester")
	book := store.addBook(owner.ID, "Dune", true)

	_, requests := newTestHandlers(store)

	// Seed a pending request through the endpoint
	submitBody := fmt.Sprintf(`{"bookId":%q}`, book.ID)
	submitReq := asUser(httptest.NewRequest("POST", "/api/requests", strings.NewReader(submitBody)), requester.ID)
	submitRec := httptest.NewRecorder()
	requests.Submit(submitRec, submitReq)
	var created domain.RequestView
	json.Unmarshal(submitRec.Body.Bytes(), &created)

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/requests/{id}", requests.Decide)

	// Requester may not decide
	req := asUser(httptest.NewRequest("PUT", "/api/requests/"+created.ID, strings.NewReader(`{"status":"accepted"}`)), requester.ID)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for requester, got %d", rec.Code)
	}

	// Owner accepts
	req = asUser(httptest.NewRequest("PUT", "/api/requests/"+created.ID, strings.NewReader(`{"status":"accepted"}`)), owner.ID)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var decided domain.RequestView
	json.Unmarshal(rec.Body.Bytes(), &decided)
	if decided.Status != domain.StatusAccepted || decided.Book.Available {
		t.Fatalf("unexpected decision view: %+v", decided)
	}

	// Second decision hits the already-resolved guard
	req = asUser(httptest.NewRequest("PUT", "/api/requests/"+created.ID, strings.NewReader(`{"status":"declined"}`)), owner.ID)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for resolved request, got %d", rec.Code)
	}
}

func TestReceivedAndSentEndpoints(t *testing.T) {
	store := newFakeStore()
	owner := store.addUser("owner")
	requester := store.addUser("requester")
	book := store.addBook(owner.ID, "Dune", true)

	_, requests := newTestHandlers(store)

	submitBody := fmt.Sprintf(`{"bookId":%q}`, book.ID)
	submitReq := asUser(httptest.NewRequest("POST", "/api/requests", strings.NewReader(submitBody)), requester.ID)
	requests.Submit(httptest.NewRecorder(), submitReq)

	rec := httptest.NewRecorder()
	requests.Received(rec, asUser(httptest.NewRequest("GET", "/api/requests/received", nil), owner.ID))
	var received []*domain.RequestView
	json.Unmarshal(rec.Body.Bytes(), &received)
	if len(received) != 1 {
		t.Fatalf("expected 1 received request, got %d", len(received))
	}

	rec = httptest.NewRecorder()
	requests.Sent(rec, asUser(httptest.NewRequest("GET", "/api/requests/sent", nil), requester.ID))
	var sent []*domain.RequestView
	json.Unmarshal(rec.Body.Bytes(), &sent)
	if len(sent) != 1 {
		t.Fatalf("expected 1 sent request, got %d", len(sent))
	}

	// A user with no requests gets an empty array, not null
	rec = httptest.NewRecorder()
	requests.Sent(rec, asUser(httptest.NewRequest("GET", "/api/requests/sent", nil), owner.ID))
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestBooksEndpoints(t *testing.T) {
	store := newFakeStore()
	owner := store.addUser("owner")
	other := store.addUser("other")

	books, _ := newTestHandlers(store)

	// Add
	body := `{"title":"Dune","author":"Frank Herbert","condition":"Very Good"}`
	rec := httptest.NewRecorder()
	books.Add(rec, asUser(httptest.NewRequest("POST", "/api/books", strings.NewReader(body)), owner.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.BookView
	json.Unmarshal(rec.Body.Bytes(), &created)
	if !created.Available || created.Owner.ID != owner.ID {
		t.Fatalf("unexpected created view: %+v", created)
	}

	// Invalid condition
	rec = httptest.NewRecorder()
	books.Add(rec, asUser(httptest.NewRequest("POST", "/api/books", strings.NewReader(`{"title":"T","author":"A","condition":"Mint"}`)), owner.ID))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad condition, got %d", rec.Code)
	}

	// Public listing
	rec = httptest.NewRecorder()
	books.ListAvailable(rec, httptest.NewRequest("GET", "/api/books", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listing []*domain.BookView
	json.Unmarshal(rec.Body.Bytes(), &listing)
	if len(listing) != 1 {
		t.Fatalf("expected 1 listed book, got %d", len(listing))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/books/{id}", books.UpdateAvailability)

	// Non-owner toggle is forbidden
	req := asUser(httptest.NewRequest("PUT", "/api/books/"+created.ID, strings.NewReader(`{"available":false}`)), other.ID)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// Owner toggle works
	req = asUser(httptest.NewRequest("PUT", "/api/books/"+created.ID, strings.NewReader(`{"available":false}`)), owner.ID)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Missing available field
	req = asUser(httptest.NewRequest("PUT", "/api/books/"+created.ID, strings.NewReader(`{}`)), owner.ID)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing field, got %d", rec.Code)
	}
}
