package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/http/handlers"
	mw "github.com/wanderpeak/tours-api/internal/http/middleware"
	"github.com/wanderpeak/tours-api/internal/query"
	"github.com/wanderpeak/tours-api/pkg/auth"
)

const reviewTestSecret = "test-secret"

// ---------- Mocks ----------

type mockReviewStore struct {
	lastTourID int64
	created    *domain.CreateReviewRequest
	reviews    []domain.Review
}

func (m *mockReviewStore) List(_ context.Context, tourID int64, _ *query.Options) ([]domain.Review, error) {
	m.lastTourID = tourID
	return m.reviews, nil
}

func (m *mockReviewStore) Get(_ context.Context, id int64) (*domain.Review, error) {
	return nil, nil
}

func (m *mockReviewStore) Create(_ context.Context, req *domain.CreateReviewRequest) (*domain.Review, error) {
	m.created = req
	return &domain.Review{ID: 1, Review: req.Review, Rating: req.Rating, TourID: req.TourID, UserID: req.UserID}, nil
}

func (m *mockReviewStore) Update(_ context.Context, id int64, _ *domain.UpdateReviewRequest) (*domain.Review, error) {
	return nil, nil
}

func (m *mockReviewStore) Delete(_ context.Context, id int64) (*domain.Review, error) {
	return nil, nil
}

type mockLoader struct {
	user *domain.User
}

func (m *mockLoader) FindByID(context.Context, int64) (*domain.User, error) {
	return m.user, nil
}

// ---------- Helpers ----------

func newReviewsRouter(store *mockReviewStore, user *domain.User, recomputed *[]int64) *chi.Mux {
	res := &handlers.Resource[domain.Review, domain.CreateReviewRequest, domain.UpdateReviewRequest]{
		Name:     "review",
		Allowed:  handlers.ReviewFilterColumns,
		DevMode:  true,
		GetFn:    store.Get,
		CreateFn: store.Create,
		UpdateFn: store.Update,
		DeleteFn: store.Delete,
		AfterWrite: func(_ context.Context, rv *domain.Review) {
			*recomputed = append(*recomputed, rv.TourID)
		},
	}
	h := handlers.NewReviewsHandler(res, store)
	a := mw.NewAuth(&mockLoader{user: user}, reviewTestSecret)

	r := chi.NewRouter()
	r.Route("/tours/{tourID}/reviews", func(r chi.Router) {
		r.Use(a.RequireAuth)
		r.Get("/", h.List)
		r.Post("/", h.Create)
	})
	return r
}

func authedRequest(t *testing.T, method, path string, body []byte, sub int64) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	token, err := auth.New(sub, reviewTestSecret, time.Hour)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// ---------- Tests ----------

func TestNestedListScopesToTour(t *testing.T) {
	store := &mockReviewStore{reviews: []domain.Review{{ID: 1, Rating: 5}}}
	user := &domain.User{ID: 9, Role: domain.RoleUser, Active: true}
	var recomputed []int64
	r := newReviewsRouter(store, user, &recomputed)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, "GET", "/tours/12/reviews", nil, 9))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if store.lastTourID != 12 {
		t.Errorf("tour scope = %d", store.lastTourID)
	}
}

// The tour comes from the path and the author from the session, whatever
// the body claims.
func TestNestedCreateDefaultsTourAndUser(t *testing.T) {
	store := &mockReviewStore{}
	user := &domain.User{ID: 9, Role: domain.RoleUser, Active: true}
	var recomputed []int64
	r := newReviewsRouter(store, user, &recomputed)

	body := []byte(`{"review":"Loved it","rating":5,"user_id":777}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, "POST", "/tours/12/reviews", body, 9))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if store.created.TourID != 12 {
		t.Errorf("tour_id = %d", store.created.TourID)
	}
	if store.created.UserID != 9 {
		t.Errorf("user_id = %d, session must win over the body", store.created.UserID)
	}
	if len(recomputed) != 1 || recomputed[0] != 12 {
		t.Errorf("aggregation ran for %v", recomputed)
	}
}

func TestNestedCreateValidation(t *testing.T) {
	store := &mockReviewStore{}
	user := &domain.User{ID: 9, Role: domain.RoleUser, Active: true}
	var recomputed []int64
	r := newReviewsRouter(store, user, &recomputed)

	body := []byte(`{"review":"","rating":9}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, "POST", "/tours/12/reviews", body, 9))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Fields["review"] == "" || resp.Fields["rating"] == "" {
		t.Errorf("fields = %+v", resp.Fields)
	}
	if len(recomputed) != 0 {
		t.Error("aggregation must not run on failed writes")
	}
}
