package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/http/handlers"
	mw "github.com/wanderpeak/tours-api/internal/http/middleware"
	"github.com/wanderpeak/tours-api/internal/query"
)

// ---------- Mocks ----------

type mockUserDirectory struct {
	users       map[int64]*domain.User
	deactivated []int64
	lastUpdate  *domain.UpdateMeRequest
}

func (m *mockUserDirectory) List(context.Context, *query.Options) ([]domain.User, error) {
	return nil, nil
}

func (m *mockUserDirectory) FindByIDAnyState(_ context.Context, id int64) (*domain.User, error) {
	return m.users[id], nil
}

func (m *mockUserDirectory) UpdateProfile(_ context.Context, id int64, req *domain.UpdateMeRequest) (*domain.User, error) {
	m.lastUpdate = req
	u := m.users[id]
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	return u, nil
}

func (m *mockUserDirectory) UpdateAsAdmin(_ context.Context, id int64, _ *domain.AdminUpdateUserRequest) (*domain.User, error) {
	return m.users[id], nil
}

func (m *mockUserDirectory) Deactivate(_ context.Context, id int64) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockUserDirectory) Delete(_ context.Context, id int64) (bool, error) {
	_, ok := m.users[id]
	delete(m.users, id)
	return ok, nil
}

// ---------- Helpers ----------

func newUsersRouter(dir *mockUserDirectory, user *domain.User) *chi.Mux {
	h := handlers.NewUsersHandler(dir, true)
	a := mw.NewAuth(&mockLoader{user: user}, reviewTestSecret)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(a.RequireAuth)
		r.Get("/users/me", h.Me)
		r.Patch("/users/update-me", h.UpdateMe)
		r.Delete("/users/delete-me", h.DeleteMe)
	})
	r.Post("/users", h.Create)
	return r
}

// ---------- Tests ----------

func TestUpdateMeChangesProfile(t *testing.T) {
	user := &domain.User{ID: 5, Name: "Old Name", Email: "old@example.com", Role: domain.RoleUser, Active: true}
	dir := &mockUserDirectory{users: map[int64]*domain.User{5: user}}
	r := newUsersRouter(dir, user)

	body := []byte(`{"name":"New Name"}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, "PATCH", "/users/update-me", body, 5))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if dir.lastUpdate == nil || dir.lastUpdate.Name == nil || *dir.lastUpdate.Name != "New Name" {
		t.Errorf("update = %+v", dir.lastUpdate)
	}
	var resp struct {
		Data struct {
			User domain.User `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.User.Name != "New Name" {
		t.Errorf("user = %+v", resp.Data.User)
	}
}

// A password key in the profile payload must never reach the store.
func TestUpdateMeRejectsPassword(t *testing.T) {
	user := &domain.User{ID: 5, Role: domain.RoleUser, Active: true}
	dir := &mockUserDirectory{users: map[int64]*domain.User{5: user}}
	r := newUsersRouter(dir, user)

	body := []byte(`{"name":"New Name","password":"sneaky123"}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, "PATCH", "/users/update-me", body, 5))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Message string `json:"message"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Message != "This route is not for password updates. Please use /update-my-password" {
		t.Errorf("message = %q", resp.Message)
	}
	if dir.lastUpdate != nil {
		t.Error("update reached the store despite the password key")
	}
}

func TestDeleteMeDeactivates(t *testing.T) {
	user := &domain.User{ID: 5, Role: domain.RoleUser, Active: true}
	dir := &mockUserDirectory{users: map[int64]*domain.User{5: user}}
	r := newUsersRouter(dir, user)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(t, "DELETE", "/users/delete-me", nil, 5))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(dir.deactivated) != 1 || dir.deactivated[0] != 5 {
		t.Errorf("deactivated = %v", dir.deactivated)
	}
}

func TestAdminCreateIsClosed(t *testing.T) {
	dir := &mockUserDirectory{users: map[int64]*domain.User{}}
	r := newUsersRouter(dir, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/users", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Message string `json:"message"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Message != "This route is not defined! Please use /signup instead" {
		t.Errorf("message = %q", resp.Message)
	}
}
