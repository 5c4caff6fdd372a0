package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wanderpeak/tours-api/internal/domain"
	mw "github.com/wanderpeak/tours-api/internal/http/middleware"
	"github.com/wanderpeak/tours-api/pkg/auth"
)

const testSecret = "test-secret"

// ---------- Mocks ----------

type mockUserLoader struct {
	users map[int64]*domain.User
}

func (m *mockUserLoader) FindByID(_ context.Context, id int64) (*domain.User, error) {
	return m.users[id], nil
}

// ---------- Helpers ----------

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := mw.CurrentUser(r)
		if user == nil {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(user.Email))
	})
}

func signedToken(t *testing.T, sub int64) string {
	t.Helper()
	token, err := auth.New(sub, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	return token
}

func errMessage(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	return resp.Message
}

// ---------- Tests ----------

func TestRequireAuthNoToken(t *testing.T) {
	a := mw.NewAuth(&mockUserLoader{}, testSecret)
	rec := httptest.NewRecorder()

	a.RequireAuth(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := errMessage(t, rec.Body.Bytes()); msg != "You are not logged in! Please log in to get access" {
		t.Errorf("message = %q", msg)
	}
}

func TestRequireAuthBearerHeader(t *testing.T) {
	loader := &mockUserLoader{users: map[int64]*domain.User{
		1: {ID: 1, Email: "u@example.com", Role: domain.RoleUser, Active: true},
	}}
	a := mw.NewAuth(loader, testSecret)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, 1))
	rec := httptest.NewRecorder()

	a.RequireAuth(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "u@example.com" {
		t.Errorf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestRequireAuthCookie(t *testing.T) {
	loader := &mockUserLoader{users: map[int64]*domain.User{
		1: {ID: 1, Email: "u@example.com", Role: domain.RoleUser, Active: true},
	}}
	a := mw.NewAuth(loader, testSecret)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: mw.AuthCookieName, Value: signedToken(t, 1)})
	rec := httptest.NewRecorder()

	a.RequireAuth(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRequireAuthDeletedUser(t *testing.T) {
	a := mw.NewAuth(&mockUserLoader{users: map[int64]*domain.User{}}, testSecret)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, 99))
	rec := httptest.NewRecorder()

	a.RequireAuth(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := errMessage(t, rec.Body.Bytes()); msg != "The user belonging to this token does no longer exist" {
		t.Errorf("message = %q", msg)
	}
}

// A token minted before the last password change is stale.
func TestRequireAuthStaleToken(t *testing.T) {
	changed := time.Now().Add(time.Minute)
	loader := &mockUserLoader{users: map[int64]*domain.User{
		1: {ID: 1, Email: "u@example.com", PasswordChangedAt: &changed, Active: true},
	}}
	a := mw.NewAuth(loader, testSecret)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, 1))
	rec := httptest.NewRecorder()

	a.RequireAuth(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := errMessage(t, rec.Body.Bytes()); msg != "User recently changed password! Please log in again" {
		t.Errorf("message = %q", msg)
	}
}

func TestOptionalAuthInvalidTokenStaysAnonymous(t *testing.T) {
	a := mw.NewAuth(&mockUserLoader{}, testSecret)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	a.OptionalAuth(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Errorf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestRequireRoles(t *testing.T) {
	loader := &mockUserLoader{users: map[int64]*domain.User{
		1: {ID: 1, Email: "user@example.com", Role: domain.RoleUser, Active: true},
		2: {ID: 2, Email: "admin@example.com", Role: domain.RoleAdmin, Active: true},
	}}
	a := mw.NewAuth(loader, testSecret)
	protected := a.RequireAuth(mw.RequireRoles(domain.RoleAdmin, domain.RoleLeadGuide)(okHandler()))

	cases := []struct {
		sub  int64
		want int
	}{
		{1, http.StatusForbidden},
		{2, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("DELETE", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, tc.sub))
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("sub %d: status = %d, want %d", tc.sub, rec.Code, tc.want)
		}
	}
}

// Without RequireAuth in front the role gate must fail closed as
// unauthenticated.
func TestRequireRolesNoUser(t *testing.T) {
	rec := httptest.NewRecorder()
	mw.RequireRoles(domain.RoleAdmin)(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

// Page routes hand auth failures to the page writer, so browsers see the
// error page rather than the JSON envelope.
func TestRequirePageAuthUsesPageWriter(t *testing.T) {
	a := mw.NewAuth(&mockUserLoader{}, testSecret)
	renderError := func(w http.ResponseWriter, r *http.Request, status int, message string) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte("<h1>" + message + "</h1>"))
	}

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	a.RequirePageAuth(renderError)(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "You are not logged in! Please log in to get access") {
		t.Errorf("body = %q", body)
	}
	if strings.Contains(rec.Body.String(), `"status"`) {
		t.Error("page route answered with the JSON envelope")
	}
}

func TestRequirePageAuthPassesUser(t *testing.T) {
	loader := &mockUserLoader{users: map[int64]*domain.User{
		1: {ID: 1, Email: "u@example.com", Role: domain.RoleUser, Active: true},
	}}
	a := mw.NewAuth(loader, testSecret)
	renderError := func(w http.ResponseWriter, r *http.Request, status int, message string) {
		t.Errorf("page writer called with %d %q", status, message)
	}

	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: mw.AuthCookieName, Value: signedToken(t, 1)})
	rec := httptest.NewRecorder()

	a.RequirePageAuth(renderError)(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "u@example.com" {
		t.Errorf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}
