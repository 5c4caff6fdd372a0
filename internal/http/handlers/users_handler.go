package handlers

import (
	"context"
	"net/http"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/http/middleware"
	"github.com/wanderpeak/tours-api/internal/http/response"
	"github.com/wanderpeak/tours-api/internal/query"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

// userFilterColumns are the columns open to filtering and sorting on the
// admin user listing.
var userFilterColumns = map[string]bool{
	"name":       true,
	"email":      true,
	"role":       true,
	"created_at": true,
}

// UserDirectory is the slice of the user repository the profile and admin
// endpoints need.
type UserDirectory interface {
	List(ctx context.Context, opts *query.Options) ([]domain.User, error)
	FindByIDAnyState(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, req *domain.UpdateMeRequest) (*domain.User, error)
	UpdateAsAdmin(ctx context.Context, id int64, req *domain.AdminUpdateUserRequest) (*domain.User, error)
	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) (bool, error)
}

type UsersHandler struct {
	users   UserDirectory
	devMode bool
}

func NewUsersHandler(users UserDirectory, devMode bool) *UsersHandler {
	return &UsersHandler{users: users, devMode: devMode}
}

func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, middleware.CurrentUser(r))
}

// UpdateMe covers profile fields only. Password payloads are rejected so
// nothing sidesteps the hashing path.
func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	var raw map[string]any
	var req domain.UpdateMeRequest
	if err := decodeBoth(r, &raw, &req); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	if _, ok := raw["password"]; ok {
		response.Error(w, r, apperr.Validation(
			"This route is not for password updates. Please use /update-my-password"), h.devMode)
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user.ID, &req)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"user": updated})
}

// DeleteMe soft-deletes: the account drops out of every default read but
// the row survives for bookings history.
func (h *UsersHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if err := h.users.Deactivate(r.Context(), user.ID); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	logger.InfoContext(r.Context(), "Account deactivated", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := query.Parse(r.URL.Query(), userFilterColumns)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	users, err := h.users.List(r.Context(), opts)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	data, err := projectItems(opts, users)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	response.WriteList(w, http.StatusOK, len(users), data)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	user, err := h.users.FindByIDAnyState(r.Context(), id)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	if user == nil {
		response.Error(w, r, apperr.NotFound("No user found with that ID"), h.devMode)
		return
	}
	response.WriteJSON(w, http.StatusOK, user)
}

// Create exists so the admin collection route answers something sensible;
// accounts are only born through signup.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	response.Error(w, r,
		apperr.Validation("This route is not defined! Please use /signup instead"), h.devMode)
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	var req domain.AdminUpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	user, err := h.users.UpdateAsAdmin(r.Context(), id, &req)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	if user == nil {
		response.Error(w, r, apperr.NotFound("No user found with that ID"), h.devMode)
		return
	}
	response.WriteJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	found, err := h.users.Delete(r.Context(), id)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	if !found {
		response.Error(w, r, apperr.NotFound("No user found with that ID"), h.devMode)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
