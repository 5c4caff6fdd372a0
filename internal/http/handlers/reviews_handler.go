package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/http/middleware"
	"github.com/wanderpeak/tours-api/internal/http/response"
	"github.com/wanderpeak/tours-api/internal/query"
)

var ReviewFilterColumns = map[string]bool{
	"rating":     true,
	"tour_id":    true,
	"user_id":    true,
	"created_at": true,
}

// ReviewLister scopes the listing to one tour when reached through the
// nested tour route.
type ReviewLister interface {
	List(ctx context.Context, tourID int64, opts *query.Options) ([]domain.Review, error)
}

// ReviewsHandler layers the nested-route behavior over the shared CRUD
// resource: listing scoped by tour, and create defaulting the tour from
// the path and the author from the session.
type ReviewsHandler struct {
	*Resource[domain.Review, domain.CreateReviewRequest, domain.UpdateReviewRequest]
	lister ReviewLister
}

func NewReviewsHandler(res *Resource[domain.Review, domain.CreateReviewRequest, domain.UpdateReviewRequest], lister ReviewLister) *ReviewsHandler {
	return &ReviewsHandler{Resource: res, lister: lister}
}

func (h *ReviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := query.Parse(r.URL.Query(), ReviewFilterColumns)
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}

	var tourID int64
	if raw := chi.URLParam(r, "tourID"); raw != "" {
		tourID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(w, r, apperr.Validation("Invalid ID: "+raw), h.DevMode)
			return
		}
	}

	reviews, err := h.lister.List(r.Context(), tourID, opts)
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	data, err := projectItems(opts, reviews)
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	response.WriteList(w, http.StatusOK, len(reviews), data)
}

// Create fills tour and author before validation: the tour from the nested
// path when the body omits it, the author always from the session so
// nobody reviews on someone else's behalf.
func (h *ReviewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}

	if req.TourID == 0 {
		if raw := chi.URLParam(r, "tourID"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				response.Error(w, r, apperr.Validation("Invalid ID: "+raw), h.DevMode)
				return
			}
			req.TourID = id
		}
	}
	if user := middleware.CurrentUser(r); user != nil {
		req.UserID = user.ID
	}

	if err := req.Validate(); err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}

	review, err := h.CreateFn(r.Context(), &req)
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	if h.AfterWrite != nil {
		h.AfterWrite(r.Context(), review)
	}
	response.WriteJSON(w, http.StatusCreated, review)
}
