package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/http/middleware"
	"github.com/wanderpeak/tours-api/internal/query"
	"github.com/wanderpeak/tours-api/internal/web"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

// TourPages is what the rendered pages need from the tour repository.
type TourPages interface {
	List(ctx context.Context, opts *query.Options) ([]domain.Tour, error)
	Get(ctx context.Context, id int64) (*domain.Tour, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tour, error)
}

type BookingPages interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
}

// ViewsHandler serves the server-rendered site. Every page goes through
// OptionalAuth, so .User is set whenever a valid cookie rides along.
type ViewsHandler struct {
	renderer *web.Renderer
	tours    TourPages
	reviews  ReviewLister
	bookings BookingPages
}

func NewViewsHandler(renderer *web.Renderer, tours TourPages, reviews ReviewLister, bookings BookingPages) *ViewsHandler {
	return &ViewsHandler{
		renderer: renderer,
		tours:    tours,
		reviews:  reviews,
		bookings: bookings,
	}
}

type pageData struct {
	Title   string
	User    *domain.User
	Tours   []domain.Tour
	Tour    *domain.Tour
	Reviews []domain.Review
	Message string
}

func (h *ViewsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	opts := &query.Options{Page: 1, Limit: query.DefaultLimit}
	tours, err := h.tours.List(r.Context(), opts)
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, "Something went very wrong")
		return
	}
	h.render(w, r, http.StatusOK, "overview", pageData{
		Title: "All Tours",
		User:  middleware.CurrentUser(r),
		Tours: tours,
	})
}

func (h *ViewsHandler) Tour(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	tour, err := h.tours.GetBySlug(r.Context(), slug)
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, "Something went very wrong")
		return
	}
	if tour == nil {
		h.renderError(w, r, http.StatusNotFound, "There is no tour with that name")
		return
	}

	reviews, err := h.reviews.List(r.Context(), tour.ID, &query.Options{Page: 1, Limit: query.DefaultLimit})
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, "Something went very wrong")
		return
	}

	h.render(w, r, http.StatusOK, "tour", pageData{
		Title:   tour.Name,
		User:    middleware.CurrentUser(r),
		Tour:    tour,
		Reviews: reviews,
	})
}

func (h *ViewsHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", pageData{
		Title: "Log into your account",
		User:  middleware.CurrentUser(r),
	})
}

func (h *ViewsHandler) Signup(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup", pageData{
		Title: "Create your account",
		User:  middleware.CurrentUser(r),
	})
}

func (h *ViewsHandler) Account(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "account", pageData{
		Title: "Your account",
		User:  middleware.CurrentUser(r),
	})
}

// MyTours shows the tours behind the user's bookings.
func (h *ViewsHandler) MyTours(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	bookings, err := h.bookings.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, "Something went very wrong")
		return
	}

	tours := make([]domain.Tour, 0, len(bookings))
	for _, b := range bookings {
		tour, err := h.tours.Get(r.Context(), b.TourID)
		if err != nil {
			h.renderError(w, r, http.StatusInternalServerError, "Something went very wrong")
			return
		}
		if tour != nil {
			tours = append(tours, *tour)
		}
	}

	h.render(w, r, http.StatusOK, "my_tours", pageData{
		Title: "My Tours",
		User:  user,
		Tours: tours,
	})
}

func (h *ViewsHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, "Can't find "+r.URL.Path+" on this server!")
}

// ErrorPage renders the error template; the router and the page auth gate
// use it so page routes never answer with the JSON envelope.
func (h *ViewsHandler) ErrorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.renderError(w, r, status, message)
}

func (h *ViewsHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.renderer.Render(w, page, data); err != nil {
		logger.ErrorContext(r.Context(), "Failed to render page", "page", page, "error", err)
	}
}

func (h *ViewsHandler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, status, "error", pageData{
		Title:   "Something went wrong",
		User:    middleware.CurrentUser(r),
		Message: message,
	})
}
