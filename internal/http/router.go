// Package http assembles the router: middleware pipeline, the JSON API
// under /api/v1, the Stripe webhook, and the rendered pages.
package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/http/handlers"
	mw "github.com/wanderpeak/tours-api/internal/http/middleware"
	"github.com/wanderpeak/tours-api/internal/http/response"
)

type Deps struct {
	Auth        *mw.Auth
	RateLimiter *mw.RateLimiter

	AuthHandler *handlers.AuthHandler
	Users       *handlers.UsersHandler
	Tours       *handlers.ToursHandler
	Reviews     *handlers.ReviewsHandler
	Bookings    *handlers.BookingsHandler
	Views       *handlers.ViewsHandler

	DevMode bool
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	r.Get("/healthz", mw.Health)

	// The webhook reads the raw body for signature verification, so it
	// sits outside the body cap and auth stack.
	r.Post("/webhook-checkout", d.Bookings.Webhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.RateLimiter.Handler)
		r.Use(mw.BodyLimit)

		r.Route("/tours", func(r chi.Router) {
			r.Get("/", d.Tours.List)
			r.Get("/top-5-cheap", d.Tours.TopCheap)
			r.Get("/tour-stats", d.Tours.Stats)
			r.Get("/tours-within/{distance}/center/{latlng}/unit/{unit}", d.Tours.ToursWithin)
			r.Get("/distances/{latlng}/unit/{unit}", d.Tours.Distances)
			// The tours subtree shares one wildcard name; chi rejects
			// mixing {id} with {tourID} at the same position.
			r.Get("/{tourID}", d.Tours.Get)

			r.Group(func(r chi.Router) {
				r.Use(d.Auth.RequireAuth)
				r.With(mw.RequireRoles(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide)).
					Get("/monthly-plan/{year}", d.Tours.MonthlyPlan)

				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRoles(domain.RoleAdmin, domain.RoleLeadGuide))
					r.Post("/", d.Tours.Create)
					r.Patch("/{tourID}", d.Tours.Update)
					r.Delete("/{tourID}", d.Tours.Delete)
				})
			})

			r.Route("/{tourID}/reviews", func(r chi.Router) {
				r.Use(d.Auth.RequireAuth)
				r.Get("/", d.Reviews.List)
				r.With(mw.RequireRoles(domain.RoleUser)).Post("/", d.Reviews.Create)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/signup", d.AuthHandler.Signup)
			r.Post("/login", d.AuthHandler.Login)
			r.Get("/logout", d.AuthHandler.Logout)
			r.Post("/forgot-password", d.AuthHandler.ForgotPassword)
			r.Patch("/reset-password/{token}", d.AuthHandler.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(d.Auth.RequireAuth)
				r.Patch("/update-my-password", d.AuthHandler.UpdateMyPassword)
				r.Get("/me", d.Users.Me)
				r.Patch("/update-me", d.Users.UpdateMe)
				r.Delete("/delete-me", d.Users.DeleteMe)

				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRoles(domain.RoleAdmin))
					r.Get("/", d.Users.List)
					r.Post("/", d.Users.Create)
					r.Get("/{id}", d.Users.Get)
					r.Patch("/{id}", d.Users.Update)
					r.Delete("/{id}", d.Users.Delete)
				})
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Use(d.Auth.RequireAuth)
			r.Get("/", d.Reviews.List)
			r.With(mw.RequireRoles(domain.RoleUser)).Post("/", d.Reviews.Create)
			r.Get("/{id}", d.Reviews.Get)
			r.With(mw.RequireRoles(domain.RoleUser, domain.RoleAdmin)).Patch("/{id}", d.Reviews.Update)
			r.With(mw.RequireRoles(domain.RoleUser, domain.RoleAdmin)).Delete("/{id}", d.Reviews.Delete)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Use(d.Auth.RequireAuth)
			r.Get("/checkout-session/{id}", d.Bookings.CheckoutSession)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRoles(domain.RoleAdmin, domain.RoleLeadGuide))
				r.Get("/", d.Bookings.List)
				r.Post("/", d.Bookings.Create)
				r.Get("/{id}", d.Bookings.Get)
				r.Patch("/{id}", d.Bookings.Update)
				r.Delete("/{id}", d.Bookings.Delete)
			})
		})
	})

	// Rendered pages. OptionalAuth keeps them anonymous-friendly while
	// still greeting a logged-in user.
	r.Group(func(r chi.Router) {
		r.Use(d.Auth.OptionalAuth)
		r.Get("/", d.Views.Overview)
		r.Get("/tour/{slug}", d.Views.Tour)
		r.Get("/login", d.Views.Login)
		r.Get("/signup", d.Views.Signup)
	})
	r.Group(func(r chi.Router) {
		// Browsers get the error page on auth failures, not the JSON envelope.
		r.Use(d.Auth.RequirePageAuth(d.Views.ErrorPage))
		r.Get("/me", d.Views.Account)
		r.Get("/my-tours", d.Views.MyTours)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/api/") {
			response.Error(w, req,
				apperr.NotFound("Can't find "+req.URL.Path+" on this server!"), d.DevMode)
			return
		}
		d.Views.NotFound(w, req)
	})

	return r
}
