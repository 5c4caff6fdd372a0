package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/http/middleware"
	"github.com/wanderpeak/tours-api/internal/http/response"
	"github.com/wanderpeak/tours-api/internal/payments"
	"github.com/wanderpeak/tours-api/pkg/events"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

var BookingFilterColumns = map[string]bool{
	"tour_id":    true,
	"user_id":    true,
	"price":      true,
	"paid":       true,
	"created_at": true,
}

type TourFinder interface {
	Get(ctx context.Context, id int64) (*domain.Tour, error)
}

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

type BookingCreator interface {
	Create(ctx context.Context, req *domain.CreateBookingRequest) (*domain.Booking, error)
}

// BookingsHandler adds the payment flow on top of the admin CRUD resource:
// a hosted checkout session per tour, and the webhook that records the
// booking once Stripe confirms payment.
type BookingsHandler struct {
	*Resource[domain.Booking, domain.CreateBookingRequest, domain.UpdateBookingRequest]
	checkout *payments.Checkout
	tours    TourFinder
	users    UserFinder
	bookings BookingCreator
	bus      events.Publisher
}

func NewBookingsHandler(
	res *Resource[domain.Booking, domain.CreateBookingRequest, domain.UpdateBookingRequest],
	checkout *payments.Checkout,
	tours TourFinder,
	users UserFinder,
	bookings BookingCreator,
	bus events.Publisher,
) *BookingsHandler {
	return &BookingsHandler{
		Resource: res,
		checkout: checkout,
		tours:    tours,
		users:    users,
		bookings: bookings,
		bus:      bus,
	}
}

// CheckoutSession starts a hosted payment for one tour.
func (h *BookingsHandler) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	tourID, err := pathID(r)
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	tour, err := h.tours.Get(r.Context(), tourID)
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	if tour == nil {
		response.Error(w, r, apperr.NotFound("No tour found with that ID"), h.DevMode)
		return
	}

	sess, err := h.checkout.NewSession(user, tour)
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"session": map[string]any{
			"id":  sess.ID,
			"url": sess.URL,
		},
	})
}

// Webhook records the booking after Stripe confirms the charge. The
// booking is attributed from the verified event payload, never from
// anything the browser sent.
func (h *BookingsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, r, apperr.Validation("Unreadable webhook payload"), h.DevMode)
		return
	}

	payment, err := h.checkout.ParseCompletedSession(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		response.Error(w, r, apperr.Validation("Webhook error: "+err.Error()), h.DevMode)
		return
	}
	if payment == nil {
		// Not an event we act on; acknowledge so Stripe stops retrying.
		response.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	user, err := h.users.FindByEmail(r.Context(), domain.NormalizeEmail(payment.Email))
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	if user == nil {
		response.Error(w, r, apperr.NotFound("No user found for checkout email"), h.DevMode)
		return
	}

	booking, err := h.bookings.Create(r.Context(), &domain.CreateBookingRequest{
		TourID: payment.TourID,
		UserID: user.ID,
		Price:  payment.Price,
		Paid:   true,
	})
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}

	logger.InfoContext(r.Context(), "Booking recorded from checkout",
		"booking_id", booking.ID, "tour_id", booking.TourID, "user_id", booking.UserID)
	if err := h.bus.Publish(r.Context(), events.BookingPaid, events.BookingPaidEvent{
		BookingID: booking.ID,
		TourID:    booking.TourID,
		UserID:    booking.UserID,
		Price:     booking.Price,
		PaidAt:    time.Now(),
	}); err != nil {
		logger.WarnContext(r.Context(), "Failed to publish booking event", "error", err)
	}

	response.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
