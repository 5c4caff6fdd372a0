package domain

import (
	"time"

	"github.com/wanderpeak/tours-api/internal/apperr"
)

type Booking struct {
	ID        int64     `json:"id"`
	TourID    int64     `json:"tour_id"`
	UserID    int64     `json:"user_id"`
	Price     float64   `json:"price"`
	Paid      bool      `json:"paid"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateBookingRequest struct {
	TourID int64   `json:"tour_id"`
	UserID int64   `json:"user_id"`
	Price  float64 `json:"price"`
	Paid   bool    `json:"paid"`
}

func (r *CreateBookingRequest) Validate() error {
	fields := map[string]string{}
	if r.TourID == 0 {
		fields["tour_id"] = "Booking must belong to a tour"
	}
	if r.UserID == 0 {
		fields["user_id"] = "Booking must belong to a user"
	}
	if r.Price <= 0 {
		fields["price"] = "Booking must have a price"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

type UpdateBookingRequest struct {
	Price *float64 `json:"price,omitempty"`
	Paid  *bool    `json:"paid,omitempty"`
}

func (r *UpdateBookingRequest) Validate() error {
	if r.Price != nil && *r.Price <= 0 {
		return apperr.ValidationFields(map[string]string{"price": "Booking must have a price"})
	}
	return nil
}
