package domain

import (
	"time"

	"github.com/wanderpeak/tours-api/internal/apperr"
)

// ReviewAuthor is the public slice of the reviewing user joined onto reads.
type ReviewAuthor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

type Review struct {
	ID        int64         `json:"id"`
	Review    string        `json:"review"`
	Rating    float64       `json:"rating"`
	TourID    int64         `json:"tour_id"`
	UserID    int64         `json:"user_id"`
	User      *ReviewAuthor `json:"user,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type CreateReviewRequest struct {
	Review string  `json:"review"`
	Rating float64 `json:"rating"`
	TourID int64   `json:"tour_id"`
	UserID int64   `json:"user_id"`
}

func (r *CreateReviewRequest) Validate() error {
	fields := map[string]string{}
	if r.Review == "" {
		fields["review"] = "Review can not be empty"
	}
	if r.Rating < 1 || r.Rating > 5 {
		fields["rating"] = "Rating must be between 1 and 5"
	}
	if r.TourID == 0 {
		fields["tour_id"] = "Review must belong to a tour"
	}
	if r.UserID == 0 {
		fields["user_id"] = "Review must belong to a user"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

type UpdateReviewRequest struct {
	Review *string  `json:"review,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

func (r *UpdateReviewRequest) Validate() error {
	fields := map[string]string{}
	if r.Review != nil && *r.Review == "" {
		fields["review"] = "Review can not be empty"
	}
	if r.Rating != nil && (*r.Rating < 1 || *r.Rating > 5) {
		fields["rating"] = "Rating must be between 1 and 5"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

// RatingSummary is the aggregate recomputed after every review write.
type RatingSummary struct {
	Quantity int
	Average  float64
}
