package service

import (
	"context"
	"time"

	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/pkg/events"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

type ReviewAggregates interface {
	RatingSummary(ctx context.Context, tourID int64) (domain.RatingSummary, error)
}

type TourRatings interface {
	UpdateRatings(ctx context.Context, tourID int64, summary domain.RatingSummary) error
}

// RatingAggregator recomputes a tour's rating aggregate from its reviews.
// Review handlers call it synchronously after every create, update, or
// delete; the published event is for external observers, not the write
// path itself.
type RatingAggregator struct {
	reviews ReviewAggregates
	tours   TourRatings
	bus     events.Publisher
}

func NewRatingAggregator(reviews ReviewAggregates, tours TourRatings, bus events.Publisher) *RatingAggregator {
	return &RatingAggregator{reviews: reviews, tours: tours, bus: bus}
}

// Recompute reads the review aggregate and writes it onto the tour. When
// the last review disappears the summary falls back to the catalog default
// rating with quantity zero.
func (a *RatingAggregator) Recompute(ctx context.Context, tourID, reviewID int64) error {
	summary, err := a.reviews.RatingSummary(ctx, tourID)
	if err != nil {
		return err
	}
	if err := a.tours.UpdateRatings(ctx, tourID, summary); err != nil {
		return err
	}

	if err := a.bus.Publish(ctx, events.ReviewPersisted, events.ReviewPersistedEvent{
		TourID:      tourID,
		ReviewID:    reviewID,
		PersistedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish review event", "error", err, "tour_id", tourID)
	}
	return nil
}
