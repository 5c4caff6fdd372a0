package service_test

import (
	"context"
	"testing"

	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/service"
	"github.com/wanderpeak/tours-api/pkg/events"
)

type mockReviewAggregates struct {
	summary domain.RatingSummary
}

func (m *mockReviewAggregates) RatingSummary(context.Context, int64) (domain.RatingSummary, error) {
	return m.summary, nil
}

type mockTourRatings struct {
	tourID  int64
	summary domain.RatingSummary
	calls   int
}

func (m *mockTourRatings) UpdateRatings(_ context.Context, tourID int64, summary domain.RatingSummary) error {
	m.tourID = tourID
	m.summary = summary
	m.calls++
	return nil
}

func TestRecomputeWritesSummary(t *testing.T) {
	reviews := &mockReviewAggregates{summary: domain.RatingSummary{Quantity: 3, Average: 4.3333333}}
	tours := &mockTourRatings{}
	agg := service.NewRatingAggregator(reviews, tours, events.NoopBus{})

	if err := agg.Recompute(context.Background(), 7, 101); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if tours.calls != 1 || tours.tourID != 7 {
		t.Fatalf("UpdateRatings calls=%d tourID=%d", tours.calls, tours.tourID)
	}
	if tours.summary.Quantity != 3 {
		t.Errorf("quantity = %d", tours.summary.Quantity)
	}
}

// With no reviews left the summary falls back to the catalog default.
func TestRecomputeEmpty(t *testing.T) {
	reviews := &mockReviewAggregates{summary: domain.RatingSummary{Quantity: 0, Average: domain.DefaultRating}}
	tours := &mockTourRatings{}
	agg := service.NewRatingAggregator(reviews, tours, events.NoopBus{})

	if err := agg.Recompute(context.Background(), 7, 0); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if tours.summary.Quantity != 0 || tours.summary.Average != domain.DefaultRating {
		t.Errorf("summary = %+v", tours.summary)
	}
}
