package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wanderpeak/tours-api/pkg/events"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

// notifierQueue groups subscribers so each event is handled once across
// replicas.
const notifierQueue = "notifications"

// Notifier is the observer side of the event bus: it consumes review and
// booking events and records the activity. It runs alongside the HTTP
// server for the life of the process.
type Notifier struct {
	bus events.Subscriber
}

func NewNotifier(bus events.Subscriber) *Notifier {
	return &Notifier{bus: bus}
}

// Run registers the subscriptions and blocks until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	if err := n.bus.QueueSubscribe(events.ReviewPersisted, notifierQueue, n.onReviewPersisted); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.ReviewPersisted, err)
	}
	if err := n.bus.QueueSubscribe(events.BookingPaid, notifierQueue, n.onBookingPaid); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.BookingPaid, err)
	}

	<-ctx.Done()
	return nil
}

func (n *Notifier) onReviewPersisted(msg *events.Message) {
	var ev events.ReviewPersistedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Warn("Malformed event payload", "subject", msg.Subject, "error", err)
		return
	}
	logger.Info("Tour ratings refreshed",
		"tour_id", ev.TourID, "review_id", ev.ReviewID)
}

func (n *Notifier) onBookingPaid(msg *events.Message) {
	var ev events.BookingPaidEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Warn("Malformed event payload", "subject", msg.Subject, "error", err)
		return
	}
	logger.Info("Booking confirmed",
		"booking_id", ev.BookingID, "tour_id", ev.TourID,
		"user_id", ev.UserID, "price", ev.Price)
}
