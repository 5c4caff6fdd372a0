package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/wanderpeak/tours-api/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject)

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// NoopBus satisfies EventBus when no broker is configured. Aggregation
// still runs synchronously in-process; only external observers miss out.
type NoopBus struct{}

func (NoopBus) Publish(context.Context, string, interface{}) error      { return nil }
func (NoopBus) Subscribe(string, func(msg *Message)) error              { return nil }
func (NoopBus) QueueSubscribe(string, string, func(msg *Message)) error { return nil }
func (NoopBus) Close() error                                            { return nil }

// Subjects
const (
	ReviewPersisted = "review.persisted"
	BookingPaid     = "booking.paid"
	UserSignedUp    = "user.signed_up"
)

// Event payloads
type ReviewPersistedEvent struct {
	TourID      int64     `json:"tour_id"`
	ReviewID    int64     `json:"review_id,omitempty"`
	PersistedAt time.Time `json:"persisted_at"`
}

type BookingPaidEvent struct {
	BookingID int64     `json:"booking_id"`
	TourID    int64     `json:"tour_id"`
	UserID    int64     `json:"user_id"`
	Price     float64   `json:"price"`
	PaidAt    time.Time `json:"paid_at"`
}

type UserSignedUpEvent struct {
	UserID   int64     `json:"user_id"`
	Email    string    `json:"email"`
	SignedAt time.Time `json:"signed_at"`
}
