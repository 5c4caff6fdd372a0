package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/wanderpeak/tours-api/internal/service"
	"github.com/wanderpeak/tours-api/pkg/events"
)

// ---------- Mocks ----------

type subscription struct {
	subject string
	queue   string
	handler func(msg *events.Message)
}

type mockSubscriber struct {
	subs []subscription
}

func (m *mockSubscriber) Subscribe(subject string, handler func(msg *events.Message)) error {
	m.subs = append(m.subs, subscription{subject: subject, handler: handler})
	return nil
}

func (m *mockSubscriber) QueueSubscribe(subject, queue string, handler func(msg *events.Message)) error {
	m.subs = append(m.subs, subscription{subject: subject, queue: queue, handler: handler})
	return nil
}

func (m *mockSubscriber) Close() error { return nil }

// ---------- Tests ----------

func TestNotifierSubscribesAndStopsOnCancel(t *testing.T) {
	bus := &mockSubscriber{}
	notifier := service.NewNotifier(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- notifier.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	if len(bus.subs) != 2 {
		t.Fatalf("subscriptions = %d", len(bus.subs))
	}
	want := map[string]bool{events.ReviewPersisted: true, events.BookingPaid: true}
	for _, sub := range bus.subs {
		if !want[sub.subject] {
			t.Errorf("unexpected subject %q", sub.subject)
		}
		if sub.queue != "notifications" {
			t.Errorf("queue = %q for %q", sub.queue, sub.subject)
		}
	}
}

// Handlers must survive payloads that do not unmarshal.
func TestNotifierHandlesMalformedPayload(t *testing.T) {
	bus := &mockSubscriber{}
	notifier := service.NewNotifier(bus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := notifier.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, sub := range bus.subs {
		sub.handler(&events.Message{Subject: sub.subject, Data: []byte("not json")})
	}

	payload, _ := json.Marshal(events.BookingPaidEvent{BookingID: 1, TourID: 2, UserID: 3, Price: 497})
	for _, sub := range bus.subs {
		if sub.subject == events.BookingPaid {
			sub.handler(&events.Message{Subject: sub.subject, Data: payload})
		}
	}
}
