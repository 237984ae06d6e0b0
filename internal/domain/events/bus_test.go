package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testEvent(eventType Type, providerID string, severity Severity) Event {
	return New(eventType, providerID, severity, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), CircuitStateChanged{From: "closed", To: "open"})
}

func TestPublishReachesMatchingSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	all, cancelAll := bus.Subscribe(Filter{})
	defer cancelAll()
	circuitOnly, cancelCircuit := bus.Subscribe(Filter{Types: []Type{TypeCircuitStateChanged}})
	defer cancelCircuit()
	stripeOnly, cancelStripe := bus.Subscribe(Filter{ProviderIDs: []string{"stripe"}})
	defer cancelStripe()
	criticalOnly, cancelCritical := bus.Subscribe(Filter{Severities: []Severity{SeverityCritical}})
	defer cancelCritical()

	bus.Publish(testEvent(TypeCircuitStateChanged, "twilio", SeverityWarning))

	if got := len(all); got != 1 {
		t.Fatalf("unfiltered subscriber: %d events, want 1", got)
	}
	if got := len(circuitOnly); got != 1 {
		t.Fatalf("type filter: %d events, want 1", got)
	}
	if got := len(stripeOnly); got != 0 {
		t.Fatalf("provider filter: %d events, want 0", got)
	}
	if got := len(criticalOnly); got != 0 {
		t.Fatalf("severity filter: %d events, want 0", got)
	}
}

func TestPublishAssignsIdentity(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	ch, cancel := bus.Subscribe(Filter{})
	defer cancel()

	bus.Publish(testEvent(TypeCircuitStateChanged, "stripe", SeverityCritical))

	e := <-ch
	if e.ID == "" {
		t.Fatalf("expected event id")
	}
	if e.Type != TypeCircuitStateChanged || e.ProviderID != "stripe" {
		t.Fatalf("unexpected envelope %+v", e)
	}
	if _, ok := e.Payload.(CircuitStateChanged); !ok {
		t.Fatalf("unexpected payload type %T", e.Payload)
	}
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	dropped := 0
	bus.OnDrop(func() { dropped++ })

	_, cancel := bus.Subscribe(Filter{})
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			bus.Publish(testEvent(TypeHealthChanged, "stripe", SeverityInfo))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}

	if bus.Dropped() != 10 {
		t.Fatalf("dropped = %d, want 10", bus.Dropped())
	}
	if dropped != 10 {
		t.Fatalf("drop hook fired %d times, want 10", dropped)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	ch, cancel := bus.Subscribe(Filter{})

	cancel()

	if _, open := <-ch; open {
		t.Fatalf("expected closed channel after unsubscribe")
	}
	if bus.SubscriberCount() != 0 {
		t.Fatalf("expected zero subscribers, got %d", bus.SubscriberCount())
	}

	// Publishing with no subscribers must not panic.
	bus.Publish(testEvent(TypeFallbackUsed, "stripe", SeverityWarning))
}

func TestCancelIsIdempotent(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	_, cancel := bus.Subscribe(Filter{})
	cancel()
	cancel()
}
