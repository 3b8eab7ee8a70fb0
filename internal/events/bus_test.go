package events

import (
	"testing"
	"time"
)

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("No event delivered")
		return Event{}
	}
}

// TestSubscribeByType tests that typed subscribers only see their type
func TestSubscribeByType(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 4)

	bus.Subscribe(EventPlanCreated, func(ev Event) { got <- ev })

	bus.PublishAnalysisCompleted("a1", "AAPL", 82, "B", "Buy")
	bus.PublishPlanCreated("AAPL", "GO", 5, 1.75, 7.00)

	ev := waitEvent(t, got)
	if ev.Type != EventPlanCreated {
		t.Fatalf("Expected only plan events, got %s", ev.Type)
	}
	if ev.Data["contracts"] != 5 {
		t.Errorf("Expected 5 contracts in payload, got %v", ev.Data["contracts"])
	}
	if ev.Timestamp.IsZero() {
		t.Error("Publish should stamp the event")
	}

	select {
	case ev := <-got:
		t.Fatalf("Unexpected extra event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestSubscribeAll tests the firehose subscription
func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 4)

	bus.SubscribeAll(func(ev Event) { got <- ev })

	bus.PublishStopUpdate("NVDA", "atr", 103, 2.5)
	bus.PublishError("cache", "redis unavailable", nil)

	seen := map[EventType]bool{}
	seen[waitEvent(t, got).Type] = true
	seen[waitEvent(t, got).Type] = true

	if !seen[EventStopUpdate] || !seen[EventError] {
		t.Errorf("Firehose should see both events, saw %v", seen)
	}
}

// TestErrorEventPayload tests optional error detail
func TestErrorEventPayload(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 1)
	bus.Subscribe(EventError, func(ev Event) { got <- ev })

	bus.PublishError("journal", "save failed", nil)

	ev := waitEvent(t, got)
	if _, ok := ev.Data["error"]; ok {
		t.Error("Nil error should not add an error field")
	}
	if ev.Data["source"] != "journal" {
		t.Errorf("Expected source journal, got %v", ev.Data["source"])
	}
}
