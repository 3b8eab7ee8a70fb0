package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventAnalysisCompleted EventType = "ANALYSIS_COMPLETED"
	EventQuickCheck        EventType = "QUICK_CHECK"
	EventPlanCreated       EventType = "PLAN_CREATED"
	EventExitAdjustment    EventType = "EXIT_ADJUSTMENT"
	EventStopUpdate        EventType = "STOP_UPDATE"
	EventJournalUpdated    EventType = "JOURNAL_UPDATED"
	EventError             EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishAnalysisCompleted publishes the headline numbers of a finished
// analysis.
func (eb *EventBus) PublishAnalysisCompleted(id, ticker string, score float64, grade, recommendation string) {
	eb.Publish(Event{
		Type: EventAnalysisCompleted,
		Data: map[string]interface{}{
			"analysis_id":    id,
			"ticker":         ticker,
			"score":          score,
			"grade":          grade,
			"recommendation": recommendation,
		},
	})
}

// PublishPlanCreated publishes a created trade plan
func (eb *EventBus) PublishPlanCreated(ticker, goNoGo string, contracts int, stopLoss, target float64) {
	eb.Publish(Event{
		Type: EventPlanCreated,
		Data: map[string]interface{}{
			"ticker":    ticker,
			"go_no_go":  goNoGo,
			"contracts": contracts,
			"stop_loss": stopLoss,
			"target_1":  target,
		},
	})
}

// PublishExitAdjustment publishes a dynamic exit recommendation
func (eb *EventBus) PublishExitAdjustment(ticker, action, reason string, exitContracts int) {
	eb.Publish(Event{
		Type: EventExitAdjustment,
		Data: map[string]interface{}{
			"ticker":         ticker,
			"action":         action,
			"reason":         reason,
			"exit_contracts": exitContracts,
		},
	})
}

// PublishStopUpdate publishes a trailing stop move
func (eb *EventBus) PublishStopUpdate(ticker, kind string, price, profitR float64) {
	eb.Publish(Event{
		Type: EventStopUpdate,
		Data: map[string]interface{}{
			"ticker":    ticker,
			"stop_type": kind,
			"price":     price,
			"profit_r":  profitR,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
