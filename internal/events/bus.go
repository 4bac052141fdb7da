// Package events provides the in-process event bus connecting the market data
// and dashboard layers to the API broadcast surface.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventQuoteUpdate       EventType = "QUOTE_UPDATE"
	EventCandleUpdate      EventType = "CANDLE_UPDATE"
	EventDashboardUpdate   EventType = "DASHBOARD_UPDATE"
	EventLeaderboardUpdate EventType = "LEADERBOARD_UPDATE"
	EventFeedStatus        EventType = "FEED_STATUS"
	EventUserLogout        EventType = "USER_LOGOUT"
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

// PublishQuoteUpdate publishes a quote update event
func (eb *EventBus) PublishQuoteUpdate(symbol string, price, change, changePercent float64) {
	eb.Publish(Event{
		Type: EventQuoteUpdate,
		Data: map[string]interface{}{
			"symbol":         symbol,
			"price":          price,
			"change":         change,
			"change_percent": changePercent,
		},
	})
}

// PublishFeedStatus publishes a feed connection status change
func (eb *EventBus) PublishFeedStatus(connected bool) {
	eb.Publish(Event{
		Type: EventFeedStatus,
		Data: map[string]interface{}{
			"connected": connected,
		},
	})
}

// PublishDashboardUpdate publishes a refreshed dashboard snapshot
func (eb *EventBus) PublishDashboardUpdate(snapshot interface{}) {
	eb.Publish(Event{
		Type: EventDashboardUpdate,
		Data: map[string]interface{}{
			"snapshot": snapshot,
		},
	})
}

// PublishLeaderboardUpdate publishes refreshed leaderboard standings
func (eb *EventBus) PublishLeaderboardUpdate(entries interface{}) {
	eb.Publish(Event{
		Type: EventLeaderboardUpdate,
		Data: map[string]interface{}{
			"entries": entries,
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

// PublishUserLogout publishes a user logout event
func (eb *EventBus) PublishUserLogout(userID string) {
	eb.Publish(Event{
		Type: EventUserLogout,
		Data: map[string]interface{}{
			"user_id": userID,
		},
	})
}
