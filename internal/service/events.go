package service

import (
	"sync"

	"valuestream/internal/domain"
)

// EventType defines the type of event
type EventType string

const (
	EventMapCreated        EventType = "map_created"
	EventMapUpdated        EventType = "map_updated"
	EventMapDeleted        EventType = "map_deleted"
	EventMapImported       EventType = "map_imported"
	EventProcessAdded      EventType = "process_added"
	EventProcessRemoved    EventType = "process_removed"
	EventConnectionAdded   EventType = "connection_added"
	EventConnectionRemoved EventType = "connection_removed"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// MapPayload identifies the affected map and carries its fresh metrics
type MapPayload struct {
	MapID    string                `json:"map_id"`
	EntityID string                `json:"entity_id,omitempty"`
	Metrics  *domain.StreamMetrics `json:"metrics,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
