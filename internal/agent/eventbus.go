package agent

import (
	"sync"
	"time"
)

// EventType represents the type of turn lifecycle event.
type EventType string

const (
	EventTurnStart         EventType = "turn_start"
	EventTurnComplete      EventType = "turn_complete"
	EventTurnFailed        EventType = "turn_failed"
	EventGuardViolation    EventType = "guard_violation"
	EventEmbeddingFailed   EventType = "embedding_failed"
	EventMemoriesRetrieved EventType = "memories_retrieved"
	EventAppraisalFallback EventType = "appraisal_fallback"
	EventMemoryStored      EventType = "memory_stored"
	EventContextSummarized EventType = "context_summarized"
	EventSummaryFallback   EventType = "summary_fallback"
)

// Event represents a turn event with associated data.
type Event struct {
	Type         EventType
	Timestamp    time.Time
	Conversation string
	User         string
	Data         map[string]any
}

// EventHandler is a function that handles events.
type EventHandler func(Event)

// EventBus fans turn events out to subscribers. Handlers run synchronously
// on the publishing goroutine.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types.
func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allHandlers = append(eb.allHandlers, handler)
}

// Publish sends an event to all registered handlers. Handlers may
// subscribe further handlers without deadlocking.
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	targets := make([]EventHandler, 0, len(eb.handlers[event.Type])+len(eb.allHandlers))
	targets = append(targets, eb.handlers[event.Type]...)
	targets = append(targets, eb.allHandlers...)
	eb.mu.RUnlock()

	for _, handler := range targets {
		handler(event)
	}
}
