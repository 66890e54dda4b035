// Package events provides the in-process event bus and the outbound
// domain events of the challenge evaluation core.
//
// Dispatch is synchronous on the publisher's goroutine: handlers run in
// priority order (higher first, registration order as tie-break), a
// failing or panicking handler is logged and isolated, and the optional
// external sink receives every event strictly after all handlers ran.
package events

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType defines the category of event
type EventType string

const (
	EventTypeEquityUpdated          EventType = "equity_updated"
	EventTypeChallengeStatusChanged EventType = "challenge_status_changed"
	EventTypeRiskAlert              EventType = "risk_alert"
)

// Event is the base interface for all domain events
type Event interface {
	GetType() EventType
	GetTimestamp() time.Time
	GetID() string
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *BaseEvent) GetType() EventType      { return e.Type }
func (e *BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e *BaseEvent) GetID() string           { return e.ID }

func newBaseEvent(eventType EventType, ts time.Time) BaseEvent {
	return BaseEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      eventType,
		Timestamp: ts,
	}
}

// EventHandler is a function that processes events
type EventHandler func(event Event) error

// Sink receives every published event after all handlers have run. Sink
// failures never reach the publisher.
type Sink func(event Event)

// Subscription represents an active event subscription
type Subscription struct {
	ID        string
	EventType EventType
	Handler   EventHandler
	Priority  int
	seq       int64
	active    atomic.Bool
}

// IsActive returns whether subscription is active
func (s *Subscription) IsActive() bool {
	return s.active.Load()
}

// BusStats tracks dispatch counters
type BusStats struct {
	EventsPublished   int64 `json:"events_published"`
	HandlersInvoked   int64 `json:"handlers_invoked"`
	HandlerErrors     int64 `json:"handler_errors"`
	SinkDeliveries    int64 `json:"sink_deliveries"`
	ActiveSubscribers int64 `json:"active_subscribers"`
}

// Bus is the central event routing system of the core. The handler table
// is read-heavy and write-rare; publishes from concurrent transactions
// are safe.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]*Subscription
	sink        Sink
	seq         int64

	eventsPublished   atomic.Int64
	handlersInvoked   atomic.Int64
	handlerErrors     atomic.Int64
	sinkDeliveries    atomic.Int64
	activeSubscribers atomic.Int64

	logger *zap.Logger
}

// NewBus creates an event bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType][]*Subscription),
		logger:      logger.Named("event-bus"),
	}
}

// Subscribe registers a handler for an event type. Higher priority runs
// first; equal priorities run in registration order.
func (b *Bus) Subscribe(eventType EventType, handler EventHandler, priority int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	sub := &Subscription{
		ID:        "sub_" + uuid.NewString(),
		EventType: eventType,
		Handler:   handler,
		Priority:  priority,
		seq:       b.seq,
	}
	sub.active.Store(true)

	subs := append(b.subscribers[eventType], sub)
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].Priority != subs[j].Priority {
			return subs[i].Priority > subs[j].Priority
		}
		return subs[i].seq < subs[j].seq
	})
	b.subscribers[eventType] = subs
	b.activeSubscribers.Add(1)

	b.logger.Debug("subscription added",
		zap.String("id", sub.ID),
		zap.String("event_type", string(eventType)),
		zap.Int("priority", priority),
	)

	return sub
}

// Unsubscribe deactivates a subscription
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil || !sub.active.Swap(false) {
		return
	}
	b.activeSubscribers.Add(-1)

	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[sub.EventType]
	for i, s := range subs {
		if s == sub {
			b.subscribers[sub.EventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// SetSink installs the single external sink. Pass nil to remove it.
func (b *Bus) SetSink(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

// Clear removes all subscriptions and the sink. Test hook.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			if sub.active.Swap(false) {
				b.activeSubscribers.Add(-1)
			}
		}
	}
	b.subscribers = make(map[EventType][]*Subscription)
	b.sink = nil
}

// Publish dispatches an event to every subscribed handler on the
// caller's goroutine, then hands it to the sink. Handler errors and
// panics are logged and do not stop dispatch.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]*Subscription, len(b.subscribers[event.GetType()]))
	copy(subs, b.subscribers[event.GetType()])
	sink := b.sink
	b.mu.RUnlock()

	b.eventsPublished.Add(1)

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		b.invokeHandler(sub, event)
	}

	if sink != nil {
		b.invokeSink(sink, event)
	}
}

// invokeHandler runs one handler with panic recovery
func (b *Bus) invokeHandler(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerErrors.Add(1)
			b.logger.Error("event handler panic",
				zap.String("subscription_id", sub.ID),
				zap.String("event_type", string(event.GetType())),
				zap.Any("panic", r),
			)
		}
	}()

	b.handlersInvoked.Add(1)
	if err := sub.Handler(event); err != nil {
		b.handlerErrors.Add(1)
		b.logger.Warn("event handler error",
			zap.String("subscription_id", sub.ID),
			zap.String("event_type", string(event.GetType())),
			zap.Error(err),
		)
	}
}

// invokeSink isolates sink failures from the hot path
func (b *Bus) invokeSink(sink Sink, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event sink panic",
				zap.String("event_type", string(event.GetType())),
				zap.Any("panic", r),
			)
		}
	}()

	sink(event)
	b.sinkDeliveries.Add(1)
}

// GetStats returns current dispatch counters
func (b *Bus) GetStats() BusStats {
	return BusStats{
		EventsPublished:   b.eventsPublished.Load(),
		HandlersInvoked:   b.handlersInvoked.Load(),
		HandlerErrors:     b.handlerErrors.Load(),
		SinkDeliveries:    b.sinkDeliveries.Load(),
		ActiveSubscribers: b.activeSubscribers.Load(),
	}
}
