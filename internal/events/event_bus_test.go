package events

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/walidbouh09/tradesense/pkg/types"
)

func testEvent() *EquityUpdatedEvent {
	d := decimal.NewFromInt(10000)
	return NewEquityUpdatedEvent("ch_1", d, d, d, d, d, d, decimal.Zero, time.Now().UTC())
}

func TestPublishInvokesSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var received []Event
	bus.Subscribe(EventTypeEquityUpdated, func(e Event) error {
		received = append(received, e)
		return nil
	}, 0)

	evt := testEvent()
	bus.Publish(evt)

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].GetID() != evt.GetID() {
		t.Errorf("expected event %s, got %s", evt.GetID(), received[0].GetID())
	}
}

func TestPublishIgnoresOtherEventTypes(t *testing.T) {
	bus := NewBus(zap.NewNop())

	calls := 0
	bus.Subscribe(EventTypeRiskAlert, func(e Event) error {
		calls++
		return nil
	}, 0)

	bus.Publish(testEvent())
	if calls != 0 {
		t.Errorf("expected no calls for unrelated event type, got %d", calls)
	}
}

func TestPriorityOrdering(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var order []string
	add := func(name string, priority int) {
		bus.Subscribe(EventTypeEquityUpdated, func(e Event) error {
			order = append(order, name)
			return nil
		}, priority)
	}
	add("low", 1)
	add("high", 100)
	add("mid-a", 50)
	add("mid-b", 50) // same priority, registered after mid-a

	bus.Publish(testEvent())

	want := []string{"high", "mid-a", "mid-b", "low"}
	if len(order) != len(want) {
		t.Fatalf("expected %d invocations, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestHandlerErrorAndPanicIsolation(t *testing.T) {
	bus := NewBus(zap.NewNop())

	bus.Subscribe(EventTypeEquityUpdated, func(e Event) error {
		return errors.New("handler failure")
	}, 30)
	bus.Subscribe(EventTypeEquityUpdated, func(e Event) error {
		panic("handler panic")
	}, 20)

	reached := false
	bus.Subscribe(EventTypeEquityUpdated, func(e Event) error {
		reached = true
		return nil
	}, 10)

	bus.Publish(testEvent())

	if !reached {
		t.Error("later handler must run despite earlier error and panic")
	}
	stats := bus.GetStats()
	if stats.HandlerErrors != 2 {
		t.Errorf("expected 2 handler errors, got %d", stats.HandlerErrors)
	}
}

func TestSinkRunsAfterAllHandlers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var order []string
	bus.SetSink(func(e Event) {
		order = append(order, "sink")
	})
	bus.Subscribe(EventTypeEquityUpdated, func(e Event) error {
		order = append(order, "handler-a")
		return nil
	}, 10)
	bus.Subscribe(EventTypeEquityUpdated, func(e Event) error {
		order = append(order, "handler-b")
		return nil
	}, 5)

	bus.Publish(testEvent())

	if len(order) != 3 || order[2] != "sink" {
		t.Fatalf("expected sink last, got %v", order)
	}
}

func TestSinkPanicDoesNotPropagate(t *testing.T) {
	bus := NewBus(zap.NewNop())
	bus.SetSink(func(e Event) {
		panic("sink panic")
	})

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("sink panic escaped to publisher: %v", r)
		}
	}()
	bus.Publish(testEvent())
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop())

	calls := 0
	sub := bus.Subscribe(EventTypeEquityUpdated, func(e Event) error {
		calls++
		return nil
	}, 0)

	bus.Publish(testEvent())
	bus.Unsubscribe(sub)
	bus.Publish(testEvent())

	if calls != 1 {
		t.Errorf("expected 1 call after unsubscribe, got %d", calls)
	}
	if sub.IsActive() {
		t.Error("expected subscription inactive")
	}
	if got := bus.GetStats().ActiveSubscribers; got != 0 {
		t.Errorf("expected 0 active subscribers, got %d", got)
	}

	// Double unsubscribe is a no-op.
	bus.Unsubscribe(sub)
	if got := bus.GetStats().ActiveSubscribers; got != 0 {
		t.Errorf("expected count unchanged after repeat unsubscribe, got %d", got)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	bus := NewBus(zap.NewNop())

	calls := 0
	bus.Subscribe(EventTypeEquityUpdated, func(e Event) error {
		calls++
		return nil
	}, 0)
	sinkCalls := 0
	bus.SetSink(func(e Event) { sinkCalls++ })

	bus.Clear()
	bus.Publish(testEvent())

	if calls != 0 || sinkCalls != 0 {
		t.Errorf("expected nothing invoked after Clear, got handlers=%d sink=%d", calls, sinkCalls)
	}
}

func TestStatsCounters(t *testing.T) {
	bus := NewBus(zap.NewNop())
	bus.Subscribe(EventTypeEquityUpdated, func(e Event) error { return nil }, 0)
	bus.SetSink(func(e Event) {})

	bus.Publish(testEvent())
	bus.Publish(testEvent())

	stats := bus.GetStats()
	if stats.EventsPublished != 2 {
		t.Errorf("expected 2 published, got %d", stats.EventsPublished)
	}
	if stats.HandlersInvoked != 2 {
		t.Errorf("expected 2 handler invocations, got %d", stats.HandlersInvoked)
	}
	if stats.SinkDeliveries != 2 {
		t.Errorf("expected 2 sink deliveries, got %d", stats.SinkDeliveries)
	}
}

func TestDomainEventConstructors(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	equity := testEvent()
	if equity.GetType() != EventTypeEquityUpdated {
		t.Errorf("unexpected type %s", equity.GetType())
	}
	if equity.GetID() == "" {
		t.Error("expected generated event id")
	}

	status := NewChallengeStatusChangedEvent("ch_1", types.StatusActive, types.StatusFailed, types.TransitionReasonMaxDailyDrawdown, at)
	if status.GetType() != EventTypeChallengeStatusChanged {
		t.Errorf("unexpected type %s", status.GetType())
	}
	if !status.GetTimestamp().Equal(at) {
		t.Errorf("expected timestamp %s, got %s", at, status.GetTimestamp())
	}

	alert := NewRiskAlertEvent("ch_1", "behavioral_risk", types.SeverityCritical, "t", "m", nil)
	if alert.GetType() != EventTypeRiskAlert {
		t.Errorf("unexpected type %s", alert.GetType())
	}
	if alert.Severity != types.SeverityCritical {
		t.Errorf("unexpected severity %s", alert.Severity)
	}
}
