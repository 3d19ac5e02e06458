package engine

import "testing"

func TestEventBusFiltersByType(t *testing.T) {
	bus := NewEventBus()
	var all, ticks int
	bus.Subscribe(func(Event) { all++ })
	id := bus.SubscribeTypes(func(evt Event) {
		if evt.Time.IsZero() {
			t.Error("Emit should stamp the event")
		}
		ticks++
	}, EventTick)

	bus.Emit(Event{Type: EventTick})
	bus.Emit(Event{Type: EventLog})
	if all != 2 || ticks != 1 {
		t.Fatalf("all=%d ticks=%d, want 2 and 1", all, ticks)
	}

	bus.Unsubscribe(id)
	bus.Emit(Event{Type: EventTick})
	if ticks != 1 {
		t.Errorf("unsubscribed handler still called")
	}
}

func TestUnsubscribeDuringEmit(t *testing.T) {
	bus := NewEventBus()
	var calls int
	var id SubscriberID
	id = bus.SubscribeTypes(func(Event) {
		calls++
		bus.Unsubscribe(id)
	}, EventWarningsChanged)
	bus.SubscribeTypes(func(Event) { calls++ }, EventWarningsChanged)

	bus.Emit(Event{Type: EventWarningsChanged})
	bus.Emit(Event{Type: EventWarningsChanged})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}
