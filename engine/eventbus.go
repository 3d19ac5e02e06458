package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

type EventType int

type SubscriberID int

type Event struct {
	Type    EventType
	Time    time.Time
	Payload any
}

// Handler runs on the emitting goroutine; a slow handler delays the tick.
type Handler func(Event)

type subscriber struct {
	id   SubscriberID
	fn   Handler
	mask uint64 // bit per EventType; 0 matches everything
}

func (s subscriber) wants(t EventType) bool {
	return s.mask == 0 || s.mask&(1<<uint(t)) != 0
}

// EventBus fans engine events out to in-process subscribers. Emit reads a
// copy-on-write subscriber list, so it never contends with the tick path.
type EventBus struct {
	mu     sync.Mutex
	nextID SubscriberID
	subs   atomic.Pointer[[]subscriber]
}

func NewEventBus() *EventBus {
	eb := &EventBus{}
	eb.subs.Store(&[]subscriber{})
	return eb
}

// Subscribe registers fn for every event type.
func (eb *EventBus) Subscribe(fn Handler) SubscriberID {
	return eb.add(fn, 0)
}

// SubscribeTypes registers fn for the listed event types only.
func (eb *EventBus) SubscribeTypes(fn Handler, types ...EventType) SubscriberID {
	var mask uint64
	for _, t := range types {
		mask |= 1 << uint(t)
	}
	return eb.add(fn, mask)
}

func (eb *EventBus) add(fn Handler, mask uint64) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	cur := *eb.subs.Load()
	next := make([]subscriber, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, subscriber{id: eb.nextID, fn: fn, mask: mask})
	eb.subs.Store(&next)
	return eb.nextID
}

func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	cur := *eb.subs.Load()
	next := make([]subscriber, 0, len(cur))
	for _, s := range cur {
		if s.id != id {
			next = append(next, s)
		}
	}
	eb.subs.Store(&next)
}

// Emit delivers evt to matching subscribers in subscription order.
func (eb *EventBus) Emit(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	for _, s := range *eb.subs.Load() {
		if s.wants(evt.Type) {
			s.fn(evt)
		}
	}
}
