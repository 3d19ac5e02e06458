package messaging

import (
	"log"
	"sync"
	"time"

	"fleetcore/engine"
	"fleetcore/protocol"
	"fleetcore/robot"
)

// EventPublisher turns engine events into protocol envelopes on the event
// topic. Envelopes are queued and sent from a background goroutine so a slow
// broker never stalls a tick.
type EventPublisher struct {
	pub       Publisher
	topic     string
	stationID string
	every     uint64

	queue    chan *protocol.Envelope
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
	subs     []engine.SubscriberID
	bus      *engine.EventBus
}

const publishQueue = 256

// NewEventPublisher sends a tick snapshot every `every` ticks (0 disables
// snapshots) plus every task completion and warning change.
func NewEventPublisher(pub Publisher, topic, stationID string, every int) *EventPublisher {
	if every < 0 {
		every = 0
	}
	return &EventPublisher{
		pub:       pub,
		topic:     topic,
		stationID: stationID,
		every:     uint64(every),
		queue:     make(chan *protocol.Envelope, publishQueue),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Attach subscribes to the bus and starts the sender.
func (p *EventPublisher) Attach(bus *engine.EventBus) {
	p.bus = bus
	p.subs = append(p.subs,
		bus.SubscribeTypes(func(evt engine.Event) {
			s := evt.Payload.(engine.TickEvent).Snapshot
			if p.every == 0 || s.Tick%p.every != 0 {
				return
			}
			p.enqueue(protocol.TypeTick, s.Tick, TickPayload(s))
		}, engine.EventTick),
		bus.SubscribeTypes(func(evt engine.Event) {
			ev := evt.Payload.(engine.TaskCompletedEvent)
			p.enqueue(protocol.TypeTaskCompleted, ev.Tick, &protocol.TaskCompleted{RobotID: ev.RobotID, Vertex: int(ev.Vertex)})
		}, engine.EventTaskCompleted),
		bus.SubscribeTypes(func(evt engine.Event) {
			ev := evt.Payload.(engine.WarningsChangedEvent)
			p.enqueue(protocol.TypeWarnings, ev.Tick, &protocol.Warnings{Tick: ev.Tick, Warnings: ev.Warnings, Added: ev.Added})
		}, engine.EventWarningsChanged),
	)
	go p.run()
}

func (p *EventPublisher) Stop() {
	p.stopOnce.Do(func() {
		if p.bus != nil {
			for _, id := range p.subs {
				p.bus.Unsubscribe(id)
			}
		}
		close(p.stopChan)
	})
	if p.bus != nil {
		<-p.done
	}
}

func (p *EventPublisher) enqueue(msgType string, tick uint64, payload any) {
	src := protocol.Address{Role: protocol.RoleCore, Station: p.stationID}
	dst := protocol.Address{Role: protocol.RoleClient, Station: protocol.Broadcast}
	env, err := protocol.NewEnvelope(msgType, src, dst, payload)
	if err != nil {
		log.Printf("publisher: build %s: %v", msgType, err)
		return
	}
	env.Tick = tick
	select {
	case p.queue <- env:
	default:
		log.Printf("publisher: queue full, dropping %s", msgType)
	}
}

func (p *EventPublisher) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stopChan:
			p.drain()
			return
		case env := <-p.queue:
			p.send(env)
		}
	}
}

// drain sends whatever is still queued at shutdown.
func (p *EventPublisher) drain() {
	for {
		select {
		case env := <-p.queue:
			p.send(env)
		default:
			return
		}
	}
}

func (p *EventPublisher) send(env *protocol.Envelope) {
	if env.Expired(time.Now().UTC()) {
		log.Printf("publisher: %s %s expired before send", env.Type, env.ID)
		return
	}
	data, err := env.Encode()
	if err != nil {
		log.Printf("publisher: encode %s: %v", env.Type, err)
		return
	}
	if err := p.pub.Publish(p.topic, data); err != nil {
		log.Printf("publisher: publish %s to %s failed: %v", env.Type, p.topic, err)
	}
}

// TickPayload converts an engine snapshot to its wire form.
func TickPayload(s engine.Snapshot) *protocol.Tick {
	robots := make([]protocol.RobotState, len(s.Robots))
	for i, v := range s.Robots {
		robots[i] = RobotState(v)
	}
	return &protocol.Tick{Tick: s.Tick, Time: s.Time, Robots: robots, Warnings: s.Warnings}
}

func RobotState(v robot.View) protocol.RobotState {
	rs := protocol.RobotState{
		ID:          v.ID,
		X:           v.Position.X,
		Y:           v.Position.Y,
		Vertex:      int(v.CurrentVertex),
		Destination: v.Destination,
		Status:      v.Status.String(),
		Waiting:     v.Waiting,
		Selected:    v.Selected,
	}
	if v.NextWaypoint != nil {
		n := int(v.NextWaypoint.Vertex)
		rs.NextVertex = &n
	}
	return rs
}
