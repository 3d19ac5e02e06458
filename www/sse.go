package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"fleetcore/engine"
	"fleetcore/fleetlog"
)

type SSEEvent struct {
	Event string
	Data  string
}

// eventFilter is the set of event names a client asked for; nil means all.
type eventFilter map[string]bool

func (f eventFilter) wants(event string) bool {
	return f == nil || f[event] || event == "keepalive"
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]eventFilter
	broadcast chan SSEEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]eventFilter),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.send(evt)
		case <-keepalive.C:
			h.send(SSEEvent{Event: "keepalive", Data: "ping"})
		}
	}
}

func (h *EventHub) send(evt SSEEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch, f := range h.clients {
		if !f.wants(evt.Event) {
			continue
		}
		select {
		case ch <- evt:
		default:
			// drop if full
		}
	}
}

func (h *EventHub) Broadcast(event, data string) {
	select {
	case h.broadcast <- SSEEvent{Event: event, Data: data}:
	default:
	}
}

// BroadcastJSON marshals v as the event data.
func (h *EventHub) BroadcastJSON(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("sse: marshal %s: %v", event, err)
		return
	}
	h.Broadcast(event, string(data))
}

// AddClient registers a subscriber for the named events, or all events when
// none are given.
func (h *EventHub) AddClient(events ...string) chan SSEEvent {
	var f eventFilter
	if len(events) > 0 {
		f = make(eventFilter, len(events))
		for _, e := range events {
			f[e] = true
		}
	}
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = f
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetupEngineListeners wires engine events to SSE broadcasts and returns the
// subscriptions so the caller can drop them on shutdown.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) []engine.SubscriberID {
	var subs []engine.SubscriberID

	subs = append(subs, eng.Events.SubscribeTypes(func(evt engine.Event) {
		s := evt.Payload.(engine.TickEvent).Snapshot
		h.BroadcastJSON("robots", map[string]any{"tick": s.Tick, "robots": s.Robots})
	}, engine.EventTick))

	subs = append(subs, eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.WarningsChangedEvent)
		h.BroadcastJSON("warnings", map[string]any{"tick": ev.Tick, "warnings": ev.Warnings, "added": ev.Added})
	}, engine.EventWarningsChanged))

	subs = append(subs, eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.RobotSpawnedEvent)
		h.Broadcast("robot-update", fmt.Sprintf(`{"type":"spawned","robot_id":%d,"vertex":%d}`, ev.RobotID, ev.Vertex))
	}, engine.EventRobotSpawned))

	subs = append(subs, eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.TaskAssignedEvent)
		h.Broadcast("robot-update", fmt.Sprintf(`{"type":"assigned","robot_id":%d,"dest":%d,"stalled":%t}`, ev.RobotID, ev.Dest, ev.Stalled))
	}, engine.EventTaskAssigned))

	subs = append(subs, eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.TaskCompletedEvent)
		h.Broadcast("robot-update", fmt.Sprintf(`{"type":"completed","robot_id":%d,"vertex":%d}`, ev.RobotID, ev.Vertex))
	}, engine.EventTaskCompleted))

	subs = append(subs, eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.SelectionChangedEvent)
		h.Broadcast("robot-update", fmt.Sprintf(`{"type":"selected","robot_id":%d,"selected":%t}`, ev.RobotID, ev.Selected))
	}, engine.EventSelectionChanged))

	subs = append(subs, eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.LogEvent)
		if ev.Level < fleetlog.Warning {
			return
		}
		h.BroadcastJSON("log", map[string]any{"tick": ev.Tick, "level": ev.Level.String(), "message": ev.Message})
	}, engine.EventLog))

	return subs
}

// SSEHandler serves the SSE endpoint. ?events=warnings,log limits the stream
// to the listed event names.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var events []string
	if q := r.URL.Query().Get("events"); q != "" {
		events = strings.Split(q, ",")
	}
	ch := h.AddClient(events...)
	defer h.RemoveClient(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
