package protocol

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"
)

// FilterFunc reports whether a message, judged by its header alone, should be
// decoded and dispatched.
type FilterFunc func(hdr *RawHeader) bool

// MessageHandler receives decoded fleet messages. Embed NoOpHandler to pick
// only the ones a component cares about.
type MessageHandler interface {
	// commands
	HandleSpawn(env *Envelope, p *Spawn)
	HandleAssign(env *Envelope, p *Assign)
	HandleSelect(env *Envelope, p *Select)
	HandleReplan(env *Envelope, p *Replan)

	// replies and core events
	HandleAck(env *Envelope, p *Ack)
	HandleError(env *Envelope, p *Error)
	HandleTick(env *Envelope, p *Tick)
	HandleTaskCompleted(env *Envelope, p *TaskCompleted)
	HandleWarnings(env *Envelope, p *Warnings)
}

// Ingestor decodes raw messages in two passes: the routing header first so
// expired, foreign and unsupported messages are discarded cheaply, then the
// full envelope and typed payload.
type Ingestor struct {
	handler MessageHandler
	accept  FilterFunc
	dropped atomic.Uint64
}

func NewIngestor(handler MessageHandler, accept FilterFunc) *Ingestor {
	return &Ingestor{handler: handler, accept: accept}
}

// Dropped counts messages discarded for any reason other than the filter.
func (ing *Ingestor) Dropped() uint64 { return ing.dropped.Load() }

func (ing *Ingestor) drop(format string, args ...any) {
	ing.dropped.Add(1)
	log.Printf("protocol: "+format, args...)
}

// HandleRaw takes one message body from the transport.
func (ing *Ingestor) HandleRaw(data []byte) {
	var hdr RawHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		ing.drop("bad header: %v", err)
		return
	}
	switch {
	case hdr.Version > Version:
		ing.drop("%s %s has version %d, newest supported is %d", hdr.Type, hdr.ID, hdr.Version, Version)
		return
	case hdr.Expired(time.Now().UTC()):
		ing.drop("%s %s expired at %s", hdr.Type, hdr.ID, hdr.ExpiresAt.Format(time.RFC3339))
		return
	}
	if ing.accept != nil && !ing.accept(&hdr) {
		return
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		ing.drop("bad envelope %s: %v", hdr.ID, err)
		return
	}
	if !ing.dispatch(&env) {
		ing.drop("no handler for message type %q", env.Type)
	}
}

func (ing *Ingestor) dispatch(env *Envelope) bool {
	h := ing.handler
	switch env.Type {
	case TypeSpawn:
		call(ing, h.HandleSpawn, env)
	case TypeAssign:
		call(ing, h.HandleAssign, env)
	case TypeSelect:
		call(ing, h.HandleSelect, env)
	case TypeReplan:
		call(ing, h.HandleReplan, env)
	case TypeAck:
		call(ing, h.HandleAck, env)
	case TypeError:
		call(ing, h.HandleError, env)
	case TypeTick:
		call(ing, h.HandleTick, env)
	case TypeTaskCompleted:
		call(ing, h.HandleTaskCompleted, env)
	case TypeWarnings:
		call(ing, h.HandleWarnings, env)
	default:
		return false
	}
	return true
}

// call decodes the payload into T and hands it to fn.
func call[T any](ing *Ingestor, fn func(*Envelope, *T), env *Envelope) {
	p := new(T)
	if err := json.Unmarshal(env.Payload, p); err != nil {
		ing.drop("bad %s payload in %s: %v", env.Type, env.ID, err)
		return
	}
	fn(env, p)
}

// StationFilter accepts messages addressed to station, broadcast, or left
// unaddressed.
func StationFilter(station string) FilterFunc {
	return func(hdr *RawHeader) bool {
		switch hdr.Dst.Station {
		case station, Broadcast, "":
			return true
		}
		return false
	}
}
