// Package reservation is the per-vertex mutual-exclusion registry. Each vertex
// has at most one holder and a FIFO queue of agents waiting to enter it.
//
// A Table is not safe for concurrent use; the engine serializes every access
// inside its tick lock.
package reservation

import "errors"

// ErrConflict is returned when an agent tries to claim a vertex another agent holds.
var ErrConflict = errors.New("vertex reserved by another agent")

type slot struct {
	holder int // 0 = free
	queue  []int
}

// Table is keyed by vertex id in [0, n). Agent ids must be positive.
type Table struct {
	slots []slot
}

func New(n int) *Table {
	if n < 0 {
		n = 0
	}
	return &Table{slots: make([]slot, n)}
}

func (t *Table) Len() int { return len(t.slots) }

func (t *Table) slot(v int) *slot {
	if v < 0 || v >= len(t.slots) {
		return nil
	}
	return &t.slots[v]
}

// TryReserve claims v for agent. It succeeds when v is free or already held by
// agent; on success the agent leaves v's waiting queue.
func (t *Table) TryReserve(v, agent int) bool {
	s := t.slot(v)
	if s == nil || agent <= 0 {
		return false
	}
	if s.holder != 0 && s.holder != agent {
		return false
	}
	s.holder = agent
	s.queue = without(s.queue, agent)
	return true
}

// Release gives up agent's hold on v. The longest waiter, if any, becomes
// the new holder; otherwise v is freed. A stale release is a no-op.
func (t *Table) Release(v, agent int) bool {
	s := t.slot(v)
	if s == nil || s.holder == 0 || s.holder != agent {
		return false
	}
	s.holder = 0
	if next, ok := t.Dequeue(v); ok {
		s.holder = next
	}
	return true
}

// Holder returns the agent holding v.
func (t *Table) Holder(v int) (int, bool) {
	s := t.slot(v)
	if s == nil || s.holder == 0 {
		return 0, false
	}
	return s.holder, true
}

// HeldByOther reports whether v is held by an agent other than agent.
func (t *Table) HeldByOther(v, agent int) bool {
	h, ok := t.Holder(v)
	return ok && h != agent
}

// Enqueue appends agent to v's waiting queue. Duplicates and the current
// holder are ignored.
func (t *Table) Enqueue(v, agent int) {
	s := t.slot(v)
	if s == nil || agent <= 0 || s.holder == agent {
		return
	}
	for _, a := range s.queue {
		if a == agent {
			return
		}
	}
	s.queue = append(s.queue, agent)
}

// Dequeue pops the longest-waiting agent for v.
func (t *Table) Dequeue(v int) (int, bool) {
	s := t.slot(v)
	if s == nil || len(s.queue) == 0 {
		return 0, false
	}
	a := s.queue[0]
	s.queue = s.queue[1:]
	return a, true
}

// Queue returns a copy of v's waiting queue, oldest first.
func (t *Table) Queue(v int) []int {
	s := t.slot(v)
	if s == nil || len(s.queue) == 0 {
		return nil
	}
	out := make([]int, len(s.queue))
	copy(out, s.queue)
	return out
}

// Withdraw removes agent from every waiting queue.
func (t *Table) Withdraw(agent int) {
	for i := range t.slots {
		t.slots[i].queue = without(t.slots[i].queue, agent)
	}
}

// HeldBy lists the vertices agent holds, ascending.
func (t *Table) HeldBy(agent int) []int {
	var out []int
	for v := range t.slots {
		if t.slots[v].holder == agent && agent != 0 {
			out = append(out, v)
		}
	}
	return out
}

// Entry is the reservation state of one vertex.
type Entry struct {
	Vertex int   `json:"vertex"`
	Holder int   `json:"holder,omitempty"`
	Queue  []int `json:"queue,omitempty"`
}

// Snapshot returns every vertex that is held or has waiters.
func (t *Table) Snapshot() []Entry {
	var out []Entry
	for v, s := range t.slots {
		if s.holder == 0 && len(s.queue) == 0 {
			continue
		}
		e := Entry{Vertex: v, Holder: s.holder}
		if len(s.queue) > 0 {
			e.Queue = append([]int(nil), s.queue...)
		}
		out = append(out, e)
	}
	return out
}

func without(q []int, agent int) []int {
	for i, a := range q {
		if a == agent {
			return append(q[:i:i], q[i+1:]...)
		}
	}
	return q
}
