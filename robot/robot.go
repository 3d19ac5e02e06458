// Package robot holds the per-robot record and its motion step. A Robot is a
// plain data record; renderers and API handlers read snapshots of it and never
// mutate it directly.
package robot

import (
	"math"

	"fleetcore/fleetlog"
	"fleetcore/navgraph"
)

// Waypoint is one route entry: the vertex and its position.
type Waypoint struct {
	Vertex navgraph.VertexID `json:"vertex"`
	Pos    navgraph.Point    `json:"pos"`
}

// Locator resolves vertex positions. *navgraph.Graph satisfies it.
type Locator interface {
	Position(id navgraph.VertexID) (navgraph.Point, bool)
}

// Reservations is the slice of reservation.Table the robot needs.
type Reservations interface {
	TryReserve(v, agent int) bool
	Release(v, agent int) bool
	Holder(v int) (int, bool)
	Enqueue(v, agent int)
	Withdraw(agent int)
}

type Robot struct {
	ID            int
	Position      navgraph.Point
	CurrentVertex navgraph.VertexID
	Route         []Waypoint
	Speed         float64
	DefaultSpeed  float64
	Status        Status
	Selected      bool
	// Waiting is set while the robot is halted by a collision hold or a
	// reservation wait.
	Waiting bool

	dest    navgraph.VertexID
	hasDest bool

	held     bool
	holdPeer int

	blocked   bool
	blockedOn navgraph.VertexID

	log fleetlog.Logger
}

// New creates an unassigned robot parked at vertex.
func New(id int, vertex navgraph.VertexID, pos navgraph.Point, speed float64, log fleetlog.Logger) *Robot {
	return &Robot{
		ID:            id,
		Position:      pos,
		CurrentVertex: vertex,
		Speed:         speed,
		DefaultSpeed:  speed,
		Status:        Unassigned,
		log:           log,
	}
}

// Destination returns the assigned destination vertex, if any.
func (r *Robot) Destination() (navgraph.VertexID, bool) {
	return r.dest, r.hasDest
}

func (r *Robot) SetDestination(v navgraph.VertexID) {
	r.dest = v
	r.hasDest = true
}

// SetStatus moves the robot to s. Invalid transitions are refused and logged.
func (r *Robot) SetStatus(s Status) bool {
	if !r.Status.CanTransition(s) {
		fleetlog.Logf(r.log, fleetlog.Error, "robot %d: invalid status transition %s -> %s", r.ID, r.Status, s)
		return false
	}
	r.Status = s
	return true
}

// NextWaypoint returns the head of the route.
func (r *Robot) NextWaypoint() (Waypoint, bool) {
	if len(r.Route) == 0 {
		return Waypoint{}, false
	}
	return r.Route[0], true
}

// Heading is the direction to the next waypoint in radians.
func (r *Robot) Heading() (float64, bool) {
	wp, ok := r.NextWaypoint()
	if !ok {
		return 0, false
	}
	return math.Atan2(wp.Pos.Y-r.Position.Y, wp.Pos.X-r.Position.X), true
}

// RemainingDistance sums the straight segments from the current position
// through every waypoint.
func (r *Robot) RemainingDistance() float64 {
	total := 0.0
	p := r.Position
	for _, wp := range r.Route {
		total += p.Dist(wp.Pos)
		p = wp.Pos
	}
	return total
}

// Stalled reports an assigned task with no route that has not reached its destination.
func (r *Robot) Stalled() bool {
	return r.hasDest && len(r.Route) == 0 && r.CurrentVertex != r.dest
}

// Hold halts the robot because peer is too close.
func (r *Robot) Hold(peer int) {
	r.held = true
	r.holdPeer = peer
	r.Speed = 0
	r.Waiting = true
	r.SetStatus(Waiting)
}

// ReleaseHold lifts a collision hold. A pending reservation wait keeps the
// robot waiting.
func (r *Robot) ReleaseHold() {
	r.held = false
	r.holdPeer = 0
	r.Speed = r.DefaultSpeed
	r.Waiting = r.blocked
	if r.blocked {
		return
	}
	switch {
	case len(r.Route) > 0:
		r.SetStatus(Moving)
	case r.Status == Waiting && r.Stalled():
		r.SetStatus(TaskAssigned)
	}
}

func (r *Robot) CollisionHeld() bool { return r.held }

// HoldPeer returns the robot this one is yielding to.
func (r *Robot) HoldPeer() (int, bool) { return r.holdPeer, r.held }

// BlockedOn returns the vertex the robot is queued for.
func (r *Robot) BlockedOn() (navgraph.VertexID, bool) { return r.blockedOn, r.blocked }

// SetRoute overwrites the route. A claim on the old next vertex is released
// unless the new route starts there, and the robot leaves every waiting queue.
// Setting an identical route changes nothing.
func (r *Robot) SetRoute(route []Waypoint, res Reservations) {
	if sameRoute(r.Route, route) {
		return
	}
	if res != nil {
		if old, ok := r.NextWaypoint(); ok && old.Vertex != r.CurrentVertex {
			if len(route) == 0 || route[0].Vertex != old.Vertex {
				res.Release(int(old.Vertex), r.ID)
			}
		}
		res.Withdraw(r.ID)
	}
	r.blocked = false
	r.Waiting = r.held
	r.Route = route
}

func sameRoute(a, b []Waypoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BuildRoute pairs path vertices with their positions, dropping the start vertex.
func BuildRoute(loc Locator, path []navgraph.VertexID) []Waypoint {
	if len(path) < 2 {
		return nil
	}
	route := make([]Waypoint, 0, len(path)-1)
	for _, v := range path[1:] {
		pos, ok := loc.Position(v)
		if !ok {
			return nil
		}
		route = append(route, Waypoint{Vertex: v, Pos: pos})
	}
	return route
}

// View is a read-only copy of a robot for display and transport.
type View struct {
	ID            int               `json:"id"`
	Position      navgraph.Point    `json:"position"`
	CurrentVertex navgraph.VertexID `json:"current_vertex"`
	Destination   *int              `json:"destination,omitempty"`
	NextWaypoint  *Waypoint         `json:"next_waypoint,omitempty"`
	Route         []Waypoint        `json:"route"`
	Speed         float64           `json:"speed"`
	Status        Status            `json:"status"`
	Selected      bool              `json:"selected"`
	Waiting       bool              `json:"waiting"`
	Remaining     float64           `json:"remaining"`
}

func (r *Robot) View() View {
	v := View{
		ID:            r.ID,
		Position:      r.Position,
		CurrentVertex: r.CurrentVertex,
		Route:         append([]Waypoint{}, r.Route...),
		Speed:         r.Speed,
		Status:        r.Status,
		Selected:      r.Selected,
		Waiting:       r.Waiting,
		Remaining:     r.RemainingDistance(),
	}
	if r.hasDest {
		d := int(r.dest)
		v.Destination = &d
	}
	if wp, ok := r.NextWaypoint(); ok {
		v.NextWaypoint = &wp
	}
	return v
}
