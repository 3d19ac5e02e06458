package robot

import (
	"math"

	"fleetcore/fleetlog"
	"fleetcore/navgraph"
)

// Env is what a motion step consults.
type Env struct {
	Table     Reservations
	Graph     Locator
	Clearance float64
}

// Step advances the robot by one tick.
//
// A robot never enters a vertex it could not reserve. The vertex it departs
// stays claimed until the robot is more than Clearance away from it, and is
// released no later than arrival at the next vertex.
func (r *Robot) Step(env Env) {
	if len(r.Route) == 0 {
		r.arrive(env)
		return
	}

	next := r.Route[0]
	if !env.Table.TryReserve(int(next.Vertex), r.ID) {
		if !r.blocked || r.blockedOn != next.Vertex {
			holder, _ := env.Table.Holder(int(next.Vertex))
			fleetlog.Logf(r.log, fleetlog.Warning, "robot %d waiting: vertex %d reserved by robot %d", r.ID, next.Vertex, holder)
		}
		r.blocked = true
		r.blockedOn = next.Vertex
		env.Table.Enqueue(int(next.Vertex), r.ID)
		r.Waiting = true
		r.SetStatus(Waiting)
		return
	}
	if r.blocked {
		fleetlog.Logf(r.log, fleetlog.Debug, "robot %d claimed vertex %d", r.ID, next.Vertex)
	}
	r.blocked = false
	r.Waiting = r.held

	r.releaseBehind(env, next.Vertex)

	dx := next.Pos.X - r.Position.X
	dy := next.Pos.Y - r.Position.Y
	dist := math.Hypot(dx, dy)
	if dist < r.Speed {
		r.Position = next.Pos
		if r.CurrentVertex != next.Vertex {
			env.Table.Release(int(r.CurrentVertex), r.ID)
		}
		r.CurrentVertex = next.Vertex
		r.Route = r.Route[1:]
		return
	}
	if r.Speed <= 0 {
		return
	}
	heading := math.Atan2(dy, dx)
	r.Position.X += r.Speed * math.Cos(heading)
	r.Position.Y += r.Speed * math.Sin(heading)
}

// releaseBehind frees the vertex the robot is leaving once it has physically
// cleared it.
func (r *Robot) releaseBehind(env Env, next navgraph.VertexID) {
	if r.CurrentVertex == next {
		return
	}
	pos, ok := env.Graph.Position(r.CurrentVertex)
	if !ok {
		return
	}
	if r.Position.Dist(pos) > env.Clearance {
		env.Table.Release(int(r.CurrentVertex), r.ID)
	}
}

// arrive finalizes a task once the route is used up and the robot sits within
// Clearance of its destination.
func (r *Robot) arrive(env Env) {
	dest, ok := r.Destination()
	if !ok {
		return
	}
	pos, ok := env.Graph.Position(dest)
	if !ok {
		fleetlog.Logf(r.log, fleetlog.Error, "robot %d: destination %d out of range", r.ID, dest)
		return
	}
	if r.Position.Dist(pos) > env.Clearance {
		return
	}
	if r.CurrentVertex != dest {
		env.Table.Release(int(r.CurrentVertex), r.ID)
		r.CurrentVertex = dest
	}
	if !env.Table.TryReserve(int(dest), r.ID) {
		holder, _ := env.Table.Holder(int(dest))
		fleetlog.Logf(r.log, fleetlog.Warning, "robot %d at destination %d but it is reserved by robot %d", r.ID, dest, holder)
	}
	r.blocked = false
	r.Waiting = r.held
	if r.Status.Active() {
		if r.SetStatus(TaskComplete) {
			fleetlog.Logf(r.log, fleetlog.Info, "robot %d completed task at vertex %d", r.ID, dest)
		}
	}
}
