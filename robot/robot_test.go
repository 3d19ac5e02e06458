package robot

import (
	"testing"

	"fleetcore/fleetlog"
	"fleetcore/navgraph"
	"fleetcore/reservation"
)

// line builds vertices at x = 0, 10, 20, ... joined in a chain.
func line(t *testing.T, n int) *navgraph.Graph {
	t.Helper()
	vs := make([]navgraph.Vertex, n)
	var lanes [][2]navgraph.VertexID
	for i := range vs {
		vs[i] = navgraph.Vertex{Pos: navgraph.Point{X: float64(10 * i)}}
		if i > 0 {
			lanes = append(lanes, [2]navgraph.VertexID{navgraph.VertexID(i - 1), navgraph.VertexID(i)})
		}
	}
	g, err := navgraph.New(vs, lanes)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func spawnAt(t *testing.T, g *navgraph.Graph, tb *reservation.Table, id int, v navgraph.VertexID, log fleetlog.Logger) *Robot {
	t.Helper()
	pos, _ := g.Position(v)
	if !tb.TryReserve(int(v), id) {
		t.Fatalf("vertex %d already reserved", v)
	}
	return New(id, v, pos, 2, log)
}

func assign(r *Robot, g *navgraph.Graph, tb *reservation.Table, dest navgraph.VertexID) {
	r.SetDestination(dest)
	r.SetStatus(TaskAssigned)
	r.SetRoute(BuildRoute(g, g.ShortestPath(r.CurrentVertex, dest)), tb)
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{Unassigned, TaskAssigned, true},
		{Unassigned, Moving, false},
		{TaskAssigned, Moving, true},
		{Moving, Waiting, true},
		{Waiting, Moving, true},
		{Waiting, TaskComplete, true},
		{TaskComplete, TaskAssigned, true},
		{TaskComplete, Moving, false},
		{Moving, Unassigned, false},
		{Moving, Moving, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestInvalidTransitionLogged(t *testing.T) {
	rec := &fleetlog.Recorder{}
	r := New(1, 0, navgraph.Point{}, 2, rec)
	if r.SetStatus(Moving) {
		t.Fatal("Unassigned -> Moving should be refused")
	}
	if r.Status != Unassigned {
		t.Errorf("status = %s, want unassigned", r.Status)
	}
	if rec.Count(fleetlog.Error) != 1 {
		t.Errorf("error logs = %d, want 1", rec.Count(fleetlog.Error))
	}
}

func TestStatusMarshalText(t *testing.T) {
	b, _ := TaskComplete.MarshalText()
	if string(b) != "task_complete" {
		t.Errorf("MarshalText = %q", b)
	}
}

func TestBuildRouteDropsStart(t *testing.T) {
	g := line(t, 3)
	route := BuildRoute(g, []navgraph.VertexID{0, 1, 2})
	if len(route) != 2 || route[0].Vertex != 1 || route[1].Pos.X != 20 {
		t.Fatalf("route = %+v", route)
	}
	if BuildRoute(g, []navgraph.VertexID{0}) != nil {
		t.Error("single-vertex path should give empty route")
	}
}

func TestStepReachesDestination(t *testing.T) {
	g := line(t, 2)
	tb := reservation.New(g.Len())
	r := spawnAt(t, g, tb, 1, 0, nil)
	assign(r, g, tb, 1)
	env := Env{Table: tb, Graph: g, Clearance: 5}

	for i := 1; i <= 5; i++ {
		r.Step(env)
		if want := float64(2 * i); r.Position.X != want {
			t.Fatalf("tick %d: x = %v, want %v", i, r.Position.X, want)
		}
		if len(r.Route) != 1 {
			t.Fatalf("tick %d: waypoint popped early", i)
		}
	}
	r.Step(env)
	if len(r.Route) != 0 || r.CurrentVertex != 1 {
		t.Fatalf("after snap: route=%v current=%d", r.Route, r.CurrentVertex)
	}
	if h, _ := tb.Holder(1); h != 1 {
		t.Errorf("destination holder = %d, want 1", h)
	}
	if _, ok := tb.Holder(0); ok {
		t.Error("start vertex should be released")
	}

	// Empty route: finalize on the next step.
	r.Step(env)
	if r.Status != TaskComplete {
		t.Errorf("status = %s, want task_complete", r.Status)
	}
}

func TestStepReleasesBehindAfterClearance(t *testing.T) {
	g := line(t, 3)
	tb := reservation.New(g.Len())
	r := spawnAt(t, g, tb, 1, 0, nil)
	assign(r, g, tb, 2)
	env := Env{Table: tb, Graph: g, Clearance: 5}

	// x: 2, 4, 6; the release check runs before moving, so vertex 0 is
	// still held at x=6 and freed on the following step.
	for i := 0; i < 3; i++ {
		r.Step(env)
	}
	if h, ok := tb.Holder(0); !ok || h != 1 {
		t.Fatalf("vertex 0 released too early at x=%v", r.Position.X)
	}
	r.Step(env)
	if _, ok := tb.Holder(0); ok {
		t.Errorf("vertex 0 still held at x=%v", r.Position.X)
	}
	held := tb.HeldBy(1)
	if len(held) != 1 || held[0] != 1 {
		t.Errorf("HeldBy = %v, want [1]", held)
	}
}

func TestStepWaitsOnReservedVertex(t *testing.T) {
	g := line(t, 2)
	tb := reservation.New(g.Len())
	rec := &fleetlog.Recorder{}
	r := spawnAt(t, g, tb, 1, 0, rec)
	tb.TryReserve(1, 2)
	assign(r, g, tb, 1)
	env := Env{Table: tb, Graph: g, Clearance: 5}

	r.Step(env)
	r.Step(env)
	if r.Status != Waiting || !r.Waiting {
		t.Fatalf("status = %s waiting=%v, want waiting", r.Status, r.Waiting)
	}
	if r.Position.X != 0 {
		t.Errorf("robot moved into reserved vertex: x=%v", r.Position.X)
	}
	if v, ok := r.BlockedOn(); !ok || v != 1 {
		t.Errorf("BlockedOn = %d,%v", v, ok)
	}
	if q := tb.Queue(1); len(q) != 1 || q[0] != 1 {
		t.Errorf("queue = %v, want [1]", q)
	}
	if rec.Count(fleetlog.Warning) != 1 {
		t.Errorf("warnings = %d, want 1 (only on entering the wait)", rec.Count(fleetlog.Warning))
	}

	tb.Release(1, 2)
	r.Step(env)
	if r.Waiting || r.Position.X != 2 {
		t.Errorf("after release: waiting=%v x=%v", r.Waiting, r.Position.X)
	}
	if len(tb.Queue(1)) != 0 {
		t.Error("robot should leave the queue once it holds the vertex")
	}
}

func TestHoldAndRelease(t *testing.T) {
	g := line(t, 2)
	tb := reservation.New(g.Len())
	r := spawnAt(t, g, tb, 1, 0, nil)
	assign(r, g, tb, 1)
	r.SetStatus(Moving)

	r.Hold(7)
	if r.Speed != 0 || !r.Waiting || r.Status != Waiting || !r.CollisionHeld() {
		t.Fatalf("after Hold: %+v", r)
	}
	if p, ok := r.HoldPeer(); !ok || p != 7 {
		t.Errorf("HoldPeer = %d,%v", p, ok)
	}

	env := Env{Table: tb, Graph: g, Clearance: 5}
	r.Step(env)
	if r.Position.X != 0 {
		t.Error("held robot moved")
	}

	r.ReleaseHold()
	if r.Speed != 2 || r.Waiting || r.Status != Moving {
		t.Errorf("after ReleaseHold: speed=%v waiting=%v status=%s", r.Speed, r.Waiting, r.Status)
	}
}

func TestSetRouteReleasesOldClaim(t *testing.T) {
	g := line(t, 3)
	tb := reservation.New(g.Len())
	r := spawnAt(t, g, tb, 1, 1, nil)
	assign(r, g, tb, 2)
	r.Step(Env{Table: tb, Graph: g, Clearance: 5})
	if h, _ := tb.Holder(2); h != 1 {
		t.Fatal("next vertex should be claimed")
	}

	assign(r, g, tb, 0)
	if _, ok := tb.Holder(2); ok {
		t.Error("claim on abandoned next vertex should be released")
	}
	if h, _ := tb.Holder(1); h != 1 {
		t.Error("current vertex claim must survive reassignment")
	}
	if d, _ := r.Destination(); d != 0 {
		t.Errorf("destination = %d, want 0", d)
	}
}

func TestRemainingDistanceAndStalled(t *testing.T) {
	g := line(t, 3)
	tb := reservation.New(g.Len())
	r := spawnAt(t, g, tb, 1, 0, nil)
	if r.Stalled() {
		t.Error("unassigned robot is not stalled")
	}
	assign(r, g, tb, 2)
	if d := r.RemainingDistance(); d != 20 {
		t.Errorf("RemainingDistance = %v, want 20", d)
	}
	r.SetRoute(nil, tb)
	if !r.Stalled() {
		t.Error("robot with destination and no route should be stalled")
	}
}
