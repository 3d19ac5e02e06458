package fleet

import (
	"errors"
	"testing"

	"fleetcore/fleetlog"
	"fleetcore/navgraph"
	"fleetcore/reservation"
	"fleetcore/robot"
)

// testFleet returns a manager over two components: 0-1-2 in a row and an
// isolated vertex 3.
func testFleet(t *testing.T) (*Manager, *fleetlog.Recorder) {
	t.Helper()
	g, err := navgraph.New([]navgraph.Vertex{
		{Pos: navgraph.Point{X: 0}},
		{Pos: navgraph.Point{X: 10}},
		{Pos: navgraph.Point{X: 20}},
		{Pos: navgraph.Point{X: 100, Y: 100}},
	}, [][2]navgraph.VertexID{{0, 1}, {1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	rec := &fleetlog.Recorder{}
	return NewManager(g, reservation.New(g.Len()), 2, rec), rec
}

func spawn(t *testing.T, m *Manager, v navgraph.VertexID) *robot.Robot {
	t.Helper()
	pos, _ := m.Graph().Position(v)
	r, err := m.Spawn(v, pos)
	if err != nil {
		t.Fatalf("Spawn(%d): %v", v, err)
	}
	return r
}

func TestSpawnAssignsMonotonicIDs(t *testing.T) {
	m, _ := testFleet(t)
	a := spawn(t, m, 0)
	b := spawn(t, m, 2)

	if a.ID != 1 || b.ID != 2 {
		t.Errorf("ids = %d,%d, want 1,2", a.ID, b.ID)
	}
	if a.Status != robot.Unassigned {
		t.Errorf("status = %s, want unassigned", a.Status)
	}
	if h, _ := m.Reservations().Holder(2); h != 2 {
		t.Errorf("holder(2) = %d, want 2", h)
	}
	if got, ok := m.Robot(2); !ok || got != b {
		t.Error("Robot(2) lookup failed")
	}
	if n := len(m.Robots()); n != 2 {
		t.Errorf("roster = %d, want 2", n)
	}
}

func TestSpawnRefusesOccupiedOrInvalidVertex(t *testing.T) {
	m, _ := testFleet(t)
	spawn(t, m, 0)

	if _, err := m.Spawn(0, navgraph.Point{}); !errors.Is(err, reservation.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if _, err := m.Spawn(9, navgraph.Point{}); !errors.Is(err, navgraph.ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
	// Refused spawns do not burn ids.
	if r := spawn(t, m, 1); r.ID != 2 {
		t.Errorf("next id = %d, want 2", r.ID)
	}
}

func TestAssignTaskBuildsRoute(t *testing.T) {
	m, rec := testFleet(t)
	r := spawn(t, m, 0)

	if err := m.AssignTask(r, 2); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if r.Status != robot.TaskAssigned {
		t.Errorf("status = %s", r.Status)
	}
	if len(r.Route) != 2 || r.Route[0].Vertex != 1 || r.Route[1].Vertex != 2 {
		t.Errorf("route = %+v, want [1 2]", r.Route)
	}
	if d, ok := r.Destination(); !ok || d != 2 {
		t.Errorf("destination = %d,%v", d, ok)
	}
	if rec.Count(fleetlog.Info) < 2 {
		t.Errorf("expected spawn and assign info logs, got %+v", rec.Entries)
	}
}

func TestAssignTaskUnreachableStalls(t *testing.T) {
	m, rec := testFleet(t)
	r := spawn(t, m, 0)

	err := m.AssignTask(r, 3)
	if !errors.Is(err, navgraph.ErrNoPath) {
		t.Fatalf("err = %v, want ErrNoPath", err)
	}
	if r.Status != robot.TaskAssigned || len(r.Route) != 0 {
		t.Errorf("status=%s route=%v, want task_assigned with empty route", r.Status, r.Route)
	}
	if !r.Stalled() {
		t.Error("robot should be stalled")
	}
	if rec.Count(fleetlog.Error) != 1 {
		t.Errorf("error logs = %d, want 1", rec.Count(fleetlog.Error))
	}
}

func TestAssignTaskOutOfRange(t *testing.T) {
	m, _ := testFleet(t)
	r := spawn(t, m, 0)
	if err := m.AssignTask(r, 42); !errors.Is(err, navgraph.ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
	if _, ok := r.Destination(); ok {
		t.Error("refused assignment should not set a destination")
	}
	if r.Status != robot.Unassigned {
		t.Errorf("status = %s, want unassigned", r.Status)
	}
}

func TestReassignOverwrites(t *testing.T) {
	m, _ := testFleet(t)
	r := spawn(t, m, 1)
	if err := m.AssignTask(r, 2); err != nil {
		t.Fatal(err)
	}
	if err := m.AssignTask(r, 0); err != nil {
		t.Fatal(err)
	}
	if len(r.Route) != 1 || r.Route[0].Vertex != 0 {
		t.Errorf("route = %+v, want [0]", r.Route)
	}
}

func TestSelect(t *testing.T) {
	m, _ := testFleet(t)
	r := spawn(t, m, 0)
	if err := m.Select(r.ID, true); err != nil || !r.Selected {
		t.Errorf("Select: err=%v selected=%v", err, r.Selected)
	}
	if err := m.Select(99, true); !errors.Is(err, ErrUnknownRobot) {
		t.Errorf("err = %v, want ErrUnknownRobot", err)
	}
}
