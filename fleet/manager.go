// Package fleet is the robot roster: it spawns robots onto the navigation
// graph and assigns them tasks.
package fleet

import (
	"errors"
	"fmt"

	"fleetcore/fleetlog"
	"fleetcore/navgraph"
	"fleetcore/reservation"
	"fleetcore/robot"
)

var ErrUnknownRobot = errors.New("unknown robot")

type Manager struct {
	graph        *navgraph.Graph
	table        *reservation.Table
	log          fleetlog.Logger
	defaultSpeed float64

	nextID int
	robots []*robot.Robot
	byID   map[int]*robot.Robot
}

func NewManager(g *navgraph.Graph, table *reservation.Table, defaultSpeed float64, log fleetlog.Logger) *Manager {
	return &Manager{
		graph:        g,
		table:        table,
		log:          log,
		defaultSpeed: defaultSpeed,
		nextID:       1,
		byID:         make(map[int]*robot.Robot),
	}
}

// Spawn creates an unassigned robot at vertex v and reserves v for it. A
// vertex another robot holds is refused with reservation.ErrConflict; ids are
// only consumed by successful spawns.
func (m *Manager) Spawn(v navgraph.VertexID, pos navgraph.Point) (*robot.Robot, error) {
	if !m.graph.Contains(v) {
		fleetlog.Logf(m.log, fleetlog.Error, "spawn: vertex %d out of range", v)
		return nil, fmt.Errorf("spawn at %d: %w", v, navgraph.ErrOutOfRange)
	}
	id := m.nextID
	if !m.table.TryReserve(int(v), id) {
		holder, _ := m.table.Holder(int(v))
		fleetlog.Logf(m.log, fleetlog.Warning, "spawn: vertex %d reserved by robot %d", v, holder)
		return nil, fmt.Errorf("spawn at %d: %w", v, reservation.ErrConflict)
	}
	m.nextID++

	r := robot.New(id, v, pos, m.defaultSpeed, m.log)
	m.robots = append(m.robots, r)
	m.byID[id] = r
	fleetlog.Logf(m.log, fleetlog.Info, "spawned robot %d at vertex %d", id, v)
	return r, nil
}

// AssignTask points r at dest and routes it there from its current vertex.
// When no route exists the robot keeps the task with an empty route (stalled)
// and the reason is returned; the task is not retried here. A dest outside the
// graph is refused and leaves r untouched.
func (m *Manager) AssignTask(r *robot.Robot, dest navgraph.VertexID) error {
	if !m.graph.Contains(dest) {
		fleetlog.Logf(m.log, fleetlog.Error, "robot %d: destination %d out of range", r.ID, dest)
		return fmt.Errorf("assign robot %d to %d: %w", r.ID, dest, navgraph.ErrOutOfRange)
	}
	r.SetDestination(dest)
	r.SetStatus(robot.TaskAssigned)

	path, err := m.graph.FindPath(r.CurrentVertex, dest)
	if err != nil {
		r.SetRoute(nil, m.table)
		fleetlog.Logf(m.log, fleetlog.Error, "robot %d: no route from %d to %d: %v", r.ID, r.CurrentVertex, dest, err)
		return fmt.Errorf("assign robot %d: %w", r.ID, err)
	}
	r.SetRoute(robot.BuildRoute(m.graph, path), m.table)
	fleetlog.Logf(m.log, fleetlog.Info, "robot %d assigned to vertex %d (%d waypoints)", r.ID, dest, len(r.Route))
	return nil
}

// Robots returns the roster in spawn order.
func (m *Manager) Robots() []*robot.Robot {
	out := make([]*robot.Robot, len(m.robots))
	copy(out, m.robots)
	return out
}

func (m *Manager) Robot(id int) (*robot.Robot, bool) {
	r, ok := m.byID[id]
	return r, ok
}

// Select toggles the manual override flag that exempts a robot from automated
// collision avoidance.
func (m *Manager) Select(id int, on bool) error {
	r, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("select %d: %w", id, ErrUnknownRobot)
	}
	r.Selected = on
	fleetlog.Logf(m.log, fleetlog.Debug, "robot %d selected=%v", id, on)
	return nil
}

func (m *Manager) Graph() *navgraph.Graph           { return m.graph }
func (m *Manager) Reservations() *reservation.Table { return m.table }
