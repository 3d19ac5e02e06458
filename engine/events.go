package engine

import (
	"fleetcore/fleetlog"
	"fleetcore/navgraph"
)

const (
	EventRobotSpawned EventType = iota + 1
	EventTaskAssigned
	EventTaskCompleted
	EventSelectionChanged
	EventWarningsChanged
	EventTick
	EventLog
)

// --- Event payloads ---

type RobotSpawnedEvent struct {
	Tick    uint64
	RobotID int
	Vertex  navgraph.VertexID
}

type TaskAssignedEvent struct {
	Tick    uint64
	RobotID int
	Dest    navgraph.VertexID
	Stalled bool
	Detail  string
}

type TaskCompletedEvent struct {
	Tick    uint64
	RobotID int
	Vertex  navgraph.VertexID
}

type SelectionChangedEvent struct {
	RobotID  int
	Selected bool
}

// WarningsChangedEvent carries the full warning list plus the messages that
// were not present on the previous tick.
type WarningsChangedEvent struct {
	Tick     uint64
	Warnings []string
	Added    []string
}

type TickEvent struct {
	Snapshot Snapshot
}

type LogEvent struct {
	Tick    uint64
	Level   fleetlog.Level
	Message string
}
