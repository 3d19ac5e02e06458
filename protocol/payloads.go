package protocol

import "time"

// --- Client -> Core payloads ---

// Spawn places a new robot on a vertex.
type Spawn struct {
	Vertex int `json:"vertex"`
}

// Assign sends a robot to a destination vertex.
type Assign struct {
	RobotID int `json:"robot_id"`
	Dest    int `json:"dest"`
}

// Select toggles the manual override on a robot.
type Select struct {
	RobotID  int  `json:"robot_id"`
	Selected bool `json:"selected"`
}

type Replan struct {
	RobotID int `json:"robot_id"`
}

// --- Core -> Client payloads ---

// Ack confirms a command. CorID on the envelope names the command.
type Ack struct {
	RobotID int    `json:"robot_id"`
	Status  string `json:"status"`
}

// Error reports a refused or failed command.
type Error struct {
	RobotID int    `json:"robot_id,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail"`
}

// Error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnknownRobot = "unknown_robot"
	ErrCodeOutOfRange   = "out_of_range"
	ErrCodeConflict     = "reservation_conflict"
	ErrCodeNoPath       = "no_path"
	ErrCodeInternal     = "internal"
)

// RobotState is one row of the fleet status table.
type RobotState struct {
	ID          int     `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Vertex      int     `json:"vertex"`
	NextVertex  *int    `json:"next_vertex,omitempty"`
	Destination *int    `json:"destination,omitempty"`
	Status      string  `json:"status"`
	Waiting     bool    `json:"waiting"`
	Selected    bool    `json:"selected"`
}

// Tick is the periodic fleet snapshot.
type Tick struct {
	Tick     uint64       `json:"tick"`
	Time     time.Time    `json:"time"`
	Robots   []RobotState `json:"robots"`
	Warnings []string     `json:"warnings"`
}

type TaskCompleted struct {
	RobotID int `json:"robot_id"`
	Vertex  int `json:"vertex"`
}

// Warnings is sent when the warning set changes. Added lists the new messages.
type Warnings struct {
	Tick     uint64   `json:"tick"`
	Warnings []string `json:"warnings"`
	Added    []string `json:"added,omitempty"`
}
