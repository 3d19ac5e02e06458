package robot

import "fmt"

type Status int

const (
	Unassigned Status = iota
	TaskAssigned
	Moving
	Waiting
	TaskComplete
)

var statusNames = [...]string{
	Unassigned:   "unassigned",
	TaskAssigned: "task_assigned",
	Moving:       "moving",
	Waiting:      "waiting",
	TaskComplete: "task_complete",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown robot status %q", b)
}

// Active reports whether the robot is working on a task.
func (s Status) Active() bool {
	return s == TaskAssigned || s == Moving || s == Waiting
}

// validTransitions lists the allowed next states. Staying put is always allowed.
var validTransitions = map[Status][]Status{
	Unassigned:   {TaskAssigned},
	TaskAssigned: {TaskAssigned, Moving, Waiting, TaskComplete},
	Moving:       {TaskAssigned, Waiting, TaskComplete},
	Waiting:      {TaskAssigned, Moving, TaskComplete},
	TaskComplete: {TaskAssigned},
}

func (s Status) CanTransition(to Status) bool {
	if s == to {
		return true
	}
	for _, t := range validTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}
