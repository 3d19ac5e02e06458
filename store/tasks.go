package store

import (
	"time"
)

const (
	TaskAssigned   = "assigned"
	TaskStalled    = "stalled"
	TaskCompleted  = "completed"
	TaskSuperseded = "superseded"
)

type Task struct {
	ID          int64      `json:"id"`
	RobotID     int        `json:"robot_id"`
	DestVertex  int        `json:"dest_vertex"`
	Status      string     `json:"status"`
	Detail      string     `json:"detail"`
	AssignedAt  time.Time  `json:"assigned_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateTask records a new assignment. Any still-open task for the robot is
// marked superseded first, since a robot carries one task at a time.
func (db *DB) CreateTask(robotID, destVertex int, status, detail string) (int64, error) {
	_, err := db.Exec(db.Q(`UPDATE tasks SET status=? WHERE robot_id=? AND status IN (?, ?)`),
		TaskSuperseded, robotID, TaskAssigned, TaskStalled)
	if err != nil {
		return 0, err
	}
	return db.insertID(`INSERT INTO tasks (robot_id, dest_vertex, status, detail) VALUES (?, ?, ?, ?)`,
		robotID, destVertex, status, detail)
}

// CompleteTask closes the robot's open task, if any.
func (db *DB) CompleteTask(robotID int) error {
	_, err := db.Exec(db.Q(`UPDATE tasks SET status=?, completed_at=datetime('now','localtime') WHERE robot_id=? AND status IN (?, ?)`),
		TaskCompleted, robotID, TaskAssigned, TaskStalled)
	return err
}

const taskSelectCols = `id, robot_id, dest_vertex, status, detail, assigned_at, completed_at`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var t Task
	var assignedAt, completedAt any
	if err := row.Scan(&t.ID, &t.RobotID, &t.DestVertex, &t.Status, &t.Detail, &assignedAt, &completedAt); err != nil {
		return nil, err
	}
	t.AssignedAt = parseTime(assignedAt)
	t.CompletedAt = parseTimePtr(completedAt)
	return &t, nil
}

func (db *DB) GetTask(id int64) (*Task, error) {
	return scanTask(db.QueryRow(db.Q(`SELECT `+taskSelectCols+` FROM tasks WHERE id=?`), id))
}

// ListTasks returns the newest tasks first.
func (db *DB) ListTasks(limit int) ([]*Task, error) {
	rows, err := db.Query(db.Q(`SELECT `+taskSelectCols+` FROM tasks ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) ListRobotTasks(robotID int) ([]*Task, error) {
	rows, err := db.Query(db.Q(`SELECT `+taskSelectCols+` FROM tasks WHERE robot_id=? ORDER BY id DESC`), robotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
