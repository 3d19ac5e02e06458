package store

import (
	"time"
)

// Event kinds written to the journal.
const (
	KindSpawned   = "spawned"
	KindAssigned  = "assigned"
	KindCompleted = "completed"
	KindWarning   = "warning"
	KindLog       = "log"
)

type FleetEvent struct {
	ID        int64     `json:"id"`
	Tick      uint64    `json:"tick"`
	Kind      string    `json:"kind"`
	RobotID   int       `json:"robot_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (db *DB) AppendEvent(tick uint64, kind string, robotID int, level, message string) error {
	_, err := db.Exec(db.Q(`INSERT INTO fleet_events (tick, kind, robot_id, level, message) VALUES (?, ?, ?, ?, ?)`),
		int64(tick), kind, robotID, level, message)
	return err
}

const eventSelectCols = `id, tick, kind, robot_id, level, message, created_at`

func scanEvents(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]*FleetEvent, error) {
	var events []*FleetEvent
	for rows.Next() {
		var e FleetEvent
		var tick int64
		var createdAt any
		if err := rows.Scan(&e.ID, &tick, &e.Kind, &e.RobotID, &e.Level, &e.Message, &createdAt); err != nil {
			return nil, err
		}
		e.Tick = uint64(tick)
		e.CreatedAt = parseTime(createdAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// ListEvents returns the newest events first.
func (db *DB) ListEvents(limit int) ([]*FleetEvent, error) {
	rows, err := db.Query(db.Q(`SELECT `+eventSelectCols+` FROM fleet_events ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (db *DB) ListRobotEvents(robotID, limit int) ([]*FleetEvent, error) {
	rows, err := db.Query(db.Q(`SELECT `+eventSelectCols+` FROM fleet_events WHERE robot_id=? ORDER BY id DESC LIMIT ?`), robotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}
