package store

import "fmt"

// schema renders the DDL for a dialect. Every statement is idempotent.
func schema(d Dialect) string {
	pk, ts, now := d.AutoIncrementPK(), d.TimestampType(), d.Now()
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS fleet_events (
    id          %[1]s,
    tick        BIGINT NOT NULL DEFAULT 0,
    kind        TEXT NOT NULL,
    robot_id    INTEGER NOT NULL DEFAULT 0,
    level       TEXT NOT NULL DEFAULT 'info',
    message     TEXT NOT NULL DEFAULT '',
    created_at  %[2]s NOT NULL DEFAULT (%[3]s)
);
CREATE INDEX IF NOT EXISTS idx_fleet_events_robot ON fleet_events(robot_id);
CREATE INDEX IF NOT EXISTS idx_fleet_events_kind ON fleet_events(kind);

CREATE TABLE IF NOT EXISTS tasks (
    id           %[1]s,
    robot_id     INTEGER NOT NULL,
    dest_vertex  INTEGER NOT NULL,
    status       TEXT NOT NULL DEFAULT 'assigned',
    detail       TEXT NOT NULL DEFAULT '',
    assigned_at  %[2]s NOT NULL DEFAULT (%[3]s),
    completed_at %[2]s
);
CREATE INDEX IF NOT EXISTS idx_tasks_robot ON tasks(robot_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS admin_users (
    id            %[1]s,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    %[2]s NOT NULL DEFAULT (%[3]s)
);
`, pk, ts, now)
}
