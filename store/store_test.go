package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fleetcore/config"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

// --- Event journal ---

func TestAppendAndListEvents(t *testing.T) {
	db := testDB(t)

	if err := db.AppendEvent(1, KindSpawned, 1, "info", "spawned robot 1 at vertex 0"); err != nil {
		t.Fatalf("append: %v", err)
	}
	db.AppendEvent(7, KindWarning, 2, "warning", "Robot 2 waiting: too close to robot 1")
	db.AppendEvent(9, KindLog, 0, "error", "robot 3: no route")

	events, err := db.ListEvents(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len = %d, want 3", len(events))
	}
	if events[0].Kind != KindLog || events[0].Tick != 9 {
		t.Errorf("newest event = %+v", events[0])
	}
	if events[2].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	limited, _ := db.ListEvents(1)
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d", len(limited))
	}

	r2, err := db.ListRobotEvents(2, 10)
	if err != nil {
		t.Fatalf("list robot: %v", err)
	}
	if len(r2) != 1 || !strings.Contains(r2[0].Message, "too close") {
		t.Errorf("robot 2 events = %+v", r2)
	}
}

// --- Task history ---

func TestTaskLifecycle(t *testing.T) {
	db := testDB(t)

	id, err := db.CreateTask(1, 5, TaskAssigned, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == 0 {
		t.Fatal("ID should be assigned")
	}

	if err := db.CompleteTask(1); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := db.GetTask(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != TaskCompleted {
		t.Errorf("Status = %q, want %q", got.Status, TaskCompleted)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
	if got.DestVertex != 5 || got.RobotID != 1 {
		t.Errorf("task = %+v", got)
	}
}

func TestReassignSupersedesOpenTask(t *testing.T) {
	db := testDB(t)

	first, _ := db.CreateTask(3, 1, TaskAssigned, "")
	second, _ := db.CreateTask(3, 2, TaskStalled, "no path")
	db.CreateTask(4, 2, TaskAssigned, "")

	t1, _ := db.GetTask(first)
	if t1.Status != TaskSuperseded {
		t.Errorf("first task status = %q, want superseded", t1.Status)
	}
	t2, _ := db.GetTask(second)
	if t2.Status != TaskStalled || t2.Detail != "no path" {
		t.Errorf("second task = %+v", t2)
	}

	tasks, err := db.ListRobotTasks(3)
	if err != nil {
		t.Fatalf("list robot tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != second {
		t.Errorf("robot 3 tasks = %+v", tasks)
	}

	all, _ := db.ListTasks(10)
	if len(all) != 3 {
		t.Errorf("all tasks = %d, want 3", len(all))
	}

	// Completing robot 3 leaves robot 4's task open.
	db.CompleteTask(3)
	r4, _ := db.ListRobotTasks(4)
	if r4[0].Status != TaskAssigned {
		t.Errorf("robot 4 task = %q, want assigned", r4[0].Status)
	}
}

// --- Admin users ---

func TestAdminUsers(t *testing.T) {
	db := testDB(t)

	exists, err := db.AdminUserExists()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("no admin users expected in a fresh db")
	}

	if _, err := db.CreateAdminUser("admin", "hash1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.CreateAdminUser("admin", "hash2"); err == nil {
		t.Error("duplicate username should fail")
	}

	db.UpdateAdminPassword("admin", "hash3")
	u, err := db.GetAdminUser("admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.PasswordHash != "hash3" {
		t.Errorf("PasswordHash = %q, want hash3", u.PasswordHash)
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt should be parsed")
	}

	if _, err := db.GetAdminUser("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user: err = %v, want ErrNotFound", err)
	}
	if err := db.UpdateAdminPassword("nobody", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing user: err = %v, want ErrNotFound", err)
	}
}

func TestRebind(t *testing.T) {
	got := Rebind(`SELECT * FROM tasks WHERE robot_id=? AND status IN (?, ?)`)
	want := `SELECT * FROM tasks WHERE robot_id=$1 AND status IN ($2, $3)`
	if got != want {
		t.Errorf("Rebind = %q, want %q", got, want)
	}
}

func TestPostgresBind(t *testing.T) {
	got := postgresDialect{}.Bind(`UPDATE tasks SET completed_at=datetime('now','localtime') WHERE id=?`)
	want := `UPDATE tasks SET completed_at=NOW() WHERE id=$1`
	if got != want {
		t.Errorf("Bind = %q, want %q", got, want)
	}
	if q := (sqliteDialect{}).Bind(`SELECT ?`); q != `SELECT ?` {
		t.Errorf("sqlite Bind changed the query: %q", q)
	}
}
