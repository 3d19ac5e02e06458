// Package store is the SQL journal: coordination events, task history and
// admin users. It is written to, never replayed into the engine.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleetcore/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	dialect Dialect
}

// Open connects to the configured journal database and creates any missing tables.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	var (
		driverName, dsn string
		d               Dialect
	)
	switch cfg.Driver {
	case "sqlite":
		driverName, d = "sqlite", sqliteDialect{}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.SQLite.Path)
	case "postgres":
		p := cfg.Postgres
		driverName, d = "pgx", postgresDialect{}
		dsn = fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			p.Host, p.Port, p.Database, p.User, p.Password, p.SSLMode)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name(), err)
	}
	if d.Name() == "sqlite" {
		// The journal writer is a single goroutine; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect %s: %w", d.Name(), err)
	}

	db := &DB{DB: sqlDB, dialect: d}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	if _, err := db.Exec(schema(db.dialect)); err != nil {
		return fmt.Errorf("migrate %s: %w", db.dialect.Name(), err)
	}
	return nil
}

// Driver names the backing database: "sqlite" or "postgres".
func (db *DB) Driver() string { return db.dialect.Name() }

// Q binds a query written in SQLite form for the open database.
func (db *DB) Q(query string) string { return db.dialect.Bind(query) }

// insertID runs an INSERT and returns the new row id. PostgreSQL has no
// LastInsertId, so the query is extended with RETURNING id there.
func (db *DB) insertID(query string, args ...any) (int64, error) {
	if _, ok := db.dialect.(postgresDialect); ok {
		var id int64
		err := db.QueryRow(db.Q(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := db.Exec(db.Q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
