package store

import (
	"fmt"
	"strings"
	"time"
)

// Dialect covers what differs between the SQLite and PostgreSQL journals:
// DDL fragments and placeholder syntax. Queries are written once in SQLite
// form and bound per dialect.
type Dialect interface {
	Name() string
	AutoIncrementPK() string
	Now() string
	TimestampType() string
	Bind(query string) string
}

const sqliteNow = "datetime('now','localtime')"

type sqliteDialect struct{}

func (sqliteDialect) Name() string             { return "sqlite" }
func (sqliteDialect) AutoIncrementPK() string  { return "INTEGER PRIMARY KEY AUTOINCREMENT" }
func (sqliteDialect) Now() string              { return sqliteNow }
func (sqliteDialect) TimestampType() string    { return "TEXT" }
func (sqliteDialect) Bind(query string) string { return query }

type postgresDialect struct{}

func (postgresDialect) Name() string            { return "postgres" }
func (postgresDialect) AutoIncrementPK() string { return "BIGSERIAL PRIMARY KEY" }
func (postgresDialect) Now() string             { return "NOW()" }
func (postgresDialect) TimestampType() string   { return "TIMESTAMPTZ" }

func (postgresDialect) Bind(query string) string {
	return Rebind(strings.ReplaceAll(query, sqliteNow, "NOW()"))
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, part := range strings.SplitAfter(query, "?") {
		if !strings.HasSuffix(part, "?") {
			b.WriteString(part)
			continue
		}
		n++
		b.WriteString(part[:len(part)-1])
		fmt.Fprintf(&b, "$%d", n)
	}
	return b.String()
}

var sqliteLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// parseTime normalizes a scanned timestamp. PostgreSQL hands back time.Time;
// SQLite stores local wall-clock text.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range sqliteLayouts {
			if parsed, err := time.ParseInLocation(layout, t, time.Local); err == nil {
				return parsed
			}
		}
	case []byte:
		return parseTime(string(t))
	}
	return time.Time{}
}

func parseTimePtr(v any) *time.Time {
	if t := parseTime(v); !t.IsZero() {
		return &t
	}
	return nil
}
