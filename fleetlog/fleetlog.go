// Package fleetlog is the logging port shared by the coordination components.
// Components never write to a process-wide logger; they are handed a Logger.
package fleetlog

import (
	"fmt"
	"strings"
)

type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
	Critical
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps a config string to a Level. Unknown strings map to Debug.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return Info
	case "warning", "warn":
		return Warning
	case "error":
		return Error
	case "critical":
		return Critical
	default:
		return Debug
	}
}

// Logger receives notable coordination events.
type Logger interface {
	LogEvent(message string, level Level)
}

// Func adapts a plain function to Logger.
type Func func(message string, level Level)

func (f Func) LogEvent(message string, level Level) { f(message, level) }

// Discard drops every event.
var Discard Logger = Func(func(string, Level) {})

// Logf formats and forwards to l. A nil l is treated as Discard.
func Logf(l Logger, level Level, format string, args ...any) {
	if l == nil {
		return
	}
	l.LogEvent(fmt.Sprintf(format, args...), level)
}

// Printf adapts a printf-style sink (log.Printf) to Logger. Events below min are dropped.
func Printf(printf func(format string, args ...any), min Level) Logger {
	return Func(func(message string, level Level) {
		if level < min {
			return
		}
		printf("[%s] %s", strings.ToUpper(level.String()), message)
	})
}

// Multi fans an event out to several loggers in order.
func Multi(loggers ...Logger) Logger {
	return Func(func(message string, level Level) {
		for _, l := range loggers {
			if l != nil {
				l.LogEvent(message, level)
			}
		}
	})
}

// Recorder keeps every event in memory. Handy for tests and diagnostics.
type Recorder struct {
	Entries []Entry
}

type Entry struct {
	Message string
	Level   Level
}

func (r *Recorder) LogEvent(message string, level Level) {
	r.Entries = append(r.Entries, Entry{Message: message, Level: level})
}

// Count returns how many recorded entries are at the given level.
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, e := range r.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
