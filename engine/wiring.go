package engine

import (
	"fmt"
	"sync"

	"fleetcore/fleetlog"
	"fleetcore/reservation"
	"fleetcore/robot"
	"fleetcore/store"
)

// StatePublisher receives every tick's state. fleetstate.Manager implements it.
type StatePublisher interface {
	Publish(tick uint64, views []robot.View, warnings []string, res []reservation.Entry)
}

// PublishTo forwards each tick snapshot to p.
func (e *Engine) PublishTo(p StatePublisher) SubscriberID {
	return e.Events.SubscribeTypes(func(evt Event) {
		s := evt.Payload.(TickEvent).Snapshot
		p.Publish(s.Tick, s.Robots, s.Warnings, s.Reservations)
	}, EventTick)
}

func (e *Engine) wireEventHandlers() {
	if e.journal == nil {
		return
	}

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RobotSpawnedEvent)
		e.journal.event(ev.Tick, store.KindSpawned, ev.RobotID, "info", fmt.Sprintf("spawned robot %d at vertex %d", ev.RobotID, ev.Vertex))
	}, EventRobotSpawned)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TaskAssignedEvent)
		status, level := store.TaskAssigned, "info"
		if ev.Stalled {
			status, level = store.TaskStalled, "error"
		}
		e.journal.task(ev.RobotID, int(ev.Dest), status, ev.Detail)
		e.journal.event(ev.Tick, store.KindAssigned, ev.RobotID, level, fmt.Sprintf("robot %d assigned to vertex %d", ev.RobotID, ev.Dest))
	}, EventTaskAssigned)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TaskCompletedEvent)
		e.journal.complete(ev.RobotID)
		e.journal.event(ev.Tick, store.KindCompleted, ev.RobotID, "info", fmt.Sprintf("robot %d completed task at vertex %d", ev.RobotID, ev.Vertex))
	}, EventTaskCompleted)

	// Only newly raised warnings are journaled; a robot waiting for many
	// ticks produces one row.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(WarningsChangedEvent)
		for _, w := range ev.Added {
			e.journal.event(ev.Tick, store.KindWarning, 0, "warning", w)
		}
	}, EventWarningsChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(LogEvent)
		if ev.Level < fleetlog.Error {
			return
		}
		e.journal.event(ev.Tick, store.KindLog, 0, ev.Level.String(), ev.Message)
	}, EventLog)
}

// journal writes events to the store off the tick path. Writes are queued on
// a buffered channel and dropped (with a log line) when the writer falls behind.
type journal struct {
	db    *store.DB
	logFn LogFunc
	ch    chan func(*store.DB) error
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

const journalBuffer = 1024

func newJournal(db *store.DB, logFn LogFunc) *journal {
	j := &journal{db: db, logFn: logFn, ch: make(chan func(*store.DB) error, journalBuffer)}
	j.wg.Add(1)
	go j.run()
	return j
}

func (j *journal) run() {
	defer j.wg.Done()
	for fn := range j.ch {
		if err := fn(j.db); err != nil {
			j.logFn("engine: journal write: %v", err)
		}
	}
}

func (j *journal) enqueue(fn func(*store.DB) error, block bool) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return false
	}
	if block {
		j.ch <- fn
		return true
	}
	select {
	case j.ch <- fn:
		return true
	default:
		j.logFn("engine: journal full, entry dropped")
		return false
	}
}

func (j *journal) event(tick uint64, kind string, robotID int, level, msg string) {
	j.enqueue(func(db *store.DB) error { return db.AppendEvent(tick, kind, robotID, level, msg) }, false)
}

func (j *journal) task(robotID, dest int, status, detail string) {
	j.enqueue(func(db *store.DB) error {
		_, err := db.CreateTask(robotID, dest, status, detail)
		return err
	}, false)
}

func (j *journal) complete(robotID int) {
	j.enqueue(func(db *store.DB) error { return db.CompleteTask(robotID) }, false)
}

// flush blocks until every write queued before the call has been applied.
func (j *journal) flush() {
	done := make(chan struct{})
	if j.enqueue(func(*store.DB) error { close(done); return nil }, true) {
		<-done
	}
}

// close drains pending writes and stops the writer.
func (j *journal) close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.ch)
	j.mu.Unlock()
	j.wg.Wait()
}

// FlushJournal waits for queued journal writes to reach the store.
func (e *Engine) FlushJournal() {
	if e.journal != nil {
		e.journal.flush()
	}
}
