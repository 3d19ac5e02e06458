package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fleetcore/config"
	"fleetcore/fleet"
	"fleetcore/fleetlog"
	"fleetcore/navgraph"
	"fleetcore/reservation"
	"fleetcore/robot"
	"fleetcore/store"
	"fleetcore/traffic"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig *config.Config
	Graph     *navgraph.Graph
	DB        *store.DB // optional; nil disables the journal
	LogFunc   LogFunc
	// Registry receives the engine's metrics. A private registry is created when nil.
	Registry *prometheus.Registry
}

// Snapshot is the immutable view of the fleet at the end of a tick.
type Snapshot struct {
	Tick         uint64              `json:"tick"`
	Time         time.Time           `json:"time"`
	Robots       []robot.View        `json:"robots"`
	Warnings     []string            `json:"warnings"`
	Reservations []reservation.Entry `json:"reservations"`
}

// Engine owns the graph, the reservation table and the roster, and
// serializes every mutation of them.
type Engine struct {
	cfg      *config.Config
	graph    *navgraph.Graph
	table    *reservation.Table
	fleet    *fleet.Manager
	traffic  *traffic.Manager
	db       *store.DB
	journal  *journal
	metrics  *metrics
	registry *prometheus.Registry
	Events   *EventBus
	logFn    LogFunc
	log      fleetlog.Logger

	mu   sync.Mutex
	tick atomic.Uint64

	snapMu       sync.RWMutex
	snap         Snapshot
	lastWarnings map[string]struct{}

	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	reg := c.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c.AppConfig.RLock()
	tc := c.AppConfig.Traffic
	level := fleetlog.ParseLevel(c.AppConfig.Log.Level)
	c.AppConfig.RUnlock()

	e := &Engine{
		cfg:          c.AppConfig,
		graph:        c.Graph,
		table:        reservation.New(c.Graph.Len()),
		db:           c.DB,
		registry:     reg,
		metrics:      newMetrics(reg),
		Events:       NewEventBus(),
		logFn:        logFn,
		lastWarnings: map[string]struct{}{},
	}
	e.log = fleetlog.Multi(
		fleetlog.Printf(func(format string, args ...any) { logFn("fleet: "+format, args...) }, level),
		fleetlog.Func(e.emitLog),
	)
	e.fleet = fleet.NewManager(e.graph, e.table, tc.DefaultSpeed, e.log)
	e.traffic = traffic.NewManager(traffic.Config{
		CollisionThreshold: tc.CollisionThreshold,
		ReleaseMargin:      tc.ReleaseMargin,
		HeadingCone:        tc.HeadingCone,
	}, e.log)
	if e.db != nil {
		e.journal = newJournal(e.db, logFn)
	}
	e.wireEventHandlers()
	e.snap = e.buildSnapshot(0, nil)
	return e
}

func (e *Engine) emitLog(message string, level fleetlog.Level) {
	e.Events.Emit(Event{Type: EventLog, Payload: LogEvent{Tick: e.tick.Load(), Level: level, Message: message}})
}

// Accessors
func (e *Engine) AppConfig() *config.Config      { return e.cfg }
func (e *Engine) Graph() *navgraph.Graph         { return e.graph }
func (e *Engine) DB() *store.DB                  { return e.db }
func (e *Engine) Registry() *prometheus.Registry { return e.registry }
func (e *Engine) Logger() fleetlog.Logger        { return e.log }
func (e *Engine) CurrentTick() uint64            { return e.tick.Load() }

// Start runs the tick loop at the configured interval until Stop.
func (e *Engine) Start() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return
	}
	e.cfg.RLock()
	interval := e.cfg.Sim.TickInterval
	e.cfg.RUnlock()

	e.running = true
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	go e.tickLoop(interval, e.stopChan, e.done)
	e.logFn("engine: started (tick every %s)", interval)
}

func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	done := e.done
	e.runMu.Unlock()
	<-done
	e.logFn("engine: stopped at tick %d", e.tick.Load())
}

// Close stops the loop and flushes the journal.
func (e *Engine) Close() {
	e.Stop()
	if e.journal != nil {
		e.journal.close()
	}
}

func (e *Engine) Running() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

func (e *Engine) tickLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick advances the simulation one step: every robot moves, then the
// collision pass runs over the whole roster.
func (e *Engine) Tick() Snapshot {
	start := time.Now()

	e.mu.Lock()
	n := e.tick.Add(1)
	robots := e.fleet.Robots()
	e.cfg.RLock()
	env := robot.Env{Table: e.table, Graph: e.graph, Clearance: e.cfg.Traffic.ClearanceRadius}
	e.cfg.RUnlock()

	before := make([]robot.Status, len(robots))
	for i, r := range robots {
		before[i] = r.Status
		r.Step(env)
	}
	warnings := e.traffic.Tick(robots, e.table, e.graph)

	var completed []TaskCompletedEvent
	for i, r := range robots {
		if r.Status == robot.TaskComplete && before[i] != robot.TaskComplete {
			completed = append(completed, TaskCompletedEvent{Tick: n, RobotID: r.ID, Vertex: r.CurrentVertex})
		}
	}
	snap := e.buildSnapshot(n, warnings)
	added, changed := e.diffWarnings(warnings)
	e.setSnapshot(snap)
	e.mu.Unlock()

	e.metrics.observe(snap, time.Since(start))

	for _, c := range completed {
		e.Events.Emit(Event{Type: EventTaskCompleted, Payload: c})
	}
	if changed {
		e.Events.Emit(Event{Type: EventWarningsChanged, Payload: WarningsChangedEvent{
			Tick: n, Warnings: snap.Warnings, Added: added,
		}})
	}
	e.Events.Emit(Event{Type: EventTick, Payload: TickEvent{Snapshot: snap}})
	return snap
}

// diffWarnings records the current warning set and reports the new messages.
// Caller holds e.mu.
func (e *Engine) diffWarnings(warnings []string) (added []string, changed bool) {
	cur := make(map[string]struct{}, len(warnings))
	for _, w := range warnings {
		cur[w] = struct{}{}
		if _, ok := e.lastWarnings[w]; !ok {
			added = append(added, w)
		}
	}
	changed = len(added) > 0 || len(cur) != len(e.lastWarnings)
	e.lastWarnings = cur
	return added, changed
}

// buildSnapshot must be called with e.mu held (or before the engine is shared).
func (e *Engine) buildSnapshot(n uint64, warnings []string) Snapshot {
	robots := e.fleet.Robots()
	views := make([]robot.View, len(robots))
	for i, r := range robots {
		views[i] = r.View()
	}
	if warnings == nil {
		warnings = []string{}
	}
	return Snapshot{
		Tick:         n,
		Time:         time.Now(),
		Robots:       views,
		Warnings:     warnings,
		Reservations: e.table.Snapshot(),
	}
}

func (e *Engine) setSnapshot(s Snapshot) {
	e.snapMu.Lock()
	e.snap = s
	e.snapMu.Unlock()
}

// refresh rebuilds the snapshot after an out-of-tick mutation, keeping the
// last tick's warnings. Caller holds e.mu.
func (e *Engine) refresh() Snapshot {
	s := e.buildSnapshot(e.tick.Load(), e.traffic.Warnings())
	e.setSnapshot(s)
	return s
}

// Snapshot returns the state as of the last tick or command.
func (e *Engine) Snapshot() Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snap
}

// RobotViews and Warnings serve fleetstate reads when the cache is unavailable.
func (e *Engine) RobotViews() []robot.View {
	return append([]robot.View(nil), e.Snapshot().Robots...)
}

func (e *Engine) Warnings() []string {
	return append([]string(nil), e.Snapshot().Warnings...)
}

func (e *Engine) Robot(id int) (robot.View, bool) {
	for _, v := range e.Snapshot().Robots {
		if v.ID == id {
			return v, true
		}
	}
	return robot.View{}, false
}

// Spawn places a new unassigned robot at vertex v.
func (e *Engine) Spawn(v navgraph.VertexID) (robot.View, error) {
	e.mu.Lock()
	pos, _ := e.graph.Position(v)
	r, err := e.fleet.Spawn(v, pos)
	if err != nil {
		e.mu.Unlock()
		return robot.View{}, err
	}
	view := r.View()
	e.refresh()
	e.mu.Unlock()

	e.Events.Emit(Event{Type: EventRobotSpawned, Payload: RobotSpawnedEvent{
		Tick: e.tick.Load(), RobotID: view.ID, Vertex: v,
	}})
	return view, nil
}

// AssignTask sends robot id to dest. A task without a route is still
// recorded (the robot is stalled) and the routing error is returned.
func (e *Engine) AssignTask(id int, dest navgraph.VertexID) (robot.View, error) {
	e.mu.Lock()
	r, ok := e.fleet.Robot(id)
	if !ok {
		e.mu.Unlock()
		return robot.View{}, fmt.Errorf("assign %d: %w", id, fleet.ErrUnknownRobot)
	}
	err := e.fleet.AssignTask(r, dest)
	view := r.View()
	e.refresh()
	e.mu.Unlock()
	if errors.Is(err, navgraph.ErrOutOfRange) {
		return view, err
	}

	ev := TaskAssignedEvent{Tick: e.tick.Load(), RobotID: id, Dest: dest}
	if err != nil {
		ev.Stalled = true
		ev.Detail = err.Error()
	}
	e.Events.Emit(Event{Type: EventTaskAssigned, Payload: ev})
	return view, err
}

// Select sets the manual override flag on robot id.
func (e *Engine) Select(id int, on bool) (robot.View, error) {
	e.mu.Lock()
	if err := e.fleet.Select(id, on); err != nil {
		e.mu.Unlock()
		return robot.View{}, err
	}
	r, _ := e.fleet.Robot(id)
	view := r.View()
	e.refresh()
	e.mu.Unlock()

	e.Events.Emit(Event{Type: EventSelectionChanged, Payload: SelectionChangedEvent{RobotID: id, Selected: on}})
	return view, nil
}

// Replan recomputes robot id's route to its current destination.
func (e *Engine) Replan(id int) (robot.View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.fleet.Robot(id)
	if !ok {
		return robot.View{}, fmt.Errorf("replan %d: %w", id, fleet.ErrUnknownRobot)
	}
	if _, hasDest := r.Destination(); !hasDest {
		return r.View(), fmt.Errorf("replan %d: %w", id, ErrNoDestination)
	}
	if !e.traffic.Replan(r, e.graph, e.table) {
		return r.View(), fmt.Errorf("replan %d: %w", id, navgraph.ErrNoPath)
	}
	view := r.View()
	e.refresh()
	return view, nil
}

var ErrNoDestination = errors.New("robot has no destination")
