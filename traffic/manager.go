// Package traffic runs the per-tick collision pass over the whole roster:
// it halts the lower-priority robot of every close pair, releases held robots
// once they are far enough apart, and replans robots whose destination is held.
package traffic

import (
	"fmt"
	"math"

	"fleetcore/fleetlog"
	"fleetcore/navgraph"
	"fleetcore/reservation"
	"fleetcore/robot"
)

type Config struct {
	CollisionThreshold float64
	// ReleaseMargin is added to CollisionThreshold before a held robot may resume.
	ReleaseMargin float64
	// HeadingCone is the half-angle in radians ahead of a robot's heading
	// inside which another robot counts as a conflict. Zero disables the filter.
	HeadingCone float64
}

func DefaultConfig() Config {
	return Config{CollisionThreshold: 20, ReleaseMargin: 10}
}

type Manager struct {
	cfg      Config
	log      fleetlog.Logger
	warnings []string
}

func NewManager(cfg Config, log fleetlog.Logger) *Manager {
	return &Manager{cfg: cfg, log: log}
}

func (m *Manager) Config() Config { return m.cfg }

// Warnings returns the messages produced by the last Tick.
func (m *Manager) Warnings() []string {
	out := make([]string, len(m.warnings))
	copy(out, m.warnings)
	return out
}

// Tick runs one collision pass. It never fails; per-robot inconsistencies are
// logged and skipped for that robot only.
func (m *Manager) Tick(robots []*robot.Robot, table *reservation.Table, g *navgraph.Graph) []string {
	m.warnings = nil
	byID := make(map[int]*robot.Robot, len(robots))
	for _, r := range robots {
		byID[r.ID] = r
	}

	m.reset(robots)
	m.releaseHolds(robots, byID)

	for i := 0; i < len(robots); i++ {
		for j := i + 1; j < len(robots); j++ {
			m.resolvePair(robots[i], robots[j], table, g)
		}
	}

	m.collectWarnings(robots, byID, table)
	return m.Warnings()
}

func (m *Manager) reset(robots []*robot.Robot) {
	for _, r := range robots {
		if r.Waiting {
			continue
		}
		r.Speed = r.DefaultSpeed
		switch {
		case len(r.Route) > 0:
			r.SetStatus(robot.Moving)
		case r.Status.Active() && !r.Stalled():
			if r.SetStatus(robot.TaskComplete) {
				fleetlog.Logf(m.log, fleetlog.Info, "robot %d completed task at vertex %d", r.ID, r.CurrentVertex)
			}
		}
	}
}

// releaseHolds resumes collision-held robots whose peer is gone, selected, or
// at least threshold+margin away.
func (m *Manager) releaseHolds(robots []*robot.Robot, byID map[int]*robot.Robot) {
	resume := m.cfg.CollisionThreshold + m.cfg.ReleaseMargin
	for _, r := range robots {
		peerID, held := r.HoldPeer()
		if !held {
			continue
		}
		peer, ok := byID[peerID]
		switch {
		case !ok, r.Selected, peer.Selected:
		case r.Position.Dist(peer.Position) >= resume:
		default:
			continue
		}
		r.ReleaseHold()
		fleetlog.Logf(m.log, fleetlog.Info, "robot %d resumed, clear of robot %d", r.ID, peerID)
	}
}

func (m *Manager) resolvePair(a, b *robot.Robot, table *reservation.Table, g *navgraph.Graph) {
	if a.Selected || b.Selected {
		return
	}
	if len(a.Route) == 0 && len(b.Route) == 0 {
		return
	}
	if a.Position.Dist(b.Position) >= m.cfg.CollisionThreshold {
		return
	}

	m.replanIfDestinationHeld(a, table, g)
	m.replanIfDestinationHeld(b, table, g)

	aIdle, bIdle := len(a.Route) == 0, len(b.Route) == 0
	if aIdle && bIdle {
		return
	}
	aMay, bMay := !aIdle, !bIdle
	if m.cfg.HeadingCone > 0 {
		// Only a robot with its peer ahead of it may be made to stop.
		aMay = aMay && ahead(a, b, m.cfg.HeadingCone)
		bMay = bMay && ahead(b, a, m.cfg.HeadingCone)
	}

	var yielder, other *robot.Robot
	switch {
	case aMay && bMay:
		yielder, other = m.priority(a, b)
	case aMay:
		yielder, other = a, b
	case bMay:
		yielder, other = b, a
	default:
		return
	}
	if yielder.CollisionHeld() {
		return
	}
	if peer, held := other.HoldPeer(); held && peer == yielder.ID {
		return
	}
	yielder.Hold(other.ID)
	fleetlog.Logf(m.log, fleetlog.Warning, "robot %d holding for robot %d (%.1f apart)",
		yielder.ID, other.ID, a.Position.Dist(b.Position))
}

// priority picks the robot that yields when both could: the one with more
// remaining route, ties going to the higher id.
func (m *Manager) priority(a, b *robot.Robot) (yielder, other *robot.Robot) {
	ra, rb := a.RemainingDistance(), b.RemainingDistance()
	switch {
	case ra > rb:
		return a, b
	case rb > ra:
		return b, a
	case a.ID > b.ID:
		return a, b
	default:
		return b, a
	}
}

func (m *Manager) replanIfDestinationHeld(r *robot.Robot, table *reservation.Table, g *navgraph.Graph) {
	dest, ok := r.Destination()
	if !ok {
		return
	}
	if !g.Contains(dest) {
		fleetlog.Logf(m.log, fleetlog.Error, "robot %d: destination %d out of range, skipped", r.ID, dest)
		return
	}
	if table.HeldByOther(int(dest), r.ID) {
		m.Replan(r, g, table)
	}
}

// Replan recomputes r's route from its current vertex to its destination and
// overwrites it. Without a destination, or when no path exists, the prior
// route is kept and false is returned.
func (m *Manager) Replan(r *robot.Robot, g *navgraph.Graph, table *reservation.Table) bool {
	dest, ok := r.Destination()
	if !ok {
		fleetlog.Logf(m.log, fleetlog.Debug, "robot %d: replan skipped, no destination", r.ID)
		return false
	}
	path, err := g.FindPath(r.CurrentVertex, dest)
	if err != nil {
		fleetlog.Logf(m.log, fleetlog.Error, "robot %d: replan %d -> %d failed: %v", r.ID, r.CurrentVertex, dest, err)
		return false
	}
	var res robot.Reservations
	if table != nil {
		res = table
	}
	r.SetRoute(robot.BuildRoute(g, path), res)
	fleetlog.Logf(m.log, fleetlog.Debug, "robot %d: replanned to %d (%d waypoints)", r.ID, dest, len(r.Route))
	return true
}

// ahead reports whether other lies within cone radians of r's heading.
func ahead(r, other *robot.Robot, cone float64) bool {
	heading, ok := r.Heading()
	if !ok {
		return false
	}
	dx := other.Position.X - r.Position.X
	dy := other.Position.Y - r.Position.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		return true
	}
	cos := (dx*math.Cos(heading) + dy*math.Sin(heading)) / d
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) <= cone
}

func (m *Manager) collectWarnings(robots []*robot.Robot, byID map[int]*robot.Robot, table *reservation.Table) {
	for _, r := range robots {
		if peerID, held := r.HoldPeer(); held {
			msg := fmt.Sprintf("Robot %d waiting: too close to robot %d", r.ID, peerID)
			if peer, ok := byID[peerID]; ok {
				msg = fmt.Sprintf("Robot %d waiting: too close to robot %d (%.1f)", r.ID, peerID, r.Position.Dist(peer.Position))
			}
			m.warnings = append(m.warnings, msg)
			continue
		}
		if v, blocked := r.BlockedOn(); blocked {
			holder, _ := table.Holder(int(v))
			m.warnings = append(m.warnings, fmt.Sprintf("Robot %d waiting: vertex %d reserved by robot %d", r.ID, v, holder))
			continue
		}
		if r.Stalled() {
			dest, _ := r.Destination()
			m.warnings = append(m.warnings, fmt.Sprintf("Robot %d stalled: no route to vertex %d", r.ID, dest))
		}
	}
}
