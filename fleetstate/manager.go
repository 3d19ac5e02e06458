// Package fleetstate mirrors the engine's per-tick snapshot into a shared cache
// (Redis) so other processes can read fleet state without touching the engine.
package fleetstate

import (
	"context"
	"log"
	"sort"
	"sync"

	"fleetcore/reservation"
	"fleetcore/robot"
)

// Cache is what the manager writes through to. RedisStore implements it.
type Cache interface {
	SetRobots(ctx context.Context, views []robot.View) error
	GetRobot(ctx context.Context, id int) (*robot.View, error)
	GetAllRobotIDs(ctx context.Context) ([]int, error)
	SetTickState(ctx context.Context, tick uint64, warnings []string, res []reservation.Entry) error
	GetWarnings(ctx context.Context) ([]string, error)
	FlushAll(ctx context.Context) error
}

// Source is the live state consulted when the cache misses or is down.
type Source interface {
	RobotViews() []robot.View
	Warnings() []string
}

// Manager provides write-through fleet state: engine snapshot first, then cache.
type Manager struct {
	cache Cache
	src   Source

	mu      sync.Mutex
	healthy bool
}

func NewManager(cache Cache, src Source) *Manager {
	return &Manager{cache: cache, src: src, healthy: true}
}

// Reset clears whatever a previous run left in the cache. Called on startup.
func (m *Manager) Reset() error {
	return m.cache.FlushAll(context.Background())
}

// Publish writes one tick's state to the cache. Failures are logged once per
// outage rather than every tick.
func (m *Manager) Publish(tick uint64, views []robot.View, warnings []string, res []reservation.Entry) {
	ctx := context.Background()
	err := m.cache.SetRobots(ctx, views)
	if err == nil {
		err = m.cache.SetTickState(ctx, tick, warnings, res)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err != nil && m.healthy:
		log.Printf("fleetstate: cache write failed, serving from engine: %v", err)
		m.healthy = false
	case err == nil && !m.healthy:
		log.Printf("fleetstate: cache write recovered at tick %d", tick)
		m.healthy = true
	}
}

// Healthy reports whether the last publish reached the cache.
func (m *Manager) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// GetRobot reads a robot from the cache, falls back to the engine.
func (m *Manager) GetRobot(id int) (*robot.View, bool) {
	if v, err := m.cache.GetRobot(context.Background(), id); err == nil && v != nil {
		return v, true
	}
	for _, v := range m.src.RobotViews() {
		if v.ID == id {
			return &v, true
		}
	}
	return nil, false
}

// GetAllRobots returns every robot ordered by id, preferring the cache.
func (m *Manager) GetAllRobots() []robot.View {
	ctx := context.Background()
	ids, err := m.cache.GetAllRobotIDs(ctx)
	if err == nil && len(ids) > 0 {
		sort.Ints(ids)
		views := make([]robot.View, 0, len(ids))
		for _, id := range ids {
			v, err := m.cache.GetRobot(ctx, id)
			if err != nil || v == nil {
				continue
			}
			views = append(views, *v)
		}
		if len(views) == len(ids) {
			return views
		}
	}
	views := m.src.RobotViews()
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

func (m *Manager) GetWarnings() []string {
	if w, err := m.cache.GetWarnings(context.Background()); err == nil && w != nil {
		return w
	}
	return m.src.Warnings()
}
