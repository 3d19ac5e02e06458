package engine

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fleetcore/navgraph"
)

// Seed lists robots to spawn at startup and, optionally, where to send them.
//
//	robots:
//	  - vertex: 0
//	    destination: 12
//	  - vertex: 4
type Seed struct {
	Robots []SeedRobot `yaml:"robots"`
}

type SeedRobot struct {
	Vertex      navgraph.VertexID  `yaml:"vertex"`
	Destination *navgraph.VertexID `yaml:"destination,omitempty"`
}

func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &s, nil
}

// LoadSeed spawns and assigns the robots in the seed file at path. Entries
// that fail are logged and skipped; the returned error joins their reasons.
func (e *Engine) LoadSeed(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	return e.ApplySeed(seed)
}

// ApplySeed returns the number of robots spawned.
func (e *Engine) ApplySeed(seed *Seed) (int, error) {
	var errs []error
	spawned := 0
	for i, sr := range seed.Robots {
		v, err := e.Spawn(sr.Vertex)
		if err != nil {
			e.logFn("engine: seed entry %d: %v", i, err)
			errs = append(errs, fmt.Errorf("seed entry %d: %w", i, err))
			continue
		}
		spawned++
		if sr.Destination == nil {
			continue
		}
		if _, err := e.AssignTask(v.ID, *sr.Destination); err != nil {
			e.logFn("engine: seed entry %d: %v", i, err)
			errs = append(errs, fmt.Errorf("seed entry %d: %w", i, err))
		}
	}
	e.logFn("engine: seeded %d robots", spawned)
	return spawned, errors.Join(errs...)
}
