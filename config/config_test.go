package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Traffic.CollisionThreshold != 20 || cfg.Traffic.ReleaseMargin != 10 || cfg.Traffic.DefaultSpeed != 2 {
		t.Errorf("traffic defaults = %+v", cfg.Traffic)
	}
	if cfg.Sim.TickInterval != 50*time.Millisecond {
		t.Errorf("tick interval = %v", cfg.Sim.TickInterval)
	}
	if cfg.Messaging.Backend != "none" {
		t.Errorf("backend = %q, want none", cfg.Messaging.Backend)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetcore.yaml")
	data := `
graph:
  path: warehouse.json
traffic:
  collision_threshold: 30
  heading_cone: 0.5
sim:
  tick_interval: 100ms
messaging:
  backend: mqtt
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Graph.Path != "warehouse.json" {
		t.Errorf("graph.path = %q", cfg.Graph.Path)
	}
	if cfg.Traffic.CollisionThreshold != 30 || cfg.Traffic.HeadingCone != 0.5 {
		t.Errorf("traffic = %+v", cfg.Traffic)
	}
	// Untouched keys keep their defaults.
	if cfg.Traffic.ReleaseMargin != 10 {
		t.Errorf("release_margin = %v, want default 10", cfg.Traffic.ReleaseMargin)
	}
	if cfg.Sim.TickInterval != 100*time.Millisecond {
		t.Errorf("tick_interval = %v", cfg.Sim.TickInterval)
	}
	if cfg.Messaging.MQTT.Port != 1883 {
		t.Errorf("mqtt port = %d", cfg.Messaging.MQTT.Port)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, data, want string
	}{
		{"zero speed", "traffic:\n  default_speed: 0\n", "default_speed"},
		{"negative margin", "traffic:\n  release_margin: -1\n", "release_margin"},
		{"bad backend", "messaging:\n  backend: amqp\n", "backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			os.WriteFile(path, []byte(tt.data), 0644)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Defaults()
	cfg.Web.Port = 9090
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Web.Port != 9090 {
		t.Errorf("web.port = %d, want 9090", got.Web.Port)
	}
}
