package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Graph     GraphConfig     `yaml:"graph"`
	Traffic   TrafficConfig   `yaml:"traffic"`
	Sim       SimConfig       `yaml:"sim"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Messaging MessagingConfig `yaml:"messaging"`
	Web       WebConfig       `yaml:"web"`
}

type GraphConfig struct {
	Path     string `yaml:"path"`
	SeedPath string `yaml:"seed_path"`
}

type TrafficConfig struct {
	DefaultSpeed       float64 `yaml:"default_speed"`
	CollisionThreshold float64 `yaml:"collision_threshold"`
	ReleaseMargin      float64 `yaml:"release_margin"`
	HeadingCone        float64 `yaml:"heading_cone"` // radians, 0 = off
	ClearanceRadius    float64 `yaml:"clearance_radius"`
}

type SimConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Autostart    bool          `yaml:"autostart"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MessagingConfig struct {
	Backend      string      `yaml:"backend"` // "kafka", "mqtt" or "none"
	Kafka        KafkaConfig `yaml:"kafka"`
	MQTT         MQTTConfig  `yaml:"mqtt"`
	CommandTopic string      `yaml:"command_topic"`
	EventTopic   string      `yaml:"event_topic"`
	StationID    string      `yaml:"station_id"`
	// PublishEvery sends a tick snapshot on the event topic every N ticks.
	PublishEvery int `yaml:"publish_every"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

func Defaults() *Config {
	return &Config{
		Graph: GraphConfig{
			Path: "graph.json",
		},
		Traffic: TrafficConfig{
			DefaultSpeed:       2.0,
			CollisionThreshold: 20,
			ReleaseMargin:      10,
			HeadingCone:        0,
			ClearanceRadius:    5,
		},
		Sim: SimConfig{
			TickInterval: 50 * time.Millisecond,
			Autostart:    true,
		},
		Log: LogConfig{Level: "debug"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "fleetcore.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "fleetcore",
				User:     "fleetcore",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Messaging: MessagingConfig{
			Backend: "none",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "fleetcore",
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "fleetcore",
			},
			CommandTopic: "fleet.commands",
			EventTopic:   "fleet.events",
			StationID:    "fleetcore",
			PublishEvery: 20,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8084,
			SessionSecret: "change-me-in-production",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the coordination loop cannot run with.
func (c *Config) Validate() error {
	t := c.Traffic
	switch {
	case t.DefaultSpeed <= 0:
		return fmt.Errorf("traffic.default_speed must be positive, got %v", t.DefaultSpeed)
	case t.CollisionThreshold < 0:
		return fmt.Errorf("traffic.collision_threshold must not be negative, got %v", t.CollisionThreshold)
	case t.ReleaseMargin < 0:
		return fmt.Errorf("traffic.release_margin must not be negative, got %v", t.ReleaseMargin)
	case t.HeadingCone < 0:
		return fmt.Errorf("traffic.heading_cone must not be negative, got %v", t.HeadingCone)
	case t.ClearanceRadius < 0:
		return fmt.Errorf("traffic.clearance_radius must not be negative, got %v", t.ClearanceRadius)
	case c.Sim.TickInterval <= 0:
		return fmt.Errorf("sim.tick_interval must be positive, got %v", c.Sim.TickInterval)
	}
	switch c.Messaging.Backend {
	case "", "none", "kafka", "mqtt":
	default:
		return fmt.Errorf("messaging.backend %q not supported", c.Messaging.Backend)
	}
	return nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }
