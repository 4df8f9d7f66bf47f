package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent isastream configuration stored as
// config.toml in the .isastream/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Backend     BackendConfig     `toml:"backend"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Replay      ReplayConfig      `toml:"replay"`
}

// BackendConfig holds settings for the chat backend the decoder connects to.
type BackendConfig struct {
	Target string `toml:"target,omitempty"`
	Model  string `toml:"model,omitempty"`
}

// StorageConfig holds message store settings.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"` // "sqlite", "postgres", or "memory"
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig holds Kafka publishing settings.
type EventStreamConfig struct {
	Enabled bool     `toml:"enabled,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// ReplayConfig holds replay server settings.
type ReplayConfig struct {
	Listen  string `toml:"listen,omitempty"`
	Capture string `toml:"capture,omitempty"`
	DelayMs uint   `toml:"delay_ms,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"backend.target": {
		get: func(c *Config) string { return c.Backend.Target },
		set: func(c *Config, v string) error { c.Backend.Target = v; return nil },
	},
	"backend.model": {
		get: func(c *Config) string { return c.Backend.Model },
		set: func(c *Config, v string) error { c.Backend.Model = v; return nil },
	},
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			switch v {
			case "sqlite", "postgres", "memory":
				c.Storage.Driver = v
				return nil
			default:
				return fmt.Errorf("invalid value for storage.driver: %q (available: sqlite, postgres, memory)", v)
			}
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"eventstream.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.EventStream.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for eventstream.enabled: %w", err)
			}
			c.EventStream.Enabled = b
			return nil
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = nil
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.EventStream.Brokers = append(c.EventStream.Brokers, b)
				}
			}
			return nil
		},
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"replay.listen": {
		get: func(c *Config) string { return c.Replay.Listen },
		set: func(c *Config, v string) error { c.Replay.Listen = v; return nil },
	},
	"replay.capture": {
		get: func(c *Config) string { return c.Replay.Capture },
		set: func(c *Config, v string) error { c.Replay.Capture = v; return nil },
	},
	"replay.delay_ms": {
		get: func(c *Config) string {
			if c.Replay.DelayMs == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Replay.DelayMs), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for replay.delay_ms: %w", err)
			}
			c.Replay.DelayMs = uint(n)
			return nil
		},
	},
}
