package server

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config represents the sessiond server configuration file structure.
type Config struct {
	// Addr is the TCP listen address.
	Addr string

	// DataPath is the SQLite checkpoint database path. Empty disables
	// durability.
	DataPath string

	// SweepInterval is how often the idle sweeper runs.
	SweepInterval time.Duration

	// IdleTimeout is the inactivity age past which a session is evicted.
	IdleTimeout time.Duration

	// OutgoingBuffer is the per-connection outgoing channel size.
	OutgoingBuffer int

	// BroadcastTimeout bounds how long a broadcast waits on one client
	// before pruning it.
	BroadcastTimeout time.Duration
}

// fileConfig is the YAML file shape. Durations are strings in
// time.ParseDuration syntax.
type fileConfig struct {
	Addr             string `yaml:"addr"`
	DataPath         string `yaml:"dataPath"`
	SweepInterval    string `yaml:"sweepInterval"`
	IdleTimeout      string `yaml:"idleTimeout"`
	OutgoingBuffer   int    `yaml:"outgoingBuffer"`
	BroadcastTimeout string `yaml:"broadcastTimeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:             ":8765",
		DataPath:         "session_data.db",
		SweepInterval:    5 * time.Minute,
		IdleTimeout:      30 * time.Minute,
		OutgoingBuffer:   100,
		BroadcastTimeout: 5 * time.Second,
	}
}

// LoadConfig loads a YAML configuration file. Absent fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := DefaultConfig()
	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}
	if fc.DataPath != "" {
		cfg.DataPath = fc.DataPath
	}
	if fc.OutgoingBuffer > 0 {
		cfg.OutgoingBuffer = fc.OutgoingBuffer
	}
	for _, d := range []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"sweepInterval", fc.SweepInterval, &cfg.SweepInterval},
		{"idleTimeout", fc.IdleTimeout, &cfg.IdleTimeout},
		{"broadcastTimeout", fc.BroadcastTimeout, &cfg.BroadcastTimeout},
	} {
		if d.src == "" {
			continue
		}
		dur, err := time.ParseDuration(d.src)
		if err != nil {
			return nil, fmt.Errorf("bad %s %q: %w", d.name, d.src, err)
		}
		*d.dst = dur
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweepInterval must be positive, got %v", c.SweepInterval)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idleTimeout must be positive, got %v", c.IdleTimeout)
	}
	if c.BroadcastTimeout <= 0 {
		return fmt.Errorf("broadcastTimeout must be positive, got %v", c.BroadcastTimeout)
	}
	return nil
}
