package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
addr: "127.0.0.1:9999"
dataPath: /tmp/test.db
sweepInterval: 1m
idleTimeout: 10m
outgoingBuffer: 32
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" || cfg.DataPath != "/tmp/test.db" {
		t.Fatalf("bad config: %+v", cfg)
	}
	if cfg.SweepInterval != time.Minute || cfg.IdleTimeout != 10*time.Minute {
		t.Fatalf("bad durations: %+v", cfg)
	}
	if cfg.OutgoingBuffer != 32 {
		t.Fatalf("bad buffer: %+v", cfg)
	}
	// absent fields keep defaults
	if cfg.BroadcastTimeout != DefaultConfig().BroadcastTimeout {
		t.Fatalf("default not kept: %+v", cfg)
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeConfig(t, `sweepInterval: often`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.IdleTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero idleTimeout")
	}
}
