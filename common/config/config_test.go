package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Paths.StateRoot == "" {
		t.Fatal("empty state root")
	}
	if cfg.Paths.PIDFile == "" {
		t.Fatal("empty pid file path")
	}
	if cfg.Barrier.Attempts <= 0 {
		t.Fatal("barrier attempts not positive")
	}
	if cfg.Barrier.Interval() <= 0 {
		t.Fatal("barrier interval not positive")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootstrapd.toml")
	contents := `
log_level = "DEBUG"

[paths]
state_root = "/tmp/ns"
pid_file = "/tmp/ns/pid"

[barrier]
attempts = 3
interval_ms = 10
`
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Fatalf("log level %q", cfg.LogLevel)
	}
	if cfg.Paths.StateRoot != "/tmp/ns" {
		t.Fatalf("state root %q", cfg.Paths.StateRoot)
	}
	if cfg.Barrier.Attempts != 3 || cfg.Barrier.Interval() != 10*time.Millisecond {
		t.Fatalf("barrier %+v", cfg.Barrier)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Barrier.Attempts != Default().Barrier.Attempts {
		t.Fatal("defaults not kept")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.StateRoot != Default().Paths.StateRoot {
		t.Fatal("defaults not kept")
	}
}
