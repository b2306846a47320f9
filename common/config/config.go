package config

import (
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LogLevel string  `toml:"log_level"`
	Paths    Paths   `toml:"paths"`
	Barrier  Barrier `toml:"barrier"`
}

type Paths struct {
	StateRoot string `toml:"state_root"`
	PIDFile   string `toml:"pid_file"`
}

// Barrier bounds the wait for a secondary process's named dependency:
// Attempts receive rounds of Interval each, then launch anyway.
type Barrier struct {
	Attempts   int `toml:"attempts"`
	IntervalMS int `toml:"interval_ms"`
}

func (b Barrier) Interval() time.Duration {
	return time.Duration(b.IntervalMS) * time.Millisecond
}

func Default() Config {
	stateRoot := filepath.Join(homeDir(), ".bootstrapd")
	return Config{
		Paths: Paths{
			StateRoot: stateRoot,
			PIDFile:   filepath.Join(stateRoot, "bootstrapd.pid"),
		},
		Barrier: Barrier{
			Attempts:   20,
			IntervalMS: 250,
		},
	}
}

// Load reads a TOML config file over the defaults. An empty path, or a
// missing file at the default location, yields the defaults unchanged.
func Load(path string) (cfg Config, err error) {
	cfg = Default()
	if path == "" {
		return
	}
	_, err = toml.DecodeFile(path, &cfg)
	if os.IsNotExist(err) {
		err = nil
		return
	}
	if cfg.Paths.PIDFile == "" {
		cfg.Paths.PIDFile = filepath.Join(cfg.Paths.StateRoot, "bootstrapd.pid")
	}
	return
}

//	Find home directory of logged-in user even when run as sudo
func homeDir() (home string) {
	userName := os.Getenv("SUDO_USER")
	if userName == "" {
		userName = os.Getenv("USER")
	}
	currentUser, err := user.Lookup(userName)
	if err == nil && currentUser != nil {
		home = currentUser.HomeDir
		return
	}
	home = os.Getenv("HOME")
	return
}
