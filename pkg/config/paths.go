package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeDir is the directory name under the user's home used when
// IRGATE_HOME is not set.
const HomeDir = ".irgate"

// Paths holds all resolved irgate state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home        string // ~/.irgate or IRGATE_HOME
	ConfigPath  string // config.toml or IRGATE_CONFIG
	PIDPath     string // irgate.pid or IRGATE_PID_PATH
	JournalPath string // journal.db or IRGATE_JOURNAL
}

// ResolvePaths returns all irgate paths, respecting env var overrides.
// Environment variables:
//   - IRGATE_HOME: base directory for all state (default: ~/.irgate)
//   - IRGATE_CONFIG: configuration file (default: $IRGATE_HOME/config.toml)
//   - IRGATE_PID_PATH: daemon PID file (default: $IRGATE_HOME/irgate.pid)
//   - IRGATE_JOURNAL: event journal (default: $IRGATE_HOME/journal.db)
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	return &Paths{
		Home:        home,
		ConfigPath:  resolvePathWithEnv("IRGATE_CONFIG", home, "config.toml"),
		PIDPath:     resolvePathWithEnv("IRGATE_PID_PATH", home, "irgate.pid"),
		JournalPath: resolvePathWithEnv("IRGATE_JOURNAL", home, "journal.db"),
	}, nil
}

// JournalPath returns the configured journal path or the resolved default.
func (c *Config) JournalPath(p *Paths) string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return p.JournalPath
}

func resolveHome() (string, error) {
	if v := os.Getenv("IRGATE_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, HomeDir), nil
}

func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
