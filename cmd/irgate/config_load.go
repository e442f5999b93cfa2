package main

import (
	"fmt"

	"irgate/internal/logging"
	"irgate/pkg/config"
)

// loadedConfig is the effective configuration plus where it came from.
type loadedConfig struct {
	config.Config
	Paths *config.Paths
	File  string
}

// loadConfig resolves paths and reads the config file. An explicit
// --config must exist; the default location may be absent.
func loadConfig(flags *globalFlags) (*loadedConfig, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	file := flags.configPath
	var cfg config.Config
	if file != "" {
		cfg, err = config.Load(file)
	} else {
		file = paths.ConfigPath
		cfg, err = config.LoadOrDefault(file)
	}
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		if _, err := logging.ParseLevel(flags.logLevel); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
		cfg.Log.Level = flags.logLevel
	}
	return &loadedConfig{Config: cfg, Paths: paths, File: file}, nil
}
