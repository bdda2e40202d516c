// Package config loads host-side interpreter settings from a TOML file.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the runner settings. All fields have working defaults so
// a missing file or empty document is valid.
type Config struct {
	Trace  TraceConfig  `toml:"trace"`
	Limits LimitsConfig `toml:"limits"`
}

type TraceConfig struct {
	// Level is a zerolog level name: "trace", "debug", "info",
	// "warn", "error" or "disabled".
	Level string `toml:"level"`
}

type LimitsConfig struct {
	MaxCallDepth int `toml:"max_call_depth"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Trace:  TraceConfig{Level: "disabled"},
		Limits: LimitsConfig{MaxCallDepth: 1000},
	}
}

// Load reads a TOML file over the defaults. A missing file is not an
// error; any present file must parse.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Limits.MaxCallDepth < 0 {
		return cfg, fmt.Errorf("config: max_call_depth must not be negative")
	}
	return cfg, nil
}
