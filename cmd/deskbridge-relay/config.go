// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the relay service configuration, loaded from a single YAML
// file named by --config. There are no fallbacks or automatic
// discovery: deterministic, auditable configuration with no hidden
// overrides.
type Config struct {
	// Listen is the TCP listen address.
	Listen string `yaml:"listen"`

	// Database is the SQLite room database path. Empty selects the
	// in-memory directory, which loses all rooms on restart — fine
	// for demos, wrong for deployments.
	Database string `yaml:"database"`

	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	// Empty admits any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// Input configures the injection backend.
	Input InputConfig `yaml:"input"`

	// Auth is the static token table. Tokens map to identities.
	Auth AuthConfig `yaml:"auth"`
}

// InputConfig selects and tunes the input executor.
type InputConfig struct {
	// Executor is "null" or "xdotool". Defaults to "null", which
	// logs authorized commands without touching the OS.
	Executor string `yaml:"executor"`

	// QueueSize bounds the injector queue. Zero uses the default.
	QueueSize int `yaml:"queue_size"`

	// XdotoolBinary overrides the xdotool path.
	XdotoolBinary string `yaml:"xdotool_binary"`

	// Display is the X11 display for xdotool (e.g., ":0").
	Display string `yaml:"display"`
}

// AuthConfig holds the static token table.
type AuthConfig struct {
	// Tokens maps bearer token → identity.
	Tokens map[string]string `yaml:"tokens"`
}

// Duration wraps time.Duration with YAML support for strings like
// "10s" and "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := &Config{
		Listen: ":8443",
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	switch config.Input.Executor {
	case "", "null", "xdotool":
	default:
		return nil, fmt.Errorf("config %s: unknown input executor %q", path, config.Input.Executor)
	}
	if len(config.Auth.Tokens) == 0 {
		return nil, fmt.Errorf("config %s: auth.tokens must not be empty", path)
	}
	for token, identity := range config.Auth.Tokens {
		if token == "" || identity == "" {
			return nil, fmt.Errorf("config %s: auth.tokens entries must have non-empty token and identity", path)
		}
	}

	return config, nil
}
