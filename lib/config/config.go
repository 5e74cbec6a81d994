// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the bridge.
//
// Configuration is loaded from a single YAML file specified by:
//   - the CHALLENGER_CONFIG environment variable, or
//   - the --config flag passed to the command.
//
// There are no fallbacks or automatic discovery. The four core inputs
// (homeserver URL, Matrix access token, tracker token, admin room) may
// alternatively come from environment variables when absent from the
// file, so the binary can run without a file in container deployments.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath is the environment variable naming the config file.
const EnvConfigPath = "CHALLENGER_CONFIG"

// Environment variable fallbacks for core inputs absent from the file.
const (
	EnvHomeserverURL = "CHALLENGER_HOMESERVER_URL"
	EnvAccessToken   = "CHALLENGER_ACCESS_TOKEN"
	EnvTrackerToken  = "CHALLENGER_TRACKER_TOKEN"
	EnvAdminRoom     = "CHALLENGER_ADMIN_ROOM"
)

// Config is the master configuration for the bridge.
type Config struct {
	// HomeserverURL is the base URL of the Matrix homeserver.
	HomeserverURL string `yaml:"homeserver_url"`

	// AccessToken is the Matrix access token for the bridge account.
	// AccessTokenFile names a file to read it from instead ("-" for
	// stdin); the file form wins when both are set.
	AccessToken     string `yaml:"access_token"`
	AccessTokenFile string `yaml:"access_token_file"`

	// AdminRoom is the room ID of the control room whose membership
	// defines the permitted admin set.
	AdminRoom string `yaml:"admin_room"`

	// Tracker configures the remote challenge-tracker API.
	Tracker TrackerConfig `yaml:"tracker"`

	// PollInterval is the cadence of the round-robin poll scheduler.
	// Default: 30s.
	PollInterval Duration `yaml:"poll_interval"`

	// MetricsListen is the address for the /metrics endpoint
	// (e.g., ":9100"). Empty disables metrics serving.
	MetricsListen string `yaml:"metrics_listen"`
}

// TrackerConfig configures access to the challenge-tracker API.
type TrackerConfig struct {
	// Token is the bearer credential for the tracker API. TokenFile
	// names a file to read it from instead; the file form wins.
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`

	// ActivityLimit is the number of recent activities fetched per
	// poll. Default: 10.
	ActivityLimit int `yaml:"activity_limit"`
}

// Duration wraps time.Duration with YAML unmarshaling from strings
// like "30s" or "5m".
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

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Defaults applied by Load when the file leaves fields unset.
const (
	DefaultPollInterval  = 30 * time.Second
	DefaultActivityLimit = 10
)

// Load reads and validates configuration. path may be empty, in which
// case only environment variables are consulted. Secrets referenced by
// *_file fields are NOT read here — callers resolve them through
// lib/secret so the material lands in protected memory.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvFallbacks(&cfg)

	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(DefaultPollInterval)
	}
	if cfg.Tracker.ActivityLimit == 0 {
		cfg.Tracker.ActivityLimit = DefaultActivityLimit
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvFallbacks(cfg *Config) {
	if cfg.HomeserverURL == "" {
		cfg.HomeserverURL = os.Getenv(EnvHomeserverURL)
	}
	if cfg.AccessToken == "" && cfg.AccessTokenFile == "" {
		cfg.AccessToken = os.Getenv(EnvAccessToken)
	}
	if cfg.Tracker.Token == "" && cfg.Tracker.TokenFile == "" {
		cfg.Tracker.Token = os.Getenv(EnvTrackerToken)
	}
	if cfg.AdminRoom == "" {
		cfg.AdminRoom = os.Getenv(EnvAdminRoom)
	}
}

func (c *Config) validate() error {
	if c.HomeserverURL == "" {
		return fmt.Errorf("config: homeserver_url is required")
	}
	if c.AccessToken == "" && c.AccessTokenFile == "" {
		return fmt.Errorf("config: access_token or access_token_file is required")
	}
	if c.Tracker.Token == "" && c.Tracker.TokenFile == "" {
		return fmt.Errorf("config: tracker.token or tracker.token_file is required")
	}
	if c.AdminRoom == "" {
		return fmt.Errorf("config: admin_room is required")
	}
	if c.PollInterval.Std() < time.Second {
		return fmt.Errorf("config: poll_interval %v is below the 1s minimum", c.PollInterval.Std())
	}
	if c.Tracker.ActivityLimit < 1 {
		return fmt.Errorf("config: tracker.activity_limit must be positive")
	}
	return nil
}
