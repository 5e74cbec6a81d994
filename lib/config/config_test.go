// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "challenger.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
homeserver_url: http://localhost:8008
access_token: syt_secret
admin_room: "!admin:example.org"
tracker:
  token: tracker-secret
  activity_limit: 5
poll_interval: 45s
metrics_listen: ":9100"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HomeserverURL != "http://localhost:8008" {
		t.Errorf("unexpected homeserver URL: %q", cfg.HomeserverURL)
	}
	if cfg.PollInterval.Std() != 45*time.Second {
		t.Errorf("unexpected poll interval: %v", cfg.PollInterval.Std())
	}
	if cfg.Tracker.ActivityLimit != 5 {
		t.Errorf("unexpected activity limit: %d", cfg.Tracker.ActivityLimit)
	}
	if cfg.MetricsListen != ":9100" {
		t.Errorf("unexpected metrics listen: %q", cfg.MetricsListen)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
homeserver_url: http://localhost:8008
access_token: syt_secret
admin_room: "!admin:example.org"
tracker:
  token: tracker-secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PollInterval.Std() != DefaultPollInterval {
		t.Errorf("expected default poll interval, got %v", cfg.PollInterval.Std())
	}
	if cfg.Tracker.ActivityLimit != DefaultActivityLimit {
		t.Errorf("expected default activity limit, got %d", cfg.Tracker.ActivityLimit)
	}
}

func TestLoadEnvFallbacks(t *testing.T) {
	t.Setenv(EnvHomeserverURL, "http://localhost:8008")
	t.Setenv(EnvAccessToken, "syt_secret")
	t.Setenv(EnvTrackerToken, "tracker-secret")
	t.Setenv(EnvAdminRoom, "!admin:example.org")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AdminRoom != "!admin:example.org" {
		t.Errorf("unexpected admin room: %q", cfg.AdminRoom)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"missing homeserver": `
access_token: x
admin_room: "!a:b"
tracker: {token: y}
`,
		"missing token": `
homeserver_url: http://localhost:8008
admin_room: "!a:b"
tracker: {token: y}
`,
		"missing admin room": `
homeserver_url: http://localhost:8008
access_token: x
tracker: {token: y}
`,
		"missing tracker token": `
homeserver_url: http://localhost:8008
access_token: x
admin_room: "!a:b"
`,
		"tiny poll interval": `
homeserver_url: http://localhost:8008
access_token: x
admin_room: "!a:b"
tracker: {token: y}
poll_interval: 100ms
`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, contents)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	path := writeConfig(t, `
homeserver_url: http://localhost:8008
access_token: x
admin_room: "!a:b"
tracker: {token: y}
poll_interval: bogus
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed duration")
	}
}
