// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"testing"
)

func TestParseRoomID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		id, err := ParseRoomID("!abc123:example.org")
		if err != nil {
			t.Fatalf("ParseRoomID failed: %v", err)
		}
		if id.String() != "!abc123:example.org" {
			t.Errorf("unexpected string: %q", id.String())
		}
		if id.IsZero() {
			t.Error("parsed room ID reported as zero")
		}
	})

	invalid := map[string]string{
		"empty":            "",
		"no sigil":         "abc:example.org",
		"no server":        "!abc123",
		"empty local part": "!:example.org",
		"empty server":     "!abc123:",
	}
	for name, raw := range invalid {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseRoomID(raw); err == nil {
				t.Errorf("expected error for %q", raw)
			}
		})
	}
}

func TestRoomIDAsMapKey(t *testing.T) {
	// /sync responses decode room sections into map[RoomID]...,
	// which requires TextUnmarshaler on the key type.
	var decoded map[RoomID]int
	if err := json.Unmarshal([]byte(`{"!abc:example.org": 1}`), &decoded); err != nil {
		t.Fatalf("unmarshal map keyed by RoomID: %v", err)
	}
	if decoded[MustParseRoomID("!abc:example.org")] != 1 {
		t.Errorf("missing expected key: %v", decoded)
	}
}

func TestParseUserID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		id, err := ParseUserID("@alice:example.org")
		if err != nil {
			t.Fatalf("ParseUserID failed: %v", err)
		}
		if id.Localpart() != "alice" {
			t.Errorf("unexpected localpart: %q", id.Localpart())
		}
	})

	invalid := []string{"", "alice:example.org", "@alice", "@:example.org", "@alice:"}
	for _, raw := range invalid {
		if _, err := ParseUserID(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestParseEventID(t *testing.T) {
	if _, err := ParseEventID("$abc123"); err != nil {
		t.Fatalf("ParseEventID failed: %v", err)
	}
	for _, raw := range []string{"", "$", "abc123"} {
		if _, err := ParseEventID(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestUnmarshalEmptyIsZero(t *testing.T) {
	var u UserID
	if err := u.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil): %v", err)
	}
	if !u.IsZero() {
		t.Error("expected zero value from empty input")
	}
}
