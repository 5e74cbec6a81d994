// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"io"
	"log/slog"
	"time"

	"github.com/trailhound/challenger/lib/clock"
	"github.com/trailhound/challenger/lib/ref"
)

var (
	testControlRoom = ref.MustParseRoomID("!control:example.org")
	testBotUser     = ref.MustParseUserID("@challenger:example.org")
	testAdminUser   = ref.MustParseUserID("@admin:example.org")
)

// newTestBridge wires a Bridge around the fakes with a fake clock and
// a discarded logger.
func newTestBridge(session *fakeSession, tracker *fakeTracker) (*Bridge, *clock.FakeClock) {
	session.userID = testBotUser
	fakeClock := clock.Fake(time.Unix(1756600000, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bridge := New(session, tracker, NewAdminSet(), Config{
		ControlRoom:   testControlRoom,
		ActivityLimit: 10,
	}, fakeClock, logger)
	return bridge, fakeClock
}

// stringPtr returns a pointer to s, for event state keys.
func stringPtr(s string) *string { return &s }
