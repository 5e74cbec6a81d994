// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge connects Matrix rooms to the activity tracker. It
// owns the per-room records, routes sync events, reconciles tracker
// activity against room state, and schedules polling.
package bridge

import (
	"context"
	"log/slog"
	"regexp"
	"sync"

	"github.com/trailhound/challenger/hound"
	"github.com/trailhound/challenger/lib/clock"
	"github.com/trailhound/challenger/lib/ref"
	"github.com/trailhound/challenger/messaging"
	"github.com/trailhound/challenger/observe"
)

// ChallengeAPI is the tracker capability set the bridge consumes.
// Production code uses *hound.Client; tests substitute a fake.
type ChallengeAPI interface {
	Challenge(ctx context.Context, challengeURL string) (*hound.Challenge, error)
	Activities(ctx context.Context, challengeURL string, limit int) ([]hound.Activity, error)
	Leaders(ctx context.Context, challengeURL string) ([]hound.LeaderboardEntry, error)
}

var _ ChallengeAPI = (*hound.Client)(nil)

// trackCommand matches "challenge track <url>" anywhere in a message
// body, matching how users type the command in-line.
var trackCommand = regexp.MustCompile(`challenge track (\S+)`)

// Config carries the bridge's operating parameters.
type Config struct {
	// ControlRoom is the room whose membership and config record define
	// the permitted user set.
	ControlRoom ref.RoomID

	// ActivityLimit bounds how many recent activities each poll
	// fetches. Zero uses the tracker default.
	ActivityLimit int
}

// Bridge is the core engine. One instance serves the whole process;
// the sync loop and the scheduler share it from separate goroutines.
type Bridge struct {
	session messaging.Session
	tracker ChallengeAPI
	admin   *AdminSet
	config  Config
	clock   clock.Clock
	logger  *slog.Logger

	mu sync.Mutex
	// rooms is keyed by (roomID, stateKey); ordered preserves insertion
	// order for the scheduler's round-robin cursor.
	rooms   map[roomKey]*Room
	ordered []*Room
}

type roomKey struct {
	roomID   ref.RoomID
	stateKey string
}

// New creates a Bridge.
func New(session messaging.Session, tracker ChallengeAPI, admin *AdminSet, config Config, clk clock.Clock, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		session: session,
		tracker: tracker,
		admin:   admin,
		config:  config,
		clock:   clk,
		logger:  logger,
		rooms:   make(map[roomKey]*Room),
	}
}

// Admin returns the bridge's permitted-user set.
func (b *Bridge) Admin() *AdminSet { return b.admin }

// roomFor returns the Room for (roomID, stateKey), or nil.
func (b *Bridge) roomFor(roomID ref.RoomID, stateKey string) *Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rooms[roomKey{roomID: roomID, stateKey: stateKey}]
}

// roomsIn returns all Rooms belonging to a Matrix room.
func (b *Bridge) roomsIn(roomID ref.RoomID) []*Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []*Room
	for _, room := range b.ordered {
		if room.RoomID() == roomID {
			matched = append(matched, room)
		}
	}
	return matched
}

// addRoom registers a new Room. If a record with the same identity
// already exists, the existing record is returned and no new one is
// added.
func (b *Bridge) addRoom(room *Room) *Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := roomKey{roomID: room.RoomID(), stateKey: room.StateKey()}
	if existing, ok := b.rooms[key]; ok {
		return existing
	}
	b.rooms[key] = room
	b.ordered = append(b.ordered, room)
	observe.SetRoomsTracked(len(b.ordered))
	return room
}

// Rooms returns a snapshot of the ordered room list. The slice is a
// copy; the Rooms themselves are shared and internally locked.
func (b *Bridge) Rooms() []*Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := make([]*Room, len(b.ordered))
	copy(snapshot, b.ordered)
	return snapshot
}

// RoomCount returns the number of registered room records.
func (b *Bridge) RoomCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ordered)
}
