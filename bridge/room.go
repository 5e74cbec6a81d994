// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"sync"

	"github.com/trailhound/challenger/lib/ref"
)

// Room is the bridge's record of one adopted challenge in one Matrix
// room. The sync loop and the poll scheduler both touch Rooms from
// their own goroutines; every accessor takes the Room's mutex, and no
// Room method performs network I/O or blocks.
//
// A Room whose challenge URL is empty is unadopted (or deleted) and is
// skipped by the scheduler.
type Room struct {
	roomID ref.RoomID

	mu sync.Mutex

	// stateKey and challengeURL form the adoption identity. The state
	// key equals the challenge URL of the adoption event that created
	// this record.
	stateKey     string
	challengeURL string

	// processedActivityIDs is grow-only. An ID present here is never
	// notified again, even across state updates.
	processedActivityIDs map[string]struct{}

	// Cached challenge target. Zero means not yet fetched.
	targetDistance float64
	targetDuration float64

	// Last observed team totals. Kept monotone: a reported decrease is
	// tolerated but not cached, so milestones fire once per crossing.
	totalDistance float64
	totalDuration float64
}

// NewRoom creates a Room record for the given adoption.
func NewRoom(roomID ref.RoomID, stateKey, challengeURL string) *Room {
	return &Room{
		roomID:               roomID,
		stateKey:             stateKey,
		challengeURL:         challengeURL,
		processedActivityIDs: make(map[string]struct{}),
	}
}

// RoomID returns the Matrix room this record belongs to.
func (r *Room) RoomID() ref.RoomID { return r.roomID }

// StateKey returns the state key of the adoption event.
func (r *Room) StateKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateKey
}

// ChallengeURL returns the adopted challenge URL, or "" if the room is
// unadopted.
func (r *Room) ChallengeURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.challengeURL
}

// Adopted reports whether the room currently tracks a challenge.
func (r *Room) Adopted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.challengeURL != ""
}

// UpdateState replaces the adoption identity atomically. An empty URL
// marks the adoption deleted; the record stays in the room list but
// the scheduler skips it. The dedup set survives updates.
func (r *Room) UpdateState(stateKey, challengeURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateKey = stateKey
	r.challengeURL = challengeURL
	if challengeURL == "" {
		// Deleted adoptions drop their cached target so a later
		// re-adoption fetches fresh.
		r.targetDistance = 0
		r.targetDuration = 0
		r.totalDistance = 0
		r.totalDuration = 0
	}
}

// MarkProcessed adds an activity ID to the dedup set. Returns false if
// the ID was already present.
func (r *Room) MarkProcessed(activityID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.processedActivityIDs[activityID]; seen {
		return false
	}
	r.processedActivityIDs[activityID] = struct{}{}
	return true
}

// HasProcessed reports whether an activity ID is in the dedup set.
func (r *Room) HasProcessed(activityID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, seen := r.processedActivityIDs[activityID]
	return seen
}

// ProcessedCount returns the size of the dedup set.
func (r *Room) ProcessedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processedActivityIDs)
}

// SeedProcessed adds a batch of activity IDs without treating them as
// new. Used when first observing a challenge and when backfilling from
// message history at startup.
func (r *Room) SeedProcessed(activityIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range activityIDs {
		r.processedActivityIDs[id] = struct{}{}
	}
}

// Target returns the cached challenge target (distance meters,
// duration seconds). Zero values mean not yet fetched.
func (r *Room) Target() (distance, duration float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.targetDistance, r.targetDuration
}

// SetTarget caches the challenge target.
func (r *Room) SetTarget(distance, duration float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targetDistance = distance
	r.targetDuration = duration
}

// Totals returns the last cached team totals.
func (r *Room) Totals() (distance, duration float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalDistance, r.totalDuration
}

// SetTotals caches new team totals. Values lower than the cached ones
// are ignored, keeping the cache monotone.
func (r *Room) SetTotals(distance, duration float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if distance > r.totalDistance {
		r.totalDistance = distance
	}
	if duration > r.totalDuration {
		r.totalDuration = duration
	}
}
