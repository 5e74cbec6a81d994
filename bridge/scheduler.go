// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/trailhound/challenger/observe"
)

// Scheduler polls adopted challenges round-robin, one room per tick.
// A single goroutine runs it; rooms are never polled concurrently, so
// one slow tracker response delays but never overlaps the next poll.
type Scheduler struct {
	bridge   *Bridge
	interval time.Duration

	// cursor indexes into the bridge's ordered room list. It can point
	// past the end when rooms were present last tick; the next tick
	// wraps it to 0 and polls immediately so no cycle is lost.
	cursor int
}

// NewScheduler creates a Scheduler polling at the given interval.
func NewScheduler(bridge *Bridge, interval time.Duration) *Scheduler {
	return &Scheduler{
		bridge:   bridge,
		interval: interval,
	}
}

// Run polls until ctx is cancelled. Before the ticker starts, every
// known room is polled once so a restart converges without waiting a
// full rotation.
func (s *Scheduler) Run(ctx context.Context) {
	for _, room := range s.bridge.Rooms() {
		if ctx.Err() != nil {
			return
		}
		s.pollRoom(ctx, room)
	}

	ticker := s.bridge.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick polls the room under the cursor and advances it. Exported for
// deterministic tests; Run is the production entry point.
func (s *Scheduler) Tick(ctx context.Context) {
	rooms := s.bridge.Rooms()
	if len(rooms) == 0 {
		return
	}

	if s.cursor >= len(rooms) {
		s.cursor = 0
	}
	room := rooms[s.cursor]
	s.cursor++

	if !room.Adopted() {
		return
	}
	s.pollRoom(ctx, room)
}

// pollRoom fetches target, activities, and leaderboard for one room
// and reconciles. Every failure is logged and isolated — the next
// tick moves on to the next room regardless.
func (s *Scheduler) pollRoom(ctx context.Context, room *Room) {
	if !room.Adopted() {
		return
	}
	if err := s.bridge.pollRoom(ctx, room); err != nil {
		observe.RecordPoll("error")
		s.bridge.logger.Error("poll failed",
			"room_id", room.RoomID(),
			"challenge_url", room.ChallengeURL(),
			"error", err)
		return
	}
	observe.RecordPoll("ok")
}

// pollRoom performs the network half of a poll cycle for one room.
func (b *Bridge) pollRoom(ctx context.Context, room *Room) error {
	challengeURL := room.ChallengeURL()

	// The target changes rarely; fetch it once and cache it on the
	// room record.
	if distance, duration := room.Target(); distance == 0 && duration == 0 {
		challenge, err := b.tracker.Challenge(ctx, challengeURL)
		if err != nil {
			return fmt.Errorf("fetching challenge target: %w", err)
		}
		room.SetTarget(challenge.Distance, challenge.Duration)
	}

	activities, err := b.tracker.Activities(ctx, challengeURL, b.config.ActivityLimit)
	if err != nil {
		return fmt.Errorf("fetching activities: %w", err)
	}

	leaders, err := b.tracker.Leaders(ctx, challengeURL)
	if err != nil {
		return fmt.Errorf("fetching leaderboard: %w", err)
	}

	b.Reconcile(ctx, room, activities, leaders)
	return nil
}
