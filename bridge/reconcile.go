// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"math"

	"github.com/trailhound/challenger/hound"
	"github.com/trailhound/challenger/observe"
)

// Reconcile compares one poll's tracker data against a Room's cached
// state: announces activities not yet in the dedup set, then checks
// the team's summed distance against the challenge target for a
// crossed 10%-milestone.
//
// Send failures are logged and swallowed — a failed notice must never
// stall the scheduler, and the activity stays marked processed so it
// is not re-announced next cycle.
func (b *Bridge) Reconcile(ctx context.Context, room *Room, activities []hound.Activity, leaders []hound.LeaderboardEntry) {
	b.reconcileActivities(ctx, room, activities)
	b.reconcileMilestone(ctx, room, leaders)
}

func (b *Bridge) reconcileActivities(ctx context.Context, room *Room, activities []hound.Activity) {
	if len(activities) == 0 {
		return
	}

	// First observation of a challenge: everything in the batch
	// predates tracking. Seed the dedup set silently so the room is
	// not flooded with history.
	if room.ProcessedCount() == 0 {
		ids := make([]string, len(activities))
		for index, activity := range activities {
			ids[index] = activity.ID
		}
		room.SeedProcessed(ids)
		b.logger.Info("seeded activity set",
			"room_id", room.RoomID(),
			"count", len(ids))
		return
	}

	for _, activity := range activities {
		// MarkProcessed is add-then-send: if the send fails the ID is
		// already recorded, trading a lost notice for never spamming.
		if !room.MarkProcessed(activity.ID) {
			continue
		}

		content := activityNoticeContent(activity)
		if _, err := b.session.SendEvent(ctx, room.RoomID(), EventTypeRoomMessage, content); err != nil {
			b.logger.Error("failed to send activity notice",
				"room_id", room.RoomID(),
				"activity_id", activity.ID,
				"error", err)
			continue
		}
		observe.RecordNotice("activity")
		b.logger.Info("announced activity",
			"room_id", room.RoomID(),
			"activity_id", activity.ID,
			"activity_type", activity.ActivityType)
	}
}

func (b *Bridge) reconcileMilestone(ctx context.Context, room *Room, leaders []hound.LeaderboardEntry) {
	var newDistance, newDuration float64
	for _, entry := range leaders {
		newDistance += entry.Distance
		newDuration += entry.Duration
	}

	targetDistance, _ := room.Target()
	oldDistance, _ := room.Totals()

	// Duration totals are tracked for future use; no duration
	// milestone notice exists yet.
	defer room.SetTotals(newDistance, newDuration)

	if targetDistance <= 0 || newDistance <= 0 {
		return
	}

	if newDistance < oldDistance {
		// Trackers occasionally report lower sums (activity deleted or
		// recount). Keep the cached total so a milestone never fires
		// twice for the same crossing.
		b.logger.Warn("team total decreased",
			"room_id", room.RoomID(),
			"old_distance", oldDistance,
			"new_distance", newDistance)
		return
	}

	// First observation establishes the baseline without announcing:
	// the team may already be at 40% when tracking starts.
	if oldDistance == 0 {
		return
	}

	oldBucket := int(math.Floor(oldDistance / targetDistance * 10))
	newBucket := int(math.Floor(newDistance / targetDistance * 10))
	if newBucket <= oldBucket {
		return
	}

	percent := int(math.Floor(newDistance / targetDistance * 100))
	body := milestoneNoticeBody(percent, newDistance)
	if _, err := b.session.SendMessage(ctx, room.RoomID(), noticeContent(body)); err != nil {
		b.logger.Error("failed to send milestone notice",
			"room_id", room.RoomID(),
			"percent", percent,
			"error", err)
		return
	}
	observe.RecordNotice("milestone")
	b.logger.Info("announced milestone",
		"room_id", room.RoomID(),
		"percent", percent)
}
