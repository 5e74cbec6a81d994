// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/trailhound/challenger/lib/ref"
	"github.com/trailhound/challenger/messaging"
)

// startupRetryInterval is the fixed backoff for the startup calls that
// must succeed before the bridge can operate. These retry forever; a
// homeserver that is down at boot just delays startup.
const startupRetryInterval = 5 * time.Second

// backfillMessageLimit bounds how much history is read per room to
// rebuild the dedup set after a restart.
const backfillMessageLimit = 50

// Bootstrap rebuilds the bridge's in-memory state from the homeserver:
// joined rooms, their adoption records, dedup backfill from recent
// messages, and the control room's member list and config record.
// Returns only when complete or when ctx is cancelled.
func (b *Bridge) Bootstrap(ctx context.Context) error {
	joinedRooms, err := b.joinedRoomsRetry(ctx)
	if err != nil {
		return err
	}

	for _, roomID := range joinedRooms {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// One unreadable room must not block the rest; its adoptions
		// resurface on the next state event or restart.
		if err := b.loadRoom(ctx, roomID); err != nil {
			b.logger.Error("failed to load room state",
				"room_id", roomID,
				"error", err)
		}
	}

	return b.loadControlRoomRetry(ctx)
}

// joinedRoomsRetry fetches the joined-room list, retrying forever on
// failure.
func (b *Bridge) joinedRoomsRetry(ctx context.Context) ([]ref.RoomID, error) {
	for {
		rooms, err := b.session.JoinedRooms(ctx)
		if err == nil {
			return rooms, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		b.logger.Error("failed to list joined rooms, retrying",
			"error", err,
			"retry_in", startupRetryInterval)
		if err := b.sleepRetry(ctx); err != nil {
			return nil, err
		}
	}
}

// loadRoom reads one room's state, registers its adoptions, and seeds
// each adoption's dedup set from recent message history.
func (b *Bridge) loadRoom(ctx context.Context, roomID ref.RoomID) error {
	events, err := b.session.GetRoomState(ctx, roomID)
	if err != nil {
		return err
	}

	var adopted []*Room
	for _, event := range events {
		if event.Type != EventTypeChallenge || event.StateKey == nil || *event.StateKey == "" {
			continue
		}
		url, _ := event.Content["url"].(string)
		if url == "" {
			continue
		}
		room := b.addRoom(NewRoom(roomID, *event.StateKey, url))
		adopted = append(adopted, room)
		b.logger.Info("restored challenge adoption",
			"room_id", roomID,
			"challenge_url", url)
	}

	if len(adopted) == 0 {
		return nil
	}

	activityIDs, err := b.backfillActivityIDs(ctx, roomID)
	if err != nil {
		// Backfill failure degrades to re-seeding on the first poll.
		// The empty-set seeding rule prevents a notice flood either
		// way.
		b.logger.Error("failed to backfill activity history",
			"room_id", roomID,
			"error", err)
		return nil
	}
	for _, room := range adopted {
		room.SeedProcessed(activityIDs)
	}
	b.logger.Info("backfilled activity history",
		"room_id", roomID,
		"count", len(activityIDs))
	return nil
}

// backfillActivityIDs reads the room's recent messages newest-first
// and collects the activity IDs from notices the bridge itself sent
// before the restart.
func (b *Bridge) backfillActivityIDs(ctx context.Context, roomID ref.RoomID) ([]string, error) {
	response, err := b.session.RoomMessages(ctx, roomID, messaging.RoomMessagesOptions{
		Direction: "b",
		Limit:     backfillMessageLimit,
	})
	if err != nil {
		return nil, err
	}

	var activityIDs []string
	for _, event := range response.Chunk {
		if event.Type != EventTypeRoomMessage {
			continue
		}
		if id, ok := event.Content[ActivityIDField].(string); ok && id != "" {
			activityIDs = append(activityIDs, id)
		}
	}
	return activityIDs, nil
}

// loadControlRoomRetry joins the control room, loads its member list,
// and reads the global config record, retrying each step forever. The
// bridge stays unready for invites until the config record exists.
func (b *Bridge) loadControlRoomRetry(ctx context.Context) error {
	controlRoom := b.config.ControlRoom

	for {
		if _, err := b.session.JoinRoom(ctx, controlRoom); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Error("failed to join control room, retrying",
				"room_id", controlRoom,
				"error", err,
				"retry_in", startupRetryInterval)
			if err := b.sleepRetry(ctx); err != nil {
				return err
			}
			continue
		}
		break
	}

	for {
		members, err := b.session.GetRoomMembers(ctx, controlRoom)
		if err == nil {
			joined := make([]ref.UserID, 0, len(members))
			for _, member := range members {
				if member.Membership == "join" {
					joined = append(joined, member.UserID)
				}
			}
			b.admin.SetMembers(joined)
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Error("failed to fetch control room members, retrying",
			"room_id", controlRoom,
			"error", err,
			"retry_in", startupRetryInterval)
		if err := b.sleepRetry(ctx); err != nil {
			return err
		}
	}

	for {
		raw, err := b.session.GetStateEvent(ctx, controlRoom, EventTypeChallengeConfig, "")
		if err == nil {
			var content GlobalConfigContent
			if err := json.Unmarshal(raw, &content); err != nil {
				b.logger.Error("invalid global config record",
					"room_id", controlRoom,
					"error", err)
			}
			b.admin.SetConfig(content)
			b.logger.Info("loaded global config",
				"admin_users", len(content.AdminUsers))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Warn("global config record not available, retrying",
			"room_id", controlRoom,
			"error", err,
			"retry_in", startupRetryInterval)
		if err := b.sleepRetry(ctx); err != nil {
			return err
		}
	}
}

func (b *Bridge) sleepRetry(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.clock.After(startupRetryInterval):
		return nil
	}
}
