// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/trailhound/challenger/hound"
	"github.com/trailhound/challenger/lib/ref"
	"github.com/trailhound/challenger/messaging"
	"github.com/trailhound/challenger/observe"
)

// staleThreshold flags events that arrive long after they were sent,
// usually a sign the bridge is catching up after downtime. Stale
// events are logged but still processed.
const staleThreshold = 15 * time.Second

// HandleSync routes one /sync response: invites first, then state and
// timeline events per joined room. It is the handler passed to
// messaging.RunSyncLoop.
func (b *Bridge) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	for roomID, invited := range response.Rooms.Invite {
		b.handleInvite(ctx, roomID, invited)
	}

	for roomID, joined := range response.Rooms.Join {
		for _, event := range joined.State.Events {
			b.routeEvent(ctx, roomID, event)
		}
		for _, event := range joined.Timeline.Events {
			b.routeEvent(ctx, roomID, event)
		}
	}
}

// handleInvite accepts invites from permitted users and declines the
// rest. Invites that arrive before the admin config is loaded are
// dropped; the inviter can re-invite once the bridge is ready.
func (b *Bridge) handleInvite(ctx context.Context, roomID ref.RoomID, invited messaging.InvitedRoom) {
	inviter := b.inviteSender(invited)

	if !b.admin.Ready() {
		b.logger.Warn("ignoring invite before admin config is loaded",
			"room_id", roomID,
			"inviter", inviter)
		return
	}

	if inviter.IsZero() || !b.admin.Permitted(inviter) {
		b.logger.Warn("declining invite from non-permitted user",
			"room_id", roomID,
			"inviter", inviter)
		if err := b.session.LeaveRoom(ctx, roomID); err != nil {
			b.logger.Error("failed to decline invite",
				"room_id", roomID,
				"error", err)
		}
		return
	}

	if _, err := b.session.JoinRoom(ctx, roomID); err != nil {
		b.logger.Error("failed to join room",
			"room_id", roomID,
			"error", err)
		return
	}
	b.logger.Info("joined room", "room_id", roomID, "inviter", inviter)

	// Fresh rooms get usage instructions; rooms with an adoption are
	// already set up (e.g. re-invite after a kick).
	if !b.hasAdoption(roomID) {
		if _, err := b.session.SendMessage(ctx, roomID, noticeContent(welcomeNotice)); err != nil {
			b.logger.Error("failed to send welcome notice",
				"room_id", roomID,
				"error", err)
			return
		}
		observe.RecordNotice("welcome")
	}
}

// inviteSender extracts the inviting user from the invite's stripped
// state: the m.room.member event whose state key is our own user ID.
func (b *Bridge) inviteSender(invited messaging.InvitedRoom) ref.UserID {
	ownID := b.session.UserID().String()
	for _, event := range invited.InviteState.Events {
		if event.Type != EventTypeRoomMember || event.StateKey == nil {
			continue
		}
		if *event.StateKey != ownID {
			continue
		}
		if membership, _ := event.Content["membership"].(string); membership == "invite" {
			return event.Sender
		}
	}
	return ref.UserID{}
}

func (b *Bridge) hasAdoption(roomID ref.RoomID) bool {
	for _, room := range b.roomsIn(roomID) {
		if room.Adopted() {
			return true
		}
	}
	return false
}

// routeEvent dispatches a single event from a joined room.
func (b *Bridge) routeEvent(ctx context.Context, roomID ref.RoomID, event messaging.Event) {
	switch event.Type {
	case EventTypeRoomMember:
		b.handleMembership(roomID, event)
	case EventTypeChallenge:
		b.handleAdoptionState(ctx, roomID, event)
	case EventTypeChallengeConfig:
		b.handleConfigState(roomID, event)
	case EventTypeRoomMessage:
		b.handleMessage(ctx, roomID, event)
	}
}

// handleMembership updates the permitted set from control-room
// membership changes. Membership in other rooms has no effect.
func (b *Bridge) handleMembership(roomID ref.RoomID, event messaging.Event) {
	if roomID != b.config.ControlRoom || event.StateKey == nil {
		return
	}
	userID, err := ref.ParseUserID(*event.StateKey)
	if err != nil {
		return
	}
	membership, _ := event.Content["membership"].(string)
	switch membership {
	case "join":
		b.admin.AddMember(userID)
		b.logger.Info("admin member joined", "user_id", userID)
	case "leave", "ban":
		b.admin.RemoveMember(userID)
		b.logger.Info("admin member removed", "user_id", userID, "membership", membership)
	}
}

// handleAdoptionState reacts to a reflected challenge state event:
// this is the only place local Room records are created from live
// traffic, so local state never outruns the homeserver's.
func (b *Bridge) handleAdoptionState(ctx context.Context, roomID ref.RoomID, event messaging.Event) {
	if event.StateKey == nil || *event.StateKey == "" {
		return
	}
	stateKey := *event.StateKey

	var content AdoptionContent
	if raw, ok := event.Content["url"].(string); ok {
		content.URL = raw
	}

	if existing := b.roomFor(roomID, stateKey); existing != nil {
		existing.UpdateState(stateKey, content.URL)
		b.logger.Info("updated challenge adoption",
			"room_id", roomID,
			"state_key", stateKey,
			"challenge_url", content.URL)
		return
	}

	// An empty URL is a deletion; with no local record there is
	// nothing to delete.
	if content.URL == "" {
		return
	}

	room := b.addRoom(NewRoom(roomID, stateKey, content.URL))
	b.logger.Info("adopted challenge",
		"room_id", roomID,
		"challenge_url", content.URL)

	body := fmt.Sprintf(trackingNoticeFormat, room.ChallengeURL())
	if _, err := b.session.SendMessage(ctx, roomID, noticeContent(body)); err != nil {
		b.logger.Error("failed to send tracking notice",
			"room_id", roomID,
			"error", err)
		return
	}
	observe.RecordNotice("tracking")
}

// handleConfigState replaces the admin config from a control-room
// config event with the empty state key.
func (b *Bridge) handleConfigState(roomID ref.RoomID, event messaging.Event) {
	if roomID != b.config.ControlRoom || event.StateKey == nil || *event.StateKey != "" {
		return
	}

	var content GlobalConfigContent
	if raw, ok := event.Content["adminUsers"].([]any); ok {
		for _, entry := range raw {
			if user, ok := entry.(string); ok {
				content.AdminUsers = append(content.AdminUsers, user)
			}
		}
	}
	b.admin.SetConfig(content)
	b.logger.Info("replaced admin config", "admin_users", len(content.AdminUsers))
}

// handleMessage processes room messages, primarily the
// "challenge track <url>" command.
func (b *Bridge) handleMessage(ctx context.Context, roomID ref.RoomID, event messaging.Event) {
	if event.Sender == b.session.UserID() {
		return
	}
	body, _ := event.Content["body"].(string)
	if body == "" {
		return
	}

	if event.Unsigned != nil && event.Unsigned.Age > staleThreshold.Milliseconds() {
		b.logger.Warn("processing stale event",
			"room_id", roomID,
			"event_id", event.EventID,
			"age_ms", event.Unsigned.Age)
	}

	match := trackCommand.FindStringSubmatch(body)
	if match == nil {
		// Ordinary chatter. Room records may grow message hooks later;
		// today this only logs.
		if len(b.roomsIn(roomID)) > 0 {
			b.logger.Debug("room message",
				"room_id", roomID,
				"sender", event.Sender)
		}
		return
	}
	b.handleTrackCommand(ctx, roomID, event, match[1])
}

// handleTrackCommand writes the adoption state event for a track
// command. The local Room record is NOT created here — it is created
// when the homeserver reflects the state event back through /sync, so
// a rejected write leaves no phantom record.
func (b *Bridge) handleTrackCommand(ctx context.Context, roomID ref.RoomID, event messaging.Event, rawURL string) {
	challengeURL, err := hound.ValidateURL(rawURL)
	if err != nil {
		b.logger.Warn("rejecting track command with invalid URL",
			"room_id", roomID,
			"sender", event.Sender,
			"error", err)
		b.react(ctx, roomID, event.EventID, ReactionFailure)
		return
	}

	// Repeat commands for an already-tracked challenge are silent
	// no-ops.
	if room := b.roomFor(roomID, challengeURL); room != nil && room.Adopted() {
		b.logger.Info("challenge already tracked",
			"room_id", roomID,
			"challenge_url", challengeURL)
		return
	}

	_, err = b.session.SendStateEvent(ctx, roomID, EventTypeChallenge, challengeURL, AdoptionContent{URL: challengeURL})
	if err != nil {
		b.logger.Error("failed to write adoption state event",
			"room_id", roomID,
			"challenge_url", challengeURL,
			"error", err)
		if messaging.IsMatrixError(err, messaging.ErrCodeForbidden) {
			if _, sendErr := b.session.SendMessage(ctx, roomID, noticeContent(permissionNotice)); sendErr != nil {
				b.logger.Error("failed to send permission notice",
					"room_id", roomID,
					"error", sendErr)
			}
		}
		b.react(ctx, roomID, event.EventID, ReactionFailure)
		return
	}

	b.react(ctx, roomID, event.EventID, ReactionSuccess)
}

// react sends an annotation acknowledging a command event. Reaction
// failures are logged only; the command outcome stands without them.
func (b *Bridge) react(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, key string) {
	if eventID.IsZero() {
		return
	}
	if _, err := b.session.SendEvent(ctx, roomID, EventTypeReaction, messaging.NewReaction(eventID, key)); err != nil {
		b.logger.Error("failed to send reaction",
			"room_id", roomID,
			"event_id", eventID,
			"key", key,
			"error", err)
	}
}
