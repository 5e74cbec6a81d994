// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"github.com/trailhound/challenger/lib/ref"
)

// Custom event types persisted in Matrix room state.
const (
	// EventTypeChallenge marks a room as tracking a challenge. The
	// state key is the challenge URL; the content repeats it. An empty
	// url in the content deletes the adoption.
	EventTypeChallenge ref.EventType = "io.trailhound.challenge"

	// EventTypeChallengeConfig holds the global admin configuration.
	// It lives in the control room with an empty state key.
	EventTypeChallengeConfig ref.EventType = "io.trailhound.challenge.config"
)

// Standard Matrix event types the router consumes.
const (
	EventTypeRoomMember  ref.EventType = "m.room.member"
	EventTypeRoomMessage ref.EventType = "m.room.message"
	EventTypeReaction    ref.EventType = "m.reaction"
)

// Reserved content fields attached to activity notices. Restart
// bootstrap reads ActivityIDField from recent messages to rebuild the
// dedup set without re-notifying.
const (
	ActivityIDField        = "io.trailhound.challenge.activity.id"
	ActivityDistanceField  = "io.trailhound.challenge.activity.distance"
	ActivityElevationField = "io.trailhound.challenge.activity.elevation"
	ActivityDurationField  = "io.trailhound.challenge.activity.duration"
	ActivityUserField      = "io.trailhound.challenge.activity.user"
)

// Reaction keys acknowledging adoption commands.
const (
	ReactionSuccess = "✅"
	ReactionFailure = "❌"
)

// AdoptionContent is the content of an EventTypeChallenge state event.
type AdoptionContent struct {
	URL string `json:"url"`
}

// GlobalConfigContent is the content of an EventTypeChallengeConfig
// state event.
type GlobalConfigContent struct {
	AdminUsers []string `json:"adminUsers"`
}

// ActivityUserRef is the value of the reserved .user notice field.
type ActivityUserRef struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}
