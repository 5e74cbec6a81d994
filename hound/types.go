// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package hound

// Challenge describes a challenge as reported by the tracker service.
// Distance is in meters, duration in seconds. A challenge may target
// either or both; a zero value means no target of that kind.
type Challenge struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name,omitempty"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// HasDistanceTarget reports whether the challenge has a distance goal.
func (c Challenge) HasDistanceTarget() bool { return c.Distance > 0 }

// HasDurationTarget reports whether the challenge has a duration goal.
func (c Challenge) HasDurationTarget() bool { return c.Duration > 0 }

// User identifies the participant who recorded an activity.
type User struct {
	ID        string `json:"id"`
	FullName  string `json:"fullname"`
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
}

// Activity is a single recorded activity within a challenge. Distance
// is in meters, duration in seconds, elevation in meters.
type Activity struct {
	ID           string  `json:"id"`
	Distance     float64 `json:"distance"`
	Duration     float64 `json:"duration"`
	Elevation    float64 `json:"elevation"`
	CreatedAt    string  `json:"createdAt"`
	ActivityType string  `json:"activityType"`
	ActivityName string  `json:"activityName"`
	User         User    `json:"user"`
}

// LeaderboardEntry is one row of a challenge leaderboard, a user with
// their accumulated totals.
type LeaderboardEntry struct {
	User      User    `json:"user"`
	Distance  float64 `json:"distance"`
	Duration  float64 `json:"duration"`
	Elevation float64 `json:"elevation"`
}
