// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"strings"
	"testing"

	"github.com/trailhound/challenger/hound"
	"github.com/trailhound/challenger/lib/ref"
)

func testActivity(id, activityType string, distance float64) hound.Activity {
	return hound.Activity{
		ID:           id,
		Distance:     distance,
		Duration:     1800,
		ActivityType: activityType,
		ActivityName: "Test Activity",
		User: hound.User{
			ID:        "u1",
			FullName:  "Alice Runner",
			FirstName: "Alice",
			LastName:  "Runner",
		},
	}
}

func TestReconcileSeedsOnFirstBatch(t *testing.T) {
	session := &fakeSession{}
	bridge, _ := newTestBridge(session, newFakeTracker())
	roomID := ref.MustParseRoomID("!room:example.org")
	room := NewRoom(roomID, "https://t.example/c/1", "https://t.example/c/1")

	bridge.Reconcile(context.Background(), room, []hound.Activity{
		testActivity("act-1", "run", 5000),
		testActivity("act-2", "ride", 12000),
	}, nil)

	if got := len(session.noticeBodies(roomID)); got != 0 {
		t.Errorf("first batch should seed silently, got %d notices", got)
	}
	if !room.HasProcessed("act-1") || !room.HasProcessed("act-2") {
		t.Error("batch IDs should be in the dedup set")
	}
}

func TestReconcileAnnouncesNewActivities(t *testing.T) {
	session := &fakeSession{}
	bridge, _ := newTestBridge(session, newFakeTracker())
	roomID := ref.MustParseRoomID("!room:example.org")
	room := NewRoom(roomID, "https://t.example/c/1", "https://t.example/c/1")
	room.SeedProcessed([]string{"act-1"})

	batch := []hound.Activity{
		testActivity("act-1", "run", 5000),
		testActivity("act-2", "run", 10000),
	}
	bridge.Reconcile(context.Background(), room, batch, nil)

	bodies := session.noticeBodies(roomID)
	if len(bodies) != 1 {
		t.Fatalf("expected 1 notice, got %d: %v", len(bodies), bodies)
	}
	if !strings.Contains(bodies[0], "Alice") || !strings.Contains(bodies[0], "10.00km") {
		t.Errorf("unexpected notice body: %q", bodies[0])
	}

	// Replaying the same batch produces nothing new.
	bridge.Reconcile(context.Background(), room, batch, nil)
	if got := len(session.noticeBodies(roomID)); got != 1 {
		t.Errorf("replay should be silent, got %d notices", got)
	}
}

func TestReconcileNoticeCarriesActivityID(t *testing.T) {
	session := &fakeSession{}
	bridge, _ := newTestBridge(session, newFakeTracker())
	roomID := ref.MustParseRoomID("!room:example.org")
	room := NewRoom(roomID, "https://t.example/c/1", "https://t.example/c/1")
	room.SeedProcessed([]string{"seed"})

	bridge.Reconcile(context.Background(), room, []hound.Activity{
		testActivity("act-9", "walk", 3000),
	}, nil)

	sends := session.sentTo(roomID)
	if len(sends) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sends))
	}
	content, ok := sends[0].Content.(map[string]any)
	if !ok {
		t.Fatalf("expected map content, got %T", sends[0].Content)
	}
	if content[ActivityIDField] != "act-9" {
		t.Errorf("notice missing activity ID field: %v", content)
	}
}

func TestMilestones(t *testing.T) {
	roomID := ref.MustParseRoomID("!room:example.org")

	// reconcileAt runs one reconcile with the team total set to
	// totalMeters against a 100km target.
	setup := func() (*Bridge, *fakeSession, *Room) {
		session := &fakeSession{}
		bridge, _ := newTestBridge(session, newFakeTracker())
		room := NewRoom(roomID, "https://t.example/c/1", "https://t.example/c/1")
		room.SetTarget(100000, 0)
		room.SeedProcessed([]string{"seed"})
		return bridge, session, room
	}
	leadersAt := func(totalMeters float64) []hound.LeaderboardEntry {
		return []hound.LeaderboardEntry{{Distance: totalMeters}}
	}

	t.Run("crossing a bucket fires once", func(t *testing.T) {
		bridge, session, room := setup()
		bridge.Reconcile(context.Background(), room, nil, leadersAt(95000))
		bridge.Reconcile(context.Background(), room, nil, leadersAt(105000))

		bodies := session.noticeBodies(roomID)
		if len(bodies) != 1 {
			t.Fatalf("expected 1 milestone notice, got %d: %v", len(bodies), bodies)
		}
		if !strings.Contains(bodies[0], "105%") || !strings.Contains(bodies[0], "105.00km") {
			t.Errorf("unexpected milestone body: %q", bodies[0])
		}
	})

	t.Run("same bucket stays silent", func(t *testing.T) {
		bridge, session, room := setup()
		bridge.Reconcile(context.Background(), room, nil, leadersAt(105000))
		bridge.Reconcile(context.Background(), room, nil, leadersAt(109000))

		if got := len(session.noticeBodies(roomID)); got != 0 {
			t.Errorf("expected no notice within a bucket, got %d", got)
		}
	})

	t.Run("multi-bucket jump fires once", func(t *testing.T) {
		bridge, session, room := setup()
		bridge.Reconcile(context.Background(), room, nil, leadersAt(95000))
		bridge.Reconcile(context.Background(), room, nil, leadersAt(215000))

		bodies := session.noticeBodies(roomID)
		if len(bodies) != 1 {
			t.Fatalf("expected 1 notice for multi-bucket jump, got %d", len(bodies))
		}
		if !strings.Contains(bodies[0], "215%") {
			t.Errorf("unexpected milestone body: %q", bodies[0])
		}
	})

	t.Run("first observation is baseline only", func(t *testing.T) {
		bridge, session, room := setup()
		bridge.Reconcile(context.Background(), room, nil, leadersAt(40000))

		if got := len(session.noticeBodies(roomID)); got != 0 {
			t.Errorf("first observation should not announce, got %d notices", got)
		}
		if distance, _ := room.Totals(); distance != 40000 {
			t.Errorf("baseline not cached: %v", distance)
		}
	})

	t.Run("decrease is tolerated and not cached", func(t *testing.T) {
		bridge, session, room := setup()
		bridge.Reconcile(context.Background(), room, nil, leadersAt(95000))
		bridge.Reconcile(context.Background(), room, nil, leadersAt(80000))

		if distance, _ := room.Totals(); distance != 95000 {
			t.Errorf("cache should stay monotone, got %v", distance)
		}

		// Re-crossing the same ground must not re-fire the 90% bucket.
		bridge.Reconcile(context.Background(), room, nil, leadersAt(96000))
		if got := len(session.noticeBodies(roomID)); got != 0 {
			t.Errorf("expected no notice after recovery within bucket, got %d", got)
		}
	})

	t.Run("no target means no milestone", func(t *testing.T) {
		bridge, session, room := setup()
		room.SetTarget(0, 0)
		bridge.Reconcile(context.Background(), room, nil, leadersAt(95000))
		bridge.Reconcile(context.Background(), room, nil, leadersAt(105000))

		if got := len(session.noticeBodies(roomID)); got != 0 {
			t.Errorf("expected no notice without a target, got %d", got)
		}
	})
}

func TestEmojiForActivity(t *testing.T) {
	cases := map[string]string{
		"run":        "🏃",
		"Ride":       "🚴",
		"cycling":    "🚴",
		"virtualrun": "👨‍💻🏃",
		"hike":       "🚶",
		"skateboard": "🛹",
		"swim":       "🕴️",
	}
	for activityType, want := range cases {
		if got := emojiForActivity(activityType); got != want {
			t.Errorf("emojiForActivity(%q) = %q, want %q", activityType, got, want)
		}
	}
}
