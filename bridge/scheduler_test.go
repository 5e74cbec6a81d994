// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/trailhound/challenger/hound"
	"github.com/trailhound/challenger/lib/ref"
	"github.com/trailhound/challenger/lib/testutil"
)

// addTrackedRoom registers a room with a cached target so polls skip
// the target fetch.
func addTrackedRoom(bridge *Bridge, index int) *Room {
	roomID := ref.MustParseRoomID(fmt.Sprintf("!room%d:example.org", index))
	url := fmt.Sprintf("https://t.example/c/%d", index)
	room := bridge.addRoom(NewRoom(roomID, url, url))
	room.SetTarget(100000, 0)
	return room
}

func TestSchedulerFairness(t *testing.T) {
	session := &fakeSession{}
	tracker := newFakeTracker()
	bridge, _ := newTestBridge(session, tracker)
	for index := 0; index < 3; index++ {
		addTrackedRoom(bridge, index)
	}

	scheduler := NewScheduler(bridge, 30*time.Second)
	for tick := 0; tick < 4; tick++ {
		scheduler.Tick(context.Background())
	}

	want := []string{
		"https://t.example/c/0",
		"https://t.example/c/1",
		"https://t.example/c/2",
		"https://t.example/c/0", // wrapped, no lost cycle
	}
	got := tracker.polledURLs()
	if len(got) != len(want) {
		t.Fatalf("expected %d polls, got %d: %v", len(want), len(got), got)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Errorf("poll %d: got %s, want %s", index, got[index], want[index])
		}
	}
}

func TestSchedulerSkipsUnadopted(t *testing.T) {
	session := &fakeSession{}
	tracker := newFakeTracker()
	bridge, _ := newTestBridge(session, tracker)
	addTrackedRoom(bridge, 0)
	middle := addTrackedRoom(bridge, 1)
	addTrackedRoom(bridge, 2)
	middle.UpdateState(middle.StateKey(), "") // deleted adoption

	scheduler := NewScheduler(bridge, 30*time.Second)
	for tick := 0; tick < 3; tick++ {
		scheduler.Tick(context.Background())
	}

	got := tracker.polledURLs()
	want := []string{"https://t.example/c/0", "https://t.example/c/2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected unadopted room skipped, got %v", got)
	}
}

func TestSchedulerEmptyListIsNoop(t *testing.T) {
	session := &fakeSession{}
	tracker := newFakeTracker()
	bridge, _ := newTestBridge(session, tracker)

	scheduler := NewScheduler(bridge, 30*time.Second)
	scheduler.Tick(context.Background())

	if got := len(tracker.polledURLs()); got != 0 {
		t.Errorf("expected no polls with no rooms, got %d", got)
	}
}

func TestSchedulerFaultIsolation(t *testing.T) {
	session := &fakeSession{}
	tracker := newFakeTracker()
	bridge, _ := newTestBridge(session, tracker)
	for index := 0; index < 3; index++ {
		room := addTrackedRoom(bridge, index)
		room.SeedProcessed([]string{"seed"})
	}
	tracker.errs["https://t.example/c/1"] = errors.New("tracker down")
	tracker.activities["https://t.example/c/2"] = []hound.Activity{
		testActivity("act-new", "run", 5000),
	}

	scheduler := NewScheduler(bridge, 30*time.Second)
	for tick := 0; tick < 3; tick++ {
		scheduler.Tick(context.Background())
	}

	// The failing room was attempted; its neighbors completed.
	if got := len(tracker.polledURLs()); got != 3 {
		t.Fatalf("expected 3 poll attempts, got %d", got)
	}
	roomID := ref.MustParseRoomID("!room2:example.org")
	if got := len(session.noticeBodies(roomID)); got != 1 {
		t.Errorf("room after the failure should still announce, got %d notices", got)
	}
}

func TestSchedulerRunPollsOnTicks(t *testing.T) {
	session := &fakeSession{}
	tracker := newFakeTracker()
	tracker.notify = make(chan string, 16)
	bridge, fakeClock := newTestBridge(session, tracker)
	addTrackedRoom(bridge, 0)
	addTrackedRoom(bridge, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	scheduler := NewScheduler(bridge, 30*time.Second)
	go func() {
		defer close(done)
		scheduler.Run(ctx)
	}()

	// Run's initial pass covers every room before the first tick.
	testutil.RequireReceive(t, tracker.notify, time.Second, "initial pass room 0")
	testutil.RequireReceive(t, tracker.notify, time.Second, "initial pass room 1")

	// The ticker is registered once the initial pass completes.
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(30 * time.Second)
	if got := testutil.RequireReceive(t, tracker.notify, time.Second, "first tick"); got != "https://t.example/c/0" {
		t.Errorf("first tick polled %s, want room 0", got)
	}

	cancel()
	<-done
}
