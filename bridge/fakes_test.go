// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/trailhound/challenger/hound"
	"github.com/trailhound/challenger/lib/ref"
	"github.com/trailhound/challenger/messaging"
)

// fakeSend records one outbound event for assertions.
type fakeSend struct {
	RoomID    ref.RoomID
	EventType ref.EventType
	StateKey  string
	IsState   bool
	Content   any
}

// fakeSession is an in-memory messaging.Session. Zero value is usable;
// populate the fields a test needs.
type fakeSession struct {
	mu sync.Mutex

	userID ref.UserID

	// Canned responses.
	joinedRooms  []ref.RoomID
	joinedErrs   []error // consumed first, one per JoinedRooms call
	roomState    map[ref.RoomID][]messaging.Event
	roomStateErr map[ref.RoomID]error
	members      []messaging.RoomMember
	memberErrs   []error
	stateEvent   json.RawMessage
	stateErrs    []error // consumed by GetStateEvent
	messages     map[ref.RoomID]*messaging.RoomMessagesResponse
	messagesErr  map[ref.RoomID]error
	sendStateErr error
	joinErr      error

	// Recorded calls.
	sends     []fakeSend
	leftRooms []ref.RoomID
	joinCalls []ref.RoomID

	eventCounter int
}

var _ messaging.Session = (*fakeSession)(nil)

func (f *fakeSession) UserID() ref.UserID { return f.userID }
func (f *fakeSession) Close() error       { return nil }

func (f *fakeSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	return f.userID, nil
}

func (f *fakeSession) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinCalls = append(f.joinCalls, roomID)
	if f.joinErr != nil {
		return ref.RoomID{}, f.joinErr
	}
	return roomID, nil
}

func (f *fakeSession) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leftRooms = append(f.leftRooms, roomID)
	return nil
}

func (f *fakeSession) JoinedRooms(ctx context.Context) ([]ref.RoomID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.joinedErrs) > 0 {
		err := f.joinedErrs[0]
		f.joinedErrs = f.joinedErrs[1:]
		return nil, err
	}
	return f.joinedRooms, nil
}

func (f *fakeSession) GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]messaging.RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.memberErrs) > 0 {
		err := f.memberErrs[0]
		f.memberErrs = f.memberErrs[1:]
		return nil, err
	}
	return f.members, nil
}

func (f *fakeSession) GetRoomState(ctx context.Context, roomID ref.RoomID) ([]messaging.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.roomStateErr[roomID]; err != nil {
		return nil, err
	}
	return f.roomState[roomID], nil
}

func (f *fakeSession) GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.stateErrs) > 0 {
		err := f.stateErrs[0]
		f.stateErrs = f.stateErrs[1:]
		return nil, err
	}
	return f.stateEvent, nil
}

func (f *fakeSession) SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) (ref.EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendStateErr != nil {
		return ref.EventID{}, f.sendStateErr
	}
	f.sends = append(f.sends, fakeSend{
		RoomID:    roomID,
		EventType: eventType,
		StateKey:  stateKey,
		IsState:   true,
		Content:   content,
	})
	return f.nextEventIDLocked(), nil
}

func (f *fakeSession) SendEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, content any) (ref.EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, fakeSend{
		RoomID:    roomID,
		EventType: eventType,
		Content:   content,
	})
	return f.nextEventIDLocked(), nil
}

func (f *fakeSession) SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error) {
	return f.SendEvent(ctx, roomID, EventTypeRoomMessage, content)
}

func (f *fakeSession) RoomMessages(ctx context.Context, roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.messagesErr[roomID]; err != nil {
		return nil, err
	}
	if response := f.messages[roomID]; response != nil {
		return response, nil
	}
	return &messaging.RoomMessagesResponse{}, nil
}

func (f *fakeSession) Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error) {
	return &messaging.SyncResponse{}, nil
}

func (f *fakeSession) nextEventIDLocked() ref.EventID {
	f.eventCounter++
	return ref.MustParseEventID(fmt.Sprintf("$fake-%d", f.eventCounter))
}

// sentTo returns the recorded sends for one room.
func (f *fakeSession) sentTo(roomID ref.RoomID) []fakeSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []fakeSend
	for _, send := range f.sends {
		if send.RoomID == roomID {
			matched = append(matched, send)
		}
	}
	return matched
}

// noticeBodies returns the plain bodies of recorded m.room.message
// sends to one room.
func (f *fakeSession) noticeBodies(roomID ref.RoomID) []string {
	var bodies []string
	for _, send := range f.sentTo(roomID) {
		if send.EventType != EventTypeRoomMessage {
			continue
		}
		switch content := send.Content.(type) {
		case messaging.MessageContent:
			bodies = append(bodies, content.Body)
		case map[string]any:
			if body, ok := content["body"].(string); ok {
				bodies = append(bodies, body)
			}
		}
	}
	return bodies
}

// reactions returns the recorded reaction keys sent to one room.
func (f *fakeSession) reactions(roomID ref.RoomID) []string {
	var keys []string
	for _, send := range f.sentTo(roomID) {
		if send.EventType != EventTypeReaction {
			continue
		}
		if content, ok := send.Content.(messaging.ReactionContent); ok {
			keys = append(keys, content.RelatesTo.Key)
		}
	}
	return keys
}

// fakeTracker is an in-memory ChallengeAPI keyed by challenge URL.
type fakeTracker struct {
	mu sync.Mutex

	challenges map[string]*hound.Challenge
	activities map[string][]hound.Activity
	leaders    map[string][]hound.LeaderboardEntry
	errs       map[string]error // any endpoint for this URL fails

	polled []string // challenge URLs in Activities call order

	// notify, when non-nil, receives each polled URL. Buffered so
	// sends never block the scheduler goroutine.
	notify chan string
}

var _ ChallengeAPI = (*fakeTracker)(nil)

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		challenges: make(map[string]*hound.Challenge),
		activities: make(map[string][]hound.Activity),
		leaders:    make(map[string][]hound.LeaderboardEntry),
		errs:       make(map[string]error),
	}
}

func (f *fakeTracker) Challenge(ctx context.Context, challengeURL string) (*hound.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[challengeURL]; err != nil {
		return nil, err
	}
	if challenge := f.challenges[challengeURL]; challenge != nil {
		return challenge, nil
	}
	return &hound.Challenge{}, nil
}

func (f *fakeTracker) Activities(ctx context.Context, challengeURL string, limit int) ([]hound.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled = append(f.polled, challengeURL)
	if f.notify != nil {
		f.notify <- challengeURL
	}
	if err := f.errs[challengeURL]; err != nil {
		return nil, err
	}
	return f.activities[challengeURL], nil
}

func (f *fakeTracker) Leaders(ctx context.Context, challengeURL string) ([]hound.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[challengeURL]; err != nil {
		return nil, err
	}
	return f.leaders[challengeURL], nil
}

func (f *fakeTracker) polledURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := make([]string, len(f.polled))
	copy(snapshot, f.polled)
	return snapshot
}
