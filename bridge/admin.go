// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"sync"

	"github.com/trailhound/challenger/lib/ref"
)

// AdminSet tracks which users may invite the bridge into rooms. The
// permitted set is the union of the control room's joined members and
// the adminUsers list from the global config record.
//
// Only the event router and bootstrap mutate the set; everything else
// reads it. Until the config record has been loaded at least once,
// Ready reports false and invites are deferred.
type AdminSet struct {
	mu sync.RWMutex

	members    map[ref.UserID]struct{}
	configured map[ref.UserID]struct{}
	ready      bool
}

// NewAdminSet creates an empty, not-yet-ready AdminSet.
func NewAdminSet() *AdminSet {
	return &AdminSet{
		members:    make(map[ref.UserID]struct{}),
		configured: make(map[ref.UserID]struct{}),
	}
}

// Ready reports whether the global config record has been loaded.
func (a *AdminSet) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// Permitted reports whether userID may command the bridge.
func (a *AdminSet) Permitted(userID ref.UserID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, ok := a.members[userID]; ok {
		return true
	}
	_, ok := a.configured[userID]
	return ok
}

// AddMember records a control-room join.
func (a *AdminSet) AddMember(userID ref.UserID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.members[userID] = struct{}{}
}

// RemoveMember records a control-room leave or ban. Users still listed
// in the config record remain permitted.
func (a *AdminSet) RemoveMember(userID ref.UserID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.members, userID)
}

// SetMembers replaces the member portion of the set wholesale, used at
// bootstrap after fetching the control room's member list.
func (a *AdminSet) SetMembers(userIDs []ref.UserID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.members = make(map[ref.UserID]struct{}, len(userIDs))
	for _, id := range userIDs {
		a.members[id] = struct{}{}
	}
}

// SetConfig replaces the configured portion of the set from a global
// config record and marks the set ready. Unparseable entries are
// skipped.
func (a *AdminSet) SetConfig(config GlobalConfigContent) {
	configured := make(map[ref.UserID]struct{}, len(config.AdminUsers))
	for _, raw := range config.AdminUsers {
		userID, err := ref.ParseUserID(raw)
		if err != nil {
			continue
		}
		configured[userID] = struct{}{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.configured = configured
	a.ready = true
}
