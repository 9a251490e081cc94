// Package realtime fans feedback and track events out to connected sessions.
package realtime

import (
	"sort"
	"strings"
	"sync"
)

// Channel name prefixes. Track and project channels never collide, even when
// ids do.
const (
	trackPrefix   = "track-"
	projectPrefix = "project-"
)

// Channel kinds returned by ParseChannel.
const (
	KindTrack   = "track"
	KindProject = "project"
)

func TrackChannel(trackID string) string { return trackPrefix + trackID }

func ProjectChannel(projectID string) string { return projectPrefix + projectID }

// ParseChannel splits a channel name into its kind and id.
func ParseChannel(channel string) (kind, id string, ok bool) {
	switch {
	case strings.HasPrefix(channel, trackPrefix):
		kind, id = KindTrack, strings.TrimPrefix(channel, trackPrefix)
	case strings.HasPrefix(channel, projectPrefix):
		kind, id = KindProject, strings.TrimPrefix(channel, projectPrefix)
	default:
		return "", "", false
	}
	return kind, id, id != ""
}

// RoomRegistry records which session is joined to which channel. It starts
// empty and is filled by Join, pruned by Leave and Disconnect.
type RoomRegistry struct {
	mu       sync.RWMutex
	channels map[string]map[string]struct{} // channel -> session ids
	sessions map[string]map[string]struct{} // session id -> channels
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		channels: make(map[string]map[string]struct{}),
		sessions: make(map[string]map[string]struct{}),
	}
}

// Join subscribes sessionID to channel. It reports false when the session
// was already joined.
func (r *RoomRegistry) Join(sessionID, channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[channel][sessionID]; ok {
		return false
	}
	if r.channels[channel] == nil {
		r.channels[channel] = make(map[string]struct{})
	}
	if r.sessions[sessionID] == nil {
		r.sessions[sessionID] = make(map[string]struct{})
	}
	r.channels[channel][sessionID] = struct{}{}
	r.sessions[sessionID][channel] = struct{}{}
	return true
}

// Leave unsubscribes sessionID from channel. It reports whether a
// subscription was removed.
func (r *RoomRegistry) Leave(sessionID, channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remove(sessionID, channel)
}

// Disconnect removes every subscription of sessionID and returns the
// channels it was joined to.
func (r *RoomRegistry) Disconnect(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	left := make([]string, 0, len(r.sessions[sessionID]))
	for channel := range r.sessions[sessionID] {
		left = append(left, channel)
	}
	for _, channel := range left {
		r.remove(sessionID, channel)
	}
	delete(r.sessions, sessionID)
	sort.Strings(left)
	return left
}

// remove must be called with mu held.
func (r *RoomRegistry) remove(sessionID, channel string) bool {
	members, ok := r.channels[channel]
	if !ok {
		return false
	}
	if _, ok := members[sessionID]; !ok {
		return false
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(r.channels, channel)
	}
	if chans := r.sessions[sessionID]; chans != nil {
		delete(chans, channel)
		if len(chans) == 0 {
			delete(r.sessions, sessionID)
		}
	}
	return true
}

// Sessions returns a snapshot of the session ids joined to channel.
func (r *RoomRegistry) Sessions(channel string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.channels[channel]))
	for id := range r.channels[channel] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Channels returns a snapshot of the channels sessionID is joined to.
func (r *RoomRegistry) Channels(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.sessions[sessionID]))
	for channel := range r.sessions[sessionID] {
		out = append(out, channel)
	}
	sort.Strings(out)
	return out
}

// ChannelCount returns how many channels have at least one session.
func (r *RoomRegistry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
