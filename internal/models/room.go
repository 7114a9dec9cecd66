package models

import (
	"strings"
	"time"
)

// VirtualRoomPrefix marks a conversation key that is not backed by a server room yet.
const VirtualRoomPrefix = "virtual_"

// Room is a private 1:1 conversation.
type Room struct {
	ID            string     `json:"id"`
	Participants  []UserRef  `json:"participants"`
	LastMessage   string     `json:"lastMessage,omitempty"`
	LastSender    *UserRef   `json:"lastSender,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	UnreadCount   int        `json:"unreadCount"`
}

// HasParticipant reports whether userID is one of the room's participants.
func (r Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the participant that is not selfID.
func (r Room) Counterpart(selfID string) (UserRef, bool) {
	for _, p := range r.Participants {
		if p.ID != selfID {
			return p, true
		}
	}
	return UserRef{}, false
}

// Clone returns a deep copy so callers cannot mutate store-owned slices.
func (r Room) Clone() Room {
	out := r
	if r.Participants != nil {
		out.Participants = append([]UserRef(nil), r.Participants...)
	}
	if r.LastSender != nil {
		s := *r.LastSender
		out.LastSender = &s
	}
	if r.LastMessageAt != nil {
		t := *r.LastMessageAt
		out.LastMessageAt = &t
	}
	return out
}

// VirtualRoomKey derives the placeholder key for a conversation with userID.
func VirtualRoomKey(userID string) string {
	return VirtualRoomPrefix + userID
}

// IsVirtualRoomKey reports whether key is a virtual conversation key.
func IsVirtualRoomKey(key string) bool {
	return strings.HasPrefix(key, VirtualRoomPrefix)
}

// VirtualCounterpart extracts the counterpart user id from a virtual key.
func VirtualCounterpart(key string) (string, bool) {
	if !IsVirtualRoomKey(key) {
		return "", false
	}
	id := strings.TrimPrefix(key, VirtualRoomPrefix)
	return id, id != ""
}
