package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVirtualRoomKey(t *testing.T) {
	key := VirtualRoomKey("42")
	assert.Equal(t, "virtual_42", key)
	assert.True(t, IsVirtualRoomKey(key))
	assert.False(t, IsVirtualRoomKey("r1"))

	id, ok := VirtualCounterpart(key)
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	_, ok = VirtualCounterpart("virtual_")
	assert.False(t, ok)
	_, ok = VirtualCounterpart("r1")
	assert.False(t, ok)
}

func TestRoom_Counterpart(t *testing.T) {
	room := Room{ID: "r1", Participants: []UserRef{{ID: "1", Name: "me"}, {ID: "2", Name: "you"}}}

	other, ok := room.Counterpart("1")
	assert.True(t, ok)
	assert.Equal(t, "2", other.ID)
	assert.True(t, room.HasParticipant("2"))
	assert.False(t, room.HasParticipant("3"))
}

func TestRoom_CloneDoesNotShare(t *testing.T) {
	at := time.Now()
	room := Room{ID: "r1", Participants: []UserRef{{ID: "1"}}, LastMessageAt: &at, LastSender: &UserRef{ID: "1"}}
	c := room.Clone()
	c.Participants[0].ID = "x"
	*c.LastMessageAt = at.Add(time.Hour)
	c.LastSender.ID = "y"

	assert.Equal(t, "1", room.Participants[0].ID)
	assert.Equal(t, at, *room.LastMessageAt)
	assert.Equal(t, "1", room.LastSender.ID)
}

func TestMessage_Confirm(t *testing.T) {
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	pending := Message{TempID: "t1", Content: "hi", Sender: UserRef{ID: "1"}, CreatedAt: created, IsSending: true}
	assert.True(t, pending.IsPending())

	confirmed := pending.Confirm(Message{ID: "m1"})
	assert.Equal(t, "m1", confirmed.ID)
	assert.Empty(t, confirmed.TempID)
	assert.False(t, confirmed.IsSending)
	assert.False(t, confirmed.IsPending())
	assert.Equal(t, "hi", confirmed.Content)
	assert.Equal(t, created, confirmed.CreatedAt)
}
