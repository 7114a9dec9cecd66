package intent

import (
	"context"

	"chatsync/internal/models"
)

// OpenConversation focuses the conversation identified by target, which is a
// room id or the user id of the counterpart. An existing room is opened and
// its history requested; otherwise a virtual conversation is opened locally
// using known for display. Switching away from a real room leaves it.
func (in *Intents) OpenConversation(ctx context.Context, target string, known *models.UserRef) (Conversation, bool) {
	if target == "" {
		return Conversation{}, false
	}
	me, ok := in.self(ctx)
	if !ok {
		return Conversation{}, false
	}

	room, found := in.messages.Room(target)
	if !found {
		room, found = in.messages.FindRoomByParticipant(target)
	}

	var conv Conversation
	if found {
		other, _ := room.Counterpart(me.ID)
		conv = Conversation{Key: room.ID, RoomID: room.ID, Counterpart: other}
	} else {
		if target == me.ID || models.IsVirtualRoomKey(target) {
			return Conversation{}, false
		}
		other := models.UserRef{ID: target}
		if known != nil {
			other = *known
			other.ID = target
		}
		conv = Conversation{Key: models.VirtualRoomKey(target), Counterpart: other, Virtual: true}
	}

	prev := in.swapActive(&conv)
	if prev != nil && !prev.Virtual && prev.RoomID != conv.RoomID {
		_ = in.emit(ctx, models.EventLeavePrivateRoom, models.RoomRef{RoomID: prev.RoomID})
	}
	if !conv.Virtual {
		in.messages.MarkRoomRead(conv.RoomID)
		if err := in.emit(ctx, models.EventOpenPrivateRoom, models.RoomRef{RoomID: conv.RoomID}); err != nil {
			conv.HistoryPending = true
			in.setHistoryPending(conv.Key, true)
		}
	}
	return conv, true
}

// ResumeConversation re-requests the history of the open real room. It runs
// after every reconnect because a fresh connection has joined no rooms, and
// it retries a history request that could not be sent. Reports whether the
// request went out.
func (in *Intents) ResumeConversation(ctx context.Context) bool {
	conv, ok := in.ActiveConversation()
	if !ok || conv.Virtual {
		return false
	}
	if err := in.emit(ctx, models.EventOpenPrivateRoom, models.RoomRef{RoomID: conv.RoomID}); err != nil {
		in.setHistoryPending(conv.Key, true)
		return false
	}
	in.setHistoryPending(conv.Key, false)
	return true
}

// CloseConversation clears the active conversation, leaving its room if it
// is real. Store state is kept.
func (in *Intents) CloseConversation(ctx context.Context) {
	prev := in.swapActive(nil)
	if prev != nil && !prev.Virtual {
		_ = in.emit(ctx, models.EventLeavePrivateRoom, models.RoomRef{RoomID: prev.RoomID})
	}
}

// ActiveConversation returns the open conversation.
func (in *Intents) ActiveConversation() (Conversation, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.active == nil {
		return Conversation{}, false
	}
	return *in.active, true
}

// ActiveKey returns the store key of the open conversation.
func (in *Intents) ActiveKey() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.active == nil {
		return ""
	}
	return in.active.Key
}

// Promote turns the open virtual conversation into the real room once the
// server has created it. Other conversations are left alone.
func (in *Intents) Promote(virtualKey, roomID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.active == nil || in.active.Key != virtualKey {
		return
	}
	in.active.Key = roomID
	in.active.RoomID = roomID
	in.active.Virtual = false
}

func (in *Intents) setHistoryPending(key string, pending bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.active != nil && in.active.Key == key {
		in.active.HistoryPending = pending
	}
}

func (in *Intents) swapActive(next *Conversation) *Conversation {
	in.mu.Lock()
	defer in.mu.Unlock()
	prev := in.active
	in.active = next
	return prev
}
