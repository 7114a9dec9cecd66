package intent

import (
	"context"

	"chatsync/internal/models"
)

// SendPublic adds an optimistic public message and emits it. It returns false
// for blank content or when nobody is logged in; the caller clears its input
// only on acceptance.
func (in *Intents) SendPublic(ctx context.Context, content string) (models.SendPublicPayload, bool) {
	content, ok := cleanContent(content)
	if !ok {
		return models.SendPublicPayload{}, false
	}
	me, ok := in.self(ctx)
	if !ok {
		return models.SendPublicPayload{}, false
	}

	tempID := in.newID()
	in.messages.AddPendingPublicMessage(tempID, content, me, in.now())
	payload := models.SendPublicPayload{TempID: tempID, Content: content}
	if err := in.emit(ctx, models.EventSendPublicMessage, payload); err != nil {
		in.messages.MarkPublicError(tempID, err.Error())
	}
	return payload, true
}

// ResendPublic retries a failed public message in place.
func (in *Intents) ResendPublic(ctx context.Context, tempID string) bool {
	msg, ok := in.messages.ResendPublic(tempID)
	if !ok {
		return false
	}
	payload := models.SendPublicPayload{TempID: tempID, Content: msg.Content}
	if err := in.emit(ctx, models.EventSendPublicMessage, payload); err != nil {
		in.messages.MarkPublicError(tempID, err.Error())
	}
	return true
}

// PrivateSend is the result of an accepted private send.
type PrivateSend struct {
	models.SendPrivatePayload
	// RoomKey is where the optimistic message was filed.
	RoomKey string
}

// SendPrivate sends content to counterpartID. Without an existing room the
// message is filed under the counterpart's virtual key and the server creates
// the room; its id arrives with the acknowledgment.
func (in *Intents) SendPrivate(ctx context.Context, content, counterpartID string) (PrivateSend, bool) {
	content, ok := cleanContent(content)
	if !ok || counterpartID == "" {
		return PrivateSend{}, false
	}
	me, ok := in.self(ctx)
	if !ok || me.ID == counterpartID {
		return PrivateSend{}, false
	}

	roomKey := models.VirtualRoomKey(counterpartID)
	receiverID := counterpartID
	if room, found := in.messages.FindRoomByParticipant(counterpartID); found {
		roomKey = room.ID
		if other, ok := room.Counterpart(me.ID); ok {
			receiverID = other.ID
		}
	}

	tempID := in.newID()
	in.messages.AddPendingPrivate(roomKey, models.Message{
		TempID:    tempID,
		Content:   content,
		Sender:    me,
		CreatedAt: in.now(),
	})
	payload := models.SendPrivatePayload{TempID: tempID, Content: content, ReceiverID: receiverID}
	if err := in.emit(ctx, models.EventSendPrivateMessage, payload); err != nil {
		in.messages.MarkPrivateError(roomKey, tempID, err.Error())
	}
	return PrivateSend{SendPrivatePayload: payload, RoomKey: roomKey}, true
}

// ResendPrivate retries a failed private message wherever it is filed now,
// which may be a real room if its virtual conversation was promoted meanwhile.
func (in *Intents) ResendPrivate(ctx context.Context, tempID string) bool {
	loc, ok := in.messages.LocatePending(tempID)
	if !ok || loc.Public {
		return false
	}
	receiverID, ok := in.receiverFor(ctx, loc.RoomKey)
	if !ok {
		return false
	}
	msg, ok := in.messages.ResendPrivate(loc.RoomKey, tempID)
	if !ok {
		return false
	}
	payload := models.SendPrivatePayload{TempID: tempID, Content: msg.Content, ReceiverID: receiverID}
	if err := in.emit(ctx, models.EventSendPrivateMessage, payload); err != nil {
		in.messages.MarkPrivateError(loc.RoomKey, tempID, err.Error())
	}
	return true
}

func (in *Intents) receiverFor(ctx context.Context, roomKey string) (string, bool) {
	if id, ok := models.VirtualCounterpart(roomKey); ok {
		return id, true
	}
	room, ok := in.messages.Room(roomKey)
	if !ok {
		return "", false
	}
	me, ok := in.self(ctx)
	if !ok {
		return "", false
	}
	other, ok := room.Counterpart(me.ID)
	return other.ID, ok
}
