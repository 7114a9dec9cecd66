package router

import (
	"context"
	"encoding/json"
	"errors"

	"chatsync/internal/models"
	"chatsync/internal/store"
)

var errMissingRoom = errors.New("payload carries no room id")

// onInitialize replaces rooms, public messages and unread notifications with
// the post-connect snapshot.
func (r *Router) onInitialize(_ context.Context, raw json.RawMessage) error {
	state, err := decode[models.InitialState](raw)
	if err != nil {
		return err
	}
	r.messages.SetRooms(state.Rooms)
	r.messages.SetPublicMessages(state.PublicMessages)
	r.notifications.SetUnread(state.UnreadNotifications)
	return nil
}

func (r *Router) onNotification(ctx context.Context, raw json.RawMessage) error {
	n, err := decode[models.Notification](raw)
	if err != nil {
		return err
	}
	if !r.notifications.Push(n) {
		r.logger.LogDropped(ctx, models.EventNotification, "duplicate", map[string]interface{}{"id": n.ID})
	}
	return nil
}

func (r *Router) onNewMessage(_ context.Context, raw json.RawMessage) error {
	msg, err := decode[models.Message](raw)
	if err != nil {
		return err
	}
	r.messages.AppendPublicMessage(msg)
	return nil
}

func (r *Router) onMessageError(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[models.MessageErrorPayload](raw)
	if err != nil {
		return err
	}
	loc, ok := r.messages.LocatePending(p.TempID)
	switch {
	case !ok:
		r.miss(ctx, models.EventMessageError, p.TempID)
	case loc.Public:
		r.messages.MarkPublicError(p.TempID, p.Error)
	default:
		r.messages.MarkPrivateError(loc.RoomKey, p.TempID, p.Error)
	}
	return nil
}

func (r *Router) onMessageAck(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[models.MessageAckPayload](raw)
	if err != nil {
		return err
	}

	if p.Room != nil {
		if p.Room.ID == "" {
			return errMissingRoom
		}
		res := r.messages.ApplyPrivateAck(p.TempID, *p.Room, p.Message)
		if !res.Reconciled {
			r.miss(ctx, models.EventMessageAck, p.TempID)
		}
		if res.MigratedFrom != "" {
			if f := r.activeFocus(); f.ActiveKey() == res.MigratedFrom {
				f.Promote(res.MigratedFrom, res.RoomID)
			}
		}
		return nil
	}

	loc, ok := r.messages.LocatePending(p.TempID)
	switch {
	case !ok:
		r.miss(ctx, models.EventMessageAck, p.TempID)
	case loc.Public:
		r.messages.ReconcilePublic(p.TempID, p.Message)
	default:
		r.messages.ReconcilePrivate(loc.RoomKey, p.TempID, p.Message)
	}
	return nil
}

func (r *Router) onNewPrivateMessage(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[models.PrivateMessagePayload](raw)
	if err != nil {
		return err
	}
	if p.Room.ID == "" {
		return errMissingRoom
	}

	counterpart := p.Message.Sender.ID
	if self, ok := r.identity.UserID(ctx); ok {
		if other, ok := p.Room.Counterpart(self); ok {
			counterpart = other.ID
		}
	}

	focus := r.activeFocus()
	migrateFrom := ""
	if counterpart != "" {
		if vk := models.VirtualRoomKey(counterpart); focus.ActiveKey() == vk || r.messages.HasRoomKey(vk) {
			migrateFrom = vk
		}
	}

	if !r.messages.ReceivePrivate(p.Room, p.Message, migrateFrom) {
		r.logger.LogDropped(ctx, models.EventNewPrivateMessage, "duplicate", map[string]interface{}{"id": p.Message.ID})
		return nil
	}
	if migrateFrom != "" && focus.ActiveKey() == migrateFrom {
		focus.Promote(migrateFrom, p.Room.ID)
	}
	if focus.ActiveKey() == p.Room.ID && p.Message.ID != "" {
		r.readReceipt(ctx, p.Room.ID, p.Message.ID)
	}
	return nil
}

// readReceipt clears the unread counter of the open room and tells the server
// the message was seen. The counter is restored if the receipt cannot be sent.
func (r *Router) readReceipt(ctx context.Context, roomID, messageID string) {
	err := store.RunOptimistic(ctx, "room_mark_read",
		func() int {
			prev, _ := r.messages.MarkRoomRead(roomID)
			return prev
		},
		func(prev int) { r.messages.SetRoomUnread(roomID, prev) },
		func(context.Context) error {
			return r.transport.Emit(models.EventMarkMessageRead, messageID)
		},
	)
	if err != nil {
		r.logger.LogError(ctx, "read_receipt", err)
	}
}

func (r *Router) onRoomUpdate(_ context.Context, raw json.RawMessage) error {
	p, err := decode[models.RoomUpdatePayload](raw)
	if err != nil {
		return err
	}
	r.messages.SetRooms(p.Rooms)
	return nil
}

func (r *Router) onOpenedPrivateRoom(_ context.Context, raw json.RawMessage) error {
	p, err := decode[models.OpenedRoomPayload](raw)
	if err != nil {
		return err
	}
	if p.RoomID == "" {
		return errMissingRoom
	}
	r.messages.SetRoomMessages(p.RoomID, p.Messages)
	return nil
}
