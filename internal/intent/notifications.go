package intent

import (
	"context"
)

// LoadNotifications fetches the full notification list into the store.
func (in *Intents) LoadNotifications(ctx context.Context) error {
	list, err := in.api.List(ctx)
	if err != nil {
		in.logger.LogError(ctx, "load_notifications", err)
		return err
	}
	in.notifications.SetAll(list)
	return nil
}

// MarkNotificationRead marks id read right away and confirms it over REST.
// On failure the store is already rolled back when the error is returned.
func (in *Intents) MarkNotificationRead(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	err := in.notifications.MarkRead(ctx, id, func(ctx context.Context) error {
		return in.api.MarkRead(ctx, id)
	})
	if err != nil {
		in.logger.LogError(ctx, "mark_notification_read", err)
	}
	return err
}

// MarkAllNotificationsRead is the bulk form of MarkNotificationRead.
func (in *Intents) MarkAllNotificationsRead(ctx context.Context) error {
	err := in.notifications.MarkAllRead(ctx, in.api.MarkAllRead)
	if err != nil {
		in.logger.LogError(ctx, "mark_all_notifications_read", err)
	}
	return err
}
