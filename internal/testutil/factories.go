package testutil

import (
	"fmt"
	"time"

	"chatsync/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// NewUser builds a user reference with random identity data.
func NewUser(overrides ...func(*models.UserRef)) models.UserRef {
	u := models.UserRef{
		ID:        gofakeit.UUID(),
		Name:      gofakeit.Username(),
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}
	for _, o := range overrides {
		o(&u)
	}
	return u
}

// NewMessage builds a confirmed message from sender.
func NewMessage(sender models.UserRef, overrides ...func(*models.Message)) models.Message {
	m := models.Message{
		ID:        gofakeit.UUID(),
		Content:   gofakeit.Sentence(6),
		Sender:    sender,
		CreatedAt: gofakeit.DateRange(time.Now().Add(-72*time.Hour), time.Now()).UTC(),
	}
	for _, o := range overrides {
		o(&m)
	}
	return m
}

// NewRoom builds a 1:1 room between a and b.
func NewRoom(a, b models.UserRef, overrides ...func(*models.Room)) models.Room {
	r := models.Room{
		ID:           gofakeit.UUID(),
		Participants: []models.UserRef{a, b},
	}
	for _, o := range overrides {
		o(&r)
	}
	return r
}

// NewNotification builds an unread notification of a random known type.
func NewNotification(overrides ...func(*models.Notification)) models.Notification {
	types := []models.NotificationType{
		models.NotificationNewChapter,
		models.NotificationNewMangaPending,
		models.NotificationMangaApproved,
		models.NotificationMangaRejected,
		models.NotificationSystem,
	}
	n := models.Notification{
		ID:      gofakeit.UUID(),
		Type:    types[gofakeit.Number(0, len(types)-1)],
		Message: gofakeit.Sentence(8),
		RelatedEntity: &models.EntityRef{
			ID:    gofakeit.UUID(),
			Type:  "manga",
			Title: gofakeit.Sentence(3),
		},
		CreatedAt: gofakeit.DateRange(time.Now().Add(-72*time.Hour), time.Now()).UTC(),
	}
	for _, o := range overrides {
		o(&n)
	}
	return n
}

// At returns a pointer to t, for optional timestamp fields.
func At(t time.Time) *time.Time {
	return &t
}
