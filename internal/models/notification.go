package models

import "time"

// NotificationType enumerates the kinds of notifications pushed to a user.
type NotificationType string

// Known notification types.
const (
	NotificationNewChapter      NotificationType = "NEW_CHAPTER"
	NotificationNewMangaPending NotificationType = "NEW_MANGA_PENDING"
	NotificationMangaApproved   NotificationType = "MANGA_APPROVED"
	NotificationMangaRejected   NotificationType = "MANGA_REJECTED"
	NotificationSystem          NotificationType = "SYSTEM"
)

// EntityRef points at the entity a notification is about (a manga, a chapter).
type EntityRef struct {
	ID    string `json:"id"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Notification is a single user notification.
type Notification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	Message       string           `json:"message"`
	RelatedEntity *EntityRef       `json:"relatedEntity,omitempty"`
	IsRead        bool             `json:"isRead"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// Clone returns a copy that does not share the related entity pointer.
func (n Notification) Clone() Notification {
	out := n
	if n.RelatedEntity != nil {
		e := *n.RelatedEntity
		out.RelatedEntity = &e
	}
	return out
}
