// Package models contains data structures for the chat synchronization domain.
package models

import "time"

// UserRef identifies a user as it appears on messages and room participants.
type UserRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Message is a chat message. A confirmed message carries an ID assigned by the
// server; a pending (optimistic) message carries only a client-generated TempID
// until it is reconciled.
type Message struct {
	ID        string    `json:"id,omitempty"`
	TempID    string    `json:"tempId,omitempty"`
	Content   string    `json:"content"`
	Sender    UserRef   `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
	IsSending bool      `json:"isSending,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// IsPending reports whether the message has not been confirmed by the server yet.
func (m Message) IsPending() bool {
	return m.ID == "" && m.TempID != ""
}

// Failed reports whether the last send attempt for the message was rejected.
func (m Message) Failed() bool {
	return m.Error != ""
}

// Confirm returns the confirmed form of a pending message: server data wins,
// the temp id is dropped and the sending/error flags are cleared.
func (m Message) Confirm(confirmed Message) Message {
	out := confirmed
	out.TempID = ""
	out.IsSending = false
	out.Error = ""
	if out.Content == "" {
		out.Content = m.Content
	}
	if out.Sender.ID == "" {
		out.Sender = m.Sender
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = m.CreatedAt
	}
	return out
}
