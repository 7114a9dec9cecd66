// Package intent turns user actions into optimistic store changes and
// transport emissions.
package intent

import (
	"context"
	"strings"
	"sync"
	"time"

	"chatsync/internal/models"
	"chatsync/internal/observability"
	"chatsync/internal/session"
	"chatsync/internal/store"
	"chatsync/internal/transport"

	"github.com/google/uuid"
)

// Identity is the part of the session provider intents need.
type Identity interface {
	Current(ctx context.Context) (session.Session, error)
}

// NotificationAPI is the REST boundary for notification read state.
type NotificationAPI interface {
	List(ctx context.Context) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

// Conversation is the conversation currently open in the UI.
type Conversation struct {
	// Key is the room id, or the virtual key while no server room exists.
	Key            string         `json:"key"`
	RoomID         string         `json:"roomId,omitempty"`
	Counterpart    models.UserRef `json:"counterpart"`
	Virtual        bool           `json:"virtual"`
	HistoryPending bool           `json:"historyPending,omitempty"`
}

// Intents is the UI facing entry point of the sync core.
type Intents struct {
	transport     transport.Transport
	messages      *store.MessageStore
	notifications *store.NotificationStore
	identity      Identity
	api           NotificationAPI
	logger        *observability.SyncLogger

	newID func() string
	now   func() time.Time

	mu     sync.Mutex
	active *Conversation
}

// New creates the intent layer.
func New(t transport.Transport, messages *store.MessageStore, notifications *store.NotificationStore, identity Identity, api NotificationAPI) *Intents {
	return &Intents{
		transport:     t,
		messages:      messages,
		notifications: notifications,
		identity:      identity,
		api:           api,
		logger:        observability.NewSyncLogger("intent"),
		newID:         uuid.NewString,
		now:           time.Now,
	}
}

func (in *Intents) self(ctx context.Context) (models.UserRef, bool) {
	s, err := in.identity.Current(ctx)
	if err != nil {
		return models.UserRef{}, false
	}
	return models.UserRef{ID: s.UserID, Name: s.Username}, true
}

// emit sends an event and logs a failure. A failed emit is reported to the
// caller so it can be turned into store state.
func (in *Intents) emit(ctx context.Context, event string, payload any) error {
	if err := in.transport.Emit(event, payload); err != nil {
		in.logger.LogError(ctx, "emit_"+event, err)
		return err
	}
	return nil
}

// Reset forgets the active conversation and clears both stores. Used when the
// session ends.
func (in *Intents) Reset() {
	in.mu.Lock()
	in.active = nil
	in.mu.Unlock()
	in.messages.Reset()
	in.notifications.Reset()
}

func cleanContent(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	return trimmed, trimmed != ""
}
