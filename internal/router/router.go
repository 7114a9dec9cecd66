// Package router binds inbound transport events to store mutations.
package router

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"chatsync/internal/models"
	"chatsync/internal/observability"
	"chatsync/internal/store"
	"chatsync/internal/transport"
)

// Focus is the view of the active conversation the router needs.
type Focus interface {
	// ActiveKey is the room key (real id or virtual key) of the open
	// conversation, or "" when none is open.
	ActiveKey() string
	// Promote switches an open virtual conversation to its real room.
	Promote(virtualKey, roomID string)
}

// Identity reports the logged in user.
type Identity interface {
	UserID(ctx context.Context) (string, bool)
}

type noFocus struct{}

func (noFocus) ActiveKey() string      { return "" }
func (noFocus) Promote(string, string) {}

type binding struct {
	gen    uint64
	unbind func()
}

// Router keeps exactly one listener per event name attached to the transport.
type Router struct {
	transport     transport.Transport
	messages      *store.MessageStore
	notifications *store.NotificationStore
	identity      Identity
	logger        *observability.SyncLogger

	mu       sync.Mutex
	focus    Focus
	gen      uint64
	bindings map[string]binding
	handlers map[string]transport.Handler
}

// New creates a router with the handler table for every inbound event. No
// listener is attached until Bind, BindAll or Rebind runs.
func New(t transport.Transport, messages *store.MessageStore, notifications *store.NotificationStore, identity Identity) *Router {
	r := &Router{
		transport:     t,
		messages:      messages,
		notifications: notifications,
		identity:      identity,
		logger:        observability.NewSyncLogger("router"),
		focus:         noFocus{},
		bindings:      make(map[string]binding),
	}
	r.handlers = map[string]transport.Handler{
		models.EventInitializeSocket:  r.wrap(models.EventInitializeSocket, r.onInitialize),
		models.EventNotification:      r.wrap(models.EventNotification, r.onNotification),
		models.EventNewMessage:        r.wrap(models.EventNewMessage, r.onNewMessage),
		models.EventMessageError:      r.wrap(models.EventMessageError, r.onMessageError),
		models.EventMessageAck:        r.wrap(models.EventMessageAck, r.onMessageAck),
		models.EventNewPrivateMessage: r.wrap(models.EventNewPrivateMessage, r.onNewPrivateMessage),
		models.EventRoomUpdate:        r.wrap(models.EventRoomUpdate, r.onRoomUpdate),
		models.EventOpenedPrivateRoom: r.wrap(models.EventOpenedPrivateRoom, r.onOpenedPrivateRoom),
	}
	return r
}

// SetFocus installs the active conversation tracker.
func (r *Router) SetFocus(f Focus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f == nil {
		f = noFocus{}
	}
	r.focus = f
}

// Bind attaches h for event, replacing any listener the router already holds
// for it. The returned function detaches this binding only.
func (r *Router) Bind(event string, h transport.Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bindLocked(event, h)
}

func (r *Router) bindLocked(event string, h transport.Handler) func() {
	if prev, ok := r.bindings[event]; ok {
		prev.unbind()
		delete(r.bindings, event)
	}
	r.gen++
	gen := r.gen
	unbind := r.transport.On(event, h)
	r.bindings[event] = binding{gen: gen, unbind: unbind}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.bindings[event]; ok && cur.gen == gen {
			cur.unbind()
			delete(r.bindings, event)
		}
	}
}

// BindAll attaches every handler of the table.
func (r *Router) BindAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.eventsLocked() {
		r.bindLocked(event, r.handlers[event])
	}
}

// UnbindAll detaches every binding the router holds.
func (r *Router) UnbindAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unbindAllLocked()
}

func (r *Router) unbindAllLocked() {
	for event, b := range r.bindings {
		b.unbind()
		delete(r.bindings, event)
	}
}

// Rebind runs on every (re)connect: all retained bindings are detached and
// the whole table is bound fresh.
func (r *Router) Rebind() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unbindAllLocked()
	for _, event := range r.eventsLocked() {
		r.bindLocked(event, r.handlers[event])
	}
	observability.RouterRebindsTotal.Inc()
	r.logger.LogLifecycle(context.Background(), "rebind", map[string]interface{}{
		"events": len(r.bindings),
	})
}

// Bound lists the events that currently have a binding.
func (r *Router) Bound() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.bindings))
	for event := range r.bindings {
		out = append(out, event)
	}
	sort.Strings(out)
	return out
}

func (r *Router) eventsLocked() []string {
	out := make([]string, 0, len(r.handlers))
	for event := range r.handlers {
		out = append(out, event)
	}
	sort.Strings(out)
	return out
}

func (r *Router) activeFocus() Focus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focus
}

// wrap adapts fn to a transport handler. A payload fn cannot decode is
// logged and dropped.
func (r *Router) wrap(event string, fn func(ctx context.Context, raw json.RawMessage) error) transport.Handler {
	return func(raw json.RawMessage) {
		ctx := context.Background()
		if err := fn(ctx, raw); err != nil {
			r.logger.LogDropped(ctx, event, "malformed payload", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		r.logger.LogEvent(ctx, event, nil)
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

func (r *Router) miss(ctx context.Context, event, tempID string) {
	observability.ReconciliationMisses.WithLabelValues(event).Inc()
	r.logger.LogDropped(ctx, event, "unknown temp id", map[string]interface{}{
		"temp_id": tempID,
	})
}
