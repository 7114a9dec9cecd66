// Package connection owns the lifecycle of the single shared transport
// connection.
package connection

import (
	"context"
	"sync"
	"time"

	"chatsync/internal/observability"
	"chatsync/internal/session"
	"chatsync/internal/transport"

	"go.opentelemetry.io/otel/attribute"
)

// Binder re-establishes event bindings. A fresh connection has no listeners,
// so Rebind runs on every successful (re)connect.
type Binder interface {
	Rebind()
	UnbindAll()
}

// Identity is the part of the session provider the manager needs.
type Identity interface {
	Current(ctx context.Context) (session.Session, error)
	Token(ctx context.Context) (string, error)
}

// Manager makes connect and disconnect idempotent on top of a Transport.
// Automatic reconnection is left to the transport.
type Manager struct {
	transport transport.Transport
	identity  Identity
	binder    Binder
	logger    *observability.SyncLogger
	now       func() time.Time

	mu         sync.Mutex
	connecting bool
	userID     string
	lastConnAt time.Time
	onReady    []func()
}

// NewManager wires the manager into the transport's lifecycle hooks.
func NewManager(t transport.Transport, identity Identity, binder Binder) *Manager {
	m := &Manager{
		transport: t,
		identity:  identity,
		binder:    binder,
		logger:    observability.NewSyncLogger("connection"),
		now:       time.Now,
	}
	t.SetHooks(transport.Hooks{
		OnConnect:      m.handleConnect,
		OnConnectError: m.handleConnectError,
		OnDisconnect:   m.handleDisconnect,
	})
	return m
}

// OnReady registers fn to run after every successful (re)connect, once the
// bindings are in place. Callbacks run in registration order on their own
// goroutine.
func (m *Manager) OnReady(fn func()) {
	m.mu.Lock()
	m.onReady = append(m.onReady, fn)
	m.mu.Unlock()
}

// Connect starts one connection attempt. It is a no-op while connected, while
// an attempt is in flight, or when there is no live session. Reports whether
// an attempt was started.
func (m *Manager) Connect(ctx context.Context) bool {
	m.mu.Lock()
	if m.connecting || m.transport.Connected() {
		m.mu.Unlock()
		return false
	}
	sess, err := m.identity.Current(ctx)
	if err != nil {
		m.mu.Unlock()
		m.logger.LogDropped(ctx, "connect", "no live session", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	m.connecting = true
	m.userID = sess.UserID
	m.mu.Unlock()

	span, ctx := observability.ClientSpan(ctx, "connection.connect",
		attribute.String("user.id", sess.UserID))
	defer span.End()

	// The attempt outlives the caller; credentials are re-read per attempt.
	m.transport.Open(context.WithoutCancel(ctx), m.identity.Token)
	return true
}

// Disconnect detaches every binding and closes the transport, which also
// cancels a reconnect the transport may be waiting on. Safe to call
// repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.connecting = false
	m.mu.Unlock()
	m.binder.UnbindAll()
	if err := m.transport.Close(); err != nil {
		m.logger.LogError(context.Background(), "disconnect", err)
	}
}

// Connecting reports whether an attempt is in flight.
func (m *Manager) Connecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connecting
}

// Connected reports whether the transport is up.
func (m *Manager) Connected() bool {
	return m.transport.Connected()
}

// LastConnectedAt is the timestamp of the most recent successful connect.
func (m *Manager) LastConnectedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastConnAt
}

func (m *Manager) handleConnect() {
	at := m.now()
	m.mu.Lock()
	m.connecting = false
	m.lastConnAt = at
	userID := m.userID
	ready := append([]func(){}, m.onReady...)
	m.mu.Unlock()

	m.logger.LogConnect(context.Background(), userID, at)
	m.binder.Rebind()
	if len(ready) == 0 {
		return
	}
	// Ready callbacks may block on the network; keep them off the transport's
	// goroutine so the new connection starts reading right away.
	go func() {
		for _, fn := range ready {
			fn()
		}
	}()
}

func (m *Manager) handleConnectError(err error) {
	m.mu.Lock()
	m.connecting = false
	m.mu.Unlock()
	m.logger.LogError(context.Background(), "connect", err)
}

func (m *Manager) handleDisconnect(reason string) {
	m.logger.LogDisconnect(context.Background(), reason)
}
