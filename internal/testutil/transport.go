// Package testutil provides fakes and data factories shared by package tests.
package testutil

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"chatsync/internal/transport"
)

// Emitted is one outbound event captured by FakeTransport.
type Emitted struct {
	Event   string
	Payload json.RawMessage
}

// FakeTransport is an in-memory transport.Transport. Lifecycle transitions are
// driven by the test through the Simulate methods; inbound events are pushed
// with Deliver. Like the real transport it supports several listeners per
// event so duplicate bindings are observable.
type FakeTransport struct {
	mu        sync.Mutex
	hooks     transport.Hooks
	connected bool
	opens     int
	closes    int
	creds     transport.CredentialFunc
	nextID    int
	listeners map[string]map[int]transport.Handler
	emitted   []Emitted

	// EmitErr, when set, is returned by Emit while connected.
	EmitErr error
}

// NewFakeTransport returns a disconnected fake.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{listeners: make(map[string]map[int]transport.Handler)}
}

var _ transport.Transport = (*FakeTransport)(nil)

func (f *FakeTransport) Open(_ context.Context, creds transport.CredentialFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	f.creds = creds
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	was := f.connected
	f.connected = false
	hook := f.hooks.OnDisconnect
	f.mu.Unlock()
	if was && hook != nil {
		hook("client closed")
	}
	return nil
}

func (f *FakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeTransport) On(event string, h transport.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	if f.listeners[event] == nil {
		f.listeners[event] = make(map[int]transport.Handler)
	}
	f.listeners[event][id] = h
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.listeners[event], id)
		})
	}
}

func (f *FakeTransport) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	if f.EmitErr != nil {
		return f.EmitErr
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.emitted = append(f.emitted, Emitted{Event: event, Payload: raw})
	return nil
}

func (f *FakeTransport) SetHooks(h transport.Hooks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = h
}

// SimulateConnect marks the connection up and fires OnConnect, as both the
// first connect and an automatic reconnect do.
func (f *FakeTransport) SimulateConnect() {
	f.mu.Lock()
	f.connected = true
	hook := f.hooks.OnConnect
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// SimulateConnectError fires OnConnectError.
func (f *FakeTransport) SimulateConnectError(err error) {
	f.mu.Lock()
	hook := f.hooks.OnConnectError
	f.mu.Unlock()
	if hook != nil {
		hook(err)
	}
}

// SimulateDisconnect drops the connection and fires OnDisconnect.
func (f *FakeTransport) SimulateDisconnect(reason string) {
	f.mu.Lock()
	f.connected = false
	hook := f.hooks.OnDisconnect
	f.mu.Unlock()
	if hook != nil {
		hook(reason)
	}
}

// Deliver pushes an inbound event to every listener bound to it, in bind
// order, and returns how many listeners ran.
func (f *FakeTransport) Deliver(event string, payload any) int {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return f.DeliverRaw(event, raw)
}

// DeliverRaw is Deliver with a pre-encoded payload.
func (f *FakeTransport) DeliverRaw(event string, raw json.RawMessage) int {
	f.mu.Lock()
	ids := make([]int, 0, len(f.listeners[event]))
	for id := range f.listeners[event] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	hs := make([]transport.Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, f.listeners[event][id])
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
	return len(hs)
}

// Credential invokes the credential function captured by the last Open.
func (f *FakeTransport) Credential(ctx context.Context) (string, error) {
	f.mu.Lock()
	creds := f.creds
	f.mu.Unlock()
	if creds == nil {
		return "", nil
	}
	return creds(ctx)
}

// Opens is the number of Open calls.
func (f *FakeTransport) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// Closes is the number of Close calls.
func (f *FakeTransport) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// ListenerCount is the number of listeners bound to event.
func (f *FakeTransport) ListenerCount(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners[event])
}

// Emitted returns every captured outbound event.
func (f *FakeTransport) Emitted() []Emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Emitted(nil), f.emitted...)
}

// EmittedOf returns the captured outbound events named event.
func (f *FakeTransport) EmittedOf(event string) []Emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Emitted
	for _, e := range f.emitted {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
