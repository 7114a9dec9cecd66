// Package transport defines the bidirectional event channel the sync core runs
// on and provides a websocket implementation of it.
package transport

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotConnected is returned by Emit while there is no live connection.
	ErrNotConnected = errors.New("transport not connected")
	// ErrSendBufferFull is returned by Emit when the outbound buffer is full.
	ErrSendBufferFull = errors.New("transport send buffer full")
	// errBusy is returned internally when a dial is refused because one is
	// already running or the connection is up.
	errBusy = errors.New("transport already connecting or connected")
)

// Handler receives the raw payload of one named event.
type Handler func(payload json.RawMessage)

// CredentialFunc returns the bearer credential for a connection attempt. It
// is called once per attempt, including automatic reconnects.
type CredentialFunc func(ctx context.Context) (string, error)

// Hooks receive connection lifecycle notifications. Exactly one of
// OnConnect or OnConnectError fires per connection attempt.
type Hooks struct {
	OnConnect      func()
	OnConnectError func(err error)
	OnDisconnect   func(reason string)
}

// Transport is the event channel capability used by the sync core.
type Transport interface {
	// Open starts one connection attempt in the background. The outcome is
	// reported through Hooks. Open is a no-op while connected or dialing.
	Open(ctx context.Context, creds CredentialFunc)
	// Close tears down the connection and stops automatic reconnection.
	Close() error
	Connected() bool
	// On attaches a listener and returns the function that detaches it.
	On(event string, h Handler) (unbind func())
	Emit(event string, payload any) error
	SetHooks(h Hooks)
}

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds the wire frame for event carrying payload.
func Encode(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
