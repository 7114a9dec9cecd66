package connection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"chatsync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBinder struct {
	rebinds int
	unbinds int
}

func (b *countingBinder) Rebind()    { b.rebinds++ }
func (b *countingBinder) UnbindAll() { b.unbinds++ }

func newTestManager(user string) (*Manager, *testutil.FakeTransport, *countingBinder) {
	ft := testutil.NewFakeTransport()
	b := &countingBinder{}
	return NewManager(ft, testutil.NewSession(user), b), ft, b
}

func TestConnect_IdempotentWhileInFlight(t *testing.T) {
	m, ft, _ := newTestManager("u1")

	assert.True(t, m.Connect(context.Background()))
	assert.False(t, m.Connect(context.Background()))
	assert.Equal(t, 1, ft.Opens(), "exactly one underlying attempt")
	assert.True(t, m.Connecting())
}

func TestConnect_NoOpWhileConnected(t *testing.T) {
	m, ft, _ := newTestManager("u1")
	require.True(t, m.Connect(context.Background()))
	ft.SimulateConnect()

	assert.False(t, m.Connecting())
	assert.False(t, m.Connect(context.Background()))
	assert.Equal(t, 1, ft.Opens())
}

func TestConnect_ErrorReleasesFlag(t *testing.T) {
	m, ft, b := newTestManager("u1")
	require.True(t, m.Connect(context.Background()))

	ft.SimulateConnectError(errors.New("refused"))
	ft.SimulateConnectError(errors.New("refused again"))
	assert.False(t, m.Connecting())
	assert.Zero(t, b.rebinds)

	assert.True(t, m.Connect(context.Background()), "a new attempt is allowed after failure")
	assert.Equal(t, 2, ft.Opens())
}

func TestConnect_WithoutSession(t *testing.T) {
	m, ft, _ := newTestManager("")
	assert.False(t, m.Connect(context.Background()))
	assert.Zero(t, ft.Opens())
	assert.False(t, m.Connecting())
}

func TestConnect_PassesFreshCredential(t *testing.T) {
	m, ft, _ := newTestManager("u1")
	require.True(t, m.Connect(context.Background()))

	tok, err := ft.Credential(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestRebindOnEveryConnect(t *testing.T) {
	m, ft, b := newTestManager("u1")
	var ready atomic.Int32
	m.OnReady(func() { ready.Add(1) })

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	require.True(t, m.Connect(context.Background()))
	ft.SimulateConnect()
	// Automatic reconnects driven by the transport.
	ft.SimulateDisconnect("network")
	ft.SimulateConnect()
	ft.SimulateDisconnect("network")
	ft.SimulateConnect()

	assert.Equal(t, 3, b.rebinds)
	assert.Eventually(t, func() bool { return ready.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, fixed, m.LastConnectedAt())
	assert.Equal(t, 1, ft.Opens())
}

func TestDisconnect(t *testing.T) {
	m, ft, b := newTestManager("u1")

	require.True(t, m.Connect(context.Background()))
	ft.SimulateConnect()
	m.Disconnect()
	m.Disconnect()

	assert.Equal(t, 2, b.unbinds)
	assert.False(t, m.Connected())
	assert.False(t, m.Connecting())
	assert.True(t, m.Connect(context.Background()), "a disconnected manager can connect again")
}

func TestDisconnect_WhileTransportReconnecting(t *testing.T) {
	m, ft, b := newTestManager("u1")
	require.True(t, m.Connect(context.Background()))
	ft.SimulateConnect()

	// The transport dropped and is waiting to retry on its own.
	ft.SimulateDisconnect("network")
	require.False(t, m.Connected())
	require.False(t, m.Connecting())

	m.Disconnect()
	assert.Equal(t, 1, ft.Closes(), "close cancels the pending reconnect")
	assert.Equal(t, 1, b.unbinds)
}

func TestReadyCallbacksDoNotBlockConnect(t *testing.T) {
	m, ft, b := newTestManager("u1")
	release := make(chan struct{})
	done := make(chan struct{})
	m.OnReady(func() {
		<-release
		close(done)
	})

	require.True(t, m.Connect(context.Background()))
	ft.SimulateConnect()
	assert.Equal(t, 1, b.rebinds, "bindings are in place before ready work finishes")

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ready callback never ran")
	}
}
