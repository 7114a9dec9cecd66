package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"chatsync/internal/observability"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Catch-up snapshots can be large.
	maxMessageSize = 1 << 20

	defaultSendBuffer = 256
)

// Options configure a WSTransport.
type Options struct {
	URL string
	// MaxReconnectAttempts bounds automatic reconnection after an unexpected
	// drop. Zero disables automatic reconnection.
	MaxReconnectAttempts int
	// ReconnectDelay is the fixed wait before every reconnect attempt.
	ReconnectDelay time.Duration
	SendBuffer     int
	Dialer         *websocket.Dialer
}

// WSTransport is a websocket client implementing Transport. Frames are JSON
// envelopes; inbound events are dispatched serially on the read goroutine.
type WSTransport struct {
	opts      Options
	dialer    *websocket.Dialer
	listeners *listenerSet
	logger    *observability.SyncLogger

	mu        sync.Mutex
	hooks     Hooks
	creds     CredentialFunc
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	dialing   bool
	connected bool
	closed    bool
	stopCh    chan struct{}
}

// NewWSTransport creates a disconnected websocket transport.
func NewWSTransport(opts Options) *WSTransport {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	return &WSTransport{
		opts:      opts,
		dialer:    dialer,
		listeners: newListenerSet(),
		logger:    observability.NewSyncLogger("transport"),
		stopCh:    make(chan struct{}),
	}
}

// SetHooks replaces the lifecycle hooks.
func (w *WSTransport) SetHooks(h Hooks) {
	w.mu.Lock()
	w.hooks = h
	w.mu.Unlock()
}

// Connected reports whether the websocket is up.
func (w *WSTransport) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// On attaches a listener for event.
func (w *WSTransport) On(event string, h Handler) func() {
	return w.listeners.add(event, h)
}

// ListenerCount returns how many listeners are attached for event.
func (w *WSTransport) ListenerCount(event string) int {
	return w.listeners.count(event)
}

// Open starts a connection attempt in the background.
func (w *WSTransport) Open(ctx context.Context, creds CredentialFunc) {
	w.mu.Lock()
	w.creds = creds
	if w.closed {
		w.closed = false
		w.stopCh = make(chan struct{})
	}
	w.mu.Unlock()

	go func() {
		_ = w.dial(ctx)
	}()
}

// Close disconnects and stops any pending reconnect loop. Safe to call repeatedly.
func (w *WSTransport) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.stopCh)
	}
	conn := w.conn
	w.conn = nil
	wasConnected := w.connected
	w.connected = false
	if w.done != nil {
		close(w.done)
		w.done = nil
	}
	hooks := w.hooks
	w.mu.Unlock()

	if conn == nil {
		return nil
	}
	observability.SocketConnected.Set(0)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
		time.Now().Add(writeWait))
	err := conn.Close()
	if wasConnected && hooks.OnDisconnect != nil {
		hooks.OnDisconnect("client disconnect")
	}
	return err
}

// Emit sends one event. It never blocks: a full buffer drops the frame.
func (w *WSTransport) Emit(event string, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		observability.SocketEmitsTotal.WithLabelValues(event, "encode_error").Inc()
		return fmt.Errorf("encode %s: %w", event, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		observability.SocketEmitsTotal.WithLabelValues(event, "not_connected").Inc()
		return ErrNotConnected
	}
	select {
	case w.send <- frame:
		observability.SocketEmitsTotal.WithLabelValues(event, "queued").Inc()
		return nil
	default:
		observability.SendBackpressureDrops.Inc()
		observability.SocketEmitsTotal.WithLabelValues(event, "dropped").Inc()
		return ErrSendBufferFull
	}
}

func (w *WSTransport) dial(ctx context.Context) error {
	w.mu.Lock()
	if w.dialing || w.connected {
		w.mu.Unlock()
		return errBusy
	}
	w.dialing = true
	creds := w.creds
	w.mu.Unlock()

	conn, err := w.handshake(ctx, creds)

	w.mu.Lock()
	w.dialing = false
	hooks := w.hooks
	if err != nil {
		w.mu.Unlock()
		observability.SocketConnectionsTotal.WithLabelValues("error").Inc()
		if hooks.OnConnectError != nil {
			hooks.OnConnectError(err)
		}
		return err
	}
	if w.closed {
		w.mu.Unlock()
		_ = conn.Close()
		err := errors.New("transport closed during dial")
		if hooks.OnConnectError != nil {
			hooks.OnConnectError(err)
		}
		return err
	}
	send := make(chan []byte, w.opts.SendBuffer)
	done := make(chan struct{})
	w.conn = conn
	w.send = send
	w.done = done
	w.connected = true
	w.mu.Unlock()

	observability.SocketConnectionsTotal.WithLabelValues("success").Inc()
	observability.SocketConnected.Set(1)

	go w.writePump(conn, send, done)
	// OnConnect runs before the read pump starts so listeners bound in the
	// hook see the very first frame of the new connection.
	if hooks.OnConnect != nil {
		hooks.OnConnect()
	}
	go w.readPump(conn)
	return nil
}

func (w *WSTransport) handshake(ctx context.Context, creds CredentialFunc) (*websocket.Conn, error) {
	header := http.Header{}
	if creds != nil {
		token, err := creds(ctx)
		if err != nil {
			return nil, fmt.Errorf("credential: %w", err)
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := w.dialer.DialContext(ctx, w.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", w.opts.URL, err)
	}
	return conn, nil
}

// readPump pumps frames from the websocket to the listeners.
func (w *WSTransport) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			w.handleDrop(conn, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
			w.logger.LogDropped(context.Background(), "frame", "malformed envelope", nil)
			continue
		}
		observability.SocketEventsTotal.WithLabelValues(env.Event).Inc()
		for _, h := range w.listeners.snapshot(env.Event) {
			h(env.Data)
		}
	}
}

// writePump pumps queued frames to the websocket and keeps it alive with pings.
func (w *WSTransport) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case frame := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (w *WSTransport) handleDrop(conn *websocket.Conn, cause error) {
	w.mu.Lock()
	if w.conn != conn {
		// Close already tore this connection down.
		w.mu.Unlock()
		return
	}
	w.conn = nil
	w.connected = false
	if w.done != nil {
		close(w.done)
		w.done = nil
	}
	intentional := w.closed
	stop := w.stopCh
	hooks := w.hooks
	w.mu.Unlock()

	_ = conn.Close()
	observability.SocketConnected.Set(0)

	reason := cause.Error()
	if websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		reason = "server closed connection"
	}
	if hooks.OnDisconnect != nil {
		hooks.OnDisconnect(reason)
	}
	if !intentional && w.opts.MaxReconnectAttempts > 0 {
		go w.reconnectLoop(stop)
	}
}

// reconnectLoop retries with a fixed delay up to the configured ceiling and
// then leaves the transport disconnected.
func (w *WSTransport) reconnectLoop(stop <-chan struct{}) {
	for attempt := 1; attempt <= w.opts.MaxReconnectAttempts; attempt++ {
		select {
		case <-stop:
			return
		case <-time.After(w.opts.ReconnectDelay):
		}

		w.logger.LogLifecycle(context.Background(), "reconnect_attempt", map[string]interface{}{
			"attempt": attempt,
			"max":     w.opts.MaxReconnectAttempts,
		})
		err := w.dial(context.Background())
		if err == nil || errors.Is(err, errBusy) {
			return
		}
	}
	w.logger.LogLifecycle(context.Background(), "reconnect_exhausted", map[string]interface{}{
		"attempts": w.opts.MaxReconnectAttempts,
	})
}
