package slobs

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Default websocket settings.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultWriteTimeout   = 5 * time.Second

	// closeGracePeriod bounds the close-frame write on shutdown.
	closeGracePeriod = 500 * time.Millisecond

	// defaultReadLimit caps one inbound frame. getScenes on a large
	// collection runs to a few hundred KB.
	defaultReadLimit = 16 << 20
)

// WebSocketConfig configures WebSocketTransport.
type WebSocketConfig struct {
	// URL of the SLOBS raw websocket endpoint,
	// normally ws://127.0.0.1:59650/api/websocket.
	URL string

	// ConnectTimeout bounds the dial and handshake. Default: 10s.
	ConnectTimeout time.Duration

	// WriteTimeout bounds each frame write. Default: 5s.
	WriteTimeout time.Duration

	// ReadLimit is the largest accepted inbound frame. Default: 16 MiB.
	ReadLimit int64

	// Header is sent with the upgrade request.
	Header http.Header
}

// WebSocketTransport implements Transport over gorilla/websocket.
//
// It connects once. When the connection drops it reports OnClose and stays
// closed; reconnecting means building a new transport and connector.
//
// Thread Safety:
//   - SendText and Close are safe for concurrent use.
//   - Handlers run on the read goroutine.
type WebSocketTransport struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer

	conn   *websocket.Conn
	connMu sync.RWMutex

	// gorilla allows one concurrent writer
	writeMu sync.Mutex

	handlers   TransportHandlers
	handlersMu sync.RWMutex

	done     *closeOnce
	readDone *closeOnce
}

var _ Transport = (*WebSocketTransport)(nil)

// NewWebSocketTransport creates an unopened transport.
func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ReadLimit == 0 {
		cfg.ReadLimit = defaultReadLimit
	}

	return &WebSocketTransport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		done:     newCloseOnce(),
		readDone: newCloseOnce(),
	}
}

// SetHandlers installs the callbacks. Call before Open.
func (t *WebSocketTransport) SetHandlers(h TransportHandlers) {
	t.handlersMu.Lock()
	t.handlers = h
	t.handlersMu.Unlock()
}

func (t *WebSocketTransport) getHandlers() TransportHandlers {
	t.handlersMu.RLock()
	defer t.handlersMu.RUnlock()
	return t.handlers
}

// Open dials SLOBS, runs OnOpen, and starts the read loop.
//
// Returns:
//   - error: ErrTransportClosed if already used, ErrConnectionFailed on dial failure
func (t *WebSocketTransport) Open(ctx context.Context) error {
	if t.done.IsClosed() {
		return ErrTransportClosed
	}

	t.connMu.Lock()
	if t.conn != nil {
		t.connMu.Unlock()
		return fmt.Errorf("%w: already open", ErrConnectionFailed)
	}
	t.connMu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	conn, resp, err := t.dialer.DialContext(dialCtx, t.cfg.URL, t.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, t.cfg.URL, err)
	}
	conn.SetReadLimit(t.cfg.ReadLimit)

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	// Close may have raced the dial.
	if t.done.IsClosed() {
		conn.Close()
		t.readDone.Close()
		return ErrTransportClosed
	}

	if h := t.getHandlers(); h.OnOpen != nil {
		h.OnOpen()
	}

	go t.readLoop(conn)
	return nil
}

// SendText writes one text frame. The write deadline is WriteTimeout or
// the context deadline, whichever is sooner.
func (t *WebSocketTransport) SendText(ctx context.Context, msg []byte) error {
	if t.done.IsClosed() {
		return ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.connMu.RLock()
	conn := t.conn
	t.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(t.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		if t.done.IsClosed() {
			return ErrTransportClosed
		}
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close sends a close frame and tears the connection down. The read loop
// then reports OnClose(nil). Safe to call more than once and from a handler.
func (t *WebSocketTransport) Close() error {
	alreadyClosed := t.done.IsClosed()
	t.done.Close()
	if alreadyClosed {
		return nil
	}

	t.connMu.RLock()
	conn := t.conn
	t.connMu.RUnlock()
	if conn == nil {
		t.readDone.Close()
		return nil
	}

	t.writeMu.Lock()
	//nolint:errcheck // best-effort close frame
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(closeGracePeriod))
	t.writeMu.Unlock()

	return conn.Close()
}

// Done is closed once the read loop has exited and OnClose has run.
func (t *WebSocketTransport) Done() <-chan struct{} {
	return t.readDone.Done()
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer t.readDone.Close()

	var closeErr error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !t.done.IsClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				closeErr = err
			}
			break
		}
		if h := t.getHandlers(); h.OnMessage != nil {
			h.OnMessage(data)
		}
	}

	t.done.Close()
	conn.Close()

	if h := t.getHandlers(); h.OnClose != nil {
		h.OnClose(closeErr)
	}
}
