package mcup

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// wsSubprotocol is the negotiated subprotocol for protocol sessions.
const wsSubprotocol = "mcp"

// WebSocketOptions configures the socket transport.
type WebSocketOptions struct {
	// HTTPClient is used for the opening handshake. Nil defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Header is added to the handshake request.
	Header http.Header
}

// WebSocketTransport carries one JSON frame per websocket message over a
// full-duplex connection.
type WebSocketTransport struct {
	conn   *websocket.Conn
	cancel context.CancelFunc

	writeMu sync.Mutex

	inbound chan []byte
	done    chan struct{}

	mu        sync.Mutex
	closed    bool
	recvErr   error
	closeOnce sync.Once
}

// DialWebSocket connects to the server at rawURL, negotiating the "mcp"
// subprotocol, and starts reading inbound frames.
func DialWebSocket(ctx context.Context, rawURL string, opts *WebSocketOptions) (*WebSocketTransport, error) {
	if opts == nil {
		opts = &WebSocketOptions{}
	}

	conn, resp, err := websocket.Dial(ctx, rawURL, &websocket.DialOptions{
		HTTPClient:   opts.HTTPClient,
		HTTPHeader:   opts.Header,
		Subprotocols: []string{wsSubprotocol},
	})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, NewTransportError("dial websocket", err)
	}
	conn.SetReadLimit(maxMessageSize)

	readCtx, cancel := context.WithCancel(context.Background())
	t := &WebSocketTransport{
		conn:    conn,
		cancel:  cancel,
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	go t.readLoop(readCtx)
	return t, nil
}

// Send writes one frame as a websocket text message. Concurrent senders are
// serialized by an internal mutex.
func (t *WebSocketTransport) Send(ctx context.Context, frame []byte) error {
	select {
	case <-t.done:
		return NewTransportError("send", ErrTransportClosed)
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.done:
		return NewTransportError("send", ErrTransportClosed)
	default:
	}

	if err := wsjson.Write(ctx, t.conn, json.RawMessage(frame)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewTransportError("write frame", err)
	}
	return nil
}

// Receive returns the inbound frame channel.
func (t *WebSocketTransport) Receive() <-chan []byte {
	return t.inbound
}

// Err returns the terminal connection failure, if any. Nil after a normal
// close from either side.
func (t *WebSocketTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recvErr
}

// Close performs a normal closure handshake and tears the connection down.
// Safe to call multiple times.
func (t *WebSocketTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.done)
		_ = t.conn.Close(websocket.StatusNormalClosure, "session closed")
		t.cancel()
	})
	return nil
}

// readLoop reads raw messages off the connection. Frames are passed through
// undecoded; envelope validation is the session's job, so a malformed frame
// costs one dropped message rather than the connection.
func (t *WebSocketTransport) readLoop(ctx context.Context) {
	defer close(t.inbound)

	for {
		_, data, err := t.conn.Read(ctx)
		if err != nil {
			t.mu.Lock()
			status := websocket.CloseStatus(err)
			if !t.closed && status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				t.recvErr = err
			}
			t.mu.Unlock()
			return
		}

		select {
		case t.inbound <- data:
		case <-t.done:
			return
		}
	}
}
