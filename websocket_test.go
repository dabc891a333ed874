package mcup_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/mcuphq/mcup-go"
)

// newEchoSocketServer accepts one websocket connection and echoes every text
// message back.
func newEchoSocketServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{"mcp"},
		})
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()

		if conn.Subprotocol() != "mcp" {
			t.Errorf("negotiated subprotocol = %q", conn.Subprotocol())
		}

		ctx := r.Context()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketTransportRoundTrip(t *testing.T) {
	srv := newEchoSocketServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := mcup.DialWebSocket(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	frame := `{"jsonrpc":"2.0","method":"ping","id":1}`
	if err := tr.Send(ctx, []byte(frame)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-tr.Receive():
		if string(got) != frame {
			t.Fatalf("echo = %q; want %q", got, frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("echo never received")
	}
}

func TestWebSocketTransportServerClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := mcup.DialWebSocket(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-tr.Receive():
			if !ok {
				// A clean peer closure is not an error.
				if err := tr.Err(); err != nil {
					t.Fatalf("Err() = %v after normal closure", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("Receive never closed after server-side closure")
		}
	}
}

func TestWebSocketTransportSendAfterClose(t *testing.T) {
	srv := newEchoSocketServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := mcup.DialWebSocket(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := tr.Send(ctx, []byte(`{}`)); !errors.Is(err, mcup.ErrTransportClosed) {
		t.Fatalf("Send after Close = %v; want transport closed", err)
	}
}

func TestDialWebSocketFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no sockets here", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := mcup.DialWebSocket(ctx, wsURL(srv), nil); !errors.Is(err, &mcup.TransportError{}) {
		t.Fatalf("DialWebSocket = %v; want transport error", err)
	}
}

func TestWebSocketSessionEndToEnd(t *testing.T) {
	// A real server process is overkill here; a socket server that speaks the
	// handshake exercises the full session path over this transport.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"mcp"}})
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			frame := decodeFrame(t, data)
			switch frame.Method {
			case "initialize":
				reply := `{"jsonrpc":"2.0","id":` + string(frame.ID) + `,"result":{` +
					`"protocolVersion":"2024-11-05","capabilities":{"tools":{}},` +
					`"serverInfo":{"name":"socket-server","version":"1.0.0"}}}`
				if err := conn.Write(ctx, websocket.MessageText, []byte(reply)); err != nil {
					return
				}
			case "ping":
				reply := `{"jsonrpc":"2.0","id":` + string(frame.ID) + `,"result":{}}`
				if err := conn.Write(ctx, websocket.MessageText, []byte(reply)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := mcup.DialWebSocket(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}

	session := mcup.NewSession(tr)
	t.Cleanup(func() { _ = session.Close() })

	if _, err := session.Initialize(ctx, mcup.Implementation{Name: "mcup-test", Version: "0.0.1"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := session.ServerInfo().Name; got != "socket-server" {
		t.Fatalf("server info name = %q", got)
	}
	if err := session.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
