package mcup_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mcuphq/mcup-go"
)

// fakeTransport is an in-memory Transport for session tests. Outbound frames
// are recorded; the test injects inbound frames directly, or installs an
// onSend hook to play the server side.
type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	onSend  func(frame []byte)
	closed  bool
	recvErr error

	inbound   chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

func (f *fakeTransport) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return mcup.NewTransportError("send", mcup.ErrTransportClosed)
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	f.sent = append(f.sent, cp)
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook(cp)
	}
	return nil
}

func (f *fakeTransport) Receive() <-chan []byte {
	return f.inbound
}

func (f *fakeTransport) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recvErr
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.done)
		close(f.inbound)
	})
	return nil
}

// push delivers one inbound frame. Panics if the transport is closed, which
// in a test means the sequencing is wrong.
func (f *fakeTransport) push(frame string) {
	f.inbound <- []byte(frame)
}

// failWith records a terminal receive error and closes the inbound channel,
// simulating an abrupt disconnect.
func (f *fakeTransport) failWith(err error) {
	f.mu.Lock()
	f.recvErr = err
	f.mu.Unlock()
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.done)
		close(f.inbound)
	})
}

func (f *fakeTransport) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

// sentCount reports how many frames have been sent so far.
func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// outboundFrame is the loosely decoded shape of a recorded outbound frame.
type outboundFrame struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func decodeFrame(t *testing.T, frame []byte) outboundFrame {
	t.Helper()
	var out outboundFrame
	if err := json.Unmarshal(frame, &out); err != nil {
		t.Fatalf("decode outbound frame %s: %v", frame, err)
	}
	return out
}

// respondToHandshake installs an onSend hook answering the initialize request
// and swallowing the initialized notification, then delegates to next for
// everything else.
func (f *fakeTransport) respondToHandshake(next func(frame outboundFrame)) {
	f.onSend = func(frame []byte) {
		var out outboundFrame
		if err := json.Unmarshal(frame, &out); err != nil {
			return
		}
		switch out.Method {
		case "initialize":
			f.push(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":{`+
				`"protocolVersion":"2024-11-05",`+
				`"capabilities":{"tools":{"listChanged":true},"resources":{}},`+
				`"serverInfo":{"name":"fake-server","version":"1.0.0"}}}`, out.ID))
		case "notifications/initialized":
			// fire-and-forget, nothing to answer
		default:
			if next != nil {
				next(out)
			}
		}
	}
}

// newReadySession builds a session over a fake transport and walks it through
// the handshake. respond, if non-nil, plays the server for post-handshake
// requests.
func newReadySession(t *testing.T, respond func(frame outboundFrame), opts ...mcup.SessionOption) (*mcup.Session, *fakeTransport) {
	t.Helper()

	ft := newFakeTransport()
	ft.respondToHandshake(respond)

	session := mcup.NewSession(ft, opts...)
	t.Cleanup(func() { _ = session.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := session.Initialize(ctx, mcup.Implementation{Name: "mcup-test", Version: "0.0.1"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return session, ft
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}
