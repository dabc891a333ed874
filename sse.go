package mcup

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// SSEOptions configures the HTTP event-stream transport.
type SSEOptions struct {
	// HTTPClient is used for both the event stream and outbound POSTs.
	// Nil defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Header is added to every request (auth tokens and the like).
	Header http.Header
}

// SSETransport pairs a long-lived server-push event stream (inbound frames)
// with a separate POST channel (outbound frames). The server's first event
// must be an "endpoint" event whose data is the POST target, resolved
// relative to the stream URL; subsequent "message" events carry protocol
// frames.
type SSETransport struct {
	client    *http.Client
	header    http.Header
	streamURL *url.URL

	endpoint      *url.URL
	endpointOnce  sync.Once
	endpointReady chan struct{}

	inbound chan []byte
	done    chan struct{}
	cancel  context.CancelFunc

	mu        sync.Mutex
	closed    bool
	recvErr   error
	closeOnce sync.Once
}

// DialSSE connects to the event stream at rawURL and starts reading it. The
// stream lives until ctx is cancelled or Close is called.
func DialSSE(ctx context.Context, rawURL string, opts *SSEOptions) (*SSETransport, error) {
	if opts == nil {
		opts = &SSEOptions{}
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	streamURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewTransportError("parse stream URL", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, streamURL.String(), nil)
	if err != nil {
		cancel()
		return nil, NewTransportError("build stream request", err)
	}
	for key, values := range opts.Header {
		req.Header[key] = values
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, NewTransportError("connect event stream", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, NewTransportError("connect event stream",
			fmt.Errorf("unexpected status %s", resp.Status))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return nil, NewTransportError("connect event stream",
			fmt.Errorf("unexpected content type %q", ct))
	}

	t := &SSETransport{
		client:        client,
		header:        opts.Header,
		streamURL:     streamURL,
		endpointReady: make(chan struct{}),
		inbound:       make(chan []byte, 16),
		done:          make(chan struct{}),
		cancel:        cancel,
	}
	go t.readLoop(resp.Body)
	return t, nil
}

// Send POSTs one frame to the endpoint announced by the server. It blocks
// until the endpoint event has arrived, the context ends, or the transport
// closes.
func (t *SSETransport) Send(ctx context.Context, frame []byte) error {
	select {
	case <-t.endpointReady:
	case <-t.done:
		return NewTransportError("send", ErrTransportClosed)
	case <-ctx.Done():
		return ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint.String(), bytes.NewReader(frame))
	if err != nil {
		return NewTransportError("build post request", err)
	}
	for key, values := range t.header {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewTransportError("post frame", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewTransportError("post frame", fmt.Errorf("unexpected status %s", resp.Status))
	}
	return nil
}

// Receive returns the inbound frame channel.
func (t *SSETransport) Receive() <-chan []byte {
	return t.inbound
}

// Err returns the terminal stream failure, if any.
func (t *SSETransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recvErr
}

// Close tears down the event stream. Safe to call multiple times.
func (t *SSETransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.done)
		t.cancel()
	})
	return nil
}

// readLoop parses the event stream. Fields follow the text/event-stream
// grammar: "event:" names the event, "data:" lines accumulate (joined by
// newline), a blank line dispatches, ":" lines are comments.
func (t *SSETransport) readLoop(body io.ReadCloser) {
	defer close(t.inbound)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, initialBufferSize), maxMessageSize)

	var eventName string
	var data []string

	dispatch := func() {
		defer func() {
			eventName = ""
			data = nil
		}()
		if len(data) == 0 {
			return
		}
		payload := strings.Join(data, "\n")

		switch eventName {
		case "endpoint":
			ref, err := url.Parse(payload)
			if err != nil {
				return
			}
			t.endpointOnce.Do(func() {
				t.endpoint = t.streamURL.ResolveReference(ref)
				close(t.endpointReady)
			})
		case "", "message":
			select {
			case t.inbound <- []byte(payload):
			case <-t.done:
			}
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// id:, retry:, unknown fields: not used by this protocol
		}

		select {
		case <-t.done:
			return
		default:
		}
	}
	dispatch()

	if err := scanner.Err(); err != nil {
		t.mu.Lock()
		if !t.closed {
			t.recvErr = err
		}
		t.mu.Unlock()
	}
}
