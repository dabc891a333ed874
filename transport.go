package mcup

import (
	"context"
	"errors"
)

// ErrTransportClosed is returned when operations are attempted on a closed
// transport.
var ErrTransportClosed = errors.New("transport closed")

// Transport abstracts the underlying duplex channel carrying framed protocol
// messages. Three implementations ship with this package: StdioTransport
// (newline-delimited JSON over a pipe), SSETransport (HTTP event stream
// inbound, POST outbound), and WebSocketTransport (full-duplex socket).
//
// A Transport moves opaque frames; it performs no correlation and no envelope
// validation. That is the Session's job, which keeps the engine
// transport-agnostic.
type Transport interface {
	// Send transmits one framed message. Implementations serialize
	// concurrent Send calls internally so interleaved partial frames are
	// impossible. Returns ErrTransportClosed (possibly wrapped) after Close.
	Send(ctx context.Context, frame []byte) error

	// Receive returns the inbound frame channel. The channel is closed when
	// the transport terminates, orderly or not; Err distinguishes the two.
	// There is a single reader (the session read loop).
	Receive() <-chan []byte

	// Err reports the terminal receive failure, if any, after the Receive
	// channel has closed. It returns nil for an orderly shutdown (EOF or
	// local Close).
	Err() error

	// Close shuts down the transport and releases underlying resources.
	// Blocked Send and Receive calls unblock. Safe to call multiple times.
	Close() error
}
