package mcup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	initialBufferSize = 64 * 1024       // 64KiB
	maxMessageSize    = 10 * 1024 * 1024 // 10MiB; tool results and base64 payloads exceed the default
)

// StdioTransport carries newline-delimited JSON frames over an io.Reader and
// io.Writer pair, typically the stdout/stdin of a spawned server process.
// See StartServer for the subprocess binding.
type StdioTransport struct {
	reader io.Reader
	writer io.Writer

	writeMu sync.Mutex

	inbound chan []byte
	done    chan struct{}

	mu        sync.Mutex
	closed    bool
	recvErr   error
	closeOnce sync.Once
}

// NewStdioTransport creates a stdio transport over the given reader and
// writer and starts its background read goroutine.
func NewStdioTransport(reader io.Reader, writer io.Writer) *StdioTransport {
	t := &StdioTransport{
		reader:  reader,
		writer:  writer,
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Send writes one frame followed by a newline delimiter. Concurrent senders
// are serialized by an internal mutex so frames never interleave.
func (t *StdioTransport) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.done:
		return NewTransportError("send", ErrTransportClosed)
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	// Re-check after acquiring the lock: Close may have won the race.
	select {
	case <-t.done:
		return NewTransportError("send", ErrTransportClosed)
	default:
	}

	if err := writeAll(t.writer, frame); err != nil {
		return NewTransportError("write frame", err)
	}
	if err := writeAll(t.writer, []byte{'\n'}); err != nil {
		return NewTransportError("write delimiter", err)
	}
	return nil
}

// writeAll writes data completely, handling short writes.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("writer returned zero bytes written without error")
		}
		data = data[n:]
	}
	return nil
}

// Receive returns the inbound frame channel. It is closed when the underlying
// reader terminates or Close is called.
func (t *StdioTransport) Receive() <-chan []byte {
	return t.inbound
}

// Err returns the terminal scanner error, if any. Nil after a clean EOF or a
// local Close.
func (t *StdioTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recvErr
}

// Close shuts down the transport. Safe to call multiple times. If the reader
// or writer also implement io.Closer they are closed, which unblocks a read
// loop parked on a pipe.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		close(t.done)
		if c, ok := t.reader.(io.Closer); ok {
			_ = c.Close()
		}
		if c, ok := t.writer.(io.Closer); ok {
			_ = c.Close()
		}
	})
	return nil
}

// readLoop scans newline-delimited frames into the inbound channel until EOF,
// a scanner failure, or Close.
func (t *StdioTransport) readLoop() {
	defer close(t.inbound)

	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, initialBufferSize), maxMessageSize)

	for scanner.Scan() {
		// The scanner reuses its buffer across Scan calls; hand out a copy.
		line := scanner.Bytes()
		frame := make([]byte, len(line))
		copy(frame, line)

		select {
		case t.inbound <- frame:
		case <-t.done:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			err = fmt.Errorf("message exceeded %d byte limit: %w", maxMessageSize, err)
		}
		t.mu.Lock()
		// A read error after a local Close is just the pipe being torn down.
		if !t.closed {
			t.recvErr = err
		}
		t.mu.Unlock()
	}
}
