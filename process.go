package mcup

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const processGracePeriod = 3 * time.Second

// inheritedEnvVars are the environment variables a spawned server inherits by
// default. Everything else is withheld so credentials in the client's
// environment do not leak into arbitrary server processes.
var inheritedEnvVars = []string{"HOME", "LOGNAME", "PATH", "SHELL", "TERM", "USER"}

// ServerOptions configures how a stdio server process is spawned.
type ServerOptions struct {
	// Command is the server executable, resolved from PATH if not absolute.
	Command string

	// Args are passed to the command verbatim.
	Args []string

	// Env is the child environment. Nil selects the filtered default
	// environment (see DefaultEnvironment).
	Env []string

	// Dir is the working directory. Empty inherits the parent's.
	Dir string

	// Stderr receives the child's stderr. Nil defaults to os.Stderr.
	Stderr io.Writer
}

// DefaultEnvironment returns the filtered environment passed to spawned
// servers when ServerOptions.Env is nil.
func DefaultEnvironment() []string {
	env := make([]string, 0, len(inheritedEnvVars))
	for _, key := range inheritedEnvVars {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	return env
}

// ServerProcess is a running stdio server child process wired to a
// StdioTransport. It implements Transport by delegation; Close tears down
// both the transport and the process.
type ServerProcess struct {
	transport *StdioTransport
	cmd       *exec.Cmd
	closeOnce sync.Once
	closeErr  error
}

// StartServer spawns the configured command, connects a StdioTransport to its
// stdin/stdout, and returns the process handle. The returned ServerProcess
// must be closed when done.
func StartServer(ctx context.Context, opts *ServerOptions) (*ServerProcess, error) {
	if opts == nil || opts.Command == "" {
		return nil, fmt.Errorf("start server: no command configured")
	}

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	cmd.Dir = opts.Dir

	env := opts.Env
	if env == nil {
		env = DefaultEnvironment()
	}
	cmd.Env = env

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Command, err)
	}

	// Child stdout is our read side; child stdin is our write side.
	return &ServerProcess{
		transport: NewStdioTransport(stdout, stdin),
		cmd:       cmd,
	}, nil
}

// Send implements Transport.
func (p *ServerProcess) Send(ctx context.Context, frame []byte) error {
	return p.transport.Send(ctx, frame)
}

// Receive implements Transport.
func (p *ServerProcess) Receive() <-chan []byte {
	return p.transport.Receive()
}

// Err implements Transport.
func (p *ServerProcess) Err() error {
	return p.transport.Err()
}

// Close stops the child process and closes the transport. The child gets an
// interrupt first and a grace period to exit before being killed. Safe to
// call multiple times.
func (p *ServerProcess) Close() error {
	p.closeOnce.Do(func() {
		// Close the transport first to unblock any pending reads.
		p.closeErr = p.transport.Close()

		if p.cmd.Process == nil {
			return
		}
		_ = p.cmd.Process.Signal(os.Interrupt)

		done := make(chan struct{})
		go func() {
			_ = p.cmd.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(processGracePeriod):
			_ = p.cmd.Process.Kill()
			<-done
		}
	})
	return p.closeErr
}
