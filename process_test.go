package mcup_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mcuphq/mcup-go"
)

func TestDefaultEnvironmentFiltersSecrets(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	t.Setenv("HOME", "/home/tester")
	t.Setenv("SUPER_SECRET_TOKEN", "hunter2")

	env := mcup.DefaultEnvironment()

	var sawPath, sawHome bool
	for _, entry := range env {
		switch {
		case entry == "PATH=/usr/bin":
			sawPath = true
		case entry == "HOME=/home/tester":
			sawHome = true
		case strings.HasPrefix(entry, "SUPER_SECRET_TOKEN="):
			t.Fatalf("secret leaked into child environment: %s", entry)
		}
	}
	if !sawPath || !sawHome {
		t.Fatalf("env = %v; want PATH and HOME inherited", env)
	}
}

func TestStartServerRequiresCommand(t *testing.T) {
	if _, err := mcup.StartServer(context.Background(), nil); err == nil {
		t.Fatal("StartServer(nil) succeeded")
	}
	if _, err := mcup.StartServer(context.Background(), &mcup.ServerOptions{}); err == nil {
		t.Fatal("StartServer with empty command succeeded")
	}
}

func TestStartServerUnknownBinary(t *testing.T) {
	_, err := mcup.StartServer(context.Background(), &mcup.ServerOptions{
		Command: "definitely-not-a-real-binary-mcup",
	})
	if err == nil {
		t.Fatal("StartServer on a missing binary succeeded")
	}
}

func TestServerProcessRoundTrip(t *testing.T) {
	// cat echoes stdin to stdout, which makes it a degenerate but complete
	// newline-framed server.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proc, err := mcup.StartServer(ctx, &mcup.ServerOptions{Command: "cat"})
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	t.Cleanup(func() { _ = proc.Close() })

	frame := `{"jsonrpc":"2.0","method":"ping","id":1}`
	if err := proc.Send(ctx, []byte(frame)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-proc.Receive():
		if string(got) != frame {
			t.Fatalf("echo = %q; want %q", got, frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("echo never received")
	}

	if err := proc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Idempotent.
	if err := proc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestServerProcessCloseStopsChild(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proc, err := mcup.StartServer(ctx, &mcup.ServerOptions{
		Command: "sleep",
		Args:    []string{"60"},
	})
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}

	start := time.Now()
	if err := proc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// The child ignored no signals, so Close should be well under the
	// kill grace period.
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("Close took %v", elapsed)
	}
}
