package mcup

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Transport kinds accepted in a ServerConfig.
const (
	TransportStdio     = "stdio"
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Approval modes accepted in an ApprovalConfig. An empty mode disables the
// gate entirely.
const (
	ApprovalModeCLI         = "cli"
	ApprovalModeAutoApprove = "auto-approve"
	ApprovalModeAutoDeny    = "auto-deny"
)

// Config is the client configuration file.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Approval ApprovalConfig `yaml:"approval"`
	Servers  []ServerConfig `yaml:"servers"`
}

// ApprovalConfig selects the approval policy for mutating tool calls.
type ApprovalConfig struct {
	Mode     string   `yaml:"mode"`
	Keywords []string `yaml:"keywords"`
	Allow    []string `yaml:"allow"`
}

// ServerConfig describes one server and how to reach it.
type ServerConfig struct {
	Name      string   `yaml:"name"`
	Transport string   `yaml:"transport"`
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	URL       string   `yaml:"url"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	switch c.Approval.Mode {
	case "", ApprovalModeCLI, ApprovalModeAutoApprove, ApprovalModeAutoDeny:
	default:
		return fmt.Errorf("config: unknown approval mode %q", c.Approval.Mode)
	}

	seen := make(map[string]bool, len(c.Servers))
	for i := range c.Servers {
		sc := &c.Servers[i]
		if sc.Name == "" {
			return fmt.Errorf("config: server %d has no name", i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("config: duplicate server name %q", sc.Name)
		}
		seen[sc.Name] = true

		switch sc.Transport {
		case TransportStdio:
			if sc.Command == "" {
				return fmt.Errorf("config: server %q: stdio transport requires a command", sc.Name)
			}
		case TransportSSE, TransportWebSocket:
			if sc.URL == "" {
				return fmt.Errorf("config: server %q: %s transport requires a url", sc.Name, sc.Transport)
			}
		default:
			return fmt.Errorf("config: server %q: unknown transport %q", sc.Name, sc.Transport)
		}
	}
	return nil
}

// Server returns the named server entry, or nil.
func (c *Config) Server(name string) *ServerConfig {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i]
		}
	}
	return nil
}

// Dial builds and connects the transport this entry describes. For a stdio
// entry the server process is spawned; closing the returned Transport also
// stops the process.
func (sc *ServerConfig) Dial(ctx context.Context) (Transport, error) {
	switch sc.Transport {
	case TransportStdio:
		return StartServer(ctx, &ServerOptions{Command: sc.Command, Args: sc.Args})
	case TransportSSE:
		return DialSSE(ctx, sc.URL, nil)
	case TransportWebSocket:
		return DialWebSocket(ctx, sc.URL, nil)
	default:
		return nil, fmt.Errorf("dial %q: unknown transport %q", sc.Name, sc.Transport)
	}
}

// Classifier builds the mutation classifier this policy describes. Empty
// keywords select the default set.
func (a *ApprovalConfig) Classifier() *KeywordClassifier {
	c := NewKeywordClassifier()
	if len(a.Keywords) > 0 {
		c.Keywords = a.Keywords
	}
	c.Allow = a.Allow
	return c
}

// Approver builds the decision strategy this policy describes. Nil means the
// gate is disabled and no call is ever suspended.
func (a *ApprovalConfig) Approver(in io.Reader, out io.Writer) Approver {
	switch a.Mode {
	case ApprovalModeCLI:
		return &ConsoleApprover{In: in, Out: out}
	case ApprovalModeAutoApprove:
		return AutoApprover(true)
	case ApprovalModeAutoDeny:
		return AutoApprover(false)
	default:
		return nil
	}
}
