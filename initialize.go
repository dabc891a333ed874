package mcup

import (
	"context"
	"fmt"
)

// protocolVersion is the protocol revision this client speaks.
const protocolVersion = "2024-11-05"

// Implementation identifies a protocol participant (client or server).
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities are declared by the client during the handshake.
type ClientCapabilities struct {
	Experimental map[string]interface{} `json:"experimental,omitempty"`
}

// ToolsCapability describes the server's tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability describes the server's resource support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability describes the server's prompt support.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// LoggingCapability describes the server's log-forwarding support.
type LoggingCapability struct{}

// ServerCapabilities is the negotiated capability set: what operations the
// peer supports. Established once during the handshake and read-only for the
// life of the session.
type ServerCapabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Logging   *LoggingCapability   `json:"logging,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}

// Initialize performs the capability handshake and transitions the session to
// Ready. It must be called exactly once; repeat calls fail with a state
// error. Any failure (timeout, protocol mismatch, transport breakage) is
// terminal: the session closes and surfaces a *HandshakeError.
func (s *Session) Initialize(ctx context.Context, info Implementation) (*ServerCapabilities, error) {
	s.stateMu.Lock()
	if s.state != StateUninitialized {
		st := s.state
		s.stateMu.Unlock()
		return nil, fmt.Errorf("initialize: session is %s", st)
	}
	s.state = StateInitializing
	s.stateMu.Unlock()

	if s.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.handshakeTimeout)
		defer cancel()
	}

	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    s.clientCapabilities,
		ClientInfo:      info,
	}

	var result initializeResult
	if err := s.roundTrip(ctx, methodInitialize, params, &result); err != nil {
		s.Close()
		return nil, NewHandshakeError("initialize request failed", err)
	}

	if result.ProtocolVersion == "" {
		s.Close()
		return nil, NewHandshakeError("server omitted protocol version", nil)
	}
	if result.ProtocolVersion != protocolVersion {
		s.Close()
		return nil, NewHandshakeError(
			fmt.Sprintf("protocol version mismatch: client %s, server %s",
				protocolVersion, result.ProtocolVersion), nil)
	}

	caps := result.Capabilities
	s.stateMu.Lock()
	s.caps = &caps
	s.serverInfo = result.ServerInfo
	s.state = StateReady
	s.stateMu.Unlock()

	if err := s.sendNotification(ctx, notifyInitialized, nil); err != nil {
		s.Close()
		return nil, NewHandshakeError("send initialized notification", err)
	}

	s.logger.Info().
		Str("server", result.ServerInfo.Name).
		Str("version", result.ServerInfo.Version).
		Msg("session ready")
	return &caps, nil
}

// Capabilities returns the negotiated capability set, or nil before the
// handshake completes. The returned value is immutable for the session's
// lifetime.
func (s *Session) Capabilities() *ServerCapabilities {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.caps
}

// ServerInfo returns the peer's self-description from the handshake. Zero
// before the session is Ready.
func (s *Session) ServerInfo() Implementation {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.serverInfo
}
