package mcup

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// RequestMeta is the optional metadata attached to a request's params.
type RequestMeta struct {
	// ProgressToken correlates notifications/progress messages with this
	// request.
	ProgressToken string `json:"progressToken,omitempty"`
}

// CallToolParams are the wire params of a tools/call request.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Meta      *RequestMeta           `json:"_meta,omitempty"`
}

// ToolContent is one content block of a tool result.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult is the server's answer to a tool call. IsError marks a
// tool-level failure reported inside a successful response.
type CallToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Tool describes one tool offered by the server.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ListToolsResult is the server's answer to tools/list.
type ListToolsResult struct {
	Tools      []Tool  `json:"tools"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// ResourceContents is one resolved resource.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ReadResourceResult is the server's answer to resources/read.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// Resource describes one resource offered by the server.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ListResourcesResult is the server's answer to resources/list.
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor *string    `json:"nextCursor,omitempty"`
}

// CallOption adjusts a single tool call.
type CallOption func(*CallToolParams)

// WithProgressToken attaches a progress token so the server can stream
// notifications/progress for this call.
func WithProgressToken(token string) CallOption {
	return func(p *CallToolParams) {
		p.Meta = &RequestMeta{ProgressToken: token}
	}
}

// NewProgressToken returns a fresh unique progress token.
func NewProgressToken() string {
	return uuid.NewString()
}

// CallTool invokes a tool on the server. The call is first classified: a
// mutating tool name suspends here until the approver produces a verdict,
// and a denial returns *ApprovalDeniedError with nothing sent on the wire.
// Approved and non-mutating calls are correlated and multiplexed; the caller
// suspends until its own response arrives.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]interface{}, opts ...CallOption) (*CallToolResult, error) {
	if args == nil {
		args = map[string]interface{}{}
	}

	if s.approver != nil && s.classifier.Classify(name, args) == Mutating {
		snapshot, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		s.logger.Debug().Str("tool", name).Msg("requesting approval for tool call")

		verdict, err := s.approver.Decide(ctx, ApprovalRequest{Method: name, Params: snapshot})
		if err != nil {
			return nil, err
		}
		if !verdict.Approved {
			s.logger.Info().Str("tool", name).Msg("tool call denied")
			return nil, &ApprovalDeniedError{Tool: name}
		}
		s.logger.Info().Str("tool", name).Msg("tool call approved")
	}

	params := CallToolParams{Name: name, Arguments: args}
	for _, opt := range opts {
		opt(&params)
	}

	var result CallToolResult
	if err := s.call(ctx, methodToolsCall, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type listToolsParams struct {
	Cursor *string `json:"cursor,omitempty"`
}

// ListTools retrieves the server's tool catalog. Never gated.
func (s *Session) ListTools(ctx context.Context) (*ListToolsResult, error) {
	var result ListToolsResult
	if err := s.call(ctx, methodToolsList, listToolsParams{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type readResourceParams struct {
	URI string `json:"uri"`
}

// ReadResource fetches a resource by URI. Resource reads never mutate and are
// never gated.
func (s *Session) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	var result ReadResourceResult
	if err := s.call(ctx, methodResourcesRead, readResourceParams{URI: uri}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResources retrieves the server's resource catalog.
func (s *Session) ListResources(ctx context.Context) (*ListResourcesResult, error) {
	var result ListResourcesResult
	if err := s.call(ctx, methodResourcesList, listToolsParams{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ping checks connection liveness.
func (s *Session) Ping(ctx context.Context) error {
	return s.call(ctx, methodPing, struct{}{}, nil)
}
