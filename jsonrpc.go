package mcup

import (
	"encoding/json"
	"errors"
	"fmt"
)

// jsonrpcVersion is the protocol version string for JSON-RPC 2.0.
const jsonrpcVersion = "2.0"

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700 // Invalid JSON was received
	ErrCodeInvalidRequest = -32600 // The JSON sent is not a valid Request object
	ErrCodeMethodNotFound = -32601 // The method does not exist / is not available
	ErrCodeInvalidParams  = -32602 // Invalid method parameter(s)
	ErrCodeInternalError  = -32603 // Internal error
)

// Request represents a JSON-RPC 2.0 request. The client sends requests to the
// server, and the server may send requests back (sampling and elicitation flows).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response. Exactly one of Result and Error
// is populated.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification represents a JSON-RPC 2.0 notification (a request without an id).
// Notifications are fire-and-forget and never answered.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RequestID is a union type holding a JSON-RPC request id, which may be a
// string, a number, or null.
//
// Because Go's encoding/json decodes JSON numbers as float64, the concrete
// type of Value differs depending on whether the ID was allocated locally
// (uint64 from the session counter) or decoded from the wire (float64).
// Use normalizeID to derive a comparable key.
type RequestID struct {
	Value interface{} // string | int64 | float64 | uint64 | nil
}

// MarshalJSON implements json.Marshaler for RequestID.
func (r RequestID) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value)
}

// UnmarshalJSON implements json.Unmarshaler for RequestID.
func (r *RequestID) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r.Value = v
	return nil
}

// errUnexpectedIDType is returned when normalizeID encounters an ID value
// that is not a supported JSON-RPC ID type (string, number).
var errUnexpectedIDType = errors.New("unexpected request ID type")

// errNullID is returned when normalizeID encounters a nil (JSON null) ID.
var errNullID = errors.New("null request ID")

// normalizeID normalizes request IDs to a string key for map matching.
// JSON unmarshals all numbers as float64, so integer-valued floats are
// formatted without decimals for consistent lookups.
func normalizeID(id interface{}) (string, error) {
	switch v := id.(type) {
	case nil:
		return "", errNullID
	case float64:
		if v >= 0 {
			u := uint64(v)
			if v == float64(u) {
				return fmt.Sprintf("%d", u), nil
			}
		} else {
			i := int64(v)
			if v == float64(i) {
				return fmt.Sprintf("%d", i), nil
			}
		}
		return fmt.Sprintf("%v", v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	case int:
		return fmt.Sprintf("%d", v), nil
	case uint64:
		return fmt.Sprintf("%d", v), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %T", errUnexpectedIDType, id)
	}
}
