package mcup

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyResult indicates the server returned a successful response with a
// null result where the caller expected a value.
var ErrEmptyResult = errors.New("server returned empty result")

// ErrSessionNotReady is returned when a call is attempted before Initialize
// has completed or after the session has been closed.
var ErrSessionNotReady = errors.New("session is not ready")

// RemoteError wraps an explicit error response from the server.
// It implements error, errors.Is, and errors.As. A RemoteError affects only
// the call it answers; the session stays usable.
type RemoteError struct {
	err *Error
}

// NewRemoteError creates a RemoteError wrapping a JSON-RPC error object.
func NewRemoteError(err *Error) *RemoteError {
	return &RemoteError{err: err}
}

// Error implements the error interface.
// Data is deliberately excluded; it is server-controlled and may contain
// sensitive information. Use Data() to access it explicitly.
func (e *RemoteError) Error() string {
	if e.err == nil {
		return "remote error: <nil>"
	}
	return fmt.Sprintf("remote error: code=%d message=%q", e.err.Code, e.err.Message)
}

// Code returns the JSON-RPC error code.
func (e *RemoteError) Code() int {
	if e.err == nil {
		return 0
	}
	return e.err.Code
}

// Message returns the JSON-RPC error message.
func (e *RemoteError) Message() string {
	if e.err == nil {
		return ""
	}
	return e.err.Message
}

// Data returns the raw JSON-RPC error data, if any.
func (e *RemoteError) Data() json.RawMessage {
	if e.err == nil {
		return nil
	}
	return e.err.Data
}

// Is implements errors.Is by comparing error codes.
func (e *RemoteError) Is(target error) bool {
	t, ok := target.(*RemoteError)
	if !ok {
		return false
	}
	if e.err == nil || t.err == nil {
		return e.err == t.err
	}
	return e.err.Code == t.err.Code
}

// TransportError wraps IO/connection failures. Transport errors are fatal to
// the session: the read loop terminates and all pending calls are cancelled.
type TransportError struct {
	msg   string
	cause error
}

// NewTransportError creates a TransportError with a message and optional cause.
func NewTransportError(msg string, cause error) *TransportError {
	return &TransportError{msg: msg, cause: cause}
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("transport error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("transport error: %s", e.msg)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.cause
}

// Is implements errors.Is by matching all TransportError instances.
func (e *TransportError) Is(target error) bool {
	_, ok := target.(*TransportError)
	return ok
}

// ProtocolError reports a malformed frame. Protocol errors are recoverable:
// the offending frame is logged and dropped, the session stays up.
type ProtocolError struct {
	msg   string
	cause error
}

func newProtocolError(msg string, cause error) *ProtocolError {
	return &ProtocolError{msg: msg, cause: cause}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("protocol error: %s", e.msg)
}

// Unwrap returns the underlying cause.
func (e *ProtocolError) Unwrap() error {
	return e.cause
}

// Is implements errors.Is by matching all ProtocolError instances.
func (e *ProtocolError) Is(target error) bool {
	_, ok := target.(*ProtocolError)
	return ok
}

// HandshakeError reports a failed initialization. The session never reaches
// Ready and transitions directly to Closed.
type HandshakeError struct {
	msg   string
	cause error
}

// NewHandshakeError creates a HandshakeError with a message and optional cause.
func NewHandshakeError(msg string, cause error) *HandshakeError {
	return &HandshakeError{msg: msg, cause: cause}
}

// Error implements the error interface.
func (e *HandshakeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("handshake error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("handshake error: %s", e.msg)
}

// Unwrap returns the underlying cause.
func (e *HandshakeError) Unwrap() error {
	return e.cause
}

// Is implements errors.Is by matching all HandshakeError instances.
func (e *HandshakeError) Is(target error) bool {
	_, ok := target.(*HandshakeError)
	return ok
}

// TimeoutError represents a per-call deadline expiry. Only the timed-out call
// is affected.
type TimeoutError struct {
	msg   string
	cause error
}

// NewTimeoutError creates a TimeoutError with the given message and cause.
func NewTimeoutError(msg string, cause error) *TimeoutError {
	return &TimeoutError{msg: msg, cause: cause}
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("timeout error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("timeout error: %s", e.msg)
}

// Unwrap returns the underlying cause.
func (e *TimeoutError) Unwrap() error {
	return e.cause
}

// Is implements errors.Is by matching all TimeoutError instances.
func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// CanceledError represents an explicit cancellation: a caller-side context
// cancel, or session close resolving every outstanding call.
type CanceledError struct {
	msg   string
	cause error
}

// NewCanceledError creates a CanceledError with the given message and cause.
func NewCanceledError(msg string, cause error) *CanceledError {
	return &CanceledError{msg: msg, cause: cause}
}

// Error implements the error interface.
func (e *CanceledError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("canceled: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("canceled: %s", e.msg)
}

// Unwrap returns the underlying cause.
func (e *CanceledError) Unwrap() error {
	return e.cause
}

// Is implements errors.Is by matching all CanceledError instances.
func (e *CanceledError) Is(target error) bool {
	_, ok := target.(*CanceledError)
	return ok
}

// ApprovalDeniedError reports that the approval gate rejected a gated call.
// Nothing was sent on the wire; the registry never saw the call. Deliberately
// distinct from transport and protocol failures so callers and users can tell
// "you said no" apart from "the network broke".
type ApprovalDeniedError struct {
	// Tool is the name of the rejected tool call.
	Tool string
}

// Error implements the error interface.
func (e *ApprovalDeniedError) Error() string {
	return fmt.Sprintf("approval denied: tool call %q was rejected", e.Tool)
}

// Is implements errors.Is by matching all ApprovalDeniedError instances.
func (e *ApprovalDeniedError) Is(target error) bool {
	_, ok := target.(*ApprovalDeniedError)
	return ok
}
