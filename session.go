package mcup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultHandshakeTimeout bounds how long Initialize waits for the handshake
// response.
const defaultHandshakeTimeout = 30 * time.Second

// SessionState is the lifecycle phase of a Session.
type SessionState int32

const (
	StateUninitialized SessionState = iota
	StateInitializing
	StateReady
	StateClosing
	StateClosed
)

// String returns the state name for logs and error messages.
func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// NotificationHandler processes an inbound notification. Handlers run on the
// read loop to preserve wire order; a panicking handler is recovered and
// logged, never fatal.
type NotificationHandler func(ctx context.Context, notif Notification)

// RequestHandler answers a server-initiated request. The returned value is
// marshaled into the response result; a returned error produces an
// internal-error response.
type RequestHandler func(ctx context.Context, req Request) (interface{}, error)

// Session is the protocol engine for one connected peer. It owns the
// transport, runs the inbound read loop, drives the handshake, correlates
// requests with responses, dispatches notifications, and interposes the
// approval gate on gated calls.
//
// Concurrent callers multiplex freely: each call suspends only its own
// goroutine until its response arrives, in any order relative to other calls.
type Session struct {
	transport Transport
	logger    zerolog.Logger
	id        string

	classifier         Classifier
	approver           Approver
	handshakeTimeout   time.Duration
	clientCapabilities ClientCapabilities

	stateMu    sync.Mutex
	state      SessionState
	caps       *ServerCapabilities
	serverInfo Implementation

	pending *pendingCalls
	nextID  atomic.Uint64

	notifMu       sync.RWMutex
	notifHandlers map[string]NotificationHandler

	reqMu       sync.RWMutex
	reqHandlers map[string]RequestHandler

	baseCtx    context.Context
	baseCancel context.CancelFunc

	readerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger. The default is a disabled logger.
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c Classifier) SessionOption {
	return func(s *Session) { s.classifier = c }
}

// WithApprover installs the approval decision strategy for mutating calls.
// Without one, calls are never gated.
func WithApprover(a Approver) SessionOption {
	return func(s *Session) { s.approver = a }
}

// WithHandshakeTimeout overrides the default 30s bound on Initialize.
func WithHandshakeTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.handshakeTimeout = d }
}

// WithClientCapabilities sets the capabilities declared during the handshake.
func WithClientCapabilities(caps ClientCapabilities) SessionOption {
	return func(s *Session) { s.clientCapabilities = caps }
}

// NewSession creates a session over the given transport and starts its read
// loop. The session is Uninitialized until Initialize completes.
func NewSession(transport Transport, opts ...SessionOption) *Session {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	s := &Session{
		transport:        transport,
		logger:           zerolog.Nop(),
		id:               uuid.NewString(),
		classifier:       NewKeywordClassifier(),
		handshakeTimeout: defaultHandshakeTimeout,
		pending:          newPendingCalls(),
		notifHandlers:    make(map[string]NotificationHandler),
		reqHandlers:      make(map[string]RequestHandler),
		baseCtx:          baseCtx,
		baseCancel:       baseCancel,
		readerDone:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session", s.id).Logger()

	go s.readLoop()
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle phase.
func (s *Session) State() SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(st SessionState) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// OnNotification registers a handler for inbound notifications with the given
// method. One handler per method, replacement semantics; nil unregisters.
func (s *Session) OnNotification(method string, handler NotificationHandler) {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	if handler == nil {
		delete(s.notifHandlers, method)
	} else {
		s.notifHandlers[method] = handler
	}
}

// OnRequest registers a handler for server-initiated requests with the given
// method. One handler per method, replacement semantics; nil unregisters.
// Requests with no registered handler are answered with a method-not-found
// error.
func (s *Session) OnRequest(method string, handler RequestHandler) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	if handler == nil {
		delete(s.reqHandlers, method)
	} else {
		s.reqHandlers[method] = handler
	}
}

// Notify sends a fire-and-forget notification: no correlation ID, no registry
// entry, no response expected.
func (s *Session) Notify(ctx context.Context, method string, params interface{}) error {
	if st := s.State(); st != StateReady {
		return fmt.Errorf("%s: %w (%s)", method, ErrSessionNotReady, st)
	}
	return s.sendNotification(ctx, method, params)
}

// sendNotification marshals and transmits a notification without a state
// check. Initialize uses it for notifications/initialized before callers see
// Ready.
func (s *Session) sendNotification(ctx context.Context, method string, params interface{}) error {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal notification params for %s: %w", method, err)
		}
	}

	frame, err := marshalMessage(Notification{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  paramsJSON,
	})
	if err != nil {
		return err
	}

	if err := s.transport.Send(ctx, frame); err != nil {
		return wrapSendError(err)
	}
	return nil
}

// call is the request path for the Ready session: allocate an ID, register,
// send, suspend until resolution.
func (s *Session) call(ctx context.Context, method string, params, result interface{}) error {
	if st := s.State(); st != StateReady {
		return fmt.Errorf("%s: %w (%s)", method, ErrSessionNotReady, st)
	}
	return s.roundTrip(ctx, method, params, result)
}

// roundTrip performs one correlated request/response exchange. No state
// check: Initialize drives the handshake through here while the session is
// still Initializing.
func (s *Session) roundTrip(ctx context.Context, method string, params, result interface{}) error {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal request params for %s: %w", method, err)
		}
	}

	// Monotonic counter scoped to the session; never collides with an ID
	// still present in the registry.
	id := RequestID{Value: s.nextID.Add(1)}

	pc, err := s.pending.register(id)
	if err != nil {
		return err
	}

	frame, err := marshalMessage(Request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  paramsJSON,
	})
	if err != nil {
		s.pending.drop(id)
		return err
	}

	if err := s.transport.Send(ctx, frame); err != nil {
		s.pending.drop(id)
		return wrapSendError(err)
	}

	select {
	case res := <-pc.done:
		return decodeCallResult(method, res, result)

	case <-ctx.Done():
		// Cancel only this call. If the response raced in ahead of the
		// cancellation, honor it; the slot resolves exactly once either way.
		if s.pending.cancel(id, contextError(ctx.Err())) {
			s.notifyCancelled(id, ctx.Err())
		}
		res := <-pc.done
		return decodeCallResult(method, res, result)
	}
}

// decodeCallResult unpacks a resolved slot into the caller's result value.
func decodeCallResult(method string, res callResult, result interface{}) error {
	if res.err != nil {
		return res.err
	}
	if result == nil {
		return nil
	}
	if len(res.result) == 0 || string(res.result) == "null" {
		return fmt.Errorf("%s: %w", method, ErrEmptyResult)
	}
	if err := json.Unmarshal(res.result, result); err != nil {
		return fmt.Errorf("unmarshal response result for %s: %w", method, err)
	}
	return nil
}

// contextError maps a context error to the session taxonomy.
func contextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewCanceledError("request canceled", err)
	default:
		return err
	}
}

// wrapSendError maps transport send failures to the session taxonomy.
func wrapSendError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewCanceledError("request canceled", err)
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return NewTransportError("send failed", err)
}

// cancelledParams is the payload of a notifications/cancelled message.
type cancelledParams struct {
	RequestID RequestID `json:"requestId"`
	Reason    string    `json:"reason,omitempty"`
}

// notifyCancelled tells the server, best effort, that an abandoned request
// should not be worked on.
func (s *Session) notifyCancelled(id RequestID, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	ctx, cancel := context.WithTimeout(s.baseCtx, 2*time.Second)
	defer cancel()
	if err := s.sendNotification(ctx, notifyCancelled, cancelledParams{RequestID: id, Reason: reason}); err != nil {
		s.logger.Debug().Err(err).Interface("id", id.Value).Msg("cancelled notification not delivered")
	}
}

// Close transitions the session to Closed, closes the transport, and resolves
// every outstanding call with a cancellation so no caller blocks past Close
// returning. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		s.closeErr = s.transport.Close()
		s.baseCancel()
		s.pending.cancelAll(NewCanceledError("session closed", nil))
		s.setState(StateClosed)
		s.logger.Debug().Msg("session closed")
	})
	return s.closeErr
}

// readLoop is the session's single inbound reader. It pulls frames from the
// transport until the channel closes, triages each one, and on termination
// closes the session.
func (s *Session) readLoop() {
	defer close(s.readerDone)

	for frame := range s.transport.Receive() {
		msg, err := parseMessage(frame)
		if err != nil {
			// Malformed frames are logged and skipped, never fatal.
			s.logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		switch msg.kind {
		case kindResponse:
			s.handleResponse(msg.resp)
		case kindNotification:
			s.dispatchNotification(msg.notif)
		case kindRequest:
			go s.serveRequest(msg.req)
		}
	}

	if err := s.transport.Err(); err != nil {
		s.logger.Error().Err(err).Msg("transport failed")
	}
	s.Close()
}

// handleResponse resolves the matching pending call. Unmatched responses
// (late duplicates, or answers to requests this session never sent) are
// logged and dropped so a slot never resolves twice.
func (s *Session) handleResponse(resp Response) {
	var res callResult
	if resp.Error != nil {
		res.err = NewRemoteError(resp.Error)
	} else {
		res.result = resp.Result
	}
	if !s.pending.resolve(resp.ID, res) {
		s.logger.Warn().Interface("id", resp.ID.Value).Msg("unmatched response dropped")
	}
}

// dispatchNotification runs the registered handler synchronously on the read
// loop, preserving wire order. Handler panics are contained.
func (s *Session) dispatchNotification(notif Notification) {
	s.notifMu.RLock()
	handler := s.notifHandlers[notif.Method]
	s.notifMu.RUnlock()

	if handler == nil {
		s.logger.Debug().Str("method", notif.Method).Msg("no handler for notification")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("method", notif.Method).Interface("panic", r).
				Msg("notification handler panicked")
		}
	}()
	handler(s.baseCtx, notif)
}

// serveRequest answers a server-initiated request. Runs on its own goroutine
// so a slow handler never stalls response correlation.
func (s *Session) serveRequest(req Request) {
	s.reqMu.RLock()
	handler := s.reqHandlers[req.Method]
	s.reqMu.RUnlock()

	if handler == nil {
		s.logger.Warn().Str("method", req.Method).Msg("no handler for server request")
		s.respondError(req.ID, ErrCodeMethodNotFound, "method not found")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("method", req.Method).Interface("panic", r).
				Msg("request handler panicked")
			s.respondError(req.ID, ErrCodeInternalError, "internal handler error")
		}
	}()

	result, err := handler(s.baseCtx, req)
	if err != nil {
		// Generic message: handler internals stay on this side of the
		// trust boundary.
		s.logger.Warn().Str("method", req.Method).Err(err).Msg("request handler failed")
		s.respondError(req.ID, ErrCodeInternalError, "internal handler error")
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		s.logger.Error().Str("method", req.Method).Err(err).Msg("marshal handler result")
		s.respondError(req.ID, ErrCodeInternalError, "internal handler error")
		return
	}

	s.respond(Response{
		JSONRPC: jsonrpcVersion,
		ID:      req.ID,
		Result:  resultJSON,
	})
}

func (s *Session) respondError(id RequestID, code int, message string) {
	s.respond(Response{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	})
}

func (s *Session) respond(resp Response) {
	frame, err := marshalMessage(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal response")
		return
	}
	if err := s.transport.Send(s.baseCtx, frame); err != nil {
		s.logger.Debug().Err(err).Msg("response not delivered")
	}
}
