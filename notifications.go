package mcup

import (
	"context"
	"encoding/json"
)

// ProgressNotification reports progress on a long-running request, correlated
// by the progress token the caller attached.
type ProgressNotification struct {
	ProgressToken string   `json:"progressToken"`
	Progress      float64  `json:"progress"`
	Total         *float64 `json:"total,omitempty"`
}

// LogMessageNotification carries a log record forwarded by the server.
type LogMessageNotification struct {
	Level  string          `json:"level"`
	Logger string          `json:"logger,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// OnToolListChanged registers a listener for tool-catalog change
// notifications. Nil unregisters.
func (s *Session) OnToolListChanged(handler func()) {
	if handler == nil {
		s.OnNotification(notifyToolListChanged, nil)
		return
	}
	s.OnNotification(notifyToolListChanged, func(context.Context, Notification) {
		handler()
	})
}

// OnResourceListChanged registers a listener for resource-catalog change
// notifications. Nil unregisters.
func (s *Session) OnResourceListChanged(handler func()) {
	if handler == nil {
		s.OnNotification(notifyResourceListChanged, nil)
		return
	}
	s.OnNotification(notifyResourceListChanged, func(context.Context, Notification) {
		handler()
	})
}

// OnProgress registers a listener for progress notifications. Nil
// unregisters. Payloads that fail to decode are dropped.
func (s *Session) OnProgress(handler func(ProgressNotification)) {
	if handler == nil {
		s.OnNotification(notifyProgress, nil)
		return
	}
	s.OnNotification(notifyProgress, func(_ context.Context, notif Notification) {
		var n ProgressNotification
		if err := json.Unmarshal(notif.Params, &n); err != nil {
			return
		}
		handler(n)
	})
}

// OnLogMessage registers a listener for server log messages. Nil unregisters.
func (s *Session) OnLogMessage(handler func(LogMessageNotification)) {
	if handler == nil {
		s.OnNotification(notifyLogMessage, nil)
		return
	}
	s.OnNotification(notifyLogMessage, func(_ context.Context, notif Notification) {
		var n LogMessageNotification
		if err := json.Unmarshal(notif.Params, &n); err != nil {
			return
		}
		handler(n)
	})
}
