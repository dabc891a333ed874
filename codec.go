package mcup

import "encoding/json"

// messageKind classifies a decoded inbound frame.
type messageKind int

const (
	kindResponse messageKind = iota
	kindRequest
	kindNotification
)

// inboundMessage is one decoded frame off the wire. Exactly one of the typed
// fields is populated, selected by kind.
type inboundMessage struct {
	kind  messageKind
	resp  Response
	req   Request
	notif Notification
}

// marshalMessage encodes an envelope for the wire.
func marshalMessage(msg interface{}) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, newProtocolError("marshal message", err)
	}
	return data, nil
}

// parseMessage decodes and classifies a single inbound frame.
//
// Triage is by shape: a message with an id but no method is a response, with
// both an id and a method is a server-initiated request, and with only a
// method is a notification. Anything else, including invalid JSON and a
// response whose id is null, fails with a *ProtocolError. Decoding is
// isolated per frame; a bad frame never affects its neighbours.
func parseMessage(frame []byte) (inboundMessage, error) {
	var probe struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
	}
	if err := json.Unmarshal(frame, &probe); err != nil {
		return inboundMessage{}, newProtocolError("invalid JSON frame", err)
	}

	hasID := len(probe.ID) > 0 && string(probe.ID) != "null"

	switch {
	case hasID && probe.Method == "":
		var resp Response
		if err := json.Unmarshal(frame, &resp); err != nil {
			return inboundMessage{}, newProtocolError("malformed response", err)
		}
		if _, err := normalizeID(resp.ID.Value); err != nil {
			return inboundMessage{}, newProtocolError("response ID", err)
		}
		return inboundMessage{kind: kindResponse, resp: resp}, nil

	case hasID && probe.Method != "":
		var req Request
		if err := json.Unmarshal(frame, &req); err != nil {
			return inboundMessage{}, newProtocolError("malformed request", err)
		}
		return inboundMessage{kind: kindRequest, req: req}, nil

	case probe.Method != "":
		var notif Notification
		if err := json.Unmarshal(frame, &notif); err != nil {
			return inboundMessage{}, newProtocolError("malformed notification", err)
		}
		return inboundMessage{kind: kindNotification, notif: notif}, nil

	default:
		return inboundMessage{}, newProtocolError("unknown envelope shape", nil)
	}
}
