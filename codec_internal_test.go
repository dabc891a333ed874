package mcup

import (
	"errors"
	"testing"
)

func TestParseMessageResponse(t *testing.T) {
	msg, err := parseMessage([]byte(`{"jsonrpc":"2.0","id":5,"result":{"ok":true}}`))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.kind != kindResponse {
		t.Fatalf("kind = %d; want response", msg.kind)
	}
	if string(msg.resp.Result) != `{"ok":true}` {
		t.Fatalf("result = %s", msg.resp.Result)
	}
}

func TestParseMessageErrorResponse(t *testing.T) {
	msg, err := parseMessage([]byte(`{"jsonrpc":"2.0","id":"abc","error":{"code":-32601,"message":"nope"}}`))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.kind != kindResponse {
		t.Fatalf("kind = %d; want response", msg.kind)
	}
	if msg.resp.Error == nil || msg.resp.Error.Code != -32601 {
		t.Fatalf("error = %+v", msg.resp.Error)
	}
}

func TestParseMessageRequest(t *testing.T) {
	msg, err := parseMessage([]byte(`{"jsonrpc":"2.0","id":9,"method":"sampling/createMessage","params":{}}`))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.kind != kindRequest {
		t.Fatalf("kind = %d; want request", msg.kind)
	}
	if msg.req.Method != "sampling/createMessage" {
		t.Fatalf("method = %q", msg.req.Method)
	}
}

func TestParseMessageNotification(t *testing.T) {
	msg, err := parseMessage([]byte(`{"jsonrpc":"2.0","method":"notifications/progress","params":{"progress":1}}`))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.kind != kindNotification {
		t.Fatalf("kind = %d; want notification", msg.kind)
	}
	if msg.notif.Method != "notifications/progress" {
		t.Fatalf("method = %q", msg.notif.Method)
	}
}

func TestParseMessageMalformed(t *testing.T) {
	cases := []struct {
		name  string
		frame string
	}{
		{"invalid json", `{not json`},
		{"empty object", `{}`},
		{"null id no method", `{"jsonrpc":"2.0","id":null,"result":{}}`},
		{"object id", `{"jsonrpc":"2.0","id":{"a":1},"result":{}}`},
		{"array", `[1,2,3]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseMessage([]byte(tc.frame))
			if err == nil {
				t.Fatal("parseMessage accepted a malformed frame")
			}
			if !errors.Is(err, &ProtocolError{}) {
				t.Fatalf("err = %v; want protocol error", err)
			}
		})
	}
}

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{uint64(1), "1"},
		{float64(1), "1"},
		{int64(-3), "-3"},
		{float64(-3), "-3"},
		{float64(1.5), "1.5"},
		{"abc", "abc"},
	}
	for _, tc := range cases {
		got, err := normalizeID(tc.in)
		if err != nil {
			t.Fatalf("normalizeID(%v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("normalizeID(%v) = %q; want %q", tc.in, got, tc.want)
		}
	}

	if _, err := normalizeID(nil); !errors.Is(err, errNullID) {
		t.Errorf("nil id err = %v; want errNullID", err)
	}
	if _, err := normalizeID([]int{1}); !errors.Is(err, errUnexpectedIDType) {
		t.Errorf("slice id err = %v; want errUnexpectedIDType", err)
	}
}
