package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeMessageCompactEvent(t *testing.T) {
	msg := DecodeMessage(`"e|abc12345|increment||0|button"`)
	if msg.Kind != MsgEvent {
		t.Fatalf("Kind = %v, want %v", msg.Kind, MsgEvent)
	}
	want := &ClientEvent{
		ShortID:   "abc12345",
		EventName: "increment",
		Value:     "",
		Checked:   false,
		TagName:   "button",
	}
	if diff := cmp.Diff(want, msg.Event); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMessageCheckedForms(t *testing.T) {
	for _, tt := range []struct {
		raw  string
		want bool
	}{
		{"e|abc12345|toggle|on|1|input", true},
		{"e|abc12345|toggle|on|true|input", true},
		{"e|abc12345|toggle|on|0|input", false},
		{"e|abc12345|toggle|on|false|input", false},
	} {
		msg := DecodeMessage(tt.raw)
		if msg.Kind != MsgEvent {
			t.Fatalf("DecodeMessage(%q).Kind = %v, want event", tt.raw, msg.Kind)
		}
		if msg.Event.Checked != tt.want {
			t.Errorf("DecodeMessage(%q).Checked = %v, want %v", tt.raw, msg.Event.Checked, tt.want)
		}
	}
}

func TestDecodeMessageKeepalive(t *testing.T) {
	for _, raw := range []string{"p", `"p"`, " p "} {
		if got := DecodeMessage(raw); got.Kind != MsgKeepalive {
			t.Errorf("DecodeMessage(%q).Kind = %v, want keepalive", raw, got.Kind)
		}
	}
}

func TestDecodeMessageNoop(t *testing.T) {
	for _, raw := range []string{
		"",
		"null",
		"  ",
		"42",
		"[1,2,3]",
		"e|too|few",
		"e|a|b|c|d|e|extra",
		"{not json",
		`{"type":"event"}`,
		`{"type":"other","componentId":"x","eventName":"y"}`,
	} {
		if got := DecodeMessage(raw); got.Kind != MsgNoop {
			t.Errorf("DecodeMessage(%q).Kind = %v, want noop", raw, got.Kind)
		}
	}
}

func TestDecodeMessageJSONEvent(t *testing.T) {
	raw := `{"type":"event","componentId":"01J5KQ","eventName":"save","payload":{"n":2}}`
	msg := DecodeMessage(raw)
	if msg.Kind != MsgEvent {
		t.Fatalf("Kind = %v, want event", msg.Kind)
	}
	if msg.Event.ComponentID != "01J5KQ" || msg.Event.EventName != "save" {
		t.Errorf("event = %+v", msg.Event)
	}
	if got := msg.Event.Payload["n"]; got != float64(2) {
		t.Errorf("Payload[n] = %v, want 2", got)
	}
}

func TestEventRoundTrip(t *testing.T) {
	events := []ClientEvent{
		{ShortID: "abc12345", EventName: "increment", TagName: "button"},
		{ShortID: "zzzzzzzz", EventName: "input", Value: "hello world", TagName: "input"},
		{ShortID: "00000001", EventName: "toggle", Value: "on", Checked: true, TagName: "input"},
	}
	for _, ev := range events {
		msg := DecodeMessage(EncodeEvent(ev))
		if msg.Kind != MsgEvent {
			t.Fatalf("round trip of %+v lost the event", ev)
		}
		if diff := cmp.Diff(&ev, msg.Event); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}
