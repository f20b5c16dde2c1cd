package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageKind discriminates decoded inbound messages.
type MessageKind int

const (
	// MsgNoop is an empty, null, or otherwise unusable payload.
	MsgNoop MessageKind = iota
	// MsgKeepalive is the client heartbeat.
	MsgKeepalive
	// MsgEvent is a user interaction event.
	MsgEvent
)

// String returns a human-readable name for the message kind.
func (k MessageKind) String() string {
	switch k {
	case MsgNoop:
		return "noop"
	case MsgKeepalive:
		return "keepalive"
	case MsgEvent:
		return "event"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ClientEvent is a decoded user interaction.
//
// ShortID identifies the component by its 8-character short hash when the
// event arrived in compact form; ComponentID carries the full id when the
// event arrived in JSON fallback form. Exactly one of the two is set.
type ClientEvent struct {
	ShortID     string
	ComponentID string
	EventName   string
	Value       string
	Checked     bool
	TagName     string
	Payload     map[string]any
}

// Message is the result of decoding one inbound frame.
type Message struct {
	Kind  MessageKind
	Event *ClientEvent // set iff Kind == MsgEvent
}

const (
	compactEventPrefix = "e|"
	compactEventParts  = 6
	keepaliveToken     = "p"
)

// jsonEvent is the fallback wire shape for structured client events.
type jsonEvent struct {
	Type        string         `json:"type"`
	ComponentID string         `json:"componentId"`
	EventName   string         `json:"eventName"`
	Payload     map[string]any `json:"payload"`
}

// DecodeMessage decodes one raw inbound frame.
//
// Decoding never fails: anything unrecognized comes back as a noop message
// so the read loop can log and continue. Callers should log noops from
// non-empty input at warning level.
func DecodeMessage(raw string) Message {
	s := strings.TrimSpace(raw)
	if s == "" || s == "null" {
		return Message{Kind: MsgNoop}
	}

	// Some client stacks JSON-quote bare string frames ("p", "e|...").
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == keepaliveToken {
		return Message{Kind: MsgKeepalive}
	}

	if strings.HasPrefix(s, compactEventPrefix) {
		return decodeCompactEvent(s)
	}

	if strings.HasPrefix(s, "{") {
		return decodeJSONEvent(s)
	}

	return Message{Kind: MsgNoop}
}

func decodeCompactEvent(s string) Message {
	parts := strings.Split(s, "|")
	if len(parts) != compactEventParts {
		return Message{Kind: MsgNoop}
	}
	return Message{
		Kind: MsgEvent,
		Event: &ClientEvent{
			ShortID:   parts[1],
			EventName: parts[2],
			Value:     parts[3],
			Checked:   parts[4] == "1" || parts[4] == "true",
			TagName:   parts[5],
		},
	}
}

func decodeJSONEvent(s string) Message {
	var ev jsonEvent
	if err := json.Unmarshal([]byte(s), &ev); err != nil {
		return Message{Kind: MsgNoop}
	}
	if ev.Type != "event" || ev.ComponentID == "" || ev.EventName == "" {
		return Message{Kind: MsgNoop}
	}
	return Message{
		Kind: MsgEvent,
		Event: &ClientEvent{
			ComponentID: ev.ComponentID,
			EventName:   ev.EventName,
			Payload:     ev.Payload,
		},
	}
}

// EncodeEvent produces the compact wire form of a client event. Fields may
// not contain '|'; the encoder does not escape.
func EncodeEvent(ev ClientEvent) string {
	checked := "0"
	if ev.Checked {
		checked = "1"
	}
	return strings.Join([]string{
		"e", ev.ShortID, ev.EventName, ev.Value, checked, ev.TagName,
	}, "|")
}

// EncodeKeepalive produces the heartbeat frame.
func EncodeKeepalive() string {
	return keepaliveToken
}
