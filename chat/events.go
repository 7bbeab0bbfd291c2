package chat

import (
	"encoding/json"
	"fmt"
)

// EventType is the "type" field of a stream payload.
type EventType string

const (
	EventConnected     EventType = "connected"
	EventResponseChunk EventType = "response-chunk"
	EventEnd           EventType = "end"
	EventError         EventType = "error"
)

// StreamEvent is one decoded stream event: Connected, ResponseChunk, End
// or ErrorEvent.
type StreamEvent interface {
	Type() EventType
	// Terminal reports whether no events follow this one.
	Terminal() bool
	isStreamEvent()
}

// Connected opens a stream.
type Connected struct {
	Message string
}

// ResponseChunk is a fragment of the assistant reply.
type ResponseChunk struct {
	Data string
}

// End closes a successful stream.
type End struct{}

// ErrorEvent reports a failure. When UnknownType is set the server sent an
// event type this client does not know; the stream continues after it.
type ErrorEvent struct {
	Message     string
	UnknownType string
}

func (Connected) Type() EventType { return EventConnected }
func (ResponseChunk) Type() EventType { return EventResponseChunk }
func (End) Type() EventType { return EventEnd }
func (ErrorEvent) Type() EventType { return EventError }

func (Connected) Terminal() bool { return false }
func (ResponseChunk) Terminal() bool { return false }
func (End) Terminal() bool { return true }
func (e ErrorEvent) Terminal() bool { return e.UnknownType == "" }

func (Connected) isStreamEvent() {}
func (ResponseChunk) isStreamEvent() {}
func (End) isStreamEvent() {}
func (ErrorEvent) isStreamEvent() {}

type payload struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

// decodeEvent classifies one frame. fallbackType is the SSE "event:" field,
// used when the payload has no type.
func decodeEvent(data, fallbackType string) (StreamEvent, error) {
	var p payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, err
	}
	if p.Type == "" {
		p.Type = fallbackType
	}

	switch EventType(p.Type) {
	case EventConnected:
		return Connected{Message: p.Message}, nil
	case EventResponseChunk:
		text, err := chunkText(p.Data)
		if err != nil {
			return nil, err
		}
		return ResponseChunk{Data: text}, nil
	case EventEnd:
		return End{}, nil
	case EventError:
		msg := p.Message
		if msg == "" {
			msg = rawText(p.Error)
		}
		if msg == "" {
			msg = "stream error"
		}
		return ErrorEvent{Message: msg}, nil
	case "":
		return nil, fmt.Errorf("event has no type")
	default:
		return ErrorEvent{Message: "unknown event type: " + p.Type, UnknownType: p.Type}, nil
	}
}

// chunkText accepts a JSON string, or any other JSON value which is kept
// as its raw text.
func chunkText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
