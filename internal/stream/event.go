// Package stream defines the event vocabulary of a chat turn and the
// Server-Sent Events framing used to deliver it.
//
// One upstream model stream produces an ordered sequence of Events. The
// orchestrator forwards each event to the HTTP caller as it arrives and
// appends it to a Capture; after the terminal event the captured
// sequence drives tool execution and transcript persistence.
package stream

import (
	"encoding/json"
	"fmt"
)

// Type identifies the kind of a stream event.
type Type string

// Event types emitted during one chat turn. Ordering within a stream is
// significant: deltas apply in arrival order, and a tool-input event may
// arrive before the terminal event without blocking later deltas.
const (
	TypeContentDelta  Type = "content-delta"
	TypeThinkingDelta Type = "thinking-delta"
	TypeToolInput     Type = "tool-input-available"
	TypeToolOutput    Type = "tool-output"
	TypeDone          Type = "done"
	TypeError         Type = "error"
)

// Event is one element of a chat turn's stream. Only the fields relevant
// to the event's Type are populated. Events are transient: they are
// framed onto the wire and captured in memory, never persisted.
type Event struct {
	Type Type `json:"type"`

	// Delta carries the text fragment for content-delta and
	// thinking-delta events.
	Delta string `json:"delta,omitempty"`

	// ToolName and Input carry a recognized tool invocation for
	// tool-input-available events; Output carries the result for
	// tool-output events.
	ToolName string          `json:"toolName,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	Output   json.RawMessage `json:"output,omitempty"`

	// Code and Message describe terminal error events.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == TypeDone || e.Type == TypeError
}

// ContentDelta builds a content-delta event.
func ContentDelta(text string) Event {
	return Event{Type: TypeContentDelta, Delta: text}
}

// ThinkingDelta builds a thinking-delta event. Thinking fragments are
// display-only and excluded from the persisted transcript.
func ThinkingDelta(text string) Event {
	return Event{Type: TypeThinkingDelta, Delta: text}
}

// ToolInput builds a tool-input-available event from a tool name and its
// structured input.
func ToolInput(name string, input any) (Event, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return Event{}, fmt.Errorf("encoding tool input for %q: %w", name, err)
	}
	return Event{Type: TypeToolInput, ToolName: name, Input: raw}, nil
}

// ToolOutput builds a tool-output event carrying an executed tool's
// structured result.
func ToolOutput(name string, output any) (Event, error) {
	raw, err := json.Marshal(output)
	if err != nil {
		return Event{}, fmt.Errorf("encoding tool output for %q: %w", name, err)
	}
	return Event{Type: TypeToolOutput, ToolName: name, Output: raw}, nil
}

// Done builds the successful terminal event.
func Done() Event {
	return Event{Type: TypeDone}
}

// Error builds the error terminal event with a machine-readable code.
func Error(code, message string) Event {
	return Event{Type: TypeError, Code: code, Message: message}
}
