// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "fmt"

// EventKind classifies a decoded frame.
type EventKind int

const (
	EventTextDelta EventKind = iota + 1
	EventToolStart
	EventToolDelta
	EventToolStop
	EventError
)

// String returns a short name for the kind.
func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text_delta"
	case EventToolStart:
		return "tool_start"
	case EventToolDelta:
		return "tool_delta"
	case EventToolStop:
		return "tool_stop"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one typed frame from the response stream.
//
// Text carries the fragment for text and tool deltas, Name the tool name for
// a tool start, and Message the error message for an error event.
type Event struct {
	Kind    EventKind
	Text    string
	Name    string
	Message string
}

// TextDelta returns a text delta event.
func TextDelta(fragment string) Event {
	return Event{Kind: EventTextDelta, Text: fragment}
}

// ToolStart returns a tool start event.
func ToolStart(name string) Event {
	return Event{Kind: EventToolStart, Name: name}
}

// ToolDelta returns a tool argument fragment event.
func ToolDelta(fragment string) Event {
	return Event{Kind: EventToolDelta, Text: fragment}
}

// ToolStop returns a tool stop event.
func ToolStop() Event {
	return Event{Kind: EventToolStop}
}

// ErrorEvent returns an in-band error event.
func ErrorEvent(message string) Event {
	return Event{Kind: EventError, Message: message}
}
