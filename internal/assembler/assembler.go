// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assembler folds decoded stream events into a bot message.
//
// An Assembler is scoped to one streaming turn. It holds the target message
// and applies each event according to a fixed transition table:
//
//	text delta  + open text  -> append
//	text delta  + none/tool  -> open text segment
//	tool start  + any        -> open tool segment (never merged)
//	tool delta  + open tool  -> append
//	tool delta  + otherwise  -> dropped
//	tool stop   + any        -> mark open tool segment complete
//	error       + any        -> append error notice as text
//
// Every call returns a Mutation describing what changed so the caller can
// refresh the UI after the change is applied.
package assembler

import (
	"github.com/jeranaias/pastel-chat/internal/model"
	"github.com/jeranaias/pastel-chat/internal/stream"
)

// FallbackNotice is installed when a turn fails before anything arrived.
const FallbackNotice = "Sorry, I encountered an error communicating with the server."

// errorNoticePrefix precedes in-band error messages.
const errorNoticePrefix = "\n\n❌ Error: "

// ErrorNotice formats an in-band error message for the transcript.
func ErrorNotice(message string) string {
	return errorNoticePrefix + message
}

// =============================================================================
// MUTATION
// =============================================================================

// MutationKind says what an Apply or Fail call did to the message.
type MutationKind int

const (
	// MutationNone means the message was not changed.
	MutationNone MutationKind = iota
	// MutationOpened means a new segment was appended.
	MutationOpened
	// MutationAppended means the last segment grew.
	MutationAppended
	// MutationCompleted means the open tool segment was marked complete.
	MutationCompleted
)

// String returns a short name for the kind.
func (k MutationKind) String() string {
	switch k {
	case MutationOpened:
		return "opened"
	case MutationAppended:
		return "appended"
	case MutationCompleted:
		return "completed"
	default:
		return "none"
	}
}

// Mutation describes one change to the target message.
type Mutation struct {
	Kind        MutationKind
	Index       int
	SegmentKind model.SegmentKind
	ToolName    string
	Fragment    string
}

// Changed reports whether the message was modified.
func (m Mutation) Changed() bool {
	return m.Kind != MutationNone
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// Assembler applies events to one bot message.
type Assembler struct {
	target *model.Message
	events int
	drops  int
}

// New creates an assembler writing into target.
func New(target *model.Message) *Assembler {
	return &Assembler{target: target}
}

// Target returns the message being assembled.
func (a *Assembler) Target() *model.Message {
	return a.target
}

// Dropped returns the number of events that caused no change.
func (a *Assembler) Dropped() int {
	return a.drops
}

// Applied returns the number of events that changed the message.
func (a *Assembler) Applied() int {
	return a.events
}

// Apply folds ev into the target message.
func (a *Assembler) Apply(ev stream.Event) Mutation {
	var m Mutation
	switch ev.Kind {
	case stream.EventTextDelta:
		m = a.appendText(ev.Text)
	case stream.EventToolStart:
		m = a.open(model.SegmentTool, ev.Name, "")
	case stream.EventToolDelta:
		if kind, ok := a.target.OpenKind(); ok && kind == model.SegmentTool {
			m = a.append(model.SegmentTool, ev.Text)
		}
	case stream.EventToolStop:
		if idx, ok := a.target.CompleteOpen(); ok {
			seg, _ := a.target.Segment(idx)
			m = Mutation{Kind: MutationCompleted, Index: idx, SegmentKind: model.SegmentTool, ToolName: seg.ToolName}
		}
	case stream.EventError:
		m = a.appendText(ErrorNotice(ev.Message))
	}

	if m.Changed() {
		a.events++
	} else {
		a.drops++
	}
	return m
}

// Fail records a turn-level failure. When nothing was assembled the fallback
// notice becomes the message's only segment; otherwise partial content is
// kept as is.
func (a *Assembler) Fail() Mutation {
	if !a.target.IsEmpty() {
		return Mutation{}
	}
	return a.open(model.SegmentText, "", FallbackNotice)
}

// Finish ends the turn. A turn that produced nothing is treated as failed.
// The target is sealed either way.
func (a *Assembler) Finish(failed bool) Mutation {
	var m Mutation
	if failed || a.target.IsEmpty() {
		m = a.Fail()
	}
	a.target.Seal()
	return m
}

func (a *Assembler) appendText(fragment string) Mutation {
	if kind, ok := a.target.OpenKind(); ok && kind == model.SegmentText {
		return a.append(model.SegmentText, fragment)
	}
	return a.open(model.SegmentText, "", fragment)
}

func (a *Assembler) open(kind model.SegmentKind, toolName, initial string) Mutation {
	idx, ok := a.target.OpenSegment(kind, toolName, initial)
	if !ok {
		return Mutation{}
	}
	m := Mutation{Kind: MutationOpened, Index: idx, SegmentKind: kind, Fragment: initial}
	if kind == model.SegmentTool {
		m.ToolName = toolName
	}
	return m
}

func (a *Assembler) append(kind model.SegmentKind, fragment string) Mutation {
	idx, ok := a.target.AppendToOpen(fragment)
	if !ok {
		return Mutation{}
	}
	m := Mutation{Kind: MutationAppended, Index: idx, SegmentKind: kind, Fragment: fragment}
	if kind == model.SegmentTool {
		seg, _ := a.target.Segment(idx)
		m.ToolName = seg.ToolName
	}
	return m
}
