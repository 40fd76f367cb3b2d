// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderBot:
		return "Pastel"
	default:
		return string(s)
	}
}

// =============================================================================
// SEGMENT TYPE
// =============================================================================

// SegmentKind distinguishes text segments from tool invocations.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentTool
)

// String returns the wire-style name of the kind.
func (k SegmentKind) String() string {
	switch k {
	case SegmentText:
		return "text"
	case SegmentTool:
		return "tool_invocation"
	default:
		return "unknown"
	}
}

type segment struct {
	kind     SegmentKind
	toolName string
	content  strings.Builder
	complete bool
}

// SegmentView is an immutable copy of a segment, safe to hand to renderers.
type SegmentView struct {
	Kind     SegmentKind
	ToolName string
	Content  string
	Complete bool
}

// IsTool reports whether the segment is a tool invocation.
func (s SegmentView) IsTool() bool {
	return s.Kind == SegmentTool
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one turn in the conversation.
type Message struct {
	ID        string
	Sender    Sender
	CreatedAt time.Time

	mu       sync.RWMutex
	segments []*segment
	fullText strings.Builder
	sealed   bool
}

// MessageView is an immutable copy of a message.
type MessageView struct {
	ID        string
	Sender    Sender
	CreatedAt time.Time
	Segments  []SegmentView
	FullText  string
	Sealed    bool
}

func newMessage(sender Sender) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a sealed user message holding text.
func NewUserMessage(text string) *Message {
	m := newMessage(SenderUser)
	m.OpenSegment(SegmentText, "", text)
	m.Seal()
	return m
}

// NewBotMessage creates an empty, open bot message.
func NewBotMessage() *Message {
	return newMessage(SenderBot)
}

// NewBotText creates a sealed bot message holding text.
func NewBotText(text string) *Message {
	m := newMessage(SenderBot)
	m.OpenSegment(SegmentText, "", text)
	m.Seal()
	return m
}

// =============================================================================
// MUTATION
// =============================================================================

// OpenSegment appends a new segment and returns its index.
// Returns false when the message is sealed. toolName is ignored for text.
func (m *Message) OpenSegment(kind SegmentKind, toolName, initial string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return -1, false
	}
	s := &segment{kind: kind}
	if kind == SegmentTool {
		s.toolName = toolName
	}
	s.content.WriteString(initial)
	if kind == SegmentText {
		m.fullText.WriteString(initial)
	}
	m.segments = append(m.segments, s)
	return len(m.segments) - 1, true
}

// AppendToOpen appends fragment to the last segment and returns its index.
// Returns false when the message is sealed or has no segments.
func (m *Message) AppendToOpen(fragment string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed || len(m.segments) == 0 {
		return -1, false
	}
	last := m.segments[len(m.segments)-1]
	last.content.WriteString(fragment)
	if last.kind == SegmentText {
		m.fullText.WriteString(fragment)
	}
	return len(m.segments) - 1, true
}

// CompleteOpen marks the last segment complete if it is a tool invocation.
func (m *Message) CompleteOpen() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed || len(m.segments) == 0 {
		return -1, false
	}
	last := m.segments[len(m.segments)-1]
	if last.kind != SegmentTool || last.complete {
		return -1, false
	}
	last.complete = true
	return len(m.segments) - 1, true
}

// Seal freezes the message. Later mutations are no-ops.
func (m *Message) Seal() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// OpenKind returns the kind of the last segment, or false if there is none.
func (m *Message) OpenKind() (SegmentKind, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.segments) == 0 {
		return 0, false
	}
	return m.segments[len(m.segments)-1].kind, true
}

// Sealed reports whether the message is frozen.
func (m *Message) Sealed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sealed
}

// SegmentCount returns the number of segments.
func (m *Message) SegmentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.segments)
}

// FullText returns the concatenated content of all text segments.
func (m *Message) FullText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fullText.String()
}

// IsEmpty reports whether the message has no segments and no text.
func (m *Message) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.segments) == 0 && m.fullText.Len() == 0
}

// Segment returns a copy of segment i.
func (m *Message) Segment(i int) (SegmentView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i < 0 || i >= len(m.segments) {
		return SegmentView{}, false
	}
	return viewOf(m.segments[i]), true
}

// Segments returns copies of all segments in order.
func (m *Message) Segments() []SegmentView {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SegmentView, len(m.segments))
	for i, s := range m.segments {
		out[i] = viewOf(s)
	}
	return out
}

// Snapshot returns an immutable copy of the message.
func (m *Message) Snapshot() MessageView {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v := MessageView{
		ID:        m.ID,
		Sender:    m.Sender,
		CreatedAt: m.CreatedAt,
		Segments:  make([]SegmentView, len(m.segments)),
		FullText:  m.fullText.String(),
		Sealed:    m.sealed,
	}
	for i, s := range m.segments {
		v.Segments[i] = viewOf(s)
	}
	return v
}

func viewOf(s *segment) SegmentView {
	return SegmentView{
		Kind:     s.kind,
		ToolName: s.toolName,
		Content:  s.content.String(),
		Complete: s.complete,
	}
}
