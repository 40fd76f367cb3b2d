// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultUserName is used in the greeting when no display name is known.
const DefaultUserName = "User"

// welcomeFormat is the bot's opening line.
const welcomeFormat = "Hello %s! How can I help you today?"

// Transcript is the ordered list of messages for one conversation view.
// Transcripts live in memory only.
type Transcript struct {
	mu       sync.RWMutex
	messages []*Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make([]*Message, 0, 16)}
}

// Append adds msg to the end of the transcript.
func (t *Transcript) Append(msg *Message) {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
}

// AddUserMessage appends a sealed user message.
func (t *Transcript) AddUserMessage(text string) *Message {
	msg := NewUserMessage(text)
	t.Append(msg)
	return msg
}

// AddBotMessage appends an empty bot message that is open for streaming.
func (t *Transcript) AddBotMessage() *Message {
	msg := NewBotMessage()
	t.Append(msg)
	return msg
}

// Greet appends the bot's welcome message for userName.
func (t *Transcript) Greet(userName string) *Message {
	msg := NewBotText(WelcomeText(userName))
	t.Append(msg)
	return msg
}

// WelcomeText returns the greeting shown at the top of a new conversation.
func WelcomeText(userName string) string {
	name := strings.TrimSpace(userName)
	if name == "" {
		name = DefaultUserName
	}
	return fmt.Sprintf(welcomeFormat, name)
}

// Messages returns the messages in order. The slice is a copy.
func (t *Transcript) Messages() []*Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Snapshot returns immutable copies of every message.
func (t *Transcript) Snapshot() []MessageView {
	msgs := t.Messages()
	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[i] = m.Snapshot()
	}
	return out
}

// Last returns the most recent message, or nil.
func (t *Transcript) Last() *Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Clear removes every message.
func (t *Transcript) Clear() {
	t.mu.Lock()
	t.messages = t.messages[:0]
	t.mu.Unlock()
}
