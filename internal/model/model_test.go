// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage_Sealed(t *testing.T) {
	msg := NewUserMessage("hello")

	assert.Equal(t, SenderUser, msg.Sender)
	assert.True(t, msg.Sealed())
	assert.Equal(t, "hello", msg.FullText())
	assert.NotEmpty(t, msg.ID)

	_, ok := msg.AppendToOpen(" world")
	assert.False(t, ok, "sealed message must not grow")
	assert.Equal(t, "hello", msg.FullText())
}

func TestMessage_FullTextTracksTextSegmentsOnly(t *testing.T) {
	msg := NewBotMessage()
	require.True(t, msg.IsEmpty())

	msg.OpenSegment(SegmentText, "", "Looking ")
	msg.AppendToOpen("it up.")
	msg.OpenSegment(SegmentTool, "search", "")
	msg.AppendToOpen(`{"q":`)
	msg.AppendToOpen(`"x"}`)
	msg.OpenSegment(SegmentText, "", " Done.")

	assert.Equal(t, "Looking it up. Done.", msg.FullText())

	segs := msg.Segments()
	require.Len(t, segs, 3)
	assert.Equal(t, SegmentView{Kind: SegmentText, Content: "Looking it up."}, segs[0])
	assert.Equal(t, SegmentView{Kind: SegmentTool, ToolName: "search", Content: `{"q":"x"}`}, segs[1])
	assert.Equal(t, " Done.", segs[2].Content)
}

func TestMessage_ToolNameIgnoredForText(t *testing.T) {
	msg := NewBotMessage()
	msg.OpenSegment(SegmentText, "ignored", "a")

	seg, ok := msg.Segment(0)
	require.True(t, ok)
	assert.Empty(t, seg.ToolName)
}

func TestMessage_CompleteOpen(t *testing.T) {
	msg := NewBotMessage()

	_, ok := msg.CompleteOpen()
	assert.False(t, ok, "no segments")

	msg.OpenSegment(SegmentText, "", "x")
	_, ok = msg.CompleteOpen()
	assert.False(t, ok, "text segments are never completed")

	msg.OpenSegment(SegmentTool, "calc", "")
	idx, ok := msg.CompleteOpen()
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = msg.CompleteOpen()
	assert.False(t, ok, "already complete")

	seg, _ := msg.Segment(1)
	assert.True(t, seg.Complete)
}

func TestMessage_SealBlocksEveryMutation(t *testing.T) {
	msg := NewBotMessage()
	msg.OpenSegment(SegmentTool, "t", "")
	msg.Seal()

	_, ok := msg.OpenSegment(SegmentText, "", "x")
	assert.False(t, ok)
	_, ok = msg.AppendToOpen("x")
	assert.False(t, ok)
	_, ok = msg.CompleteOpen()
	assert.False(t, ok)
	assert.Equal(t, 1, msg.SegmentCount())
}

func TestMessage_SnapshotIsDetached(t *testing.T) {
	msg := NewBotMessage()
	msg.OpenSegment(SegmentText, "", "a")

	snap := msg.Snapshot()
	msg.AppendToOpen("b")

	assert.Equal(t, "a", snap.Segments[0].Content)
	assert.Equal(t, "a", snap.FullText)
	assert.Equal(t, "ab", msg.FullText())
}

func TestMessage_ConcurrentReadsDuringWrites(t *testing.T) {
	msg := NewBotMessage()
	msg.OpenSegment(SegmentText, "", "")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			msg.AppendToOpen("x")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = msg.Snapshot()
		}
	}()
	wg.Wait()

	assert.Len(t, msg.FullText(), 500)
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_Greet(t *testing.T) {
	tests := []struct {
		name string
		user string
		want string
	}{
		{"named", "Ada", "Hello Ada! How can I help you today?"},
		{"blank falls back", "  ", "Hello User! How can I help you today?"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTranscript()
			msg := tr.Greet(tc.user)

			assert.Equal(t, tc.want, msg.FullText())
			assert.Equal(t, SenderBot, msg.Sender)
			assert.True(t, msg.Sealed())
			assert.Equal(t, 1, tr.Len())
		})
	}
}

func TestTranscript_OrderAndLast(t *testing.T) {
	tr := NewTranscript()
	assert.Nil(t, tr.Last())

	user := tr.AddUserMessage("q")
	bot := tr.AddBotMessage()

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Same(t, user, msgs[0])
	assert.Same(t, bot, msgs[1])
	assert.Same(t, bot, tr.Last())
	assert.False(t, bot.Sealed())

	snap := tr.Snapshot()
	assert.Equal(t, SenderUser, snap[0].Sender)
	assert.Equal(t, "q", snap[0].FullText)

	tr.Clear()
	assert.Equal(t, 0, tr.Len())
	assert.Len(t, msgs, 2, "earlier copies are unaffected")
}
