// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat transcript.
//
// # Key Types
//
//   - Transcript: ordered list of messages shown in one conversation view
//   - Message: one turn, built from an ordered list of segments
//   - Segment: a run of plain text or the raw argument text of a tool invocation
//   - Sender: who produced a message (user or bot)
//
// A bot message is created empty when a turn starts, grows while the response
// streams in, and is sealed when the stream ends. Segments are append-only and
// only the last one may grow. Messages guard their state with a mutex so a UI
// goroutine can take snapshots while the stream goroutine mutates them.
//
// # Usage
//
//	t := model.NewTranscript()
//	t.Greet("Ada")
//	t.AddUserMessage("what's on my plate?")
//	bot := t.AddBotMessage()
//	bot.OpenSegment(model.SegmentText, "", "Working")
//	bot.AppendToOpen(" on it")
//	bot.Seal()
package model
