// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one conversation's streaming turns.
//
// A Session owns a transcript. Each Send appends the user's message and an
// empty bot message, opens the backend stream and folds it into the bot
// message:
//
//	transport bytes -> stream.Reassembler -> stream.Decoder -> assembler.Assembler
//
// # Hooks
//
// OnRefresh fires after every change the assembler applies, never before it.
// OnLoading fires with true when a turn starts and with false exactly once
// when it ends, whatever the outcome.
//
// # Usage
//
//	s := session.New(session.Config{
//	    Transport:   client,
//	    Credentials: provider,
//	    Hooks:       session.Hooks{OnRefresh: redraw},
//	})
//	res := s.Send(ctx, "what did I do last week?", backend.EndpointLastWeekTasks)
//	if res.Err != nil {
//	    log.WithError(res.Err).Warn("turn failed")
//	}
//
// Send never panics on stream content and never returns a failure except
// through Result.Err; the transcript is always left continuable.
package session
