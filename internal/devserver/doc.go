// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package devserver is a local stand-in for the AI backend.
//
// It serves POST <prefix>/:endpoint for every known endpoint, checks the
// credential headers and body the endpoint requires, and streams a scripted
// SSE response: text deltas word by word, an optional tool invocation,
// optional frames in the legacy non-JSON shape and an optional in-band
// error, always ending with data: [DONE].
//
// Prompts can steer the script with markers:
//
//	#tool     add a tool invocation before the answer
//	#foreign  send the answer in the legacy non-JSON frame shape
//	#error    finish with an in-band error event
//	#split    split every frame across two network writes
//	#fail     reject the request with 500 before streaming
//	#empty    stream nothing but [DONE]
package devserver
