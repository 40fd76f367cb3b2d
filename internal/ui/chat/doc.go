// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the full-screen chat view.
//
// The view owns no conversation state. It renders the session's transcript
// whenever the session reports progress through its hooks, which are fed
// into the Bubble Tea loop by an Updates value.
package chat
