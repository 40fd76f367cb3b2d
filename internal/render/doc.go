// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns transcript snapshots into terminal text.
//
// Text segments go through glamour when markdown is enabled. Tool segments
// show the tool name and its arguments, pretty-printed and highlighted with
// chroma once they parse as JSON.
package render
