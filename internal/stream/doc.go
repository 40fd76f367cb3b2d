// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns the raw SSE response body into typed events.
//
// Two stages live here:
//
//   - Reassembler splits arbitrary byte chunks into complete lines, carrying
//     partial lines (and partial multi-byte characters) across chunk
//     boundaries.
//   - Decoder maps one line to an Event or reports it as ignored.
//
// Neither stage returns errors. Malformed input is logged and skipped so a
// single bad frame never ends a turn.
package stream
