// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared across pastel.
//
//   - TruncateRunes, TruncateWidth, Indent: display-safe string shaping
//   - AtomicWriteFile: crash-safe file replacement used for config files
package util
