// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies the credentials backend requests carry.
//
// Azure and M365 tokens come from oauth2 token sources: a static token from
// config, or the client-credentials flow against the configured tenant.
// Acquired tokens and the backend session identity persist in a small
// SQLite cache under ~/.pastel, optionally sealed with a passphrase.
//
// Every credential can fail on its own with ErrNoActiveSession; callers only
// ask for what the chosen endpoint needs.
package auth
