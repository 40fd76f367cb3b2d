// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the pastel command line.
//
// Commands:
//
//	pastel [tui]     full-screen chat (default)
//	pastel chat      line-mode chat with history
//	pastel ask       one question, answer on stdout
//	pastel login     store the backend session in the token cache
//	pastel logout    clear the token cache
//	pastel config    show, locate or initialize the config file
//	pastel mock      run the mock backend
package cli
