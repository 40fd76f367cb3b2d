// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pastel-chat/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Lavender)

	// LabelStyle is used for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(16)

	// PromptStyle is the REPL prompt.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Mint)

	// ToolStyle marks tool invocations in streamed output.
	ToolStyle = lipgloss.NewStyle().
			Foreground(styles.Peach)

	// MutedStyle is used for stats and hints.
	MutedStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// SuccessStyle marks completed actions.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Mint)

	// ErrorStyle marks failures.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Rose)
)
