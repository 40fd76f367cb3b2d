// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the chat UI.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Chrome
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	StatusBar   lipgloss.Style
	Endpoint    lipgloss.Style
	Help        lipgloss.Style

	// Messages
	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
	Timestamp lipgloss.Style
	Body      lipgloss.Style

	// Tool invocations
	ToolBox     lipgloss.Style
	ToolName    lipgloss.Style
	ToolPending lipgloss.Style
	ToolDone    lipgloss.Style

	// Input and state
	InputPrompt lipgloss.Style
	Spinner     lipgloss.Style
	Error       lipgloss.Style
	Muted       lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Lavender)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.Endpoint = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Sky).
		Bold(true).
		Padding(0, 1)

	t.Help = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Mint)

	t.BotLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Lavender)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Body = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.ToolBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Peach).
		PaddingLeft(1)

	t.ToolName = lipgloss.NewStyle().
		Bold(true).
		Foreground(Peach)

	t.ToolPending = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ToolDone = lipgloss.NewStyle().
		Foreground(Mint)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Lavender).
		Bold(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Lavender)

	t.Error = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.Muted = lipgloss.NewStyle().
		Foreground(TextMuted)
}
