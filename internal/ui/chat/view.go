// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pastel-chat/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Starting pastel..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("pastel")
	ep := m.theme.Endpoint.Render(m.endpoint.Description())
	return m.theme.Header.Width(m.width).MaxHeight(headerHeight).Render(title + "  " + ep)
}

func (m Model) renderInput() string {
	sep := m.theme.Muted.Render(strings.Repeat("─", max(m.width, 1)))
	if m.sess.Loading() {
		return sep + "\n" + m.spinner.View() + " " + m.theme.Muted.Render("waiting for "+m.endpoint.String()+"...")
	}
	return sep + "\n" + m.input.View()
}

func (m Model) renderStatusBar() string {
	var line string
	switch {
	case m.status != "" && m.statusErr:
		line = m.theme.Error.Render(util.TruncateWidth(m.status, max(m.width-2, 1)))
	case m.status != "":
		line = m.theme.Muted.Render(m.status) + "  " + m.help.View(m.keys)
	default:
		line = m.help.View(m.keys)
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(statusBarHeight).Render(line)
}
