// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/pastel-chat/internal/assembler"
	"github.com/jeranaias/pastel-chat/internal/config"
	"github.com/jeranaias/pastel-chat/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// refreshMsg asks the view to re-render the transcript.
type refreshMsg struct{}

// loadingMsg reports a change of the session's loading flag.
type loadingMsg bool

// turnDoneMsg carries the outcome of a Send.
type turnDoneMsg struct {
	result session.Result
}

// configMsg carries a reloaded configuration.
type configMsg struct {
	cfg *config.Config
	err error
}

// =============================================================================
// UPDATES
// =============================================================================

// DefaultRefreshInterval caps transcript re-renders at about 30 per second.
const DefaultRefreshInterval = 33 * time.Millisecond

const updatesBuffer = 64

// Updates carries session progress into the Bubble Tea loop.
//
// Refreshes are rate limited and dropped when the buffer is full; the
// end-of-turn message always triggers a final render.
type Updates struct {
	ch      chan tea.Msg
	refresh rate.Sometimes
}

// NewUpdates creates an Updates that re-renders at most once per interval.
// A non-positive interval uses DefaultRefreshInterval.
func NewUpdates(interval time.Duration) *Updates {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Updates{
		ch:      make(chan tea.Msg, updatesBuffer),
		refresh: rate.Sometimes{Interval: interval},
	}
}

// Hooks returns session hooks that publish into u.
func (u *Updates) Hooks() session.Hooks {
	return session.Hooks{
		OnRefresh: func(assembler.Mutation) {
			u.refresh.Do(func() { u.post(refreshMsg{}) })
		},
		OnLoading: func(loading bool) {
			u.post(loadingMsg(loading))
		},
	}
}

// ConfigChanged publishes a config reload. Its signature matches config.Watch.
func (u *Updates) ConfigChanged(cfg *config.Config, err error) {
	u.post(configMsg{cfg: cfg, err: err})
}

// Wait returns a command that delivers the next update.
func (u *Updates) Wait() tea.Cmd {
	return func() tea.Msg {
		return <-u.ch
	}
}

func (u *Updates) post(msg tea.Msg) {
	select {
	case u.ch <- msg:
	default:
	}
}
