// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pastel-chat/internal/assembler"
	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/config"
	"github.com/jeranaias/pastel-chat/internal/devserver"
	"github.com/jeranaias/pastel-chat/internal/render"
	"github.com/jeranaias/pastel-chat/internal/session"
)

// =============================================================================
// HELPERS
// =============================================================================

type creds struct{}

func (creds) AzureToken(context.Context) (string, error) { return "az", nil }
func (creds) M365Token(context.Context) (string, error)  { return "m365", nil }
func (creds) BackendSession(context.Context) (backend.Session, error) {
	return backend.Session{Token: "t", Email: "a@b.c"}, nil
}
func (creds) MachineName() (string, error) { return "host", nil }

func newTestModel(t *testing.T) (Model, *Updates) {
	t.Helper()
	mock := devserver.New(devserver.Config{})
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(ts.Close)

	client := backend.NewClientWithConfig(&backend.ClientConfig{BaseURL: ts.URL})
	t.Cleanup(func() { client.Close() })

	u := NewUpdates(time.Millisecond)
	sess := session.New(session.Config{Transport: client, Credentials: creds{}, Hooks: u.Hooks()})

	m, err := New(Options{
		Session:  sess,
		Updates:  u,
		Endpoint: backend.EndpointAzureTasks,
		Render:   render.Options{Style: render.StyleNoTTY},
		UserName: "Ada",
	})
	require.NoError(t, err)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model), u
}

func typeText(m Model, s string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

// =============================================================================
// TESTS
// =============================================================================

func TestNew_RequiresSession(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_GreetsNewConversation(t *testing.T) {
	m, _ := newTestModel(t)

	require.Equal(t, 1, m.sess.Transcript().Len())
	assert.Contains(t, m.View(), "Hello Ada!")
	assert.Contains(t, m.View(), backend.EndpointAzureTasks.Description())
}

func TestView_BeforeResize(t *testing.T) {
	u := NewUpdates(0)
	m, err := New(Options{
		Session: session.New(session.Config{Hooks: u.Hooks()}),
		Updates: u,
		Render:  render.Options{Style: render.StyleNoTTY},
	})
	require.NoError(t, err)
	assert.Equal(t, "Starting pastel...", m.View())
	assert.Equal(t, backend.EndpointAzureTasks, m.Endpoint())
}

func TestSubmit_RunsTurn(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeText(m, "sprint")

	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	msg := cmd()
	done, ok := msg.(turnDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.result.Err)

	next, _ := m.Update(done)
	m = next.(Model)

	status, isErr := m.Status()
	assert.False(t, isErr)
	assert.Contains(t, status, "events")
	assert.Equal(t, 3, m.sess.Transcript().Len())
	assert.Contains(t, m.sess.Transcript().Last().FullText(), "Regarding **sprint**")
}

func TestSubmit_IgnoresBlankInput(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeText(m, "   ")
	_, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
}

func TestTurnDone_ShowsError(t *testing.T) {
	m, _ := newTestModel(t)
	next, _ := m.Update(turnDoneMsg{result: session.Result{Err: errors.New("backend error: 502")}})
	m = next.(Model)

	status, isErr := m.Status()
	assert.True(t, isErr)
	assert.Equal(t, "backend error: 502", status)
	assert.Contains(t, m.View(), "backend error: 502")
}

func TestTurnDone_InProgress(t *testing.T) {
	m, _ := newTestModel(t)
	next, _ := m.Update(turnDoneMsg{result: session.Result{Err: session.ErrTurnInProgress}})
	status, isErr := next.(Model).Status()
	assert.True(t, isErr)
	assert.Contains(t, status, "previous answer")
}

func TestEndpointCycling(t *testing.T) {
	m, _ := newTestModel(t)
	all := backend.Endpoints()

	for i := 1; i <= len(all); i++ {
		m, _ = press(m, tea.KeyTab)
		assert.Equal(t, all[i%len(all)], m.Endpoint())
	}

	m, _ = press(m, tea.KeyShiftTab)
	assert.Equal(t, all[len(all)-1], m.Endpoint())
}

func TestClear_StartsNewConversation(t *testing.T) {
	m, _ := newTestModel(t)
	m.sess.Transcript().AddUserMessage("old")
	require.Equal(t, 2, m.sess.Transcript().Len())

	m, _ = press(m, tea.KeyCtrlL)
	assert.Equal(t, 1, m.sess.Transcript().Len())
	assert.Contains(t, m.sess.Transcript().Last().FullText(), "Hello Ada!")
}

func TestQuit_CancelsTurns(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := press(m, tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, m.ctx.Err(), context.Canceled)
}

func TestUpdates_HooksPublish(t *testing.T) {
	u := NewUpdates(time.Hour)
	hooks := u.Hooks()

	hooks.OnLoading(true)
	hooks.OnRefresh(assemblerMutation())
	hooks.OnRefresh(assemblerMutation())

	assert.Equal(t, loadingMsg(true), u.Wait()())
	assert.Equal(t, refreshMsg{}, u.Wait()())
	select {
	case msg := <-u.ch:
		t.Fatalf("refresh not throttled: %v", msg)
	default:
	}
}

func TestUpdates_DropsWhenFull(t *testing.T) {
	u := NewUpdates(0)
	for i := 0; i < updatesBuffer+10; i++ {
		u.post(refreshMsg{})
	}
	assert.Len(t, u.ch, updatesBuffer)
}

func TestConfigReload(t *testing.T) {
	m, _ := newTestModel(t)

	cfg := config.Default()
	cfg.UI.Theme = "notty"
	cfg.UI.Markdown = false
	next, cmd := m.Update(configMsg{cfg: cfg})
	m = next.(Model)
	require.NotNil(t, cmd)

	status, isErr := m.Status()
	assert.False(t, isErr)
	assert.Equal(t, "config reloaded", status)
	assert.False(t, m.renderOpts.Markdown)
	assert.Equal(t, 78, m.renderer.Width())

	next, _ = m.Update(configMsg{err: errors.New("bad toml")})
	status, isErr = next.(Model).Status()
	assert.True(t, isErr)
	assert.Contains(t, status, "bad toml")
}

func TestPrevEndpoint(t *testing.T) {
	all := backend.Endpoints()
	assert.Equal(t, all[len(all)-1], prevEndpoint(all[0]))
	assert.Equal(t, all[0], prevEndpoint(backend.Endpoint("bogus")))
}

func assemblerMutation() assembler.Mutation {
	return assembler.Mutation{Kind: assembler.MutationAppended, Fragment: "x"}
}
