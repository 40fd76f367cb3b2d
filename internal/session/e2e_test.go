// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pastel-chat/internal/assembler"
	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/devserver"
	"github.com/jeranaias/pastel-chat/internal/model"
)

// =============================================================================
// END-TO-END AGAINST THE MOCK BACKEND
// =============================================================================

func newE2ESession(t *testing.T, creds backend.Credentials) *Session {
	t.Helper()
	mock := devserver.New(devserver.Config{})
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(ts.Close)

	client := backend.NewClientWithConfig(&backend.ClientConfig{BaseURL: ts.URL})
	t.Cleanup(func() { client.Close() })

	return New(Config{Transport: client, Credentials: creds})
}

func TestE2E_EachEndpoint(t *testing.T) {
	for _, ep := range backend.Endpoints() {
		t.Run(string(ep), func(t *testing.T) {
			s := newE2ESession(t, staticCreds{})
			res := s.Send(context.Background(), "2025-06-01", ep)
			require.NoError(t, res.Err)

			want := devserver.DefaultScript(ep, "2025-06-01").Text
			assert.Equal(t, want, res.Message.FullText)
			require.Len(t, res.Message.Segments, 1)
			assert.Equal(t, model.SegmentText, res.Message.Segments[0].Kind)
			assert.Greater(t, res.Stats.Events, 1)
		})
	}
}

func TestE2E_VariantsAssembleSameText(t *testing.T) {
	want := devserver.DefaultScript(backend.EndpointAzureTasks, "sprint").Text

	for _, prompt := range []string{"sprint", "sprint #foreign", "sprint #split", "sprint #foreign #split"} {
		t.Run(prompt, func(t *testing.T) {
			s := newE2ESession(t, staticCreds{})
			res := s.Send(context.Background(), prompt, backend.EndpointAzureTasks)
			require.NoError(t, res.Err)
			assert.Equal(t, want, res.Message.FullText)
		})
	}
}

func TestE2E_ToolThenText(t *testing.T) {
	s := newE2ESession(t, staticCreds{})
	res := s.Send(context.Background(), "sprint #tool", backend.EndpointAzureTasks)
	require.NoError(t, res.Err)

	require.Len(t, res.Message.Segments, 2)
	tool := res.Message.Segments[0]
	assert.Equal(t, model.SegmentTool, tool.Kind)
	assert.Equal(t, "lookup_summary_azure_tasks", tool.ToolName)
	assert.JSONEq(t, `{"endpoint":"summary_azure_tasks","query":"sprint"}`, tool.Content)
	assert.True(t, tool.Complete)
	assert.Equal(t, model.SegmentText, res.Message.Segments[1].Kind)
}

func TestE2E_InBandError(t *testing.T) {
	s := newE2ESession(t, staticCreds{})
	res := s.Send(context.Background(), "#error", backend.EndpointLastWeekTasks)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Message.FullText, assembler.ErrorNotice("upstream quota exceeded"))
}

func TestE2E_ServerFailure(t *testing.T) {
	s := newE2ESession(t, staticCreds{})
	res := s.Send(context.Background(), "#fail", backend.EndpointAzureTasks)
	assert.ErrorIs(t, res.Err, backend.ErrServer)
	assert.Equal(t, assembler.FallbackNotice, res.Message.FullText)
	assert.False(t, s.Loading())
}

type blankCreds struct{ staticCreds }

func (blankCreds) AzureToken(context.Context) (string, error) { return "", nil }

func TestE2E_Unauthorized(t *testing.T) {
	s := newE2ESession(t, blankCreds{})
	res := s.Send(context.Background(), "hi", backend.EndpointAzureTasks)
	assert.ErrorIs(t, res.Err, backend.ErrUnauthorized)
	assert.Equal(t, assembler.FallbackNotice, res.Message.FullText)
}

func TestE2E_EmptyStream(t *testing.T) {
	s := newE2ESession(t, staticCreds{})
	res := s.Send(context.Background(), "#empty", backend.EndpointAzureTasks)
	assert.ErrorIs(t, res.Err, ErrEmptyResponse)
	assert.Equal(t, assembler.FallbackNotice, res.Message.FullText)
}

func TestE2E_ConversationAccumulates(t *testing.T) {
	s := newE2ESession(t, staticCreds{})
	s.Greet("Ada")
	s.Send(context.Background(), "one", backend.EndpointAzureTasks)
	s.Send(context.Background(), "2025-01-01", backend.EndpointLeavePlan)

	msgs := s.Transcript().Snapshot()
	require.Len(t, msgs, 5)
	assert.Equal(t, model.WelcomeText("Ada"), msgs[0].FullText)
	assert.Equal(t, "2025-01-01", msgs[3].FullText)
	for _, m := range msgs {
		assert.True(t, m.Sealed)
	}
}
