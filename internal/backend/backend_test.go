// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	azure, m365, machine string
	session              Session
	err                  error
	calls                []string
}

func (f *fakeCreds) AzureToken(context.Context) (string, error) {
	f.calls = append(f.calls, "azure")
	return f.azure, f.err
}

func (f *fakeCreds) M365Token(context.Context) (string, error) {
	f.calls = append(f.calls, "m365")
	return f.m365, f.err
}

func (f *fakeCreds) BackendSession(context.Context) (Session, error) {
	f.calls = append(f.calls, "session")
	return f.session, f.err
}

func (f *fakeCreds) MachineName() (string, error) {
	f.calls = append(f.calls, "machine")
	return f.machine, f.err
}

func newCreds() *fakeCreds {
	return &fakeCreds{
		azure:   "az-token",
		m365:    "m365-token",
		machine: "WS-042",
		session: Session{Token: "pastel-token", Email: "ada@example.com"},
	}
}

// =============================================================================
// ENDPOINT TESTS
// =============================================================================

func TestParseEndpoint(t *testing.T) {
	for _, ep := range Endpoints() {
		got, err := ParseEndpoint(string(ep))
		require.NoError(t, err)
		assert.Equal(t, ep, got)
		assert.True(t, got.Valid())
	}

	got, err := ParseEndpoint("  Check_Leave_Plan ")
	require.NoError(t, err)
	assert.Equal(t, EndpointLeavePlan, got)

	_, err = ParseEndpoint("summary_everything")
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
	assert.Contains(t, err.Error(), "summary_azure_tasks")
}

func TestEndpoint_RequiredHeaders(t *testing.T) {
	assert.Equal(t, []string{HeaderAzureToken}, EndpointAzureTasks.RequiredHeaders())
	assert.Equal(t, []string{HeaderPastelToken, HeaderPastelEmail, HeaderAzureToken}, EndpointLastWeekTasks.RequiredHeaders())
	assert.Equal(t, []string{HeaderM365Token, HeaderAzureToken}, EndpointLeavePlan.RequiredHeaders())
	assert.Nil(t, Endpoint("nope").RequiredHeaders())
}

func TestEndpoint_Next(t *testing.T) {
	assert.Equal(t, EndpointLastWeekTasks, EndpointAzureTasks.Next())
	assert.Equal(t, EndpointLeavePlan, EndpointLastWeekTasks.Next())
	assert.Equal(t, EndpointAzureTasks, EndpointLeavePlan.Next())
	assert.Equal(t, EndpointAzureTasks, Endpoint("nope").Next())
}

// =============================================================================
// REQUEST BUILDING TESTS
// =============================================================================

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		endpoint Endpoint
		headers  map[string]string
		body     string
		calls    []string
	}{
		{
			endpoint: EndpointAzureTasks,
			headers:  map[string]string{"Content-Type": "application/json", "Azure-Token": "az-token"},
			body:     `{"prompt":"what's open?"}`,
			calls:    []string{"azure"},
		},
		{
			endpoint: EndpointLastWeekTasks,
			headers: map[string]string{
				"Content-Type": "application/json",
				"Pastel-Token": "pastel-token",
				"Pastel-Email": "ada@example.com",
				"Azure-Token":  "az-token",
			},
			body:  `{"prompt":"what's open?","machine_name":"WS-042"}`,
			calls: []string{"azure", "machine", "session"},
		},
		{
			endpoint: EndpointLeavePlan,
			headers: map[string]string{
				"Content-Type": "application/json",
				"M365-Token":   "m365-token",
				"Azure-Token":  "az-token",
			},
			body:  `{"date":"what's open?"}`,
			calls: []string{"azure", "m365"},
		},
	}

	for _, tc := range tests {
		t.Run(string(tc.endpoint), func(t *testing.T) {
			creds := newCreds()
			req, err := BuildRequest(context.Background(), tc.endpoint, "what's open?", creds)
			require.NoError(t, err)

			assert.Equal(t, tc.endpoint, req.Endpoint)
			assert.Equal(t, tc.headers, req.Headers)

			body, err := json.Marshal(req.Body)
			require.NoError(t, err)
			assert.JSONEq(t, tc.body, string(body))

			sort.Strings(creds.calls)
			assert.Equal(t, tc.calls, creds.calls, "only required credentials are requested")
		})
	}
}

func TestBuildRequest_CredentialFailure(t *testing.T) {
	noSession := errors.New("no active session")
	creds := newCreds()
	creds.err = noSession

	_, err := BuildRequest(context.Background(), EndpointLeavePlan, "2025-01-01", creds)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentials)
	assert.ErrorIs(t, err, noSession)
}

func TestBuildRequest_UnknownEndpoint(t *testing.T) {
	_, err := BuildRequest(context.Background(), Endpoint("x"), "p", newCreds())
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestClient_URL(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "https://ai.example.com/", APIPrefix: "/api/v1/ai/"})
	defer c.Close()

	assert.Equal(t, "https://ai.example.com/api/v1/ai/check_leave_plan", c.URL(EndpointLeavePlan))
}

func TestClient_OpenStreamsBody(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"Hi\"}}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	defer c.Close()

	req, err := BuildRequest(context.Background(), EndpointLastWeekTasks, "recap", newCreds())
	require.NoError(t, err)

	body, err := c.Open(context.Background(), req)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"text":"Hi"`)
	assert.Contains(t, string(data), "data: [DONE]")

	assert.Equal(t, "/api/v1/ai/summary_lastweek_tasks", gotPath)
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "text/event-stream", gotHeaders.Get("Accept"))
	assert.Equal(t, "pastel-token", gotHeaders.Get("Pastel-Token"))
	assert.Equal(t, "ada@example.com", gotHeaders.Get("Pastel-Email"))
	assert.Equal(t, "az-token", gotHeaders.Get("Azure-Token"))
	assert.Equal(t, map[string]any{"prompt": "recap", "machine_name": "WS-042"}, gotBody)
}

func TestClient_OpenErrorStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadGateway, ErrServer},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "token rejected", tc.status)
			}))
			defer srv.Close()

			c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
			defer c.Close()

			req, err := BuildRequest(context.Background(), EndpointAzureTasks, "p", newCreds())
			require.NoError(t, err)

			body, err := c.Open(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, body)
			assert.ErrorIs(t, err, tc.want)

			var ce *ClientError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.status, ce.StatusCode)
			assert.Equal(t, "token rejected", ce.Body)
		})
	}
}

func TestClient_OpenConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url})
	defer c.Close()

	req, err := BuildRequest(context.Background(), EndpointAzureTasks, "p", newCreds())
	require.NoError(t, err)

	_, err = c.Open(context.Background(), req)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestClient_OpenCanceled(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := BuildRequest(context.Background(), EndpointAzureTasks, "p", newCreds())
	require.NoError(t, err)

	_, err = c.Open(ctx, req)
	assert.ErrorIs(t, err, ErrCanceled)
}
