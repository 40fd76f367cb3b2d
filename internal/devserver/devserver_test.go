// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmaxmax/go-sse"

	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/stream"
)

func startServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s := New(cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, url string, headers map[string]string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readData(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var data []string
	for ev, err := range sse.Read(resp.Body, nil) {
		require.NoError(t, err)
		data = append(data, ev.Data)
	}
	return data
}

// decodeText runs payloads through the production decoder and returns the
// concatenated text deltas.
func decodeText(payloads []string) string {
	dec := stream.NewDecoder(nil)
	var sb strings.Builder
	for _, p := range payloads {
		if ev, ok := dec.Decode("data: " + p); ok && ev.Kind == stream.EventTextDelta {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}

// =============================================================================
// ROUTING AND VALIDATION
// =============================================================================

func TestServer_UnknownEndpoint(t *testing.T) {
	s, ts := startServer(t, Config{})
	resp := post(t, ts.URL+"/api/v1/ai/summary_everything", nil, `{"prompt":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int64(1), s.Requests())
	assert.Zero(t, s.Streams())
}

func TestServer_MissingHeaders(t *testing.T) {
	_, ts := startServer(t, Config{})

	for _, ep := range backend.Endpoints() {
		t.Run(string(ep), func(t *testing.T) {
			resp := post(t, ts.URL+"/api/v1/ai/"+string(ep), nil, `{"prompt":"x","date":"x","machine_name":"m"}`)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestServer_BodyValidation(t *testing.T) {
	_, ts := startServer(t, Config{})
	headers := map[string]string{
		backend.HeaderAzureToken:  "az",
		backend.HeaderPastelToken: "t",
		backend.HeaderPastelEmail: "a@b.c",
		backend.HeaderM365Token:   "m",
	}

	tests := []struct {
		endpoint backend.Endpoint
		body     string
	}{
		{backend.EndpointAzureTasks, `not json`},
		{backend.EndpointAzureTasks, `{"date":"x"}`},
		{backend.EndpointLastWeekTasks, `{"prompt":"x"}`},
		{backend.EndpointLeavePlan, `{"prompt":"x"}`},
	}
	for _, tc := range tests {
		resp := post(t, ts.URL+"/api/v1/ai/"+string(tc.endpoint), headers, tc.body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %s", tc.endpoint, tc.body)
	}
}

func TestServer_CustomPrefix(t *testing.T) {
	_, ts := startServer(t, Config{APIPrefix: "/v2/"})
	resp := post(t, ts.URL+"/v2/summary_azure_tasks", map[string]string{backend.HeaderAzureToken: "az"}, `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// STREAMING
// =============================================================================

func TestServer_StreamsScript(t *testing.T) {
	s, ts := startServer(t, Config{})
	resp := post(t, ts.URL+"/api/v1/ai/check_leave_plan",
		map[string]string{backend.HeaderAzureToken: "az", backend.HeaderM365Token: "m"},
		`{"date":"2025-06-01"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	data := readData(t, resp)
	require.NotEmpty(t, data)
	assert.Equal(t, DoneSentinel, data[len(data)-1])
	assert.Equal(t, DefaultScript(backend.EndpointLeavePlan, "2025-06-01").Text, decodeText(data))
	assert.Equal(t, int64(1), s.Streams())
}

func TestServer_ScriptedFailure(t *testing.T) {
	_, ts := startServer(t, Config{})
	resp := post(t, ts.URL+"/api/v1/ai/summary_azure_tasks",
		map[string]string{backend.HeaderAzureToken: "az"}, `{"prompt":"#fail"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_CustomScriptAndDelay(t *testing.T) {
	_, ts := startServer(t, Config{
		Delay: 5 * time.Millisecond,
		Script: func(ep backend.Endpoint, prompt string) Script {
			return Script{Text: "echo " + prompt, Split: true}
		},
	})
	resp := post(t, ts.URL+"/api/v1/ai/summary_azure_tasks",
		map[string]string{backend.HeaderAzureToken: "az"}, `{"prompt":"héllo wörld"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "echo héllo wörld", decodeText(readData(t, resp)))
}

func TestServer_ListenAndServe(t *testing.T) {
	s := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe(ctx, "127.0.0.1:0", func(a net.Addr) { addrCh <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp := post(t, "http://"+addr.String()+"/api/v1/ai/summary_azure_tasks",
		map[string]string{backend.HeaderAzureToken: "az"}, `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	readData(t, resp)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// =============================================================================
// SCRIPT
// =============================================================================

func TestScript_Frames(t *testing.T) {
	s := Script{
		Text:  "Hello there",
		Tool:  &ToolCall{Name: "lookup", Arguments: `{"query":"sprint 42"}`},
		Error: "boom",
	}
	frames := s.Frames()
	require.Equal(t, DoneSentinel, frames[len(frames)-1])

	dec := stream.NewDecoder(nil)
	var kinds []stream.EventKind
	var args, text string
	for _, f := range frames {
		ev, ok := dec.Decode("data: " + f)
		if !ok {
			continue
		}
		kinds = append(kinds, ev.Kind)
		switch ev.Kind {
		case stream.EventToolDelta:
			args += ev.Text
		case stream.EventTextDelta:
			text += ev.Text
		case stream.EventToolStart:
			assert.Equal(t, "lookup", ev.Name)
		case stream.EventError:
			assert.Equal(t, "boom", ev.Message)
		}
	}

	assert.Equal(t, `{"query":"sprint 42"}`, args)
	assert.Equal(t, "Hello there", text)
	assert.Equal(t, stream.EventToolStart, kinds[0])
	assert.Equal(t, stream.EventToolStop, kinds[len(kinds)-4])
	assert.Equal(t, stream.EventError, kinds[len(kinds)-1])
}

func TestScript_ForeignFramesUseFallback(t *testing.T) {
	s := Script{Text: "line one\nsays \"hi\"", Foreign: true}
	frames := s.Frames()
	for _, f := range frames[:len(frames)-1] {
		assert.True(t, strings.HasPrefix(f, "{type: :content_block_delta"))
	}

	dec := stream.NewDecoder(nil)
	var text string
	for _, f := range frames {
		if ev, ok := dec.Decode("data: " + f); ok {
			text += ev.Text
		}
	}
	assert.Equal(t, s.Text, text)
	assert.Equal(t, len(frames)-1, dec.Stats().Fallbacks)
}

func TestDefaultScript_Markers(t *testing.T) {
	plain := DefaultScript(backend.EndpointAzureTasks, "sprint")
	assert.Contains(t, plain.Text, "**sprint**")
	assert.Nil(t, plain.Tool)
	assert.False(t, plain.Foreign)

	marked := DefaultScript(backend.EndpointAzureTasks, "sprint #tool #foreign #error #split")
	require.NotNil(t, marked.Tool)
	assert.Equal(t, "lookup_summary_azure_tasks", marked.Tool.Name)
	assert.JSONEq(t, `{"endpoint":"summary_azure_tasks","query":"sprint"}`, marked.Tool.Arguments)
	assert.True(t, marked.Foreign)
	assert.True(t, marked.Split)
	assert.NotEmpty(t, marked.Error)
	assert.NotContains(t, marked.Text, "#")

	empty := DefaultScript(backend.EndpointAzureTasks, "#empty")
	assert.Equal(t, []string{DoneSentinel}, empty.Frames())

	assert.True(t, DefaultScript(backend.EndpointLastWeekTasks, "#fail").Fail)
}

func TestChunk_KeepsRunesWhole(t *testing.T) {
	in := `{"q":"ünïcödé ✓ 日本語"}`
	pieces := chunk(in, 8)
	assert.Equal(t, in, strings.Join(pieces, ""))
	for _, p := range pieces {
		assert.True(t, utf8.ValidString(p), "piece %q", p)
		assert.LessOrEqual(t, len(p), 8)
	}
}
