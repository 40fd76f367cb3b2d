// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/pastel-chat/internal/backend"
)

// DoneSentinel ends every stream.
const DoneSentinel = "[DONE]"

// toolChunkSize is how many bytes of tool arguments go in one delta.
const toolChunkSize = 8

// ToolCall is a scripted tool invocation.
type ToolCall struct {
	Name      string
	Arguments string
}

// Script describes one scripted response.
type Script struct {
	Text    string
	Tool    *ToolCall
	Foreign bool
	Error   string
	Split   bool
	Fail    bool
}

// ScriptFunc chooses the response for a request.
type ScriptFunc func(ep backend.Endpoint, prompt string) Script

// DefaultScript answers each endpoint with canned content and honours the
// prompt markers listed in the package documentation.
func DefaultScript(ep backend.Endpoint, prompt string) Script {
	var s Script
	clean := strings.TrimSpace(stripMarkers(prompt))

	switch ep {
	case backend.EndpointAzureTasks:
		s.Text = "You have 3 open work items:\n\n" +
			"| ID | Title | State |\n|---|---|---|\n" +
			"| 4711 | Fix login redirect | Active |\n" +
			"| 4712 | Update pipeline agents | New |\n" +
			"| 4720 | Review leave API contract | Active |\n"
		if clean != "" {
			s.Text = fmt.Sprintf("Regarding **%s**:\n\n", clean) + s.Text
		}
	case backend.EndpointLastWeekTasks:
		s.Text = "Last week you closed **5** tasks and logged 31.5 hours.\n\n" +
			"- Mon: sprint planning\n- Tue-Wed: `auth` refactor\n- Thu: code review\n- Fri: release 2.4\n"
	case backend.EndpointLeavePlan:
		date := clean
		if date == "" {
			date = "today"
		}
		s.Text = fmt.Sprintf("Nobody on your team has leave planned for %s.", date)
	}

	if strings.Contains(prompt, "#tool") {
		args, _ := json.Marshal(map[string]string{"endpoint": string(ep), "query": clean})
		s.Tool = &ToolCall{Name: "lookup_" + string(ep), Arguments: string(args)}
	}
	s.Foreign = strings.Contains(prompt, "#foreign")
	s.Split = strings.Contains(prompt, "#split")
	s.Fail = strings.Contains(prompt, "#fail")
	if strings.Contains(prompt, "#error") {
		s.Error = "upstream quota exceeded"
	}
	if strings.Contains(prompt, "#empty") {
		s = Script{}
	}
	return s
}

func stripMarkers(prompt string) string {
	for _, m := range []string{"#tool", "#foreign", "#error", "#split", "#fail", "#empty"} {
		prompt = strings.ReplaceAll(prompt, m, "")
	}
	return prompt
}

// Frames renders the script as SSE data payloads, in order, ending with
// DoneSentinel.
func (s Script) Frames() []string {
	var frames []string

	if s.Tool != nil {
		frames = append(frames, mustJSON(map[string]any{"type": "tool_use_start", "name": s.Tool.Name}))
		for _, piece := range chunk(s.Tool.Arguments, toolChunkSize) {
			frames = append(frames, mustJSON(map[string]any{"type": "tool_use_delta", "partial_json": piece}))
		}
		frames = append(frames, mustJSON(map[string]any{"type": "tool_use_stop"}))
	}

	for _, word := range strings.SplitAfter(s.Text, " ") {
		if word == "" {
			continue
		}
		if s.Foreign {
			frames = append(frames, foreignFrame(word))
			continue
		}
		frames = append(frames, mustJSON(map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": word},
		}))
	}

	if s.Error != "" {
		frames = append(frames, mustJSON(map[string]any{
			"type":  "error",
			"error": map[string]any{"message": s.Error},
		}))
	}
	return append(frames, DoneSentinel)
}

// foreignFrame renders a text delta the way the legacy backend dumped its
// event maps.
func foreignFrame(text string) string {
	quoted, _ := json.Marshal(text)
	return `{type: :content_block_delta, index: 0, delta: {type: :text_delta, text: ` + string(quoted) + `}}`
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// chunk splits s into pieces of at most size bytes without cutting a rune.
func chunk(s string, size int) []string {
	var out []string
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(s)
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
