// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Some backend deployments occasionally emit a frame as a non-JSON map dump,
// for example:
//
//	data: {type: :content_block_delta, index: 0, delta: {type: :text_delta, text: "Hi"}}
//
// Only text deltas in that shape are recovered. Everything else stays ignored.

var (
	fallbackMarkers = []string{":content_block_delta", ":text_delta"}
	fallbackText    = regexp.MustCompile(`text:\s*"((?:[^"\\]|\\.)*)"`)
)

// salvageText extracts the text field from a non-JSON text delta frame.
func salvageText(payload string) (string, bool) {
	for _, marker := range fallbackMarkers {
		if !strings.Contains(payload, marker) {
			return "", false
		}
	}
	m := fallbackText.FindStringSubmatch(payload)
	if m == nil {
		return "", false
	}
	var text string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &text); err != nil {
		return "", false
	}
	return text, true
}
