// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// PrettyJSON indents src when it is complete JSON. Partial arguments that are
// still streaming are returned unchanged.
func PrettyJSON(src string) (string, bool) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return src, false
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return src, false
	}
	return buf.String(), true
}

// Highlight colors code for a 256-color terminal. Unknown languages are
// guessed from the content; on any failure the input is returned as is.
func Highlight(code, language, style string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	s := chromaStyles.Get(style)
	if s == nil {
		s = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, s, iterator); err != nil {
		return code
	}
	return buf.String()
}

// chromaStyle maps a glamour style name to a chroma style.
func chromaStyle(glamourStyle string) string {
	switch glamourStyle {
	case "light":
		return "github"
	default:
		return "monokai"
	}
}
