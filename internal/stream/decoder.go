// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/pastel-chat/internal/logger"
	"github.com/jeranaias/pastel-chat/internal/util"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	defaultErrorMessage = "unknown error"
	logPayloadLimit     = 200
)

// DecodeStats counts how lines were classified.
type DecodeStats struct {
	Lines     int
	Events    int
	Ignored   int
	Fallbacks int
	Malformed int
}

// Decoder maps SSE lines to events. The zero value is not usable; call
// NewDecoder.
type Decoder struct {
	log   logrus.FieldLogger
	stats DecodeStats
}

// NewDecoder creates a decoder that reports skipped frames to log.
func NewDecoder(log logrus.FieldLogger) *Decoder {
	return &Decoder{log: logger.OrDiscard(log)}
}

// Stats returns the classification counters.
func (d *Decoder) Stats() DecodeStats {
	return d.stats
}

// Decode classifies one line. The second result is false when the line is
// ignored: blank lines, non-data lines, the [DONE] sentinel, unknown event
// types and payloads that neither parse nor match the fallback shape.
func (d *Decoder) Decode(line string) (Event, bool) {
	d.stats.Lines++

	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, dataPrefix) {
		return d.ignore()
	}
	payload := strings.TrimSpace(trimmed[len(dataPrefix):])
	if payload == "" || payload == doneSentinel {
		return d.ignore()
	}

	var obj object
	if err := json.Unmarshal([]byte(payload), &obj); err != nil || obj == nil {
		text, ok := salvageText(payload)
		if !ok {
			d.stats.Malformed++
			fields := logrus.Fields{"payload": util.TruncateRunes(payload, logPayloadLimit)}
			if err != nil {
				fields["error"] = err.Error()
			}
			d.log.WithFields(fields).Warn("skipping unparseable stream frame")
			return d.ignore()
		}
		d.stats.Fallbacks++
		d.log.Debug("recovered text delta from non-JSON frame")
		return d.emit(TextDelta(text))
	}

	ev, ok := classify(obj)
	if !ok {
		if typ, _ := obj.str("type"); typ != "" {
			d.log.WithField("type", typ).Trace("ignoring stream event")
		}
		return d.ignore()
	}
	return d.emit(ev)
}

func (d *Decoder) emit(ev Event) (Event, bool) {
	d.stats.Events++
	return ev, true
}

func (d *Decoder) ignore() (Event, bool) {
	d.stats.Ignored++
	return Event{}, false
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

func classify(obj object) (Event, bool) {
	typ, _ := obj.str("type")

	switch typ {
	case "content_block_delta":
		delta, ok := obj.obj("delta")
		if !ok {
			return Event{}, false
		}
		dtype, hasType := delta.str("type")
		switch {
		case !hasType || dtype == "text_delta":
			if text, ok := delta.str("text"); ok {
				return TextDelta(text), true
			}
		case dtype == "input_json_delta":
			if frag, ok := delta.str("partial_json"); ok {
				return ToolDelta(frag), true
			}
		}
		return Event{}, false

	case "content_block_start":
		block, ok := obj.obj("content_block")
		if !ok {
			return Event{}, false
		}
		if btype, _ := block.str("type"); btype != "tool_use" {
			return Event{}, false
		}
		name, _ := block.str("name")
		return ToolStart(name), true

	case "tool_use_start", "tool_use":
		return ToolStart(toolName(obj)), true

	case "tool_use_delta", "input_delta":
		if frag, ok := toolFragment(obj); ok {
			return ToolDelta(frag), true
		}
		return Event{}, false

	case "tool_use_stop", "content_block_stop":
		return ToolStop(), true

	case "error":
		return ErrorEvent(errorMessage(obj)), true
	}

	return Event{}, false
}

func toolName(obj object) string {
	if name, ok := obj.str("name"); ok && name != "" {
		return name
	}
	if name, ok := obj.str("tool_name"); ok && name != "" {
		return name
	}
	for _, key := range []string{"tool", "content_block"} {
		if nested, ok := obj.obj(key); ok {
			if name, ok := nested.str("name"); ok && name != "" {
				return name
			}
		}
	}
	return ""
}

func toolFragment(obj object) (string, bool) {
	if frag, ok := obj.str("partial_json"); ok {
		return frag, true
	}
	if delta, ok := obj.obj("delta"); ok {
		if frag, ok := delta.str("partial_json"); ok {
			return frag, true
		}
	}
	if frag, ok := obj.str("delta"); ok {
		return frag, true
	}
	if frag, ok := obj.str("input"); ok {
		return frag, true
	}
	return "", false
}

func errorMessage(obj object) string {
	if nested, ok := obj.obj("error"); ok {
		if msg, ok := nested.str("message"); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := obj.str("error"); ok && msg != "" {
		return msg
	}
	if msg, ok := obj.str("message"); ok && msg != "" {
		return msg
	}
	return defaultErrorMessage
}

// =============================================================================
// LENIENT FIELD ACCESS
// =============================================================================

// object defers field decoding so one oddly-typed field does not reject the
// whole frame.
type object map[string]json.RawMessage

func (o object) str(key string) (string, bool) {
	raw, ok := o[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (o object) obj(key string) (object, bool) {
	raw, ok := o[key]
	if !ok {
		return nil, false
	}
	var nested object
	if err := json.Unmarshal(raw, &nested); err != nil || nested == nil {
		return nil, false
	}
	return nested, true
}
