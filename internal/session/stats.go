// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"time"

	"github.com/jeranaias/pastel-chat/internal/stream"
)

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// Stats holds what one turn's stream looked like.
type Stats struct {
	// Timing
	Start      time.Time
	FirstEvent time.Time
	End        time.Time

	// TTFE is the time to first event.
	TTFE     time.Duration
	Duration time.Duration

	// Volume
	Bytes     int64
	Lines     int
	Events    int
	Ignored   int
	Fallbacks int
	Malformed int
	// Dropped is the size of an unterminated trailing line.
	Dropped int
}

func newStats() *Stats {
	return &Stats{Start: time.Now()}
}

func (s *Stats) recordEvent() {
	if s.FirstEvent.IsZero() {
		s.FirstEvent = time.Now()
		s.TTFE = s.FirstEvent.Sub(s.Start)
	}
}

func (s *Stats) absorb(d stream.DecodeStats) {
	s.Lines = d.Lines
	s.Events = d.Events
	s.Ignored = d.Ignored
	s.Fallbacks = d.Fallbacks
	s.Malformed = d.Malformed
}

func (s *Stats) finish() {
	s.End = time.Now()
	s.Duration = s.End.Sub(s.Start)
}

// Format returns a one-line summary for status bars.
func (s Stats) Format() string {
	out := formatDuration(s.Duration) + " | " + fmt.Sprintf("%d events", s.Events)
	if s.Events > 0 {
		out += " | first after " + formatDuration(s.TTFE)
	}
	if s.Fallbacks > 0 {
		out += fmt.Sprintf(" | %d salvaged", s.Fallbacks)
	}
	return out
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
