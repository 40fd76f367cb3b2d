// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/jeranaias/pastel-chat/internal/assembler"
	"github.com/jeranaias/pastel-chat/internal/model"
	"github.com/jeranaias/pastel-chat/internal/session"
)

// streamPrinter writes a bot message to a terminal as it is assembled.
type streamPrinter struct {
	w io.Writer

	mu      sync.Mutex
	written bool
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

// Hooks returns session hooks that print every change.
func (p *streamPrinter) Hooks() session.Hooks {
	return session.Hooks{OnRefresh: p.print}
}

// begin resets per-turn state.
func (p *streamPrinter) begin() {
	p.mu.Lock()
	p.written = false
	p.mu.Unlock()
}

// end terminates the streamed line if anything was printed.
func (p *streamPrinter) end() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.written {
		fmt.Fprintln(p.w)
	}
}

func (p *streamPrinter) print(m assembler.Mutation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch m.Kind {
	case assembler.MutationOpened:
		if m.SegmentKind == model.SegmentTool {
			if p.written {
				fmt.Fprintln(p.w)
			}
			fmt.Fprint(p.w, ToolStyle.Render("⚙ "+m.ToolName)+" ")
			fmt.Fprint(p.w, MutedStyle.Render(m.Fragment))
		} else {
			fmt.Fprint(p.w, m.Fragment)
		}
	case assembler.MutationAppended:
		if m.SegmentKind == model.SegmentTool {
			fmt.Fprint(p.w, MutedStyle.Render(m.Fragment))
		} else {
			fmt.Fprint(p.w, m.Fragment)
		}
	case assembler.MutationCompleted:
		fmt.Fprintln(p.w, " "+SuccessStyle.Render("✓"))
	default:
		return
	}
	p.written = true
}
