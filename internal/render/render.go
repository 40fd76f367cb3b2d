// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pastel-chat/internal/config"
	"github.com/jeranaias/pastel-chat/internal/model"
	"github.com/jeranaias/pastel-chat/internal/ui/styles"
	"github.com/jeranaias/pastel-chat/internal/util"
)

const (
	minWidth     = 20
	defaultWidth = 100

	// StyleNoTTY renders without escape sequences.
	StyleNoTTY = "notty"
	// StyleAuto picks dark or light from the terminal background.
	StyleAuto = "auto"
)

// Options configures a Renderer.
type Options struct {
	// Width is the wrap width in cells.
	Width int
	// Markdown enables glamour for text segments.
	Markdown bool
	// Style is a glamour style: auto, dark, light or notty.
	Style string
	// Theme styles labels and tool boxes. Nil uses styles.NewTheme when
	// Style is not notty.
	Theme *styles.Theme
}

// OptionsFromConfig maps the [ui] config section to renderer options.
func OptionsFromConfig(ui config.UIConfig) Options {
	return Options{
		Width:    ui.WordWrap,
		Markdown: ui.Markdown,
		Style:    strings.ToLower(ui.Theme),
	}
}

// Renderer formats messages. It is safe for concurrent use.
type Renderer struct {
	opts  Options
	theme *styles.Theme

	mu sync.Mutex
	md *glamour.TermRenderer
}

// New creates a renderer.
func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Width < minWidth {
		opts.Width = minWidth
	}
	if opts.Style == "" {
		opts.Style = StyleAuto
	}

	r := &Renderer{opts: opts, theme: opts.Theme}
	if r.theme == nil && !r.Plain() {
		r.theme = styles.NewTheme()
	}

	if opts.Markdown {
		styleOpt := glamour.WithStandardStyle(opts.Style)
		if opts.Style == StyleAuto {
			styleOpt = glamour.WithAutoStyle()
		}
		md, err := glamour.NewTermRenderer(
			styleOpt,
			glamour.WithWordWrap(opts.Width),
			glamour.WithEmoji(),
		)
		if err != nil {
			return nil, err
		}
		r.md = md
	}
	return r, nil
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	return r.opts.Width
}

// Plain reports whether output carries no escape sequences.
func (r *Renderer) Plain() bool {
	return r.opts.Style == StyleNoTTY
}

// WithWidth returns a renderer with the same settings and a new width.
func (r *Renderer) WithWidth(width int) (*Renderer, error) {
	opts := r.opts
	opts.Width = width
	opts.Theme = r.theme
	return New(opts)
}

// =============================================================================
// SEGMENTS
// =============================================================================

// Text renders a text segment.
func (r *Renderer) Text(s string) string {
	if s == "" {
		return ""
	}
	if r.md != nil {
		r.mu.Lock()
		out, err := r.md.Render(s)
		r.mu.Unlock()
		if err == nil {
			return strings.Trim(out, "\n")
		}
	}
	if r.Plain() {
		return s
	}
	return lipgloss.NewStyle().Width(r.opts.Width).Render(s)
}

// Tool renders a tool invocation segment.
func (r *Renderer) Tool(seg model.SegmentView) string {
	name := seg.ToolName
	if name == "" {
		name = "tool"
	}
	args, complete := PrettyJSON(seg.Content)

	status := "running…"
	if seg.Complete {
		status = "done"
	}

	if r.Plain() {
		var sb strings.Builder
		sb.WriteString("[tool] " + name + " (" + status + ")")
		if args != "" {
			sb.WriteString("\n" + util.Indent(args, "  "))
		}
		return sb.String()
	}

	header := r.theme.ToolName.Render("⚙ " + util.TruncateWidth(name, r.opts.Width-12))
	if seg.Complete {
		header += " " + r.theme.ToolDone.Render("✓")
	} else {
		header += " " + r.theme.ToolPending.Render(status)
	}

	body := args
	if complete {
		body = Highlight(args, "json", chromaStyle(r.opts.Style))
	}
	if body == "" {
		return r.theme.ToolBox.Render(header)
	}
	return r.theme.ToolBox.Render(header + "\n" + body)
}

// =============================================================================
// MESSAGES
// =============================================================================

// Label renders the sender line of a message.
func (r *Renderer) Label(v model.MessageView) string {
	name := v.Sender.DisplayName()
	stamp := v.CreatedAt.Format("15:04")
	if r.Plain() {
		return name + " · " + stamp
	}
	label := r.theme.BotLabel
	if v.Sender == model.SenderUser {
		label = r.theme.UserLabel
	}
	return label.Render(name) + " " + r.theme.Timestamp.Render(stamp)
}

// Body renders a message's segments in order.
func (r *Renderer) Body(v model.MessageView) string {
	parts := make([]string, 0, len(v.Segments))
	for _, seg := range v.Segments {
		if seg.IsTool() {
			parts = append(parts, r.Tool(seg))
			continue
		}
		if text := r.Text(seg.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Message renders the label and body.
func (r *Renderer) Message(v model.MessageView) string {
	body := r.Body(v)
	if body == "" {
		return r.Label(v)
	}
	return r.Label(v) + "\n" + body
}

// Transcript renders every message, separated by blank lines.
func (r *Renderer) Transcript(views []model.MessageView) string {
	parts := make([]string, len(views))
	for i, v := range views {
		parts[i] = r.Message(v)
	}
	return strings.Join(parts, "\n\n")
}
