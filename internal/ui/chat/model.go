// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/config"
	"github.com/jeranaias/pastel-chat/internal/logger"
	"github.com/jeranaias/pastel-chat/internal/render"
	"github.com/jeranaias/pastel-chat/internal/session"
	"github.com/jeranaias/pastel-chat/internal/ui/styles"
)

// Options wires a chat Model.
type Options struct {
	// Session must have been created with Updates.Hooks().
	Session *session.Session
	Updates *Updates
	// Endpoint is the initially selected endpoint.
	Endpoint backend.Endpoint
	Render   render.Options
	Theme    *styles.Theme
	// UserName is used for the greeting of a new conversation.
	UserName string
	// ConfigPath is watched for [ui] changes when set.
	ConfigPath string
	Logger     logrus.FieldLogger
	// Context bounds every turn. Nil means context.Background.
	Context context.Context
}

// Model is the Bubble Tea model of the chat view.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	sess     *session.Session
	updates  *Updates
	endpoint backend.Endpoint
	userName string

	theme      *styles.Theme
	renderOpts render.Options
	renderer   *render.Renderer

	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	status    string
	statusErr bool

	configPath string
	log        logrus.FieldLogger
}

// New creates the chat view. A new conversation is greeted immediately.
func New(opts Options) (Model, error) {
	if opts.Session == nil {
		return Model{}, errors.New("chat: session is required")
	}
	if opts.Updates == nil {
		opts.Updates = NewUpdates(0)
	}
	if !opts.Endpoint.Valid() {
		opts.Endpoint = backend.EndpointAzureTasks
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Render.Style != render.StyleNoTTY {
		opts.Render.Theme = opts.Theme
	}

	r, err := render.New(opts.Render)
	if err != nil {
		return Model{}, err
	}

	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = opts.Theme.InputPrompt
	ti.Placeholder = "Ask about your tasks, last week or leave plans..."
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Spinner

	h := help.New()
	h.ShortSeparator = "  "

	if opts.Session.Transcript().Len() == 0 {
		opts.Session.Greet(opts.UserName)
	}

	return Model{
		ctx:        ctx,
		cancel:     cancel,
		sess:       opts.Session,
		updates:    opts.Updates,
		endpoint:   opts.Endpoint,
		userName:   opts.UserName,
		theme:      opts.Theme,
		renderOpts: opts.Render,
		renderer:   r,
		keys:       DefaultKeyMap(),
		help:       h,
		viewport:   viewport.New(80, 20),
		input:      ti,
		spinner:    sp,
		configPath: opts.ConfigPath,
		log:        logger.OrDiscard(opts.Logger).WithField("component", "chat"),
	}, nil
}

// Endpoint returns the selected endpoint.
func (m Model) Endpoint() backend.Endpoint {
	return m.endpoint
}

// Status returns the status line text and whether it reports an error.
func (m Model) Status() (string, bool) {
	return m.status, m.statusErr
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the update pump and the config watcher.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.updates.Wait()}
	if m.configPath != "" {
		cmds = append(cmds, m.watchConfig())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case refreshMsg:
		m.refreshContent()
		return m, m.updates.Wait()

	case loadingMsg:
		m.refreshContent()
		if msg {
			return m, tea.Batch(m.spinner.Tick, m.updates.Wait())
		}
		return m, m.updates.Wait()

	case turnDoneMsg:
		return m.handleTurnDone(msg)

	case configMsg:
		m.applyConfig(msg)
		return m, m.updates.Wait()

	case spinner.TickMsg:
		if !m.sess.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

const (
	headerHeight    = 1
	inputAreaHeight = 2
	statusBarHeight = 1
)

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	vh := m.height - headerHeight - inputAreaHeight - statusBarHeight
	if vh < 1 {
		vh = 1
	}
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = vh
	m.input.Width = max(m.width-4, 10)
	m.help.Width = m.width

	if r, err := m.renderer.WithWidth(m.width - 2); err == nil {
		m.renderer = r
	} else {
		m.log.WithError(err).Warn("renderer resize failed")
	}
	m.refreshContent()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		if m.sess.Loading() {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.status, m.statusErr = "", false
		return m, m.send(text)

	case key.Matches(msg, m.keys.NextEndpoint):
		m.endpoint = m.endpoint.Next()
		return m, nil

	case key.Matches(msg, m.keys.PrevEndpoint):
		m.endpoint = prevEndpoint(m.endpoint)
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		if err := m.sess.Reset(); err != nil {
			m.status, m.statusErr = err.Error(), true
			return m, nil
		}
		m.sess.Greet(m.userName)
		m.status, m.statusErr = "", false
		m.refreshContent()
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleTurnDone(msg turnDoneMsg) (tea.Model, tea.Cmd) {
	res := msg.result
	switch {
	case errors.Is(res.Err, session.ErrTurnInProgress):
		m.status, m.statusErr = "still waiting for the previous answer", true
	case res.Err != nil:
		m.status, m.statusErr = res.Err.Error(), true
	default:
		m.status, m.statusErr = res.Stats.Format(), false
	}
	m.refreshContent()
	m.viewport.GotoBottom()
	return m, nil
}

func (m *Model) applyConfig(msg configMsg) {
	if msg.err != nil {
		m.status, m.statusErr = "config reload failed: "+msg.err.Error(), true
		return
	}
	opts := render.OptionsFromConfig(msg.cfg.UI)
	opts.Width = m.renderer.Width()
	if opts.Style != render.StyleNoTTY {
		opts.Theme = m.theme
	}
	r, err := render.New(opts)
	if err != nil {
		m.status, m.statusErr = "config reload failed: "+err.Error(), true
		return
	}
	m.renderOpts = opts
	m.renderer = r
	m.status, m.statusErr = "config reloaded", false
	m.log.Info("config reloaded")
	m.refreshContent()
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) send(text string) tea.Cmd {
	ctx, sess, ep := m.ctx, m.sess, m.endpoint
	return func() tea.Msg {
		return turnDoneMsg{result: sess.Send(ctx, text, ep)}
	}
}

func (m Model) watchConfig() tea.Cmd {
	ctx, path, u, log := m.ctx, m.configPath, m.updates, m.log
	return func() tea.Msg {
		if err := config.Watch(ctx, path, u.ConfigChanged); err != nil {
			log.WithError(err).Warn("config watch stopped")
		}
		return nil
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) refreshContent() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderer.Transcript(m.sess.Transcript().Snapshot()))
	if atBottom || m.sess.Loading() {
		m.viewport.GotoBottom()
	}
}

func prevEndpoint(ep backend.Endpoint) backend.Endpoint {
	all := backend.Endpoints()
	for i, e := range all {
		if e == ep {
			return all[(i+len(all)-1)%len(all)]
		}
	}
	return all[0]
}

// Run runs the chat view until the user quits.
func Run(m Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(m.ctx)}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	m.cancel()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
