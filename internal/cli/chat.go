// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/config"
	"github.com/jeranaias/pastel-chat/internal/model"
	"github.com/jeranaias/pastel-chat/internal/session"
)

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Line-mode chat with input history",
		Long: `Line-mode chat. Answers are printed as they stream.

Commands:
  /endpoint [id]   show or switch the endpoint
  /clear           start a new conversation
  /help            show this help
  /quit            leave`,
		Args: cobra.NoArgs,
		RunE: a.runChat,
	}
}

func (a *app) runChat(cmd *cobra.Command, _ []string) error {
	ep, err := a.endpoint()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	printer := newStreamPrinter(out)
	rt := a.newRuntime(printer.Hooks())
	defer rt.Close()

	r := &repl{
		sess:     rt.sess,
		printer:  printer,
		out:      out,
		endpoint: ep,
		userName: rt.creds.UserName(),
	}
	r.greet()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath, _ := config.HistoryPath()
	loadHistory(line, historyPath)
	defer saveHistory(line, historyPath)

	ctx := cmd.Context()
	for {
		input, err := line.Prompt(string(r.endpoint) + "> ")
		if err != nil {
			// Ctrl+C, Ctrl+D or a closed stdin
			fmt.Fprintln(out)
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := r.command(input)
			if err != nil {
				DisplayError(out, err)
			}
			if quit {
				return nil
			}
			continue
		}

		r.turn(ctx, input)
		if ctx.Err() != nil {
			fmt.Fprintln(out, MutedStyle.Render("[Cancelled]"))
			return nil
		}
	}
}

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	sess     *session.Session
	printer  *streamPrinter
	out      io.Writer
	endpoint backend.Endpoint
	userName string
}

func (r *repl) greet() {
	r.sess.Greet(r.userName)
	fmt.Fprintf(r.out, "%s  %s\n", TitleStyle.Render("pastel"), MutedStyle.Render(r.endpoint.Description()))
	fmt.Fprintln(r.out, model.WelcomeText(r.userName))
	fmt.Fprintln(r.out, MutedStyle.Render("Type /help for commands."))
}

// turn sends prompt and prints the answer as it streams.
func (r *repl) turn(ctx context.Context, prompt string) session.Result {
	r.printer.begin()
	res := r.sess.Send(ctx, prompt, r.endpoint)
	r.printer.end()

	if res.Err != nil {
		DisplayError(r.out, res.Err)
	} else {
		fmt.Fprintln(r.out, MutedStyle.Render(res.Stats.Format()))
	}
	return res
}

var errUnknownCommand = errors.New("unknown command, try /help")

// command runs a slash command and reports whether the REPL should exit.
func (r *repl) command(input string) (bool, error) {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/?":
		fmt.Fprintln(r.out, `  /endpoint [id]   show or switch the endpoint
  /clear           start a new conversation
  /help            show this help
  /quit            leave`)
		return false, nil

	case "/clear":
		if err := r.sess.Reset(); err != nil {
			return false, err
		}
		r.sess.Greet(r.userName)
		fmt.Fprintln(r.out, SuccessStyle.Render("Started a new conversation."))
		return false, nil

	case "/endpoint", "/e":
		if len(fields) < 2 {
			for _, ep := range backend.Endpoints() {
				marker := "  "
				if ep == r.endpoint {
					marker = "* "
				}
				fmt.Fprintf(r.out, "%s%s %s\n", marker, LabelStyle.Width(24).Render(string(ep)), MutedStyle.Render(ep.Description()))
			}
			return false, nil
		}
		ep, err := backend.ParseEndpoint(fields[1])
		if err != nil {
			return false, &UsageError{Reason: err.Error()}
		}
		r.endpoint = ep
		fmt.Fprintf(r.out, "Endpoint: %s\n", ep)
		return false, nil
	}
	return false, errUnknownCommand
}

// =============================================================================
// HISTORY
// =============================================================================

func loadHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	if f, err := os.Open(path); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
}

// saveHistory writes history with 0600 permissions.
func saveHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}
