// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/pastel-chat/internal/render"
	"github.com/jeranaias/pastel-chat/internal/session"
)

func newAskCommand(a *app) *cobra.Command {
	var markdown bool

	cmd := &cobra.Command{
		Use:   "ask PROMPT...",
		Short: "Ask one question and print the answer",
		Example: `  pastel ask "what is left in this sprint?"
  pastel ask -e check_leave_plan 2025-06-01
  pastel ask --markdown -e summary_lastweek_tasks "group by project"`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return &UsageError{Reason: "ask needs a prompt", Example: `pastel ask "what is left in this sprint?"`}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, strings.Join(args, " "), markdown)
		},
	}
	cmd.Flags().BoolVarP(&markdown, "markdown", "m", false, "render the complete answer as markdown instead of streaming it")
	return cmd
}

// runAsk runs a single turn. The returned error is the turn's failure, so
// transport errors give a non-zero exit.
func (a *app) runAsk(cmd *cobra.Command, prompt string, markdown bool) error {
	ep, err := a.endpoint()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var r *render.Renderer
	if markdown {
		r, err = render.New(render.Options{
			Width:    GetTerminalWidth(),
			Markdown: true,
			Style:    renderStyle(a.cfg.UI.Theme),
		})
		if err != nil {
			return err
		}
	}

	printer := newStreamPrinter(out)
	var hooks session.Hooks
	if r == nil {
		hooks = printer.Hooks()
	}
	rt := a.newRuntime(hooks)
	defer rt.Close()

	res := rt.sess.Send(cmd.Context(), prompt, ep)
	if r != nil {
		fmt.Fprintln(out, r.Body(res.Message))
	} else {
		printer.end()
	}
	return res.Err
}
