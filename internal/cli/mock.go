// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/pastel-chat/internal/devserver"
)

func newMockCommand(a *app) *cobra.Command {
	var addr string
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run the mock backend",
		Long: `Serves canned streaming answers for every endpoint.

Prompt markers change the response:
  #tool     start with a tool invocation
  #foreign  use the alternate frame encoding
  #split    split every frame across two writes
  #error    end with an in-band error
  #fail     answer with HTTP 500
  #empty    send no content`,
		Example: `  pastel mock --addr :8787
  PASTEL_BASE_URL=http://127.0.0.1:8787 pastel ask "hello #tool"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := devserver.New(devserver.Config{
				APIPrefix: a.cfg.Backend.APIPrefix,
				Delay:     delay,
				Logger:    a.log,
			})
			out := cmd.OutOrStdout()
			return srv.ListenAndServe(cmd.Context(), addr, func(bound net.Addr) {
				fmt.Fprintf(out, "Mock backend on http://%s%s/{endpoint} (Ctrl+C to stop)\n", bound, a.cfg.Backend.APIPrefix)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8787", "listen address")
	cmd.Flags().DurationVar(&delay, "delay", 40*time.Millisecond, "pause between frames")
	return cmd
}
