// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/pastel-chat/internal/auth"
	"github.com/jeranaias/pastel-chat/internal/backend"
)

func newLoginCommand(a *app) *cobra.Command {
	var email, token string
	var noPrime bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the Pastel session in the token cache",
		Long: `Stores the Pastel session token and e-mail in the token cache and
acquires Azure and Microsoft 365 tokens so the first chat does not wait.
Missing values are prompted for; the token is read without echo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			prompts := cmd.ErrOrStderr()

			var err error
			if email == "" {
				if email, err = readLine(in, prompts, "E-mail: "); err != nil {
					return err
				}
			}
			if token == "" {
				if token, err = readSecret(cmd, in, "Session token: "); err != nil {
					return err
				}
			}
			return a.login(cmd, backend.Session{
				Token: strings.TrimSpace(token),
				Email: strings.TrimSpace(email),
			}, !noPrime)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&token, "token", "", "session token (prompted when omitted)")
	cmd.Flags().BoolVar(&noPrime, "no-prime", false, "skip acquiring Azure and M365 tokens")
	return cmd
}

func (a *app) login(cmd *cobra.Command, sess backend.Session, prime bool) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	creds := auth.Open(a.cfg, a.log)
	defer creds.Close()
	if creds.Cache() == nil {
		return &ConfigError{Err: errors.New("token cache is disabled or unavailable; enable [token_cache] to log in")}
	}
	if sess.Email != "" && !strings.Contains(sess.Email, "@") {
		return &UsageError{Reason: fmt.Sprintf("invalid e-mail %q", sess.Email)}
	}
	if err := creds.Login(ctx, sess); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Logged in as %s\n", SuccessStyle.Render("✓"), sess.Email)

	if !prime {
		return nil
	}
	for _, r := range creds.Prime(ctx) {
		label := LabelStyle.Render(r.Name + " token")
		switch {
		case r.Err == nil:
			fmt.Fprintf(out, "%s%s\n", label, SuccessStyle.Render("ok"))
		case errors.Is(r.Err, auth.ErrNoActiveSession):
			fmt.Fprintf(out, "%s%s\n", label, MutedStyle.Render("not configured"))
		default:
			a.log.WithError(r.Err).WithField("token", r.Name).Warn("token prime failed")
			fmt.Fprintf(out, "%s%s\n", label, ErrorStyle.Render(r.Err.Error()))
		}
	}
	return nil
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the token cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds := auth.Open(a.cfg, a.log)
			defer creds.Close()
			if err := creds.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Logged out\n", SuccessStyle.Render("✓"))
			return nil
		},
	}
}

// =============================================================================
// INPUT HELPERS
// =============================================================================

func readLine(in *bufio.Reader, prompts io.Writer, prompt string) (string, error) {
	fmt.Fprint(prompts, prompt)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo when the command reads a terminal.
func readSecret(cmd *cobra.Command, in *bufio.Reader, prompt string) (string, error) {
	if cmd.InOrStdin() != os.Stdin || !IsTTY() {
		return readLine(in, cmd.ErrOrStderr(), prompt)
	}
	return readPassword(cmd.ErrOrStderr(), prompt)
}
