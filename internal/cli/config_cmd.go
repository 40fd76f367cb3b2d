// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/pastel-chat/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, locate or initialize the configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), a.cfg.String())
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if a.cfgPath != "" {
				fmt.Fprintln(out, a.cfgPath)
				return nil
			}
			p, err := config.ConfigPathTOML()
			if err != nil {
				return &ConfigError{Err: err}
			}
			fmt.Fprintf(out, "%s %s\n", p, MutedStyle.Render("(not created)"))
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := config.ConfigPathTOML()
			if err != nil {
				return &ConfigError{Err: err}
			}
			if _, err := os.Stat(p); err == nil && !force {
				return &UsageError{Reason: p + " already exists", Example: "pastel config init --force"}
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return &ConfigError{Err: err}
			}
			if err := config.EnsureConfigDir(); err != nil {
				return &ConfigError{Err: err}
			}
			if err := config.SaveTOML(config.Default(), p); err != nil {
				return &ConfigError{Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", SuccessStyle.Render("✓"), p)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(show, path, initCmd)
	return cmd
}
