// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/config"
	"github.com/jeranaias/pastel-chat/internal/logger"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app holds what every command needs once flags are parsed.
type app struct {
	configFlag   string
	endpointFlag string
	logLevelFlag string

	cfg *config.Config
	// cfgPath is the file the config came from, if any.
	cfgPath string

	log       *logrus.Logger
	logCloser io.Closer
}

// load reads the configuration and opens the log file.
func (a *app) load(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configFlag != "" {
		cfg, err = config.LoadFromPath(a.configFlag)
		if err != nil {
			return &ConfigError{Err: err}
		}
		a.cfgPath = a.configFlag
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return &ConfigError{Err: err}
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (using defaults)\n", err)
		}
		a.cfgPath = discoverConfigPath()
	}
	if a.logLevelFlag != "" {
		cfg.Logging.Level = a.logLevelFlag
	}
	config.SetGlobal(cfg)
	a.cfg = cfg

	logPath, err := cfg.LogPath()
	if err != nil {
		return &ConfigError{Err: err}
	}
	log, closer, err := logger.New(logger.Config{Level: cfg.Logging.Level, File: logPath})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (logging disabled)\n", err)
		log = logger.Discard()
	}
	a.log, a.logCloser = log, closer
	a.log.WithFields(logrus.Fields{"command": cmd.Name(), "version": Version}).Debug("starting")
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

// endpoint resolves --endpoint, falling back to the configured default.
func (a *app) endpoint() (backend.Endpoint, error) {
	raw := a.endpointFlag
	if raw == "" {
		raw = a.cfg.DefaultEndpoint
	}
	ep, err := backend.ParseEndpoint(raw)
	if err != nil {
		return "", &UsageError{Reason: err.Error(), Example: "pastel ask -e check_leave_plan 2025-06-01"}
	}
	return ep, nil
}

func discoverConfigPath() string {
	for _, fn := range []func() (string, error){config.ConfigPathTOML, config.ConfigPathJSON, config.ConfigPathYAML} {
		path, err := fn()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pastel",
		Short: "Chat with the Pastel work assistant",
		Long: `pastel streams answers from the Pastel AI backend.

Endpoints:
  summary_azure_tasks     Summarize Azure DevOps tasks
  summary_lastweek_tasks  Summarize last week's tasks
  check_leave_plan        Check the leave plan for a date

Without a command the full-screen chat starts.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
		Args: cobra.NoArgs,
		RunE: a.runTUI,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFlag, "config", "c", "", "config file (default ~/.pastel/config.toml)")
	pf.StringVarP(&a.endpointFlag, "endpoint", "e", "", "backend endpoint (default from config)")
	pf.StringVar(&a.logLevelFlag, "log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		newTUICommand(a),
		newChatCommand(a),
		newAskCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newConfigCommand(a),
		newMockCommand(a),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		DisplayError(root.ErrOrStderr(), err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
