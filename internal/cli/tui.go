// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/spf13/cobra"

	"github.com/jeranaias/pastel-chat/internal/render"
	"github.com/jeranaias/pastel-chat/internal/ui/chat"
)

func newTUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Full-screen chat (default)",
		Args:  cobra.NoArgs,
		RunE:  a.runTUI,
	}
}

func (a *app) runTUI(cmd *cobra.Command, _ []string) error {
	ep, err := a.endpoint()
	if err != nil {
		return err
	}

	updates := chat.NewUpdates(0)
	rt := a.newRuntime(updates.Hooks())
	defer rt.Close()

	m, err := chat.New(chat.Options{
		Session:    rt.sess,
		Updates:    updates,
		Endpoint:   ep,
		Render:     render.OptionsFromConfig(a.cfg.UI),
		UserName:   rt.creds.UserName(),
		ConfigPath: a.cfgPath,
		Logger:     a.log,
		Context:    cmd.Context(),
	})
	if err != nil {
		return err
	}
	return chat.Run(m)
}
