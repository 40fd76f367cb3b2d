// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/jeranaias/pastel-chat/internal/auth"
	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/session"
)

// runtime is the wired transport, credentials and session for one command.
type runtime struct {
	client *backend.Client
	creds  *auth.Provider
	sess   *session.Session
}

func (a *app) newRuntime(hooks session.Hooks) *runtime {
	client := backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL:        a.cfg.Backend.BaseURL,
		APIPrefix:      a.cfg.Backend.APIPrefix,
		ConnectTimeout: a.cfg.ConnectTimeout(),
		UserAgent:      "pastel-chat/" + Version,
		Logger:         a.log,
	})
	creds := auth.Open(a.cfg, a.log)
	sess := session.New(session.Config{
		Transport:   client,
		Credentials: creds,
		Logger:      a.log,
		Hooks:       hooks,
	})
	return &runtime{client: client, creds: creds, sess: sess}
}

func (r *runtime) Close() {
	r.client.Close()
	r.creds.Close()
}
