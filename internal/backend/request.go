// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"fmt"
)

// Session is the backend's own session identity.
type Session struct {
	Token string
	Email string
}

// Credentials supplies per-request secrets. Each method may fail on its own,
// typically because there is no active session.
type Credentials interface {
	AzureToken(ctx context.Context) (string, error)
	M365Token(ctx context.Context) (string, error)
	BackendSession(ctx context.Context) (Session, error)
	MachineName() (string, error)
}

// Request is a fully resolved call to one endpoint.
type Request struct {
	Endpoint Endpoint
	Headers  map[string]string
	Body     any
}

type resolved struct {
	machine string
}

// BuildRequest resolves the credentials ep needs and assembles its headers
// and body. Credentials the endpoint does not use are never requested.
func BuildRequest(ctx context.Context, ep Endpoint, prompt string, creds Credentials) (*Request, error) {
	def, ok := endpointDefs[ep]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownEndpoint, string(ep))
	}

	req := &Request{
		Endpoint: ep,
		Headers:  map[string]string{"Content-Type": "application/json"},
	}
	var r resolved

	if def.needs&needSession != 0 {
		sess, err := creds.BackendSession(ctx)
		if err != nil {
			return nil, credentialError("backend session", err)
		}
		req.Headers[HeaderPastelToken] = sess.Token
		req.Headers[HeaderPastelEmail] = sess.Email
	}
	if def.needs&needAzure != 0 {
		tok, err := creds.AzureToken(ctx)
		if err != nil {
			return nil, credentialError("azure token", err)
		}
		req.Headers[HeaderAzureToken] = tok
	}
	if def.needs&needM365 != 0 {
		tok, err := creds.M365Token(ctx)
		if err != nil {
			return nil, credentialError("m365 token", err)
		}
		req.Headers[HeaderM365Token] = tok
	}
	if def.needs&needMachine != 0 {
		name, err := creds.MachineName()
		if err != nil {
			return nil, credentialError("machine name", err)
		}
		r.machine = name
	}

	req.Body = def.body(prompt, r)
	return req, nil
}

func credentialError(what string, cause error) error {
	return &ClientError{
		Type:    ErrTypeCredentials,
		Message: what + " unavailable",
		Cause:   cause,
	}
}
