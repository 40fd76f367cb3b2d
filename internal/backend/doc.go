// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend opens streaming requests against the pastel AI backend.
//
// Each Endpoint has its own required credential headers and body shape:
//
//	summary_azure_tasks     Azure-Token                              {prompt}
//	summary_lastweek_tasks  Pastel-Token, Pastel-Email, Azure-Token  {prompt, machine_name}
//	check_leave_plan        M365-Token, Azure-Token                  {date}
//
// BuildRequest resolves only the credentials the endpoint needs, and
// Client.Open posts the request and hands back the raw SSE body.
//
// # Usage
//
//	client := backend.NewClientWithConfig(&backend.ClientConfig{BaseURL: base})
//	defer client.Close()
//
//	req, err := backend.BuildRequest(ctx, backend.EndpointAzureTasks, prompt, creds)
//	body, err := client.Open(ctx, req)
//	defer body.Close()
package backend
