// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultAPIPrefix is the path under the base URL that hosts the endpoints.
const DefaultAPIPrefix = "/api/v1/ai"

// Credential headers.
const (
	HeaderAzureToken  = "Azure-Token"
	HeaderM365Token   = "M365-Token"
	HeaderPastelToken = "Pastel-Token"
	HeaderPastelEmail = "Pastel-Email"
)

// ErrUnknownEndpoint is returned for endpoint ids outside the fixed set.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// Endpoint identifies one backend AI service.
type Endpoint string

const (
	EndpointAzureTasks    Endpoint = "summary_azure_tasks"
	EndpointLastWeekTasks Endpoint = "summary_lastweek_tasks"
	EndpointLeavePlan     Endpoint = "check_leave_plan"
)

// credential is a bit set of what an endpoint needs.
type credential uint8

const (
	needAzure credential = 1 << iota
	needM365
	needSession
	needMachine
)

type endpointDef struct {
	description string
	needs       credential
	body        func(prompt string, r resolved) any
}

type promptBody struct {
	Prompt string `json:"prompt"`
}

type lastWeekBody struct {
	Prompt      string `json:"prompt"`
	MachineName string `json:"machine_name"`
}

type leavePlanBody struct {
	Date string `json:"date"`
}

// endpointOrder fixes iteration and cycling order.
var endpointOrder = []Endpoint{EndpointAzureTasks, EndpointLastWeekTasks, EndpointLeavePlan}

var endpointDefs = map[Endpoint]endpointDef{
	EndpointAzureTasks: {
		description: "Summarize Azure DevOps tasks",
		needs:       needAzure,
		body: func(prompt string, _ resolved) any {
			return promptBody{Prompt: prompt}
		},
	},
	EndpointLastWeekTasks: {
		description: "Summarize last week's tasks",
		needs:       needSession | needAzure | needMachine,
		body: func(prompt string, r resolved) any {
			return lastWeekBody{Prompt: prompt, MachineName: r.machine}
		},
	},
	EndpointLeavePlan: {
		description: "Check the leave plan for a date",
		needs:       needM365 | needAzure,
		body: func(prompt string, _ resolved) any {
			return leavePlanBody{Date: prompt}
		},
	},
}

// Endpoints returns every endpoint in display order.
func Endpoints() []Endpoint {
	out := make([]Endpoint, len(endpointOrder))
	copy(out, endpointOrder)
	return out
}

// ParseEndpoint validates an endpoint id. Surrounding space and case are
// ignored.
func ParseEndpoint(s string) (Endpoint, error) {
	ep := Endpoint(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := endpointDefs[ep]; !ok {
		return "", fmt.Errorf("%w %q (want one of: %s)", ErrUnknownEndpoint, s, endpointList())
	}
	return ep, nil
}

func endpointList() string {
	names := make([]string, len(endpointOrder))
	for i, ep := range endpointOrder {
		names[i] = string(ep)
	}
	return strings.Join(names, ", ")
}

// String returns the endpoint id.
func (e Endpoint) String() string {
	return string(e)
}

// Valid reports whether e is one of the known endpoints.
func (e Endpoint) Valid() bool {
	_, ok := endpointDefs[e]
	return ok
}

// Description returns a short human-readable summary.
func (e Endpoint) Description() string {
	if def, ok := endpointDefs[e]; ok {
		return def.description
	}
	return string(e)
}

// RequiredHeaders lists the credential headers the endpoint sends.
func (e Endpoint) RequiredHeaders() []string {
	def, ok := endpointDefs[e]
	if !ok {
		return nil
	}
	var headers []string
	if def.needs&needSession != 0 {
		headers = append(headers, HeaderPastelToken, HeaderPastelEmail)
	}
	if def.needs&needM365 != 0 {
		headers = append(headers, HeaderM365Token)
	}
	if def.needs&needAzure != 0 {
		headers = append(headers, HeaderAzureToken)
	}
	return headers
}

// Next returns the endpoint after e in display order, wrapping around.
func (e Endpoint) Next() Endpoint {
	for i, ep := range endpointOrder {
		if ep == e {
			return endpointOrder[(i+1)%len(endpointOrder)]
		}
	}
	return endpointOrder[0]
}
