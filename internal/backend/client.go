// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"resty.dev/v3"

	"github.com/jeranaias/pastel-chat/internal/logger"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error opening a backend stream.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Body       string
	Cause      error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel ClientErrors by type.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == "" && t.StatusCode == 0
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeCanceled
	ErrTypeUnauthorized
	ErrTypeNotFound
	ErrTypeServer
	ErrTypeInvalidResponse
	ErrTypeCredentials
)

// Sentinel errors for errors.Is checks. They match any ClientError of the
// same type.
var (
	ErrConnection   = &ClientError{Type: ErrTypeConnection}
	ErrTimeout      = &ClientError{Type: ErrTypeTimeout}
	ErrCanceled     = &ClientError{Type: ErrTypeCanceled}
	ErrUnauthorized = &ClientError{Type: ErrTypeUnauthorized}
	ErrNotFound     = &ClientError{Type: ErrTypeNotFound}
	ErrServer       = &ClientError{Type: ErrTypeServer}
	ErrCredentials  = &ClientError{Type: ErrTypeCredentials}
)

// errorBodyLimit caps how much of an error response is kept.
const errorBodyLimit = 512

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend origin, e.g. https://ai.example.com.
	BaseURL string

	// APIPrefix is prepended to the endpoint id (default: /api/v1/ai).
	APIPrefix string

	// ConnectTimeout bounds dialing only. Streams may run for as long as the
	// caller's context allows (default: 10s).
	ConnectTimeout time.Duration

	// UserAgent sent with every request.
	UserAgent string

	// Logger receives transport diagnostics.
	Logger logrus.FieldLogger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:8787",
		APIPrefix:      DefaultAPIPrefix,
		ConnectTimeout: 10 * time.Second,
		UserAgent:      "pastel-chat",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client opens streaming requests against the backend. It is safe for
// concurrent use.
type Client struct {
	config *ClientConfig
	http   *resty.Client
	log    logrus.FieldLogger
}

// NewClient creates a client with the default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client, filling zero values from defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = defaults.APIPrefix
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	log := logger.OrDiscard(cfg.Logger)

	rc := resty.NewWithDialer(&net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	})
	rc.SetLogger(log)
	rc.SetHeader("User-Agent", cfg.UserAgent)

	return &Client{config: &cfg, http: rc, log: log}
}

// URL returns the full URL for ep.
func (c *Client) URL(ep Endpoint) string {
	return strings.TrimRight(c.config.BaseURL, "/") + "/" +
		strings.Trim(c.config.APIPrefix, "/") + "/" + string(ep)
}

// Open posts req and returns the response body as an SSE byte stream. The
// caller must close it. Non-2xx responses are returned as *ClientError with
// a short excerpt of the body.
func (c *Client) Open(ctx context.Context, req *Request) (io.ReadCloser, error) {
	url := c.URL(req.Endpoint)
	log := c.log.WithField("endpoint", req.Endpoint)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetHeader("Accept", "text/event-stream").
		SetBody(req.Body).
		SetDoNotParseResponse(true).
		Post(url)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		log.WithError(err).Warn("backend request failed")
		return nil, transportError(ctx, err)
	}

	if !resp.IsSuccess() {
		excerpt := readExcerpt(resp.Body)
		log.WithFields(logrus.Fields{
			"status": resp.StatusCode(),
			"body":   excerpt,
		}).Warn("backend rejected request")
		return nil, &ClientError{
			Type:       statusType(resp.StatusCode()),
			Message:    "backend returned " + resp.Status(),
			StatusCode: resp.StatusCode(),
			Body:       excerpt,
		}
	}

	if resp.Body == nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "backend returned no body"}
	}
	log.WithField("status", resp.StatusCode()).Debug("stream opened")
	return resp.Body, nil
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

func transportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return &ClientError{Type: ErrTypeCanceled, Message: "request canceled", Cause: err}
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &ClientError{Type: ErrTypeTimeout, Message: "connection timed out", Cause: err}
		}
		return &ClientError{Type: ErrTypeConnection, Message: "failed to reach backend", Cause: err}
	}
}

func statusType(code int) ErrorType {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrTypeUnauthorized
	case code == http.StatusNotFound:
		return ErrTypeNotFound
	case code >= 500:
		return ErrTypeServer
	default:
		return ErrTypeInvalidResponse
	}
}

func readExcerpt(body io.ReadCloser) string {
	if body == nil {
		return ""
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	if err != nil && len(data) == 0 {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return strings.TrimSpace(string(data))
}
