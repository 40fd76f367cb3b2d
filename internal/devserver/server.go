// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/sirupsen/logrus"
	"github.com/tmaxmax/go-sse"

	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/logger"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config controls the mock backend.
type Config struct {
	// APIPrefix is the route prefix (default: backend.DefaultAPIPrefix).
	APIPrefix string
	// Delay is the pause between frames.
	Delay time.Duration
	// Script picks the response (default: DefaultScript).
	Script ScriptFunc
	Logger logrus.FieldLogger
}

// Server is the mock backend.
type Server struct {
	cfg  Config
	echo *echo.Echo
	log  logrus.FieldLogger

	requests atomic.Int64
	streams  atomic.Int64
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = backend.DefaultAPIPrefix
	}
	if cfg.Script == nil {
		cfg.Script = DefaultScript
	}
	s := &Server{
		cfg:  cfg,
		echo: echo.New(),
		log:  logger.OrDiscard(cfg.Logger).WithField("component", "devserver"),
	}

	s.echo.Use(s.logRequests)
	g := s.echo.Group("/" + strings.Trim(cfg.APIPrefix, "/"))
	g.POST("/:endpoint", s.handleStream)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Requests returns how many requests reached a stream route.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Streams returns how many responses started streaming.
func (s *Server) Streams() int64 {
	return s.streams.Load()
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
// ready, when non-nil, receives the bound address once listening.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if ready != nil {
		ready(ln.Addr())
	}
	s.log.WithField("addr", ln.Addr().String()).Info("mock backend listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		start := time.Now()
		err := next(c)
		entry := s.log.WithFields(logrus.Fields{
			"method":   c.Request().Method,
			"path":     c.Request().URL.Path,
			"duration": time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Warn("request rejected")
		} else {
			entry.Debug("request served")
		}
		return err
	}
}

func (s *Server) handleStream(c *echo.Context) error {
	s.requests.Add(1)

	ep, err := backend.ParseEndpoint(c.Param("endpoint"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	for _, h := range ep.RequiredHeaders() {
		if strings.TrimSpace(c.Request().Header.Get(h)) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing "+h+" header")
		}
	}

	prompt, err := readPrompt(c.Request(), ep)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	script := s.cfg.Script(ep, prompt)
	if script.Fail {
		return echo.NewHTTPError(http.StatusInternalServerError, "scripted failure")
	}

	sess, err := sse.Upgrade(c.Response(), c.Request())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.streams.Add(1)
	return s.writeFrames(c.Request().Context(), sess, script)
}

// readPrompt decodes the body shape ep expects and returns its prompt.
func readPrompt(r *http.Request, ep backend.Endpoint) (string, error) {
	var body struct {
		Prompt      *string `json:"prompt"`
		MachineName *string `json:"machine_name"`
		Date        *string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", errors.New("body must be a JSON object")
	}

	switch ep {
	case backend.EndpointLeavePlan:
		if body.Date == nil {
			return "", errors.New("date is required")
		}
		return *body.Date, nil
	case backend.EndpointLastWeekTasks:
		if body.MachineName == nil || *body.MachineName == "" {
			return "", errors.New("machine_name is required")
		}
	}
	if body.Prompt == nil {
		return "", errors.New("prompt is required")
	}
	return *body.Prompt, nil
}

func (s *Server) writeFrames(ctx context.Context, sess *sse.Session, script Script) error {
	if err := sess.Flush(); err != nil {
		return err
	}

	for i, payload := range script.Frames() {
		if i > 0 && s.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.Delay):
			}
		}

		msg := &sse.Message{}
		msg.AppendData(payload)

		var err error
		if script.Split {
			err = writeSplit(sess.Res, msg)
		} else if err = sess.Send(msg); err == nil {
			err = sess.Flush()
		}
		if err != nil {
			s.log.WithError(err).Debug("client went away mid-stream")
			return nil
		}
	}
	return nil
}

// writeSplit sends one frame as two flushed writes, cutting it mid-line.
func writeSplit(w sse.ResponseWriter, msg *sse.Message) error {
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return err
	}
	data := buf.Bytes()
	mid := len(data) / 2
	for _, part := range [][]byte{data[:mid], data[mid:]} {
		if _, err := w.Write(part); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}
