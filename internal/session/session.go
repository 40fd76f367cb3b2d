// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/pastel-chat/internal/assembler"
	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/logger"
	"github.com/jeranaias/pastel-chat/internal/model"
	"github.com/jeranaias/pastel-chat/internal/stream"
)

var (
	// ErrTurnInProgress is returned when Send is called while a turn runs.
	ErrTurnInProgress = errors.New("a response is still streaming")
	// ErrEmptyResponse is reported when a stream ends without producing
	// any content.
	ErrEmptyResponse = errors.New("backend returned an empty response")
)

// DefaultReadBufferSize is the transport read size.
const DefaultReadBufferSize = 32 * 1024

// =============================================================================
// TYPES
// =============================================================================

// Transport opens a backend stream. *backend.Client implements it.
type Transport interface {
	Open(ctx context.Context, req *backend.Request) (io.ReadCloser, error)
}

// Hooks are optional observers. They run on the goroutine calling Send and
// must not modify the transcript.
type Hooks struct {
	// OnRefresh is called after each applied change.
	OnRefresh func(m assembler.Mutation)
	// OnLoading is called with true when a turn starts and false when it ends.
	OnLoading func(loading bool)
}

// Config wires a Session.
type Config struct {
	Transport   Transport
	Credentials backend.Credentials
	// Transcript to write into. Nil creates an empty one.
	Transcript *model.Transcript
	Logger     logrus.FieldLogger
	Hooks      Hooks
	// ReadBufferSize defaults to DefaultReadBufferSize.
	ReadBufferSize int
}

// Result describes one finished turn.
type Result struct {
	// Message is the final state of the bot message.
	Message model.MessageView
	Stats   Stats
	// Err is the turn-level failure, if any. The transcript already shows
	// the outcome.
	Err error
}

// Session runs turns against one transcript, one at a time.
type Session struct {
	id         string
	transport  Transport
	creds      backend.Credentials
	transcript *model.Transcript
	log        logrus.FieldLogger
	hooks      Hooks
	bufSize    int

	turn    sync.Mutex
	loading atomic.Bool
	turns   atomic.Int64
}

// New creates a session.
func New(cfg Config) *Session {
	t := cfg.Transcript
	if t == nil {
		t = model.NewTranscript()
	}
	size := cfg.ReadBufferSize
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	id := uuid.NewString()
	return &Session{
		id:         id,
		transport:  cfg.Transport,
		creds:      cfg.Credentials,
		transcript: t,
		log:        logger.OrDiscard(cfg.Logger).WithField("session", id),
		hooks:      cfg.Hooks,
		bufSize:    size,
	}
}

// ID returns the session id used in logs.
func (s *Session) ID() string {
	return s.id
}

// Transcript returns the conversation.
func (s *Session) Transcript() *model.Transcript {
	return s.transcript
}

// Loading reports whether a turn is awaiting its response.
func (s *Session) Loading() bool {
	return s.loading.Load()
}

// Turns returns the number of turns started.
func (s *Session) Turns() int64 {
	return s.turns.Load()
}

// =============================================================================
// SEND
// =============================================================================

// Send runs one turn: it records prompt, streams the endpoint's response
// into a new bot message and returns when the stream ends.
func (s *Session) Send(ctx context.Context, prompt string, ep backend.Endpoint) Result {
	if !s.turn.TryLock() {
		return Result{Err: ErrTurnInProgress}
	}
	defer s.turn.Unlock()

	turn := s.turns.Add(1)
	log := s.log.WithFields(logrus.Fields{"turn": turn, "endpoint": ep})

	s.transcript.AddUserMessage(prompt)
	bot := s.transcript.AddBotMessage()
	asm := assembler.New(bot)
	stats := newStats()

	s.setLoading(true)
	defer s.setLoading(false)

	err := s.stream(ctx, prompt, ep, asm, stats, log)
	s.refresh(asm.Finish(err != nil))

	if err == nil && asm.Applied() == 0 {
		err = ErrEmptyResponse
	}
	stats.finish()

	entry := log.WithFields(logrus.Fields{
		"duration": stats.Duration,
		"lines":    stats.Lines,
		"events":   stats.Events,
		"ignored":  stats.Ignored,
	})
	if err != nil {
		entry.WithError(err).Warn("turn failed")
	} else {
		entry.Info("turn complete")
	}

	return Result{Message: bot.Snapshot(), Stats: *stats, Err: err}
}

// stream opens the transport and folds it into asm. Returned errors are
// turn-level failures; malformed frames never surface here.
func (s *Session) stream(ctx context.Context, prompt string, ep backend.Endpoint, asm *assembler.Assembler, stats *Stats, log logrus.FieldLogger) error {
	if s.transport == nil {
		return errors.New("no transport configured")
	}
	req, err := backend.BuildRequest(ctx, ep, prompt, s.creds)
	if err != nil {
		return err
	}

	body, err := s.transport.Open(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()
	log.Debug("stream opened")

	reasm := stream.NewReassembler()
	dec := stream.NewDecoder(log)
	buf := make([]byte, s.bufSize)

	var readErr error
	for {
		n, err := body.Read(buf)
		if n > 0 {
			stats.Bytes += int64(n)
			for _, line := range reasm.Push(buf[:n]) {
				ev, ok := dec.Decode(line)
				if !ok {
					continue
				}
				stats.recordEvent()
				s.refresh(asm.Apply(ev))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = err
			break
		}
	}

	if dropped := reasm.Close(); dropped > 0 {
		log.WithField("bytes", dropped).Debug("dropped unterminated trailing line")
		stats.Dropped = dropped
	}
	stats.absorb(dec.Stats())

	if readErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("stream interrupted: %w", ctxErr)
		}
		return fmt.Errorf("stream interrupted: %w", readErr)
	}
	return nil
}

func (s *Session) refresh(m assembler.Mutation) {
	if !m.Changed() || s.hooks.OnRefresh == nil {
		return
	}
	s.hooks.OnRefresh(m)
}

func (s *Session) setLoading(v bool) {
	if s.loading.Swap(v) == v {
		return
	}
	if s.hooks.OnLoading != nil {
		s.hooks.OnLoading(v)
	}
}

// =============================================================================
// TRANSCRIPT HELPERS
// =============================================================================

// Greet adds the welcome message for userName.
func (s *Session) Greet(userName string) *model.Message {
	return s.transcript.Greet(userName)
}

// Reset clears the transcript. It fails while a turn is streaming.
func (s *Session) Reset() error {
	if !s.turn.TryLock() {
		return ErrTurnInProgress
	}
	defer s.turn.Unlock()
	s.transcript.Clear()
	return nil
}
