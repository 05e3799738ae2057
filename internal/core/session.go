package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/qcore/internal/channel"
	"github.com/roach88/qcore/internal/process"
	"github.com/roach88/qcore/internal/theory"
)

// DefaultGracePeriod is how long Shutdown waits for the engine to exit
// after quit before killing it.
const DefaultGracePeriod = 5 * time.Second

// SessionOptions configures Start.
type SessionOptions struct {
	// Process selects and launches the engine executable.
	Process process.Options

	// Handshake synchronises with the engine's start-up output before the
	// first command.
	Handshake bool

	// GracePeriod defaults to DefaultGracePeriod.
	GracePeriod time.Duration

	// ID labels the session. When empty it is taken from IDs, or from a
	// UUIDv7 generator when IDs is nil too.
	ID  string
	IDs IDGenerator

	// Recorder, if set, observes every exchange.
	Recorder channel.Recorder

	Theory *theory.Theory
	Logger *slog.Logger
}

// Session owns one engine process and the Core driving it.
type Session struct {
	id     string
	proc   *process.Session
	ch     *channel.Channel
	core   *Core
	grace  time.Duration
	logger *slog.Logger

	shutdown sync.Once
	err      error
}

// Start launches the engine, opens the channel and, if asked, performs the
// handshake. On failure nothing is left running.
func Start(ctx context.Context, opts SessionOptions) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := opts.ID
	if id == "" {
		gen := opts.IDs
		if gen == nil {
			gen = UUIDv7Generator{}
		}
		id = gen.Generate()
	}
	logger = logger.With("session", id)

	popts := opts.Process
	popts.Logger = logger
	proc, err := process.Start(popts)
	if err != nil {
		return nil, err
	}

	chOpts := []channel.Option{channel.WithLiveness(proc), channel.WithLogger(logger)}
	if opts.Recorder != nil {
		chOpts = append(chOpts, channel.WithRecorder(opts.Recorder))
	}
	ch := channel.New(proc.Stdout(), proc.Stdin(), chOpts...)

	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	s := &Session{
		id:     id,
		proc:   proc,
		ch:     ch,
		grace:  grace,
		logger: logger,
		core:   New(ch, WithLogger(logger), WithTheory(opts.Theory)),
	}

	if opts.Handshake {
		if err := ch.Handshake(ctx); err != nil {
			s.terminate()
			return nil, err
		}
	}
	logger.Info("session.started", "pid", proc.Pid())
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Core returns the facade bound to this session.
func (s *Session) Core() *Core { return s.core }

// Done is closed when the engine process exits.
func (s *Session) Done() <-chan struct{} { return s.proc.Done() }

// Shutdown asks the engine to quit, waits up to the grace period and then
// kills it. A failing quit is logged, not returned. The channel is closed
// for good: later calls fail with SESSION_CLOSED. Shutdown is idempotent.
func (s *Session) Shutdown(ctx context.Context) error {
	s.shutdown.Do(func() {
		// An exchange stuck on a silent engine holds the channel; quit gets
		// the grace period to take it, then the process is killed anyway.
		quitCtx, cancel := context.WithTimeout(ctx, s.grace)
		err := s.ch.Quit(quitCtx)
		cancel()
		if err != nil {
			s.logger.Warn("session.quit_failed", "error", err.Error())
		}
		s.err = s.terminate()
		s.logger.Info("session.stopped")
	})
	return s.err
}

// terminate makes sure the process is gone and then closes the channel.
// The process goes first and the output pipe second, so that an exchange
// stuck reading is released even if a child of the engine still holds the
// pipe open.
func (s *Session) terminate() error {
	_ = s.proc.CloseStdin()

	var err error
	if !s.proc.WaitTimeout(s.grace) {
		s.logger.Warn("session.force_kill", "grace", s.grace)
		err = s.proc.Kill()
		s.proc.WaitTimeout(s.grace)
	}
	_ = s.proc.Release()
	_ = s.ch.Close()
	return err
}
