package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/roach88/qcore/internal/core"
	"github.com/roach88/qcore/internal/logging"
	"github.com/roach88/qcore/internal/store"
	"github.com/roach88/qcore/internal/theory"
)

// engineSession is a running engine plus what the CLI opened around it.
type engineSession struct {
	*core.Session

	logger  *logging.Logger
	journal *store.Store
}

// startSession loads the configuration, builds the logger, opens the
// journal if one is configured and launches the engine. logs receives the
// text log stream.
func startSession(ctx context.Context, opts *RootOptions, logs io.Writer) (*engineSession, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	grace, err := cfg.Grace()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	level := new(slog.LevelVar)
	level.Set(cfg.LogLevel())
	logger, err := logging.New(logging.Options{Writer: logs, Level: level, File: cfg.Log.File})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open log file", err)
	}

	es := &engineSession{logger: logger}
	id := core.UUIDv7Generator{}.Generate()

	sopts := core.SessionOptions{
		Process:     cfg.Process(logger.Logger),
		Handshake:   cfg.Engine.Handshake,
		GracePeriod: grace,
		ID:          id,
		Theory:      theory.Default(),
		Logger:      logger.Logger,
	}

	if cfg.Journal.Path != "" {
		st, err := store.Open(cfg.Journal.Path)
		if err != nil {
			_ = logger.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		rec, err := store.NewRecorder(ctx, st, id, cfg.Engine.Path, store.WithRecorderLogger(logger.Logger))
		if err != nil {
			_ = st.Close()
			_ = logger.Close()
			return nil, WrapExitError(ExitCommandError, "failed to start journal", err)
		}
		es.journal = st
		sopts.Recorder = rec
	}

	s, err := core.Start(ctx, sopts)
	if err != nil {
		es.closeResources()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	es.Session = s
	return es, nil
}

// Close shuts the engine down and releases the journal and log file.
func (s *engineSession) Close(ctx context.Context) error {
	err := s.Shutdown(ctx)
	return errors.Join(err, s.closeResources())
}

func (s *engineSession) closeResources() error {
	var errs []error
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	errs = append(errs, s.logger.Close())
	return errors.Join(errs...)
}
