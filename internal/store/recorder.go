package store

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/qcore/internal/channel"
	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/protocol"
)

// ClientErrorCode marks exchanges that failed with an error outside the
// core taxonomy, e.g. a cancelled context.
const ClientErrorCode = "CLIENT_ERROR"

// Recorder writes every channel exchange of one session to the journal.
// It implements channel.Recorder.
type Recorder struct {
	store   *Store
	session string
	clock   *Clock
	logger  *slog.Logger
	timeout time.Duration
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets where write failures are reported.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithWriteTimeout bounds each journal write. Defaults to 5s.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.timeout = d
	}
}

// NewRecorder registers the session and returns a recorder for it. If the
// session already has rows, numbering continues after the last one.
func NewRecorder(ctx context.Context, st *Store, sessionID, engine string, opts ...RecorderOption) (*Recorder, error) {
	if err := st.BeginSession(ctx, sessionID, engine, time.Now()); err != nil {
		return nil, err
	}
	last, err := st.LastSeq(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		store:   st,
		session: sessionID,
		clock:   NewClockAt(last),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record implements channel.Recorder. Write failures are logged; they
// never fail the exchange itself.
func (r *Recorder) Record(ex channel.Exchange) {
	e := Entry{
		SessionID: r.session,
		Seq:       r.clock.Next(),
		Request:   strings.Join(ex.Lines, "\n"),
		Response:  ex.Response,
		ErrorCode: errorCode(ex),
		StartedAt: ex.Started,
		Duration:  ex.Duration,
	}
	if len(ex.Lines) > 0 {
		e.Command = channel.CommandName(ex.Lines[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.WriteEntry(ctx, e); err != nil {
		r.logger.Warn("journal.write_failed", "seq", e.Seq, "command", e.Command, "error", err.Error())
	}
}

// Seq returns the number of the last recorded exchange.
func (r *Recorder) Seq() int64 {
	return r.clock.Current()
}

func errorCode(ex channel.Exchange) string {
	if ex.Err != nil {
		if code := coreerr.CodeOf(ex.Err); code != "" {
			return string(code)
		}
		return ClientErrorCode
	}
	if strings.HasPrefix(ex.Response, "!!!") {
		return string(coreerr.CodeOf(protocol.Classify(ex.Response)))
	}
	return ""
}
