// Package channel turns the engine's byte streams into discrete
// request/response exchanges.
//
// # Framing
//
// A request is one or more newline-terminated lines written and flushed
// together. A response is every byte up to the sentinel, a single space
// followed by a backspace (0x08). The engine follows every response with a
// prompt framed the same way; the channel reads and discards it so callers
// never see it.
//
// # Single flight
//
// The wire carries no request identifiers, so exactly one exchange may be in
// flight. Exchange holds the channel's lock for the full
// send+receive+prompt cycle. Waiting for the lock honours the context; once a
// request has been written its response is always consumed, whatever the
// context says, so framing stays consistent.
//
// # Failure
//
// Write and read failures are classified as PROCESS_TERMINATED when the
// process has exited and COMMUNICATION_FAILURE otherwise. Either one closes
// the channel permanently: later calls fail with SESSION_CLOSED without
// touching the process.
package channel

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/qcore/internal/coreerr"
)

const (
	// Sentinel terminates every response and prompt.
	Sentinel byte = 0x08

	// Padding precedes the sentinel and is stripped with it.
	Padding byte = ' '
)

// Conn is a request/response transport to the engine.
// Channel is the production implementation; Fake serves tests.
type Conn interface {
	// Exchange sends lines (the request line first, then any block lines)
	// and returns the response payload.
	Exchange(ctx context.Context, lines ...string) (string, error)

	// Close marks the transport closed. Later exchanges fail with SESSION_CLOSED.
	Close() error
}

// Liveness reports whether the peer process has exited.
// process.Session implements it.
type Liveness interface {
	Exited() bool
}

// Exchange describes one completed request/response cycle.
type Exchange struct {
	Lines    []string
	Response string
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Recorder observes completed exchanges, e.g. to persist a journal.
// Record is called with the channel lock held and must not call back into
// the channel.
type Recorder interface {
	Record(ex Exchange)
}

// Channel is the pipe-backed Conn.
type Channel struct {
	sem chan struct{}

	r        *bufio.Reader
	w        *bufio.Writer
	proc     Liveness
	logger   *slog.Logger
	recorder Recorder

	// guarded by sem
	closed   bool
	closeErr error
}

// Option configures a Channel.
type Option func(*Channel)

// WithLiveness sets the probe used to classify I/O failures.
// Without one, every failure is a COMMUNICATION_FAILURE.
func WithLiveness(l Liveness) Option {
	return func(c *Channel) {
		c.proc = l
	}
}

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder attaches an exchange recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Channel) {
		c.recorder = r
	}
}

// New creates a Channel reading responses from r and writing requests to w.
func New(r io.Reader, w io.Writer, opts ...Option) *Channel {
	c := &Channel{
		sem:    make(chan struct{}, 1),
		r:      bufio.NewReader(r),
		w:      bufio.NewWriter(w),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// acquire takes the single-flight lock, giving up if ctx ends first.
func (c *Channel) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) release() {
	<-c.sem
}

// Exchange implements Conn.
func (c *Channel) Exchange(ctx context.Context, lines ...string) (string, error) {
	if len(lines) == 0 {
		return "", coreerr.New(coreerr.CodeInvalidArgument, "empty request")
	}
	if strings.ContainsAny(lines[0], "\r\n") {
		return "", coreerr.New(coreerr.CodeInvalidArgument, "request line contains a line terminator")
	}
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	defer c.release()

	if c.closed {
		return "", coreerr.SessionClosed(c.closeErr)
	}

	started := time.Now()
	resp, err := c.roundTrip(lines)
	elapsed := time.Since(started)

	if err != nil {
		c.logger.Error("channel.exchange_failed",
			"command", CommandName(lines[0]),
			"error", err.Error(),
		)
	} else {
		c.logger.Debug("channel.exchange",
			"command", CommandName(lines[0]),
			"bytes", len(resp),
			"duration", elapsed,
		)
	}
	if c.recorder != nil {
		c.recorder.Record(Exchange{
			Lines:    append([]string(nil), lines...),
			Response: resp,
			Err:      err,
			Started:  started,
			Duration: elapsed,
		})
	}
	return resp, err
}

// roundTrip performs send, receive and prompt-eat. Caller holds the lock.
func (c *Channel) roundTrip(lines []string) (string, error) {
	if err := c.send(lines); err != nil {
		return "", err
	}
	resp, err := c.receive()
	if err != nil {
		return "", err
	}
	if _, err := c.receive(); err != nil {
		return "", err
	}
	return resp, nil
}

// Handshake synchronises with a freshly started engine: whatever the engine
// printed on start-up is discarded until it echoes HELO, then the prompt
// following it is eaten.
func (c *Channel) Handshake(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if c.closed {
		return coreerr.SessionClosed(c.closeErr)
	}
	if err := c.send([]string{"garbage_2039483945;", "HELO;"}); err != nil {
		return err
	}
	for {
		msg, err := c.receive()
		if err != nil {
			return err
		}
		if strings.Contains(msg, "HELO") {
			break
		}
	}
	if _, err := c.receive(); err != nil {
		return err
	}
	c.logger.Info("channel.synchronised")
	return nil
}

// Quit sends a best-effort quit request without waiting for a response and
// closes the channel.
func (c *Channel) Quit(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if c.closed {
		return coreerr.SessionClosed(c.closeErr)
	}
	err := c.send([]string{"quit;"})
	c.closed = true
	return err
}

// Close implements Conn. It never touches the process.
func (c *Channel) Close() error {
	c.sem <- struct{}{}
	defer c.release()
	c.closed = true
	return nil
}

// Closed reports whether the channel has been closed, with the failure
// that closed it if there was one.
func (c *Channel) Closed() (bool, error) {
	c.sem <- struct{}{}
	defer c.release()
	return c.closed, c.closeErr
}

func (c *Channel) send(lines []string) error {
	for _, line := range lines {
		if _, err := c.w.WriteString(line); err != nil {
			return c.fail("write to engine", err)
		}
		if err := c.w.WriteByte('\n'); err != nil {
			return c.fail("write to engine", err)
		}
	}
	if err := c.w.Flush(); err != nil {
		return c.fail("write to engine", err)
	}
	return nil
}

// receive reads one sentinel-terminated unit and strips the sentinel and
// its padding.
func (c *Channel) receive() (string, error) {
	var buf bytes.Buffer
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			if buf.Len() > 0 {
				c.logger.Error("channel.partial_response", "received", buf.String())
			}
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return "", c.fail("read from engine", err)
		}
		if b == 0 {
			if buf.Len() > 0 {
				c.logger.Error("channel.partial_response", "received", buf.String())
			}
			return "", c.fail("read from engine", errors.New("unexpected null byte"))
		}
		if b == Sentinel {
			break
		}
		buf.WriteByte(b)
	}
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == Padding {
		out = out[:n-1]
	}
	return string(out), nil
}

// fail classifies an I/O error and closes the channel. Caller holds the lock.
func (c *Channel) fail(op string, err error) error {
	code := coreerr.CodeCommunication
	if c.proc != nil && c.proc.Exited() {
		code = coreerr.CodeProcessTerminated
	}
	cerr := coreerr.Wrap(code, op, err)
	c.closed = true
	c.closeErr = cerr
	return cerr
}

// CommandName returns the command word of a request line.
func CommandName(line string) string {
	line = strings.TrimSuffix(strings.TrimSpace(line), ";")
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i]
	}
	return line
}
