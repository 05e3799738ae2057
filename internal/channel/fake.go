package channel

import (
	"context"
	"sync"

	"github.com/roach88/qcore/internal/coreerr"
)

// Handler answers one request in place of the engine. lines[0] is the
// request line and any further entries are block lines. The returned payload
// is what the engine would print before the sentinel, "!!! ..." for errors.
// A non-nil error simulates a transport failure.
type Handler func(lines []string) (string, error)

// Fake is an in-process Conn for tests. It honours the same single-flight
// and closed semantics as Channel and records every request it receives.
type Fake struct {
	mu       sync.Mutex
	handler  Handler
	requests [][]string
	closed   bool
	closeErr error
}

// NewFake creates a Fake answering with h.
func NewFake(h Handler) *Fake {
	return &Fake{handler: h}
}

// Exchange implements Conn.
func (f *Fake) Exchange(ctx context.Context, lines ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return "", coreerr.SessionClosed(f.closeErr)
	}
	f.requests = append(f.requests, append([]string(nil), lines...))
	resp, err := f.handler(lines)
	if coreerr.IsFatal(err) {
		f.closed = true
		f.closeErr = err
	}
	return resp, err
}

// Close implements Conn.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Requests returns the request lines received so far, without block lines.
func (f *Fake) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r[0]
	}
	return out
}

// Exchanges returns every request received so far, including block lines.
func (f *Fake) Exchanges() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = append([]string(nil), r...)
	}
	return out
}
