package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/qcore/internal/channel"
	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
	"github.com/roach88/qcore/internal/graphxml"
	"github.com/roach88/qcore/internal/protocol"
	"github.com/roach88/qcore/internal/theory"
)

// ClipboardGraph is the engine graph that copy, cut and paste go through.
const ClipboardGraph = "__clip__"

// NoMoreRewrites is the engine message that ends a normalisation loop.
const NoMoreRewrites = "No more rewrites."

// Core drives the engine on behalf of the embedding application.
type Core struct {
	client *protocol.Client
	logger *slog.Logger
	theory *theory.Theory

	rwMu     sync.Mutex
	rewrites map[*graph.Graph][]graph.Rewrite // present means RewritesAttached

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Core) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTheory sets the vertex-type catalog used to validate AddVertex.
// Without one, any type name is passed through.
func WithTheory(t *theory.Theory) Option {
	return func(c *Core) {
		c.theory = t
	}
}

// New creates a Core over conn.
func New(conn channel.Conn, opts ...Option) *Core {
	return NewWithClient(protocol.NewClient(conn), opts...)
}

// NewWithClient creates a Core over an existing protocol client.
func NewWithClient(client *protocol.Client, opts ...Option) *Core {
	c := &Core{
		client:   client,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		rewrites: make(map[*graph.Graph][]graph.Rewrite),
		subs:     make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Theory returns the configured theory, which may be nil.
func (c *Core) Theory() *theory.Theory {
	return c.theory
}

// mutate runs fn with g locked and a known engine name, then emits kind on
// success. Attached rewrites are dropped unless fn failed a client-side
// precondition: once a mutating command may have reached the engine the
// candidates are stale, even if the follow-up resync failed.
func (c *Core) mutate(g *graph.Graph, kind EventKind, fn func(name string) error) error {
	g.Lock()
	name := g.Name()
	if name == "" {
		g.Unlock()
		return errNoName()
	}
	err := fn(name)
	if err == nil || !rejectedLocally(err) {
		c.clearRewrites(g)
	}
	g.Unlock()

	if err == nil && kind != 0 {
		c.emit(Event{Kind: kind, Graph: g})
	}
	return err
}

// query runs fn with g locked and a known engine name, without touching
// rewrite state or emitting events.
func (c *Core) query(g *graph.Graph, fn func(name string) error) error {
	g.Lock()
	defer g.Unlock()
	name := g.Name()
	if name == "" {
		return errNoName()
	}
	return fn(name)
}

// rejectedLocally reports whether err was raised before anything was sent.
func rejectedLocally(err error) bool {
	return coreerr.IsCode(err, coreerr.CodeInvalidArgument) ||
		coreerr.IsCode(err, coreerr.CodeNoRewritesAttached)
}

// lockedName reads g's name under its lock.
func lockedName(g *graph.Graph) string {
	g.Lock()
	defer g.Unlock()
	return g.Name()
}

func errNoName() error {
	return coreerr.New(coreerr.CodeInvalidArgument, "the graph does not have a name")
}

// resync fetches the full snapshot for name and merges it into g. The
// caller holds g's lock.
func (c *Core) resync(ctx context.Context, g *graph.Graph, name string) error {
	doc, err := c.client.Command(ctx, "graph_xml", protocol.Name(name))
	if err != nil {
		return err
	}
	st, err := graphxml.Merge(g, doc)
	if err != nil {
		c.logger.Error("graph.resync_failed", "graph", name, "error", err.Error())
		return fmt.Errorf("resync %s: %w", name, err)
	}
	c.logger.Debug("graph.resynced",
		"graph", name,
		"added", st.Added,
		"updated", st.Updated,
		"removed", st.Removed,
	)
	return nil
}

// Resync refreshes g from the engine's snapshot. Attached rewrites are
// kept: the engine's state has not changed.
func (c *Core) Resync(ctx context.Context, g *graph.Graph) error {
	err := c.query(g, func(name string) error {
		return c.resync(ctx, g, name)
	})
	if err == nil {
		c.emit(Event{Kind: GraphChanged, Graph: g})
	}
	return err
}

// command sends cmd with g's name as the first argument followed by args.
func (c *Core) command(ctx context.Context, cmd, name string, args ...protocol.Arg) (string, error) {
	return c.client.Command(ctx, cmd, append([]protocol.Arg{protocol.Name(name)}, args...)...)
}

func (c *Core) commandName(ctx context.Context, cmd, name string, args ...protocol.Arg) (string, error) {
	return c.client.Name(ctx, cmd, append([]protocol.Arg{protocol.Name(name)}, args...)...)
}

// ConsoleCommand sends a line typed by a user and returns the engine's
// answer. Engine rejections are returned as errors for display.
func (c *Core) ConsoleCommand(ctx context.Context, line string) (string, error) {
	return c.client.Console(ctx, theory.Normalize(line))
}

// Commands lists the engine's console commands.
func (c *Core) Commands(ctx context.Context) ([]string, error) {
	return c.client.List(ctx, "help")
}
