package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
	"github.com/roach88/qcore/internal/protocol"
)

// CreateEmptyGraph asks the engine for a new graph.
func (c *Core) CreateEmptyGraph(ctx context.Context) (*graph.Graph, error) {
	name, err := c.client.Name(ctx, "new_graph")
	if err != nil {
		return nil, err
	}
	g := graph.New(name)
	c.logger.Info("graph.created", "graph", name)
	c.emit(Event{Kind: GraphChanged, Graph: g})
	return g, nil
}

// LoadGraph has the engine load a graph file and returns the synced model.
func (c *Core) LoadGraph(ctx context.Context, path string) (*graph.Graph, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	name, err := c.client.Name(ctx, "load_graph", protocol.Name(abs))
	if err != nil {
		return nil, err
	}
	return c.adopt(ctx, name, abs)
}

// ImportGraph sends a snapshot document to the engine and returns the
// resulting graph.
func (c *Core) ImportGraph(ctx context.Context, doc string) (*graph.Graph, error) {
	res, err := c.client.Block(ctx, "input_graph_xml", doc)
	if err != nil {
		return nil, err
	}
	return c.adopt(ctx, strings.Join(strings.Fields(res), ""), "")
}

func (c *Core) adopt(ctx context.Context, name, file string) (*graph.Graph, error) {
	if name == "" {
		return nil, coreerr.New(coreerr.CodeEngine, "engine returned an empty graph name")
	}
	g := graph.New(name)
	g.SetFileName(file)

	g.Lock()
	err := c.resync(ctx, g, name)
	g.Unlock()
	if err != nil {
		return nil, err
	}
	c.logger.Info("graph.loaded", "graph", name, "file", file)
	c.emit(Event{Kind: GraphChanged, Graph: g})
	return g, nil
}

// SaveGraph has the engine write g to path.
func (c *Core) SaveGraph(ctx context.Context, g *graph.Graph, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	return c.query(g, func(name string) error {
		if _, err := c.command(ctx, "save_graph", name, protocol.Name(abs)); err != nil {
			return err
		}
		g.SetFileName(abs)
		return nil
	})
}

// GraphXML returns the engine's raw snapshot of g.
func (c *Core) GraphXML(ctx context.Context, g *graph.Graph) (string, error) {
	var doc string
	err := c.query(g, func(name string) error {
		var err error
		doc, err = c.command(ctx, "graph_xml", name)
		return err
	})
	return doc, err
}

// DiscardGraph asks the engine to forget g. Afterwards g has no name and
// every operation on it fails with INVALID_ARGUMENT.
func (c *Core) DiscardGraph(ctx context.Context, g *graph.Graph) error {
	g.Lock()
	name := g.Name()
	if name == "" {
		g.Unlock()
		return errNoName()
	}
	_, err := c.command(ctx, "kill_graph", name)
	if err == nil {
		g.SetName("")
		c.clearRewrites(g)
	}
	g.Unlock()
	if err != nil {
		return err
	}
	c.logger.Info("graph.discarded", "graph", name)
	c.emit(Event{Kind: GraphDiscarded, Graph: g, OldName: name})
	return nil
}

// RenameGraph asks the engine to rename g. The engine may pick a different
// name than suggested; the one it returns is recorded and returned.
func (c *Core) RenameGraph(ctx context.Context, g *graph.Graph, suggested string) (string, error) {
	g.Lock()
	old := g.Name()
	if old == "" {
		g.Unlock()
		return "", errNoName()
	}
	name, err := c.client.Name(ctx, "rename_graph", protocol.Name(old), protocol.Name(suggested))
	if err == nil {
		g.SetName(name)
	}
	g.Unlock()
	if err != nil {
		return "", err
	}
	c.emit(Event{Kind: GraphRenamed, Graph: g, OldName: old})
	return name, nil
}

// Undo reverts the last change to g.
func (c *Core) Undo(ctx context.Context, g *graph.Graph) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		if _, err := c.command(ctx, "undo", name); err != nil {
			return err
		}
		return c.resync(ctx, g, name)
	})
}

// Redo re-applies the last undone change to g.
func (c *Core) Redo(ctx context.Context, g *graph.Graph) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		if _, err := c.command(ctx, "redo", name); err != nil {
			return err
		}
		return c.resync(ctx, g, name)
	})
}

// Format selects a Hilbert-space rendering.
type Format string

const (
	FormatPlain       Format = "plain"
	FormatLatex       Format = "latex"
	FormatMathematica Format = "mathematica"
	FormatMatlab      Format = "matlab"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatPlain, FormatLatex, FormatMathematica, FormatMatlab:
		return f, nil
	}
	return "", coreerr.New(coreerr.CodeInvalidArgument, fmt.Sprintf("unknown format %q", s))
}

// HilbertSpace returns the engine's rendering of g's Hilbert-space term.
func (c *Core) HilbertSpace(ctx context.Context, g *graph.Graph, format Format) (string, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return "", err
	}
	var out string
	err := c.query(g, func(name string) error {
		var err error
		out, err = c.command(ctx, "hilb", name, protocol.Name(string(format)))
		return err
	})
	return out, err
}
