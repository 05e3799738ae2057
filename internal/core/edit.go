package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
	"github.com/roach88/qcore/internal/graphxml"
	"github.com/roach88/qcore/internal/protocol"
	"github.com/roach88/qcore/internal/theory"
)

// AddVertex creates a vertex of the given type. The engine answers with a
// <vertex> fragment (or, for older engines, the bare name), which is added
// to the model without a resync.
func (c *Core) AddVertex(ctx context.Context, g *graph.Graph, vertexType string) (*graph.Vertex, error) {
	vertexType = strings.ToLower(theory.Normalize(vertexType))
	if err := c.checkVertexType(vertexType); err != nil {
		return nil, err
	}

	var v *graph.Vertex
	err := c.mutate(g, GraphChanged, func(name string) error {
		res, err := c.command(ctx, "add_vertex", name, protocol.Name(vertexType))
		if err != nil {
			return err
		}
		if strings.HasPrefix(res, "<") {
			v, err = graphxml.ParseVertex(res)
			if err != nil {
				return err
			}
		} else {
			v = &graph.Vertex{ID: res, Type: graph.TypeOf(vertexType)}
			if !v.IsBoundary() {
				v.Kind = vertexType
			}
		}
		if err := g.AddVertex(v); err != nil {
			c.logger.Warn("graph.fast_path_conflict", "graph", name, "error", err.Error())
			if err := c.resync(ctx, g, name); err != nil {
				return err
			}
			v, _ = g.Vertex(v.ID)
			return nil
		}
		if v.IsBoundary() {
			g.RelabelBoundaries()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Core) checkVertexType(vertexType string) error {
	if vertexType == "" {
		return coreerr.New(coreerr.CodeInvalidArgument, "vertex type is required")
	}
	if c.theory == nil || vertexType == graph.Boundary.String() {
		return nil
	}
	if _, ok := c.theory.VertexType(vertexType); !ok {
		return coreerr.New(coreerr.CodeInvalidArgument,
			fmt.Sprintf("theory %s has no vertex type %q", c.theory.Name(), vertexType))
	}
	return nil
}

// AddEdge connects two vertices. The engine's <edge> fragment (or bare
// name) is added to the model without a resync.
func (c *Core) AddEdge(ctx context.Context, g *graph.Graph, source, target string) (*graph.Edge, error) {
	var e *graph.Edge
	err := c.mutate(g, GraphChanged, func(name string) error {
		res, err := c.command(ctx, "add_edge", name, protocol.Name(source), protocol.Name(target))
		if err != nil {
			return err
		}
		if strings.HasPrefix(res, "<") {
			e, err = graphxml.ParseEdge(res)
			if err != nil {
				return err
			}
		} else {
			e = &graph.Edge{ID: res, Source: source, Target: target, Directed: true}
		}
		if err := g.AddEdge(e); err != nil {
			c.logger.Warn("graph.fast_path_conflict", "graph", name, "error", err.Error())
			if err := c.resync(ctx, g, name); err != nil {
				return err
			}
			e, _ = g.Edge(e.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteVertices removes vertices along with their edges.
func (c *Core) DeleteVertices(ctx context.Context, g *graph.Graph, ids ...string) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		if _, err := c.command(ctx, "delete_vertices", name, protocol.Names(ids...)...); err != nil {
			return err
		}
		for _, id := range ids {
			g.RemoveVertex(id)
		}
		g.RelabelBoundaries()
		return nil
	})
}

// DeleteEdges removes edges.
func (c *Core) DeleteEdges(ctx context.Context, g *graph.Graph, ids ...string) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		if _, err := c.command(ctx, "delete_edges", name, protocol.Names(ids...)...); err != nil {
			return err
		}
		for _, id := range ids {
			g.RemoveEdge(id)
		}
		return nil
	})
}

// SetVertexData sets a vertex's payload, e.g. an angle expression.
func (c *Core) SetVertexData(ctx context.Context, g *graph.Graph, id, data string) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		v, ok := g.Vertex(id)
		if !ok {
			return coreerr.New(coreerr.CodeInvalidArgument, fmt.Sprintf("graph %s has no vertex %q", name, id))
		}
		if _, err := c.command(ctx, "set_angle", name, protocol.Name(id), protocol.Name(data)); err != nil {
			return err
		}
		v.SetData(data)
		return nil
	})
}

// FlipVertices swaps the colours of red and green vertices.
func (c *Core) FlipVertices(ctx context.Context, g *graph.Graph, ids ...string) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		if _, err := c.command(ctx, "flip_vertices", name, protocol.Names(ids...)...); err != nil {
			return err
		}
		for _, id := range ids {
			if v, ok := g.Vertex(id); ok {
				v.Flip()
			}
		}
		return nil
	})
}

// RenameVertex asks the engine to rename a vertex and returns the name it
// chose. The graph is resynced, so the renamed vertex is a new object.
func (c *Core) RenameVertex(ctx context.Context, g *graph.Graph, id, suggested string) (string, error) {
	var newName string
	err := c.mutate(g, GraphChanged, func(name string) error {
		var err error
		newName, err = c.commandName(ctx, "rename_vertex", name, protocol.Name(id), protocol.Name(suggested))
		if err != nil {
			return err
		}
		return c.resync(ctx, g, name)
	})
	return newName, err
}

// AddBangBox creates a bang box holding the given vertices.
func (c *Core) AddBangBox(ctx context.Context, g *graph.Graph, ids ...string) (*graph.BangBox, error) {
	var bb *graph.BangBox
	err := c.mutate(g, GraphChanged, func(name string) error {
		box, err := c.commandName(ctx, "add_bang", name)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			args := append([]protocol.Arg{protocol.Name(box)}, protocol.Names(ids...)...)
			if _, err := c.command(ctx, "bang_vertices", name, args...); err != nil {
				// The engine already has the empty box.
				if rerr := c.resync(ctx, g, name); rerr != nil {
					c.logger.Warn("graph.resync_failed", "graph", name, "error", rerr.Error())
				}
				return err
			}
		}
		bb = graph.NewBangBox(box, ids...)
		if err := g.AddBangBox(bb); err != nil {
			c.logger.Warn("graph.fast_path_conflict", "graph", name, "error", err.Error())
			if err := c.resync(ctx, g, name); err != nil {
				return err
			}
			bb, _ = g.BangBox(box)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bb, nil
}

// BangVertices adds vertices to an existing bang box.
func (c *Core) BangVertices(ctx context.Context, g *graph.Graph, box string, ids ...string) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		if _, ok := g.BangBox(box); !ok {
			return coreerr.New(coreerr.CodeInvalidArgument, fmt.Sprintf("graph %s has no bang box %q", name, box))
		}
		args := append([]protocol.Arg{protocol.Name(box)}, protocol.Names(ids...)...)
		if _, err := c.command(ctx, "bang_vertices", name, args...); err != nil {
			return err
		}
		bb, _ := g.BangBox(box)
		for _, id := range ids {
			if _, ok := g.Vertex(id); ok {
				bb.Add(id)
			}
		}
		return nil
	})
}

// UnbangVertices removes vertices from every bang box they belong to.
func (c *Core) UnbangVertices(ctx context.Context, g *graph.Graph, ids ...string) error {
	return c.resyncAfter(ctx, g, "unbang_vertices", protocol.Names(ids...)...)
}

// DropBangBoxes removes bang boxes, keeping their vertices.
func (c *Core) DropBangBoxes(ctx context.Context, g *graph.Graph, boxes ...string) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		if _, err := c.command(ctx, "bbox_drop", name, protocol.Names(boxes...)...); err != nil {
			return err
		}
		for _, b := range boxes {
			g.RemoveBangBox(b)
		}
		return nil
	})
}

// KillBangBoxes removes bang boxes together with their vertices.
func (c *Core) KillBangBoxes(ctx context.Context, g *graph.Graph, boxes ...string) error {
	return c.resyncAfter(ctx, g, "bbox_kill", protocol.Names(boxes...)...)
}

// MergeBangBoxes merges boxes into one and returns the new box's name.
func (c *Core) MergeBangBoxes(ctx context.Context, g *graph.Graph, boxes ...string) (string, error) {
	return c.namedResyncAfter(ctx, g, "bbox_merge", protocol.Names(boxes...)...)
}

// DuplicateBangBox copies a box and its contents and returns the new box's
// name.
func (c *Core) DuplicateBangBox(ctx context.Context, g *graph.Graph, box string) (string, error) {
	return c.namedResyncAfter(ctx, g, "bbox_duplicate", protocol.Name(box))
}

// CopySubgraph copies the given vertices to the clipboard graph.
func (c *Core) CopySubgraph(ctx context.Context, g *graph.Graph, ids ...string) error {
	return c.query(g, func(name string) error {
		return c.copyToClipboard(ctx, name, ids)
	})
}

func (c *Core) copyToClipboard(ctx context.Context, name string, ids []string) error {
	args := append([]protocol.Arg{protocol.Name(ClipboardGraph)}, protocol.Names(ids...)...)
	_, err := c.command(ctx, "copy_subgraph", name, args...)
	return err
}

// CutSubgraph copies the given vertices to the clipboard and deletes them.
func (c *Core) CutSubgraph(ctx context.Context, g *graph.Graph, ids ...string) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		if err := c.copyToClipboard(ctx, name, ids); err != nil {
			return err
		}
		if _, err := c.command(ctx, "delete_vertices", name, protocol.Names(ids...)...); err != nil {
			return err
		}
		for _, id := range ids {
			g.RemoveVertex(id)
		}
		g.RelabelBoundaries()
		return nil
	})
}

// Paste inserts the clipboard graph into g.
func (c *Core) Paste(ctx context.Context, g *graph.Graph) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		if _, err := c.client.Command(ctx, "insert_graph", protocol.Name(ClipboardGraph), protocol.Name(name)); err != nil {
			return err
		}
		return c.resync(ctx, g, name)
	})
}

func (c *Core) resyncAfter(ctx context.Context, g *graph.Graph, cmd string, args ...protocol.Arg) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		if _, err := c.command(ctx, cmd, name, args...); err != nil {
			return err
		}
		return c.resync(ctx, g, name)
	})
}

func (c *Core) namedResyncAfter(ctx context.Context, g *graph.Graph, cmd string, args ...protocol.Arg) (string, error) {
	var res string
	err := c.mutate(g, GraphChanged, func(name string) error {
		var err error
		res, err = c.commandName(ctx, cmd, name, args...)
		if err != nil {
			return err
		}
		return c.resync(ctx, g, name)
	})
	return res, err
}
