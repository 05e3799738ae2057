package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/qcore/internal/core"
	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
)

// opFunc runs one step. It returns the rendered result and, for ops that
// produce one, a graph to bind.
type opFunc func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error)

type op struct {
	needsGraph   bool
	returnsGraph bool
	minArgs      int
	run          opFunc
}

// ops is every operation a script step can name.
var ops = map[string]op{
	"new_graph": {returnsGraph: true, run: func(ctx context.Context, c *core.Core, _ *graph.Graph, _ []string) (string, *graph.Graph, error) {
		g, err := c.CreateEmptyGraph(ctx)
		return graphName(g), g, err
	}},
	"load_graph": {returnsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, _ *graph.Graph, args []string) (string, *graph.Graph, error) {
		g, err := c.LoadGraph(ctx, args[0])
		return graphName(g), g, err
	}},
	"import_graph": {returnsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, _ *graph.Graph, args []string) (string, *graph.Graph, error) {
		g, err := c.ImportGraph(ctx, args[0])
		return graphName(g), g, err
	}},
	"open_rule_lhs": {returnsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, _ *graph.Graph, args []string) (string, *graph.Graph, error) {
		rw, err := c.OpenRule(ctx, args[0])
		if err != nil {
			return "", nil, err
		}
		return graphName(rw.LHS), rw.LHS, nil
	}},

	"add_vertex": {needsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		v, err := c.AddVertex(ctx, g, args[0])
		if err != nil {
			return "", nil, err
		}
		return v.ID, nil, nil
	}},
	"add_edge": {needsGraph: true, minArgs: 2, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		e, err := c.AddEdge(ctx, g, args[0], args[1])
		if err != nil {
			return "", nil, err
		}
		return e.ID, nil, nil
	}},
	"add_bang_box": {needsGraph: true, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		bb, err := c.AddBangBox(ctx, g, args...)
		if err != nil {
			return "", nil, err
		}
		return bb.ID, nil, nil
	}},
	"set_vertex_data": {needsGraph: true, minArgs: 2, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		return "", nil, c.SetVertexData(ctx, g, args[0], args[1])
	}},
	"rename_vertex": {needsGraph: true, minArgs: 2, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		name, err := c.RenameVertex(ctx, g, args[0], args[1])
		return name, nil, err
	}},
	"bang_vertices": {needsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		return "", nil, c.BangVertices(ctx, g, args[0], args[1:]...)
	}},
	"merge_bang_boxes": {needsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		name, err := c.MergeBangBoxes(ctx, g, args...)
		return name, nil, err
	}},
	"duplicate_bang_box": {needsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		name, err := c.DuplicateBangBox(ctx, g, args[0])
		return name, nil, err
	}},
	"delete_vertices":  idsOp((*core.Core).DeleteVertices),
	"delete_edges":     idsOp((*core.Core).DeleteEdges),
	"flip_vertices":    idsOp((*core.Core).FlipVertices),
	"unbang_vertices":  idsOp((*core.Core).UnbangVertices),
	"drop_bang_boxes":  idsOp((*core.Core).DropBangBoxes),
	"kill_bang_boxes":  idsOp((*core.Core).KillBangBoxes),
	"copy_subgraph":    idsOp((*core.Core).CopySubgraph),
	"cut_subgraph":     idsOp((*core.Core).CutSubgraph),
	"paste":            graphOp((*core.Core).Paste),
	"undo":             graphOp((*core.Core).Undo),
	"redo":             graphOp((*core.Core).Redo),
	"resync":           graphOp((*core.Core).Resync),
	"discard_graph":    graphOp((*core.Core).DiscardGraph),
	"discard_rewrites": {needsGraph: true, run: discardRewrites},

	"rename_graph": {needsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		name, err := c.RenameGraph(ctx, g, args[0])
		return name, nil, err
	}},
	"save_graph": {needsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		return "", nil, c.SaveGraph(ctx, g, args[0])
	}},
	"hilbert_space": {needsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		out, err := c.HilbertSpace(ctx, g, core.Format(args[0]))
		return out, nil, err
	}},

	"attach_rewrites": {needsGraph: true, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		rws, err := c.AttachRewrites(ctx, g, args...)
		return rewriteNames(rws), nil, err
	}},
	"attach_one_rewrite": {needsGraph: true, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		rws, err := c.AttachOneRewrite(ctx, g, args...)
		return rewriteNames(rws), nil, err
	}},
	"apply_rewrite": {needsGraph: true, minArgs: 1, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return "", nil, coreerr.Wrap(coreerr.CodeInvalidArgument, fmt.Sprintf("rewrite index %q", args[0]), err)
		}
		return "", nil, c.ApplyRewrite(ctx, g, i)
	}},
	"fast_normalise": {needsGraph: true, run: func(ctx context.Context, c *core.Core, g *graph.Graph, _ []string) (string, *graph.Graph, error) {
		n, err := c.FastNormalise(ctx, g)
		return strconv.Itoa(n), nil, err
	}},

	"console": {minArgs: 1, run: func(ctx context.Context, c *core.Core, _ *graph.Graph, args []string) (string, *graph.Graph, error) {
		out, err := c.ConsoleCommand(ctx, args[0])
		return out, nil, err
	}},
	"load_ruleset": {minArgs: 1, run: func(ctx context.Context, c *core.Core, _ *graph.Graph, args []string) (string, *graph.Graph, error) {
		name, err := c.LoadRuleset(ctx, args[0])
		return name, nil, err
	}},
	"activate_ruleset": {minArgs: 1, run: func(ctx context.Context, c *core.Core, _ *graph.Graph, args []string) (string, *graph.Graph, error) {
		return "", nil, c.ActivateRuleset(ctx, args[0])
	}},
	"deactivate_ruleset": {minArgs: 1, run: func(ctx context.Context, c *core.Core, _ *graph.Graph, args []string) (string, *graph.Graph, error) {
		return "", nil, c.DeactivateRuleset(ctx, args[0])
	}},
	"list_rules": {run: func(ctx context.Context, c *core.Core, _ *graph.Graph, args []string) (string, *graph.Graph, error) {
		ruleset := ""
		if len(args) > 0 {
			ruleset = args[0]
		}
		rules, err := c.ListRules(ctx, ruleset)
		return strings.Join(rules, ","), nil, err
	}},
}

func idsOp(fn func(*core.Core, context.Context, *graph.Graph, ...string) error) op {
	return op{needsGraph: true, run: func(ctx context.Context, c *core.Core, g *graph.Graph, args []string) (string, *graph.Graph, error) {
		return "", nil, fn(c, ctx, g, args...)
	}}
}

func graphOp(fn func(*core.Core, context.Context, *graph.Graph) error) op {
	return op{needsGraph: true, run: func(ctx context.Context, c *core.Core, g *graph.Graph, _ []string) (string, *graph.Graph, error) {
		return "", nil, fn(c, ctx, g)
	}}
}

func discardRewrites(_ context.Context, c *core.Core, g *graph.Graph, _ []string) (string, *graph.Graph, error) {
	c.DiscardRewrites(g)
	return "", nil, nil
}

func graphName(g *graph.Graph) string {
	if g == nil {
		return ""
	}
	return g.Name()
}

// rewriteNames renders candidates as a comma-separated rule list.
func rewriteNames(rws []graph.Rewrite) string {
	names := make([]string, len(rws))
	for i, rw := range rws {
		names[i] = rw.Name
	}
	return strings.Join(names, ",")
}
