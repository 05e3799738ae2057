package core

import (
	"context"
	"fmt"

	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
	"github.com/roach88/qcore/internal/graphxml"
	"github.com/roach88/qcore/internal/protocol"
)

// RewriteState is a graph's position in the attach/apply workflow.
type RewriteState int

const (
	Idle RewriteState = iota
	RewritesAttached
)

func (s RewriteState) String() string {
	if s == RewritesAttached {
		return "rewrites_attached"
	}
	return "idle"
}

// RewriteState reports whether g has candidates attached.
func (c *Core) RewriteState(g *graph.Graph) RewriteState {
	c.rwMu.Lock()
	defer c.rwMu.Unlock()
	if _, ok := c.rewrites[g]; ok {
		return RewritesAttached
	}
	return Idle
}

// AttachedRewrites returns the candidates attached to g, if any.
func (c *Core) AttachedRewrites(g *graph.Graph) []graph.Rewrite {
	c.rwMu.Lock()
	defer c.rwMu.Unlock()
	return append([]graph.Rewrite(nil), c.rewrites[g]...)
}

func (c *Core) setRewrites(g *graph.Graph, rws []graph.Rewrite) {
	c.rwMu.Lock()
	defer c.rwMu.Unlock()
	if len(rws) == 0 {
		delete(c.rewrites, g)
		return
	}
	c.rewrites[g] = rws
}

func (c *Core) clearRewrites(g *graph.Graph) {
	c.setRewrites(g, nil)
}

// AttachRewrites asks the engine for every rewrite matching the given
// vertices (all of g when none are given) and returns the candidates. The
// graph itself is not modified.
func (c *Core) AttachRewrites(ctx context.Context, g *graph.Graph, ids ...string) ([]graph.Rewrite, error) {
	return c.attach(ctx, g, "attach_rewrites", ids)
}

// AttachOneRewrite is AttachRewrites limited to the first match.
func (c *Core) AttachOneRewrite(ctx context.Context, g *graph.Graph, ids ...string) ([]graph.Rewrite, error) {
	return c.attach(ctx, g, "attach_one_rewrite", ids)
}

func (c *Core) attach(ctx context.Context, g *graph.Graph, cmd string, ids []string) ([]graph.Rewrite, error) {
	var rws []graph.Rewrite
	err := c.query(g, func(name string) error {
		c.clearRewrites(g)
		if _, err := c.command(ctx, cmd, name, protocol.Names(ids...)...); err != nil {
			return err
		}
		doc, err := c.command(ctx, "show_rewrites", name)
		if err != nil {
			return err
		}
		rws, err = graphxml.ParseRewrites(doc)
		if err != nil {
			return err
		}
		c.setRewrites(g, rws)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("rewrite.attached", "graph", lockedName(g), "candidates", len(rws))
	return rws, nil
}

// ApplyRewrite applies the attached candidate at index and resyncs g.
func (c *Core) ApplyRewrite(ctx context.Context, g *graph.Graph, index int) error {
	return c.mutate(g, GraphChanged, func(name string) error {
		rws := c.AttachedRewrites(g)
		if len(rws) == 0 {
			return coreerr.New(coreerr.CodeNoRewritesAttached,
				fmt.Sprintf("graph %s has no rewrites attached", name))
		}
		if index < 0 || index >= len(rws) {
			return coreerr.New(coreerr.CodeInvalidArgument,
				fmt.Sprintf("rewrite index %d out of range [0,%d)", index, len(rws)))
		}
		if _, err := c.command(ctx, "apply_rewrite", name, protocol.Int(index)); err != nil {
			return err
		}
		c.logger.Info("rewrite.applied", "graph", name, "rule", rws[index].Name)
		return c.resync(ctx, g, name)
	})
}

// DiscardRewrites drops attached candidates without telling the engine.
func (c *Core) DiscardRewrites(g *graph.Graph) {
	c.clearRewrites(g)
}

// FastNormalise applies the first available rewrite to g until the engine
// reports there are none left, and returns the number applied. The model
// is resynced once at the end. ctx is checked between steps only.
func (c *Core) FastNormalise(ctx context.Context, g *graph.Graph) (int, error) {
	return c.normalise(ctx, g, nil)
}

// normalise runs the fast-normalise loop; stop, when non-nil, is polled
// between attach and apply and between cycles.
func (c *Core) normalise(ctx context.Context, g *graph.Graph, stop func() bool) (int, error) {
	stopped := func() bool {
		return ctx.Err() != nil || (stop != nil && stop())
	}

	n := 0
	var loopErr error
	for !stopped() {
		applied, exhausted := false, false
		err := c.query(g, func(name string) error {
			if _, err := c.command(ctx, "attach_one_rewrite", name); err != nil {
				exhausted = coreerr.IsEngineMessage(err, NoMoreRewrites)
				if exhausted {
					return nil
				}
				return err
			}
			if stopped() {
				return nil
			}
			if _, err := c.command(ctx, "apply_rewrite", name, protocol.Int(0)); err != nil {
				return err
			}
			applied = true
			return nil
		})
		if err != nil {
			loopErr = err
			break
		}
		if exhausted || !applied {
			break
		}
		n++
	}
	c.logger.Info("rewrite.normalised", "graph", lockedName(g), "applied", n)

	if n > 0 {
		// The applied rewrites are already in the engine; the model must
		// catch up even if the caller has given up.
		err := c.mutate(g, GraphChanged, func(name string) error {
			return c.resync(context.WithoutCancel(ctx), g, name)
		})
		if err != nil && loopErr == nil {
			loopErr = err
		}
	}
	if loopErr == nil && ctx.Err() != nil {
		loopErr = ctx.Err()
	}
	return n, loopErr
}
