package core

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
)

// Automation is a rewrite loop running on its own goroutine. It shares the
// channel with interactive calls, so those block only for the step in
// flight. Cancel is honoured between steps; a command already sent always
// completes.
type Automation struct {
	cancelled atomic.Bool
	done      chan struct{}

	applied int
	err     error
}

// Cancel asks the loop to stop before its next step.
func (a *Automation) Cancel() {
	a.cancelled.Store(true)
}

// Done is closed when the loop has finished.
func (a *Automation) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the loop finishes and returns the number of rewrites
// applied. Stopping through Cancel is not an error.
func (a *Automation) Wait() (int, error) {
	<-a.done
	return a.applied, a.err
}

func (c *Core) run(fn func(stop func() bool) (int, error)) *Automation {
	a := &Automation{done: make(chan struct{})}
	go func() {
		defer close(a.done)
		a.applied, a.err = fn(a.cancelled.Load)
	}()
	return a
}

// StartFastNormalise runs FastNormalise in the background.
func (c *Core) StartFastNormalise(ctx context.Context, g *graph.Graph) *Automation {
	return c.run(func(stop func() bool) (int, error) {
		return c.normalise(ctx, g, stop)
	})
}

// RandomOptions configures StartRandomRewrites.
type RandomOptions struct {
	// Max bounds the number of rewrites; zero means until none are left.
	Max int

	// Delay is the pause after each applied rewrite, so a viewer can follow
	// the animation.
	Delay time.Duration

	// Pick chooses a candidate index in [0,n). Defaults to uniform random.
	Pick func(n int) int
}

// StartRandomRewrites repeatedly attaches every rewrite of g, applies one
// chosen at random and resyncs, until none are left, opts.Max is reached,
// or the automation is cancelled.
func (c *Core) StartRandomRewrites(ctx context.Context, g *graph.Graph, opts RandomOptions) *Automation {
	pick := opts.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return c.run(func(stop func() bool) (int, error) {
		stopped := func() bool { return ctx.Err() != nil || stop() }
		n := 0
		for !stopped() && (opts.Max == 0 || n < opts.Max) {
			rws, err := c.AttachRewrites(ctx, g)
			if coreerr.IsEngineMessage(err, NoMoreRewrites) {
				break
			}
			if err != nil {
				return n, err
			}
			if len(rws) == 0 {
				break
			}
			if stopped() {
				c.DiscardRewrites(g)
				break
			}
			if err := c.ApplyRewrite(ctx, g, pick(len(rws))); err != nil {
				return n, err
			}
			n++

			if opts.Delay > 0 {
				select {
				case <-time.After(opts.Delay):
				case <-ctx.Done():
				}
			}
		}
		c.logger.Info("rewrite.random_finished", "graph", lockedName(g), "applied", n)
		return n, nil
	})
}
