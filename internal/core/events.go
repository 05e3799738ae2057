package core

import (
	"github.com/roach88/qcore/internal/graph"
)

// EventKind says what happened to a graph.
type EventKind int

const (
	// GraphChanged follows any successful mutation or resync.
	GraphChanged EventKind = iota + 1

	// GraphRenamed follows a successful rename; Event.OldName holds the
	// previous engine name.
	GraphRenamed

	// GraphDiscarded follows a successful discard. The graph's name is
	// empty from then on.
	GraphDiscarded
)

func (k EventKind) String() string {
	switch k {
	case GraphChanged:
		return "graph_changed"
	case GraphRenamed:
		return "graph_renamed"
	case GraphDiscarded:
		return "graph_discarded"
	}
	return "unknown"
}

// Event is delivered to subscribers.
type Event struct {
	Kind    EventKind
	Graph   *graph.Graph
	OldName string
}

// Subscribe registers fn for every event. The returned function removes
// the subscription; calling it more than once is harmless.
func (c *Core) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Core) emit(ev Event) {
	c.subsMu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
