package harness

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/qcore/internal/channel"
	"github.com/roach88/qcore/internal/core"
	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
	"github.com/roach88/qcore/internal/logging"
	"github.com/roach88/qcore/internal/protocol"
	"github.com/roach88/qcore/internal/theory"
)

// stepTimeout bounds a single step. The scripted engine answers in
// process, so only a broken automation loop can take this long.
const stepTimeout = 10 * time.Second

// runner holds the state of one script execution.
type runner struct {
	core    *core.Core
	engine  *scriptedEngine
	graphs  map[string]*graph.Graph
	aliases []string // binding order
	result  *Result
}

// Run executes a script against a fresh core and returns the result.
//
// Every run gets its own scripted engine and core, so scripts never share
// state. The returned error is non-nil only when the script itself is
// unusable; step and assertion failures are reported in Result.Errors.
func Run(script *Script) (*Result, error) {
	if script == nil {
		return nil, fmt.Errorf("nil script")
	}
	if err := validateScript(script); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	eng := newScriptedEngine(script.Engine)
	fake := channel.NewFake(eng.handle)
	client := protocol.NewClient(fake, protocol.WithBlockTags(func() int { return blockTag }))
	r := &runner{
		core: core.NewWithClient(client,
			core.WithLogger(logging.Nop()),
			core.WithTheory(theory.Default()),
		),
		engine: eng,
		graphs: make(map[string]*graph.Graph),
		result: NewResult(),
	}

	for i, step := range script.Steps {
		r.step(i, step)
	}

	for _, msg := range eng.finish() {
		r.result.AddError(msg)
	}
	for _, msg := range r.evaluate(script.Assertions) {
		r.result.AddError(msg)
	}

	eng.mu.Lock()
	r.result.Transcript = slices.Clone(eng.transcript)
	eng.mu.Unlock()
	for _, alias := range r.aliases {
		r.result.Graphs[alias] = r.summarize(r.graphs[alias])
	}
	return r.result, nil
}

func (r *runner) step(i int, step Step) {
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	o := ops[step.Op]
	g := r.graphs[step.Graph]
	if o.needsGraph && g == nil {
		r.result.Outcomes = append(r.result.Outcomes, "skipped")
		r.result.AddError(fmt.Sprintf("steps[%d] %s: graph %q was never created", i, step.Op, step.Graph))
		return
	}
	out, bound, err := o.run(ctx, r.core, g, step.Args)

	if err != nil {
		code := coreerr.CodeOf(err)
		if code == "" {
			code = "ERROR"
		}
		r.result.Outcomes = append(r.result.Outcomes, "error "+string(code))
		switch {
		case step.Expect == nil || step.Expect.Error == "":
			r.result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Op, err))
		case string(code) != step.Expect.Error:
			r.result.AddError(fmt.Sprintf("steps[%d] %s: got error %s, want %s", i, step.Op, code, step.Expect.Error))
		}
		return
	}

	r.result.Outcomes = append(r.result.Outcomes, "ok "+out)
	if step.Expect != nil {
		if step.Expect.Error != "" {
			r.result.AddError(fmt.Sprintf("steps[%d] %s: succeeded, want error %s", i, step.Op, step.Expect.Error))
		}
		if step.Expect.Result != nil && *step.Expect.Result != out {
			r.result.AddError(fmt.Sprintf("steps[%d] %s: got %q, want %q", i, step.Op, out, *step.Expect.Result))
		}
	}
	if step.As != "" && bound != nil {
		r.bind(step.As, bound)
	}
}

func (r *runner) bind(alias string, g *graph.Graph) {
	if _, ok := r.graphs[alias]; !ok {
		r.aliases = append(r.aliases, alias)
	}
	r.graphs[alias] = g
}

func (r *runner) summarize(g *graph.Graph) GraphSummary {
	g.Lock()
	s := g.Summarize()
	g.Unlock()
	return GraphSummary{
		Name:         s.Name,
		Lines:        ModelLines(s),
		RewriteState: r.core.RewriteState(g).String(),
	}
}
