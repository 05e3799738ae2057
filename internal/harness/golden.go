package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/qcore/internal/graph"
)

// Render returns the text snapshot of a run: the wire transcript, each
// step's outcome and the final models.
//
//	> add_vertex "g0" "red";
//	< <vertex>...</vertex>
//	== steps
//	[0] new_graph ok g0
//	== graphs
//	g "g0" idle
//	  vertex v0 red
func Render(script *Script, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", script.Name)
	for _, e := range result.Transcript {
		fmt.Fprintf(&b, "> %s\n", e.Request[0])
		for _, line := range blockPayload(e.Request) {
			fmt.Fprintf(&b, "| %s\n", line)
		}
		if e.Reply == "" {
			b.WriteString("<\n")
		} else {
			fmt.Fprintf(&b, "< %s\n", e.Reply)
		}
	}

	b.WriteString("== steps\n")
	for i, outcome := range result.Outcomes {
		fmt.Fprintf(&b, "[%d] %s %s\n", i, script.Steps[i].Op, strings.TrimRight(outcome, " "))
	}

	b.WriteString("== graphs\n")
	for _, alias := range graphOrder(script, result) {
		s := result.Graphs[alias]
		fmt.Fprintf(&b, "%s %q %s\n", alias, s.Name, s.RewriteState)
		for _, line := range s.Lines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return []byte(b.String())
}

// graphOrder lists bound aliases in the order steps first bound them.
func graphOrder(script *Script, result *Result) []string {
	var order []string
	seen := make(map[string]bool)
	for _, step := range script.Steps {
		if step.As == "" || seen[step.As] {
			continue
		}
		if _, ok := result.Graphs[step.As]; ok {
			seen[step.As] = true
			order = append(order, step.As)
		}
	}
	return order
}

// ModelLines lists a graph's elements one per line, sorted by ID within
// each kind.
func ModelLines(s graph.Summary) []string {
	var lines []string
	for _, v := range s.Vertices {
		line := "vertex " + v.ID + " " + vertexKind(v)
		if v.Data != "" {
			line += " data=" + v.Data
		}
		if v.Label != "" && v.Label != v.Data {
			line += " label=" + v.Label
		}
		lines = append(lines, line)
	}
	for _, e := range s.Edges {
		lines = append(lines, fmt.Sprintf("edge %s %s -> %s", e.ID, e.Source, e.Target))
	}
	for _, bb := range s.BangBoxes {
		lines = append(lines, strings.TrimRight("bangbox "+bb.ID+" "+strings.Join(bb.Members(), " "), " "))
	}
	return lines
}

// RunWithGolden executes a script and compares its rendering against
// testdata/golden/{script.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, script *Script) (*Result, error) {
	t.Helper()

	result, err := Run(script)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, script, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, script *Script, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, script.Name, Render(script, result))
}
