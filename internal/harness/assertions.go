package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/qcore/internal/graph"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Index    int
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertions[%d] %s: expected %s, actual %s", e.Index, e.Type, e.Expected, e.Actual)
}

// evaluate checks every assertion and returns the failures as messages.
func (r *runner) evaluate(assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := r.check(i, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func (r *runner) check(i int, a Assertion) error {
	if a.Type == AssertRequestCount {
		n := 0
		for _, req := range r.engine.requests() {
			if req == a.Request {
				n++
			}
		}
		return expectInt(i, a, a.Count, n)
	}

	g := r.graphs[a.Graph]
	if g == nil {
		return &AssertionError{Index: i, Type: a.Type, Expected: fmt.Sprintf("graph %q", a.Graph), Actual: "never created"}
	}
	g.Lock()
	defer g.Unlock()

	switch a.Type {
	case AssertVertexCount:
		return expectInt(i, a, a.Count, g.VertexCount())
	case AssertEdgeCount:
		return expectInt(i, a, a.Count, g.EdgeCount())
	case AssertBangBoxCount:
		return expectInt(i, a, a.Count, len(g.BangBoxes()))
	case AssertGraphName:
		if g.Name() != a.Name {
			return &AssertionError{Index: i, Type: a.Type, Expected: fmt.Sprintf("%q", a.Name), Actual: fmt.Sprintf("%q", g.Name())}
		}
	case AssertRewriteState:
		if got := r.core.RewriteState(g).String(); got != a.State {
			return &AssertionError{Index: i, Type: a.Type, Expected: a.State, Actual: got}
		}
	case AssertVertex:
		v, ok := g.Vertex(a.ID)
		if !ok {
			return &AssertionError{Index: i, Type: a.Type, Expected: "vertex " + a.ID, Actual: "absent"}
		}
		return checkVertex(i, a, v)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}

func checkVertex(i int, a Assertion, v *graph.Vertex) error {
	var diffs []string
	if a.Kind != "" && a.Kind != vertexKind(v) {
		diffs = append(diffs, fmt.Sprintf("kind %q", vertexKind(v)))
	}
	if a.Data != "" && a.Data != v.Data {
		diffs = append(diffs, fmt.Sprintf("data %q", v.Data))
	}
	if a.Label != "" && a.Label != v.Label {
		diffs = append(diffs, fmt.Sprintf("label %q", v.Label))
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Index:    i,
		Type:     a.Type,
		Expected: fmt.Sprintf("%s kind=%q data=%q label=%q", a.ID, a.Kind, a.Data, a.Label),
		Actual:   strings.Join(diffs, " "),
	}
}

func expectInt(i int, a Assertion, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{Index: i, Type: a.Type, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
}

// vertexKind is the engine colour for theory vertices and the type name
// otherwise.
func vertexKind(v *graph.Vertex) string {
	if v.Kind != "" {
		return v.Kind
	}
	return v.Type.String()
}
