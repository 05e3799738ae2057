package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vertexScript(assertions ...Assertion) *Script {
	return &Script{
		Name:        "assertions",
		Description: "One green vertex",
		Engine: []Exchange{
			{Request: "new_graph;", Reply: "g0"},
			{Request: `add_vertex "g0" "green";`, Reply: "<vertex><name>v0</name><boundary>false</boundary><colour>green</colour><angleexpr><as_string>x</as_string></angleexpr></vertex>"},
		},
		Steps: []Step{
			{Op: "new_graph", As: "g"},
			{Op: "add_vertex", Graph: "g", Args: []string{"green"}},
		},
		Assertions: assertions,
	}
}

func TestAssertions_Pass(t *testing.T) {
	result, err := Run(vertexScript(
		Assertion{Type: AssertVertexCount, Graph: "g", Count: 1},
		Assertion{Type: AssertEdgeCount, Graph: "g", Count: 0},
		Assertion{Type: AssertBangBoxCount, Graph: "g", Count: 0},
		Assertion{Type: AssertVertex, Graph: "g", ID: "v0", Kind: "green", Data: "x", Label: "x"},
		Assertion{Type: AssertGraphName, Graph: "g", Name: "g0"},
		Assertion{Type: AssertRewriteState, Graph: "g", State: "idle"},
		Assertion{Type: AssertRequestCount, Request: "new_graph;", Count: 1},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertions_Fail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "vertex count",
			assertion: Assertion{Type: AssertVertexCount, Graph: "g", Count: 2},
			wantErr:   "assertions[0] vertex_count: expected 2, actual 1",
		},
		{
			name:      "missing vertex",
			assertion: Assertion{Type: AssertVertex, Graph: "g", ID: "v9"},
			wantErr:   "expected vertex v9, actual absent",
		},
		{
			name:      "vertex kind",
			assertion: Assertion{Type: AssertVertex, Graph: "g", ID: "v0", Kind: "red"},
			wantErr:   `actual kind "green"`,
		},
		{
			name:      "graph name",
			assertion: Assertion{Type: AssertGraphName, Graph: "g", Name: "g1"},
			wantErr:   `expected "g1", actual "g0"`,
		},
		{
			name:      "rewrite state",
			assertion: Assertion{Type: AssertRewriteState, Graph: "g", State: "rewrites_attached"},
			wantErr:   "expected rewrites_attached, actual idle",
		},
		{
			name:      "request count",
			assertion: Assertion{Type: AssertRequestCount, Request: `graph_xml "g0";`, Count: 1},
			wantErr:   "expected 1, actual 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(vertexScript(tt.assertion))
			require.NoError(t, err)

			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Index: 3, Type: AssertEdgeCount, Expected: "2", Actual: "0"}
	assert.Equal(t, "assertions[3] edge_count: expected 2, actual 0", err.Error())
}
