package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	s := &Script{
		Name:        "render",
		Description: "Renders a small run",
		Engine: []Exchange{
			{Request: "new_graph;", Reply: "g0"},
			{Request: `add_vertex "g0" "boundary";`, Reply: "b0"},
			{Request: `undo "g0";`},
			{Request: `graph_xml "g0";`, Reply: "<graph><vertex><name>b0</name><boundary>true</boundary></vertex></graph>"},
		},
		Steps: []Step{
			{Op: "new_graph", As: "g"},
			{Op: "add_vertex", Graph: "g", Args: []string{"boundary"}},
			{Op: "undo", Graph: "g"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	want := `# render
> new_graph;
< g0
> add_vertex "g0" "boundary";
< b0
> undo "g0";
<
> graph_xml "g0";
< <graph><vertex><name>b0</name><boundary>true</boundary></vertex></graph>
== steps
[0] new_graph ok g0
[1] add_vertex ok b0
[2] undo ok
== graphs
g "g0" idle
  vertex b0 boundary label=0
`
	assert.Equal(t, want, string(Render(s, result)))
}
