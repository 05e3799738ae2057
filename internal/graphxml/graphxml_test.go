package graphxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
	"github.com/roach88/qcore/internal/testutil"
)

func mustBuild(t *testing.T, doc string) *graph.Graph {
	t.Helper()
	g, err := Build("g0", doc)
	require.NoError(t, err)
	return g
}

func TestMerge_PreservesIdentity(t *testing.T) {
	g := mustBuild(t, testutil.Snapshot().
		Vertex("a", "red").
		Vertex("b", "green").
		Vertex("c", "red").
		Edge("e0", "a", "b").
		Edge("e1", "b", "c").
		String())

	a, _ := g.Vertex("a")
	b, _ := g.Vertex("b")
	c, _ := g.Vertex("c")
	require.NotNil(t, a)

	st, err := Merge(g, testutil.Snapshot().
		Vertex("b", "green").
		VertexAngle("c", "red", `\pi`).
		Vertex("d", "hadamard").
		Edge("e1", "b", "c").
		Edge("e2", "c", "d").
		String())
	require.NoError(t, err)
	assert.Equal(t, Stats{Added: 1, Updated: 2, Removed: 1}, st)

	_, ok := g.Vertex("a")
	assert.False(t, ok, "a is gone")

	b2, _ := g.Vertex("b")
	c2, _ := g.Vertex("c")
	assert.Same(t, b, b2)
	assert.Same(t, c, c2)
	assert.Equal(t, `\pi`, c.Data, "updated in place")

	d, ok := g.Vertex("d")
	require.True(t, ok)
	assert.Equal(t, graph.Hadamard, d.Type)

	_, ok = g.Edge("e0")
	assert.False(t, ok)
	assert.Equal(t, 2, g.EdgeCount())
	e2, _ := g.Edge("e2")
	assert.Equal(t, "c", e2.Source)
	assert.Equal(t, "d", e2.Target)
}

func TestMerge_Idempotent(t *testing.T) {
	doc := testutil.Snapshot().
		Boundary("b0").
		VertexAngle("v0", "red", `\alpha`).
		Vertex("v1", "green").
		Edge("e0", "b0", "v0").
		Edge("e1", "v0", "v1").
		BangBox("bb0", "v0", "v1").
		String()
	g := mustBuild(t, doc)

	vs := g.Vertices()
	es := g.Edges()
	bbs := g.BangBoxes()

	st, err := Merge(g, doc)
	require.NoError(t, err)
	assert.Equal(t, Stats{Updated: 3}, st)
	assert.False(t, st.Changed())

	for i, v := range g.Vertices() {
		assert.Same(t, vs[i], v)
	}
	for i, e := range g.Edges() {
		assert.Same(t, es[i], e)
	}
	for i, bb := range g.BangBoxes() {
		assert.Same(t, bbs[i], bb)
	}
	assert.Equal(t, []string{"v0", "v1"}, bbs[0].Members())
}

func TestMerge_BangBoxesAndLabels(t *testing.T) {
	g := mustBuild(t, testutil.Snapshot().
		Boundary("b2").
		Boundary("b1").
		Vertex("v0", "red").
		BangBox("bb0", "v0").
		BangBox("empty").
		String())

	b1, _ := g.Vertex("b1")
	b2, _ := g.Vertex("b2")
	assert.Equal(t, "0", b1.Label)
	assert.Equal(t, "1", b2.Label)

	box, ok := g.BangBox("empty")
	require.True(t, ok)
	assert.Equal(t, 0, box.Len())

	_, err := Merge(g, testutil.Snapshot().
		Boundary("b2").
		Vertex("v0", "red").
		BangBox("bb0").
		String())
	require.NoError(t, err)
	assert.Equal(t, "0", b2.Label, "relabelled after b1 left")
	bb0, _ := g.BangBox("bb0")
	assert.Equal(t, 0, bb0.Len())
	_, ok = g.BangBox("empty")
	assert.False(t, ok)
}

func TestMerge_ParseErrorsLeaveModelUntouched(t *testing.T) {
	base := testutil.Snapshot().
		Vertex("v0", "red").
		Vertex("v1", "green").
		Edge("e0", "v0", "v1").
		String()

	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", "<graph><vertex>"},
		{"wrong root", "<rewrites></rewrites>"},
		{"missing name", "<graph><vertex><boundary>true</boundary></vertex></graph>"},
		{"missing boundary", "<graph><vertex><name>v2</name></vertex></graph>"},
		{"missing colour", "<graph><vertex><name>v2</name><boundary>false</boundary></vertex></graph>"},
		{"bad boundary", "<graph><vertex><name>v2</name><boundary>maybe</boundary></vertex></graph>"},
		{"missing source", testutil.Snapshot().Vertex("v0", "red").Raw("<edge><name>e0</name><target>v0</target></edge>").String()},
		{"missing target", testutil.Snapshot().Vertex("v0", "red").Raw("<edge><name>e0</name><source>v0</source></edge>").String()},
		{"unknown edge endpoint", testutil.Snapshot().Vertex("v0", "red").Edge("e0", "v0", "ghost").String()},
		{"unknown box member", testutil.Snapshot().Vertex("v0", "red").BangBox("bb0", "ghost").String()},
		{"duplicate vertex", testutil.Snapshot().Vertex("v0", "red").Vertex("v0", "green").String()},
		{"duplicate edge", testutil.Snapshot().Vertex("v0", "red").Edge("e0", "v0", "v0").Edge("e0", "v0", "v0").String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustBuild(t, base)
			v0, _ := g.Vertex("v0")

			_, err := Merge(g, tt.doc)
			require.Error(t, err)
			assert.True(t, coreerr.IsCode(err, coreerr.CodeSnapshotParse), err.Error())

			assert.Equal(t, 2, g.VertexCount())
			assert.Equal(t, 1, g.EdgeCount())
			got, _ := g.Vertex("v0")
			assert.Same(t, v0, got)
			assert.Equal(t, graph.Red, got.Type)
		})
	}
}

func TestParseFragments(t *testing.T) {
	v, err := ParseVertex(testutil.VertexFragment("v0", "red", `\alpha`))
	require.NoError(t, err)
	assert.Equal(t, "v0", v.ID)
	assert.Equal(t, graph.Red, v.Type)
	assert.Equal(t, `\alpha`, v.Data)

	b, err := ParseVertex(testutil.BoundaryFragment("b0"))
	require.NoError(t, err)
	assert.True(t, b.IsBoundary())

	g, err := ParseVertex(testutil.VertexFragment("x", "var", ""))
	require.NoError(t, err)
	assert.Equal(t, graph.Generic, g.Type)
	assert.Equal(t, "var", g.Kind)

	e, err := ParseEdge(testutil.EdgeFragment("e0", "v0", "v1"))
	require.NoError(t, err)
	assert.Equal(t, graph.Edge{ID: "e0", Source: "v0", Target: "v1", Directed: true}, *e)

	_, err = ParseEdge("<vertex/>")
	assert.True(t, coreerr.IsCode(err, coreerr.CodeSnapshotParse))
}

func TestParseRewrites(t *testing.T) {
	doc := testutil.Rewrites(
		testutil.RewriteFragment("spider",
			testutil.Snapshot().Vertex("a", "red").Vertex("b", "red").Edge("e", "a", "b"),
			testutil.Snapshot().Vertex("a", "red")),
		testutil.RewriteFragment("id",
			testutil.Snapshot().Boundary("b0"),
			testutil.Snapshot()),
	)

	rws, err := ParseRewrites(doc)
	require.NoError(t, err)
	require.Len(t, rws, 2)
	assert.Equal(t, "spider", rws[0].Name)
	assert.Equal(t, 2, rws[0].LHS.VertexCount())
	assert.Equal(t, 1, rws[0].LHS.EdgeCount())
	assert.Equal(t, 1, rws[0].RHS.VertexCount())
	assert.Equal(t, "id", rws[1].Name)
	assert.Equal(t, 0, rws[1].RHS.VertexCount())

	empty, err := ParseRewrites("<rewrites></rewrites>")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseRewrites("<rewrites><rewrite><rulename>x</rulename></rewrite></rewrites>")
	assert.True(t, coreerr.IsCode(err, coreerr.CodeSnapshotParse))
}

func TestMarshalAndCanonical(t *testing.T) {
	doc := testutil.Snapshot().
		VertexAngle("v0", "red", `\alpha`).
		Boundary("b0").
		Edge("e0", "b0", "v0").
		String()

	out, err := Canonical(doc)
	require.NoError(t, err)
	assert.Equal(t, `<graph>
  <vertex>
    <name>b0</name>
    <boundary>true</boundary>
  </vertex>
  <vertex>
    <name>v0</name>
    <boundary>false</boundary>
    <colour>red</colour>
    <angleexpr>
      <as_string>\alpha</as_string>
    </angleexpr>
  </vertex>
  <edge>
    <name>e0</name>
    <source>b0</source>
    <target>v0</target>
  </edge>
</graph>
`, string(out))

	again, err := Canonical(string(out))
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestBuild_VertexWithoutAngleHasEmptyData(t *testing.T) {
	g, err := Build("g0", testutil.Snapshot().
		Vertex("v0", "red").
		VertexAngle("v1", "red", `\alpha`).
		String())
	require.NoError(t, err)

	v0, _ := g.Vertex("v0")
	assert.Empty(t, v0.Data)
	assert.Empty(t, v0.Label)

	v1, _ := g.Vertex("v1")
	assert.Equal(t, `\alpha`, v1.Label)
}
