package core

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qcore/internal/channel"
	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
	"github.com/roach88/qcore/internal/graphxml"
	"github.com/roach88/qcore/internal/testutil"
	"github.com/roach88/qcore/internal/theory"
)

// replies answers requests by exact line; unknown lines get an engine
// "Unknown command" error.
func replies(m map[string]string) channel.Handler {
	return func(lines []string) (string, error) {
		if resp, ok := m[lines[0]]; ok {
			return resp, nil
		}
		return unknown(lines[0]), nil
	}
}

// unknown renders the engine's answer to a command it does not know.
func unknown(line string) string {
	cmd, _, _ := strings.Cut(strings.TrimSuffix(line, ";"), " ")
	return "!!! Unknown command: " + cmd + "(0)"
}

func buildGraph(s *testutil.SnapshotBuilder) (*graph.Graph, error) {
	return graphxml.Build("g0", s.String())
}

func newCore(t *testing.T, h channel.Handler, opts ...Option) (*Core, *channel.Fake) {
	t.Helper()
	fake := channel.NewFake(h)
	return New(fake, opts...), fake
}

func TestEndToEnd_VerticesAndEdge(t *testing.T) {
	c, fake := newCore(t, replies(map[string]string{
		"new_graph;":               "g0\n",
		`add_vertex "g0" "red";`:   testutil.VertexFragment("v0", "red", ""),
		`add_vertex "g0" "green";`: testutil.VertexFragment("v1", "green", ""),
		`add_edge "g0" "v0" "v1";`: testutil.EdgeFragment("e0", "v0", "v1"),
	}))
	ctx := context.Background()

	g, err := c.CreateEmptyGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g0", g.Name())

	v0, err := c.AddVertex(ctx, g, "red")
	require.NoError(t, err)
	assert.Equal(t, "v0", v0.ID)
	assert.Equal(t, graph.Red, v0.Type)

	v1, err := c.AddVertex(ctx, g, "green")
	require.NoError(t, err)
	assert.Equal(t, "v1", v1.ID)

	e, err := c.AddEdge(ctx, g, v0.ID, v1.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, g.VertexCount())
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, "e0", e.ID)
	assert.Equal(t, "v0", e.Source)
	assert.Equal(t, "v1", e.Target)

	got, _ := g.Vertex("v0")
	assert.Same(t, v0, got)
	assert.NotContains(t, fake.Requests(), `graph_xml "g0";`, "fast path never resyncs")
}

func TestAddVertex_BareNameResponse(t *testing.T) {
	c, _ := newCore(t, replies(map[string]string{
		`add_vertex "g0" "hadamard";`: "h0\n",
		`add_vertex "g0" "boundary";`: "b0",
	}))
	g := graph.New("g0")

	v, err := c.AddVertex(context.Background(), g, "Hadamard")
	require.NoError(t, err)
	assert.Equal(t, "h0", v.ID)
	assert.Equal(t, graph.Hadamard, v.Type)
	assert.Equal(t, "hadamard", v.Kind)

	b, err := c.AddVertex(context.Background(), g, "boundary")
	require.NoError(t, err)
	assert.True(t, b.IsBoundary())
	assert.Equal(t, "0", b.Label)
}

func TestAddVertex_FastPathConflictFallsBackToResync(t *testing.T) {
	c, fake := newCore(t, replies(map[string]string{
		`add_vertex "g0" "red";`: testutil.VertexFragment("v0", "red", ""),
		`graph_xml "g0";`:        testutil.Snapshot().Vertex("v0", "red").Vertex("v9", "green").String(),
	}))
	g := graph.New("g0")
	old := &graph.Vertex{ID: "v0", Type: graph.Red, Kind: "red"}
	require.NoError(t, g.AddVertex(old))

	v, err := c.AddVertex(context.Background(), g, "red")
	require.NoError(t, err)
	assert.Same(t, old, v)
	assert.Equal(t, 2, g.VertexCount())
	assert.Contains(t, fake.Requests(), `graph_xml "g0";`)
}

func TestAddVertex_TheoryValidation(t *testing.T) {
	c, fake := newCore(t, replies(nil), WithTheory(theory.Default()))
	_, err := c.AddVertex(context.Background(), graph.New("g0"), "purple")
	assert.True(t, coreerr.IsCode(err, coreerr.CodeInvalidArgument))
	assert.Empty(t, fake.Requests())
}

func TestUnnamedGraphIsRejectedLocally(t *testing.T) {
	c, fake := newCore(t, replies(nil))
	g := graph.New("")
	ctx := context.Background()

	_, err := c.AddVertex(ctx, g, "red")
	assert.True(t, coreerr.IsCode(err, coreerr.CodeInvalidArgument))
	assert.True(t, coreerr.IsCode(c.Undo(ctx, g), coreerr.CodeInvalidArgument))
	assert.True(t, coreerr.IsCode(c.SaveGraph(ctx, g, "/tmp/x.graph"), coreerr.CodeInvalidArgument))
	_, err = c.AttachRewrites(ctx, g)
	assert.True(t, coreerr.IsCode(err, coreerr.CodeInvalidArgument))
	assert.Empty(t, fake.Requests())
}

func TestEngineErrorsPropagateAndSessionStaysUsable(t *testing.T) {
	c, _ := newCore(t, replies(map[string]string{
		`delete_vertices "g0" "v0";`: "!!! no such vertex v0",
		"new_graph;":                 "g1",
	}))
	ctx := context.Background()
	g := graph.New("g0")

	err := c.DeleteVertices(ctx, g, "v0")
	assert.True(t, coreerr.IsEngineMessage(err, "no such vertex v0"))

	err = c.Redo(ctx, g)
	var ce *coreerr.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, coreerr.CodeUnknownCommand, ce.Code)
	assert.Equal(t, "redo", ce.Command)

	g1, err := c.CreateEmptyGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g1", g1.Name())
}

func TestUndoResyncPreservesIdentity(t *testing.T) {
	snap := testutil.Snapshot().Vertex("v0", "red").Vertex("v1", "green").Edge("e0", "v0", "v1")
	c, _ := newCore(t, replies(map[string]string{
		`undo "g0";`:      "",
		`graph_xml "g0";`: snap.String(),
	}))
	g := graph.New("g0")
	v0 := &graph.Vertex{ID: "v0", Type: graph.Red, Kind: "red"}
	v2 := &graph.Vertex{ID: "v2", Type: graph.Red, Kind: "red"}
	require.NoError(t, g.AddVertex(v0))
	require.NoError(t, g.AddVertex(v2))

	require.NoError(t, c.Undo(context.Background(), g))

	got, _ := g.Vertex("v0")
	assert.Same(t, v0, got)
	_, ok := g.Vertex("v2")
	assert.False(t, ok)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestResyncParseErrorLeavesModel(t *testing.T) {
	c, _ := newCore(t, replies(map[string]string{
		`graph_xml "g0";`: "<graph><edge><name>e0</name></edge></graph>",
	}))
	g := graph.New("g0")
	require.NoError(t, g.AddVertex(&graph.Vertex{ID: "v0", Type: graph.Red}))

	err := c.Resync(context.Background(), g)
	assert.True(t, coreerr.IsCode(err, coreerr.CodeSnapshotParse))
	assert.Equal(t, 1, g.VertexCount())
}

func TestLocalEdits(t *testing.T) {
	c, fake := newCore(t, replies(map[string]string{
		`set_angle "g0" "v0" "\\alpha";`:      "",
		`flip_vertices "g0" "v0" "v1";`:       "",
		`delete_edges "g0" "e0";`:             "",
		`bbox_drop "g0" "bb0";`:               "",
		`add_bang "g0";`:                      "bb1",
		`bang_vertices "g0" "bb1" "v1";`:      "",
		`copy_subgraph "g0" "__clip__" "v1";`: "",
		`delete_vertices "g0" "v1";`:          "",
	}))
	ctx := context.Background()
	g, err := buildGraph(testutil.Snapshot().
		Vertex("v0", "red").
		Vertex("v1", "green").
		Edge("e0", "v0", "v1").
		BangBox("bb0", "v0"))
	require.NoError(t, err)

	require.NoError(t, c.SetVertexData(ctx, g, "v0", `\alpha`))
	v0, _ := g.Vertex("v0")
	assert.Equal(t, `\alpha`, v0.Data)

	err = c.SetVertexData(ctx, g, "nope", "x")
	assert.True(t, coreerr.IsCode(err, coreerr.CodeInvalidArgument))

	require.NoError(t, c.FlipVertices(ctx, g, "v0", "v1"))
	v1, _ := g.Vertex("v1")
	assert.Equal(t, graph.Green, v0.Type)
	assert.Equal(t, graph.Red, v1.Type)

	require.NoError(t, c.DeleteEdges(ctx, g, "e0"))
	assert.Equal(t, 0, g.EdgeCount())

	require.NoError(t, c.DropBangBoxes(ctx, g, "bb0"))
	assert.Empty(t, g.BangBoxes())
	assert.Equal(t, 2, g.VertexCount())

	bb, err := c.AddBangBox(ctx, g, "v1")
	require.NoError(t, err)
	assert.Equal(t, "bb1", bb.ID)
	assert.Equal(t, []string{"v1"}, bb.Members())

	require.NoError(t, c.CutSubgraph(ctx, g, "v1"))
	assert.Equal(t, 1, g.VertexCount())
	assert.Equal(t, 0, bb.Len())

	assert.NotContains(t, fake.Requests(), `graph_xml "g0";`)
}

func TestResyncingEdits(t *testing.T) {
	after := testutil.Snapshot().Vertex("v0", "red").Vertex("v5", "red").BangBox("bb2", "v0", "v5").String()
	c, fake := newCore(t, replies(map[string]string{
		`bbox_merge "g0" "bb0" "bb1";`:  "bb2",
		`bbox_duplicate "g0" "bb2";`:    "bb3",
		`bbox_kill "g0" "bb3";`:         "",
		`unbang_vertices "g0" "v0";`:    "",
		`insert_graph "__clip__" "g0";`: "",
		`rename_vertex "g0" "v1" "v5";`: "v5",
		`graph_xml "g0";`:               after,
	}))
	ctx := context.Background()
	g, err := buildGraph(testutil.Snapshot().
		Vertex("v0", "red").
		Vertex("v1", "red").
		BangBox("bb0", "v0").
		BangBox("bb1", "v1"))
	require.NoError(t, err)
	v0, _ := g.Vertex("v0")

	name, err := c.MergeBangBoxes(ctx, g, "bb0", "bb1")
	require.NoError(t, err)
	assert.Equal(t, "bb2", name)
	bb2, ok := g.BangBox("bb2")
	require.True(t, ok)
	assert.Equal(t, []string{"v0", "v5"}, bb2.Members())

	name, err = c.DuplicateBangBox(ctx, g, "bb2")
	require.NoError(t, err)
	assert.Equal(t, "bb3", name)

	require.NoError(t, c.KillBangBoxes(ctx, g, "bb3"))
	require.NoError(t, c.UnbangVertices(ctx, g, "v0"))
	require.NoError(t, c.Paste(ctx, g))

	newName, err := c.RenameVertex(ctx, g, "v1", "v5")
	require.NoError(t, err)
	assert.Equal(t, "v5", newName)

	got, _ := g.Vertex("v0")
	assert.Same(t, v0, got, "resyncs keep vertex identity")

	n := 0
	for _, r := range fake.Requests() {
		if r == `graph_xml "g0";` {
			n++
		}
	}
	assert.Equal(t, 6, n, "one resync per restructuring command")
}

func TestGraphLifecycle(t *testing.T) {
	snap := testutil.Snapshot().Boundary("b1").Boundary("b0").Vertex("v0", "red").String()
	c, fake := newCore(t, func(lines []string) (string, error) {
		switch lines[0] {
		case `load_graph "/tmp/graphs/a b.graph";`:
			return "g3\n", nil
		case `graph_xml "g3";`, `graph_xml "g4";`:
			return snap, nil
		case `save_graph "g3" "/tmp/out.graph";`:
			return "", nil
		case `rename_graph "g3" "mine";`:
			return "mine-1", nil
		case `kill_graph "mine-1";`:
			return "", nil
		case `hilb "g3" "latex";`:
			return `\ket{0}`, nil
		case "input_graph_xml;":
			return "g4\n", nil
		}
		return unknown(lines[0]), nil
	})
	ctx := context.Background()

	var events []Event
	unsubscribe := c.Subscribe(func(ev Event) { events = append(events, ev) })

	g, err := c.LoadGraph(ctx, "/tmp/graphs/a b.graph")
	require.NoError(t, err)
	assert.Equal(t, "g3", g.Name())
	assert.Equal(t, "/tmp/graphs/a b.graph", g.FileName())
	assert.Equal(t, 3, g.VertexCount())
	b0, _ := g.Vertex("b0")
	assert.Equal(t, "0", b0.Label)

	tex, err := c.HilbertSpace(ctx, g, FormatLatex)
	require.NoError(t, err)
	assert.Equal(t, `\ket{0}`, tex)
	_, err = c.HilbertSpace(ctx, g, Format("pdf"))
	assert.True(t, coreerr.IsCode(err, coreerr.CodeInvalidArgument))

	require.NoError(t, c.SaveGraph(ctx, g, "/tmp/out.graph"))
	assert.Equal(t, "/tmp/out.graph", g.FileName())

	name, err := c.RenameGraph(ctx, g, "mine")
	require.NoError(t, err)
	assert.Equal(t, "mine-1", name)
	assert.Equal(t, "mine-1", g.Name())

	require.NoError(t, c.DiscardGraph(ctx, g))
	assert.Equal(t, "", g.Name())
	_, err = c.AddVertex(ctx, g, "red")
	assert.True(t, coreerr.IsCode(err, coreerr.CodeInvalidArgument))

	imported, err := c.ImportGraph(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, "g4", imported.Name())
	assert.Equal(t, []string{"input_graph_xml;", "---startblock:", snap, "---endblock:"},
		stripTags(fake.Exchanges()[len(fake.Exchanges())-2]))

	unsubscribe()
	unsubscribe()
	_, _ = c.ImportGraph(ctx, snap)

	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []EventKind{GraphChanged, GraphRenamed, GraphDiscarded, GraphChanged}, kinds)
	assert.Equal(t, "g3", events[1].OldName)
	assert.Equal(t, "mine-1", events[2].OldName)
}

// stripTags removes the random integers from block markers.
func stripTags(lines []string) []string {
	out := append([]string(nil), lines...)
	for i, l := range out {
		for _, marker := range []string{"---startblock:", "---endblock:"} {
			if strings.HasPrefix(l, marker) {
				out[i] = marker
			}
		}
	}
	return out
}

func TestConsole(t *testing.T) {
	c, fake := newCore(t, replies(map[string]string{
		"help;":      "new_graph\nadd_vertex\r\nquit\n",
		`new_graph;`: "g0",
	}))
	ctx := context.Background()

	cmds, err := c.Commands(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new_graph", "add_vertex", "quit"}, cmds)

	out, err := c.ConsoleCommand(ctx, "new_graph")
	require.NoError(t, err)
	assert.Equal(t, "g0", out)

	_, err = c.ConsoleCommand(ctx, "frob;")
	assert.True(t, coreerr.IsCode(err, coreerr.CodeUnknownCommand))
	assert.Equal(t, []string{"help;", "new_graph;", "frob;"}, fake.Requests())
}

func TestSubscribe_ConcurrentSafe(t *testing.T) {
	c, _ := newCore(t, replies(map[string]string{"new_graph;": "g0"}))
	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := c.Subscribe(func(Event) {
				mu.Lock()
				count++
				mu.Unlock()
			})
			_, _ = c.CreateEmptyGraph(context.Background())
			unsub()
		}()
	}
	wg.Wait()
	assert.Positive(t, count)
}

func TestAddBangBox_FailedBangResyncs(t *testing.T) {
	c, fake := newCore(t, replies(map[string]string{
		`add_bang "g0";`:                 "bx0",
		`bang_vertices "g0" "bx0" "zz";`: "!!! no such vertex: zz",
		`graph_xml "g0";`:                testutil.Snapshot().Vertex("v0", "red").BangBox("bx0").String(),
	}))
	g, err := buildGraph(testutil.Snapshot().Vertex("v0", "red"))
	require.NoError(t, err)

	_, err = c.AddBangBox(context.Background(), g, "zz")
	assert.True(t, coreerr.IsEngineMessage(err, "no such vertex: zz"))

	bb, ok := g.BangBox("bx0")
	require.True(t, ok, "the box the engine created is in the model")
	assert.Zero(t, bb.Len())
	assert.Equal(t, 1, count(fake.Requests(), `graph_xml "g0";`))
}
