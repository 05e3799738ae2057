// Package harness replays scripted engine dialogues against the core facade.
//
// A script pairs the conversation the engine is expected to have with the
// facade operations that should produce it. The harness answers each
// request from the conversation, in order, and fails the run on the first
// request that differs from the script.
//
// # Script Format
//
//	name: build_and_normalise
//	description: "What this script exercises"
//	engine:
//	  - request: 'new_graph;'
//	    reply: g0
//	  - request: 'add_vertex "g0" "red";'
//	    reply: <vertex><name>v0</name>...</vertex>
//	  - request: 'attach_one_rewrite "g0";'
//	    error: No more rewrites.
//	steps:
//	  - op: new_graph
//	    as: g
//	  - op: add_vertex
//	    graph: g
//	    args: [red]
//	    expect: {result: v0}
//	  - op: fast_normalise
//	    graph: g
//	    expect: {result: "0"}
//	assertions:
//	  - type: vertex_count
//	    graph: g
//	    count: 1
//
// An engine entry with error set is answered with "!!! " followed by the
// message. A step's expect.error names an error code (e.g. ENGINE_ERROR);
// without it the step must succeed.
//
// # Assertion Types
//
//   - vertex_count, edge_count, bang_box_count: model sizes
//   - vertex: a vertex's type, data and label
//   - graph_name: the engine-assigned name (empty after discard)
//   - rewrite_state: idle or rewrites_attached
//   - request_count: how often a request line was sent
//
// # Golden Transcripts
//
// RunWithGolden renders the wire transcript and the final models as text
// and compares them with testdata/golden/{name}.golden using goldie. Block
// marker integers are fixed so transcripts are reproducible.
package harness
