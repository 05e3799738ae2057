package graph

// Rewrite is a named rule: a left-hand graph and a right-hand graph.
// Opened rules hold engine-backed graphs; attached candidates hold detached
// copies parsed from the rewrite listing.
type Rewrite struct {
	Name string `json:"name"`
	LHS  *Graph `json:"-"`
	RHS  *Graph `json:"-"`
}

// Summary is a read-only digest of a graph, used for display and JSON output.
type Summary struct {
	Name      string     `json:"name"`
	Vertices  []*Vertex  `json:"vertices"`
	Edges     []*Edge    `json:"edges"`
	BangBoxes []*BangBox `json:"bang_boxes"`
}

// Summarize copies the graph's current state. Callers hold the lock.
func (g *Graph) Summarize() Summary {
	vs := g.Vertices()
	cp := make([]*Vertex, len(vs))
	for i, v := range vs {
		c := *v
		cp[i] = &c
	}
	es := g.Edges()
	ecp := make([]*Edge, len(es))
	for i, e := range es {
		c := *e
		ecp[i] = &c
	}
	bbs := g.BangBoxes()
	bcp := make([]*BangBox, len(bbs))
	for i, bb := range bbs {
		bcp[i] = NewBangBox(bb.ID, bb.Members()...)
	}
	return Summary{Name: g.name, Vertices: cp, Edges: ecp, BangBoxes: bcp}
}
