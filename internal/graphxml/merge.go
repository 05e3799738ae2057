package graphxml

import (
	"github.com/roach88/qcore/internal/graph"
)

// Stats counts what a merge changed.
type Stats struct {
	Added   int
	Updated int
	Removed int
}

// Changed reports whether the vertex set changed.
func (s Stats) Changed() bool {
	return s.Added > 0 || s.Removed > 0
}

// Merge reconciles g with the snapshot document. The caller holds g's lock.
func Merge(g *graph.Graph, doc string) (Stats, error) {
	snap, err := Parse(doc)
	if err != nil {
		return Stats{}, err
	}
	return Apply(g, snap), nil
}

// Apply merges an already validated snapshot into g.
func Apply(g *graph.Graph, snap *Snapshot) Stats {
	var st Stats

	stale := make(map[string]bool, g.VertexCount())
	for _, v := range g.Vertices() {
		stale[v.ID] = true
	}

	for i := range snap.Vertices {
		sv := &snap.Vertices[i]
		if v, ok := g.Vertex(sv.ID); ok {
			v.Type = sv.Type
			v.Kind = sv.Kind
			v.Data = sv.Data
			if !v.IsBoundary() {
				v.Label = sv.Label
			}
			delete(stale, sv.ID)
			st.Updated++
			continue
		}
		nv := *sv
		// IDs were checked for uniqueness and emptiness by Parse.
		_ = g.AddVertex(&nv)
		st.Added++
	}

	for id := range stale {
		g.RemoveVertex(id)
		st.Removed++
	}

	// Edges are immutable: keep the existing value only when it is identical.
	edges := make(map[string]*graph.Edge, len(snap.Edges))
	for i := range snap.Edges {
		se := snap.Edges[i]
		if old, ok := g.Edge(se.ID); ok && *old == se {
			edges[se.ID] = old
			continue
		}
		edges[se.ID] = &se
	}

	boxes := make([]*graph.BangBox, 0, len(snap.BangBoxes))
	for _, spec := range snap.BangBoxes {
		bb, ok := g.BangBox(spec.ID)
		if !ok {
			bb = graph.NewBangBox(spec.ID)
		}
		for _, m := range bb.Members() {
			bb.Remove(m)
		}
		for _, m := range spec.Members {
			bb.Add(m)
		}
		boxes = append(boxes, bb)
	}

	g.ReplaceStructure(edges, boxes)
	g.RelabelBoundaries()
	return st
}
