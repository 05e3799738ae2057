// Package graph holds the client-side model of engine graphs.
//
// The engine is authoritative: every ID comes from it and every change is
// either echoed back as a fragment or followed by a full snapshot merge
// (see package graphxml). The model only enforces referential integrity.
//
// Graph methods do not lock. Lock and Unlock serialise whole operations,
// e.g. a command plus the merge that follows it, and readers in other
// goroutines should hold the lock for as long as they read.
package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
)

var (
	// ErrDuplicateID is returned when an element with the same ID exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrUnknownVertex is returned when a reference names no vertex.
	ErrUnknownVertex = errors.New("unknown vertex")

	// ErrEmptyID is returned for elements without an ID.
	ErrEmptyID = errors.New("empty id")
)

// Graph is a directed multigraph plus bang boxes.
type Graph struct {
	mu sync.Mutex

	name      string // engine-assigned; empty until known or after discard
	fileName  string
	vertices  map[string]*Vertex
	edges     map[string]*Edge
	bangBoxes []*BangBox
}

// New creates an empty graph with the given engine name, which may be empty.
func New(name string) *Graph {
	return &Graph{
		name:     name,
		vertices: make(map[string]*Vertex),
		edges:    make(map[string]*Edge),
	}
}

// Lock acquires the graph's operation lock.
func (g *Graph) Lock() { g.mu.Lock() }

// Unlock releases the graph's operation lock.
func (g *Graph) Unlock() { g.mu.Unlock() }

// Name returns the engine-assigned name.
func (g *Graph) Name() string { return g.name }

// SetName records a new engine-assigned name. An empty name marks the graph
// as no longer known to the engine.
func (g *Graph) SetName(name string) { g.name = name }

// FileName returns the file the graph was last loaded from or saved to.
func (g *Graph) FileName() string { return g.fileName }

// SetFileName records the graph's file.
func (g *Graph) SetFileName(path string) { g.fileName = path }

// Vertex returns the vertex with the given ID.
func (g *Graph) Vertex(id string) (*Vertex, bool) {
	v, ok := g.vertices[id]
	return v, ok
}

// Vertices returns all vertices sorted by ID.
func (g *Graph) Vertices() []*Vertex {
	ids := slices.Sorted(maps.Keys(g.vertices))
	out := make([]*Vertex, len(ids))
	for i, id := range ids {
		out[i] = g.vertices[id]
	}
	return out
}

// VertexCount returns the number of vertices.
func (g *Graph) VertexCount() int { return len(g.vertices) }

// Edge returns the edge with the given ID.
func (g *Graph) Edge(id string) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// Edges returns all edges sorted by ID.
func (g *Graph) Edges() []*Edge {
	ids := slices.Sorted(maps.Keys(g.edges))
	out := make([]*Edge, len(ids))
	for i, id := range ids {
		out[i] = g.edges[id]
	}
	return out
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// BangBox returns the box with the given ID.
func (g *Graph) BangBox(id string) (*BangBox, bool) {
	for _, bb := range g.bangBoxes {
		if bb.ID == id {
			return bb, true
		}
	}
	return nil, false
}

// BangBoxes returns the boxes in insertion order.
func (g *Graph) BangBoxes() []*BangBox {
	return slices.Clone(g.bangBoxes)
}

// AddVertex inserts v.
func (g *Graph) AddVertex(v *Vertex) error {
	if v.ID == "" {
		return fmt.Errorf("add vertex: %w", ErrEmptyID)
	}
	if _, ok := g.vertices[v.ID]; ok {
		return fmt.Errorf("add vertex %q: %w", v.ID, ErrDuplicateID)
	}
	g.vertices[v.ID] = v
	return nil
}

// RemoveVertex deletes the vertex together with its incident edges and its
// bang-box memberships. It reports whether the vertex existed.
func (g *Graph) RemoveVertex(id string) bool {
	if _, ok := g.vertices[id]; !ok {
		return false
	}
	delete(g.vertices, id)
	for eid, e := range g.edges {
		if e.Source == id || e.Target == id {
			delete(g.edges, eid)
		}
	}
	for _, bb := range g.bangBoxes {
		bb.Remove(id)
	}
	return true
}

// AddEdge inserts e. Both endpoints must already exist.
func (g *Graph) AddEdge(e *Edge) error {
	if e.ID == "" {
		return fmt.Errorf("add edge: %w", ErrEmptyID)
	}
	if _, ok := g.edges[e.ID]; ok {
		return fmt.Errorf("add edge %q: %w", e.ID, ErrDuplicateID)
	}
	if _, ok := g.vertices[e.Source]; !ok {
		return fmt.Errorf("add edge %q: source %q: %w", e.ID, e.Source, ErrUnknownVertex)
	}
	if _, ok := g.vertices[e.Target]; !ok {
		return fmt.Errorf("add edge %q: target %q: %w", e.ID, e.Target, ErrUnknownVertex)
	}
	g.edges[e.ID] = e
	return nil
}

// RemoveEdge deletes an edge and reports whether it existed.
func (g *Graph) RemoveEdge(id string) bool {
	if _, ok := g.edges[id]; !ok {
		return false
	}
	delete(g.edges, id)
	return true
}

// AddBangBox appends bb. Every member must exist.
func (g *Graph) AddBangBox(bb *BangBox) error {
	if bb.ID == "" {
		return fmt.Errorf("add bang box: %w", ErrEmptyID)
	}
	if _, ok := g.BangBox(bb.ID); ok {
		return fmt.Errorf("add bang box %q: %w", bb.ID, ErrDuplicateID)
	}
	for _, m := range bb.Members() {
		if _, ok := g.vertices[m]; !ok {
			return fmt.Errorf("add bang box %q: member %q: %w", bb.ID, m, ErrUnknownVertex)
		}
	}
	g.bangBoxes = append(g.bangBoxes, bb)
	return nil
}

// RemoveBangBox deletes a box, leaving its members in the graph. It reports
// whether the box existed.
func (g *Graph) RemoveBangBox(id string) bool {
	for i, bb := range g.bangBoxes {
		if bb.ID == id {
			g.bangBoxes = slices.Delete(g.bangBoxes, i, i+1)
			return true
		}
	}
	return false
}

// ReplaceStructure swaps in a new edge set and bang-box list. References
// are not checked; the synchronizer validates them first.
func (g *Graph) ReplaceStructure(edges map[string]*Edge, boxes []*BangBox) {
	g.edges = edges
	g.bangBoxes = boxes
}

// RelabelBoundaries assigns display labels 0..n-1 to boundary vertices in
// ID order.
func (g *Graph) RelabelBoundaries() {
	n := 0
	for _, v := range g.Vertices() {
		if v.IsBoundary() {
			v.Label = strconv.Itoa(n)
			n++
		}
	}
}
