package graph

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// VertexType tags what kind of node a vertex is.
type VertexType int

const (
	Boundary VertexType = iota
	Red
	Green
	Hadamard
	Generic // theory-defined; the engine's colour string is kept in Vertex.Kind
)

func (t VertexType) String() string {
	switch t {
	case Boundary:
		return "boundary"
	case Red:
		return "red"
	case Green:
		return "green"
	case Hadamard:
		return "hadamard"
	case Generic:
		return "generic"
	}
	return fmt.Sprintf("VertexType(%d)", int(t))
}

// MarshalText renders the type by name.
func (t VertexType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// TypeOf maps an engine colour string to a vertex type. Names outside the
// built-in set are theory-defined and map to Generic.
func TypeOf(colour string) VertexType {
	switch strings.ToLower(colour) {
	case "boundary":
		return Boundary
	case "red":
		return Red
	case "green":
		return Green
	case "hadamard", "h":
		return Hadamard
	}
	return Generic
}

// Vertex is a graph node. Its identity is the engine-assigned ID; the
// synchronizer updates the other fields in place so pointers stay valid
// across refreshes.
type Vertex struct {
	ID    string     `json:"id"`
	Type  VertexType `json:"type"`
	Kind  string     `json:"kind,omitempty"` // engine colour string, empty for boundaries
	Data  string     `json:"data,omitempty"` // e.g. an angle expression
	Label string     `json:"label"`          // boundary index or Data
}

// IsBoundary reports whether v marks an external connection point.
func (v *Vertex) IsBoundary() bool {
	return v.Type == Boundary
}

// SetData replaces the payload and re-derives the label of a non-boundary
// vertex.
func (v *Vertex) SetData(data string) {
	v.Data = data
	if !v.IsBoundary() {
		v.Label = data
	}
}

// Flip swaps red and green. Other types are unchanged.
func (v *Vertex) Flip() {
	switch v.Type {
	case Red:
		v.Type, v.Kind = Green, "green"
	case Green:
		v.Type, v.Kind = Red, "red"
	}
}

// Edge connects two vertices by ID. Edges are immutable; structural changes
// replace them.
type Edge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Directed bool   `json:"directed"`
}

// BangBox is a named, possibly empty, set of vertices.
type BangBox struct {
	ID      string
	members map[string]struct{}
}

// NewBangBox creates a box holding members.
func NewBangBox(id string, members ...string) *BangBox {
	bb := &BangBox{ID: id, members: make(map[string]struct{}, len(members))}
	for _, m := range members {
		bb.members[m] = struct{}{}
	}
	return bb
}

// Contains reports whether id is a member.
func (bb *BangBox) Contains(id string) bool {
	_, ok := bb.members[id]
	return ok
}

// Add inserts id into the box.
func (bb *BangBox) Add(id string) {
	if bb.members == nil {
		bb.members = make(map[string]struct{})
	}
	bb.members[id] = struct{}{}
}

// Remove deletes id from the box.
func (bb *BangBox) Remove(id string) {
	delete(bb.members, id)
}

// Len returns the number of members.
func (bb *BangBox) Len() int {
	return len(bb.members)
}

// Members returns member IDs in sorted order.
func (bb *BangBox) Members() []string {
	out := make([]string, 0, len(bb.members))
	for id := range bb.members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

type bangBoxJSON struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}

// MarshalJSON renders the box with its members sorted.
func (bb *BangBox) MarshalJSON() ([]byte, error) {
	return json.Marshal(bangBoxJSON{ID: bb.ID, Members: bb.Members()})
}
