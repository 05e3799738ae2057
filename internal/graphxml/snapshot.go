// Package graphxml parses engine graph snapshots and merges them into a
// live graph.Graph.
//
// Merge is mark-and-sweep: vertices present in both the model and the
// snapshot are updated in place, so any *graph.Vertex held elsewhere keeps
// observing the same object. Vertices missing from the snapshot are removed
// along with their edges and memberships; the edge and bang-box sets are
// rebuilt from the snapshot. The whole document is validated before the
// model is touched, so a SNAPSHOT_PARSE_ERROR leaves the model unchanged.
package graphxml

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
)

type xmlGraph struct {
	XMLName   xml.Name     `xml:"graph"`
	Vertices  []xmlVertex  `xml:"vertex"`
	Edges     []xmlEdge    `xml:"edge"`
	BangBoxes []xmlBangBox `xml:"bangbox"`
}

type xmlVertex struct {
	XMLName  xml.Name  `xml:"vertex"`
	Name     *string   `xml:"name"`
	Boundary *string   `xml:"boundary"`
	Colour   *string   `xml:"colour"`
	Angle    *xmlAngle `xml:"angleexpr"`
}

type xmlAngle struct {
	AsString string `xml:"as_string"`
}

type xmlEdge struct {
	XMLName xml.Name `xml:"edge"`
	Name    *string  `xml:"name"`
	Source  *string  `xml:"source"`
	Target  *string  `xml:"target"`
}

type xmlBangBox struct {
	Name    *string  `xml:"name"`
	Members []string `xml:"boxedvertex"`
}

// Snapshot is a validated graph document.
type Snapshot struct {
	Vertices  []graph.Vertex
	Edges     []graph.Edge
	BangBoxes []BangBoxSpec
}

// BangBoxSpec is a box as listed in a snapshot.
type BangBoxSpec struct {
	ID      string
	Members []string
}

// Parse decodes and validates a full snapshot. Every reference must
// resolve within the document.
func Parse(doc string) (*Snapshot, error) {
	var xg xmlGraph
	if err := xml.Unmarshal([]byte(doc), &xg); err != nil {
		return nil, coreerr.Wrap(coreerr.CodeSnapshotParse, "malformed graph xml", err)
	}
	return fromXML(&xg)
}

func fromXML(xg *xmlGraph) (*Snapshot, error) {
	s := &Snapshot{}
	ids := make(map[string]bool, len(xg.Vertices))
	for i := range xg.Vertices {
		v, err := vertexFrom(&xg.Vertices[i])
		if err != nil {
			return nil, err
		}
		if ids[v.ID] {
			return nil, coreerr.SnapshotParse("duplicate vertex %q", v.ID)
		}
		ids[v.ID] = true
		s.Vertices = append(s.Vertices, *v)
	}

	edgeIDs := make(map[string]bool, len(xg.Edges))
	for i := range xg.Edges {
		e, err := edgeFrom(&xg.Edges[i])
		if err != nil {
			return nil, err
		}
		if edgeIDs[e.ID] {
			return nil, coreerr.SnapshotParse("duplicate edge %q", e.ID)
		}
		if !ids[e.Source] {
			return nil, coreerr.SnapshotParse("edge %q: unknown source %q", e.ID, e.Source)
		}
		if !ids[e.Target] {
			return nil, coreerr.SnapshotParse("edge %q: unknown target %q", e.ID, e.Target)
		}
		edgeIDs[e.ID] = true
		s.Edges = append(s.Edges, *e)
	}

	boxIDs := make(map[string]bool, len(xg.BangBoxes))
	for _, xb := range xg.BangBoxes {
		name, err := required("bangbox", "name", xb.Name)
		if err != nil {
			return nil, err
		}
		if boxIDs[name] {
			return nil, coreerr.SnapshotParse("duplicate bang box %q", name)
		}
		boxIDs[name] = true
		spec := BangBoxSpec{ID: name}
		for _, m := range xb.Members {
			m = strings.TrimSpace(m)
			if !ids[m] {
				return nil, coreerr.SnapshotParse("bang box %q: unknown vertex %q", name, m)
			}
			spec.Members = append(spec.Members, m)
		}
		s.BangBoxes = append(s.BangBoxes, spec)
	}
	return s, nil
}

func required(elem, child string, v *string) (string, error) {
	if v == nil {
		return "", coreerr.SnapshotParse("%s: missing <%s>", elem, child)
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return "", coreerr.SnapshotParse("%s: empty <%s>", elem, child)
	}
	return s, nil
}

func vertexFrom(xv *xmlVertex) (*graph.Vertex, error) {
	name, err := required("vertex", "name", xv.Name)
	if err != nil {
		return nil, err
	}
	boundary, err := required(fmt.Sprintf("vertex %q", name), "boundary", xv.Boundary)
	if err != nil {
		return nil, err
	}

	v := &graph.Vertex{ID: name}
	switch boundary {
	case "true":
		v.Type = graph.Boundary
	case "false":
		colour, err := required(fmt.Sprintf("vertex %q", name), "colour", xv.Colour)
		if err != nil {
			return nil, err
		}
		v.Type = graph.TypeOf(colour)
		v.Kind = strings.ToLower(colour)
	default:
		return nil, coreerr.SnapshotParse("vertex %q: invalid value %q for <boundary>", name, boundary)
	}
	if xv.Angle != nil {
		v.SetData(strings.TrimSpace(xv.Angle.AsString))
	}
	return v, nil
}

func edgeFrom(xe *xmlEdge) (*graph.Edge, error) {
	name, err := required("edge", "name", xe.Name)
	if err != nil {
		return nil, err
	}
	elem := fmt.Sprintf("edge %q", name)
	src, err := required(elem, "source", xe.Source)
	if err != nil {
		return nil, err
	}
	tgt, err := required(elem, "target", xe.Target)
	if err != nil {
		return nil, err
	}
	return &graph.Edge{ID: name, Source: src, Target: tgt, Directed: true}, nil
}

// ParseVertex decodes a single <vertex> fragment, as returned by commands
// that create one vertex.
func ParseVertex(fragment string) (*graph.Vertex, error) {
	var xv xmlVertex
	if err := xml.Unmarshal([]byte(fragment), &xv); err != nil {
		return nil, coreerr.Wrap(coreerr.CodeSnapshotParse, "malformed vertex xml", err)
	}
	return vertexFrom(&xv)
}

// ParseEdge decodes a single <edge> fragment.
func ParseEdge(fragment string) (*graph.Edge, error) {
	var xe xmlEdge
	if err := xml.Unmarshal([]byte(fragment), &xe); err != nil {
		return nil, coreerr.Wrap(coreerr.CodeSnapshotParse, "malformed edge xml", err)
	}
	return edgeFrom(&xe)
}

// Build creates a detached graph from a snapshot.
func Build(name, doc string) (*graph.Graph, error) {
	g := graph.New(name)
	if _, err := Merge(g, doc); err != nil {
		return nil, err
	}
	return g, nil
}
