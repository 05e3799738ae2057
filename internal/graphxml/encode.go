package graphxml

import (
	"encoding/xml"

	"github.com/roach88/qcore/internal/graph"
)

type outGraph struct {
	XMLName   xml.Name     `xml:"graph"`
	Vertices  []outVertex  `xml:"vertex"`
	Edges     []outEdge    `xml:"edge"`
	BangBoxes []outBangBox `xml:"bangbox"`
}

type outVertex struct {
	Name     string    `xml:"name"`
	Boundary bool      `xml:"boundary"`
	Colour   string    `xml:"colour,omitempty"`
	Angle    *xmlAngle `xml:"angleexpr,omitempty"`
}

type outEdge struct {
	Name   string `xml:"name"`
	Source string `xml:"source"`
	Target string `xml:"target"`
}

type outBangBox struct {
	Name    string   `xml:"name"`
	Members []string `xml:"boxedvertex"`
}

// Marshal renders g as an indented snapshot, vertices and edges sorted by
// ID and bang boxes in list order. The caller holds g's lock.
func Marshal(g *graph.Graph) ([]byte, error) {
	og := outGraph{}
	for _, v := range g.Vertices() {
		ov := outVertex{Name: v.ID, Boundary: v.IsBoundary()}
		if !v.IsBoundary() {
			ov.Colour = v.Kind
			if ov.Colour == "" {
				ov.Colour = v.Type.String()
			}
		}
		if v.Data != "" {
			ov.Angle = &xmlAngle{AsString: v.Data}
		}
		og.Vertices = append(og.Vertices, ov)
	}
	for _, e := range g.Edges() {
		og.Edges = append(og.Edges, outEdge{Name: e.ID, Source: e.Source, Target: e.Target})
	}
	for _, bb := range g.BangBoxes() {
		og.BangBoxes = append(og.BangBoxes, outBangBox{Name: bb.ID, Members: bb.Members()})
	}
	out, err := xml.MarshalIndent(og, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// Canonical parses doc and re-renders it with Marshal.
func Canonical(doc string) ([]byte, error) {
	g, err := Build("", doc)
	if err != nil {
		return nil, err
	}
	return Marshal(g)
}
