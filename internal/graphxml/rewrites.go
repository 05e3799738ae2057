package graphxml

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
)

type xmlRewrites struct {
	XMLName  xml.Name     `xml:"rewrites"`
	Rewrites []xmlRewrite `xml:"rewrite"`
}

type xmlRewrite struct {
	RuleName *string `xml:"rulename"`
	LHS      *xmlSide `xml:"lhs"`
	RHS      *xmlSide `xml:"rhs"`
}

type xmlSide struct {
	Graph *xmlGraph `xml:"graph"`
}

// ParseRewrites decodes an attached-rewrite listing into detached rule
// graphs, in engine order. The position in the slice is the index passed
// back when applying.
func ParseRewrites(doc string) ([]graph.Rewrite, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, nil
	}
	var xr xmlRewrites
	if err := xml.Unmarshal([]byte(doc), &xr); err != nil {
		return nil, coreerr.Wrap(coreerr.CodeSnapshotParse, "malformed rewrite xml", err)
	}

	out := make([]graph.Rewrite, 0, len(xr.Rewrites))
	for i, x := range xr.Rewrites {
		name, err := required(fmt.Sprintf("rewrite %d", i), "rulename", x.RuleName)
		if err != nil {
			return nil, err
		}
		lhs, err := side(name, "lhs", x.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := side(name, "rhs", x.RHS)
		if err != nil {
			return nil, err
		}
		out = append(out, graph.Rewrite{Name: name, LHS: lhs, RHS: rhs})
	}
	return out, nil
}

func side(rule, which string, s *xmlSide) (*graph.Graph, error) {
	if s == nil || s.Graph == nil {
		return nil, coreerr.SnapshotParse("rewrite %q: missing <%s><graph>", rule, which)
	}
	snap, err := fromXML(s.Graph)
	if err != nil {
		return nil, err
	}
	g := graph.New("")
	Apply(g, snap)
	return g, nil
}
