// Package testutil provides builders for engine graph XML and a scripted
// engine that speaks the real wire framing, for use in tests.
package testutil

import (
	"fmt"
	"strings"
)

// SnapshotBuilder assembles a <graph> snapshot document.
//
// Example:
//
//	xml := testutil.Snapshot().
//	    Boundary("b0").
//	    Vertex("v0", "red").
//	    Edge("e0", "b0", "v0").
//	    String()
type SnapshotBuilder struct {
	parts []string
}

// Snapshot starts an empty graph document.
func Snapshot() *SnapshotBuilder {
	return &SnapshotBuilder{}
}

// Boundary adds a boundary vertex.
func (b *SnapshotBuilder) Boundary(name string) *SnapshotBuilder {
	b.parts = append(b.parts, BoundaryFragment(name))
	return b
}

// Vertex adds a non-boundary vertex of the given colour.
func (b *SnapshotBuilder) Vertex(name, colour string) *SnapshotBuilder {
	b.parts = append(b.parts, VertexFragment(name, colour, ""))
	return b
}

// VertexAngle adds a non-boundary vertex carrying an angle expression.
func (b *SnapshotBuilder) VertexAngle(name, colour, angle string) *SnapshotBuilder {
	b.parts = append(b.parts, VertexFragment(name, colour, angle))
	return b
}

// Edge adds a directed edge.
func (b *SnapshotBuilder) Edge(name, source, target string) *SnapshotBuilder {
	b.parts = append(b.parts, EdgeFragment(name, source, target))
	return b
}

// BangBox adds a bang box with the given members.
func (b *SnapshotBuilder) BangBox(name string, members ...string) *SnapshotBuilder {
	b.parts = append(b.parts, BangBoxFragment(name, members...))
	return b
}

// Raw appends an arbitrary fragment, e.g. a deliberately broken element.
func (b *SnapshotBuilder) Raw(fragment string) *SnapshotBuilder {
	b.parts = append(b.parts, fragment)
	return b
}

// String renders the document.
func (b *SnapshotBuilder) String() string {
	return "<graph>" + strings.Join(b.parts, "") + "</graph>"
}

// BoundaryFragment renders a boundary <vertex> element.
func BoundaryFragment(name string) string {
	return fmt.Sprintf("<vertex><name>%s</name><boundary>true</boundary></vertex>", name)
}

// VertexFragment renders a non-boundary <vertex> element. An empty angle
// omits <angleexpr>.
func VertexFragment(name, colour, angle string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<vertex><name>%s</name><boundary>false</boundary><colour>%s</colour>", name, colour)
	if angle != "" {
		fmt.Fprintf(&sb, "<angleexpr><as_string>%s</as_string></angleexpr>", angle)
	}
	sb.WriteString("</vertex>")
	return sb.String()
}

// EdgeFragment renders an <edge> element.
func EdgeFragment(name, source, target string) string {
	return fmt.Sprintf("<edge><name>%s</name><source>%s</source><target>%s</target></edge>", name, source, target)
}

// BangBoxFragment renders a <bangbox> element.
func BangBoxFragment(name string, members ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<bangbox><name>%s</name>", name)
	for _, m := range members {
		fmt.Fprintf(&sb, "<boxedvertex>%s</boxedvertex>", m)
	}
	sb.WriteString("</bangbox>")
	return sb.String()
}

// RewriteFragment renders one <rewrite> element of a rewrite listing.
func RewriteFragment(rule string, lhs, rhs *SnapshotBuilder) string {
	return fmt.Sprintf("<rewrite><rulename>%s</rulename><lhs>%s</lhs><rhs>%s</rhs></rewrite>", rule, lhs.String(), rhs.String())
}

// Rewrites wraps rewrite fragments in a <rewrites> listing.
func Rewrites(fragments ...string) string {
	return "<rewrites>" + strings.Join(fragments, "") + "</rewrites>"
}
