package graph

import (
	"fmt"
	"sort"
	"strings"
)

// ToDOT renders g as a Graphviz DOT digraph: box-shaped nodes labelled by
// node name, left-to-right layout, a rank=source hint for the entry node,
// and a rank=sink hint grouping the nodes that have no outgoing edges
// (sinks). Identical edges
// (same source, target, and label) are emitted once; embedded quotes and
// line breaks in labels are escaped.
func ToDOT(g *GraphDefinition) string {
	var b strings.Builder

	name := g.Name
	if name == "" {
		name = "workflow"
	}
	fmt.Fprintf(&b, "digraph %s {\n", dotID(name))
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	for _, id := range sortedNodeIDs(g) {
		fmt.Fprintf(&b, "  %s [label=%s];\n", dotID(id), dotQuote(g.Nodes[id].Name()))
	}

	sinks := sinkNodeIDs(g)
	if g.EntryNodeID != "" {
		fmt.Fprintf(&b, "  { rank=source; %s; }\n", dotID(g.EntryNodeID))
	}
	if len(sinks) > 0 {
		ids := make([]string, len(sinks))
		for i, id := range sinks {
			ids[i] = dotID(id)
		}
		fmt.Fprintf(&b, "  { rank=sink; %s; }\n", strings.Join(ids, "; "))
	}

	for _, e := range dedupeEdges(g.Edges) {
		if e.Label != nil {
			fmt.Fprintf(&b, "  %s -> %s [label=%s];\n", dotID(e.SourceID), dotID(e.TargetID), dotQuote(*e.Label))
		} else {
			fmt.Fprintf(&b, "  %s -> %s;\n", dotID(e.SourceID), dotID(e.TargetID))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// ToMermaid renders g as a Mermaid flowchart: `flowchart TD` with
// `id("label")` nodes, `src -->|label| tgt` edges, and the entry node
// rendered as a circle (`id(("label"))`) instead of a box. This fixes the
// unbalanced-parenthesis bug the teacher's entry-node rendering carried
// (`Start((entry)`, missing its closing paren) by always emitting a
// matched pair. Identical edges are deduplicated and labels are escaped.
func ToMermaid(g *GraphDefinition) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for _, id := range sortedNodeIDs(g) {
		label := mermaidEscape(g.Nodes[id].Name())
		if id == g.EntryNodeID {
			fmt.Fprintf(&b, "    %s((\"%s\"))\n", mermaidID(id), label)
		} else {
			fmt.Fprintf(&b, "    %s(\"%s\")\n", mermaidID(id), label)
		}
	}

	for _, e := range dedupeEdges(g.Edges) {
		if e.Label != nil {
			fmt.Fprintf(&b, "    %s -->|%s| %s\n", mermaidID(e.SourceID), mermaidEscape(*e.Label), mermaidID(e.TargetID))
		} else {
			fmt.Fprintf(&b, "    %s --> %s\n", mermaidID(e.SourceID), mermaidID(e.TargetID))
		}
	}

	return b.String()
}

func sortedNodeIDs(g *GraphDefinition) []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sinkNodeIDs(g *GraphDefinition) []string {
	var sinks []string
	for _, id := range sortedNodeIDs(g) {
		if g.outDegree(id) == 0 {
			sinks = append(sinks, id)
		}
	}
	return sinks
}

// dedupeEdges drops edges identical in source, target, and label,
// preserving first-seen order.
func dedupeEdges(edges []Edge) []Edge {
	seen := make(map[string]struct{}, len(edges))
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		label := ""
		if e.Label != nil {
			label = *e.Label
		}
		key := e.SourceID + "\x00" + e.TargetID + "\x00" + label
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// dotID produces a DOT-safe identifier: alphanumeric node/workflow ids are
// emitted bare, anything else is quoted.
func dotID(s string) string {
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return dotQuote(s)
		}
	}
	if s == "" {
		return `""`
	}
	return s
}

// dotQuote escapes a DOT string literal: backslashes and quotes are
// escaped, and embedded newlines become a literal "\n" sequence DOT
// renders as a line break.
func dotQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

// mermaidID replaces characters Mermaid's parser treats as syntax (spaces,
// parens, pipes, quotes, newlines) in a node id with underscores so it is
// safe to use unquoted as a node reference.
func mermaidID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '(', ')', '|', '"', '\n':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// mermaidEscape escapes a Mermaid label: embedded quotes are replaced with
// the HTML entity Mermaid recognises inside quoted labels, and line breaks
// become "<br/>" so the diagram source stays on one line per node/edge.
func mermaidEscape(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, "\n", "<br/>")
	return s
}
