package graph

// Edge represents a directed connection between two nodes in a
// GraphDefinition.
//
// Edges are ordered: when a node has more than one outgoing edge, they are
// evaluated in the order they were added to the graph, and that order is
// what the executor uses to decide which outgoing edges fire after a node
// completes.
type Edge struct {
	// SourceID is the node this edge leaves.
	SourceID string

	// TargetID is the node this edge enters.
	TargetID string

	// Label is an optional human-readable annotation, surfaced verbatim in
	// DOT/Mermaid export.
	Label *string

	// Predicate is an optional guard. A nil Predicate means the edge is
	// unconditional (always traversed). Predicates must be cheap and
	// side-effect-free: the executor may evaluate them more than once and
	// never memoises a result.
	Predicate func(WorkflowState) bool
}

// Always returns a predicate that unconditionally returns true. It exists
// so graph-construction code can be explicit about an edge being
// unconditional rather than relying on a bare nil; the validator and
// executor treat Always() and nil identically.
func Always() func(WorkflowState) bool {
	return func(WorkflowState) bool { return true }
}

// enabled reports whether the edge should be traversed for the given
// state, treating a nil Predicate as always-enabled.
func (e Edge) enabled(s WorkflowState) bool {
	if e.Predicate == nil {
		return true
	}
	return e.Predicate(s)
}
