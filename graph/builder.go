package graph

import "fmt"

// GraphBuilder assembles a GraphDefinition fluently, deferring all
// structural validation to Build.
//
// The zero value is not usable; construct one with NewGraphBuilder.
type GraphBuilder struct {
	id          string
	name        string
	nodes       map[string]Node
	nodeOrder   []string
	edges       []Edge
	entryNodeID string
	entrySet    bool
	exitNodeIDs map[string]struct{}
	err         error
}

// NewGraphBuilder starts a new builder for a graph with the given ID and
// name.
func NewGraphBuilder(id, name string) *GraphBuilder {
	return &GraphBuilder{
		id:          id,
		name:        name,
		nodes:       make(map[string]Node),
		exitNodeIDs: make(map[string]struct{}),
	}
}

// AddNode registers a node. The first node added becomes the default
// EntryNodeID unless WithEntry is called explicitly.
func (b *GraphBuilder) AddNode(n Node) *GraphBuilder {
	if b.err != nil {
		return b
	}
	if _, exists := b.nodes[n.ID()]; exists {
		b.err = &ValidationError{Reason: fmt.Sprintf("duplicate node id %q", n.ID())}
		return b
	}
	b.nodes[n.ID()] = n
	b.nodeOrder = append(b.nodeOrder, n.ID())
	if !b.entrySet {
		b.entryNodeID = n.ID()
	}
	return b
}

// AddEdge adds an unconditional edge from sourceID to targetID.
func (b *GraphBuilder) AddEdge(sourceID, targetID string) *GraphBuilder {
	return b.AddConditionalEdge(sourceID, targetID, nil, nil)
}

// AddConditionalEdge adds an edge guarded by predicate (nil means
// unconditional) with an optional label for graph export.
func (b *GraphBuilder) AddConditionalEdge(sourceID, targetID string, predicate func(WorkflowState) bool, label *string) *GraphBuilder {
	if b.err != nil {
		return b
	}
	b.edges = append(b.edges, Edge{SourceID: sourceID, TargetID: targetID, Predicate: predicate, Label: label})
	return b
}

// WithEntry overrides the default (first-added-node) entry point.
func (b *GraphBuilder) WithEntry(nodeID string) *GraphBuilder {
	if b.err != nil {
		return b
	}
	b.entryNodeID = nodeID
	b.entrySet = true
	return b
}

// WithExit adds nodeID to the set of exit nodes. If never called, Build
// defaults ExitNodeIDs to every node with zero live outgoing edges.
func (b *GraphBuilder) WithExit(nodeID string) *GraphBuilder {
	if b.err != nil {
		return b
	}
	b.exitNodeIDs[nodeID] = struct{}{}
	return b
}

// Fork adds an unconditional edge from fromID to every node in toIDs, in
// the order given — sugar for a node that fans out to several parallel
// successors.
func (b *GraphBuilder) Fork(fromID string, toIDs ...string) *GraphBuilder {
	for _, to := range toIDs {
		b.AddEdge(fromID, to)
	}
	return b
}

// Join adds an unconditional edge from every node in fromIDs to toID, in
// the order given — sugar for converging several parallel branches back
// into a single node.
func (b *GraphBuilder) Join(toID string, fromIDs ...string) *GraphBuilder {
	for _, from := range fromIDs {
		b.AddEdge(from, toID)
	}
	return b
}

// Build runs two-phase validation (the first construction error recorded
// during the fluent calls, if any, then GraphDefinition.Validate) and
// returns the finished, immutable graph. Only the first construction error
// is kept: once one call fails, later fluent calls are ignored.
func (b *GraphBuilder) Build() (*GraphDefinition, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.nodes) == 0 {
		return nil, &ValidationError{Reason: "graph has no nodes"}
	}

	g := &GraphDefinition{
		ID:          b.id,
		Name:        b.name,
		Nodes:       b.nodes,
		Edges:       append([]Edge{}, b.edges...),
		EntryNodeID: b.entryNodeID,
	}

	if len(b.exitNodeIDs) > 0 {
		g.ExitNodeIDs = b.exitNodeIDs
	} else {
		g.ExitNodeIDs = make(map[string]struct{})
		for _, id := range b.nodeOrder {
			if g.outDegree(id) == 0 {
				g.ExitNodeIDs[id] = struct{}{}
			}
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
