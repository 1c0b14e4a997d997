// Package agentpolicy decorates graph.Node with cross-cutting policy —
// rate limiting, role-based access control, and content filtering —
// composable via Chain, the same decorator shape the core package uses
// for NodePolicy's retry and circuit-breaker wrapping.
package agentpolicy

import (
	"context"

	"github.com/flowkit/wfgraph/graph"
)

// Policy wraps a Node's Execute call, either short-circuiting it with a
// Failure/Skipped result or rewriting its inputs/outputs, before or after
// delegating to the wrapped node.
type Policy interface {
	// Wrap returns a Node that applies this policy around next.
	Wrap(next graph.Node) graph.Node
}

// Chain decorates node with policies in order: the first policy listed is
// the outermost wrapper (it sees the call first and the result last).
func Chain(node graph.Node, policies ...Policy) graph.Node {
	wrapped := node
	for i := len(policies) - 1; i >= 0; i-- {
		wrapped = policies[i].Wrap(wrapped)
	}
	return wrapped
}

// policyNode is the common shape every policy's Wrap returns: it
// delegates ID/Name/InputKeys/OutputKeys to the wrapped node and only
// overrides Execute.
type policyNode struct {
	next    graph.Node
	execute func(state graph.WorkflowState, cancellationSignal context.Context) graph.NodeResult
}

func (p *policyNode) ID() string          { return p.next.ID() }
func (p *policyNode) Name() string        { return p.next.Name() }
func (p *policyNode) InputKeys() []string { return p.next.InputKeys() }
func (p *policyNode) OutputKeys() []string { return p.next.OutputKeys() }
func (p *policyNode) Execute(state graph.WorkflowState, cancellationSignal context.Context) graph.NodeResult {
	return p.execute(state, cancellationSignal)
}

// LLMTagged forwards the wrapped node's LLMTagged status, if it has one,
// so a policy-wrapped LLMNode still gets the executor's LLM timeout.
func (p *policyNode) LLMTagged() bool {
	if tagged, ok := p.next.(graph.LLMTagged); ok {
		return tagged.LLMTagged()
	}
	return false
}
