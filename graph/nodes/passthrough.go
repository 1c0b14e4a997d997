// Package nodes provides reference Node implementations: a no-op
// passthrough, an LLM-backed node, a tool-invoking node, and a thin HTTP
// agent node, each satisfying graph.Node.
package nodes

import (
	"context"
	"time"

	"github.com/flowkit/wfgraph/graph"
)

// Passthrough is a Node that returns its input state unchanged. It is
// useful as a no-op stage — in tests, in fan-out/fan-in scaffolding, or as
// a placeholder while a real node is being built.
type Passthrough struct {
	IDValue   string
	NameValue string
}

func (p Passthrough) ID() string { return p.IDValue }

func (p Passthrough) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return p.IDValue
}

func (p Passthrough) Execute(state graph.WorkflowState, cancellationSignal context.Context) graph.NodeResult {
	if err := cancellationSignal.Err(); err != nil {
		return graph.Failure(p.IDValue, "", time.Now(), "cancelled", err)
	}
	return graph.Success(p.IDValue, "", time.Now(), state)
}

func (p Passthrough) InputKeys() []string  { return nil }
func (p Passthrough) OutputKeys() []string { return nil }
