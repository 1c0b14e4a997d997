package agentpolicy

import (
	"context"

	"github.com/flowkit/wfgraph/graph"
	"github.com/microcosm-cc/bluemonday"
)

// contentFilterPolicy sanitises the latest message in the state a node
// receives and produces, guarding against prompt-injection-style
// HTML/script payloads reaching or leaving an LLM node.
type contentFilterPolicy struct {
	policy *bluemonday.Policy
}

// ContentFilter builds a Policy sanitising the Content of the most recent
// Message in WorkflowState.Messages, both before the wrapped node sees it
// and after it returns, using bluemonday's strict policy (every tag
// stripped). Messages with no entries are passed through untouched.
func ContentFilter() Policy {
	return &contentFilterPolicy{policy: bluemonday.StrictPolicy()}
}

func (p *contentFilterPolicy) Wrap(next graph.Node) graph.Node {
	return &policyNode{
		next: next,
		execute: func(state graph.WorkflowState, cancellationSignal context.Context) graph.NodeResult {
			sanitized := p.sanitizeLastMessage(state)

			result := next.Execute(sanitized, cancellationSignal)
			if result.Kind != graph.NodeResultSuccess {
				return result
			}

			result.OutputState = p.sanitizeLastMessage(result.OutputState)
			return result
		},
	}
}

func (p *contentFilterPolicy) sanitizeLastMessage(state graph.WorkflowState) graph.WorkflowState {
	if len(state.Messages) == 0 {
		return state
	}
	last := state.Messages[len(state.Messages)-1]
	clean := p.policy.Sanitize(last.Content)
	if clean == last.Content {
		return state
	}
	last.Content = clean
	next := state.Clone()
	next.Messages[len(next.Messages)-1] = last
	return next
}
