package nodes

import (
	"context"
	"time"

	"github.com/flowkit/wfgraph/graph"
	"github.com/flowkit/wfgraph/graph/model"
	"github.com/google/uuid"
)

// LLMNode wraps a model.ChatModel, sending the workflow's message
// transcript as the conversation and appending the model's reply as a new
// assistant Message. It satisfies graph.LLMTagged so the executor applies
// LLMNodeTimeout rather than the run's default node timeout.
type LLMNode struct {
	IDValue      string
	NameValue    string
	Model        model.ChatModel
	ModelName    string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Tools        []model.ToolSpec

	// CostTracker, if non-nil, receives a RecordLLMCall for every
	// successful Generate, attributing token usage to IDValue.
	CostTracker *graph.CostTracker
}

func (n *LLMNode) ID() string { return n.IDValue }

func (n *LLMNode) Name() string {
	if n.NameValue != "" {
		return n.NameValue
	}
	return n.IDValue
}

// LLMTagged marks this node as LLM-bearing.
func (n *LLMNode) LLMTagged() bool { return true }

func (n *LLMNode) Execute(state graph.WorkflowState, cancellationSignal context.Context) graph.NodeResult {
	req := model.Request{
		Messages:     convertMessages(state.Messages),
		Model:        n.ModelName,
		Temperature:  n.Temperature,
		MaxTokens:    n.MaxTokens,
		Tools:        n.Tools,
		SystemPrompt: n.SystemPrompt,
	}

	resp, err := n.Model.Generate(cancellationSignal, req)
	if err != nil {
		return graph.Failure(n.IDValue, "", time.Now(), "LLM call failed", err)
	}

	if n.CostTracker != nil {
		usedModel := resp.Model
		if usedModel == "" {
			usedModel = n.ModelName
		}
		_ = n.CostTracker.RecordLLMCall(usedModel, resp.TokensUsed.Input, resp.TokensUsed.Output, n.IDValue)
	}

	next := state.WithMessage(graph.Message{
		ID:        uuid.NewString(),
		Role:      graph.RoleAssistant,
		Content:   resp.Content,
		Timestamp: time.Now().UTC(),
		ToolCalls: convertToolCalls(resp.ToolCalls),
	})
	return graph.Success(n.IDValue, "", time.Now(), next)
}

func (n *LLMNode) InputKeys() []string  { return nil }
func (n *LLMNode) OutputKeys() []string { return nil }

// convertMessages maps a workflow transcript onto the LLM request shape.
func convertMessages(messages []graph.Message) []model.Message {
	out := make([]model.Message, len(messages))
	for i, m := range messages {
		out[i] = model.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

// convertToolCalls records tool calls the model requested as pending
// ToolCall entries on the appended Message; a ToolNode elsewhere in the
// graph is responsible for actually invoking them.
func convertToolCalls(calls []model.ToolCall) []graph.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]graph.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = graph.ToolCall{
			ID:        uuid.NewString(),
			Name:      c.Name,
			Arguments: c.Input,
			Status:    graph.ToolCallPending,
		}
	}
	return out
}
