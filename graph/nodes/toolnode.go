package nodes

import (
	"context"
	"time"

	"github.com/flowkit/wfgraph/graph"
	"github.com/flowkit/wfgraph/graph/tool"
	"github.com/google/uuid"
)

// ToolNode wraps a tool.Tool, invoking it with the map found under
// state.Data[InputKey] and recording the result as a ToolCall on a new
// RoleTool Message. If OutputKey is non-empty, the tool's raw output map
// is also stored at state.Data[OutputKey] for downstream nodes.
type ToolNode struct {
	IDValue   string
	NameValue string
	Tool      tool.Tool
	InputKey  string
	OutputKey string
}

func (n *ToolNode) ID() string { return n.IDValue }

func (n *ToolNode) Name() string {
	if n.NameValue != "" {
		return n.NameValue
	}
	return n.IDValue
}

func (n *ToolNode) Execute(state graph.WorkflowState, cancellationSignal context.Context) graph.NodeResult {
	input, _ := state.Data[n.InputKey].(map[string]interface{})

	output, err := n.Tool.Call(cancellationSignal, input)
	if err != nil {
		return graph.Failure(n.IDValue, "", time.Now(), "tool call failed", err)
	}

	now := time.Now().UTC()
	call := graph.ToolCall{
		ID:          uuid.NewString(),
		Name:        n.Tool.Name(),
		Arguments:   input,
		Output:      output,
		Status:      graph.ToolCallCompleted,
		CompletedAt: &now,
	}

	next := state.WithMessage(graph.Message{
		ID:        uuid.NewString(),
		Role:      graph.RoleTool,
		Timestamp: now,
		ToolCalls: []graph.ToolCall{call},
	})
	if n.OutputKey != "" {
		next = next.WithData(n.OutputKey, output)
	}
	return graph.Success(n.IDValue, "", time.Now(), next)
}

func (n *ToolNode) InputKeys() []string {
	if n.InputKey == "" {
		return nil
	}
	return []string{n.InputKey}
}

func (n *ToolNode) OutputKeys() []string {
	if n.OutputKey == "" {
		return nil
	}
	return []string{n.OutputKey}
}
