// Package graph provides the core workflow execution engine: a directed
// graph of nodes connected by conditional edges, a bounded-concurrency
// executor, and an immutable state/event model that the executor streams
// as it runs.
package graph

import "time"

// Status is the lifecycle state of a WorkflowState.
//
// A workflow starts Running and moves to exactly one of Completed, Failed,
// or Cancelled. Once a WorkflowState leaves Running it is never mutated
// again (see WorkflowState's doc comment for the full invariant).
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ToolCallStatus is the lifecycle state of a single ToolCall.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallError     ToolCallStatus = "error"
)

// ToolCall records an invocation of a tool made on behalf of a node,
// typically one requested by an LLM response.
type ToolCall struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Arguments   map[string]any `json:"arguments"`
	Output      map[string]any `json:"output,omitempty"`
	Status      ToolCallStatus `json:"status"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// Clone returns a deep copy of the ToolCall, so callers never share map
// storage with a previously published WorkflowState.
func (tc ToolCall) Clone() ToolCall {
	out := tc
	if tc.Arguments != nil {
		out.Arguments = cloneAnyMap(tc.Arguments)
	}
	if tc.Output != nil {
		out.Output = cloneAnyMap(tc.Output)
	}
	if tc.CompletedAt != nil {
		t := *tc.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// MessageRole identifies who produced a Message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one entry in a workflow's conversation/transcript.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	ToolCalls []ToolCall  `json:"toolCalls,omitempty"`
	Name      *string     `json:"name,omitempty"`
}

// Clone returns a deep copy of the Message.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			out.ToolCalls[i] = tc.Clone()
		}
	}
	if m.Name != nil {
		n := *m.Name
		out.Name = &n
	}
	return out
}

// WorkflowState is the immutable snapshot of a single workflow execution at
// a given step.
//
// Invariants (enforced by the executor, never by this type itself):
//
//   - once Status leaves StatusRunning, no further WorkflowState derived
//     from this one is ever produced; the run's terminal snapshot is final.
//   - Error is non-nil only when Status is StatusFailed or
//     StatusCancelled.
//   - Hash() is a deterministic function of the snapshot's observable
//     fields — same state in, same hash out, regardless of map iteration
//     order or process.
//
// WorkflowState is never mutated in place. Advancing a workflow produces a
// new WorkflowState via With* helpers or the executor's internal commit
// path; the previous snapshot remains valid and unchanged.
type WorkflowState struct {
	ID            string         `json:"id"`
	WorkflowID    string         `json:"workflowId"`
	ThreadID      string         `json:"threadId"`
	Step          int            `json:"step"`
	Data          map[string]any `json:"data"`
	Messages      []Message      `json:"messages"`
	CurrentNodeID *string        `json:"currentNodeId,omitempty"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Error         *string        `json:"error,omitempty"`
}

// Clone returns a deep copy of the state, so that holding onto a
// WorkflowState snapshot is safe even while the executor keeps advancing
// the run.
func (s WorkflowState) Clone() WorkflowState {
	out := s
	if s.Data != nil {
		out.Data = cloneAnyMap(s.Data)
	}
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	if s.CurrentNodeID != nil {
		id := *s.CurrentNodeID
		out.CurrentNodeID = &id
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}

// IsTerminal reports whether Status is anything other than StatusRunning.
func (s WorkflowState) IsTerminal() bool {
	return s.Status != StatusRunning
}

// WithData returns a deep clone of s (see Clone) with a single key of Data
// replaced. It is the idiomatic way for a node
// to produce its next state without hand-rolling a full clone.
func (s WorkflowState) WithData(key string, value any) WorkflowState {
	next := s.Clone()
	if next.Data == nil {
		next.Data = make(map[string]any, 1)
	}
	next.Data[key] = value
	return next
}

// WithMessage returns a clone of s with msg appended to Messages.
func (s WorkflowState) WithMessage(msg Message) WorkflowState {
	next := s.Clone()
	next.Messages = append(next.Messages, msg)
	return next
}

// WithStatus returns a clone of s with Status (and, for Failed/Cancelled,
// Error) set. It refuses to move a state that is already terminal.
func (s WorkflowState) WithStatus(status Status, errMsg *string) (WorkflowState, error) {
	if s.IsTerminal() {
		return s, &ValidationError{Reason: "cannot transition a terminal WorkflowState"}
	}
	if errMsg != nil && status != StatusFailed && status != StatusCancelled {
		return s, &ValidationError{Reason: "error is only valid on Failed or Cancelled status"}
	}
	next := s.Clone()
	next.Status = status
	next.Error = errMsg
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NodeResultKind discriminates the NodeResult sum type.
type NodeResultKind string

const (
	NodeResultSuccess NodeResultKind = "success"
	NodeResultFailure NodeResultKind = "failure"
	NodeResultSkipped NodeResultKind = "skipped"
)

// NodeResult is the tagged union a Node returns from Execute. Exactly one
// of Success, Failure, or Skipped is populated, selected by Kind.
//
// Every variant carries NodeID, ExecutionID, and Timestamp so the executor
// can attribute a result to the run and node that produced it without
// reaching back into caller state.
type NodeResult struct {
	Kind        NodeResultKind
	NodeID      string
	ExecutionID string
	Timestamp   time.Time

	// Success fields.
	OutputState WorkflowState

	// Failure fields.
	FailureReason string
	FailureErr    error

	// Skipped fields.
	SkippedReason string
}

// Success builds a NodeResultSuccess variant.
func Success(nodeID, executionID string, ts time.Time, outputState WorkflowState) NodeResult {
	return NodeResult{Kind: NodeResultSuccess, NodeID: nodeID, ExecutionID: executionID, Timestamp: ts, OutputState: outputState}
}

// Failure builds a NodeResultFailure variant.
func Failure(nodeID, executionID string, ts time.Time, reason string, err error) NodeResult {
	return NodeResult{Kind: NodeResultFailure, NodeID: nodeID, ExecutionID: executionID, Timestamp: ts, FailureReason: reason, FailureErr: err}
}

// Skipped builds a NodeResultSkipped variant.
func Skipped(nodeID, executionID string, ts time.Time, reason string) NodeResult {
	return NodeResult{Kind: NodeResultSkipped, NodeID: nodeID, ExecutionID: executionID, Timestamp: ts, SkippedReason: reason}
}
