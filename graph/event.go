package graph

import "time"

// EventType discriminates the StateEvent sum type.
type EventType string

const (
	EventNodeEntered       EventType = "nodeEntered"
	EventNodeExited        EventType = "nodeExited"
	EventNodeError         EventType = "nodeError"
	EventWorkflowCompleted EventType = "workflowCompleted"
	EventWorkflowFailed    EventType = "workflowFailed"
)

// StateEvent is the tagged union emitted by the executor as a run
// progresses. Every variant carries ID, ExecutionID, NodeID, a State
// snapshot, Timestamp, and an optional PreviousHash linking it to the
// event before it in the run's stream. NodeError additionally carries
// Error/StackTrace; WorkflowFailed additionally carries Error.
type StateEvent struct {
	EventType    EventType
	ID           string
	ExecutionID  string
	NodeID       string
	State        WorkflowState
	Timestamp    time.Time
	PreviousHash *string

	// NodeError fields.
	Error      string
	StackTrace string

	// WorkflowFailed reuses Error above.
}

// NewNodeEntered builds a NodeEntered event, linking it to prevHash (the
// hash of the event immediately preceding it in the run's stream, or nil
// for the first event).
func NewNodeEntered(id, executionID, nodeID string, state WorkflowState, ts time.Time, prevHash *string) StateEvent {
	return StateEvent{EventType: EventNodeEntered, ID: id, ExecutionID: executionID, NodeID: nodeID, State: state, Timestamp: ts, PreviousHash: prevHash}
}

// NewNodeExited builds a NodeExited event.
func NewNodeExited(id, executionID, nodeID string, state WorkflowState, ts time.Time, prevHash *string) StateEvent {
	return StateEvent{EventType: EventNodeExited, ID: id, ExecutionID: executionID, NodeID: nodeID, State: state, Timestamp: ts, PreviousHash: prevHash}
}

// NewNodeError builds a NodeError event.
func NewNodeError(id, executionID, nodeID string, state WorkflowState, ts time.Time, prevHash *string, errMsg, stackTrace string) StateEvent {
	return StateEvent{EventType: EventNodeError, ID: id, ExecutionID: executionID, NodeID: nodeID, State: state, Timestamp: ts, PreviousHash: prevHash, Error: errMsg, StackTrace: stackTrace}
}

// NewWorkflowCompleted builds a WorkflowCompleted terminal event.
func NewWorkflowCompleted(id, executionID string, state WorkflowState, ts time.Time, prevHash *string) StateEvent {
	return StateEvent{EventType: EventWorkflowCompleted, ID: id, ExecutionID: executionID, State: state, Timestamp: ts, PreviousHash: prevHash}
}

// NewWorkflowFailed builds a WorkflowFailed terminal event.
func NewWorkflowFailed(id, executionID string, state WorkflowState, ts time.Time, prevHash *string, errMsg string) StateEvent {
	return StateEvent{EventType: EventWorkflowFailed, ID: id, ExecutionID: executionID, State: state, Timestamp: ts, PreviousHash: prevHash, Error: errMsg}
}

// IsTerminal reports whether this event type ends a run's event stream.
func (e StateEvent) IsTerminal() bool {
	return e.EventType == EventWorkflowCompleted || e.EventType == EventWorkflowFailed
}
