// Package trace folds a run's StateEvent stream into a RunTrace:
// completion status, paired node executions, errors, and time/kind/node
// filters, plus an analyser layer deriving run statistics.
package trace

import (
	"time"

	"github.com/flowkit/wfgraph/graph"
)

// RunTrace wraps the event stream produced by a single workflow execution.
type RunTrace struct {
	ExecutionID string
	WorkflowID  string
	StartedAt   time.Time
	CompletedAt *time.Time
	Events      []graph.StateEvent
	Metadata    map[string]any
}

// New builds a RunTrace from a workflow/execution id pair and its event
// stream. CompletedAt is derived from the terminal event, if any.
func New(executionID, workflowID string, startedAt time.Time, events []graph.StateEvent, metadata map[string]any) RunTrace {
	rt := RunTrace{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		StartedAt:   startedAt,
		Events:      events,
		Metadata:    metadata,
	}
	for _, e := range events {
		if e.IsTerminal() {
			ts := e.Timestamp
			rt.CompletedAt = &ts
			break
		}
	}
	return rt
}

// Duration reports how long the run has taken: CompletedAt minus
// StartedAt if the run finished, otherwise now minus StartedAt.
func (rt RunTrace) Duration() time.Duration {
	if rt.CompletedAt != nil {
		return rt.CompletedAt.Sub(rt.StartedAt)
	}
	return time.Since(rt.StartedAt)
}

// IsCompleted reports whether a WorkflowCompleted event appears anywhere
// in the stream.
func (rt RunTrace) IsCompleted() bool {
	for _, e := range rt.Events {
		if e.EventType == graph.EventWorkflowCompleted {
			return true
		}
	}
	return false
}

// hasErrors reports whether the run recorded any NodeError or
// WorkflowFailed event.
func (rt RunTrace) hasErrors() bool {
	for _, e := range rt.Events {
		if e.EventType == graph.EventNodeError || e.EventType == graph.EventWorkflowFailed {
			return true
		}
	}
	return false
}

// HasErrors is the exported form of hasErrors, part of the trace's
// user-visible failure contract alongside IsHealthy.
func (rt RunTrace) HasErrors() bool { return rt.hasErrors() }

// isHealthy reports whether the run completed without any error event.
func (rt RunTrace) isHealthy() bool {
	return rt.IsCompleted() && !rt.hasErrors()
}

// IsHealthy is the exported form of isHealthy.
func (rt RunTrace) IsHealthy() bool { return rt.isHealthy() }

// NodeExecution pairs a NodeEntered event with the NodeExited event that
// next occurred for the same node id.
type NodeExecution struct {
	NodeID   string
	Entered  graph.StateEvent
	Exited   graph.StateEvent
	Duration time.Duration
}

// NodeExecutions pairs each NodeEntered with the next NodeExited on the
// same node id, in stream order; unmatched entries (a NodeEntered with no
// following NodeExited, e.g. because the node errored or the run was cut
// short) are discarded.
func (rt RunTrace) NodeExecutions() []NodeExecution {
	var execs []NodeExecution
	open := map[string]graph.StateEvent{}

	for _, e := range rt.Events {
		switch e.EventType {
		case graph.EventNodeEntered:
			open[e.NodeID] = e
		case graph.EventNodeExited:
			entered, ok := open[e.NodeID]
			if !ok {
				continue
			}
			execs = append(execs, NodeExecution{
				NodeID:   e.NodeID,
				Entered:  entered,
				Exited:   e,
				Duration: e.Timestamp.Sub(entered.Timestamp),
			})
			delete(open, e.NodeID)
		}
	}
	return execs
}

// NodeErrorRecord is the compact view of a NodeError event.
type NodeErrorRecord struct {
	NodeID     string
	Error      string
	StackTrace string
	Timestamp  time.Time
}

// Errors returns all NodeError events mapped to their compact view, in
// stream order.
func (rt RunTrace) Errors() []NodeErrorRecord {
	var errs []NodeErrorRecord
	for _, e := range rt.Events {
		if e.EventType != graph.EventNodeError {
			continue
		}
		errs = append(errs, NodeErrorRecord{
			NodeID:     e.NodeID,
			Error:      e.Error,
			StackTrace: e.StackTrace,
			Timestamp:  e.Timestamp,
		})
	}
	return errs
}

// ByNode filters the stream to events carrying the given node id.
func (rt RunTrace) ByNode(nodeID string) []graph.StateEvent {
	var out []graph.StateEvent
	for _, e := range rt.Events {
		if e.NodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// ByType filters the stream to events of the given EventType.
func (rt RunTrace) ByType(t graph.EventType) []graph.StateEvent {
	var out []graph.StateEvent
	for _, e := range rt.Events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

// ByTimeRange filters the stream to events with Timestamp in [from, to].
func (rt RunTrace) ByTimeRange(from, to time.Time) []graph.StateEvent {
	var out []graph.StateEvent
	for _, e := range rt.Events {
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ExecutionPath returns the ordered sequence of node ids as they were
// entered, including repeats if a node runs more than once.
func (rt RunTrace) ExecutionPath() []string {
	var path []string
	for _, e := range rt.Events {
		if e.EventType == graph.EventNodeEntered {
			path = append(path, e.NodeID)
		}
	}
	return path
}
