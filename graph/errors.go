package graph

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate when a policy's
// fields are inconsistent.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy")

// ErrRunNotFound is returned by a Store when a requested WorkflowState does
// not exist.
var ErrRunNotFound = errors.New("run not found")

// ErrGraphCancelled is a sentinel for a run stopped because the caller's
// context was cancelled. The Executor does not return it: Run reports a
// cancelled run through its terminal WorkflowFailed event.
var ErrGraphCancelled = errors.New("graph run cancelled")

// ErrCircuitOpen is the cause wrapped by a NodeResultFailure produced when
// a CircuitBreaker rejects an invocation without running the node body.
var ErrCircuitOpen = errors.New("circuit breaker open")

// NodeFailure records a node execution that returned NodeResultFailure or
// panicked. It is recorded as a NodeError event and, unless the run's
// ContinueOnError option is set, terminates the run as WorkflowFailed.
type NodeFailure struct {
	NodeID string
	Reason string
	Cause  error
}

func (e *NodeFailure) Error() string {
	return "node " + e.NodeID + " failed: " + e.Reason
}

func (e *NodeFailure) Unwrap() error { return e.Cause }

// Timeout is a NodeFailure subclass recording that a node did not return
// within its configured deadline.
type Timeout struct {
	NodeFailure
	Deadline time.Duration
}

func NewTimeout(nodeID string, deadline time.Duration) *Timeout {
	return &Timeout{
		NodeFailure: NodeFailure{NodeID: nodeID, Reason: "node exceeded timeout", Cause: context.DeadlineExceeded},
		Deadline:    deadline,
	}
}

// Cancelled records that a node's cancellation signal fired mid-execution.
// Depending on where it lands it is recorded either as a NodeError (the
// node itself was cancelled but the run continues, e.g. on a parallel
// sibling failure elsewhere) or surfaces as the run's terminal
// WorkflowFailed event (the run itself was cancelled).
type Cancelled struct {
	NodeID string
	Cause  error
}

func (e *Cancelled) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + " cancelled"
	}
	return "run cancelled"
}

func (e *Cancelled) Unwrap() error { return e.Cause }

// TransientFailure marks an error as retry-eligible. RetryPolicy.Retryable
// implementations typically check errors.As against this type (or a
// caller-supplied Retryable predicate checks errors.Is against a known
// sentinel such as ErrGraphCancelled, which is never transient).
type TransientFailure struct {
	Cause error
}

func (e *TransientFailure) Error() string { return "transient: " + e.Cause.Error() }
func (e *TransientFailure) Unwrap() error { return e.Cause }

// DefaultRetryable classifies TransientFailure as retryable and everything
// else, including context cancellation/deadline errors, as not.
func DefaultRetryable(err error) bool {
	var tf *TransientFailure
	return errors.As(err, &tf)
}
