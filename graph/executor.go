package graph

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Executor runs a GraphDefinition to completion against a Store, streaming
// StateEvents as it goes.
//
// An Executor is built once per GraphDefinition and may run many
// executions of it concurrently; all per-run state lives in the goroutine
// tree spawned by Run, not on the Executor itself, except for
// CircuitBreakers, which are deliberately shared across runs of the same
// node (a breaker that reset between runs would never actually break).
type Executor struct {
	graph    *GraphDefinition
	store    Store
	opts     *ExecutionOptions
	policies map[string]NodePolicy
}

// NewExecutor builds an Executor for graph, persisting to store and
// configured by opts. policies maps node ID to its NodePolicy; nodes
// absent from the map run under the Executor-wide defaults with no retry
// and no circuit breaker. A policy's CircuitBreaker, if set, should be
// constructed once and reused across runs of the same graph — a breaker
// that resets between runs never actually breaks.
func NewExecutor(g *GraphDefinition, store Store, opts *ExecutionOptions, policies map[string]NodePolicy) (*Executor, error) {
	if g == nil {
		return nil, &ValidationError{Reason: "graph must not be nil"}
	}
	if opts == nil {
		var err error
		opts, err = NewExecutionOptions()
		if err != nil {
			return nil, err
		}
	}
	ex := &Executor{
		graph:    g,
		store:    store,
		opts:     opts,
		policies: policies,
	}
	return ex, nil
}

// taskResult is what a node goroutine reports back to the scheduling loop.
type taskResult struct {
	nodeID     string
	input      WorkflowState
	result     NodeResult
	executedAt time.Time
}

// Run executes the graph starting from initialState and returns a channel
// of StateEvents streamed as they are generated — NOT buffered until the
// run finishes. The channel is closed after the run's single terminal
// event (WorkflowCompleted or WorkflowFailed) has been sent.
//
// Run spawns its own goroutine tree and returns immediately; cancel ctx to
// request early termination (propagated to every in-flight node as a
// single shared cancellation source).
func (ex *Executor) Run(ctx context.Context, initialState WorkflowState) <-chan StateEvent {
	events := make(chan StateEvent, ex.opts.EventBuffer)
	go ex.run(ctx, initialState, events)
	return events
}

func (ex *Executor) run(ctx context.Context, initialState WorkflowState, events chan<- StateEvent) {
	defer close(events)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	executionID := uuid.NewString()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var commitMu sync.Mutex
	currentState := initialState

	var hashMu sync.Mutex
	var lastHash *string

	emit := func(ev StateEvent) {
		hashMu.Lock()
		ev.PreviousHash = lastHash
		if h, err := ev.Hash(); err == nil {
			lastHash = &h
		}
		hashMu.Unlock()
		if ex.opts.Emitter != nil {
			ex.opts.Emitter.Emit(ev.NodeID, string(ev.EventType), map[string]any{"executionId": ev.ExecutionID})
		}
		if ex.opts.Metrics != nil {
			ex.opts.Metrics.ObserveEvent(ev)
		}
		select {
		case events <- ev:
			return
		default:
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	var schedMu sync.Mutex
	scheduled := map[string]bool{ex.graph.EntryNodeID: true}
	completed := map[string]bool{}
	frontier := NewFrontier()
	frontier.Enqueue(WorkItem{NodeID: ex.graph.EntryNodeID, OrderKey: ComputeOrderKey("", 0)})

	results := make(chan taskResult, len(ex.graph.Nodes)+1)
	inFlight := 0
	runFailed := false
	var failureErr string

	sem := make(chan struct{}, ex.opts.MaxConcurrency)
	var wg sync.WaitGroup

	launch := func(nodeID string) {
		schedMu.Lock()
		input := currentState
		schedMu.Unlock()

		node, ok := ex.graph.Nodes[nodeID]
		if !ok {
			results <- taskResult{nodeID: nodeID, input: input, result: Failure(nodeID, executionID, time.Now(), "node not found in graph", fmt.Errorf("unknown node %q", nodeID))}
			return
		}

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			nodeID := nodeID
			entered := input.Clone()
			entered.CurrentNodeID = &nodeID
			emit(NewNodeEntered(uuid.NewString(), executionID, nodeID, entered, time.Now(), nil))

			policy := ex.policies[nodeID]
			res := ex.invokeNode(runCtx, node, policy, entered, executionID, rng)
			results <- taskResult{nodeID: nodeID, input: entered, result: res, executedAt: time.Now()}
		}()
	}

	for {
		schedMu.Lock()
		for {
			if inFlight >= ex.opts.MaxConcurrency {
				break
			}
			item, ok := frontier.Dequeue()
			if !ok {
				break
			}
			inFlight++
			schedMu.Unlock()
			launch(item.NodeID)
			schedMu.Lock()
		}
		waiting := inFlight > 0
		schedMu.Unlock()

		if !waiting {
			break
		}

		tr := <-results
		schedMu.Lock()
		inFlight--
		schedMu.Unlock()

		switch tr.result.Kind {
		case NodeResultSuccess:
			ops := Diff(tr.input, tr.result.OutputState)

			commitMu.Lock()
			next := applyPatch(currentState, ops)
			next.Step = currentState.Step + 1
			next.UpdatedAt = time.Now().UTC()
			nodeID := tr.nodeID
			next.CurrentNodeID = &nodeID
			currentState = next
			commitMu.Unlock()

			if ex.store != nil {
				_ = ex.store.Save(ctx, currentState)
			}

			emit(NewNodeExited(uuid.NewString(), executionID, tr.nodeID, currentState, time.Now(), nil))

			schedMu.Lock()
			completed[tr.nodeID] = true
			for i, e := range ex.graph.outgoing(tr.nodeID) {
				if !e.enabled(currentState) {
					continue
				}
				if scheduled[e.TargetID] {
					continue
				}
				scheduled[e.TargetID] = true
				frontier.Enqueue(WorkItem{NodeID: e.TargetID, ParentNodeID: tr.nodeID, EdgeIndex: i, OrderKey: ComputeOrderKey(tr.nodeID, i)})
			}
			schedMu.Unlock()

		case NodeResultFailure:
			msg := tr.result.FailureReason
			var cause error = tr.result.FailureErr
			stack := ""
			commitMu.Lock()
			snapshot := currentState
			commitMu.Unlock()
			emit(NewNodeError(uuid.NewString(), executionID, tr.nodeID, snapshot, time.Now(), nil, msg, stack))

			policy := ex.policies[tr.nodeID]
			if !policy.ContinueOnError {
				runFailed = true
				if cause != nil {
					failureErr = msg + ": " + cause.Error()
				} else {
					failureErr = msg
				}
				cancelRun()
			} else {
				schedMu.Lock()
				for i, e := range ex.graph.outgoing(tr.nodeID) {
					if !e.enabled(snapshot) || scheduled[e.TargetID] {
						continue
					}
					scheduled[e.TargetID] = true
					frontier.Enqueue(WorkItem{NodeID: e.TargetID, ParentNodeID: tr.nodeID, EdgeIndex: i, OrderKey: ComputeOrderKey(tr.nodeID, i)})
				}
				schedMu.Unlock()
			}

		case NodeResultSkipped:
			// Skipped nodes neither advance state nor fire outgoing edges;
			// they simply stop propagating down this branch.
		}

		if runFailed {
			break
		}
	}

	wg.Wait()
	for len(results) > 0 {
		<-results
	}

	commitMu.Lock()
	final := currentState
	commitMu.Unlock()

	allExitsCompleted := true
	schedMu.Lock()
	for id := range ex.graph.ExitNodeIDs {
		if !completed[id] {
			allExitsCompleted = false
			break
		}
	}
	schedMu.Unlock()

	if runFailed || !allExitsCompleted {
		status := StatusFailed
		msg := failureErr
		if msg == "" {
			if ctx.Err() != nil {
				status = StatusCancelled
				msg = ctx.Err().Error()
			} else {
				msg = "run ended without reaching all exit nodes"
			}
		}
		final = final.Clone()
		final.Status = status
		final.Error = &msg
		final.UpdatedAt = time.Now().UTC()
		if ex.store != nil {
			_ = ex.store.Save(ctx, final)
		}
		emit(NewWorkflowFailed(uuid.NewString(), executionID, final, time.Now(), nil, msg))
		return
	}

	final = final.Clone()
	final.Status = StatusCompleted
	final.UpdatedAt = time.Now().UTC()
	if ex.store != nil {
		_ = ex.store.Save(ctx, final)
	}
	emit(NewWorkflowCompleted(uuid.NewString(), executionID, final, time.Now(), nil))
}

// RunToCompletion drains Run's event stream and returns the final
// WorkflowState (taken from the terminal event), every event observed
// along the way, and a non-nil error if the run did not end Completed.
// It is a convenience for tests and simple callers that don't need to
// react to events as they stream.
func RunToCompletion(ctx context.Context, ex *Executor, initialState WorkflowState) (WorkflowState, []StateEvent, error) {
	var events []StateEvent
	var final WorkflowState
	for ev := range ex.Run(ctx, initialState) {
		events = append(events, ev)
		if ev.IsTerminal() {
			final = ev.State
		}
	}
	if final.Status != StatusCompleted {
		msg := "run did not complete"
		if final.Error != nil {
			msg = *final.Error
		}
		return final, events, &NodeFailure{Reason: msg}
	}
	return final, events, nil
}

// invokeNode runs node exactly once per retry attempt, applying timeout,
// retry, and circuit-breaker policy. It never invokes the node body more
// than once for a given attempt, regardless of how retry and
// circuit-breaking compose.
func (ex *Executor) invokeNode(ctx context.Context, node Node, policy NodePolicy, input WorkflowState, executionID string, rng *rand.Rand) NodeResult {
	timeout := ex.opts.DefaultNodeTimeout
	if tagged, ok := node.(LLMTagged); ok && tagged.LLMTagged() {
		timeout = ex.opts.LLMNodeTimeout
	}
	if policy.Timeout > 0 {
		timeout = policy.Timeout
	}

	retry := policy.Retry
	if retry == nil {
		retry = ex.opts.DefaultRetry
	}
	maxAttempts := 1
	if retry != nil {
		maxAttempts = retry.MaxAttempts
	}

	breaker := policy.CircuitBreaker

	var last NodeResult
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if breaker != nil && !breaker.Allow() {
			return Failure(node.ID(), executionID, time.Now(), "circuit breaker open", ErrCircuitOpen)
		}

		nodeCtx, cancel := context.WithTimeout(ctx, timeout)
		result := ex.safeExecute(node, input, nodeCtx)
		cancel()

		if result.Kind == NodeResultSuccess {
			breaker.RecordSuccess()
			return result
		}

		breaker.RecordFailure()
		last = result

		if attempt == maxAttempts-1 || retry == nil {
			return last
		}
		if !retry.retryable()(result.FailureErr) {
			return last
		}

		delay := computeBackoff(attempt, retry.BaseDelay, retry.MaxDelay, rng)
		select {
		case <-ctx.Done():
			return Failure(node.ID(), executionID, time.Now(), "cancelled during retry backoff", ctx.Err())
		case <-time.After(delay):
		}
	}
	return last
}

// safeExecute invokes node.Execute exactly once, converting a panic into a
// NodeResultFailure instead of crashing the run.
func (ex *Executor) safeExecute(node Node, input WorkflowState, nodeCtx context.Context) (result NodeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = Failure(node.ID(), "", time.Now(), "node panicked", fmt.Errorf("panic: %v", r))
		}
	}()
	return node.Execute(input, nodeCtx)
}
