package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func dataSetterNode(id string, key string, value any) Node {
	return NodeFunc{
		IDValue: id,
		Fn: func(s WorkflowState, ctx context.Context) NodeResult {
			next := s.Clone()
			if next.Data == nil {
				next.Data = map[string]any{}
			}
			next.Data[key] = value
			return Success(id, "e", time.Now(), next)
		},
	}
}

func newTestOpts(t *testing.T, maxConcurrency int) *ExecutionOptions {
	t.Helper()
	opts, err := NewExecutionOptions(WithMaxConcurrency(maxConcurrency), WithDefaultNodeTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("NewExecutionOptions: %v", err)
	}
	return opts
}

func TestExecutor_LinearHappyPath(t *testing.T) {
	g, err := NewGraphBuilder("g1", "linear").
		AddNode(dataSetterNode("a", "a", true)).
		AddNode(dataSetterNode("b", "b", true)).
		AddNode(dataSetterNode("c", "c", true)).
		AddEdge("a", "b").
		AddEdge("b", "c").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ex, err := NewExecutor(g, nil, newTestOpts(t, 4), nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	final, events, err := RunToCompletion(context.Background(), ex, WorkflowState{ID: "w1", Status: StatusRunning})
	if err != nil {
		t.Fatalf("RunToCompletion: %v", err)
	}
	if final.Status != StatusCompleted {
		t.Errorf("Status = %v, want Completed", final.Status)
	}
	for _, key := range []string{"a", "b", "c"} {
		if final.Data[key] != true {
			t.Errorf("expected Data[%q] = true in final state", key)
		}
	}

	var entered, exited, completed int
	for _, ev := range events {
		switch ev.EventType {
		case EventNodeEntered:
			entered++
		case EventNodeExited:
			exited++
		case EventWorkflowCompleted:
			completed++
		}
	}
	if entered != 3 || exited != 3 || completed != 1 {
		t.Errorf("entered=%d exited=%d completed=%d, want 3/3/1", entered, exited, completed)
	}
}

func TestExecutor_ConditionalFork(t *testing.T) {
	cond := func(s WorkflowState) bool {
		v, _ := s.Data["route"].(string)
		return v == "left"
	}
	g, err := NewGraphBuilder("g1", "fork").
		AddNode(dataSetterNode("start", "route", "left")).
		AddNode(dataSetterNode("left", "took", "left")).
		AddNode(dataSetterNode("right", "took", "right")).
		AddConditionalEdge("start", "left", cond, nil).
		AddConditionalEdge("start", "right", func(s WorkflowState) bool { return !cond(s) }, nil).
		WithExit("left").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ex, err := NewExecutor(g, nil, newTestOpts(t, 4), nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	final, _, err := RunToCompletion(context.Background(), ex, WorkflowState{ID: "w1", Status: StatusRunning})
	if err != nil {
		t.Fatalf("RunToCompletion: %v", err)
	}
	if final.Data["took"] != "left" {
		t.Errorf("Data[took] = %v, want left", final.Data["took"])
	}
}

func TestExecutor_FailureWithoutContinueStopsRun(t *testing.T) {
	failing := NodeFunc{
		IDValue: "fail",
		Fn: func(s WorkflowState, ctx context.Context) NodeResult {
			return Failure("fail", "e", time.Now(), "deliberate failure", errors.New("boom"))
		},
	}
	g, err := NewGraphBuilder("g1", "fail").
		AddNode(dataSetterNode("a", "a", true)).
		AddNode(failing).
		AddNode(dataSetterNode("c", "c", true)).
		AddEdge("a", "fail").
		AddEdge("fail", "c").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ex, err := NewExecutor(g, nil, newTestOpts(t, 4), nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	final, _, err := RunToCompletion(context.Background(), ex, WorkflowState{ID: "w1", Status: StatusRunning})
	if err == nil {
		t.Fatal("expected RunToCompletion to report an error")
	}
	if final.Status != StatusFailed {
		t.Errorf("Status = %v, want Failed", final.Status)
	}
	if _, ok := final.Data["c"]; ok {
		t.Error("node c should never have run after an unrecovered failure upstream")
	}
}

func TestExecutor_FailureWithContinueOnErrorProceeds(t *testing.T) {
	failing := NodeFunc{
		IDValue: "fail",
		Fn: func(s WorkflowState, ctx context.Context) NodeResult {
			return Failure("fail", "e", time.Now(), "deliberate failure", errors.New("boom"))
		},
	}
	g, err := NewGraphBuilder("g1", "continue").
		AddNode(dataSetterNode("a", "a", true)).
		AddNode(failing).
		AddNode(dataSetterNode("c", "c", true)).
		AddEdge("a", "fail").
		AddEdge("fail", "c").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	policies := map[string]NodePolicy{"fail": {ContinueOnError: true}}
	ex, err := NewExecutor(g, nil, newTestOpts(t, 4), policies)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	final, _, err := RunToCompletion(context.Background(), ex, WorkflowState{ID: "w1", Status: StatusRunning})
	if err != nil {
		t.Fatalf("RunToCompletion: %v", err)
	}
	if final.Status != StatusCompleted {
		t.Errorf("Status = %v, want Completed", final.Status)
	}
	if final.Data["c"] != true {
		t.Error("node c should run after fail when ContinueOnError is set")
	}
}

func TestExecutor_ConcurrentForkRespectsMaxConcurrency(t *testing.T) {
	var inflight int32
	var peak int32
	var mu sync.Mutex

	makeBranch := func(id string) Node {
		return NodeFunc{
			IDValue: id,
			Fn: func(s WorkflowState, ctx context.Context) NodeResult {
				n := atomic.AddInt32(&inflight, 1)
				mu.Lock()
				if n > peak {
					peak = n
				}
				mu.Unlock()
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inflight, -1)
				return Success(id, "e", time.Now(), s)
			},
		}
	}

	g, err := NewGraphBuilder("g1", "concurrent").
		AddNode(dataSetterNode("start", "x", true)).
		AddNode(makeBranch("b1")).
		AddNode(makeBranch("b2")).
		AddNode(makeBranch("b3")).
		AddNode(makeBranch("b4")).
		Fork("start", "b1", "b2", "b3", "b4").
		WithExit("b1").WithExit("b2").WithExit("b3").WithExit("b4").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ex, err := NewExecutor(g, nil, newTestOpts(t, 2), nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	_, _, err = RunToCompletion(context.Background(), ex, WorkflowState{ID: "w1", Status: StatusRunning})
	if err != nil {
		t.Fatalf("RunToCompletion: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("observed peak concurrency %d, want <= 2", peak)
	}
}

func TestExecutor_SingleConcurrencyForkRunsInEdgeOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	makeBranch := func(id string) Node {
		return NodeFunc{
			IDValue: id,
			Fn: func(s WorkflowState, ctx context.Context) NodeResult {
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
				return Success(id, "e", time.Now(), s)
			},
		}
	}

	g, err := NewGraphBuilder("g1", "fifo").
		AddNode(dataSetterNode("start", "x", true)).
		AddNode(makeBranch("first")).
		AddNode(makeBranch("second")).
		AddNode(makeBranch("third")).
		Fork("start", "first", "second", "third").
		WithExit("first").WithExit("second").WithExit("third").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ex, err := NewExecutor(g, nil, newTestOpts(t, 1), nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	_, _, err = RunToCompletion(context.Background(), ex, WorkflowState{ID: "w1", Status: StatusRunning})
	if err != nil {
		t.Fatalf("RunToCompletion: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q (edge-insertion FIFO under maxConcurrency=1)", i, order[i], want[i])
		}
	}
}

func TestExecutor_CancelledContextStopsRun(t *testing.T) {
	slow := NodeFunc{
		IDValue: "slow",
		Fn: func(s WorkflowState, ctx context.Context) NodeResult {
			select {
			case <-time.After(2 * time.Second):
				return Success("slow", "e", time.Now(), s)
			case <-ctx.Done():
				return Failure("slow", "e", time.Now(), "cancelled", ctx.Err())
			}
		},
	}
	g, err := NewGraphBuilder("g1", "cancel").
		AddNode(slow).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ex, err := NewExecutor(g, nil, newTestOpts(t, 1), nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	final, _, err := RunToCompletion(ctx, ex, WorkflowState{ID: "w1", Status: StatusRunning})
	if err == nil {
		t.Fatal("expected an error for a cancelled run")
	}
	if final.Status != StatusFailed && final.Status != StatusCancelled {
		t.Errorf("Status = %v, want Failed or Cancelled", final.Status)
	}
}

func TestExecutor_RetryRecoversTransientFailure(t *testing.T) {
	var attempts int32
	flaky := NodeFunc{
		IDValue: "flaky",
		Fn: func(s WorkflowState, ctx context.Context) NodeResult {
			n := atomic.AddInt32(&attempts, 1)
			if n < 3 {
				return Failure("flaky", "e", time.Now(), "transient", &TransientFailure{Cause: errors.New("not yet")})
			}
			return Success("flaky", "e", time.Now(), s)
		},
	}
	g, err := NewGraphBuilder("g1", "retry").
		AddNode(flaky).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	policies := map[string]NodePolicy{
		"flaky": {Retry: &RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}},
	}
	ex, err := NewExecutor(g, nil, newTestOpts(t, 1), policies)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	final, _, err := RunToCompletion(context.Background(), ex, WorkflowState{ID: "w1", Status: StatusRunning})
	if err != nil {
		t.Fatalf("RunToCompletion: %v", err)
	}
	if final.Status != StatusCompleted {
		t.Errorf("Status = %v, want Completed after retries recovered the flaky node", final.Status)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestExecutor_PanicInNodeBecomesFailure(t *testing.T) {
	panicky := NodeFunc{
		IDValue: "panicky",
		Fn: func(s WorkflowState, ctx context.Context) NodeResult {
			panic("node exploded")
		},
	}
	g, err := NewGraphBuilder("g1", "panic").
		AddNode(panicky).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ex, err := NewExecutor(g, nil, newTestOpts(t, 1), nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	final, _, err := RunToCompletion(context.Background(), ex, WorkflowState{ID: "w1", Status: StatusRunning})
	if err == nil {
		t.Fatal("expected an error after a node panic")
	}
	if final.Status != StatusFailed {
		t.Errorf("Status = %v, want Failed", final.Status)
	}
}
