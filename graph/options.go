package graph

import (
	"time"
)

// ExecutionOptions configures a single Executor. The zero value is not
// valid; build one with NewExecutionOptions and functional Option values.
type ExecutionOptions struct {
	// MaxConcurrency bounds how many nodes may be executing at once for a
	// single run. Must be >= 1.
	MaxConcurrency int

	// DefaultNodeTimeout applies to any node that does not set its own
	// NodePolicy.Timeout and does not satisfy LLMTagged.
	DefaultNodeTimeout time.Duration

	// LLMNodeTimeout applies to any node satisfying LLMTagged that does
	// not set its own NodePolicy.Timeout.
	LLMNodeTimeout time.Duration

	// DefaultRetry applies to any node whose NodePolicy does not set its
	// own Retry. Nil means no retries by default.
	DefaultRetry *RetryPolicy

	// EventBuffer sizes the channel returned by Executor.Run. A run never
	// drops events once the buffer is full; instead the node goroutine
	// producing the next event blocks (backpressure) until the consumer
	// catches up. Only when the buffer is full and the run's context has
	// been cancelled is the pending event dropped.
	EventBuffer int

	// Emitter receives ambient log lines for each event, in addition to
	// the required event stream. Nil means no ambient logging.
	Emitter EventEmitter

	// Metrics, if non-nil, receives Prometheus observations for the run.
	Metrics *PrometheusMetrics

	// CostTracker is carried on the options for callers to share; the
	// Executor does not read it. Token usage is recorded by nodes that hold
	// a tracker themselves (such as nodes.LLMNode).
	CostTracker *CostTracker
}

// EventEmitter is the ambient logging sink an ExecutionOptions may attach.
// It is distinct from the required StateEvent stream: an EventEmitter is
// for textual/structured logging and tracing, not for driving workflow
// progress.
type EventEmitter interface {
	Emit(nodeID, message string, fields map[string]any)
}

// Option configures an ExecutionOptions. Options are applied in order;
// later options override earlier ones.
type Option func(*ExecutionOptions) error

// NewExecutionOptions builds an ExecutionOptions with sensible defaults
// (MaxConcurrency=4, DefaultNodeTimeout=30s, LLMNodeTimeout=2m,
// EventBuffer=64) and then applies opts in order.
func NewExecutionOptions(opts ...Option) (*ExecutionOptions, error) {
	o := &ExecutionOptions{
		MaxConcurrency:     4,
		DefaultNodeTimeout: 30 * time.Second,
		LLMNodeTimeout:     2 * time.Minute,
		EventBuffer:        64,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.MaxConcurrency < 1 {
		return nil, &ValidationError{Reason: "MaxConcurrency must be >= 1"}
	}
	return o, nil
}

// WithMaxConcurrency sets the bound on simultaneously-executing nodes.
func WithMaxConcurrency(n int) Option {
	return func(o *ExecutionOptions) error {
		if n < 1 {
			return &ValidationError{Reason: "MaxConcurrency must be >= 1"}
		}
		o.MaxConcurrency = n
		return nil
	}
}

// WithDefaultNodeTimeout sets the fallback per-node timeout for
// non-LLM-tagged nodes.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(o *ExecutionOptions) error {
		o.DefaultNodeTimeout = d
		return nil
	}
}

// WithLLMNodeTimeout sets the fallback per-node timeout for LLMTagged
// nodes.
func WithLLMNodeTimeout(d time.Duration) Option {
	return func(o *ExecutionOptions) error {
		o.LLMNodeTimeout = d
		return nil
	}
}

// WithDefaultRetry sets the fallback RetryPolicy applied to nodes that do
// not configure their own.
func WithDefaultRetry(rp *RetryPolicy) Option {
	return func(o *ExecutionOptions) error {
		if rp != nil {
			if err := rp.Validate(); err != nil {
				return err
			}
		}
		o.DefaultRetry = rp
		return nil
	}
}

// WithEventBuffer sets the buffer size of the channel Executor.Run
// returns.
func WithEventBuffer(n int) Option {
	return func(o *ExecutionOptions) error {
		if n < 1 {
			return &ValidationError{Reason: "EventBuffer must be >= 1"}
		}
		o.EventBuffer = n
		return nil
	}
}

// WithEmitter attaches an ambient logging sink.
func WithEmitter(e EventEmitter) Option {
	return func(o *ExecutionOptions) error {
		o.Emitter = e
		return nil
	}
}

// WithMetrics attaches a Prometheus metrics recorder.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(o *ExecutionOptions) error {
		o.Metrics = m
		return nil
	}
}

// WithCostTracker attaches an LLM cost tracker.
func WithCostTracker(c *CostTracker) Option {
	return func(o *ExecutionOptions) error {
		o.CostTracker = c
		return nil
	}
}
