package graph

import (
	"math/rand"
	"sync"
	"time"
)

// NodePolicy configures execution behavior for a specific node: timeout,
// retry, and circuit-breaking. If a field is zero/nil, the Executor's
// run-wide default is used instead.
type NodePolicy struct {
	// Timeout is the maximum execution time allowed for this node. If
	// zero, ExecutionOptions.DefaultNodeTimeout (or LLMNodeTimeout, for
	// LLMTagged nodes) applies.
	Timeout time.Duration

	// Retry specifies automatic retry behavior for transient failures. If
	// nil, ExecutionOptions.DefaultRetry applies; if that is nil too, the
	// node is attempted exactly once.
	Retry *RetryPolicy

	// CircuitBreaker, if non-nil, is shared across all invocations of this
	// node within a single Executor; reaching the breaker's configured
	// number of consecutive failures opens it and short-circuits further
	// attempts without invoking the node body.
	CircuitBreaker *CircuitBreaker

	// ContinueOnError, if true, lets the run proceed past this node's
	// failure instead of transitioning the whole run to WorkflowFailed.
	ContinueOnError bool
}

// RetryPolicy defines automatic retry configuration for transient node
// failures. Exponential backoff with jitter is used between attempts to
// avoid thundering-herd retries across concurrently-scheduled nodes.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of execution attempts, including
	// the first. Must be >= 1; 1 means no retries.
	MaxAttempts int

	// BaseDelay is the base delay for exponential backoff between
	// retries: delay = min(BaseDelay*2^attempt, MaxDelay) + jitter(0, BaseDelay).
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth of BaseDelay.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth retrying. If nil,
	// DefaultRetryable is used.
	Retryable func(error) bool
}

// Validate checks RetryPolicy invariants: MaxAttempts >= 1, and, when both
// are set, MaxDelay >= BaseDelay.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

func (rp *RetryPolicy) retryable() func(error) bool {
	if rp.Retryable != nil {
		return rp.Retryable
	}
	return DefaultRetryable
}

// computeBackoff calculates the delay before the next retry attempt.
//
// delay = min(base*2^attempt, maxDelay) + jitter(0, base)
//
// attempt is zero-based (0 = the delay before the second overall attempt).
// rng should be seeded per-run for deterministic tests; a nil rng falls
// back to the package-level generator.
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	exponential := base * (1 << attempt)
	if maxDelay > 0 && exponential > maxDelay {
		exponential = maxDelay
	}
	if base <= 0 {
		return exponential
	}
	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter timing, not security
	}
	return exponential + jitter
}

// CircuitBreakerState is one of the three states of a CircuitBreaker.
type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"
	CircuitOpen     CircuitBreakerState = "open"
	CircuitHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreaker is a small dependency-free state machine guarding a node
// against repeated, likely-futile invocation: after FailureThreshold
// consecutive failures it opens and rejects further attempts until
// RecoveryTimeout has elapsed, at which point a single half-open probe is
// allowed through to decide whether to close again or re-open.
type CircuitBreaker struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration

	mu          sync.Mutex
	state       CircuitBreakerState
	failures    int
	openedAt    time.Time
	probeInFlight bool
}

// NewCircuitBreaker constructs a closed breaker with the given threshold
// and recovery timeout.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		FailureThreshold: failureThreshold,
		RecoveryTimeout:  recoveryTimeout,
		state:            CircuitClosed,
	}
}

// Allow reports whether an invocation should proceed, and if the breaker
// is currently open but its recovery timeout has elapsed, transitions it
// to half-open and admits exactly one probing call.
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.openedAt) < cb.RecoveryTimeout {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.probeInFlight = true
		return true
	case CircuitHalfOpen:
		return !cb.probeInFlight
	}
	return true
}

// RecordSuccess closes the breaker and resets its failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.probeInFlight = false
}

// RecordFailure increments the failure count and opens the breaker if
// FailureThreshold consecutive failures have now been observed, or if the
// half-open probe itself failed.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probeInFlight = false
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
		return
	}
	cb.failures++
	if cb.failures >= cb.FailureThreshold {
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
