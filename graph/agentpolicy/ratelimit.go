package agentpolicy

import (
	"context"
	"time"

	"github.com/flowkit/wfgraph/graph"
	"golang.org/x/time/rate"
)

// rateLimitPolicy throttles a node to at most rps invocations per second,
// allowing bursts of up to burst invocations, by blocking each call on a
// shared token bucket until a token is available or the cancellation
// signal fires.
type rateLimitPolicy struct {
	limiter *rate.Limiter
}

// RateLimit builds a Policy sharing a single token bucket (rps requests
// per second, burst capacity) across every invocation of the node it
// wraps. A node invocation that would exceed the budget blocks until a
// token frees up, cooperating with the run's cancellation signal rather
// than rejecting outright.
func RateLimit(rps float64, burst int) Policy {
	return &rateLimitPolicy{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (p *rateLimitPolicy) Wrap(next graph.Node) graph.Node {
	return &policyNode{
		next: next,
		execute: func(state graph.WorkflowState, cancellationSignal context.Context) graph.NodeResult {
			if err := p.limiter.Wait(cancellationSignal); err != nil {
				return graph.Failure(next.ID(), "", time.Now(), "rate limit wait failed", err)
			}
			return next.Execute(state, cancellationSignal)
		},
	}
}
