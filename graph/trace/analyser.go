package trace

import "time"

// Stats summarises a RunTrace's node executions: counts, per-node
// execution counts, and duration extremes/average across all paired
// node executions.
type Stats struct {
	TotalEvents        int
	NodeExecutionCount map[string]int
	AverageDuration    time.Duration
	LongestDuration    time.Duration
	LongestNodeID      string
	ShortestDuration   time.Duration
	ShortestNodeID     string
	ExecutionPath      []string
}

// Analyse derives Stats from a RunTrace's paired node executions and
// event stream.
func Analyse(rt RunTrace) Stats {
	execs := rt.NodeExecutions()
	stats := Stats{
		TotalEvents:        len(rt.Events),
		NodeExecutionCount: map[string]int{},
		ExecutionPath:      rt.ExecutionPath(),
	}

	if len(execs) == 0 {
		return stats
	}

	var total time.Duration
	stats.ShortestDuration = execs[0].Duration
	stats.ShortestNodeID = execs[0].NodeID

	for _, ex := range execs {
		stats.NodeExecutionCount[ex.NodeID]++
		total += ex.Duration

		if ex.Duration > stats.LongestDuration {
			stats.LongestDuration = ex.Duration
			stats.LongestNodeID = ex.NodeID
		}
		if ex.Duration < stats.ShortestDuration {
			stats.ShortestDuration = ex.Duration
			stats.ShortestNodeID = ex.NodeID
		}
	}
	stats.AverageDuration = total / time.Duration(len(execs))

	return stats
}
