package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics collection for
// workflow execution monitoring.
//
// Metrics exposed (all namespaced with "wfgraph_"):
//
//  1. inflight_nodes (gauge): nodes currently executing, unlabeled.
//  2. queue_depth (gauge): frontier depth, unlabeled.
//  3. node_latency_ms (histogram): node execution duration, labeled
//     execution_id, node_id, status (success/failure/skipped).
//  4. retries_total (counter): retry attempts, labeled execution_id, node_id.
//  5. circuit_breaker_trips_total (counter): times a breaker opened,
//     labeled node_id.
//  6. events_total (counter): StateEvents emitted, labeled event_type.
type PrometheusMetrics struct {
	inflightNodes prometheus.Gauge
	queueDepth    prometheus.Gauge

	nodeLatency *prometheus.HistogramVec

	retries             *prometheus.CounterVec
	circuitBreakerTrips *prometheus.CounterVec
	events              *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all workflow metrics with the
// given registry. A nil registry uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	pm := &PrometheusMetrics{enabled: true}

	pm.inflightNodes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "wfgraph",
		Name:      "inflight_nodes",
		Help:      "Current number of nodes executing concurrently",
	})

	pm.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "wfgraph",
		Name:      "queue_depth",
		Help:      "Number of pending nodes waiting in the frontier",
	})

	pm.nodeLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wfgraph",
		Name:      "node_latency_ms",
		Help:      "Node execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
	}, []string{"execution_id", "node_id", "status"})

	pm.retries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wfgraph",
		Name:      "retries_total",
		Help:      "Cumulative count of node retry attempts",
	}, []string{"execution_id", "node_id"})

	pm.circuitBreakerTrips = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wfgraph",
		Name:      "circuit_breaker_trips_total",
		Help:      "Times a node's circuit breaker opened",
	}, []string{"node_id"})

	pm.events = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wfgraph",
		Name:      "events_total",
		Help:      "StateEvents emitted, by event type",
	}, []string{"event_type"})

	return pm
}

// RecordNodeLatency records a node's execution duration.
func (pm *PrometheusMetrics) RecordNodeLatency(executionID, nodeID string, latency time.Duration, status string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.nodeLatency.WithLabelValues(executionID, nodeID, status).Observe(float64(latency.Milliseconds()))
}

// IncrementRetries increments the retry counter for a node.
func (pm *PrometheusMetrics) IncrementRetries(executionID, nodeID string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.retries.WithLabelValues(executionID, nodeID).Inc()
}

// IncrementCircuitBreakerTrips increments the breaker-opened counter.
func (pm *PrometheusMetrics) IncrementCircuitBreakerTrips(nodeID string) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.circuitBreakerTrips.WithLabelValues(nodeID).Inc()
}

// UpdateQueueDepth sets the frontier depth gauge.
func (pm *PrometheusMetrics) UpdateQueueDepth(depth int) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.queueDepth.Set(float64(depth))
}

// UpdateInflightNodes sets the in-flight node gauge.
func (pm *PrometheusMetrics) UpdateInflightNodes(count int) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.inflightNodes.Set(float64(count))
}

// ObserveEvent records a StateEvent's type in the events_total counter.
// It is the hook the Executor calls on every emitted event.
func (pm *PrometheusMetrics) ObserveEvent(ev StateEvent) {
	if pm == nil || !pm.isEnabled() {
		return
	}
	pm.events.WithLabelValues(string(ev.EventType)).Inc()
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
