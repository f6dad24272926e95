// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the chat engine.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, path, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and path.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alpha_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "path"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alpha_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// TurnsTotal counts completed chat turns by outcome (committed, error, aborted).
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_turns_total",
			Help: "Chat turns",
		},
		[]string{"outcome"},
	)

	// TurnDuration records full turn duration in seconds, including all
	// generation rounds and tool executions.
	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alpha_turn_duration_seconds",
			Help:    "Turn duration",
			Buckets: LLMBuckets,
		},
		[]string{"provider"},
	)

	// FramesTotal counts live notification frames emitted by frame type.
	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_frames_total",
			Help: "Notification frames emitted",
		},
		[]string{"type"},
	)

	// ToolInvocationsTotal counts tool invocations by name and outcome.
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_tool_invocations_total",
			Help: "Tool invocations",
		},
		[]string{"tool_name", "status"},
	)

	// StoreSavesTotal counts conversation saves by outcome (ok, conflict, error).
	StoreSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_store_saves_total",
			Help: "Conversation store saves",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		TurnsTotal,
		TurnDuration,
		FramesTotal,
		ToolInvocationsTotal,
		StoreSavesTotal,
	)
}
