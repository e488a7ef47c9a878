package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application
// metrics. Built on Prometheus, it tracks generation throughput, iteration
// depth, tool execution patterns and latencies, compaction activity,
// provider errors by classified reason, and connection counts.
type Metrics struct {
	// GenerationsStarted counts generations by terminal outcome.
	// Labels: outcome (done|error|cancelled)
	GenerationsStarted *prometheus.CounterVec

	// GenerationIterations observes iterations consumed per generation.
	// Buckets: 1..8
	GenerationIterations prometheus.Histogram

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error|timeout|cancelled)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ProviderRequestDuration measures provider API call latency in seconds.
	// Labels: model, mode (generate|stream)
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderErrors counts provider errors by classified reason.
	// Labels: reason
	ProviderErrors *prometheus.CounterVec

	// ProviderTokensUsed tracks token consumption reported by the provider.
	// Labels: model, type (prompt|candidates)
	ProviderTokensUsed *prometheus.CounterVec

	// CompactionsRun counts history compactions by outcome.
	// Labels: outcome (summarized|fallback|skipped)
	CompactionsRun *prometheus.CounterVec

	// CompactionTokens observes estimated token counts around compaction.
	// Labels: stage (before|after)
	CompactionTokens *prometheus.HistogramVec

	// ActiveConnections is a gauge tracking open WebSocket connections.
	ActiveConnections prometheus.Gauge

	// SessionsResumed counts resume requests served.
	SessionsResumed prometheus.Counter

	// QueueDepth tracks per-session queued drafts at enqueue time.
	QueueDepth prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics with the default
// registry; they are served by promhttp.Handler on /metrics. Call once at
// startup.
func NewMetrics() *Metrics {
	return &Metrics{
		GenerationsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_generations_total",
				Help: "Total number of generations by terminal outcome",
			},
			[]string{"outcome"},
		),

		GenerationIterations: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentrt_generation_iterations",
				Help:    "Model/tool iterations consumed per generation",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8},
			},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_provider_request_duration_seconds",
				Help:    "Duration of provider API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"model", "mode"},
		),

		ProviderErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_provider_errors_total",
				Help: "Total number of provider errors by classified reason",
			},
			[]string{"reason"},
		),

		ProviderTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_provider_tokens_total",
				Help: "Total number of tokens reported by the provider",
			},
			[]string{"model", "type"},
		),

		CompactionsRun: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_compactions_total",
				Help: "Total number of history compactions by outcome",
			},
			[]string{"outcome"},
		),

		CompactionTokens: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_compaction_tokens",
				Help:    "Estimated token counts before and after compaction",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"stage"},
		),

		ActiveConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentrt_active_connections",
				Help: "Current number of open WebSocket connections",
			},
		),

		SessionsResumed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agentrt_sessions_resumed_total",
				Help: "Total number of resume requests served",
			},
		),

		QueueDepth: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentrt_session_queue_depth",
				Help:    "Per-session queue depth observed at enqueue time",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
	}
}
