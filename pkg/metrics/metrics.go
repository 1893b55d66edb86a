package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hybridqa_build_info",
			Help: "Build information of the hybridqa agent",
		},
		[]string{"version", "commit", "date"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridqa_runs_total",
			Help: "Total number of question runs, by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	RepairAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hybridqa_repair_attempts_total",
			Help: "Total number of failed query executions that consumed a repair attempt",
		},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridqa_llm_calls_total",
			Help: "Total number of language model calls, by stage and status",
		},
		[]string{"stage", "status"},
	)

	QueryExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridqa_query_executions_total",
			Help: "Total number of structured query executions, by status",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hybridqa_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"stage"},
	)

	BatchRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hybridqa_batch_records_total",
			Help: "Total number of output records written by batch runs",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridqa_http_requests_total",
			Help: "Total number of HTTP requests to the MCP server",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hybridqa_http_request_duration_seconds",
			Help:    "Duration of HTTP requests to the MCP server",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
	)

	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridqa_auth_failures_total",
			Help: "Total number of MCP authentication failures",
		},
		[]string{"reason"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridqa_tool_calls_total",
			Help: "Total number of MCP tool calls",
		},
		[]string{"tool_name", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hybridqa_tool_call_duration_seconds",
			Help:    "Duration of MCP tool calls",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"tool_name"},
	)
)
