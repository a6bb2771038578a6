package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the Prometheus series exposed on the admin /metrics
// endpoint: LLM request throughput and token spend, tool execution
// latency, react loop stepping, session and gateway gauges, and the
// task queue status counts.
type Metrics struct {
	// LLMRequestCounter counts LLM requests.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMRequestDuration measures LLM call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error|timeout)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ReactSteps counts loop steps by terminal outcome of the turn.
	// Labels: outcome (response|tool_call|error|cancelled)
	ReactSteps *prometheus.CounterVec

	// RecoveryActions counts recovery decisions by action taken.
	// Labels: action
	RecoveryActions *prometheus.CounterVec

	// ErrorCounter tracks errors by component and kind.
	// Labels: component (agent|llm|tool|session|task|gateway), error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions gauges live sessions by spoke.
	// Labels: spoke
	ActiveSessions *prometheus.GaugeVec

	// GatewayConnections gauges open client connections.
	GatewayConnections prometheus.Gauge

	// TaskTransitions counts background task status transitions.
	// Labels: status
	TaskTransitions *prometheus.CounterVec

	// TaskDuration measures background task run time in seconds.
	TaskDuration prometheus.Histogram
}

// NewMetrics registers all series with the default registry. Call once
// at startup.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers against an explicit registry; tests
// use this to avoid duplicate registration.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strand_llm_requests_total",
				Help: "Total LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strand_llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strand_llm_tokens_total",
				Help: "Total tokens consumed by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strand_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strand_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ReactSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strand_react_steps_total",
				Help: "Total react loop steps by outcome",
			},
			[]string{"outcome"},
		),

		RecoveryActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strand_recovery_actions_total",
				Help: "Total recovery decisions by action",
			},
			[]string{"action"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strand_errors_total",
				Help: "Total errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveSessions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "strand_active_sessions",
				Help: "Current active sessions by spoke",
			},
			[]string{"spoke"},
		),

		GatewayConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "strand_gateway_connections",
				Help: "Current open gateway connections",
			},
		),

		TaskTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strand_task_transitions_total",
				Help: "Total background task status transitions",
			},
			[]string{"status"},
		),

		TaskDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "strand_task_duration_seconds",
				Help:    "Run time of background tasks in seconds",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
		),
	}
}

// RecordLLMRequest records one LLM round trip.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records one tool call.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordReactStep counts one loop step by its outcome.
func (m *Metrics) RecordReactStep(outcome string) {
	m.ReactSteps.WithLabelValues(outcome).Inc()
}

// RecordRecovery counts one recovery decision.
func (m *Metrics) RecordRecovery(action string) {
	m.RecoveryActions.WithLabelValues(action).Inc()
}

// RecordError counts one error by component and kind.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SessionStarted increments the active session gauge for a spoke.
func (m *Metrics) SessionStarted(spoke string) {
	m.ActiveSessions.WithLabelValues(spoke).Inc()
}

// SessionEnded decrements the active session gauge for a spoke.
func (m *Metrics) SessionEnded(spoke string) {
	m.ActiveSessions.WithLabelValues(spoke).Dec()
}

// RecordTaskTransition counts a task entering the given status and, for
// terminal statuses, records the run time.
func (m *Metrics) RecordTaskTransition(status string, durationSeconds float64) {
	m.TaskTransitions.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		m.TaskDuration.Observe(durationSeconds)
	}
}

// ConnectionOpened increments the gateway connection gauge.
func (m *Metrics) ConnectionOpened() { m.GatewayConnections.Inc() }

// ConnectionClosed decrements the gateway connection gauge.
func (m *Metrics) ConnectionClosed() { m.GatewayConnections.Dec() }
