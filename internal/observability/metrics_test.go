package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

func TestRecordLLMRequest(t *testing.T) {
	m := newTestMetrics()
	m.RecordLLMRequest("openai", "gpt-4o-mini", "success", 1.25, 120, 48)

	if got := testutil.ToFloat64(m.LLMRequestCounter.WithLabelValues("openai", "gpt-4o-mini", "success")); got != 1 {
		t.Errorf("request counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("openai", "gpt-4o-mini", "prompt")); got != 120 {
		t.Errorf("prompt tokens = %v, want 120", got)
	}
	if got := testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("openai", "gpt-4o-mini", "completion")); got != 48 {
		t.Errorf("completion tokens = %v, want 48", got)
	}
}

func TestRecordToolExecution(t *testing.T) {
	m := newTestMetrics()
	m.RecordToolExecution("shell", "error", 0.5)
	m.RecordToolExecution("shell", "error", 0.7)

	if got := testutil.ToFloat64(m.ToolExecutionCounter.WithLabelValues("shell", "error")); got != 2 {
		t.Errorf("tool counter = %v, want 2", got)
	}
}

func TestSessionGauge(t *testing.T) {
	m := newTestMetrics()
	m.SessionStarted("web")
	m.SessionStarted("web")
	m.SessionEnded("web")

	if got := testutil.ToFloat64(m.ActiveSessions.WithLabelValues("web")); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
}

func TestConnectionGauge(t *testing.T) {
	m := newTestMetrics()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	if got := testutil.ToFloat64(m.GatewayConnections); got != 1 {
		t.Errorf("gateway connections = %v, want 1", got)
	}
}

func TestTaskTransition(t *testing.T) {
	m := newTestMetrics()
	m.RecordTaskTransition("running", 0)
	m.RecordTaskTransition("completed", 12.5)

	if got := testutil.ToFloat64(m.TaskTransitions.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed transitions = %v, want 1", got)
	}
}
