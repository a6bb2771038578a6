package observability

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Stats is a cheap always-on counter set snapshotted by the admin /stats
// endpoint. It complements Prometheus: the snapshot is self-contained
// JSON for clients that do not scrape.
type Stats struct {
	startedAt time.Time

	turnsStarted   atomic.Int64
	turnsCompleted atomic.Int64
	turnsFailed    atomic.Int64
	llmRequests    atomic.Int64
	llmTokens      atomic.Int64
	toolCalls      atomic.Int64
	toolFailures   atomic.Int64
	tasksSubmitted atomic.Int64
	tasksFinished  atomic.Int64
}

// NewStats starts the uptime clock.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

// TurnStarted counts a user turn entering the react loop.
func (s *Stats) TurnStarted() { s.turnsStarted.Add(1) }

// TurnCompleted counts a turn reaching a final response.
func (s *Stats) TurnCompleted() { s.turnsCompleted.Add(1) }

// TurnFailed counts a turn that ended in an error.
func (s *Stats) TurnFailed() { s.turnsFailed.Add(1) }

// LLMRequest counts one LLM round trip and its total token spend.
func (s *Stats) LLMRequest(tokens int) {
	s.llmRequests.Add(1)
	s.llmTokens.Add(int64(tokens))
}

// ToolCall counts one tool execution.
func (s *Stats) ToolCall(failed bool) {
	s.toolCalls.Add(1)
	if failed {
		s.toolFailures.Add(1)
	}
}

// TaskSubmitted counts one background task submission.
func (s *Stats) TaskSubmitted() { s.tasksSubmitted.Add(1) }

// TaskFinished counts one background task reaching a terminal state.
func (s *Stats) TaskFinished() { s.tasksFinished.Add(1) }

// Snapshot is the JSON shape served by /stats.
type Snapshot struct {
	UptimeSeconds  int64 `json:"uptime_seconds"`
	TurnsStarted   int64 `json:"turns_started"`
	TurnsCompleted int64 `json:"turns_completed"`
	TurnsFailed    int64 `json:"turns_failed"`
	LLMRequests    int64 `json:"llm_requests"`
	LLMTokens      int64 `json:"llm_tokens"`
	ToolCalls      int64 `json:"tool_calls"`
	ToolFailures   int64 `json:"tool_failures"`
	TasksSubmitted int64 `json:"tasks_submitted"`
	TasksFinished  int64 `json:"tasks_finished"`
}

// Snapshot captures current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		TurnsStarted:   s.turnsStarted.Load(),
		TurnsCompleted: s.turnsCompleted.Load(),
		TurnsFailed:    s.turnsFailed.Load(),
		LLMRequests:    s.llmRequests.Load(),
		LLMTokens:      s.llmTokens.Load(),
		ToolCalls:      s.toolCalls.Load(),
		ToolFailures:   s.toolFailures.Load(),
		TasksSubmitted: s.tasksSubmitted.Load(),
		TasksFinished:  s.tasksFinished.Load(),
	}
}

// MarshalJSON serializes the current snapshot.
func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
