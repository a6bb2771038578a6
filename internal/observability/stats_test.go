package observability

import (
	"encoding/json"
	"testing"
)

func TestStatsSnapshot(t *testing.T) {
	s := NewStats()
	s.TurnStarted()
	s.TurnStarted()
	s.TurnCompleted()
	s.TurnFailed()
	s.LLMRequest(150)
	s.LLMRequest(50)
	s.ToolCall(false)
	s.ToolCall(true)
	s.TaskSubmitted()

	snap := s.Snapshot()
	if snap.TurnsStarted != 2 || snap.TurnsCompleted != 1 || snap.TurnsFailed != 1 {
		t.Errorf("turn counts = %+v", snap)
	}
	if snap.LLMRequests != 2 || snap.LLMTokens != 200 {
		t.Errorf("llm counts = %+v", snap)
	}
	if snap.ToolCalls != 2 || snap.ToolFailures != 1 {
		t.Errorf("tool counts = %+v", snap)
	}
	if snap.TasksSubmitted != 1 || snap.TasksFinished != 0 {
		t.Errorf("task counts = %+v", snap)
	}
}

func TestStatsMarshalJSON(t *testing.T) {
	s := NewStats()
	s.TurnStarted()

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.TurnsStarted != 1 {
		t.Errorf("turns_started = %d, want 1", snap.TurnsStarted)
	}
}
