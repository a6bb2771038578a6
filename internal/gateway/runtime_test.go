package gateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/strandhq/strand/internal/agent"
	"github.com/strandhq/strand/internal/llm"
	"github.com/strandhq/strand/internal/sessions"
	"github.com/strandhq/strand/internal/tools"
	"github.com/strandhq/strand/pkg/models"
)

func newTestLoop(client *llm.MockClient) *agent.Loop {
	registry := tools.NewRegistry()
	registry.Register(tools.EchoTool{})
	return &agent.Loop{
		Planner:  agent.NewPlanner(client, "You are a helpful assistant."),
		Executor: tools.NewExecutor(registry, 5*time.Second, nil, nil),
	}
}

func webClient(id string) models.ClientInfo {
	return models.ClientInfo{ClientID: id, Platform: models.SpokeWeb}
}

func frameKinds(msgs []models.GatewayMessage) []models.FrameKind {
	kinds := make([]models.FrameKind, len(msgs))
	for i, m := range msgs {
		kinds[i] = m.Message.Type
	}
	return kinds
}

func TestProcessMessageStreamsTurn(t *testing.T) {
	client := llm.NewMockClient(
		`{"tool": "echo", "args": {"text": "hi"}}`,
		"All done",
	)
	store := sessions.NewMemoryStore(10, time.Hour)
	rt := NewRuntime(newTestLoop(client), store, nil, nil)
	sessionID := store.GetOrCreate(context.Background(), "u1", webClient("u1"))

	var sent []models.GatewayMessage
	response, err := rt.ProcessMessage(context.Background(), sessionID, "say hi", func(m models.GatewayMessage) {
		sent = append(sent, m)
	})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if response != "All done" {
		t.Errorf("response = %q", response)
	}

	kinds := frameKinds(sent)
	if len(kinds) == 0 || kinds[0] != models.KindResponseStart {
		t.Fatalf("first frame = %v", kinds)
	}
	last := sent[len(sent)-1]
	if last.Message.Type != models.KindResponseEnd || last.Message.FullContent != "All done" {
		t.Errorf("last frame = %+v", last.Message)
	}
	if last.SessionID != sessionID {
		t.Errorf("SessionID = %q", last.SessionID)
	}

	var sawToolCall, sawToolResult, sawChunk bool
	for _, m := range sent {
		switch m.Message.Type {
		case models.KindToolCall:
			sawToolCall = true
			if m.Message.ToolName != "echo" {
				t.Errorf("ToolName = %q", m.Message.ToolName)
			}
		case models.KindToolResult:
			sawToolResult = true
			if m.Message.Success == nil || !*m.Message.Success {
				t.Errorf("tool result success = %+v", m.Message.Success)
			}
		case models.KindResponseChunk:
			sawChunk = true
		}
	}
	if !sawToolCall || !sawToolResult || !sawChunk {
		t.Errorf("frames missing: tool_call=%v tool_result=%v chunk=%v", sawToolCall, sawToolResult, sawChunk)
	}

	// Every frame shares one request id.
	requestID := sent[0].Message.RequestID
	if requestID == "" {
		t.Fatal("empty request id")
	}
	for _, m := range sent {
		if m.Message.Type == models.KindError {
			continue
		}
		if m.Message.RequestID != requestID {
			t.Errorf("request id mismatch: %q vs %q", m.Message.RequestID, requestID)
		}
	}

	if got := store.GetHistory(context.Background(), sessionID, 0); len(got) == 0 {
		t.Error("history empty after turn")
	}
}

func TestProcessMessageFailureEndsWithError(t *testing.T) {
	client := llm.NewMockClient()
	client.Fail = llm.NewError(llm.KindServer, "backend down", nil)
	store := sessions.NewMemoryStore(10, time.Hour)
	rt := NewRuntime(newTestLoop(client), store, nil, nil)
	sessionID := store.GetOrCreate(context.Background(), "u1", webClient("u1"))

	var sent []models.GatewayMessage
	_, err := rt.ProcessMessage(context.Background(), sessionID, "hello", func(m models.GatewayMessage) {
		sent = append(sent, m)
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if len(sent) == 0 {
		t.Fatal("no frames sent")
	}
	last := sent[len(sent)-1]
	if last.Message.Type != models.KindError || last.Message.Code != "runtime_error" {
		t.Errorf("last frame = %+v", last.Message)
	}

	// The session returns to idle after a failed turn.
	if !store.WithSession(context.Background(), sessionID, func(s *sessions.Session) {
		if s.Status != models.SessionIdle {
			t.Errorf("Status = %q", s.Status)
		}
	}) {
		t.Fatal("session missing")
	}
}

func TestProcessMessageUnknownSession(t *testing.T) {
	store := sessions.NewMemoryStore(10, time.Hour)
	rt := NewRuntime(newTestLoop(llm.NewMockClient("hi")), store, nil, nil)

	var sent []models.GatewayMessage
	_, err := rt.ProcessMessage(context.Background(), "session_missing", "hello", func(m models.GatewayMessage) {
		sent = append(sent, m)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(sent) != 1 || sent[0].Message.Type != models.KindError {
		t.Fatalf("frames = %+v", frameKinds(sent))
	}
	if sent[0].Message.Code != "runtime_error" {
		t.Errorf("Code = %q", sent[0].Message.Code)
	}
}

func TestProcessMessagePersistsTurnDurably(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := sessions.NewSQLiteStore(path, 10, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}

	client := llm.NewMockClient("Sure thing")
	rt := NewRuntime(newTestLoop(client), store, nil, nil)
	sessionID := store.GetOrCreate(context.Background(), "u1", webClient("u1"))

	if _, err := rt.ProcessMessage(context.Background(), sessionID, "remember me", func(models.GatewayMessage) {}); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := sessions.NewSQLiteStore(path, 10, time.Hour, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	history := reopened.GetHistory(context.Background(), sessionID, 0)
	if len(history) != 2 {
		t.Fatalf("history = %+v", history)
	}
	if history[0].Role != "user" || history[0].Content != "remember me" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[1].Role != "assistant" || history[1].Content != "Sure thing" {
		t.Errorf("history[1] = %+v", history[1])
	}
}
