package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strandhq/strand/internal/retry"
	"github.com/strandhq/strand/pkg/models"
)

func TestErrorRetryability(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{KindRateLimit, true},
		{KindNetworkTimeout, true},
		{KindServer, true},
		{KindContextWindow, false},
		{KindAuth, false},
		{KindCancelled, false},
		{KindOther, false},
	}
	for _, tt := range tests {
		e := NewError(tt.kind, "x", nil)
		if got := e.IsRetryable(); got != tt.retryable {
			t.Errorf("IsRetryable(%s) = %v, want %v", tt.kind, got, tt.retryable)
		}
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NewError(KindRateLimit, "x", nil)); got != KindRateLimit {
		t.Errorf("KindOf classified error = %s", got)
	}
	if got := KindOf(context.Canceled); got != KindCancelled {
		t.Errorf("KindOf(context.Canceled) = %s", got)
	}
	if got := KindOf(context.DeadlineExceeded); got != KindNetworkTimeout {
		t.Errorf("KindOf(DeadlineExceeded) = %s", got)
	}
	if got := KindOf(errors.New("plain")); got != KindOther {
		t.Errorf("KindOf(plain) = %s", got)
	}
}

func TestMockScriptedReplies(t *testing.T) {
	m := NewMockClient("first", "second")
	ctx := context.Background()
	req := ChatRequest{Messages: []models.Message{models.UserMessage("hi")}}

	r1, err := m.Chat(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Content != "first" {
		t.Errorf("reply 1 = %q", r1.Content)
	}
	r2, _ := m.Chat(ctx, req)
	if r2.Content != "second" {
		t.Errorf("reply 2 = %q", r2.Content)
	}
	// Script exhausted: echo fallback.
	r3, _ := m.Chat(ctx, req)
	if r3.Content != "Echo: hi" {
		t.Errorf("reply 3 = %q, want echo", r3.Content)
	}
}

func TestMockStreamReassembles(t *testing.T) {
	m := NewMockClient("a somewhat longer scripted reply")
	events, err := m.ChatStream(context.Background(), ChatRequest{
		Messages: []models.Message{models.UserMessage("go")},
	})
	if err != nil {
		t.Fatal(err)
	}

	var got string
	var done bool
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("stream error: %v", ev.Err)
		}
		if ev.Done {
			done = true
			continue
		}
		got += ev.Delta
	}
	if !done {
		t.Error("missing terminal Done event")
	}
	if got != "a somewhat longer scripted reply" {
		t.Errorf("reassembled = %q", got)
	}
}

func TestRetryableClientRetriesTransient(t *testing.T) {
	calls := 0
	wrapped := NewRetryableClient(clientFunc{
		chat: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			calls++
			if calls < 3 {
				return nil, NewError(KindServer, "upstream 503", nil)
			}
			return &ChatResponse{Content: "ok"}, nil
		},
	}, retry.Config{MaxAttempts: 5, InitialDelay: time.Millisecond}, nil, nil)

	resp, err := wrapped.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" || calls != 3 {
		t.Errorf("content=%q calls=%d", resp.Content, calls)
	}
}

func TestRetryableClientStopsOnPermanent(t *testing.T) {
	calls := 0
	wrapped := NewRetryableClient(clientFunc{
		chat: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			calls++
			return nil, NewError(KindAuth, "bad key", nil)
		},
	}, retry.Config{MaxAttempts: 5, InitialDelay: time.Millisecond}, nil, nil)

	_, err := wrapped.Chat(context.Background(), ChatRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if KindOf(err) != KindAuth {
		t.Errorf("kind = %s, want auth_failed", KindOf(err))
	}
}

// clientFunc adapts bare functions to the Client interface for tests.
type clientFunc struct {
	chat func(context.Context, ChatRequest) (*ChatResponse, error)
}

func (c clientFunc) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return c.chat(ctx, req)
}

func (c clientFunc) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	resp, err := c.chat(ctx, req)
	if err != nil {
		return nil, err
	}
	events := make(chan StreamEvent, 2)
	events <- StreamEvent{Delta: resp.Content}
	events <- StreamEvent{Done: true}
	close(events)
	return events, nil
}

func (c clientFunc) Provider() string { return "test" }
func (c clientFunc) Model() string    { return "test-1" }
