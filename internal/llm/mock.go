package llm

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"
)

// MockClient serves scripted replies in order, falling back to echoing
// the last user message. Tests drive the planner and react loop with it,
// and `strand chat --offline` uses it as the provider.
type MockClient struct {
	mu      sync.Mutex
	replies []string
	next    int

	// Requests records every request for assertions.
	Requests []ChatRequest

	// Fail, when set, is returned by every call instead of a reply.
	Fail error

	// ChunkSize splits streamed replies; defaults to 6 runes.
	ChunkSize int
}

var _ Client = (*MockClient)(nil)

// NewMockClient scripts the given replies.
func NewMockClient(replies ...string) *MockClient {
	return &MockClient{replies: replies}
}

// Provider returns "mock".
func (m *MockClient) Provider() string { return "mock" }

// Model returns "mock-1".
func (m *MockClient) Model() string { return "mock-1" }

// Enqueue appends more scripted replies.
func (m *MockClient) Enqueue(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

func (m *MockClient) reply(req ChatRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Fail != nil {
		return "", m.Fail
	}
	if m.next < len(m.replies) {
		r := m.replies[m.next]
		m.next++
		return r, nil
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return "Echo: " + req.Messages[i].Content, nil
		}
	}
	return "Echo:", nil
}

// Chat returns the next scripted reply.
func (m *MockClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(KindCancelled, "cancelled", err)
	}
	content, err := m.reply(req)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Content: content,
		Model:   m.Model(),
		Usage: TokenUsage{
			PromptTokens:     estimateTokens(req),
			CompletionTokens: len(content) / 4,
			TotalTokens:      estimateTokens(req) + len(content)/4,
		},
	}, nil
}

// ChatStream streams the next scripted reply in fixed-size chunks.
func (m *MockClient) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	resp, err := m.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	size := m.ChunkSize
	if size <= 0 {
		size = 6
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		remaining := resp.Content
		for len(remaining) > 0 {
			if ctx.Err() != nil {
				events <- StreamEvent{Err: NewError(KindCancelled, "stream cancelled", ctx.Err())}
				return
			}
			chunk := takeRunes(remaining, size)
			events <- StreamEvent{Delta: chunk}
			remaining = remaining[len(chunk):]
		}
		events <- StreamEvent{Done: true, Usage: resp.Usage}
	}()
	return events, nil
}

func takeRunes(s string, n int) string {
	if n >= utf8.RuneCountInString(s) {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func estimateTokens(req ChatRequest) int {
	var b strings.Builder
	for _, m := range req.Messages {
		b.WriteString(m.Content)
	}
	return b.Len() / 4
}
