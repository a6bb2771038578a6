// Package llm defines the chat-completion capability the agent consumes,
// with an OpenAI-compatible provider, a retrying wrapper, and a scripted
// mock for tests and offline use.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/strandhq/strand/pkg/models"
)

// TokenUsage is the provider-reported token accounting of one request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest is one chat-completion call.
type ChatRequest struct {
	// Messages is the full prompt, system message included.
	Messages []models.Message
	// Model overrides the client default when non-empty.
	Model string
	// Temperature, 0 means provider default.
	Temperature float32
	// MaxTokens caps the completion length, 0 means provider default.
	MaxTokens int
}

// ChatResponse is the completed reply.
type ChatResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// StreamEvent is one element of a streaming reply. Exactly one terminal
// event arrives per stream: Done with final usage, or Err.
type StreamEvent struct {
	// Delta is the next content fragment; empty on terminal events.
	Delta string
	// Done marks successful completion.
	Done bool
	// Usage is populated on the Done event when the provider reports it.
	Usage TokenUsage
	// Err marks failed completion.
	Err error
}

// Client is the chat-completion capability.
type Client interface {
	// Chat performs a blocking completion.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// ChatStream starts a streaming completion. The returned channel is
	// closed after its terminal event.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)
	// Provider names the backing service for logs and metrics.
	Provider() string
	// Model is the default model identifier.
	Model() string
}

// ErrorKind classifies provider failures for recovery decisions.
type ErrorKind string

const (
	KindContextWindow  ErrorKind = "context_window_exceeded"
	KindRateLimit      ErrorKind = "rate_limited"
	KindNetworkTimeout ErrorKind = "network_timeout"
	KindAuth           ErrorKind = "auth_failed"
	KindServer         ErrorKind = "server_error"
	KindCancelled      ErrorKind = "cancelled"
	KindOther          ErrorKind = "other"
)

// Error is a classified provider failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("llm %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether a retry without intervention can succeed.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case KindRateLimit, KindNetworkTimeout, KindServer:
		return true
	default:
		return false
	}
}

// NewError builds a classified error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the classification of err, or KindOther.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetworkTimeout
	}
	return KindOther
}
