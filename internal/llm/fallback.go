package llm

import (
	"context"

	"github.com/strandhq/strand/internal/observability"
)

// FallbackClient retries a failed request against a secondary client when
// the primary failure looks provider-side. Auth and cancellation failures
// are returned as-is since a different model cannot fix them.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *observability.Logger
}

// NewFallbackClient wraps primary with fallback. logger may be nil.
func NewFallbackClient(primary, fallback Client, logger *observability.Logger) *FallbackClient {
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

var _ Client = (*FallbackClient)(nil)

// Provider delegates to the primary client.
func (c *FallbackClient) Provider() string { return c.primary.Provider() }

// Model delegates to the primary client.
func (c *FallbackClient) Model() string { return c.primary.Model() }

// Chat tries the primary client, then the fallback on provider-side errors.
func (c *FallbackClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := c.primary.Chat(ctx, req)
	if err == nil || !shouldFallback(err) {
		return resp, err
	}
	c.logFallback(ctx, err)
	return c.fallback.Chat(ctx, req)
}

// ChatStream tries the primary client, then the fallback when the stream
// fails to start. A stream that fails mid-flight is not replayed.
func (c *FallbackClient) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	events, err := c.primary.ChatStream(ctx, req)
	if err == nil || !shouldFallback(err) {
		return events, err
	}
	c.logFallback(ctx, err)
	return c.fallback.ChatStream(ctx, req)
}

func (c *FallbackClient) logFallback(ctx context.Context, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(ctx, "falling back to secondary model",
		"primary_model", c.primary.Model(),
		"fallback_model", c.fallback.Model(),
		"error", err,
	)
}

func shouldFallback(err error) bool {
	switch KindOf(err) {
	case KindServer, KindRateLimit, KindNetworkTimeout, KindContextWindow:
		return true
	default:
		return false
	}
}
