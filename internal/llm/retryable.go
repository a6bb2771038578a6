package llm

import (
	"context"
	"errors"
	"time"

	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/internal/retry"
)

// RetryableClient wraps a Client with bounded retries for transient
// failures, plus metrics and logging for every round trip. Streams are
// retried only on start; once the first event is delivered the stream is
// the caller's to consume.
type RetryableClient struct {
	inner   Client
	cfg     retry.Config
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRetryableClient wraps inner. logger and metrics may be nil.
func NewRetryableClient(inner Client, cfg retry.Config, logger *observability.Logger, metrics *observability.Metrics) *RetryableClient {
	return &RetryableClient{inner: inner, cfg: cfg, logger: logger, metrics: metrics}
}

var _ Client = (*RetryableClient)(nil)

// Provider delegates to the wrapped client.
func (c *RetryableClient) Provider() string { return c.inner.Provider() }

// Model delegates to the wrapped client.
func (c *RetryableClient) Model() string { return c.inner.Model() }

// Chat retries transient failures per the configured policy.
func (c *RetryableClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	cfg := c.cfg
	if c.logger != nil {
		cfg.OnRetry = func(attempt int, err error) {
			c.logger.Warn(ctx, "retrying llm request",
				"attempt", attempt,
				"provider", c.inner.Provider(),
				"error", err,
			)
		}
	}

	start := time.Now()
	resp, err := retry.DoWithValue(ctx, cfg, func() (*ChatResponse, error) {
		resp, err := c.inner.Chat(ctx, req)
		if err != nil && !isTransient(err) {
			return nil, retry.Permanent(err)
		}
		return resp, err
	})
	c.record(req, resp, err, time.Since(start))
	return resp, err
}

// ChatStream retries the stream start only.
func (c *RetryableClient) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	start := time.Now()
	events, err := retry.DoWithValue(ctx, c.cfg, func() (<-chan StreamEvent, error) {
		events, err := c.inner.ChatStream(ctx, req)
		if err != nil && !isTransient(err) {
			return nil, retry.Permanent(err)
		}
		return events, err
	})
	if err != nil {
		c.record(req, nil, err, time.Since(start))
	}
	return events, err
}

func (c *RetryableClient) record(req ChatRequest, resp *ChatResponse, err error, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	model := req.Model
	if model == "" {
		model = c.inner.Model()
	}
	status := "success"
	prompt, completion := 0, 0
	if err != nil {
		status = "error"
	} else if resp != nil {
		prompt = resp.Usage.PromptTokens
		completion = resp.Usage.CompletionTokens
	}
	c.metrics.RecordLLMRequest(c.inner.Provider(), model, status, elapsed.Seconds(), prompt, completion)
}

func isTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsRetryable()
	}
	return false
}
