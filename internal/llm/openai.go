package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/strandhq/strand/pkg/models"
)

// OpenAIClient talks to any OpenAI-compatible chat endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

var _ Client = (*OpenAIClient)(nil)

// OpenAIConfig configures the provider.
type OpenAIConfig struct {
	APIKey string
	// BaseURL points at an alternative compatible endpoint when set.
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// NewOpenAIClient builds the provider.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, NewError(KindAuth, "missing API key", nil)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Provider returns "openai".
func (c *OpenAIClient) Provider() string { return "openai" }

// Model returns the default model identifier.
func (c *OpenAIClient) Model() string { return c.model }

// Chat performs a blocking completion.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewError(KindServer, "empty choices in response", nil)
	}
	return &ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ChatStream starts a streaming completion.
func (c *OpenAIClient) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	chatReq := c.buildRequest(req)
	chatReq.Stream = true
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer stream.Close()

		var usage TokenUsage
		for {
			select {
			case <-ctx.Done():
				events <- StreamEvent{Err: NewError(KindCancelled, "stream cancelled", ctx.Err())}
				return
			default:
			}

			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					events <- StreamEvent{Done: true, Usage: usage}
					return
				}
				events <- StreamEvent{Err: classifyOpenAIError(err)}
				return
			}

			if resp.Usage != nil {
				usage = TokenUsage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				}
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				events <- StreamEvent{Delta: delta}
			}
		}
	}()
	return events, nil
}

func (c *OpenAIClient) buildRequest(req ChatRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

func openAIRole(role models.Role) string {
	switch role {
	case models.RoleSystem:
		return openai.ChatMessageRoleSystem
	case models.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case models.RoleTool:
		// Tool observations are replayed as user turns; the planner owns
		// the tool-call protocol, not the provider.
		return openai.ChatMessageRoleUser
	default:
		return openai.ChatMessageRoleUser
	}
}

func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return NewError(KindCancelled, "request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindNetworkTimeout, "request deadline exceeded", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return NewError(KindAuth, apiErr.Message, err)
		case apiErr.HTTPStatusCode == 429:
			return NewError(KindRateLimit, apiErr.Message, err)
		case apiErr.HTTPStatusCode >= 500:
			return NewError(KindServer, apiErr.Message, err)
		case strings.Contains(apiErr.Message, "context length") ||
			strings.Contains(apiErr.Message, "maximum context"):
			return NewError(KindContextWindow, apiErr.Message, err)
		default:
			return NewError(KindOther, apiErr.Message, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(KindNetworkTimeout, "network timeout", err)
	}

	return NewError(KindOther, err.Error(), err)
}
