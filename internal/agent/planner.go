package agent

import (
	"context"
	"sync"
	"time"

	"github.com/strandhq/strand/internal/llm"
	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/pkg/models"
)

const summarizerPrompt = "You are a summarizer. Summarize the following conversation in one short paragraph: " +
	"key facts, decisions, user preferences, and the latest question if any. " +
	"Use the same language as the conversation. Output only the summary, no preamble."

// Planner owns the base system prompt and the LLM handle, and keeps the
// session's cumulative token counters.
type Planner struct {
	client     llm.Client
	basePrompt string
	logger     *observability.Logger
	metrics    *observability.Metrics

	mu         sync.Mutex
	cumulative llm.TokenUsage
}

func NewPlanner(client llm.Client, basePrompt string) *Planner {
	return &Planner{client: client, basePrompt: basePrompt}
}

// WithObservability attaches the logger and metrics sinks.
func (p *Planner) WithObservability(logger *observability.Logger, metrics *observability.Metrics) *Planner {
	p.logger = logger
	p.metrics = metrics
	return p
}

// BasePrompt returns the default system prompt.
func (p *Planner) BasePrompt() string { return p.basePrompt }

// Client exposes the LLM handle for components that share it.
func (p *Planner) Client() llm.Client { return p.client }

// TokenUsage returns the cumulative counters across all calls.
func (p *Planner) TokenUsage() llm.TokenUsage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cumulative
}

// Plan calls the LLM with the base system prompt.
func (p *Planner) Plan(ctx context.Context, messages []models.Message) (string, error) {
	return p.PlanWithSystem(ctx, messages, p.basePrompt)
}

// PlanWithSystem prepends the composed system prompt as a single system
// message and calls the LLM. Provider failures come back classified.
func (p *Planner) PlanWithSystem(ctx context.Context, messages []models.Message, system string) (string, error) {
	prompt := make([]models.Message, 0, len(messages)+1)
	if system != "" {
		prompt = append(prompt, models.SystemMessage(system))
	}
	prompt = append(prompt, messages...)

	start := time.Now()
	resp, err := p.client.Chat(ctx, llm.ChatRequest{Messages: prompt})
	duration := time.Since(start)

	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordLLMRequest(p.client.Provider(), p.client.Model(), "error", duration.Seconds(), 0, 0)
		}
		if p.logger != nil {
			p.logger.Warn(ctx, "plan_failed", "provider", p.client.Provider(), "error", err.Error())
		}
		return "", Classify(err)
	}

	p.mu.Lock()
	p.cumulative.PromptTokens += resp.Usage.PromptTokens
	p.cumulative.CompletionTokens += resp.Usage.CompletionTokens
	p.cumulative.TotalTokens += resp.Usage.TotalTokens
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordLLMRequest(p.client.Provider(), resp.Model, "ok", duration.Seconds(),
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp.Content, nil
}

// Summarize condenses a conversation into one short paragraph for context
// compaction.
func (p *Planner) Summarize(ctx context.Context, messages []models.Message) (string, error) {
	return p.PlanWithSystem(ctx, messages, summarizerPrompt)
}
