package agent

import (
	"context"
	"strings"

	"github.com/strandhq/strand/internal/llm"
	"github.com/strandhq/strand/pkg/models"
)

// DefaultCriticTemplate is the evaluation prompt when config supplies none.
const DefaultCriticTemplate = `You are a Critic evaluating tool execution results.

Goal: {goal}
Tool used: {tool}
Observation: {observation}

If the result looks correct and helpful for achieving the goal, respond with "OK".
If there's an issue or better approach, briefly explain the problem.

Response:`

// Verdict is the critic's judgment of one tool observation.
type Verdict struct {
	// Skipped means the tool was outside the evaluation set.
	Skipped bool
	// Correction is non-empty when the observation looks wrong.
	Correction string
}

// Approved reports that the observation passed review.
func (v Verdict) Approved() bool { return !v.Skipped && v.Correction == "" }

// Critic runs an optional post-observation LLM check. With a nil tool set
// it evaluates every tool; otherwise only the listed ones.
type Critic struct {
	client   llm.Client
	template string
	tools    map[string]bool
}

// NewCritic builds a critic. An empty template falls back to the default;
// a nil or empty tool list means evaluate everything.
func NewCritic(client llm.Client, template string, evaluateTools []string) *Critic {
	if template == "" {
		template = DefaultCriticTemplate
	}
	var set map[string]bool
	if len(evaluateTools) > 0 {
		set = make(map[string]bool, len(evaluateTools))
		for _, t := range evaluateTools {
			set[t] = true
		}
	}
	return &Critic{client: client, template: template, tools: set}
}

// Evaluate substitutes the goal, tool, and observation into the template
// and asks the LLM. A reply starting with "OK" (or empty) approves.
func (c *Critic) Evaluate(ctx context.Context, goal, tool, observation string) (Verdict, error) {
	if c.tools != nil && !c.tools[tool] {
		return Verdict{Skipped: true}, nil
	}

	prompt := strings.NewReplacer(
		"{goal}", goal,
		"{tool}", tool,
		"{observation}", observation,
	).Replace(c.template)

	resp, err := c.client.Chat(ctx, llm.ChatRequest{
		Messages: []models.Message{models.UserMessage(prompt)},
	})
	if err != nil {
		return Verdict{}, Classify(err)
	}

	reply := strings.ToUpper(strings.TrimSpace(resp.Content))
	if reply == "" || strings.HasPrefix(reply, "OK") {
		return Verdict{}, nil
	}
	return Verdict{Correction: reply}, nil
}
