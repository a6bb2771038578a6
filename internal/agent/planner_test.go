package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/strandhq/strand/internal/llm"
	"github.com/strandhq/strand/pkg/models"
)

func TestPlannerPrependsComposedSystem(t *testing.T) {
	client := llm.NewMockClient("fine")
	planner := NewPlanner(client, "base prompt")

	msgs := []models.Message{models.UserMessage("hello")}
	if _, err := planner.PlanWithSystem(context.Background(), msgs, "composed system"); err != nil {
		t.Fatalf("PlanWithSystem() error = %v", err)
	}

	sent := client.Requests[0].Messages
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if sent[0].Role != models.RoleSystem || sent[0].Content != "composed system" {
		t.Errorf("first message = %+v, want the composed system", sent[0])
	}
	if sent[1].Content != "hello" {
		t.Errorf("second message = %+v", sent[1])
	}
}

func TestPlannerAccumulatesUsage(t *testing.T) {
	client := llm.NewMockClient("one", "two")
	planner := NewPlanner(client, "base")

	ctx := context.Background()
	msgs := []models.Message{models.UserMessage("hi")}
	if _, err := planner.Plan(ctx, msgs); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	first := planner.TokenUsage()
	if _, err := planner.Plan(ctx, msgs); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	second := planner.TokenUsage()

	if second.TotalTokens <= first.TotalTokens {
		t.Errorf("usage did not accumulate: first=%d second=%d", first.TotalTokens, second.TotalTokens)
	}
}

func TestPlannerClassifiesFailure(t *testing.T) {
	client := llm.NewMockClient()
	client.Fail = llm.NewError(llm.KindContextWindow, "too long", nil)
	planner := NewPlanner(client, "base")

	_, err := planner.Plan(context.Background(), []models.Message{models.UserMessage("hi")})
	var aerr *Error
	if !errors.As(err, &aerr) || aerr.Kind != ErrContextWindowExceeded {
		t.Fatalf("error = %v, want context_window_exceeded", err)
	}
}

func TestSummarizeUsesSummarizerPrompt(t *testing.T) {
	client := llm.NewMockClient("a short summary")
	planner := NewPlanner(client, "base")

	summary, err := planner.Summarize(context.Background(), []models.Message{
		models.UserMessage("long conversation"),
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary != "a short summary" {
		t.Errorf("summary = %q", summary)
	}
	if client.Requests[0].Messages[0].Content != summarizerPrompt {
		t.Error("summarize should use the summarizer system prompt")
	}
}
