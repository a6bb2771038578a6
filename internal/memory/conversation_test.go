package memory

import (
	"strings"
	"testing"

	"github.com/strandhq/strand/pkg/models"
)

func TestConversationPrunesToLimit(t *testing.T) {
	c := NewConversation(2) // 4 messages max
	c.Push(models.UserMessage("msg1"))
	c.Push(models.AssistantMessage("reply1"))
	c.Push(models.UserMessage("msg2"))
	c.Push(models.AssistantMessage("reply2"))
	c.Push(models.UserMessage("msg3"))
	if c.Len() > 4 {
		t.Fatalf("len = %d, want <= 4", c.Len())
	}
}

func TestConversationPreservesSystemMessages(t *testing.T) {
	c := NewConversation(2)
	c.Push(models.SystemMessage("system prompt"))
	for i := 0; i < 3; i++ {
		c.Push(models.UserMessage("question"))
		c.Push(models.AssistantMessage("answer"))
	}
	found := false
	for _, m := range c.Messages() {
		if m.Role == models.RoleSystem {
			found = true
		}
	}
	if !found {
		t.Fatal("system message was pruned")
	}
}

func TestConversationPrunesToolMessagesFirst(t *testing.T) {
	cfg := PruneConfig{PreserveSystem: true, ToolResultRatio: 0.25, SmartPrune: true}
	c := NewConversationWithConfig(3, cfg) // 6 messages max
	c.Push(models.UserMessage("msg1"))
	c.Push(models.ToolMessage("tool result 1"))
	c.Push(models.ToolMessage("tool result 2"))
	c.Push(models.ToolMessage("tool result 3"))
	c.Push(models.AssistantMessage("reply1"))
	c.Push(models.UserMessage("msg2"))
	c.Push(models.AssistantMessage("reply2"))
	c.Push(models.UserMessage("msg3"))

	tools := 0
	for _, m := range c.Messages() {
		if m.Role == models.RoleTool {
			tools++
		}
	}
	if tools > 2 {
		t.Fatalf("tool messages retained = %d, want <= 2", tools)
	}
}

func TestFIFOPrune(t *testing.T) {
	cfg := PruneConfig{SmartPrune: false}
	c := NewConversationWithConfig(1, cfg) // 2 messages max
	c.Push(models.UserMessage("old"))
	c.Push(models.AssistantMessage("older reply"))
	c.Push(models.UserMessage("new"))
	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d", len(msgs))
	}
	if msgs[0].Content != "older reply" {
		t.Fatalf("oldest not dropped: %q", msgs[0].Content)
	}
}

func TestPruneReturnsDropped(t *testing.T) {
	c := NewConversation(2)
	for i := 0; i < 3; i++ {
		c.Push(models.UserMessage("question"))
		c.Push(models.AssistantMessage("answer"))
	}
	res := c.Prune()
	if res.Retained != c.Len() {
		t.Fatalf("retained = %d, len = %d", res.Retained, c.Len())
	}
}

func TestSetMessagesReplacesHistory(t *testing.T) {
	c := NewConversation(5)
	c.Push(models.UserMessage("before"))
	c.SetMessages([]models.Message{models.AssistantMessage("summary of prior context")})
	if c.Len() != 1 || c.Messages()[0].Content != "summary of prior context" {
		t.Fatalf("history not replaced: %+v", c.Messages())
	}
}

func TestSummarizePruned(t *testing.T) {
	out := SummarizePruned([]models.Message{
		models.UserMessage("Hello"),
		models.AssistantMessage(strings.Repeat("x", 150)),
	})
	if !strings.Contains(out, "User: Hello") {
		t.Fatalf("missing user line: %q", out)
	}
	if !strings.Contains(out, "...") {
		t.Fatal("long content not truncated")
	}
	if SummarizePruned(nil) != "" {
		t.Fatal("empty input should yield empty summary")
	}
}
