package memory

import (
	"strings"
	"testing"

	"github.com/strandhq/strand/pkg/models"
)

func newTestContext(t *testing.T) (*ContextManager, string) {
	t.Helper()
	root := t.TempDir()
	cm := NewContextManager(20).
		WithLongTerm(NewInMemoryLongTerm(100)).
		WithLessonsPath(LessonsPath(root)).
		WithProceduralPath(ProceduralPath(root)).
		WithPreferencesPath(PreferencesPath(root))
	return cm, root
}

func TestLongTermSection(t *testing.T) {
	cm, _ := newTestContext(t)
	if cm.LongTermSection("anything") != "" {
		t.Fatal("empty store should render nothing")
	}
	cm.PushToLongTerm("User prefers concise answers about kubernetes")
	out := cm.LongTermSection("kubernetes answers")
	if !strings.HasPrefix(out, "## Relevant Past Knowledge\n") {
		t.Fatalf("missing heading: %q", out)
	}
	if !strings.Contains(out, "concise answers") {
		t.Fatalf("retrieved entry missing: %q", out)
	}
}

func TestLongTermSectionDisabled(t *testing.T) {
	cm := NewContextManager(20).WithLongTerm(NoopLongTerm{})
	cm.PushToLongTerm("ignored")
	if cm.LongTermSection("ignored") != "" {
		t.Fatal("disabled long-term should render nothing")
	}
}

func TestFileSectionsRenderAndCache(t *testing.T) {
	cm, _ := newTestContext(t)
	if cm.LessonsSection() != "" {
		t.Fatal("no lessons file yet")
	}

	cm.AppendCriticLesson("回答前先确认文件存在")
	out := cm.LessonsSection()
	if !strings.Contains(out, "行为约束") || !strings.Contains(out, "Critic 建议：回答前先确认文件存在") {
		t.Fatalf("lessons section = %q", out)
	}

	cm.AppendPreference("use metric units")
	if !strings.Contains(cm.PreferencesSection(), "- use metric units") {
		t.Fatal("preference not rendered")
	}

	cm.AppendProceduralRecord("shell", false, "timeout after 30s")
	if !strings.Contains(cm.ProceduralSection(), "- shell fail: timeout after 30s") {
		t.Fatal("procedural record not rendered")
	}
}

func TestAppendHallucinationLesson(t *testing.T) {
	cm, root := newTestContext(t)
	cm.AppendHallucinationLesson("make_coffee", []string{"echo", "read_file"})
	got := LoadMarkdown(LessonsPath(root))
	if !strings.Contains(got, "make_coffee") || !strings.Contains(got, "echo、read_file") {
		t.Fatalf("lesson = %q", got)
	}

	cm.AutoLessonOnHallucination = false
	cm.AppendHallucinationLesson("teleport", nil)
	if strings.Contains(LoadMarkdown(LessonsPath(root)), "teleport") {
		t.Fatal("lesson written while disabled")
	}
}

func TestPushSessionStrategy(t *testing.T) {
	cm, _ := newTestContext(t)
	cm.PushSessionStrategy("deploy the service", []string{"shell", "read_file"})
	hits := cm.LongTermMem.Search("deploy service", 1)
	if len(hits) != 1 {
		t.Fatalf("hits = %v", hits)
	}
	want := `Session strategy: goal "deploy the service"; tools used: shell, read_file.`
	if hits[0] != want {
		t.Fatalf("got %q, want %q", hits[0], want)
	}

	cm.PushSessionStrategy("no tools used", nil)
	if hits := cm.LongTermMem.Search("no tools used", 5); len(hits) != 0 {
		t.Fatal("strategy recorded without tools")
	}
}

func TestComposeSystemPromptOrder(t *testing.T) {
	cm, _ := newTestContext(t)
	cm.Working.SetGoal("answer the question")
	cm.PushToLongTerm("Past fact about kubernetes clusters")
	cm.AppendPreference("keep answers short")

	out := cm.ComposeSystemPrompt("You are a helpful AI assistant.", "tools: echo", "kubernetes clusters")
	base := strings.Index(out, "You are a helpful AI assistant.")
	schema := strings.Index(out, "tools: echo")
	goal := strings.Index(out, "## Current Goal")
	pref := strings.Index(out, "keep answers short")
	past := strings.Index(out, "## Relevant Past Knowledge")
	for name, idx := range map[string]int{"base": base, "schema": schema, "goal": goal, "pref": pref, "past": past} {
		if idx < 0 {
			t.Fatalf("prompt missing %s section:\n%s", name, out)
		}
	}
	if !(base < schema && schema < goal && goal < pref && pref < past) {
		t.Fatalf("sections out of priority order: %d %d %d %d %d", base, schema, goal, pref, past)
	}
}

func TestComposeSystemPromptTruncatesUnderSmallBudget(t *testing.T) {
	cm, _ := newTestContext(t)
	cm.WithBudget(150)
	cm.PushToLongTerm("kubernetes " + strings.Repeat("long knowledge entry ", 100))
	out := cm.ComposeSystemPrompt("base prompt", "", "kubernetes knowledge")
	if !strings.Contains(out, "base prompt") {
		t.Fatal("base prompt must survive")
	}
	if strings.Count(out, "long knowledge entry") > 90 {
		t.Fatal("low-priority section not truncated")
	}
}

func TestConversationDelegation(t *testing.T) {
	cm, _ := newTestContext(t)
	cm.PushMessage(models.UserMessage("hi"))
	cm.PushMessage(models.AssistantMessage("hello"))
	if len(cm.Messages()) != 2 {
		t.Fatalf("len = %d", len(cm.Messages()))
	}
	msgs := cm.ToLLMMessages()
	msgs[0].Content = "mutated"
	if cm.Messages()[0].Content != "hi" {
		t.Fatal("ToLLMMessages must copy")
	}

	cm.SetMessages([]models.Message{models.AssistantMessage("summary")})
	if len(cm.Messages()) != 1 {
		t.Fatal("SetMessages did not replace history")
	}
}
