package memory

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("empty = %d, want 0", got)
	}
	if got := EstimateTokens("a"); got != 1 {
		t.Fatalf("single char = %d, want at least 1", got)
	}
	// 40 ASCII chars, roughly 10 tokens.
	if got := EstimateTokens(strings.Repeat("word ", 8)); got != 10 {
		t.Fatalf("ascii = %d, want 10", got)
	}
	// CJK runes cost more than ASCII per char.
	cjk := EstimateTokens(strings.Repeat("你", 30))
	ascii := EstimateTokens(strings.Repeat("a", 30))
	if cjk <= ascii {
		t.Fatalf("cjk %d should exceed ascii %d", cjk, ascii)
	}
}

func TestBudgetSplit(t *testing.T) {
	b := NewTokenBudget(9000)
	if b.ConversationReserve() != 3000 {
		t.Fatalf("reserve = %d", b.ConversationReserve())
	}
	if b.SystemPromptBudget() != 6000 {
		t.Fatalf("prompt budget = %d", b.SystemPromptBudget())
	}
}

func TestAllocateKeepsAllWithinBudget(t *testing.T) {
	b := NewTokenBudget(9000)
	parts := []SegmentContent{
		{Segment: SegmentLongTerm, Content: "some knowledge"},
		{Segment: SegmentSystemPrompt, Content: "you are an assistant"},
	}
	out := b.Allocate(parts)
	if len(out) != 2 {
		t.Fatalf("got %d parts", len(out))
	}
	if out[0].Segment != SegmentSystemPrompt {
		t.Fatalf("not sorted by priority: first is %v", out[0].Segment)
	}
	if out[0].Content != "you are an assistant" || out[1].Content != "some knowledge" {
		t.Fatal("content altered despite ample budget")
	}
}

func TestAllocateTruncatesLowPriority(t *testing.T) {
	b := NewTokenBudget(120) // prompt budget 80
	long := strings.Repeat("filler words here ", 100)
	parts := []SegmentContent{
		{Segment: SegmentSystemPrompt, Content: "base prompt"},
		{Segment: SegmentLongTerm, Content: long},
	}
	out := b.Allocate(parts)
	if len(out) != 2 {
		t.Fatalf("got %d parts", len(out))
	}
	got := out[1].Content
	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatalf("low-priority part not marked truncated: %q", got[len(got)-40:])
	}
	if len(got) >= len(long) {
		t.Fatal("truncated part did not shrink")
	}
}

func TestAllocateDropsWhenExhausted(t *testing.T) {
	b := NewTokenBudget(30) // prompt budget 20
	parts := []SegmentContent{
		{Segment: SegmentSystemPrompt, Content: strings.Repeat("prompt ", 30)},
		{Segment: SegmentLongTerm, Content: "knowledge"},
	}
	out := b.Allocate(parts)
	for _, p := range out {
		if p.Segment == SegmentLongTerm && p.Content == "knowledge" {
			t.Fatal("long-term survived intact with no budget left")
		}
	}
}

func TestAllocateSkipsEmptySegments(t *testing.T) {
	b := NewTokenBudget(9000)
	out := b.Allocate([]SegmentContent{
		{Segment: SegmentSystemPrompt, Content: "base"},
		{Segment: SegmentLessons, Content: "   "},
	})
	if len(out) != 1 {
		t.Fatalf("blank segment not skipped: %d parts", len(out))
	}
}

func TestSegmentLimitCapsSegment(t *testing.T) {
	b := NewTokenBudget(9000)
	b.SegmentLimits = map[Segment]int{SegmentProcedural: 5}
	long := strings.Repeat("tool experience entry ", 50)
	out := b.Allocate([]SegmentContent{{Segment: SegmentProcedural, Content: long}})
	if len(out) != 1 {
		t.Fatalf("got %d parts", len(out))
	}
	if est := EstimateTokens(out[0].Content); est > 20 {
		t.Fatalf("capped segment still estimates %d tokens", est)
	}
}
