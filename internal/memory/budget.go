package memory

import (
	"sort"
	"strings"
)

// Segment identifies one section of the assembled system prompt. The ordinal
// is the allocation priority: lower values are funded first when the budget
// runs short.
type Segment int

const (
	SegmentSystemPrompt Segment = iota
	SegmentToolSchema
	SegmentWorkingMemory
	SegmentPreferences
	SegmentLessons
	SegmentProcedural
	SegmentLongTerm
)

func (s Segment) String() string {
	switch s {
	case SegmentSystemPrompt:
		return "system_prompt"
	case SegmentToolSchema:
		return "tool_schema"
	case SegmentWorkingMemory:
		return "working_memory"
	case SegmentPreferences:
		return "preferences"
	case SegmentLessons:
		return "lessons"
	case SegmentProcedural:
		return "procedural"
	case SegmentLongTerm:
		return "long_term"
	}
	return "unknown"
}

// DefaultBudgetTokens is the total context budget assumed when the model's
// window size is not configured.
const DefaultBudgetTokens = 8000

// TruncationMarker is appended to any segment cut to fit the budget.
const TruncationMarker = "...\n[truncated due to token budget]"

// EstimateTokens approximates the token count of text without a model
// tokenizer: ASCII averages ~4 chars per token, wider runes ~1.5. Non-empty
// text always counts at least one token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	ascii, wide := 0, 0
	for _, r := range text {
		if r < 128 {
			ascii++
		} else {
			wide++
		}
	}
	n := ascii/4 + (wide*2+2)/3
	if n < 1 {
		n = 1
	}
	return n
}

// SegmentContent pairs a prompt segment with its rendered text.
type SegmentContent struct {
	Segment Segment
	Content string
}

// TokenBudget divides a total context budget between the system prompt and
// the conversation, then allocates the system-prompt share across segments
// by priority.
type TokenBudget struct {
	Total int
	// SegmentLimits caps individual segments below their priority share.
	SegmentLimits map[Segment]int
}

func NewTokenBudget(total int) *TokenBudget {
	if total <= 0 {
		total = DefaultBudgetTokens
	}
	return &TokenBudget{Total: total}
}

// ConversationReserve is the share held back for conversation history, one
// third of the total.
func (b *TokenBudget) ConversationReserve() int {
	return b.Total / 3
}

// SystemPromptBudget is what remains for the assembled system prompt.
func (b *TokenBudget) SystemPromptBudget() int {
	return b.Total - b.ConversationReserve()
}

// Allocate fits the given segments into the system-prompt budget. Segments
// are funded in priority order; a segment that does not fit whole is
// truncated proportionally and marked, and segments with no budget left are
// dropped. Empty segments are skipped.
func (b *TokenBudget) Allocate(parts []SegmentContent) []SegmentContent {
	sorted := make([]SegmentContent, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Segment < sorted[j].Segment
	})

	remaining := b.SystemPromptBudget()
	var out []SegmentContent
	for _, p := range sorted {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		limit := remaining
		if l, ok := b.SegmentLimits[p.Segment]; ok {
			limit = l
		}
		allowed := limit
		if remaining < allowed {
			allowed = remaining
		}
		est := EstimateTokens(p.Content)
		switch {
		case est <= allowed:
			out = append(out, p)
			remaining -= est
		case allowed > 0:
			truncated := truncateToBudget(p.Content, allowed, est)
			out = append(out, SegmentContent{Segment: p.Segment, Content: truncated})
			remaining -= EstimateTokens(truncated)
			if remaining < 0 {
				remaining = 0
			}
		}
	}
	return out
}

// truncateToBudget cuts content so its estimate fits within allowed tokens.
// The 0.9 factor leaves headroom for the marker and estimation error.
func truncateToBudget(content string, allowed, est int) string {
	runes := []rune(content)
	ratio := float64(allowed) / float64(est)
	target := int(float64(len(runes)) * ratio * 0.9)
	if target < 0 {
		target = 0
	}
	if target > len(runes) {
		target = len(runes)
	}
	kept := strings.TrimRight(string(runes[:target]), " \t\n")
	return kept + TruncationMarker
}
