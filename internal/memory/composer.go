package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/strandhq/strand/pkg/models"
)

// segmentCacheTTL bounds staleness of file-backed prompt sections between
// watcher invalidations.
const segmentCacheTTL = 60 * time.Second

// ContextManager coordinates the three memory tiers for one session and
// assembles the system prompt within the token budget.
type ContextManager struct {
	Conversation *Conversation
	Working      *WorkingMemory
	LongTermMem  LongTerm

	lessonsPath     string
	proceduralPath  string
	preferencesPath string

	budget *TokenBudget
	cache  *SegmentCache
	ttl    time.Duration

	// AutoLessonOnHallucination appends a lesson whenever the planner
	// invents a tool name.
	AutoLessonOnHallucination bool
	// RecordToolSuccess also logs successful tool calls to procedural
	// memory, not only failures.
	RecordToolSuccess bool
}

func NewContextManager(maxTurns int) *ContextManager {
	return &ContextManager{
		Conversation:              NewConversation(maxTurns),
		Working:                   NewWorkingMemory(),
		budget:                    NewTokenBudget(DefaultBudgetTokens),
		cache:                     NewSegmentCache(),
		ttl:                       segmentCacheTTL,
		AutoLessonOnHallucination: true,
	}
}

func (c *ContextManager) WithLongTerm(lt LongTerm) *ContextManager {
	c.LongTermMem = lt
	return c
}

func (c *ContextManager) WithLessonsPath(path string) *ContextManager {
	c.lessonsPath = path
	return c
}

func (c *ContextManager) WithProceduralPath(path string) *ContextManager {
	c.proceduralPath = path
	return c
}

func (c *ContextManager) WithPreferencesPath(path string) *ContextManager {
	c.preferencesPath = path
	return c
}

func (c *ContextManager) WithBudget(totalTokens int) *ContextManager {
	c.budget = NewTokenBudget(totalTokens)
	return c
}

func (c *ContextManager) WithCacheTTL(ttl time.Duration) *ContextManager {
	c.ttl = ttl
	return c
}

func (c *ContextManager) Budget() *TokenBudget { return c.budget }

func (c *ContextManager) Cache() *SegmentCache { return c.cache }

// PushMessage appends to the conversation, pruning as needed.
func (c *ContextManager) PushMessage(msg models.Message) {
	c.Conversation.Push(msg)
}

// SetMessages replaces conversation history, as after compaction.
func (c *ContextManager) SetMessages(messages []models.Message) {
	c.Conversation.SetMessages(messages)
}

func (c *ContextManager) Messages() []models.Message {
	return c.Conversation.Messages()
}

// ToLLMMessages returns a copy of the history for a provider request.
func (c *ContextManager) ToLLMMessages() []models.Message {
	return append([]models.Message(nil), c.Conversation.Messages()...)
}

// WorkingMemorySection renders the mid-term tier for the prompt.
func (c *ContextManager) WorkingMemorySection() string {
	return c.Working.PromptSection()
}

// LongTermSection retrieves up to five past-knowledge entries relevant to
// the query.
func (c *ContextManager) LongTermSection(query string) string {
	if c.LongTermMem == nil || !c.LongTermMem.Enabled() {
		return ""
	}
	hits := c.LongTermMem.Search(query, 5)
	if len(hits) == 0 {
		return ""
	}
	return "## Relevant Past Knowledge\n" + strings.Join(hits, "\n\n")
}

// LessonsSection renders behavioral constraints from lessons.md.
func (c *ContextManager) LessonsSection() string {
	return c.fileSection(SegmentLessons, c.lessonsPath, "## 行为约束 / Lessons（请遵守）")
}

// ProceduralSection renders tool experience from procedural.md.
func (c *ContextManager) ProceduralSection() string {
	return c.fileSection(SegmentProcedural, c.proceduralPath, "## 程序记忆 / 工具使用经验（请参考，避免重复失败）")
}

// PreferencesSection renders explicit user preferences from preferences.md.
func (c *ContextManager) PreferencesSection() string {
	return c.fileSection(SegmentPreferences, c.preferencesPath, "## 用户偏好 / Preferences（请遵守）")
}

func (c *ContextManager) fileSection(seg Segment, path, heading string) string {
	if path == "" {
		return ""
	}
	if cached, ok := c.cache.Get(seg, c.ttl); ok {
		return cached
	}
	content := LoadMarkdown(path)
	section := ""
	if content != "" {
		section = fmt.Sprintf("\n%s\n%s\n", heading, content)
	}
	c.cache.Set(seg, section)
	return section
}

// ComposeSystemPrompt assembles the full system prompt from the base prompt,
// tool schema, and memory sections, fitted to the token budget. The query
// drives long-term retrieval, normally the latest user message.
func (c *ContextManager) ComposeSystemPrompt(base, toolSchema, query string) string {
	return c.ComposeWithSections(base, toolSchema, c.LongTermSection(query))
}

// ComposeWithSections assembles the prompt from a precomputed long-term
// section, so callers that already ran retrieval avoid a second search.
func (c *ContextManager) ComposeWithSections(base, toolSchema, longTermSection string) string {
	parts := []SegmentContent{
		{Segment: SegmentSystemPrompt, Content: base},
		{Segment: SegmentToolSchema, Content: toolSchema},
		{Segment: SegmentWorkingMemory, Content: c.WorkingMemorySection()},
		{Segment: SegmentPreferences, Content: c.PreferencesSection()},
		{Segment: SegmentLessons, Content: c.LessonsSection()},
		{Segment: SegmentProcedural, Content: c.ProceduralSection()},
		{Segment: SegmentLongTerm, Content: longTermSection},
	}
	fitted := c.budget.Allocate(parts)
	sections := make([]string, 0, len(fitted))
	for _, p := range fitted {
		sections = append(sections, strings.TrimRight(p.Content, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

// AppendPreference persists an explicit "记住：xxx" style preference.
func (c *ContextManager) AppendPreference(content string) {
	if c.preferencesPath == "" {
		return
	}
	if err := AppendPreference(c.preferencesPath, content); err == nil {
		c.cache.Invalidate(SegmentPreferences)
	}
}

// AppendCriticLesson records a critic suggestion as a standing lesson.
func (c *ContextManager) AppendCriticLesson(suggestion string) {
	suggestion = strings.TrimSpace(suggestion)
	if suggestion == "" || c.lessonsPath == "" {
		return
	}
	if err := AppendLesson(c.lessonsPath, "Critic 建议："+suggestion); err == nil {
		c.cache.Invalidate(SegmentLessons)
	}
}

// AppendHallucinationLesson records the valid tool list after the planner
// invented a tool, so later turns stop guessing.
func (c *ContextManager) AppendHallucinationLesson(hallucinated string, validTools []string) {
	if !c.AutoLessonOnHallucination || c.lessonsPath == "" {
		return
	}
	line := fmt.Sprintf(
		"仅使用以下已注册工具：%s；不要编造不存在的工具名（例如曾误用「%s」）。",
		strings.Join(validTools, "、"), hallucinated,
	)
	if err := AppendLesson(c.lessonsPath, line); err == nil {
		c.cache.Invalidate(SegmentLessons)
	}
}

// AppendProceduralRecord logs one tool outcome to procedural memory.
func (c *ContextManager) AppendProceduralRecord(tool string, success bool, detail string) {
	if c.proceduralPath == "" {
		return
	}
	if err := AppendProcedural(c.proceduralPath, tool, success, detail); err == nil {
		c.cache.Invalidate(SegmentProcedural)
	}
}

// PushSessionStrategy writes the turn's goal and tool sequence to long-term
// memory so similar future goals can reuse the strategy.
func (c *ContextManager) PushSessionStrategy(goal string, toolNames []string) {
	if len(toolNames) == 0 {
		return
	}
	line := fmt.Sprintf("Session strategy: goal %q; tools used: %s.",
		strings.TrimSpace(goal), strings.Join(toolNames, ", "))
	c.PushToLongTerm(line)
}

// PushToLongTerm stores important content for future retrieval.
func (c *ContextManager) PushToLongTerm(text string) {
	if c.LongTermMem != nil {
		c.LongTermMem.Add(text)
	}
}
