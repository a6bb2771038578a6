package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/strandhq/strand/pkg/models"
)

// messageImportance ranks messages for pruning. System messages are never
// dropped while preserveSystem holds; tool observations go first.
type messageImportance int

const (
	importanceTool      messageImportance = 40
	importanceAssistant messageImportance = 60
	importanceUser      messageImportance = 80
	importanceSystem    messageImportance = 100
)

func importanceOf(role models.Role) messageImportance {
	switch role {
	case models.RoleSystem:
		return importanceSystem
	case models.RoleUser:
		return importanceUser
	case models.RoleAssistant:
		return importanceAssistant
	default:
		return importanceTool
	}
}

// PruneConfig controls how conversation history is trimmed once it exceeds
// the turn limit.
type PruneConfig struct {
	// PreserveSystem keeps all system messages regardless of the limit.
	PreserveSystem bool
	// ToolResultRatio caps tool observations at this fraction of the
	// retained history.
	ToolResultRatio float64
	// SmartPrune enables importance-based pruning; false falls back to FIFO.
	SmartPrune bool
}

func DefaultPruneConfig() PruneConfig {
	return PruneConfig{PreserveSystem: true, ToolResultRatio: 0.5, SmartPrune: true}
}

// PruneResult reports what a prune removed. The dropped messages can be
// summarized into long-term memory instead of vanishing.
type PruneResult struct {
	Pruned   []models.Message
	Retained int
}

// Conversation is the short-term tier: the most recent turns of dialogue. A
// turn is a user/assistant pair, so maxTurns*2 messages are retained.
type Conversation struct {
	messages []models.Message
	maxTurns int
	config   PruneConfig
}

func NewConversation(maxTurns int) *Conversation {
	return &Conversation{maxTurns: maxTurns, config: DefaultPruneConfig()}
}

func NewConversationWithConfig(maxTurns int, cfg PruneConfig) *Conversation {
	return &Conversation{maxTurns: maxTurns, config: cfg}
}

// ConversationFromMessages restores a conversation from persisted history,
// pruning immediately if it exceeds the limit.
func ConversationFromMessages(messages []models.Message, maxTurns int) *Conversation {
	c := &Conversation{messages: messages, maxTurns: maxTurns, config: DefaultPruneConfig()}
	c.Prune()
	return c
}

func (c *Conversation) MaxTurns() int { return c.maxTurns }

func (c *Conversation) Push(msg models.Message) {
	c.messages = append(c.messages, msg)
	c.Prune()
}

func (c *Conversation) Messages() []models.Message { return c.messages }

func (c *Conversation) Len() int { return len(c.messages) }

func (c *Conversation) Clear() { c.messages = nil }

// SetMessages replaces the history wholesale, as after compaction when only
// the summary survives.
func (c *Conversation) SetMessages(messages []models.Message) {
	c.messages = messages
	c.Prune()
}

// Prune trims history to the turn limit and returns what was removed.
func (c *Conversation) Prune() PruneResult {
	maxMessages := c.maxTurns * 2
	if len(c.messages) <= maxMessages {
		return PruneResult{Retained: len(c.messages)}
	}

	if !c.config.SmartPrune {
		cut := len(c.messages) - maxMessages
		pruned := make([]models.Message, cut)
		copy(pruned, c.messages[:cut])
		c.messages = append([]models.Message(nil), c.messages[cut:]...)
		return PruneResult{Pruned: pruned, Retained: len(c.messages)}
	}

	type indexed struct {
		idx int
		imp messageImportance
	}
	var system, other []indexed
	for i, m := range c.messages {
		e := indexed{idx: i, imp: importanceOf(m.Role)}
		if e.imp == importanceSystem {
			system = append(system, e)
		} else {
			other = append(other, e)
		}
	}

	targetOther := maxMessages
	if c.config.PreserveSystem {
		targetOther = maxMessages - len(system)
		if targetOther < 0 {
			targetOther = 0
		}
	}

	if len(other) > targetOther {
		// Importance descending, recency breaking ties.
		sort.SliceStable(other, func(i, j int) bool {
			if other[i].imp != other[j].imp {
				return other[i].imp > other[j].imp
			}
			return other[i].idx > other[j].idx
		})

		toolLimit := int(float64(targetOther) * c.config.ToolResultRatio)
		toolCount := 0
		kept := other[:0]
		for _, e := range other {
			if e.imp == importanceTool {
				toolCount++
				if toolCount > toolLimit {
					continue
				}
			}
			kept = append(kept, e)
		}
		other = kept
		if len(other) > targetOther {
			other = other[:targetOther]
		}
		sort.Slice(other, func(i, j int) bool { return other[i].idx < other[j].idx })
	}

	keep := make(map[int]bool, len(system)+len(other))
	for _, e := range system {
		keep[e.idx] = true
	}
	for _, e := range other {
		keep[e.idx] = true
	}

	var pruned, retained []models.Message
	for i, m := range c.messages {
		if keep[i] {
			retained = append(retained, m)
		} else {
			pruned = append(pruned, m)
		}
	}
	c.messages = retained
	return PruneResult{Pruned: pruned, Retained: len(retained)}
}

// SummarizePruned renders dropped messages as a short digest suitable for
// long-term memory.
func SummarizePruned(pruned []models.Message) string {
	if len(pruned) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Pruned conversation context:\n")
	for _, m := range pruned {
		content := m.Content
		if runes := []rune(content); len(runes) > 100 {
			content = string(runes[:100]) + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", roleLabel(m.Role), content)
	}
	return b.String()
}

func roleLabel(r models.Role) string {
	switch r {
	case models.RoleUser:
		return "User"
	case models.RoleAssistant:
		return "Assistant"
	case models.RoleSystem:
		return "System"
	case models.RoleTool:
		return "Tool"
	}
	return string(r)
}
