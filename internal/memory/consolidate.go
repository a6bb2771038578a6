package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// consolidateMaxCharsPerDay caps how much of one day's log lands in
// long-term memory.
const consolidateMaxCharsPerDay = 6000

// ConsolidateResult reports which daily logs were folded into long-term
// memory.
type ConsolidateResult struct {
	DatesProcessed []string
	BlocksAdded    int
}

// Consolidate folds recent daily logs into the long-term file: each day
// within sinceDays (today inclusive) becomes one "整理 YYYY-MM-DD" block
// containing the day's distilled dialogue. Tool-call chatter is filtered out
// and long days are truncated.
func Consolidate(memoryRoot string, sinceDays int) (ConsolidateResult, error) {
	var result ConsolidateResult
	logsDir := filepath.Join(memoryRoot, "logs")
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, err
	}

	cutoff := time.Now().AddDate(0, 0, -sinceDays)
	lt := NewFileLongTerm(LongTermPath(memoryRoot), 2000)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		stem := strings.TrimSuffix(name, ".md")
		date, err := time.ParseInLocation("2006-01-02", stem, time.Local)
		if err != nil {
			continue
		}
		if date.Before(cutoff) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(logsDir, name))
		if err != nil {
			continue
		}
		summary := summarizeLogContent(string(data))
		if summary == "" {
			continue
		}
		lt.Add(fmt.Sprintf("整理 %s：\n\n%s", stem, summary))
		result.DatesProcessed = append(result.DatesProcessed, stem)
		result.BlocksAdded++
	}
	return result, nil
}

// summarizeLogContent strips tool-call internals and blank separators from a
// daily log, keeping the substantive dialogue, capped per day.
func summarizeLogContent(content string) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || t == "---" {
			continue
		}
		if strings.HasPrefix(t, "Tool call:") || strings.HasPrefix(t, "Observation from ") {
			continue
		}
		lines = append(lines, t)
	}
	s := strings.Join(lines, "\n")
	if runes := []rune(s); len(runes) > consolidateMaxCharsPerDay {
		s = string(runes[:consolidateMaxCharsPerDay]) + "..."
	}
	return s
}
