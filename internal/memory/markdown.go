package memory

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/strandhq/strand/pkg/models"
)

// Markdown file layout under the workspace:
//
//	memory/logs/YYYY-MM-DD.md   daily conversation logs
//	memory/long-term.md         consolidated long-term knowledge
//	memory/lessons.md           behavioral constraints, injected into prompts
//	memory/procedural.md        tool success/failure experience
//	memory/preferences.md       explicit user preferences

func MemoryRoot(workspace string) string {
	return filepath.Join(workspace, "memory")
}

func DailyLogPath(root, date string) string {
	return filepath.Join(root, "logs", date+".md")
}

func LongTermPath(root string) string {
	return filepath.Join(root, "long-term.md")
}

func LessonsPath(root string) string {
	return filepath.Join(root, "lessons.md")
}

func ProceduralPath(root string) string {
	return filepath.Join(root, "procedural.md")
}

func PreferencesPath(root string) string {
	return filepath.Join(root, "preferences.md")
}

// LoadMarkdown reads a memory file, returning "" when it does not exist.
func LoadMarkdown(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}

// AppendPreference records an explicit user preference as a bullet line.
func AppendPreference(path, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	return appendLine(path, "- "+content+"\n")
}

// AppendLesson records one behavioral constraint.
func AppendLesson(path, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return appendLine(path, line+"\n")
}

// AppendProcedural records one tool outcome for future prompt injection.
func AppendProcedural(path, tool string, success bool, detail string) error {
	status := "ok"
	if !success {
		status = "fail"
	}
	return appendLine(path, fmt.Sprintf("- %s %s: %s\n", tool, status, detail))
}

// AppendDailyLog appends one turn's messages to the dated log file.
func AppendDailyLog(root, date, sessionID string, messages []models.Message) error {
	path := DailyLogPath(root, date)
	var b strings.Builder
	fmt.Fprintf(&b, "\n## Session %s (%s)\n\n", sessionID, date)
	for _, m := range messages {
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", roleLabel(m.Role), m.Content)
	}
	b.WriteString("---\n\n")
	return appendLine(path, b.String())
}

type fileEntry struct {
	text   string
	tokens map[string]struct{}
}

// FileLongTerm persists long-term memory as timestamped markdown blocks in a
// single file and serves keyword retrieval from an in-memory index loaded at
// startup. Scoring is token overlap normalized by sqrt of document length.
type FileLongTerm struct {
	path       string
	maxEntries int

	mu      sync.RWMutex
	entries []fileEntry

	now func() time.Time
}

func NewFileLongTerm(path string, maxEntries int) *FileLongTerm {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	f := &FileLongTerm{path: path, maxEntries: maxEntries, now: time.Now}
	f.loadFromDisk()
	return f
}

func (f *FileLongTerm) loadFromDisk() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		os.MkdirAll(filepath.Dir(f.path), 0o755)
		return
	}
	for _, text := range splitBlocks(string(data)) {
		f.entries = append(f.entries, fileEntry{text: text, tokens: fileTokens(text)})
	}
	if n := len(f.entries); n > f.maxEntries {
		f.entries = f.entries[n-f.maxEntries:]
	}
}

// splitBlocks splits file content on second-level headings, dropping the
// heading line itself. Content without headings is one block.
func splitBlocks(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	var blocks []string
	for _, block := range strings.Split(content, "\n\n## ") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		text := block
		if i := strings.IndexByte(block, '\n'); i >= 0 {
			text = strings.TrimSpace(block[i+1:])
		}
		if text != "" {
			blocks = append(blocks, text)
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, content)
	}
	return blocks
}

// fileTokens matches the on-disk index: whitespace split, lowercased, single
// characters dropped.
func fileTokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		w = strings.ToLower(w)
		if len(w) > 1 {
			set[w] = struct{}{}
		}
	}
	return set
}

func (f *FileLongTerm) Add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	f.mu.Lock()
	f.entries = append(f.entries, fileEntry{text: text, tokens: fileTokens(text)})
	if n := len(f.entries); n > f.maxEntries {
		f.entries = f.entries[n-f.maxEntries:]
	}
	f.mu.Unlock()

	block := fmt.Sprintf("\n\n## %s\n\n%s\n\n", f.now().Format("2006-01-02 15:04"), text)
	appendLine(f.path, block)
}

func (f *FileLongTerm) Search(query string, k int) []string {
	queryTokens := fileTokens(query)
	if len(queryTokens) == 0 {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	type scored struct {
		score float64
		text  string
	}
	var hits []scored
	for _, e := range f.entries {
		if s := fileScore(queryTokens, e.tokens); s > 0 {
			hits = append(hits, scored{score: s, text: e.text})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.text
	}
	return out
}

// fileScore is a BM25-flavored ranking: query/document token overlap divided
// by the square root of document length.
func fileScore(query, doc map[string]struct{}) float64 {
	overlap := Overlap(query, doc)
	if overlap == 0 {
		return 0
	}
	n := len(doc)
	if n < 1 {
		n = 1
	}
	return float64(overlap) / math.Sqrt(float64(n))
}

func (f *FileLongTerm) Enabled() bool { return true }

func (f *FileLongTerm) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
