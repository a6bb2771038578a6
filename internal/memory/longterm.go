package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// LongTerm is the retrieval tier. Implementations persist knowledge across
// sessions and answer keyword or semantic queries.
type LongTerm interface {
	Add(text string)
	Search(query string, k int) []string
	Enabled() bool
}

// NoopLongTerm disables long-term memory entirely.
type NoopLongTerm struct{}

func (NoopLongTerm) Add(string)                 {}
func (NoopLongTerm) Search(string, int) []string { return nil }
func (NoopLongTerm) Enabled() bool               { return false }

const defaultMaxEntries = 1000

type lexicalEntry struct {
	text   string
	tokens map[string]struct{}
}

// InMemoryLongTerm stores entries in memory and ranks by token overlap. Used
// for tests and ephemeral sessions.
type InMemoryLongTerm struct {
	mu         sync.RWMutex
	entries    []lexicalEntry
	maxEntries int
}

func NewInMemoryLongTerm(maxEntries int) *InMemoryLongTerm {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &InMemoryLongTerm{maxEntries: maxEntries}
}

func (m *InMemoryLongTerm) Add(text string) {
	if text == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, lexicalEntry{text: text, tokens: TokenSet(text)})
	if n := len(m.entries); n > m.maxEntries {
		m.entries = append([]lexicalEntry(nil), m.entries[n-m.maxEntries:]...)
	}
}

func (m *InMemoryLongTerm) Search(query string, k int) []string {
	queryTokens := TokenSet(query)
	if len(queryTokens) == 0 {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	type scored struct {
		count int
		text  string
	}
	var hits []scored
	for _, e := range m.entries {
		if c := Overlap(queryTokens, e.tokens); c > 0 {
			hits = append(hits, scored{count: c, text: e.text})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].count > hits[j].count })
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.text
	}
	return out
}

func (m *InMemoryLongTerm) Enabled() bool { return true }

func (m *InMemoryLongTerm) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

type vectorSnapshotEntry struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// VectorLongTerm ranks entries by cosine similarity of embeddings and can
// snapshot itself to a JSON file between runs.
type VectorLongTerm struct {
	mu           sync.RWMutex
	entries      []vectorSnapshotEntry
	embedder     Embedder
	maxEntries   int
	snapshotPath string
}

// NewVectorLongTerm loads any existing snapshot at snapshotPath, keeping the
// newest maxEntries entries. An empty path disables snapshotting.
func NewVectorLongTerm(embedder Embedder, maxEntries int, snapshotPath string) *VectorLongTerm {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	v := &VectorLongTerm{embedder: embedder, maxEntries: maxEntries, snapshotPath: snapshotPath}
	v.loadSnapshot()
	return v
}

func (v *VectorLongTerm) loadSnapshot() {
	if v.snapshotPath == "" {
		return
	}
	data, err := os.ReadFile(v.snapshotPath)
	if err != nil {
		return
	}
	var entries []vectorSnapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	if len(entries) > v.maxEntries {
		entries = entries[len(entries)-v.maxEntries:]
	}
	v.entries = entries
}

// SaveSnapshot writes all entries to the snapshot path, creating parent
// directories as needed.
func (v *VectorLongTerm) SaveSnapshot() error {
	if v.snapshotPath == "" {
		return nil
	}
	v.mu.RLock()
	data, err := json.MarshalIndent(v.entries, "", "  ")
	v.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(v.snapshotPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(v.snapshotPath, data, 0o644)
}

func (v *VectorLongTerm) Add(text string) {
	if text == "" {
		return
	}
	emb, err := v.embedder.Embed(context.Background(), text)
	if err != nil || len(emb) == 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = append(v.entries, vectorSnapshotEntry{Text: text, Embedding: emb})
	if n := len(v.entries); n > v.maxEntries {
		v.entries = append([]vectorSnapshotEntry(nil), v.entries[n-v.maxEntries:]...)
	}
}

func (v *VectorLongTerm) Search(query string, k int) []string {
	emb, err := v.embedder.Embed(context.Background(), query)
	if err != nil || len(emb) == 0 {
		return nil
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	type scored struct {
		score float64
		text  string
	}
	var hits []scored
	for _, e := range v.entries {
		if s := Cosine(emb, e.Embedding); s > 0 {
			hits = append(hits, scored{score: s, text: e.Text})
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

func (v *VectorLongTerm) Enabled() bool { return true }
