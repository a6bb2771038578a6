package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/strandhq/strand/pkg/models"
)

// rrfK dampens rank influence in reciprocal rank fusion.
const rrfK = 60

var ErrEmptyEmbedding = errors.New("embedder returned an empty vector")

type vectorEntry struct {
	chunk     models.Chunk
	tokens    map[string]struct{}
	embedding []float32
}

// ScoredChunk is a retrieval hit with its relevance score.
type ScoredChunk struct {
	Chunk models.Chunk
	Score float64
}

// VectorStore indexes document chunks by embedding and by token set, serving
// pure vector search and hybrid vector+keyword search with rank fusion.
// Oldest entries are evicted past maxEntries.
type VectorStore struct {
	mu         sync.RWMutex
	entries    []vectorEntry
	embedder   Embedder
	maxEntries int
}

func NewVectorStore(embedder Embedder, maxEntries int) *VectorStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &VectorStore{embedder: embedder, maxEntries: maxEntries}
}

// Add embeds and indexes one chunk.
func (s *VectorStore) Add(ctx context.Context, chunk models.Chunk) error {
	emb, err := s.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return err
	}
	if len(emb) == 0 {
		return ErrEmptyEmbedding
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, vectorEntry{
		chunk:     chunk,
		tokens:    TokenSet(chunk.Text),
		embedding: emb,
	})
	if n := len(s.entries); n > s.maxEntries {
		s.entries = append([]vectorEntry(nil), s.entries[n-s.maxEntries:]...)
	}
	return nil
}

// AddDocument chunks text and indexes every chunk.
func (s *VectorStore) AddDocument(ctx context.Context, chunker *Chunker, docID, text string) (int, error) {
	chunks := chunker.Chunk(docID, text)
	for i, c := range chunks {
		if err := s.Add(ctx, c); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

// Search returns the k chunks most similar to the query embedding. Only
// positive similarities are returned.
func (s *VectorStore) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []ScoredChunk
	for _, e := range s.entries {
		if score := Cosine(emb, e.embedding); score > 0 {
			hits = append(hits, ScoredChunk{Chunk: e.chunk, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// HybridSearch fuses vector and keyword rankings with reciprocal rank
// fusion: each chunk scores 1/(60+rank) per list it appears in, and the top
// k by fused score win. Chunks found by both retrievers rank highest.
func (s *VectorStore) HybridSearch(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	vectorHits, err := s.Search(ctx, query, 2*k)
	if err != nil {
		return nil, err
	}
	keywordHits := s.keywordSearch(query, 2*k)

	fused := make(map[string]*ScoredChunk)
	accumulate := func(hits []ScoredChunk) {
		for rank, h := range hits {
			sc, ok := fused[h.Chunk.ID]
			if !ok {
				sc = &ScoredChunk{Chunk: h.Chunk}
				fused[h.Chunk.ID] = sc
			}
			sc.Score += 1.0 / float64(rrfK+rank+1)
		}
	}
	accumulate(vectorHits)
	accumulate(keywordHits)

	out := make([]ScoredChunk, 0, len(fused))
	for _, sc := range fused {
		out = append(out, *sc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *VectorStore) keywordSearch(query string, k int) []ScoredChunk {
	queryTokens := TokenSet(query)
	if len(queryTokens) == 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []ScoredChunk
	for _, e := range s.entries {
		if score := Jaccard(queryTokens, e.tokens); score > 0 {
			hits = append(hits, ScoredChunk{Chunk: e.chunk, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// RemoveBySource drops every chunk indexed from the given document and
// returns how many were removed.
func (s *VectorStore) RemoveBySource(sourceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.chunk.SourceID == sourceID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed
}

func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
