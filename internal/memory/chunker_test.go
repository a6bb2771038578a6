package memory

import (
	"strings"
	"testing"
)

func TestChunkShortText(t *testing.T) {
	c := NewChunker(500, 50)
	chunks := c.Chunk("doc", "just one small paragraph")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].ID != "doc_0" || chunks[0].SourceID != "doc" {
		t.Fatalf("bad identity: %+v", chunks[0])
	}
}

func TestChunkEmptyText(t *testing.T) {
	c := NewChunker(100, 10)
	if got := c.Chunk("doc", ""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := c.Chunk("doc", "   \n  "); len(got) != 0 {
		t.Fatalf("whitespace-only text produced %d chunks", len(got))
	}
}

func TestChunkPrefersParagraphBoundaries(t *testing.T) {
	text := strings.Repeat("alpha ", 10) + "\n\n" + strings.Repeat("beta ", 30)
	c := NewChunker(80, 0)
	chunks := c.Chunk("doc", text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if strings.Contains(chunks[0].Text, "beta") {
		t.Fatalf("first chunk crossed paragraph boundary: %q", chunks[0].Text)
	}
}

func TestChunkOverlap(t *testing.T) {
	text := strings.Repeat("sentence number one. ", 20)
	c := NewChunker(100, 20)
	chunks := c.Chunk("doc", text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	// Consecutive chunks share their seam text.
	tail := chunks[0].Text[len(chunks[0].Text)-10:]
	if !strings.Contains(chunks[1].Text, strings.TrimSpace(tail)) {
		t.Fatalf("no overlap between chunks: %q / %q", chunks[0].Text, chunks[1].Text)
	}
}

func TestChunkAlwaysAdvances(t *testing.T) {
	// Overlap equal to chunk progress must not stall the loop.
	text := strings.Repeat("x", 300)
	c := NewChunker(100, 99)
	chunks := c.Chunk("doc", text)
	if len(chunks) == 0 || len(chunks) > 300 {
		t.Fatalf("suspicious chunk count %d", len(chunks))
	}
}

func TestChunkCJKSentences(t *testing.T) {
	text := strings.Repeat("这是一个很长的句子。", 30)
	c := NewChunker(50, 0)
	chunks := c.Chunk("doc", text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "。") {
		t.Fatalf("chunk不以句号结尾: %q", chunks[0].Text)
	}
}

func TestChunkByteOffsets(t *testing.T) {
	text := strings.Repeat("word ", 60)
	c := NewChunker(100, 0)
	chunks := c.Chunk("doc", text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].ByteOffset != 0 {
		t.Fatalf("first offset = %d", chunks[0].ByteOffset)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].ByteOffset <= chunks[i-1].ByteOffset {
			t.Fatalf("offsets not increasing: %d then %d", chunks[i-1].ByteOffset, chunks[i].ByteOffset)
		}
	}
}
