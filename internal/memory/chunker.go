package memory

import (
	"fmt"
	"strings"

	"github.com/strandhq/strand/pkg/models"
)

// chunkSeparators in descending preference. A chunk boundary lands on the
// rightmost separator inside the window so sentences stay whole.
var chunkSeparators = []string{"\n\n", "\n", "。", ". ", "！", "？", "! ", "? ", " "}

// Chunker splits documents into overlapping character windows for embedding.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Chunk splits text into at-most-Size rune windows, cutting at the best
// separator within each window and overlapping consecutive chunks. Chunk IDs
// are "{docID}_{index}" and byte offsets point into the original UTF-8 text.
func (c *Chunker) Chunk(docID, text string) []models.Chunk {
	runes := []rune(text)
	total := len(runes)
	if total == 0 {
		return nil
	}

	var chunks []models.Chunk
	cur := 0
	idx := 0
	for cur < total {
		targetEnd := cur + c.Size
		if targetEnd > total {
			targetEnd = total
		}
		actualEnd := targetEnd
		if targetEnd < total {
			window := string(runes[cur:targetEnd])
			for _, sep := range chunkSeparators {
				if pos := strings.LastIndex(window, sep); pos >= 0 {
					// Include the separator in this chunk.
					actualEnd = cur + len([]rune(window[:pos+len(sep)]))
					break
				}
			}
			if actualEnd <= cur {
				actualEnd = targetEnd
			}
		}

		piece := strings.TrimSpace(string(runes[cur:actualEnd]))
		if piece != "" {
			chunks = append(chunks, models.Chunk{
				ID:         fmt.Sprintf("%s_%d", docID, idx),
				Text:       piece,
				SourceID:   docID,
				ByteOffset: len(string(runes[:cur])),
			})
			idx++
		}

		if actualEnd >= total {
			break
		}
		back := c.Overlap
		if back > actualEnd-cur {
			back = actualEnd - cur
		}
		next := actualEnd - back
		if next <= cur {
			next = cur + 1
		}
		cur = next
	}
	return chunks
}
