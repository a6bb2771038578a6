package models

// Chunk is the unit of long-term memory storage. Chunks belonging to one
// document share a SourceID so the document can be removed in bulk.
type Chunk struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	SourceID   string            `json:"source_id"`
	ByteOffset int               `json:"byte_offset"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
