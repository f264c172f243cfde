package types

import "time"

// DocumentChunk is a bounded slice of document text used as a retrieval
// unit. Chunks are created once at upload time and are immutable; the
// retrieval engine owns them collectively through its in-memory index.
type DocumentChunk struct {
	// ID is document-scoped and stable, e.g. "handbook:3".
	ID string `json:"id"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Index is the chunk's position within the document.
	Index int `json:"index"`

	// StartChar and EndChar delimit the chunk within the original text.
	StartChar int `json:"start_char"`
	EndChar   int `json:"end_char"`

	// Embedding is the chunk's embedding vector, set after upload-time
	// embedding. Nil if embedding failed for this chunk.
	Embedding []float32 `json:"embedding,omitempty"`

	// DocName is the owning document's display name.
	DocName string `json:"doc_name"`
}

// DocumentIndexRecord is the persisted form of an embedded document,
// rebuilt into a retrieval index per session.
type DocumentIndexRecord struct {
	DocID     string          `json:"doc_id"`
	DocName   string          `json:"doc_name"`
	Chunks    []DocumentChunk `json:"chunks"`
	CreatedAt time.Time       `json:"created_at"`
}
