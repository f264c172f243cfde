package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sidenote-ai/sidenote/events"
	"github.com/sidenote-ai/sidenote/logger"
	"github.com/sidenote-ai/sidenote/providers"
	"github.com/sidenote-ai/sidenote/statestore"
	"github.com/sidenote-ai/sidenote/types"
)

// Builder turns uploaded document text into a persisted, embedded index.
type Builder struct {
	embedder providers.EmbeddingProvider
	store    statestore.DocumentStore // nil skips persistence
	emitter  *events.Emitter
}

// NewBuilder creates a document index builder. store may be nil.
func NewBuilder(embedder providers.EmbeddingProvider, store statestore.DocumentStore, emitter *events.Emitter) *Builder {
	return &Builder{embedder: embedder, store: store, emitter: emitter}
}

// BuildIndex chunks and embeds a document, persists the index record, and
// returns a searchable index. Progress is reported on the event bus at
// each stage; a failed stage emits an error event and aborts.
func (b *Builder) BuildIndex(ctx context.Context, docName, text string) (*Index, error) {
	b.emitter.UploadProgress(docName, events.UploadStageParsing, "")

	chunks := Chunk(text, docName)
	if len(chunks) == 0 {
		err := fmt.Errorf("document %q contains no text", docName)
		b.emitter.UploadProgress(docName, events.UploadStageError, err.Error())
		return nil, err
	}

	b.emitter.UploadProgress(docName, events.UploadStageEmbedding, "")

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	resp, err := b.embedder.Embed(ctx, providers.EmbeddingRequest{Texts: texts})
	if err != nil {
		b.emitter.UploadProgress(docName, events.UploadStageError, err.Error())
		return nil, fmt.Errorf("failed to embed document %q: %w", docName, err)
	}
	if len(resp.Embeddings) != len(chunks) {
		err := fmt.Errorf("embedding count mismatch: %d vectors for %d chunks",
			len(resp.Embeddings), len(chunks))
		b.emitter.UploadProgress(docName, events.UploadStageError, err.Error())
		return nil, err
	}
	for i := range chunks {
		chunks[i].Embedding = resp.Embeddings[i]
	}

	if b.store != nil {
		record := &types.DocumentIndexRecord{
			DocID:     uuid.New().String(),
			DocName:   docName,
			Chunks:    chunks,
			CreatedAt: time.Now(),
		}
		if err := b.store.SaveDocument(ctx, record); err != nil {
			b.emitter.UploadProgress(docName, events.UploadStageError, err.Error())
			return nil, fmt.Errorf("failed to persist document index: %w", err)
		}
	}

	logger.Info("document index built", "doc", docName, "chunks", len(chunks))
	b.emitter.UploadProgress(docName, events.UploadStageDone, "")
	return NewIndex(chunks), nil
}

// LoadIndexes rebuilds one index over every stored document, for session
// start. Missing or unreadable documents are skipped with a log entry.
func LoadIndexes(ctx context.Context, store statestore.DocumentStore) (*Index, error) {
	ids, err := store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var chunks []types.DocumentChunk
	for _, id := range ids {
		record, err := store.LoadDocument(ctx, id)
		if err != nil {
			logger.Warn("skipping unreadable document index", "doc_id", id, "error", err)
			continue
		}
		chunks = append(chunks, record.Chunks...)
	}
	return NewIndex(chunks), nil
}
