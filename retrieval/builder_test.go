package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sidenote-ai/sidenote/events"
	"github.com/sidenote-ai/sidenote/statestore"
)

type progressRecorder struct {
	mu     sync.Mutex
	stages []string
}

func (r *progressRecorder) listen(e *events.Event) {
	if e.Type != events.EventUploadProgress {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, e.Data.(events.UploadProgressData).Stage)
}

func newBuilderFixture(embedder *stubEmbedder) (*Builder, *statestore.MemoryStore, *progressRecorder) {
	bus := events.NewBus()
	rec := &progressRecorder{}
	bus.SubscribeAll(rec.listen)
	store := statestore.NewMemoryStore()
	return NewBuilder(embedder, store, events.NewEmitter(bus, "test")), store, rec
}

func TestBuilder_BuildIndexPersistsAndReportsProgress(t *testing.T) {
	embedder := &stubEmbedder{vec: oneHot(8, 1)}
	builder, store, rec := newBuilderFixture(embedder)

	index, err := builder.BuildIndex(context.Background(), "notes.md", "Some document text.")
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	if index.Len() != 1 {
		t.Errorf("index size = %d, want 1", index.Len())
	}

	rec.mu.Lock()
	stages := append([]string(nil), rec.stages...)
	rec.mu.Unlock()
	want := []string{events.UploadStageParsing, events.UploadStageEmbedding, events.UploadStageDone}
	if strings.Join(stages, ",") != strings.Join(want, ",") {
		t.Errorf("progress stages = %v, want %v", stages, want)
	}

	ids, err := store.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("stored documents = %d, want 1", len(ids))
	}
	record, err := store.LoadDocument(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	if record.DocName != "notes.md" || len(record.Chunks) != 1 {
		t.Errorf("stored record = %+v", record)
	}
	if len(record.Chunks[0].Embedding) != 8 {
		t.Errorf("stored chunk embedding dims = %d", len(record.Chunks[0].Embedding))
	}
}

func TestBuilder_EmbeddingFailureEmitsErrorStage(t *testing.T) {
	embedder := &stubEmbedder{vec: oneHot(4, 0), err: errors.New("quota")}
	builder, store, rec := newBuilderFixture(embedder)

	_, err := builder.BuildIndex(context.Background(), "doc.txt", "text to embed")
	if err == nil {
		t.Fatal("BuildIndex() should fail when embedding fails")
	}

	rec.mu.Lock()
	last := rec.stages[len(rec.stages)-1]
	rec.mu.Unlock()
	if last != events.UploadStageError {
		t.Errorf("last stage = %q, want error", last)
	}

	ids, _ := store.ListDocuments(context.Background())
	if len(ids) != 0 {
		t.Error("failed build persisted a document record")
	}
}

func TestBuilder_EmptyDocumentRejected(t *testing.T) {
	builder, _, rec := newBuilderFixture(&stubEmbedder{vec: oneHot(4, 0)})

	_, err := builder.BuildIndex(context.Background(), "empty.txt", "   ")
	if err == nil {
		t.Fatal("BuildIndex() accepted an empty document")
	}

	rec.mu.Lock()
	last := rec.stages[len(rec.stages)-1]
	rec.mu.Unlock()
	if last != events.UploadStageError {
		t.Errorf("last stage = %q, want error", last)
	}
}

func TestLoadIndexes_MergesAllDocuments(t *testing.T) {
	embedder := &stubEmbedder{vec: oneHot(4, 2)}
	builder, store, _ := newBuilderFixture(embedder)

	ctx := context.Background()
	if _, err := builder.BuildIndex(ctx, "a.md", "first document"); err != nil {
		t.Fatalf("BuildIndex(a) error = %v", err)
	}
	if _, err := builder.BuildIndex(ctx, "b.md", "second document"); err != nil {
		t.Fatalf("BuildIndex(b) error = %v", err)
	}

	index, err := LoadIndexes(ctx, store)
	if err != nil {
		t.Fatalf("LoadIndexes() error = %v", err)
	}
	if index.Len() != 2 {
		t.Errorf("merged index size = %d, want 2", index.Len())
	}
}
