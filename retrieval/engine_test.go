package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sidenote-ai/sidenote/providers"
	"github.com/sidenote-ai/sidenote/types"
)

// stubEmbedder returns a fixed vector for every text.
type stubEmbedder struct {
	vec []float32
	err error

	mu    sync.Mutex
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, req providers.EmbeddingRequest) (providers.EmbeddingResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return providers.EmbeddingResponse{}, s.err
	}
	out := make([][]float32, len(req.Texts))
	for i := range out {
		out[i] = s.vec
	}
	return providers.EmbeddingResponse{Embeddings: out, Model: "stub"}, nil
}

func (s *stubEmbedder) EmbeddingDimensions() int { return len(s.vec) }
func (s *stubEmbedder) ID() string               { return "stub-embedding" }

// oneHot returns a unit vector along axis i in a dims-dimensional space.
func oneHot(dims, i int) []float32 {
	v := make([]float32, dims)
	v[i] = 1
	return v
}

// indexedChunks builds n chunks with mutually orthogonal embeddings.
func indexedChunks(n int) []types.DocumentChunk {
	chunks := make([]types.DocumentChunk, n)
	for i := range chunks {
		chunks[i] = types.DocumentChunk{
			ID:        fmt.Sprintf("doc:%d", i),
			Text:      fmt.Sprintf("chunk %d", i),
			Index:     i,
			Embedding: oneHot(n, i),
			DocName:   "doc",
		}
	}
	return chunks
}

func turnsWith(text string) []types.ConversationTurn {
	return []types.ConversationTurn{{Transcription: text, Response: "noted"}}
}

func TestEngine_TopOneIdentity(t *testing.T) {
	const n = 25
	embedder := &stubEmbedder{vec: oneHot(n, 5)}
	engine := NewEngine(embedder, NewIndex(indexedChunks(n)))

	chunks, err := engine.Retrieve(context.Background(), turnsWith("query"))
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1 (orthogonal others score below floor)", len(chunks))
	}
	if chunks[0].ID != "doc:5" {
		t.Errorf("top chunk = %s, want doc:5", chunks[0].ID)
	}
}

func TestEngine_CooldownSkipsSecondCall(t *testing.T) {
	const n = 10
	now := time.Now()
	clock := func() time.Time { return now }

	embedder := &stubEmbedder{vec: oneHot(n, 2)}
	engine := NewEngine(embedder, NewIndex(indexedChunks(n)), WithClock(clock))

	first, err := engine.Retrieve(context.Background(), turnsWith("q"))
	if err != nil {
		t.Fatalf("first Retrieve() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first retrieval returned %d chunks", len(first))
	}

	// Second call inside the cooldown is skipped entirely.
	second, err := engine.Retrieve(context.Background(), turnsWith("q"))
	if err != nil {
		t.Fatalf("second Retrieve() error = %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second retrieval returned %d chunks within cooldown", len(second))
	}
	if embedder.calls != 1 {
		t.Errorf("embedder calls = %d, cooldown-skipped call still embedded", embedder.calls)
	}

	if engine.CanRetrieve() {
		t.Error("CanRetrieve() = true inside cooldown")
	}
	now = now.Add(DefaultCooldown + time.Second)
	if !engine.CanRetrieve() {
		t.Error("CanRetrieve() = false after cooldown elapsed")
	}
}

func TestEngine_NeverReinjectsChunk(t *testing.T) {
	const n = 10
	now := time.Now()
	embedder := &stubEmbedder{vec: oneHot(n, 3)}
	engine := NewEngine(embedder, NewIndex(indexedChunks(n)),
		WithClock(func() time.Time { return now }))

	first, err := engine.Retrieve(context.Background(), turnsWith("q"))
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(first) != 1 || first[0].ID != "doc:3" {
		t.Fatalf("first retrieval = %v", first)
	}

	now = now.Add(DefaultCooldown + time.Second)
	second, err := engine.Retrieve(context.Background(), turnsWith("q"))
	if err != nil {
		t.Fatalf("second Retrieve() error = %v", err)
	}
	for _, chunk := range second {
		if chunk.ID == "doc:3" {
			t.Error("chunk doc:3 injected twice in one session")
		}
	}
}

func TestEngine_ResetClearsSessionState(t *testing.T) {
	const n = 10
	now := time.Now()
	embedder := &stubEmbedder{vec: oneHot(n, 3)}
	engine := NewEngine(embedder, NewIndex(indexedChunks(n)),
		WithClock(func() time.Time { return now }))

	if _, err := engine.Retrieve(context.Background(), turnsWith("q")); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	engine.Reset()

	if !engine.CanRetrieve() {
		t.Error("CanRetrieve() = false immediately after Reset")
	}
	chunks, err := engine.Retrieve(context.Background(), turnsWith("q"))
	if err != nil {
		t.Fatalf("Retrieve() after Reset error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID != "doc:3" {
		t.Errorf("retrieval after Reset = %v, injected set not cleared", chunks)
	}
}

func TestEngine_EmbeddingErrorIsNonFatal(t *testing.T) {
	embedder := &stubEmbedder{vec: oneHot(4, 0), err: errors.New("embedding down")}
	engine := NewEngine(embedder, NewIndex(indexedChunks(4)))

	chunks, err := engine.Retrieve(context.Background(), turnsWith("q"))
	if err == nil {
		t.Fatal("Retrieve() should surface the embedding error")
	}
	if chunks != nil {
		t.Errorf("chunks = %v on error, want nil", chunks)
	}
}

func TestEngine_EmptyIndexNeverRetrieves(t *testing.T) {
	engine := NewEngine(&stubEmbedder{vec: oneHot(4, 0)}, NewIndex(nil))
	if engine.CanRetrieve() {
		t.Error("CanRetrieve() = true with an empty index")
	}
}

func TestBuildQuery_UsesLastThreeTurnsWithResponsePrefix(t *testing.T) {
	longResponse := ""
	for i := 0; i < 50; i++ {
		longResponse += "0123456789"
	}
	turns := []types.ConversationTurn{
		{Transcription: "turn one", Response: "r1"},
		{Transcription: "turn two", Response: "r2"},
		{Transcription: "turn three", Response: longResponse},
		{Transcription: "turn four", Response: "r4"},
		{Transcription: "turn five", Response: "r5"},
	}

	query := buildQuery(turns)
	for _, want := range []string{"turn three", "turn four", "turn five"} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q: %q", want, query)
		}
	}
	if strings.Contains(query, "turn two") {
		t.Error("query includes turns older than the last three")
	}
	if strings.Contains(query, longResponse) {
		t.Error("query includes untruncated response")
	}
	if !strings.Contains(query, longResponse[:responsePrefixChars]) {
		t.Error("query missing the truncated response prefix")
	}
}
