package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sidenote-ai/sidenote/logger"
	"github.com/sidenote-ai/sidenote/providers"
	"github.com/sidenote-ai/sidenote/types"
)

const (
	// DefaultCooldown spaces retrievals out; embedding a query and
	// scanning every chunk is too expensive to run on each turn.
	DefaultCooldown = 20 * time.Second

	// DefaultMinScore is the similarity floor for injection.
	DefaultMinScore = 0.3

	// DefaultTopK caps how many chunks one retrieval injects.
	DefaultTopK = 5

	// queryTurns is how many recent turns feed the query string.
	queryTurns = 3

	// responsePrefixChars truncates each turn's response in the query.
	responsePrefixChars = 300
)

// Engine owns the cooldown/dedup policy over a similarity index for one
// session. A chunk id it has returned is never returned again; Reset
// starts a fresh session with the same index.
type Engine struct {
	embedder providers.EmbeddingProvider
	index    *Index
	cooldown time.Duration
	minScore float64
	topK     int
	now      func() time.Time

	mu       sync.Mutex
	injected map[string]struct{}
	last     time.Time
	busy     bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCooldown overrides the retrieval cooldown (used in tests).
func WithCooldown(d time.Duration) EngineOption {
	return func(e *Engine) { e.cooldown = d }
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a retrieval engine over an index.
func NewEngine(embedder providers.EmbeddingProvider, index *Index, opts ...EngineOption) *Engine {
	e := &Engine{
		embedder: embedder,
		index:    index,
		cooldown: DefaultCooldown,
		minScore: DefaultMinScore,
		topK:     DefaultTopK,
		now:      time.Now,
		injected: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CanRetrieve reports whether a retrieval may start now: not currently
// retrieving, and the cooldown since the last retrieval has elapsed.
func (e *Engine) CanRetrieve() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canRetrieveLocked()
}

func (e *Engine) canRetrieveLocked() bool {
	if e.busy || e.index == nil || e.index.Len() == 0 {
		return false
	}
	return e.last.IsZero() || e.now().Sub(e.last) >= e.cooldown
}

// Retrieve embeds a query built from the recent turns and returns the top
// chunks not yet injected this session, marking them injected. A call made
// while busy or inside the cooldown is skipped and returns nothing.
func (e *Engine) Retrieve(ctx context.Context, recentTurns []types.ConversationTurn) ([]types.DocumentChunk, error) {
	e.mu.Lock()
	if !e.canRetrieveLocked() {
		e.mu.Unlock()
		return nil, nil
	}
	e.busy = true
	index := e.index
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.last = e.now()
		e.mu.Unlock()
	}()

	query := buildQuery(recentTurns)
	if query == "" {
		return nil, nil
	}

	resp, err := e.embedder.Embed(ctx, providers.EmbeddingRequest{Texts: []string{query}})
	if err != nil {
		return nil, fmt.Errorf("failed to embed retrieval query: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vectors")
	}

	e.mu.Lock()
	exclude := make(map[string]struct{}, len(e.injected))
	for id := range e.injected {
		exclude[id] = struct{}{}
	}
	e.mu.Unlock()

	matches := index.Search(resp.Embeddings[0], e.topK, e.minScore, exclude)
	if len(matches) == 0 {
		return nil, nil
	}

	chunks := make([]types.DocumentChunk, len(matches))
	e.mu.Lock()
	for i, match := range matches {
		chunks[i] = match.Chunk
		e.injected[match.Chunk.ID] = struct{}{}
	}
	e.mu.Unlock()

	logger.Debug("retrieval selected chunks", "count", len(chunks), "top_score", matches[0].Score)
	return chunks, nil
}

// SetIndex swaps the underlying index, keeping the injected-id set so a
// mid-session document upload cannot cause re-injection.
func (e *Engine) SetIndex(index *Index) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index = index
}

// Reset clears per-session state: injected ids, cooldown, busy flag.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.injected = make(map[string]struct{})
	e.last = time.Time{}
	e.busy = false
}

// buildQuery concatenates the transcribed input and a response prefix of
// the most recent turns.
func buildQuery(turns []types.ConversationTurn) string {
	if len(turns) > queryTurns {
		turns = turns[len(turns)-queryTurns:]
	}

	var b strings.Builder
	for _, turn := range turns {
		if turn.Transcription != "" {
			b.WriteString(turn.Transcription)
			b.WriteString("\n")
		}
		response := turn.Response
		if len(response) > responsePrefixChars {
			response = response[:responsePrefixChars]
		}
		if response != "" {
			b.WriteString(response)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// FormatContext renders retrieved chunks as a single delimited context
// block, sent into the open session as a non-turn-terminating message.
func FormatContext(chunks []types.DocumentChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("[Reference material relevant to the current discussion]\n")
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "--- %s ---\n", chunk.DocName)
		b.WriteString(strings.TrimSpace(chunk.Text))
		b.WriteString("\n")
	}
	b.WriteString("[End of reference material]")
	return b.String()
}
