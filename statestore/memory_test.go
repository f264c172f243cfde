package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidenote-ai/sidenote/types"
)

func TestMemoryStore_SessionRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := &types.SessionRecord{
		SessionID: "s1",
		CreatedAt: time.Now().Add(-time.Hour),
		Profile:   "meeting",
		Language:  "en-US",
		Turns: []types.ConversationTurn{
			{Timestamp: time.Now(), Transcription: "hello", Response: "hi there"},
		},
	}
	require.NoError(t, store.Save(ctx, record))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "meeting", loaded.Profile)
	assert.Len(t, loaded.Turns, 1)
	assert.False(t, loaded.LastUpdated.IsZero())

	// Mutating the loaded copy must not affect stored state.
	loaded.Turns[0].Response = "tampered"
	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hi there", again.Turns[0].Response)
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &types.SessionRecord{SessionID: "old"}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, store.Save(ctx, &types.SessionRecord{SessionID: "new"}))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &types.SessionRecord{SessionID: "s1"}))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "s1"), ErrNotFound)
}

func TestMemoryStore_DocumentRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := &types.DocumentIndexRecord{
		DocID:     "d1",
		DocName:   "handbook.pdf",
		CreatedAt: time.Now(),
		Chunks: []types.DocumentChunk{
			{ID: "handbook.pdf:0", Text: "chapter one", Index: 0, EndChar: 11, Embedding: []float32{0.1, 0.2}},
		},
	}
	require.NoError(t, store.SaveDocument(ctx, record))

	loaded, err := store.LoadDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, loaded.Chunks, 1)
	assert.Equal(t, []float32{0.1, 0.2}, loaded.Chunks[0].Embedding)

	// Embeddings are deep-copied.
	loaded.Chunks[0].Embedding[0] = 99
	again, err := store.LoadDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, float32(0.1), again.Chunks[0].Embedding[0])

	ids, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, ids)

	require.NoError(t, store.DeleteDocument(ctx, "d1"))
	_, err = store.LoadDocument(ctx, "d1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_InvalidRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, nil), ErrInvalidRecord)
	assert.ErrorIs(t, store.Save(ctx, &types.SessionRecord{}), ErrInvalidID)
	assert.ErrorIs(t, store.SaveDocument(ctx, nil), ErrInvalidRecord)
	assert.ErrorIs(t, store.SaveDocument(ctx, &types.DocumentIndexRecord{}), ErrInvalidID)
}
