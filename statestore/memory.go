package statestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sidenote-ai/sidenote/types"
)

// MemoryStore is an in-memory implementation of Store and DocumentStore.
// It is the default backend for single-process desktop deployments and for
// tests. All records are deep-copied on the way in and out so callers can
// never mutate stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.SessionRecord
	docs     map[string]*types.DocumentIndexRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*types.SessionRecord),
		docs:     make(map[string]*types.DocumentIndexRecord),
	}
}

// Load retrieves a session record by ID.
func (s *MemoryStore) Load(ctx context.Context, id string) (*types.SessionRecord, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySessionRecord(record), nil
}

// Save persists a session record.
func (s *MemoryStore) Save(ctx context.Context, record *types.SessionRecord) error {
	if record == nil {
		return ErrInvalidRecord
	}
	if record.SessionID == "" {
		return ErrInvalidID
	}

	stored := copySessionRecord(record)
	stored.LastUpdated = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[record.SessionID] = stored
	return nil
}

// List returns all session IDs, newest first by LastUpdated.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*types.SessionRecord, 0, len(s.sessions))
	for _, record := range s.sessions {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].LastUpdated.After(records[j].LastUpdated)
	})

	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.SessionID
	}
	return ids, nil
}

// Delete removes a session record.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// LoadDocument retrieves a document index record by ID.
func (s *MemoryStore) LoadDocument(ctx context.Context, docID string) (*types.DocumentIndexRecord, error) {
	if docID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.docs[docID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocumentRecord(record), nil
}

// SaveDocument persists a document index record.
func (s *MemoryStore) SaveDocument(ctx context.Context, record *types.DocumentIndexRecord) error {
	if record == nil {
		return ErrInvalidRecord
	}
	if record.DocID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[record.DocID] = copyDocumentRecord(record)
	return nil
}

// ListDocuments returns all document IDs in lexical order.
func (s *MemoryStore) ListDocuments(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteDocument removes a document index record.
func (s *MemoryStore) DeleteDocument(ctx context.Context, docID string) error {
	if docID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[docID]; !ok {
		return ErrNotFound
	}
	delete(s.docs, docID)
	return nil
}

func copySessionRecord(record *types.SessionRecord) *types.SessionRecord {
	out := *record
	out.Turns = append([]types.ConversationTurn(nil), record.Turns...)
	out.ScreenAnalyses = append([]types.ScreenAnalysis(nil), record.ScreenAnalyses...)
	return &out
}

func copyDocumentRecord(record *types.DocumentIndexRecord) *types.DocumentIndexRecord {
	out := *record
	out.Chunks = make([]types.DocumentChunk, len(record.Chunks))
	for i, chunk := range record.Chunks {
		out.Chunks[i] = chunk
		out.Chunks[i].Embedding = append([]float32(nil), chunk.Embedding...)
	}
	return &out
}

// Verify interface compliance.
var (
	_ Store         = (*MemoryStore)(nil)
	_ DocumentStore = (*MemoryStore)(nil)
)
