// Package statestore provides session-record and document-index persistence.
package statestore

import (
	"context"
	"errors"

	"github.com/sidenote-ai/sidenote/types"
)

// Store defines the interface for persistent session-record storage.
// The session manager saves after every finalized turn.
type Store interface {
	// Load retrieves a session record by ID.
	Load(ctx context.Context, id string) (*types.SessionRecord, error)

	// Save persists a session record, stamping LastUpdated.
	Save(ctx context.Context, record *types.SessionRecord) error

	// List returns all stored session IDs, newest first.
	List(ctx context.Context) ([]string, error)

	// Delete removes a session record. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error
}

// DocumentStore defines the interface for persistent document-index storage.
// Stored records are rebuilt into an in-memory retrieval index per session.
type DocumentStore interface {
	// LoadDocument retrieves a document index record by document ID.
	LoadDocument(ctx context.Context, docID string) (*types.DocumentIndexRecord, error)

	// SaveDocument persists a document index record.
	SaveDocument(ctx context.Context, record *types.DocumentIndexRecord) error

	// ListDocuments returns all stored document IDs.
	ListDocuments(ctx context.Context) ([]string, error)

	// DeleteDocument removes a document index record. Returns ErrNotFound
	// if absent.
	DeleteDocument(ctx context.Context, docID string) error
}

// ErrNotFound is returned when a record doesn't exist in the store.
var ErrNotFound = errors.New("record not found")

// ErrInvalidID is returned when an empty or malformed ID is provided.
var ErrInvalidID = errors.New("invalid record ID")

// ErrInvalidRecord is returned when a nil record is saved.
var ErrInvalidRecord = errors.New("invalid record")
