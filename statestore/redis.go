package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sidenote-ai/sidenote/types"
)

const defaultTTL = 24 * time.Hour

// RedisStore is a Redis-backed implementation of Store and DocumentStore.
// Records are stored as JSON with TTL-based cleanup; a sorted set per
// record kind supports listing without key scans.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for stored records. Default is 24 hours;
// 0 disables expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithPrefix sets the key prefix. Default is "sidenote".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultTTL,
		prefix: "sidenote",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Load retrieves a session record by ID.
func (s *RedisStore) Load(ctx context.Context, id string) (*types.SessionRecord, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var record types.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &record, nil
}

// Save persists a session record with TTL. The SET and the listing-index
// update share one pipeline round-trip.
func (s *RedisStore) Save(ctx context.Context, record *types.SessionRecord) error {
	if record == nil {
		return ErrInvalidRecord
	}
	if record.SessionID == "" {
		return ErrInvalidID
	}

	record.LastUpdated = time.Now()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.sessionKey(record.SessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.sessionIndexKey(), redis.Z{
		Score:  float64(record.LastUpdated.UnixMilli()),
		Member: record.SessionID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.sessionIndexKey(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// List returns all session IDs, newest first.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, s.sessionIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange failed: %w", err)
	}
	return s.pruneExpired(ctx, ids, s.sessionIndexKey(), s.sessionKey)
}

// Delete removes a session record and its index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	pipe := s.client.Pipeline()
	delCmd := pipe.Del(ctx, s.sessionKey(id))
	pipe.ZRem(ctx, s.sessionIndexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	if delCmd.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadDocument retrieves a document index record by ID.
func (s *RedisStore) LoadDocument(ctx context.Context, docID string) (*types.DocumentIndexRecord, error) {
	if docID == "" {
		return nil, ErrInvalidID
	}

	data, err := s.client.Get(ctx, s.docKey(docID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var record types.DocumentIndexRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document record: %w", err)
	}
	return &record, nil
}

// SaveDocument persists a document index record with TTL.
func (s *RedisStore) SaveDocument(ctx context.Context, record *types.DocumentIndexRecord) error {
	if record == nil {
		return ErrInvalidRecord
	}
	if record.DocID == "" {
		return ErrInvalidID
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal document record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.docKey(record.DocID), data, s.ttl)
	pipe.ZAdd(ctx, s.docIndexKey(), redis.Z{
		Score:  float64(record.CreatedAt.UnixMilli()),
		Member: record.DocID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.docIndexKey(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// ListDocuments returns all document IDs, newest first.
func (s *RedisStore) ListDocuments(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, s.docIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange failed: %w", err)
	}
	return s.pruneExpired(ctx, ids, s.docIndexKey(), s.docKey)
}

// DeleteDocument removes a document index record and its index entry.
func (s *RedisStore) DeleteDocument(ctx context.Context, docID string) error {
	if docID == "" {
		return ErrInvalidID
	}

	pipe := s.client.Pipeline()
	delCmd := pipe.Del(ctx, s.docKey(docID))
	pipe.ZRem(ctx, s.docIndexKey(), docID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	if delCmd.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// pruneExpired drops index entries whose record key expired via TTL.
func (s *RedisStore) pruneExpired(ctx context.Context, ids []string, indexKey string, keyFn func(string) string) ([]string, error) {
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, keyFn(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis exists failed: %w", err)
		}
		if exists == 0 {
			s.client.ZRem(ctx, indexKey, id)
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

func (s *RedisStore) sessionKey(id string) string { return s.prefix + ":session:" + id }
func (s *RedisStore) sessionIndexKey() string     { return s.prefix + ":sessions" }
func (s *RedisStore) docKey(id string) string     { return s.prefix + ":doc:" + id }
func (s *RedisStore) docIndexKey() string         { return s.prefix + ":docs" }

// Verify interface compliance.
var (
	_ Store         = (*RedisStore)(nil)
	_ DocumentStore = (*RedisStore)(nil)
)
