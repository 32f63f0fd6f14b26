// Package store provides persistence backends for relationship contexts.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	relengine "github.com/affinitylabs/relation-engine-go"
)

// RedisContextStore implements relengine.ContextStore on Redis.
// Contexts are stored as JSON under "{prefix}:{user_id}".
type RedisContextStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Prefix string        // key prefix, default "rel:ctx"
	TTL    time.Duration // expiry for context keys, 0 = no expiry
}

// NewRedisContextStore creates a ContextStore backed by Redis.
// Works with go-redis Client, ClusterClient and Ring.
func NewRedisContextStore(client redis.UniversalClient, config ...RedisConfig) *RedisContextStore {
	cfg := RedisConfig{Prefix: "rel:ctx"}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rel:ctx"
	}
	return &RedisContextStore{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
	}
}

func (s *RedisContextStore) key(userID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, userID)
}

// Get loads a context. A missing key maps to the engine's
// context-not-found error; everything else is surfaced as transient.
func (s *RedisContextStore) Get(ctx context.Context, userID string) (*relengine.RelationshipContext, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, relengine.NewContextNotFoundError(userID)
		}
		return nil, relengine.NewTransientStoreError("redis get failed", err)
	}
	var rc relengine.RelationshipContext
	if err := json.Unmarshal([]byte(raw), &rc); err != nil {
		return nil, relengine.NewValidationError("corrupt context record for user " + userID)
	}
	return &rc, nil
}

// Put stores a context. Writes are idempotent: re-applying the same
// context overwrites the key with identical bytes.
func (s *RedisContextStore) Put(ctx context.Context, userID string, rc *relengine.RelationshipContext) error {
	if rc == nil {
		return relengine.NewValidationError("cannot store nil context")
	}
	data, err := json.Marshal(rc)
	if err != nil {
		return relengine.NewValidationError("context not serializable: " + err.Error())
	}
	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return relengine.NewTransientStoreError("redis set failed", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisContextStore) Close() error {
	return s.client.Close()
}

// Compile-time interface check.
var _ relengine.ContextStore = (*RedisContextStore)(nil)
