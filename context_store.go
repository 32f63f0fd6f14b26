package relengine

import (
	"context"
	"sync"
)

// ──────────────────────────────────────────────
// Context Store — pluggable persistence for contexts
// ──────────────────────────────────────────────

// ContextStore is the storage backend interface for relationship
// contexts. Writes are idempotent: re-applying the same context is
// safe. Get returns a CONTEXT_NOT_FOUND engine error when no context
// exists for the user; backends wrap transient failures as retryable
// TRANSIENT_STORE_ERROR so the engine's retry policy applies.
type ContextStore interface {
	Get(ctx context.Context, userID string) (*RelationshipContext, error)
	Put(ctx context.Context, userID string, rc *RelationshipContext) error
}

// InMemoryContextStore is a thread-safe in-memory ContextStore for
// development and tests. Data is lost on restart.
type InMemoryContextStore struct {
	mu       sync.RWMutex
	contexts map[string]*RelationshipContext
}

// NewInMemoryContextStore creates a new in-memory store.
func NewInMemoryContextStore() *InMemoryContextStore {
	return &InMemoryContextStore{contexts: make(map[string]*RelationshipContext)}
}

// Get returns a deep copy so callers can never mutate stored state.
func (s *InMemoryContextStore) Get(_ context.Context, userID string) (*RelationshipContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc, ok := s.contexts[userID]
	if !ok {
		return nil, NewContextNotFoundError(userID)
	}
	return rc.Clone(), nil
}

// Put stores a deep copy of the context.
func (s *InMemoryContextStore) Put(_ context.Context, userID string, rc *RelationshipContext) error {
	if rc == nil {
		return NewValidationError("cannot store nil context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[userID] = rc.Clone()
	return nil
}

var _ ContextStore = (*InMemoryContextStore)(nil)
