package store

import (
	"context"
	"testing"
	"time"

	relengine "github.com/affinitylabs/relation-engine-go"
)

// ══════════════════════════════════════════════
// SQLiteContextStore tests
// ══════════════════════════════════════════════

func newTestSQLiteStore(t *testing.T) *SQLiteContextStore {
	t.Helper()
	s, err := OpenSQLiteContextStore(":memory:")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	rc := relengine.NewRelationshipContext("u1")
	rc.RelationshipState = relengine.TierBusiness
	rc.CredibilityScore = 7.25
	rc.AppendInteraction(relengine.InteractionRecord{
		ID: "r1", Timestamp: time.Now().UTC(), Action: "message", EmotionalState: relengine.EmotionHappy,
	})
	rc.RecordStateChange(relengine.StateChange{
		ID: "c1", PreviousState: relengine.TierStranger, NewState: relengine.TierBusiness,
		Reason: "r", Timestamp: time.Now().UTC(),
	})

	if err := s.Put(ctx, "u1", rc); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.RelationshipState != relengine.TierBusiness || got.CredibilityScore != 7.25 {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if got.LastStateChange() == nil || got.LastStateChange().ID != "c1" {
		t.Fatal("round trip lost the state change log")
	}
}

func TestSQLiteStore_MissingRowIsNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.Get(context.Background(), "ghost")
	if !relengine.IsContextNotFound(err) {
		t.Fatalf("expected CONTEXT_NOT_FOUND, got %v", err)
	}
}

func TestSQLiteStore_UpsertIsIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	rc := relengine.NewRelationshipContext("u1")
	rc.CredibilityScore = 4

	if err := s.Put(ctx, "u1", rc); err != nil {
		t.Fatalf("first put failed: %v", err)
	}
	rc.CredibilityScore = 8
	if err := s.Put(ctx, "u1", rc); err != nil {
		t.Fatalf("second put failed: %v", err)
	}

	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CredibilityScore != 8 {
		t.Fatalf("upsert must overwrite, got score %f", got.CredibilityScore)
	}
}

func TestSQLiteStore_NilContextRejected(t *testing.T) {
	s := newTestSQLiteStore(t)
	err := s.Put(context.Background(), "u1", nil)
	if relengine.CodeOf(err) != relengine.ErrCodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestSQLiteStore_UsableByEngine(t *testing.T) {
	s := newTestSQLiteStore(t)
	engine := relengine.NewRelationshipEngine(s, relengine.EngineOptions{
		Config: relengine.EngineConfig{RetryAttempts: 3, RetryBaseDelay: time.Millisecond},
	})
	result, err := engine.ProcessInteraction(context.Background(), "u1", "really happy with this, great work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.RelationshipState != result.Context.RelationshipState {
		t.Fatal("persisted tier must match the computed tier")
	}
}
