package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	relengine "github.com/affinitylabs/relation-engine-go"
)

// SQLiteContextStore implements relengine.ContextStore on an embedded
// SQLite database (cgo-free driver). One row per user, the context as
// a JSON document column. Suited to single-node deployments where a
// Redis dependency is unwanted.
type SQLiteContextStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS relationship_contexts (
	user_id    TEXT PRIMARY KEY,
	context    TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// OpenSQLiteContextStore opens (or creates) the database at path and
// applies the schema. Use ":memory:" for an ephemeral store.
func OpenSQLiteContextStore(path string) (*SQLiteContextStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, relengine.NewTransientStoreError("sqlite open failed", err)
	}
	return NewSQLiteContextStore(db)
}

// NewSQLiteContextStore wraps an existing database handle and applies
// the schema.
func NewSQLiteContextStore(db *sql.DB) (*SQLiteContextStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, relengine.NewTransientStoreError("sqlite schema migration failed", err)
	}
	return &SQLiteContextStore{db: db}, nil
}

// Get loads a context, mapping a missing row to the engine's
// context-not-found error.
func (s *SQLiteContextStore) Get(ctx context.Context, userID string) (*relengine.RelationshipContext, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT context FROM relationship_contexts WHERE user_id = ?`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, relengine.NewContextNotFoundError(userID)
		}
		return nil, relengine.NewTransientStoreError("sqlite query failed", err)
	}
	var rc relengine.RelationshipContext
	if err := json.Unmarshal([]byte(raw), &rc); err != nil {
		return nil, relengine.NewValidationError("corrupt context record for user " + userID)
	}
	return &rc, nil
}

// Put upserts the context row. Idempotent by construction.
func (s *SQLiteContextStore) Put(ctx context.Context, userID string, rc *relengine.RelationshipContext) error {
	if rc == nil {
		return relengine.NewValidationError("cannot store nil context")
	}
	data, err := json.Marshal(rc)
	if err != nil {
		return relengine.NewValidationError("context not serializable: " + err.Error())
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relationship_contexts (user_id, context, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			context = excluded.context,
			updated_at = excluded.updated_at`,
		userID, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return relengine.NewTransientStoreError("sqlite upsert failed", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteContextStore) Close() error {
	return s.db.Close()
}

// Compile-time interface check.
var _ relengine.ContextStore = (*SQLiteContextStore)(nil)
