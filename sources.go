package relengine

import (
	"context"
	"sync"
	"time"
)

// ──────────────────────────────────────────────
// External sources — profile and message-log access
// ──────────────────────────────────────────────

// ProfileSource supplies profile signals for credibility scoring.
// Implementations return a zeroed profile (not an error) when the user
// has no profile on record.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (ProfileReview, error)
}

// StaticProfileSource is a thread-safe in-memory ProfileSource.
type StaticProfileSource struct {
	mu       sync.RWMutex
	profiles map[string]ProfileReview
}

// NewStaticProfileSource creates an empty profile source.
func NewStaticProfileSource() *StaticProfileSource {
	return &StaticProfileSource{profiles: make(map[string]ProfileReview)}
}

// SetProfile registers or replaces a user's profile.
func (s *StaticProfileSource) SetProfile(userID string, profile ProfileReview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = profile
}

// GetProfile returns the user's profile, or a zeroed profile when absent.
func (s *StaticProfileSource) GetProfile(_ context.Context, userID string) (ProfileReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[userID], nil
}

var _ ProfileSource = (*StaticProfileSource)(nil)

// HistorySource exposes the host's message log for windowed queries.
// The engine's own bounded history is the primary record; this source
// backs the recent-interactions metrics variant and backfills.
type HistorySource interface {
	QueryRecent(ctx context.Context, userID string, windowStart, windowEnd time.Time, limit int) ([]InteractionRecord, error)
}

// InMemoryHistorySource is a thread-safe in-memory HistorySource.
type InMemoryHistorySource struct {
	mu      sync.RWMutex
	records map[string][]InteractionRecord
}

// NewInMemoryHistorySource creates an empty history source.
func NewInMemoryHistorySource() *InMemoryHistorySource {
	return &InMemoryHistorySource{records: make(map[string][]InteractionRecord)}
}

// Append adds a record to the user's log.
func (s *InMemoryHistorySource) Append(userID string, rec InteractionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = append(s.records[userID], rec)
}

// QueryRecent returns records inside [windowStart, windowEnd], ordered
// as appended, capped at limit (0 = no cap).
func (s *InMemoryHistorySource) QueryRecent(_ context.Context, userID string, windowStart, windowEnd time.Time, limit int) ([]InteractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []InteractionRecord
	for _, rec := range s.records[userID] {
		if rec.Timestamp.Before(windowStart) || rec.Timestamp.After(windowEnd) {
			continue
		}
		result = append(result, rec)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

var _ HistorySource = (*InMemoryHistorySource)(nil)
