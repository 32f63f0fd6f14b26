package relengine

import (
	"math/rand"
	"testing"
	"time"
)

// ══════════════════════════════════════════════
// DetailedCredibilityScorer tests
// ══════════════════════════════════════════════

func TestDetailedScore_AlwaysInRange(t *testing.T) {
	scorer := NewDetailedCredibilityScorer()
	rng := rand.New(rand.NewSource(42))
	now := time.Now()

	for i := 0; i < 1000; i++ {
		total := rng.Intn(200)
		positive := 0
		negative := 0
		if total > 0 {
			positive = rng.Intn(total + 1)
			negative = rng.Intn(total - positive + 1)
		}
		history := HistoryAnalysis{
			InteractionCount: total,
			PositiveCount:    positive,
			NegativeCount:    negative,
			AverageSentiment: rng.Float64(),
			LastInteraction:  now.Add(-time.Duration(rng.Intn(100*24)) * time.Hour),
		}
		profile := ProfileReview{
			AccountAgeDays: rng.Intn(5000),
			FollowerCount:  rng.Intn(1_000_000),
			FollowingCount: rng.Intn(10_000),
			Verified:       rng.Intn(2) == 0,
		}
		score, err := scorer.Score(profile, history, now)
		if err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		if score < 0 || score > 10 {
			t.Fatalf("iteration %d: score %f outside [0,10]", i, score)
		}
	}
}

func TestDetailedScore_MaxedInputsReachTen(t *testing.T) {
	scorer := NewDetailedCredibilityScorer()
	now := time.Now()
	score, err := scorer.Score(
		ProfileReview{AccountAgeDays: 365 * 10, FollowerCount: 10_000_000, Verified: true},
		HistoryAnalysis{InteractionCount: 100, PositiveCount: 100, AverageSentiment: 1.0, LastInteraction: now},
		now,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 10 {
		t.Fatalf("expected maxed-out score 10, got %f", score)
	}
}

func TestDetailedScore_FollowerTermIsLogarithmic(t *testing.T) {
	scorer := NewDetailedCredibilityScorer()
	now := time.Now()
	history := HistoryAnalysis{AverageSentiment: 0.5, LastInteraction: now}

	small, _ := scorer.Score(ProfileReview{FollowerCount: 100}, history, now)
	big, _ := scorer.Score(ProfileReview{FollowerCount: 10_000}, history, now)
	huge, _ := scorer.Score(ProfileReview{FollowerCount: 100_000_000}, history, now)

	if big <= small {
		t.Fatal("more followers should score higher before the cap")
	}
	if huge-big > big-small {
		t.Fatal("follower term must have diminishing returns")
	}
}

func TestDetailedScore_RecencyDecay(t *testing.T) {
	scorer := NewDetailedCredibilityScorer()
	now := time.Now()
	profile := ProfileReview{AccountAgeDays: 365 * 5, Verified: true}

	fresh, _ := scorer.Score(profile, HistoryAnalysis{
		InteractionCount: 20, PositiveCount: 20, AverageSentiment: 0.9,
		LastInteraction: now.Add(-24 * time.Hour),
	}, now)
	stale, _ := scorer.Score(profile, HistoryAnalysis{
		InteractionCount: 20, PositiveCount: 20, AverageSentiment: 0.9,
		LastInteraction: now.Add(-20 * 24 * time.Hour),
	}, now)
	dead, _ := scorer.Score(profile, HistoryAnalysis{
		InteractionCount: 20, PositiveCount: 20, AverageSentiment: 0.9,
		LastInteraction: now.Add(-60 * 24 * time.Hour),
	}, now)

	if stale >= fresh {
		t.Fatalf("stale relationship should decay: fresh=%f stale=%f", fresh, stale)
	}
	if dead != 0 {
		t.Fatalf("relationship past the decay window should score 0, got %f", dead)
	}
}

func TestDetailedScore_WithinRecentWindowNoDecay(t *testing.T) {
	scorer := NewDetailedCredibilityScorer()
	now := time.Now()
	history := HistoryAnalysis{
		InteractionCount: 10, PositiveCount: 10, AverageSentiment: 0.9,
	}

	history.LastInteraction = now.Add(-time.Hour)
	a, _ := scorer.Score(ProfileReview{}, history, now)
	history.LastInteraction = now.Add(-6 * 24 * time.Hour)
	b, _ := scorer.Score(ProfileReview{}, history, now)

	if a != b {
		t.Fatalf("no decay inside the recent window: %f vs %f", a, b)
	}
}

func TestDetailedScore_RejectsOutOfRangeSentiment(t *testing.T) {
	scorer := NewDetailedCredibilityScorer()
	_, err := scorer.Score(ProfileReview{}, HistoryAnalysis{AverageSentiment: 1.5}, time.Now())
	if err == nil {
		t.Fatal("expected validation error for sentiment outside [0,1]")
	}
	if CodeOf(err) != ErrCodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %s", CodeOf(err))
	}

	_, err = scorer.Score(ProfileReview{}, HistoryAnalysis{AverageSentiment: -0.2}, time.Now())
	if err == nil {
		t.Fatal("expected validation error for signed sentiment")
	}
}

func TestDetailedScore_RejectsInconsistentCounts(t *testing.T) {
	scorer := NewDetailedCredibilityScorer()
	_, err := scorer.Score(ProfileReview{}, HistoryAnalysis{
		InteractionCount: 2, PositiveCount: 2, NegativeCount: 1, AverageSentiment: 0.5,
	}, time.Now())
	if err == nil {
		t.Fatal("expected validation error when classified exceed total")
	}
}

// ══════════════════════════════════════════════
// SimpleCredibilityScorer tests
// ══════════════════════════════════════════════

func TestSimpleScore_NeutralBaseline(t *testing.T) {
	scorer := NewSimpleCredibilityScorer()
	score, err := scorer.Score(ProfileReview{}, HistoryAnalysis{AverageSentiment: 0.5}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 5.0 {
		t.Fatalf("expected neutral baseline 5.0, got %f", score)
	}
}

func TestSimpleScore_NoRecencyDecay(t *testing.T) {
	scorer := NewSimpleCredibilityScorer()
	now := time.Now()
	history := HistoryAnalysis{InteractionCount: 10, AverageSentiment: 0.8}

	history.LastInteraction = now.Add(-time.Hour)
	fresh, _ := scorer.Score(ProfileReview{}, history, now)
	history.LastInteraction = now.Add(-90 * 24 * time.Hour)
	stale, _ := scorer.Score(ProfileReview{}, history, now)

	if fresh != stale {
		t.Fatal("the legacy scorer must ignore recency")
	}
}

func TestSimpleScore_AlwaysInRange(t *testing.T) {
	scorer := NewSimpleCredibilityScorer()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		score, err := scorer.Score(
			ProfileReview{Verified: rng.Intn(2) == 0},
			HistoryAnalysis{InteractionCount: rng.Intn(100), AverageSentiment: rng.Float64()},
			time.Now(),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score < 0 || score > 10 {
			t.Fatalf("score %f outside [0,10]", score)
		}
	}
}

func TestStrategyNames(t *testing.T) {
	if NewDetailedCredibilityScorer().Name() != "detailed" {
		t.Fatal("detailed scorer misnamed")
	}
	if NewSimpleCredibilityScorer().Name() != "simple" {
		t.Fatal("simple scorer misnamed")
	}
}

// ══════════════════════════════════════════════
// AnalyzeHistory tests
// ══════════════════════════════════════════════

func TestAnalyzeHistory_Classification(t *testing.T) {
	now := time.Now()
	history := []InteractionRecord{
		{Timestamp: now.Add(-3 * time.Hour), EmotionalState: EmotionHappy},
		{Timestamp: now.Add(-2 * time.Hour), EmotionalState: EmotionSad},
		{Timestamp: now.Add(-1 * time.Hour), EmotionalState: EmotionAngry},
		{Timestamp: now, EmotionalState: EmotionFrustrated},
	}
	analysis := AnalyzeHistory(history)
	if analysis.InteractionCount != 4 {
		t.Fatalf("expected 4 interactions, got %d", analysis.InteractionCount)
	}
	if analysis.PositiveCount != 1 {
		t.Fatalf("expected 1 positive, got %d", analysis.PositiveCount)
	}
	if analysis.NegativeCount != 2 {
		t.Fatalf("expected 2 negative (sad, angry), got %d", analysis.NegativeCount)
	}
	if !analysis.LastInteraction.Equal(now) {
		t.Fatal("expected last interaction to be the newest timestamp")
	}
}

func TestAnalyzeHistory_Empty(t *testing.T) {
	analysis := AnalyzeHistory(nil)
	if analysis.InteractionCount != 0 {
		t.Fatal("expected empty analysis")
	}
	if analysis.AverageSentiment != 0.5 {
		t.Fatalf("expected neutral sentiment for empty history, got %f", analysis.AverageSentiment)
	}
}
