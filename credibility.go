package relengine

import (
	"fmt"
	"math"
	"time"
)

// ──────────────────────────────────────────────
// Credibility Scorer — profile + history trust metric
// ──────────────────────────────────────────────

// ProfileReview is the profile-quality input to credibility scoring.
type ProfileReview struct {
	AccountAgeDays int  `json:"account_age_days"`
	FollowerCount  int  `json:"follower_count"`
	FollowingCount int  `json:"following_count"`
	Verified       bool `json:"verified"`
}

// HistoryAnalysis is the historical-interaction input to credibility scoring.
type HistoryAnalysis struct {
	InteractionCount int       `json:"interaction_count"`
	PositiveCount    int       `json:"positive_count"`
	NegativeCount    int       `json:"negative_count"`
	AverageSentiment float64   `json:"average_sentiment"` // 0.0-1.0
	LastInteraction  time.Time `json:"last_interaction"`
}

// CredibilityStrategy computes a 0-10 credibility score. The two
// built-in strategies disagree on scale and must not be mixed within
// one context's lifetime; the engine binds one at construction.
type CredibilityStrategy interface {
	Name() string
	Score(profile ProfileReview, history HistoryAnalysis, now time.Time) (float64, error)
}

func validateHistoryAnalysis(h HistoryAnalysis) error {
	if h.AverageSentiment < 0 || h.AverageSentiment > 1 {
		return NewValidationError(fmt.Sprintf("average sentiment %.2f outside [0,1]", h.AverageSentiment))
	}
	if h.InteractionCount < 0 || h.PositiveCount < 0 || h.NegativeCount < 0 {
		return NewValidationError("interaction counts must be non-negative")
	}
	if h.PositiveCount+h.NegativeCount > h.InteractionCount {
		return NewValidationError("classified interactions exceed total interaction count")
	}
	return nil
}

// ──────────────────────────────────────────────
// Detailed strategy (canonical)
// ──────────────────────────────────────────────

// DetailedScoringConfig holds the term caps and decay windows for the
// detailed strategy. Zero values fall back to defaults.
type DetailedScoringConfig struct {
	AccountAgeCeilingYears float64 // default 3
	AccountAgeWeight       float64 // default 2.0
	FollowerWeight         float64 // per log10(followers+1), default 0.5
	FollowerCap            float64 // default 1.5
	VerifiedBonus          float64 // default 1.0
	FrequencySaturation    int     // default 50 interactions
	FrequencyWeight        float64 // default 1.5
	PositiveRatioWeight    float64 // default 4.0, the heaviest term
	RecentWindowDays       float64 // recency factor stays 1.0, default 7
	DecayWindowDays        float64 // linear decay to 0, default 30
}

// DefaultDetailedScoringConfig returns the production defaults. The
// term caps sum to 10 so a maxed-out, recently active user scores 10.
func DefaultDetailedScoringConfig() DetailedScoringConfig {
	return DetailedScoringConfig{
		AccountAgeCeilingYears: 3,
		AccountAgeWeight:       2.0,
		FollowerWeight:         0.5,
		FollowerCap:            1.5,
		VerifiedBonus:          1.0,
		FrequencySaturation:    50,
		FrequencyWeight:        1.5,
		PositiveRatioWeight:    4.0,
		RecentWindowDays:       7,
		DecayWindowDays:        30,
	}
}

// DetailedCredibilityScorer is the canonical strategy: a weighted linear
// combination of separately bounded terms, scaled by a recency factor so
// stale relationships regress toward zero regardless of historical score.
type DetailedCredibilityScorer struct {
	config DetailedScoringConfig
}

// NewDetailedCredibilityScorer creates the canonical scorer.
func NewDetailedCredibilityScorer(config ...DetailedScoringConfig) *DetailedCredibilityScorer {
	cfg := DefaultDetailedScoringConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &DetailedCredibilityScorer{config: cfg}
}

func (s *DetailedCredibilityScorer) Name() string { return "detailed" }

// Score combines the profile review and history analysis into [0,10].
// Fails with a validation error when an input lies outside its range;
// this is the only hard validation failure in the engine.
func (s *DetailedCredibilityScorer) Score(profile ProfileReview, history HistoryAnalysis, now time.Time) (float64, error) {
	if err := validateHistoryAnalysis(history); err != nil {
		return 0, err
	}
	if profile.AccountAgeDays < 0 || profile.FollowerCount < 0 {
		return 0, NewValidationError("profile fields must be non-negative")
	}
	cfg := s.config

	// Account age: capped past a multi-year ceiling
	ageYears := float64(profile.AccountAgeDays) / 365.0
	if ageYears > cfg.AccountAgeCeilingYears {
		ageYears = cfg.AccountAgeCeilingYears
	}
	ageTerm := ageYears / cfg.AccountAgeCeilingYears * cfg.AccountAgeWeight

	// Followers: logarithmic with a hard cap (diminishing returns)
	followerTerm := math.Log10(float64(profile.FollowerCount)+1) * cfg.FollowerWeight
	if followerTerm > cfg.FollowerCap {
		followerTerm = cfg.FollowerCap
	}

	verifiedTerm := 0.0
	if profile.Verified {
		verifiedTerm = cfg.VerifiedBonus
	}

	// Interaction frequency: saturates past the threshold count
	freq := history.InteractionCount
	if freq > cfg.FrequencySaturation {
		freq = cfg.FrequencySaturation
	}
	freqTerm := float64(freq) / float64(cfg.FrequencySaturation) * cfg.FrequencyWeight

	// Positive-interaction ratio: weighted most heavily
	ratioTerm := 0.0
	if history.InteractionCount > 0 {
		ratio := float64(history.PositiveCount-history.NegativeCount) / float64(history.InteractionCount)
		ratioTerm = clamp01(ratio) * cfg.PositiveRatioWeight
	}

	raw := ageTerm + followerTerm + verifiedTerm + freqTerm + ratioTerm
	score := raw * s.recencyFactor(history.LastInteraction, now)
	return clampScore(score), nil
}

// recencyFactor is 1.0 while the last interaction is within the recent
// window, then decays linearly to 0 across the decay window.
func (s *DetailedCredibilityScorer) recencyFactor(last, now time.Time) float64 {
	if last.IsZero() {
		return 1.0
	}
	days := now.Sub(last).Hours() / 24
	if days <= s.config.RecentWindowDays {
		return 1.0
	}
	factor := 1.0 - (days-s.config.RecentWindowDays)/s.config.DecayWindowDays
	return clamp01(factor)
}

// ──────────────────────────────────────────────
// Simple strategy (legacy "evaluate user" path)
// ──────────────────────────────────────────────

// SimpleCredibilityScorer is the flat additive variant with no recency
// decay, kept for the coarse-grained user-evaluation path.
type SimpleCredibilityScorer struct{}

// NewSimpleCredibilityScorer creates the legacy scorer.
func NewSimpleCredibilityScorer() *SimpleCredibilityScorer {
	return &SimpleCredibilityScorer{}
}

func (s *SimpleCredibilityScorer) Name() string { return "simple" }

// Score starts from a neutral base and adds flat bonuses.
func (s *SimpleCredibilityScorer) Score(profile ProfileReview, history HistoryAnalysis, _ time.Time) (float64, error) {
	if err := validateHistoryAnalysis(history); err != nil {
		return 0, err
	}

	score := 5.0
	if profile.Verified {
		score += 1.0
	}
	freqBonus := float64(history.InteractionCount) / 10.0
	if freqBonus > 2.0 {
		freqBonus = 2.0
	}
	score += freqBonus
	score += (history.AverageSentiment - 0.5) * 4.0
	return clampScore(score), nil
}

// AnalyzeHistory builds a HistoryAnalysis from the interaction history.
// Entries with sentiment >= 0.7 count as positive, <= 0.2 as negative.
func AnalyzeHistory(history []InteractionRecord) HistoryAnalysis {
	analysis := HistoryAnalysis{
		InteractionCount: len(history),
		AverageSentiment: sentimentOverHistory(history),
	}
	for _, rec := range history {
		v := sentimentValue(rec.EmotionalState)
		switch {
		case v >= 0.7:
			analysis.PositiveCount++
		case v <= 0.2:
			analysis.NegativeCount++
		}
		if rec.Timestamp.After(analysis.LastInteraction) {
			analysis.LastInteraction = rec.Timestamp
		}
	}
	return analysis
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
