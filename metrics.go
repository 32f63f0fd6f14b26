package relengine

import (
	"fmt"
	"sort"
	"time"
)

// ──────────────────────────────────────────────
// Metrics Aggregator — derived interaction statistics
// ──────────────────────────────────────────────

// RelationshipMetrics is the numeric input to the state machine.
type RelationshipMetrics struct {
	CredibilityScore     float64 `json:"credibility_score"`
	InteractionFrequency int     `json:"interaction_frequency"`
	AverageSentiment     float64 `json:"average_sentiment"` // 0.0-1.0
}

// TrendDirection classifies the recent emotional trajectory.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
	TrendDeclining TrendDirection = "declining"
)

// DetailedMetrics enriches RelationshipMetrics with trend context.
type DetailedMetrics struct {
	RelationshipMetrics
	RecentTrend     TrendDirection `json:"recent_trend"`
	ConfidenceScore float64        `json:"confidence_score"` // 0.0-1.0
	LastStateChange *StateChange   `json:"last_state_change,omitempty"`
}

// Fixed per-emotion sentiment values. Anything unrecognized reads as
// neutral 0.5 so a single odd record cannot swing the average hard.
var emotionSentiment = map[EmotionalState]float64{
	EmotionHappy:      1.0,
	EmotionFrustrated: 0.3,
	EmotionSad:        0.0,
	EmotionAngry:      0.0,
}

func sentimentValue(e EmotionalState) float64 {
	if v, ok := emotionSentiment[e]; ok {
		return v
	}
	return 0.5
}

func sentimentOverHistory(history []InteractionRecord) float64 {
	if len(history) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, rec := range history {
		sum += sentimentValue(rec.EmotionalState)
	}
	return sum / float64(len(history))
}

// MetricsAggregator computes metrics from a bounded window of
// interaction history. It holds no per-user state.
type MetricsAggregator struct {
	recentWindow time.Duration
}

// NewMetricsAggregator creates an aggregator. The recent-interactions
// variant uses a trailing 7-day window by default.
func NewMetricsAggregator() *MetricsAggregator {
	return &MetricsAggregator{recentWindow: 7 * 24 * time.Hour}
}

// Aggregate computes the base metrics over the full bounded history.
func (m *MetricsAggregator) Aggregate(ctx *RelationshipContext) RelationshipMetrics {
	return RelationshipMetrics{
		CredibilityScore:     ctx.CredibilityScore,
		InteractionFrequency: len(ctx.InteractionHistory),
		AverageSentiment:     sentimentOverHistory(ctx.InteractionHistory),
	}
}

// AggregateDetailed computes the enriched form with trend and
// confidence-in-metrics.
func (m *MetricsAggregator) AggregateDetailed(ctx *RelationshipContext) DetailedMetrics {
	return DetailedMetrics{
		RelationshipMetrics: m.Aggregate(ctx),
		RecentTrend:         recentTrend(ctx.InteractionHistory),
		ConfidenceScore:     metricsConfidence(len(ctx.InteractionHistory)),
		LastStateChange:     ctx.LastStateChange(),
	}
}

// AggregateRecent restricts frequency and sentiment to interactions
// inside the trailing recent window.
func (m *MetricsAggregator) AggregateRecent(ctx *RelationshipContext, now time.Time) RelationshipMetrics {
	cutoff := now.Add(-m.recentWindow)
	var recent []InteractionRecord
	for _, rec := range ctx.InteractionHistory {
		if !rec.Timestamp.Before(cutoff) {
			recent = append(recent, rec)
		}
	}
	return RelationshipMetrics{
		CredibilityScore:     ctx.CredibilityScore,
		InteractionFrequency: len(recent),
		AverageSentiment:     sentimentOverHistory(recent),
	}
}

// recentTrend compares positive vs negative emotion counts within the
// last 3 entries. Fewer than 3 entries reads as stable.
func recentTrend(history []InteractionRecord) TrendDirection {
	if len(history) < 3 {
		return TrendStable
	}
	last := history[len(history)-3:]
	positive, negative := 0, 0
	for _, rec := range last {
		if rec.EmotionalState == EmotionHappy {
			positive++
		} else {
			negative++
		}
	}
	switch {
	case positive > negative:
		return TrendImproving
	case negative > positive:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// metricsConfidence grows with observations, saturating at 10.
func metricsConfidence(historyLength int) float64 {
	return clamp01(float64(historyLength) / 10.0)
}

// ──────────────────────────────────────────────
// Time-bucketed analysis — trend narratives
// ──────────────────────────────────────────────

// TimeBucket is one contiguous interval of interaction history.
type TimeBucket struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Count            int       `json:"count"`
	AverageSentiment float64   `json:"average_sentiment"`
}

// SignificantEvent flags a notable shift between adjacent buckets.
// These feed human-readable narratives, not the state machine.
type SignificantEvent struct {
	BucketStart    time.Time `json:"bucket_start"`
	SentimentShift float64   `json:"sentiment_shift"`
	CountShift     int       `json:"count_shift"`
	Description    string    `json:"description"`
}

const (
	significantSentimentShift = 0.3
	significantCountShift     = 3
)

// BucketHistory partitions history into contiguous intervals of the
// given size, starting at the earliest timestamp. Empty intervals are
// kept so adjacent-bucket comparisons stay meaningful.
func (m *MetricsAggregator) BucketHistory(history []InteractionRecord, interval time.Duration) []TimeBucket {
	if len(history) == 0 || interval <= 0 {
		return nil
	}
	sorted := make([]InteractionRecord, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	start := sorted[0].Timestamp
	end := sorted[len(sorted)-1].Timestamp

	var buckets []TimeBucket
	for cursor := start; !cursor.After(end); cursor = cursor.Add(interval) {
		bucketEnd := cursor.Add(interval)
		var members []InteractionRecord
		for _, rec := range sorted {
			if !rec.Timestamp.Before(cursor) && rec.Timestamp.Before(bucketEnd) {
				members = append(members, rec)
			}
		}
		sentiment := 0.5
		if len(members) > 0 {
			sentiment = sentimentOverHistory(members)
		}
		buckets = append(buckets, TimeBucket{
			Start:            cursor,
			End:              bucketEnd,
			Count:            len(members),
			AverageSentiment: sentiment,
		})
	}
	return buckets
}

// DailyBuckets groups history by day.
func (m *MetricsAggregator) DailyBuckets(history []InteractionRecord) []TimeBucket {
	return m.BucketHistory(history, 24*time.Hour)
}

// WeeklyBuckets groups history by week.
func (m *MetricsAggregator) WeeklyBuckets(history []InteractionRecord) []TimeBucket {
	return m.BucketHistory(history, 7*24*time.Hour)
}

// DetectSignificantEvents flags sentiment shifts >= 0.3 or interaction
// count shifts >= 3 between adjacent weekly buckets.
func (m *MetricsAggregator) DetectSignificantEvents(history []InteractionRecord) []SignificantEvent {
	buckets := m.WeeklyBuckets(history)
	var events []SignificantEvent
	for i := 1; i < len(buckets); i++ {
		prev, cur := buckets[i-1], buckets[i]
		sentShift := cur.AverageSentiment - prev.AverageSentiment
		countShift := cur.Count - prev.Count

		if abs(sentShift) < significantSentimentShift && absInt(countShift) < significantCountShift {
			continue
		}
		events = append(events, SignificantEvent{
			BucketStart:    cur.Start,
			SentimentShift: sentShift,
			CountShift:     countShift,
			Description:    describeShift(sentShift, countShift),
		})
	}
	return events
}

func describeShift(sentShift float64, countShift int) string {
	switch {
	case sentShift >= significantSentimentShift:
		return fmt.Sprintf("sentiment improved by %.2f week over week", sentShift)
	case sentShift <= -significantSentimentShift:
		return fmt.Sprintf("sentiment dropped by %.2f week over week", -sentShift)
	case countShift >= significantCountShift:
		return fmt.Sprintf("interaction volume rose by %d week over week", countShift)
	default:
		return fmt.Sprintf("interaction volume fell by %d week over week", -countShift)
	}
}

// TrendNarrative renders a short human-readable summary of the weekly
// trajectory for logs and prompt injection.
func (m *MetricsAggregator) TrendNarrative(ctx *RelationshipContext) string {
	detailed := m.AggregateDetailed(ctx)
	narrative := fmt.Sprintf("%d interactions, average sentiment %.2f, trend %s",
		detailed.InteractionFrequency, detailed.AverageSentiment, detailed.RecentTrend)
	for _, ev := range m.DetectSignificantEvents(ctx.InteractionHistory) {
		narrative += "; " + ev.Description
	}
	return narrative
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
