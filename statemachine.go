package relengine

import (
	"fmt"
	"strings"
)

// ──────────────────────────────────────────────
// Relationship State Machine — tier transitions
// ──────────────────────────────────────────────

// TransitionDecision is the outcome of evaluating one set of metrics
// against the current tier. Changed is false for the implicit
// self-loop; no log entry is written in that case.
type TransitionDecision struct {
	NextState RelationshipTier `json:"next_state"`
	Reason    string           `json:"reason"`
	Changed   bool             `json:"changed"`
}

// TransitionStrategy evaluates the per-state transition rules. Two
// strategies exist: the canonical metrics-driven table and the legacy
// coarse threshold table. They disagree on thresholds and reachable
// tiers, so the state machine binds exactly one and never blends them.
type TransitionStrategy interface {
	Name() string
	Evaluate(current RelationshipTier, metrics RelationshipMetrics) TransitionDecision
}

// adversaryOverrideThreshold: below this credibility the tier is forced
// to ADVERSARY regardless of the per-state table.
const adversaryOverrideThreshold = 2.0

// ReasonLowCredibility is the fixed reason for the global override.
const ReasonLowCredibility = "credibility score too low"

// StateMachine applies the global credibility override, then delegates
// to the bound transition strategy.
type StateMachine struct {
	strategy TransitionStrategy
}

// NewStateMachine creates a state machine. Defaults to the canonical
// metrics-driven table when no strategy is given.
func NewStateMachine(strategy ...TransitionStrategy) *StateMachine {
	var s TransitionStrategy = NewMetricsTransitionTable()
	if len(strategy) > 0 && strategy[0] != nil {
		s = strategy[0]
	}
	return &StateMachine{strategy: s}
}

// StrategyName reports which transition table is bound.
func (sm *StateMachine) StrategyName() string { return sm.strategy.Name() }

// Evaluate computes the next tier for the given metrics. The low
// credibility override precedes the per-state table and always wins.
func (sm *StateMachine) Evaluate(current RelationshipTier, metrics RelationshipMetrics) TransitionDecision {
	if metrics.CredibilityScore < adversaryOverrideThreshold {
		if current == TierAdversary {
			return TransitionDecision{NextState: TierAdversary}
		}
		return TransitionDecision{NextState: TierAdversary, Reason: ReasonLowCredibility, Changed: true}
	}
	return sm.strategy.Evaluate(current, metrics)
}

// ──────────────────────────────────────────────
// Canonical metrics-driven table
// ──────────────────────────────────────────────

type transitionRule struct {
	from   RelationshipTier
	when   func(m RelationshipMetrics) bool
	to     RelationshipTier
	reason string
}

// MetricsTransitionTable is the canonical guarded-rule table over
// {credibility, interaction frequency, average sentiment}. Rules are
// evaluated in declaration order; the first match wins, so identical
// inputs always produce identical decisions.
type MetricsTransitionTable struct {
	rules []transitionRule
}

// NewMetricsTransitionTable creates the canonical table.
func NewMetricsTransitionTable() *MetricsTransitionTable {
	return &MetricsTransitionTable{rules: []transitionRule{
		{
			from: TierStranger,
			when: func(m RelationshipMetrics) bool { return m.InteractionFrequency >= 5 && m.AverageSentiment > 0.5 },
			to:   TierAcquaintance, reason: "Sufficient interactions and positive sentiment",
		},
		{
			from: TierStranger,
			when: func(m RelationshipMetrics) bool { return m.CredibilityScore >= 7 && m.AverageSentiment >= 0.8 },
			to:   TierBusiness, reason: "High credibility with strongly positive first impressions",
		},
		{
			from: TierAcquaintance,
			when: func(m RelationshipMetrics) bool { return m.CredibilityScore >= 8 && m.AverageSentiment >= 0.7 },
			to:   TierFriend, reason: "High credibility and strongly positive sentiment",
		},
		{
			from: TierAcquaintance,
			when: func(m RelationshipMetrics) bool { return m.AverageSentiment < 0.3 },
			to:   TierStranger, reason: "Sentiment dropped below the acquaintance threshold",
		},
		{
			from: TierFriend,
			when: func(m RelationshipMetrics) bool {
				return m.CredibilityScore >= 9 && m.AverageSentiment >= 0.9 && m.InteractionFrequency >= 20
			},
			to: TierPartner, reason: "Sustained high credibility with strong sentiment and frequent interaction",
		},
		{
			from: TierFriend,
			when: func(m RelationshipMetrics) bool { return m.AverageSentiment < 0.4 || m.CredibilityScore < 6 },
			to:   TierAcquaintance, reason: "Sentiment dropped significantly or credibility declined",
		},
		{
			from: TierPartner,
			when: func(m RelationshipMetrics) bool { return m.AverageSentiment < 0.6 || m.CredibilityScore < 7 },
			to:   TierFriend, reason: "Sentiment or credibility fell below partner expectations",
		},
		{
			from: TierBusiness,
			when: func(m RelationshipMetrics) bool { return m.CredibilityScore < 5 },
			to:   TierCompetitor, reason: "Credibility fell below the business threshold",
		},
		{
			from: TierBusiness,
			when: func(m RelationshipMetrics) bool { return m.AverageSentiment >= 0.8 && m.InteractionFrequency >= 15 },
			to:   TierPartner, reason: "Strong sentiment and frequent interaction in a business relationship",
		},
		{
			from: TierCompetitor,
			when: func(m RelationshipMetrics) bool { return m.CredibilityScore >= 6 && m.AverageSentiment >= 0.6 },
			to:   TierBusiness, reason: "Credibility and sentiment recovered to business terms",
		},
		{
			from: TierCompetitor,
			when: func(m RelationshipMetrics) bool { return m.AverageSentiment < 0.2 },
			to:   TierAdversary, reason: "Sentiment collapsed in a competitive relationship",
		},
	}}
}

func (t *MetricsTransitionTable) Name() string { return "metrics" }

func (t *MetricsTransitionTable) Evaluate(current RelationshipTier, metrics RelationshipMetrics) TransitionDecision {
	for _, rule := range t.rules {
		if rule.from != current {
			continue
		}
		if rule.when(metrics) {
			return TransitionDecision{NextState: rule.to, Reason: rule.reason, Changed: rule.to != current}
		}
	}
	return TransitionDecision{NextState: current}
}

// ──────────────────────────────────────────────
// Legacy coarse threshold table
// ──────────────────────────────────────────────

// ThresholdTransitionTable is the simplified legacy mode: credibility
// bands map directly to tiers, with a single sentiment guard. Kept as
// an explicit named strategy only; it is deliberately coarser than the
// canonical table and reaches COMPETITOR where the canonical table
// would hold or go ADVERSARY.
type ThresholdTransitionTable struct{}

// NewThresholdTransitionTable creates the legacy table.
func NewThresholdTransitionTable() *ThresholdTransitionTable {
	return &ThresholdTransitionTable{}
}

func (t *ThresholdTransitionTable) Name() string { return "threshold" }

func (t *ThresholdTransitionTable) Evaluate(current RelationshipTier, metrics RelationshipMetrics) TransitionDecision {
	target := current
	reason := ""
	switch {
	case metrics.CredibilityScore >= 8 && metrics.AverageSentiment >= 0.6:
		target, reason = TierFriend, "Credibility band reached the friend threshold"
	case metrics.CredibilityScore >= 5:
		target, reason = TierAcquaintance, "Credibility band reached the acquaintance threshold"
	case metrics.AverageSentiment < 0.3:
		target, reason = TierCompetitor, "Low sentiment in the low credibility band"
	}
	if target == current {
		return TransitionDecision{NextState: current}
	}
	return TransitionDecision{NextState: target, Reason: reason, Changed: true}
}

// ──────────────────────────────────────────────
// Response configuration — pure function of tier + emotion overrides
// ──────────────────────────────────────────────

// ResponseConfig controls how the host should shape its reply.
type ResponseConfig struct {
	Style      string `json:"style"`      // formal/friendly/warm/professional/guarded
	Tone       string `json:"tone"`       // neutral/positive/cautious/gentle/patient
	Depth      string `json:"depth"`      // minimal/moderate/deep
	Engagement string `json:"engagement"` // minimal/standard/full
}

var tierResponseConfig = map[RelationshipTier]ResponseConfig{
	TierStranger:     {Style: "formal", Tone: "neutral", Depth: "minimal", Engagement: "standard"},
	TierAcquaintance: {Style: "friendly", Tone: "positive", Depth: "moderate", Engagement: "standard"},
	TierFriend:       {Style: "warm", Tone: "positive", Depth: "deep", Engagement: "full"},
	TierFamily:       {Style: "warm", Tone: "positive", Depth: "deep", Engagement: "full"},
	TierBusiness:     {Style: "professional", Tone: "neutral", Depth: "moderate", Engagement: "standard"},
	TierPartner:      {Style: "warm", Tone: "positive", Depth: "deep", Engagement: "full"},
	TierCompetitor:   {Style: "professional", Tone: "cautious", Depth: "minimal", Engagement: "standard"},
	TierAdversary:    {Style: "guarded", Tone: "cautious", Depth: "minimal", Engagement: "minimal"},
	TierEnemy:        {Style: "guarded", Tone: "cautious", Depth: "minimal", Engagement: "minimal"},
	TierUnknown:      {Style: "formal", Tone: "neutral", Depth: "minimal", Engagement: "standard"},
}

// ResponseConfigFor derives the response configuration from the tier,
// then applies the emotion override layer. ANGRY forces a cautious tone
// and minimal engagement regardless of tier.
func ResponseConfigFor(tier RelationshipTier, emotion EmotionalState) ResponseConfig {
	cfg, ok := tierResponseConfig[tier]
	if !ok {
		cfg = tierResponseConfig[TierUnknown]
	}
	switch emotion {
	case EmotionAngry:
		cfg.Tone = "cautious"
		cfg.Engagement = "minimal"
	case EmotionFrustrated:
		cfg.Tone = "patient"
		cfg.Style = "supportive"
	case EmotionSad:
		cfg.Tone = "gentle"
	}
	return cfg
}

// FormatForPrompt renders the configuration as a hint for LLM injection.
func (c ResponseConfig) FormatForPrompt() string {
	return strings.Join([]string{
		"[response guidance]",
		"style: " + c.Style,
		"tone: " + c.Tone,
		"depth: " + c.Depth,
		"engagement: " + c.Engagement,
	}, " ")
}

// DeriveResponseMode computes the engagement posture from the tier and
// current metrics.
func DeriveResponseMode(tier RelationshipTier, metrics RelationshipMetrics) ResponseMode {
	if tier == TierAdversary || tier == TierEnemy {
		return ResponseDisengagement
	}
	if metrics.InteractionFrequency <= 1 {
		return ResponseInitial
	}
	return ResponseOngoing
}

// ──────────────────────────────────────────────
// Pipeline stage derivation + adjacency validation
// ──────────────────────────────────────────────

// stageAdjacency is the fixed table of legal pipeline-stage transitions.
// IDLE, MONITORING and EMOTION_ANALYSIS are reachable from everywhere
// (they are the derivation targets); the evaluation/response stages are
// only reachable along the pipeline.
var stageAdjacency = map[PipelineStage][]PipelineStage{
	StageIdle:            {StageIdle, StageMonitoring, StageEmotionAnalysis},
	StageMonitoring:      {StageIdle, StageMonitoring, StageEmotionAnalysis, StageUserEvaluation},
	StageEmotionAnalysis: {StageIdle, StageMonitoring, StageEmotionAnalysis, StageUserEvaluation},
	StageUserEvaluation:  {StageIdle, StageMonitoring, StageEmotionAnalysis, StageResponseMode},
	StageResponseMode:    {StageIdle, StageMonitoring, StageEmotionAnalysis, StageResponseMode},
}

// DerivePipelineStage computes the next pipeline stage: disengaged
// contexts go idle, low credibility keeps the user under monitoring,
// everything else proceeds to emotion analysis.
func DerivePipelineStage(mode ResponseMode, credibility float64) PipelineStage {
	switch {
	case mode == ResponseDisengagement:
		return StageIdle
	case credibility < 5:
		return StageMonitoring
	default:
		return StageEmotionAnalysis
	}
}

// ValidateStageTransition rejects pipeline-stage jumps that are not in
// the adjacency table. This is a non-recoverable configuration error.
func ValidateStageTransition(from, to PipelineStage) error {
	if !from.Valid() {
		return NewValidationError(fmt.Sprintf("unknown pipeline stage %q", from))
	}
	for _, allowed := range stageAdjacency[from] {
		if allowed == to {
			return nil
		}
	}
	return NewInvalidTransitionError(from, to)
}
