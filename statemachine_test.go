package relengine

import (
	"testing"
)

// ══════════════════════════════════════════════
// StateMachine tests — canonical table
// ══════════════════════════════════════════════

func TestEvaluate_StrangerToAcquaintance(t *testing.T) {
	sm := NewStateMachine()
	// Scenario: 6 interactions, sentiment 0.6, credibility 5
	decision := sm.Evaluate(TierStranger, RelationshipMetrics{
		CredibilityScore: 5, InteractionFrequency: 6, AverageSentiment: 0.6,
	})
	if !decision.Changed || decision.NextState != TierAcquaintance {
		t.Fatalf("expected ACQUAINTANCE, got %+v", decision)
	}
	if !contains(decision.Reason, "Sufficient interactions and positive sentiment") {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestEvaluate_StrangerToBusiness(t *testing.T) {
	sm := NewStateMachine()
	decision := sm.Evaluate(TierStranger, RelationshipMetrics{
		CredibilityScore: 7.5, InteractionFrequency: 2, AverageSentiment: 0.85,
	})
	if !decision.Changed || decision.NextState != TierBusiness {
		t.Fatalf("expected BUSINESS, got %+v", decision)
	}
}

func TestEvaluate_AcquaintanceToFriend(t *testing.T) {
	sm := NewStateMachine()
	decision := sm.Evaluate(TierAcquaintance, RelationshipMetrics{
		CredibilityScore: 9, InteractionFrequency: 10, AverageSentiment: 0.7,
	})
	if !decision.Changed || decision.NextState != TierFriend {
		t.Fatalf("expected FRIEND, got %+v", decision)
	}
	if !contains(decision.Reason, "High credibility and strongly positive sentiment") {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestEvaluate_FriendDowngrade(t *testing.T) {
	sm := NewStateMachine()
	decision := sm.Evaluate(TierFriend, RelationshipMetrics{
		CredibilityScore: 7, InteractionFrequency: 10, AverageSentiment: 0.3,
	})
	if !decision.Changed || decision.NextState != TierAcquaintance {
		t.Fatalf("expected downgrade to ACQUAINTANCE, got %+v", decision)
	}
	if !contains(decision.Reason, "Sentiment dropped significantly") {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestEvaluate_FriendToPartner(t *testing.T) {
	sm := NewStateMachine()
	decision := sm.Evaluate(TierFriend, RelationshipMetrics{
		CredibilityScore: 9.5, InteractionFrequency: 25, AverageSentiment: 0.95,
	})
	if !decision.Changed || decision.NextState != TierPartner {
		t.Fatalf("expected PARTNER, got %+v", decision)
	}
}

func TestEvaluate_PartnerDemotion(t *testing.T) {
	sm := NewStateMachine()
	decision := sm.Evaluate(TierPartner, RelationshipMetrics{
		CredibilityScore: 6.5, InteractionFrequency: 30, AverageSentiment: 0.9,
	})
	if !decision.Changed || decision.NextState != TierFriend {
		t.Fatalf("expected FRIEND, got %+v", decision)
	}
}

func TestEvaluate_BusinessBranches(t *testing.T) {
	sm := NewStateMachine()

	toCompetitor := sm.Evaluate(TierBusiness, RelationshipMetrics{
		CredibilityScore: 4, InteractionFrequency: 10, AverageSentiment: 0.7,
	})
	if toCompetitor.NextState != TierCompetitor {
		t.Fatalf("expected COMPETITOR, got %+v", toCompetitor)
	}

	toPartner := sm.Evaluate(TierBusiness, RelationshipMetrics{
		CredibilityScore: 8, InteractionFrequency: 16, AverageSentiment: 0.85,
	})
	if toPartner.NextState != TierPartner {
		t.Fatalf("expected PARTNER, got %+v", toPartner)
	}
}

func TestEvaluate_CompetitorBranches(t *testing.T) {
	sm := NewStateMachine()

	recovery := sm.Evaluate(TierCompetitor, RelationshipMetrics{
		CredibilityScore: 6.5, InteractionFrequency: 5, AverageSentiment: 0.65,
	})
	if recovery.NextState != TierBusiness {
		t.Fatalf("expected BUSINESS, got %+v", recovery)
	}

	collapse := sm.Evaluate(TierCompetitor, RelationshipMetrics{
		CredibilityScore: 5, InteractionFrequency: 5, AverageSentiment: 0.1,
	})
	if collapse.NextState != TierAdversary {
		t.Fatalf("expected ADVERSARY, got %+v", collapse)
	}
}

func TestEvaluate_UnmatchedIsSelfLoop(t *testing.T) {
	sm := NewStateMachine()
	decision := sm.Evaluate(TierStranger, RelationshipMetrics{
		CredibilityScore: 4, InteractionFrequency: 2, AverageSentiment: 0.5,
	})
	if decision.Changed {
		t.Fatalf("expected self-loop, got %+v", decision)
	}
	if decision.NextState != TierStranger {
		t.Fatalf("self-loop must keep the current tier, got %s", decision.NextState)
	}
	if decision.Reason != "" {
		t.Fatal("self-loops must not carry a reason (no log entry)")
	}
}

// ══════════════════════════════════════════════
// Global override + determinism
// ══════════════════════════════════════════════

func TestEvaluate_LowCredibilityOverridesEveryTier(t *testing.T) {
	sm := NewStateMachine()
	allTiers := []RelationshipTier{
		TierStranger, TierAcquaintance, TierFriend, TierFamily, TierBusiness,
		TierPartner, TierCompetitor, TierAdversary, TierEnemy, TierUnknown,
	}
	for _, tier := range allTiers {
		decision := sm.Evaluate(tier, RelationshipMetrics{
			CredibilityScore: 1.5, InteractionFrequency: 50, AverageSentiment: 1.0,
		})
		if decision.NextState != TierAdversary {
			t.Fatalf("tier %s: expected forced ADVERSARY, got %s", tier, decision.NextState)
		}
		if tier != TierAdversary {
			if !decision.Changed {
				t.Fatalf("tier %s: expected an accepted transition", tier)
			}
			if decision.Reason != ReasonLowCredibility {
				t.Fatalf("tier %s: unexpected reason %q", tier, decision.Reason)
			}
		} else if decision.Changed {
			t.Fatal("ADVERSARY to ADVERSARY must not log a transition")
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	sm := NewStateMachine()
	metrics := RelationshipMetrics{CredibilityScore: 9, InteractionFrequency: 10, AverageSentiment: 0.7}
	first := sm.Evaluate(TierAcquaintance, metrics)
	for i := 0; i < 100; i++ {
		again := sm.Evaluate(TierAcquaintance, metrics)
		if again != first {
			t.Fatalf("iteration %d: non-deterministic decision %+v vs %+v", i, again, first)
		}
	}
}

// ══════════════════════════════════════════════
// Legacy threshold table
// ══════════════════════════════════════════════

func TestThresholdTable_IsExplicitlySelectable(t *testing.T) {
	sm := NewStateMachine(NewThresholdTransitionTable())
	if sm.StrategyName() != "threshold" {
		t.Fatalf("expected threshold strategy, got %s", sm.StrategyName())
	}

	decision := sm.Evaluate(TierStranger, RelationshipMetrics{
		CredibilityScore: 8.5, InteractionFrequency: 1, AverageSentiment: 0.7,
	})
	if decision.NextState != TierFriend {
		t.Fatalf("expected the coarse table to jump straight to FRIEND, got %s", decision.NextState)
	}
}

func TestThresholdTable_OverrideStillWins(t *testing.T) {
	sm := NewStateMachine(NewThresholdTransitionTable())
	decision := sm.Evaluate(TierFriend, RelationshipMetrics{
		CredibilityScore: 1, InteractionFrequency: 50, AverageSentiment: 1.0,
	})
	if decision.NextState != TierAdversary || decision.Reason != ReasonLowCredibility {
		t.Fatalf("override must precede the legacy table, got %+v", decision)
	}
}

func TestDefaultStrategyIsMetricsTable(t *testing.T) {
	if NewStateMachine().StrategyName() != "metrics" {
		t.Fatal("default strategy must be the canonical metrics table")
	}
}

// ══════════════════════════════════════════════
// Response configuration + pipeline stage
// ══════════════════════════════════════════════

func TestResponseConfigFor_AngryOverridesTier(t *testing.T) {
	cfg := ResponseConfigFor(TierPartner, EmotionAngry)
	if cfg.Tone != "cautious" {
		t.Fatalf("ANGRY must force a cautious tone, got %s", cfg.Tone)
	}
	if cfg.Engagement != "minimal" {
		t.Fatalf("ANGRY must force minimal engagement, got %s", cfg.Engagement)
	}
}

func TestResponseConfigFor_TierBaseline(t *testing.T) {
	friend := ResponseConfigFor(TierFriend, EmotionHappy)
	if friend.Style != "warm" || friend.Depth != "deep" {
		t.Fatalf("unexpected friend config %+v", friend)
	}
	adversary := ResponseConfigFor(TierAdversary, EmotionHappy)
	if adversary.Engagement != "minimal" || adversary.Style != "guarded" {
		t.Fatalf("unexpected adversary config %+v", adversary)
	}
}

func TestDeriveResponseMode(t *testing.T) {
	if got := DeriveResponseMode(TierAdversary, RelationshipMetrics{InteractionFrequency: 50}); got != ResponseDisengagement {
		t.Fatalf("adversary must disengage, got %s", got)
	}
	if got := DeriveResponseMode(TierStranger, RelationshipMetrics{InteractionFrequency: 1}); got != ResponseInitial {
		t.Fatalf("first contact must be INITIAL, got %s", got)
	}
	if got := DeriveResponseMode(TierFriend, RelationshipMetrics{InteractionFrequency: 10}); got != ResponseOngoing {
		t.Fatalf("established contact must be ONGOING, got %s", got)
	}
}

func TestDerivePipelineStage(t *testing.T) {
	if got := DerivePipelineStage(ResponseDisengagement, 9); got != StageIdle {
		t.Fatalf("disengagement must go IDLE, got %s", got)
	}
	if got := DerivePipelineStage(ResponseOngoing, 3); got != StageMonitoring {
		t.Fatalf("low credibility must go MONITORING, got %s", got)
	}
	if got := DerivePipelineStage(ResponseOngoing, 7); got != StageEmotionAnalysis {
		t.Fatalf("expected EMOTION_ANALYSIS, got %s", got)
	}
}

func TestValidateStageTransition(t *testing.T) {
	if err := ValidateStageTransition(StageIdle, StageMonitoring); err != nil {
		t.Fatalf("IDLE -> MONITORING must be legal: %v", err)
	}
	if err := ValidateStageTransition(StageEmotionAnalysis, StageUserEvaluation); err != nil {
		t.Fatalf("EMOTION_ANALYSIS -> USER_EVALUATION must be legal: %v", err)
	}

	err := ValidateStageTransition(StageIdle, StageResponseMode)
	if err == nil {
		t.Fatal("IDLE -> RESPONSE_MODE must be rejected")
	}
	if CodeOf(err) != ErrCodeInvalidTransition {
		t.Fatalf("expected INVALID_TRANSITION, got %s", CodeOf(err))
	}
	if IsRetryable(err) {
		t.Fatal("illegal stage jumps must not be retryable")
	}
}

func TestFormatForPrompt_ResponseConfig(t *testing.T) {
	hint := ResponseConfigFor(TierFriend, EmotionSad).FormatForPrompt()
	if !contains(hint, "tone: gentle") {
		t.Fatalf("expected gentle tone hint, got %q", hint)
	}
}
